package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/logger"
	"github.com/nutsq/nutsdash/nuts/action"
	"github.com/nutsq/nutsdash/nuts/api"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// readJSON decodes a JSON request body. An empty body leaves v untouched.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return err
	}
	return nil
}

// statusForError maps the dashboard's error taxonomy to an HTTP status
func statusForError(err error) int {
	if re, ok := api.IsRequestError(err); ok {
		if re.Timeout || re.StatusCode == 0 {
			return http.StatusGatewayTimeout
		}
		return re.StatusCode
	}
	if _, ok := api.IsNetworkError(err); ok {
		return http.StatusBadGateway
	}
	switch {
	case action.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case action.IsProgrammingError(err):
		return http.StatusConflict
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.IsInvalidRequestError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// messageForError returns the operator-facing text of err. Backend
// rejections show the backend's detail verbatim.
func messageForError(err error) string {
	if re, ok := api.IsRequestError(err); ok {
		return re.Detail
	}
	var ve *action.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

// writeErrorFrom writes err with its mapped status and logs server-side
// failures
func (s *Server) writeErrorFrom(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warnw("Request failed",
			logger.FieldPath, r.URL.Path,
			logger.FieldStatusCode, status,
			logger.FieldError, err)
	}
	writeError(w, status, messageForError(err))
}

// pathName returns the {name} URL parameter, rejecting blank names
func pathName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := strings.TrimSpace(urlParam(r, "name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return "", false
	}
	return name, true
}
