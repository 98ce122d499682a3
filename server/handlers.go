package server

import (
	"net/http"
	"time"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/nuts/action"
	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/dashboard"
	"github.com/nutsq/nutsdash/nuts/liveview"
	"github.com/nutsq/nutsdash/nuts/unify"
	"github.com/nutsq/nutsdash/version"
)

// HandleHealth serves the health check with version and view freshness
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": info.Version,
		"commit":  info.Short(),
		"clients": s.ClientCount(),
		"views":   s.svc.Controller().Stats(),
	})
}

// HandleVersion serves build information
func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// HandleViews serves refresh statistics of every live view
func (s *Server) HandleViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Controller().Stats())
}

// HandleListJobs serves the unified job list, optionally filtered by ?status=
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != "all" && !unify.IsValidStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status filter: "+status)
		return
	}

	cur, err := dashboard.Current(r.Context(), s.svc.Jobs())
	if err != nil {
		s.writeErrorFrom(w, r, err)
		return
	}

	all := cur.Snapshot.Data
	writeJSON(w, http.StatusOK, JobsResponse{
		ViewState: viewState(cur),
		Jobs:      unify.FilterByStatus(all, status),
		Counts:    unify.CountByStatus(all),
	})
}

// HandleGetJob serves every instance of one job name
func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}

	cur, err := dashboard.Current(r.Context(), s.svc.Jobs())
	if err != nil {
		s.writeErrorFrom(w, r, err)
		return
	}

	jobs := unify.Instances(cur.Snapshot.Data, name)
	writeJSON(w, http.StatusOK, JobsResponse{
		ViewState: viewState(cur),
		Jobs:      jobs,
		Counts:    unify.CountByStatus(jobs),
	})
}

// HandleCancelJob cancels a job instance according to its status
func (s *Server) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}

	var req CancelJobRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	job, err := s.svc.CancelTarget(r.Context(), name, req.Status)
	if err != nil {
		s.writeErrorFrom(w, r, err)
		return
	}

	resp, err := s.svc.CancelJob(r.Context(), job)
	s.writeMutation(w, r, resp, err)
}

// HandleScheduleJob schedules a run of a job at an operator-entered time
func (s *Server) HandleScheduleJob(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}

	at, ok := s.readRunAt(w, r)
	if !ok {
		return
	}

	resp, err := s.svc.ScheduleJob(r.Context(), name, at)
	s.writeMutation(w, r, resp, err)
}

// HandleEnqueueJob runs a job now
func (s *Server) HandleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req EnqueueJobRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	params := req.Params
	if params == nil && req.Args != "" {
		var err error
		if params, err = action.ParseParams(req.Args); err != nil {
			s.writeErrorFrom(w, r, err)
			return
		}
	}

	resp, err := s.svc.EnqueueJob(r.Context(), req.Name, params)
	s.writeMutation(w, r, resp, err)
}

// HandleListWorkflows serves workflow summaries
func (s *Server) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	cur, err := dashboard.Current(r.Context(), s.svc.Workflows())
	if err != nil {
		s.writeErrorFrom(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, WorkflowsResponse{
		ViewState: viewState(cur),
		Workflows: unify.Summarize(cur.Snapshot.Data),
	})
}

// HandleGetWorkflow serves one workflow, opening its live view on first use
func (s *Server) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}

	view := s.svc.Workflow(name)
	cur, err := dashboard.Current(r.Context(), view)
	if err != nil {
		if errors.IsNotFoundError(err) {
			// nothing to watch
			s.svc.CloseWorkflow(name)
		}
		s.writeErrorFrom(w, r, err)
		return
	}

	ws := cur.Snapshot.Data
	display := unify.DisplayStatus(ws)
	acts := action.WorkflowActions(display)
	names := make([]string, len(acts))
	for i, a := range acts {
		names[i] = string(a)
	}

	writeJSON(w, http.StatusOK, WorkflowResponse{
		ViewState: viewState(cur),
		Workflow:  ws,
		Status:    display,
		Progress:  unify.ProgressLabel(ws),
		Actions:   names,
	})
}

// HandleTriggerWorkflow runs a workflow now
func (s *Server) HandleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}
	resp, err := s.svc.TriggerWorkflow(r.Context(), name)
	s.writeMutation(w, r, resp, err)
}

// HandleCancelScheduledWorkflow removes a workflow's scheduled run
func (s *Server) HandleCancelScheduledWorkflow(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}
	resp, err := s.svc.CancelScheduledWorkflow(r.Context(), name)
	s.writeMutation(w, r, resp, err)
}

// HandleRescheduleWorkflow moves a workflow's next run
func (s *Server) HandleRescheduleWorkflow(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r)
	if !ok {
		return
	}

	at, ok := s.readRunAt(w, r)
	if !ok {
		return
	}

	resp, err := s.svc.RescheduleWorkflow(r.Context(), name, at)
	s.writeMutation(w, r, resp, err)
}

// readRunAt decodes and parses a RunAtRequest body
func (s *Server) readRunAt(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	var req RunAtRequest
	if err := readJSON(w, r, &req); err != nil {
		return time.Time{}, false
	}

	loc := time.Local
	if req.Timezone != "" {
		l, err := time.LoadLocation(req.Timezone)
		if err != nil {
			s.writeErrorFrom(w, r, &action.ValidationError{Field: "timezone", Value: req.Timezone, Reason: "unknown time zone"})
			return time.Time{}, false
		}
		loc = l
	}

	at, err := action.ParseRunAt(req.RunAt, loc)
	if err != nil {
		s.writeErrorFrom(w, r, err)
		return time.Time{}, false
	}
	return at, true
}

// writeMutation writes the backend's confirmation or the mapped error
func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, resp api.SuccessResponse, err error) {
	if err != nil {
		s.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// viewState extracts freshness metadata from a view update
func viewState[T any](u liveview.Update[T]) ViewState {
	st := ViewState{Stale: u.Stale}
	if u.Snapshot != nil {
		t := u.Snapshot.UpdatedAt
		st.UpdatedAt = &t
	}
	if u.Err != nil {
		st.Error = messageForError(u.Err)
	}
	return st
}
