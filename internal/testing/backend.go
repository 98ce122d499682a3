// Package testing provides a fake nuts scheduling service for package tests.
package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nutsq/nutsdash/nuts/api"
)

// Call is one request received by the fake backend
type Call struct {
	Method string
	Path   string // escaped, as sent on the wire
	Body   []byte
	Header http.Header
}

type failure struct {
	status int
	body   string
}

// FakeBackend is an httptest server speaking the nuts REST API. It keeps
// in-memory collections, applies mutations the way the real service does
// and records every call.
type FakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	pending   []api.PendingJob
	running   []api.RunningJob
	completed []api.CompletedJob
	scheduled []api.ScheduledJob
	workflows []api.WorkflowListing
	details   map[string]api.WorkflowStatus
	calls     []Call
	failures  map[string]failure
	hook      func(method, path string)
}

// NewFakeBackend starts a fake backend that is closed when the test ends
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		details:  make(map[string]api.WorkflowStatus),
		failures: make(map[string]failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/jobs/pending", fb.listPending)
	mux.HandleFunc("GET /api/jobs/running", fb.listRunning)
	mux.HandleFunc("GET /api/jobs/completed", fb.listCompleted)
	mux.HandleFunc("GET /api/jobs/scheduled", fb.listScheduled)
	mux.HandleFunc("POST /api/jobs", fb.enqueue)
	mux.HandleFunc("POST /api/jobs/schedule", fb.schedule)
	mux.HandleFunc("DELETE /api/jobs/pending/{name}", fb.cancelPending)
	mux.HandleFunc("DELETE /api/jobs/scheduled/{name}", fb.cancelScheduled)
	mux.HandleFunc("POST /api/jobs/running/{name}/cancel", fb.cancelRunning)
	mux.HandleFunc("GET /api/workflows", fb.listWorkflows)
	mux.HandleFunc("GET /api/workflows/{name}", fb.getWorkflow)
	mux.HandleFunc("POST /api/workflows/{name}/trigger", fb.triggerWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{name}/scheduled", fb.cancelScheduledWorkflow)
	mux.HandleFunc("POST /api/workflows/{name}/reschedule", fb.rescheduleWorkflow)

	fb.Server = httptest.NewServer(fb.record(mux))
	t.Cleanup(fb.Close)
	return fb
}

// record logs the call, runs the hook, then either injects a configured
// failure or hands over to the API handlers
func (fb *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		path := r.URL.EscapedPath()

		fb.mu.Lock()
		fb.calls = append(fb.calls, Call{Method: r.Method, Path: path, Body: body, Header: r.Header.Clone()})
		hook := fb.hook
		f, failing := fb.failures[r.Method+" "+path]
		fb.mu.Unlock()

		if hook != nil {
			hook(r.Method, path)
		}

		if failing {
			w.WriteHeader(f.status)
			io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetPending replaces the pending collection
func (fb *FakeBackend) SetPending(jobs ...api.PendingJob) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.pending = append([]api.PendingJob(nil), jobs...)
}

// SetRunning replaces the running collection
func (fb *FakeBackend) SetRunning(jobs ...api.RunningJob) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.running = append([]api.RunningJob(nil), jobs...)
}

// SetCompleted replaces the completed collection
func (fb *FakeBackend) SetCompleted(jobs ...api.CompletedJob) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.completed = append([]api.CompletedJob(nil), jobs...)
}

// SetScheduled replaces the scheduled collection
func (fb *FakeBackend) SetScheduled(jobs ...api.ScheduledJob) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.scheduled = append([]api.ScheduledJob(nil), jobs...)
}

// SetWorkflows replaces the workflow listing. Full entries are also served
// by GET /api/workflows/{name}.
func (fb *FakeBackend) SetWorkflows(listings ...api.WorkflowListing) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.workflows = append([]api.WorkflowListing(nil), listings...)
	for _, l := range listings {
		if ws, ok := l.Status(); ok {
			fb.details[ws.Name] = ws
		}
	}
}

// SetWorkflowDetail sets the body of GET /api/workflows/{name}
func (fb *FakeBackend) SetWorkflowDetail(ws api.WorkflowStatus) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.details[ws.Name] = ws
}

// Fail makes every request matching method and escaped path answer with
// status and raw body until ClearFailures
func (fb *FakeBackend) Fail(method, path string, status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures[method+" "+path] = failure{status: status, body: body}
}

// ClearFailures removes all injected failures
func (fb *FakeBackend) ClearFailures() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures = make(map[string]failure)
}

// SetHook installs fn to run on every request before it is answered.
// A hook may block to hold a request in flight.
func (fb *FakeBackend) SetHook(fn func(method, path string)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.hook = fn
}

// Calls returns a copy of every recorded call
func (fb *FakeBackend) Calls() []Call {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]Call(nil), fb.calls...)
}

// CallCount returns how many calls matched method and escaped path
func (fb *FakeBackend) CallCount(method, path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, c := range fb.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// MutationCalls returns recorded calls other than GETs
func (fb *FakeBackend) MutationCalls() []Call {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	var out []Call
	for _, c := range fb.calls {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded calls
func (fb *FakeBackend) ResetCalls() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.calls = nil
}

func (fb *FakeBackend) listPending(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(fb.pending))
}

func (fb *FakeBackend) listRunning(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(fb.running))
}

func (fb *FakeBackend) listCompleted(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(fb.completed))
}

func (fb *FakeBackend) listScheduled(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(fb.scheduled))
}

func (fb *FakeBackend) enqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid enqueue request")
		return
	}

	fb.mu.Lock()
	fb.pending = append(fb.pending, api.PendingJob{Name: req.Name, Params: req.Params})
	fb.mu.Unlock()

	writeSuccess(w, fmt.Sprintf("Job '%s' enqueued successfully", req.Name))
}

func (fb *FakeBackend) schedule(w http.ResponseWriter, r *http.Request) {
	var req api.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.RunAt == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid schedule request")
		return
	}

	fb.mu.Lock()
	replaced := false
	for i := range fb.scheduled {
		if fb.scheduled[i].Name == req.Name {
			fb.scheduled[i].NextRun = req.RunAt
			replaced = true
		}
	}
	if !replaced {
		fb.scheduled = append(fb.scheduled, api.ScheduledJob{Name: req.Name, NextRun: req.RunAt})
	}
	fb.mu.Unlock()

	writeSuccess(w, fmt.Sprintf("Job '%s' scheduled for %s", req.Name, req.RunAt))
}

func (fb *FakeBackend) cancelPending(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	fb.mu.Lock()
	removed := false
	for i, j := range fb.pending {
		if j.Name == name {
			fb.pending = append(fb.pending[:i], fb.pending[i+1:]...)
			removed = true
			break
		}
	}
	fb.mu.Unlock()

	if !removed {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Job '%s' not found in pending queue", name))
		return
	}
	writeSuccess(w, fmt.Sprintf("Job '%s' removed from pending queue", name))
}

func (fb *FakeBackend) cancelScheduled(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	fb.mu.Lock()
	removed := false
	for i, j := range fb.scheduled {
		if j.Name == name {
			fb.scheduled = append(fb.scheduled[:i], fb.scheduled[i+1:]...)
			removed = true
			break
		}
	}
	fb.mu.Unlock()

	if !removed {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Job '%s' not found in scheduled queue", name))
		return
	}
	writeSuccess(w, fmt.Sprintf("Job '%s' removed from scheduled queue", name))
}

func (fb *FakeBackend) cancelRunning(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	writeSuccess(w, fmt.Sprintf("Cancellation requested for job '%s'.", name))
}

func (fb *FakeBackend) listWorkflows(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(fb.workflows))
}

func (fb *FakeBackend) getWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	fb.mu.Lock()
	ws, ok := fb.details[name]
	fb.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Workflow '%s' not found", name))
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (fb *FakeBackend) triggerWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	writeSuccess(w, fmt.Sprintf("Workflow '%s' triggered for immediate execution", name))
}

func (fb *FakeBackend) cancelScheduledWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	fb.mu.Lock()
	removed := false
	for i, l := range fb.workflows {
		if _, full := l.Status(); !full && l.Name() == name {
			fb.workflows = append(fb.workflows[:i], fb.workflows[i+1:]...)
			removed = true
			break
		}
	}
	fb.mu.Unlock()

	if !removed {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Workflow '%s' not found in scheduled queue", name))
		return
	}
	writeSuccess(w, fmt.Sprintf("Workflow '%s' removed from scheduled queue", name))
}

func (fb *FakeBackend) rescheduleWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req api.RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RunAt == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid reschedule request")
		return
	}

	fb.mu.Lock()
	for i, l := range fb.workflows {
		if _, full := l.Status(); !full && l.Name() == name {
			fb.workflows[i] = api.NewStubListing(api.ScheduledWorkflow{Name: name, NextRun: req.RunAt})
		}
	}
	fb.mu.Unlock()

	writeSuccess(w, fmt.Sprintf("Workflow '%s' rescheduled for %s", name, req.RunAt))
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true, Message: message})
}
