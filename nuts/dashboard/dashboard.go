// Package dashboard wires the nuts transport client, the status unifier, the
// action router and the live views into the operator-facing service used by
// the CLI and the dashboard server.
package dashboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/logger"
	"github.com/nutsq/nutsdash/nuts/action"
	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/liveview"
	"github.com/nutsq/nutsdash/nuts/unify"
)

// View keys
const (
	KeyJobs           = "jobs"
	KeyWorkflows      = "workflows"
	workflowKeyPrefix = "workflow-"
)

// WorkflowKey is the view key of a single workflow's detail view
func WorkflowKey(name string) string {
	return workflowKeyPrefix + name
}

// Backend is everything the dashboard needs from the nuts API
type Backend interface {
	unify.Source
	action.Backend
}

// Type aliases for the concrete views
type (
	JobsView      = liveview.View[[]unify.UnifiedJob]
	WorkflowsView = liveview.View[[]api.WorkflowListing]
	WorkflowView  = liveview.View[api.WorkflowStatus]
)

// DefaultDetailIdleTTL is how long a workflow detail view keeps polling
// without being read
const DefaultDetailIdleTTL = 2 * time.Minute

// Config configures a Service
type Config struct {
	Interval      time.Duration // refresh period of every view (default: 5s)
	DetailIdleTTL time.Duration // detail views unread this long are closed (default: 2m)
}

// detailView is an open workflow detail view and when it was last read
type detailView struct {
	view     *WorkflowView
	lastRead time.Time
}

// Service owns the live views and routes operator actions through them
type Service struct {
	unifier *unify.Unifier
	router  *action.Router
	ctrl    *liveview.Controller
	log     *zap.SugaredLogger
	cfg     Config

	jobs      *JobsView
	workflows *WorkflowsView

	mu      sync.Mutex
	details map[string]*detailView

	// idle detail reaper lifecycle
	reapCancel context.CancelFunc
	reapWG     sync.WaitGroup
}

// New creates a Service over backend. Views are registered but not started.
func New(backend Backend, cfg Config, log *zap.SugaredLogger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = liveview.DefaultInterval
	}
	if cfg.DetailIdleTTL <= 0 {
		cfg.DetailIdleTTL = DefaultDetailIdleTTL
	}
	if log == nil {
		log = logger.ComponentLogger("dashboard")
	}

	s := &Service{
		unifier: unify.New(backend),
		router:  action.NewRouter(backend, log.Named("action")),
		ctrl:    liveview.NewController(cfg.Interval, log.Named("liveview")),
		log:     log,
		cfg:     cfg,
		details: make(map[string]*detailView),
	}

	viewCfg := liveview.Config{Interval: cfg.Interval}
	s.jobs = liveview.NewView(KeyJobs, s.unifier.ListAllJobs, viewCfg, log.Named("liveview"))
	s.workflows = liveview.NewView(KeyWorkflows, s.unifier.ListWorkflows, viewCfg, log.Named("liveview"))
	s.ctrl.Register(KeyJobs, s.jobs)
	s.ctrl.Register(KeyWorkflows, s.workflows)

	return s
}

// Jobs returns the unified job view
func (s *Service) Jobs() *JobsView {
	return s.jobs
}

// Workflows returns the workflow listing view
func (s *Service) Workflows() *WorkflowsView {
	return s.workflows
}

// Controller exposes the view registry
func (s *Service) Controller() *liveview.Controller {
	return s.ctrl
}

// Workflow opens the detail view of one workflow, creating it on first use,
// and marks it as read. A view opened while the service runs starts polling
// immediately. Views unread for longer than Config.DetailIdleTTL are closed,
// as are views whose workflow the backend no longer knows.
func (s *Service) Workflow(name string) *WorkflowView {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.details[name]; ok {
		d.lastRead = time.Now()
		return d.view
	}

	key := WorkflowKey(name)
	var v *WorkflowView
	fetch := func(ctx context.Context) (api.WorkflowStatus, error) {
		ws, err := s.unifier.GetWorkflow(ctx, name)
		if errors.IsNotFoundError(err) {
			// the view's own loop may be calling; Stop waits for it
			go s.closeWorkflowView(name, v, "workflow not found")
		}
		return ws, err
	}
	v = liveview.NewView(key, fetch, liveview.Config{Interval: s.ctrl.Interval()}, s.log.Named("liveview"))
	s.details[name] = &detailView{view: v, lastRead: time.Now()}
	s.ctrl.Register(key, v)

	s.log.Debugw("Workflow view opened", logger.FieldWorkflow, name)
	return v
}

// OpenWorkflow returns the detail view of name if it is open. It does not
// count as a read.
func (s *Service) OpenWorkflow(name string) (*WorkflowView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[name]
	if !ok {
		return nil, false
	}
	return d.view, true
}

// CloseWorkflow stops and drops the detail view of name
func (s *Service) CloseWorkflow(name string) {
	s.closeWorkflowView(name, nil, "closed")
}

// closeWorkflowView drops the detail view of name. When v is non-nil only
// that view is closed, so a view reopened in the meantime survives.
func (s *Service) closeWorkflowView(name string, v *WorkflowView, reason string) bool {
	s.mu.Lock()
	d, ok := s.details[name]
	if !ok || (v != nil && d.view != v) {
		s.mu.Unlock()
		return false
	}
	delete(s.details, name)
	s.mu.Unlock()

	// a Workflow call after the delete may have registered a new view
	s.ctrl.RemoveView(WorkflowKey(name), d.view)
	s.log.Debugw("Workflow view closed", logger.FieldWorkflow, name, "reason", reason)
	return true
}

// CloseIdleWorkflows closes every detail view last read before now minus
// Config.DetailIdleTTL and returns their names, sorted.
func (s *Service) CloseIdleWorkflows(now time.Time) []string {
	s.mu.Lock()
	idle := make(map[string]*WorkflowView)
	for name, d := range s.details {
		if now.Sub(d.lastRead) >= s.cfg.DetailIdleTTL {
			idle[name] = d.view
		}
	}
	s.mu.Unlock()

	closed := make([]string, 0, len(idle))
	for name, v := range idle {
		if s.closeIdle(name, v, now) {
			closed = append(closed, name)
		}
	}
	sort.Strings(closed)
	return closed
}

// closeIdle closes v unless it was read again since the idle scan
func (s *Service) closeIdle(name string, v *WorkflowView, now time.Time) bool {
	s.mu.Lock()
	d, ok := s.details[name]
	fresh := ok && now.Sub(d.lastRead) < s.cfg.DetailIdleTTL
	s.mu.Unlock()
	if fresh {
		return false
	}
	return s.closeWorkflowView(name, v, "idle")
}

// Start begins background polling of every view and the idle detail reaper
func (s *Service) Start() {
	s.ctrl.StartAll()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reapCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.reapCancel = cancel
	s.reapWG.Add(1)
	go s.reapLoop(ctx, max(s.cfg.DetailIdleTTL/2, time.Millisecond))
}

// Stop halts background polling
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.reapCancel
	s.reapCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.reapWG.Wait()
	}
	s.ctrl.StopAll()
}

// reapLoop closes idle detail views every period
func (s *Service) reapLoop(ctx context.Context, period time.Duration) {
	defer s.reapWG.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if closed := s.CloseIdleWorkflows(now); len(closed) > 0 {
				s.log.Infow("Closed idle workflow views", logger.FieldCount, len(closed))
			}
		}
	}
}

// SetInterval changes the refresh period of every view
func (s *Service) SetInterval(d time.Duration) {
	s.ctrl.SetInterval(d)
}

// CancelJob cancels job according to its status, then refetches the jobs view
func (s *Service) CancelJob(ctx context.Context, job unify.UnifiedJob) (api.SuccessResponse, error) {
	return liveview.Mutate(ctx, func(ctx context.Context) (api.SuccessResponse, error) {
		return s.router.Cancel(ctx, job)
	}, s.jobs)
}

// ScheduleJob schedules a run of name at at, then refetches the jobs view
func (s *Service) ScheduleJob(ctx context.Context, name string, at time.Time) (api.SuccessResponse, error) {
	return liveview.Mutate(ctx, func(ctx context.Context) (api.SuccessResponse, error) {
		return s.router.RescheduleJob(ctx, name, at)
	}, s.jobs)
}

// EnqueueJob runs name now, then refetches the jobs view
func (s *Service) EnqueueJob(ctx context.Context, name string, params []any) (api.SuccessResponse, error) {
	return liveview.Mutate(ctx, func(ctx context.Context) (api.SuccessResponse, error) {
		return s.router.EnqueueJob(ctx, name, params)
	}, s.jobs)
}

// TriggerWorkflow runs a workflow now, then refetches the workflow views
func (s *Service) TriggerWorkflow(ctx context.Context, name string) (api.SuccessResponse, error) {
	return liveview.Mutate(ctx, func(ctx context.Context) (api.SuccessResponse, error) {
		return s.router.TriggerWorkflow(ctx, name)
	}, s.workflowViews(name)...)
}

// CancelScheduledWorkflow drops a workflow's scheduled run, then refetches
// the workflow views
func (s *Service) CancelScheduledWorkflow(ctx context.Context, name string) (api.SuccessResponse, error) {
	return liveview.Mutate(ctx, func(ctx context.Context) (api.SuccessResponse, error) {
		return s.router.CancelScheduledWorkflow(ctx, name)
	}, s.workflowViews(name)...)
}

// RescheduleWorkflow moves a workflow's next run, then refetches the
// workflow views
func (s *Service) RescheduleWorkflow(ctx context.Context, name string, at time.Time) (api.SuccessResponse, error) {
	return liveview.Mutate(ctx, func(ctx context.Context) (api.SuccessResponse, error) {
		return s.router.RescheduleWorkflow(ctx, name, at)
	}, s.workflowViews(name)...)
}

// workflowViews returns the listing view plus name's detail view if open
func (s *Service) workflowViews(name string) []liveview.Refresher {
	views := []liveview.Refresher{s.workflows}
	if v, ok := s.OpenWorkflow(name); ok {
		views = append(views, v)
	}
	return views
}

// Current returns v's committed state, fetching synchronously if the view has
// never loaded. An error is returned only when there is nothing to show.
func Current[T any](ctx context.Context, v *liveview.View[T]) (liveview.Update[T], error) {
	cur := v.Current()
	if cur.Snapshot != nil {
		return cur, nil
	}
	if err := v.Refresh(ctx); err != nil && v.Snapshot() == nil {
		return cur, err
	}
	return v.Current(), nil
}

// CancelTarget resolves which instance of name to cancel. An explicit status
// is trusted as shown to the operator; otherwise the first non-terminal
// instance in the current jobs snapshot is used.
func (s *Service) CancelTarget(ctx context.Context, name, status string) (unify.UnifiedJob, error) {
	if status != "" {
		if !unify.IsValidStatus(status) {
			return unify.UnifiedJob{}, &action.ValidationError{Field: "status", Value: status, Reason: "unknown job status"}
		}
		return unify.UnifiedJob{Name: name, Status: unify.Status(status)}, nil
	}

	cur, err := Current(ctx, s.jobs)
	if err != nil {
		return unify.UnifiedJob{}, err
	}
	for _, job := range unify.Instances(cur.Snapshot.Data, name) {
		if !job.Status.IsTerminal() {
			return job, nil
		}
	}
	return unify.UnifiedJob{}, errors.Wrapf(errors.ErrNotFound, "no cancellable instance of job %q", name)
}
