package server

import (
	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/dashboard"
	"github.com/nutsq/nutsdash/nuts/liveview"
	"github.com/nutsq/nutsdash/nuts/unify"
)

// broadcastMessage queues msg for every client without blocking. Clients
// whose queue is full are disconnected. Returns the number of clients that
// accepted the message.
func (s *Server) broadcastMessage(msg interface{}) int {
	var slow []*Client
	sent := 0

	// sends happen under the read lock so no send channel is closed mid-send
	s.mu.RLock()
	for client := range s.clients {
		select {
		case client.send <- msg:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	s.mu.RUnlock()

	for _, client := range slow {
		s.broadcastDrops.Add(1)
		s.logger.Warnw("Client send queue full, removing client",
			"client_id", client.id,
			"total_drops", s.broadcastDrops.Load())
		s.unregisterClient(client)
	}
	return sent
}

// jobsMessage renders a jobs view update for the wire
func jobsMessage(u liveview.Update[[]unify.UnifiedJob]) ViewMessage {
	var data []unify.UnifiedJob
	if u.Snapshot != nil {
		data = u.Snapshot.Data
	}
	if data == nil {
		data = []unify.UnifiedJob{}
	}
	return ViewMessage{Type: dashboard.KeyJobs, ViewState: viewState(u), Data: data}
}

// workflowsMessage renders a workflow listing update for the wire
func workflowsMessage(u liveview.Update[[]api.WorkflowListing]) ViewMessage {
	var data []api.WorkflowListing
	if u.Snapshot != nil {
		data = u.Snapshot.Data
	}
	return ViewMessage{Type: dashboard.KeyWorkflows, ViewState: viewState(u), Data: unify.Summarize(data)}
}

// initialMessages is the current state sent to a newly connected client
func (s *Server) initialMessages() []interface{} {
	var msgs []interface{}
	if cur := s.svc.Jobs().Current(); cur.Snapshot != nil || cur.Err != nil {
		msgs = append(msgs, jobsMessage(cur))
	}
	if cur := s.svc.Workflows().Current(); cur.Snapshot != nil || cur.Err != nil {
		msgs = append(msgs, workflowsMessage(cur))
	}
	return msgs
}

// startViewBroadcasters forwards every jobs and workflows view update to
// connected clients until the server stops
func (s *Server) startViewBroadcasters() {
	forward(s, s.svc.Jobs(), jobsMessage)
	forward(s, s.svc.Workflows(), workflowsMessage)
	s.logger.Infow("View broadcasters started")
}

// forward subscribes to v and broadcasts each update rendered by render
func forward[T any](s *Server, v *liveview.View[T], render func(liveview.Update[T]) ViewMessage) {
	ch := v.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer v.Unsubscribe(ch)

		for {
			select {
			case <-s.ctx.Done():
				return
			case u, ok := <-ch:
				if !ok {
					return
				}
				msg := render(u)
				n := s.broadcastMessage(msg)
				s.logger.Debugw("Broadcast view update",
					"view", v.Key(),
					"stale", u.Stale,
					"clients", n)
			}
		}
	}()
}
