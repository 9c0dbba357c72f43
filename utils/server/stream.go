package server

import (
	"context"
	"net/http"
	"time"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/session"
	"github.com/kris-hansen/analyst/utils/workflow"
)

// heartbeatInterval keeps idle SSE connections open through proxies
var heartbeatInterval = 15 * time.Second

// operation mutates a loaded session and returns the response payload
type operation func(ctx context.Context, e *workflow.Engine, s *session.Session) (interface{}, error)

// withSession loads the session named in the path, runs op under the session
// lock and saves the session. The session is saved even when op fails, since
// failed persona calls still append to the conversation.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, op operation) {
	id := r.PathValue("id")
	unlock := s.locks.lock(id)
	defer unlock()

	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if wantsStream(r) {
		s.stream(w, r, sess, op)
		return
	}

	result, opErr := op(r.Context(), s.engine, sess)
	if err := s.store.Save(context.WithoutCancel(r.Context()), sess); err != nil {
		writeError(w, err)
		return
	}
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readSession loads a session without taking the lock or saving it back
func (s *Server) readSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// stream runs op while forwarding its progress as SSE events. A client that
// goes away stops receiving events, but the operation runs to completion and
// its outcome is saved.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, sess *session.Session, op operation) {
	sw, ok := newSSEWriter(w)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Success: false, Error: "Streaming not supported"})
		return
	}

	updates := make(chan workflow.ProgressUpdate, 16)
	engine := s.engine.WithProgress(workflow.NewChannelProgressWriter(updates))
	ctx := context.WithoutCancel(r.Context())

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer close(updates)
		result, err := op(ctx, engine, sess)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	clientGone := r.Context().Done()
	connected := true

	for updates != nil {
		select {
		case u, open := <-updates:
			if !open {
				updates = nil
				continue
			}
			if connected && sw.SendProgress(toEvent(u)) != nil {
				connected = false
			}
		case <-ticker.C:
			if connected && sw.SendHeartbeat() != nil {
				connected = false
			}
		case <-clientGone:
			config.VerboseLog("Client disconnected from stream for session %s", sess.ID)
			connected = false
			clientGone = nil
		}
	}

	out := <-done
	if err := s.store.Save(ctx, sess); err != nil && out.err == nil {
		out.err = err
	}
	if !connected {
		return
	}
	if out.err != nil {
		sw.SendError(out.err)
		return
	}
	sw.SendComplete(out.result)
}

func toEvent(u workflow.ProgressUpdate) progressEvent {
	ev := progressEvent{
		Type:       u.Type.String(),
		Message:    u.Message,
		Persona:    u.Persona,
		Stage:      u.Stage,
		DurationMS: u.Duration.Milliseconds(),
	}
	if u.Error != nil {
		ev.Error = u.Error.Error()
	}
	return ev
}
