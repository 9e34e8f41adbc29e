package msgrelay

import "log/slog"

// hub keeps track of the live sessions so they can be told to go away on
// shutdown. Sessions never look each other up through it.
//
// All fields are owned by the hub goroutine. The goroutine exits once
// shutdown has begun and the last session is gone; after that the hub
// refuses sessions and reports none live.
type hub struct {
	ch       chan func()
	sessions map[string]*session
	closing  bool
	drained  chan struct{}
	log      *slog.Logger
}

func newHub(log *slog.Logger) *hub {
	h := &hub{
		ch:       make(chan func()),
		sessions: make(map[string]*session),
		drained:  make(chan struct{}),
		log:      log,
	}

	go func() {
		for fn := range h.ch {
			fn()
			if h.closing && len(h.sessions) == 0 {
				close(h.drained)
				return
			}
		}
	}()

	return h
}

// do runs fn on the hub goroutine. It returns false when the hub has stopped.
func (h *hub) do(fn func()) bool {
	select {
	case h.ch <- fn:
		return true
	case <-h.drained:
		return false
	}
}

// addSession registers s. It returns false once shutdown has begun, in
// which case the session must not start.
func (h *hub) addSession(s *session) bool {
	ok := make(chan bool, 1)
	ran := h.do(func() {
		if h.closing {
			ok <- false
			return
		}
		h.sessions[s.id] = s
		h.log.Debug("session registered", "session", s.id, "live", len(h.sessions))
		ok <- true
	})
	return ran && <-ok
}

func (h *hub) removeSession(s *session) {
	h.do(func() {
		if _, found := h.sessions[s.id]; !found {
			return
		}
		delete(h.sessions, s.id)
		h.log.Debug("session removed", "session", s.id, "live", len(h.sessions))
	})
}

// beginShutdown refuses further sessions and returns the live ones.
func (h *hub) beginShutdown() []*session {
	list := make(chan []*session, 1)
	if !h.do(func() {
		if h.closing {
			list <- nil
			return
		}
		h.closing = true
		var live []*session
		for _, s := range h.sessions {
			live = append(live, s)
		}
		list <- live
	}) {
		return nil
	}
	return <-list
}

// live returns the sessions that are still registered.
func (h *hub) live() []*session {
	list := make(chan []*session, 1)
	if !h.do(func() {
		var live []*session
		for _, s := range h.sessions {
			live = append(live, s)
		}
		list <- live
	}) {
		return nil
	}
	return <-list
}

// done is closed once shutdown has begun and every session has ended. The
// hub goroutine has exited by then.
func (h *hub) done() <-chan struct{} {
	return h.drained
}
