package msgrelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

// session is one accepted websocket connection on the Collector. It holds
// nothing that another session can see.
type session struct {
	id  string
	ws  *websocket.Conn
	c   *Collector
	log *slog.Logger
}

// Takes over the connection and runs the session. Responsible for closing the socket.
func (c *Collector) runSession(ws *websocket.Conn) {
	s := &session{
		id: xid.New().String(),
		ws: ws,
		c:  c,
	}
	s.log = c.log.With("session", s.id, "remote", ws.RemoteAddr().String())

	if !c.hub.addSession(s) {
		s.goAway()
		ws.Close()
		s.log.Info("session refused during shutdown")
		return
	}
	defer c.hub.removeSession(s)
	defer ws.Close()

	defer func() {
		if thing := recover(); thing != nil {
			s.log.Error("session panic", "panic", fmt.Sprintf("%v", thing))
		}
	}()

	s.log.Info("session accepted")
	ws.SetReadLimit(c.opts.MaxMessageSize)

	for {
		if c.opts.IdleTimeout > 0 {
			ws.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			s.logEnd(err)
			return
		}

		s.process(data)
	}
}

// process decodes one frame, stamps it and inserts it. Failures are logged
// and the message is dropped.
func (s *session) process(data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		s.log.Warn("dropping undecodable message", "bytes", len(data), "err", err)
		return
	}

	record := Stamp(msg, s.c.now())

	ctx, cancel := context.WithTimeout(s.c.ctx, s.c.opts.InsertTimeout)
	defer cancel()

	if err := s.c.store.Insert(ctx, record); err != nil {
		s.log.Error("failed to save message", "username", record.Username, "date", record.Date, "err", err)
		return
	}

	s.log.Info("saved message", "date", record.Date, "username", record.Username, "message", record.Message)
}

func (s *session) logEnd(err error) {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		s.log.Info("session closed")
	case errors.Is(err, net.ErrClosed) && s.c.isShuttingDown():
		s.log.Info("session closed by shutdown")
	case isTimeout(err):
		s.log.Info("session idle, closing", "idle", s.c.opts.IdleTimeout)
	default:
		s.log.Error("session ended", "err", err)
	}
}

// goAway asks the peer to close. It may be called from any goroutine.
func (s *session) goAway() {
	err := s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "collector shutting down"),
		time.Now().Add(time.Second))
	if err != nil {
		s.log.Debug("close frame not sent", "err", err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
