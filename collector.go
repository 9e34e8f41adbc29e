package msgrelay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Defaults for CollectorOptions.
const (
	DefaultInsertTimeout  = 5 * time.Second
	DefaultMaxMessageSize = 64 * 1024
)

// CollectorOptions tune a Collector. The zero value is usable.
type CollectorOptions struct {
	Logger *slog.Logger

	// InsertTimeout bounds every call to MessageStore.Insert.
	InsertTimeout time.Duration

	// IdleTimeout closes a session that sends nothing for this long.
	// Zero keeps idle sessions open.
	IdleTimeout time.Duration

	// MaxMessageSize is the largest frame accepted. A larger frame ends the session.
	MaxMessageSize int64
}

// Collector is an HTTP handler that accepts websocket sessions and
// writes every message received on them to a MessageStore.
type Collector struct {
	store MessageStore
	opts  CollectorOptions
	log   *slog.Logger
	hub   *hub
	now   func() time.Time

	// ctx is the parent of every insert. It is cancelled when a shutdown
	// runs out of time.
	ctx    context.Context
	cancel context.CancelFunc

	upgrader     websocket.Upgrader
	shuttingDown atomic.Bool

	mutex   sync.Mutex
	servers []*http.Server
}

// NewCollector returns a Collector writing to store. The store is shared by
// all sessions and is not closed by the Collector.
func NewCollector(store MessageStore, opts CollectorOptions) *Collector {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.InsertTimeout <= 0 {
		opts.InsertTimeout = DefaultInsertTimeout
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		store:  store,
		opts:   opts,
		log:    opts.Logger,
		hub:    newHub(opts.Logger),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP upgrades the request and runs the session until it ends.
// Plain HTTP requests get a short banner, which is handy as a health check.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("msgrelay collector is running."))
		return
	}

	if c.isShuttingDown() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied with an error status.
		c.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c.runSession(ws)
}

// Serve accepts sessions on l until Shutdown is called. It returns nil
// after a shutdown.
func (c *Collector) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:           c,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(c.log.Handler(), slog.LevelWarn),
	}

	c.mutex.Lock()
	if c.isShuttingDown() {
		c.mutex.Unlock()
		l.Close()
		return nil
	}
	c.servers = append(c.servers, srv)
	c.mutex.Unlock()

	c.log.Info("collector listening", "addr", l.Addr().String())
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe binds addr and calls Serve. A bind failure is returned
// immediately.
func (c *Collector) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return c.Serve(l)
}

// Shutdown stops accepting sessions and drains the live ones: each is sent
// a going-away close frame and may finish the message it is processing.
// When ctx expires first, pending inserts are cancelled, the remaining
// connections are closed and ctx.Err() is returned.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.mutex.Lock()
	c.shuttingDown.Store(true)
	servers := c.servers
	c.servers = nil
	c.mutex.Unlock()

	for _, srv := range servers {
		// hijacked websocket connections are not tracked by the server.
		if err := srv.Shutdown(ctx); err != nil {
			c.log.Warn("listener shutdown", "err", err)
		}
	}

	live := c.hub.beginShutdown()
	c.log.Info("draining sessions", "live", len(live))
	for _, s := range live {
		s.goAway()
	}

	select {
	case <-c.hub.done():
		c.log.Info("all sessions drained")
		return nil
	case <-ctx.Done():
	}

	c.cancel()
	remaining := c.hub.live()
	c.log.Warn("shutdown timed out, closing sessions", "live", len(remaining))
	for _, s := range remaining {
		s.ws.Close()
	}
	return ctx.Err()
}

func (c *Collector) isShuttingDown() bool {
	return c.shuttingDown.Load()
}
