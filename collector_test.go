package msgrelay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first insert and then stores normally.
type flakyStore struct {
	*MemoryStore
	mutex  sync.Mutex
	failed bool
}

func (s *flakyStore) Insert(ctx context.Context, record StoredMessage) error {
	s.mutex.Lock()
	if !s.failed {
		s.failed = true
		s.mutex.Unlock()
		return errors.New("store unavailable")
	}
	s.mutex.Unlock()
	return s.MemoryStore.Insert(ctx, record)
}

// blockingStore holds every insert until its context ends.
type blockingStore struct {
	started chan struct{}
}

func (s *blockingStore) Insert(ctx context.Context, record StoredMessage) error {
	s.started <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingStore) Close() error { return nil }

func newTestCollector(t *testing.T, store MessageStore, opts CollectorOptions) (*Collector, string) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	c := NewCollector(store, opts)
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)
	return c, "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func waitForRecords(t *testing.T, store *MemoryStore, n int) []StoredMessage {
	t.Helper()
	require.Eventually(t, func() bool { return store.Len() >= n }, 2*time.Second, 5*time.Millisecond)
	return store.Messages()
}

func TestCollector_StoresMessage(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	_, url := newTestCollector(t, store, CollectorOptions{})

	before := time.Now()
	ws := dial(t, url)
	send(t, ws, `{"username":"alice","message":"hello"}`)

	records := waitForRecords(t, store, 1)
	after := time.Now()
	req.Len(records, 1)
	req.Equal("alice", records[0].Username)
	req.Equal("hello", records[0].Message)

	at, err := records[0].ReceivedAt()
	req.NoError(err)
	req.False(at.Before(before.Truncate(time.Microsecond)), "stamped %v before %v", at, before)
	req.False(at.After(after), "stamped %v after %v", at, after)
}

func TestCollector_UsesClock(t *testing.T) {
	store := NewMemoryStore()
	c, url := newTestCollector(t, store, CollectorOptions{})
	c.now = func() time.Time {
		return time.Date(2024, 3, 9, 7, 5, 1, 2000, time.Local)
	}

	ws := dial(t, url)
	send(t, ws, `{"username":"alice","message":"hello"}`)

	records := waitForRecords(t, store, 1)
	require.Equal(t, "2024-03-09 07:05:01.000002", records[0].Date)
}

func TestCollector_MalformedMessageKeepsSession(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	_, url := newTestCollector(t, store, CollectorOptions{})

	ws := dial(t, url)
	send(t, ws, `not json`)
	send(t, ws, `{"username":"bob"}`)
	send(t, ws, `{"username":"alice","message":"after the bad ones"}`)

	records := waitForRecords(t, store, 1)
	req.Len(records, 1)
	req.Equal("after the bad ones", records[0].Message)
}

func TestCollector_SessionsAreIndependent(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	_, url := newTestCollector(t, store, CollectorOptions{})

	a := dial(t, url)
	b := dial(t, url)

	send(t, a, `{"username":"a","message":"1"}`)
	send(t, b, `garbage`)
	send(t, b, `{"username":"b","message":"1"}`)
	send(t, a, `{"username":"a","message":"2"}`)

	// closing one session leaves the other working.
	require.NoError(t, b.Close())
	send(t, a, `{"username":"a","message":"3"}`)

	records := waitForRecords(t, store, 4)
	req.Len(records, 4)

	bySender := map[string][]string{}
	for _, r := range records {
		bySender[r.Username] = append(bySender[r.Username], r.Message)
	}
	req.Equal([]string{"1", "2", "3"}, bySender["a"])
	req.Equal([]string{"1"}, bySender["b"])
}

func TestCollector_StoreFailureKeepsSession(t *testing.T) {
	req := require.New(t)
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	_, url := newTestCollector(t, store, CollectorOptions{})

	ws := dial(t, url)
	send(t, ws, `{"username":"alice","message":"lost"}`)
	send(t, ws, `{"username":"alice","message":"kept"}`)

	records := waitForRecords(t, store.MemoryStore, 1)
	req.Len(records, 1)
	req.Equal("kept", records[0].Message)
}

func TestCollector_OversizedFrameEndsSession(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	_, url := newTestCollector(t, store, CollectorOptions{MaxMessageSize: 64})

	big := dial(t, url)
	small := dial(t, url)

	send(t, big, `{"username":"alice","message":"`+strings.Repeat("x", 100)+`"}`)
	big.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := big.ReadMessage()
	req.Error(err)
	if _, ok := err.(*websocket.CloseError); ok {
		req.True(websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
	}

	send(t, small, `{"username":"bob","message":"fits"}`)
	records := waitForRecords(t, store, 1)
	req.Len(records, 1)
	req.Equal("bob", records[0].Username)
}

func TestCollector_IdleTimeoutEndsSession(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	_, url := newTestCollector(t, store, CollectorOptions{IdleTimeout: 150 * time.Millisecond})

	idle := dial(t, url)
	busy := dial(t, url)

	ended := make(chan error, 1)
	go func() {
		_, _, err := idle.ReadMessage()
		ended <- err
	}()

	// the busy session keeps sending inside the idle window.
	for i := 0; i < 10; i++ {
		send(t, busy, `{"username":"bob","message":"still here"}`)
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case err := <-ended:
		req.Error(err)
	case <-time.After(2 * time.Second):
		t.Fatal("idle session was not closed")
	}

	records := waitForRecords(t, store, 10)
	req.Len(records, 10)
	send(t, busy, `{"username":"bob","message":"after idle one closed"}`)
	waitForRecords(t, store, 11)
}

func TestCollector_PlainRequest(t *testing.T) {
	c := NewCollector(NewMemoryStore(), CollectorOptions{Logger: discardLogger()})
	w := get(t, c, "/")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "collector is running")
}

func TestCollector_ShutdownDrains(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	c, url := newTestCollector(t, store, CollectorOptions{})

	ws := dial(t, url)
	send(t, ws, `{"username":"alice","message":"before shutdown"}`)
	waitForRecords(t, store, 1)

	// the default close handler answers the going-away frame.
	closed := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				closed <- err
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req.NoError(c.Shutdown(ctx))

	err := <-closed
	req.True(websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestCollector_ShutdownWithoutSessions(t *testing.T) {
	c := NewCollector(NewMemoryStore(), CollectorOptions{Logger: discardLogger()})
	require.NoError(t, c.Shutdown(context.Background()))
}

func TestCollector_ShutdownTimeoutCancelsInsert(t *testing.T) {
	req := require.New(t)
	store := &blockingStore{started: make(chan struct{}, 1)}
	c, url := newTestCollector(t, store, CollectorOptions{InsertTimeout: time.Minute})

	ws := dial(t, url)
	send(t, ws, `{"username":"alice","message":"stuck"}`)

	select {
	case <-store.started:
	case <-time.After(2 * time.Second):
		t.Fatal("insert never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req.ErrorIs(c.Shutdown(ctx), context.DeadlineExceeded)

	// the session is gone once its connection has been closed.
	require.Eventually(t, func() bool { return len(c.hub.live()) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestCollector_Serve(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	c := NewCollector(store, CollectorOptions{Logger: discardLogger()})

	l := listenLocal(t)
	served := make(chan error, 1)
	go func() {
		served <- c.Serve(l)
	}()

	resp, err := http.Get("http://" + l.Addr().String() + "/")
	req.NoError(err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	req.Contains(string(body), "collector is running")

	ws := dial(t, "ws://"+l.Addr().String()+"/")
	send(t, ws, `{"username":"alice","message":"hello"}`)
	waitForRecords(t, store, 1)
	ws.Close()

	req.NoError(c.Shutdown(context.Background()))
	req.NoError(<-served)
}
