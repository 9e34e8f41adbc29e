package msgrelay

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StressTestArgs gives the parameters for performing a stress test against a Collector.
type StressTestArgs struct {
	// The address of the Collector, eg ws://localhost:6000/
	Address string

	// The number of concurrent sessions.
	NumSessions int

	// The number of messages each session sends before closing.
	MessagesPerSession int

	// The average number of milliseconds a session waits before each message.
	// Default: 100
	DelayMS int

	// Sessions connect at a random time within this many milliseconds.
	// Default: 0
	ConnectSpreadMS int

	Logger *slog.Logger
}

// StressTestResult summarises a stress test run.
type StressTestResult struct {
	Sessions int
	Sent     int
	Failed   int

	MinLatency time.Duration
	AvgLatency time.Duration
	MaxLatency time.Duration
}

func (r StressTestResult) String() string {
	return fmt.Sprintf("sessions=%d sent=%d failed=%d write latency avg=%v min=%v max=%v",
		r.Sessions, r.Sent, r.Failed, r.AvgLatency, r.MinLatency, r.MaxLatency)
}

// StressSender is the username used by the n-th stress session.
func StressSender(n int) string {
	return fmt.Sprintf("stress-%d", n)
}

const maxLatencySamples = 10000

const stressCloseWait = 5 * time.Second

type stressTest struct {
	StressTestArgs

	mutex     sync.Mutex
	latencies []time.Duration
	result    StressTestResult
	lastShow  time.Time
}

func (st *stressTest) recordSend(latency time.Duration, err error) {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	if err != nil {
		st.result.Failed++
		return
	}
	st.result.Sent++
	if len(st.latencies) < maxLatencySamples {
		st.latencies = append(st.latencies, latency)
	}
	st.showStats()
}

func (st *stressTest) recordSession() {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	st.result.Sessions++
}

// requires locked mutex
func (st *stressTest) summarise() StressTestResult {
	res := st.result
	if len(st.latencies) == 0 {
		return res
	}
	var sum time.Duration
	res.MinLatency = st.latencies[0]
	for _, v := range st.latencies {
		sum += v
		if v < res.MinLatency {
			res.MinLatency = v
		}
		if v > res.MaxLatency {
			res.MaxLatency = v
		}
	}
	res.AvgLatency = sum / time.Duration(len(st.latencies))
	return res
}

// requires locked mutex
func (st *stressTest) showStats() {
	if time.Since(st.lastShow) < time.Second {
		return
	}
	st.lastShow = time.Now()
	st.Logger.Info("stress progress", "stats", st.summarise().String())
}

// StressTest opens NumSessions concurrent sessions against a Collector, each
// sending MessagesPerSession messages from its own sender. It returns when
// every session is done or ctx is cancelled.
func StressTest(ctx context.Context, args StressTestArgs) (StressTestResult, error) {
	st := &stressTest{StressTestArgs: args}
	if st.Logger == nil {
		st.Logger = slog.Default()
	}
	if st.DelayMS <= 0 {
		st.DelayMS = 100
	}
	if st.NumSessions <= 0 {
		return StressTestResult{}, fmt.Errorf("stress test needs at least one session")
	}

	var wg sync.WaitGroup
	errs := make(chan error, st.NumSessions)
	for i := 1; i <= st.NumSessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := st.runSession(ctx, n); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	st.mutex.Lock()
	res := st.summarise()
	st.mutex.Unlock()

	// report the first failure, the counters cover the rest.
	if err, ok := <-errs; ok {
		return res, err
	}
	return res, ctx.Err()
}

func (st *stressTest) runSession(ctx context.Context, n int) error {
	if st.ConnectSpreadMS > 0 {
		if !sleepCtx(ctx, time.Duration(rand.Intn(st.ConnectSpreadMS))*time.Millisecond) {
			return nil
		}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, st.Address, nil)
	if err != nil {
		return fmt.Errorf("session %d: %w", n, err)
	}
	defer conn.Close()
	st.recordSession()

	// reading lets the default handler answer the Collector's close frame.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sender := StressSender(n)
	for seq := 1; seq <= st.MessagesPerSession; seq++ {
		delay := time.Duration(rand.NormFloat64()*float64(st.DelayMS/2)+float64(st.DelayMS)) * time.Millisecond
		if !sleepCtx(ctx, delay) {
			break
		}

		payload, err := EncodeMessage(Message{
			Username: sender,
			Message:  fmt.Sprintf("%s message %d", sender, seq),
		})
		if err != nil {
			return err
		}

		start := time.Now()
		err = conn.WriteMessage(websocket.TextMessage, payload)
		st.recordSend(time.Since(start), err)
		if err != nil {
			return fmt.Errorf("session %d: %w", n, err)
		}
	}

	err = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err != nil {
		return fmt.Errorf("session %d: %w", n, err)
	}

	// The Collector answers the close frame after it has processed every
	// message before it.
	select {
	case <-readerDone:
	case <-time.After(stressCloseWait):
		st.Logger.Warn("no close reply", "session", n)
	case <-ctx.Done():
	}
	return nil
}

// sleepCtx sleeps for d, returning false if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
