package msgrelay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultDeliveryTimeout bounds one delivery when the Relay has no Timeout.
const DefaultDeliveryTimeout = 5 * time.Second

// ErrMessageTooLarge is returned when the encoded payload exceeds the
// Collector's frame limit. Such a message would never be stored.
var ErrMessageTooLarge = errors.New("message too large")

// Deliverer hands a message over to the Collector.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// DeliveryError is returned when a message could not be handed over.
type DeliveryError struct {
	URL string
	Err error
}

func (e *DeliveryError) Error() string {
	return "deliver to " + e.URL + ": " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Relay delivers messages to a Collector. Every delivery uses its own
// websocket connection that carries exactly one message.
type Relay struct {
	// URL of the Collector, eg ws://localhost:6000/
	URL string

	// Timeout bounds the whole delivery: dial, handshake and write.
	Timeout time.Duration

	// MaxMessageSize is the frame limit of the Collector. Larger payloads are
	// refused without dialing. Zero disables the check.
	MaxMessageSize int64

	dialer websocket.Dialer
}

// NewRelay returns a Relay for the Collector at url.
func NewRelay(url string, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Relay{
		URL:            url,
		Timeout:        timeout,
		MaxMessageSize: DefaultMaxMessageSize,
		dialer: websocket.Dialer{
			HandshakeTimeout: timeout,
		},
	}
}

// Deliver opens a connection, writes msg as one text frame and closes the
// connection. A nil error means the Collector accepted the frame; it says
// nothing about whether the message was stored.
func (r *Relay) Deliver(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return &DeliveryError{URL: r.URL, Err: err}
	}
	if r.MaxMessageSize > 0 && int64(len(payload)) > r.MaxMessageSize {
		return &DeliveryError{URL: r.URL, Err: fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(payload), r.MaxMessageSize)}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ws, _, err := r.dialer.DialContext(ctx, r.URL, nil)
	if err != nil {
		return &DeliveryError{URL: r.URL, Err: err}
	}
	defer ws.Close()

	// writes do not watch the context, so close the socket under them.
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	ws.SetWriteDeadline(deadline)

	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &DeliveryError{URL: r.URL, Err: err}
	}

	// The frame is out. A failed close handshake does not undo that.
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return nil
}

// DeliverAsync runs Deliver on its own goroutine, returning its result in a channel.
func DeliverAsync(ctx context.Context, d Deliverer, msg Message) <-chan error {
	ch := make(chan error, 1)

	go func() {
		ch <- d.Deliver(ctx, msg)
	}()

	return ch
}
