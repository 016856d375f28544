// Package radio manages the command uplink and telemetry downlink. A
// transport moves newline-framed ASCII packets; the Link layers failure
// accounting and recovery policy on top and buffers received packets in a
// fixed ring the mission loop drains once per tick.
package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/edsonpavoni/orbitalTemple/internal/logging"
)

// Transport is one physical or simulated radio channel. Implementations
// must allow Receive to be unblocked by Close.
type Transport interface {
	Open() error
	Close() error
	Send(line string) error
	// Receive blocks until one packet arrives.
	Receive() (string, error)
}

// ErrClosed is returned by transports after Close.
var ErrClosed = errors.New("radio: transport closed")

// DefaultFailureThreshold is the consecutive-failure count after which the
// link is considered wedged.
const DefaultFailureThreshold = 5

// DefaultRingCapacity bounds packets buffered between ticks. Uplink traffic
// is sparse; anything deeper just hides a stuck consumer.
const DefaultRingCapacity = 8

// Link wraps a transport with receive buffering and recovery accounting.
type Link struct {
	transport Transport
	log       logging.Logger
	ring      *Ring
	threshold uint32

	txFailures atomic.Uint32
	rxFailures atomic.Uint32
	recoveries atomic.Uint32

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// NewLink builds a link over transport. The transport must already be open.
func NewLink(transport Transport, log logging.Logger) *Link {
	if log == nil {
		log = logging.Noop()
	}
	return &Link{
		transport: transport,
		log:       logging.Subsystem(log, "radio"),
		ring:      NewRing(DefaultRingCapacity),
		threshold: DefaultFailureThreshold,
	}
}

// Start launches the receive goroutine. It is the interrupt stand-in: it does
// nothing but move packets into the ring.
func (l *Link) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	l.done = make(chan struct{})
	go l.receiveLoop(l.done)
}

func (l *Link) receiveLoop(done chan struct{}) {
	defer close(done)
	for {
		pkt, err := l.transport.Receive()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			n := l.rxFailures.Add(1)
			l.log.Warn(context.Background(), "receive failed",
				logging.Any("error", err), logging.Uint32("consecutive", n))
			if n > l.threshold {
				// Stop hammering a dead transport; the mission
				// loop notices NeedsRecovery and restarts us.
				return
			}
			continue
		}
		l.rxFailures.Store(0)
		if !l.ring.Push(pkt) {
			l.log.Warn(context.Background(), "receive ring full, packet dropped")
		}
	}
}

// Stop shuts the transport and waits for the receive goroutine to exit.
func (l *Link) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.transport.Close()
	if l.started {
		<-l.done
		l.started = false
	}
	return err
}

// Poll returns the next buffered uplink packet, if any. Non-blocking.
func (l *Link) Poll() (string, bool) {
	return l.ring.Pop()
}

// Pending returns the number of buffered packets awaiting Poll.
func (l *Link) Pending() int { return l.ring.Len() }

// Dropped returns packets lost to ring overflow.
func (l *Link) Dropped() uint64 { return l.ring.Dropped() }

// Transmit sends one downlink line, tracking consecutive failures.
func (l *Link) Transmit(ctx context.Context, line string) error {
	if err := l.transport.Send(line); err != nil {
		n := l.txFailures.Add(1)
		l.log.Warn(ctx, "transmit failed",
			logging.Any("error", err), logging.Uint32("consecutive", n))
		return fmt.Errorf("transmit: %w", err)
	}
	l.txFailures.Store(0)
	return nil
}

// NeedsRecovery reports whether consecutive failures on either direction
// crossed the threshold.
func (l *Link) NeedsRecovery() bool {
	return l.txFailures.Load() > l.threshold || l.rxFailures.Load() > l.threshold
}

// Recover reopens the transport and restarts reception. Counters reset even
// on failure so a successful later attempt starts clean.
func (l *Link) Recover(ctx context.Context) error {
	l.log.Warn(ctx, "attempting radio recovery")
	l.recoveries.Add(1)
	l.txFailures.Store(0)
	l.rxFailures.Store(0)

	if err := l.Stop(); err != nil {
		l.log.Warn(ctx, "close during recovery failed", logging.Any("error", err))
	}
	if err := l.transport.Open(); err != nil {
		l.log.Error(ctx, "radio recovery failed", logging.Any("error", err))
		return fmt.Errorf("reopen transport: %w", err)
	}
	l.Start()
	l.log.Info(ctx, "radio recovered")
	return nil
}

// Recoveries returns the number of recovery attempts so far.
func (l *Link) Recoveries() uint32 { return l.recoveries.Load() }
