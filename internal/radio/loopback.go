package radio

import "sync"

// Loopback is an in-process transport for tests and the flight simulator.
// Uplink packets are injected with Inject; downlink lines accumulate and can
// be read back with Sent.
type Loopback struct {
	mu     sync.Mutex
	closed bool
	uplink chan string
	sent   []string

	// FailSends forces Send errors while positive, decrementing per call.
	FailSends int

	// FailOpens forces Open errors while positive, decrementing per call.
	FailOpens int

	// SendErr is the error returned while FailSends is positive.
	SendErr error
}

// NewLoopback builds an open loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{uplink: make(chan string, 64)}
}

func (t *Loopback) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailOpens > 0 {
		t.FailOpens--
		return ErrClosed
	}
	if t.closed {
		t.closed = false
		t.uplink = make(chan string, 64)
	}
	return nil
}

func (t *Loopback) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.uplink)
	}
	return nil
}

func (t *Loopback) Send(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.FailSends > 0 {
		t.FailSends--
		err := t.SendErr
		if err == nil {
			err = ErrClosed
		}
		return err
	}
	t.sent = append(t.sent, line)
	return nil
}

func (t *Loopback) Receive() (string, error) {
	t.mu.Lock()
	ch := t.uplink
	t.mu.Unlock()
	pkt, ok := <-ch
	if !ok {
		return "", ErrClosed
	}
	return pkt, nil
}

// Inject queues an uplink packet as if the radio had received it.
func (t *Loopback) Inject(pkt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.uplink <- pkt
	}
}

// Sent returns a copy of every line transmitted so far.
func (t *Loopback) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}
