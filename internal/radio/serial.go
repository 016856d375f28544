package radio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tarm/serial"
)

// SerialTransport talks to a LoRa modem over UART. Packets are newline
// framed in both directions.
type SerialTransport struct {
	cfg serial.Config

	mu     sync.Mutex
	port   *serial.Port
	reader *bufio.Reader
}

// NewSerialTransport prepares a transport on the named device, typically
// /dev/ttyS0 at 57600 baud.
func NewSerialTransport(device string, baud int) *SerialTransport {
	return &SerialTransport{cfg: serial.Config{Name: device, Baud: baud}}
}

func (t *SerialTransport) Open() error {
	port, err := serial.OpenPort(&t.cfg)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.cfg.Name, err)
	}
	t.mu.Lock()
	t.port = port
	t.reader = bufio.NewReader(port)
	t.mu.Unlock()
	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.reader = nil
	t.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

func (t *SerialTransport) Send(line string) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return ErrClosed
	}
	_, err := port.Write([]byte(line + "\n"))
	return err
}

func (t *SerialTransport) Receive() (string, error) {
	t.mu.Lock()
	reader := t.reader
	t.mu.Unlock()
	if reader == nil {
		return "", ErrClosed
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", ErrClosed
		}
		if line == "" {
			return "", err
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}
