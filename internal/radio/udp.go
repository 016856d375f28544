package radio

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
)

// UDPTransport simulates the LoRa channel over UDP for ground testing. One
// datagram carries one packet. The flight side binds a local port and answers
// whichever peer spoke last; a configured peer address enables unsolicited
// downlink (beacons) before any uplink arrives.
type UDPTransport struct {
	localAddr string
	peerAddr  string

	mu   sync.Mutex
	conn *net.UDPConn
	peer *net.UDPAddr
}

// NewUDPTransport prepares a transport bound to localAddr ("host:port").
// peerAddr may be empty; it is then learned from the first received datagram.
func NewUDPTransport(localAddr, peerAddr string) *UDPTransport {
	return &UDPTransport{localAddr: localAddr, peerAddr: peerAddr}
}

func (t *UDPTransport) Open() error {
	addr, err := net.ResolveUDPAddr("udp4", t.localAddr)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", t.localAddr, err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("bind %q: %w", t.localAddr, err)
	}

	var peer *net.UDPAddr
	if t.peerAddr != "" {
		peer, err = net.ResolveUDPAddr("udp4", t.peerAddr)
		if err != nil {
			conn.Close()
			return fmt.Errorf("resolve peer %q: %w", t.peerAddr, err)
		}
	}

	t.mu.Lock()
	t.conn = conn
	t.peer = peer
	t.mu.Unlock()
	return nil
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// LocalAddr returns the bound address, useful when the port was 0.
func (t *UDPTransport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

func (t *UDPTransport) Send(line string) error {
	t.mu.Lock()
	conn, peer := t.conn, t.peer
	t.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	if peer == nil {
		return errors.New("radio: no peer known yet")
	}
	_, err := conn.WriteToUDP([]byte(line), peer)
	return err
}

func (t *UDPTransport) Receive() (string, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return "", ErrClosed
	}

	buf := make([]byte, 2048)
	n, from, err := conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return "", ErrClosed
		}
		return "", err
	}

	t.mu.Lock()
	t.peer = from
	t.mu.Unlock()
	return strings.TrimRight(string(buf[:n]), "\r\n"), nil
}
