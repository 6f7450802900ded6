package comm

import (
	"bytes"
	"sync"
	"time"
)

// Mem is an in-memory transport that answers writes from a canned
// command set. It backs the driver test suites.
//
// Writes are looked up verbatim in CmdSet and each mapped string is made
// readable in order. When CmdSet is non-nil, a write with no entry is
// answered with ERROR, so unscripted commands fail fast; with a nil
// CmdSet writes are accepted and nothing is answered. Bytes may also be
// injected directly with Push, emulating unsolicited output from the
// modem.
type Mem struct {
	// CmdSet maps the exact written bytes to the responses they elicit.
	CmdSet map[string][]string

	mu     sync.Mutex
	buf    bytes.Buffer
	cb     ReceiveCallback
	closed bool
}

// Open attaches the receive callback and returns the transport itself as
// the connection.
func (m *Mem) Open(cb ReceiveCallback) (Connection, error) {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
	return m, nil
}

// Send answers the written bytes from the command set.
func (m *Mem) Send(p []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	rsps, ok := m.CmdSet[string(p)]
	m.mu.Unlock()
	if !ok {
		if m.CmdSet != nil {
			m.Push([]byte("\r\nERROR\r\n"))
		}
		return len(p), nil
	}
	for _, r := range rsps {
		if r != "" {
			m.Push([]byte(r))
		}
	}
	return len(p), nil
}

// Recv drains buffered bytes into p. It does not wait; the driver only
// reads after the receive callback has fired.
func (m *Mem) Recv(p []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed && m.buf.Len() == 0 {
		return 0, ErrClosed
	}
	n, _ := m.buf.Read(p)
	return n, nil
}

// Push makes b readable and fires the receive callback.
func (m *Mem) Push(b []byte) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.buf.Write(b)
	cb := m.cb
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Close marks the transport closed. Buffered bytes remain readable.
func (m *Mem) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
