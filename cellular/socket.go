package cellular

import (
	"time"

	"github.com/modemlink/cellular/pktio"
)

// Socket slot limits.
const (
	// NumSocketMax is the size of the socket slot table.
	NumSocketMax = 12
	// PDNContextIDMin and PDNContextIDMax bound valid packet data
	// network context ids.
	PDNContextIDMin = 1
	PDNContextIDMax = 16
)

// SocketState is the lifecycle state of a socket slot.
type SocketState int

const (
	// SocketAllocated is a fresh slot whose addressing options may still
	// be changed.
	SocketAllocated SocketState = iota
	// SocketConnecting is a slot with a connect in flight.
	SocketConnecting
	// SocketConnected is an established socket.
	SocketConnected
	// SocketDisconnected is a slot whose connection has ended.
	SocketDisconnected
)

func (s SocketState) String() string {
	switch s {
	case SocketAllocated:
		return "allocated"
	case SocketConnecting:
		return "connecting"
	case SocketConnected:
		return "connected"
	case SocketDisconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}

// Socket is one slot of the socket table. Vendor modules drive its state
// from their connect/close wrappers; the runtime only enforces the slot
// rules.
type Socket struct {
	ctx *Context
	id  int

	state        SocketState
	pdnContextID int
	localPort    int
	sendTimeout  time.Duration
	recvTimeout  time.Duration

	onDataReady func()
	onOpened    func(success bool)
	onClosed    func()
}

// ID returns the slot index the socket occupies.
func (s *Socket) ID() int { return s.id }

// CreateSocket allocates a socket slot bound to the PDN context.
func (c *Context) CreateSocket(pdnContextID int) (*Socket, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if pdnContextID < PDNContextIDMin || pdnContextID > PDNContextIDMax {
		return nil, StatusBadParameter
	}
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	for i := range c.sockets {
		if c.sockets[i] == nil {
			s := &Socket{
				ctx:          c,
				id:           i,
				state:        SocketAllocated,
				pdnContextID: pdnContextID,
				sendTimeout:  pktio.CommandTimeout,
				recvTimeout:  pktio.CommandTimeout,
			}
			c.sockets[i] = s
			return s, nil
		}
	}
	return nil, StatusNoMemory
}

// RemoveSocket releases the socket's slot. The socket is unusable
// afterwards.
func (c *Context) RemoveSocket(s *Socket) error {
	if s == nil {
		return StatusBadParameter
	}
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	if s.id < 0 || s.id >= NumSocketMax || c.sockets[s.id] != s {
		return StatusBadParameter
	}
	c.sockets[s.id] = nil
	return nil
}

// IsValidSocket reports whether the slot index holds a live socket.
func (c *Context) IsValidSocket(id int) bool {
	if id < 0 || id >= NumSocketMax {
		return false
	}
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	return c.sockets[id] != nil
}

// SocketByID returns the socket in the slot, or nil.
func (c *Context) SocketByID(id int) *Socket {
	if id < 0 || id >= NumSocketMax {
		return nil
	}
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	return c.sockets[id]
}

// State returns the socket's lifecycle state.
func (s *Socket) State() SocketState {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	return s.state
}

// SetState records a lifecycle transition, normally from a vendor
// connect/close wrapper.
func (s *Socket) SetState(state SocketState) {
	s.ctx.dataMu.Lock()
	s.state = state
	s.ctx.dataMu.Unlock()
}

// PDNContextID returns the bound packet data network context.
func (s *Socket) PDNContextID() int {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	return s.pdnContextID
}

// SetPDNContextID rebinds the socket to another PDN context. Only
// allowed while the socket is still allocated.
func (s *Socket) SetPDNContextID(id int) error {
	if id < PDNContextIDMin || id > PDNContextIDMax {
		return StatusBadParameter
	}
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	if s.state != SocketAllocated {
		return StatusUnsupported
	}
	s.pdnContextID = id
	return nil
}

// LocalPort returns the configured local port.
func (s *Socket) LocalPort() int {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	return s.localPort
}

// SetLocalPort configures the local port. Only allowed while the socket
// is still allocated.
func (s *Socket) SetLocalPort(port int) error {
	if port < 0 || port > 65535 {
		return StatusBadParameter
	}
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	if s.state != SocketAllocated {
		return StatusUnsupported
	}
	s.localPort = port
	return nil
}

// SetSendTimeout configures the send timeout. Allowed in any state.
func (s *Socket) SetSendTimeout(d time.Duration) error {
	if d <= 0 {
		return StatusBadParameter
	}
	s.ctx.dataMu.Lock()
	s.sendTimeout = d
	s.ctx.dataMu.Unlock()
	return nil
}

// SetRecvTimeout configures the receive timeout. Allowed in any state.
func (s *Socket) SetRecvTimeout(d time.Duration) error {
	if d <= 0 {
		return StatusBadParameter
	}
	s.ctx.dataMu.Lock()
	s.recvTimeout = d
	s.ctx.dataMu.Unlock()
	return nil
}

// SendTimeout returns the configured send timeout.
func (s *Socket) SendTimeout() time.Duration {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	return s.sendTimeout
}

// RecvTimeout returns the configured receive timeout.
func (s *Socket) RecvTimeout() time.Duration {
	s.ctx.dataMu.Lock()
	defer s.ctx.dataMu.Unlock()
	return s.recvTimeout
}

// RegisterDataReadyCallback installs the data-ready notifier invoked
// when the vendor module learns of pending receive data.
func (s *Socket) RegisterDataReadyCallback(cb func()) {
	s.ctx.dataMu.Lock()
	s.onDataReady = cb
	s.ctx.dataMu.Unlock()
}

// RegisterOpenCallback installs the open-result notifier.
func (s *Socket) RegisterOpenCallback(cb func(success bool)) {
	s.ctx.dataMu.Lock()
	s.onOpened = cb
	s.ctx.dataMu.Unlock()
}

// RegisterClosedCallback installs the remote-close notifier.
func (s *Socket) RegisterClosedCallback(cb func()) {
	s.ctx.dataMu.Lock()
	s.onClosed = cb
	s.ctx.dataMu.Unlock()
}

// NotifyDataReady fires the data-ready callback, typically from a vendor
// URC handler.
func (s *Socket) NotifyDataReady() {
	s.ctx.dataMu.Lock()
	cb := s.onDataReady
	s.ctx.dataMu.Unlock()
	if cb != nil {
		cb()
	}
}

// NotifyOpened records the connect outcome and fires the open callback.
func (s *Socket) NotifyOpened(success bool) {
	s.ctx.dataMu.Lock()
	if success {
		s.state = SocketConnected
	} else {
		s.state = SocketDisconnected
	}
	cb := s.onOpened
	s.ctx.dataMu.Unlock()
	if cb != nil {
		cb(success)
	}
}

// NotifyClosed records a remote close and fires the closed callback.
func (s *Socket) NotifyClosed() {
	s.ctx.dataMu.Lock()
	s.state = SocketDisconnected
	cb := s.onClosed
	s.ctx.dataMu.Unlock()
	if cb != nil {
		cb()
	}
}
