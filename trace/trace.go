// Package trace provides a decorator for a comm connection that logs
// all sends and receives.
package trace

import (
	"log"
	"time"

	"github.com/modemlink/cellular/comm"
)

// Trace is a trace log on a comm.Connection.
// All sends and receives are written to the logger.
type Trace struct {
	conn comm.Connection
	l    *log.Logger
	wfmt string
	rfmt string
}

// Option modifies a Trace object created by New.
type Option func(*Trace)

// New creates a new trace on the connection.
func New(conn comm.Connection, l *log.Logger, opts ...Option) *Trace {
	t := &Trace{conn: conn, l: l, wfmt: "w: %s", rfmt: "r: %s"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ReadFormat sets the format used for receive logs.
func ReadFormat(format string) Option {
	return func(t *Trace) {
		t.rfmt = format
	}
}

// WriteFormat sets the format used for send logs.
func WriteFormat(format string) Option {
	return func(t *Trace) {
		t.wfmt = format
	}
}

func (t *Trace) Send(p []byte, timeout time.Duration) (n int, err error) {
	n, err = t.conn.Send(p, timeout)
	if n > 0 {
		t.l.Printf(t.wfmt, p[:n])
	}
	return n, err
}

func (t *Trace) Recv(p []byte, timeout time.Duration) (n int, err error) {
	n, err = t.conn.Recv(p, timeout)
	if n > 0 {
		t.l.Printf(t.rfmt, p[:n])
	}
	return n, err
}

func (t *Trace) Close() error {
	return t.conn.Close()
}

// Interface decorates a comm.Interface so that every connection it opens
// is traced.
type Interface struct {
	iface comm.Interface
	l     *log.Logger
	opts  []Option
}

// NewInterface creates a tracing wrapper around iface.
func NewInterface(iface comm.Interface, l *log.Logger, opts ...Option) *Interface {
	return &Interface{iface: iface, l: l, opts: opts}
}

// Open opens the underlying interface and wraps the connection.
func (i *Interface) Open(cb comm.ReceiveCallback) (comm.Connection, error) {
	conn, err := i.iface.Open(cb)
	if err != nil {
		return nil, err
	}
	return New(conn, i.l, i.opts...), nil
}
