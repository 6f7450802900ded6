// Package comm abstracts the byte-level transport connecting the driver
// to the physical modem, typically a UART. The driver treats the
// transport as an opaque byte stream; flow control and modem lines are
// the transport's business.
package comm

import (
	"time"

	"github.com/pkg/errors"
)

// ReceiveCallback is invoked by the transport whenever bytes become
// readable. It may be called from any goroutine, including interrupt
// style contexts, and must not block.
type ReceiveCallback func()

// Connection is an open byte stream to the modem.
type Connection interface {
	// Send writes all of p, retrying short writes internally, bounded by
	// timeout. It returns the number of bytes written.
	Send(p []byte, timeout time.Duration) (int, error)
	// Recv reads up to len(p) bytes, returning once any bytes are
	// available or the timeout expires. A timeout with no data returns
	// (0, nil).
	Recv(p []byte, timeout time.Duration) (int, error)
	// Close shuts the stream down. Further Send/Recv calls fail.
	Close() error
}

// Interface opens connections to a modem.
type Interface interface {
	// Open begins reading from the transport. cb is invoked whenever
	// bytes become readable on the returned connection.
	Open(cb ReceiveCallback) (Connection, error)
}

// ErrClosed indicates an operation on a closed connection.
var ErrClosed = errors.New("comm: closed")
