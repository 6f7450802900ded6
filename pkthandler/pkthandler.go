// Package pkthandler serialises host-initiated AT transactions over the
// packet-I/O engine: one outstanding command, a bounded wait on the
// response queue, and the per-command parse callback.
package pkthandler

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/modemlink/cellular/pktio"
)

// ResponseParser consumes the accumulated response of a completed
// command and extracts the caller's data. A non-nil error maps to
// pktio.ErrBadResponse.
type ResponseParser func(resp *pktio.Response) error

// Request describes one AT transaction.
type Request struct {
	// Cmd is the bytes to transmit, without the trailing carriage return.
	Cmd string
	// Type selects the expected response shape.
	Type pktio.CommandType
	// Prefix is the expected "+XXX" information-response prefix, required
	// for the with-prefix types.
	Prefix string
	// Parse consumes the response on the caller's goroutine. May be nil.
	Parse ResponseParser
	// ParseErrors invokes Parse for error responses too, so the parser
	// can read failure detail such as a CME code.
	ParseErrors bool
	// DataPrefix opens a fixed-length binary window on the receive path.
	DataPrefix pktio.DataPrefixFunc
	// SendDataPrefix may rewrite the command tail on the send path.
	SendDataPrefix pktio.SendDataPrefixFunc
}

// ErrCommandFailed indicates the modem terminated the command with an
// error token. The retained response lines carry the detail.
var ErrCommandFailed = errors.New("command failed")

// Handler owns the response mutex serialising senders onto the engine.
type Handler struct {
	eng *pktio.Engine
	mu  sync.Mutex
}

// New creates a handler over the engine.
func New(eng *pktio.Engine) *Handler {
	return &Handler{eng: eng}
}

// Send runs one transaction: install the request, transmit, wait for the
// terminator and invoke the parse callback. The response mutex is held
// from send to completion and released on every outcome.
func (h *Handler) Send(req Request, timeout time.Duration) error {
	if req.Cmd == "" {
		return pktio.ErrBadParam
	}
	if timeout <= 0 {
		timeout = pktio.CommandTimeout
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	hooks := pktio.Hooks{DataPrefix: req.DataPrefix, SendDataPrefix: req.SendDataPrefix}
	if err := h.eng.SendATCommand(req.Cmd, req.Type, req.Prefix, hooks); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-h.eng.Responses():
		return h.conclude(req, resp)
	case <-timer.C:
		h.eng.AbandonRequest()
		h.eng.NoteTimeout()
		return pktio.ErrTimedOut
	}
}

// SendRaw transmits payload bytes outside of line framing, after the
// modem has prompted for data.
func (h *Handler) SendRaw(p []byte, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = pktio.RawCommandTimeout
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.eng.SendData(p)
}

// conclude translates the terminator status and runs the parse callback.
func (h *Handler) conclude(req Request, resp *pktio.Response) error {
	if !resp.Success {
		if req.Parse != nil && req.ParseErrors {
			if err := req.Parse(resp); err != nil {
				return errors.Wrap(pktio.ErrBadResponse, err.Error())
			}
		}
		return ErrCommandFailed
	}
	if req.Parse != nil {
		if err := req.Parse(resp); err != nil {
			return errors.Wrap(pktio.ErrBadResponse, err.Error())
		}
	}
	return nil
}
