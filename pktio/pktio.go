// Package pktio implements the packet-I/O engine at the bottom of the
// driver: a receiver goroutine that turns the modem byte stream into
// classified lines and binary payloads, and the matching send path.
//
// The engine owns the comm connection and the line buffer. It feeds the
// pending command's response accumulator and dispatches unsolicited
// result codes as they arrive. Exactly one command may be outstanding at
// a time; serialisation is the packet handler's business.
package pktio

import (
	"bytes"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/modemlink/cellular/at"
	"github.com/modemlink/cellular/comm"
)

// Build-time protocol limits.
const (
	// ATCmdMaxSize is the longest command string accepted by the send
	// path, excluding the trailing carriage return.
	ATCmdMaxSize = 200
	// MaxSendDataLen bounds one binary payload on the send path.
	MaxSendDataLen = 1460
	// MaxRecvDataLen bounds one binary payload on the receive path.
	MaxRecvDataLen = 1500
	// CommandTimeout is the default transaction timeout.
	CommandTimeout = 5 * time.Second
	// RawCommandTimeout is the default timeout for raw byte sends.
	RawCommandTimeout = 5 * time.Second

	// lineBufferSize holds one maximum binary payload plus one maximum
	// modem line, so a terminator following a full payload always fits.
	lineBufferSize = MaxRecvDataLen + at.MaxStringSize

	sendTimeout     = time.Second
	recvTimeout     = time.Second
	startTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// DataPrefixFunc inspects the unframed window at the start of a line and
// decides whether it opens a fixed-length binary window. On success it
// returns the offset at which the opaque bytes begin and their exact
// count. ErrSizeMismatch asks the engine to read more bytes and retry;
// ErrPrefixMismatch declines the window and resumes line framing.
type DataPrefixFunc func(window []byte) (start, length int, err error)

// SendDataPrefixFunc may rewrite the outgoing command tail for commands
// that expect the modem to prompt for payload bytes.
type SendDataPrefixFunc func(cmd string) (string, error)

// InputBufferFunc runs on the buffered bytes before line framing. It
// returns the number of bytes it consumed. ErrPrefixMismatch lets framing
// continue as if the hook were absent; ErrSizeMismatch stops processing
// until more bytes arrive; any other error discards the buffer.
type InputBufferFunc func(window []byte) (consumed int, err error)

// Hooks carries the per-command buffer callbacks installed alongside a
// request.
type Hooks struct {
	DataPrefix     DataPrefixFunc
	SendDataPrefix SendDataPrefixFunc
}

// URCSink receives unsolicited result codes that no table handler
// claimed. prefix is the bare token itself for URCs without a prefix.
type URCSink func(prefix, line string)

// Stats is a snapshot of the engine counters.
type Stats struct {
	BytesRead        uint64
	LinesFramed      uint64
	URCsDispatched   uint64
	UndefinedLines   uint64
	CommandsComplete uint64
	CommandTimeouts  uint64
	BuffersDiscarded uint64
}

// Engine is the packet-I/O engine. Create with New, then Start.
type Engine struct {
	iface comm.Interface
	table *at.TokenTable
	log   logrus.FieldLogger

	conn   comm.Connection
	events *eventFlags
	respCh chan *Response

	// Installed before Start, read by the receiver thereafter.
	inputBuffer InputBufferFunc
	urcSink     URCSink
	undefined   func(line string)

	// mu guards the pending transaction slot, shared between senders and
	// the receiver.
	mu             sync.Mutex
	pending        bool
	cmdType        CommandType
	prefix         string
	dataPrefix     DataPrefixFunc
	sendDataPrefix SendDataPrefixFunc
	resp           *Response

	// Receiver-owned; no other goroutine touches these.
	buf         []byte
	filled      int
	dataLength  int
	partialData []byte

	stateMu sync.Mutex
	up      bool

	stats engineStats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger directs engine logging to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine reading from iface and classifying against table.
// The table is borrowed and must outlive the engine.
func New(iface comm.Interface, table *at.TokenTable, opts ...Option) *Engine {
	e := &Engine{
		iface:  iface,
		table:  table,
		log:    logrus.StandardLogger(),
		events: newEventFlags(),
		respCh: make(chan *Response, 1),
		buf:    make([]byte, lineBufferSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetURCSink installs the fallback consumer for unsolicited result
// codes. Must be called before Start.
func (e *Engine) SetURCSink(sink URCSink) { e.urcSink = sink }

// SetUndefinedCallback installs the consumer for lines no classification
// accounts for. Must be called before Start.
func (e *Engine) SetUndefinedCallback(cb func(line string)) { e.undefined = cb }

// SetInputBufferCallback installs the pre-framing hook. Must be called
// before Start.
func (e *Engine) SetInputBufferCallback(cb InputBufferFunc) { e.inputBuffer = cb }

// Responses exposes the one-slot response queue the receiver posts
// completed transactions to.
func (e *Engine) Responses() <-chan *Response { return e.respCh }

// Start opens the comm interface and spawns the receiver. It returns
// once the receiver is running.
func (e *Engine) Start() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.up {
		return ErrInvalidHandle
	}
	e.events = newEventFlags()
	conn, err := e.iface.Open(func() { e.events.set(evtRxData) })
	if err != nil {
		return errors.Wrap(ErrCreationFail, err.Error())
	}
	e.conn = conn
	go e.recvLoop()
	if e.events.wait(evtStarted, false, startTimeout) == 0 {
		e.events.set(evtAbort)
		conn.Close()
		return ErrCreationFail
	}
	e.up = true
	return nil
}

// Up reports whether the receiver is running.
func (e *Engine) Up() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.up
}

// Shutdown raises the abort flag, waits for the receiver to acknowledge
// and closes the comm connection. Safe to call repeatedly and during
// abnormal termination.
func (e *Engine) Shutdown() {
	e.stateMu.Lock()
	if !e.up {
		e.stateMu.Unlock()
		return
	}
	e.up = false
	e.stateMu.Unlock()

	e.events.set(evtAbort)
	if e.events.wait(evtAborted, false, shutdownTimeout) == 0 {
		e.log.Warn("pktio: receiver did not acknowledge abort")
	}
	e.conn.Close()
}

// SendATCommand installs the pending transaction slot and transmits the
// command with a trailing carriage return. prefix is required for the
// with-prefix command types and forced empty for types that never carry
// one.
func (e *Engine) SendATCommand(cmd string, typ CommandType, prefix string, hooks Hooks) error {
	if !e.Up() {
		return ErrInvalidHandle
	}
	if cmd == "" || len(cmd) > ATCmdMaxSize {
		return ErrBadParam
	}
	if typ.requiresPrefix() && prefix == "" {
		return ErrBadParam
	}
	if !typ.allowsPrefix() {
		prefix = ""
	}
	if len(prefix) > at.MaxPrefixLength+1 {
		return ErrBadParam
	}

	// Drop any stale response abandoned by a timed-out predecessor.
	select {
	case <-e.respCh:
	default:
	}

	e.mu.Lock()
	e.pending = true
	e.cmdType = typ
	e.prefix = prefix
	e.dataPrefix = hooks.DataPrefix
	e.sendDataPrefix = hooks.SendDataPrefix
	e.resp = &Response{}
	e.mu.Unlock()

	out := cmd
	if hooks.SendDataPrefix != nil {
		rewritten, err := hooks.SendDataPrefix(out)
		if err != nil {
			e.AbandonRequest()
			return errors.Wrap(ErrBadParam, err.Error())
		}
		out = rewritten
	}
	if err := e.writeAll([]byte(out+"\r"), sendTimeout); err != nil {
		e.AbandonRequest()
		return errors.Wrap(ErrBadRequest, err.Error())
	}
	return nil
}

// SendData transmits raw payload bytes, used after the modem prompts for
// data with ">".
func (e *Engine) SendData(p []byte) (int, error) {
	if !e.Up() {
		return 0, ErrInvalidHandle
	}
	if len(p) == 0 || len(p) > MaxSendDataLen {
		return 0, ErrBadParam
	}
	if err := e.writeAll(p, sendTimeout); err != nil {
		return 0, errors.Wrap(ErrBadRequest, err.Error())
	}
	return len(p), nil
}

// AbandonRequest clears the pending transaction slot. Terminators
// arriving afterwards are dropped.
func (e *Engine) AbandonRequest() {
	e.mu.Lock()
	e.clearPendingLocked()
	e.mu.Unlock()
}

// NoteTimeout records a transaction timeout in the engine counters.
func (e *Engine) NoteTimeout() { e.stats.commandTimeouts.Add(1) }

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		BytesRead:        e.stats.bytesRead.Load(),
		LinesFramed:      e.stats.linesFramed.Load(),
		URCsDispatched:   e.stats.urcsDispatched.Load(),
		UndefinedLines:   e.stats.undefinedLines.Load(),
		CommandsComplete: e.stats.commandsComplete.Load(),
		CommandTimeouts:  e.stats.commandTimeouts.Load(),
		BuffersDiscarded: e.stats.buffersDiscarded.Load(),
	}
}

func (e *Engine) clearPendingLocked() {
	e.pending = false
	e.cmdType = NoResult
	e.prefix = ""
	e.dataPrefix = nil
	e.sendDataPrefix = nil
	e.resp = nil
}

// writeAll delivers the whole of p, retrying short writes until the
// timeout elapses.
func (e *Engine) writeAll(p []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for len(p) > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimedOut
		}
		n, err := e.conn.Send(p, remaining)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// recvLoop is the receiver task. It owns the line buffer and the comm
// connection read side for the lifetime of the engine.
func (e *Engine) recvLoop() {
	e.events.set(evtStarted)
	for {
		bits := e.events.wait(evtAbort|evtRxData, true, -1)
		if bits&evtAbort != 0 {
			e.conn.Close()
			e.events.set(evtAborted)
			return
		}
		// Drain whatever is already buffered, then read once.
		e.process()
		free := len(e.buf) - e.filled
		if free == 0 && e.dataLength == 0 {
			// A line longer than the buffer can never frame.
			e.log.Warn("pktio: line overflows buffer, discarding")
			e.stats.buffersDiscarded.Add(1)
			e.filled = 0
			free = len(e.buf)
		}
		n, err := e.conn.Recv(e.buf[e.filled:], recvTimeout)
		if err != nil {
			e.log.WithError(err).Error("pktio: comm receive failed")
			e.conn.Close()
			e.events.set(evtAborted)
			return
		}
		if n > 0 {
			e.filled += n
			e.stats.bytesRead.Add(uint64(n))
			e.process()
			if e.filled == len(e.buf) {
				// The read may have been truncated by buffer space.
				e.events.set(evtRxData)
			}
		}
	}
}

// process drains complete messages from the buffered bytes: binary
// payload while in data mode, otherwise framed lines.
func (e *Engine) process() {
	r := 0
	for {
		window := e.buf[r:e.filled]
		if len(window) == 0 {
			break
		}

		if e.dataLength > 0 {
			r += e.consumeData(window)
			continue
		}

		adv, stop := e.consumeText(window)
		r += adv
		if stop {
			if adv == 0 {
				break
			}
			// Buffer discarded: drop everything unconsumed.
			r = e.filled
			break
		}
		if adv == 0 {
			// Incomplete line; await more bytes.
			break
		}
	}
	if r > 0 {
		copy(e.buf, e.buf[r:e.filled])
		e.filled -= r
	}
}

// consumeData moves bytes into the binary payload and closes the data
// window when the expected count is reached.
func (e *Engine) consumeData(window []byte) int {
	need := e.dataLength - len(e.partialData)
	take := need
	if take > len(window) {
		take = len(window)
	}
	e.partialData = append(e.partialData, window[:take]...)
	if len(e.partialData) < e.dataLength {
		return take
	}
	data := e.partialData
	e.dataLength = 0
	e.partialData = nil
	e.mu.Lock()
	if e.pending && e.resp != nil {
		e.resp.Items = append(e.resp.Items, Item{Kind: ItemData, Data: data})
	}
	e.mu.Unlock()
	return take
}

// consumeText handles one framing step: the input-buffer hook, separator
// skipping, the data-prefix hook and finally line dispatch. It returns
// the bytes consumed and whether processing must stop (either to wait
// for more bytes with adv == 0, or to discard the buffer with adv != 0).
func (e *Engine) consumeText(window []byte) (adv int, stop bool) {
	if e.inputBuffer != nil {
		consumed, err := e.inputBuffer(window)
		switch {
		case err == nil && consumed > 0:
			if consumed > len(window) {
				e.log.Warn("pktio: input buffer hook overran the buffer, discarding")
				e.stats.buffersDiscarded.Add(1)
				return len(window), true
			}
			return consumed, false
		case err == nil || err == ErrPrefixMismatch:
			// Not the hook's bytes; frame normally.
		case err == ErrSizeMismatch:
			return 0, true
		default:
			e.log.WithError(err).Warn("pktio: input buffer hook failed, discarding")
			e.stats.buffersDiscarded.Add(1)
			return len(window), true
		}
	}

	// Skip empty separators between lines.
	i := 0
	for i < len(window) && (window[i] == '\r' || window[i] == '\n') {
		i++
	}
	if i > 0 {
		return i, false
	}

	if dp := e.pendingDataPrefix(); dp != nil {
		start, length, err := dp(window)
		switch {
		case err == nil && length > 0:
			if start > len(window) || length > MaxRecvDataLen {
				e.log.Warn("pktio: data prefix hook out of contract, discarding")
				e.stats.buffersDiscarded.Add(1)
				return len(window), true
			}
			e.enterDataMode(window[:start], length)
			return start, false
		case err == ErrSizeMismatch:
			return 0, true
		case err == nil || err == ErrPrefixMismatch:
			// Not a data line; frame normally.
		default:
			e.log.WithError(err).Warn("pktio: data prefix hook failed, discarding")
			e.stats.buffersDiscarded.Add(1)
			return len(window), true
		}
	}

	idx := bytes.IndexAny(window, "\r\n")
	if idx < 0 {
		return 0, false
	}
	e.stats.linesFramed.Add(1)
	e.dispatchLine(string(window[:idx]))
	return idx + 1, false
}

// enterDataMode retains the prefix line that announced the payload and
// arms the binary byte counter.
func (e *Engine) enterDataMode(prefix []byte, length int) {
	line := string(bytes.TrimRight(prefix, "\r\n"))
	if line != "" {
		e.appendLine(line)
	}
	e.dataLength = length
	e.partialData = make([]byte, 0, length)
}

func (e *Engine) pendingDataPrefix() DataPrefixFunc {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pending {
		return nil
	}
	return e.dataPrefix
}

// dispatchLine routes one framed line by its classification.
func (e *Engine) dispatchLine(line string) {
	if line == "" {
		return
	}
	e.mu.Lock()
	pending, typ, prefix := e.pending, e.cmdType, e.prefix
	e.mu.Unlock()

	switch e.table.Classify(line, pending, prefix) {
	case at.ClassSuccess:
		if !pending {
			e.log.WithField("line", line).Debug("pktio: dropping terminator with no command pending")
			return
		}
		e.complete(true)
	case at.ClassError:
		// Error tokens are only honoured while a command is pending.
		if !pending {
			e.log.WithField("line", line).Debug("pktio: dropping error token with no command pending")
			return
		}
		e.appendLine(line)
		e.complete(false)
	case at.ClassBareURC:
		e.dispatchURC(line, line)
	case at.ClassPrefixURC:
		entry, _ := e.table.URCPrefix(line)
		if entry.Handle != nil {
			e.invokeURC(entry.Prefix, line, func(string, string) { entry.Handle(line) })
			return
		}
		e.dispatchURC(entry.Prefix, line)
	case at.ClassIntermediate:
		e.intermediate(line, typ, prefix)
	default:
		e.undefinedLine(line)
	}
}

// intermediate applies the pending command's response shape to one
// information line.
func (e *Engine) intermediate(line string, typ CommandType, prefix string) {
	switch typ {
	case NoResult:
		// The response retains nothing before the terminator; the line is
		// left to the undefined-response path.
		e.undefinedLine(line)
	case WoPrefix, MultiWoPrefix, MultiDataWoPrefix:
		e.appendLine(line)
	case WithPrefix, MultiWithPrefix:
		if at.PrefixMatches(line, prefix) {
			e.appendLine(line)
		} else {
			e.undefinedLine(line)
		}
	case WoPrefixNoResultCode:
		e.appendLine(line)
		e.complete(true)
	case WithPrefixNoResultCode:
		if at.PrefixMatches(line, prefix) {
			e.appendLine(line)
			e.complete(true)
		} else {
			e.undefinedLine(line)
		}
	}
}

func (e *Engine) appendLine(line string) {
	e.mu.Lock()
	if e.pending && e.resp != nil {
		e.resp.Items = append(e.resp.Items, Item{Kind: ItemLine, Line: line})
	}
	e.mu.Unlock()
}

// complete posts the accumulated response to the one-slot queue and
// clears the pending slot. Late terminators find the slot empty and are
// dropped by the caller.
func (e *Engine) complete(success bool) {
	e.mu.Lock()
	if !e.pending {
		e.mu.Unlock()
		return
	}
	resp := e.resp
	resp.Success = success
	e.clearPendingLocked()
	e.mu.Unlock()

	e.stats.commandsComplete.Add(1)
	select {
	case e.respCh <- resp:
	default:
		e.log.Warn("pktio: response queue full, dropping response")
	}
}

// dispatchURC delivers an unsolicited result code to the sink. Runs on
// the receiver, never under a sender-held mutex.
func (e *Engine) dispatchURC(prefix, line string) {
	sink := e.urcSink
	if sink == nil {
		e.log.WithField("line", line).Debug("pktio: dropping URC with no sink")
		return
	}
	e.invokeURC(prefix, line, sink)
}

func (e *Engine) invokeURC(prefix, line string, sink URCSink) {
	e.stats.urcsDispatched.Add(1)
	defer func() {
		if p := recover(); p != nil {
			e.log.WithField("line", line).Errorf("pktio: URC handler panicked: %v", p)
		}
	}()
	sink(prefix, line)
}

func (e *Engine) undefinedLine(line string) {
	e.stats.undefinedLines.Add(1)
	if e.undefined != nil {
		e.undefined(line)
		return
	}
	e.log.WithField("line", line).Debug("pktio: dropping undefined line")
}
