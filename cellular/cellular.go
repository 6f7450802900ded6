// Package cellular is the common runtime of the modem driver: the
// library context tying the packet engine and handler together, user
// event callbacks, the socket slot table and signal-quality math.
//
// A Context is created per modem with New and torn down with Close. The
// vendor module supplies the token table and issues AT transactions
// through Send; unsolicited result codes fan out to the registered
// callbacks from the receiver goroutine.
package cellular

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/modemlink/cellular/at"
	"github.com/modemlink/cellular/comm"
	"github.com/modemlink/cellular/pkthandler"
	"github.com/modemlink/cellular/pktio"
)

// Context is the per-modem library state. All methods are safe for
// concurrent use.
type Context struct {
	id      xid.ID
	log     logrus.FieldLogger
	table   *at.TokenTable
	eng     *pktio.Engine
	handler *pkthandler.Handler
	timeout time.Duration

	// stateMu guards the open/closing flags.
	stateMu sync.Mutex
	opened  bool
	closing bool

	// dataMu guards state shared between the receiver and API callers.
	dataMu      sync.Mutex
	rat         Rat
	urcHandlers map[string]func(line string)
	sockets     [NumSocketMax]*Socket

	cbRegistration func(RegistrationEvent)
	cbPDN          func(PDNEvent)
	cbSignal       func(SignalInfo)
	cbGenericURC   func(line string)
	cbModemEvent   func(ModemEvent)
	cbUndefined    func(line string)
}

// Option configures a Context.
type Option func(*Context)

// WithLogger directs context and engine logging to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Context) { c.log = l }
}

// WithCommandTimeout overrides the default transaction timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Context) { c.timeout = d }
}

// WithDefaultRat sets the radio access technology assumed for signal-bar
// computation until a registration URC updates it.
func WithDefaultRat(rat Rat) Option {
	return func(c *Context) { c.rat = rat }
}

// New validates the comm interface and token table, creates the packet
// engine and handler, and starts the receiver. On failure everything
// already constructed is unwound and no goroutine survives.
func New(iface comm.Interface, table *at.TokenTable, opts ...Option) (*Context, error) {
	if iface == nil {
		return nil, translateParam("nil comm interface")
	}
	if err := table.Validate(); err != nil {
		return nil, translateParam(err.Error())
	}
	c := &Context{
		id:          xid.New(),
		log:         logrus.StandardLogger(),
		table:       table,
		timeout:     pktio.CommandTimeout,
		rat:         RatCatM1,
		urcHandlers: make(map[string]func(line string)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("modem", c.id.String())

	c.eng = pktio.New(iface, table, pktio.WithLogger(c.log))
	c.handler = pkthandler.New(c.eng)
	c.eng.SetURCSink(c.urcSink)
	c.eng.SetUndefinedCallback(c.undefinedSink)
	c.installStandardHandlers()

	if err := c.eng.Start(); err != nil {
		return nil, translate(err)
	}
	c.stateMu.Lock()
	c.opened = true
	c.stateMu.Unlock()
	return c, nil
}

// Close shuts the engine down, releases the socket table and marks the
// context closed. Safe to call repeatedly.
func (c *Context) Close() {
	c.stateMu.Lock()
	if c.closing || !c.opened {
		c.stateMu.Unlock()
		return
	}
	c.closing = true
	c.stateMu.Unlock()

	c.eng.Shutdown()

	c.dataMu.Lock()
	for i := range c.sockets {
		c.sockets[i] = nil
	}
	c.dataMu.Unlock()

	c.stateMu.Lock()
	c.opened = false
	c.closing = false
	c.stateMu.Unlock()
}

// Send issues one AT transaction and blocks until the terminator, the
// timeout or an error. A zero timeout uses the context default.
func (c *Context) Send(req pkthandler.Request, timeout time.Duration) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.timeout
	}
	return translate(c.handler.Send(req, timeout))
}

// SendRaw transmits payload bytes after the modem has prompted for data.
func (c *Context) SendRaw(p []byte, timeout time.Duration) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	n, err := c.handler.SendRaw(p, timeout)
	return n, translate(err)
}

// Stats returns a snapshot of the engine counters.
func (c *Context) Stats() pktio.Stats { return c.eng.Stats() }

// Rat returns the radio access technology used for signal-bar
// computation.
func (c *Context) Rat() Rat {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	return c.rat
}

// SetRat records the current radio access technology, normally from a
// vendor registration handler.
func (c *Context) SetRat(rat Rat) {
	c.dataMu.Lock()
	c.rat = rat
	c.dataMu.Unlock()
}

func (c *Context) checkOpen() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.opened || c.closing {
		return StatusLibraryNotOpen
	}
	return nil
}

func translateParam(detail string) error {
	return translate(errors.Wrap(pktio.ErrBadParam, detail))
}
