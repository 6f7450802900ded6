package cellular

import (
	"strings"

	"github.com/modemlink/cellular/at"
)

// RegistrationDomain identifies which registration URC produced an
// event.
type RegistrationDomain int

const (
	// DomainCS is circuit-switched registration (+CREG).
	DomainCS RegistrationDomain = iota
	// DomainPS is GPRS packet registration (+CGREG).
	DomainPS
	// DomainEPS is EPS/LTE registration (+CEREG).
	DomainEPS
)

// RegistrationStatus is the <stat> field of the registration URCs.
type RegistrationStatus int

const (
	RegistrationNotRegistered RegistrationStatus = iota
	RegistrationHome
	RegistrationSearching
	RegistrationDenied
	RegistrationUnknown
	RegistrationRoaming
)

// RegistrationEvent reports a change in network registration.
type RegistrationEvent struct {
	Domain RegistrationDomain
	Status RegistrationStatus
	Raw    string
}

// PDNEvent reports activation or deactivation of a packet data network
// context.
type PDNEvent struct {
	ContextID int
	Active    bool
	Raw       string
}

// ModemEvent is an asynchronous modem state transition.
type ModemEvent int

const (
	// EventPoweredDown reports a normal power down.
	EventPoweredDown ModemEvent = iota
	// EventPSMEnter reports entry into power saving mode.
	EventPSMEnter
	// EventReset reports the modem has (re)booted.
	EventReset
)

// RegisterRegistrationCallback installs the network registration event
// consumer. The callback runs on the receiver goroutine; treat captured
// state as the opaque context.
func (c *Context) RegisterRegistrationCallback(cb func(RegistrationEvent)) {
	c.dataMu.Lock()
	c.cbRegistration = cb
	c.dataMu.Unlock()
}

// RegisterPDNCallback installs the PDN event consumer.
func (c *Context) RegisterPDNCallback(cb func(PDNEvent)) {
	c.dataMu.Lock()
	c.cbPDN = cb
	c.dataMu.Unlock()
}

// RegisterSignalCallback installs the signal-strength event consumer.
func (c *Context) RegisterSignalCallback(cb func(SignalInfo)) {
	c.dataMu.Lock()
	c.cbSignal = cb
	c.dataMu.Unlock()
}

// RegisterGenericURCCallback installs the consumer for URC lines no
// specific handler claims. It receives the raw line.
func (c *Context) RegisterGenericURCCallback(cb func(line string)) {
	c.dataMu.Lock()
	c.cbGenericURC = cb
	c.dataMu.Unlock()
}

// RegisterModemEventCallback installs the modem event consumer.
func (c *Context) RegisterModemEventCallback(cb func(ModemEvent)) {
	c.dataMu.Lock()
	c.cbModemEvent = cb
	c.dataMu.Unlock()
}

// RegisterUndefinedResponseCallback installs the consumer for lines the
// classifier could not account for.
func (c *Context) RegisterUndefinedResponseCallback(cb func(line string)) {
	c.dataMu.Lock()
	c.cbUndefined = cb
	c.dataMu.Unlock()
}

// RegisterURCHandler installs or replaces the handler for a URC prefix
// (without the leading character) or bare token. Vendor modules use this
// to claim their own result codes.
func (c *Context) RegisterURCHandler(prefix string, h func(line string)) {
	c.dataMu.Lock()
	c.urcHandlers[prefix] = h
	c.dataMu.Unlock()
}

// installStandardHandlers binds the 3GPP URCs the runtime understands to
// the typed callback fan-out. Only prefixes present in the token table
// are reachable; vendor tables opt in by listing them.
func (c *Context) installStandardHandlers() {
	c.urcHandlers[at.URCNetworkRegistration] = func(l string) { c.handleRegistration(DomainCS, l) }
	c.urcHandlers[at.URCGPRSRegistration] = func(l string) { c.handleRegistration(DomainPS, l) }
	c.urcHandlers[at.URCEPSRegistration] = func(l string) { c.handleRegistration(DomainEPS, l) }
	c.urcHandlers[at.URCSignalQuality] = c.handleSignalQuality
	c.urcHandlers[at.URCPDNEvent] = c.handlePDNEvent
	c.urcHandlers[at.TokenReady] = func(string) { c.notifyModemEvent(EventReset) }
	c.urcHandlers[at.TokenNormalPowerDown] = func(string) { c.notifyModemEvent(EventPoweredDown) }
	c.urcHandlers[at.TokenPSMPowerDown] = func(string) { c.notifyModemEvent(EventPSMEnter) }
}

// urcSink receives every URC the engine did not hand to a table-bound
// handler. Runs on the receiver goroutine, never under the response
// mutex.
func (c *Context) urcSink(prefix, line string) {
	c.dataMu.Lock()
	h := c.urcHandlers[prefix]
	generic := c.cbGenericURC
	c.dataMu.Unlock()

	if h != nil {
		h(line)
		return
	}
	if generic != nil {
		generic(line)
		return
	}
	c.log.WithField("line", line).Debug("cellular: unhandled URC")
}

func (c *Context) undefinedSink(line string) {
	c.dataMu.Lock()
	cb := c.cbUndefined
	c.dataMu.Unlock()
	if cb != nil {
		cb(line)
		return
	}
	c.log.WithField("line", line).Debug("cellular: undefined response")
}

// handleRegistration parses "+CREG: <stat>[,...]" and its PS/EPS
// variants.
func (c *Context) handleRegistration(domain RegistrationDomain, line string) {
	tail, err := at.TrimPrefix(line)
	if err != nil {
		c.log.WithField("line", line).Warn("cellular: malformed registration URC")
		return
	}
	tail, _ = at.TrimLeadingWhiteSpace(tail)
	tok, _, err := at.NextToken(tail)
	if err != nil {
		return
	}
	tok = strings.TrimSpace(tok)
	stat, err := at.ParseInt(tok, 10)
	if err != nil {
		c.log.WithField("line", line).Warn("cellular: malformed registration status")
		return
	}
	c.dataMu.Lock()
	cb := c.cbRegistration
	c.dataMu.Unlock()
	if cb != nil {
		cb(RegistrationEvent{Domain: domain, Status: RegistrationStatus(stat), Raw: line})
	}
}

// handleSignalQuality parses "+CSQ: <rssi>,<ber>" and fans out converted
// values.
func (c *Context) handleSignalQuality(line string) {
	tail, err := at.TrimPrefix(line)
	if err != nil {
		return
	}
	tail, _ = at.StripWhiteSpace(tail)
	rssiTok, rest, err := at.NextToken(tail)
	if err != nil {
		return
	}
	csqRssi, err := at.ParseInt(rssiTok, 10)
	if err != nil {
		return
	}
	info := SignalInfo{RSSI: InvalidSignalValue, BER: InvalidSignalValue, Bars: InvalidSignalBarValue}
	if v, err := ConvertCSQRSSI(int(csqRssi)); err == nil {
		info.RSSI = v
	}
	if rest != "" {
		if csqBer, err := at.ParseInt(rest, 10); err == nil {
			if v, err := ConvertCSQBER(int(csqBer)); err == nil {
				info.BER = v
			}
		}
	}
	if bars, err := ComputeSignalBars(c.Rat(), info); err == nil {
		info.Bars = bars
	}
	c.dataMu.Lock()
	cb := c.cbSignal
	c.dataMu.Unlock()
	if cb != nil {
		cb(info)
	}
}

// handlePDNEvent parses "+CGEV: ME PDN ACT <cid>" style lines.
func (c *Context) handlePDNEvent(line string) {
	tail, err := at.TrimPrefix(line)
	if err != nil {
		return
	}
	fields := strings.Fields(tail)
	if len(fields) == 0 {
		return
	}
	cid := -1
	for i := len(fields) - 1; i >= 0; i-- {
		tok, _, _ := at.NextToken(fields[i])
		if at.IsDigitString(tok) {
			if v, err := at.ParseInt(tok, 10); err == nil {
				cid = int(v)
				break
			}
		}
	}
	if cid < 0 {
		c.log.WithField("line", line).Debug("cellular: PDN event without context id")
		return
	}
	active := !strings.Contains(tail, "DEACT")
	c.dataMu.Lock()
	cb := c.cbPDN
	c.dataMu.Unlock()
	if cb != nil {
		cb(PDNEvent{ContextID: cid, Active: active, Raw: line})
	}
}

func (c *Context) notifyModemEvent(evt ModemEvent) {
	c.dataMu.Lock()
	cb := c.cbModemEvent
	c.dataMu.Unlock()
	if cb != nil {
		cb(evt)
	}
}
