package cellular

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modemlink/cellular/at"
	"github.com/modemlink/cellular/comm"
	"github.com/modemlink/cellular/pkthandler"
	"github.com/modemlink/cellular/pktio"
)

func setupContext(t *testing.T, cmdSet map[string][]string) (*Context, *comm.Mem) {
	t.Helper()
	mm := &comm.Mem{CmdSet: cmdSet}
	c, err := New(mm, at.DefaultTokenTable())
	require.Nil(t, err)
	t.Cleanup(c.Close)
	return c, mm
}

func TestNewValidation(t *testing.T) {
	patterns := []struct {
		name   string
		iface  comm.Interface
		mutate func(*at.TokenTable)
	}{
		{"nil comm", nil, func(*at.TokenTable) {}},
		{"no success tokens", &comm.Mem{}, func(tt *at.TokenTable) { tt.SuccessTokens = nil }},
		{"no error tokens", &comm.Mem{}, func(tt *at.TokenTable) { tt.ErrorTokens = nil }},
		{"no urc handlers", &comm.Mem{}, func(tt *at.TokenTable) { tt.URCHandlers = nil }},
		{"no bare urcs", &comm.Mem{}, func(tt *at.TokenTable) { tt.BareURCTokens = nil }},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			tt := at.DefaultTokenTable()
			p.mutate(tt)
			c, err := New(p.iface, tt)
			assert.Equal(t, StatusBadParameter, errCause(err))
			assert.Nil(t, c)
		}
		t.Run(p.name, f)
	}
}

func TestNewAndClose(t *testing.T) {
	mm := &comm.Mem{}
	c, err := New(mm, at.DefaultTokenTable())
	require.Nil(t, err)
	c.Close()
	// close is idempotent.
	c.Close()
	err = c.Send(pkthandler.Request{Cmd: "AT", Type: pktio.NoResult}, time.Second)
	assert.Equal(t, StatusLibraryNotOpen, errCause(err))
}

func TestSend(t *testing.T) {
	c, _ := setupContext(t, map[string][]string{
		"AT\r": {"\r\nOK\r\n"},
	})
	err := c.Send(pkthandler.Request{Cmd: "AT", Type: pktio.NoResult}, time.Second)
	assert.Nil(t, err)
}

func TestSendStatusTranslation(t *testing.T) {
	c, _ := setupContext(t, map[string][]string{
		"AT+BAD\r":      {"\r\nERROR\r\n"},
		"AT+NOANSWER\r": {""},
	})
	patterns := []struct {
		name    string
		req     pkthandler.Request
		timeout time.Duration
		status  Status
	}{
		{"bad param", pkthandler.Request{Cmd: "AT+X", Type: pktio.WithPrefix}, time.Second, StatusBadParameter},
		{"timeout", pkthandler.Request{Cmd: "AT+NOANSWER", Type: pktio.NoResult}, 50 * time.Millisecond, StatusTimeout},
		{"command error", pkthandler.Request{Cmd: "AT+BAD", Type: pktio.NoResult}, time.Second, StatusInternalFailure},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			err := c.Send(p.req, p.timeout)
			assert.Equal(t, p.status, errCause(err))
		}
		t.Run(p.name, f)
	}
}

func TestRegistrationCallback(t *testing.T) {
	c, mm := setupContext(t, nil)
	var mu sync.Mutex
	var events []RegistrationEvent
	c.RegisterRegistrationCallback(func(e RegistrationEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	mm.Push([]byte("\r\n+CREG: 5\r\n+CEREG: 1,\"D509\",\"80D413D\",7\r\n"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, DomainCS, events[0].Domain)
	assert.Equal(t, RegistrationRoaming, events[0].Status)
	assert.Equal(t, DomainEPS, events[1].Domain)
	assert.Equal(t, RegistrationHome, events[1].Status)
	mu.Unlock()
}

func TestSignalCallback(t *testing.T) {
	c, mm := setupContext(t, nil)
	c.SetRat(RatGSM)
	var mu sync.Mutex
	var infos []SignalInfo
	c.RegisterSignalCallback(func(i SignalInfo) {
		mu.Lock()
		infos = append(infos, i)
		mu.Unlock()
	})
	mm.Push([]byte("\r\n+CSQ: 23,3\r\n"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(infos) == 1
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, -67, infos[0].RSSI)
	assert.Equal(t, 113, infos[0].BER)
	assert.Equal(t, 5, infos[0].Bars)
	mu.Unlock()
}

func TestPDNCallback(t *testing.T) {
	c, mm := setupContext(t, nil)
	var mu sync.Mutex
	var events []PDNEvent
	c.RegisterPDNCallback(func(e PDNEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	mm.Push([]byte("\r\n+CGEV: ME PDN ACT 1\r\n+CGEV: NW PDN DEACT 3\r\n"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, PDNEvent{ContextID: 1, Active: true, Raw: "+CGEV: ME PDN ACT 1"}, events[0])
	assert.Equal(t, PDNEvent{ContextID: 3, Active: false, Raw: "+CGEV: NW PDN DEACT 3"}, events[1])
	mu.Unlock()
}

func TestModemEventCallback(t *testing.T) {
	c, mm := setupContext(t, nil)
	var mu sync.Mutex
	var events []ModemEvent
	c.RegisterModemEventCallback(func(e ModemEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	mm.Push([]byte("\r\nRDY\r\nPSM POWER DOWN\r\nNORMAL POWER DOWN\r\n"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, []ModemEvent{EventReset, EventPSMEnter, EventPoweredDown}, events)
	mu.Unlock()
}

func TestGenericURCCallback(t *testing.T) {
	// A URC prefix listed in the table without a specific handler falls
	// through to the generic callback.
	tt := at.DefaultTokenTable()
	tt.URCHandlers = append(tt.URCHandlers, at.URCEntry{Prefix: "QIURC"})
	mm := &comm.Mem{}
	c, err := New(mm, tt)
	require.Nil(t, err)
	t.Cleanup(c.Close)

	var mu sync.Mutex
	var urcs []string
	c.RegisterGenericURCCallback(func(line string) {
		mu.Lock()
		urcs = append(urcs, line)
		mu.Unlock()
	})
	mm.Push([]byte("\r\n+QIURC: \"closed\",0\r\n"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(urcs) == 1
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{`+QIURC: "closed",0`}, urcs)
	mu.Unlock()
}

func TestRegisterURCHandlerOverride(t *testing.T) {
	tt := at.DefaultTokenTable()
	tt.URCHandlers = append(tt.URCHandlers, at.URCEntry{Prefix: "QIURC"})
	mm := &comm.Mem{}
	c, err := New(mm, tt)
	require.Nil(t, err)
	t.Cleanup(c.Close)

	var mu sync.Mutex
	var got []string
	c.RegisterURCHandler("QIURC", func(line string) {
		mu.Lock()
		got = append(got, line)
		mu.Unlock()
	})
	mm.Push([]byte("\r\n+QIURC: \"recv\",2\r\n"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)
}

func TestUndefinedResponseCallback(t *testing.T) {
	c, _ := setupContext(t, map[string][]string{
		"AT+CFUN=1\r": {"\r\nUNKNOWN_TOKEN\r\nOK\r\n"},
	})
	var mu sync.Mutex
	var undefined []string
	c.RegisterUndefinedResponseCallback(func(line string) {
		mu.Lock()
		undefined = append(undefined, line)
		mu.Unlock()
	})
	err := c.Send(pkthandler.Request{Cmd: "AT+CFUN=1", Type: pktio.NoResult}, time.Second)
	require.Nil(t, err)
	mu.Lock()
	assert.Equal(t, []string{"UNKNOWN_TOKEN"}, undefined)
	mu.Unlock()
}

func TestRat(t *testing.T) {
	c, _ := setupContext(t, nil)
	assert.Equal(t, RatCatM1, c.Rat())
	c.SetRat(RatNBIoT)
	assert.Equal(t, RatNBIoT, c.Rat())
}

func errCause(err error) error {
	type causer interface{ Cause() error }
	for err != nil {
		c, ok := err.(causer)
		if !ok {
			break
		}
		err = c.Cause()
	}
	return err
}
