// SPDX-License-Identifier: MIT

// Package serial provides a comm interface backed by a local UART, the
// usual connection between the driver and a physical modem.
package serial

import (
	"bytes"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/modemlink/cellular/comm"
)

// Config contains the serial port settings.
type Config struct {
	port string
	baud int
}

// Option modifies the Config used to open the port.
type Option func(*Config)

// WithPort selects the serial device.
func WithPort(port string) Option {
	return func(c *Config) { c.port = port }
}

// WithBaud selects the line rate.
func WithBaud(baud int) Option {
	return func(c *Config) { c.baud = baud }
}

// Port is an open UART implementing comm.Interface. A pump goroutine
// moves bytes from the device into an internal buffer and fires the
// receive callback.
type Port struct {
	dev *serial.Port

	mu      sync.Mutex
	buf     bytes.Buffer
	cb      comm.ReceiveCallback
	pumping bool
	closed  bool
}

// New opens the serial port. Defaults are platform specific and
// overridden with options.
func New(options ...Option) (*Port, error) {
	cfg := defaultConfig
	for _, option := range options {
		option(&cfg)
	}
	dev, err := serial.OpenPort(&serial.Config{Name: cfg.port, Baud: cfg.baud})
	if err != nil {
		return nil, err
	}
	return &Port{dev: dev}, nil
}

// Open attaches the receive callback and starts the pump. The port
// itself is the connection.
func (p *Port) Open(cb comm.ReceiveCallback) (comm.Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, comm.ErrClosed
	}
	p.cb = cb
	start := !p.pumping
	p.pumping = true
	p.mu.Unlock()
	if start {
		go p.pump()
	}
	return p, nil
}

// pump owns the device read side until the port closes.
func (p *Port) pump() {
	chunk := make([]byte, 512)
	for {
		n, err := p.dev.Read(chunk)
		if n > 0 {
			p.mu.Lock()
			p.buf.Write(chunk[:n])
			cb := p.cb
			p.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
		if err != nil {
			return
		}
	}
}

// Send writes all of b to the device.
func (p *Port) Send(b []byte, timeout time.Duration) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, comm.ErrClosed
	}
	return p.dev.Write(b)
}

// Recv drains buffered bytes into b. It does not wait; the driver reads
// after the receive callback has fired.
func (p *Port) Recv(b []byte, timeout time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed && p.buf.Len() == 0 {
		return 0, comm.ErrClosed
	}
	n, _ := p.buf.Read(b)
	return n, nil
}

// Close shuts the device down and stops the pump.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.dev.Close()
}
