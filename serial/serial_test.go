// SPDX-License-Identifier: MIT

package serial_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modemlink/cellular/serial"
)

func modemExists(name string) func(t *testing.T) {
	return func(t *testing.T) {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			t.Skip("no modem available")
		}
	}
}

func TestNew(t *testing.T) {
	patterns := []struct {
		name    string
		prereq  func(t *testing.T)
		options []serial.Option
		ok      bool
	}{
		{
			"default",
			modemExists("/dev/ttyUSB0"),
			nil,
			true,
		},
		{
			"port",
			modemExists("/dev/ttyUSB0"),
			[]serial.Option{serial.WithPort("/dev/ttyUSB0"), serial.WithBaud(115200)},
			true,
		},
		{
			"bad port",
			nil,
			[]serial.Option{serial.WithPort("nosuchmodem")},
			false,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			if p.prereq != nil {
				p.prereq(t)
			}
			m, err := serial.New(p.options...)
			require.Equal(t, p.ok, err == nil)
			require.Equal(t, p.ok, m != nil)
			if m != nil {
				m.Close()
			}
		}
		t.Run(p.name, f)
	}
}
