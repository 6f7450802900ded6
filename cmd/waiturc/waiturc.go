// SPDX-License-Identifier: MIT

// waiturc watches the modem for unsolicited result codes and logs them
// to stderr.
//
// This provides an example of using the event callbacks, as well as a
// test that the library works with the modem.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modemlink/cellular/at"
	"github.com/modemlink/cellular/cellular"
	"github.com/modemlink/cellular/comm"
	"github.com/modemlink/cellular/pkthandler"
	"github.com/modemlink/cellular/pktio"
	"github.com/modemlink/cellular/serial"
	"github.com/modemlink/cellular/trace"
)

func main() {
	dev := flag.String("d", "/dev/ttyUSB2", "path to modem device")
	baud := flag.Int("b", 115200, "baud rate")
	period := flag.Duration("p", 10*time.Minute, "period to wait")
	timeout := flag.Duration("t", 5*time.Second, "command timeout period")
	verbose := flag.Bool("v", false, "log modem interactions")
	flag.Parse()
	p, err := serial.New(serial.WithPort(*dev), serial.WithBaud(*baud))
	if err != nil {
		log.Println(err)
		return
	}
	var iface comm.Interface = p
	if *verbose {
		iface = trace.NewInterface(p, log.New(os.Stdout, "", log.LstdFlags))
	}
	c, err := cellular.New(iface, at.DefaultTokenTable(),
		cellular.WithCommandTimeout(*timeout))
	if err != nil {
		log.Println(err)
		return
	}
	defer c.Close()

	c.RegisterRegistrationCallback(func(e cellular.RegistrationEvent) {
		log.Printf("registration: domain %d status %d (%s)", e.Domain, e.Status, e.Raw)
	})
	c.RegisterSignalCallback(func(i cellular.SignalInfo) {
		log.Printf("signal: rssi %d dBm ber %d bars %d", i.RSSI, i.BER, i.Bars)
	})
	c.RegisterPDNCallback(func(e cellular.PDNEvent) {
		log.Printf("pdn: context %d active %v", e.ContextID, e.Active)
	})
	c.RegisterModemEventCallback(func(e cellular.ModemEvent) {
		log.Printf("modem event: %d", e)
	})
	c.RegisterGenericURCCallback(func(line string) {
		log.Printf("urc: %s", line)
	})

	// enable CS and EPS registration reporting.
	for _, cmd := range []string{"AT+CREG=1", "AT+CEREG=1"} {
		if err := c.Send(pkthandler.Request{Cmd: cmd, Type: pktio.NoResult}, *timeout); err != nil {
			log.Printf("%s: %s", cmd, err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-time.After(*period):
	}
	log.Println("exiting...")
}
