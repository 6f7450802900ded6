// SPDX-License-Identifier: MIT

// cellinfo collects and displays information related to the modem and
// the network it is attached to.
//
// This serves as an example of how to drive the library, as well as
// providing information which may be useful for debugging.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/modemlink/cellular/at"
	"github.com/modemlink/cellular/cellular"
	"github.com/modemlink/cellular/comm"
	"github.com/modemlink/cellular/pkthandler"
	"github.com/modemlink/cellular/pktio"
	"github.com/modemlink/cellular/serial"
	"github.com/modemlink/cellular/trace"
)

var version = "undefined"

func main() {
	dev := flag.String("d", "/dev/ttyUSB0", "path to modem device")
	baud := flag.Int("b", 115200, "baud rate")
	timeout := flag.Duration("t", 5*time.Second, "command timeout period")
	verbose := flag.Bool("v", false, "log modem interactions")
	vsn := flag.Bool("version", false, "report version and exit")
	flag.Parse()
	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], version)
		os.Exit(0)
	}
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

	cmds := []struct {
		cmd    string
		typ    pktio.CommandType
		prefix string
	}{
		{"ATI", pktio.MultiWoPrefix, ""},
		{"AT+CGMI", pktio.WoPrefix, ""},
		{"AT+CGMM", pktio.WoPrefix, ""},
		{"AT+CGMR", pktio.WoPrefix, ""},
		{"AT+CGSN", pktio.WoPrefix, ""},
		{"AT+CSQ", pktio.WithPrefix, "+CSQ"},
		{"AT+CREG?", pktio.WithPrefix, "+CREG"},
		{"AT+CEREG?", pktio.WithPrefix, "+CEREG"},
		{"AT+CGPADDR=1", pktio.WithPrefix, "+CGPADDR"},
		{"AT+COPS?", pktio.WithPrefix, "+COPS"},
	}
	for _, e := range cmds {
		var lines []string
		err := c.Send(pkthandler.Request{
			Cmd:    e.cmd,
			Type:   e.typ,
			Prefix: e.prefix,
			Parse: func(resp *pktio.Response) error {
				lines = resp.Lines()
				return nil
			},
		}, *timeout)
		fmt.Println(e.cmd)
		if err != nil {
			fmt.Printf(" %s\n", err)
			continue
		}
		for _, l := range lines {
			fmt.Printf(" %s\n", l)
		}
	}
}
