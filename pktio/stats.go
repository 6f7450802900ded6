package pktio

import "sync/atomic"

// engineStats holds the engine counters. Written by the receiver and the
// send path, read by Stats.
type engineStats struct {
	bytesRead        atomic.Uint64
	linesFramed      atomic.Uint64
	urcsDispatched   atomic.Uint64
	undefinedLines   atomic.Uint64
	commandsComplete atomic.Uint64
	commandTimeouts  atomic.Uint64
	buffersDiscarded atomic.Uint64
}
