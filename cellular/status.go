package cellular

import (
	"github.com/pkg/errors"

	"github.com/modemlink/cellular/at"
	"github.com/modemlink/cellular/pkthandler"
	"github.com/modemlink/cellular/pktio"
)

// Status is the error taxonomy surfaced to library callers. Operations
// return nil on success and a Status-rooted error otherwise; inspect
// with errors.Cause.
type Status int

const (
	// StatusTimeout indicates the modem did not answer within the
	// transaction timeout.
	StatusTimeout Status = iota + 1
	// StatusInternalFailure indicates an unrecoverable driver failure.
	StatusInternalFailure
	// StatusBadParameter indicates an invalid argument.
	StatusBadParameter
	// StatusInvalidHandle indicates an uninitialised context.
	StatusInvalidHandle
	// StatusLibraryNotOpen indicates the context is closed or closing.
	StatusLibraryNotOpen
	// StatusNoMemory indicates a buffer or slot could not be obtained.
	StatusNoMemory
	// StatusUnsupported indicates the operation is not available in the
	// current state.
	StatusUnsupported
	// StatusUnknown indicates a failure the driver cannot attribute.
	StatusUnknown
)

func (s Status) Error() string {
	switch s {
	case StatusTimeout:
		return "timeout"
	case StatusInternalFailure:
		return "internal failure"
	case StatusBadParameter:
		return "bad parameter"
	case StatusInvalidHandle:
		return "invalid handle"
	case StatusLibraryNotOpen:
		return "library not open"
	case StatusNoMemory:
		return "no memory"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// translate maps packet-level errors to the library taxonomy. The
// original error text is preserved in the wrap.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var s Status
	switch errors.Cause(err) {
	case pktio.ErrTimedOut:
		s = StatusTimeout
	case pktio.ErrBadParam, at.ErrBadParameter:
		s = StatusBadParameter
	case pktio.ErrInvalidHandle:
		s = StatusLibraryNotOpen
	case pkthandler.ErrCommandFailed, pktio.ErrBadResponse,
		pktio.ErrBadRequest, pktio.ErrFailure, pktio.ErrCreationFail,
		pktio.ErrInvalidData:
		s = StatusInternalFailure
	default:
		s = StatusInternalFailure
	}
	return errors.Wrap(s, err.Error())
}
