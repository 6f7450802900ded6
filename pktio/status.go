package pktio

import "github.com/pkg/errors"

// Packet-level errors shared by the engine and the packet handler. The
// common runtime translates these to its own status taxonomy at the API
// boundary.
var (
	// ErrTimedOut indicates no terminator was observed within the
	// transaction timeout.
	ErrTimedOut = errors.New("timed out")
	// ErrFailure indicates an internal engine failure.
	ErrFailure = errors.New("failure")
	// ErrBadRequest indicates the command could not be delivered to the
	// comm interface.
	ErrBadRequest = errors.New("bad request")
	// ErrBadResponse indicates the parse callback rejected the response
	// content.
	ErrBadResponse = errors.New("bad response")
	// ErrBadParam indicates an invalid argument, such as a missing
	// response prefix or an oversized command.
	ErrBadParam = errors.New("bad param")
	// ErrInvalidHandle indicates the engine is not started or already
	// shutting down.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrCreationFail indicates a resource needed by the engine could not
	// be created.
	ErrCreationFail = errors.New("creation fail")
	// ErrSizeMismatch is returned by buffer hooks that need more bytes
	// before they can decide. Absorbed by the engine, never surfaced.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrPrefixMismatch is returned by buffer hooks that do not recognise
	// the bytes. Absorbed by the engine, never surfaced.
	ErrPrefixMismatch = errors.New("prefix mismatch")
	// ErrInvalidData indicates a hook returned an out-of-contract value.
	ErrInvalidData = errors.New("invalid data")
)

// CommandType selects the response shape the engine expects for the
// pending command.
type CommandType int

const (
	// NoResult expects no information lines, only a result code.
	NoResult CommandType = iota
	// WoPrefix expects a single information line with arbitrary content.
	WoPrefix
	// WithPrefix expects one information line starting with the
	// configured prefix.
	WithPrefix
	// MultiWoPrefix expects any number of information lines.
	MultiWoPrefix
	// MultiWithPrefix expects any number of lines each starting with the
	// configured prefix.
	MultiWithPrefix
	// MultiDataWoPrefix expects information lines of which one opens a
	// fixed-length binary window via the data prefix callback.
	MultiDataWoPrefix
	// WoPrefixNoResultCode expects exactly one content line which itself
	// completes the command successfully.
	WoPrefixNoResultCode
	// WithPrefixNoResultCode expects exactly one prefixed content line
	// which itself completes the command successfully.
	WithPrefixNoResultCode
)

func (t CommandType) String() string {
	switch t {
	case NoResult:
		return "NO_RESULT"
	case WoPrefix:
		return "WO_PREFIX"
	case WithPrefix:
		return "WITH_PREFIX"
	case MultiWoPrefix:
		return "MULTI_WO_PREFIX"
	case MultiWithPrefix:
		return "MULTI_WITH_PREFIX"
	case MultiDataWoPrefix:
		return "MULTI_DATA_WO_PREFIX"
	case WoPrefixNoResultCode:
		return "WO_PREFIX_NO_RESULT_CODE"
	case WithPrefixNoResultCode:
		return "WITH_PREFIX_NO_RESULT_CODE"
	default:
		return "UNKNOWN"
	}
}

// requiresPrefix reports whether the type demands a response prefix.
func (t CommandType) requiresPrefix() bool {
	switch t {
	case WithPrefix, MultiWithPrefix, WithPrefixNoResultCode:
		return true
	default:
		return false
	}
}

// allowsPrefix reports whether the type may carry a response prefix.
func (t CommandType) allowsPrefix() bool {
	return t.requiresPrefix() || t == MultiDataWoPrefix
}
