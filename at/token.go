package at

import "github.com/pkg/errors"

// URCEntry associates an unsolicited result code prefix, without the
// leading character, with an optional handler. A nil handler leaves the
// line to the engine's URC sink.
type URCEntry struct {
	Prefix string
	Handle func(line string)
}

// TokenTable describes the modem-specific vocabulary used to classify
// received lines. It is supplied by the vendor module, is read-only, and
// must outlive anything classifying against it.
type TokenTable struct {
	// URCHandlers recognises unsolicited result codes whose lines begin
	// with a "+PREFIX"-style token.
	URCHandlers []URCEntry
	// SuccessTokens terminate a command with success on exact match.
	SuccessTokens []string
	// ErrorTokens terminate a command with error. Matched by containment
	// so that "+CME ERROR: 21" terminates on the "+CME ERROR" token.
	ErrorTokens []string
	// BareURCTokens are full-line URCs that do not start with the prefix
	// leading character.
	BareURCTokens []string
	// ExtraSuccessTokens are additional exact-match success terminators.
	ExtraSuccessTokens []string
}

// ErrInvalidTable indicates a token table is missing a required field.
var ErrInvalidTable = errors.New("invalid token table")

// Validate checks the required fields of the table are present and
// non-empty.
func (t *TokenTable) Validate() error {
	if t == nil {
		return errors.Wrap(ErrInvalidTable, "nil table")
	}
	if len(t.URCHandlers) == 0 {
		return errors.Wrap(ErrInvalidTable, "no URC handlers")
	}
	if len(t.SuccessTokens) == 0 {
		return errors.Wrap(ErrInvalidTable, "no success tokens")
	}
	if len(t.ErrorTokens) == 0 {
		return errors.Wrap(ErrInvalidTable, "no error tokens")
	}
	if len(t.BareURCTokens) == 0 {
		return errors.Wrap(ErrInvalidTable, "no bare URC tokens")
	}
	return nil
}

// URCPrefix returns the URC entry matching line, if any. The line carries
// the leading character, table prefixes do not.
func (t *TokenTable) URCPrefix(line string) (URCEntry, bool) {
	if line == "" || !IsPrefixLeadingChar(line[0]) {
		return URCEntry{}, false
	}
	for _, e := range t.URCHandlers {
		if PrefixMatches(line, string(line[0])+e.Prefix) {
			return e, true
		}
	}
	return URCEntry{}, false
}

// BareURC reports whether line is a full-line URC without a prefix.
func (t *TokenTable) BareURC(line string) bool {
	for _, tok := range t.BareURCTokens {
		if line == tok {
			return true
		}
	}
	return false
}

// LineClass is the category the classifier assigns to a received line.
type LineClass int

const (
	// ClassUndefined is a line no table entry or pending command accounts
	// for.
	ClassUndefined LineClass = iota
	// ClassIntermediate is an information response belonging to the
	// pending command.
	ClassIntermediate
	// ClassSuccess terminates the pending command with success.
	ClassSuccess
	// ClassError terminates the pending command with error.
	ClassError
	// ClassPrefixURC is an unsolicited result code recognised by prefix.
	ClassPrefixURC
	// ClassBareURC is an unsolicited result code recognised as a full
	// line.
	ClassBareURC
)

func (c LineClass) String() string {
	switch c {
	case ClassIntermediate:
		return "intermediate"
	case ClassSuccess:
		return "success"
	case ClassError:
		return "error"
	case ClassPrefixURC:
		return "urc"
	case ClassBareURC:
		return "bare-urc"
	default:
		return "undefined"
	}
}

// Classify determines how a received line should be routed. pending and
// pendingPrefix describe the outstanding command, if any; a line matching
// the pending command's expected prefix is classified as intermediate
// even when the same prefix is registered as a URC, so the pending
// command always sees its own response first.
func (t *TokenTable) Classify(line string, pending bool, pendingPrefix string) LineClass {
	if t.BareURC(line) {
		return ClassBareURC
	}
	if line != "" && IsPrefixLeadingChar(line[0]) {
		if pending && pendingPrefix != "" && PrefixMatches(line, pendingPrefix) {
			return ClassIntermediate
		}
		if _, ok := t.URCPrefix(line); ok {
			return ClassPrefixURC
		}
	}
	for _, tok := range t.SuccessTokens {
		if line == tok {
			return ClassSuccess
		}
	}
	for _, tok := range t.ExtraSuccessTokens {
		if line == tok {
			return ClassSuccess
		}
	}
	if ContainsAnyToken(line, t.ErrorTokens) {
		return ClassError
	}
	if pending {
		return ClassIntermediate
	}
	return ClassUndefined
}

// Standard 3GPP URC prefixes handled by the common runtime.
const (
	URCNetworkRegistration = "CREG"
	URCGPRSRegistration    = "CGREG"
	URCEPSRegistration     = "CEREG"
	URCSignalQuality       = "CSQ"
	URCPDNEvent            = "CGEV"
)

// Bare tokens reported by most modems around power transitions.
const (
	TokenReady           = "RDY"
	TokenNormalPowerDown = "NORMAL POWER DOWN"
	TokenPSMPowerDown    = "PSM POWER DOWN"
)

// DefaultTokenTable returns a table covering the result codes and URCs
// common to 3GPP modems. Vendor modules extend it with their own entries.
func DefaultTokenTable() *TokenTable {
	return &TokenTable{
		URCHandlers: []URCEntry{
			{Prefix: URCEPSRegistration},
			{Prefix: URCGPRSRegistration},
			{Prefix: URCNetworkRegistration},
			{Prefix: URCSignalQuality},
			{Prefix: URCPDNEvent},
		},
		SuccessTokens: []string{"OK", "CONNECT", "SEND OK", ">"},
		ErrorTokens: []string{
			"ERROR", "BUSY", "NO CARRIER", "NO ANSWER", "NO DIALTONE",
			"ABORTED", "+CMS ERROR", "+CME ERROR", "SEND FAIL",
		},
		BareURCTokens: []string{
			TokenNormalPowerDown, TokenPSMPowerDown, TokenReady,
		},
	}
}
