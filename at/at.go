// Package at provides primitives for dissecting the line-oriented text
// emitted by 3GPP AT modems: prefix handling, whitespace and quote
// stripping, token extraction and strict numeric parsing.
//
// All functions operate on plain strings and report malformed input with
// ErrBadParameter rather than guessing.
package at

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxStringSize is the largest modem line the tokenizer accepts.
const MaxStringSize = 256

// MaxPrefixLength is the longest information-response prefix, excluding
// the leading character and the colon.
const MaxPrefixLength = 32

// ErrBadParameter indicates the input did not satisfy the precondition of
// the operation, e.g. an empty line or a missing delimiter.
var ErrBadParameter = errors.New("bad parameter")

// IsPrefixLeadingChar reports whether b may start an information-response
// prefix. Replaceable for modems that use a non-standard leading character.
var IsPrefixLeadingChar = func(b byte) bool { return b == '+' }

// IsPrefixChar reports whether b may occur within a prefix between the
// leading character and the colon.
var IsPrefixChar = func(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' ||
		b >= '0' && b <= '9' || b == '_' || IsPrefixLeadingChar(b)
}

// TrimPrefix strips a leading "+XXX:" prefix from line and returns the
// remainder. The remainder keeps any whitespace that followed the colon.
func TrimPrefix(line string) (string, error) {
	if line == "" || len(line) > MaxStringSize {
		return "", ErrBadParameter
	}
	if !IsPrefixLeadingChar(line[0]) {
		return "", ErrBadParameter
	}
	colon := strings.IndexByte(line, ':')
	if colon < 0 || colon > MaxPrefixLength+1 {
		return "", ErrBadParameter
	}
	for i := 1; i < colon; i++ {
		if !IsPrefixChar(line[i]) {
			return "", ErrBadParameter
		}
	}
	return line[colon+1:], nil
}

// HasPrefix reports whether line begins with a well-formed information
// response prefix, i.e. a leading character followed by prefix characters
// up to a colon.
func HasPrefix(line string) bool {
	if line == "" || !IsPrefixLeadingChar(line[0]) {
		return false
	}
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return false
	}
	for i := 1; i < colon; i++ {
		if !IsPrefixChar(line[i]) {
			return false
		}
	}
	return true
}

// PrefixMatches reports whether line carries the given "+XXX" prefix.
// The prefix may be given with or without the trailing colon.
func PrefixMatches(line, prefix string) bool {
	if line == "" || prefix == "" {
		return false
	}
	prefix = strings.TrimSuffix(prefix, ":")
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	// The byte after the prefix must end it, not extend it, so that
	// "+CGPADDR2:" does not match prefix "+CGPADDR".
	if len(line) == len(prefix) {
		return true
	}
	next := line[len(prefix)]
	return !IsPrefixChar(next) || next == ':'
}

// TrimLeadingWhiteSpace removes leading spaces and tabs.
func TrimLeadingWhiteSpace(line string) (string, error) {
	if line == "" {
		return "", ErrBadParameter
	}
	return strings.TrimLeft(line, " \t"), nil
}

// TrimTrailingWhiteSpace removes trailing spaces, tabs and line
// terminators.
func TrimTrailingWhiteSpace(line string) (string, error) {
	if line == "" {
		return "", ErrBadParameter
	}
	return strings.TrimRight(line, " \t\r\n"), nil
}

// StripWhiteSpace removes every space and tab from line.
func StripWhiteSpace(line string) (string, error) {
	if line == "" {
		return "", ErrBadParameter
	}
	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < len(line); i++ {
		if line[i] != ' ' && line[i] != '\t' {
			b.WriteByte(line[i])
		}
	}
	return b.String(), nil
}

// TrimOutermostQuotes removes one leading and one trailing double quote,
// if present.
func TrimOutermostQuotes(line string) (string, error) {
	if line == "" {
		return "", ErrBadParameter
	}
	if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
		return line[1 : len(line)-1], nil
	}
	return line, nil
}

// StripQuotes removes every double quote from line.
func StripQuotes(line string) (string, error) {
	if line == "" {
		return "", ErrBadParameter
	}
	return strings.ReplaceAll(line, `"`, ""), nil
}

// NextToken consumes up to the next comma and returns the token and the
// remainder following the comma.
func NextToken(s string) (tok, rest string, err error) {
	return NextTokenDelim(s, ',')
}

// NextTokenDelim consumes up to the next delim byte and returns the token
// and the remainder following the delimiter. When no delimiter remains the
// whole input is the token and the remainder is empty.
func NextTokenDelim(s string, delim byte) (tok, rest string, err error) {
	if s == "" {
		return "", "", ErrBadParameter
	}
	if i := strings.IndexByte(s, delim); i >= 0 {
		return s[:i], s[i+1:], nil
	}
	return s, "", nil
}

// HexToBytes decodes a hex string into out. The string must decode to
// exactly len(out) bytes.
func HexToBytes(s string, out []byte) error {
	if s == "" || len(s) != 2*len(out) {
		return ErrBadParameter
	}
	if _, err := hex.Decode(out, []byte(s)); err != nil {
		return errors.Wrap(ErrBadParameter, err.Error())
	}
	return nil
}

// IsDigitString reports whether every byte of s is an ASCII digit.
// An empty string is not a digit string.
func IsDigitString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// StartsWith reports whether s begins with prefix. Unlike
// strings.HasPrefix it rejects empty inputs.
func StartsWith(s, prefix string) bool {
	if s == "" || prefix == "" {
		return false
	}
	return strings.HasPrefix(s, prefix)
}

// ParseInt parses s as an integer in the given base. Trailing garbage is
// an error.
func ParseInt(s string, base int) (int32, error) {
	if s == "" {
		return 0, ErrBadParameter
	}
	v, err := strconv.ParseInt(s, base, 32)
	if err != nil {
		return 0, errors.Wrap(ErrBadParameter, err.Error())
	}
	return int32(v), nil
}

// ContainsAnyToken reports whether any of the keys occurs within line.
func ContainsAnyToken(line string, keys []string) bool {
	if line == "" {
		return false
	}
	for _, k := range keys {
		if k != "" && strings.Contains(line, k) {
			return true
		}
	}
	return false
}
