package at

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimPrefix(t *testing.T) {
	patterns := []struct {
		name string
		line string
		out  string
		err  error
	}{
		{"plain", "+CPIN:READY", "READY", nil},
		{"space after colon", "+CGPADDR: 1,\"10.0.0.1\"", " 1,\"10.0.0.1\"", nil},
		{"empty tail", "+CSQ:", "", nil},
		{"empty", "", "", ErrBadParameter},
		{"no colon", "+CPINREADY", "", ErrBadParameter},
		{"wrong leading char", "CPIN:READY", "", ErrBadParameter},
		{"bad prefix char", "+CP IN:READY", "", ErrBadParameter},
		{"prefix too long", "+ABCDEFGHIJKLMNOPQRSTUVWXYZABCDEFGH:x", "", ErrBadParameter},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			out, err := TrimPrefix(p.line)
			assert.Equal(t, p.err, errCause(err))
			assert.Equal(t, p.out, out)
		}
		t.Run(p.name, f)
	}
}

func TestTrimPrefixOversizeLine(t *testing.T) {
	line := "+CPIN:"
	for len(line) <= MaxStringSize {
		line += "x"
	}
	_, err := TrimPrefix(line)
	assert.Equal(t, ErrBadParameter, errCause(err))
}

func TestHasPrefix(t *testing.T) {
	patterns := []struct {
		line string
		ok   bool
	}{
		{"+CREG: 1,5", true},
		{"+QIRD: 32", true},
		{"+MY_URC: 0", true},
		{"OK", false},
		{"", false},
		{"+NO COLON", false},
		{"+BAD CHAR: 1", false},
		{"RDY", false},
	}
	for _, p := range patterns {
		assert.Equal(t, p.ok, HasPrefix(p.line), p.line)
	}
}

func TestPrefixMatches(t *testing.T) {
	patterns := []struct {
		line   string
		prefix string
		ok     bool
	}{
		{"+CGPADDR: 1", "+CGPADDR", true},
		{"+CGPADDR: 1", "+CGPADDR:", true},
		{"+CGPADDR2: 1", "+CGPADDR", false},
		{"+CGPADDR", "+CGPADDR", true},
		{"+CGP: 1", "+CGPADDR", false},
		{"", "+X", false},
		{"+X: 1", "", false},
	}
	for _, p := range patterns {
		assert.Equal(t, p.ok, PrefixMatches(p.line, p.prefix), p.line)
	}
}

func TestWhiteSpace(t *testing.T) {
	out, err := TrimLeadingWhiteSpace("  abc ")
	require.Nil(t, err)
	assert.Equal(t, "abc ", out)

	// leading whitespace removal is idempotent over added padding.
	again, err := TrimLeadingWhiteSpace(" " + out)
	require.Nil(t, err)
	assert.Equal(t, out, again)

	out, err = TrimTrailingWhiteSpace(" abc \r\n")
	require.Nil(t, err)
	assert.Equal(t, " abc", out)

	out, err = StripWhiteSpace(" a b\tc ")
	require.Nil(t, err)
	assert.Equal(t, "abc", out)

	_, err = TrimLeadingWhiteSpace("")
	assert.Equal(t, ErrBadParameter, errCause(err))
	_, err = TrimTrailingWhiteSpace("")
	assert.Equal(t, ErrBadParameter, errCause(err))
	_, err = StripWhiteSpace("")
	assert.Equal(t, ErrBadParameter, errCause(err))
}

func TestQuotes(t *testing.T) {
	out, err := TrimOutermostQuotes(`"10.0.0.1"`)
	require.Nil(t, err)
	assert.Equal(t, "10.0.0.1", out)

	out, err = TrimOutermostQuotes(`a"b"c`)
	require.Nil(t, err)
	assert.Equal(t, `a"b"c`, out)

	out, err = StripQuotes(`"SM","ME"`)
	require.Nil(t, err)
	assert.Equal(t, "SM,ME", out)

	_, err = TrimOutermostQuotes("")
	assert.Equal(t, ErrBadParameter, errCause(err))
}

func TestNextToken(t *testing.T) {
	tok, rest, err := NextToken("1,5,9")
	require.Nil(t, err)
	assert.Equal(t, "1", tok)
	assert.Equal(t, "5,9", rest)

	tok, rest, err = NextToken(rest)
	require.Nil(t, err)
	assert.Equal(t, "5", tok)
	assert.Equal(t, "9", rest)

	tok, rest, err = NextToken(rest)
	require.Nil(t, err)
	assert.Equal(t, "9", tok)
	assert.Equal(t, "", rest)

	_, _, err = NextToken(rest)
	assert.Equal(t, ErrBadParameter, errCause(err))

	tok, rest, err = NextTokenDelim("a;b", ';')
	require.Nil(t, err)
	assert.Equal(t, "a", tok)
	assert.Equal(t, "b", rest)
}

func TestHexToBytes(t *testing.T) {
	out := make([]byte, 4)
	require.Nil(t, HexToBytes("DEADBEEF", out))
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, out)
	require.Nil(t, HexToBytes("deadbeef", out))
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, out)

	assert.Equal(t, ErrBadParameter, errCause(HexToBytes("DEAD", out)))
	assert.Equal(t, ErrBadParameter, errCause(HexToBytes("", out)))
	assert.Equal(t, ErrBadParameter, errCause(HexToBytes("GGGGGGGG", out)))
}

func TestIsDigitString(t *testing.T) {
	patterns := []struct {
		s  string
		ok bool
	}{
		{"0123456789", true},
		{"5", true},
		{"", false},
		{"12a", false},
		{"-12", false},
		{" 12", false},
	}
	for _, p := range patterns {
		assert.Equal(t, p.ok, IsDigitString(p.s), p.s)
	}
}

func TestStartsWith(t *testing.T) {
	assert.True(t, StartsWith("+CREG: 1", "+CREG"))
	assert.False(t, StartsWith("", "+CREG"))
	assert.False(t, StartsWith("+CREG", ""))
	assert.False(t, StartsWith("+CREG", "+CREGX"))
}

func TestParseInt(t *testing.T) {
	// agrees with strconv on strictly numeric input.
	for _, s := range []string{"0", "42", "-7", "31"} {
		want, serr := strconv.Atoi(s)
		require.Nil(t, serr)
		v, err := ParseInt(s, 10)
		require.Nil(t, err)
		assert.Equal(t, int32(want), v)
	}
	v, err := ParseInt("1F", 16)
	require.Nil(t, err)
	assert.Equal(t, int32(31), v)

	for _, s := range []string{"", "12x", "4.2", " 12"} {
		_, err := ParseInt(s, 10)
		assert.Equal(t, ErrBadParameter, errCause(err), s)
	}
}

func TestContainsAnyToken(t *testing.T) {
	keys := []string{"+CME ERROR", "+CMS ERROR"}
	assert.True(t, ContainsAnyToken("+CME ERROR: 21", keys))
	assert.False(t, ContainsAnyToken("+CREG: 1", keys))
	assert.False(t, ContainsAnyToken("", keys))
	assert.False(t, ContainsAnyToken("anything", nil))
}

// errCause unwraps the annotation applied by the tokenizer.
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
