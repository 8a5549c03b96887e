// Package sigscan locates code and data in a binary image by byte signature.
//
// Patterns use the usual IDA style notation: hex bytes separated by spaces,
// "??" (or a lone "?") for a wildcard byte and "5?" / "?5" for a wildcard
// nibble. Runs of hex digits are split into bytes, so "0F84 ????????" is six
// bytes. A single range may be wrapped in braces to mark the operand that
// should be resolved once the pattern has been found:
//
//	E8 {????????} 48 8B 7C 24 ??
package sigscan

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPatternNotFound means the pattern has no match in the image
	ErrPatternNotFound = errors.New("pattern not found")
	// ErrPatternAmbiguous means the pattern has more than one match
	ErrPatternAmbiguous = errors.New("pattern matched more than once")
	// ErrBadPattern means the pattern text could not be parsed
	ErrBadPattern = errors.New("bad pattern")
)

// Pattern is a fixed length byte template with wildcard positions.
type Pattern struct {
	value []byte
	mask  []byte
	// start and length of the braced range, start is -1 if there is none
	capture    int
	captureLen int
	text       string
}

// Parse parses a pattern string.
func Parse(s string) (Pattern, error) {
	p := Pattern{capture: -1, text: s}
	open := false
	var nibbles []byte
	flush := func() error {
		if len(nibbles)%2 != 0 {
			return fmt.Errorf("%w: odd number of digits in %q", ErrBadPattern, s)
		}
		for i := 0; i < len(nibbles); i += 2 {
			v, m := nibble(nibbles[i])
			lv, lm := nibble(nibbles[i+1])
			p.value = append(p.value, v<<4|lv)
			p.mask = append(p.mask, m<<4|lm)
		}
		nibbles = nibbles[:0]
		return nil
	}

	for _, tok := range strings.Fields(s) {
		if tok == "?" {
			p.value = append(p.value, 0)
			p.mask = append(p.mask, 0)
			continue
		}
		for i := 0; i < len(tok); i++ {
			c := tok[i]
			switch {
			case c == '{':
				if open || p.capture >= 0 {
					return Pattern{}, fmt.Errorf("%w: only one capture allowed in %q", ErrBadPattern, s)
				}
				if err := flush(); err != nil {
					return Pattern{}, err
				}
				open = true
				p.capture = len(p.value)
			case c == '}':
				if !open {
					return Pattern{}, fmt.Errorf("%w: unbalanced '}' in %q", ErrBadPattern, s)
				}
				if err := flush(); err != nil {
					return Pattern{}, err
				}
				open = false
				p.captureLen = len(p.value) - p.capture
			case c == '?' || isHex(c):
				nibbles = append(nibbles, c)
			default:
				return Pattern{}, fmt.Errorf("%w: unexpected %q in %q", ErrBadPattern, c, s)
			}
		}
		if err := flush(); err != nil {
			return Pattern{}, err
		}
	}
	if open {
		return Pattern{}, fmt.Errorf("%w: unbalanced '{' in %q", ErrBadPattern, s)
	}
	if len(p.value) == 0 {
		return Pattern{}, fmt.Errorf("%w: empty pattern", ErrBadPattern)
	}
	return p, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Len is the number of bytes the pattern covers.
func (p Pattern) Len() int { return len(p.value) }

// Capture returns the braced range, if any.
func (p Pattern) Capture() (offset, length int, ok bool) {
	if p.capture < 0 {
		return 0, 0, false
	}
	return p.capture, p.captureLen, true
}

func (p Pattern) String() string { return p.text }

// Match reports whether b starts with bytes matching the pattern.
func (p Pattern) Match(b []byte) bool {
	if len(b) < len(p.value) {
		return false
	}
	for i, m := range p.mask {
		if b[i]&m != p.value[i] {
			return false
		}
	}
	return true
}

// index returns the offset of the first match in data at or after from, or -1.
func (p Pattern) index(data []byte, from int) int {
	n := len(p.value)
	anchored := p.mask[0] == 0xff
	for i := from; i+n <= len(data); i++ {
		if anchored {
			j := bytes.IndexByte(data[i:len(data)-n+1], p.value[0])
			if j < 0 {
				return -1
			}
			i += j
		}
		if p.Match(data[i:]) {
			return i
		}
	}
	return -1
}

func nibble(c byte) (value, mask byte) {
	switch {
	case c == '?':
		return 0, 0
	case c >= '0' && c <= '9':
		return c - '0', 0xf
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, 0xf
	default:
		return c - 'A' + 10, 0xf
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
