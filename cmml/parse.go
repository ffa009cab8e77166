package cmml

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/arloliu/mws/errs"
)

// Parse reads a formula written in the compact notation.
//
// Grammar:
//
//	term  := '?' [name] | '[' [number] ',' [number] ']' | name [':' text] ['(' [term {',' term}] ')']
//	text  := quoted-string | run of characters other than ",()[]?: and whitespace
//
// Parameters:
//   - s: Notation string
//
// Returns:
//   - *Node: Root of the parsed tree
//   - error: errs.ErrInvalidNotation with the failing position
func Parse(s string) (*Node, error) {
	p := &parser{src: s}
	p.skipSpace()

	n, err := p.term()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}

	return n, nil
}

// MustParse is like Parse but panics on error. Intended for tests and fixtures.
func MustParse(s string) *Node {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return n
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: at %d: %s", errs.ErrInvalidNotation, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}

	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) term() (*Node, error) {
	switch c := p.peek(); {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '?':
		p.pos++
		return NewVar(p.name()), nil
	case c == '[':
		return p.rangeTerm()
	}

	tag := p.name()
	if tag == "" {
		return nil, p.errorf("expected element name")
	}

	n := NewConstant(tag, "")
	if p.peek() == ':' {
		p.pos++
		text, err := p.text()
		if err != nil {
			return nil, err
		}
		n.Text = text
	}

	p.skipSpace()
	if p.peek() != '(' {
		return n, nil
	}
	p.pos++
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return n, nil
	}

	for {
		p.skipSpace()
		child, err := p.term()
		if err != nil {
			return nil, err
		}
		n.AddChild(child)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return n, nil
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

func (p *parser) name() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '-' && c != '.' {
			break
		}
		p.pos++
	}

	return p.src[start:p.pos]
}

func (p *parser) text() (string, error) {
	if p.peek() == '"' {
		end := p.pos + 1
		for end < len(p.src) && p.src[end] != '"' {
			if p.src[end] == '\\' {
				end++
			}
			end++
		}
		if end >= len(p.src) {
			return "", p.errorf("unterminated string")
		}

		s, err := strconv.Unquote(p.src[p.pos : end+1])
		if err != nil {
			return "", p.errorf("bad string: %v", err)
		}
		p.pos = end + 1

		return s, nil
	}

	start := p.pos
	for p.pos < len(p.src) && !isDelimiter(rune(p.src[p.pos])) {
		p.pos++
	}

	return p.src[start:p.pos], nil
}

func (p *parser) rangeTerm() (*Node, error) {
	p.pos++ // '['
	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return nil, p.errorf("unterminated range")
	}

	body := p.src[p.pos : p.pos+end]
	loStr, hiStr, ok := strings.Cut(body, ",")
	if !ok {
		return nil, p.errorf("range needs two bounds")
	}

	lo, err := bound(loStr, math.Inf(-1))
	if err != nil {
		return nil, p.errorf("bad lower bound: %v", err)
	}
	hi, err := bound(hiStr, math.Inf(1))
	if err != nil {
		return nil, p.errorf("bad upper bound: %v", err)
	}
	if lo > hi {
		return nil, p.errorf("empty range [%v,%v]", lo, hi)
	}
	p.pos += end + 1

	return NewRange(lo, hi), nil
}

func bound(s string, missing float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return missing, nil
	}

	return strconv.ParseFloat(s, 64)
}

func isDelimiter(r rune) bool {
	switch r {
	case ',', '(', ')', '[', ']', '?', ':', '"':
		return true
	}

	return unicode.IsSpace(r)
}
