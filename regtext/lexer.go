// Package regtext implements the human-readable text form of a register
// file plus function: a line-oriented format that parses into the ir types
// and prints back canonically, so fixtures round-trip byte for byte.
package regtext

import "github.com/pkg/errors"

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokLBrace
	tokRBrace
	tokColon
)

func (k tokKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "end of line"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokColon:
		return "':'"
	default:
		return "token?"
	}
}

type token struct {
	kind tokKind
	text string
	line int
}

// lexer scans the source one token at a time. Newlines terminate
// declarations and instructions, so they are tokens; runs of blank and
// comment-only lines collapse into one.
type lexer struct {
	src  []byte
	pos  int
	line int
}

func newLexer(src []byte) *lexer { return &lexer{src: src, line: 1} }

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '\n':
			tok := token{kind: tokNewline, line: l.line}
			l.pos++
			l.line++
			l.skipBlank()
			return tok, nil
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '{':
			l.pos++
			return token{tokLBrace, "{", l.line}, nil
		case c == '}':
			l.pos++
			return token{tokRBrace, "}", l.line}, nil
		case c == ':':
			l.pos++
			return token{tokColon, ":", l.line}, nil
		case isDigit(c) || c == '-' || c == '+':
			start := l.pos
			for l.pos < len(l.src) && isNumChar(l.src[l.pos]) {
				l.pos++
			}
			return token{tokNumber, string(l.src[start:l.pos]), l.line}, nil
		case isIdentStart(c):
			start := l.pos
			for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
				l.pos++
			}
			return token{tokIdent, string(l.src[start:l.pos]), l.line}, nil
		default:
			return token{}, errors.Errorf("line %d: unexpected character %q", l.line, c)
		}
	}
	return token{kind: tokEOF, line: l.line}, nil
}

func (l *lexer) skipBlank() {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; {
		case c == '\n':
			l.pos++
			l.line++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNumChar(c byte) bool {
	return isDigit(c) || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
