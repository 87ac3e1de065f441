// Package lexer implements the tokenizer: identifiers, integer
// and float literals, double- and single-quoted string literals,
// punctuation, and the logical/Mod keywords. Identifiers are
// case-insensitive; the tokenizer normalizes them to upper case so every
// downstream consumer (the statement compiler's keyword set, Context
// name resolution) compares spellings uniformly. `%` starts a line
// comment.
package lexer

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nebula-lang/nebula/pkg/token"
)

// upperCaser performs Unicode-aware upper-casing so identifiers outside
// ASCII (accented host-language translations of property names, say)
// normalize consistently rather than via a byte-wise ASCII-only fold.
var upperCaser = cases.Upper(language.Und)

// Lexer turns source text into a Token stream.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
}

// New creates a Lexer over input.
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken returns the next Token from the input.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	tok := token.Token{Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		tok.Kind = token.EOF
	case '"':
		tok.Kind = token.STRING
		tok.Literal = l.readEscapedString('"')
	case '\'':
		tok.Kind = token.STRING
		tok.Literal = l.readRawString('\'')
	case '(':
		tok.Kind, tok.Literal = token.LPAREN, "("
		l.readChar()
	case ')':
		tok.Kind, tok.Literal = token.RPAREN, ")"
		l.readChar()
	case '.':
		tok.Kind, tok.Literal = token.DOT, "."
		l.readChar()
	case ',':
		tok.Kind, tok.Literal = token.COMMA, ","
		l.readChar()
	case ';':
		tok.Kind, tok.Literal = token.SEMICOLON, ";"
		l.readChar()
	case '#':
		tok.Kind, tok.Literal = token.HASH, "#"
		l.readChar()
	case '&':
		tok.Kind, tok.Literal = token.AMP, "&"
		l.readChar()
	case '+':
		tok.Kind, tok.Literal = token.PLUS, "+"
		l.readChar()
	case '-':
		tok.Kind, tok.Literal = token.MINUS, "-"
		l.readChar()
	case '*':
		tok.Kind, tok.Literal = token.STAR, "*"
		l.readChar()
	case '/':
		tok.Kind, tok.Literal = token.SLASH, "/"
		l.readChar()
	case '\\':
		tok.Kind, tok.Literal = token.BACKSLASH, `\`
		l.readChar()
	case '^':
		tok.Kind, tok.Literal = token.CARET, "^"
		l.readChar()
	case ':':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			tok.Kind, tok.Literal = token.ASSIGN, ":="
		} else {
			l.readChar()
			tok.Kind, tok.Literal = token.COLON, ":"
		}
	case '=':
		tok.Kind, tok.Literal = token.EQ, "="
		l.readChar()
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			tok.Kind, tok.Literal = token.LE, "<="
		case '>':
			l.readChar()
			l.readChar()
			tok.Kind, tok.Literal = token.NE, "<>"
		default:
			l.readChar()
			tok.Kind, tok.Literal = token.LT, "<"
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			tok.Kind, tok.Literal = token.GE, ">="
		} else {
			l.readChar()
			tok.Kind, tok.Literal = token.GT, ">"
		}
	default:
		switch {
		case isLetter(l.ch):
			lit := l.readIdentifier()
			upper := upperCaser.String(lit)
			tok.Literal = upper
			tok.Kind = token.LookupIdentifier(upper)
		case isDigit(l.ch):
			tok.Kind, tok.Literal = l.readNumber()
		default:
			tok.Kind, tok.Literal = token.ILLEGAL, string(l.ch)
			l.readChar()
		}
	}

	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '\n':
			l.line++
			l.column = 0
			l.readChar()
		case l.ch == '%':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readEscapedString reads a double-quoted string with backslash escapes
// for the quote character and the backslash itself.
func (l *Lexer) readEscapedString(quote byte) string {
	l.readChar() // opening quote
	var out []byte
	for l.ch != quote && l.ch != 0 {
		if l.ch == '\\' && (l.peekChar() == quote || l.peekChar() == '\\') {
			l.readChar()
			out = append(out, l.ch)
			l.readChar()
			continue
		}
		if l.ch == '\n' {
			l.line++
			l.column = 0
		}
		out = append(out, l.ch)
		l.readChar()
	}
	l.readChar() // closing quote
	return string(out)
}

// readRawString reads a single-quoted string with no escape processing.
func (l *Lexer) readRawString(quote byte) string {
	l.readChar() // opening quote
	start := l.position
	for l.ch != quote && l.ch != 0 {
		if l.ch == '\n' {
			l.line++
			l.column = 0
		}
		l.readChar()
	}
	s := l.input[start:l.position]
	l.readChar() // closing quote
	return s
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber reads a decimal integer or float literal. A '.' only
// continues the number if followed by another digit, so a trailing
// period used as a statement terminator is not consumed.
func (l *Lexer) readNumber() (token.Kind, string) {
	start := l.position
	isFloat := false
	for isDigit(l.ch) || l.ch == '.' {
		if l.ch == '.' {
			if isFloat || !isDigit(l.peekChar()) {
				break
			}
			isFloat = true
		}
		l.readChar()
	}
	lit := l.input[start:l.position]
	if isFloat {
		return token.FLOAT, lit
	}
	return token.INTEGER, lit
}

func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
