package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebula-lang/nebula/pkg/lexer"
	"github.com/nebula-lang/nebula/pkg/token"
)

func TestNextTokenBasicPunctuation(t *testing.T) {
	input := `. , ; # & + - * / \ ^ := = < > <= >= <> :`
	want := []token.Kind{
		token.DOT, token.COMMA, token.SEMICOLON, token.HASH, token.AMP,
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.BACKSLASH,
		token.CARET, token.ASSIGN, token.EQ, token.LT, token.GT, token.LE,
		token.GE, token.NE, token.COLON, token.EOF,
	}

	l := lexer.New(input)
	for i, k := range want {
		tok := l.NextToken()
		require.Equalf(t, k, tok.Kind, "token %d", i)
	}
}

func TestIdentifiersAreUppercasedAndCaseInsensitive(t *testing.T) {
	l := lexer.New("myVar MYVAR myvar")
	for i := 0; i < 3; i++ {
		tok := l.NextToken()
		assert.Equal(t, token.IDENTIFIER, tok.Kind)
		assert.Equal(t, "MYVAR", tok.Literal)
	}
}

func TestLogicalKeywords(t *testing.T) {
	l := lexer.New("And Or Xor Not Mod True False")
	want := []token.Kind{token.AND, token.OR, token.XOR, token.NOT, token.MOD, token.TRUE, token.FALSE}
	for _, k := range want {
		tok := l.NextToken()
		assert.Equal(t, k, tok.Kind)
	}
}

func TestIntegerAndFloatLiterals(t *testing.T) {
	l := lexer.New("42 3.14 7")
	tok := l.NextToken()
	assert.Equal(t, token.INTEGER, tok.Kind)
	assert.Equal(t, "42", tok.Literal)

	tok = l.NextToken()
	assert.Equal(t, token.FLOAT, tok.Kind)
	assert.Equal(t, "3.14", tok.Literal)

	tok = l.NextToken()
	assert.Equal(t, token.INTEGER, tok.Kind)
	assert.Equal(t, "7", tok.Literal)
}

func TestDoubleQuotedStringEscapes(t *testing.T) {
	l := lexer.New(`"a\"b\\c"`)
	tok := l.NextToken()
	assert.Equal(t, token.STRING, tok.Kind)
	assert.Equal(t, `a"b\c`, tok.Literal)
}

func TestSingleQuotedStringHasNoEscapes(t *testing.T) {
	l := lexer.New(`'a\b'`)
	tok := l.NextToken()
	assert.Equal(t, token.STRING, tok.Kind)
	assert.Equal(t, `a\b`, tok.Literal)
}

func TestLineComment(t *testing.T) {
	l := lexer.New("1 % this is a comment\n2")
	tok := l.NextToken()
	assert.Equal(t, "1", tok.Literal)
	tok = l.NextToken()
	assert.Equal(t, "2", tok.Literal)
}
