package css

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"github.com/tdewolff/parse/v2/strconv"

	"csscc/diag"
)

// TokenKind classifies lexer output.
type TokenKind int

const (
	EOF TokenKind = iota
	Ident
	Function   // name followed by "(", Value has no parenthesis
	AtKeyword  // Value has no "@"
	Hash       // Value has no "#"
	String     // Value is unquoted and unescaped
	Number     // unitless number
	Percentage // Num with Unit "%"
	Dimension  // Num with lower-cased Unit
	URL        // Value is the url() payload
	Delim      // punctuation, Raw holds the characters
)

func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "Ident"
	case Function:
		return "Function"
	case AtKeyword:
		return "AtKeyword"
	case Hash:
		return "Hash"
	case String:
		return "String"
	case Number:
		return "Number"
	case Percentage:
		return "Percentage"
	case Dimension:
		return "Dimension"
	case URL:
		return "URL"
	case Delim:
		return "Delim"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is a single lexeme. Whitespace and comments are never emitted,
// SpaceBefore records that some preceded the token.
type Token struct {
	Kind        TokenKind
	Raw         string // source text
	Value       string // see TokenKind
	Num         float64 // NaN when out of float64 range
	Unit        string
	Offset      int // byte offset in preprocessed source
	SpaceBefore bool
	HexColor    bool // Hash with 3, 4, 6 or 8 hex digits
}

// Finite reports whether a numeric token is within float64 range.
func (t Token) Finite() bool {
	return !math.IsNaN(t.Num)
}

// IsDelim reports whether t is punctuation s.
func (t Token) IsDelim(s string) bool {
	return t.Kind == Delim && t.Raw == s
}

// IsIdent reports whether t is identifier name (ASCII case-insensitive).
func (t Token) IsIdent(name string) bool {
	return t.Kind == Ident && strings.EqualFold(t.Value, name)
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Raw)
}

// Preprocess applies CSS input preprocessing: NUL and invalid UTF-8 become
// U+FFFD. Offsets in tokens and diagnostics refer to the result.
func Preprocess(src string) string {
	if !strings.ContainsRune(src, 0) && utf8.ValidString(src) {
		return src
	}
	return strings.ToValidUTF8(strings.ReplaceAll(src, "\x00", "\uFFFD"), "\uFFFD")
}

// Tokenize runs a single forward pass over src and materializes the token
// buffer. The last token is always EOF. The first unrecoverable lexeme
// aborts with *diag.LexError.
func Tokenize(src string) ([]Token, error) {
	src = Preprocess(src)
	l := css.NewLexer(parse.NewInputString(src))

	toks := make([]Token, 0, len(src)/4+1)
	offset, space := 0, false
	for {
		tt, data := l.Next()
		start := offset
		offset += len(data)

		tok := Token{Raw: string(data), Offset: start, SpaceBefore: space}
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tokenize at offset %d: %w", start, err)
			}
			toks = append(toks, Token{Kind: EOF, Offset: len(src), SpaceBefore: space})
			return toks, nil

		case css.WhitespaceToken, css.CommentToken, css.CDOToken, css.CDCToken:
			space = true
			continue

		case css.BadStringToken:
			return nil, &diag.LexError{Kind: diag.UnterminatedString, Pos: diag.Position{Offset: start}}

		case css.StringToken:
			if !stringTerminated(data) {
				return nil, &diag.LexError{Kind: diag.UnterminatedString, Pos: diag.Position{Offset: start}}
			}
			tok.Kind = String
			tok.Value = unescape(tok.Raw[1 : len(tok.Raw)-1])

		case css.IdentToken, css.CustomPropertyNameToken:
			tok.Kind = Ident
			tok.Value = unescape(tok.Raw)

		case css.FunctionToken:
			tok.Kind = Function
			tok.Value = unescape(strings.TrimSuffix(tok.Raw, "("))

		case css.AtKeywordToken:
			tok.Kind = AtKeyword
			tok.Value = unescape(tok.Raw[1:])

		case css.HashToken:
			tok.Kind = Hash
			tok.Value = unescape(tok.Raw[1:])
			tok.HexColor = isHexColor(tok.Value)

		case css.NumberToken:
			tok.Kind = Number
			tok.Num = parseNumber(data)

		case css.PercentageToken:
			tok.Kind = Percentage
			tok.Num = parseNumber(data[:len(data)-1])
			tok.Unit = "%"

		case css.DimensionToken:
			tok.Kind = Dimension
			n, _ := parse.Dimension(data)
			if n == 0 {
				n = len(data)
			}
			tok.Num = parseNumber(data[:n])
			tok.Unit = strings.ToLower(unescape(string(data[n:])))

		case css.URLToken, css.BadURLToken:
			tok.Kind = URL
			tok.Value = urlPayload(tok.Raw)

		case css.DelimToken:
			if tok.Raw == `\` {
				return nil, &diag.LexError{Kind: diag.InvalidEscape, Pos: diag.Position{Offset: start}}
			}
			tok.Kind = Delim

		default:
			// colon, semicolon, comma, brackets, match operators, unicode ranges
			tok.Kind = Delim
		}
		toks = append(toks, tok)
		space = false
	}
}

// parseNumber returns NaN for numbers that overflow float64 or underflow
// a nonzero mantissa to zero.
func parseNumber(b []byte) float64 {
	f, n := strconv.ParseFloat(b)
	if n != len(b) {
		return 0
	}
	if !nonzeroMantissa(b) {
		return 0
	}
	if f == 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return math.NaN()
	}
	return f
}

func nonzeroMantissa(b []byte) bool {
	for _, c := range b {
		switch {
		case c == 'e' || c == 'E':
			return false
		case c >= '1' && c <= '9':
			return true
		}
	}
	return false
}

// stringTerminated checks that quoted string data ends with its unescaped
// opening quote (strings closed by EOF are lexed without one).
func stringTerminated(data []byte) bool {
	if len(data) < 2 || data[len(data)-1] != data[0] {
		return false
	}
	escapes := 0
	for i := len(data) - 2; i > 0 && data[i] == '\\'; i-- {
		escapes++
	}
	return escapes%2 == 0
}

func isHexColor(s string) bool {
	switch len(s) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHex(s[i]) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func hexValue(c byte) rune {
	switch {
	case c >= '0' && c <= '9':
		return rune(c - '0')
	case c >= 'a' && c <= 'f':
		return rune(c-'a') + 10
	default:
		return rune(c-'A') + 10
	}
}

// unescape resolves CSS escapes: up to six hex digits with one optional
// trailing whitespace, escaped newline (dropped) or any other escaped char.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch {
		case isHex(s[i]):
			var r rune
			j := i
			for ; j < len(s) && j-i < 6 && isHex(s[j]); j++ {
				r = r*16 + hexValue(s[j])
			}
			if r == 0 || r > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
				r = utf8.RuneError
			}
			b.WriteRune(r)
			if j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n') {
				j++
			}
			i = j - 1
		case s[i] == '\n' || s[i] == '\f':
		case s[i] == '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func urlPayload(raw string) string {
	inner := raw
	if i := strings.IndexByte(inner, '('); i >= 0 {
		inner = inner[i+1:]
	}
	inner = strings.TrimSpace(strings.TrimSuffix(inner, ")"))
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		inner = inner[1 : len(inner)-1]
	}
	return unescape(inner)
}
