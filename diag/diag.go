// Package diag defines compilation error taxonomy.
//
// LexError is fatal for the stylesheet. ParseError and ValidationError are
// recoverable: offending rule, declaration or @media block is dropped and
// compilation continues, errors are accumulated as diagnostics.
package diag

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// Position locates diagnostic in the source text. Line and Col are 1-based
// and are zero until the error has been located (see Locator).
type Position struct {
	Offset int
	Line   int
	Col    int
}

func (p Position) String() string {
	if p.Line == 0 {
		return fmt.Sprintf("offset %d", p.Offset)
	}
	return fmt.Sprintf("line %d, column %d", p.Line, p.Col)
}

// LexErrorKind enumerates unrecoverable tokenizer failures.
type LexErrorKind int

const (
	UnterminatedString LexErrorKind = iota
	InvalidEscape
)

func (k LexErrorKind) String() string {
	switch k {
	case UnterminatedString:
		return "unterminated string"
	case InvalidEscape:
		return "invalid escape"
	default:
		return fmt.Sprintf("LexErrorKind(%d)", int(k))
	}
}

type LexError struct {
	Kind LexErrorKind
	Pos  Position
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error: %s at %s", e.Kind, e.Pos)
}

// ParseErrorKind enumerates recoverable syntax failures.
type ParseErrorKind int

const (
	UnexpectedToken ParseErrorKind = iota
	UnexpectedEOF
	InvalidSelector
	UnsupportedSelector
	MissingColon
	EmptyValue
	InvalidDeclaration
	UnsupportedAtRule
	NestedAtRule
	UnbalancedBlock
	InvalidAtRule
	MisplacedImport
)

var parseErrorNames = map[ParseErrorKind]string{
	UnexpectedToken:     "unexpected token",
	UnexpectedEOF:       "unexpected end of input",
	InvalidSelector:     "invalid selector",
	UnsupportedSelector: "unsupported selector",
	MissingColon:        "missing colon after property",
	EmptyValue:          "empty property value",
	InvalidDeclaration:  "invalid declaration",
	UnsupportedAtRule:   "unsupported at-rule",
	NestedAtRule:        "nested at-rule",
	UnbalancedBlock:     "unbalanced block",
	InvalidAtRule:       "invalid at-rule prelude",
	MisplacedImport:     "@import after other rules",
}

func (k ParseErrorKind) String() string {
	if s, ok := parseErrorNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ParseErrorKind(%d)", int(k))
}

type ParseError struct {
	Kind   ParseErrorKind
	Pos    Position
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("parse error: %s at %s", e.Kind, e.Pos)
	}
	return fmt.Sprintf("parse error: %s (%s) at %s", e.Kind, e.Detail, e.Pos)
}

// ValidationErrorKind enumerates declaration and media level failures.
type ValidationErrorKind int

const (
	UnknownProperty ValidationErrorKind = iota
	UnsupportedCustomProperty
	InvalidKeyword
	InvalidLength
	InvalidColor
	InvalidNumber
	InvalidShorthand
	InvalidValue
	InvalidMediaFeature
	MissingDescriptor
)

var validationErrorNames = map[ValidationErrorKind]string{
	UnknownProperty:           "unknown property",
	UnsupportedCustomProperty: "unsupported custom property",
	InvalidKeyword:            "invalid keyword",
	InvalidLength:             "invalid length",
	InvalidColor:              "invalid color",
	InvalidNumber:             "invalid number",
	InvalidShorthand:          "invalid shorthand",
	InvalidValue:              "invalid value",
	InvalidMediaFeature:       "invalid media feature",
	MissingDescriptor:         "missing required descriptor",
}

func (k ValidationErrorKind) String() string {
	if s, ok := validationErrorNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ValidationErrorKind(%d)", int(k))
}

type ValidationError struct {
	Kind     ValidationErrorKind
	Property string // empty for media conditions
	Pos      Position
	Detail   string
}

func (e *ValidationError) Error() string {
	var subject string
	if e.Property != "" {
		subject = fmt.Sprintf(" for %q", e.Property)
	}
	if e.Detail == "" {
		return fmt.Sprintf("validation error: %s%s at %s", e.Kind, subject, e.Pos)
	}
	return fmt.Sprintf("validation error: %s%s (%s) at %s", e.Kind, subject, e.Detail, e.Pos)
}

// Category returns "lex", "parse", "validation" or "other".
func Category(err error) string {
	var (
		le *LexError
		pe *ParseError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &le):
		return "lex"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &ve):
		return "validation"
	default:
		return "other"
	}
}

// PositionOf returns position carried by a diagnostic, if any.
func PositionOf(err error) (Position, bool) {
	var (
		le *LexError
		pe *ParseError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &le):
		return le.Pos, true
	case errors.As(err, &pe):
		return pe.Pos, true
	case errors.As(err, &ve):
		return ve.Pos, true
	}
	return Position{}, false
}

// Combine merges diagnostics into a single error, nil when there are none.
func Combine(errs []error) error {
	return multierr.Combine(errs...)
}

// Sort orders diagnostics by source offset keeping relative order of
// diagnostics reported for the same offset.
func Sort(errs []error) {
	sort.SliceStable(errs, func(i, j int) bool {
		pi, _ := PositionOf(errs[i])
		pj, _ := PositionOf(errs[j])
		return pi.Offset < pj.Offset
	})
}
