package schema

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"csscc/css"
	"csscc/diag"
	"csscc/value"
)

// fold case folds identifiers. Caser is stateful, so a new one is made on
// every call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// component is a single CSS component value: a token, or a function token
// with its arguments (closing parenthesis excluded).
type component struct {
	tok  css.Token
	args []css.Token
}

func (c component) isIdent() bool {
	return c.tok.Kind == css.Ident
}

func (c component) String() string {
	if c.tok.Kind == css.Function {
		return c.tok.Raw + css.TokensText(c.args) + ")"
	}
	return c.tok.Raw
}

// components groups value tokens into component values.
func components(toks []css.Token) ([]component, *mismatch) {
	var cs []component
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != css.Function {
			cs = append(cs, component{tok: t})
			continue
		}
		depth, j := 1, i+1
		for ; j < len(toks); j++ {
			switch {
			case toks[j].Kind == css.Function || toks[j].IsDelim("("):
				depth++
			case toks[j].IsDelim(")"):
				depth--
			}
			if depth == 0 {
				break
			}
		}
		if depth != 0 {
			return nil, &mismatch{kind: diag.InvalidValue, at: t, detail: "unclosed function " + t.Value + "()"}
		}
		cs = append(cs, component{tok: t, args: toks[i+1 : j]})
		i = j
	}
	return cs, nil
}

// mismatch describes why a grammar rejected a value.
type mismatch struct {
	kind   diag.ValidationErrorKind
	at     css.Token
	detail string
}

// Grammar is a closed set of value grammars, see Keywords, Length, Color,
// Number, OneOf, FamilyList and KeywordCombination.
type Grammar interface {
	match(cs []component) (value.Value, *mismatch)
	String() string
}

// single is implemented by grammars matching exactly one component. Only
// those can be used as shorthand parts.
type single interface {
	Grammar
	matchOne(c component) (value.Value, bool)
	claims(c component) bool
	failKind(c component) diag.ValidationErrorKind
}

func matchSingle(g single, cs []component) (value.Value, *mismatch) {
	if len(cs) != 1 {
		return value.Value{}, &mismatch{kind: g.failKind(cs[1]), at: cs[1].tok, detail: "single value expected"}
	}
	v, ok := g.matchOne(cs[0])
	if !ok {
		return value.Value{}, &mismatch{kind: g.failKind(cs[0]), at: cs[0].tok, detail: cs[0].String()}
	}
	return v, nil
}

// Keywords matches one identifier from the set.
type Keywords []string

func (g Keywords) match(cs []component) (value.Value, *mismatch) {
	return matchSingle(g, cs)
}

func (g Keywords) matchOne(c component) (value.Value, bool) {
	if !c.isIdent() {
		return value.Value{}, false
	}
	kw := fold(c.tok.Value)
	if !slices.Contains(g, kw) {
		return value.Value{}, false
	}
	return value.KeywordValue(kw), true
}

func (g Keywords) claims(c component) bool {
	return c.isIdent()
}

func (g Keywords) failKind(component) diag.ValidationErrorKind {
	return diag.InvalidKeyword
}

func (g Keywords) String() string {
	return strings.Join(g, " | ")
}

// Length matches a dimension with a supported unit, percentage (if
// allowed) or unitless zero which becomes 0px.
type Length struct {
	Percent     bool
	NonNegative bool
}

func (g Length) match(cs []component) (value.Value, *mismatch) {
	return matchSingle(g, cs)
}

func (g Length) matchOne(c component) (value.Value, bool) {
	if !c.tok.Finite() {
		return value.Value{}, false
	}
	var v value.Value
	switch c.tok.Kind {
	case css.Dimension:
		u, ok := value.ParseUnit(c.tok.Unit)
		if !ok || u == value.Percent {
			return value.Value{}, false
		}
		v = value.LengthValue(c.tok.Num, u)
	case css.Percentage:
		if !g.Percent {
			return value.Value{}, false
		}
		v = value.LengthValue(c.tok.Num, value.Percent)
	case css.Number:
		if c.tok.Num != 0 {
			return value.Value{}, false
		}
		v = value.LengthValue(0, value.Px)
	default:
		return value.Value{}, false
	}
	if g.NonNegative && v.Num < 0 {
		return value.Value{}, false
	}
	return v, true
}

func (g Length) claims(c component) bool {
	switch c.tok.Kind {
	case css.Dimension, css.Percentage, css.Number:
		return true
	}
	return false
}

func (g Length) failKind(component) diag.ValidationErrorKind {
	return diag.InvalidLength
}

func (g Length) String() string {
	s := "<length>"
	if g.Percent {
		s = "<length-percentage>"
	}
	if g.NonNegative {
		s += " [0,∞]"
	}
	return s
}

// Number matches a unitless number.
type Number struct {
	Integer     bool
	NonNegative bool
	Range       bool // Min and Max are set
	Min, Max    float64
}

func (g Number) match(cs []component) (value.Value, *mismatch) {
	return matchSingle(g, cs)
}

func (g Number) matchOne(c component) (value.Value, bool) {
	if c.tok.Kind != css.Number || !c.tok.Finite() {
		return value.Value{}, false
	}
	n := c.tok.Num
	switch {
	case g.Integer && n != math.Trunc(n):
		return value.Value{}, false
	case g.NonNegative && n < 0:
		return value.Value{}, false
	case g.Range && (n < g.Min || n > g.Max):
		return value.Value{}, false
	}
	return value.NumberValue(n), true
}

func (g Number) claims(c component) bool {
	return c.tok.Kind == css.Number
}

func (g Number) failKind(component) diag.ValidationErrorKind {
	return diag.InvalidNumber
}

func (g Number) String() string {
	s := "<number>"
	if g.Integer {
		s = "<integer>"
	}
	switch {
	case g.Range:
		s += fmt.Sprintf(" [%s,%s]", value.FormatNumber(g.Min), value.FormatNumber(g.Max))
	case g.NonNegative:
		s += " [0,∞]"
	}
	return s
}

// OneOf matches the first alternative accepting the component.
type OneOf []single

func (g OneOf) match(cs []component) (value.Value, *mismatch) {
	return matchSingle(g, cs)
}

func (g OneOf) matchOne(c component) (value.Value, bool) {
	for _, alt := range g {
		if v, ok := alt.matchOne(c); ok {
			return v, true
		}
	}
	return value.Value{}, false
}

func (g OneOf) claims(c component) bool {
	return slices.ContainsFunc(g, func(alt single) bool { return alt.claims(c) })
}

// failKind reports error of the alternative the component looks like.
func (g OneOf) failKind(c component) diag.ValidationErrorKind {
	for _, alt := range g {
		if alt.claims(c) {
			return alt.failKind(c)
		}
	}
	return g[0].failKind(c)
}

func (g OneOf) String() string {
	parts := make([]string, len(g))
	for i, alt := range g {
		parts[i] = alt.String()
	}
	return strings.Join(parts, " | ")
}

var genericFamilies = []string{"serif", "sans-serif", "monospace", "cursive", "fantasy", "system-ui"}

// FamilyList matches comma separated font family names. Quoted names become
// String values, generic families Keyword values and sequences of
// identifiers a String joined by single spaces.
type FamilyList struct{}

func (g FamilyList) match(cs []component) (value.Value, *mismatch) {
	var (
		items []value.Value
		names []string
		first css.Token
	)
	flush := func(at css.Token) *mismatch {
		if len(names) == 0 {
			return &mismatch{kind: diag.InvalidValue, at: at, detail: "empty font family"}
		}
		if len(names) == 1 {
			if kw := fold(names[0]); slices.Contains(genericFamilies, kw) {
				items = append(items, value.KeywordValue(kw))
				names = names[:0]
				return nil
			}
		}
		items = append(items, value.StringValue(strings.Join(names, " ")))
		names = names[:0]
		return nil
	}

	quoted := false
	for _, c := range cs {
		switch {
		case c.tok.IsDelim(","):
			if quoted {
				quoted = false
				continue
			}
			if mm := flush(c.tok); mm != nil {
				return value.Value{}, mm
			}
		case c.tok.Kind == css.String:
			if quoted || len(names) > 0 {
				return value.Value{}, &mismatch{kind: diag.InvalidValue, at: c.tok, detail: "comma expected before " + c.tok.Raw}
			}
			items = append(items, value.StringValue(c.tok.Value))
			quoted = true
		case c.isIdent():
			if quoted {
				return value.Value{}, &mismatch{kind: diag.InvalidValue, at: c.tok, detail: "comma expected before " + c.tok.Raw}
			}
			if len(names) == 0 {
				first = c.tok
			}
			names = append(names, c.tok.Value)
		default:
			return value.Value{}, &mismatch{kind: diag.InvalidValue, at: c.tok, detail: c.String()}
		}
	}
	if !quoted {
		at := first
		if len(cs) > 0 {
			at = cs[len(cs)-1].tok
		}
		if mm := flush(at); mm != nil {
			return value.Value{}, mm
		}
	}
	return value.CompositeValue(items...), nil
}

func (g FamilyList) String() string {
	return "[ <family-name> | <generic-family> ]#"
}

// KeywordCombination matches Exclusive keyword alone (as a Keyword) or any
// non-empty subset of Words in any order. The subset is returned as
// Composite in Words order.
type KeywordCombination struct {
	Exclusive string
	Words     []string
}

func (g KeywordCombination) match(cs []component) (value.Value, *mismatch) {
	if len(cs) == 1 && cs[0].isIdent() && fold(cs[0].tok.Value) == g.Exclusive {
		return value.KeywordValue(g.Exclusive), nil
	}
	seen := make([]bool, len(g.Words))
	for _, c := range cs {
		if !c.isIdent() {
			return value.Value{}, &mismatch{kind: diag.InvalidKeyword, at: c.tok, detail: c.String()}
		}
		i := slices.Index(g.Words, fold(c.tok.Value))
		if i < 0 || seen[i] {
			return value.Value{}, &mismatch{kind: diag.InvalidKeyword, at: c.tok, detail: c.tok.Value}
		}
		seen[i] = true
	}
	var items []value.Value
	for i, w := range g.Words {
		if seen[i] {
			items = append(items, value.KeywordValue(w))
		}
	}
	return value.CompositeValue(items...), nil
}

func (g KeywordCombination) String() string {
	return g.Exclusive + " | [ " + strings.Join(g.Words, " || ") + " ]"
}
