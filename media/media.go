// Package media models @media conditions. Conditions are kept verbatim as
// a tree and are never evaluated.
package media

import (
	"fmt"
	"strings"

	"csscc/value"
)

// Kind of a condition node. Numeric values are part of the binary IR format.
type Kind uint8

const (
	Cmp Kind = iota
	And
	Or
	Not
)

func (k Kind) String() string {
	switch k {
	case Cmp:
		return "cmp"
	case And:
		return "and"
	case Or:
		return "or"
	case Not:
		return "not"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind is inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k := Cmp; k <= Not; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Op is a comparison operator. Colon form "(min-width: 10px)" uses Colon,
// range form "(width = 10px)" uses Eq. Numeric values are part of the
// binary IR format.
type Op uint8

const (
	Eq Op = iota
	Lt
	Le
	Gt
	Ge
	Colon
)

var opNames = [...]string{Eq: "=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=", Colon: ":"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// ParseOp is inverse of Op.String.
func ParseOp(s string) (Op, bool) {
	for i, name := range opNames {
		if name == s {
			return Op(i), true
		}
	}
	return 0, false
}

// flip mirrors operator for "value op feature" form.
func (o Op) flip() Op {
	switch o {
	case Lt:
		return Gt
	case Le:
		return Ge
	case Gt:
		return Lt
	case Ge:
		return Le
	default:
		return o
	}
}

// TypeFeature is feature name of media type comparisons, value is the type
// keyword.
const TypeFeature = "type"

// Condition is a node of a media condition tree. Cmp uses Feature, Op and
// Value; And and Or have two or more Args; Not has exactly one.
type Condition struct {
	Kind    Kind
	Feature string
	Op      Op
	Value   value.Value
	Args    []*Condition
}

func cmp(feature string, op Op, v value.Value) *Condition {
	return &Condition{Kind: Cmp, Feature: feature, Op: op, Value: v}
}

// String returns canonical text, used for interning.
func (c *Condition) String() string {
	var sb strings.Builder
	c.write(&sb, true)
	return sb.String()
}

func (c *Condition) write(sb *strings.Builder, top bool) {
	switch c.Kind {
	case Cmp:
		switch {
		case c.Feature == TypeFeature:
			sb.WriteString(c.Value.String())
		case c.Op == Colon:
			fmt.Fprintf(sb, "(%s: %s)", c.Feature, c.Value)
		default:
			fmt.Fprintf(sb, "(%s %s %s)", c.Feature, c.Op, c.Value)
		}

	case Not:
		sb.WriteString("not ")
		c.Args[0].write(sb, c.Args[0].leadsWithType())

	case And, Or:
		sep := " and "
		if c.Kind == Or {
			sep = " or "
			if top {
				sep = ", "
			}
		}
		wrap := !top && !(c.Kind == And && c.leadsWithType())
		if wrap {
			sb.WriteByte('(')
		}
		for i, a := range c.Args {
			if i > 0 {
				sb.WriteString(sep)
			}
			// children of top-level list are full queries, a nested Or
			// keeps its parentheses
			a.write(sb, top && c.Kind == Or && a.Kind != Or)
		}
		if wrap {
			sb.WriteByte(')')
		}
	}
}

// leadsWithType reports media type queries: a type comparison or an And
// starting with one.
func (c *Condition) leadsWithType() bool {
	switch c.Kind {
	case Cmp:
		return c.Feature == TypeFeature
	case And:
		return len(c.Args) > 0 && c.Args[0].Kind == Cmp && c.Args[0].Feature == TypeFeature
	}
	return false
}

// Equal compares condition trees structurally.
func Equal(a, b *Condition) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || len(a.Args) != len(b.Args) {
		return false
	}
	if a.Kind == Cmp && (a.Feature != b.Feature || a.Op != b.Op || !value.Equal(a.Value, b.Value)) {
		return false
	}
	for i := range a.Args {
		if !Equal(a.Args[i], b.Args[i]) {
			return false
		}
	}
	return true
}

// Walk calls fn for c and all its descendants depth first.
func (c *Condition) Walk(fn func(*Condition)) {
	fn(c)
	for _, a := range c.Args {
		a.Walk(fn)
	}
}
