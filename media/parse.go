package media

import (
	"fmt"
	"slices"

	"golang.org/x/text/cases"

	"csscc/css"
	"csscc/diag"
	"csscc/value"
)

var (
	mediaTypes = []string{"all", "screen", "print"}

	// feature name -> accepted keywords, nil for px lengths
	features = map[string][]string{
		"width":                nil,
		"height":               nil,
		"min-width":            nil,
		"max-width":            nil,
		"min-height":           nil,
		"max-height":           nil,
		"orientation":          {"portrait", "landscape"},
		"prefers-color-scheme": {"light", "dark"},
	}

	// only these may be used with range operators
	rangeFeatures = []string{"width", "height"}
)

func fold(s string) string {
	return cases.Fold().String(s)
}

// Parse converts @media prelude tokens into condition tree. A comma
// separated query list becomes Or. Any problem is reported as
// *diag.ValidationError of kind InvalidMediaFeature.
func Parse(toks []css.Token) (*Condition, error) {
	toks = normalize(toks)
	if len(toks) == 0 {
		return nil, fail(0, "empty media query")
	}

	var queries []*Condition
	start, depth := 0, 0
	for i := 0; i <= len(toks); i++ {
		if i < len(toks) {
			switch {
			case toks[i].IsDelim("("):
				depth++
			case toks[i].IsDelim(")"):
				depth--
			}
			if !toks[i].IsDelim(",") || depth > 0 {
				continue
			}
		}
		if start == i {
			at := endOffset(toks)
			if i < len(toks) {
				at = toks[i].Offset
			}
			return nil, fail(at, "empty media query")
		}
		q, err := query(toks[start:i])
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
		start = i + 1
	}
	if len(queries) == 1 {
		return queries[0], nil
	}
	return &Condition{Kind: Or, Args: queries}, nil
}

// normalize splits "and(" style function tokens into keyword and parenthesis.
func normalize(toks []css.Token) []css.Token {
	if !slices.ContainsFunc(toks, func(t css.Token) bool { return t.Kind == css.Function }) {
		return toks
	}
	out := make([]css.Token, 0, len(toks)+2)
	for _, t := range toks {
		if t.Kind != css.Function {
			out = append(out, t)
			continue
		}
		name := t.Raw[:len(t.Raw)-1]
		out = append(out,
			css.Token{Kind: css.Ident, Raw: name, Value: t.Value, Offset: t.Offset, SpaceBefore: t.SpaceBefore},
			css.Token{Kind: css.Delim, Raw: "(", Offset: t.Offset + len(name)})
	}
	return out
}

func fail(at int, format string, args ...any) error {
	return &diag.ValidationError{
		Kind:   diag.InvalidMediaFeature,
		Pos:    diag.Position{Offset: at},
		Detail: fmt.Sprintf(format, args...),
	}
}

func endOffset(toks []css.Token) int {
	if len(toks) == 0 {
		return 0
	}
	last := toks[len(toks)-1]
	return last.Offset + len(last.Raw)
}

type cursor struct {
	toks []css.Token
	pos  int
}

func (c *cursor) more() bool { return c.pos < len(c.toks) }

func (c *cursor) peek() css.Token {
	if c.more() {
		return c.toks[c.pos]
	}
	return css.Token{Kind: css.EOF, Offset: endOffset(c.toks)}
}

func (c *cursor) next() css.Token {
	t := c.peek()
	if c.more() {
		c.pos++
	}
	return t
}

// query parses "[not|only] <type> [and <condition>]" or a bare condition.
func query(toks []css.Token) (*Condition, error) {
	c := &cursor{toks: toks}
	first := c.peek()
	if first.Kind != css.Ident || (first.IsIdent("not") && !(len(toks) > 1 && toks[1].Kind == css.Ident)) {
		cond, err := c.condition(true)
		if err != nil {
			return nil, err
		}
		if c.more() {
			return nil, fail(c.peek().Offset, "unexpected %s", c.peek().Raw)
		}
		return cond, nil
	}

	negate := false
	switch {
	case first.IsIdent("not"):
		negate = true
		c.next()
	case first.IsIdent("only"):
		c.next()
	}
	t := c.next()
	if t.Kind != css.Ident {
		return nil, fail(t.Offset, "media type expected")
	}
	typ := fold(t.Value)
	if !slices.Contains(mediaTypes, typ) {
		return nil, fail(t.Offset, "unknown media type %q", t.Value)
	}
	node := cmp(TypeFeature, Eq, value.KeywordValue(typ))

	if c.more() {
		if t := c.next(); !t.IsIdent("and") {
			return nil, fail(t.Offset, "'and' expected after media type, got %s", t.Raw)
		}
		cond, err := c.condition(false)
		if err != nil {
			return nil, err
		}
		if c.more() {
			return nil, fail(c.peek().Offset, "unexpected %s", c.peek().Raw)
		}
		args := []*Condition{node}
		if cond.Kind == And {
			args = append(args, cond.Args...)
		} else {
			args = append(args, cond)
		}
		node = &Condition{Kind: And, Args: args}
	}
	if negate {
		node = &Condition{Kind: Not, Args: []*Condition{node}}
	}
	return node, nil
}

// condition parses "not <in-parens>" or in-parens chained with a single kind
// of combinator. Or is not allowed after a media type.
func (c *cursor) condition(allowOr bool) (*Condition, error) {
	if c.peek().IsIdent("not") {
		c.next()
		arg, err := c.inParens()
		if err != nil {
			return nil, err
		}
		return &Condition{Kind: Not, Args: []*Condition{arg}}, nil
	}

	first, err := c.inParens()
	if err != nil {
		return nil, err
	}
	args := []*Condition{first}
	kind := Cmp
	for c.more() {
		t := c.next()
		var k Kind
		switch {
		case t.IsIdent("and"):
			k = And
		case t.IsIdent("or") && allowOr:
			k = Or
		default:
			return nil, fail(t.Offset, "unexpected %s", t.Raw)
		}
		if kind != Cmp && kind != k {
			return nil, fail(t.Offset, "'and' and 'or' cannot be mixed without parentheses")
		}
		kind = k
		arg, err := c.inParens()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if len(args) == 1 {
		return first, nil
	}
	return &Condition{Kind: kind, Args: args}, nil
}

// inParens parses "(" condition ")" or "(" feature ")".
func (c *cursor) inParens() (*Condition, error) {
	open := c.next()
	if !open.IsDelim("(") {
		return nil, fail(open.Offset, "'(' expected, got %s", open.Raw)
	}
	start, depth := c.pos, 1
	for ; c.more(); c.pos++ {
		switch {
		case c.toks[c.pos].IsDelim("("):
			depth++
		case c.toks[c.pos].IsDelim(")"):
			depth--
		}
		if depth == 0 {
			break
		}
	}
	if depth != 0 {
		return nil, fail(open.Offset, "unbalanced parenthesis")
	}
	inner := c.toks[start:c.pos]
	c.pos++ // ")"

	if len(inner) == 0 {
		return nil, fail(open.Offset, "empty parenthesis")
	}
	if inner[0].IsDelim("(") || inner[0].IsIdent("not") {
		sub := &cursor{toks: inner}
		cond, err := sub.condition(true)
		if err != nil {
			return nil, err
		}
		if sub.more() {
			return nil, fail(sub.peek().Offset, "unexpected %s", sub.peek().Raw)
		}
		return cond, nil
	}
	return feature(inner)
}

// feature parses the inside of a feature test: "name: value", "name op value",
// "value op name" or "value op name op value".
func feature(toks []css.Token) (*Condition, error) {
	c := &cursor{toks: toks}
	t := c.next()

	if t.Kind == css.Ident {
		name := fold(t.Value)
		if _, ok := features[name]; !ok {
			return nil, fail(t.Offset, "unsupported media feature %q", t.Value)
		}
		if !c.more() {
			return nil, fail(t.Offset, "media feature %q requires a value", name)
		}
		if c.peek().IsDelim(":") {
			c.next()
			v, err := featureValue(name, c.next())
			if err != nil {
				return nil, err
			}
			if c.more() {
				return nil, fail(c.peek().Offset, "unexpected %s", c.peek().Raw)
			}
			return cmp(name, Colon, v), nil
		}
		if err := rangeFeature(name, t); err != nil {
			return nil, err
		}
		op, err := c.op()
		if err != nil {
			return nil, err
		}
		v, err := featureValue(name, c.next())
		if err != nil {
			return nil, err
		}
		if c.more() {
			return nil, fail(c.peek().Offset, "unexpected %s", c.peek().Raw)
		}
		return cmp(name, op, v), nil
	}

	// value first
	op1, err := c.op()
	if err != nil {
		return nil, err
	}
	name := c.next()
	if name.Kind != css.Ident {
		return nil, fail(name.Offset, "media feature expected, got %s", name.Raw)
	}
	fname := fold(name.Value)
	if err := rangeFeature(fname, name); err != nil {
		return nil, err
	}
	lo, err := featureValue(fname, t)
	if err != nil {
		return nil, err
	}
	left := cmp(fname, op1.flip(), lo)
	if !c.more() {
		return left, nil
	}

	op2, err := c.op()
	if err != nil {
		return nil, err
	}
	if (op1 == Lt || op1 == Le) != (op2 == Lt || op2 == Le) || op1 == Eq || op2 == Eq {
		return nil, fail(toks[0].Offset, "range operators must point the same direction")
	}
	hi, err := featureValue(fname, c.next())
	if err != nil {
		return nil, err
	}
	if c.more() {
		return nil, fail(c.peek().Offset, "unexpected %s", c.peek().Raw)
	}
	return &Condition{Kind: And, Args: []*Condition{left, cmp(fname, op2, hi)}}, nil
}

func rangeFeature(name string, at css.Token) error {
	if _, ok := features[name]; !ok {
		return fail(at.Offset, "unsupported media feature %q", at.Value)
	}
	if !slices.Contains(rangeFeatures, name) {
		return fail(at.Offset, "media feature %q does not accept range comparison", name)
	}
	return nil
}

// op reads range operator, "<=" and ">=" arrive as two adjacent delimiters.
func (c *cursor) op() (Op, error) {
	t := c.next()
	var op Op
	switch {
	case t.IsDelim("="):
		return Eq, nil
	case t.IsDelim("<"):
		op = Lt
	case t.IsDelim(">"):
		op = Gt
	default:
		return 0, fail(t.Offset, "':' or comparison expected, got %s", t.Raw)
	}
	if n := c.peek(); n.IsDelim("=") && !n.SpaceBefore {
		c.next()
		op++ // Lt -> Le, Gt -> Ge
	}
	return op, nil
}

func featureValue(name string, t css.Token) (value.Value, error) {
	words := features[name]
	if words != nil {
		if t.Kind == css.Ident {
			if w := fold(t.Value); slices.Contains(words, w) {
				return value.KeywordValue(w), nil
			}
		}
		return value.Value{}, fail(t.Offset, "invalid value %q for %s", t.Raw, name)
	}
	switch {
	case !t.Finite():
	case t.Kind == css.Dimension && t.Unit == "px":
		return value.LengthValue(t.Num, value.Px), nil
	case t.Kind == css.Number && t.Num == 0:
		return value.LengthValue(0, value.Px), nil
	}
	return value.Value{}, fail(t.Offset, "invalid length %q for %s", t.Raw, name)
}
