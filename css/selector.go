package css

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2/css"

	"csscc/diag"
)

// Combinator joins compound selectors.
type Combinator int

const (
	CombinatorNone       Combinator = iota // first part of a selector
	CombinatorDescendant                   // whitespace
	CombinatorChild                        // >
	CombinatorAdjacent                     // +
	CombinatorSibling                      // ~
)

func (c Combinator) String() string {
	switch c {
	case CombinatorDescendant:
		return " "
	case CombinatorChild:
		return " > "
	case CombinatorAdjacent:
		return " + "
	case CombinatorSibling:
		return " ~ "
	default:
		return ""
	}
}

// SimpleKind enumerates simple selectors.
type SimpleKind int

const (
	SimpleType SimpleKind = iota
	SimpleUniversal
	SimpleClass
	SimpleID
	SimplePseudoClass
	SimplePseudoElement
	SimpleAttribute
	SimpleNth // nth-child family, Name is the pseudo-class
)

// AttrMatch is the operator of an attribute selector.
type AttrMatch int

const (
	AttrExists    AttrMatch = iota // [name]
	AttrEquals                     // =
	AttrIncludes                   // ~=
	AttrDashMatch                  // |=
	AttrPrefix                     // ^=
	AttrSuffix                     // $=
	AttrSubstring                  // *=
)

var attrMatchNames = [...]string{
	AttrExists: "", AttrEquals: "=", AttrIncludes: "~=", AttrDashMatch: "|=",
	AttrPrefix: "^=", AttrSuffix: "$=", AttrSubstring: "*=",
}

func (m AttrMatch) String() string {
	if m < 0 || int(m) >= len(attrMatchNames) {
		return fmt.Sprintf("AttrMatch(%d)", int(m))
	}
	return attrMatchNames[m]
}

// AttrFlag is the optional case sensitivity modifier of an attribute
// selector.
type AttrFlag int

const (
	AttrFlagNone AttrFlag = iota
	AttrFlagInsensitive
	AttrFlagSensitive
)

// Simple is a single simple selector. Name is empty for universal.
// Attribute selectors use Match, Value and Flag, nth pseudo-classes keep
// their An+B coefficients in A and B.
type Simple struct {
	Kind  SimpleKind
	Name  string
	Match AttrMatch
	Value string
	Flag  AttrFlag
	A, B  int
}

func (s Simple) String() string {
	switch s.Kind {
	case SimpleUniversal:
		return "*"
	case SimpleClass:
		return "." + escapeIdent(s.Name)
	case SimpleID:
		return "#" + escapeIdent(s.Name)
	case SimplePseudoClass:
		return ":" + s.Name
	case SimplePseudoElement:
		return "::" + s.Name
	case SimpleAttribute:
		var sb strings.Builder
		sb.WriteByte('[')
		sb.WriteString(escapeIdent(s.Name))
		if s.Match != AttrExists {
			sb.WriteString(s.Match.String())
			sb.WriteString(quoteString(s.Value))
		}
		switch s.Flag {
		case AttrFlagInsensitive:
			sb.WriteString(" i")
		case AttrFlagSensitive:
			sb.WriteString(" s")
		}
		sb.WriteByte(']')
		return sb.String()
	case SimpleNth:
		return ":" + s.Name + "(" + formatNth(s.A, s.B) + ")"
	default:
		return escapeIdent(s.Name)
	}
}

// Compound is a sequence of simple selectors not separated by combinators.
type Compound []Simple

func (c Compound) String() string {
	var sb strings.Builder
	for _, s := range c {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Part is a compound selector with the combinator joining it to the
// preceding part.
type Part struct {
	Combinator Combinator
	Compound   Compound
}

// Selector is a complex selector, parts are ordered left to right.
type Selector struct {
	Parts []Part
}

func (s Selector) String() string {
	var sb strings.Builder
	for _, p := range s.Parts {
		sb.WriteString(p.Combinator.String())
		sb.WriteString(p.Compound.String())
	}
	return sb.String()
}

// SelectorList is a comma separated group of selectors in source order.
type SelectorList []Selector

func (l SelectorList) String() string {
	parts := make([]string, len(l))
	for i, s := range l {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

var (
	supportedPseudoClasses = map[string]bool{
		"hover": true, "active": true, "focus": true,
		"first-child": true, "last-child": true, "only-child": true,
		"empty": true, "root": true, "disabled": true, "checked": true,
	}
	supportedPseudoElements = map[string]bool{
		"before": true, "after": true, "selection": true, "placeholder": true,
	}
	nthPseudoClasses = map[string]bool{
		"nth-child": true, "nth-last-child": true, "nth-of-type": true, "nth-last-of-type": true,
	}
)

// ParseSelectorList parses selector text, for instance canonical text
// stored in the IR.
func ParseSelectorList(text string) (SelectorList, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return parseSelectorList(toks[:len(toks)-1], 0)
}

// parseSelectorList splits prelude tokens on top-level commas. at is used
// for error position when prelude is empty.
func parseSelectorList(toks []Token, at int) (SelectorList, error) {
	if len(toks) == 0 {
		return nil, &diag.ParseError{Kind: diag.InvalidSelector, Pos: diag.Position{Offset: at}, Detail: "empty selector"}
	}

	var (
		list  SelectorList
		depth int
		start int
	)
	for i := 0; i <= len(toks); i++ {
		if i < len(toks) {
			t := toks[i]
			switch {
			case t.Kind == Function || t.IsDelim("(") || t.IsDelim("["):
				depth++
				continue
			case (t.IsDelim(")") || t.IsDelim("]")) && depth > 0:
				depth--
				continue
			case !t.IsDelim(",") || depth > 0:
				continue
			}
		}
		if i == start {
			pos := at
			if i < len(toks) {
				pos = toks[i].Offset
			}
			return nil, &diag.ParseError{Kind: diag.InvalidSelector, Pos: diag.Position{Offset: pos}, Detail: "empty selector"}
		}
		sel, err := parseSelector(toks[start:i])
		if err != nil {
			return nil, err
		}
		list = append(list, sel)
		start = i + 1
	}
	return list, nil
}

func selectorError(kind diag.ParseErrorKind, t Token, format string, args ...any) error {
	return &diag.ParseError{Kind: kind, Pos: diag.Position{Offset: t.Offset}, Detail: fmt.Sprintf(format, args...)}
}

func parseSelector(toks []Token) (Selector, error) {
	var (
		sel     Selector
		comb    = CombinatorNone
		pending Token
	)
	for i := 0; i < len(toks); {
		t := toks[i]
		switch {
		case t.IsDelim(">"), t.IsDelim("+"), t.IsDelim("~"):
			if len(sel.Parts) == 0 || (comb != CombinatorNone && comb != CombinatorDescendant) {
				return Selector{}, selectorError(diag.InvalidSelector, t, "misplaced combinator %q", t.Raw)
			}
			switch t.Raw {
			case ">":
				comb = CombinatorChild
			case "+":
				comb = CombinatorAdjacent
			default:
				comb = CombinatorSibling
			}
			pending = t
			i++
			continue
		}

		if len(sel.Parts) > 0 {
			last := sel.Parts[len(sel.Parts)-1].Compound
			if last[len(last)-1].Kind == SimplePseudoElement {
				return Selector{}, selectorError(diag.InvalidSelector, t, "pseudo-element must be last")
			}
			if comb == CombinatorNone {
				// compound parser stops only on whitespace or combinators
				comb = CombinatorDescendant
			}
		}

		compound, n, err := parseCompound(toks[i:])
		if err != nil {
			return Selector{}, err
		}
		sel.Parts = append(sel.Parts, Part{Combinator: comb, Compound: compound})
		comb = CombinatorNone
		i += n
	}
	if comb != CombinatorNone {
		return Selector{}, selectorError(diag.InvalidSelector, pending, "dangling combinator %q", pending.Raw)
	}
	return sel, nil
}

// parseCompound consumes simple selectors up to whitespace or a combinator
// and returns number of tokens used.
func parseCompound(toks []Token) (Compound, int, error) {
	var (
		c Compound
		i int
	)
	for i < len(toks) {
		t := toks[i]
		if i > 0 && (t.SpaceBefore || t.IsDelim(">") || t.IsDelim("+") || t.IsDelim("~")) {
			break
		}
		if len(c) > 0 && c[len(c)-1].Kind == SimplePseudoElement {
			return nil, 0, selectorError(diag.InvalidSelector, t, "pseudo-element must be last")
		}

		switch {
		case t.Kind == Ident:
			if len(c) > 0 {
				return nil, 0, selectorError(diag.InvalidSelector, t, "type selector %q must come first", t.Raw)
			}
			c = append(c, Simple{Kind: SimpleType, Name: strings.ToLower(t.Value)})
			i++

		case t.IsDelim("*"):
			if len(c) > 0 {
				return nil, 0, selectorError(diag.InvalidSelector, t, "universal selector must come first")
			}
			c = append(c, Simple{Kind: SimpleUniversal})
			i++

		case t.IsDelim("."):
			if i+1 >= len(toks) || toks[i+1].Kind != Ident || toks[i+1].SpaceBefore {
				return nil, 0, selectorError(diag.InvalidSelector, t, "class name expected")
			}
			c = append(c, Simple{Kind: SimpleClass, Name: toks[i+1].Value})
			i += 2

		case t.Kind == Hash:
			if !css.IsIdent([]byte(t.Raw[1:])) {
				return nil, 0, selectorError(diag.InvalidSelector, t, "invalid id %q", t.Raw)
			}
			c = append(c, Simple{Kind: SimpleID, Name: t.Value})
			i++

		case t.IsDelim(":"):
			s, n, err := parsePseudo(toks[i:])
			if err != nil {
				return nil, 0, err
			}
			c = append(c, s)
			i += n

		case t.IsDelim("["):
			s, n, err := parseAttribute(toks[i:])
			if err != nil {
				return nil, 0, err
			}
			c = append(c, s)
			i += n

		default:
			return nil, 0, selectorError(diag.InvalidSelector, t, "unexpected %s", t)
		}
	}
	return c, i, nil
}

// parsePseudo handles ":name", "::name" and functional forms, toks[0] is ":".
func parsePseudo(toks []Token) (Simple, int, error) {
	colon := toks[0]
	element, i := false, 1
	if i < len(toks) && toks[i].IsDelim(":") && !toks[i].SpaceBefore {
		element = true
		i++
	}
	if i >= len(toks) || toks[i].SpaceBefore {
		return Simple{}, 0, selectorError(diag.InvalidSelector, colon, "pseudo selector name expected")
	}

	t := toks[i]
	switch t.Kind {
	case Function:
		name := strings.ToLower(t.Value)
		end := closingParen(toks, i+1)
		if end < 0 {
			return Simple{}, 0, selectorError(diag.InvalidSelector, t, "unclosed %s()", name)
		}
		if element || !nthPseudoClasses[name] {
			return Simple{}, 0, selectorError(diag.UnsupportedSelector, t, "functional pseudo-class %q", t.Value)
		}
		a, b, err := parseNth(t, toks[i+1:end])
		if err != nil {
			return Simple{}, 0, err
		}
		return Simple{Kind: SimpleNth, Name: name, A: a, B: b}, end + 1, nil
	case Ident:
	default:
		return Simple{}, 0, selectorError(diag.InvalidSelector, t, "pseudo selector name expected")
	}

	name := strings.ToLower(t.Value)
	switch {
	case element && supportedPseudoElements[name]:
		return Simple{Kind: SimplePseudoElement, Name: name}, i + 1, nil
	case !element && (name == "before" || name == "after"):
		return Simple{Kind: SimplePseudoElement, Name: name}, i + 1, nil
	case !element && supportedPseudoClasses[name]:
		return Simple{Kind: SimplePseudoClass, Name: name}, i + 1, nil
	case element:
		return Simple{}, 0, selectorError(diag.UnsupportedSelector, t, "pseudo-element ::%s", name)
	default:
		return Simple{}, 0, selectorError(diag.UnsupportedSelector, t, "pseudo-class :%s", name)
	}
}

// closingParen returns index of ")" closing a function whose arguments
// start at toks[from], or -1.
func closingParen(toks []Token, from int) int {
	depth := 1
	for j := from; j < len(toks); j++ {
		switch {
		case toks[j].Kind == Function || toks[j].IsDelim("("):
			depth++
		case toks[j].IsDelim(")"):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// parseAttribute handles "[name]", "[name op value]" and an optional i or s
// flag, toks[0] is "[".
func parseAttribute(toks []Token) (Simple, int, error) {
	open := toks[0]
	end := -1
	for j := 1; j < len(toks); j++ {
		if toks[j].IsDelim("]") {
			end = j
			break
		}
	}
	if end < 0 {
		return Simple{}, 0, selectorError(diag.InvalidSelector, open, "unclosed attribute selector")
	}
	in := toks[1:end]
	if len(in) == 0 || in[0].Kind != Ident {
		if len(in) > 1 && (in[0].IsDelim("|") || in[1].IsDelim("|")) {
			return Simple{}, 0, selectorError(diag.UnsupportedSelector, in[0], "attribute namespace")
		}
		return Simple{}, 0, selectorError(diag.InvalidSelector, open, "attribute name expected")
	}
	s := Simple{Kind: SimpleAttribute, Name: strings.ToLower(in[0].Value)}
	if len(in) == 1 {
		return s, end + 1, nil
	}

	op := in[1]
	switch {
	case op.IsDelim("="):
		s.Match = AttrEquals
	case op.IsDelim("~="):
		s.Match = AttrIncludes
	case op.IsDelim("|="):
		s.Match = AttrDashMatch
	case op.IsDelim("^="):
		s.Match = AttrPrefix
	case op.IsDelim("$="):
		s.Match = AttrSuffix
	case op.IsDelim("*="):
		s.Match = AttrSubstring
	case op.IsDelim("|"):
		return Simple{}, 0, selectorError(diag.UnsupportedSelector, op, "attribute namespace")
	default:
		return Simple{}, 0, selectorError(diag.InvalidSelector, op, "attribute operator expected")
	}
	if len(in) < 3 || (in[2].Kind != Ident && in[2].Kind != String) {
		return Simple{}, 0, selectorError(diag.InvalidSelector, op, "attribute value expected")
	}
	s.Value = in[2].Value

	switch len(in) {
	case 3:
	case 4:
		f := in[3]
		switch {
		case f.Kind == Ident && strings.EqualFold(f.Value, "i"):
			s.Flag = AttrFlagInsensitive
		case f.Kind == Ident && strings.EqualFold(f.Value, "s"):
			s.Flag = AttrFlagSensitive
		default:
			return Simple{}, 0, selectorError(diag.InvalidSelector, f, "unexpected %s in attribute selector", f)
		}
	default:
		return Simple{}, 0, selectorError(diag.InvalidSelector, in[4], "unexpected %s in attribute selector", in[4])
	}
	return s, end + 1, nil
}

// parseNth reads An+B from function arguments. Whitespace is allowed only
// around the sign of B.
func parseNth(fn Token, args []Token) (int, int, error) {
	if len(args) == 0 {
		return 0, 0, selectorError(diag.InvalidSelector, fn, "%s() needs an argument", fn.Value)
	}
	var sb strings.Builder
	for j, t := range args {
		if t.IsIdent("of") {
			return 0, 0, selectorError(diag.UnsupportedSelector, t, "%s() of selector", fn.Value)
		}
		if j > 0 && t.SpaceBefore {
			prev := args[j-1]
			signed := strings.HasPrefix(t.Raw, "+") || strings.HasPrefix(t.Raw, "-")
			if !(t.Kind == Number && signed) && !t.IsDelim("+") && !t.IsDelim("-") && !prev.IsDelim("+") && !prev.IsDelim("-") {
				return 0, 0, selectorError(diag.InvalidSelector, t, "invalid %s() argument", fn.Value)
			}
		}
		sb.WriteString(t.Raw)
	}

	a, b, ok := nth(strings.ToLower(sb.String()))
	if !ok {
		return 0, 0, selectorError(diag.InvalidSelector, args[0], "invalid %s() argument %q", fn.Value, sb.String())
	}
	return a, b, nil
}

func nth(s string) (int, int, bool) {
	switch s {
	case "odd":
		return 2, 1, true
	case "even":
		return 2, 0, true
	}
	an, bs, found := strings.Cut(s, "n")
	if !found {
		b, err := strconv.Atoi(s)
		return 0, b, err == nil
	}

	var a int
	switch an {
	case "", "+":
		a = 1
	case "-":
		a = -1
	default:
		var err error
		if a, err = strconv.Atoi(an); err != nil {
			return 0, 0, false
		}
	}
	if bs == "" {
		return a, 0, true
	}
	if bs[0] != '+' && bs[0] != '-' {
		return 0, 0, false
	}
	b, err := strconv.Atoi(bs)
	if err != nil || bs[1:] == "" || bs[1] == '+' || bs[1] == '-' {
		return 0, 0, false
	}
	return a, b, true
}

func formatNth(a, b int) string {
	if a == 0 {
		return strconv.Itoa(b)
	}
	var s string
	switch a {
	case 1:
		s = "n"
	case -1:
		s = "-n"
	default:
		s = strconv.Itoa(a) + "n"
	}
	switch {
	case b > 0:
		s += "+" + strconv.Itoa(b)
	case b < 0:
		s += strconv.Itoa(b)
	}
	return s
}

// quoteString writes a double quoted string lexed back as s.
func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, "\\%x ", r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// escapeIdent writes identifier so that it is lexed back as the same name.
func escapeIdent(s string) string {
	needs := false
	for i, r := range s {
		if !identRune(r, i == 0) {
			needs = true
			break
		}
	}
	if !needs && !(len(s) > 1 && s[0] == '-' && s[1] >= '0' && s[1] <= '9') {
		return identStart(s)
	}

	var sb strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9' && (i == 0 || (i == 1 && s[0] == '-')):
			fmt.Fprintf(&sb, "\\%x ", r)
		case r == utf8.RuneError || r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, "\\%x ", r)
		case identRune(r, false):
			sb.WriteRune(r)
		default:
			sb.WriteByte('\\')
			sb.WriteRune(r)
		}
	}
	return identStart(sb.String())
}

// identStart escapes first character of names that would not lex as an
// identifier, such as a lone "-".
func identStart(s string) string {
	if s == "" || s[0] == '\\' || css.IsIdent([]byte(s)) {
		return s
	}
	return `\` + s
}

func identRune(r rune, first bool) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-', r >= 0x80 && r != utf8.RuneError:
		return true
	case r >= '0' && r <= '9':
		return !first
	default:
		return false
	}
}
