package css

import (
	"strings"

	"go.uber.org/zap"

	"csscc/diag"
)

// Parser builds stylesheet syntax tree from tokens produced by Tokenize.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse is a shortcut for NewParser(nil).Parse(toks).
func Parse(toks []Token) (*Stylesheet, []error) {
	return NewParser(nil).Parse(toks)
}

// Parse never fails as a whole: malformed rules, declarations and at-rules
// are skipped and reported as *diag.ParseError in source order.
func (p *Parser) Parse(toks []Token) (*Stylesheet, []error) {
	if len(toks) == 0 || toks[len(toks)-1].Kind != EOF {
		end := 0
		if len(toks) > 0 {
			last := toks[len(toks)-1]
			end = last.Offset + len(last.Raw)
		}
		toks = append(toks[:len(toks):len(toks)], Token{Kind: EOF, Offset: end})
	}

	c := &cursor{toks: toks}
	sheet := &Stylesheet{Items: make([]Item, 0)}

	for t := c.peek(); t.Kind != EOF; t = c.peek() {
		switch {
		case t.Kind == AtKeyword:
			if item := c.atRule(true); item != nil {
				if item.Import == nil {
					c.importsDone = true
				}
				sheet.Items = append(sheet.Items, *item)
			}
		case t.IsDelim("}"):
			c.fail(diag.UnbalancedBlock, t, "")
			c.next()
		case t.IsDelim(";"):
			c.fail(diag.UnexpectedToken, t, ";")
			c.next()
		default:
			if r := c.styleRule(false); r != nil {
				c.importsDone = true
				sheet.Items = append(sheet.Items, Item{Rule: r})
			}
		}
	}

	p.log.Debug("Parsed stylesheet",
		zap.Int("items", len(sheet.Items)),
		zap.Int("rules", sheet.RuleCount()),
		zap.Int("errors", len(c.errs)))
	return sheet, c.errs
}

type cursor struct {
	toks []Token
	pos  int
	errs []error

	importsDone bool // a non-import item has been produced
}

// peek returns current token, last token is always EOF.
func (c *cursor) peek() Token {
	return c.toks[c.pos]
}

func (c *cursor) next() Token {
	t := c.toks[c.pos]
	if t.Kind != EOF {
		c.pos++
	}
	return t
}

func (c *cursor) fail(kind diag.ParseErrorKind, at Token, detail string) {
	c.errs = append(c.errs, &diag.ParseError{Kind: kind, Pos: diag.Position{Offset: at.Offset}, Detail: detail})
}

func (c *cursor) record(err error) {
	c.errs = append(c.errs, err)
}

// prelude collects tokens up to and including "{". On ";" or "}" before the
// block the rule is malformed: ";" is consumed, "}" only when not nested
// (it closes the enclosing block otherwise).
func (c *cursor) prelude(nested bool) ([]Token, bool) {
	var toks []Token
	for {
		t := c.peek()
		switch {
		case t.Kind == EOF:
			c.fail(diag.UnexpectedEOF, t, "block expected")
			return nil, false
		case t.IsDelim("{"):
			c.next()
			return toks, true
		case t.IsDelim(";"):
			c.fail(diag.UnexpectedToken, t, ";")
			c.next()
			return nil, false
		case t.IsDelim("}"):
			c.fail(diag.UnexpectedToken, t, "}")
			if !nested {
				c.next()
			}
			return nil, false
		}
		toks = append(toks, c.next())
	}
}

// styleRule returns nil when rule has been dropped.
func (c *cursor) styleRule(nested bool) *Rule {
	start := c.peek()
	prelude, ok := c.prelude(nested)
	if !ok {
		return nil
	}

	selectors, err := parseSelectorList(prelude, start.Offset)
	if err != nil {
		c.record(err)
		c.skipBlock()
		return nil
	}

	rule := &Rule{Selectors: selectors, Offset: start.Offset}
	rule.Declarations = c.declarationBlock()
	return rule
}

// skipBlock consumes tokens through "}" matching already consumed "{".
func (c *cursor) skipBlock() {
	depth := 1
	for {
		t := c.next()
		switch {
		case t.Kind == EOF:
			return
		case t.IsDelim("{"):
			depth++
		case t.IsDelim("}"):
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// skipDeclaration advances past the next ";" in the current block, stopping
// in front of the block closing "}".
func (c *cursor) skipDeclaration() {
	depth := 0
	for {
		t := c.peek()
		switch {
		case t.Kind == EOF:
			return
		case t.IsDelim("{"):
			depth++
		case t.IsDelim("}"):
			if depth == 0 {
				return
			}
			depth--
		case t.IsDelim(";") && depth == 0:
			c.next()
			return
		}
		c.next()
	}
}

// skipAtRuleBody drops at-rule prelude and then either terminating ";" or
// the whole block.
func (c *cursor) skipAtRuleBody() {
	for {
		t := c.peek()
		switch {
		case t.Kind == EOF:
			return
		case t.IsDelim(";"):
			c.next()
			return
		case t.IsDelim("}"):
			return
		case t.IsDelim("{"):
			c.next()
			c.skipBlock()
			return
		}
		c.next()
	}
}

// declarationBlock parses declarations after "{" through the closing "}".
func (c *cursor) declarationBlock() []Declaration {
	var decls []Declaration
	for {
		t := c.peek()
		switch {
		case t.Kind == EOF:
			c.fail(diag.UnexpectedEOF, t, "}")
			return decls
		case t.IsDelim("}"):
			c.next()
			return decls
		case t.IsDelim(";"):
			c.next()
		case t.Kind == AtKeyword:
			c.fail(diag.NestedAtRule, t, "@"+t.Value)
			c.next()
			c.skipAtRuleBody()
		case t.Kind == Ident:
			if d, ok := c.declaration(); ok {
				decls = append(decls, d)
			}
		default:
			c.fail(diag.InvalidDeclaration, t, "property name expected")
			c.skipDeclaration()
		}
	}
}

func (c *cursor) declaration() (Declaration, bool) {
	name := c.next()
	if colon := c.peek(); !colon.IsDelim(":") {
		c.fail(diag.MissingColon, colon, name.Value)
		c.skipDeclaration()
		return Declaration{}, false
	}
	c.next()

	var (
		value []Token
		depth int
	)
	for {
		t := c.peek()
		if t.Kind == EOF || (depth == 0 && (t.IsDelim(";") || t.IsDelim("}"))) {
			break
		}
		switch {
		case t.IsDelim("{"):
			depth++
		case t.IsDelim("}"):
			depth--
		}
		value = append(value, c.next())
	}

	d := Declaration{Property: strings.ToLower(name.Value), Offset: name.Offset}
	if n := len(value); n >= 2 && value[n-2].IsDelim("!") && value[n-1].IsIdent("important") {
		d.Important = true
		value = value[:n-2]
	}
	for _, t := range value {
		if t.IsDelim("!") {
			c.fail(diag.InvalidDeclaration, t, "unexpected !")
			return Declaration{}, false
		}
	}
	if len(value) == 0 {
		c.fail(diag.EmptyValue, name, name.Value)
		return Declaration{}, false
	}
	d.Value = value
	return d, true
}

// atRule handles at-keyword at the cursor. Only top-level @media, @import,
// @font-face and @keyframes produce an item, everything else is reported
// and skipped.
func (c *cursor) atRule(topLevel bool) *Item {
	kw := c.next()
	name := strings.ToLower(kw.Value)
	if !topLevel {
		c.fail(diag.NestedAtRule, kw, "@"+name)
		c.skipAtRuleBody()
		return nil
	}
	switch name {
	case "media":
		if mb := c.mediaBlock(kw); mb != nil {
			return &Item{Media: mb}
		}
	case "import":
		if imp := c.importRule(kw); imp != nil {
			return &Item{Import: imp}
		}
	case "font-face":
		if ff := c.fontFace(kw); ff != nil {
			return &Item{FontFace: ff}
		}
	case "keyframes":
		if kf := c.keyframes(kw); kf != nil {
			return &Item{Keyframes: kf}
		}
	default:
		c.fail(diag.UnsupportedAtRule, kw, "@"+name)
		c.skipAtRuleBody()
	}
	return nil
}

func (c *cursor) mediaBlock(kw Token) *MediaBlock {
	prelude, ok := c.prelude(false)
	if !ok {
		return nil
	}
	mb := &MediaBlock{Prelude: prelude, Offset: kw.Offset}
	for {
		t := c.peek()
		switch {
		case t.Kind == EOF:
			c.fail(diag.UnexpectedEOF, t, "}")
			return mb
		case t.IsDelim("}"):
			c.next()
			return mb
		case t.IsDelim(";"):
			c.fail(diag.UnexpectedToken, t, ";")
			c.next()
		case t.Kind == AtKeyword:
			c.atRule(false)
		default:
			if r := c.styleRule(true); r != nil {
				mb.Rules = append(mb.Rules, *r)
			}
		}
	}
}

// importRule reads `@import url [media];`. The statement may be closed by
// EOF.
func (c *cursor) importRule(kw Token) *Import {
	var toks []Token
	for {
		t := c.peek()
		if t.Kind == EOF || t.IsDelim(";") || t.IsDelim("{") || t.IsDelim("}") {
			break
		}
		toks = append(toks, c.next())
	}
	switch t := c.peek(); {
	case t.IsDelim("{"):
		c.fail(diag.InvalidAtRule, t, "@import has no block")
		c.next()
		c.skipBlock()
		return nil
	case t.IsDelim(";"):
		c.next()
	}

	if c.importsDone {
		c.fail(diag.MisplacedImport, kw, "")
		return nil
	}
	if len(toks) == 0 {
		c.fail(diag.InvalidAtRule, kw, "@import url expected")
		return nil
	}

	imp := &Import{Offset: kw.Offset}
	rest := toks[1:]
	switch t := toks[0]; {
	case t.Kind == URL || t.Kind == String:
		imp.URL = t.Value
	case t.Kind == Function && strings.EqualFold(t.Value, "url") &&
		len(toks) >= 3 && toks[1].Kind == String && toks[2].IsDelim(")"):
		imp.URL = toks[1].Value
		rest = toks[3:]
	default:
		c.fail(diag.InvalidAtRule, t, "@import url expected")
		return nil
	}
	if imp.URL == "" {
		c.fail(diag.InvalidAtRule, toks[0], "empty @import url")
		return nil
	}
	imp.Media = rest
	return imp
}

func (c *cursor) fontFace(kw Token) *FontFace {
	prelude, ok := c.prelude(false)
	if !ok {
		return nil
	}
	if len(prelude) != 0 {
		c.fail(diag.InvalidAtRule, prelude[0], "@font-face takes no prelude")
		c.skipBlock()
		return nil
	}
	return &FontFace{Declarations: c.declarationBlock(), Offset: kw.Offset}
}

func (c *cursor) keyframes(kw Token) *Keyframes {
	prelude, ok := c.prelude(false)
	if !ok {
		return nil
	}
	name, ok := keyframesName(prelude)
	if !ok {
		at := kw
		if len(prelude) > 0 {
			at = prelude[0]
		}
		c.fail(diag.InvalidAtRule, at, "@keyframes name expected")
		c.skipBlock()
		return nil
	}

	kf := &Keyframes{Name: name, Offset: kw.Offset}
	for {
		t := c.peek()
		switch {
		case t.Kind == EOF:
			c.fail(diag.UnexpectedEOF, t, "}")
			return kf
		case t.IsDelim("}"):
			c.next()
			return kf
		case t.IsDelim(";"):
			c.fail(diag.UnexpectedToken, t, ";")
			c.next()
		case t.Kind == AtKeyword:
			c.atRule(false)
		default:
			if f := c.keyframe(); f != nil {
				kf.Frames = append(kf.Frames, *f)
			}
		}
	}
}

// keyframe returns nil when the frame has been dropped.
func (c *cursor) keyframe() *Keyframe {
	start := c.peek()
	prelude, ok := c.prelude(true)
	if !ok {
		return nil
	}
	offsets, err := parseKeyframeSelector(prelude, start)
	if err != nil {
		c.record(err)
		c.skipBlock()
		return nil
	}
	return &Keyframe{Offsets: offsets, Declarations: c.declarationBlock(), Offset: start.Offset}
}

func keyframesName(prelude []Token) (string, bool) {
	if len(prelude) != 1 {
		return "", false
	}
	switch t := prelude[0]; t.Kind {
	case String:
		return t.Value, t.Value != ""
	case Ident:
		return t.Value, !reservedKeyframesName(t.Value)
	}
	return "", false
}

func reservedKeyframesName(name string) bool {
	switch strings.ToLower(name) {
	case "none", "initial", "inherit", "unset", "revert", "default":
		return true
	}
	return false
}

// parseKeyframeSelector reads comma separated "from", "to" and percentages.
func parseKeyframeSelector(toks []Token, start Token) ([]float64, error) {
	var offsets []float64
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.IsIdent("from"):
			offsets = append(offsets, 0)
		case t.IsIdent("to"):
			offsets = append(offsets, 100)
		case t.Kind == Percentage && t.Finite() && t.Num >= 0 && t.Num <= 100:
			offsets = append(offsets, t.Num)
		default:
			return nil, selectorError(diag.InvalidSelector, t, "keyframe selector %q", t.Raw)
		}
		if i+1 < len(toks) {
			i++
			if !toks[i].IsDelim(",") || i+1 == len(toks) {
				return nil, selectorError(diag.InvalidSelector, toks[i], "keyframe selector %q", toks[i].Raw)
			}
		}
	}
	if len(offsets) == 0 {
		return nil, selectorError(diag.InvalidSelector, start, "empty keyframe selector")
	}
	return offsets, nil
}
