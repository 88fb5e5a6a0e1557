package css

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"csscc/utils/debug"
)

// Declaration is a raw "property: value" pair as found in the source. Value
// tokens are not validated here, see schema.Resolve.
type Declaration struct {
	Property  string // lower-cased
	Value     []Token
	Important bool
	Offset    int
}

// ValueText renders declaration value tokens back to CSS text.
func (d Declaration) ValueText() string {
	return TokensText(d.Value)
}

// Rule is a style rule (selector list + declaration block).
type Rule struct {
	Selectors    SelectorList
	Declarations []Declaration
	Offset       int
}

// MediaBlock is an @media block. Prelude is kept unparsed, the media package
// interprets it.
type MediaBlock struct {
	Prelude []Token
	Rules   []Rule
	Offset  int
}

// Import is an @import rule. Media is the optional media query list, kept
// unparsed like MediaBlock.Prelude.
type Import struct {
	URL    string
	Media  []Token
	Offset int
}

// FontFace is an @font-face block with its raw descriptors.
type FontFace struct {
	Declarations []Declaration
	Offset       int
}

// Keyframe is a single keyframe block. Offsets are percentages in source
// order, "from" is 0 and "to" is 100.
type Keyframe struct {
	Offsets      []float64
	Declarations []Declaration
	Offset       int
}

// Keyframes is an @keyframes block.
type Keyframes struct {
	Name   string
	Frames []Keyframe
	Offset int
}

// Item is a single top-level item in a stylesheet.
// Exactly one field is non-nil.
type Item struct {
	Rule      *Rule
	Media     *MediaBlock
	Import    *Import
	FontFace  *FontFace
	Keyframes *Keyframes
}

// Stylesheet is the syntax tree of a parsed stylesheet.
type Stylesheet struct {
	Items []Item // all top-level items in source order
}

// RuleCount returns number of style rules including ones nested in @media.
func (s *Stylesheet) RuleCount() int {
	var n int
	for _, item := range s.Items {
		switch {
		case item.Rule != nil:
			n++
		case item.Media != nil:
			n += len(item.Media.Rules)
		}
	}
	return n
}

// TokensText renders tokens as CSS text, single space where the source had
// any whitespace.
func TokensText(toks []Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if t.Kind == EOF {
			break
		}
		if i > 0 && t.SpaceBefore {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Raw)
	}
	return sb.String()
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, item := range s.Items {
		var n int
		var err error

		switch {
		case item.Media != nil:
			n, err = writeMediaBlock(w, item.Media)
		case item.Rule != nil:
			n, err = writeRule(w, item.Rule, "")
		case item.Import != nil:
			n, err = writeImport(w, item.Import)
		case item.FontFace != nil:
			n, err = writeBlock(w, "@font-face", item.FontFace.Declarations, "")
		case item.Keyframes != nil:
			n, err = writeKeyframes(w, item.Keyframes)
		}

		total += int64(n)
		if err != nil {
			return total, err
		}

		if i < len(s.Items)-1 {
			n, err = fmt.Fprint(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

func writeRule(w io.Writer, rule *Rule, indent string) (int, error) {
	return writeBlock(w, rule.Selectors.String(), rule.Declarations, indent)
}

func writeBlock(w io.Writer, head string, decls []Declaration, indent string) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "%s%s {\n", indent, head)
	total += n
	if err != nil {
		return total, err
	}
	for _, d := range decls {
		important := ""
		if d.Important {
			important = " !important"
		}
		n, err = fmt.Fprintf(w, "%s  %s: %s%s;\n", indent, d.Property, d.ValueText(), important)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprintf(w, "%s}\n", indent)
	total += n
	return total, err
}

func writeMediaBlock(w io.Writer, mb *MediaBlock) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "@media %s {\n", TokensText(mb.Prelude))
	total += n
	if err != nil {
		return total, err
	}

	for i := range mb.Rules {
		n, err = writeRule(w, &mb.Rules[i], "  ")
		total += n
		if err != nil {
			return total, err
		}
		if i < len(mb.Rules)-1 {
			n, err = fmt.Fprint(w, "\n")
			total += n
			if err != nil {
				return total, err
			}
		}
	}

	n, err = fmt.Fprint(w, "}\n")
	total += n
	return total, err
}

func writeImport(w io.Writer, imp *Import) (int, error) {
	media := TokensText(imp.Media)
	if media != "" {
		media = " " + media
	}
	return fmt.Fprintf(w, "@import %s%s;\n", quoteString(imp.URL), media)
}

func writeKeyframes(w io.Writer, kf *Keyframes) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "@keyframes %s {\n", KeyframesNameText(kf.Name))
	total += n
	if err != nil {
		return total, err
	}
	for i := range kf.Frames {
		n, err = writeBlock(w, OffsetsText(kf.Frames[i].Offsets), kf.Frames[i].Declarations, "  ")
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprint(w, "}\n")
	total += n
	return total, err
}

// KeyframesNameText writes keyframes name as an identifier, or as a string
// when it can not be one.
func KeyframesNameText(name string) string {
	if name == "" || reservedKeyframesName(name) {
		return quoteString(name)
	}
	return escapeIdent(name)
}

// OffsetsText writes keyframe selector, for instance "0%, 50%".
func OffsetsText(offsets []float64) string {
	parts := make([]string, len(offsets))
	for i, o := range offsets {
		parts[i] = strconv.FormatFloat(o, 'f', -1, 64) + "%"
	}
	return strings.Join(parts, ", ")
}

// Dump returns indented tree representation of the stylesheet for debugging.
func (s *Stylesheet) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Node(0, "stylesheet", debug.KV("items", len(s.Items)))
	for _, item := range s.Items {
		switch {
		case item.Rule != nil:
			dumpRule(tw, 1, item.Rule)
		case item.Media != nil:
			tw.Line(1, "@media @%d", item.Media.Offset)
			tw.TextBlock(2, "prelude", TokensText(item.Media.Prelude))
			for i := range item.Media.Rules {
				dumpRule(tw, 2, &item.Media.Rules[i])
			}
		case item.Import != nil:
			tw.Line(1, "@import @%d", item.Import.Offset)
			tw.TextBlock(2, "url", item.Import.URL)
			if len(item.Import.Media) > 0 {
				tw.TextBlock(2, "media", TokensText(item.Import.Media))
			}
		case item.FontFace != nil:
			tw.Line(1, "@font-face @%d", item.FontFace.Offset)
			dumpDeclarations(tw, 2, item.FontFace.Declarations)
		case item.Keyframes != nil:
			tw.Line(1, "@keyframes @%d", item.Keyframes.Offset)
			tw.TextBlock(2, "name", item.Keyframes.Name)
			for _, f := range item.Keyframes.Frames {
				tw.Node(2, fmt.Sprintf("frame @%d", f.Offset), debug.KV("at", OffsetsText(f.Offsets)))
				dumpDeclarations(tw, 3, f.Declarations)
			}
		}
	}
	return tw.String()
}

func dumpRule(tw *debug.TreeWriter, depth int, r *Rule) {
	tw.Line(depth, "rule @%d", r.Offset)
	for _, sel := range r.Selectors {
		tw.TextBlock(depth+1, "selector", sel.String())
	}
	dumpDeclarations(tw, depth+1, r.Declarations)
}

func dumpDeclarations(tw *debug.TreeWriter, depth int, decls []Declaration) {
	for _, d := range decls {
		tw.Node(depth, fmt.Sprintf("%s @%d", d.Property, d.Offset), debug.Flag("!important", d.Important))
		tw.TextBlock(depth+1, "value", d.ValueText())
	}
}
