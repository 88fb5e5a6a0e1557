package schema

import (
	"maps"
	"slices"
	"strings"

	"csscc/css"
	"csscc/diag"
	"csscc/value"
)

// FontSource is one entry of the src descriptor: a url with an optional
// format hint, or a locally installed font name.
type FontSource struct {
	Local  bool
	Name   string
	Format string // empty when not given, always empty for local
}

// Descriptor is an optional @font-face descriptor.
type Descriptor struct {
	Name  string
	Value value.Value
}

// FontFace is a validated @font-face rule.
type FontFace struct {
	Family      string
	Sources     []FontSource
	Descriptors []Descriptor // sorted by name, at most one per name
}

var fontDescriptors = map[string]Grammar{
	"font-style":   Keywords{"normal", "italic", "oblique"},
	"font-weight":  OneOf{Keywords{"normal", "bold"}, Number{Range: true, Min: 1, Max: 1000}},
	"font-display": Keywords{"auto", "block", "swap", "fallback", "optional"},
}

// FontDescriptor reports whether name is a supported optional @font-face
// descriptor and its value is acceptable.
func FontDescriptor(name string, v value.Value) bool {
	g, ok := fontDescriptors[name]
	if !ok {
		return false
	}
	switch v.Tag {
	case value.Keyword:
		kws := keywordsOf(g)
		return slices.Contains(kws, v.Keyword)
	case value.Number:
		return name == "font-weight" && v.Num >= 1 && v.Num <= 1000
	}
	return false
}

func keywordsOf(g Grammar) []string {
	switch g := g.(type) {
	case Keywords:
		return g
	case OneOf:
		var out []string
		for _, alt := range g {
			out = append(out, keywordsOf(alt)...)
		}
		return out
	}
	return nil
}

// ResolveFontFace validates @font-face descriptors given in source order,
// the last occurrence of a descriptor wins. Invalid descriptors are dropped
// and reported. The whole rule is dropped (nil is returned) when
// font-family or src ends up missing, at locates that error.
func ResolveFontFace(decls []css.Declaration, at int) (*FontFace, []error) {
	var (
		ff      FontFace
		errs    []error
		family  bool
		sources bool
		found   = make(map[string]value.Value)
	)
	for _, d := range decls {
		name := fold(d.Property)
		fail := func(mm *mismatch) {
			errs = append(errs, &diag.ValidationError{Kind: mm.kind, Property: name, Pos: diag.Position{Offset: mm.at.Offset}, Detail: mm.detail})
		}
		if d.Important {
			errs = append(errs, &diag.ValidationError{Kind: diag.InvalidValue, Property: name, Pos: diag.Position{Offset: d.Offset}, Detail: "!important in @font-face"})
			continue
		}

		cs, mm := components(d.Value)
		if mm != nil {
			fail(mm)
			continue
		}
		switch name {
		case "font-family":
			f, mm := fontFamily(cs)
			if mm != nil {
				fail(mm)
				continue
			}
			ff.Family, family = f, true
		case "src":
			srcs, mm := fontSources(cs)
			if mm != nil {
				fail(mm)
				continue
			}
			ff.Sources, sources = srcs, true
		default:
			g, ok := fontDescriptors[name]
			if !ok {
				errs = append(errs, &diag.ValidationError{Kind: diag.UnknownProperty, Property: name, Pos: diag.Position{Offset: d.Offset}, Detail: "@font-face descriptor"})
				continue
			}
			v, mm := g.match(cs)
			if mm != nil {
				fail(mm)
				continue
			}
			found[name] = v
		}
	}

	var missing []string
	if !family {
		missing = append(missing, "font-family")
	}
	if !sources {
		missing = append(missing, "src")
	}
	if len(missing) > 0 {
		errs = append(errs, &diag.ValidationError{Kind: diag.MissingDescriptor, Pos: diag.Position{Offset: at}, Detail: "@font-face without " + strings.Join(missing, " and ")})
		return nil, errs
	}

	for _, name := range slices.Sorted(maps.Keys(found)) {
		ff.Descriptors = append(ff.Descriptors, Descriptor{Name: name, Value: found[name]})
	}
	return &ff, errs
}

// fontFamily accepts exactly one family name. Generic families and
// CSS-wide keywords can not name a font face.
func fontFamily(cs []component) (string, *mismatch) {
	if len(cs) == 1 && cs[0].tok.Kind == css.String {
		if cs[0].tok.Value == "" {
			return "", &mismatch{kind: diag.InvalidValue, at: cs[0].tok, detail: "empty font family"}
		}
		return cs[0].tok.Value, nil
	}
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		if !c.isIdent() {
			return "", &mismatch{kind: diag.InvalidValue, at: c.tok, detail: "single family name expected"}
		}
		names = append(names, c.tok.Value)
	}
	if len(names) == 1 {
		if kw := fold(names[0]); slices.Contains(genericFamilies, kw) || slices.Contains(cssWideKeywords, kw) {
			return "", &mismatch{kind: diag.InvalidValue, at: cs[0].tok, detail: "generic family " + kw}
		}
	}
	return strings.Join(names, " "), nil
}

// fontSources reads comma separated `url(...) [format(...)]` and
// `local(...)` entries.
func fontSources(cs []component) ([]FontSource, *mismatch) {
	var (
		out   []FontSource
		group []component
	)
	flush := func(at css.Token) *mismatch {
		if len(group) == 0 {
			return &mismatch{kind: diag.InvalidValue, at: at, detail: "empty font source"}
		}
		src, mm := fontSource(group)
		if mm != nil {
			return mm
		}
		out = append(out, src)
		group = group[:0]
		return nil
	}
	for _, c := range cs {
		if c.tok.IsDelim(",") {
			if mm := flush(c.tok); mm != nil {
				return nil, mm
			}
			continue
		}
		group = append(group, c)
	}
	if mm := flush(cs[len(cs)-1].tok); mm != nil {
		return nil, mm
	}
	return out, nil
}

func fontSource(group []component) (FontSource, *mismatch) {
	head := group[0]
	switch {
	case head.tok.Kind == css.URL:
		if head.tok.Value == "" {
			return FontSource{}, &mismatch{kind: diag.InvalidValue, at: head.tok, detail: "empty url"}
		}
		src := FontSource{Name: head.tok.Value}
		switch {
		case len(group) == 1:
			return src, nil
		case len(group) == 2 && group[1].tok.Kind == css.Function && fold(group[1].tok.Value) == "format" &&
			len(group[1].args) == 1 && (group[1].args[0].Kind == css.String || group[1].args[0].Kind == css.Ident):
			src.Format = group[1].args[0].Value
			return src, nil
		}
		return FontSource{}, &mismatch{kind: diag.InvalidValue, at: group[1].tok, detail: group[1].String()}

	case head.tok.Kind == css.Function && fold(head.tok.Value) == "local":
		if len(group) != 1 {
			return FontSource{}, &mismatch{kind: diag.InvalidValue, at: group[1].tok, detail: group[1].String()}
		}
		args := head.args
		if len(args) == 1 && args[0].Kind == css.String && args[0].Value != "" {
			return FontSource{Local: true, Name: args[0].Value}, nil
		}
		names := make([]string, 0, len(args))
		for _, t := range args {
			if t.Kind != css.Ident {
				return FontSource{}, &mismatch{kind: diag.InvalidValue, at: head.tok, detail: head.String()}
			}
			names = append(names, t.Value)
		}
		if len(names) == 0 {
			return FontSource{}, &mismatch{kind: diag.InvalidValue, at: head.tok, detail: head.String()}
		}
		return FontSource{Local: true, Name: strings.Join(names, " ")}, nil
	}
	return FontSource{}, &mismatch{kind: diag.InvalidValue, at: head.tok, detail: head.String()}
}
