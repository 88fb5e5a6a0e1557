package ir

import (
	"maps"
	"slices"
	"strings"

	"csscc/css"
	"csscc/media"
	"csscc/schema"
	"csscc/value"
)

// Builder accumulates rules in source order, interning strings and
// conditions. Imports, font faces and keyframes are interned by Build after
// all rules, so the string table does not depend on how they interleave
// with rules. It is not safe for concurrent use and must not be used after
// Build.
type Builder struct {
	ss      *Stylesheet
	strings map[string]int
	conds   map[string]int

	importConds []*media.Condition
}

func NewBuilder(id string) *Builder {
	return &Builder{
		ss:      &Stylesheet{ID: id, Version: Version},
		strings: make(map[string]int),
		conds:   make(map[string]int),
	}
}

// AddRule appends a rule and returns its order. Declarations are given in
// source order: the last one for a property wins unless an earlier one is
// important and the later is not. Rules without declarations are kept.
func (b *Builder) AddRule(selectors css.SelectorList, decls []Declaration, cond *media.Condition) int {
	r := Rule{
		Order:     len(b.ss.Rules),
		Selectors: b.intern(selectors.String()),
		Media:     NoMedia,
	}

	r.Declarations = merge(decls)
	for _, d := range r.Declarations {
		b.internValue(d.Value)
	}

	if cond != nil {
		r.Media = b.internCondition(cond)
	}
	b.ss.Rules = append(b.ss.Rules, r)
	return r.Order
}

// merge keeps one declaration per property sorted by property id.
func merge(decls []Declaration) []Declaration {
	winners := make(map[schema.PropertyID]Declaration, len(decls))
	for _, d := range decls {
		if prev, ok := winners[d.Property]; ok && prev.Important && !d.Important {
			continue
		}
		winners[d.Property] = d
	}
	return slices.SortedFunc(maps.Values(winners), func(a, b Declaration) int {
		return int(a.Property) - int(b.Property)
	})
}

// AddImport appends an @import, cond is nil when it has no media list.
func (b *Builder) AddImport(url string, cond *media.Condition) {
	b.ss.Imports = append(b.ss.Imports, Import{URL: url, Media: NoMedia})
	b.importConds = append(b.importConds, cond)
}

// AddFontFace appends an @font-face. Descriptors are normalized: the last
// one for a name wins and they are sorted by name.
func (b *Builder) AddFontFace(ff schema.FontFace) {
	byName := make(map[string]schema.Descriptor, len(ff.Descriptors))
	for _, d := range ff.Descriptors {
		byName[d.Name] = d
	}
	ff.Descriptors = slices.SortedFunc(maps.Values(byName), func(a, b schema.Descriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	ff.Sources = slices.Clone(ff.Sources)
	b.ss.FontFaces = append(b.ss.FontFaces, ff)
}

// AddKeyframes appends an @keyframes, replacing an earlier one with the
// same name. Frame declarations are merged like rule declarations with
// importance dropped.
func (b *Builder) AddKeyframes(name string, frames []Keyframe) {
	kf := Keyframes{Name: name, Frames: make([]Keyframe, len(frames))}
	for i, f := range frames {
		decls := make([]Declaration, len(f.Declarations))
		for j, d := range f.Declarations {
			d.Important = false
			decls[j] = d
		}
		kf.Frames[i] = Keyframe{Offsets: slices.Clone(f.Offsets), Declarations: merge(decls)}
	}
	b.ss.Keyframes = slices.DeleteFunc(b.ss.Keyframes, func(k Keyframes) bool { return k.Name == name })
	b.ss.Keyframes = append(b.ss.Keyframes, kf)
}

// Build returns the finished stylesheet.
func (b *Builder) Build() *Stylesheet {
	if b.ss.Rules == nil {
		b.ss.Rules = []Rule{}
	}
	for i := range b.ss.Imports {
		b.intern(b.ss.Imports[i].URL)
		if c := b.importConds[i]; c != nil {
			b.ss.Imports[i].Media = b.internCondition(c)
		}
	}
	for _, ff := range b.ss.FontFaces {
		b.intern(ff.Family)
		for _, src := range ff.Sources {
			b.intern(src.Name)
			if src.Format != "" {
				b.intern(src.Format)
			}
		}
		for _, d := range ff.Descriptors {
			b.intern(d.Name)
			b.internValue(d.Value)
		}
	}
	for _, kf := range b.ss.Keyframes {
		b.intern(kf.Name)
		for _, f := range kf.Frames {
			for _, d := range f.Declarations {
				b.internValue(d.Value)
			}
		}
	}
	return b.ss
}

func (b *Builder) intern(s string) int {
	if i, ok := b.strings[s]; ok {
		return i
	}
	i := len(b.ss.Strings)
	b.ss.Strings = append(b.ss.Strings, s)
	b.strings[s] = i
	return i
}

func (b *Builder) internValue(v value.Value) {
	switch v.Tag {
	case value.Keyword:
		b.intern(v.Keyword)
	case value.String:
		b.intern(v.Str)
	case value.Composite:
		for _, item := range v.Items {
			b.internValue(item)
		}
	}
}

func (b *Builder) internCondition(c *media.Condition) int {
	key := c.String()
	if i, ok := b.conds[key]; ok {
		return i
	}
	c.Walk(func(n *media.Condition) {
		if n.Kind == media.Cmp {
			b.intern(n.Feature)
			b.internValue(n.Value)
		}
	})
	i := len(b.ss.Conditions)
	b.ss.Conditions = append(b.ss.Conditions, c)
	b.conds[key] = i
	return i
}
