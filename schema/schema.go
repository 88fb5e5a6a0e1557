// Package schema holds the table of supported properties and resolves raw
// declaration values into validated values.
//
// The table is built once at package initialization and never mutated
// afterwards, so it is safe for concurrent use without locking.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"csscc/css"
	"csscc/diag"
	"csscc/value"
)

// PropertyID identifies longhand property in the IR.
type PropertyID uint16

func (id PropertyID) String() string {
	if e, ok := LookupID(id); ok {
		return e.Name
	}
	return fmt.Sprintf("PropertyID(%#02x)", uint16(id))
}

// Entry describes a longhand property.
type Entry struct {
	ID        PropertyID
	Name      string
	Grammar   Grammar
	Default   value.Value
	Inherited bool
}

// Expansion is a rule used to distribute shorthand components over slots.
type Expansion int

const (
	// AnyOrder matches components against slots in any order, every slot at
	// most once. Omitted slots reset to defaults.
	AnyOrder Expansion = iota
	// Edges takes one to four values for top, right, bottom and left.
	Edges
	// Pair takes one or two values, the second defaults to the first.
	Pair
	// Flex is "auto | none | <grow> <shrink>? || <basis>".
	Flex
)

// Shorthand describes shorthand property. Every slot lists longhands
// receiving the value, the first one provides grammar and default.
type Shorthand struct {
	Name  string
	Rule  Expansion
	Slots [][]string
}

// Longhands returns names of all properties set by the shorthand.
func (s Shorthand) Longhands() []string {
	var names []string
	for _, slot := range s.Slots {
		names = append(names, slot...)
	}
	return names
}

// Assignment is a single resolved longhand value.
type Assignment struct {
	Property PropertyID
	Value    value.Value
}

type registry struct {
	byName      map[string]*Entry
	byID        map[PropertyID]*Entry
	shorthands  map[string]*Shorthand
	slotGrammar map[string]single // longhand name -> grammar usable in shorthands
}

var reg = newRegistry()

func newRegistry() *registry {
	r := &registry{
		byName:      make(map[string]*Entry, len(longhands)),
		byID:        make(map[PropertyID]*Entry, len(longhands)),
		shorthands:  make(map[string]*Shorthand, len(shorthands)),
		slotGrammar: make(map[string]single),
	}
	for i := range longhands {
		e := &longhands[i]
		if _, dup := r.byName[e.Name]; dup {
			panic("duplicate property " + e.Name)
		}
		if _, dup := r.byID[e.ID]; dup {
			panic(fmt.Sprintf("duplicate property id %#02x", uint16(e.ID)))
		}
		r.byName[e.Name] = e
		r.byID[e.ID] = e
	}
	for i := range shorthands {
		s := &shorthands[i]
		if _, dup := r.byName[s.Name]; dup {
			panic("shorthand shadows property " + s.Name)
		}
		for _, name := range s.Longhands() {
			e, ok := r.byName[name]
			if !ok {
				panic("shorthand " + s.Name + " refers to unknown property " + name)
			}
			g, ok := e.Grammar.(single)
			if !ok {
				panic("shorthand " + s.Name + " part " + name + " is not a single value grammar")
			}
			r.slotGrammar[name] = g
		}
		r.shorthands[s.Name] = s
	}
	return r
}

// Lookup finds longhand property by name, case-insensitively.
func Lookup(name string) (Entry, bool) {
	if e, ok := reg.byName[fold(name)]; ok {
		return *e, true
	}
	return Entry{}, false
}

// LookupID finds longhand property by id.
func LookupID(id PropertyID) (Entry, bool) {
	if e, ok := reg.byID[id]; ok {
		return *e, true
	}
	return Entry{}, false
}

// LookupShorthand finds shorthand by name, case-insensitively.
func LookupShorthand(name string) (Shorthand, bool) {
	if s, ok := reg.shorthands[fold(name)]; ok {
		return *s, true
	}
	return Shorthand{}, false
}

// Properties returns all longhands ordered by id.
func Properties() []Entry {
	out := make([]Entry, len(longhands))
	copy(out, longhands)
	slices.SortFunc(out, func(a, b Entry) int { return int(a.ID) - int(b.ID) })
	return out
}

// Shorthands returns all shorthands ordered by name.
func Shorthands() []Shorthand {
	out := make([]Shorthand, len(shorthands))
	copy(out, shorthands)
	slices.SortFunc(out, func(a, b Shorthand) int { return strings.Compare(a.Name, b.Name) })
	return out
}

var cssWideKeywords = []string{"inherit", "initial", "unset"}

// Resolve validates raw value tokens of a declaration and returns resulting
// longhand assignments: exactly one for a longhand, one per longhand for a
// shorthand. On failure *diag.ValidationError is returned, positioned at
// the offending token (at the declaration when name is unknown).
func Resolve(name string, raw []css.Token) ([]Assignment, error) {
	key := fold(name)
	at := 0
	if len(raw) > 0 {
		at = raw[0].Offset
	}
	if strings.HasPrefix(key, "--") {
		return nil, &diag.ValidationError{Kind: diag.UnsupportedCustomProperty, Property: name, Pos: diag.Position{Offset: at}}
	}

	e, longhand := reg.byName[key]
	s, shorthand := reg.shorthands[key]
	if !longhand && !shorthand {
		return nil, &diag.ValidationError{Kind: diag.UnknownProperty, Property: name, Pos: diag.Position{Offset: at}}
	}

	fail := func(mm *mismatch) error {
		return &diag.ValidationError{Kind: mm.kind, Property: key, Pos: diag.Position{Offset: mm.at.Offset}, Detail: mm.detail}
	}

	if len(raw) == 0 {
		return nil, &diag.ValidationError{Kind: diag.InvalidValue, Property: key, Pos: diag.Position{Offset: at}, Detail: "empty value"}
	}
	cs, mm := components(raw)
	if mm != nil {
		return nil, fail(mm)
	}

	if len(cs) == 1 && cs[0].isIdent() {
		if w := fold(cs[0].tok.Value); slices.Contains(cssWideKeywords, w) {
			if longhand {
				return []Assignment{{Property: e.ID, Value: value.KeywordValue(w)}}, nil
			}
			var out []Assignment
			for _, n := range s.Longhands() {
				out = append(out, Assignment{Property: reg.byName[n].ID, Value: value.KeywordValue(w)})
			}
			return out, nil
		}
	}

	if longhand {
		v, mm := e.Grammar.match(cs)
		if mm != nil {
			return nil, fail(mm)
		}
		return []Assignment{{Property: e.ID, Value: v}}, nil
	}

	vals, mm := s.expand(cs)
	if mm != nil {
		return nil, fail(mm)
	}
	var out []Assignment
	for i, slot := range s.Slots {
		for _, n := range slot {
			out = append(out, Assignment{Property: reg.byName[n].ID, Value: vals[i]})
		}
	}
	return out, nil
}
