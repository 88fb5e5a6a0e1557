// Package ir defines the validated intermediate representation of a
// compiled stylesheet. An IR value is immutable once built; serializers and
// consumers only read it.
package ir

import (
	"errors"
	"slices"

	"csscc/media"
	"csscc/schema"
	"csscc/value"
)

// Version of the IR data model, written into every serialized form.
const Version = 1

// NoMedia marks a rule outside of any @media block.
const NoMedia = -1

// Declaration is a single validated longhand assignment.
type Declaration struct {
	Property  schema.PropertyID
	Value     value.Value
	Important bool
}

// Rule is a style rule with its resolved declarations, sorted by property
// id, at most one per property.
type Rule struct {
	Order        int // zero based source order
	Selectors    int // index into Stylesheet.Strings
	Declarations []Declaration
	Media        int // index into Stylesheet.Conditions or NoMedia
}

// Import is an @import rule in source order.
type Import struct {
	URL   string
	Media int // index into Stylesheet.Conditions or NoMedia
}

// Keyframe is one keyframe block. Offsets are percentages in source order,
// declarations are sorted by property id and never important.
type Keyframe struct {
	Offsets      []float64
	Declarations []Declaration
}

// Keyframes is an @keyframes rule. Names are unique within a stylesheet.
type Keyframes struct {
	Name   string
	Frames []Keyframe
}

// Stylesheet is the compiled representation of one stylesheet. Strings
// used by imports, font faces and keyframes follow the ones used by rules
// and conditions.
type Stylesheet struct {
	ID         string
	Version    int
	Rules      []Rule
	Imports    []Import
	FontFaces  []schema.FontFace
	Keyframes  []Keyframes
	Strings    []string           // interned in first use order
	Conditions []*media.Condition // interned by canonical text in first use order
}

// SelectorText returns canonical selector list of the rule.
func (s *Stylesheet) SelectorText(r *Rule) string {
	if r.Selectors < 0 || r.Selectors >= len(s.Strings) {
		return ""
	}
	return s.Strings[r.Selectors]
}

// Condition returns media condition scoping the rule, nil when there is none.
func (s *Stylesheet) Condition(r *Rule) *media.Condition {
	if r.Media < 0 || r.Media >= len(s.Conditions) {
		return nil
	}
	return s.Conditions[r.Media]
}

// StringRef returns index of interned string.
func (s *Stylesheet) StringRef(str string) (int, bool) {
	i := slices.Index(s.Strings, str)
	return i, i >= 0
}

// Lookup returns declaration for property in the rule.
func (r *Rule) Lookup(id schema.PropertyID) (Declaration, bool) {
	i, ok := slices.BinarySearchFunc(r.Declarations, id, func(d Declaration, id schema.PropertyID) int {
		return int(d.Property) - int(id)
	})
	if !ok {
		return Declaration{}, false
	}
	return r.Declarations[i], true
}

// Equal reports semantic equality of two stylesheets.
func Equal(a, b *Stylesheet) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Version != b.Version ||
		!slices.Equal(a.Strings, b.Strings) ||
		!slices.EqualFunc(a.Conditions, b.Conditions, media.Equal) {
		return false
	}
	return slices.EqualFunc(a.Rules, b.Rules, func(x, y Rule) bool {
		return x.Order == y.Order && x.Selectors == y.Selectors && x.Media == y.Media &&
			slices.EqualFunc(x.Declarations, y.Declarations, equalDeclaration)
	}) &&
		slices.Equal(a.Imports, b.Imports) &&
		slices.EqualFunc(a.FontFaces, b.FontFaces, func(x, y schema.FontFace) bool {
			return x.Family == y.Family && slices.Equal(x.Sources, y.Sources) &&
				slices.EqualFunc(x.Descriptors, y.Descriptors, func(p, q schema.Descriptor) bool {
					return p.Name == q.Name && value.Equal(p.Value, q.Value)
				})
		}) &&
		slices.EqualFunc(a.Keyframes, b.Keyframes, func(x, y Keyframes) bool {
			return x.Name == y.Name && slices.EqualFunc(x.Frames, y.Frames, func(p, q Keyframe) bool {
				return slices.Equal(p.Offsets, q.Offsets) && slices.EqualFunc(p.Declarations, q.Declarations, equalDeclaration)
			})
		})
}

func equalDeclaration(p, q Declaration) bool {
	return p.Property == q.Property && p.Important == q.Important && value.Equal(p.Value, q.Value)
}

var (
	// ErrUnsupportedVersion is returned by decoders for data written by an
	// incompatible encoder.
	ErrUnsupportedVersion = errors.New("unsupported IR version")
	// ErrMalformed is returned by decoders for truncated, trailing or
	// inconsistent data.
	ErrMalformed = errors.New("malformed IR data")
)
