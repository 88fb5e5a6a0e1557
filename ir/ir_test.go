package ir

import (
	"strings"
	"testing"

	"csscc/css"
	"csscc/media"
	"csscc/schema"
	"csscc/value"
)

func selectors(t *testing.T, text string) css.SelectorList {
	t.Helper()
	l, err := css.ParseSelectorList(text)
	if err != nil {
		t.Fatalf("ParseSelectorList(%q): %v", text, err)
	}
	return l
}

func condition(t *testing.T, text string) *media.Condition {
	t.Helper()
	toks, err := css.Tokenize(text)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", text, err)
	}
	c, err := media.Parse(toks[:len(toks)-1])
	if err != nil {
		t.Fatalf("media.Parse(%q): %v", text, err)
	}
	return c
}

func TestBuilder_OrderAndInterning(t *testing.T) {
	b := NewBuilder("main")
	b.AddRule(selectors(t, "a"), []Declaration{
		{Property: schema.Display, Value: value.KeywordValue("block")},
	}, nil)
	b.AddRule(selectors(t, "p, div"), nil, condition(t, "screen"))
	b.AddRule(selectors(t, "a"), []Declaration{
		{Property: schema.Position, Value: value.KeywordValue("block")},
	}, condition(t, "SCREEN"))
	ss := b.Build()

	if ss.ID != "main" || ss.Version != Version {
		t.Errorf("header = %q %d", ss.ID, ss.Version)
	}
	if len(ss.Rules) != 3 {
		t.Fatalf("rules = %d, want 3", len(ss.Rules))
	}
	for i, r := range ss.Rules {
		if r.Order != i {
			t.Errorf("rule %d has order %d", i, r.Order)
		}
	}
	wantStrings := []string{"a", "block", "p, div", "type", "screen"}
	if strings.Join(ss.Strings, "|") != strings.Join(wantStrings, "|") {
		t.Errorf("strings = %q, want %q", ss.Strings, wantStrings)
	}
	if len(ss.Conditions) != 1 || ss.Rules[1].Media != 0 || ss.Rules[2].Media != 0 {
		t.Errorf("conditions not interned: %d %+v", len(ss.Conditions), ss.Rules)
	}
	if ss.Rules[0].Media != NoMedia || ss.Condition(&ss.Rules[0]) != nil {
		t.Error("first rule must be unscoped")
	}
	if ss.Rules[0].Selectors != ss.Rules[2].Selectors {
		t.Error("selector text not interned")
	}
	if len(ss.Rules[1].Declarations) != 0 {
		t.Error("empty rule must keep no declarations")
	}
	if got := ss.SelectorText(&ss.Rules[1]); got != "p, div" {
		t.Errorf("SelectorText = %q", got)
	}
	if i, ok := ss.StringRef("screen"); !ok || i != 4 {
		t.Errorf("StringRef = %d, %v", i, ok)
	}
}

func TestBuilder_DeclarationMerge(t *testing.T) {
	red := value.ColorValue(value.RGBA{R: 0xff, A: 0xff})
	blue := value.ColorValue(value.RGBA{B: 0xff, A: 0xff})
	tests := []struct {
		name  string
		decls []Declaration
		want  Declaration
	}{
		{
			name:  "last wins",
			decls: []Declaration{{Property: schema.ColorProp, Value: red}, {Property: schema.ColorProp, Value: blue}},
			want:  Declaration{Property: schema.ColorProp, Value: blue},
		},
		{
			name:  "important kept",
			decls: []Declaration{{Property: schema.ColorProp, Value: red, Important: true}, {Property: schema.ColorProp, Value: blue}},
			want:  Declaration{Property: schema.ColorProp, Value: red, Important: true},
		},
		{
			name:  "later important wins",
			decls: []Declaration{{Property: schema.ColorProp, Value: red, Important: true}, {Property: schema.ColorProp, Value: blue, Important: true}},
			want:  Declaration{Property: schema.ColorProp, Value: blue, Important: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("x")
			b.AddRule(selectors(t, "a"), tt.decls, nil)
			r := b.Build().Rules[0]
			got, ok := r.Lookup(schema.ColorProp)
			if !ok || len(r.Declarations) != 1 {
				t.Fatalf("declarations = %+v", r.Declarations)
			}
			if got.Important != tt.want.Important || !value.Equal(got.Value, tt.want.Value) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuilder_SortedByProperty(t *testing.T) {
	b := NewBuilder("x")
	b.AddRule(selectors(t, "a"), []Declaration{
		{Property: schema.ZIndex, Value: value.NumberValue(1)},
		{Property: schema.Display, Value: value.KeywordValue("flex")},
		{Property: schema.ColorProp, Value: value.KeywordValue("currentcolor")},
	}, nil)
	r := b.Build().Rules[0]
	for i := 1; i < len(r.Declarations); i++ {
		if r.Declarations[i-1].Property >= r.Declarations[i].Property {
			t.Fatalf("declarations not sorted: %+v", r.Declarations)
		}
	}
	if _, ok := r.Lookup(schema.Opacity); ok {
		t.Error("Lookup found absent property")
	}
}

// addAtRules adds one record of every kind, interleaved with rules as a
// compiler would see them in source order.
func addAtRules(t *testing.T, b *Builder) {
	t.Helper()
	b.AddImport("base.css", nil)
	b.AddImport("print.css", condition(t, "print"))
	b.AddRule(selectors(t, "a"), []Declaration{{Property: schema.Display, Value: value.KeywordValue("block")}}, nil)
	b.AddFontFace(schema.FontFace{
		Family:  "Open Sans",
		Sources: []schema.FontSource{{Name: "a.woff2", Format: "woff2"}, {Local: true, Name: "Arial"}},
		Descriptors: []schema.Descriptor{
			{Name: "font-weight", Value: value.NumberValue(400)},
			{Name: "font-display", Value: value.KeywordValue("auto")},
			{Name: "font-display", Value: value.KeywordValue("swap")},
		},
	})
	b.AddKeyframes("fade", []Keyframe{{Offsets: []float64{0}}})
	b.AddKeyframes("fade", []Keyframe{
		{Offsets: []float64{0, 50}, Declarations: []Declaration{
			{Property: schema.Opacity, Value: value.NumberValue(1)},
			{Property: schema.Opacity, Value: value.NumberValue(0), Important: true},
		}},
		{Offsets: []float64{100}, Declarations: []Declaration{{Property: schema.Opacity, Value: value.NumberValue(1)}}},
	})
}

func TestBuilder_AtRules(t *testing.T) {
	b := NewBuilder("x")
	addAtRules(t, b)
	ss := b.Build()

	// strings of at-rules follow rule strings regardless of add order
	wantStrings := []string{"a", "block", "base.css", "print.css", "type", "print",
		"Open Sans", "a.woff2", "woff2", "Arial", "font-display", "swap", "font-weight", "fade"}
	if strings.Join(ss.Strings, "|") != strings.Join(wantStrings, "|") {
		t.Errorf("strings = %q, want %q", ss.Strings, wantStrings)
	}

	if len(ss.Imports) != 2 || ss.Imports[0] != (Import{URL: "base.css", Media: NoMedia}) || ss.Imports[1] != (Import{URL: "print.css", Media: 0}) {
		t.Errorf("imports = %+v", ss.Imports)
	}

	ff := ss.FontFaces[0]
	if len(ff.Descriptors) != 2 || ff.Descriptors[0].Name != "font-display" || ff.Descriptors[0].Value.Keyword != "swap" ||
		ff.Descriptors[1].Name != "font-weight" {
		t.Errorf("descriptors = %+v", ff.Descriptors)
	}

	if len(ss.Keyframes) != 1 || len(ss.Keyframes[0].Frames) != 2 {
		t.Fatalf("keyframes = %+v", ss.Keyframes)
	}
	d := ss.Keyframes[0].Frames[0].Declarations
	if len(d) != 1 || d[0].Important || d[0].Value.Num != 0 {
		t.Errorf("frame declarations = %+v", d)
	}

	// adding records in another order yields the same stylesheet
	other := NewBuilder("x")
	other.AddRule(selectors(t, "a"), []Declaration{{Property: schema.Display, Value: value.KeywordValue("block")}}, nil)
	other.AddKeyframes("fade", ss.Keyframes[0].Frames)
	other.AddFontFace(ss.FontFaces[0])
	other.AddImport("base.css", nil)
	other.AddImport("print.css", condition(t, "print"))
	if !Equal(ss, other.Build()) {
		t.Error("stylesheet depends on the order at-rules were added in")
	}
}

func TestEqual(t *testing.T) {
	build := func(kw string) *Stylesheet {
		b := NewBuilder("x")
		b.AddRule(selectors(t, "a"), []Declaration{{Property: schema.Display, Value: value.KeywordValue(kw)}}, condition(t, "print"))
		return b.Build()
	}
	if !Equal(build("block"), build("block")) {
		t.Error("identical builds must be equal")
	}
	if Equal(build("block"), build("flex")) {
		t.Error("different values must not be equal")
	}
	if Equal(build("block"), nil) || !Equal(nil, nil) {
		t.Error("nil handling")
	}

	withAtRules := func(format string) *Stylesheet {
		b := NewBuilder("x")
		addAtRules(t, b)
		b.AddFontFace(schema.FontFace{Family: "B", Sources: []schema.FontSource{{Name: "b.woff", Format: format}}})
		return b.Build()
	}
	if !Equal(withAtRules("woff"), withAtRules("woff")) {
		t.Error("identical at-rules must be equal")
	}
	if Equal(withAtRules("woff"), withAtRules("")) {
		t.Error("different font sources must not be equal")
	}
}

func TestDump_AtRules(t *testing.T) {
	b := NewBuilder("dump")
	addAtRules(t, b)
	got := b.Build().Dump()
	for _, want := range []string{
		`imports=2 font-faces=1 keyframes=1`,
		`  import #1`,
		`    url: "print.css"`,
		`    media: "print"`,
		`  font-face "Open Sans"`,
		`    url "a.woff2" format="woff2"`,
		`    local "Arial"`,
		`      keyword swap`,
		`  keyframes "fade" frames=2`,
		`    frame 0%, 50%`,
		`      opacity (0x`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("dump misses %q:\n%s", want, got)
		}
	}
	if strings.Contains(NewBuilder("x").Build().Dump(), "imports=") {
		t.Error("empty sections must not be counted")
	}
}

func TestDump(t *testing.T) {
	b := NewBuilder("dump")
	b.AddRule(selectors(t, ".x"), []Declaration{
		{Property: schema.FontFamily, Value: value.CompositeValue(value.StringValue("Open Sans"), value.KeywordValue("serif"))},
		{Property: schema.Width, Value: value.LengthValue(10, value.Px), Important: true},
	}, condition(t, "(min-width: 600px)"))
	got := b.Build().Dump()
	for _, want := range []string{
		`stylesheet "dump" version=1 rules=1`,
		`  rule #0`,
		`    selectors: ".x"`,
		`    media: "(min-width: 600px)"`,
		`    width (0x40) !important`,
		`      length 10px`,
		`      composite items=2`,
		`        string "Open Sans"`,
		`    cmp min-width : 600px`,
	} {
		if !strings.Contains(got, want+"\n") && !strings.Contains(got, want+" ") {
			t.Errorf("dump misses %q:\n%s", want, got)
		}
	}
}
