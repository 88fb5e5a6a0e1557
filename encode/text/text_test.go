package text

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/amazon-ion/ion-go/ion"

	"csscc/css"
	"csscc/ir"
	"csscc/media"
	"csscc/schema"
	"csscc/value"
)

func sample(t *testing.T) *ir.Stylesheet {
	t.Helper()
	sel := func(text string) css.SelectorList {
		l, err := css.ParseSelectorList(text)
		if err != nil {
			t.Fatalf("ParseSelectorList(%q): %v", text, err)
		}
		return l
	}
	cond := func(text string) *media.Condition {
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

	b := ir.NewBuilder("sample")
	b.AddRule(sel("h1, .title > span::before"), []ir.Declaration{
		{Property: schema.Display, Value: value.KeywordValue("flex")},
		{Property: schema.Width, Value: value.LengthValue(50, value.Percent), Important: true},
		{Property: schema.ColorProp, Value: value.ColorValue(value.RGBA{R: 0xaa, G: 0xbb, B: 0xcc, A: 0xff})},
		{Property: schema.Opacity, Value: value.NumberValue(0.5)},
		{Property: schema.FontFamily, Value: value.CompositeValue(value.StringValue("Open Sans"), value.KeywordValue("serif"))},
	}, nil)
	b.AddRule(sel("p"), nil, cond("screen and (min-width: 600px), not print, (400px <= width < 800px)"))
	b.AddRule(sel("#id:hover"), []ir.Declaration{
		{Property: schema.MarginLeft, Value: value.LengthValue(-10, value.Rpx)},
		{Property: schema.FontFamily, Value: value.CompositeValue(value.StringValue(""))},
	}, cond("(prefers-color-scheme: dark)"))
	b.AddRule(sel(`.\- ~ a[href^="http" i]:nth-child(2n+1)`), nil, nil)
	b.AddImport("base.css", nil)
	b.AddImport("print.css", cond("print"))
	b.AddFontFace(schema.FontFace{
		Family:      "Open Sans",
		Sources:     []schema.FontSource{{Name: "a.woff2", Format: "woff2"}, {Local: true, Name: "Arial"}},
		Descriptors: []schema.Descriptor{{Name: "font-weight", Value: value.NumberValue(700)}},
	})
	b.AddKeyframes("fade", []ir.Keyframe{
		{Offsets: []float64{0, 25.5}, Declarations: []ir.Declaration{{Property: schema.Opacity, Value: value.NumberValue(0)}}},
		{Offsets: []float64{100}, Declarations: []ir.Declaration{{Property: schema.Opacity, Value: value.NumberValue(1)}}},
	})
	return b.Build()
}

func TestRoundTrip(t *testing.T) {
	ss := sample(t)
	data, err := Encode(ss)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v\n%s", err, data)
	}
	if !ir.Equal(ss, got) {
		t.Errorf("decoded IR differs\nwant:\n%s\ngot:\n%s", ss.Dump(), got.Dump())
	}
}

func TestDeterministic(t *testing.T) {
	a, err := Encode(sample(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Encode(sample(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestReadable(t *testing.T) {
	data, err := Encode(sample(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"csscc-ir"`, `"sample"`, `"h1, .title > span::before"`, `"#aabbccff"`, `"Open Sans"`, `"min-width"`, `"display"`,
		`imports`, `"print.css"`, `font_faces`, `"local"`, `"woff2"`, `keyframes`, `"fade"`, `25.5`} {
		if !strings.Contains(out, want) {
			t.Errorf("text form misses %s:\n%s", want, out)
		}
	}
	// keys must follow document order
	if strings.Index(out, "format") > strings.Index(out, "rules") || strings.Index(out, "rules") > strings.Index(out, "conditions") {
		t.Errorf("unexpected field order:\n%s", out)
	}
}

func TestDecode_Errors(t *testing.T) {
	marshal := func(t *testing.T, doc document) []byte {
		t.Helper()
		data, err := ion.MarshalText(doc)
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		return data
	}
	rule := func(mod func(*ruleDoc)) document {
		r := ruleDoc{Order: 0, Selectors: "a", Declarations: []declDoc{
			{Property: "display", ID: int(schema.Display), Value: valueDoc{Kind: "keyword", Keyword: "block"}},
		}}
		mod(&r)
		return document{Format: Format, Version: ir.Version, ID: "x", Rules: []ruleDoc{r}}
	}
	ref := func(i int) *int { return &i }

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"garbage", []byte("{format:"), ErrMalformed},
		{"format", marshal(t, document{Format: "other", Version: ir.Version}), ErrMalformed},
		{"version", marshal(t, document{Format: Format, Version: 2}), ErrUnsupportedVersion},
		{"valid", marshal(t, rule(func(*ruleDoc) {})), nil},
		{"order", marshal(t, rule(func(r *ruleDoc) { r.Order = 3 })), ErrMalformed},
		{"selectors", marshal(t, rule(func(r *ruleDoc) { r.Selectors = "a:not(b)" })), ErrMalformed},
		{"media ref", marshal(t, rule(func(r *ruleDoc) { r.Media = ref(0) })), ErrMalformed},
		{"property", marshal(t, rule(func(r *ruleDoc) { r.Declarations[0].ID = 0x02 })), ErrMalformed},
		{"kind", marshal(t, rule(func(r *ruleDoc) { r.Declarations[0].Value.Kind = "angle" })), ErrMalformed},
		{"color", marshal(t, rule(func(r *ruleDoc) { r.Declarations[0].Value = valueDoc{Kind: "color", Color: "#abc"} })), ErrMalformed},
		{"unit", marshal(t, rule(func(r *ruleDoc) {
			n := 1.0
			r.Declarations[0].Value = valueDoc{Kind: "length", Number: &n, Unit: "pt"}
		})), ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_AtRuleErrors(t *testing.T) {
	base := func() document {
		return document{Format: Format, Version: ir.Version, ID: "x",
			Imports: []importDoc{{URL: "a.css"}},
			FontFaces: []fontFaceDoc{{Family: "F", Src: []sourceDoc{{Kind: "url", Name: "f.woff", Format: "woff"}},
				Descriptors: []descriptorDoc{{Name: "font-style", Value: valueDoc{Kind: "keyword", Keyword: "italic"}}}}},
			Keyframes: []keyframesDoc{{Name: "k", Frames: []frameDoc{{Offsets: []float64{0, 100}, Declarations: []declDoc{
				{Property: "opacity", ID: int(schema.Opacity), Value: valueDoc{Kind: "number", Number: new(float64)}},
			}}}}},
		}
	}
	ref := func(i int) *int { return &i }
	tests := []struct {
		name string
		mod  func(*document)
	}{
		{"valid", func(*document) {}},
		{"import url", func(d *document) { d.Imports[0].URL = "" }},
		{"import media", func(d *document) { d.Imports[0].Media = ref(0) }},
		{"family", func(d *document) { d.FontFaces[0].Family = "" }},
		{"no src", func(d *document) { d.FontFaces[0].Src = nil }},
		{"source kind", func(d *document) { d.FontFaces[0].Src[0].Kind = "file" }},
		{"local format", func(d *document) { d.FontFaces[0].Src[0].Kind = "local" }},
		{"descriptor", func(d *document) { d.FontFaces[0].Descriptors[0].Name = "color" }},
		{"descriptor value", func(d *document) { d.FontFaces[0].Descriptors[0].Value.Keyword = "bold" }},
		{"duplicate descriptor", func(d *document) {
			d.FontFaces[0].Descriptors = append(d.FontFaces[0].Descriptors, d.FontFaces[0].Descriptors[0])
		}},
		{"keyframes name", func(d *document) { d.Keyframes[0].Name = "" }},
		{"duplicate keyframes", func(d *document) { d.Keyframes = append(d.Keyframes, d.Keyframes[0]) }},
		{"no offsets", func(d *document) { d.Keyframes[0].Frames[0].Offsets = nil }},
		{"offset range", func(d *document) { d.Keyframes[0].Frames[0].Offsets[1] = 100.5 }},
		{"important frame", func(d *document) { d.Keyframes[0].Frames[0].Declarations[0].Important = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := base()
			tt.mod(&doc)
			data, err := ion.MarshalText(doc)
			if err != nil {
				t.Fatalf("MarshalText: %v", err)
			}
			ss, err := Decode(data)
			if tt.name == "valid" {
				if err != nil || len(ss.Imports) != 1 || len(ss.FontFaces) != 1 || len(ss.Keyframes) != 1 {
					t.Errorf("Decode = %+v, %v", ss, err)
				}
				return
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecode_Conditions(t *testing.T) {
	bad := []conditionDoc{
		{Kind: "xor"},
		{Kind: "cmp", Feature: "width", Op: "=~"},
		{Kind: "not"},
		{Kind: "and", Args: []conditionDoc{{Kind: "cmp", Feature: "width", Op: "=", Value: &valueDoc{Kind: "keyword", Keyword: "x"}}}},
	}
	for _, cd := range bad {
		if _, err := decodeCondition(cd); !errors.Is(err, ErrMalformed) {
			t.Errorf("decodeCondition(%+v) = %v, want ErrMalformed", cd, err)
		}
	}
}
