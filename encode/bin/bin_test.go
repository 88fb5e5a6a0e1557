package bin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

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
	}, cond("(prefers-color-scheme: dark)"))
	b.AddRule(sel("a"), []ir.Declaration{
		{Property: schema.ZIndex, Value: value.NumberValue(3)},
	}, cond("screen and (min-width: 600px), not print, (400px <= width < 800px)"))
	b.AddRule(sel(`.\- ~ a[href^="http" i]:nth-child(2n+1)`), nil, nil)
	b.AddImport("base.css", nil)
	b.AddImport("print.css", cond("print"))
	b.AddFontFace(schema.FontFace{
		Family:  "Open Sans",
		Sources: []schema.FontSource{{Name: "a.woff2", Format: "woff2"}, {Local: true, Name: "Arial"}},
		Descriptors: []schema.Descriptor{
			{Name: "font-weight", Value: value.NumberValue(700)},
			{Name: "font-style", Value: value.KeywordValue("italic")},
		},
	})
	b.AddKeyframes("fade", []ir.Keyframe{
		{Offsets: []float64{0, 25.5}, Declarations: []ir.Declaration{{Property: schema.Opacity, Value: value.NumberValue(0)}}},
		{Offsets: []float64{100}, Declarations: []ir.Declaration{
			{Property: schema.Opacity, Value: value.NumberValue(1)},
			{Property: schema.ColorProp, Value: value.KeywordValue("currentcolor")},
		}},
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
		t.Fatalf("Decode: %v", err)
	}
	if !ir.Equal(ss, got) {
		t.Errorf("decoded IR differs\nwant:\n%s\ngot:\n%s", ss.Dump(), got.Dump())
	}
	again, err := Encode(got)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("re-encoding decoded IR changed bytes")
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

func TestHeader(t *testing.T) {
	data, err := Encode(sample(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if data[0] != Version {
		t.Errorf("version byte = %d", data[0])
	}
	if n := binary.LittleEndian.Uint16(data[1:]); n != uint16(len("sample")) || string(data[3:3+n]) != "sample" {
		t.Errorf("id = %q", data[3:3+n])
	}
	if n := binary.LittleEndian.Uint32(data[9:]); n != 5 {
		t.Errorf("rule count = %d, want 5", n)
	}
	// first rule: selector ref 0, order 0, 5 declarations
	if sel, order, decls := binary.LittleEndian.Uint32(data[13:]), binary.LittleEndian.Uint32(data[17:]), binary.LittleEndian.Uint16(data[21:]); sel != 0 || order != 0 || decls != 5 {
		t.Errorf("first rule header = %d %d %d", sel, order, decls)
	}
	// display comes first, its tag is keyword without importance
	if id, tag := binary.LittleEndian.Uint16(data[23:]), data[25]; id != uint16(schema.Display) || tag != uint8(value.Keyword) {
		t.Errorf("first declaration = %#04x tag %#02x", id, tag)
	}
}

func TestImportantFlag(t *testing.T) {
	ss := sample(t)
	data, err := Encode(ss)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d, ok := got.Rules[0].Lookup(schema.Width)
	if !ok || !d.Important {
		t.Errorf("width lost importance: %+v", d)
	}
	d, _ = got.Rules[0].Lookup(schema.Display)
	if d.Important {
		t.Error("display gained importance")
	}
}

func TestDecode_Errors(t *testing.T) {
	data, err := Encode(sample(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	t.Run("unsupported version", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] = 2
		if _, err := Decode(bad); !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("got %v, want ErrUnsupportedVersion", err)
		}
	})
	t.Run("empty", func(t *testing.T) {
		if _, err := Decode(nil); !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})
	t.Run("trailing", func(t *testing.T) {
		if _, err := Decode(append(bytes.Clone(data), 0)); !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})
	t.Run("truncated", func(t *testing.T) {
		for n := 1; n < len(data); n++ {
			if _, err := Decode(data[:n]); !errors.Is(err, ErrMalformed) {
				t.Fatalf("prefix of %d bytes: got %v, want ErrMalformed", n, err)
			}
		}
	})
	t.Run("unknown property", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint16(bad[23:], 0xffff)
		if _, err := Decode(bad); !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})
	t.Run("order", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad[17:], 7)
		if _, err := Decode(bad); !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})
}

func TestRoundTrip_AtRules(t *testing.T) {
	data, err := Encode(sample(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SelectorText(&got.Rules[4]) != `.\- ~ a[href^="http" i]:nth-child(2n+1)` {
		t.Errorf("selectors = %q", got.SelectorText(&got.Rules[4]))
	}
	if len(got.Imports) != 2 || got.Imports[1].URL != "print.css" || got.Conditions[got.Imports[1].Media].String() != "print" {
		t.Errorf("imports = %+v", got.Imports)
	}
	if ff := got.FontFaces[0]; ff.Family != "Open Sans" || len(ff.Sources) != 2 || !ff.Sources[1].Local || ff.Sources[0].Format != "woff2" {
		t.Errorf("font face = %+v", ff)
	}
	if kf := got.Keyframes[0]; kf.Name != "fade" || len(kf.Frames) != 2 || kf.Frames[0].Offsets[1] != 25.5 {
		t.Errorf("keyframes = %+v", kf)
	}
}

func TestDecode_AtRuleErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ss *ir.Stylesheet)
	}{
		{"offset out of range", func(ss *ir.Stylesheet) { ss.Keyframes[0].Frames[1].Offsets[0] = 150 }},
		{"frame without offsets", func(ss *ir.Stylesheet) { ss.Keyframes[0].Frames[1].Offsets = nil }},
		{"keyframe declarations order", func(ss *ir.Stylesheet) {
			d := ss.Keyframes[0].Frames[1].Declarations
			d[0], d[1] = d[1], d[0]
		}},
		{"duplicate keyframes", func(ss *ir.Stylesheet) { ss.Keyframes = append(ss.Keyframes, ss.Keyframes[0]) }},
		{"local source with format", func(ss *ir.Stylesheet) { ss.FontFaces[0].Sources[1].Format = "woff2" }},
		{"no sources", func(ss *ir.Stylesheet) { ss.FontFaces[0].Sources = nil }},
		{"unknown descriptor", func(ss *ir.Stylesheet) { ss.FontFaces[0].Descriptors[0].Name = "fade" }},
		{"descriptor value", func(ss *ir.Stylesheet) { ss.FontFaces[0].Descriptors[0].Value = value.KeywordValue("woff2") }},
		{"descriptors order", func(ss *ir.Stylesheet) {
			d := ss.FontFaces[0].Descriptors
			d[0], d[1] = d[1], d[0]
		}},
		{"empty import url", func(ss *ir.Stylesheet) {
			ss.Strings = append(ss.Strings, "")
			ss.Imports[0].URL = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := sample(t)
			tt.mutate(ss)
			data, err := Encode(ss)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if _, err := Decode(data); !errors.Is(err, ErrMalformed) {
				t.Errorf("got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestEncode_NotInterned(t *testing.T) {
	ss := sample(t)
	ss.Rules[0].Declarations[0].Value = value.KeywordValue("not-in-table")
	if _, err := Encode(ss); err == nil {
		t.Error("expected error for value missing from string table")
	}
}
