package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"csscc/diag"
	"csscc/encode/bin"
	"csscc/encode/text"
	"csscc/ir"
	"csscc/schema"
	"csscc/value"
)

const example = `.my-class { color: #abc; }
@media (max-width: 800px) {
  .my-class {
    color: 200px;
    flex-flow: column-reverse wrap;
    pointer-events: auto;
  }
}
`

func compile(t *testing.T, src string) *Result {
	t.Helper()
	res, err := New(zaptest.NewLogger(t)).Compile("test", src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return res
}

// describe renders rule declarations as "name=value" joined by ";".
func describe(r ir.Rule) string {
	parts := make([]string, len(r.Declarations))
	for i, d := range r.Declarations {
		parts[i] = d.Property.String() + "=" + d.Value.String()
		if d.Important {
			parts[i] += "!"
		}
	}
	return strings.Join(parts, ";")
}

func TestCompile_Example(t *testing.T) {
	res := compile(t, example)
	ss := res.IR

	if len(ss.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d:\n%s", len(ss.Rules), ss.Dump())
	}
	first, second := ss.Rules[0], ss.Rules[1]
	if ss.SelectorText(&first) != ".my-class" || first.Selectors != second.Selectors {
		t.Errorf("selectors = %q / %q", ss.SelectorText(&first), ss.SelectorText(&second))
	}
	if first.Media != ir.NoMedia {
		t.Error("first rule must be unconditional")
	}
	if got := describe(first); got != "color=#aabbccff" {
		t.Errorf("first rule = %s", got)
	}
	if c := ss.Condition(&second); c == nil || c.String() != "(max-width: 800px)" {
		t.Errorf("second rule condition = %v", c)
	}
	if got := describe(second); got != "pointer-events=auto;flex-direction=column-reverse;flex-wrap=wrap" {
		t.Errorf("second rule = %s", got)
	}
	if _, ok := second.Lookup(schema.ColorProp); ok {
		t.Error("invalid color must be dropped")
	}

	if len(res.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", res.Diagnostics)
	}
	var ve *diag.ValidationError
	if !errors.As(res.Diagnostics[0], &ve) {
		t.Fatalf("expected validation error, got %v", res.Diagnostics[0])
	}
	if ve.Kind != diag.InvalidColor || ve.Property != "color" {
		t.Errorf("diagnostic = %v", ve)
	}
	if ve.Pos != (diag.Position{Offset: 80, Line: 4, Col: 12}) {
		t.Errorf("diagnostic position = %+v", ve.Pos)
	}
	if res.Err() == nil {
		t.Error("Err() must report diagnostics")
	}
}

func TestCompile_RoundTrip(t *testing.T) {
	res := compile(t, example+`
h1, h2 > a:hover::before { margin: 1px auto; font-family: "Open Sans", serif; width: 50% !important }
@media screen and (orientation: landscape), print { p { border: thin dashed red } }
`)

	t.Run("binary", func(t *testing.T) {
		data, err := bin.Encode(res.IR)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := bin.Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !ir.Equal(res.IR, got) {
			t.Errorf("round trip mismatch\nwant:\n%s\ngot:\n%s", res.IR.Dump(), got.Dump())
		}
	})
	t.Run("text", func(t *testing.T) {
		data, err := text.Encode(res.IR)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := text.Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !ir.Equal(res.IR, got) {
			t.Errorf("round trip mismatch\nwant:\n%s\ngot:\n%s", res.IR.Dump(), got.Dump())
		}
	})
}

func TestCompile_Deterministic(t *testing.T) {
	for name, fn := range map[string]func(string, string) ([]byte, error){
		"binary": CompileToBinary,
		"text":   CompileToStructuredText,
	} {
		t.Run(name, func(t *testing.T) {
			a, err := fn("x", example)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			b, err := fn("x", example)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if !bytes.Equal(a, b) {
				t.Error("output is not deterministic")
			}
		})
	}
}

func TestCompile_PartialFailure(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		rules []string
		kinds []string
	}{
		{
			name:  "bad declaration keeps siblings",
			src:   "a { color: red; width: ; display: block }",
			rules: []string{"display=block;color=#ff0000ff"},
			kinds: []string{"parse"},
		},
		{
			name:  "unknown property",
			src:   "a { colour: red; display: none }",
			rules: []string{"display=none"},
			kinds: []string{"validation"},
		},
		{
			name:  "bad selector skips rule only",
			src:   "a:not(.x) { display: none } b { display: block }",
			rules: []string{"display=block"},
			kinds: []string{"parse"},
		},
		{
			name:  "all declarations dropped keeps rule",
			src:   "a { color: 1px } b { order: 1 }",
			rules: []string{"", "order=1"},
			kinds: []string{"validation"},
		},
		{
			name:  "invalid media drops block",
			src:   "@media (color) { a { display: none } } b { display: block }",
			rules: []string{"display=block"},
			kinds: []string{"validation"},
		},
		{
			name:  "unsupported at-rule",
			src:   `@charset "utf-8"; @page { margin: 0 } a { display: flex }`,
			rules: []string{"display=flex"},
			kinds: []string{"parse", "parse"},
		},
		{
			name:  "out of range length",
			src:   "a { width: 1e400px; height: 1e-400px; order: 1 }",
			rules: []string{"order=1"},
			kinds: []string{"validation", "validation"},
		},
		{
			name:  "custom property",
			src:   "a { --main: red; display: flex }",
			rules: []string{"display=flex"},
			kinds: []string{"validation"},
		},
		{
			name:  "important survives later declaration",
			src:   "a { color: red !important; color: blue }",
			rules: []string{"color=#ff0000ff!"},
			kinds: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, tt.src)
			var rules []string
			for _, r := range res.IR.Rules {
				rules = append(rules, describe(r))
			}
			if fmt.Sprint(rules) != fmt.Sprint(tt.rules) {
				t.Errorf("rules = %q, want %q", rules, tt.rules)
			}
			var kinds []string
			for _, d := range res.Diagnostics {
				kinds = append(kinds, diag.Category(d))
			}
			if fmt.Sprint(kinds) != fmt.Sprint(tt.kinds) {
				t.Errorf("diagnostics = %v, want kinds %v", res.Diagnostics, tt.kinds)
			}
		})
	}
}

func TestCompile_Shorthand(t *testing.T) {
	res := compile(t, "a { flex-flow: column-reverse wrap; flex-direction: row }")
	if got := describe(res.IR.Rules[0]); got != "flex-direction=row;flex-wrap=wrap" {
		t.Errorf("got %s", got)
	}
}

func TestCompile_MediaScoping(t *testing.T) {
	res := compile(t, `
a { display: block }
@media print { a { display: none } b { display: none } }
@media print { c { display: none } }
@media screen { d { display: none } }
e { display: block }
`)
	want := []string{"", "print", "print", "print", "screen", ""}
	if len(res.IR.Rules) != len(want) {
		t.Fatalf("rules = %d, want %d", len(res.IR.Rules), len(want))
	}
	for i, r := range res.IR.Rules {
		got := ""
		if c := res.IR.Condition(&r); c != nil {
			got = c.String()
		}
		if got != want[i] || r.Order != i {
			t.Errorf("rule %d: condition %q order %d, want %q", i, got, r.Order, want[i])
		}
	}
	if len(res.IR.Conditions) != 2 {
		t.Errorf("conditions must be interned, got %d", len(res.IR.Conditions))
	}
}

func TestCompile_LexErrorAborts(t *testing.T) {
	_, err := New(zaptest.NewLogger(t)).Compile("x", "a { display: block }\nb { content: \"oops\n}")
	var le *diag.LexError
	if !errors.As(err, &le) {
		t.Fatalf("expected *diag.LexError, got %v", err)
	}
	if le.Kind != diag.UnterminatedString || le.Pos.Line != 2 || le.Pos.Col != 14 {
		t.Errorf("lex error = %+v", le)
	}
	if _, err := CompileToBinary("x", `a { b: "unterminated`); err == nil {
		t.Error("CompileToBinary must fail on lexical error")
	}
	if _, err := CompileToStructuredText("x", `a { b: "unterminated`); err == nil {
		t.Error("CompileToStructuredText must fail on lexical error")
	}
}

func TestCompile_DiagnosticsSorted(t *testing.T) {
	res := compile(t, "a { colour: red } @media (bogus) { b { c: d } } e { width: wide }")
	if len(res.Diagnostics) != 3 {
		t.Fatalf("diagnostics = %v", res.Diagnostics)
	}
	prev := -1
	for _, d := range res.Diagnostics {
		pos, ok := diag.PositionOf(d)
		if !ok || pos.Offset < prev || pos.Line != 1 {
			t.Errorf("unexpected position %+v for %v", pos, d)
		}
		prev = pos.Offset
	}
}

func TestCompile_AtRules(t *testing.T) {
	res := compile(t, `
@import "base.css";
@import url(print.css) print;
@import url(bad.css) (bogus);
@font-face { font-family: "Open Sans"; src: url(a.woff2) format("woff2"), local(Arial); font-weight: bold }
@font-face { font-family: Lost }
@keyframes fade { from { opacity: 0 } to { opacity: 1 !important } }
@keyframes spin { 0%, 100% { order: 1 } }
@keyframes fade { 50% { opacity: .5; colour: red } }
a { display: block }
`)
	ss := res.IR

	if len(ss.Imports) != 2 {
		t.Fatalf("imports = %+v", ss.Imports)
	}
	if ss.Imports[0].URL != "base.css" || ss.Imports[0].Media != ir.NoMedia {
		t.Errorf("import 0 = %+v", ss.Imports[0])
	}
	if c := ss.Imports[1]; c.URL != "print.css" || c.Media < 0 || ss.Conditions[c.Media].String() != "print" {
		t.Errorf("import 1 = %+v", c)
	}

	if len(ss.FontFaces) != 1 {
		t.Fatalf("font faces = %+v", ss.FontFaces)
	}
	ff := ss.FontFaces[0]
	if ff.Family != "Open Sans" || len(ff.Sources) != 2 || ff.Sources[0].Format != "woff2" || !ff.Sources[1].Local {
		t.Errorf("font face = %+v", ff)
	}
	if len(ff.Descriptors) != 1 || ff.Descriptors[0].Name != "font-weight" || ff.Descriptors[0].Value.String() != "bold" {
		t.Errorf("descriptors = %+v", ff.Descriptors)
	}

	var names []string
	for _, kf := range ss.Keyframes {
		names = append(names, kf.Name)
	}
	if fmt.Sprint(names) != "[spin fade]" {
		t.Fatalf("keyframes = %v, later duplicate must replace earlier", names)
	}
	fade := ss.Keyframes[1]
	if len(fade.Frames) != 1 || fmt.Sprint(fade.Frames[0].Offsets) != "[50]" || len(fade.Frames[0].Declarations) != 1 {
		t.Errorf("fade = %+v", fade)
	}

	var kinds []string
	for _, d := range res.Diagnostics {
		var ve *diag.ValidationError
		if errors.As(d, &ve) {
			kinds = append(kinds, ve.Kind.String())
		}
	}
	want := []string{
		diag.InvalidMediaFeature.String(), // (bogus) import media
		diag.MissingDescriptor.String(),   // font face without src
		diag.InvalidValue.String(),        // important in keyframe
		diag.UnknownProperty.String(),     // colour
	}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Errorf("diagnostics = %v", res.Diagnostics)
	}
}

func TestCompile_AtRulesRoundTrip(t *testing.T) {
	res := compile(t, `
@import url(print.css) print and (min-width: 10px);
@font-face { font-family: Open Sans; src: local("Open Sans"), url(o.woff); font-display: swap }
@keyframes pulse { from, 50% { opacity: 0 } to { opacity: 1 } }
.\- ~ a[href^="http" i]:nth-child(2n+1), #main > b[lang|=en] { display: none }
@media ((min-width: 1px) or (max-width: 2px)), print { p { order: 1 } }
@media (min-width: 1px), (max-width: 2px), print { q { order: 2 } }
`)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("diagnostics = %v", res.Diagnostics)
	}
	if len(res.IR.Conditions) != 3 {
		t.Errorf("conditions = %v, nested or must stay distinct", res.IR.Conditions)
	}
	if got := res.IR.SelectorText(&res.IR.Rules[0]); got != `.\- ~ a[href^="http" i]:nth-child(2n+1), #main > b[lang|="en"]` {
		t.Errorf("selectors = %s", got)
	}

	for name, codec := range map[string]struct {
		enc func(*ir.Stylesheet) ([]byte, error)
		dec func([]byte) (*ir.Stylesheet, error)
	}{
		"binary": {bin.Encode, bin.Decode},
		"text":   {text.Encode, text.Decode},
	} {
		t.Run(name, func(t *testing.T) {
			data, err := codec.enc(res.IR)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := codec.dec(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !ir.Equal(res.IR, got) {
				t.Errorf("round trip mismatch\nwant:\n%s\ngot:\n%s", res.IR.Dump(), got.Dump())
			}
		})
	}
}

func TestCompile_Empty(t *testing.T) {
	res := compile(t, "  /* nothing */ ")
	if len(res.IR.Rules) != 0 || len(res.Diagnostics) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	data, err := bin.Encode(res.IR)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := bin.Decode(data)
	if err != nil || !ir.Equal(res.IR, got) {
		t.Errorf("empty stylesheet round trip: %v", err)
	}
}

func TestCompile_Concurrent(t *testing.T) {
	want, err := CompileToBinary("shared", example)
	if err != nil {
		t.Fatalf("CompileToBinary: %v", err)
	}
	c := New(zaptest.NewLogger(t))
	for i := range 8 {
		t.Run(fmt.Sprintf("worker-%d", i), func(t *testing.T) {
			t.Parallel()
			for range 20 {
				res, err := c.Compile("shared", example)
				if err != nil {
					t.Errorf("Compile: %v", err)
					return
				}
				got, err := bin.Encode(res.IR)
				if err != nil || !bytes.Equal(got, want) {
					t.Errorf("concurrent compilation differs: %v", err)
					return
				}
			}
		})
	}
}

func TestCompile_ValueKinds(t *testing.T) {
	res := compile(t, "a { font-family: Arial Black, serif; z-index: -2; width: 0; opacity: .25 }")
	r := res.IR.Rules[0]
	checks := []struct {
		prop schema.PropertyID
		want value.Value
	}{
		{schema.FontFamily, value.CompositeValue(value.StringValue("Arial Black"), value.KeywordValue("serif"))},
		{schema.ZIndex, value.NumberValue(-2)},
		{schema.Width, value.LengthValue(0, value.Px)},
		{schema.Opacity, value.NumberValue(0.25)},
	}
	for _, c := range checks {
		d, ok := r.Lookup(c.prop)
		if !ok || !value.Equal(d.Value, c.want) {
			t.Errorf("%s = %v, want %v", c.prop, d.Value, c.want)
		}
	}
}
