package media

import (
	"errors"
	"testing"

	"csscc/css"
	"csscc/diag"
	"csscc/value"
)

func prelude(t *testing.T, src string) []css.Token {
	t.Helper()
	toks, err := css.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	return toks[:len(toks)-1]
}

func TestParse(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"screen", "screen"},
		{"SCREEN", "screen"},
		{"only screen", "screen"},
		{"not print", "not print"},
		{"(min-width: 600px)", "(min-width: 600px)"},
		{"(MAX-WIDTH:0)", "(max-width: 0px)"},
		{"screen and (min-width: 600px)", "screen and (min-width: 600px)"},
		{"screen and (min-width: 600px) and (orientation: landscape)", "screen and (min-width: 600px) and (orientation: landscape)"},
		{"not screen and (orientation: portrait)", "not screen and (orientation: portrait)"},
		{"screen, print", "screen, print"},
		{"(width >= 600px)", "(width >= 600px)"},
		{"(width<=600px)", "(width <= 600px)"},
		{"(height = 100px)", "(height = 100px)"},
		{"(600px < width)", "(width > 600px)"},
		{"(400px <= width < 800px)", "(width >= 400px) and (width < 800px)"},
		{"(prefers-color-scheme: dark)", "(prefers-color-scheme: dark)"},
		{"(min-width: 1px) or (max-width: 2px)", "(min-width: 1px), (max-width: 2px)"},
		{"not (orientation: portrait)", "not (orientation: portrait)"},
		{"((min-width: 1px) or (max-width: 2px)) and (orientation: portrait)", "((min-width: 1px) or (max-width: 2px)) and (orientation: portrait)"},
		{"screen and not (orientation: portrait)", "screen and not (orientation: portrait)"},
		{"screen and((min-width: 1px))", "screen and (min-width: 1px)"},
		{"((min-width: 1px) or (max-width: 2px)), print", "((min-width: 1px) or (max-width: 2px)), print"},
		{"(min-width: 1px), (max-width: 2px), print", "(min-width: 1px), (max-width: 2px), print"},
		{"(min-width: 1px) or (max-width: 2px), print", "((min-width: 1px) or (max-width: 2px)), print"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			c, err := Parse(prelude(t, tt.src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := c.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_Structure(t *testing.T) {
	c, err := Parse(prelude(t, "screen and (min-width: 600px), print"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Condition{Kind: Or, Args: []*Condition{
		{Kind: And, Args: []*Condition{
			cmp(TypeFeature, Eq, value.KeywordValue("screen")),
			cmp("min-width", Colon, value.LengthValue(600, value.Px)),
		}},
		cmp(TypeFeature, Eq, value.KeywordValue("print")),
	}}
	if !Equal(c, want) {
		t.Errorf("got %s, want %s", c, want)
	}

	var cmps int
	c.Walk(func(n *Condition) {
		if n.Kind == Cmp {
			cmps++
		}
	})
	if cmps != 3 {
		t.Errorf("walk visited %d comparisons, want 3", cmps)
	}
}

func TestParse_NestedQueryList(t *testing.T) {
	nested, err := Parse(prelude(t, "((min-width: 1px) or (max-width: 2px)), print"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	flat, err := Parse(prelude(t, "(min-width: 1px), (max-width: 2px), print"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(nested.Args) != 2 || len(flat.Args) != 3 {
		t.Fatalf("args: nested %d, flat %d", len(nested.Args), len(flat.Args))
	}
	if Equal(nested, flat) || nested.String() == flat.String() {
		t.Errorf("different lists share canonical text %q", nested)
	}
	// canonical text parses back into the same tree
	for _, c := range []*Condition{nested, flat} {
		again, err := Parse(prelude(t, c.String()))
		if err != nil {
			t.Fatalf("Parse(%q): %v", c, err)
		}
		if !Equal(c, again) {
			t.Errorf("%q parsed back as %q", c, again)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		src string
		at  int
	}{
		{"", 0},
		{"tv", 0},
		{"screen (min-width: 1px)", 7},
		{"screen and", 10},
		{"(color)", 1},
		{"(min-width: 10em)", 12},
		{"(min-width: 10%)", 12},
		{"(min-width: 1e400px)", 12},
		{"(min-width: 1e-400px)", 12},
		{"(orientation: sideways)", 14},
		{"(prefers-color-scheme: blue)", 23},
		{"(min-width >= 10px)", 1},
		{"(orientation > portrait)", 1},
		{"(min-width: 1px) and (max-width: 2px) or (orientation: portrait)", 38},
		{"screen and (min-width: 1px) or (max-width: 2px)", 28},
		{"(min-width: 1px", 0},
		{"screen,", 7},
		{", screen", 0},
		{"(1px < width > 2px)", 1},
		{"(bogus: 1px)", 1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Parse(prelude(t, tt.src))
			var ve *diag.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *diag.ValidationError, got %v", err)
			}
			if ve.Kind != diag.InvalidMediaFeature {
				t.Errorf("kind = %v", ve.Kind)
			}
			if ve.Pos.Offset != tt.at {
				t.Errorf("offset = %d, want %d (%v)", ve.Pos.Offset, tt.at, err)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := cmp("width", Ge, value.LengthValue(1, value.Px))
	b := cmp("width", Ge, value.LengthValue(1, value.Px))
	c := cmp("width", Gt, value.LengthValue(1, value.Px))
	if !Equal(a, b) || Equal(a, c) || Equal(a, nil) || !Equal(nil, nil) {
		t.Error("unexpected Equal results")
	}
}

func TestOpKindNames(t *testing.T) {
	for o := Eq; o <= Colon; o++ {
		if got, ok := ParseOp(o.String()); !ok || got != o {
			t.Errorf("ParseOp(%q) = %v, %v", o, got, ok)
		}
	}
	for k := Cmp; k <= Not; k++ {
		if got, ok := ParseKind(k.String()); !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k, got, ok)
		}
	}
}
