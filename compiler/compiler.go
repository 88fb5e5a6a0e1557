// Package compiler turns CSS source text into validated IR and its
// serialized forms.
package compiler

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"csscc/css"
	"csscc/diag"
	"csscc/encode/bin"
	"csscc/encode/text"
	"csscc/ir"
	"csscc/media"
	"csscc/schema"
)

// Compiler runs the whole pipeline. It holds no mutable state and may be
// used from multiple goroutines.
type Compiler struct {
	log *zap.Logger
}

// Result of a compilation. Diagnostics are recoverable problems, sorted by
// source position, each one is *diag.ParseError or *diag.ValidationError.
type Result struct {
	IR          *ir.Stylesheet
	Diagnostics []error
}

// Err combines all diagnostics into a single error, nil if there are none.
func (r *Result) Err() error {
	return diag.Combine(r.Diagnostics)
}

func New(log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{log: log.Named("css-compiler")}
}

// Compile builds IR for stylesheet src identified by id. Parse and
// validation problems drop the offending construct and are returned as
// diagnostics. Only a lexical error (*diag.LexError) fails compilation.
func (c *Compiler) Compile(id, src string) (*Result, error) {
	start := time.Now()
	src = css.Preprocess(src)
	loc := diag.NewLocator(src)

	toks, err := css.Tokenize(src)
	if err != nil {
		loc.Resolve([]error{err})
		return nil, fmt.Errorf("unable to tokenize stylesheet %q: %w", id, err)
	}

	sheet, diags := css.NewParser(c.log).Parse(toks)

	b := ir.NewBuilder(id)
	for _, item := range sheet.Items {
		switch {
		case item.Rule != nil:
			diags = c.addRule(b, item.Rule, nil, diags)
		case item.Media != nil:
			cond, err := media.Parse(item.Media.Prelude)
			if err != nil {
				var ve *diag.ValidationError
				if errors.As(err, &ve) && len(item.Media.Prelude) == 0 {
					ve.Pos.Offset = item.Media.Offset
				}
				c.log.Debug("Dropping @media block", zap.Int("rules", len(item.Media.Rules)), zap.Error(err))
				diags = append(diags, err)
				continue
			}
			for i := range item.Media.Rules {
				diags = c.addRule(b, &item.Media.Rules[i], cond, diags)
			}
		case item.Import != nil:
			var cond *media.Condition
			if len(item.Import.Media) > 0 {
				if cond, err = media.Parse(item.Import.Media); err != nil {
					c.log.Debug("Dropping @import", zap.String("url", item.Import.URL), zap.Error(err))
					diags = append(diags, err)
					continue
				}
			}
			b.AddImport(item.Import.URL, cond)
		case item.FontFace != nil:
			ff, errs := schema.ResolveFontFace(item.FontFace.Declarations, item.FontFace.Offset)
			diags = append(diags, errs...)
			if ff != nil {
				b.AddFontFace(*ff)
			}
		case item.Keyframes != nil:
			diags = c.addKeyframes(b, item.Keyframes, diags)
		}
	}

	res := &Result{IR: b.Build(), Diagnostics: diags}
	diag.Sort(res.Diagnostics)
	loc.Resolve(res.Diagnostics)
	for _, d := range res.Diagnostics {
		c.log.Warn("Stylesheet problem", zap.String("id", id), zap.String("category", diag.Category(d)), zap.Error(d))
	}
	c.log.Debug("Stylesheet compiled",
		zap.String("id", id),
		zap.Int("rules", len(res.IR.Rules)),
		zap.Int("strings", len(res.IR.Strings)),
		zap.Int("conditions", len(res.IR.Conditions)),
		zap.Int("imports", len(res.IR.Imports)),
		zap.Int("font-faces", len(res.IR.FontFaces)),
		zap.Int("keyframes", len(res.IR.Keyframes)),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (c *Compiler) addRule(b *ir.Builder, r *css.Rule, cond *media.Condition, diags []error) []error {
	decls, diags := resolve(r.Declarations, diags)
	b.AddRule(r.Selectors, decls, cond)
	return diags
}

// addKeyframes drops important declarations, they are ignored in keyframes.
func (c *Compiler) addKeyframes(b *ir.Builder, kf *css.Keyframes, diags []error) []error {
	frames := make([]ir.Keyframe, 0, len(kf.Frames))
	for _, f := range kf.Frames {
		raw := make([]css.Declaration, 0, len(f.Declarations))
		for _, d := range f.Declarations {
			if d.Important {
				diags = append(diags, &diag.ValidationError{Kind: diag.InvalidValue, Property: d.Property,
					Pos: diag.Position{Offset: d.Offset}, Detail: "!important in @keyframes"})
				continue
			}
			raw = append(raw, d)
		}
		var decls []ir.Declaration
		decls, diags = resolve(raw, diags)
		frames = append(frames, ir.Keyframe{Offsets: f.Offsets, Declarations: decls})
	}
	b.AddKeyframes(kf.Name, frames)
	return diags
}

func resolve(raw []css.Declaration, diags []error) ([]ir.Declaration, []error) {
	decls := make([]ir.Declaration, 0, len(raw))
	for _, d := range raw {
		assigns, err := schema.Resolve(d.Property, d.Value)
		if err != nil {
			diags = append(diags, err)
			continue
		}
		for _, a := range assigns {
			decls = append(decls, ir.Declaration{Property: a.Property, Value: a.Value, Important: d.Important})
		}
	}
	return decls, diags
}

// CompileToStructuredText compiles src and returns IR in structured text
// form. Diagnostics are not reported, the output omits what they dropped.
func CompileToStructuredText(id, src string) ([]byte, error) {
	res, err := New(nil).Compile(id, src)
	if err != nil {
		return nil, err
	}
	return text.Encode(res.IR)
}

// CompileToBinary compiles src and returns IR in binary form. Diagnostics
// are not reported, the output omits what they dropped.
func CompileToBinary(id, src string) ([]byte, error) {
	res, err := New(nil).Compile(id, src)
	if err != nil {
		return nil, err
	}
	return bin.Encode(res.IR)
}
