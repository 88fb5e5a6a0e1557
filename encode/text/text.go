// Package text serializes IR into human readable structured text (Amazon
// Ion text, a JSON superset) and back.
package text

import (
	"fmt"

	"github.com/amazon-ion/ion-go/ion"

	"csscc/css"
	"csscc/ir"
	"csscc/media"
	"csscc/schema"
	"csscc/value"
)

// Format identifies documents produced by this package.
const Format = "csscc-ir"

var (
	ErrUnsupportedVersion = ir.ErrUnsupportedVersion
	ErrMalformed          = ir.ErrMalformed
)

// Document layout. Field order follows struct order, so output is
// deterministic.
type (
	document struct {
		Format     string         `ion:"format"`
		Version    int            `ion:"version"`
		ID         string         `ion:"id"`
		Rules      []ruleDoc      `ion:"rules"`
		Imports    []importDoc    `ion:"imports,omitempty"`
		FontFaces  []fontFaceDoc  `ion:"font_faces,omitempty"`
		Keyframes  []keyframesDoc `ion:"keyframes,omitempty"`
		Conditions []conditionDoc `ion:"conditions"`
	}

	importDoc struct {
		URL   string `ion:"url"`
		Media *int   `ion:"media,omitempty"`
	}

	fontFaceDoc struct {
		Family      string          `ion:"family"`
		Src         []sourceDoc     `ion:"src"`
		Descriptors []descriptorDoc `ion:"descriptors,omitempty"`
	}

	sourceDoc struct {
		Kind   string `ion:"kind"` // url or local
		Name   string `ion:"name"`
		Format string `ion:"format,omitempty"`
	}

	descriptorDoc struct {
		Name  string   `ion:"name"`
		Value valueDoc `ion:"value"`
	}

	keyframesDoc struct {
		Name   string     `ion:"name"`
		Frames []frameDoc `ion:"frames"`
	}

	frameDoc struct {
		Offsets      []float64 `ion:"offsets"`
		Declarations []declDoc `ion:"declarations"`
	}

	ruleDoc struct {
		Order        int       `ion:"order"`
		Selectors    string    `ion:"selectors"`
		Media        *int      `ion:"media,omitempty"`
		Declarations []declDoc `ion:"declarations"`
	}

	declDoc struct {
		Property  string   `ion:"property"`
		ID        int      `ion:"id"`
		Important bool     `ion:"important,omitempty"`
		Value     valueDoc `ion:"value"`
	}

	valueDoc struct {
		Kind    string     `ion:"kind"`
		Keyword string     `ion:"keyword,omitempty"`
		Number  *float64   `ion:"number,omitempty"`
		Unit    string     `ion:"unit,omitempty"`
		Color   string     `ion:"color,omitempty"`
		String  *string    `ion:"string,omitempty"`
		Items   []valueDoc `ion:"items,omitempty"`
	}

	conditionDoc struct {
		Kind    string         `ion:"kind"`
		Feature string         `ion:"feature,omitempty"`
		Op      string         `ion:"op,omitempty"`
		Value   *valueDoc      `ion:"value,omitempty"`
		Args    []conditionDoc `ion:"args,omitempty"`
	}
)

// Encode renders stylesheet as Ion text.
func Encode(ss *ir.Stylesheet) ([]byte, error) {
	doc := document{
		Format:     Format,
		Version:    ss.Version,
		ID:         ss.ID,
		Rules:      make([]ruleDoc, 0, len(ss.Rules)),
		Conditions: make([]conditionDoc, 0, len(ss.Conditions)),
	}
	for i := range ss.Rules {
		r := &ss.Rules[i]
		rd := ruleDoc{
			Order:        r.Order,
			Selectors:    ss.SelectorText(r),
			Declarations: make([]declDoc, 0, len(r.Declarations)),
		}
		if r.Media != ir.NoMedia {
			ref := r.Media
			rd.Media = &ref
		}
		for _, d := range r.Declarations {
			rd.Declarations = append(rd.Declarations, encodeDeclaration(d))
		}
		doc.Rules = append(doc.Rules, rd)
	}
	for _, imp := range ss.Imports {
		id := importDoc{URL: imp.URL}
		if imp.Media != ir.NoMedia {
			ref := imp.Media
			id.Media = &ref
		}
		doc.Imports = append(doc.Imports, id)
	}
	for _, ff := range ss.FontFaces {
		fd := fontFaceDoc{Family: ff.Family, Src: make([]sourceDoc, 0, len(ff.Sources))}
		for _, src := range ff.Sources {
			sd := sourceDoc{Kind: "url", Name: src.Name, Format: src.Format}
			if src.Local {
				sd.Kind = "local"
			}
			fd.Src = append(fd.Src, sd)
		}
		for _, d := range ff.Descriptors {
			fd.Descriptors = append(fd.Descriptors, descriptorDoc{Name: d.Name, Value: encodeValue(d.Value)})
		}
		doc.FontFaces = append(doc.FontFaces, fd)
	}
	for _, kf := range ss.Keyframes {
		kd := keyframesDoc{Name: kf.Name, Frames: make([]frameDoc, 0, len(kf.Frames))}
		for _, f := range kf.Frames {
			fd := frameDoc{Offsets: f.Offsets, Declarations: make([]declDoc, 0, len(f.Declarations))}
			for _, d := range f.Declarations {
				fd.Declarations = append(fd.Declarations, encodeDeclaration(d))
			}
			kd.Frames = append(kd.Frames, fd)
		}
		doc.Keyframes = append(doc.Keyframes, kd)
	}
	for _, c := range ss.Conditions {
		doc.Conditions = append(doc.Conditions, encodeCondition(c))
	}

	data, err := ion.MarshalText(doc)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal IR %q: %w", ss.ID, err)
	}
	return data, nil
}

func encodeDeclaration(d ir.Declaration) declDoc {
	return declDoc{
		Property:  d.Property.String(),
		ID:        int(d.Property),
		Important: d.Important,
		Value:     encodeValue(d.Value),
	}
}

func encodeValue(v value.Value) valueDoc {
	d := valueDoc{Kind: v.Tag.String()}
	switch v.Tag {
	case value.Keyword:
		d.Keyword = v.Keyword
	case value.Length:
		n := v.Num
		d.Number, d.Unit = &n, v.Unit.String()
	case value.Number:
		n := v.Num
		d.Number = &n
	case value.Color:
		d.Color = v.Color.Hex()
	case value.String:
		s := v.Str
		d.String = &s
	case value.Composite:
		d.Items = make([]valueDoc, 0, len(v.Items))
		for _, item := range v.Items {
			d.Items = append(d.Items, encodeValue(item))
		}
	}
	return d
}

func encodeCondition(c *media.Condition) conditionDoc {
	d := conditionDoc{Kind: c.Kind.String()}
	if c.Kind == media.Cmp {
		v := encodeValue(c.Value)
		d.Feature, d.Op, d.Value = c.Feature, c.Op.String(), &v
		return d
	}
	for _, a := range c.Args {
		d.Args = append(d.Args, encodeCondition(a))
	}
	return d
}

// Decode parses Ion text produced by Encode. The stylesheet is rebuilt
// with ir.Builder, so interning tables are recreated in canonical order.
func Decode(data []byte) (*ir.Stylesheet, error) {
	var doc document
	if err := ion.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc.Format != Format {
		return nil, fmt.Errorf("%w: unexpected format %q", ErrMalformed, doc.Format)
	}
	if doc.Version != ir.Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}

	conds := make([]*media.Condition, len(doc.Conditions))
	for i, cd := range doc.Conditions {
		c, err := decodeCondition(cd)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		conds[i] = c
	}

	b := ir.NewBuilder(doc.ID)
	for i, rd := range doc.Rules {
		if rd.Order != i {
			return nil, fmt.Errorf("%w: rule %d has order %d", ErrMalformed, i, rd.Order)
		}
		sels, err := css.ParseSelectorList(rd.Selectors)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d selectors: %w", ErrMalformed, i, err)
		}
		var cond *media.Condition
		if rd.Media != nil {
			if *rd.Media < 0 || *rd.Media >= len(conds) {
				return nil, fmt.Errorf("%w: rule %d refers to condition %d", ErrMalformed, i, *rd.Media)
			}
			cond = conds[*rd.Media]
		}
		decls := make([]ir.Declaration, 0, len(rd.Declarations))
		for _, dd := range rd.Declarations {
			d, err := decodeDeclaration(dd)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			decls = append(decls, d)
		}
		b.AddRule(sels, decls, cond)
	}

	for i, id := range doc.Imports {
		if id.URL == "" {
			return nil, fmt.Errorf("%w: import %d has no url", ErrMalformed, i)
		}
		var cond *media.Condition
		if id.Media != nil {
			if *id.Media < 0 || *id.Media >= len(conds) {
				return nil, fmt.Errorf("%w: import %d refers to condition %d", ErrMalformed, i, *id.Media)
			}
			cond = conds[*id.Media]
		}
		b.AddImport(id.URL, cond)
	}
	for i, fd := range doc.FontFaces {
		ff, err := decodeFontFace(fd)
		if err != nil {
			return nil, fmt.Errorf("font face %d: %w", i, err)
		}
		b.AddFontFace(ff)
	}
	names := make(map[string]bool, len(doc.Keyframes))
	for _, kd := range doc.Keyframes {
		if kd.Name == "" || names[kd.Name] {
			return nil, fmt.Errorf("%w: missing or duplicate keyframes name %q", ErrMalformed, kd.Name)
		}
		names[kd.Name] = true
		frames, err := decodeFrames(kd.Frames)
		if err != nil {
			return nil, fmt.Errorf("keyframes %q: %w", kd.Name, err)
		}
		b.AddKeyframes(kd.Name, frames)
	}
	return b.Build(), nil
}

func decodeFontFace(fd fontFaceDoc) (schema.FontFace, error) {
	if fd.Family == "" || len(fd.Src) == 0 {
		return schema.FontFace{}, fmt.Errorf("%w: family and src are required", ErrMalformed)
	}
	ff := schema.FontFace{Family: fd.Family}
	for _, sd := range fd.Src {
		src := schema.FontSource{Name: sd.Name, Format: sd.Format}
		switch sd.Kind {
		case "url":
		case "local":
			src.Local = true
		default:
			return schema.FontFace{}, fmt.Errorf("%w: unknown source kind %q", ErrMalformed, sd.Kind)
		}
		if src.Name == "" || (src.Local && src.Format != "") {
			return schema.FontFace{}, fmt.Errorf("%w: bad %s source", ErrMalformed, sd.Kind)
		}
		ff.Sources = append(ff.Sources, src)
	}
	seen := make(map[string]bool, len(fd.Descriptors))
	for _, dd := range fd.Descriptors {
		v, err := decodeValue(dd.Value)
		if err != nil {
			return schema.FontFace{}, fmt.Errorf("descriptor %s: %w", dd.Name, err)
		}
		if seen[dd.Name] || !schema.FontDescriptor(dd.Name, v) {
			return schema.FontFace{}, fmt.Errorf("%w: bad descriptor %s", ErrMalformed, dd.Name)
		}
		seen[dd.Name] = true
		ff.Descriptors = append(ff.Descriptors, schema.Descriptor{Name: dd.Name, Value: v})
	}
	return ff, nil
}

func decodeFrames(fds []frameDoc) ([]ir.Keyframe, error) {
	frames := make([]ir.Keyframe, 0, len(fds))
	for i, fd := range fds {
		if len(fd.Offsets) == 0 {
			return nil, fmt.Errorf("%w: frame %d without offsets", ErrMalformed, i)
		}
		for _, o := range fd.Offsets {
			if !(o >= 0 && o <= 100) {
				return nil, fmt.Errorf("%w: frame %d offset %v out of range", ErrMalformed, i, o)
			}
		}
		f := ir.Keyframe{Offsets: fd.Offsets}
		for _, dd := range fd.Declarations {
			d, err := decodeDeclaration(dd)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			if d.Important {
				return nil, fmt.Errorf("%w: frame %d: important %s", ErrMalformed, i, d.Property)
			}
			f.Declarations = append(f.Declarations, d)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func decodeDeclaration(dd declDoc) (ir.Declaration, error) {
	e, ok := schema.LookupID(schema.PropertyID(dd.ID))
	if !ok || e.Name != dd.Property {
		return ir.Declaration{}, fmt.Errorf("%w: unknown property %q (%#02x)", ErrMalformed, dd.Property, dd.ID)
	}
	v, err := decodeValue(dd.Value)
	if err != nil {
		return ir.Declaration{}, fmt.Errorf("property %s: %w", e.Name, err)
	}
	return ir.Declaration{Property: e.ID, Value: v, Important: dd.Important}, nil
}

func decodeValue(d valueDoc) (value.Value, error) {
	tag, ok := value.ParseTag(d.Kind)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: unknown value kind %q", ErrMalformed, d.Kind)
	}
	switch tag {
	case value.Keyword:
		if d.Keyword == "" {
			return value.Value{}, fmt.Errorf("%w: keyword value without keyword", ErrMalformed)
		}
		return value.KeywordValue(d.Keyword), nil
	case value.Length:
		u, ok := value.ParseUnit(d.Unit)
		if d.Number == nil || !ok {
			return value.Value{}, fmt.Errorf("%w: bad length", ErrMalformed)
		}
		return value.LengthValue(*d.Number, u), nil
	case value.Number:
		if d.Number == nil {
			return value.Value{}, fmt.Errorf("%w: number value without number", ErrMalformed)
		}
		return value.NumberValue(*d.Number), nil
	case value.Color:
		c, err := value.ParseHex(d.Color)
		if err != nil || len(d.Color) != len("#rrggbbaa") {
			return value.Value{}, fmt.Errorf("%w: bad color %q", ErrMalformed, d.Color)
		}
		return value.ColorValue(c), nil
	case value.String:
		if d.String == nil {
			return value.Value{}, fmt.Errorf("%w: string value without string", ErrMalformed)
		}
		return value.StringValue(*d.String), nil
	default:
		if len(d.Items) == 0 {
			return value.Value{}, fmt.Errorf("%w: empty composite", ErrMalformed)
		}
		items := make([]value.Value, 0, len(d.Items))
		for _, id := range d.Items {
			item, err := decodeValue(id)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, item)
		}
		return value.CompositeValue(items...), nil
	}
}

func decodeCondition(d conditionDoc) (*media.Condition, error) {
	kind, ok := media.ParseKind(d.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown condition kind %q", ErrMalformed, d.Kind)
	}
	c := &media.Condition{Kind: kind}
	switch kind {
	case media.Cmp:
		op, ok := media.ParseOp(d.Op)
		if !ok || d.Feature == "" || d.Value == nil {
			return nil, fmt.Errorf("%w: bad comparison", ErrMalformed)
		}
		v, err := decodeValue(*d.Value)
		if err != nil {
			return nil, err
		}
		c.Feature, c.Op, c.Value = d.Feature, op, v
		return c, nil
	case media.Not:
		if len(d.Args) != 1 {
			return nil, fmt.Errorf("%w: not takes one argument, got %d", ErrMalformed, len(d.Args))
		}
	default:
		if len(d.Args) < 2 {
			return nil, fmt.Errorf("%w: %s takes at least two arguments", ErrMalformed, kind)
		}
	}
	for _, ad := range d.Args {
		a, err := decodeCondition(ad)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, a)
	}
	return c, nil
}
