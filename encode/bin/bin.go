// Package bin serializes IR into compact little-endian binary form and back.
//
// Layout, version 1:
//
//	u8  version
//	u16 id length, id bytes
//	u32 rule count, rules:
//	    u32 selector string ref, u32 order, u16 declaration count
//	    declarations: u16 property id, u8 tag (bit 7 set for !important), payload
//	    u32 condition ref (0xFFFFFFFF for none)
//	u32 string count, strings: u32 length, bytes
//	u32 condition count, condition nodes
//	u32 import count, imports: u32 url ref, u32 condition ref (0xFFFFFFFF for none)
//	u32 font face count, font faces:
//	    u32 family ref
//	    u16 source count, sources: u8 kind (0 url, 1 local), u32 name ref,
//	    u32 format ref (0xFFFFFFFF for none)
//	    u16 descriptor count, descriptors: u32 name ref, u8 tag, payload
//	u32 keyframes count, keyframes:
//	    u32 name ref, u16 frame count, frames:
//	    u16 offset count, f64 offsets, u16 declaration count,
//	    declarations: u16 property id, u8 tag, payload
//
// Value payloads: keyword u32 string ref, length f64 and u8 unit, color
// r g b a bytes, composite u16 count of (u8 tag, payload), number f64,
// string u32 string ref. Condition node: u8 kind; cmp has u32 feature ref,
// u8 op, u8 tag and payload; and/or have u16 count of nodes; not has one node.
package bin

import (
	"encoding/binary"
	"fmt"
	"math"

	"csscc/css"
	"csscc/ir"
	"csscc/media"
	"csscc/schema"
	"csscc/value"
)

// Version of the binary layout.
const Version = 1

const (
	noMedia       = math.MaxUint32
	noString      = math.MaxUint32
	importantFlag = 0x80
)

const (
	sourceURL uint8 = iota
	sourceLocal
)

var (
	ErrUnsupportedVersion = ir.ErrUnsupportedVersion
	ErrMalformed          = ir.ErrMalformed
)

type encoder struct {
	buf  []byte
	refs map[string]uint32
}

// Encode renders stylesheet in binary form.
func Encode(ss *ir.Stylesheet) ([]byte, error) {
	if len(ss.ID) > math.MaxUint16 {
		return nil, fmt.Errorf("stylesheet id is too long (%d bytes)", len(ss.ID))
	}
	e := &encoder{
		buf:  make([]byte, 0, 64+len(ss.Rules)*32),
		refs: make(map[string]uint32, len(ss.Strings)),
	}
	for i, s := range ss.Strings {
		if _, dup := e.refs[s]; !dup {
			e.refs[s] = uint32(i)
		}
	}

	e.u8(Version)
	e.u16(uint16(len(ss.ID)))
	e.buf = append(e.buf, ss.ID...)

	e.u32(uint32(len(ss.Rules)))
	for i := range ss.Rules {
		r := &ss.Rules[i]
		if r.Selectors < 0 || r.Selectors >= len(ss.Strings) {
			return nil, fmt.Errorf("rule %d: selector ref %d out of range", r.Order, r.Selectors)
		}
		if len(r.Declarations) > math.MaxUint16 {
			return nil, fmt.Errorf("rule %d: too many declarations", r.Order)
		}
		e.u32(uint32(r.Selectors))
		e.u32(uint32(r.Order))
		e.u16(uint16(len(r.Declarations)))
		for _, d := range r.Declarations {
			e.u16(uint16(d.Property))
			if err := e.value(d.Value, d.Important); err != nil {
				return nil, fmt.Errorf("rule %d, property %s: %w", r.Order, d.Property, err)
			}
		}
		switch {
		case r.Media == ir.NoMedia:
			e.u32(noMedia)
		case r.Media < 0 || r.Media >= len(ss.Conditions):
			return nil, fmt.Errorf("rule %d: condition ref %d out of range", r.Order, r.Media)
		default:
			e.u32(uint32(r.Media))
		}
	}

	e.u32(uint32(len(ss.Strings)))
	for _, s := range ss.Strings {
		e.u32(uint32(len(s)))
		e.buf = append(e.buf, s...)
	}

	e.u32(uint32(len(ss.Conditions)))
	for i, c := range ss.Conditions {
		if err := e.condition(c); err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
	}
	if err := e.atRules(ss); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func (e *encoder) atRules(ss *ir.Stylesheet) error {
	e.u32(uint32(len(ss.Imports)))
	for i, imp := range ss.Imports {
		if err := e.ref(imp.URL); err != nil {
			return fmt.Errorf("import %d: %w", i, err)
		}
		switch {
		case imp.Media == ir.NoMedia:
			e.u32(noMedia)
		case imp.Media < 0 || imp.Media >= len(ss.Conditions):
			return fmt.Errorf("import %d: condition ref %d out of range", i, imp.Media)
		default:
			e.u32(uint32(imp.Media))
		}
	}

	e.u32(uint32(len(ss.FontFaces)))
	for i, ff := range ss.FontFaces {
		if len(ff.Sources) > math.MaxUint16 || len(ff.Descriptors) > math.MaxUint16 {
			return fmt.Errorf("font face %d: too many sources or descriptors", i)
		}
		if err := e.ref(ff.Family); err != nil {
			return fmt.Errorf("font face %d: %w", i, err)
		}
		e.u16(uint16(len(ff.Sources)))
		for _, src := range ff.Sources {
			kind := sourceURL
			if src.Local {
				kind = sourceLocal
			}
			e.u8(kind)
			if err := e.ref(src.Name); err != nil {
				return fmt.Errorf("font face %d: %w", i, err)
			}
			if src.Format == "" {
				e.u32(noString)
			} else if err := e.ref(src.Format); err != nil {
				return fmt.Errorf("font face %d: %w", i, err)
			}
		}
		e.u16(uint16(len(ff.Descriptors)))
		for _, d := range ff.Descriptors {
			if err := e.ref(d.Name); err != nil {
				return fmt.Errorf("font face %d: %w", i, err)
			}
			if err := e.value(d.Value, false); err != nil {
				return fmt.Errorf("font face %d, descriptor %s: %w", i, d.Name, err)
			}
		}
	}

	e.u32(uint32(len(ss.Keyframes)))
	for _, kf := range ss.Keyframes {
		if len(kf.Frames) > math.MaxUint16 {
			return fmt.Errorf("keyframes %q: too many frames", kf.Name)
		}
		if err := e.ref(kf.Name); err != nil {
			return fmt.Errorf("keyframes %q: %w", kf.Name, err)
		}
		e.u16(uint16(len(kf.Frames)))
		for _, f := range kf.Frames {
			if len(f.Offsets) > math.MaxUint16 || len(f.Declarations) > math.MaxUint16 {
				return fmt.Errorf("keyframes %q: frame is too large", kf.Name)
			}
			e.u16(uint16(len(f.Offsets)))
			for _, o := range f.Offsets {
				e.f64(o)
			}
			e.u16(uint16(len(f.Declarations)))
			for _, d := range f.Declarations {
				e.u16(uint16(d.Property))
				if err := e.value(d.Value, false); err != nil {
					return fmt.Errorf("keyframes %q, property %s: %w", kf.Name, d.Property, err)
				}
			}
		}
	}
	return nil
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) f64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}

func (e *encoder) ref(s string) error {
	i, ok := e.refs[s]
	if !ok {
		return fmt.Errorf("string %q is not interned", s)
	}
	e.u32(i)
	return nil
}

func (e *encoder) value(v value.Value, important bool) error {
	tag := uint8(v.Tag)
	if important {
		tag |= importantFlag
	}
	e.u8(tag)
	return e.payload(v)
}

func (e *encoder) payload(v value.Value) error {
	switch v.Tag {
	case value.Keyword:
		return e.ref(v.Keyword)
	case value.Length:
		e.f64(v.Num)
		e.u8(uint8(v.Unit))
	case value.Color:
		e.buf = append(e.buf, v.Color.R, v.Color.G, v.Color.B, v.Color.A)
	case value.Number:
		e.f64(v.Num)
	case value.String:
		return e.ref(v.Str)
	case value.Composite:
		if len(v.Items) > math.MaxUint16 {
			return fmt.Errorf("too many composite items")
		}
		e.u16(uint16(len(v.Items)))
		for _, item := range v.Items {
			if err := e.value(item, false); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown value tag %d", v.Tag)
	}
	return nil
}

func (e *encoder) condition(c *media.Condition) error {
	e.u8(uint8(c.Kind))
	switch c.Kind {
	case media.Cmp:
		if err := e.ref(c.Feature); err != nil {
			return err
		}
		e.u8(uint8(c.Op))
		return e.value(c.Value, false)
	case media.And, media.Or:
		e.u16(uint16(len(c.Args)))
		for _, a := range c.Args {
			if err := e.condition(a); err != nil {
				return err
			}
		}
		return nil
	case media.Not:
		if len(c.Args) != 1 {
			return fmt.Errorf("not condition with %d arguments", len(c.Args))
		}
		return e.condition(c.Args[0])
	default:
		return fmt.Errorf("unknown condition kind %d", c.Kind)
	}
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*ir.Stylesheet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	if data[0] != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[0])
	}
	d := &decoder{data: data, pos: 1}
	ss := d.stylesheet()
	if d.err != nil {
		return nil, d.err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(d.data)-d.pos)
	}
	return ss, nil
}

// rawValue keeps string refs until the string table is read.
type rawValue struct {
	tag   value.Tag
	ref   uint32
	v     value.Value
	items []rawValue
}

type rawRule struct {
	selectors uint32
	order     uint32
	props     []schema.PropertyID
	important []bool
	values    []rawValue
	media     uint32
}

// decoder is sticky: after the first error all reads return zero values.
type decoder struct {
	data []byte
	pos  int
	err  error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s at offset %d", ErrMalformed, fmt.Sprintf(format, args...), d.pos)
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data)-d.pos < n {
		d.fail("unexpected end of data")
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u16() uint16 {
	if b := d.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) f64() float64 {
	if b := d.take(8); b != nil {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// count checks element count against remaining data, every element takes
// at least size bytes.
func (d *decoder) count(n uint32, size int) int {
	if d.err == nil && uint64(n)*uint64(size) > uint64(len(d.data)-d.pos) {
		d.fail("count %d exceeds data size", n)
		return 0
	}
	return int(n)
}

func (d *decoder) stylesheet() *ir.Stylesheet {
	ss := &ir.Stylesheet{Version: ir.Version}
	ss.ID = string(d.take(int(d.u16())))

	rules := make([]rawRule, d.count(d.u32(), 14))
	for i := range rules {
		r := &rules[i]
		r.selectors, r.order = d.u32(), d.u32()
		n := d.count(uint32(d.u16()), 3)
		r.props = make([]schema.PropertyID, n)
		r.important = make([]bool, n)
		r.values = make([]rawValue, n)
		for j := 0; j < n; j++ {
			r.props[j] = schema.PropertyID(d.u16())
			tag := d.u8()
			r.important[j] = tag&importantFlag != 0
			r.values[j] = d.value(value.Tag(tag &^ importantFlag))
		}
		r.media = d.u32()
		if d.err != nil {
			return nil
		}
	}

	ss.Strings = make([]string, d.count(d.u32(), 4))
	for i := range ss.Strings {
		ss.Strings[i] = string(d.take(int(d.u32())))
	}

	ss.Conditions = make([]*media.Condition, d.count(d.u32(), 1))
	for i := range ss.Conditions {
		ss.Conditions[i] = d.condition(ss.Strings, 0)
	}
	if d.err != nil {
		return nil
	}

	ss.Rules = make([]ir.Rule, len(rules))
	for i := range rules {
		ss.Rules[i] = d.rule(ss, i, &rules[i])
	}

	d.imports(ss)
	d.fontFaces(ss)
	d.keyframes(ss)
	if d.err != nil {
		return nil
	}
	return ss
}

// str reads a string ref, noString is returned as empty string when
// optional is set.
func (d *decoder) str(table []string, optional bool) string {
	ref := d.u32()
	switch {
	case d.err != nil:
		return ""
	case optional && ref == noString:
		return ""
	case int(ref) >= len(table):
		d.fail("string ref %d out of range", ref)
		return ""
	}
	return table[ref]
}

func (d *decoder) imports(ss *ir.Stylesheet) {
	n := d.count(d.u32(), 8)
	for i := 0; i < n && d.err == nil; i++ {
		imp := ir.Import{URL: d.str(ss.Strings, false), Media: ir.NoMedia}
		if imp.URL == "" {
			d.fail("import %d has no url", i)
		}
		if ref := d.u32(); ref != noMedia {
			if int(ref) >= len(ss.Conditions) {
				d.fail("import %d refers to condition %d", i, ref)
			}
			imp.Media = int(ref)
		}
		ss.Imports = append(ss.Imports, imp)
	}
}

func (d *decoder) fontFaces(ss *ir.Stylesheet) {
	n := d.count(d.u32(), 8)
	for i := 0; i < n && d.err == nil; i++ {
		ff := schema.FontFace{Family: d.str(ss.Strings, false)}
		sources := d.count(uint32(d.u16()), 9)
		if sources == 0 {
			d.fail("font face %d has no sources", i)
		}
		for j := 0; j < sources && d.err == nil; j++ {
			kind := d.u8()
			src := schema.FontSource{Local: kind == sourceLocal, Name: d.str(ss.Strings, false)}
			src.Format = d.str(ss.Strings, true)
			if kind > sourceLocal || (src.Local && src.Format != "") {
				d.fail("font face %d: invalid source", i)
			}
			ff.Sources = append(ff.Sources, src)
		}
		descriptors := d.count(uint32(d.u16()), 5)
		for j := 0; j < descriptors && d.err == nil; j++ {
			name := d.str(ss.Strings, false)
			tag := d.u8()
			if tag&importantFlag != 0 {
				d.fail("importance flag in font face")
			}
			v := d.resolve(d.value(value.Tag(tag)), ss.Strings)
			if d.err != nil {
				return
			}
			if !schema.FontDescriptor(name, v) {
				d.fail("font face %d: invalid descriptor %s", i, name)
			}
			if j > 0 && ff.Descriptors[j-1].Name >= name {
				d.fail("font face %d: descriptors not ordered by name", i)
			}
			ff.Descriptors = append(ff.Descriptors, schema.Descriptor{Name: name, Value: v})
		}
		ss.FontFaces = append(ss.FontFaces, ff)
	}
}

func (d *decoder) keyframes(ss *ir.Stylesheet) {
	n := d.count(d.u32(), 6)
	seen := make(map[string]bool, n)
	for i := 0; i < n && d.err == nil; i++ {
		kf := ir.Keyframes{Name: d.str(ss.Strings, false)}
		if seen[kf.Name] {
			d.fail("duplicate keyframes %q", kf.Name)
		}
		seen[kf.Name] = true
		frames := d.count(uint32(d.u16()), 4)
		for j := 0; j < frames && d.err == nil; j++ {
			var f ir.Keyframe
			offsets := d.count(uint32(d.u16()), 8)
			if offsets == 0 {
				d.fail("keyframes %q: frame without offsets", kf.Name)
			}
			for k := 0; k < offsets && d.err == nil; k++ {
				o := d.f64()
				if !(o >= 0 && o <= 100) {
					d.fail("keyframes %q: offset %v out of range", kf.Name, o)
				}
				f.Offsets = append(f.Offsets, o)
			}
			decls := d.count(uint32(d.u16()), 3)
			for k := 0; k < decls && d.err == nil; k++ {
				id := schema.PropertyID(d.u16())
				if _, ok := schema.LookupID(id); !ok && d.err == nil {
					d.fail("keyframes %q: unknown property %s", kf.Name, id)
				}
				if k > 0 && f.Declarations[k-1].Property >= id {
					d.fail("keyframes %q: declarations not ordered by property", kf.Name)
				}
				tag := d.u8()
				if tag&importantFlag != 0 {
					d.fail("importance flag in keyframes")
				}
				v := d.resolve(d.value(value.Tag(tag)), ss.Strings)
				f.Declarations = append(f.Declarations, ir.Declaration{Property: id, Value: v})
			}
			kf.Frames = append(kf.Frames, f)
		}
		ss.Keyframes = append(ss.Keyframes, kf)
	}
}

func (d *decoder) rule(ss *ir.Stylesheet, i int, raw *rawRule) ir.Rule {
	r := ir.Rule{Order: int(raw.order), Selectors: int(raw.selectors), Media: ir.NoMedia}
	if r.Order != i {
		d.fail("rule %d has order %d", i, r.Order)
		return r
	}
	if int(raw.selectors) >= len(ss.Strings) {
		d.fail("rule %d refers to string %d", i, raw.selectors)
		return r
	}
	if _, err := css.ParseSelectorList(ss.Strings[raw.selectors]); err != nil {
		d.fail("rule %d selectors: %v", i, err)
		return r
	}
	if raw.media != noMedia {
		if int(raw.media) >= len(ss.Conditions) {
			d.fail("rule %d refers to condition %d", i, raw.media)
			return r
		}
		r.Media = int(raw.media)
	}
	r.Declarations = make([]ir.Declaration, len(raw.props))
	for j, id := range raw.props {
		if _, ok := schema.LookupID(id); !ok {
			d.fail("rule %d: unknown property %s", i, id)
			return r
		}
		if j > 0 && raw.props[j-1] >= id {
			d.fail("rule %d: declarations not ordered by property", i)
			return r
		}
		r.Declarations[j] = ir.Declaration{
			Property:  id,
			Value:     d.resolve(raw.values[j], ss.Strings),
			Important: raw.important[j],
		}
	}
	return r
}

func (d *decoder) value(tag value.Tag) rawValue {
	rv := rawValue{tag: tag}
	switch tag {
	case value.Keyword, value.String:
		rv.ref = d.u32()
	case value.Length:
		n := d.f64()
		u := value.Unit(d.u8())
		if u > value.Percent {
			d.fail("unknown unit %d", u)
		}
		rv.v = value.LengthValue(n, u)
	case value.Color:
		if b := d.take(4); b != nil {
			rv.v = value.ColorValue(value.RGBA{R: b[0], G: b[1], B: b[2], A: b[3]})
		}
	case value.Number:
		rv.v = value.NumberValue(d.f64())
	case value.Composite:
		n := d.count(uint32(d.u16()), 2)
		if n == 0 {
			d.fail("empty composite")
		}
		rv.items = make([]rawValue, 0, n)
		for j := 0; j < n && d.err == nil; j++ {
			tag := d.u8()
			if tag&importantFlag != 0 {
				d.fail("importance flag inside composite")
			}
			rv.items = append(rv.items, d.value(value.Tag(tag)))
		}
	default:
		d.fail("unknown value tag %d", tag)
	}
	return rv
}

func (d *decoder) resolve(rv rawValue, table []string) value.Value {
	str := func() string {
		if int(rv.ref) >= len(table) {
			d.fail("string ref %d out of range", rv.ref)
			return ""
		}
		return table[rv.ref]
	}
	switch rv.tag {
	case value.Keyword:
		return value.KeywordValue(str())
	case value.String:
		return value.StringValue(str())
	case value.Composite:
		items := make([]value.Value, len(rv.items))
		for i, item := range rv.items {
			items[i] = d.resolve(item, table)
		}
		return value.CompositeValue(items...)
	default:
		return rv.v
	}
}

// maxDepth bounds condition nesting.
const maxDepth = 64

func (d *decoder) condition(table []string, depth int) *media.Condition {
	if depth > maxDepth {
		d.fail("condition nesting is too deep")
		return nil
	}
	c := &media.Condition{Kind: media.Kind(d.u8())}
	switch c.Kind {
	case media.Cmp:
		ref := d.u32()
		if d.err == nil && int(ref) >= len(table) {
			d.fail("feature ref %d out of range", ref)
		}
		c.Op = media.Op(d.u8())
		if c.Op > media.Colon {
			d.fail("unknown operator %d", c.Op)
		}
		tag := d.u8()
		if tag&importantFlag != 0 {
			d.fail("importance flag inside condition")
		}
		rv := d.value(value.Tag(tag))
		if d.err != nil {
			return nil
		}
		c.Feature = table[ref]
		c.Value = d.resolve(rv, table)
	case media.And, media.Or:
		n := d.count(uint32(d.u16()), 1)
		if n < 2 {
			d.fail("%s with %d arguments", c.Kind, n)
		}
		for j := 0; j < n && d.err == nil; j++ {
			c.Args = append(c.Args, d.condition(table, depth+1))
		}
	case media.Not:
		c.Args = []*media.Condition{d.condition(table, depth+1)}
	default:
		d.fail("unknown condition kind %d", c.Kind)
	}
	return c
}
