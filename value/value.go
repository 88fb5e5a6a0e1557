// Package value defines resolved, validated property values.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag discriminates Value variants. Numeric values are part of the binary
// IR format.
type Tag uint8

const (
	Keyword Tag = iota
	Length
	Color
	Composite
	Number
	String
)

func (t Tag) String() string {
	switch t {
	case Keyword:
		return "keyword"
	case Length:
		return "length"
	case Color:
		return "color"
	case Composite:
		return "composite"
	case Number:
		return "number"
	case String:
		return "string"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// ParseTag is inverse of Tag.String.
func ParseTag(s string) (Tag, bool) {
	for t := Keyword; t <= String; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Unit of a Length. Numeric values are part of the binary IR format.
type Unit uint8

const (
	Px Unit = iota
	Em
	Rem
	Vw
	Vh
	Vmin
	Vmax
	Rpx
	Percent
)

var unitNames = [...]string{
	Px:      "px",
	Em:      "em",
	Rem:     "rem",
	Vw:      "vw",
	Vh:      "vh",
	Vmin:    "vmin",
	Vmax:    "vmax",
	Rpx:     "rpx",
	Percent: "%",
}

func (u Unit) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}
	return fmt.Sprintf("Unit(%d)", uint8(u))
}

// ParseUnit maps lower-case unit text to Unit.
func ParseUnit(s string) (Unit, bool) {
	for i, name := range unitNames {
		if name == s {
			return Unit(i), true
		}
	}
	return 0, false
}

// RGBA is a straight (non-premultiplied) 8 bit per channel color.
type RGBA struct {
	R, G, B, A uint8
}

// Hex returns "#rrggbbaa".
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseHex accepts 3, 4, 6 or 8 hex digits with or without leading "#".
// Short forms expand each digit (#abc is #aabbcc).
func ParseHex(s string) (RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	digits := make([]uint8, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits[i] = c - '0'
		case c >= 'a' && c <= 'f':
			digits[i] = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			digits[i] = c - 'A' + 10
		default:
			return RGBA{}, fmt.Errorf("invalid hex digit %q in color %q", c, s)
		}
	}

	switch len(digits) {
	case 3, 4:
		ch := make([]uint8, 4)
		ch[3] = 0xff
		for i, d := range digits {
			ch[i] = d<<4 | d
		}
		return RGBA{ch[0], ch[1], ch[2], ch[3]}, nil
	case 6, 8:
		ch := []uint8{0, 0, 0, 0xff}
		for i := 0; i < len(digits); i += 2 {
			ch[i/2] = digits[i]<<4 | digits[i+1]
		}
		return RGBA{ch[0], ch[1], ch[2], ch[3]}, nil
	default:
		return RGBA{}, fmt.Errorf("hex color %q must have 3, 4, 6 or 8 digits", s)
	}
}

// Value is a tagged union, only fields relevant to Tag are set.
type Value struct {
	Tag     Tag
	Keyword string  // Keyword
	Num     float64 // Length, Number
	Unit    Unit    // Length
	Color   RGBA    // Color
	Str     string  // String
	Items   []Value // Composite
}

func KeywordValue(kw string) Value {
	return Value{Tag: Keyword, Keyword: kw}
}

func LengthValue(n float64, u Unit) Value {
	return Value{Tag: Length, Num: n, Unit: u}
}

func ColorValue(c RGBA) Value {
	return Value{Tag: Color, Color: c}
}

func NumberValue(n float64) Value {
	return Value{Tag: Number, Num: n}
}

func StringValue(s string) Value {
	return Value{Tag: String, Str: s}
}

func CompositeValue(items ...Value) Value {
	return Value{Tag: Composite, Items: items}
}

// FormatNumber prints shortest representation that parses back exactly.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func (v Value) String() string {
	switch v.Tag {
	case Keyword:
		return v.Keyword
	case Length:
		return FormatNumber(v.Num) + v.Unit.String()
	case Color:
		return v.Color.Hex()
	case Number:
		return FormatNumber(v.Num)
	case String:
		return strconv.Quote(v.Str)
	case Composite:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.String()
		}
		return strings.Join(parts, " ")
	default:
		return v.Tag.String()
	}
}

// Equal compares values variant-wise ignoring fields irrelevant to Tag.
func Equal(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case Keyword:
		return a.Keyword == b.Keyword
	case Length:
		return a.Num == b.Num && a.Unit == b.Unit
	case Color:
		return a.Color == b.Color
	case Number:
		return a.Num == b.Num
	case String:
		return a.Str == b.Str
	case Composite:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
