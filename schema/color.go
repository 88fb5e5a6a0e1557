package schema

import (
	"math"

	"golang.org/x/image/colornames"

	"csscc/css"
	"csscc/diag"
	"csscc/value"
)

// Color matches hex colors, named colors, transparent, currentcolor (kept
// as Keyword) and rgb()/rgba() functions.
type Color struct{}

func (g Color) match(cs []component) (value.Value, *mismatch) {
	return matchSingle(g, cs)
}

func (g Color) matchOne(c component) (value.Value, bool) {
	switch c.tok.Kind {
	case css.Hash:
		if !c.tok.HexColor {
			return value.Value{}, false
		}
		rgba, err := value.ParseHex(c.tok.Value)
		if err != nil {
			return value.Value{}, false
		}
		return value.ColorValue(rgba), true

	case css.Ident:
		name := fold(c.tok.Value)
		switch name {
		case "currentcolor":
			return value.KeywordValue(name), true
		case "transparent":
			return value.ColorValue(value.RGBA{}), true
		}
		if named, ok := colornames.Map[name]; ok {
			return value.ColorValue(value.RGBA{R: named.R, G: named.G, B: named.B, A: named.A}), true
		}
		return value.Value{}, false

	case css.Function:
		switch fold(c.tok.Value) {
		case "rgb", "rgba":
			rgba, ok := parseRGBFunction(c.args)
			if !ok {
				return value.Value{}, false
			}
			return value.ColorValue(rgba), true
		}
	}
	return value.Value{}, false
}

func (g Color) claims(c component) bool {
	switch c.tok.Kind {
	case css.Hash, css.Ident:
		return true
	case css.Function:
		name := fold(c.tok.Value)
		return name == "rgb" || name == "rgba"
	}
	return false
}

func (g Color) failKind(component) diag.ValidationErrorKind {
	return diag.InvalidColor
}

func (g Color) String() string {
	return "<color>"
}

// parseRGBFunction accepts legacy comma separated and modern space
// separated ("r g b / a") argument forms with three or four channels.
func parseRGBFunction(args []css.Token) (value.RGBA, bool) {
	var (
		nums   []css.Token
		commas int
		slash  bool
	)
	for _, t := range args {
		switch {
		case t.IsDelim(","):
			commas++
		case t.IsDelim("/"):
			if slash || len(nums) != 3 {
				return value.RGBA{}, false
			}
			slash = true
		case (t.Kind == css.Number || t.Kind == css.Percentage) && t.Finite():
			nums = append(nums, t)
		default:
			return value.RGBA{}, false
		}
	}
	if len(nums) != 3 && len(nums) != 4 {
		return value.RGBA{}, false
	}
	if commas != 0 && (slash || commas != len(nums)-1) {
		return value.RGBA{}, false
	}
	if commas == 0 && len(nums) == 4 && !slash {
		return value.RGBA{}, false
	}

	// channels must not mix numbers and percentages
	for _, t := range nums[1:3] {
		if t.Kind != nums[0].Kind {
			return value.RGBA{}, false
		}
	}

	var ch [4]uint8
	for i, t := range nums[:3] {
		n := t.Num
		if t.Kind == css.Percentage {
			n = n * 255 / 100
		}
		ch[i] = clampByte(n)
	}
	ch[3] = 0xff
	if len(nums) == 4 {
		a := nums[3].Num
		if nums[3].Kind == css.Percentage {
			a /= 100
		}
		ch[3] = clampByte(a * 255)
	}
	return value.RGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, true
}

func clampByte(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, f))))
}
