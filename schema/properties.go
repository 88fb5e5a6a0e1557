package schema

import (
	"fmt"

	"csscc/value"
)

// Property ids are part of the binary IR format and must never change.
const (
	Display             PropertyID = 0x01
	Position            PropertyID = 0x02
	OverflowX           PropertyID = 0x03
	OverflowY           PropertyID = 0x04
	PointerEvents       PropertyID = 0x05
	BoxSizing           PropertyID = 0x08
	Float               PropertyID = 0x0b
	OverflowWrap        PropertyID = 0x0c
	ZIndex              PropertyID = 0x0e
	Visibility          PropertyID = 0x10
	ColorProp           PropertyID = 0x11
	Opacity             PropertyID = 0x12
	CaretColor          PropertyID = 0x13
	FlexDirection       PropertyID = 0x20
	FlexWrap            PropertyID = 0x21
	AlignItems          PropertyID = 0x22
	AlignSelf           PropertyID = 0x23
	AlignContent        PropertyID = 0x24
	JustifyContent      PropertyID = 0x25
	FlexGrow            PropertyID = 0x26
	FlexShrink          PropertyID = 0x27
	FlexBasis           PropertyID = 0x28
	Order               PropertyID = 0x2a
	RowGap              PropertyID = 0x2b
	ColumnGap           PropertyID = 0x2c
	BackgroundColor     PropertyID = 0x30
	Width               PropertyID = 0x40
	Height              PropertyID = 0x41
	MinWidth            PropertyID = 0x42
	MinHeight           PropertyID = 0x43
	MaxWidth            PropertyID = 0x44
	MaxHeight           PropertyID = 0x45
	Left                PropertyID = 0x46
	Right               PropertyID = 0x47
	Top                 PropertyID = 0x48
	Bottom              PropertyID = 0x49
	PaddingLeft         PropertyID = 0x50
	PaddingRight        PropertyID = 0x51
	PaddingTop          PropertyID = 0x52
	PaddingBottom       PropertyID = 0x53
	MarginLeft          PropertyID = 0x54
	MarginRight         PropertyID = 0x55
	MarginTop           PropertyID = 0x56
	MarginBottom        PropertyID = 0x57
	BorderLeftWidth     PropertyID = 0x60
	BorderLeftStyle     PropertyID = 0x61
	BorderLeftColor     PropertyID = 0x62
	BorderRightWidth    PropertyID = 0x63
	BorderRightStyle    PropertyID = 0x64
	BorderRightColor    PropertyID = 0x65
	BorderTopWidth      PropertyID = 0x66
	BorderTopStyle      PropertyID = 0x67
	BorderTopColor      PropertyID = 0x68
	BorderBottomWidth   PropertyID = 0x69
	BorderBottomStyle   PropertyID = 0x6a
	BorderBottomColor   PropertyID = 0x6b
	FontSize            PropertyID = 0x90
	Direction           PropertyID = 0x91
	WritingMode         PropertyID = 0x92
	LineHeight          PropertyID = 0x93
	TextAlign           PropertyID = 0x94
	FontWeight          PropertyID = 0x95
	WordBreak           PropertyID = 0x96
	WhiteSpace          PropertyID = 0x97
	TextOverflow        PropertyID = 0x98
	TextIndent          PropertyID = 0x99
	FontFamily          PropertyID = 0x9d
	FontStyle           PropertyID = 0x9e
	TextDecorationLine  PropertyID = 0xa0
	TextDecorationColor PropertyID = 0xa2
)

var (
	overflowKeywords = Keywords{"visible", "hidden", "auto", "scroll"}
	borderStyles     = Keywords{"none", "solid", "dotted", "dashed", "hidden", "double", "groove", "ridge", "inset", "outset"}
	borderWidth      = OneOf{Keywords{"thin", "medium", "thick"}, Length{NonNegative: true}}
	gap              = OneOf{Keywords{"normal"}, Length{Percent: true, NonNegative: true}}
	size             = OneOf{Keywords{"auto"}, Length{Percent: true, NonNegative: true}}
	maxSize          = OneOf{Keywords{"none"}, Length{Percent: true, NonNegative: true}}
	offset           = OneOf{Keywords{"auto"}, Length{Percent: true}}
	padding          = Length{Percent: true, NonNegative: true}
	margin           = OneOf{Keywords{"auto"}, Length{Percent: true}}

	black        = value.ColorValue(value.RGBA{A: 0xff})
	currentColor = value.KeywordValue("currentcolor")
	zeroPx       = value.LengthValue(0, value.Px)
	auto         = value.KeywordValue("auto")
)

func kw(s string) value.Value {
	return value.KeywordValue(s)
}

// longhands is the property table, ordered by id.
var longhands = []Entry{
	{Display, "display", Keywords{"none", "block", "inline", "inline-block", "flex", "grid", "flow-root", "inline-flex"}, kw("inline"), false},
	{Position, "position", Keywords{"static", "relative", "absolute", "fixed", "sticky"}, kw("static"), false},
	{OverflowX, "overflow-x", overflowKeywords, kw("visible"), false},
	{OverflowY, "overflow-y", overflowKeywords, kw("visible"), false},
	{PointerEvents, "pointer-events", Keywords{"auto", "none"}, auto, true},
	{BoxSizing, "box-sizing", Keywords{"content-box", "padding-box", "border-box"}, kw("content-box"), false},
	{Float, "float", Keywords{"none", "left", "right", "inline-start", "inline-end"}, kw("none"), false},
	{OverflowWrap, "overflow-wrap", Keywords{"normal", "break-word"}, kw("normal"), true},
	{ZIndex, "z-index", OneOf{Keywords{"auto"}, Number{Integer: true}}, auto, false},

	{Visibility, "visibility", Keywords{"visible", "hidden", "collapse"}, kw("visible"), true},
	{ColorProp, "color", Color{}, black, true},
	{Opacity, "opacity", Number{}, value.NumberValue(1), false},
	{CaretColor, "caret-color", OneOf{Color{}, Keywords{"auto"}}, auto, true},

	{FlexDirection, "flex-direction", Keywords{"row", "row-reverse", "column", "column-reverse"}, kw("row"), false},
	{FlexWrap, "flex-wrap", Keywords{"nowrap", "wrap", "wrap-reverse"}, kw("nowrap"), false},
	{AlignItems, "align-items", Keywords{"stretch", "center", "flex-start", "flex-end", "baseline", "normal", "start", "end", "self-start", "self-end"}, kw("stretch"), false},
	{AlignSelf, "align-self", Keywords{"auto", "stretch", "center", "flex-start", "flex-end", "baseline", "start", "end", "self-start", "self-end", "normal"}, auto, false},
	{AlignContent, "align-content", Keywords{"stretch", "center", "flex-start", "flex-end", "space-between", "space-around", "normal", "start", "end", "space-evenly", "baseline"}, kw("stretch"), false},
	{JustifyContent, "justify-content", Keywords{"center", "flex-start", "flex-end", "space-between", "space-around", "space-evenly", "start", "end", "left", "right", "baseline", "stretch"}, kw("flex-start"), false},
	{FlexGrow, "flex-grow", Number{NonNegative: true}, value.NumberValue(0), false},
	{FlexShrink, "flex-shrink", Number{NonNegative: true}, value.NumberValue(1), false},
	{FlexBasis, "flex-basis", OneOf{Keywords{"auto", "content"}, Length{Percent: true, NonNegative: true}}, auto, false},
	{Order, "order", Number{Integer: true}, value.NumberValue(0), false},
	{RowGap, "row-gap", gap, kw("normal"), false},
	{ColumnGap, "column-gap", gap, kw("normal"), false},

	{BackgroundColor, "background-color", Color{}, value.ColorValue(value.RGBA{}), false},

	{Width, "width", size, auto, false},
	{Height, "height", size, auto, false},
	{MinWidth, "min-width", size, auto, false},
	{MinHeight, "min-height", size, auto, false},
	{MaxWidth, "max-width", maxSize, kw("none"), false},
	{MaxHeight, "max-height", maxSize, kw("none"), false},
	{Left, "left", offset, auto, false},
	{Right, "right", offset, auto, false},
	{Top, "top", offset, auto, false},
	{Bottom, "bottom", offset, auto, false},

	{PaddingLeft, "padding-left", padding, zeroPx, false},
	{PaddingRight, "padding-right", padding, zeroPx, false},
	{PaddingTop, "padding-top", padding, zeroPx, false},
	{PaddingBottom, "padding-bottom", padding, zeroPx, false},
	{MarginLeft, "margin-left", margin, zeroPx, false},
	{MarginRight, "margin-right", margin, zeroPx, false},
	{MarginTop, "margin-top", margin, zeroPx, false},
	{MarginBottom, "margin-bottom", margin, zeroPx, false},

	{BorderLeftWidth, "border-left-width", borderWidth, kw("medium"), false},
	{BorderLeftStyle, "border-left-style", borderStyles, kw("none"), false},
	{BorderLeftColor, "border-left-color", Color{}, currentColor, false},
	{BorderRightWidth, "border-right-width", borderWidth, kw("medium"), false},
	{BorderRightStyle, "border-right-style", borderStyles, kw("none"), false},
	{BorderRightColor, "border-right-color", Color{}, currentColor, false},
	{BorderTopWidth, "border-top-width", borderWidth, kw("medium"), false},
	{BorderTopStyle, "border-top-style", borderStyles, kw("none"), false},
	{BorderTopColor, "border-top-color", Color{}, currentColor, false},
	{BorderBottomWidth, "border-bottom-width", borderWidth, kw("medium"), false},
	{BorderBottomStyle, "border-bottom-style", borderStyles, kw("none"), false},
	{BorderBottomColor, "border-bottom-color", Color{}, currentColor, false},

	{FontSize, "font-size", Length{Percent: true, NonNegative: true}, value.LengthValue(16, value.Px), true},
	{Direction, "direction", Keywords{"ltr", "rtl"}, kw("ltr"), true},
	{WritingMode, "writing-mode", Keywords{"horizontal-tb", "vertical-lr", "vertical-rl"}, kw("horizontal-tb"), true},
	{LineHeight, "line-height", OneOf{Keywords{"normal"}, Number{NonNegative: true}, Length{Percent: true, NonNegative: true}}, kw("normal"), true},
	{TextAlign, "text-align", Keywords{"left", "center", "right", "justify", "justify-all", "start", "end", "match-parent"}, kw("left"), true},
	{FontWeight, "font-weight", OneOf{Keywords{"normal", "bold", "bolder", "lighter"}, Number{Range: true, Min: 1, Max: 1000}}, kw("normal"), true},
	{WordBreak, "word-break", Keywords{"normal", "break-word", "break-all", "keep-all"}, kw("normal"), true},
	{WhiteSpace, "white-space", Keywords{"normal", "nowrap", "pre", "pre-wrap", "pre-line"}, kw("normal"), true},
	{TextOverflow, "text-overflow", Keywords{"clip", "ellipsis"}, kw("clip"), true},
	{TextIndent, "text-indent", Length{Percent: true}, zeroPx, false},
	{FontFamily, "font-family", FamilyList{}, value.CompositeValue(), true},
	{FontStyle, "font-style", Keywords{"normal", "italic", "oblique"}, kw("normal"), true},
	{TextDecorationLine, "text-decoration-line", KeywordCombination{Exclusive: "none", Words: []string{"underline", "overline", "line-through"}}, kw("none"), false},
	{TextDecorationColor, "text-decoration-color", Color{}, currentColor, false},
}

var edges = []string{"top", "right", "bottom", "left"}

func sides(format string) []string {
	names := make([]string, len(edges))
	for i, e := range edges {
		names[i] = fmt.Sprintf(format, e)
	}
	return names
}

// shorthands lists expansions, part grammars come from the first target of
// every slot.
var shorthands = []Shorthand{
	{Name: "flex-flow", Rule: AnyOrder, Slots: [][]string{{"flex-direction"}, {"flex-wrap"}}},
	{Name: "flex", Rule: Flex, Slots: [][]string{{"flex-grow"}, {"flex-shrink"}, {"flex-basis"}}},
	{Name: "overflow", Rule: Pair, Slots: [][]string{{"overflow-x"}, {"overflow-y"}}},
	{Name: "gap", Rule: Pair, Slots: [][]string{{"row-gap"}, {"column-gap"}}},
	{Name: "margin", Rule: Edges, Slots: slots(sides("margin-%s"))},
	{Name: "padding", Rule: Edges, Slots: slots(sides("padding-%s"))},
	{Name: "border-width", Rule: Edges, Slots: slots(sides("border-%s-width"))},
	{Name: "border-style", Rule: Edges, Slots: slots(sides("border-%s-style"))},
	{Name: "border-color", Rule: Edges, Slots: slots(sides("border-%s-color"))},
	{Name: "border-top", Rule: AnyOrder, Slots: [][]string{{"border-top-width"}, {"border-top-style"}, {"border-top-color"}}},
	{Name: "border-right", Rule: AnyOrder, Slots: [][]string{{"border-right-width"}, {"border-right-style"}, {"border-right-color"}}},
	{Name: "border-bottom", Rule: AnyOrder, Slots: [][]string{{"border-bottom-width"}, {"border-bottom-style"}, {"border-bottom-color"}}},
	{Name: "border-left", Rule: AnyOrder, Slots: [][]string{{"border-left-width"}, {"border-left-style"}, {"border-left-color"}}},
	{Name: "border", Rule: AnyOrder, Slots: [][]string{sides("border-%s-width"), sides("border-%s-style"), sides("border-%s-color")}},
}

func slots(names []string) [][]string {
	s := make([][]string, len(names))
	for i, n := range names {
		s[i] = []string{n}
	}
	return s
}
