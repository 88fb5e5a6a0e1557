package ir

import (
	"fmt"
	"strconv"

	"csscc/css"
	"csscc/media"
	"csscc/utils/debug"
	"csscc/value"
)

// Dump returns indented tree representation of the stylesheet for debugging.
func (s *Stylesheet) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Node(0, "stylesheet "+strconv.Quote(s.ID),
		debug.KV("version", s.Version),
		debug.KV("rules", len(s.Rules)),
		debug.KV("strings", len(s.Strings)),
		debug.KV("conditions", len(s.Conditions)),
		optionalCount("imports", len(s.Imports)),
		optionalCount("font-faces", len(s.FontFaces)),
		optionalCount("keyframes", len(s.Keyframes)))
	for i := range s.Rules {
		r := &s.Rules[i]
		tw.Line(1, "rule #%d", r.Order)
		tw.TextBlock(2, "selectors", s.SelectorText(r))
		if c := s.Condition(r); c != nil {
			tw.TextBlock(2, "media", c.String())
		}
		for _, d := range r.Declarations {
			tw.Node(2, fmt.Sprintf("%s (%#02x)", d.Property, uint16(d.Property)), debug.Flag("!important", d.Important))
			dumpValue(tw, 3, d.Value)
		}
	}
	for i, imp := range s.Imports {
		tw.Line(1, "import #%d", i)
		tw.TextBlock(2, "url", imp.URL)
		if imp.Media != NoMedia && imp.Media < len(s.Conditions) {
			tw.TextBlock(2, "media", s.Conditions[imp.Media].String())
		}
	}
	for _, ff := range s.FontFaces {
		tw.Line(1, "font-face %s", strconv.Quote(ff.Family))
		for _, src := range ff.Sources {
			kind, format := "url", debug.Attr{}
			if src.Local {
				kind = "local"
			}
			if src.Format != "" {
				format = debug.KV("format", strconv.Quote(src.Format))
			}
			tw.Node(2, kind+" "+strconv.Quote(src.Name), format)
		}
		for _, d := range ff.Descriptors {
			tw.Line(2, "%s", d.Name)
			dumpValue(tw, 3, d.Value)
		}
	}
	for _, kf := range s.Keyframes {
		tw.Node(1, "keyframes "+strconv.Quote(kf.Name), debug.KV("frames", len(kf.Frames)))
		for _, f := range kf.Frames {
			tw.Line(2, "frame %s", css.OffsetsText(f.Offsets))
			for _, d := range f.Declarations {
				tw.Line(3, "%s (%#02x)", d.Property, uint16(d.Property))
				dumpValue(tw, 4, d.Value)
			}
		}
	}
	for i, c := range s.Conditions {
		tw.Line(1, "condition #%d", i)
		dumpCondition(tw, 2, c)
	}
	return tw.String()
}

func optionalCount(key string, n int) debug.Attr {
	if n == 0 {
		return debug.Attr{}
	}
	return debug.KV(key, n)
}

func dumpValue(tw *debug.TreeWriter, depth int, v value.Value) {
	if v.Tag != value.Composite {
		tw.Line(depth, "%s %s", v.Tag, v)
		return
	}
	tw.Node(depth, v.Tag.String(), debug.KV("items", len(v.Items)))
	for _, item := range v.Items {
		dumpValue(tw, depth+1, item)
	}
}

func dumpCondition(tw *debug.TreeWriter, depth int, c *media.Condition) {
	if c.Kind == media.Cmp {
		tw.Line(depth, "%s %s %s %s", c.Kind, c.Feature, c.Op, c.Value)
		return
	}
	tw.Node(depth, c.Kind.String(), debug.KV("args", len(c.Args)))
	for _, a := range c.Args {
		dumpCondition(tw, depth+1, a)
	}
}
