// Package debug renders indented text trees for troubleshooting dumps.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// Attr is appended to a node line as " key=value". Attr with nil Value is
// a flag and is rendered as its key alone, zero Attr is skipped.
type Attr struct {
	Key   string
	Value any
}

func KV(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Flag returns named flag attribute when on is set.
func Flag(name string, on bool) Attr {
	if !on {
		return Attr{}
	}
	return Attr{Key: name}
}

// TreeWriter accumulates lines indented by depth, two spaces per level.
type TreeWriter struct {
	w     strings.Builder
	lines int
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

// Lines returns number of lines written so far.
func (tw *TreeWriter) Lines() int {
	return tw.lines
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw *TreeWriter) end() {
	tw.w.WriteByte('\n')
	tw.lines++
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(&tw.w, format, args...)
	tw.end()
}

// Node writes head followed by attributes in given order.
func (tw *TreeWriter) Node(depth int, head string, attrs ...Attr) {
	tw.indent(depth)
	tw.w.WriteString(head)
	for _, a := range attrs {
		switch {
		case a.Key == "":
		case a.Value == nil:
			tw.w.WriteByte(' ')
			tw.w.WriteString(a.Key)
		default:
			fmt.Fprintf(&tw.w, " %s=%v", a.Key, a.Value)
		}
	}
	tw.end()
}

// TextBlock writes label with quoted value, empty value is left as is.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.end()
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
