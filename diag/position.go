package diag

import (
	"errors"
	"sort"
	"unicode/utf8"
)

// Locator converts byte offsets into line and column numbers. Newlines are
// \n, \r\n, \r and \f as in CSS syntax. Columns count runes.
type Locator struct {
	src   string
	lines []int // offsets of line starts
}

func NewLocator(src string) *Locator {
	l := &Locator{src: src, lines: []int{0}}
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\r':
			if i+1 < len(src) && src[i+1] == '\n' {
				i++
			}
			l.lines = append(l.lines, i+1)
		case '\n', '\f':
			l.lines = append(l.lines, i+1)
		}
	}
	return l
}

// Locate returns fully populated position for offset.
func (l *Locator) Locate(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(l.src) {
		offset = len(l.src)
	}
	line := sort.Search(len(l.lines), func(i int) bool { return l.lines[i] > offset }) - 1
	start := l.lines[line]
	return Position{
		Offset: offset,
		Line:   line + 1,
		Col:    utf8.RuneCountInString(l.src[start:offset]) + 1,
	}
}

// Resolve fills line and column of every diagnostic in place.
func (l *Locator) Resolve(errs []error) {
	for _, err := range errs {
		var (
			le *LexError
			pe *ParseError
			ve *ValidationError
		)
		switch {
		case errors.As(err, &le):
			le.Pos = l.Locate(le.Pos.Offset)
		case errors.As(err, &pe):
			pe.Pos = l.Locate(pe.Pos.Offset)
		case errors.As(err, &ve):
			ve.Pos = l.Locate(ve.Pos.Offset)
		}
	}
}
