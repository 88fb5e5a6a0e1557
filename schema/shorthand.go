package schema

import (
	"csscc/css"
	"csscc/diag"
	"csscc/value"
)

func (s *Shorthand) grammar(slot int) single {
	return reg.slotGrammar[s.Slots[slot][0]]
}

func (s *Shorthand) defaultValue(slot int) value.Value {
	return reg.byName[s.Slots[slot][0]].Default
}

func (s *Shorthand) reject(c component, detail string) *mismatch {
	if detail == "" {
		detail = c.String()
	}
	return &mismatch{kind: diag.InvalidShorthand, at: c.tok, detail: detail}
}

// expand returns one value per slot.
func (s *Shorthand) expand(cs []component) ([]value.Value, *mismatch) {
	switch s.Rule {
	case AnyOrder:
		return s.expandAnyOrder(cs)
	case Edges:
		return s.expandRepeated(cs, 4)
	case Pair:
		return s.expandRepeated(cs, 2)
	case Flex:
		return s.expandFlex(cs)
	}
	return nil, s.reject(cs[0], "unknown expansion")
}

func (s *Shorthand) expandAnyOrder(cs []component) ([]value.Value, *mismatch) {
	vals := make([]value.Value, len(s.Slots))
	set := make([]bool, len(s.Slots))
	for _, c := range cs {
		matched := false
		for i := range s.Slots {
			if set[i] {
				continue
			}
			if v, ok := s.grammar(i).matchOne(c); ok {
				vals[i], set[i], matched = v, true, true
				break
			}
		}
		if !matched {
			return nil, s.reject(c, "")
		}
	}
	for i := range vals {
		if !set[i] {
			vals[i] = s.defaultValue(i)
		}
	}
	return vals, nil
}

// expandRepeated handles Edges (max 4) and Pair (max 2), all slots share
// the grammar of the first one.
func (s *Shorthand) expandRepeated(cs []component, limit int) ([]value.Value, *mismatch) {
	if len(cs) > limit {
		return nil, s.reject(cs[limit], "too many values")
	}
	in := make([]value.Value, len(cs))
	for i, c := range cs {
		v, ok := s.grammar(i).matchOne(c)
		if !ok {
			return nil, s.reject(c, "")
		}
		in[i] = v
	}

	if limit == 2 {
		if len(in) == 1 {
			return []value.Value{in[0], in[0]}, nil
		}
		return in, nil
	}
	// top right bottom left
	switch len(in) {
	case 1:
		return []value.Value{in[0], in[0], in[0], in[0]}, nil
	case 2:
		return []value.Value{in[0], in[1], in[0], in[1]}, nil
	case 3:
		return []value.Value{in[0], in[1], in[2], in[1]}, nil
	default:
		return in, nil
	}
}

// expandFlex: "auto" is 1 1 auto, "none" is 0 0 auto. Otherwise omitted
// grow is 0, shrink 1 and basis 0%.
func (s *Shorthand) expandFlex(cs []component) ([]value.Value, *mismatch) {
	const grow, shrink, basis = 0, 1, 2

	if len(cs) == 1 && cs[0].isIdent() {
		switch fold(cs[0].tok.Value) {
		case "auto":
			return []value.Value{value.NumberValue(1), value.NumberValue(1), value.KeywordValue("auto")}, nil
		case "none":
			return []value.Value{value.NumberValue(0), value.NumberValue(0), value.KeywordValue("auto")}, nil
		}
	}

	vals := []value.Value{value.NumberValue(0), value.NumberValue(1), value.LengthValue(0, value.Percent)}
	var growSet, numbersDone, basisSet bool
	for i := 0; i < len(cs); i++ {
		c := cs[i]
		if c.tok.Kind == css.Number && !growSet && !numbersDone {
			v, ok := s.grammar(grow).matchOne(c)
			if !ok {
				return nil, s.reject(c, "")
			}
			vals[grow], growSet = v, true
			if i+1 < len(cs) && cs[i+1].tok.Kind == css.Number {
				i++
				v, ok := s.grammar(shrink).matchOne(cs[i])
				if !ok {
					return nil, s.reject(cs[i], "")
				}
				vals[shrink] = v
			}
			if basisSet {
				numbersDone = true
			}
			continue
		}
		if basisSet {
			return nil, s.reject(c, "")
		}
		v, ok := s.grammar(basis).matchOne(c)
		if !ok {
			return nil, s.reject(c, "")
		}
		vals[basis], basisSet = v, true
		if growSet {
			numbersDone = true
		}
	}
	return vals, nil
}
