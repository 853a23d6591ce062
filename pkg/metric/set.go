package metric

import (
	"maps"
	"slices"
)

// Set holds at most one value per kind.
type Set map[Kind]Value

// Clone returns a deep copy of s. Cloning a nil set returns an empty set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		if v != nil {
			out[k] = v.Clone()
		}
	}
	return out
}

// Kinds returns the kinds present in s in ascending order.
func (s Set) Kinds() []Kind {
	return slices.Sorted(maps.Keys(s))
}

// Sum returns the S of a Sum value, or 0 when the kind is absent or not a Sum.
func (s Set) Sum(k Kind) float64 {
	if v, ok := s[k].(*Sum); ok {
		return v.S
	}
	return 0
}

// Median returns the value of a Median kind, or nil.
func (s Set) Median(k Kind) *Median {
	v, _ := s[k].(*Median)
	return v
}

// Histogram returns the value of a Histogram kind, or nil.
func (s Set) Histogram(k Kind) *Histogram {
	v, _ := s[k].(*Histogram)
	return v
}

// Aggregate rebuilds a recursive set: a deep copy of own merged with every
// child's recursive set, kind by kind. Kinds that fail (no factory, no merge
// strategy, mismatched variant) are reported to onErr and left as they were
// in own. The remaining kinds are still merged.
func Aggregate(reg *Registry, own Set, children []Set, onErr func(Kind, error)) Set {
	out := own.Clone()

	grouped := make(map[Kind][]Value)
	for _, c := range children {
		for k, v := range c {
			if v != nil {
				grouped[k] = append(grouped[k], v)
			}
		}
	}

	for _, k := range slices.Sorted(maps.Keys(grouped)) {
		dst, ok := out[k]
		if !ok {
			fresh, err := reg.New(k)
			if err != nil {
				onErr(k, err)
				continue
			}
			dst = fresh
		}
		if err := reg.Merge(k, dst, grouped[k]); err != nil {
			onErr(k, err)
			if orig, had := own[k]; had {
				out[k] = orig.Clone()
			}
			continue
		}
		out[k] = dst
	}
	return out
}
