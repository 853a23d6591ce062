package metric

import (
	"maps"
	"math"

	"github.com/matzehuels/overview/pkg/errors"
)

// Value is a single mergeable statistic. The concrete type of a Value never
// changes after creation.
type Value interface {
	// Clone returns a deep copy.
	Clone() Value
	// Variant names the concrete variant ("sum", "median", "histogram").
	Variant() string
}

// Sum is a plain total.
type Sum struct {
	S float64
}

func (v *Sum) Clone() Value    { return &Sum{S: v.S} }
func (v *Sum) Variant() string { return "sum" }

// Median is a weighted mean over Count samples. The mean is kept floored to
// an integer after every merge.
type Median struct {
	Mean  float64
	Count uint32
}

func (v *Median) Clone() Value    { return &Median{Mean: v.Mean, Count: v.Count} }
func (v *Median) Variant() string { return "median" }

// Histogram counts occurrences per key.
type Histogram struct {
	Counts map[string]uint64
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram { return &Histogram{Counts: map[string]uint64{}} }

func (v *Histogram) Clone() Value {
	if v.Counts == nil {
		return NewHistogram()
	}
	return &Histogram{Counts: maps.Clone(v.Counts)}
}
func (v *Histogram) Variant() string { return "histogram" }

// Total returns the sum of all counts.
func (v *Histogram) Total() uint64 {
	var n uint64
	for _, c := range v.Counts {
		n += c
	}
	return n
}

// MergeSum adds every child's S to dst.
func MergeSum(dst Value, children []Value) error {
	d, ok := dst.(*Sum)
	if !ok {
		return mismatch("sum", dst)
	}
	for _, c := range children {
		cs, ok := c.(*Sum)
		if !ok {
			return mismatch("sum", c)
		}
		d.S += cs.S
	}
	return nil
}

// MergeMedian folds the children's (mean, count) pairs into dst as an exact
// weighted mean, floored to an integer. A total count of zero leaves dst
// unchanged.
func MergeMedian(dst Value, children []Value) error {
	d, ok := dst.(*Median)
	if !ok {
		return mismatch("median", dst)
	}
	total := uint64(d.Count)
	weighted := d.Mean * float64(d.Count)
	for _, c := range children {
		cm, ok := c.(*Median)
		if !ok {
			return mismatch("median", c)
		}
		total += uint64(cm.Count)
		weighted += cm.Mean * float64(cm.Count)
	}
	if total == 0 {
		return nil
	}
	d.Mean = math.Floor(weighted / float64(total))
	d.Count = uint32(min(total, math.MaxUint32))
	return nil
}

// MergeHistogram adds every child's counts to dst key by key.
func MergeHistogram(dst Value, children []Value) error {
	d, ok := dst.(*Histogram)
	if !ok {
		return mismatch("histogram", dst)
	}
	if d.Counts == nil {
		d.Counts = map[string]uint64{}
	}
	for _, c := range children {
		ch, ok := c.(*Histogram)
		if !ok {
			return mismatch("histogram", c)
		}
		for k, n := range ch.Counts {
			d.Counts[k] += n
		}
	}
	return nil
}

func mismatch(want string, got Value) error {
	if got == nil {
		return errors.New(errors.ErrCodeKindMismatch, "expected %s value, got nil", want)
	}
	return errors.New(errors.ErrCodeKindMismatch, "expected %s value, got %s", want, got.Variant())
}
