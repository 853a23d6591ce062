package metric

import (
	"maps"
	"testing"

	"github.com/matzehuels/overview/pkg/errors"
)

func TestMergeSum(t *testing.T) {
	dst := &Sum{S: 3}
	if err := MergeSum(dst, []Value{&Sum{S: 10}, &Sum{S: 5}}); err != nil {
		t.Fatalf("MergeSum: %v", err)
	}
	if dst.S != 18 {
		t.Errorf("S = %v, want 18", dst.S)
	}
}

func TestMergeMedianWeighted(t *testing.T) {
	reg := DefaultRegistry()
	dst, err := reg.New(KindLastModified)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	children := []Value{&Median{Mean: 10, Count: 1}, &Median{Mean: 20, Count: 3}}
	if err := reg.Merge(KindLastModified, dst, children); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	m := dst.(*Median)
	if m.Mean != 17 {
		t.Errorf("Mean = %v, want 17", m.Mean)
	}
	if m.Count != 4 {
		t.Errorf("Count = %v, want 4", m.Count)
	}
}

func TestMergeMedianFoldsOwn(t *testing.T) {
	dst := &Median{Mean: 100, Count: 2}
	if err := MergeMedian(dst, []Value{&Median{Mean: 1, Count: 2}}); err != nil {
		t.Fatal(err)
	}
	// (200 + 2) / 4 = 50.5 -> 50
	if dst.Mean != 50 || dst.Count != 4 {
		t.Errorf("got (%v, %v), want (50, 4)", dst.Mean, dst.Count)
	}
}

func TestMergeMedianEmpty(t *testing.T) {
	dst := &Median{}
	if err := MergeMedian(dst, []Value{&Median{}, &Median{}}); err != nil {
		t.Fatal(err)
	}
	if dst.Mean != 0 || dst.Count != 0 {
		t.Errorf("got %+v, want zero", *dst)
	}
}

func TestMergeHistogramCommutative(t *testing.T) {
	a := &Histogram{Counts: map[string]uint64{".txt": 2}}
	b := &Histogram{Counts: map[string]uint64{".txt": 1, ".png": 4}}
	want := map[string]uint64{".txt": 3, ".png": 4}

	forward := NewHistogram()
	if err := MergeHistogram(forward, []Value{a, b}); err != nil {
		t.Fatal(err)
	}
	reverse := NewHistogram()
	if err := MergeHistogram(reverse, []Value{b, a}); err != nil {
		t.Fatal(err)
	}

	if !maps.Equal(forward.Counts, want) {
		t.Errorf("forward = %v, want %v", forward.Counts, want)
	}
	if !maps.Equal(reverse.Counts, forward.Counts) {
		t.Errorf("reverse = %v, forward = %v", reverse.Counts, forward.Counts)
	}
}

func TestMergeKindMismatch(t *testing.T) {
	tests := []struct {
		name  string
		merge MergeFunc
		dst   Value
		kids  []Value
	}{
		{"sum dst", MergeSum, &Median{}, nil},
		{"sum child", MergeSum, &Sum{}, []Value{NewHistogram()}},
		{"median child", MergeMedian, &Median{}, []Value{&Sum{}}},
		{"histogram dst", MergeHistogram, &Sum{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.merge(tt.dst, tt.kids)
			if !errors.Is(err, errors.ErrCodeKindMismatch) {
				t.Errorf("err = %v, want %s", err, errors.ErrCodeKindMismatch)
			}
		})
	}
}

func TestRegistryMissing(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.New(KindSize); !errors.Is(err, errors.ErrCodeMissingFactory) {
		t.Errorf("New err = %v, want %s", err, errors.ErrCodeMissingFactory)
	}
	reg.Register(KindSize, func() Value { return &Sum{} }, nil)
	if err := reg.Merge(KindSize, &Sum{}, nil); !errors.Is(err, errors.ErrCodeMissingMerge) {
		t.Errorf("Merge err = %v, want %s", err, errors.ErrCodeMissingMerge)
	}
}

func TestSetClone(t *testing.T) {
	s := Set{
		KindSize:      &Sum{S: 1},
		KindFileTypes: &Histogram{Counts: map[string]uint64{".go": 1}},
	}
	c := s.Clone()
	c[KindSize].(*Sum).S = 99
	c.Histogram(KindFileTypes).Counts[".go"] = 42

	if s.Sum(KindSize) != 1 {
		t.Errorf("clone shares Sum with original")
	}
	if s.Histogram(KindFileTypes).Counts[".go"] != 1 {
		t.Errorf("clone shares histogram map with original")
	}
	if got := Set(nil).Clone(); got == nil || len(got) != 0 {
		t.Errorf("nil clone = %v, want empty set", got)
	}
}

func TestAggregate(t *testing.T) {
	reg := DefaultRegistry()
	own := Set{KindSize: &Sum{S: 1}}
	children := []Set{
		{KindSize: &Sum{S: 10}, KindQuantity: &Sum{S: 2}},
		{KindSize: &Sum{S: 5}},
	}

	var failures int
	got := Aggregate(reg, own, children, func(Kind, error) { failures++ })

	if failures != 0 {
		t.Fatalf("unexpected failures: %d", failures)
	}
	if got.Sum(KindSize) != 16 {
		t.Errorf("size = %v, want 16", got.Sum(KindSize))
	}
	if got.Sum(KindQuantity) != 2 {
		t.Errorf("quantity = %v, want 2", got.Sum(KindQuantity))
	}
	if own.Sum(KindSize) != 1 {
		t.Errorf("own was mutated: %v", own.Sum(KindSize))
	}
}

func TestAggregateSkipsUnregisteredKind(t *testing.T) {
	reg := NewRegistry()
	reg.Register(KindSize, func() Value { return &Sum{} }, MergeSum)

	own := Set{KindQuantity: &Sum{S: 7}}
	children := []Set{{KindSize: &Sum{S: 3}, KindQuantity: &Sum{S: 4}}}

	var failed []Kind
	got := Aggregate(reg, own, children, func(k Kind, _ error) { failed = append(failed, k) })

	if len(failed) != 1 || failed[0] != KindQuantity {
		t.Fatalf("failed = %v, want [quantity]", failed)
	}
	if got.Sum(KindSize) != 3 {
		t.Errorf("size = %v, want 3", got.Sum(KindSize))
	}
	if got.Sum(KindQuantity) != 7 {
		t.Errorf("quantity = %v, want own value 7", got.Sum(KindQuantity))
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Error("ParseKind(bogus) should fail")
	}
}
