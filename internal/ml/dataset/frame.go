package dataset

import (
	"fmt"
	"math"
)

// Kind is the storage type of a frame column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// MissingCategory replaces empty categorical values.
const MissingCategory = "missing"

// RowKey identifies the student record a frame row was derived from.
type RowKey struct {
	UserID   uint   `json:"userId"`
	CourseID string `json:"courseId"`
}

// Frame is a column-oriented table with typed columns. Column order is the
// insertion order and is stable across calls.
type Frame struct {
	names []string
	kinds map[string]Kind
	num   map[string][]float64
	cat   map[string][]string
	keys  []RowKey
}

func NewFrame(keys []RowKey) *Frame {
	return &Frame{
		kinds: make(map[string]Kind),
		num:   make(map[string][]float64),
		cat:   make(map[string][]string),
		keys:  keys,
	}
}

func (f *Frame) Len() int {
	return len(f.keys)
}

func (f *Frame) Keys() []RowKey {
	return f.keys
}

// Names returns the column names in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

func (f *Frame) Kind(name string) (Kind, bool) {
	k, ok := f.kinds[name]
	return k, ok
}

func (f *Frame) Has(name string) bool {
	_, ok := f.kinds[name]
	return ok
}

// SetNumeric adds or replaces a numeric column.
func (f *Frame) SetNumeric(name string, values []float64) {
	f.mustLen(name, len(values))
	if _, ok := f.kinds[name]; !ok {
		f.names = append(f.names, name)
	}
	delete(f.cat, name)
	f.kinds[name] = Numeric
	f.num[name] = values
}

// SetCategorical adds or replaces a categorical column. Empty values are
// stored as MissingCategory.
func (f *Frame) SetCategorical(name string, values []string) {
	f.mustLen(name, len(values))
	if _, ok := f.kinds[name]; !ok {
		f.names = append(f.names, name)
	}
	for i, v := range values {
		if v == "" {
			values[i] = MissingCategory
		}
	}
	delete(f.num, name)
	f.kinds[name] = Categorical
	f.cat[name] = values
}

func (f *Frame) Numeric(name string) []float64 {
	return f.num[name]
}

func (f *Frame) Categorical(name string) []string {
	return f.cat[name]
}

// Subset returns a new frame holding the given rows, in the given order.
func (f *Frame) Subset(rows []int) *Frame {
	keys := make([]RowKey, len(rows))
	for i, r := range rows {
		keys[i] = f.keys[r]
	}
	out := NewFrame(keys)
	for _, name := range f.names {
		switch f.kinds[name] {
		case Numeric:
			src := f.num[name]
			dst := make([]float64, len(rows))
			for i, r := range rows {
				dst[i] = src[r]
			}
			out.SetNumeric(name, dst)
		case Categorical:
			src := f.cat[name]
			dst := make([]string, len(rows))
			for i, r := range rows {
				dst[i] = src[r]
			}
			out.SetCategorical(name, dst)
		}
	}
	return out
}

// Select returns a frame with exactly the requested columns in the requested
// order. Columns absent from f are synthesized with defaults: 0 for numeric
// columns and MissingCategory for the names listed in categorical. NaN
// numeric values are replaced by 0. The names of synthesized columns are
// returned so callers can report feature mismatches.
func (f *Frame) Select(names []string, categorical map[string]bool) (*Frame, []string) {
	out := NewFrame(f.keys)
	var missing []string
	n := f.Len()
	for _, name := range names {
		kind, ok := f.kinds[name]
		wantCat := categorical[name]
		switch {
		case !ok && wantCat:
			missing = append(missing, name)
			out.SetCategorical(name, make([]string, n))
		case !ok:
			missing = append(missing, name)
			out.SetNumeric(name, make([]float64, n))
		case kind == Categorical:
			vals := make([]string, n)
			copy(vals, f.cat[name])
			out.SetCategorical(name, vals)
		case wantCat:
			// numeric column promoted to categorical by the manifest
			vals := make([]string, n)
			for i, v := range f.num[name] {
				if !math.IsNaN(v) {
					vals[i] = fmt.Sprintf("%g", v)
				}
			}
			out.SetCategorical(name, vals)
		default:
			vals := make([]float64, n)
			for i, v := range f.num[name] {
				if !math.IsNaN(v) {
					vals[i] = v
				}
			}
			out.SetNumeric(name, vals)
		}
	}
	return out, missing
}

func (f *Frame) mustLen(name string, n int) {
	if n != len(f.keys) {
		panic(fmt.Sprintf("dataset: column %q has %d values, frame has %d rows", name, n, len(f.keys)))
	}
}
