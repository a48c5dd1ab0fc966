package dataset

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// UnknownCode is the ordinal code of categories unseen at fit time.
const UnknownCode = -1

// OrdinalEncoder maps categorical values to sorted integer codes per column.
type OrdinalEncoder struct {
	Categories map[string][]string `json:"categories"`
	index      map[string]map[string]int
}

// FitOrdinalEncoder learns the vocabulary of every categorical column among
// names.
func FitOrdinalEncoder(f *Frame, names []string) *OrdinalEncoder {
	enc := &OrdinalEncoder{Categories: make(map[string][]string)}
	for _, name := range names {
		if k, _ := f.Kind(name); k != Categorical {
			continue
		}
		seen := make(map[string]struct{})
		for _, v := range f.Categorical(name) {
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		enc.Categories[name] = cats
	}
	enc.buildIndex()
	return enc
}

// NewOrdinalEncoder rebuilds an encoder from a stored vocabulary. The
// returned encoder is safe for concurrent use.
func NewOrdinalEncoder(categories map[string][]string) *OrdinalEncoder {
	if categories == nil {
		categories = make(map[string][]string)
	}
	enc := &OrdinalEncoder{Categories: categories}
	enc.buildIndex()
	return enc
}

func (e *OrdinalEncoder) buildIndex() {
	e.index = make(map[string]map[string]int, len(e.Categories))
	for name, cats := range e.Categories {
		m := make(map[string]int, len(cats))
		for i, c := range cats {
			m[c] = i
		}
		e.index[name] = m
	}
}

// Code returns the ordinal code of value in column name, or UnknownCode.
func (e *OrdinalEncoder) Code(name, value string) int {
	if e.index == nil {
		e.buildIndex()
	}
	if code, ok := e.index[name][value]; ok {
		return code
	}
	return UnknownCode
}

// Cardinality returns the number of known categories of a column.
func (e *OrdinalEncoder) Cardinality(name string) int {
	return len(e.Categories[name])
}

// Matrix is a dense row-major design matrix.
type Matrix struct {
	Names       []string
	Categorical []bool
	Rows        [][]float64
}

// Encode builds a design matrix with the columns in names. Categorical
// columns become ordinal codes; numeric columns are copied.
func (e *OrdinalEncoder) Encode(f *Frame, names []string) (*Matrix, error) {
	n := f.Len()
	m := &Matrix{
		Names:       append([]string(nil), names...),
		Categorical: make([]bool, len(names)),
		Rows:        make([][]float64, n),
	}
	for i := range m.Rows {
		m.Rows[i] = make([]float64, len(names))
	}
	for j, name := range names {
		kind, ok := f.Kind(name)
		if !ok {
			return nil, fmt.Errorf("encode: column %q not in frame", name)
		}
		if kind == Categorical {
			m.Categorical[j] = true
			for i, v := range f.Categorical(name) {
				m.Rows[i][j] = float64(e.Code(name, v))
			}
			continue
		}
		for i, v := range f.Numeric(name) {
			m.Rows[i][j] = v
		}
	}
	return m, nil
}

// Column returns a copy of column j.
func (m *Matrix) Column(j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[j]
	}
	return out
}

// SubsetRows returns a matrix sharing the row slices of m.
func (m *Matrix) SubsetRows(rows []int) *Matrix {
	out := &Matrix{Names: m.Names, Categorical: m.Categorical, Rows: make([][]float64, len(rows))}
	for i, r := range rows {
		out.Rows[i] = m.Rows[r]
	}
	return out
}

// StandardScaler standardizes the numeric columns of a matrix. Categorical
// columns pass through unchanged.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
	Skip []bool    `json:"skip"`
}

func FitStandardScaler(m *Matrix) *StandardScaler {
	cols := len(m.Names)
	s := &StandardScaler{
		Mean: make([]float64, cols),
		Std:  make([]float64, cols),
		Skip: append([]bool(nil), m.Categorical...),
	}
	for j := 0; j < cols; j++ {
		if s.Skip[j] {
			s.Std[j] = 1
			continue
		}
		mean, std := stat.PopMeanStdDev(m.Column(j), nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Std[j] = mean, std
	}
	return s
}

// Transform returns a standardized copy of m.
func (s *StandardScaler) Transform(m *Matrix) *Matrix {
	out := &Matrix{Names: m.Names, Categorical: m.Categorical, Rows: make([][]float64, len(m.Rows))}
	for i, row := range m.Rows {
		dst := make([]float64, len(row))
		for j, v := range row {
			if s.Skip[j] {
				dst[j] = v
				continue
			}
			dst[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out.Rows[i] = dst
	}
	return out
}
