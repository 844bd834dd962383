// Package counts builds per-cell feature count matrices from aligned
// reads whose names carry a cell barcode prefix.
package counts

import (
	"fmt"
	"sort"
)

// UpdateMode selects how repeated observations of a (cell, feature)
// pair are counted.
type UpdateMode int

const (
	// SetOnce records presence: every observed pair counts 1 no matter
	// how many reads support it. This matches the historical output of
	// the pipeline.
	SetOnce UpdateMode = iota
	// Accumulate counts every read.
	Accumulate
)

func (m UpdateMode) String() string {
	switch m {
	case SetOnce:
		return "set-once"
	case Accumulate:
		return "accumulate"
	default:
		return fmt.Sprintf("UpdateMode(%d)", int(m))
	}
}

// Matrix is a sparse cell by feature count matrix. Rows are keyed by
// cell barcode, columns by feature index.
type Matrix struct {
	mode  UpdateMode
	rows  map[string]map[int]int
	order []string // barcodes in order of first observation
}

// NewMatrix returns an empty matrix.
func NewMatrix(mode UpdateMode) *Matrix {
	return &Matrix{mode: mode, rows: make(map[string]map[int]int)}
}

// Mode returns the update mode of m.
func (m *Matrix) Mode() UpdateMode { return m.mode }

// Add records one read of cell barcode bc on feature.
func (m *Matrix) Add(bc string, feature int) {
	m.addN(bc, feature, 1)
}

func (m *Matrix) addN(bc string, feature, n int) {
	row, ok := m.rows[bc]
	if !ok {
		row = make(map[int]int)
		m.rows[bc] = row
		m.order = append(m.order, bc)
	}
	if m.mode == SetOnce {
		row[feature] = 1
	} else {
		row[feature] += n
	}
}

// Get returns the count of (bc, feature).
func (m *Matrix) Get(bc string, feature int) int { return m.rows[bc][feature] }

// Row returns the nonzero entries of bc, keyed by feature. The map must
// not be modified.
func (m *Matrix) Row(bc string) map[int]int { return m.rows[bc] }

// Has tells whether bc has a row.
func (m *Matrix) Has(bc string) bool {
	_, ok := m.rows[bc]
	return ok
}

// Len returns the number of rows.
func (m *Matrix) Len() int { return len(m.rows) }

// NNZ returns the number of nonzero entries.
func (m *Matrix) NNZ() int {
	n := 0
	for _, row := range m.rows {
		n += len(row)
	}
	return n
}

// Barcodes returns the row keys in order of first observation.
func (m *Matrix) Barcodes() []string {
	return append([]string(nil), m.order...)
}

// SortedBarcodes returns the row keys in lexical order.
func (m *Matrix) SortedBarcodes() []string {
	bcs := m.Barcodes()
	sort.Strings(bcs)
	return bcs
}

// Merge adds the entries of other to m, following m's update mode.
// Rows new to m are appended in other's order.
func (m *Matrix) Merge(other *Matrix) {
	for _, bc := range other.order {
		row := other.rows[bc]
		features := make([]int, 0, len(row))
		for f := range row {
			features = append(features, f)
		}
		sort.Ints(features)
		for _, f := range features {
			m.addN(bc, f, row[f])
		}
	}
}
