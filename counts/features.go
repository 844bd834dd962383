package counts

import (
	"github.com/grailbio/hts/sam"
)

// Unassigned names the feature that collects reads without a reference.
const Unassigned = "*"

// FeatureTable lists the column features of a count matrix. The last
// entry is always Unassigned.
type FeatureTable struct {
	names []string
}

// NewFeatureTable returns the features of h: its reference sequences in
// header order, followed by Unassigned.
func NewFeatureTable(h *sam.Header) *FeatureTable {
	refs := h.Refs()
	names := make([]string, 0, len(refs)+1)
	for _, ref := range refs {
		names = append(names, ref.Name())
	}
	return FeatureTableOf(names...)
}

// FeatureTableOf returns a table of the named features followed by
// Unassigned.
func FeatureTableOf(names ...string) *FeatureTable {
	f := &FeatureTable{names: make([]string, 0, len(names)+1)}
	f.names = append(f.names, names...)
	f.names = append(f.names, Unassigned)
	return f
}

// Len returns the number of features, Unassigned included.
func (f *FeatureTable) Len() int { return len(f.names) }

// Name returns the name of feature i.
func (f *FeatureTable) Name(i int) string { return f.names[i] }

// Names returns all feature names in column order. The slice must not
// be modified.
func (f *FeatureTable) Names() []string { return f.names }

// UnassignedIndex returns the column of the Unassigned feature.
func (f *FeatureTable) UnassignedIndex() int { return len(f.names) - 1 }
