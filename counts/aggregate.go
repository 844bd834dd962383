package counts

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// progressInterval is how many records pass between progress messages.
const progressInterval = 1000000

// Aggregate counts the records of r per cell barcode and feature. The
// barcode is the part of the read name before the first '_'; the feature
// is the reference the record is placed on, or Unassigned. Records are
// not filtered on mapping quality.
func Aggregate(r AlignmentReader, mode UpdateMode) (*Matrix, *FeatureTable, error) {
	features := NewFeatureTable(r.Header())
	unassigned := features.UnassignedIndex()
	m := NewMatrix(mode)

	var n int64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.E(fmt.Sprintf("read alignment record %d", n+1), err)
		}
		n++
		bc, _, ok := strings.Cut(rec.Name, "_")
		if !ok || bc == "" {
			return nil, nil, errors.E(errors.Integrity,
				fmt.Sprintf("read name %q does not start with a cell barcode and '_'", rec.Name))
		}
		feature := unassigned
		if rec.Ref != nil {
			feature = rec.Ref.ID()
			if feature < 0 || feature >= unassigned {
				return nil, nil, errors.E(errors.Integrity,
					fmt.Sprintf("read %q: reference %s is not in the header", rec.Name, rec.Ref.Name()))
			}
		}
		m.Add(bc, feature)
		if n%progressInterval == 0 {
			log.Debug.Printf("counted %s alignment records", humanize.Comma(n))
		}
	}
	log.Printf("counted %s alignment records: %s cells, %s features, %s nonzero entries (%s)",
		humanize.Comma(n), humanize.Comma(int64(m.Len())), humanize.Comma(int64(features.Len())),
		humanize.Comma(int64(m.NNZ())), mode)
	return m, features, nil
}

// Opts configures Convert.
type Opts struct {
	Mode UpdateMode
	// SortBarcodes writes rows in lexical barcode order instead of the
	// order cells were first seen.
	SortBarcodes bool
}

// Convert aggregates the BAM or SAM file at path into a count matrix
// and writes it to dir.
func Convert(path, dir string, opts Opts) error {
	src, err := OpenAlignments(path)
	if err != nil {
		return err
	}
	m, features, err := Aggregate(src, opts.Mode)
	if cerr := src.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	rows := m.Barcodes()
	if opts.SortBarcodes {
		rows = m.SortedBarcodes()
	}
	return WriteMatrix(dir, m, rows, features)
}
