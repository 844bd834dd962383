package demux

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/shenwei356/xopen"
)

// Histogram counts read pairs per cell barcode.
type Histogram map[string]int

// Add counts one read pair for barcode.
func (h Histogram) Add(barcode string) { h[barcode]++ }

// Merge adds the counts of other to h.
func (h Histogram) Merge(other Histogram) {
	for bc, n := range other {
		h[bc] += n
	}
}

// Total returns the number of read pairs counted.
func (h Histogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Write stores the histogram at path as a two-column tab-separated
// table with a "barcode\tcount" header, one row per barcode in sorted
// order. A path ending in .gz is compressed.
func (h Histogram) Write(path string) (err error) {
	w, err := xopen.Wopen(path)
	if err != nil {
		return errors.E("create "+path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.E("close "+path, cerr)
		}
	}()

	barcodes := make([]string, 0, len(h))
	for bc := range h {
		barcodes = append(barcodes, bc)
	}
	sort.Strings(barcodes)

	if _, err := w.WriteString("barcode\tcount\n"); err != nil {
		return errors.E("write "+path, err)
	}
	for _, bc := range barcodes {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", bc, h[bc]); err != nil {
			return errors.E("write "+path, err)
		}
	}
	return nil
}
