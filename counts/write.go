package counts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/shenwei356/util/pathutil"
	"github.com/shenwei356/xopen"
)

// Names of the files written by WriteMatrix.
const (
	MatrixFile   = "matrix.mtx"
	BarcodesFile = "barcodes.tsv"
	FeaturesFile = "features.tsv"
)

// WriteMatrix stores m in dir, creating dir if needed. MatrixFile holds
// a "cell\tfeature\tcount" header and one 1-based (cell, feature, count)
// triple per nonzero entry; cell i is rows[i-1] and is listed in
// BarcodesFile, feature j is listed in FeaturesFile. rows must hold every
// barcode of m exactly once; WriteMatrix does not reorder it.
func WriteMatrix(dir string, m *Matrix, rows []string, features *FeatureTable) error {
	if err := checkRows(m, rows); err != nil {
		return err
	}
	if err := makeDir(dir); err != nil {
		return err
	}

	path := filepath.Join(dir, MatrixFile)
	err := writeFile(path, func(w *xopen.Writer) error {
		if _, err := w.WriteString("cell\tfeature\tcount\n"); err != nil {
			return err
		}
		var cols []int
		for i, bc := range rows {
			row := m.Row(bc)
			cols = cols[:0]
			for f := range row {
				cols = append(cols, f)
			}
			sort.Ints(cols)
			for _, f := range cols {
				if f < 0 || f >= features.Len() {
					return errors.E(errors.Invalid, fmt.Sprintf("cell %s: feature %d outside the %d features", bc, f, features.Len()))
				}
				if row[f] == 0 {
					continue
				}
				if _, err := fmt.Fprintf(w, "%d\t%d\t%d\n", i+1, f+1, row[f]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := writeLines(filepath.Join(dir, BarcodesFile), rows); err != nil {
		return err
	}
	if err := writeLines(filepath.Join(dir, FeaturesFile), features.Names()); err != nil {
		return err
	}
	log.Printf("wrote %d x %d count matrix to %s", len(rows), features.Len(), dir)
	return nil
}

// checkRows verifies rows is a permutation of the row keys of m.
func checkRows(m *Matrix, rows []string) error {
	if len(rows) != m.Len() {
		return errors.E(errors.Invalid, fmt.Sprintf("row order lists %d barcodes, matrix has %d", len(rows), m.Len()))
	}
	seen := make(map[string]struct{}, len(rows))
	for _, bc := range rows {
		if !m.Has(bc) {
			return errors.E(errors.Invalid, fmt.Sprintf("row order lists unknown barcode %s", bc))
		}
		if _, dup := seen[bc]; dup {
			return errors.E(errors.Invalid, fmt.Sprintf("row order lists barcode %s twice", bc))
		}
		seen[bc] = struct{}{}
	}
	return nil
}

func makeDir(dir string) error {
	exists, err := pathutil.Exists(dir)
	if err != nil {
		return errors.E("stat "+dir, err)
	}
	if !exists {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.E("create "+dir, err)
		}
		return nil
	}
	isDir, err := pathutil.DirExists(dir)
	if err != nil {
		return errors.E("stat "+dir, err)
	}
	if !isDir {
		return errors.E(errors.Exists, dir+" exists and is not a directory")
	}
	return nil
}

func writeLines(path string, lines []string) error {
	return writeFile(path, func(w *xopen.Writer) error {
		for _, line := range lines {
			if _, err := w.WriteString(line); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeFile creates path, runs write on it and closes it, reporting the
// first error.
func writeFile(path string, write func(w *xopen.Writer) error) error {
	w, err := xopen.Wopen(path)
	if err != nil {
		return errors.E("create "+path, err)
	}
	err = write(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.E("write "+path, err)
	}
	return nil
}
