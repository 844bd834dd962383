package counts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cellA = "CCCCCCCC.GGGGGGGG.ACACACAC.AACCGGTT"
	cellB = "AAAAAAAA.TTTTTTTT.GTGTGTGT.TTGGCCAA"
)

const testSAM = `@HD	VN:1.5	SO:unsorted
@SQ	SN:chr1	LN:1000
@SQ	SN:chr2	LN:1000
` + cellA + `_r1	0	chr1	10	60	4M	*	0	0	ACGT	IIII
` + cellA + `_r2	0	chr1	20	60	4M	*	0	0	ACGT	IIII
` + cellA + `_r3	4	*	0	0	*	*	0	0	ACGT	IIII
` + cellB + `_r4	0	chr2	5	0	4M	*	0	0	ACGT	IIII
`

func writeSAM(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "in.sam")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeBAM(t *testing.T) string {
	chr1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 1000, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "in.bam")
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(f, h, 1)
	require.NoError(t, err)

	cigar := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)}
	seq, qual := []byte("ACGT"), []byte{40, 40, 40, 40}
	mapped := func(name string, ref *sam.Reference, pos int) *sam.Record {
		r, err := sam.NewRecord(name, ref, nil, pos, -1, 0, 60, cigar, seq, qual, nil)
		require.NoError(t, err)
		return r
	}
	unmapped, err := sam.NewRecord(cellA+"_r3", nil, nil, -1, -1, 0, 0, nil, seq, qual, nil)
	require.NoError(t, err)
	unmapped.Flags = sam.Unmapped

	for _, r := range []*sam.Record{
		mapped(cellA+"_r1", chr1, 9),
		mapped(cellA+"_r2", chr1, 19),
		unmapped,
		mapped(cellB+"_r4", chr2, 4),
	} {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func aggregateFile(t *testing.T, path string, mode UpdateMode) (*Matrix, *FeatureTable) {
	src, err := OpenAlignments(path)
	require.NoError(t, err)
	defer func() { assert.NoError(t, src.Close()) }()
	m, features, err := Aggregate(src, mode)
	require.NoError(t, err)
	return m, features
}

func TestAggregate(t *testing.T) {
	for _, path := range []string{writeSAM(t, testSAM), writeBAM(t)} {
		m, features := aggregateFile(t, path, SetOnce)
		assert.Equal(t, []string{"chr1", "chr2", Unassigned}, features.Names(), path)
		assert.Equal(t, 2, features.UnassignedIndex())
		assert.Equal(t, []string{cellA, cellB}, m.Barcodes(), path)
		assert.Equal(t, map[int]int{0: 1, 2: 1}, m.Row(cellA), path)
		assert.Equal(t, map[int]int{1: 1}, m.Row(cellB), path)
		assert.Equal(t, 3, m.NNZ())

		m, _ = aggregateFile(t, path, Accumulate)
		assert.Equal(t, map[int]int{0: 2, 2: 1}, m.Row(cellA), path)
		assert.Equal(t, 1, m.Get(cellB, 1), path)
		assert.Equal(t, 0, m.Get(cellB, 0), path)
	}
}

func TestAggregateNameWithoutBarcode(t *testing.T) {
	for _, name := range []string{"r1", "_r1"} {
		content := "@SQ\tSN:chr1\tLN:1000\n" + name + "\t0\tchr1\t10\t60\t4M\t*\t0\t0\tACGT\tIIII\n"
		src, err := OpenAlignments(writeSAM(t, content))
		require.NoError(t, err)
		_, _, err = Aggregate(src, SetOnce)
		assert.True(t, errors.Is(errors.Integrity, err), "%s: %v", name, err)
		src.Close()
	}
}

func TestOpenAlignmentsMissing(t *testing.T) {
	_, err := OpenAlignments(filepath.Join(t.TempDir(), "missing.bam"))
	assert.Error(t, err)
}

func TestMatrixMerge(t *testing.T) {
	for _, mode := range []UpdateMode{SetOnce, Accumulate} {
		a := NewMatrix(mode)
		a.Add("x", 0)
		a.Add("x", 0)
		b := NewMatrix(Accumulate)
		b.Add("y", 1)
		b.Add("x", 0)
		b.Add("x", 2)
		a.Merge(b)
		assert.Equal(t, []string{"x", "y"}, a.Barcodes())
		if mode == SetOnce {
			assert.Equal(t, map[int]int{0: 1, 2: 1}, a.Row("x"))
		} else {
			assert.Equal(t, map[int]int{0: 3, 2: 1}, a.Row("x"))
		}
		assert.Equal(t, 1, a.Get("y", 1))
	}
	assert.Equal(t, "accumulate", Accumulate.String())
}

func readFile(t *testing.T, path string) string {
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestWriteMatrix(t *testing.T) {
	m := NewMatrix(Accumulate)
	m.Add(cellB, 1)
	m.Add(cellA, 2)
	m.Add(cellA, 0)
	m.Add(cellA, 0)
	features := FeatureTableOf("chr1", "chr2")
	dir := filepath.Join(t.TempDir(), "out", "matrix")

	require.NoError(t, WriteMatrix(dir, m, m.SortedBarcodes(), features))
	assert.Equal(t, "cell\tfeature\tcount\n1\t2\t1\n2\t1\t2\n2\t3\t1\n", readFile(t, filepath.Join(dir, MatrixFile)))
	assert.Equal(t, cellB+"\n"+cellA+"\n", readFile(t, filepath.Join(dir, BarcodesFile)))
	assert.Equal(t, "chr1\nchr2\n*\n", readFile(t, filepath.Join(dir, FeaturesFile)))

	// Writing again into the existing directory replaces the files.
	require.NoError(t, WriteMatrix(dir, m, m.Barcodes(), features))
	assert.Equal(t, "cell\tfeature\tcount\n1\t2\t1\n2\t1\t2\n2\t3\t1\n", readFile(t, filepath.Join(dir, MatrixFile)))
	assert.Equal(t, cellB+"\n"+cellA+"\n", readFile(t, filepath.Join(dir, BarcodesFile)))
}

func TestWriteMatrixIndices(t *testing.T) {
	m, features := aggregateFile(t, writeSAM(t, testSAM), Accumulate)
	dir := t.TempDir()
	require.NoError(t, WriteMatrix(dir, m, m.Barcodes(), features))

	barcodes := strings.Split(strings.TrimSuffix(readFile(t, filepath.Join(dir, BarcodesFile)), "\n"), "\n")
	names := strings.Split(strings.TrimSuffix(readFile(t, filepath.Join(dir, FeaturesFile)), "\n"), "\n")
	assert.Len(t, barcodes, m.Len())
	assert.Len(t, names, features.Len())

	lines := strings.Split(strings.TrimSuffix(readFile(t, filepath.Join(dir, MatrixFile)), "\n"), "\n")
	require.Equal(t, "cell\tfeature\tcount", lines[0])
	assert.Len(t, lines[1:], m.NNZ())
	total := 0
	for _, line := range lines[1:] {
		var cell, feature, count int
		_, err := fmt.Sscan(line, &cell, &feature, &count)
		require.NoError(t, err, line)
		require.True(t, cell >= 1 && cell <= len(barcodes), line)
		require.True(t, feature >= 1 && feature <= len(names), line)
		assert.Equal(t, m.Get(barcodes[cell-1], feature-1), count, line)
		total += count
	}
	assert.Equal(t, 4, total)
}

func TestWriteMatrixErrors(t *testing.T) {
	m := NewMatrix(SetOnce)
	m.Add("x", 0)
	m.Add("y", 0)
	features := FeatureTableOf("chr1")
	dir := t.TempDir()

	for _, rows := range [][]string{{"x"}, {"x", "z"}, {"x", "x"}} {
		err := WriteMatrix(dir, m, rows, features)
		assert.True(t, errors.Is(errors.Invalid, err), "%v: %v", rows, err)
	}

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, WriteMatrix(file, m, m.Barcodes(), features))
}
