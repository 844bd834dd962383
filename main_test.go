package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func run(args ...string) error {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestToFastqAndCount(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "bc.tsv")
	writeFile(t, table, "pos\twell\tbc\n"+
		"1\tA1\tAAAAAAAA\n1\tA2\tCCCCCCCC\n"+
		"2\tB1\tGGGGGGGG\n2\tB2\tTTTTTTTT\n"+
		"3\tC1\tACACACAC\n3\tC2\tGTGTGTGT\n"+
		"4\tD1\tAACCGGTT\n4\tD2\tTTGGCCAA\n")

	bc := "AACCGGTT" + "AGGA" + "ACACACAC" + "ACTC" + "GGGGGGGG" + "AAGG" + "CCCCCCCC"
	var r1, r2 strings.Builder
	for i, seq := range []string{bc + "GATTACA", "ACGT", bc + "CATCAT"} {
		fmt.Fprintf(&r1, "@read%d 1:N:0:X\nTTTTTTTTTT\n+\nIIIIIIIIII\n", i)
		fmt.Fprintf(&r2, "@read%d 2:N:0:X\n%s\n+\n%s\n", i, seq, strings.Repeat("I", len(seq)))
	}
	writeFile(t, filepath.Join(dir, "r1.fq"), r1.String())
	writeFile(t, filepath.Join(dir, "r2.fq"), r2.String())

	require.NoError(t, run("to-fastq",
		"--barcodes", table,
		"--i1", filepath.Join(dir, "r1.fq"),
		"--i2", filepath.Join(dir, "r2.fq"),
		"--o1", filepath.Join(dir, "o1.fq.gz"),
		"--o2", filepath.Join(dir, "o2.fq.gz"),
		"--hist", filepath.Join(dir, "hist.tsv"),
		"--threads", "2",
		"--index-neighbours"))
	hist, err := os.ReadFile(filepath.Join(dir, "hist.tsv"))
	require.NoError(t, err)
	const cell = "CCCCCCCC.GGGGGGGG.ACACACAC.AACCGGTT"
	assert.Equal(t, "barcode\tcount\n"+cell+"\t2\n", string(hist))

	sam := "@SQ\tSN:chr1\tLN:100\n" +
		cell + "_read0\t0\tchr1\t1\t60\t4M\t*\t0\t0\tACGT\tIIII\n" +
		cell + "_read2\t0\tchr1\t9\t60\t4M\t*\t0\t0\tACGT\tIIII\n"
	writeFile(t, filepath.Join(dir, "aln.sam"), sam)
	out := filepath.Join(dir, "counts")
	require.NoError(t, run("bam-to-count", "--ibam", filepath.Join(dir, "aln.sam"), "--out", out, "--accumulate"))
	mtx, err := os.ReadFile(filepath.Join(out, "matrix.mtx"))
	require.NoError(t, err)
	assert.Equal(t, "cell\tfeature\tcount\n1\t1\t2\n", string(mtx))
	features, err := os.ReadFile(filepath.Join(out, "features.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "chr1\n*\n", string(features))
}

func TestToFastqNeedsBarcodes(t *testing.T) {
	dir := t.TempDir()
	err := run("to-fastq",
		"--i1", filepath.Join(dir, "r1.fq"), "--i2", filepath.Join(dir, "r2.fq"),
		"--o1", filepath.Join(dir, "o1.fq.gz"), "--o2", filepath.Join(dir, "o2.fq.gz"),
		"--hist", filepath.Join(dir, "hist.tsv"))
	assert.Error(t, err)
}

func TestBamToCountBadName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "aln.sam"), "@SQ\tSN:chr1\tLN:100\nread0\t0\tchr1\t1\t60\t4M\t*\t0\t0\tACGT\tIIII\n")
	err := run("bam-to-count", "--ibam", filepath.Join(dir, "aln.sam"), "--out", filepath.Join(dir, "counts"))
	assert.Error(t, err)
}

func TestDebugFlag(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.Info) })
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "aln.sam"),
		"@SQ\tSN:chr1\tLN:100\nAAAA_read0\t0\tchr1\t1\t60\t4M\t*\t0\t0\tACGT\tIIII\n")

	require.NoError(t, run("bam-to-count", "--ibam", filepath.Join(dir, "aln.sam"), "--out", filepath.Join(dir, "a")))
	assert.False(t, log.At(log.Debug))

	require.NoError(t, run("--debug", "bam-to-count", "--ibam", filepath.Join(dir, "aln.sam"), "--out", filepath.Join(dir, "b")))
	assert.True(t, log.At(log.Debug))
}
