package counts

import (
	"bufio"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// AlignmentReader yields alignment records; io.EOF marks the end.
// *bam.Reader and *sam.Reader satisfy it.
type AlignmentReader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

// AlignmentSource is an open BAM or SAM file.
type AlignmentSource struct {
	AlignmentReader
	path string
	file *os.File
	bam  *bam.Reader
}

// OpenAlignments opens the BAM or SAM file at path. BAM is recognized by
// its gzip magic; anything else is parsed as SAM text.
func OpenAlignments(path string) (*AlignmentSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E("open "+path, err)
	}
	s := &AlignmentSource{path: path, file: f}
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, errors.E("read "+path, err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		s.bam, err = bam.NewReader(br, 1)
		s.AlignmentReader = s.bam
	} else {
		s.AlignmentReader, err = sam.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, errors.E(errors.Invalid, "read header of "+path, err)
	}
	return s, nil
}

// Close releases the file.
func (s *AlignmentSource) Close() error {
	var err error
	if s.bam != nil {
		err = s.bam.Close()
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.E("close "+s.path, err)
	}
	return nil
}
