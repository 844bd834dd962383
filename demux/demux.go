// Package demux rewrites paired FASTQ reads into cell-labelled streams.
//
// The barcode read (R2) of every pair is searched for a combinatorial cell
// barcode. Pairs with a usable barcode are written out with the barcode
// prefixed to their identifiers, and the barcode is trimmed off R2. Pairs
// without one are dropped.
package demux

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/Altius/stampipes/programs/splitpool/barcode"
)

// ProgressInterval is how many read pairs pass between progress
// messages.
const ProgressInterval = 100000

// Reader yields FASTQ records; io.EOF marks the end of the stream.
// *fastx.Reader satisfies it.
type Reader interface {
	Read() (*fastx.Record, error)
}

// Sink receives output records. Close must flush everything written.
// *RecordWriter satisfies it.
type Sink interface {
	Write(Record)
	Close() error
}

// Opts configures a demultiplexing run.
type Opts struct {
	// MaxPairs stops the run after this many read pairs. Zero means no
	// limit.
	MaxPairs int64
	// Writer configures the compressed FASTQ outputs.
	Writer WriterOpts
}

// Demultiplexer applies a barcode scheme to read pairs. A Demultiplexer
// runs once; its Histogram and Stats are final after Run returns.
type Demultiplexer struct {
	scheme *barcode.Scheme
	opts   Opts

	Histogram Histogram
	Stats     Stats

	finalized bool
}

// New returns a Demultiplexer for scheme.
func New(scheme *barcode.Scheme, opts Opts) *Demultiplexer {
	return &Demultiplexer{
		scheme:    scheme,
		opts:      opts,
		Histogram: make(Histogram),
	}
}

// Run reads pairs from r1 and r2 until both are exhausted, writing pairs
// with a usable barcode to w1 and w2. Both sinks are closed before Run
// returns, also on error. The streams must hold the same number of
// records.
func (d *Demultiplexer) Run(r1, r2 Reader, w1, w2 Sink) (err error) {
	if d.finalized {
		return errors.E(errors.Precondition, "demultiplexer already ran")
	}
	defer func() {
		d.finalized = true
		for _, w := range []Sink{w1, w2} {
			if cerr := w.Close(); cerr != nil {
				if err == nil {
					err = cerr
				} else {
					log.Error.Printf("%v", cerr)
				}
			}
		}
	}()

	for d.opts.MaxPairs == 0 || d.Stats.Pairs < d.opts.MaxPairs {
		rec1, err1 := r1.Read()
		rec2, err2 := r2.Read()
		if err1 == io.EOF && err2 == io.EOF {
			break
		}
		if err1 != nil && err1 != io.EOF {
			return errors.E("read R1", err1)
		}
		if err2 != nil && err2 != io.EOF {
			return errors.E("read R2", err2)
		}
		if err1 == io.EOF || err2 == io.EOF {
			short := "R1"
			if err2 == io.EOF {
				short = "R2"
			}
			return errors.E(errors.Integrity,
				fmt.Sprintf("paired reads out of sync: %s ended after %d records", short, d.Stats.Pairs))
		}
		d.process(rec1, rec2, w1, w2)
		if d.Stats.Pairs%ProgressInterval == 0 {
			log.Debug.Printf("processed %s read pairs", humanize.Comma(d.Stats.Pairs))
		}
	}
	return nil
}

func (d *Demultiplexer) process(rec1, rec2 *fastx.Record, w1, w2 Sink) {
	bc, outcome := d.scheme.Extract(rec2.Seq.Seq)
	d.Stats.add(outcome)
	if outcome != barcode.OK {
		return
	}
	key := bc.String()
	d.Histogram.Add(key)

	// Read 1 is passed through; only the name changes.
	w1.Write(Record{
		Name: prefixName(key, rec1.ID),
		Seq:  clone(rec1.Seq.Seq),
		Qual: clone(rec1.Seq.Qual),
	})
	// Read 2 loses the barcode.
	w2.Write(Record{
		Name: prefixName(key, rec2.ID),
		Seq:  clone(trim(rec2.Seq.Seq, barcode.ReadPrefixLength)),
		Qual: clone(trim(rec2.Seq.Qual, barcode.ReadPrefixLength)),
	})
}

// prefixName returns "<barcode>_<id>".
func prefixName(bc string, id []byte) []byte {
	name := make([]byte, 0, len(bc)+1+len(id))
	name = append(name, bc...)
	name = append(name, '_')
	return append(name, id...)
}

// trim drops the first n bytes of b, or all of them if b is shorter.
func trim(b []byte, n int) []byte {
	if n > len(b) {
		n = len(b)
	}
	return b[n:]
}

// clone copies b; the reader may reuse its buffers.
func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// Paths names the inputs and outputs of Convert.
type Paths struct {
	R1, R2     string // input FASTQ, optionally compressed
	Out1, Out2 string // gzipped output FASTQ
	Histogram  string
}

// Convert demultiplexes the FASTQ pair named in paths and writes the
// corrected pair and the barcode histogram.
func Convert(scheme *barcode.Scheme, paths Paths, opts Opts) (Stats, error) {
	r1, err := fastx.NewDefaultReader(paths.R1)
	if err != nil {
		return Stats{}, errors.E("open "+paths.R1, err)
	}
	defer r1.Close()
	r2, err := fastx.NewDefaultReader(paths.R2)
	if err != nil {
		return Stats{}, errors.E("open "+paths.R2, err)
	}
	defer r2.Close()

	w1, err := NewRecordWriter(paths.Out1, opts.Writer)
	if err != nil {
		return Stats{}, err
	}
	w2, err := NewRecordWriter(paths.Out2, opts.Writer)
	if err != nil {
		if cerr := w1.Close(); cerr != nil {
			log.Error.Printf("%v", cerr)
		}
		return Stats{}, err
	}

	d := New(scheme, opts)
	log.Printf("demultiplexing %s and %s", paths.R1, paths.R2)
	if err := d.Run(r1, r2, w1, w2); err != nil {
		return d.Stats, err
	}
	if err := d.Histogram.Write(paths.Histogram); err != nil {
		return d.Stats, err
	}
	d.Stats.Log()
	log.Printf("%s cell barcodes written to %s", humanize.Comma(int64(len(d.Histogram))), paths.Histogram)
	return d.Stats, nil
}
