package demux

import (
	"bufio"
	"fmt"
	"os"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/klauspost/pgzip"
)

// Record is a FASTQ record queued for output.
type Record struct {
	Name []byte
	Seq  []byte
	Qual []byte
}

// WriterOpts configures a RecordWriter.
type WriterOpts struct {
	// Threads is the number of blocks compressed in parallel. Zero uses
	// GOMAXPROCS.
	Threads int
	// Level is the gzip compression level. Zero selects the default.
	Level int
	// CacheSize is the number of records handed to the writer goroutine
	// at a time. Zero selects 128.
	CacheSize int
}

// RecordWriter writes gzipped FASTQ records in an async fashion.
// Records are written in the order Write is called. Call Close() when
// you're done! Close reports every error encountered while writing;
// output is complete only if Close returns nil.
type RecordWriter struct {
	path    string
	file    *os.File
	gz      *pgzip.Writer
	cache   []Record
	records chan []Record
	errors  chan error
	closed  bool
	dropped int // records written after Close
}

// NewRecordWriter creates the file at path and starts the writer
// goroutine.
func NewRecordWriter(path string, opts WriterOpts) (*RecordWriter, error) {
	if opts.Threads <= 0 {
		opts.Threads = runtime.GOMAXPROCS(0)
	}
	if opts.Level == 0 {
		opts.Level = pgzip.DefaultCompression
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.E("create "+path, err)
	}
	gz, err := pgzip.NewWriterLevel(file, opts.Level)
	if err != nil {
		file.Close()
		return nil, errors.E(errors.Invalid, "gzip writer for "+path, err)
	}
	if err := gz.SetConcurrency(1<<20, opts.Threads); err != nil {
		file.Close()
		return nil, errors.E(errors.Invalid, "gzip writer for "+path, err)
	}

	w := &RecordWriter{
		path:    path,
		file:    file,
		gz:      gz,
		cache:   make([]Record, 0, opts.CacheSize),
		records: make(chan []Record), // unbuffered
		errors:  make(chan error, 1),
	}
	go w.loop()
	return w, nil
}

func (w *RecordWriter) loop() {
	bw := bufio.NewWriterSize(w.gz, 1<<16)
	var err error
	for records := range w.records {
		if err != nil {
			continue // drain
		}
		for _, rec := range records {
			if err = writeFastq(bw, rec); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := w.gz.Close(); err == nil {
		err = cerr
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.errors <- err
}

// Write queues a record. The record's slices must not be modified
// afterwards. Records written after Close are dropped.
func (w *RecordWriter) Write(rec Record) {
	if w.closed {
		w.dropped++
		return
	}
	w.cache = append(w.cache, rec)
	if len(w.cache) == cap(w.cache) {
		w.Flush()
	}
}

// Flush hands the queued records to the writer goroutine. It does not
// wait for them to reach the file.
func (w *RecordWriter) Flush() {
	if len(w.cache) == 0 {
		return
	}
	w.records <- w.cache
	// The goroutine owns the old slice now.
	w.cache = make([]Record, 0, cap(w.cache))
}

// Close flushes the remaining records, waits until everything is
// compressed and written, and closes the file.
func (w *RecordWriter) Close() error {
	if w.closed {
		return errors.E(errors.Precondition,
			fmt.Sprintf("close %s: already closed, %d records dropped", w.path, w.dropped))
	}
	w.Flush()
	w.closed = true
	close(w.records)
	// File errors already name the path.
	if err := <-w.errors; err != nil {
		return errors.E("write FASTQ", err)
	}
	return nil
}

// writeFastq writes rec in four-line FASTQ format. bufio.Writer errors
// are sticky, so only the last one needs checking.
func writeFastq(bw *bufio.Writer, rec Record) error {
	bw.WriteByte('@')
	bw.Write(rec.Name)
	bw.WriteByte('\n')
	bw.Write(rec.Seq)
	bw.WriteString("\n+\n")
	bw.Write(rec.Qual)
	return bw.WriteByte('\n')
}
