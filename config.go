package main

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/spf13/pflag"

	"github.com/Altius/stampipes/programs/splitpool/barcode"
	"github.com/Altius/stampipes/programs/splitpool/counts"
	"github.com/Altius/stampipes/programs/splitpool/demux"
)

// Config holds the settings of a run. It can be read from a JSON file;
// flags given on the command line take precedence.
type Config struct {
	Barcodes         string `json:"barcodes"`        // barcode reference table
	MinRoundScore    int    `json:"min_round_score"` // per-round correction threshold
	IndexNeighbours  bool   `json:"index_neighbours"`
	Threads          int    `json:"threads"` // gzip compression goroutines
	CompressionLevel int    `json:"compression_level"`
	MaxPairs         int64  `json:"max_pairs"`
	Accumulate       bool   `json:"accumulate"` // count every read instead of presence
	SortBarcodes     bool   `json:"sort_barcodes"`
}

func defaultConfig() *Config {
	return &Config{MinRoundScore: barcode.DefaultMinRoundScore}
}

func readConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.E("read config "+filename, err)
	}

	c, err := configFromJSON(data)
	if err != nil {
		return nil, errors.E("config "+filename, err)
	}
	return c, nil
}

func configFromJSON(data []byte) (*Config, error) {
	c := defaultConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, errors.E(errors.Invalid, err)
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	switch {
	case c.MinRoundScore < 1 || c.MinRoundScore > barcode.RoundLength:
		return errors.E(errors.Invalid, "min_round_score must be between 1 and the barcode length")
	case c.Threads < 0:
		return errors.E(errors.Invalid, "threads must not be negative")
	case c.CompressionLevel < -2 || c.CompressionLevel > 9:
		return errors.E(errors.Invalid, "compression_level must be between -2 and 9")
	case c.MaxPairs < 0:
		return errors.E(errors.Invalid, "max_pairs must not be negative")
	}
	return nil
}

// override copies the fields of flagged whose flags were set explicitly.
func (c *Config) override(flags *pflag.FlagSet, flagged *Config) {
	set := func(name string, apply func()) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("barcodes", func() { c.Barcodes = flagged.Barcodes })
	set("min-round-score", func() { c.MinRoundScore = flagged.MinRoundScore })
	set("index-neighbours", func() { c.IndexNeighbours = flagged.IndexNeighbours })
	set("threads", func() { c.Threads = flagged.Threads })
	set("compression-level", func() { c.CompressionLevel = flagged.CompressionLevel })
	set("max-pairs", func() { c.MaxPairs = flagged.MaxPairs })
	set("accumulate", func() { c.Accumulate = flagged.Accumulate })
	set("sort-barcodes", func() { c.SortBarcodes = flagged.SortBarcodes })
}

func (c *Config) schemeOpts() barcode.Opts {
	return barcode.Opts{MinRoundScore: c.MinRoundScore, IndexNeighbours: c.IndexNeighbours}
}

func (c *Config) demuxOpts() demux.Opts {
	return demux.Opts{
		MaxPairs: c.MaxPairs,
		Writer:   demux.WriterOpts{Threads: c.Threads, Level: c.CompressionLevel},
	}
}

func (c *Config) countsOpts() counts.Opts {
	opts := counts.Opts{Mode: counts.SetOnce, SortBarcodes: c.SortBarcodes}
	if c.Accumulate {
		opts.Mode = counts.Accumulate
	}
	return opts
}
