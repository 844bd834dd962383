package main

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"

	"github.com/Altius/stampipes/programs/splitpool/barcode"
	"github.com/Altius/stampipes/programs/splitpool/counts"
	"github.com/Altius/stampipes/programs/splitpool/demux"
)

// loadConfig reads the --config file, if any, and applies the flags set
// on the command line on top of it.
func loadConfig(cmd *cobra.Command, configFile string, flagged *Config) (*Config, error) {
	c := defaultConfig()
	if configFile != "" {
		var err error
		if c, err = readConfigFile(configFile); err != nil {
			return nil, err
		}
	}
	c.override(cmd.Flags(), flagged)
	return c, c.validate()
}

func toFastqCommand() *cobra.Command {
	var (
		paths      demux.Paths
		configFile string
		flagged    = defaultConfig()
	)
	cmd := &cobra.Command{
		Use:   "to-fastq",
		Short: "Identify cell barcodes and write barcode-labelled FASTQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, configFile, flagged)
			if err != nil {
				return err
			}
			if config.Barcodes == "" {
				return errors.E(errors.Invalid, "no barcode table given (--barcodes or \"barcodes\" in --config)")
			}
			log.Printf("reading barcode table %s", config.Barcodes)
			scheme, err := barcode.LoadScheme(config.Barcodes, config.schemeOpts())
			if err != nil {
				return err
			}
			_, err = demux.Convert(scheme, paths, config.demuxOpts())
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&paths.R1, "i1", "", "forward reads")
	flags.StringVar(&paths.R2, "i2", "", "reverse reads, carrying the cell barcode")
	flags.StringVar(&paths.Out1, "o1", "", "gzipped forward reads output")
	flags.StringVar(&paths.Out2, "o2", "", "gzipped reverse reads output")
	flags.StringVar(&paths.Histogram, "hist", "", "barcode histogram output")
	flags.StringVar(&configFile, "config", "", "read run configuration from `file`")
	flags.StringVar(&flagged.Barcodes, "barcodes", "", "barcode reference table (round, well, sequence)")
	flags.IntVar(&flagged.MinRoundScore, "min-round-score", flagged.MinRoundScore, "minimum matching bases to correct a round (1-8)")
	flags.BoolVar(&flagged.IndexNeighbours, "index-neighbours", false, fmt.Sprintf("precompute corrections of near-miss barcodes (up to %d substitutions)", barcode.MaxIndexDistance))
	flags.IntVarP(&flagged.Threads, "threads", "t", 0, "gzip compression threads (0: all CPUs)")
	flags.IntVar(&flagged.CompressionLevel, "compression-level", 0, "gzip compression level (0: default)")
	flags.Int64Var(&flagged.MaxPairs, "max-pairs", 0, "stop after this many read pairs (0: no limit)")
	for _, name := range []string{"i1", "i2", "o1", "o2", "hist"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func bamToCountCommand() *cobra.Command {
	var (
		input, output, configFile string
		flagged                   = defaultConfig()
	)
	cmd := &cobra.Command{
		Use:   "bam-to-count",
		Short: "Count aligned reads per cell barcode and reference sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, configFile, flagged)
			if err != nil {
				return err
			}
			opts := config.countsOpts()
			log.Printf("counting %s (%s)", input, opts.Mode)
			return counts.Convert(input, output, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&input, "ibam", "i", "", "BAM or SAM input")
	flags.StringVarP(&output, "out", "o", "", "count matrix output directory")
	flags.StringVar(&configFile, "config", "", "read run configuration from `file`")
	flags.BoolVar(&flagged.Accumulate, "accumulate", false, "count every read instead of recording presence per cell and feature")
	flags.BoolVar(&flagged.SortBarcodes, "sort-barcodes", false, "order matrix rows by barcode instead of first appearance")
	for _, name := range []string{"ibam", "out"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}
