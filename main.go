// Command splitpool demultiplexes split-pool combinatorially barcoded
// paired-end reads and builds per-cell count matrices from their
// alignments.
package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cpuprofile, memprofile string
		debug                  bool
		cpuFile                *os.File
	)
	root := &cobra.Command{
		Use:           "splitpool",
		Short:         "Demultiplex split-pool barcoded reads and count them per cell",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(log.Debug)
			}
			if cpuprofile == "" {
				return nil
			}
			f, err := os.Create(cpuprofile)
			if err != nil {
				return errors.E("could not create CPU profile", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return errors.E("could not start CPU profile", err)
			}
			cpuFile = f
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cpuFile != nil {
				pprof.StopCPUProfile()
				cpuFile.Close()
			}
			if memprofile == "" {
				return nil
			}
			f, err := os.Create(memprofile)
			if err != nil {
				return errors.E("could not create memory profile", err)
			}
			defer f.Close()
			runtime.GC() // get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				return errors.E("could not write memory profile", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile to `file`")
	root.PersistentFlags().StringVar(&memprofile, "memprofile", "", "write memory profile to `file`")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log progress and other debug messages")
	root.AddCommand(toFastqCommand(), bamToCountCommand())
	return root
}
