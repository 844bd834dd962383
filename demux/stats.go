package demux

import (
	"github.com/dustin/go-humanize"
	"github.com/grailbio/base/log"

	"github.com/Altius/stampipes/programs/splitpool/barcode"
)

// Stats tallies what happened to each read pair.
type Stats struct {
	Pairs       int64
	Passed      int64
	TooShort    int64
	RoundFailed int64
	LowScore    int64
}

func (s *Stats) add(outcome barcode.Outcome) {
	s.Pairs++
	switch outcome {
	case barcode.OK:
		s.Passed++
	case barcode.TooShort:
		s.TooShort++
	case barcode.RoundFailed:
		s.RoundFailed++
	case barcode.LowScore:
		s.LowScore++
	}
}

// Dropped returns the number of pairs without a usable barcode.
func (s Stats) Dropped() int64 { return s.Pairs - s.Passed }

// Log prints a summary of s.
func (s Stats) Log() {
	pct := 0.0
	if s.Pairs > 0 {
		pct = 100 * float64(s.Passed) / float64(s.Pairs)
	}
	log.Printf("read pairs: %s, with barcode: %s (%.2f%%)",
		humanize.Comma(s.Pairs), humanize.Comma(s.Passed), pct)
	log.Printf("dropped: read too short %s, round not corrected %s, low total score %s",
		humanize.Comma(s.TooShort), humanize.Comma(s.RoundFailed), humanize.Comma(s.LowScore))
}
