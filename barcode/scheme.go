// Package barcode extracts and corrects split-pool combinatorial cell
// barcodes.
//
// A barcode read starts with four 8-base round barcodes separated by
// 4-base constant spacers:
//
//	[round 3][spacer][round 2][spacer][round 1][spacer][round 0]...
//
// Rounds are attached in the reverse of the order they appear in the
// read, so the round added first sits at offset 36 and the one added last
// at offset 0.
package barcode

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/shenwei356/xopen"
)

const (
	// Rounds is the number of combinatorial barcoding rounds.
	Rounds = 4
	// RoundLength is the length of a single round barcode.
	RoundLength = 8
	// SpacerLength is the length of the constant linker between rounds.
	SpacerLength = 4
	// ReadPrefixLength is the number of leading bases of a barcode read
	// taken up by the cell barcode.
	ReadPrefixLength = Rounds*RoundLength + (Rounds-1)*SpacerLength

	// MinAggregateScore is the lowest summed score over all rounds for a
	// cell barcode to be accepted: at most one mismatch per round on
	// average.
	MinAggregateScore = Rounds * (RoundLength - 1)

	// MaxIndexDistance bounds the substitutions precomputed by
	// Opts.IndexNeighbours. Candidates further from every entry are
	// corrected by the linear scan.
	MaxIndexDistance = 2
)

// Outcome reports how extracting a cell barcode from a read went.
type Outcome int

const (
	// OK means all rounds were corrected and the barcode was accepted.
	OK Outcome = iota
	// TooShort means the read does not cover all rounds.
	TooShort
	// RoundFailed means at least one round could not be corrected.
	RoundFailed
	// LowScore means every round was corrected but the summed score was
	// below MinAggregateScore.
	LowScore
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case TooShort:
		return "too short"
	case RoundFailed:
		return "round failed"
	case LowScore:
		return "low score"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// CellBarcode is a corrected combinatorial barcode, rounds ordered from
// first attached to last attached.
type CellBarcode struct {
	Rounds [Rounds]Match
	Score  int
}

// String returns the dot-joined round sequences, which identify the cell.
func (c CellBarcode) String() string {
	var b strings.Builder
	b.Grow(Rounds*(RoundLength+1) - 1)
	for i, m := range c.Rounds {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(m.Sequence)
	}
	return b.String()
}

// Opts configures scheme loading.
type Opts struct {
	// MinRoundScore is the per-round acceptance threshold. Zero selects
	// DefaultMinRoundScore.
	MinRoundScore int
	// IndexNeighbours precomputes the correction of every near miss that
	// can still pass MinRoundScore, up to MaxIndexDistance substitutions.
	IndexNeighbours bool
}

// Scheme corrects the four rounds of a cell barcode. It is immutable
// once loaded and may be shared between goroutines.
type Scheme struct {
	rounds [Rounds]*Whitelist
}

// NewScheme builds a scheme from per-round whitelists, indexed by
// 0-based round.
func NewScheme(rounds [Rounds]*Whitelist) (*Scheme, error) {
	for i, w := range rounds {
		if w == nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("round %d has no barcodes", i+1))
		}
		if w.BarcodeLength() != RoundLength {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("round %d: barcodes have length %d, expected %d", i+1, w.BarcodeLength(), RoundLength))
		}
	}
	return &Scheme{rounds: rounds}, nil
}

// LoadScheme reads the barcode reference table at path. Each line holds
// a 1-based round position, a well label and a barcode sequence,
// separated by tabs or spaces. A leading header line, blank lines and
// lines starting with '#' are ignored. The file may be compressed.
func LoadScheme(path string, opts Opts) (*Scheme, error) {
	if opts.MinRoundScore == 0 {
		opts.MinRoundScore = DefaultMinRoundScore
	}
	r, err := xopen.Ropen(path)
	if err != nil {
		return nil, errors.E("open barcode table "+path, err)
	}
	defer r.Close()

	var (
		seqs   [Rounds][]string
		wells  [Rounds][]string
		lineno int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: expected 3 columns, found %d", path, lineno, len(fields)))
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			if lineno == 1 {
				continue // header
			}
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: bad round position %q", path, lineno, fields[0]))
		}
		if pos < 1 || pos > Rounds {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: round position %d out of range 1..%d", path, lineno, pos, Rounds))
		}
		seqs[pos-1] = append(seqs[pos-1], fields[2])
		wells[pos-1] = append(wells[pos-1], fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E("read barcode table "+path, err)
	}

	var rounds [Rounds]*Whitelist
	for i := range rounds {
		w, err := NewWhitelist(i, seqs[i], wells[i], opts.MinRoundScore)
		if err != nil {
			return nil, errors.E("barcode table "+path, err)
		}
		if opts.IndexNeighbours {
			distance := w.BarcodeLength() - opts.MinRoundScore
			if distance > MaxIndexDistance {
				distance = MaxIndexDistance
			}
			w.Index(distance)
		}
		rounds[i] = w
	}
	return NewScheme(rounds)
}

// Round returns the whitelist of the given 0-based round.
func (s *Scheme) Round(i int) *Whitelist { return s.rounds[i] }

// windowOffset returns where the given round starts in a barcode read.
func windowOffset(round int) int {
	return (Rounds - 1 - round) * (RoundLength + SpacerLength)
}

// Extract slices the round barcodes out of read at their fixed offsets
// and corrects each against its whitelist. Spacers are skipped without
// being checked. The returned CellBarcode is only meaningful when the
// outcome is OK.
func (s *Scheme) Extract(read []byte) (CellBarcode, Outcome) {
	var bc CellBarcode
	if len(read) < ReadPrefixLength {
		return bc, TooShort
	}
	for round, w := range s.rounds {
		off := windowOffset(round)
		m, ok := w.Correct(read[off : off+RoundLength])
		if !ok {
			return bc, RoundFailed
		}
		bc.Rounds[round] = m
		bc.Score += m.Score
	}
	if bc.Score < MinAggregateScore {
		return bc, LowScore
	}
	return bc, OK
}
