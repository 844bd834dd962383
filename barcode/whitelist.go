package barcode

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// DefaultMinRoundScore is the lowest number of agreeing bases a
// candidate may have with its closest whitelist entry and still be
// corrected to it.
const DefaultMinRoundScore = 6

// Match is the result of correcting one round of a cell barcode.
type Match struct {
	Round    int
	Sequence string
	Score    int
}

// Whitelist holds the valid barcodes of one combinatorial round.
type Whitelist struct {
	round    int
	list     []string
	set      map[string]int // sequence -> index into list
	wells    []string
	bcLength int
	minScore int

	// neighbours maps near misses to the entry the linear scan picks
	// for them; nil until Index is called.
	neighbours map[string]int
}

// NewWhitelist builds the whitelist for the given 0-based round. All
// sequences must have the same, non-zero length. wells may be nil;
// otherwise it carries the well label of each sequence.
func NewWhitelist(round int, seqs, wells []string, minScore int) (*Whitelist, error) {
	if len(seqs) == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("round %d has no barcodes", round+1))
	}
	if wells != nil && len(wells) != len(seqs) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("round %d: %d well labels for %d barcodes", round+1, len(wells), len(seqs)))
	}
	w := &Whitelist{
		round:    round,
		list:     make([]string, len(seqs)),
		set:      make(map[string]int, len(seqs)),
		wells:    wells,
		bcLength: len(seqs[0]),
		minScore: minScore,
	}
	if w.bcLength == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("round %d has an empty barcode", round+1))
	}
	copy(w.list, seqs)
	for i, s := range seqs {
		if len(s) != w.bcLength {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("round %d: barcode %s has length %d, expected %d", round+1, s, len(s), w.bcLength))
		}
		// First occurrence wins, as it does in the scan.
		if _, dup := w.set[s]; !dup {
			w.set[s] = i
		}
	}
	return w, nil
}

// Len returns the number of barcodes in the whitelist.
func (w *Whitelist) Len() int { return len(w.list) }

// BarcodeLength returns the length shared by every barcode.
func (w *Whitelist) BarcodeLength() int { return w.bcLength }

// Barcodes returns the whitelist in load order. The slice must not be
// modified.
func (w *Whitelist) Barcodes() []string { return w.list }

// Well returns the well label recorded for seq, if any.
func (w *Whitelist) Well(seq string) (string, bool) {
	i, ok := w.set[seq]
	if !ok || w.wells == nil {
		return "", false
	}
	return w.wells[i], true
}

// Correct returns the whitelist entry closest to candidate. An exact
// hit scores the barcode length. Otherwise a candidate of the right
// length is compared base by base against every entry; the first entry
// with the highest number of agreeing positions wins if that number
// reaches the minimum round score.
func (w *Whitelist) Correct(candidate []byte) (Match, bool) {
	if len(candidate) == 0 {
		return Match{}, false
	}
	if i, ok := w.set[string(candidate)]; ok {
		return Match{Round: w.round, Sequence: w.list[i], Score: w.bcLength}, true
	}
	if len(candidate) != w.bcLength {
		return Match{}, false
	}
	if w.neighbours != nil {
		if i, ok := w.neighbours[string(candidate)]; ok {
			return Match{Round: w.round, Sequence: w.list[i], Score: similarity(candidate, w.list[i])}, true
		}
	}
	i, score := w.closest(candidate)
	if score < w.minScore {
		return Match{}, false
	}
	return Match{Round: w.round, Sequence: w.list[i], Score: score}, true
}

// closest returns the index and score of the first entry with the
// highest similarity to candidate.
func (w *Whitelist) closest(candidate []byte) (best, bestScore int) {
	bestScore = -1
	for i, s := range w.list {
		if score := similarity(candidate, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}

// Index precomputes the correction of every sequence within distance
// substitutions of a whitelist entry, over the alphabet ACGTN. The
// number of variants grows as 4^distance, so keep distance small.
// Lookups that hit the index skip the linear scan; the answers are the ones the
// scan would give. Index must be called before the whitelist is shared.
func (w *Whitelist) Index(distance int) {
	if distance <= 0 {
		return
	}
	neighbours := make(map[string]int)
	for _, s := range w.list {
		for _, variant := range mismatches(s, distance) {
			if _, exact := w.set[variant]; exact {
				continue
			}
			if _, done := neighbours[variant]; done {
				continue
			}
			if i, score := w.closest([]byte(variant)); score >= w.minScore {
				neighbours[variant] = i
			}
		}
	}
	w.neighbours = neighbours
}

// similarity counts the positions where a and b agree. b must be at
// least as long as a.
func similarity(a []byte, b string) int {
	n := 0
	for i, c := range a {
		if c == b[i] {
			n++
		}
	}
	return n
}
