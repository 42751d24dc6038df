// Package strand infers the transcript strand orientation of a
// library by probing the subsample under both orientations and
// comparing gene-assignment rates.
package strand

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
)

// Orientation is the genomic strand the biological read is expected
// to match.
type Orientation int

const (
	// Forward strand orientation.
	Forward Orientation = iota
	// Reverse strand orientation.
	Reverse
)

// String returns the aligner-facing spelling of the orientation.
func (o Orientation) String() string {
	switch o {
	case Forward:
		return "Forward"
	case Reverse:
		return "Reverse"
	}
	return "Unknown"
}

// Parse converts the spelling produced by String back into an
// Orientation.
func Parse(s string) (Orientation, error) {
	switch s {
	case "Forward":
		return Forward, nil
	case "Reverse":
		return Reverse, nil
	}
	return Forward, errors.Errorf("unknown strand orientation %q", s)
}

// LowConfidencePct is the gene-assignment percentage below which an
// orientation carries no real signal. Both probes landing under it is
// reported but not fatal.
const LowConfidencePct = 50.0

// A Prober runs one throwaway quantification pass over the subsample
// under the given orientation and returns the percentage of reads
// uniquely assigned to the full gene body feature set.
type Prober interface {
	Probe(ctx context.Context, o Orientation) (float64, error)
}

// A Decision is the outcome of dual-orientation probing for one
// sample.
type Decision struct {
	// Orientation is the selected strand.
	Orientation Orientation
	// PercentForward and PercentReverse are the gene-assignment
	// percentages under each orientation.
	PercentForward, PercentReverse float64
	// Paired is the paired-end flag after the 3' override (see Decide).
	Paired bool
	// LowConfidence is set when both percentages fall below
	// LowConfidencePct.
	LowConfidence bool
}

// Decide probes both orientations concurrently and selects the one
// with the higher gene-assignment percentage; an exact tie keeps
// Forward. paired is the paired-end flag guessed from the barcode-read
// length; a paired library that probes Forward is reclassified as
// single-end, since a forward-stranded (3') protocol is expected
// single-end and the strand signal outranks the length heuristic. The
// override only ever clears the flag, never changes the strand.
func Decide(ctx context.Context, p Prober, paired bool) (Decision, error) {
	var pcts [2]float64
	orientations := [2]Orientation{Forward, Reverse}
	err := traverse.Each(2, func(i int) error {
		pct, err := p.Probe(ctx, orientations[i])
		if err != nil {
			return errors.Wrapf(err, "%s probe", orientations[i])
		}
		pcts[i] = pct
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Orientation:    Forward,
		PercentForward: pcts[0],
		PercentReverse: pcts[1],
		Paired:         paired,
	}
	if d.PercentReverse > d.PercentForward {
		d.Orientation = Reverse
	}
	if d.PercentForward < LowConfidencePct && d.PercentReverse < LowConfidencePct {
		d.LowConfidence = true
		log.Error.Printf("warning: low-confidence strand call (forward %.2f%%, reverse %.2f%%)",
			d.PercentForward, d.PercentReverse)
	}
	log.Printf("strand %s selected (forward %.2f%%, reverse %.2f%%)",
		d.Orientation, d.PercentForward, d.PercentReverse)

	if d.Paired && d.Orientation == Forward {
		log.Error.Printf("warning: paired barcode read with forward-stranded mapping; treating library as single-end")
		d.Paired = false
	}
	return d, nil
}
