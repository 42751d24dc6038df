// Package chemistry resolves which droplet chemistry generated a
// sample from whitelist match counts and observed read lengths.
package chemistry

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/scrnapipe/soloconf/fastq"
)

const (
	// AcceptThreshold is the minimum whitelist match count, out of the
	// subsample, for a chemistry to be accepted.
	AcceptThreshold = 50000

	// MinBarcodeReadLen is the minimum acceptable mean barcode-read
	// length.
	MinBarcodeReadLen = 24

	// MinBioReadLen is the minimum acceptable mean biological-read
	// length.
	MinBioReadLen = 40

	// MaxTrimmedLen: a non-uniform barcode-read length at or below this
	// mean indicates the reads were quality-trimmed upstream, which
	// destroys the fixed barcode layout.
	MaxTrimmedLen = 30

	// PairedLenCutoff: a mean barcode-read length above this implies
	// read 1 carries a cDNA insert, i.e. a paired 5' protocol.
	PairedLenCutoff = 50
)

// A Profile describes one chemistry: its whitelist and the barcode and
// UMI lengths it implies.
type Profile struct {
	// Name is the chemistry name used in logs and provenance.
	Name string
	// Whitelist is the whitelist name as registered in the whitelist
	// registry.
	Whitelist string
	// CBLen and UMILen are the cell-barcode and UMI lengths.
	CBLen, UMILen int
}

// profiles lists the known chemistries in selection precedence order.
// The first profile whose whitelist match count exceeds
// AcceptThreshold wins.
var profiles = []Profile{
	{Name: "v3", Whitelist: "3M-february-2018", CBLen: 16, UMILen: 12},
	{Name: "v2", Whitelist: "737K-august-2016", CBLen: 16, UMILen: 10},
	{Name: "multiome", Whitelist: "737K-arc-v1", CBLen: 16, UMILen: 12},
	{Name: "v1", Whitelist: "737K-april-2014", CBLen: 14, UMILen: 10},
	{Name: "v4-3p", Whitelist: "3M-3pgex-may-2023", CBLen: 16, UMILen: 12},
	{Name: "v4-5p", Whitelist: "3M-5pgex-jan-2023", CBLen: 16, UMILen: 12},
}

// Profiles returns the known chemistries in precedence order.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// A Resolution is the chemistry decision for one sample.
type Resolution struct {
	// Profile is the selected chemistry, with UMILen already corrected
	// if it would overflow the observed read length.
	Profile Profile
	// Paired reports whether the barcode read is long enough to carry a
	// cDNA insert.
	Paired bool
}

// BarcodeTooShortError reports a mean barcode-read length below
// MinBarcodeReadLen.
type BarcodeTooShortError struct {
	MeanLen float64
}

func (e *BarcodeTooShortError) Error() string {
	return fmt.Sprintf("mean barcode-read length %.1f below minimum %d", e.MeanLen, MinBarcodeReadLen)
}

// BiologicalReadTooShortError reports a mean biological-read length
// below MinBioReadLen.
type BiologicalReadTooShortError struct {
	MeanLen float64
}

func (e *BiologicalReadTooShortError) Error() string {
	return fmt.Sprintf("mean biological-read length %.1f below minimum %d", e.MeanLen, MinBioReadLen)
}

// InconsistentLengthError reports a barcode read whose length varies
// across the subsample while its mean is short enough to indicate
// upstream quality trimming.
type InconsistentLengthError struct {
	MeanLen  float64
	Distinct int
}

func (e *InconsistentLengthError) Error() string {
	return fmt.Sprintf("barcode-read length varies (%d distinct lengths, mean %.1f): reads appear quality-trimmed", e.Distinct, e.MeanLen)
}

// NoWhitelistMatchError reports that no whitelist cleared the
// acceptance threshold. It carries all match counts for diagnosis.
type NoWhitelistMatchError struct {
	Counts map[string]int
}

func (e *NoWhitelistMatchError) Error() string {
	parts := make([]string, 0, len(profiles))
	for _, p := range profiles {
		parts = append(parts, fmt.Sprintf("%s=%d", p.Whitelist, e.Counts[p.Whitelist]))
	}
	return fmt.Sprintf("no whitelist matched over %d reads: %s", AcceptThreshold, strings.Join(parts, " "))
}

// Resolve selects the chemistry for one sample from the whitelist
// match counts and the subsample length statistics. r1 describes the
// barcode read, r2 the biological read.
//
// The length gates run first and are fatal. Selection walks the
// profile table in precedence order and accepts the first whitelist
// whose count exceeds AcceptThreshold. After selection, a UMI that
// would overflow the observed barcode-read length is shrunk with a
// warning; slack between barcode+UMI and the observed length is only
// advisory.
func Resolve(counts map[string]int, r1, r2 fastq.LengthStats) (Resolution, error) {
	if r1.Mean < MinBarcodeReadLen {
		return Resolution{}, &BarcodeTooShortError{MeanLen: r1.Mean}
	}
	if !r1.Uniform() && r1.Mean <= MaxTrimmedLen {
		return Resolution{}, &InconsistentLengthError{MeanLen: r1.Mean, Distinct: r1.Distinct}
	}
	if r2.Mean < MinBioReadLen {
		return Resolution{}, &BiologicalReadTooShortError{MeanLen: r2.Mean}
	}

	var selected *Profile
	for i := range profiles {
		if counts[profiles[i].Whitelist] > AcceptThreshold {
			selected = &profiles[i]
			break
		}
	}
	if selected == nil {
		return Resolution{}, &NoWhitelistMatchError{Counts: counts}
	}
	res := Resolution{
		Profile: *selected,
		Paired:  r1.Mean > PairedLenCutoff,
	}
	log.Printf("chemistry %s selected (%d whitelist matches, CB %d, UMI %d)",
		res.Profile.Name, counts[res.Profile.Whitelist], res.Profile.CBLen, res.Profile.UMILen)

	if total := float64(res.Profile.CBLen + res.Profile.UMILen); total > r1.Mean {
		corrected := int(r1.Mean) - res.Profile.CBLen
		log.Error.Printf("warning: CB+UMI length %d exceeds mean barcode-read length %.1f; shrinking UMI from %d to %d",
			res.Profile.CBLen+res.Profile.UMILen, r1.Mean, res.Profile.UMILen, corrected)
		res.Profile.UMILen = corrected
	} else if total < r1.Mean {
		log.Error.Printf("warning: barcode read (mean %.1f) is longer than CB+UMI length %d; trailing bases are ignored",
			r1.Mean, res.Profile.CBLen+res.Profile.UMILen)
	}
	return res, nil
}
