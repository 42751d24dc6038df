// Package runconfig assembles the final, immutable aligner
// configuration for a sample and records it in the cumulative
// provenance table.
package runconfig

import (
	"strconv"
	"strings"

	"github.com/scrnapipe/soloconf/chemistry"
	"github.com/scrnapipe/soloconf/strand"
)

// Read1Clip is the fixed 5' clip applied to read 1 in paired mode to
// remove adapter readthrough ahead of the cDNA insert.
const Read1Clip = 39

// A Config is the fully resolved alignment configuration for one
// sample. It is immutable after Build.
type Config struct {
	// Sample is the sample identity.
	Sample string
	// Paired reports whether both mates carry biological sequence.
	Paired bool
	// Strand is the selected mapping orientation.
	Strand strand.Orientation
	// PercentForward and PercentReverse are the probe metrics behind
	// the strand call.
	PercentForward, PercentReverse float64
	// Profile is the resolved chemistry (post length correction).
	Profile chemistry.Profile
	// WhitelistPath is the whitelist file handed to the aligner.
	WhitelistPath string
	// Gzip reports whether the inputs are gzip-compressed.
	Gzip bool
	// Read1Files and Read2Files are the original input lists.
	Read1Files, Read2Files []string
}

// Build assembles the Config for one sample from the chemistry
// resolution and strand decision. Gzip is detected from the input
// file suffixes.
func Build(sample string, res chemistry.Resolution, d strand.Decision, whitelistPath string, read1, read2 []string) *Config {
	gz := false
	for _, f := range read1 {
		if strings.HasSuffix(f, ".gz") {
			gz = true
			break
		}
	}
	return &Config{
		Sample:         sample,
		Paired:         d.Paired,
		Strand:         d.Orientation,
		PercentForward: d.PercentForward,
		PercentReverse: d.PercentReverse,
		Profile:        res.Profile,
		WhitelistPath:  whitelistPath,
		Gzip:           gz,
		Read1Files:     read1,
		Read2Files:     read2,
	}
}

// AlignArgs renders the configuration into the aligner argument list
// for the real run. base is the runner's shared prefix (genome index,
// threads); outPrefix is the output directory prefix. The paired
// layout feeds both mates with the fixed 5' clip on read 1; the
// single-end layout leads with the biological mate and disables the
// barcode-read length check. This function never dispatches anything.
func (c *Config) AlignArgs(base []string, outPrefix string, sortMemBytes int64) []string {
	args := append([]string{}, base...)
	if c.Paired {
		args = append(args,
			"--readFilesIn", strings.Join(c.Read1Files, ","), strings.Join(c.Read2Files, ","),
			"--soloBarcodeMate", "1",
			"--clip5pNbases", strconv.Itoa(Read1Clip), "0",
		)
	} else {
		args = append(args,
			"--readFilesIn", strings.Join(c.Read2Files, ","), strings.Join(c.Read1Files, ","),
			"--soloBarcodeReadLength", "0",
		)
	}
	args = append(args,
		"--soloType", "CB_UMI_Simple",
		"--soloCBwhitelist", c.WhitelistPath,
		"--soloCBstart", "1",
		"--soloCBlen", strconv.Itoa(c.Profile.CBLen),
		"--soloUMIstart", strconv.Itoa(c.Profile.CBLen+1),
		"--soloUMIlen", strconv.Itoa(c.Profile.UMILen),
		"--soloFeatures", "Gene", "GeneFull",
		"--soloStrand", c.Strand.String(),
		"--outSAMtype", "BAM", "SortedByCoordinate",
		"--outFileNamePrefix", outPrefix,
	)
	if c.Gzip {
		args = append(args, "--readFilesCommand", "zcat")
	}
	if sortMemBytes > 0 {
		args = append(args, "--limitBAMsortRAM", strconv.FormatInt(sortMemBytes, 10))
	}
	return args
}
