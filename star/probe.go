package star

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/scrnapipe/soloconf/chemistry"
	"github.com/scrnapipe/soloconf/strand"
)

// soloSummaryKey is the Summary.csv metric used to score a probe: the
// fraction of reads uniquely assigned over the full gene body.
const soloSummaryKey = "Reads Mapped to GeneFull: Unique GeneFull"

// A Probe runs throwaway quantification passes over a subsample to
// measure gene assignment under each strand orientation. It
// implements strand.Prober. Each orientation runs in its own
// subdirectory of ScratchDir, so the two passes can run concurrently.
type Probe struct {
	Runner *Runner
	// R1Path and R2Path are the subsample scratch FASTQ files
	// (barcode and biological mates, uncompressed).
	R1Path, R2Path string
	// Profile is the resolved chemistry.
	Profile chemistry.Profile
	// WhitelistPath is the selected whitelist file.
	WhitelistPath string
	// ScratchDir hosts the per-orientation probe directories.
	ScratchDir string
}

// absPath resolves path for the probe process, which runs with its
// output directory as working directory.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Args builds the aligner argument list for one probe orientation.
// The biological mate leads; no alignment output is kept, only solo
// counts over the full gene body.
func (p *Probe) Args(o strand.Orientation, outDir string) []string {
	args := p.Runner.Base()
	args = append(args,
		"--readFilesIn", absPath(p.R2Path), absPath(p.R1Path),
		"--soloType", "CB_UMI_Simple",
		"--soloCBwhitelist", absPath(p.WhitelistPath),
		"--soloCBstart", "1",
		"--soloCBlen", strconv.Itoa(p.Profile.CBLen),
		"--soloUMIstart", strconv.Itoa(p.Profile.CBLen+1),
		"--soloUMIlen", strconv.Itoa(p.Profile.UMILen),
		"--soloFeatures", "GeneFull",
		"--soloStrand", o.String(),
		"--outSAMtype", "None",
		"--outFileNamePrefix", outDir+string(os.PathSeparator),
	)
	return args
}

// Probe implements strand.Prober: it runs one quantification pass
// under orientation o and returns the percent of subsampled reads
// uniquely assigned to the full gene body.
func (p *Probe) Probe(ctx context.Context, o strand.Orientation) (float64, error) {
	outDir := absPath(filepath.Join(p.ScratchDir, "probe_"+strings.ToLower(o.String())))
	if err := os.MkdirAll(outDir, 0700); err != nil {
		return 0, err
	}
	if err := p.Runner.Run(ctx, outDir, p.Args(o, outDir)); err != nil {
		return 0, err
	}
	summary := filepath.Join(outDir, "Solo.out", "GeneFull", "Summary.csv")
	frac, err := SoloMetric(summary, soloSummaryKey)
	if err != nil {
		return 0, err
	}
	return frac * 100, nil
}

// SoloMetric extracts one named metric from a solo Summary.csv file.
// The file's existence is checked first so a missing optional output
// reports a clear error rather than an open failure.
func SoloMetric(path, key string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, errors.Errorf("probe produced no summary at %s", path)
	}
	rows, err := readSummary(path)
	if err != nil {
		return 0, err
	}
	v, ok := rows[key]
	if !ok {
		return 0, errors.Errorf("%s: metric %q not present", path, key)
	}
	return v, nil
}
