// Package star wraps the external STARsolo aligner: probe invocations
// for strand inference and the handoff point for real alignment runs.
// It never implements alignment itself.
package star

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// DefaultExe is the aligner executable looked up on PATH when Runner
// does not name one.
const DefaultExe = "STAR"

// A Runner executes the aligner with a fixed genome index and
// thread/memory budget.
type Runner struct {
	// Exe is the aligner binary; DefaultExe when empty.
	Exe string
	// GenomeDir is the built genome index directory.
	GenomeDir string
	// Threads is the thread budget handed to the aligner.
	Threads int
	// SortMemBytes caps BAM sorting memory on real runs; 0 leaves the
	// aligner default.
	SortMemBytes int64
}

func (r *Runner) exe() string {
	if r.Exe == "" {
		return DefaultExe
	}
	return r.Exe
}

// Base returns the argument prefix shared by every invocation: genome
// index and thread budget. The index path is resolved because probe
// runs change working directory.
func (r *Runner) Base() []string {
	return []string{
		"--runMode", "alignReads",
		"--genomeDir", absPath(r.GenomeDir),
		"--runThreadN", strconv.Itoa(r.Threads),
	}
}

// Run executes the aligner with args in dir. A non-zero exit is
// returned as an error carrying the captured stderr.
func (r *Runner) Run(ctx context.Context, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, r.exe(), args...)
	cmd.Dir = dir
	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr
	log.Debug.Printf("exec %s %v (dir %s)", r.exe(), args, dir)
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s: %s", r.exe(), stderr.Bytes())
	}
	return nil
}
