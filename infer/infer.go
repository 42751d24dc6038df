// Package infer drives the per-sample configuration pass: subsample,
// whitelist scoring, chemistry resolution, strand probing, and final
// run configuration, with per-sample failure isolation.
package infer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
	"github.com/scrnapipe/soloconf/chemistry"
	"github.com/scrnapipe/soloconf/fastq"
	"github.com/scrnapipe/soloconf/runconfig"
	"github.com/scrnapipe/soloconf/star"
	"github.com/scrnapipe/soloconf/strand"
	"github.com/scrnapipe/soloconf/whitelist"
)

// State is the position of one sample in its configuration pass.
type State int

const (
	// Init is the starting state.
	Init State = iota
	// Sampled: the subsample scratch files exist.
	Sampled
	// WhitelistScored: match counts are computed.
	WhitelistScored
	// ChemistryResolved: a chemistry profile is selected.
	ChemistryResolved
	// StrandProbed: both probe passes completed and a strand is chosen.
	StrandProbed
	// Configured: the RunConfig exists and is recorded; the only state
	// from which alignment is dispatched.
	Configured
	// Dispatched: the real alignment run was handed to the executor.
	Dispatched
	// Failed: the pass aborted; Result.Err holds the originating error.
	Failed
)

var stateNames = []string{
	"Init", "Sampled", "WhitelistScored", "ChemistryResolved",
	"StrandProbed", "Configured", "Dispatched", "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Invalid"
	}
	return stateNames[s]
}

// An Input names one sample and its positionally paired input file
// lists.
type Input struct {
	Sample string
	// Read1 holds the barcode/UMI mates, Read2 the biological mates.
	Read1, Read2 []string
}

// A Result is the outcome of one sample's pass.
type Result struct {
	Input  Input
	State  State
	Config *runconfig.Config
	Err    error
}

// An Engine runs configuration passes. Samples are independent; an
// Engine may run many concurrently.
type Engine struct {
	Registry *whitelist.Registry
	Runner   *star.Runner
	Table    *runconfig.Table
	// WorkDir hosts one subdirectory per sample.
	WorkDir string
	// SampleSize overrides fastq.SampleSize when nonzero.
	SampleSize int
	// Dispatch, when set, hands Configured samples to the executor for
	// the real alignment run.
	Dispatch bool
	// ProbeFactory overrides the aligner-backed strand prober. Tests
	// use it; nil means probe through Runner.
	ProbeFactory func(p *star.Probe) strand.Prober
}

func (e *Engine) prober(p *star.Probe) strand.Prober {
	if e.ProbeFactory != nil {
		return e.ProbeFactory(p)
	}
	return p
}

func (e *Engine) sampleSize() int {
	if e.SampleSize > 0 {
		return e.SampleSize
	}
	return fastq.SampleSize
}

// Configure runs the full pass for one sample. The scratch directory
// is removed on every exit path. A failure at any stage yields state
// Failed with the originating error; it never affects other samples.
func (e *Engine) Configure(ctx context.Context, in Input) Result {
	fail := func(at State, err error) Result {
		log.Error.Printf("%s: failed at %s: %v", in.Sample, at, err)
		if e.Table != nil {
			if ferr := e.Table.AppendFailure(in.Sample, err); ferr != nil {
				log.Error.Printf("%s: recording failure: %v", in.Sample, ferr)
			}
		}
		return Result{Input: in, State: Failed, Err: err}
	}

	workDir := filepath.Join(e.WorkDir, in.Sample)
	scratch := filepath.Join(workDir, "_config-"+uuid.New().String())
	if err := os.MkdirAll(scratch, 0700); err != nil {
		return fail(Init, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Error.Printf("%s: removing scratch %s: %v", in.Sample, scratch, err)
		}
	}()

	sample, err := fastq.SamplePairs(ctx, in.Read1, in.Read2, e.sampleSize(), scratch)
	if err != nil {
		return fail(Init, err)
	}
	log.Debug.Printf("%s: %s (%d pairs, R1 mean %.1f, R2 mean %.1f)",
		in.Sample, Sampled, sample.N, sample.R1Stats.Mean, sample.R2Stats.Mean)

	counts, err := e.Registry.MatchCounts(ctx, sample.Barcodes())
	if err != nil {
		return fail(Sampled, err)
	}
	log.Debug.Printf("%s: %s: %v", in.Sample, WhitelistScored, counts)

	res, err := chemistry.Resolve(counts, sample.R1Stats, sample.R2Stats)
	if err != nil {
		return fail(WhitelistScored, err)
	}
	wl := e.Registry.Lookup(res.Profile.Whitelist)
	if wl == nil {
		return fail(ChemistryResolved, errors.Errorf("chemistry %s names unknown whitelist %s", res.Profile.Name, res.Profile.Whitelist))
	}

	probe := &star.Probe{
		Runner:        e.Runner,
		R1Path:        sample.R1Path,
		R2Path:        sample.R2Path,
		Profile:       res.Profile,
		WhitelistPath: wl.Path,
		ScratchDir:    scratch,
	}
	decision, err := strand.Decide(ctx, e.prober(probe), res.Paired)
	if err != nil {
		return fail(ChemistryResolved, err)
	}
	log.Debug.Printf("%s: %s: %s", in.Sample, StrandProbed, decision.Orientation)

	cfg := runconfig.Build(in.Sample, res, decision, wl.Path, in.Read1, in.Read2)
	if err := e.Table.Append(cfg.Row()); err != nil {
		return fail(StrandProbed, err)
	}
	log.Printf("%s: %s (chemistry %s, strand %s, paired %v)",
		in.Sample, Configured, cfg.Profile.Name, cfg.Strand, cfg.Paired)

	if !e.Dispatch {
		return Result{Input: in, State: Configured, Config: cfg}
	}
	if err := e.dispatch(ctx, workDir, cfg); err != nil {
		return fail(Configured, err)
	}
	return Result{Input: in, State: Dispatched, Config: cfg}
}

// dispatch hands the finished configuration to the aligner for the
// real run.
func (e *Engine) dispatch(ctx context.Context, workDir string, cfg *runconfig.Config) error {
	outDir := filepath.Join(workDir, "align")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	args := cfg.AlignArgs(e.Runner.Base(), outDir+string(os.PathSeparator), e.Runner.SortMemBytes)
	// The real run inherits the caller's working directory so the
	// user's relative input paths resolve as written.
	return e.Runner.Run(ctx, "", args)
}

// RunAll configures every sample, fanning the passes out in parallel.
// Failures are isolated: a failed sample is reported in its Result
// and never aborts a sibling.
func (e *Engine) RunAll(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, len(inputs))
	_ = traverse.Each(len(inputs), func(i int) error {
		results[i] = e.Configure(ctx, inputs[i])
		return nil
	})
	return results
}
