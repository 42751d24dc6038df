package fastq

import (
	"context"
	"math/rand"
	"path/filepath"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
)

const (
	// SampleSize is the number of read pairs drawn for configuration
	// probing.
	SampleSize = 200000

	// sampleSeed fixes the subsample draw so that repeated runs pick the
	// same pairs and R1/R2 stay joined.
	sampleSeed = 1

	// chunkPairs caps how many leading pairs are pulled from each input
	// file into the sampling pool.
	chunkPairs = SampleSize
)

// LengthStats summarizes the sequence lengths observed in one mate of
// the subsample.
type LengthStats struct {
	// Mean is the mean sequence length.
	Mean float64
	// Distinct is the number of distinct sequence lengths.
	Distinct int

	seen map[int]bool
}

// Uniform reports whether a single read length was observed.
func (s LengthStats) Uniform() bool { return s.Distinct <= 1 }

// A Sample is the materialized subsample for one configuration pass.
// R1Path and R2Path are scratch FASTQ files that the caller must
// remove when the pass completes.
type Sample struct {
	// N is the number of pairs drawn.
	N int
	// R1Path and R2Path hold the subsampled mates, uncompressed.
	R1Path, R2Path string
	// Pairs is the drawn subsample, in draw order.
	Pairs []Pair
	// R1Stats and R2Stats are length statistics over the subsample.
	R1Stats, R2Stats LengthStats
}

// Barcodes returns the R1 sequences of the subsample.
func (s *Sample) Barcodes() []string {
	seqs := make([]string, len(s.Pairs))
	for i := range s.Pairs {
		seqs[i] = s.Pairs[i].R1.Seq
	}
	return seqs
}

// readChunk reads up to maxPairs leading pairs from one R1/R2 file
// pair.
func readChunk(ctx context.Context, r1Path, r2Path string, maxPairs int) ([]Pair, error) {
	r1, close1, err := open(ctx, r1Path)
	if err != nil {
		return nil, err
	}
	defer close1() // nolint: errcheck
	r2, close2, err := open(ctx, r2Path)
	if err != nil {
		return nil, err
	}
	defer close2() // nolint: errcheck

	sc := NewPairScanner(r1, r2)
	var pairs []Pair
	for len(pairs) < maxPairs {
		var p Pair
		if !sc.Scan(&p) {
			break
		}
		pairs = append(pairs, p)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s, %s", r1Path, r2Path)
	}
	return pairs, nil
}

// SamplePairs draws a uniform subsample of up to n read pairs from the
// positionally paired r1Paths/r2Paths file lists and writes the two
// mates to scratch FASTQ files under outDir. The leading chunk of each
// file is read concurrently; the draw itself uses a fixed seed so the
// subsample is reproducible. Inputs with fewer than n pairs yield the
// whole input. An input with no pairs at all yields ErrNoReads.
func SamplePairs(ctx context.Context, r1Paths, r2Paths []string, n int, outDir string) (*Sample, error) {
	if len(r1Paths) != len(r2Paths) {
		return nil, errors.Errorf("R1 and R2 file counts differ: %d vs %d", len(r1Paths), len(r2Paths))
	}
	chunks := make([][]Pair, len(r1Paths))
	err := traverse.Each(len(r1Paths), func(i int) error {
		var err error
		chunks[i], err = readChunk(ctx, r1Paths[i], r2Paths[i], chunkPairs)
		return err
	})
	if err != nil {
		return nil, err
	}
	var pool []Pair
	for _, c := range chunks {
		pool = append(pool, c...)
	}
	if len(pool) == 0 {
		return nil, ErrNoReads
	}

	pairs := drawPairs(pool, n)
	log.Printf("subsampled %d of %d read pairs", len(pairs), len(pool))

	s := &Sample{
		N:      len(pairs),
		R1Path: filepath.Join(outDir, "sample_R1.fastq"),
		R2Path: filepath.Join(outDir, "sample_R2.fastq"),
		Pairs:  pairs,
	}
	for _, p := range pairs {
		s.R1Stats.observeRaw(len(p.R1.Seq))
		s.R2Stats.observeRaw(len(p.R2.Seq))
	}
	s.R1Stats.finish(len(pairs))
	s.R2Stats.finish(len(pairs))

	if err := writePairs(ctx, pairs, s.R1Path, s.R2Path); err != nil {
		return nil, err
	}
	return s, nil
}

// drawPairs reservoir-samples n pairs from pool. A single random
// source makes one keep/replace decision per pair, so the two mates of
// a pair always survive or drop together.
func drawPairs(pool []Pair, n int) []Pair {
	if len(pool) <= n {
		out := make([]Pair, len(pool))
		copy(out, pool)
		return out
	}
	random := rand.New(rand.NewSource(sampleSeed))
	reservoir := make([]Pair, n)
	copy(reservoir, pool[:n])
	for i := n; i < len(pool); i++ {
		if j := random.Intn(i + 1); j < n {
			reservoir[j] = pool[i]
		}
	}
	return reservoir
}

// lengthStats accumulation. observeRaw records one length; finish
// converts the running sum into the mean.

func (s *LengthStats) observeRaw(n int) {
	if s.seen == nil {
		s.seen = map[int]bool{}
	}
	if !s.seen[n] {
		s.seen[n] = true
		s.Distinct = len(s.seen)
	}
	s.Mean += float64(n)
}

func (s *LengthStats) finish(n int) {
	if n > 0 {
		s.Mean /= float64(n)
	}
	s.seen = nil
}
