// Package fastq reads paired FASTQ inputs and draws the fixed-size
// subsamples used for chemistry and strand inference.
package fastq

import (
	"bufio"
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

var (
	// ErrShort is returned when a truncated FASTQ record is encountered.
	ErrShort = errors.New("short FASTQ record")
	// ErrInvalid is returned when a malformed FASTQ record is encountered.
	ErrInvalid = errors.New("invalid FASTQ record")
	// ErrDiscordant is returned when the R1 and R2 streams contain
	// different numbers of reads.
	ErrDiscordant = errors.New("discordant FASTQ pair files")
	// ErrNoReads is returned when the combined input contains no read
	// pairs at all.
	ErrNoReads = errors.New("no usable read pairs in input")
)

// A Read is one FASTQ record: ID line, sequence, separator line, and
// quality string.
type Read struct {
	ID, Seq, Plus, Qual string
}

// A Pair is one read pair. R1 is the barcode/UMI mate, R2 the
// biological mate.
type Pair struct {
	R1, R2 Read
}

var errEOF = errors.New("eof")

// Scanner reads FASTQ records from a single stream. The Scan method
// fills the next read, returning false at end of input or on error;
// Err distinguishes the two. Scanners are not threadsafe.
//
// Scanner requires ID lines to begin with "@" and separator lines to
// begin with "+" but performs no further validation.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a Scanner reading raw FASTQ data from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan reads the next record into read, reporting whether it
// succeeded. Once Scan returns false it never returns true again.
func (s *Scanner) Scan(read *Read) bool {
	if s.err != nil {
		return false
	}
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = errEOF
		}
		return false
	}
	id := s.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		s.err = ErrInvalid
		return false
	}
	read.ID = string(id)
	if !s.scanLine() {
		return false
	}
	read.Seq = s.b.Text()
	if !s.scanLine() {
		return false
	}
	plus := s.b.Bytes()
	if len(plus) == 0 || plus[0] != '+' {
		s.err = ErrInvalid
		return false
	}
	read.Plus = string(plus)
	if !s.scanLine() {
		return false
	}
	read.Qual = s.b.Text()
	return true
}

func (s *Scanner) scanLine() bool {
	ok := s.b.Scan()
	if !ok {
		if s.err = s.b.Err(); s.err == nil {
			s.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}

// PairScanner composes two Scanners to scan an R1/R2 stream pair in
// lockstep.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a PairScanner over the provided R1 and R2
// streams.
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{r1: NewScanner(r1), r2: NewScanner(r2)}
}

// Scan scans the next pair, reporting whether it succeeded. A stream
// ending before its mate is reported as ErrDiscordant through Err.
func (p *PairScanner) Scan(pair *Pair) bool {
	ok1 := p.r1.Scan(&pair.R1)
	ok2 := p.r2.Scan(&pair.R2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any. It should be checked after
// Scan returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}

// open opens path through base/file, transparently decompressing by
// path suffix. The returned closer closes both layers.
func open(ctx context.Context, path string) (io.Reader, func() error, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return r, func() error { return in.Close(ctx) }, nil
}
