package fastq

import (
	"bufio"
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

var newline = []byte{'\n'}

// Writer writes FASTQ records to an underlying stream. Errors are
// sticky; the first one is returned from every subsequent Write.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r as one four-line FASTQ record.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Plus)
	w.writeln(r.Qual)
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}

// writePairs writes the two mates of pairs to r1Path and r2Path as
// plain (uncompressed) FASTQ.
func writePairs(ctx context.Context, pairs []Pair, r1Path, r2Path string) error {
	out1, err := file.Create(ctx, r1Path)
	if err != nil {
		return err
	}
	out2, err := file.Create(ctx, r2Path)
	if err != nil {
		_ = out1.Close(ctx)
		return err
	}
	b1 := bufio.NewWriter(out1.Writer(ctx))
	b2 := bufio.NewWriter(out2.Writer(ctx))
	w1 := NewWriter(b1)
	w2 := NewWriter(b2)
	once := errors.Once{}
	for i := range pairs {
		once.Set(w1.Write(&pairs[i].R1))
		once.Set(w2.Write(&pairs[i].R2))
	}
	once.Set(b1.Flush())
	once.Set(b2.Flush())
	once.Set(out1.Close(ctx))
	once.Set(out2.Close(ctx))
	return once.Err()
}
