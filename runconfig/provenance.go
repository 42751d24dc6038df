package runconfig

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/scrnapipe/soloconf/strand"
)

// Columns is the provenance table header, in order.
var Columns = []string{
	"sample", "paired", "strand", "percent_forward", "percent_reverse",
	"cb_whitelist", "cb_length", "umi_length", "gzip", "read1_files", "read2_files",
}

// A Row is one provenance record. It holds exactly the fields that
// are persisted; serializing a Row and parsing it back reproduces it
// identically.
type Row struct {
	Sample                         string
	Paired                         bool
	Strand                         strand.Orientation
	PercentForward, PercentReverse float64
	Whitelist                      string
	CBLen, UMILen                  int
	Gzip                           bool
	Read1Files, Read2Files         []string
}

// Row derives the provenance record from a Config.
func (c *Config) Row() Row {
	return Row{
		Sample:         c.Sample,
		Paired:         c.Paired,
		Strand:         c.Strand,
		PercentForward: c.PercentForward,
		PercentReverse: c.PercentReverse,
		Whitelist:      c.Profile.Whitelist,
		CBLen:          c.Profile.CBLen,
		UMILen:         c.Profile.UMILen,
		Gzip:           c.Gzip,
		Read1Files:     c.Read1Files,
		Read2Files:     c.Read2Files,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (r Row) fields() []string {
	return []string{
		r.Sample,
		strconv.FormatBool(r.Paired),
		r.Strand.String(),
		formatFloat(r.PercentForward),
		formatFloat(r.PercentReverse),
		r.Whitelist,
		strconv.Itoa(r.CBLen),
		strconv.Itoa(r.UMILen),
		strconv.FormatBool(r.Gzip),
		strings.Join(r.Read1Files, ","),
		strings.Join(r.Read2Files, ","),
	}
}

func parseRow(rec []string) (Row, error) {
	if len(rec) != len(Columns) {
		return Row{}, errors.Errorf("provenance row has %d fields, want %d", len(rec), len(Columns))
	}
	var (
		r   Row
		err error
	)
	r.Sample = rec[0]
	if r.Paired, err = strconv.ParseBool(rec[1]); err != nil {
		return Row{}, errors.Wrap(err, "paired")
	}
	if r.Strand, err = strand.Parse(rec[2]); err != nil {
		return Row{}, err
	}
	if r.PercentForward, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return Row{}, errors.Wrap(err, "percent_forward")
	}
	if r.PercentReverse, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return Row{}, errors.Wrap(err, "percent_reverse")
	}
	r.Whitelist = rec[5]
	if r.CBLen, err = strconv.Atoi(rec[6]); err != nil {
		return Row{}, errors.Wrap(err, "cb_length")
	}
	if r.UMILen, err = strconv.Atoi(rec[7]); err != nil {
		return Row{}, errors.Wrap(err, "umi_length")
	}
	if r.Gzip, err = strconv.ParseBool(rec[8]); err != nil {
		return Row{}, errors.Wrap(err, "gzip")
	}
	if rec[9] != "" {
		r.Read1Files = strings.Split(rec[9], ",")
	}
	if rec[10] != "" {
		r.Read2Files = strings.Split(rec[10], ",")
	}
	return r, nil
}

// A Table is the append-only provenance file. One row is appended per
// configured sample; existing rows are never rewritten. Appends are
// serialized so concurrent sample passes do not interleave.
type Table struct {
	Path string

	mu sync.Mutex
}

// Append adds one row, writing the header first when the file is new
// or empty.
func (t *Table) Append(r Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(Columns); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Write(r.fields()); err != nil {
		_ = f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// FailedPath is the companion file recording failed samples, kept
// separate from configured runs.
func (t *Table) FailedPath() string { return t.Path + ".failed" }

// AppendFailure records one failed sample and the error that aborted
// its pass. Like Append, the file is append-only.
func (t *Table) AppendFailure(sample string, failure error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.FailedPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write([]string{"sample", "error"}); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Write([]string{sample, failure.Error()}); err != nil {
		_ = f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Read parses the full provenance table back into rows.
func (t *Table) Read() ([]Row, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck
	cr := csv.NewReader(f)
	first := true
	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", t.Path)
		}
		if first {
			first = false
			continue // header
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", t.Path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
