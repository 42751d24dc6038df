package star

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// readSummary parses a solo Summary.csv file: two columns, metric name
// and value. Non-numeric values are skipped; the aligner mixes counts,
// fractions, and the occasional "NA" in the same file.
func readSummary(path string) (map[string]float64, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close() // nolint: errcheck
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	out := map[string]float64{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		if len(rec) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		out[rec[0]] = v
	}
	return out, nil
}
