// Package gtf selects the gene-model filter list for the reference
// build: it keeps annotation records whose gene biotype belongs to an
// accepted set and passes everything else through untouched.
package gtf

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	pkgerrors "github.com/pkg/errors"
)

// DefaultBiotypes is the accepted gene-model filter list: the
// biotypes retained when building the quantification reference.
var DefaultBiotypes = []string{
	"protein_coding",
	"lncRNA",
	"lincRNA",
	"antisense",
	"IG_C_gene", "IG_D_gene", "IG_J_gene", "IG_V_gene",
	"IG_LV_gene",
	"TR_C_gene", "TR_D_gene", "TR_J_gene", "TR_V_gene",
}

// biotype extracts the gene biotype from a GTF attribute column.
// GENCODE spells the key gene_type; Ensembl spells it gene_biotype.
func biotype(attrs string) string {
	for _, field := range strings.Split(strings.TrimSpace(attrs), ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		pair := strings.SplitN(field, " ", 2)
		if len(pair) != 2 {
			continue
		}
		if pair[0] == "gene_type" || pair[0] == "gene_biotype" {
			return strings.Trim(pair[1], "\"")
		}
	}
	return ""
}

// FilterAnnotation streams the (possibly gzipped) GTF at inPath to
// outPath, keeping header lines and records whose gene biotype is in
// biotypes. Records carrying no biotype attribute at all are kept:
// only a recognized, excluded biotype drops a record. Returns counts
// of kept and dropped records.
func FilterAnnotation(ctx context.Context, inPath, outPath string, biotypes []string) (kept, dropped int, err error) {
	accept := make(map[string]bool, len(biotypes))
	for _, b := range biotypes {
		accept[b] = true
	}

	in, err := file.Open(ctx, inPath)
	if err != nil {
		return 0, 0, err
	}
	defer in.Close(ctx) // nolint: errcheck
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}

	out, err := file.Create(ctx, outPath)
	if err != nil {
		return 0, 0, err
	}
	w := bufio.NewWriter(out.Writer(ctx))

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	once := errors.Once{}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			writeLine(&once, w, line)
			continue
		}
		cols := strings.SplitN(line, "\t", 9)
		if len(cols) < 9 {
			_ = out.Close(ctx)
			return 0, 0, pkgerrors.Errorf("%s: malformed GTF line: %q", inPath, line)
		}
		if bt := biotype(cols[8]); bt != "" && !accept[bt] {
			dropped++
			continue
		}
		kept++
		writeLine(&once, w, line)
	}
	once.Set(scanner.Err())
	once.Set(w.Flush())
	once.Set(out.Close(ctx))
	if err := once.Err(); err != nil {
		return 0, 0, err
	}
	log.Printf("filtered %s: kept %d records, dropped %d", inPath, kept, dropped)
	return kept, dropped, nil
}

func writeLine(once *errors.Once, w *bufio.Writer, line string) {
	_, err := w.WriteString(line)
	once.Set(err)
	once.Set(w.WriteByte('\n'))
}
