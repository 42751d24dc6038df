package gtf_test

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/scrnapipe/soloconf/gtf"
)

func gtfLine(biotype string) string {
	attrs := `gene_id "G1"; gene_name "X";`
	if biotype != "" {
		attrs = `gene_id "G1"; gene_type "` + biotype + `"; gene_name "X";`
	}
	return strings.Join([]string{
		"chr1", "HAVANA", "gene", "100", "200", ".", "+", ".", attrs,
	}, "\t")
}

func TestFilterAnnotation(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	in := filepath.Join(tmp, "in.gtf")
	out := filepath.Join(tmp, "out.gtf")
	lines := []string{
		"##description: test annotation",
		gtfLine("protein_coding"),
		gtfLine("lncRNA"),
		gtfLine("pseudogene"),
		gtfLine("snoRNA"),
		gtfLine(""), // no biotype attribute at all: kept
	}
	assert.NoError(t, ioutil.WriteFile(in, []byte(strings.Join(lines, "\n")+"\n"), 0600))

	kept, dropped, err := gtf.FilterAnnotation(ctx, in, out, gtf.DefaultBiotypes)
	assert.NoError(t, err)
	expect.EQ(t, kept, 3)
	expect.EQ(t, dropped, 2)

	data, err := ioutil.ReadFile(out)
	assert.NoError(t, err)
	got := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	expect.EQ(t, len(got), 4) // header + 3 records
	expect.EQ(t, got[0], "##description: test annotation")
	for _, line := range got[1:] {
		expect.False(t, strings.Contains(line, "pseudogene"))
		expect.False(t, strings.Contains(line, "snoRNA"))
	}
}

func TestFilterAnnotationEnsemblKey(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	in := filepath.Join(tmp, "in.gtf")
	out := filepath.Join(tmp, "out.gtf")
	line := "1\tensembl\tgene\t1\t2\t.\t+\t.\t" + `gene_id "G2"; gene_biotype "miRNA";`
	assert.NoError(t, ioutil.WriteFile(in, []byte(line+"\n"), 0600))

	kept, dropped, err := gtf.FilterAnnotation(ctx, in, out, gtf.DefaultBiotypes)
	assert.NoError(t, err)
	expect.EQ(t, kept, 0)
	expect.EQ(t, dropped, 1)
}

func TestFilterAnnotationMalformed(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	in := filepath.Join(tmp, "in.gtf")
	out := filepath.Join(tmp, "out.gtf")
	assert.NoError(t, ioutil.WriteFile(in, []byte("chr1\tonly\tthree\n"), 0600))

	_, _, err := gtf.FilterAnnotation(ctx, in, out, gtf.DefaultBiotypes)
	expect.True(t, err != nil)
}
