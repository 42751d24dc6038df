package fastq_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/scrnapipe/soloconf/fastq"
)

// writePairFiles writes n read pairs to R1/R2 FASTQ files, gzipped
// when the paths end in .gz. Read i carries "r<i>" in both IDs so
// pairing can be checked after a draw.
func writePairFiles(t *testing.T, r1Path, r2Path string, start, n, r1Len, r2Len int) {
	writeOne := func(path, mate string, seqLen int) {
		buf := bytes.Buffer{}
		for i := start; i < start+n; i++ {
			fmt.Fprintf(&buf, "@r%d/%s\n%s\n+\n%s\n", i, mate,
				strings.Repeat("A", seqLen), strings.Repeat("F", seqLen))
		}
		data := buf.Bytes()
		if strings.HasSuffix(path, ".gz") {
			gzBuf := bytes.Buffer{}
			gz := gzip.NewWriter(&gzBuf)
			_, err := gz.Write(data)
			assert.NoError(t, err)
			assert.NoError(t, gz.Close())
			data = gzBuf.Bytes()
		}
		assert.NoError(t, ioutil.WriteFile(path, data, 0600))
	}
	writeOne(r1Path, "1", r1Len)
	writeOne(r2Path, "2", r2Len)
}

func scanFile(t *testing.T, path string) []fastq.Read {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	sc := fastq.NewScanner(f)
	var reads []fastq.Read
	var r fastq.Read
	for sc.Scan(&r) {
		reads = append(reads, r)
	}
	assert.NoError(t, sc.Err())
	return reads
}

func TestSampleExactSize(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	r1 := filepath.Join(tmp, "in_R1.fastq")
	r2 := filepath.Join(tmp, "in_R2.fastq")
	writePairFiles(t, r1, r2, 0, 500, 28, 90)

	s, err := fastq.SamplePairs(ctx, []string{r1}, []string{r2}, 100, tmp)
	assert.NoError(t, err)
	expect.EQ(t, s.N, 100)
	expect.EQ(t, len(s.Pairs), 100)
	expect.EQ(t, s.R1Stats.Mean, 28.0)
	expect.EQ(t, s.R1Stats.Distinct, 1)
	expect.True(t, s.R1Stats.Uniform())
	expect.EQ(t, s.R2Stats.Mean, 90.0)
}

func TestSamplePairingPreserved(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	r1 := filepath.Join(tmp, "in_R1.fastq")
	r2 := filepath.Join(tmp, "in_R2.fastq")
	writePairFiles(t, r1, r2, 0, 1000, 28, 90)

	s, err := fastq.SamplePairs(ctx, []string{r1}, []string{r2}, 200, tmp)
	assert.NoError(t, err)

	out1 := scanFile(t, s.R1Path)
	out2 := scanFile(t, s.R2Path)
	assert.EQ(t, len(out1), 200)
	assert.EQ(t, len(out2), 200)
	for i := range out1 {
		id1 := strings.TrimSuffix(out1[i].ID, "/1")
		id2 := strings.TrimSuffix(out2[i].ID, "/2")
		expect.EQ(t, id1, id2)
	}
}

func TestSampleSmallInput(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	r1 := filepath.Join(tmp, "in_R1.fastq")
	r2 := filepath.Join(tmp, "in_R2.fastq")
	writePairFiles(t, r1, r2, 0, 7, 28, 90)

	s, err := fastq.SamplePairs(ctx, []string{r1}, []string{r2}, 100, tmp)
	assert.NoError(t, err)
	expect.EQ(t, s.N, 7)
}

func TestSampleEmptyInput(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	r1 := filepath.Join(tmp, "in_R1.fastq")
	r2 := filepath.Join(tmp, "in_R2.fastq")
	assert.NoError(t, ioutil.WriteFile(r1, nil, 0600))
	assert.NoError(t, ioutil.WriteFile(r2, nil, 0600))

	_, err := fastq.SamplePairs(ctx, []string{r1}, []string{r2}, 100, tmp)
	expect.EQ(t, err, fastq.ErrNoReads)
}

func TestSampleMultiFileGzip(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	r1a := filepath.Join(tmp, "a_R1.fastq.gz")
	r2a := filepath.Join(tmp, "a_R2.fastq.gz")
	r1b := filepath.Join(tmp, "b_R1.fastq.gz")
	r2b := filepath.Join(tmp, "b_R2.fastq.gz")
	writePairFiles(t, r1a, r2a, 0, 30, 28, 90)
	writePairFiles(t, r1b, r2b, 30, 40, 28, 90)

	s, err := fastq.SamplePairs(ctx, []string{r1a, r1b}, []string{r2a, r2b}, 1000, tmp)
	assert.NoError(t, err)
	expect.EQ(t, s.N, 70)
}

func TestSampleDeterministic(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	r1 := filepath.Join(tmp, "in_R1.fastq")
	r2 := filepath.Join(tmp, "in_R2.fastq")
	writePairFiles(t, r1, r2, 0, 2000, 28, 90)

	dirA := filepath.Join(tmp, "a")
	dirB := filepath.Join(tmp, "b")
	assert.NoError(t, os.Mkdir(dirA, 0700))
	assert.NoError(t, os.Mkdir(dirB, 0700))

	sa, err := fastq.SamplePairs(ctx, []string{r1}, []string{r2}, 100, dirA)
	assert.NoError(t, err)
	sb, err := fastq.SamplePairs(ctx, []string{r1}, []string{r2}, 100, dirB)
	assert.NoError(t, err)
	for i := range sa.Pairs {
		expect.EQ(t, sa.Pairs[i].R1.ID, sb.Pairs[i].R1.ID)
	}
}

func TestSampleMismatchedFileCounts(t *testing.T) {
	ctx := context.Background()
	_, err := fastq.SamplePairs(ctx, []string{"a", "b"}, []string{"c"}, 10, "")
	expect.True(t, err != nil)
}
