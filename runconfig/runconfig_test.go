package runconfig_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/scrnapipe/soloconf/chemistry"
	"github.com/scrnapipe/soloconf/runconfig"
	"github.com/scrnapipe/soloconf/strand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v3Resolution() chemistry.Resolution {
	return chemistry.Resolution{
		Profile: chemistry.Profile{Name: "v3", Whitelist: "3M-february-2018", CBLen: 16, UMILen: 12},
	}
}

func TestBuildDetectsGzip(t *testing.T) {
	d := strand.Decision{Orientation: strand.Reverse, PercentForward: 30, PercentReverse: 70}
	cfg := runconfig.Build("s1", v3Resolution(), d, "/wl/3M.txt",
		[]string{"a_R1.fastq.gz"}, []string{"a_R2.fastq.gz"})
	assert.True(t, cfg.Gzip)

	cfg = runconfig.Build("s1", v3Resolution(), d, "/wl/3M.txt",
		[]string{"a_R1.fastq"}, []string{"a_R2.fastq"})
	assert.False(t, cfg.Gzip)
}

func argValue(t *testing.T, args []string, flag string) []string {
	for i, a := range args {
		if a != flag {
			continue
		}
		var vals []string
		for _, v := range args[i+1:] {
			if strings.HasPrefix(v, "--") {
				break
			}
			vals = append(vals, v)
		}
		return vals
	}
	t.Fatalf("flag %s not in %v", flag, args)
	return nil
}

func TestAlignArgsSingleEnd(t *testing.T) {
	d := strand.Decision{Orientation: strand.Reverse, PercentForward: 30, PercentReverse: 70}
	cfg := runconfig.Build("s1", v3Resolution(), d, "/wl/3M.txt",
		[]string{"a_R1.fastq.gz", "b_R1.fastq.gz"}, []string{"a_R2.fastq.gz", "b_R2.fastq.gz"})
	args := cfg.AlignArgs([]string{"--genomeDir", "idx"}, "out/", 0)

	// Single-end layout: biological mate leads, zero barcode-read
	// length check.
	require.Equal(t, []string{"a_R2.fastq.gz,b_R2.fastq.gz", "a_R1.fastq.gz,b_R1.fastq.gz"},
		argValue(t, args, "--readFilesIn"))
	require.Equal(t, []string{"0"}, argValue(t, args, "--soloBarcodeReadLength"))
	require.Equal(t, []string{"16"}, argValue(t, args, "--soloCBlen"))
	require.Equal(t, []string{"17"}, argValue(t, args, "--soloUMIstart"))
	require.Equal(t, []string{"12"}, argValue(t, args, "--soloUMIlen"))
	require.Equal(t, []string{"Reverse"}, argValue(t, args, "--soloStrand"))
	require.Equal(t, []string{"zcat"}, argValue(t, args, "--readFilesCommand"))
	assert.NotContains(t, args, "--clip5pNbases")
	assert.NotContains(t, args, "--soloBarcodeMate")
}

func TestAlignArgsPaired(t *testing.T) {
	d := strand.Decision{Orientation: strand.Reverse, PercentForward: 30, PercentReverse: 70, Paired: true}
	cfg := runconfig.Build("s1", v3Resolution(), d, "/wl/3M.txt",
		[]string{"a_R1.fastq"}, []string{"a_R2.fastq"})
	args := cfg.AlignArgs(nil, "out/", 1<<30)

	// Paired layout: both mates in natural order, fixed 39-base clip
	// on read 1.
	require.Equal(t, []string{"a_R1.fastq", "a_R2.fastq"}, argValue(t, args, "--readFilesIn"))
	require.Equal(t, []string{"39", "0"}, argValue(t, args, "--clip5pNbases"))
	require.Equal(t, []string{"1"}, argValue(t, args, "--soloBarcodeMate"))
	require.Equal(t, []string{"1073741824"}, argValue(t, args, "--limitBAMsortRAM"))
	assert.NotContains(t, args, "--readFilesCommand")
	assert.NotContains(t, args, "--soloBarcodeReadLength")
}

func TestProvenanceRoundTrip(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	d := strand.Decision{Orientation: strand.Forward, PercentForward: 71.25, PercentReverse: 28.4375}
	cfg := runconfig.Build("sampleA", v3Resolution(), d, "/wl/3M.txt",
		[]string{"a_R1.fastq.gz", "b_R1.fastq.gz"}, []string{"a_R2.fastq.gz", "b_R2.fastq.gz"})

	table := &runconfig.Table{Path: filepath.Join(tmp, "run_config.csv")}
	require.NoError(t, table.Append(cfg.Row()))

	rows, err := table.Read()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, cfg.Row(), rows[0])
}

func TestProvenanceAppendOnly(t *testing.T) {
	tmp, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	table := &runconfig.Table{Path: filepath.Join(tmp, "run_config.csv")}
	d1 := strand.Decision{Orientation: strand.Forward, PercentForward: 70, PercentReverse: 30}
	d2 := strand.Decision{Orientation: strand.Reverse, PercentForward: 30, PercentReverse: 70}
	cfg1 := runconfig.Build("s1", v3Resolution(), d1, "/wl/3M.txt", []string{"r1"}, []string{"r2"})
	cfg2 := runconfig.Build("s2", v3Resolution(), d2, "/wl/3M.txt", []string{"r1"}, []string{"r2"})

	require.NoError(t, table.Append(cfg1.Row()))
	require.NoError(t, table.Append(cfg2.Row()))

	rows, err := table.Read()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "s1", rows[0].Sample)
	assert.Equal(t, "s2", rows[1].Sample)
	assert.Equal(t, strand.Reverse, rows[1].Strand)
}
