package fastq_test

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/scrnapipe/soloconf/fastq"
)

const record = "@r1\nACGT\n+\nFFFF\n"

func TestScanner(t *testing.T) {
	sc := fastq.NewScanner(strings.NewReader(record + record))
	var r fastq.Read
	n := 0
	for sc.Scan(&r) {
		expect.EQ(t, r.ID, "@r1")
		expect.EQ(t, r.Seq, "ACGT")
		expect.EQ(t, r.Plus, "+")
		expect.EQ(t, r.Qual, "FFFF")
		n++
	}
	expect.NoError(t, sc.Err())
	expect.EQ(t, n, 2)
}

func TestScannerInvalid(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"r1\nACGT\n+\nFFFF\n", fastq.ErrInvalid},  // ID missing @
		{"@r1\nACGT\nX\nFFFF\n", fastq.ErrInvalid}, // separator missing +
		{"@r1\nACGT\n+\n", fastq.ErrShort},         // truncated record
	}
	for _, test := range tests {
		sc := fastq.NewScanner(strings.NewReader(test.input))
		var r fastq.Read
		expect.False(t, sc.Scan(&r))
		expect.EQ(t, sc.Err(), test.err)
	}
}

func TestPairScannerDiscordant(t *testing.T) {
	sc := fastq.NewPairScanner(
		strings.NewReader(record+record),
		strings.NewReader(record))
	var p fastq.Pair
	for sc.Scan(&p) {
	}
	expect.EQ(t, sc.Err(), fastq.ErrDiscordant)
}
