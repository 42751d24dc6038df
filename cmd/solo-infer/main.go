// solo-infer configures and optionally dispatches STARsolo alignment
// runs for single-cell RNA-seq samples with no metadata: chemistry,
// barcode/UMI layout, paired-end status, and strand orientation are
// all inferred from the reads themselves.
//
// Example 1: infer configuration for one sample and record it.
//
//    solo-infer --genome-dir=idx --whitelist-dir=wl --r1=s1_R1.fastq.gz --r2=s1_R2.fastq.gz --sample=s1
//
// Example 2: infer and run the full alignment.
//
//    solo-infer --genome-dir=idx --whitelist-dir=wl --sample-sheet=samples.tsv --dispatch
//
// Example 3: produce the filtered annotation for the reference build.
//
//    solo-infer --filter-gtf=gencode.gtf.gz --filtered-gtf=genes.filtered.gtf
package main

import (
	"bufio"
	"flag"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/scrnapipe/soloconf/gtf"
	"github.com/scrnapipe/soloconf/infer"
	"github.com/scrnapipe/soloconf/runconfig"
	"github.com/scrnapipe/soloconf/star"
	"github.com/scrnapipe/soloconf/whitelist"
)

type mainFlags struct {
	sample       string
	r1, r2       string
	sampleSheet  string
	genomeDir    string
	whitelistDir string
	workDir      string
	provenance   string
	starExe      string
	threads      int
	sortMemBytes int64
	dispatch     bool

	filterGTF   string
	filteredGTF string
}

// readSampleSheet parses a three-column TSV: sample name, then
// comma-separated R1 and R2 file lists.
func readSampleSheet(path string) ([]infer.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck
	var inputs []infer.Input
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) != 3 {
			log.Fatalf("%s: sample sheet line needs 3 columns: %q", path, line)
		}
		inputs = append(inputs, infer.Input{
			Sample: cols[0],
			Read1:  strings.Split(cols[1], ","),
			Read2:  strings.Split(cols[2], ","),
		})
	}
	return inputs, scanner.Err()
}

func main() {
	flags := mainFlags{}
	flag.StringVar(&flags.sample, "sample", "", "Sample name for single-sample mode.")
	flag.StringVar(&flags.r1, "r1", "", "Comma-separated list of barcode-read (R1) FASTQ files.")
	flag.StringVar(&flags.r2, "r2", "", "Comma-separated list of biological-read (R2) FASTQ files.")
	flag.StringVar(&flags.sampleSheet, "sample-sheet", "", "TSV of sample<TAB>r1,...<TAB>r2,... rows; overrides --sample/--r1/--r2.")
	flag.StringVar(&flags.genomeDir, "genome-dir", "", "Built genome index directory.")
	flag.StringVar(&flags.whitelistDir, "whitelist-dir", "", "Directory containing the known barcode whitelists.")
	flag.StringVar(&flags.workDir, "work-dir", ".", "Directory for per-sample outputs and scratch.")
	flag.StringVar(&flags.provenance, "provenance", "run_config.csv", "Provenance table; one row appended per configured sample.")
	flag.StringVar(&flags.starExe, "star", star.DefaultExe, "Aligner executable.")
	flag.IntVar(&flags.threads, "threads", 4, "Thread budget handed to the aligner.")
	flag.Int64Var(&flags.sortMemBytes, "sort-mem", 0, "BAM sort memory budget in bytes for dispatched runs (0: aligner default).")
	flag.BoolVar(&flags.dispatch, "dispatch", false, "Run the full alignment after configuration.")
	flag.StringVar(&flags.filterGTF, "filter-gtf", "", "Annotation GTF to filter for the reference build; runs the filter and exits.")
	flag.StringVar(&flags.filteredGTF, "filtered-gtf", "genes.filtered.gtf", "Output path for --filter-gtf.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if flags.filterGTF != "" {
		kept, dropped, err := gtf.FilterAnnotation(ctx, flags.filterGTF, flags.filteredGTF, gtf.DefaultBiotypes)
		if err != nil {
			log.Fatalf("filter %s: %v", flags.filterGTF, err)
		}
		log.Printf("wrote %s (%d kept, %d dropped)", flags.filteredGTF, kept, dropped)
		return
	}

	if flags.genomeDir == "" || flags.whitelistDir == "" {
		log.Fatal("--genome-dir and --whitelist-dir are required")
	}
	var inputs []infer.Input
	if flags.sampleSheet != "" {
		var err error
		if inputs, err = readSampleSheet(flags.sampleSheet); err != nil {
			log.Fatalf("read %s: %v", flags.sampleSheet, err)
		}
	} else {
		if flags.sample == "" || flags.r1 == "" || flags.r2 == "" {
			log.Fatal("--sample, --r1 and --r2 are required without --sample-sheet")
		}
		inputs = []infer.Input{{
			Sample: flags.sample,
			Read1:  strings.Split(flags.r1, ","),
			Read2:  strings.Split(flags.r2, ","),
		}}
	}
	for _, in := range inputs {
		if len(in.Read1) != len(in.Read2) {
			log.Fatalf("%s: R1 and R2 file counts differ: %v <-> %v", in.Sample, in.Read1, in.Read2)
		}
	}

	engine := &infer.Engine{
		Registry: whitelist.DefaultRegistry(ctx, flags.whitelistDir),
		Runner: &star.Runner{
			Exe:          flags.starExe,
			GenomeDir:    flags.genomeDir,
			Threads:      flags.threads,
			SortMemBytes: flags.sortMemBytes,
		},
		Table:    &runconfig.Table{Path: flags.provenance},
		WorkDir:  flags.workDir,
		Dispatch: flags.dispatch,
	}
	results := engine.RunAll(ctx, inputs)

	failed := 0
	for _, r := range results {
		if r.State == infer.Failed {
			failed++
			continue
		}
		log.Printf("%s: %s", r.Input.Sample, r.State)
	}
	if failed > 0 {
		log.Fatalf("%d of %d samples failed", failed, len(results))
	}
	log.Printf("All done")
}
