// Package whitelist loads droplet barcode whitelists and scores
// subsampled barcode reads against them by exact prefix membership.
package whitelist

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
)

// A List is one named barcode whitelist. Barcodes are stored truncated
// to PrefixLen, which is also the prefix of each subsampled read that
// is tested for membership.
type List struct {
	// Name identifies the whitelist in match counts and provenance.
	Name string
	// Path is the whitelist file, one barcode per line, optionally
	// gzip-compressed.
	Path string
	// PrefixLen is the match length in nucleotides (14 or 16).
	PrefixLen int

	once     sync.Once
	loadErr  error
	prefixes map[string]struct{}
}

// Load reads the whitelist into memory. Load is idempotent; repeated
// calls return the first result.
func (l *List) Load(ctx context.Context) error {
	l.once.Do(func() { l.loadErr = l.load(ctx) })
	return l.loadErr
}

func (l *List) load(ctx context.Context) error {
	in, err := file.Open(ctx, l.Path)
	if err != nil {
		return errors.Wrapf(err, "whitelist %s", l.Name)
	}
	defer in.Close(ctx) // nolint: errcheck
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	scanner := bufio.NewScanner(r)
	l.prefixes = make(map[string]struct{})
	for scanner.Scan() {
		bc := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if bc == "" {
			continue
		}
		if len(bc) > l.PrefixLen {
			bc = bc[:l.PrefixLen]
		}
		l.prefixes[bc] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "whitelist %s", l.Name)
	}
	if len(l.prefixes) == 0 {
		return errors.Errorf("whitelist %s: no barcodes in %s", l.Name, l.Path)
	}
	log.Debug.Printf("whitelist %s: %d barcode prefixes (len %d)", l.Name, len(l.prefixes), l.PrefixLen)
	return nil
}

// Match counts how many sequences, truncated to the list's prefix
// length, appear verbatim in the whitelist. Sequences shorter than the
// prefix length never match.
func (l *List) Match(seqs []string) int {
	n := 0
	for _, s := range seqs {
		if len(s) < l.PrefixLen {
			continue
		}
		if _, ok := l.prefixes[s[:l.PrefixLen]]; ok {
			n++
		}
	}
	return n
}

// A Registry holds the known whitelists for one whitelist directory.
type Registry struct {
	Lists []*List
}

var knownLists = []struct {
	name      string
	file      string
	prefixLen int
}{
	{"3M-february-2018", "3M-february-2018.txt", 16},
	{"737K-august-2016", "737K-august-2016.txt", 16},
	{"737K-arc-v1", "737K-arc-v1.txt", 16},
	{"737K-april-2014", "737K-april-2014_rc.txt", 14},
	{"3M-3pgex-may-2023", "3M-3pgex-may-2023.txt", 16},
	{"3M-5pgex-jan-2023", "3M-5pgex-jan-2023.txt", 16},
}

// DefaultRegistry returns the registry of known whitelists rooted at
// dir. Each whitelist may be present either plain or with a ".gz"
// suffix; the compressed variant is used when the plain file is
// absent.
func DefaultRegistry(ctx context.Context, dir string) *Registry {
	r := &Registry{}
	for _, k := range knownLists {
		path := filepath.Join(dir, k.file)
		if _, err := file.Stat(ctx, path); err != nil {
			if _, gzErr := file.Stat(ctx, path+".gz"); gzErr == nil {
				path = path + ".gz"
			}
		}
		r.Lists = append(r.Lists, &List{Name: k.name, Path: path, PrefixLen: k.prefixLen})
	}
	return r
}

// Lookup returns the list with the given name, or nil.
func (r *Registry) Lookup(name string) *List {
	for _, l := range r.Lists {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// MatchCounts loads every whitelist and scores seqs against each,
// returning name -> match count. Lists are loaded and scored
// concurrently; the result is independent of that ordering.
func (r *Registry) MatchCounts(ctx context.Context, seqs []string) (map[string]int, error) {
	counts := make([]int, len(r.Lists))
	err := traverse.Each(len(r.Lists), func(i int) error {
		l := r.Lists[i]
		if err := l.Load(ctx); err != nil {
			return err
		}
		counts[i] = l.Match(seqs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(r.Lists))
	for i, l := range r.Lists {
		out[l.Name] = counts[i]
	}
	return out, nil
}
