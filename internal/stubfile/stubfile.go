// Package stubfile maps synthesized trees onto an output directory:
// file naming, comparison against what is on disk, and writing.
package stubfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/roach88/rbisynth/internal/introspect"
)

// Ext is the stub file extension.
const Ext = ".rbi"

// File is one stub file. Path is slash-separated and relative to the
// output directory.
type File struct {
	Path    string
	Content string
}

// DSLPath names the file for a DSL stub: each name segment underscored,
// joined as directories. Post::Comment becomes post/comment.rbi.
func DSLPath(name string) string {
	segs := strings.Split(name, "::")
	for i, s := range segs {
		segs[i] = Underscore(s)
	}
	return strings.Join(segs, "/") + Ext
}

// GemPath names the file for a package stub, e.g. rake@13.0.6.rbi.
func GemPath(pkg introspect.Package) string {
	return pkg.String() + Ext
}

// Underscore converts a CamelCase segment to snake_case. Acronyms stay
// together: HTMLParser becomes html_parser.
func Underscore(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) && i > 0 {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Diff lists paths relative to the output directory.
type Diff struct {
	Added   []string `json:"added,omitempty"`
	Changed []string `json:"changed,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether the directory already matches.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// Compare reports how files differ from the contents of dir. With prune,
// every stub file in dir that neither files nor keep names counts as
// removed. A missing dir compares as empty.
func Compare(dir string, files []File, prune bool, keep ...string) (Diff, error) {
	var d Diff
	want := make(map[string]struct{}, len(files)+len(keep))
	for _, p := range keep {
		want[p] = struct{}{}
	}
	for _, f := range files {
		want[f.Path] = struct{}{}
		existing, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f.Path)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			d.Added = append(d.Added, f.Path)
		case err != nil:
			return Diff{}, fmt.Errorf("reading %s: %w", f.Path, err)
		case string(existing) != f.Content:
			d.Changed = append(d.Changed, f.Path)
		}
	}

	if prune {
		existing, err := List(dir)
		if err != nil {
			return Diff{}, err
		}
		for _, p := range existing {
			if _, ok := want[p]; !ok {
				d.Removed = append(d.Removed, p)
			}
		}
	}

	slices.Sort(d.Added)
	slices.Sort(d.Changed)
	slices.Sort(d.Removed)
	return d, nil
}

// List returns every stub file under dir, sorted.
func List(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if de.IsDir() || filepath.Ext(path) != Ext {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	slices.Sort(out)
	return out, nil
}

// Write brings dir in line with files and returns what it changed.
// Unchanged files are not rewritten. With prune, stale stub files are
// deleted, except the paths in keep.
func Write(dir string, files []File, prune bool, keep ...string) (Diff, error) {
	d, err := Compare(dir, files, prune, keep...)
	if err != nil {
		return Diff{}, err
	}

	dirty := make(map[string]struct{}, len(d.Added)+len(d.Changed))
	for _, p := range d.Added {
		dirty[p] = struct{}{}
	}
	for _, p := range d.Changed {
		dirty[p] = struct{}{}
	}

	for _, f := range files {
		if _, ok := dirty[f.Path]; !ok {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return Diff{}, fmt.Errorf("creating directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
			return Diff{}, fmt.Errorf("writing %s: %w", f.Path, err)
		}
	}

	for _, p := range d.Removed {
		if err := os.Remove(filepath.Join(dir, filepath.FromSlash(p))); err != nil {
			return Diff{}, fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return d, nil
}
