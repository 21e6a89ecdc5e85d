package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/supabase-csv/internal/config"
	"github.com/bmatcuk/doublestar/v4"
)

// BatchPlan lists the exports a batch run converts, relative to Dir.
// Files are converted in order; Optional files are appended only if they
// exist. Entries containing glob metacharacters are expanded (** allowed).
type BatchPlan struct {
	Dir      string
	Files    []string
	Optional []string
}

// PlanFromManifest converts a loaded manifest into a BatchPlan.
func PlanFromManifest(m *config.Manifest) BatchPlan {
	return BatchPlan{
		Dir:      m.Dir,
		Files:    append([]string(nil), m.Files...),
		Optional: append([]string(nil), m.Optional...),
	}
}

// FileOutcome records what happened to one file of a batch.
type FileOutcome struct {
	Name   string
	Result Result
	Err    error
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Converted []FileOutcome
	Failed    []FileOutcome
	Missing   []string
	TotalRows int

	// Outputs lists every converted file present in Dir after the run.
	Outputs []string
}

// RunBatch converts every file in plan. Missing files are logged and
// skipped. A failing file does not stop the batch; the returned error joins
// every per-file failure and is nil when all present files converted.
func (t *Transcoder) RunBatch(plan BatchPlan) (BatchResult, error) {
	var res BatchResult

	names := append([]string(nil), plan.Files...)
	for _, name := range plan.Optional {
		if fileExists(filepath.Join(plan.Dir, name)) {
			names = append(names, name)
			continue
		}
		t.logger.Warn("optional export not found, export it from Lovable first", "file", name)
		res.Missing = append(res.Missing, name)
	}

	names, err := t.expandPatterns(plan.Dir, names)
	if err != nil {
		return res, err
	}

	var errs []error
	for _, name := range names {
		path := filepath.Join(plan.Dir, name)
		if !fileExists(path) {
			t.logger.Warn("export not found, skipping", "file", name)
			res.Missing = append(res.Missing, name)
			continue
		}

		r, err := t.ConvertFile(path, "")
		if err != nil {
			t.logger.Error("conversion failed", "file", name, "error", err)
			res.Failed = append(res.Failed, FileOutcome{Name: name, Result: r, Err: err})
			errs = append(errs, err)
			continue
		}

		res.Converted = append(res.Converted, FileOutcome{Name: name, Result: r})
		res.TotalRows += r.Rows
	}

	outputs, err := ListOutputs(plan.Dir)
	if err != nil {
		errs = append(errs, err)
	}
	res.Outputs = outputs

	t.logger.Info("batch complete",
		"converted", len(res.Converted),
		"failed", len(res.Failed),
		"missing", len(res.Missing),
		"rows", res.TotalRows,
	)

	return res, errors.Join(errs...)
}

// expandPatterns replaces glob entries with their matches. Literal names are
// kept as-is so missing ones can be reported. Converted outputs never match
// a pattern, and no file is listed twice.
func (t *Transcoder) expandPatterns(dir string, names []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))

	add := func(name string) {
		key := filepath.ToSlash(filepath.Clean(name))
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	for _, name := range names {
		if !isGlob(name) {
			add(name)
			continue
		}

		matches, err := doublestar.Glob(fsys, filepath.ToSlash(name), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", name, err)
		}
		sort.Strings(matches)

		n := 0
		for _, m := range matches {
			if strings.HasSuffix(m, config.OutputSuffix) {
				continue
			}
			add(filepath.FromSlash(m))
			n++
		}
		if n == 0 {
			t.logger.Warn("pattern matched no exports", "pattern", name)
		}
	}

	return out, nil
}

// ListOutputs returns the converted files directly inside dir, sorted.
func ListOutputs(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "*"+config.OutputSuffix, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list outputs in %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func isGlob(name string) bool {
	return strings.ContainsAny(name, "*?[{")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
