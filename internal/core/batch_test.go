package core

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/JonMunkholm/supabase-csv/internal/config"
)

func outcomeNames(outcomes []FileOutcome) []string {
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		names = append(names, o.Name)
	}
	return names
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "contributors.csv", "id;name\n1;Ana\n2;Bo\n")
	writeFile(t, dir, "profiles.csv", "id,materials\n1,\"[\"\"PLA\"\"]\"\n")

	plan := BatchPlan{
		Dir:      dir,
		Files:    []string{"contributors.csv", "profiles.csv", "user_roles.csv"},
		Optional: []string{"parts.csv"},
	}

	res, err := testTranscoder(t).RunBatch(plan)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if got := outcomeNames(res.Converted); !slices.Equal(got, []string{"contributors.csv", "profiles.csv"}) {
		t.Errorf("Converted = %v", got)
	}
	if !slices.Equal(res.Missing, []string{"parts.csv", "user_roles.csv"}) {
		t.Errorf("Missing = %v", res.Missing)
	}
	if res.TotalRows != 3 {
		t.Errorf("TotalRows = %d, want 3", res.TotalRows)
	}
	if want := []string{"contributors_supabase.csv", "profiles_supabase.csv"}; !slices.Equal(res.Outputs, want) {
		t.Errorf("Outputs = %v, want %v", res.Outputs, want)
	}
}

func TestRunBatch_OptionalPresent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "profiles.csv", "id\n1\n")
	writeFile(t, dir, "parts.csv", "id;name\n1;wheel\n2;frame\n")

	plan := BatchPlan{
		Dir:      dir,
		Files:    []string{"profiles.csv"},
		Optional: []string{"parts.csv"},
	}

	res, err := testTranscoder(t).RunBatch(plan)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if got := outcomeNames(res.Converted); !slices.Equal(got, []string{"profiles.csv", "parts.csv"}) {
		t.Errorf("Converted = %v, want optional file last", got)
	}
	if len(res.Missing) != 0 {
		t.Errorf("Missing = %v, want none", res.Missing)
	}
	if res.TotalRows != 3 {
		t.Errorf("TotalRows = %d, want 3", res.TotalRows)
	}
}

func TestRunBatch_FailureContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "contributors.csv", "")
	writeFile(t, dir, "profiles.csv", "id;name\n1;Ana\n")

	plan := BatchPlan{
		Dir:   dir,
		Files: []string{"contributors.csv", "profiles.csv"},
	}

	res, err := testTranscoder(t).RunBatch(plan)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("RunBatch() error = %v, want ErrEmptyFile", err)
	}

	if got := outcomeNames(res.Failed); !slices.Equal(got, []string{"contributors.csv"}) {
		t.Errorf("Failed = %v", got)
	}
	if got := outcomeNames(res.Converted); !slices.Equal(got, []string{"profiles.csv"}) {
		t.Errorf("Converted = %v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "contributors_supabase.csv")); !os.IsNotExist(err) {
		t.Errorf("failed file left output behind, stat error = %v", err)
	}
	if !slices.Equal(res.Outputs, []string{"profiles_supabase.csv"}) {
		t.Errorf("Outputs = %v", res.Outputs)
	}
}

func TestRunBatch_Globs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "profiles.csv", "id\n1\n")
	writeFile(t, dir, "profiles_supabase.csv", "id\r\n1\r\n")
	writeFile(t, dir, filepath.Join("extra", "a.csv"), "id\n1\n2\n")
	writeFile(t, dir, filepath.Join("extra", "deep", "b.csv"), "id\n1\n")

	plan := BatchPlan{
		Dir:   dir,
		Files: []string{"profiles.csv", "**/*.csv", "nothing/*.csv"},
	}

	res, err := testTranscoder(t).RunBatch(plan)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	want := []string{
		"profiles.csv",
		filepath.Join("extra", "a.csv"),
		filepath.Join("extra", "deep", "b.csv"),
	}
	if got := outcomeNames(res.Converted); !slices.Equal(got, want) {
		t.Errorf("Converted = %v, want %v", got, want)
	}
	if res.TotalRows != 4 {
		t.Errorf("TotalRows = %d, want 4", res.TotalRows)
	}
	if _, err := os.Stat(filepath.Join(dir, "extra", "deep", "b_supabase.csv")); err != nil {
		t.Errorf("nested output missing: %v", err)
	}
}

func TestPlanFromManifest(t *testing.T) {
	m := config.DefaultManifest("exports")
	plan := PlanFromManifest(m)

	if plan.Dir != "exports" {
		t.Errorf("Dir = %q, want exports", plan.Dir)
	}
	if !slices.Equal(plan.Files, config.BatchFiles()) {
		t.Errorf("Files = %v", plan.Files)
	}
	if !slices.Equal(plan.Optional, config.OptionalBatchFiles()) {
		t.Errorf("Optional = %v", plan.Optional)
	}

	plan.Files[0] = "changed.csv"
	if m.Files[0] == "changed.csv" {
		t.Error("plan shares its file list with the manifest")
	}
}

func TestListOutputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_supabase.csv", "")
	writeFile(t, dir, "a_supabase.csv", "")
	writeFile(t, dir, "a.csv", "")
	writeFile(t, dir, filepath.Join("sub", "c_supabase.csv"), "")

	got, err := ListOutputs(dir)
	if err != nil {
		t.Fatalf("ListOutputs() error = %v", err)
	}
	if want := []string{"a_supabase.csv", "b_supabase.csv"}; !slices.Equal(got, want) {
		t.Errorf("ListOutputs() = %v, want %v", got, want)
	}
}
