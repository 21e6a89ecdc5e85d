package supabase

// importer.go streams converted files into PostgreSQL.
//
// Each file is loaded in its own transaction:
//
//	BEGIN
//	TRUNCATE "schema"."table"           (only with Truncate)
//	COPY "schema"."table" ("a", "b") FROM STDIN WITH (FORMAT csv, HEADER true)
//	COMMIT
//
// The column list comes from the file header, so the table may have extra
// columns with defaults. Files are imported in the order given; parent
// tables must come before tables referencing them.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/supabase-csv/internal/config"
	"github.com/JonMunkholm/supabase-csv/internal/core"
	"github.com/JonMunkholm/supabase-csv/internal/logging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is used when Options.Schema is empty.
const DefaultSchema = "public"

// Options configures an Importer.
type Options struct {
	Schema   string
	Truncate bool

	// Timeout bounds each file's transaction. Zero means no limit.
	Timeout time.Duration
}

// Importer copies converted CSV files into tables named after the files.
type Importer struct {
	pool     *pgxpool.Pool
	schema   string
	truncate bool
	timeout  time.Duration
}

// NewImporter creates an Importer using pool.
func NewImporter(pool *pgxpool.Pool, opts Options) *Importer {
	schema := opts.Schema
	if schema == "" {
		schema = DefaultSchema
	}
	return &Importer{
		pool:     pool,
		schema:   schema,
		truncate: opts.Truncate,
		timeout:  opts.Timeout,
	}
}

// FileImport describes one imported file.
type FileImport struct {
	Path     string
	Table    string
	Columns  []string
	Rows     int64
	Duration time.Duration
}

// ImportResult summarizes an import run.
type ImportResult struct {
	RunID     string
	Files     []FileImport
	TotalRows int64
}

// ImportFiles imports paths in order and stops at the first failure.
// Files imported before the failure stay committed.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) (ImportResult, error) {
	res := ImportResult{RunID: uuid.NewString()}
	log := logging.WithFields(ctx, "run_id", res.RunID, "schema", im.schema)
	log.Info("import started", "files", len(paths), "truncate", im.truncate)

	for _, path := range paths {
		fi, err := im.importFile(ctx, log, path)
		if err != nil {
			log.Error("import failed", "file", path, "error", err)
			return res, fmt.Errorf("import %s: %w", filepath.Base(path), err)
		}
		res.Files = append(res.Files, fi)
		res.TotalRows += fi.Rows
	}

	log.Info("import completed", "files", len(res.Files), "rows", res.TotalRows)
	return res, nil
}

// ImportFile imports a single converted file.
func (im *Importer) ImportFile(ctx context.Context, path string) (FileImport, error) {
	log := logging.WithFields(ctx, "run_id", uuid.NewString(), "schema", im.schema)
	return im.importFile(ctx, log, path)
}

func (im *Importer) importFile(ctx context.Context, log *slog.Logger, path string) (FileImport, error) {
	start := time.Now()
	fi := FileImport{Path: path, Table: TableName(path)}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fi, fmt.Errorf("%w: %w", core.ErrFileNotFound, err)
		}
		return fi, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	fi.Columns, err = readHeader(f)
	if err != nil {
		return fi, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fi, fmt.Errorf("rewind: %w", err)
	}

	if im.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, im.timeout)
		defer cancel()
	}

	tx, err := im.pool.Begin(ctx)
	if err != nil {
		return fi, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if im.truncate {
		if _, err := tx.Exec(ctx, TruncateStatement(im.schema, fi.Table)); err != nil {
			return fi, fmt.Errorf("truncate %s: %w", fi.Table, err)
		}
	}

	tag, err := tx.Conn().PgConn().CopyFrom(ctx, core.NewBOMSkippingReader(f), CopyStatement(im.schema, fi.Table, fi.Columns))
	if err != nil {
		return fi, fmt.Errorf("copy into %s: %w", fi.Table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fi, fmt.Errorf("commit: %w", err)
	}

	fi.Rows = tag.RowsAffected()
	fi.Duration = time.Since(start)
	log.Info("table imported",
		"file", filepath.Base(path),
		"table", fi.Table,
		"rows", fi.Rows,
		"duration_ms", fi.Duration.Milliseconds(),
	)
	return fi, nil
}

// TableName derives the target table from a file path:
// "exports/profiles_supabase.csv" -> "profiles".
func TableName(path string) string {
	base := filepath.Base(path)
	if name, ok := strings.CutSuffix(base, config.OutputSuffix); ok {
		return name
	}
	return strings.TrimSuffix(base, ".csv")
}

// CopyStatement builds the COPY FROM STDIN statement for table and columns.
// Identifiers are quoted.
func CopyStatement(schema, table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER true)",
		pgx.Identifier{schema, table}.Sanitize(),
		strings.Join(quoted, ", "),
	)
}

// TruncateStatement builds the TRUNCATE statement used with --truncate.
func TruncateStatement(schema, table string) string {
	return "TRUNCATE TABLE " + pgx.Identifier{schema, table}.Sanitize()
}

// readHeader returns the column names of a converted file.
func readHeader(r io.Reader) ([]string, error) {
	header, err := csv.NewReader(core.NewBOMSkippingReader(r)).Read()
	if errors.Is(err, io.EOF) {
		return nil, core.ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return header, nil
}

// ImportOrder lists the converted files in dir, ordered for import: outputs
// of the candidate exports first, in candidate order, then any other
// outputs alphabetically.
func ImportOrder(dir string, candidates []string) ([]string, error) {
	outputs, err := core.ListOutputs(dir)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		present[o] = true
	}

	ordered := make([]string, 0, len(outputs))
	for _, c := range candidates {
		name := core.OutputPath(c)
		if present[name] {
			ordered = append(ordered, filepath.Join(dir, name))
			delete(present, name)
		}
	}
	for _, o := range outputs {
		if present[o] {
			ordered = append(ordered, filepath.Join(dir, o))
		}
	}

	return ordered, nil
}
