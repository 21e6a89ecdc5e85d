package core

// transcode.go converts one Lovable export into a Supabase-ready CSV:
//
//  1. Peek the start of the input and pick ';' or ',' as the delimiter
//  2. Parse the header and rows with standard CSV quoting
//  3. Rewrite array columns with ToPgArray, turn empty cells into NULL
//  4. Write comma-separated output with the original header order
//
// File conversions are all-or-nothing: output goes to a temp file next to
// the destination and is renamed into place only after every row is written.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/supabase-csv/internal/config"
	"github.com/JonMunkholm/supabase-csv/internal/progress"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultSniffBytes is how much input is inspected for the delimiter.
const DefaultSniffBytes = 1024

// Row holds one record's values aligned with the file header.
// Invalid entries are NULL and are written as empty fields.
type Row []pgtype.Text

// Options configures a Transcoder.
type Options struct {
	// ArrayColumns are converted with ToPgArray. Matching is exact.
	ArrayColumns []string

	// SniffBytes bounds delimiter detection (default: DefaultSniffBytes).
	SniffBytes int

	// UseCRLF ends output lines with \r\n.
	UseCRLF bool

	Input InputOptions

	// Progress draws a byte progress bar on stderr during ConvertFile.
	Progress bool

	Logger *slog.Logger
}

// OptionsFromConfig builds Options with the fixed array column list.
func OptionsFromConfig(cfg config.ConvertConfig) Options {
	return Options{
		ArrayColumns: config.ArrayColumns(),
		SniffBytes:   cfg.SniffBytes,
		UseCRLF:      cfg.UseCRLF,
		Input: InputOptions{
			Encoding:     cfg.InputEncoding,
			SanitizeUTF8: cfg.SanitizeUTF8,
		},
	}
}

// Transcoder rewrites Lovable CSV exports. It holds no per-file state and
// may be reused across files.
type Transcoder struct {
	arrayColumns map[string]struct{}
	sniffBytes   int
	useCRLF      bool
	input        InputOptions
	progress     bool
	logger       *slog.Logger
}

// NewTranscoder creates a Transcoder from opts.
func NewTranscoder(opts Options) *Transcoder {
	cols := make(map[string]struct{}, len(opts.ArrayColumns))
	for _, c := range opts.ArrayColumns {
		cols[c] = struct{}{}
	}

	sniff := opts.SniffBytes
	if sniff <= 0 {
		sniff = DefaultSniffBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Transcoder{
		arrayColumns: cols,
		sniffBytes:   sniff,
		useCRLF:      opts.UseCRLF,
		input:        opts.Input,
		progress:     opts.Progress,
		logger:       logger,
	}
}

// Result describes one completed conversion.
type Result struct {
	Input     string
	Output    string
	Rows      int // data rows, header excluded
	Delimiter rune
	Header    []string

	ArrayValues      int // array cells rewritten
	UnbalancedArrays int // array cells with an odd number of quotes
	BytesRead        int64
}

// OutputPath derives the destination for inputPath: a trailing ".csv" is
// replaced with "_supabase.csv". Other names get the suffix appended so the
// input is never overwritten.
func OutputPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, ".csv") + config.OutputSuffix
}

// DetectDelimiter returns ';' if sample contains a semicolon, ',' otherwise.
func DetectDelimiter(sample []byte) rune {
	if bytes.IndexByte(sample, ';') >= 0 {
		return ';'
	}
	return ','
}

// ConvertFile converts inputPath and writes the result to outputPath
// (OutputPath(inputPath) when empty). A missing input returns an error
// wrapping ErrFileNotFound and creates no output.
func (t *Transcoder) ConvertFile(inputPath, outputPath string) (Result, error) {
	if outputPath == "" {
		outputPath = OutputPath(inputPath)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %w", ErrFileNotFound, err)
		}
		return Result{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	log := t.logger.With("input", inputPath, "output", outputPath)
	log.Info("converting")

	var src io.Reader = f
	if t.progress {
		if info, statErr := f.Stat(); statErr == nil {
			bar := progress.NewBytes(info.Size(), filepath.Base(inputPath))
			defer bar.Finish()
			src = bar.Wrap(f)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".supacsv-*.tmp")
	if err != nil {
		return Result{}, fmt.Errorf("create temp output: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	res, err := t.transcode(src, tmp, log)
	res.Input, res.Output = inputPath, outputPath
	if err != nil {
		return res, fmt.Errorf("convert %s: %w", filepath.Base(inputPath), err)
	}

	if err := tmp.Chmod(0o644); err != nil {
		return res, fmt.Errorf("chmod output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return res, fmt.Errorf("move output into place: %w", err)
	}
	committed = true

	log.Info("converted",
		"rows", res.Rows,
		"delimiter", string(res.Delimiter),
		"array_values", res.ArrayValues,
		"bytes", res.BytesRead,
	)
	return res, nil
}

// Transcode reads a Lovable export from r and writes the converted CSV to w.
// Output may be partially written when an error is returned.
func (t *Transcoder) Transcode(r io.Reader, w io.Writer) (Result, error) {
	return t.transcode(r, w, t.logger)
}

func (t *Transcoder) transcode(r io.Reader, w io.Writer, log *slog.Logger) (Result, error) {
	var res Result

	in, err := WrapInput(r, t.input)
	if err != nil {
		return res, err
	}

	br := bufio.NewReaderSize(in, max(t.sniffBytes, 4096))
	sample, err := br.Peek(t.sniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return res, fmt.Errorf("read sample: %w", err)
	}
	res.Delimiter = DetectDelimiter(sample)

	reader := csv.NewReader(br)
	reader.Comma = res.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return res, ErrEmptyFile
	}
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}
	res.Header = header

	isArray := make([]bool, len(header))
	for i, name := range header {
		_, isArray[i] = t.arrayColumns[name]
	}

	writer := csv.NewWriter(w)
	writer.UseCRLF = t.useCRLF
	if err := writer.Write(header); err != nil {
		return res, fmt.Errorf("write header: %w", err)
	}

	out := make([]string, len(header))
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read row %d: %w", res.Rows+1, err)
		}
		line, _ := reader.FieldPos(0)

		if len(record) > len(header) {
			return res, fmt.Errorf("line %d: %w (%d > %d)", line, ErrTooManyFields, len(record), len(header))
		}

		row := t.transformRow(isArray, record)
		for i, v := range row {
			out[i] = v.String
			if isArray[i] && v.Valid {
				res.ArrayValues++
				if UnbalancedArrayQuotes(record[i]) {
					res.UnbalancedArrays++
					log.Warn("array value has unbalanced quotes, converted best-effort",
						"line", line, "column", header[i], "value", record[i])
				}
			}
		}

		if err := writer.Write(out); err != nil {
			return res, fmt.Errorf("write row %d: %w", res.Rows+1, err)
		}
		res.Rows++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return res, fmt.Errorf("flush output: %w", err)
	}

	res.BytesRead = in.BytesRead
	return res, nil
}

// transformRow maps a record onto the header. Missing trailing fields are NULL.
func (t *Transcoder) transformRow(isArray []bool, record []string) Row {
	row := make(Row, len(isArray))
	for i := range isArray {
		if i >= len(record) {
			continue
		}
		v := record[i]
		if isArray[i] && v != "" {
			row[i] = ToPgArray(v)
		} else {
			row[i] = NullIfEmpty(v)
		}
	}
	return row
}
