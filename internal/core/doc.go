// Package core converts Lovable CSV exports into files a Supabase CSV import
// accepts.
//
// # Conversion
//
// A [Transcoder] reads one export, detects its delimiter (';' when the first
// bytes contain one, ',' otherwise), rewrites the array columns with
// [ToPgArray] and writes comma-separated output with the original header:
//
//	tr := core.NewTranscoder(core.Options{
//	    ArrayColumns: config.ArrayColumns(),
//	    UseCRLF:      true,
//	})
//	res, err := tr.ConvertFile("backup/contributors.csv", "")
//	// backup/contributors_supabase.csv, res.Rows data rows
//
// Empty cells become NULL (an empty output field). An empty array column
// stays NULL while "[]" becomes "{}".
//
// # Batches
//
// [Transcoder.RunBatch] converts a fixed list of exports from one directory.
// Missing files are skipped with a warning and a failing file does not stop
// the others; all failures are returned joined.
//
// # Input
//
// Every source passes through [WrapInput], which decodes legacy encodings,
// drops a UTF-8 BOM and optionally replaces invalid UTF-8.
//
// # Errors
//
// Sentinel errors ([ErrFileNotFound], [ErrEmptyFile], [ErrTooManyFields])
// are wrapped with context and can be tested with errors.Is. [MapError]
// turns any error into a [UserMessage] for the CLI and HTTP layers.
package core
