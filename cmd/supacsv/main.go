package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/JonMunkholm/supabase-csv/internal/config"
	"github.com/JonMunkholm/supabase-csv/internal/core"
	"github.com/JonMunkholm/supabase-csv/internal/logging"
	"github.com/JonMunkholm/supabase-csv/internal/supabase"
	"github.com/JonMunkholm/supabase-csv/internal/web"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the CLI. Configuration is loaded once in Before and shared
// by every command.
func newApp(stdout, stderr io.Writer) *cli.App {
	var cfg *config.Config

	return &cli.App{
		Name:      "supacsv",
		Usage:     "Convert Lovable CSV exports for Supabase import",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error (overrides LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text or json (overrides LOG_FORMAT)",
			},
		},
		Before: func(c *cli.Context) error {
			// Overload lets a local .env win over the shell environment
			if err := godotenv.Overload(); err == nil {
				slog.Debug("loaded .env file")
			}

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if c.IsSet("log-level") {
				cfg.Logging.Level = c.String("log-level")
			}
			if c.IsSet("log-format") {
				cfg.Logging.Format = c.String("log-format")
			}

			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			slog.Debug("configuration loaded", "config", cfg.String())
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "Convert one or more exports to *_supabase.csv",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (only with a single FILE)",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Show a progress bar on stderr",
					},
				},
				Action: func(c *cli.Context) error { return runConvert(c, cfg) },
			},
			{
				Name:  "batch",
				Usage: "Convert the standard set of Lovable exports in a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory holding the exports (overrides BATCH_DIR)",
					},
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "YAML manifest listing the files to convert (overrides BATCH_MANIFEST)",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Show a progress bar per file on stderr",
					},
				},
				Action: func(c *cli.Context) error { return runBatch(c, cfg) },
			},
			{
				Name:      "import",
				Usage:     "Load converted files into Supabase with COPY",
				ArgsUsage: "[FILE...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory holding *_supabase.csv files when no FILE is given",
					},
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "YAML manifest whose file order is used for import",
					},
					&cli.StringFlag{
						Name:  "schema",
						Usage: "Target schema (overrides DB_SCHEMA)",
					},
					&cli.BoolFlag{
						Name:  "truncate",
						Usage: "Empty each table before loading it",
					},
				},
				Action: func(c *cli.Context) error { return runImport(c, cfg) },
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP conversion server",
				Action: func(c *cli.Context) error { return runServe(c, cfg) },
			},
		},
	}
}

func newTranscoder(cfg *config.Config, showProgress bool) *core.Transcoder {
	opts := core.OptionsFromConfig(cfg.Convert)
	opts.Progress = showProgress
	return core.NewTranscoder(opts)
}

func runConvert(c *cli.Context, cfg *config.Config) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("convert: no input file given")
	}
	output := c.String("output")
	if output != "" && len(files) > 1 {
		return errors.New("convert: --output can only be used with a single file")
	}

	tr := newTranscoder(cfg, c.Bool("progress"))
	w := c.App.Writer

	var errs []error
	total := 0
	for _, file := range files {
		res, err := tr.ConvertFile(file, output)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += res.Rows
		fmt.Fprintf(w, "Converted %s -> %s (%d rows)\n", res.Input, res.Output, res.Rows)
	}

	if len(files) > 1 {
		fmt.Fprintf(w, "Total converted: %d rows\n", total)
	}
	return errors.Join(errs...)
}

// loadManifest resolves the batch manifest: --manifest, then BATCH_MANIFEST,
// then the built-in file list. --dir overrides the manifest directory.
func loadManifest(c *cli.Context, cfg *config.Config) (*config.Manifest, error) {
	dir := cfg.Batch.Dir
	if c.IsSet("dir") {
		dir = c.String("dir")
	}

	path := cfg.Batch.Manifest
	if c.IsSet("manifest") {
		path = c.String("manifest")
	}

	if path == "" {
		return config.DefaultManifest(dir), nil
	}

	m, err := config.LoadManifest(path, dir)
	if err != nil {
		return nil, err
	}
	if c.IsSet("dir") {
		m.Dir = dir
	}
	return m, nil
}

func runBatch(c *cli.Context, cfg *config.Config) error {
	m, err := loadManifest(c, cfg)
	if err != nil {
		return err
	}

	tr := newTranscoder(cfg, c.Bool("progress"))
	res, batchErr := tr.RunBatch(core.PlanFromManifest(m))

	w := c.App.Writer
	for _, name := range res.Missing {
		fmt.Fprintf(w, "Skipped %s: not found\n", name)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(w, "Failed %s: %v\n", f.Name, f.Err)
	}

	fmt.Fprintf(w, "\nTotal converted: %d rows\n", res.TotalRows)
	fmt.Fprintln(w, "\nGenerated files (_supabase.csv suffix):")
	for _, name := range res.Outputs {
		fmt.Fprintf(w, "  - %s\n", name)
	}
	fmt.Fprintln(w, "\nNext step: load the *_supabase.csv files into Supabase (supacsv import)")

	return batchErr
}

func runImport(c *cli.Context, cfg *config.Config) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		m, err := loadManifest(c, cfg)
		if err != nil {
			return err
		}
		candidates := append(append([]string(nil), m.Files...), m.Optional...)
		paths, err = supabase.ImportOrder(m.Dir, candidates)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("import: no *_supabase.csv files in %s, run batch first", m.Dir)
		}
	}

	schema := cfg.Database.Schema
	if c.IsSet("schema") {
		schema = c.String("schema")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := supabase.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	im := supabase.NewImporter(pool, supabase.Options{
		Schema:   schema,
		Truncate: c.Bool("truncate"),
		Timeout:  cfg.Database.ImportTimeout,
	})

	res, err := im.ImportFiles(ctx, paths)

	w := c.App.Writer
	for _, f := range res.Files {
		fmt.Fprintf(w, "Imported %s -> %s.%s (%d rows)\n", filepath.Base(f.Path), schema, f.Table, f.Rows)
	}
	fmt.Fprintf(w, "\nTotal imported: %d rows (run %s)\n", res.TotalRows, res.RunID)

	return err
}

func runServe(c *cli.Context, cfg *config.Config) error {
	server := web.NewServer(newTranscoder(cfg, false), cfg.Server)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// printError writes err with the user message and action of each
// underlying failure.
func printError(w io.Writer, err error) {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	for _, e := range errs {
		msg := core.MapError(e)
		fmt.Fprintf(w, "Error: %v\n", e)
		if msg.Code != "ERR000" {
			fmt.Fprintf(w, "  %s. %s [%s]\n", msg.Message, msg.Action, msg.Code)
		}
	}
}
