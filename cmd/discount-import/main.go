// Command discount-import bulk-loads discount codes from gzipped CSV files
// with "code,type,amount" lines.
//
// A code that occurs more than once in the input, within one file or across
// files, is ambiguous and is not imported. Codes already present in the
// database are kept as they are.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/store-checkout/internal/storage/postgres"
)

func main() {
	var (
		pattern     string
		databaseURL string
		expected    uint
		batchSize   int
		dryRun      bool
	)

	flag.StringVar(&pattern, "files", "data/discounts*.csv.gz", "glob of gzipped CSV files to import")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected-codes", 10_000_000, "expected number of codes per file, sizes the bloom filters")
	flag.IntVar(&batchSize, "batch-size", 1000, "discounts inserted per transaction")
	flag.BoolVar(&dryRun, "dry-run", false, "validate and deduplicate without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if batchSize <= 0 {
		slog.Error("batch size must be positive")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, expected, batchSize, dryRun); err != nil {
		slog.Error("discount import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, expected uint, batchSize int, dryRun bool) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrapf(err, "match %s", pattern)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", pattern)
	}
	if len(files) > maxFiles {
		return errors.Errorf("%d files match %s, at most %d are supported", len(files), pattern, maxFiles)
	}

	slog.Info("importing discounts", slog.Int("files", len(files)))

	unique, ambiguous, err := collectUnique(ctx, files, expected)
	if err != nil {
		return err
	}
	slog.Info("deduplicated input",
		slog.Int("unique", len(unique)),
		slog.Int("ambiguous", ambiguous),
	)

	if dryRun || len(unique) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewDiscountRepository(pool)

	var inserted int64
	for start := 0; start < len(unique); start += batchSize {
		end := min(start+batchSize, len(unique))
		n, err := repo.InsertNew(ctx, unique[start:end])
		if err != nil {
			return errors.Wrapf(err, "insert batch at %d", start)
		}
		inserted += n

		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(unique)))
	}

	slog.Info("discounts written",
		slog.Int64("inserted", inserted),
		slog.Int64("already_present", int64(len(unique))-inserted),
	)
	return nil
}
