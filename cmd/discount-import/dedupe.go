package main

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/store-checkout/internal/domain/discount"
)

const (
	bloomFPR = 0.001
	maxFiles = 64
)

// fileScan is what the second pass learns about one file.
type fileScan struct {
	records []discount.Discount
	// suspects are codes the bloom filters flag as possibly repeated.
	suspects map[string]struct{}
}

// collectUnique reads every file and returns the discounts whose code occurs
// exactly once in the whole input, plus the number of ambiguous codes.
//
// The first pass builds a bloom filter per file. The second pass parses each
// file and marks codes that another file's filter, or the file's own running
// filter, may already contain. Only those suspects are then counted exactly.
func collectUnique(ctx context.Context, files []string, expected uint) ([]discount.Discount, int, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(expected, bloomFPR)
			if err := streamGzFile(gctx, path, func(line int, text string) error {
				code, _, _ := strings.Cut(text, ",")
				f.AddString(strings.TrimSpace(code))
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	scans := make([]fileScan, len(files))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			scan, err := scanFile(gctx, i, path, filters, expected)
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			scans[i] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	suspects := make(map[string]int)
	for _, s := range scans {
		for code := range s.suspects {
			suspects[code] = 0
		}
	}
	for _, s := range scans {
		for _, d := range s.records {
			if _, ok := suspects[d.Code]; ok {
				suspects[d.Code]++
			}
		}
	}

	var (
		unique    []discount.Discount
		ambiguous int
	)
	for _, n := range suspects {
		if n > 1 {
			ambiguous++
		}
	}
	for _, s := range scans {
		for _, d := range s.records {
			if suspects[d.Code] > 1 {
				continue
			}
			unique = append(unique, d)
		}
	}
	return unique, ambiguous, nil
}

func scanFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, expected uint) (fileScan, error) {
	scan := fileScan{suspects: make(map[string]struct{})}
	seen := bloom.NewWithEstimates(expected, bloomFPR)

	err := streamGzFile(ctx, path, func(line int, text string) error {
		d, err := parseLine(text)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}

		if seen.TestAndAddString(d.Code) {
			scan.suspects[d.Code] = struct{}{}
		} else {
			for j, f := range filters {
				if j != idx && f.TestString(d.Code) {
					scan.suspects[d.Code] = struct{}{}
					break
				}
			}
		}

		scan.records = append(scan.records, d)
		return nil
	})
	return scan, err
}

// parseLine parses "code,type,amount" into a new, unused discount.
func parseLine(text string) (discount.Discount, error) {
	fields := strings.Split(text, ",")
	if len(fields) != 3 {
		return discount.Discount{}, errors.Errorf("want 3 fields, got %d", len(fields))
	}

	code := strings.TrimSpace(fields[0])
	if code == "" {
		return discount.Discount{}, errors.New("empty code")
	}
	t, err := discount.ParseType(strings.TrimSpace(fields[1]))
	if err != nil {
		return discount.Discount{}, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
	if err != nil {
		return discount.Discount{}, errors.Wrapf(err, "parse amount of %s", code)
	}

	d := discount.Discount{
		ID:     uuid.NewString(),
		Code:   code,
		Type:   t,
		Amount: amount,
	}
	if err := validate(d); err != nil {
		return discount.Discount{}, errors.Wrapf(err, "discount %s", code)
	}
	return d, nil
}

func validate(d discount.Discount) error {
	switch d.Type {
	case discount.TypePercentage:
		if d.Amount.IsNegative() || d.Amount.GreaterThan(decimal.NewFromInt(100)) {
			return discount.ErrPercentageOutOfRange
		}
	case discount.TypeFixed:
		if d.Amount.IsNegative() {
			return discount.ErrNegativeAmount
		}
	}
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-blank
// line with its 1-based number.
func streamGzFile(ctx context.Context, path string, fn func(line int, text string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := fn(line, text); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
