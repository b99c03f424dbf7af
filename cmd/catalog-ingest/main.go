// Command catalog-ingest loads gzipped supplier price list CSVs into the
// product catalog. Files are parsed concurrently; when the same barcode
// appears in more than one price list, the file that sorts first wins.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tillpoint/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// row is one catalog entry parsed from a supplier CSV:
// barcode,name,category,unit,stock,price
type row struct {
	barcode  string
	name     string
	category string
	unit     string
	stock    int
	price    decimal.Decimal
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz price lists")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list price lists")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz price lists found in %s", dataDir)
	}
	sort.Strings(files)

	slog.Info("parsing price lists", slog.Int("files", len(files)))

	parsed, err := parsePriceLists(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse price lists")
	}

	merged := mergeRows(parsed, files)
	slog.Info("merged catalog entries", slog.Int("count", len(merged)))

	if len(merged) == 0 {
		slog.Info("nothing to ingest")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeProducts(ctx, pool, merged); err != nil {
		return errors.Wrap(err, "write products to database")
	}

	return nil
}

// parsePriceLists streams every file concurrently, one goroutine per file.
func parsePriceLists(ctx context.Context, files []string) ([][]row, error) {
	parsed := make([][]row, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseFile(ctx, i, f, parsed))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return parsed, nil
}

func parseFile(ctx context.Context, idx int, path string, parsed [][]row) func() error {
	return func() error {
		var rows []row
		var count uint64

		if err := streamGzCSV(ctx, path, func(record []string) error {
			r, err := parseRecord(record)
			if err != nil {
				return err
			}
			rows = append(rows, r)

			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("rows", count),
				)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}

		slog.Info("parse complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("total_rows", count),
		)

		parsed[idx] = rows
		return nil
	}
}

func parseRecord(record []string) (row, error) {
	if len(record) != 6 {
		return row{}, errors.Errorf("expected 6 columns, got %d", len(record))
	}

	barcode := record[0]
	if barcode == "" {
		return row{}, errors.New("empty barcode")
	}

	stock, err := strconv.Atoi(record[4])
	if err != nil {
		return row{}, errors.Wrapf(err, "parse stock for barcode %s", barcode)
	}

	price, err := decimal.NewFromString(record[5])
	if err != nil {
		return row{}, errors.Wrapf(err, "parse price for barcode %s", barcode)
	}
	if price.IsNegative() {
		return row{}, errors.Errorf("negative price for barcode %s", barcode)
	}

	return row{
		barcode:  barcode,
		name:     record[1],
		category: record[2],
		unit:     record[3],
		stock:    stock,
		price:    price.Round(2),
	}, nil
}

// mergeRows deduplicates by barcode across files in file order. A bloom
// filter screens out the common case of a never-seen barcode; only probable
// duplicates pay for the exact map lookup.
func mergeRows(parsed [][]row, files []string) []row {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	seen := make(map[string]struct{})

	var merged []row
	for i, rows := range parsed {
		dropped := 0
		for _, r := range rows {
			if filter.TestString(r.barcode) {
				if _, dup := seen[r.barcode]; dup {
					dropped++
					continue
				}
			}
			filter.AddString(r.barcode)
			seen[r.barcode] = struct{}{}
			merged = append(merged, r)
		}
		if dropped > 0 {
			slog.Info("dropped duplicate barcodes",
				slog.String("file", filepath.Base(files[i])),
				slog.Int("count", dropped),
			)
		}
	}

	return merged
}

// streamGzCSV opens a gzip-compressed CSV file and calls fn for each record.
func streamGzCSV(ctx context.Context, path string, fn func(record []string) error) error {
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

	reader := csv.NewReader(gz)
	reader.FieldsPerRecord = -1

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

const upsertByBarcodeSQL = `
INSERT INTO products (id, name, barcode, price, category, stock, unit)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (barcode) WHERE barcode <> '' DO UPDATE SET
    name = EXCLUDED.name,
    price = EXCLUDED.price,
    category = EXCLUDED.category,
    stock = EXCLUDED.stock,
    unit = EXCLUDED.unit
`

// writeProducts upserts every merged row keyed by barcode. Existing products
// keep their ID; new barcodes get a fresh one.
func writeProducts(ctx context.Context, pool *pgxpool.Pool, rows []row) error {
	slog.Info("writing products to database", slog.Int("count", len(rows)))

	for i, r := range rows {
		if _, err := pool.Exec(ctx, upsertByBarcodeSQL,
			uuid.New().String(), r.name, r.barcode, r.price, r.category, r.stock, r.unit,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", r.barcode)
		}

		if (i+1)%100 == 0 || i+1 == len(rows) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(rows)))
		}
	}

	return nil
}
