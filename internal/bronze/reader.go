package bronze

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"

	"retailcli/internal/config"
	"retailcli/internal/errors"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

// Batch is the parsed content of one landed source file. Records keep every
// header column as a field key, including empty cells, so the cleaner can
// tell an absent column apart from a missing value.
type Batch struct {
	File         lake.SourceFile
	Header       []string
	Records      []domain.RawRecord
	ExtraColumns []string
}

// Reader reads landed source files into raw record batches.
type Reader struct {
	retry   config.RetryConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewReader creates a reader with the configured retry policy and optional
// read pacing.
func NewReader(cfg config.PipelineConfig, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.BronzeReadRate.Enabled {
		limiter = rate.NewLimiter(rate.Limit(cfg.BronzeReadRate.RPS), cfg.BronzeReadRate.Burst)
	}

	return &Reader{
		retry:   cfg.Retry,
		limiter: limiter,
		logger:  logger,
	}
}

// ReadAll reads every file into a batch, preserving discovery order so the
// cleaner sees a stable ingestion order across reruns.
func (r *Reader) ReadAll(ctx context.Context, files []lake.SourceFile) ([]*Batch, error) {
	batches := make([]*Batch, 0, len(files))
	for _, file := range files {
		batch, err := r.ReadBatch(ctx, file)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// ReadBatch parses one landed file into raw records. Transient I/O failures
// are retried with exponential backoff; a file that still cannot be read
// fails the run rather than silently dropping a source.
func (r *Reader) ReadBatch(ctx context.Context, file lake.SourceFile) (*Batch, error) {
	var rows [][]string
	err := r.withRetry(ctx, fmt.Sprintf("read %s", file.Name), func() error {
		var err error
		rows, err = readTable(file.Path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.buildBatch(ctx, file, rows)
}

// buildBatch turns parsed rows into raw records keyed by the normalized
// header. Schema drift (extra columns) is tolerated and logged here.
func (r *Reader) buildBatch(ctx context.Context, file lake.SourceFile, rows [][]string) (*Batch, error) {
	batch := &Batch{File: file}
	if len(rows) == 0 {
		r.logger.Warn("source file is empty", slog.String("file", file.Name))
		return batch, nil
	}

	header := NormalizeHeader(rows[0])
	batch.Header = header

	if schema, ok := SchemaFor(file.Source); ok {
		_, extra := schema.ValidateHeader(header)
		batch.ExtraColumns = extra
		if len(extra) > 0 {
			r.logger.Info("tolerating extra source columns",
				slog.String("file", file.Name),
				slog.String("source", string(file.Source)),
				slog.String("columns", strings.Join(extra, ",")))
		}
	}

	ingestedAt := file.ModTime.UTC()
	batch.Records = make([]domain.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, errors.NewIngestionIOError(fmt.Sprintf("read %s", file.Name), err)
			}
		}

		fields := make(map[string]string, len(header))
		for j, col := range header {
			if col == "" {
				continue
			}
			var value string
			if j < len(row) {
				value = strings.TrimSpace(row[j])
			}
			fields[col] = value
		}

		batch.Records = append(batch.Records, domain.RawRecord{
			Source:     file.Source,
			Batch:      file.Name,
			RowNumber:  i + 1,
			Fields:     fields,
			IngestedAt: ingestedAt,
		})
	}

	r.logger.Debug("read source batch",
		slog.String("file", file.Name),
		slog.String("source", string(file.Source)),
		slog.Int("records", len(batch.Records)))

	return batch, nil
}

// withRetry runs fn with the configured bounded retry and exponential backoff.
func (r *Reader) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := r.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := r.retry.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		r.logger.Warn("retrying ingestion read",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()))

		select {
		case <-ctx.Done():
			return errors.NewIngestionIOError(op, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.retry.Multiplier)
		if r.retry.MaxDelay > 0 && delay > r.retry.MaxDelay {
			delay = r.retry.MaxDelay
		}
	}
	return errors.NewIngestionIOError(op, lastErr)
}

// readTable reads the full row table of a landed file.
func readTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readExcelTable(path)
	default:
		return readCSVTable(path)
	}
}

func readCSVTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// readExcelTable reads the first sheet of a workbook. POS exports carry their
// table on the first sheet with the header in row one.
func readExcelTable(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}
