package silver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"retailcli/internal/bronze"
	"retailcli/internal/config"
	"retailcli/pkg/contracts/domain"
)

// Result carries the cleaned record set and the audit counts for one run.
// Counts are deterministic: the same batches and run date always produce the
// same numbers.
type Result struct {
	Sales     []domain.SilverRecord
	Inventory []domain.SilverRecord
	Shipments []domain.SilverRecord

	Quarantined []domain.QuarantinedRecord

	RowsIn     int
	Duplicates int
	ByReason   map[domain.ViolationType]int
}

// RowsClean returns the number of records that survived all cleaning steps.
func (r *Result) RowsClean() int {
	return len(r.Sales) + len(r.Inventory) + len(r.Shipments)
}

// Cleaner turns raw bronze batches into the unified silver record set.
type Cleaner struct {
	maxWorkers int
	logger     *slog.Logger
}

// NewCleaner creates a cleaner that fans batch parsing out over at most
// cfg.MaxWorkers goroutines.
func NewCleaner(cfg config.PipelineConfig, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	return &Cleaner{maxWorkers: workers, logger: logger}
}

// Clean runs the five cleaning steps over the landed batches. Per-record
// problems are quarantined, never returned as errors; the only error paths
// are context cancellation. Records keep their ingestion order throughout so
// dedupe and downstream tie-breaks are reproducible.
func (c *Cleaner) Clean(ctx context.Context, batches []*bronze.Batch, runDate time.Time) (*Result, error) {
	runDay := dateOf(runDate)

	parsed := make([][]candidate, len(batches))
	rejected := make([][]domain.QuarantinedRecord, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxWorkers)
	for i, batch := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i], rejected[i] = parseBatch(batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{ByReason: make(map[domain.ViolationType]int)}
	var cands []candidate
	for i, batch := range batches {
		result.RowsIn += len(batch.Records)
		cands = append(cands, parsed[i]...)
		result.Quarantined = append(result.Quarantined, rejected[i]...)
	}

	cands, result.Duplicates = dedupe(cands)

	cands, nullRejected := handleNulls(cands)
	result.Quarantined = append(result.Quarantined, nullRejected...)

	cands, rangeRejected := validateRanges(cands, runDay)
	result.Quarantined = append(result.Quarantined, rangeRejected...)

	for _, cand := range cands {
		switch cand.rec.Kind {
		case domain.RecordKindSale:
			result.Sales = append(result.Sales, cand.rec)
		case domain.RecordKindInventory:
			result.Inventory = append(result.Inventory, cand.rec)
		case domain.RecordKindShipment:
			result.Shipments = append(result.Shipments, cand.rec)
		}
	}

	for _, q := range result.Quarantined {
		result.ByReason[q.Reason]++
	}
	if result.Duplicates > 0 {
		result.ByReason[domain.ViolationDuplicateRecord] = result.Duplicates
	}

	c.logger.InfoContext(ctx, "silver cleaning completed",
		slog.Int("rows_in", result.RowsIn),
		slog.Int("rows_clean", result.RowsClean()),
		slog.Int("rows_quarantined", len(result.Quarantined)),
		slog.Int("duplicates_dropped", result.Duplicates),
		slog.Int("sales", len(result.Sales)),
		slog.Int("inventory", len(result.Inventory)),
		slog.Int("shipments", len(result.Shipments)))

	return result, nil
}

// dedupe drops exact duplicates by composite key, keeping the first
// occurrence in ingestion order. Duplicates are informational: POS terminals
// resend batches after timeouts, so a repeated row is expected noise rather
// than a data fault.
func dedupe(cands []candidate) ([]candidate, int) {
	seen := make(map[string]struct{}, len(cands))
	kept := make([]candidate, 0, len(cands))
	dropped := 0
	for _, cand := range cands {
		key := dedupeKey(cand.rec)
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, cand)
	}
	return kept, dropped
}

// dedupeKey builds the composite identity of a record. Sales are identical
// when customer, product, timestamp and amount all match, regardless of which
// channel file they landed in.
func dedupeKey(rec domain.SilverRecord) string {
	switch rec.Kind {
	case domain.RecordKindSale:
		return strings.Join([]string{
			string(rec.Kind),
			rec.CustomerID,
			rec.ProductID,
			strconv.FormatInt(rec.EventTime.UnixNano(), 10),
			strconv.FormatFloat(rec.Amount, 'f', -1, 64),
		}, "|")
	case domain.RecordKindInventory:
		return strings.Join([]string{
			string(rec.Kind),
			rec.StoreID,
			rec.ProductID,
			strconv.FormatInt(rec.EventTime.UnixNano(), 10),
			strconv.FormatInt(rec.Quantity, 10),
		}, "|")
	default:
		return strings.Join([]string{
			string(rec.Kind),
			rec.ShipmentID,
			rec.WarehouseID,
			rec.StoreID,
			rec.ProductID,
			strconv.FormatInt(rec.EventTime.UnixNano(), 10),
			strconv.FormatInt(rec.Quantity, 10),
		}, "|")
	}
}

// handleNulls fills the customer sentinel and drops rows whose primary or
// foreign keys are null. A sale without a customer still happened; a sale
// without a transaction, product or store key cannot be joined to anything
// and would poison the star schema.
func handleNulls(cands []candidate) ([]candidate, []domain.QuarantinedRecord) {
	kept := make([]candidate, 0, len(cands))
	var rejected []domain.QuarantinedRecord
	for _, cand := range cands {
		if col, null := nullKey(cand.rec); null {
			rejected = append(rejected, quarantine(cand.raw, domain.ViolationSchema, "null "+col))
			continue
		}
		if cand.rec.Kind == domain.RecordKindSale && cand.rec.CustomerID == "" {
			cand.rec.CustomerID = config.UnknownCustomerID
		}
		kept = append(kept, cand)
	}
	return kept, rejected
}

// nullKey reports the first empty key column of the record, if any.
func nullKey(rec domain.SilverRecord) (string, bool) {
	type keyCol struct {
		name  string
		value string
	}
	var keys []keyCol
	switch rec.Kind {
	case domain.RecordKindSale:
		keys = []keyCol{
			{bronze.ColTransactionID, rec.TransactionID},
			{bronze.ColProductID, rec.ProductID},
			{bronze.ColStoreID, rec.StoreID},
		}
	case domain.RecordKindInventory:
		keys = []keyCol{
			{bronze.ColStoreID, rec.StoreID},
			{bronze.ColProductID, rec.ProductID},
		}
	case domain.RecordKindShipment:
		keys = []keyCol{
			{bronze.ColShipmentID, rec.ShipmentID},
			{bronze.ColWarehouseID, rec.WarehouseID},
			{bronze.ColStoreID, rec.StoreID},
			{bronze.ColProductID, rec.ProductID},
		}
	}
	for _, k := range keys {
		if k.value == "" {
			return k.name, true
		}
	}
	return "", false
}

// validateRanges quarantines out-of-range measures and events dated after the
// run date.
func validateRanges(cands []candidate, runDay time.Time) ([]candidate, []domain.QuarantinedRecord) {
	kept := make([]candidate, 0, len(cands))
	var rejected []domain.QuarantinedRecord
	for _, cand := range cands {
		rec := cand.rec

		if detail, bad := rangeViolation(rec); bad {
			rejected = append(rejected, quarantine(cand.raw, domain.ViolationRange, detail))
			continue
		}
		if rec.EventDate.After(runDay) {
			rejected = append(rejected, quarantine(cand.raw, domain.ViolationFutureDate,
				fmt.Sprintf("event date %s after run date %s",
					rec.EventDate.Format("2006-01-02"), runDay.Format("2006-01-02"))))
			continue
		}
		kept = append(kept, cand)
	}
	return kept, rejected
}

func rangeViolation(rec domain.SilverRecord) (string, bool) {
	switch rec.Kind {
	case domain.RecordKindSale:
		if rec.UnitPrice < 0 {
			return fmt.Sprintf("unit_price %.2f below zero", rec.UnitPrice), true
		}
		if rec.Quantity < 1 {
			return fmt.Sprintf("quantity %d below 1", rec.Quantity), true
		}
	case domain.RecordKindInventory:
		if rec.Quantity < 0 {
			return fmt.Sprintf("quantity_on_hand %d below zero", rec.Quantity), true
		}
	case domain.RecordKindShipment:
		if rec.Quantity < 1 {
			return fmt.Sprintf("quantity %d below 1", rec.Quantity), true
		}
	}
	return "", false
}
