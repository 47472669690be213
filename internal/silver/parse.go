package silver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"retailcli/internal/bronze"
	"retailcli/pkg/contracts/domain"
)

// timestampLayouts are tried in order when casting sale timestamps. Bronze
// feeds are not uniform: POS exports RFC3339, web orders use a space
// separator, and some older batches carry bare dates.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// candidate pairs a typed silver record with the raw record it came from so
// later cleaning steps can quarantine with full provenance.
type candidate struct {
	rec domain.SilverRecord
	raw domain.RawRecord
}

// parseBatch runs structural and type validation over one bronze batch.
// Records that do not fit the source schema are quarantined as
// SchemaViolation; everything else becomes a typed candidate. Key columns
// stay untyped strings here because null keys are the null-handling step's
// decision, not a parse failure.
func parseBatch(batch *bronze.Batch) ([]candidate, []domain.QuarantinedRecord) {
	kept := make([]candidate, 0, len(batch.Records))
	var quarantined []domain.QuarantinedRecord

	schema, ok := bronze.SchemaFor(batch.File.Source)
	if !ok {
		for _, raw := range batch.Records {
			quarantined = append(quarantined, quarantine(raw, domain.ViolationSchema,
				fmt.Sprintf("unknown source %q", batch.File.Source)))
		}
		return kept, quarantined
	}

	for _, raw := range batch.Records {
		if detail, ok := missingColumns(raw, schema.Required); !ok {
			quarantined = append(quarantined, quarantine(raw, domain.ViolationSchema, detail))
			continue
		}

		var (
			cand candidate
			err  error
		)
		switch batch.File.Source {
		case domain.SourcePOS, domain.SourceWeb:
			cand, err = parseSale(raw, batch.File.Source)
		case domain.SourceInventory:
			cand, err = parseInventory(raw)
		case domain.SourceShipment:
			cand, err = parseShipment(raw)
		}
		if err != nil {
			quarantined = append(quarantined, quarantine(raw, domain.ViolationSchema, err.Error()))
			continue
		}
		kept = append(kept, cand)
	}
	return kept, quarantined
}

// missingColumns reports which required columns are absent from the record's
// field map. A column that landed empty is present; only columns the source
// file never carried are missing.
func missingColumns(raw domain.RawRecord, required []string) (string, bool) {
	var missing []string
	for _, col := range required {
		if _, ok := raw.Fields[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return "", true
	}
	return "missing required columns: " + strings.Join(missing, ", "), false
}

func parseSale(raw domain.RawRecord, source domain.SourceType) (candidate, error) {
	qty, err := castInt(raw, bronze.ColQuantity)
	if err != nil {
		return candidate{}, err
	}
	price, err := castFloat(raw, bronze.ColUnitPrice)
	if err != nil {
		return candidate{}, err
	}
	ts, err := castTimestamp(raw, bronze.ColTimestamp)
	if err != nil {
		return candidate{}, err
	}

	channel := domain.ChannelPOS
	if source == domain.SourceWeb {
		channel = domain.ChannelWeb
	}

	rec := domain.SilverRecord{
		Kind:          domain.RecordKindSale,
		TransactionID: raw.Fields[bronze.ColTransactionID],
		CustomerID:    raw.Fields[bronze.ColCustomerID],
		CustomerName:  raw.Fields[bronze.ColCustomerName],
		CustomerCity:  raw.Fields[bronze.ColCustomerCity],
		ProductID:     raw.Fields[bronze.ColProductID],
		ProductName:   raw.Fields[bronze.ColProductName],
		Category:      raw.Fields[bronze.ColCategory],
		StoreID:       raw.Fields[bronze.ColStoreID],
		StoreCity:     raw.Fields[bronze.ColStoreCity],
		Channel:       channel,
		Quantity:      qty,
		UnitPrice:     price,
		Amount:        float64(qty) * price,
		EventTime:     ts,
		EventDate:     dateOf(ts),
		SourceBatch:   raw.Batch,
		RowNumber:     raw.RowNumber,
		IngestedAt:    raw.IngestedAt,
	}
	return candidate{rec: rec, raw: raw}, nil
}

func parseInventory(raw domain.RawRecord) (candidate, error) {
	onHand, err := castInt(raw, bronze.ColQuantityOnHand)
	if err != nil {
		return candidate{}, err
	}
	day, err := castTimestamp(raw, bronze.ColDate)
	if err != nil {
		return candidate{}, err
	}

	rec := domain.SilverRecord{
		Kind:        domain.RecordKindInventory,
		ProductID:   raw.Fields[bronze.ColProductID],
		ProductName: raw.Fields[bronze.ColProductName],
		Category:    raw.Fields[bronze.ColCategory],
		StoreID:     raw.Fields[bronze.ColStoreID],
		StoreCity:   raw.Fields[bronze.ColStoreCity],
		Quantity:    onHand,
		EventTime:   day,
		EventDate:   dateOf(day),
		SourceBatch: raw.Batch,
		RowNumber:   raw.RowNumber,
		IngestedAt:  raw.IngestedAt,
	}
	return candidate{rec: rec, raw: raw}, nil
}

func parseShipment(raw domain.RawRecord) (candidate, error) {
	qty, err := castInt(raw, bronze.ColQuantity)
	if err != nil {
		return candidate{}, err
	}
	day, err := castTimestamp(raw, bronze.ColDate)
	if err != nil {
		return candidate{}, err
	}

	rec := domain.SilverRecord{
		Kind:        domain.RecordKindShipment,
		ShipmentID:  raw.Fields[bronze.ColShipmentID],
		WarehouseID: raw.Fields[bronze.ColWarehouseID],
		StoreID:     raw.Fields[bronze.ColStoreID],
		StoreCity:   raw.Fields[bronze.ColStoreCity],
		ProductID:   raw.Fields[bronze.ColProductID],
		Quantity:    qty,
		EventTime:   day,
		EventDate:   dateOf(day),
		SourceBatch: raw.Batch,
		RowNumber:   raw.RowNumber,
		IngestedAt:  raw.IngestedAt,
	}
	return candidate{rec: rec, raw: raw}, nil
}

func castInt(raw domain.RawRecord, col string) (int64, error) {
	v := raw.Fields[col]
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: cannot cast %q to integer", col, v)
	}
	return n, nil
}

func castFloat(raw domain.RawRecord, col string) (float64, error) {
	v := raw.Fields[col]
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: cannot cast %q to decimal", col, v)
	}
	return f, nil
}

func castTimestamp(raw domain.RawRecord, col string) (time.Time, error) {
	v := raw.Fields[col]
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("column %s: cannot cast %q to timestamp", col, v)
}

// dateOf truncates a timestamp to its UTC calendar date.
func dateOf(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

func quarantine(raw domain.RawRecord, reason domain.ViolationType, detail string) domain.QuarantinedRecord {
	return domain.QuarantinedRecord{Record: raw, Reason: reason, Detail: detail}
}
