package quality

import (
	"strconv"
	"time"

	"retailcli/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// FromRawRecords adapts landed bronze rows for rule evaluation. Field maps
// are shared, not copied; the engine never mutates them.
func FromRawRecords(records []domain.RawRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{
			Key:    rec.Key(),
			Kind:   string(kindForSource(rec.Source)),
			Fields: rec.Fields,
		})
	}
	return rows
}

// FromSilverRecords adapts cleaned records, rendering typed values back to
// the string forms rules compare against.
func FromSilverRecords(records []domain.SilverRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		fields := map[string]string{
			"product_id": rec.ProductID,
			"store_id":   rec.StoreID,
			"event_date": rec.EventDate.Format(dateLayout),
		}
		putIf(fields, "transaction_id", rec.TransactionID)
		putIf(fields, "shipment_id", rec.ShipmentID)
		putIf(fields, "customer_id", rec.CustomerID)
		putIf(fields, "customer_name", rec.CustomerName)
		putIf(fields, "customer_city", rec.CustomerCity)
		putIf(fields, "product_name", rec.ProductName)
		putIf(fields, "category", rec.Category)
		putIf(fields, "store_city", rec.StoreCity)
		putIf(fields, "warehouse_id", rec.WarehouseID)
		putIf(fields, "channel", string(rec.Channel))
		if !rec.EventTime.IsZero() {
			fields["event_time"] = rec.EventTime.Format(time.RFC3339)
		}

		switch rec.Kind {
		case domain.RecordKindInventory:
			fields["quantity_on_hand"] = strconv.FormatInt(rec.Quantity, 10)
		default:
			fields["quantity"] = strconv.FormatInt(rec.Quantity, 10)
		}
		if rec.Kind == domain.RecordKindSale {
			fields["unit_price"] = strconv.FormatFloat(rec.UnitPrice, 'f', -1, 64)
			fields["amount"] = strconv.FormatFloat(rec.Amount, 'f', -1, 64)
		}

		rows = append(rows, Row{
			Key:    silverKey(rec),
			Kind:   string(rec.Kind),
			Fields: fields,
		})
	}
	return rows
}

// FromSalesFacts adapts gold sales facts so gold-layer rules can audit the
// star schema output.
func FromSalesFacts(facts []domain.SalesFact) []Row {
	rows := make([]Row, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, Row{
			Key:  f.TransactionID,
			Kind: string(domain.RecordKindSale),
			Fields: map[string]string{
				"transaction_id": f.TransactionID,
				"date_key":       strconv.FormatInt(f.DateKey, 10),
				"customer_key":   strconv.FormatInt(f.CustomerKey, 10),
				"product_key":    strconv.FormatInt(f.ProductKey, 10),
				"store_key":      strconv.FormatInt(f.StoreKey, 10),
				"channel":        string(f.Channel),
				"quantity":       strconv.FormatInt(f.Quantity, 10),
				"unit_price":     strconv.FormatFloat(f.UnitPrice, 'f', -1, 64),
				"amount":         strconv.FormatFloat(f.Amount, 'f', -1, 64),
			},
		})
	}
	return rows
}

func kindForSource(source domain.SourceType) domain.RecordKind {
	switch source {
	case domain.SourceInventory:
		return domain.RecordKindInventory
	case domain.SourceShipment:
		return domain.RecordKindShipment
	default:
		return domain.RecordKindSale
	}
}

func silverKey(rec domain.SilverRecord) string {
	if rec.TransactionID != "" {
		return rec.TransactionID
	}
	if rec.ShipmentID != "" {
		return rec.ShipmentID
	}
	return rec.SourceBatch + "#" + strconv.Itoa(rec.RowNumber)
}

func putIf(fields map[string]string, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
