package fact

import (
	"fmt"
	"strings"

	"retailcli/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// BuildResult carries the joined facts and the records that failed their
// dimension joins.
type BuildResult struct {
	Sales       []domain.SalesFact
	Inventory   []domain.InventoryFact
	Shipments   []domain.ShipmentFact
	Quarantined []domain.QuarantinedRecord
}

// FactsWritten returns the number of fact rows across all three tables.
func (r *BuildResult) FactsWritten() int {
	return len(r.Sales) + len(r.Inventory) + len(r.Shipments)
}

// Build joins silver records to their dimension keys. Records with any
// unresolvable key are quarantined as ReferentialIntegrityViolation and
// excluded; input order is preserved in both outputs.
func Build(ix *DimensionIndex, sales, inventory, shipments []domain.SilverRecord) *BuildResult {
	result := &BuildResult{}

	for _, rec := range sales {
		fact, missing := buildSale(ix, rec)
		if len(missing) > 0 {
			result.Quarantined = append(result.Quarantined, integrityViolation(rec, missing))
			continue
		}
		result.Sales = append(result.Sales, fact)
	}
	for _, rec := range inventory {
		fact, missing := buildInventory(ix, rec)
		if len(missing) > 0 {
			result.Quarantined = append(result.Quarantined, integrityViolation(rec, missing))
			continue
		}
		result.Inventory = append(result.Inventory, fact)
	}
	for _, rec := range shipments {
		fact, missing := buildShipment(ix, rec)
		if len(missing) > 0 {
			result.Quarantined = append(result.Quarantined, integrityViolation(rec, missing))
			continue
		}
		result.Shipments = append(result.Shipments, fact)
	}

	return result
}

func buildSale(ix *DimensionIndex, rec domain.SilverRecord) (domain.SalesFact, []string) {
	var missing []string

	dateKey, ok := ix.DateKeyFor(rec.EventDate)
	if !ok {
		missing = append(missing, fmt.Sprintf("event date %s has no date dimension row",
			rec.EventDate.Format(dateLayout)))
	}
	customerKey, ok := ix.CustomerKeyAt(rec.CustomerID, rec.EventDate)
	if !ok {
		missing = append(missing, fmt.Sprintf("customer_id %q has no version covering %s",
			rec.CustomerID, rec.EventDate.Format(dateLayout)))
	}
	productKey, ok := ix.ProductKeyFor(rec.ProductID)
	if !ok {
		missing = append(missing, fmt.Sprintf("product_id %q has no dimension row", rec.ProductID))
	}
	storeKey, ok := ix.StoreKeyFor(rec.StoreID)
	if !ok {
		missing = append(missing, fmt.Sprintf("store_id %q has no dimension row", rec.StoreID))
	}
	if len(missing) > 0 {
		return domain.SalesFact{}, missing
	}

	return domain.SalesFact{
		TransactionID: rec.TransactionID,
		DateKey:       dateKey,
		CustomerKey:   customerKey,
		ProductKey:    productKey,
		StoreKey:      storeKey,
		Channel:       rec.Channel,
		Quantity:      rec.Quantity,
		UnitPrice:     rec.UnitPrice,
		Amount:        rec.Amount,
		EventTime:     rec.EventTime,
	}, nil
}

func buildInventory(ix *DimensionIndex, rec domain.SilverRecord) (domain.InventoryFact, []string) {
	var missing []string

	dateKey, ok := ix.DateKeyFor(rec.EventDate)
	if !ok {
		missing = append(missing, fmt.Sprintf("event date %s has no date dimension row",
			rec.EventDate.Format(dateLayout)))
	}
	storeKey, ok := ix.StoreKeyFor(rec.StoreID)
	if !ok {
		missing = append(missing, fmt.Sprintf("store_id %q has no dimension row", rec.StoreID))
	}
	productKey, ok := ix.ProductKeyFor(rec.ProductID)
	if !ok {
		missing = append(missing, fmt.Sprintf("product_id %q has no dimension row", rec.ProductID))
	}
	if len(missing) > 0 {
		return domain.InventoryFact{}, missing
	}

	return domain.InventoryFact{
		DateKey:        dateKey,
		StoreKey:       storeKey,
		ProductKey:     productKey,
		QuantityOnHand: rec.Quantity,
	}, nil
}

func buildShipment(ix *DimensionIndex, rec domain.SilverRecord) (domain.ShipmentFact, []string) {
	var missing []string

	dateKey, ok := ix.DateKeyFor(rec.EventDate)
	if !ok {
		missing = append(missing, fmt.Sprintf("event date %s has no date dimension row",
			rec.EventDate.Format(dateLayout)))
	}
	storeKey, ok := ix.StoreKeyFor(rec.StoreID)
	if !ok {
		missing = append(missing, fmt.Sprintf("store_id %q has no dimension row", rec.StoreID))
	}
	productKey, ok := ix.ProductKeyFor(rec.ProductID)
	if !ok {
		missing = append(missing, fmt.Sprintf("product_id %q has no dimension row", rec.ProductID))
	}
	if len(missing) > 0 {
		return domain.ShipmentFact{}, missing
	}

	return domain.ShipmentFact{
		ShipmentID:  rec.ShipmentID,
		DateKey:     dateKey,
		StoreKey:    storeKey,
		ProductKey:  productKey,
		WarehouseID: rec.WarehouseID,
		Quantity:    rec.Quantity,
	}, nil
}

func integrityViolation(rec domain.SilverRecord, missing []string) domain.QuarantinedRecord {
	return domain.QuarantinedRecord{
		Record: rawFromSilver(rec),
		Reason: domain.ViolationReferentialIntegrity,
		Detail: strings.Join(missing, "; "),
	}
}

// rawFromSilver rebuilds enough raw provenance for the quarantine file. The
// original field map stayed in the bronze layer, so only the keys, measures
// and lineage columns are reconstructed.
func rawFromSilver(rec domain.SilverRecord) domain.RawRecord {
	fields := make(map[string]string, 8)
	put := func(col, v string) {
		if v != "" {
			fields[col] = v
		}
	}
	put("transaction_id", rec.TransactionID)
	put("shipment_id", rec.ShipmentID)
	put("customer_id", rec.CustomerID)
	put("product_id", rec.ProductID)
	put("store_id", rec.StoreID)
	put("warehouse_id", rec.WarehouseID)
	fields["event_date"] = rec.EventDate.Format(dateLayout)

	var source domain.SourceType
	switch rec.Kind {
	case domain.RecordKindSale:
		source = domain.SourcePOS
		if rec.Channel == domain.ChannelWeb {
			source = domain.SourceWeb
		}
	case domain.RecordKindInventory:
		source = domain.SourceInventory
	case domain.RecordKindShipment:
		source = domain.SourceShipment
	}

	return domain.RawRecord{
		Source:     source,
		Batch:      rec.SourceBatch,
		RowNumber:  rec.RowNumber,
		Fields:     fields,
		IngestedAt: rec.IngestedAt,
	}
}
