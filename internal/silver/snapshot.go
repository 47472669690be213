package silver

import (
	"fmt"
	"strconv"
	"time"

	"retailcli/internal/config"
	"retailcli/internal/errors"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

// Snapshot column layouts. The order is the on-disk contract of the silver
// layer; gold builders and report stages parse by these positions.
var (
	salesHeader = []string{
		"transaction_id", "customer_id", "customer_name", "customer_city",
		"product_id", "product_name", "category", "store_id", "store_city",
		"channel", "quantity", "unit_price", "amount",
		"event_time", "event_date", "source_batch", "row_number", "ingested_at",
	}
	inventoryHeader = []string{
		"date", "store_id", "store_city", "product_id", "product_name",
		"category", "quantity_on_hand", "source_batch", "row_number", "ingested_at",
	}
	shipmentsHeader = []string{
		"shipment_id", "date", "warehouse_id", "store_id", "store_city",
		"product_id", "quantity", "source_batch", "row_number", "ingested_at",
	}
)

const (
	dateLayout = "2006-01-02"
)

// WriteSnapshots replaces the silver snapshots with the cleaned datasets and
// returns the path written per dataset. Empty datasets still get a
// headers-only snapshot so downstream stages can tell "ran with zero rows"
// from "never ran".
func WriteSnapshots(s *lake.Store, res *Result) (map[string]string, error) {
	outputs := make(map[string]string, 3)

	datasets := []struct {
		name    string
		headers []string
		rows    [][]string
	}{
		{config.DatasetSilverSales, salesHeader, encodeSales(res.Sales)},
		{config.DatasetSilverInventory, inventoryHeader, encodeInventory(res.Inventory)},
		{config.DatasetSilverShipments, shipmentsHeader, encodeShipments(res.Shipments)},
	}
	for _, ds := range datasets {
		path := s.SilverPath(ds.name)
		if err := s.WriteSnapshot(path, lake.WriteOptions{Headers: ds.headers, Rows: ds.rows}); err != nil {
			return nil, err
		}
		outputs[ds.name] = path
	}
	return outputs, nil
}

// ReadSales loads the silver sales snapshot.
func ReadSales(s *lake.Store) ([]domain.SilverRecord, error) {
	rows, err := readDataset(s, config.DatasetSilverSales, salesHeader)
	if err != nil {
		return nil, err
	}
	return decodeRows(config.DatasetSilverSales, rows, decodeSale)
}

// ReadInventory loads the silver inventory snapshot.
func ReadInventory(s *lake.Store) ([]domain.SilverRecord, error) {
	rows, err := readDataset(s, config.DatasetSilverInventory, inventoryHeader)
	if err != nil {
		return nil, err
	}
	return decodeRows(config.DatasetSilverInventory, rows, decodeInventory)
}

// ReadShipments loads the silver shipments snapshot.
func ReadShipments(s *lake.Store) ([]domain.SilverRecord, error) {
	rows, err := readDataset(s, config.DatasetSilverShipments, shipmentsHeader)
	if err != nil {
		return nil, err
	}
	return decodeRows(config.DatasetSilverShipments, rows, decodeShipment)
}

func readDataset(s *lake.Store, dataset string, header []string) ([][]string, error) {
	path, ok := s.FindSnapshot(s.SilverDir(), dataset)
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("silver %s snapshot", dataset))
	}
	_, rows, err := s.ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errors.NewParsingError(fmt.Sprintf(
				"silver %s row %d has %d columns, want %d", dataset, i+1, len(row), len(header)), nil)
		}
	}
	return rows, nil
}

func decodeRows(dataset string, rows [][]string, decode func([]string) (domain.SilverRecord, error)) ([]domain.SilverRecord, error) {
	records := make([]domain.SilverRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := decode(row)
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("silver %s row %d", dataset, i+1), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeSales(records []domain.SilverRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.TransactionID,
			rec.CustomerID,
			rec.CustomerName,
			rec.CustomerCity,
			rec.ProductID,
			rec.ProductName,
			rec.Category,
			rec.StoreID,
			rec.StoreCity,
			string(rec.Channel),
			strconv.FormatInt(rec.Quantity, 10),
			formatFloat(rec.UnitPrice),
			formatFloat(rec.Amount),
			rec.EventTime.UTC().Format(time.RFC3339),
			rec.EventDate.Format(dateLayout),
			rec.SourceBatch,
			strconv.Itoa(rec.RowNumber),
			rec.IngestedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return rows
}

func encodeInventory(records []domain.SilverRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.EventDate.Format(dateLayout),
			rec.StoreID,
			rec.StoreCity,
			rec.ProductID,
			rec.ProductName,
			rec.Category,
			strconv.FormatInt(rec.Quantity, 10),
			rec.SourceBatch,
			strconv.Itoa(rec.RowNumber),
			rec.IngestedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return rows
}

func encodeShipments(records []domain.SilverRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ShipmentID,
			rec.EventDate.Format(dateLayout),
			rec.WarehouseID,
			rec.StoreID,
			rec.StoreCity,
			rec.ProductID,
			strconv.FormatInt(rec.Quantity, 10),
			rec.SourceBatch,
			strconv.Itoa(rec.RowNumber),
			rec.IngestedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return rows
}

func decodeSale(row []string) (domain.SilverRecord, error) {
	quantity, err := strconv.ParseInt(row[10], 10, 64)
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad quantity %q", row[10])
	}
	unitPrice, err := strconv.ParseFloat(row[11], 64)
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad unit_price %q", row[11])
	}
	amount, err := strconv.ParseFloat(row[12], 64)
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad amount %q", row[12])
	}
	eventTime, err := time.Parse(time.RFC3339, row[13])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad event_time %q", row[13])
	}
	eventDate, err := time.Parse(dateLayout, row[14])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad event_date %q", row[14])
	}
	rowNumber, err := strconv.Atoi(row[16])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad row_number %q", row[16])
	}
	ingestedAt, err := time.Parse(time.RFC3339Nano, row[17])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad ingested_at %q", row[17])
	}

	return domain.SilverRecord{
		Kind:          domain.RecordKindSale,
		TransactionID: row[0],
		CustomerID:    row[1],
		CustomerName:  row[2],
		CustomerCity:  row[3],
		ProductID:     row[4],
		ProductName:   row[5],
		Category:      row[6],
		StoreID:       row[7],
		StoreCity:     row[8],
		Channel:       domain.Channel(row[9]),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		Amount:        amount,
		EventTime:     eventTime.UTC(),
		EventDate:     eventDate.UTC(),
		SourceBatch:   row[15],
		RowNumber:     rowNumber,
		IngestedAt:    ingestedAt.UTC(),
	}, nil
}

func decodeInventory(row []string) (domain.SilverRecord, error) {
	day, err := time.Parse(dateLayout, row[0])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad date %q", row[0])
	}
	onHand, err := strconv.ParseInt(row[6], 10, 64)
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad quantity_on_hand %q", row[6])
	}
	rowNumber, err := strconv.Atoi(row[8])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad row_number %q", row[8])
	}
	ingestedAt, err := time.Parse(time.RFC3339Nano, row[9])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad ingested_at %q", row[9])
	}

	return domain.SilverRecord{
		Kind:        domain.RecordKindInventory,
		StoreID:     row[1],
		StoreCity:   row[2],
		ProductID:   row[3],
		ProductName: row[4],
		Category:    row[5],
		Quantity:    onHand,
		EventTime:   day.UTC(),
		EventDate:   day.UTC(),
		SourceBatch: row[7],
		RowNumber:   rowNumber,
		IngestedAt:  ingestedAt.UTC(),
	}, nil
}

func decodeShipment(row []string) (domain.SilverRecord, error) {
	day, err := time.Parse(dateLayout, row[1])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad date %q", row[1])
	}
	quantity, err := strconv.ParseInt(row[6], 10, 64)
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad quantity %q", row[6])
	}
	rowNumber, err := strconv.Atoi(row[8])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad row_number %q", row[8])
	}
	ingestedAt, err := time.Parse(time.RFC3339Nano, row[9])
	if err != nil {
		return domain.SilverRecord{}, fmt.Errorf("bad ingested_at %q", row[9])
	}

	return domain.SilverRecord{
		Kind:        domain.RecordKindShipment,
		ShipmentID:  row[0],
		WarehouseID: row[2],
		StoreID:     row[3],
		StoreCity:   row[4],
		ProductID:   row[5],
		Quantity:    quantity,
		EventTime:   day.UTC(),
		EventDate:   day.UTC(),
		SourceBatch: row[7],
		RowNumber:   rowNumber,
		IngestedAt:  ingestedAt.UTC(),
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
