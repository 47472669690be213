package fact

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"retailcli/internal/config"
	"retailcli/internal/errors"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

// Fact table column layouts.
var (
	salesFactHeader = []string{
		"transaction_id", "date_key", "customer_key", "product_key", "store_key",
		"channel", "quantity", "unit_price", "amount", "event_time",
	}
	inventoryFactHeader = []string{"date_key", "store_key", "product_key", "quantity_on_hand"}
	shipmentFactHeader  = []string{
		"shipment_id", "date_key", "store_key", "product_key", "warehouse_id", "quantity",
	}
)

// PartitionForDateKey derives the year/month partition from a date dimension
// key. The key encodes the dimension's calendar date, so partition placement
// follows the date dimension and nothing else.
func PartitionForDateKey(key int64) domain.Partition {
	return domain.Partition{Year: int(key / 10000), Month: int(key/100) % 100}
}

// PartitionOutput describes one partition file written for a fact table.
type PartitionOutput struct {
	Table     string           `json:"table"`
	Partition domain.Partition `json:"partition"`
	Path      string           `json:"path"`
	Rows      int              `json:"rows"`
}

// Writer persists fact tables partition by partition.
type Writer struct {
	store      *lake.Store
	maxWorkers int
	logger     *slog.Logger
}

// NewWriter creates a writer that fans partition writes out over at most
// cfg.MaxWorkers goroutines.
func NewWriter(store *lake.Store, cfg config.PipelineConfig, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	return &Writer{store: store, maxWorkers: workers, logger: logger}
}

// WriteAll writes the three fact tables and returns the partition files
// written, ordered by table then partition. Partitions absent from the
// result are left untouched, so a rerun only replaces what it rebuilt.
func (w *Writer) WriteAll(ctx context.Context, result *BuildResult) ([]PartitionOutput, error) {
	var outputs []PartitionOutput

	salesOut, err := w.writeTable(ctx, config.DatasetFactSales, salesFactHeader, groupSales(result.Sales))
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, salesOut...)

	invOut, err := w.writeTable(ctx, config.DatasetFactInventory, inventoryFactHeader, groupInventory(result.Inventory))
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, invOut...)

	shipOut, err := w.writeTable(ctx, config.DatasetFactShipment, shipmentFactHeader, groupShipments(result.Shipments))
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, shipOut...)

	return outputs, nil
}

func (w *Writer) writeTable(ctx context.Context, table string, headers []string, byPartition map[domain.Partition][][]string) ([]PartitionOutput, error) {
	partitions := make([]domain.Partition, 0, len(byPartition))
	for p := range byPartition {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool {
		if partitions[i].Year != partitions[j].Year {
			return partitions[i].Year < partitions[j].Year
		}
		return partitions[i].Month < partitions[j].Month
	})

	outputs := make([]PartitionOutput, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxWorkers)
	for i, p := range partitions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows := byPartition[p]
			path := w.store.FactPath(table, p)

			sw, err := w.store.NewStreamWriter(path, headers)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if err := sw.WriteRow(row); err != nil {
					sw.Abort()
					return err
				}
			}
			if err := sw.Close(); err != nil {
				return err
			}

			outputs[i] = PartitionOutput{Table: table, Partition: p, Path: path, Rows: len(rows)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, out := range outputs {
		w.logger.Debug("fact partition written",
			slog.String("table", out.Table),
			slog.String("partition", out.Partition.Path()),
			slog.Int("rows", out.Rows))
	}
	return outputs, nil
}

func groupSales(facts []domain.SalesFact) map[domain.Partition][][]string {
	grouped := make(map[domain.Partition][][]string)
	for _, f := range facts {
		p := PartitionForDateKey(f.DateKey)
		grouped[p] = append(grouped[p], []string{
			f.TransactionID,
			strconv.FormatInt(f.DateKey, 10),
			strconv.FormatInt(f.CustomerKey, 10),
			strconv.FormatInt(f.ProductKey, 10),
			strconv.FormatInt(f.StoreKey, 10),
			string(f.Channel),
			strconv.FormatInt(f.Quantity, 10),
			strconv.FormatFloat(f.UnitPrice, 'f', -1, 64),
			strconv.FormatFloat(f.Amount, 'f', -1, 64),
			f.EventTime.UTC().Format(time.RFC3339),
		})
	}
	return grouped
}

func groupInventory(facts []domain.InventoryFact) map[domain.Partition][][]string {
	grouped := make(map[domain.Partition][][]string)
	for _, f := range facts {
		p := PartitionForDateKey(f.DateKey)
		grouped[p] = append(grouped[p], []string{
			strconv.FormatInt(f.DateKey, 10),
			strconv.FormatInt(f.StoreKey, 10),
			strconv.FormatInt(f.ProductKey, 10),
			strconv.FormatInt(f.QuantityOnHand, 10),
		})
	}
	return grouped
}

func groupShipments(facts []domain.ShipmentFact) map[domain.Partition][][]string {
	grouped := make(map[domain.Partition][][]string)
	for _, f := range facts {
		p := PartitionForDateKey(f.DateKey)
		grouped[p] = append(grouped[p], []string{
			f.ShipmentID,
			strconv.FormatInt(f.DateKey, 10),
			strconv.FormatInt(f.StoreKey, 10),
			strconv.FormatInt(f.ProductKey, 10),
			f.WarehouseID,
			strconv.FormatInt(f.Quantity, 10),
		})
	}
	return grouped
}

// ReadSalesFacts loads every partition of fact_sales in partition order.
func ReadSalesFacts(s *lake.Store) ([]domain.SalesFact, error) {
	partitions, err := s.ListPartitions(config.DatasetFactSales)
	if err != nil {
		return nil, err
	}

	var facts []domain.SalesFact
	for _, p := range partitions {
		dir := filepath.Dir(s.FactPath(config.DatasetFactSales, p))
		path, ok := s.FindSnapshot(dir, config.DatasetFactSales)
		if !ok {
			continue
		}
		_, rows, err := s.ReadSnapshot(path)
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			fact, err := decodeSalesFact(row)
			if err != nil {
				return nil, errors.NewParsingError(
					"fact_sales "+p.Path()+" row "+strconv.Itoa(i+1), err)
			}
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

func decodeSalesFact(row []string) (domain.SalesFact, error) {
	if len(row) != len(salesFactHeader) {
		return domain.SalesFact{}, errors.NewParsingError(
			"expected "+strconv.Itoa(len(salesFactHeader))+" columns, got "+strconv.Itoa(len(row)), nil)
	}
	keys := make([]int64, 4)
	for i, col := range []int{1, 2, 3, 4} {
		k, err := strconv.ParseInt(row[col], 10, 64)
		if err != nil {
			return domain.SalesFact{}, err
		}
		keys[i] = k
	}
	quantity, err := strconv.ParseInt(row[6], 10, 64)
	if err != nil {
		return domain.SalesFact{}, err
	}
	unitPrice, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return domain.SalesFact{}, err
	}
	amount, err := strconv.ParseFloat(row[8], 64)
	if err != nil {
		return domain.SalesFact{}, err
	}
	eventTime, err := time.Parse(time.RFC3339, row[9])
	if err != nil {
		return domain.SalesFact{}, err
	}

	return domain.SalesFact{
		TransactionID: row[0],
		DateKey:       keys[0],
		CustomerKey:   keys[1],
		ProductKey:    keys[2],
		StoreKey:      keys[3],
		Channel:       domain.Channel(row[5]),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		Amount:        amount,
		EventTime:     eventTime.UTC(),
	}, nil
}
