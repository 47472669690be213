package dimension

import (
	"fmt"
	"strconv"
	"time"

	"retailcli/internal/config"
	"retailcli/internal/errors"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

// Gold dimension column layouts. The order is the on-disk contract; the fact
// builder and the report commands parse by these positions.
var (
	dateHeader = []string{
		"date_key", "date", "day", "month", "month_name", "year",
		"quarter", "day_of_week", "day_name", "is_weekend", "is_holiday",
	}
	productHeader  = []string{"product_key", "product_id", "name", "category", "first_seen"}
	storeHeader    = []string{"store_key", "store_id", "city", "first_seen"}
	customerHeader = []string{
		"customer_key", "customer_id", "name", "city",
		"valid_from", "valid_to", "is_current",
	}
)

const dateLayout = "2006-01-02"

// WriteDateDimension replaces the dim_date snapshot.
func WriteDateDimension(s *lake.Store, rows []domain.DateDimensionRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			strconv.FormatInt(row.DateKey, 10),
			row.Date.Format(dateLayout),
			strconv.Itoa(row.Day),
			strconv.Itoa(row.Month),
			row.MonthName,
			strconv.Itoa(row.Year),
			strconv.Itoa(row.Quarter),
			strconv.Itoa(row.DayOfWeek),
			row.DayName,
			strconv.FormatBool(row.IsWeekend),
			strconv.FormatBool(row.IsHoliday),
		})
	}
	return writeDimension(s, config.DatasetDimDate, dateHeader, records)
}

// ReadDateDimension loads the dim_date snapshot.
func ReadDateDimension(s *lake.Store) ([]domain.DateDimensionRow, error) {
	rows, err := readDimension(s, config.DatasetDimDate, dateHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DateDimensionRow, 0, len(rows))
	for i, row := range rows {
		dateKey, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, decodeErr(config.DatasetDimDate, i, "date_key", row[0])
		}
		date, err := time.Parse(dateLayout, row[1])
		if err != nil {
			return nil, decodeErr(config.DatasetDimDate, i, "date", row[1])
		}
		ints := make([]int, 4)
		for j, col := range []int{2, 3, 5, 6} {
			n, err := strconv.Atoi(row[col])
			if err != nil {
				return nil, decodeErr(config.DatasetDimDate, i, dateHeader[col], row[col])
			}
			ints[j] = n
		}
		dayOfWeek, err := strconv.Atoi(row[7])
		if err != nil {
			return nil, decodeErr(config.DatasetDimDate, i, "day_of_week", row[7])
		}
		weekend, err := strconv.ParseBool(row[9])
		if err != nil {
			return nil, decodeErr(config.DatasetDimDate, i, "is_weekend", row[9])
		}
		holiday, err := strconv.ParseBool(row[10])
		if err != nil {
			return nil, decodeErr(config.DatasetDimDate, i, "is_holiday", row[10])
		}
		out = append(out, domain.DateDimensionRow{
			DateKey:   dateKey,
			Date:      date.UTC(),
			Day:       ints[0],
			Month:     ints[1],
			MonthName: row[4],
			Year:      ints[2],
			Quarter:   ints[3],
			DayOfWeek: dayOfWeek,
			DayName:   row[8],
			IsWeekend: weekend,
			IsHoliday: holiday,
		})
	}
	return out, nil
}

// WriteProductDimension replaces the dim_product snapshot.
func WriteProductDimension(s *lake.Store, rows []domain.ProductDimensionRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			strconv.FormatInt(row.ProductKey, 10),
			row.ProductID,
			row.Name,
			row.Category,
			row.FirstSeen.UTC().Format(time.RFC3339),
		})
	}
	return writeDimension(s, config.DatasetDimProduct, productHeader, records)
}

// ReadProductDimension loads the dim_product snapshot.
func ReadProductDimension(s *lake.Store) ([]domain.ProductDimensionRow, error) {
	rows, err := readDimension(s, config.DatasetDimProduct, productHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProductDimensionRow, 0, len(rows))
	for i, row := range rows {
		key, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, decodeErr(config.DatasetDimProduct, i, "product_key", row[0])
		}
		firstSeen, err := time.Parse(time.RFC3339, row[4])
		if err != nil {
			return nil, decodeErr(config.DatasetDimProduct, i, "first_seen", row[4])
		}
		out = append(out, domain.ProductDimensionRow{
			ProductKey: key,
			ProductID:  row[1],
			Name:       row[2],
			Category:   row[3],
			FirstSeen:  firstSeen.UTC(),
		})
	}
	return out, nil
}

// WriteStoreDimension replaces the dim_store snapshot.
func WriteStoreDimension(s *lake.Store, rows []domain.StoreDimensionRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			strconv.FormatInt(row.StoreKey, 10),
			row.StoreID,
			row.City,
			row.FirstSeen.UTC().Format(time.RFC3339),
		})
	}
	return writeDimension(s, config.DatasetDimStore, storeHeader, records)
}

// ReadStoreDimension loads the dim_store snapshot.
func ReadStoreDimension(s *lake.Store) ([]domain.StoreDimensionRow, error) {
	rows, err := readDimension(s, config.DatasetDimStore, storeHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StoreDimensionRow, 0, len(rows))
	for i, row := range rows {
		key, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, decodeErr(config.DatasetDimStore, i, "store_key", row[0])
		}
		firstSeen, err := time.Parse(time.RFC3339, row[3])
		if err != nil {
			return nil, decodeErr(config.DatasetDimStore, i, "first_seen", row[3])
		}
		out = append(out, domain.StoreDimensionRow{
			StoreKey:  key,
			StoreID:   row[1],
			City:      row[2],
			FirstSeen: firstSeen.UTC(),
		})
	}
	return out, nil
}

// WriteCustomerDimension replaces the dim_customer snapshot. Versions keep
// their slice order, so history stays chronologically appended.
func WriteCustomerDimension(s *lake.Store, rows []domain.CustomerDimensionRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		validTo := ""
		if row.ValidTo != nil {
			validTo = row.ValidTo.Format(dateLayout)
		}
		records = append(records, []string{
			strconv.FormatInt(row.CustomerKey, 10),
			row.CustomerID,
			row.Name,
			row.City,
			row.ValidFrom.Format(dateLayout),
			validTo,
			strconv.FormatBool(row.IsCurrent),
		})
	}
	return writeDimension(s, config.DatasetDimCustomer, customerHeader, records)
}

// ReadCustomerDimension loads the dim_customer snapshot.
func ReadCustomerDimension(s *lake.Store) ([]domain.CustomerDimensionRow, error) {
	rows, err := readDimension(s, config.DatasetDimCustomer, customerHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CustomerDimensionRow, 0, len(rows))
	for i, row := range rows {
		key, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, decodeErr(config.DatasetDimCustomer, i, "customer_key", row[0])
		}
		validFrom, err := time.Parse(dateLayout, row[4])
		if err != nil {
			return nil, decodeErr(config.DatasetDimCustomer, i, "valid_from", row[4])
		}
		var validTo *time.Time
		if row[5] != "" {
			to, err := time.Parse(dateLayout, row[5])
			if err != nil {
				return nil, decodeErr(config.DatasetDimCustomer, i, "valid_to", row[5])
			}
			utc := to.UTC()
			validTo = &utc
		}
		isCurrent, err := strconv.ParseBool(row[6])
		if err != nil {
			return nil, decodeErr(config.DatasetDimCustomer, i, "is_current", row[6])
		}
		out = append(out, domain.CustomerDimensionRow{
			CustomerKey: key,
			CustomerID:  row[1],
			Name:        row[2],
			City:        row[3],
			ValidFrom:   validFrom.UTC(),
			ValidTo:     validTo,
			IsCurrent:   isCurrent,
		})
	}
	return out, nil
}

func writeDimension(s *lake.Store, name string, header []string, rows [][]string) (string, error) {
	path := s.DimensionPath(name)
	if err := s.WriteSnapshot(path, lake.WriteOptions{Headers: header, Rows: rows}); err != nil {
		return "", err
	}
	return path, nil
}

func readDimension(s *lake.Store, name string, header []string) ([][]string, error) {
	path, ok := s.FindSnapshot(s.GoldDir(), name)
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("%s snapshot", name))
	}
	_, rows, err := s.ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errors.NewParsingError(fmt.Sprintf(
				"%s row %d has %d columns, want %d", name, i+1, len(row), len(header)), nil)
		}
	}
	return rows, nil
}

func decodeErr(name string, row int, column, value string) error {
	return errors.NewParsingError(fmt.Sprintf("%s row %d: bad %s %q", name, row+1, column, value), nil)
}
