package fact

import (
	"time"

	"retailcli/internal/dimension"
	"retailcli/pkg/contracts/domain"
)

// DimensionIndex answers key lookups during fact building. Customer versions
// are indexed per natural key in snapshot order, which is chronological.
type DimensionIndex struct {
	dates     map[int64]struct{}
	products  map[string]int64
	stores    map[string]int64
	customers map[string][]domain.CustomerDimensionRow
}

// NewDimensionIndex builds lookup maps over the gold dimension snapshots.
func NewDimensionIndex(
	dates []domain.DateDimensionRow,
	products []domain.ProductDimensionRow,
	stores []domain.StoreDimensionRow,
	customers []domain.CustomerDimensionRow,
) *DimensionIndex {
	ix := &DimensionIndex{
		dates:     make(map[int64]struct{}, len(dates)),
		products:  make(map[string]int64, len(products)),
		stores:    make(map[string]int64, len(stores)),
		customers: make(map[string][]domain.CustomerDimensionRow),
	}
	for _, row := range dates {
		ix.dates[row.DateKey] = struct{}{}
	}
	for _, row := range products {
		ix.products[row.ProductID] = row.ProductKey
	}
	for _, row := range stores {
		ix.stores[row.StoreID] = row.StoreKey
	}
	for _, row := range customers {
		ix.customers[row.CustomerID] = append(ix.customers[row.CustomerID], row)
	}
	return ix
}

// DateKeyFor resolves a calendar day against the date dimension.
func (ix *DimensionIndex) DateKeyFor(day time.Time) (int64, bool) {
	key := dimension.DateKey(day)
	_, ok := ix.dates[key]
	return key, ok
}

// ProductKeyFor resolves a product natural key.
func (ix *DimensionIndex) ProductKeyFor(productID string) (int64, bool) {
	key, ok := ix.products[productID]
	return key, ok
}

// StoreKeyFor resolves a store natural key.
func (ix *DimensionIndex) StoreKeyFor(storeID string) (int64, bool) {
	key, ok := ix.stores[storeID]
	return key, ok
}

// CustomerKeyAt resolves the customer version whose [valid_from, valid_to)
// interval contains day.
func (ix *DimensionIndex) CustomerKeyAt(customerID string, day time.Time) (int64, bool) {
	for _, row := range ix.customers[customerID] {
		if day.Before(row.ValidFrom) {
			continue
		}
		if row.ValidTo == nil || day.Before(*row.ValidTo) {
			return row.CustomerKey, true
		}
	}
	return 0, false
}
