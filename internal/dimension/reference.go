package dimension

import (
	"retailcli/pkg/contracts/domain"
)

// ExtendProductDimension returns the product dimension extended with products
// observed in this run. Prior rows keep their keys and order; new natural
// keys mint monotonically above the prior maximum in observation order.
// Descriptive attributes fill in when a prior row is missing them, but a
// non-empty attribute is never overwritten: reference data corrections are
// upstream's job.
func ExtendProductDimension(prior []domain.ProductDimensionRow, recordSets ...[]domain.SilverRecord) []domain.ProductDimensionRow {
	rows := make([]domain.ProductDimensionRow, len(prior))
	copy(rows, prior)

	index := make(map[string]int, len(rows))
	var maxKey int64
	for i, row := range rows {
		index[row.ProductID] = i
		if row.ProductKey > maxKey {
			maxKey = row.ProductKey
		}
	}

	for _, records := range recordSets {
		for _, rec := range records {
			if rec.ProductID == "" {
				continue
			}
			if i, seen := index[rec.ProductID]; seen {
				if rows[i].Name == "" {
					rows[i].Name = rec.ProductName
				}
				if rows[i].Category == "" {
					rows[i].Category = rec.Category
				}
				continue
			}
			maxKey++
			rows = append(rows, domain.ProductDimensionRow{
				ProductKey: maxKey,
				ProductID:  rec.ProductID,
				Name:       rec.ProductName,
				Category:   rec.Category,
				FirstSeen:  rec.EventTime,
			})
			index[rec.ProductID] = len(rows) - 1
		}
	}
	return rows
}

// ExtendStoreDimension returns the store dimension extended with stores
// observed in this run, under the same key minting rules as products.
func ExtendStoreDimension(prior []domain.StoreDimensionRow, recordSets ...[]domain.SilverRecord) []domain.StoreDimensionRow {
	rows := make([]domain.StoreDimensionRow, len(prior))
	copy(rows, prior)

	index := make(map[string]int, len(rows))
	var maxKey int64
	for i, row := range rows {
		index[row.StoreID] = i
		if row.StoreKey > maxKey {
			maxKey = row.StoreKey
		}
	}

	for _, records := range recordSets {
		for _, rec := range records {
			if rec.StoreID == "" {
				continue
			}
			if i, seen := index[rec.StoreID]; seen {
				if rows[i].City == "" {
					rows[i].City = rec.StoreCity
				}
				continue
			}
			maxKey++
			rows = append(rows, domain.StoreDimensionRow{
				StoreKey:  maxKey,
				StoreID:   rec.StoreID,
				City:      rec.StoreCity,
				FirstSeen: rec.EventTime,
			})
			index[rec.StoreID] = len(rows) - 1
		}
	}
	return rows
}
