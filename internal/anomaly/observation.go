package anomaly

import (
	"time"

	"retailcli/pkg/contracts/domain"
)

// Observation is one denormalized sale the detectors score: fact measures
// joined back to the store city and product category, since the engine
// reasons about business entities rather than surrogate keys.
type Observation struct {
	TransactionID string
	Date          time.Time
	Hour          int
	City          string
	Category      string
	ProductID     string
	Quantity      int64
	UnitPrice     float64
	Amount        float64
}

// ObservationsFromFacts joins sales facts to the store and product
// dimensions. Facts passed referential integrity to reach gold, so lookups
// only miss when dimensions were rebuilt out from under a stale fact; such
// rows keep empty attributes and still score on their measures.
func ObservationsFromFacts(facts []domain.SalesFact, stores []domain.StoreDimensionRow, products []domain.ProductDimensionRow) []Observation {
	cityByKey := make(map[int64]string, len(stores))
	for _, s := range stores {
		cityByKey[s.StoreKey] = s.City
	}
	productByKey := make(map[int64]domain.ProductDimensionRow, len(products))
	for _, p := range products {
		productByKey[p.ProductKey] = p
	}

	observations := make([]Observation, 0, len(facts))
	for _, f := range facts {
		product := productByKey[f.ProductKey]
		observations = append(observations, Observation{
			TransactionID: f.TransactionID,
			Date:          dateFromKey(f.DateKey),
			Hour:          f.EventTime.UTC().Hour(),
			City:          cityByKey[f.StoreKey],
			Category:      product.Category,
			ProductID:     product.ProductID,
			Quantity:      f.Quantity,
			UnitPrice:     f.UnitPrice,
			Amount:        f.Amount,
		})
	}
	return observations
}

func dateFromKey(key int64) time.Time {
	year := int(key / 10000)
	month := time.Month((key / 100) % 100)
	day := int(key % 100)
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
