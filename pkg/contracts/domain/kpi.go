package domain

import (
	"time"
)

// DailyRevenuePoint is one day's revenue for a city or category grouping.
// These aggregates double as the anomaly engine's baseline series.
type DailyRevenuePoint struct {
	Date         time.Time `json:"date"`
	City         string    `json:"city,omitempty"`
	Category     string    `json:"category,omitempty"`
	Revenue      float64   `json:"revenue"`
	Transactions int       `json:"transactions"`
	Units        int64     `json:"units"`
}

// RFMScore carries one customer's Recency/Frequency/Monetary quintile scores.
type RFMScore struct {
	CustomerID     string    `json:"customer_id"`
	LastPurchase   time.Time `json:"last_purchase"`
	RecencyDays    int       `json:"recency_days"`
	Frequency      int       `json:"frequency"`
	Monetary       float64   `json:"monetary"`
	RecencyScore   int       `json:"recency_score"`
	FrequencyScore int       `json:"frequency_score"`
	MonetaryScore  int       `json:"monetary_score"`
	Segment        string    `json:"segment"`
}

// BasketPair is one frequently co-purchased product pair.
type BasketPair struct {
	ProductA   string  `json:"product_a"`
	ProductB   string  `json:"product_b"`
	PairCount  int     `json:"pair_count"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
}

// KPIReport bundles the derived business metrics written after each run.
type KPIReport struct {
	RunID             string              `json:"run_id,omitempty"`
	GeneratedAt       time.Time           `json:"generated_at"`
	TotalRevenue      float64             `json:"total_revenue"`
	TotalUnits        int64               `json:"total_units"`
	Transactions      int                 `json:"transactions"`
	RevenueByCity     []DailyRevenuePoint `json:"revenue_by_city"`
	RevenueByCategory []DailyRevenuePoint `json:"revenue_by_category"`
	RFM               []RFMScore          `json:"rfm,omitempty"`
	FrequentPairs     []BasketPair        `json:"frequent_pairs,omitempty"`
}
