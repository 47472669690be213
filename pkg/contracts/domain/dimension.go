package domain

import (
	"time"
)

// DateDimensionRow is one calendar day with derived attributes. Its key is the
// date itself encoded as YYYYMMDD, which keeps key assignment deterministic
// across runs.
type DateDimensionRow struct {
	DateKey   int64     `json:"date_key"`
	Date      time.Time `json:"date"`
	Day       int       `json:"day"`
	Month     int       `json:"month"`
	MonthName string    `json:"month_name"`
	Year      int       `json:"year"`
	Quarter   int       `json:"quarter"`
	DayOfWeek int       `json:"day_of_week"`
	DayName   string    `json:"day_name"`
	IsWeekend bool      `json:"is_weekend"`
	IsHoliday bool      `json:"is_holiday"`
}

// ProductDimensionRow is a product reference entity. Surrogate keys are minted
// monotonically above the prior maximum and never reused or renumbered.
type ProductDimensionRow struct {
	ProductKey int64     `json:"product_key"`
	ProductID  string    `json:"product_id" validate:"required"`
	Name       string    `json:"name,omitempty"`
	Category   string    `json:"category,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
}

// StoreDimensionRow is a store reference entity.
type StoreDimensionRow struct {
	StoreKey  int64     `json:"store_key"`
	StoreID   string    `json:"store_id" validate:"required"`
	City      string    `json:"city,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
}

// CustomerDimensionRow is one version of a customer's descriptive attributes.
// For every customer exactly one row is current at any point in time, and the
// versions partition [first ValidFrom, now) without gaps or overlaps.
type CustomerDimensionRow struct {
	CustomerKey int64      `json:"customer_key"`
	CustomerID  string     `json:"customer_id" validate:"required"`
	Name        string     `json:"name,omitempty"`
	City        string     `json:"city,omitempty"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
	IsCurrent   bool       `json:"is_current"`
}

// CustomerSnapshot is one observation of a customer's attributes derived from
// cleaned sales records, ordered by event time then input row order.
type CustomerSnapshot struct {
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name,omitempty"`
	City       string    `json:"city,omitempty"`
	EventTime  time.Time `json:"event_time"`
	RowNumber  int       `json:"row_number"`
}

// CustomerDelta reports the version churn one run produced.
type CustomerDelta struct {
	Opened       []CustomerDimensionRow `json:"opened"`
	Closed       []CustomerDimensionRow `json:"closed"`
	Corrected    []CustomerDimensionRow `json:"corrected"`
	TieBreakRule string                 `json:"tie_break_rule"`
}
