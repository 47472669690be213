package domain

import (
	"fmt"
	"time"
)

// SalesFact is one sale line joined to its dimension keys. EventTime is kept
// as a degenerate attribute for hour-of-day analytics.
type SalesFact struct {
	TransactionID string    `json:"transaction_id"`
	DateKey       int64     `json:"date_key"`
	CustomerKey   int64     `json:"customer_key"`
	ProductKey    int64     `json:"product_key"`
	StoreKey      int64     `json:"store_key"`
	Channel       Channel   `json:"channel"`
	Quantity      int64     `json:"quantity"`
	UnitPrice     float64   `json:"unit_price"`
	Amount        float64   `json:"amount"`
	EventTime     time.Time `json:"event_time"`
}

// InventoryFact is one stock-level observation for a store/product/day.
type InventoryFact struct {
	DateKey        int64 `json:"date_key"`
	StoreKey       int64 `json:"store_key"`
	ProductKey     int64 `json:"product_key"`
	QuantityOnHand int64 `json:"quantity_on_hand"`
}

// ShipmentFact is one warehouse-to-store shipment line. The warehouse stays a
// degenerate attribute; only date, store, and product are dimensioned.
type ShipmentFact struct {
	ShipmentID  string `json:"shipment_id"`
	DateKey     int64  `json:"date_key"`
	StoreKey    int64  `json:"store_key"`
	ProductKey  int64  `json:"product_key"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    int64  `json:"quantity"`
}

// Partition names one year/month slice of a fact table.
type Partition struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Path renders the partition directory fragment, e.g. "year=2024/month=03".
func (p Partition) Path() string {
	return fmt.Sprintf("year=%04d/month=%02d", p.Year, p.Month)
}
