package domain

import (
	"strconv"
	"time"
)

// SourceType identifies the feed a raw record was landed from.
type SourceType string

const (
	SourcePOS       SourceType = "pos"
	SourceWeb       SourceType = "web"
	SourceInventory SourceType = "inventory"
	SourceShipment  SourceType = "shipment"
)

// RecordKind classifies a cleaned record.
type RecordKind string

const (
	RecordKindSale      RecordKind = "sale"
	RecordKindInventory RecordKind = "inventory_snapshot"
	RecordKindShipment  RecordKind = "shipment"
)

// Channel tags the sales channel a transaction came through.
type Channel string

const (
	ChannelPOS Channel = "POS"
	ChannelWeb Channel = "Web"
)

// RawRecord is one row from a landed source file. Fields are kept as raw
// strings keyed by column name; the record is never mutated after landing.
type RawRecord struct {
	Source     SourceType        `json:"source"`
	Batch      string            `json:"batch"`
	RowNumber  int               `json:"row_number"`
	Fields     map[string]string `json:"fields"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// Field returns the named column value and whether it was present and non-empty.
func (r RawRecord) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Key identifies the record within its run for quarantine samples and logs.
func (r RawRecord) Key() string {
	if id, ok := r.Field("transaction_id"); ok {
		return id
	}
	if id, ok := r.Field("shipment_id"); ok {
		return id
	}
	return r.Batch + "#" + strconv.Itoa(r.RowNumber)
}

// SilverRecord is a cleaned, typed record of one kind. Sales carry a channel
// tag; inventory and shipment records leave sale-only fields zero. Records are
// immutable once created and superseded, never mutated, by reruns.
type SilverRecord struct {
	Kind          RecordKind `json:"kind"`
	TransactionID string     `json:"transaction_id,omitempty"`
	ShipmentID    string     `json:"shipment_id,omitempty"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerCity  string     `json:"customer_city,omitempty"`
	ProductID     string     `json:"product_id"`
	ProductName   string     `json:"product_name,omitempty"`
	Category      string     `json:"category,omitempty"`
	StoreID       string     `json:"store_id"`
	StoreCity     string     `json:"store_city,omitempty"`
	WarehouseID   string     `json:"warehouse_id,omitempty"`
	Channel       Channel    `json:"channel,omitempty"`
	Quantity      int64      `json:"quantity"`
	UnitPrice     float64    `json:"unit_price"`
	Amount        float64    `json:"amount"`
	EventTime     time.Time  `json:"event_time"`
	EventDate     time.Time  `json:"event_date"`
	SourceBatch   string     `json:"source_batch"`
	RowNumber     int        `json:"row_number"`
	IngestedAt    time.Time  `json:"ingested_at"`
}

// ViolationType is the quarantine/error taxonomy shared by the cleaner, the
// fact builder, and the quality report.
type ViolationType string

const (
	ViolationSchema               ViolationType = "SchemaViolation"
	ViolationRange                ViolationType = "RangeViolation"
	ViolationFutureDate           ViolationType = "FutureDateViolation"
	ViolationReferentialIntegrity ViolationType = "ReferentialIntegrityViolation"
	ViolationDuplicateRecord      ViolationType = "DuplicateRecord"
	ViolationIngestionIO          ViolationType = "IngestionIOError"
	ViolationRuleConfiguration    ViolationType = "RuleConfigurationError"
)

// QuarantinedRecord pairs a rejected raw record with the reason it was set aside.
type QuarantinedRecord struct {
	Record RawRecord     `json:"record"`
	Reason ViolationType `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}
