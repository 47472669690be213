package bronze

import (
	"strings"

	"retailcli/pkg/contracts/domain"
)

// Column names shared by the source feeds.
const (
	ColTransactionID  = "transaction_id"
	ColShipmentID     = "shipment_id"
	ColCustomerID     = "customer_id"
	ColCustomerName   = "customer_name"
	ColCustomerCity   = "customer_city"
	ColProductID      = "product_id"
	ColProductName    = "product_name"
	ColCategory       = "category"
	ColStoreID        = "store_id"
	ColStoreCity      = "store_city"
	ColWarehouseID    = "warehouse_id"
	ColQuantity       = "quantity"
	ColQuantityOnHand = "quantity_on_hand"
	ColUnitPrice      = "unit_price"
	ColTimestamp      = "timestamp"
	ColDate           = "date"
	ColChannel        = "channel"
)

// Schema describes the column contract of one source feed. Required columns
// must appear in the file header; extra columns are tolerated and logged.
type Schema struct {
	Source   domain.SourceType
	Required []string
	Optional []string
}

var salesOptional = []string{
	ColChannel, ColCustomerName, ColCustomerCity, ColProductName, ColCategory, ColStoreCity,
}

var schemas = map[domain.SourceType]Schema{
	domain.SourcePOS: {
		Source: domain.SourcePOS,
		Required: []string{
			ColTransactionID, ColCustomerID, ColProductID, ColStoreID,
			ColQuantity, ColUnitPrice, ColTimestamp,
		},
		Optional: salesOptional,
	},
	domain.SourceWeb: {
		Source: domain.SourceWeb,
		Required: []string{
			ColTransactionID, ColCustomerID, ColProductID, ColStoreID,
			ColQuantity, ColUnitPrice, ColTimestamp,
		},
		Optional: salesOptional,
	},
	domain.SourceInventory: {
		Source: domain.SourceInventory,
		Required: []string{
			ColDate, ColStoreID, ColProductID, ColQuantityOnHand,
		},
		Optional: []string{ColStoreCity, ColProductName, ColCategory},
	},
	domain.SourceShipment: {
		Source: domain.SourceShipment,
		Required: []string{
			ColShipmentID, ColDate, ColWarehouseID, ColStoreID, ColProductID, ColQuantity,
		},
		Optional: []string{ColStoreCity},
	},
}

// SchemaFor returns the column contract for a source feed.
func SchemaFor(source domain.SourceType) (Schema, bool) {
	s, ok := schemas[source]
	return s, ok
}

// ValidateHeader checks a normalized file header against the schema, returning
// the required columns that are missing and the extra columns present beyond
// the documented set.
func (s Schema) ValidateHeader(header []string) (missing, extra []string) {
	known := make(map[string]bool, len(s.Required)+len(s.Optional))
	for _, col := range s.Required {
		known[col] = true
	}
	for _, col := range s.Optional {
		known[col] = true
	}

	present := make(map[string]bool, len(header))
	for _, col := range header {
		if col == "" {
			continue
		}
		present[col] = true
		if !known[col] {
			extra = append(extra, col)
		}
	}

	for _, col := range s.Required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing, extra
}

// NormalizeHeader lowercases and trims column names and turns inner spaces
// into underscores, so "Transaction ID" and "transaction_id" land on the same
// key. A UTF-8 byte order mark on the first column is stripped.
func NormalizeHeader(header []string) []string {
	normalized := make([]string, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		col = strings.ToLower(strings.TrimSpace(col))
		col = strings.ReplaceAll(col, " ", "_")
		normalized[i] = col
	}
	return normalized
}
