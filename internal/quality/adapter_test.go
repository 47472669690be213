package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/pkg/contracts/domain"
)

func TestFromRawRecords(t *testing.T) {
	records := []domain.RawRecord{
		{Source: domain.SourceWeb, Batch: "web_1", RowNumber: 1,
			Fields: map[string]string{"transaction_id": "T1", "unit_price": "9.99"}},
		{Source: domain.SourceInventory, Batch: "inv_1", RowNumber: 3,
			Fields: map[string]string{"quantity_on_hand": "12"}},
		{Source: domain.SourceShipment, Batch: "shp_1", RowNumber: 2,
			Fields: map[string]string{"shipment_id": "SH1"}},
	}

	rows := FromRawRecords(records)

	require.Len(t, rows, 3)
	assert.Equal(t, "T1", rows[0].Key)
	assert.Equal(t, string(domain.RecordKindSale), rows[0].Kind)
	assert.Equal(t, "inv_1#3", rows[1].Key)
	assert.Equal(t, string(domain.RecordKindInventory), rows[1].Kind)
	assert.Equal(t, "SH1", rows[2].Key)
	assert.Equal(t, string(domain.RecordKindShipment), rows[2].Kind)
}

func TestFromSilverRecords(t *testing.T) {
	eventTime := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	eventDate := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	records := []domain.SilverRecord{
		{
			Kind: domain.RecordKindSale, TransactionID: "T1", CustomerID: "C1",
			ProductID: "P1", StoreID: "S1", Channel: domain.ChannelPOS,
			Quantity: 2, UnitPrice: 49.99, Amount: 99.98,
			EventTime: eventTime, EventDate: eventDate,
			SourceBatch: "pos_1", RowNumber: 1,
		},
		{
			Kind: domain.RecordKindInventory, ProductID: "P2", StoreID: "S1",
			Quantity: 40, EventDate: eventDate, SourceBatch: "inv_1", RowNumber: 2,
		},
	}

	rows := FromSilverRecords(records)

	require.Len(t, rows, 2)

	sale := rows[0]
	assert.Equal(t, "T1", sale.Key)
	assert.Equal(t, string(domain.RecordKindSale), sale.Kind)
	assert.Equal(t, "2", sale.Fields["quantity"])
	assert.Equal(t, "49.99", sale.Fields["unit_price"])
	assert.Equal(t, "99.98", sale.Fields["amount"])
	assert.Equal(t, "POS", sale.Fields["channel"])
	assert.Equal(t, "2025-03-14", sale.Fields["event_date"])

	inv := rows[1]
	assert.Equal(t, "inv_1#2", inv.Key)
	assert.Equal(t, "40", inv.Fields["quantity_on_hand"])
	_, hasQuantity := inv.Fields["quantity"]
	assert.False(t, hasQuantity)
	_, hasPrice := inv.Fields["unit_price"]
	assert.False(t, hasPrice)
}

func TestFromSalesFacts(t *testing.T) {
	facts := []domain.SalesFact{{
		TransactionID: "T1", DateKey: 20250314, CustomerKey: 2, ProductKey: 1,
		StoreKey: 1, Channel: domain.ChannelWeb, Quantity: 3, UnitPrice: 10,
		Amount: 30, EventTime: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
	}}

	rows := FromSalesFacts(facts)

	require.Len(t, rows, 1)
	assert.Equal(t, "T1", rows[0].Key)
	assert.Equal(t, "20250314", rows[0].Fields["date_key"])
	assert.Equal(t, "Web", rows[0].Fields["channel"])
	assert.Equal(t, "30", rows[0].Fields["amount"])
}
