package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/internal/config"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

const bronzeSalesCSV = `transaction_id,customer_id,customer_name,customer_city,product_id,product_name,category,store_id,store_city,quantity,unit_price,timestamp
T1,C1,Asha Rao,Mumbai,P1,Masala Chai,Beverages,S1,Mumbai,2,12.50,2025-07-15T09:15:00Z
T2,C2,Vikram Joshi,Delhi,P2,Basmati Rice 5kg,Staples,S2,Delhi,1,6.00,2025-07-15T10:02:00Z
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *lake.Store {
	t.Helper()
	store := lake.NewStore(config.LakeConfig{DataDir: t.TempDir(), Compression: "none"}, discardLogger())
	require.NoError(t, store.EnsureLayout())
	return store
}

func TestParseLayer(t *testing.T) {
	tests := []struct {
		input   string
		want    domain.Layer
		wantErr bool
	}{
		{input: "bronze", want: domain.LayerBronze},
		{input: "silver", want: domain.LayerSilver},
		{input: "gold", want: domain.LayerGold},
		{input: "platinum", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLayer(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLayerRowsBronze(t *testing.T) {
	store := testStore(t)
	path := filepath.Join(store.BronzeDir(), "sales_pos_20250715.csv")
	require.NoError(t, os.WriteFile(path, []byte(bronzeSalesCSV), 0o644))

	rows, err := layerRows(context.Background(), domain.LayerBronze, store, config.Default(), discardLogger())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, string(domain.RecordKindSale), rows[0].Kind)
	assert.Equal(t, "T1", rows[0].Fields["transaction_id"])
}

func TestLayerRowsEmptyLake(t *testing.T) {
	store := testStore(t)

	for _, layer := range []domain.Layer{domain.LayerBronze, domain.LayerSilver, domain.LayerGold} {
		rows, err := layerRows(context.Background(), layer, store, config.Default(), discardLogger())
		require.NoError(t, err, "layer %s", layer)
		assert.Empty(t, rows, "layer %s", layer)
	}
}
