package quality

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/internal/config"
	apperrors "retailcli/internal/errors"
	"retailcli/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, rules ...Rule) *Engine {
	t.Helper()
	engine, err := NewEngine(&RuleSet{Version: 1, Rules: rules}, config.QualityConfig{SampleSize: 5}, discardLogger())
	require.NoError(t, err)
	return engine
}

func saleRow(key string, fields map[string]string) Row {
	return Row{Key: key, Kind: string(domain.RecordKindSale), Fields: fields}
}

func TestNewEngineConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{
			name: "non numeric threshold",
			rule: Rule{Name: "r1", Layers: []string{"bronze"}, Field: "unit_price",
				Operator: "gte", Value: "cheap", Action: "flag"},
		},
		{
			name: "invalid pattern",
			rule: Rule{Name: "r1", Layers: []string{"bronze"}, Field: "transaction_id",
				Operator: "matches", Value: "[T", Action: "flag"},
		},
		{
			name: "empty one_of",
			rule: Rule{Name: "r1", Layers: []string{"bronze"}, Field: "channel",
				Operator: "one_of", Value: " , ", Action: "flag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(&RuleSet{Version: 1, Rules: []Rule{tt.rule}}, config.QualityConfig{}, discardLogger())
			require.Error(t, err)
			assert.True(t, apperrors.IsFatal(err))
		})
	}
}

func TestEvaluateOperators(t *testing.T) {
	tests := []struct {
		name         string
		rule         Rule
		fields       map[string]string
		wantAffected int
	}{
		{
			name: "not_null fails missing field",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "customer_id",
				Operator: "not_null", Action: "reject"},
			fields:       map[string]string{"transaction_id": "T1"},
			wantAffected: 1,
		},
		{
			name: "not_null fails empty value",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "customer_id",
				Operator: "not_null", Action: "reject"},
			fields:       map[string]string{"customer_id": "  "},
			wantAffected: 1,
		},
		{
			name: "not_null passes present value",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "customer_id",
				Operator: "not_null", Action: "reject"},
			fields:       map[string]string{"customer_id": "C1"},
			wantAffected: 0,
		},
		{
			name: "gte fails below threshold",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "unit_price",
				Operator: "gte", Value: "0", Action: "quarantine"},
			fields:       map[string]string{"unit_price": "-5"},
			wantAffected: 1,
		},
		{
			name: "gte passes at threshold",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "unit_price",
				Operator: "gte", Value: "0", Action: "quarantine"},
			fields:       map[string]string{"unit_price": "0"},
			wantAffected: 0,
		},
		{
			name: "gte skips rows without the field",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "unit_price",
				Operator: "gte", Value: "0", Action: "quarantine"},
			fields:       map[string]string{"quantity_on_hand": "12"},
			wantAffected: 0,
		},
		{
			name: "gte fails unparseable value",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "unit_price",
				Operator: "gte", Value: "0", Action: "quarantine"},
			fields:       map[string]string{"unit_price": "free"},
			wantAffected: 1,
		},
		{
			name: "gt excludes the threshold",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "quantity",
				Operator: "gt", Value: "0", Action: "quarantine"},
			fields:       map[string]string{"quantity": "0"},
			wantAffected: 1,
		},
		{
			name: "lt fails values at or above threshold",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "quantity",
				Operator: "lt", Value: "1000", Action: "flag"},
			fields:       map[string]string{"quantity": "1000"},
			wantAffected: 1,
		},
		{
			name: "lte passes at threshold",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "quantity",
				Operator: "lte", Value: "1000", Action: "flag"},
			fields:       map[string]string{"quantity": "1000"},
			wantAffected: 0,
		},
		{
			name: "eq fails mismatched value",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "currency",
				Operator: "eq", Value: "INR", Action: "flag"},
			fields:       map[string]string{"currency": "USD"},
			wantAffected: 1,
		},
		{
			name: "neq fails matching value",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "store_id",
				Operator: "neq", Value: "UNKNOWN", Action: "flag"},
			fields:       map[string]string{"store_id": "UNKNOWN"},
			wantAffected: 1,
		},
		{
			name: "one_of fails values outside the set",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "channel",
				Operator: "one_of", Value: "POS,Web", Action: "flag"},
			fields:       map[string]string{"channel": "Kiosk"},
			wantAffected: 1,
		},
		{
			name: "one_of passes member values",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "channel",
				Operator: "one_of", Value: "POS,Web", Action: "flag"},
			fields:       map[string]string{"channel": "Web"},
			wantAffected: 0,
		},
		{
			name: "matches fails non conforming ids",
			rule: Rule{Name: "r", Layers: []string{"bronze"}, Field: "transaction_id",
				Operator: "matches", Value: `^T\d+$`, Action: "report-only"},
			fields:       map[string]string{"transaction_id": "ORDER-9"},
			wantAffected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, tt.rule)
			results := engine.Evaluate(domain.LayerBronze, []Row{saleRow("K1", tt.fields)})

			require.Len(t, results, 1)
			assert.Equal(t, tt.wantAffected, results[0].RowsAffected)
			assert.Equal(t, tt.wantAffected == 0, results[0].Passed)
			assert.Equal(t, domain.RuleAction(tt.rule.Action), results[0].Action)
		})
	}
}

func TestEvaluateFiltersByLayer(t *testing.T) {
	engine := newTestEngine(t,
		Rule{Name: "bronze_only", Layers: []string{"bronze"}, Field: "unit_price",
			Operator: "gte", Value: "0", Action: "quarantine"},
		Rule{Name: "both", Layers: []string{"bronze", "silver"}, Field: "store_id",
			Operator: "not_null", Action: "reject"},
		Rule{Name: "gold_only", Layers: []string{"gold"}, Field: "amount",
			Operator: "gte", Value: "0", Action: "report-only"},
	)

	rows := []Row{saleRow("T1", map[string]string{"unit_price": "10", "store_id": "S1"})}

	bronze := engine.Evaluate(domain.LayerBronze, rows)
	require.Len(t, bronze, 2)
	assert.Equal(t, "bronze_only", bronze[0].Name)
	assert.Equal(t, "both", bronze[1].Name)

	silver := engine.Evaluate(domain.LayerSilver, rows)
	require.Len(t, silver, 1)
	assert.Equal(t, "both", silver[0].Name)

	gold := engine.Evaluate(domain.LayerGold, rows)
	require.Len(t, gold, 1)
	assert.Equal(t, "gold_only", gold[0].Name)
}

func TestEvaluateFiltersByKind(t *testing.T) {
	engine := newTestEngine(t, Rule{
		Name: "sale_price", Layers: []string{"bronze"}, Kinds: []string{"sale"},
		Field: "unit_price", Operator: "gte", Value: "0", Action: "quarantine",
	})

	rows := []Row{
		saleRow("T1", map[string]string{"unit_price": "-5"}),
		{Key: "B1#2", Kind: string(domain.RecordKindInventory),
			Fields: map[string]string{"unit_price": "-9"}},
	}

	results := engine.Evaluate(domain.LayerBronze, rows)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].RowsAffected)
	assert.Equal(t, []string{"T1"}, results[0].SampleKeys)
}

func TestEvaluateNegativePriceOverRawRows(t *testing.T) {
	records := []domain.RawRecord{
		{Source: domain.SourcePOS, Batch: "pos_1", RowNumber: 1, Fields: map[string]string{
			"transaction_id": "T1", "unit_price": "-5", "quantity": "2"}},
		{Source: domain.SourcePOS, Batch: "pos_1", RowNumber: 2, Fields: map[string]string{
			"transaction_id": "T2", "unit_price": "49.99", "quantity": "1"}},
	}
	engine := newTestEngine(t, Rule{
		Name: "non_negative_unit_price", Layers: []string{"bronze"}, Kinds: []string{"sale"},
		Field: "unit_price", Operator: "gte", Value: "0", Action: "quarantine",
	})

	results := engine.Evaluate(domain.LayerBronze, FromRawRecords(records))

	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.GreaterOrEqual(t, results[0].RowsAffected, 1)
	assert.Equal(t, []string{"T1"}, results[0].SampleKeys)
}

func TestEvaluateCapsSampleKeys(t *testing.T) {
	rows := make([]Row, 0, 8)
	for i := 0; i < 8; i++ {
		rows = append(rows, saleRow(fmt.Sprintf("T%d", i+1), map[string]string{"unit_price": "-1"}))
	}
	engine := newTestEngine(t, Rule{
		Name: "r", Layers: []string{"bronze"}, Field: "unit_price",
		Operator: "gte", Value: "0", Action: "quarantine",
	})

	results := engine.Evaluate(domain.LayerBronze, rows)

	require.Len(t, results, 1)
	assert.Equal(t, 8, results[0].RowsAffected)
	assert.Len(t, results[0].SampleKeys, 5)
}

func TestEvaluateOrderInsensitive(t *testing.T) {
	rule := Rule{Name: "r", Layers: []string{"bronze"}, Field: "unit_price",
		Operator: "gte", Value: "0", Action: "quarantine"}
	engine := newTestEngine(t, rule)

	forward := []Row{
		saleRow("T1", map[string]string{"unit_price": "-5"}),
		saleRow("T2", map[string]string{"unit_price": "3"}),
		saleRow("T3", map[string]string{"unit_price": "-1"}),
	}
	reversed := []Row{forward[2], forward[1], forward[0]}

	a := engine.Evaluate(domain.LayerBronze, forward)
	b := engine.Evaluate(domain.LayerBronze, reversed)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].RowsAffected, b[0].RowsAffected)
	assert.Equal(t, a[0].Passed, b[0].Passed)
}

func TestEvaluateEmptyRows(t *testing.T) {
	engine := newTestEngine(t, Rule{
		Name: "r", Layers: []string{"silver"}, Field: "store_id",
		Operator: "not_null", Action: "reject",
	})

	results := engine.Evaluate(domain.LayerSilver, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Zero(t, results[0].RowsAffected)
	assert.Empty(t, results[0].SampleKeys)
}

func TestEvaluateManyRulesKeepFileOrder(t *testing.T) {
	rules := make([]Rule, 0, 4)
	for i := 1; i <= 4; i++ {
		rules = append(rules, Rule{
			Name:   fmt.Sprintf("rule_%d", i),
			Layers: []string{"silver"}, Field: "store_id",
			Operator: "not_null", Action: "flag",
		})
	}
	engine := newTestEngine(t, rules...)

	results := engine.Evaluate(domain.LayerSilver, nil)

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("rule_%d", i+1), r.Name)
	}
}
