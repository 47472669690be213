package analytics

import (
	"log/slog"
	"time"

	"retailcli/internal/config"
	"retailcli/pkg/contracts/domain"
)

// saleLine is one fact joined back to its business entities. The summaries
// group by natural keys, not surrogate keys, so a dimension rebuild between
// runs cannot shuffle the aggregates.
type saleLine struct {
	TransactionID string
	Date          time.Time
	City          string
	Category      string
	ProductID     string
	CustomerID    string
	Quantity      int64
	Amount        float64
}

// Inputs carries the gold snapshots one summarization pass reads.
type Inputs struct {
	Facts     []domain.SalesFact
	Stores    []domain.StoreDimensionRow
	Products  []domain.ProductDimensionRow
	Customers []domain.CustomerDimensionRow
}

// Summarizer computes the KPI report for a run.
type Summarizer struct {
	cfg    config.AnalyticsConfig
	logger *slog.Logger
}

// NewSummarizer returns a summarizer with the given tuning.
func NewSummarizer(cfg config.AnalyticsConfig, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{cfg: cfg, logger: logger}
}

// Summarize builds the full KPI report as of the given timestamp. Recency
// scores count days back from asOf, so reruns with the same inputs and
// timestamp reproduce the same report.
func (s *Summarizer) Summarize(runID string, in Inputs, asOf time.Time) *domain.KPIReport {
	lines := joinFacts(in)

	report := &domain.KPIReport{
		RunID:             runID,
		GeneratedAt:       asOf.UTC(),
		RevenueByCity:     dailyRevenue(lines, func(l saleLine) string { return l.City }, true),
		RevenueByCategory: dailyRevenue(lines, func(l saleLine) string { return l.Category }, false),
	}
	transactions := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		report.TotalRevenue += l.Amount
		report.TotalUnits += l.Quantity
		transactions[l.TransactionID] = struct{}{}
	}
	report.Transactions = len(transactions)

	if s.cfg.RFMEnabled {
		report.RFM = scoreRFM(lines, asOf)
	}
	if s.cfg.BasketEnabled {
		report.FrequentPairs = minePairs(lines, s.cfg.BasketMinSupport, s.cfg.BasketTopPairs)
	}

	s.logger.Info("kpi summary computed",
		slog.Int("facts", len(in.Facts)),
		slog.Int("transactions", report.Transactions),
		slog.Int("rfm_customers", len(report.RFM)),
		slog.Int("frequent_pairs", len(report.FrequentPairs)))
	return report
}

// joinFacts resolves each fact's surrogate keys against the dimension
// snapshots. Customer keys resolve through whichever version minted them;
// the natural customer_id is version-invariant, which is all RFM needs.
func joinFacts(in Inputs) []saleLine {
	cityByKey := make(map[int64]string, len(in.Stores))
	for _, st := range in.Stores {
		cityByKey[st.StoreKey] = st.City
	}
	productByKey := make(map[int64]domain.ProductDimensionRow, len(in.Products))
	for _, p := range in.Products {
		productByKey[p.ProductKey] = p
	}
	customerByKey := make(map[int64]string, len(in.Customers))
	for _, c := range in.Customers {
		customerByKey[c.CustomerKey] = c.CustomerID
	}

	lines := make([]saleLine, 0, len(in.Facts))
	for _, f := range in.Facts {
		product := productByKey[f.ProductKey]
		lines = append(lines, saleLine{
			TransactionID: f.TransactionID,
			Date:          dayFromKey(f.DateKey),
			City:          cityByKey[f.StoreKey],
			Category:      product.Category,
			ProductID:     product.ProductID,
			CustomerID:    customerByKey[f.CustomerKey],
			Quantity:      f.Quantity,
			Amount:        f.Amount,
		})
	}
	return lines
}

func dayFromKey(key int64) time.Time {
	return time.Date(int(key/10000), time.Month((key/100)%100), int(key%100),
		0, 0, 0, 0, time.UTC)
}
