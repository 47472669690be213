package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"retailcli/internal/config"
	"retailcli/pkg/contracts/domain"
)

// Severity cutpoints over the normalized exceedance ratio. A ratio of 1.0
// sits exactly on a detector's threshold; anything below stays unflagged.
// The same cutpoints apply to every detector.
const (
	cutCritical = 4.0
	cutHigh     = 2.5
	cutMedium   = 1.5
	cutLow      = 1.0
)

// minBaselineDays is the fewest trailing days that make a revenue baseline
// worth scoring against.
const minBaselineDays = 3

// minCohortSize is the fewest observations a category or product needs before
// quartiles and medians say anything about its members.
const minCohortSize = 4

// forestSeed fixes the ensemble's random source so a rerun over the same gold
// snapshot reproduces the same findings.
const forestSeed = 20240101

// Engine runs the detectors with one shared configuration.
type Engine struct {
	cfg    config.AnomalyConfig
	logger *slog.Logger
}

// NewEngine returns an engine with the given thresholds.
func NewEngine(cfg config.AnomalyConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Detect runs every detector over the observations and merges overlapping
// findings by transaction or city-day key, keeping the highest severity.
// Results order by severity, then score, then key, so runs reproduce.
func (e *Engine) Detect(observations []Observation) []domain.AnomalyRecord {
	var records []domain.AnomalyRecord
	records = append(records, e.detectRevenueShifts(observations)...)
	records = append(records, e.detectQuantityOutliers(observations)...)
	records = append(records, e.detectPriceAnomalies(observations)...)
	records = append(records, e.detectMultivariate(observations)...)

	merged := mergeRecords(records)
	e.logger.Info("anomaly detection completed",
		slog.Int("observations", len(observations)),
		slog.Int("raw_findings", len(records)),
		slog.Int("merged", len(merged)))
	return merged
}

// detectRevenueShifts z-scores each city's daily revenue against the mean and
// deviation of its trailing baseline window. A variance floor of 1% of the
// baseline mean keeps near-constant histories scoreable instead of dividing
// by zero.
func (e *Engine) detectRevenueShifts(observations []Observation) []domain.AnomalyRecord {
	type cityDay struct {
		day     time.Time
		revenue float64
	}
	daily := make(map[string]map[time.Time]float64)
	for _, obs := range observations {
		if obs.City == "" {
			continue
		}
		if daily[obs.City] == nil {
			daily[obs.City] = make(map[time.Time]float64)
		}
		daily[obs.City][obs.Date] += obs.Amount
	}

	var records []domain.AnomalyRecord
	for city, byDay := range daily {
		days := make([]cityDay, 0, len(byDay))
		for day, revenue := range byDay {
			days = append(days, cityDay{day: day, revenue: revenue})
		}
		sort.Slice(days, func(i, j int) bool { return days[i].day.Before(days[j].day) })

		for i := range days {
			start := i - e.cfg.BaselineDays
			if start < 0 {
				start = 0
			}
			baseline := make([]float64, 0, i-start)
			for _, prior := range days[start:i] {
				baseline = append(baseline, prior.revenue)
			}
			if len(baseline) < minBaselineDays {
				continue
			}

			mean := Mean(baseline)
			scale := StdDev(baseline, mean)
			if floor := math.Max(0.01*math.Abs(mean), 1); scale < floor {
				scale = floor
			}
			z := (days[i].revenue - mean) / scale
			ratio := math.Abs(z) / e.cfg.ZScoreThreshold
			if ratio < cutLow {
				continue
			}

			anomalyType := domain.AnomalyRevenueSpike
			if z < 0 {
				anomalyType = domain.AnomalyRevenueDrop
			}
			records = append(records, domain.AnomalyRecord{
				Type:     anomalyType,
				Severity: severityFor(ratio),
				Score:    ratio,
				City:     city,
				Date:     days[i].day,
				Description: fmt.Sprintf(
					"daily revenue %.2f for %s deviates %.1f sigma from trailing mean %.2f",
					days[i].revenue, city, z, mean),
			})
		}
	}
	return records
}

// detectQuantityOutliers fences quantities per product category at
// quartile +/- multiplier*IQR. Zero-IQR cohorts fall back to a one-unit
// fence scale so a burst in an otherwise constant category still flags.
func (e *Engine) detectQuantityOutliers(observations []Observation) []domain.AnomalyRecord {
	byCategory := make(map[string][]float64)
	for _, obs := range observations {
		byCategory[obs.Category] = append(byCategory[obs.Category], float64(obs.Quantity))
	}

	var records []domain.AnomalyRecord
	for category, quantities := range byCategory {
		if len(quantities) < minCohortSize {
			continue
		}
		q1 := Percentile(quantities, 0.25)
		q3 := Percentile(quantities, 0.75)
		fenceScale := e.cfg.IQRMultiplier * (q3 - q1)
		if fenceScale <= 0 {
			fenceScale = e.cfg.IQRMultiplier
		}
		upper := q3 + fenceScale
		lower := q1 - fenceScale

		for _, obs := range observations {
			if obs.Category != category {
				continue
			}
			v := float64(obs.Quantity)
			var excess float64
			switch {
			case v > upper:
				excess = v - q3
			case v < lower:
				excess = q1 - v
			default:
				continue
			}
			ratio := excess / fenceScale
			records = append(records, domain.AnomalyRecord{
				Type:          domain.AnomalyQuantityOutlier,
				Severity:      severityFor(ratio),
				Score:         ratio,
				TransactionID: obs.TransactionID,
				City:          obs.City,
				ProductID:     obs.ProductID,
				Date:          obs.Date,
				Description: fmt.Sprintf(
					"quantity %d outside category %q fence [%.1f, %.1f]",
					obs.Quantity, category, lower, upper),
			})
		}
	}
	return records
}

// detectPriceAnomalies flags unit prices deviating from the product's
// historical median by more than the configured percentage.
func (e *Engine) detectPriceAnomalies(observations []Observation) []domain.AnomalyRecord {
	byProduct := make(map[string][]float64)
	for _, obs := range observations {
		if obs.ProductID == "" {
			continue
		}
		byProduct[obs.ProductID] = append(byProduct[obs.ProductID], obs.UnitPrice)
	}

	var records []domain.AnomalyRecord
	for productID, prices := range byProduct {
		if len(prices) < minCohortSize {
			continue
		}
		median := Median(prices)
		if median <= 0 {
			continue
		}
		threshold := median * e.cfg.PriceDeviationPct / 100

		for _, obs := range observations {
			if obs.ProductID != productID {
				continue
			}
			ratio := math.Abs(obs.UnitPrice-median) / threshold
			if ratio < cutLow {
				continue
			}
			records = append(records, domain.AnomalyRecord{
				Type:          domain.AnomalyPriceAnomaly,
				Severity:      severityFor(ratio),
				Score:         ratio,
				TransactionID: obs.TransactionID,
				City:          obs.City,
				ProductID:     productID,
				Date:          obs.Date,
				Description: fmt.Sprintf(
					"unit price %.2f deviates %.0f%% from product %s median %.2f",
					obs.UnitPrice, 100*math.Abs(obs.UnitPrice-median)/median, productID, median),
			})
		}
	}
	return records
}

// detectMultivariate scores each observation's isolation depth over
// (amount, quantity, unit price, hour, city frequency). Low-density points
// isolate in few splits and score near 1.
func (e *Engine) detectMultivariate(observations []Observation) []domain.AnomalyRecord {
	if len(observations) < 2*minCohortSize {
		return nil
	}

	cityCounts := make(map[string]int)
	for _, obs := range observations {
		cityCounts[obs.City]++
	}
	features := make([][]float64, len(observations))
	for i, obs := range observations {
		features[i] = []float64{
			obs.Amount,
			float64(obs.Quantity),
			obs.UnitPrice,
			float64(obs.Hour),
			float64(cityCounts[obs.City]) / float64(len(observations)),
		}
	}

	forest := growForest(features, e.cfg.EnsembleTrees, forestSeed)
	var records []domain.AnomalyRecord
	for i, obs := range observations {
		score := forest.score(features[i])
		ratio := score / e.cfg.EnsembleCutoff
		if ratio < cutLow {
			continue
		}
		records = append(records, domain.AnomalyRecord{
			Type:          domain.AnomalyMultivariate,
			Severity:      severityFor(ratio),
			Score:         ratio,
			TransactionID: obs.TransactionID,
			City:          obs.City,
			ProductID:     obs.ProductID,
			Date:          obs.Date,
			Description: fmt.Sprintf(
				"isolation score %.3f across amount/quantity/price/hour/city profile", score),
		})
	}
	return records
}

// severityFor maps an exceedance ratio at or beyond 1.0 to a severity band.
func severityFor(ratio float64) domain.Severity {
	switch {
	case ratio >= cutCritical:
		return domain.SeverityCritical
	case ratio >= cutHigh:
		return domain.SeverityHigh
	case ratio >= cutMedium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// mergeRecords collapses findings sharing a merge key to the highest
// severity, breaking ties on score, and orders the result by severity, score,
// then key.
func mergeRecords(records []domain.AnomalyRecord) []domain.AnomalyRecord {
	byKey := make(map[string]domain.AnomalyRecord, len(records))
	for _, rec := range records {
		key := rec.MergeKey()
		current, exists := byKey[key]
		if !exists {
			byKey[key] = rec
			continue
		}
		if rec.Severity.Rank() > current.Severity.Rank() ||
			(rec.Severity.Rank() == current.Severity.Rank() && rec.Score > current.Score) {
			byKey[key] = rec
		}
	}

	merged := make([]domain.AnomalyRecord, 0, len(byKey))
	for _, rec := range byKey {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Severity.Rank() != merged[j].Severity.Rank() {
			return merged[i].Severity.Rank() > merged[j].Severity.Rank()
		}
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].MergeKey() < merged[j].MergeKey()
	})
	return merged
}
