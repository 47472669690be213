package analytics

import (
	"sort"
	"time"

	"retailcli/internal/config"
	"retailcli/pkg/contracts/domain"
)

// scoreRFM computes per-customer Recency/Frequency/Monetary quintiles. Rows
// that landed without a customer stay out: the UNKNOWN sentinel aggregates
// every anonymous sale and would otherwise dominate the top quintiles.
func scoreRFM(lines []saleLine, asOf time.Time) []domain.RFMScore {
	type tally struct {
		last         time.Time
		transactions map[string]struct{}
		monetary     float64
	}
	tallies := make(map[string]*tally)
	for _, l := range lines {
		if l.CustomerID == "" || l.CustomerID == config.UnknownCustomerID {
			continue
		}
		t := tallies[l.CustomerID]
		if t == nil {
			t = &tally{transactions: make(map[string]struct{})}
			tallies[l.CustomerID] = t
		}
		if l.Date.After(t.last) {
			t.last = l.Date
		}
		t.transactions[l.TransactionID] = struct{}{}
		t.monetary += l.Amount
	}
	if len(tallies) == 0 {
		return nil
	}

	scores := make([]domain.RFMScore, 0, len(tallies))
	for id, t := range tallies {
		recency := int(asOf.UTC().Sub(t.last).Hours() / 24)
		if recency < 0 {
			recency = 0
		}
		scores = append(scores, domain.RFMScore{
			CustomerID:   id,
			LastPurchase: t.last,
			RecencyDays:  recency,
			Frequency:    len(t.transactions),
			Monetary:     t.monetary,
		})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].CustomerID < scores[j].CustomerID })

	recencyValues := make([]float64, len(scores))
	frequencyValues := make([]float64, len(scores))
	monetaryValues := make([]float64, len(scores))
	for i, s := range scores {
		// Negate recency so "higher is better" holds for all three axes.
		recencyValues[i] = -float64(s.RecencyDays)
		frequencyValues[i] = float64(s.Frequency)
		monetaryValues[i] = s.Monetary
	}
	recencyScores := quintiles(recencyValues)
	frequencyScores := quintiles(frequencyValues)
	monetaryScores := quintiles(monetaryValues)
	for i := range scores {
		scores[i].RecencyScore = recencyScores[i]
		scores[i].FrequencyScore = frequencyScores[i]
		scores[i].MonetaryScore = monetaryScores[i]
		scores[i].Segment = segmentFor(scores[i].RecencyScore, scores[i].FrequencyScore)
	}
	return scores
}

// quintiles maps each value to a 1..5 bucket by rank, higher values scoring
// higher. Equal values always share the bucket of their first occurrence, so
// a customer can never outrank another with identical behavior.
func quintiles(values []float64) []int {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	buckets := make([]int, n)
	for pos, idx := range order {
		bucket := 1 + pos*5/n
		if pos > 0 && values[idx] == values[order[pos-1]] {
			bucket = buckets[order[pos-1]]
		}
		buckets[idx] = bucket
	}
	return buckets
}

// segmentFor names the customer segment from the recency/frequency grid.
func segmentFor(recency, frequency int) string {
	switch {
	case recency >= 4 && frequency >= 4:
		return "Champion"
	case recency >= 3 && frequency >= 3:
		return "Loyal"
	case recency >= 4:
		return "New"
	case frequency >= 4:
		return "At Risk"
	case recency <= 2 && frequency <= 2:
		return "Hibernating"
	default:
		return "Regular"
	}
}
