package analytics

import (
	"sort"

	"retailcli/pkg/contracts/domain"
)

// minePairs counts unordered product pairs across per-transaction item sets
// and keeps those clearing the support floor, best pairs first, capped at
// topPairs. Confidence is the higher of the two directional confidences,
// pair count over the rarer product's transaction count.
func minePairs(lines []saleLine, minSupport float64, topPairs int) []domain.BasketPair {
	items := make(map[string]map[string]struct{})
	for _, l := range lines {
		if l.ProductID == "" {
			continue
		}
		set := items[l.TransactionID]
		if set == nil {
			set = make(map[string]struct{})
			items[l.TransactionID] = set
		}
		set[l.ProductID] = struct{}{}
	}
	totalTransactions := len(items)
	if totalTransactions == 0 {
		return nil
	}

	type pairKey struct{ a, b string }
	pairCounts := make(map[pairKey]int)
	productCounts := make(map[string]int)
	for _, set := range items {
		products := make([]string, 0, len(set))
		for p := range set {
			products = append(products, p)
		}
		sort.Strings(products)
		for i, p := range products {
			productCounts[p]++
			for _, q := range products[i+1:] {
				pairCounts[pairKey{a: p, b: q}]++
			}
		}
	}

	pairs := make([]domain.BasketPair, 0, len(pairCounts))
	for key, count := range pairCounts {
		support := float64(count) / float64(totalTransactions)
		if support < minSupport {
			continue
		}
		rarer := productCounts[key.a]
		if productCounts[key.b] < rarer {
			rarer = productCounts[key.b]
		}
		pairs = append(pairs, domain.BasketPair{
			ProductA:   key.a,
			ProductB:   key.b,
			PairCount:  count,
			Support:    support,
			Confidence: float64(count) / float64(rarer),
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].PairCount != pairs[j].PairCount {
			return pairs[i].PairCount > pairs[j].PairCount
		}
		if pairs[i].ProductA != pairs[j].ProductA {
			return pairs[i].ProductA < pairs[j].ProductA
		}
		return pairs[i].ProductB < pairs[j].ProductB
	})
	if topPairs > 0 && len(pairs) > topPairs {
		pairs = pairs[:topPairs]
	}
	return pairs
}
