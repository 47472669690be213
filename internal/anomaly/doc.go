// Package anomaly scores gold sales for suspicious patterns.
//
// Four detectors run independently over denormalized observations: a z-score
// over each city's daily revenue against its trailing baseline, an IQR fence
// on quantity per product category, relative unit-price deviation from each
// product's historical median, and an isolation-forest ensemble over
// (amount, quantity, unit price, hour of day, city frequency).
//
// Every detector normalizes its statistic into an exceedance ratio where 1.0
// sits exactly on its threshold, so one engine-wide set of cutpoints maps
// scores to severities. Overlapping findings merge by transaction or
// city-day key, keeping the highest severity. Results are ephemeral and
// regenerated on every run.
package anomaly
