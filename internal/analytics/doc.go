// Package analytics derives business KPIs from the gold star schema after
// each pipeline run.
//
// Three summaries come out of one pass over the sales facts: daily revenue
// per city and per category (the same series the anomaly detectors baseline
// against), RFM quintile scores with named customer segments, and frequent
// product pairs mined from per-transaction item sets. All outputs are
// regenerated whole each run; nothing here is incremental state.
package analytics
