package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"retailcli/internal/analytics"
	"retailcli/internal/anomaly"
	"retailcli/internal/bronze"
	"retailcli/internal/config"
	"retailcli/internal/dimension"
	apperrors "retailcli/internal/errors"
	"retailcli/internal/fact"
	"retailcli/internal/infrastructure"
	"retailcli/internal/lake"
	"retailcli/internal/quality"
	"retailcli/internal/silver"
	"retailcli/pkg/contracts/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BronzeStage discovers landed source files and reads them into raw batches
type BronzeStage struct {
	BaseStage
	store   *lake.Store
	reader  *bronze.Reader
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewBronzeStage creates the ingestion stage
func NewBronzeStage(store *lake.Store, cfg config.PipelineConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *BronzeStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &BronzeStage{
		BaseStage: NewBaseStage(StageIDBronze, StageNameBronze, nil),
		store:     store,
		reader:    bronze.NewReader(cfg, logger),
		metrics:   metrics,
		logger:    logger.With(slog.String("stage", StageIDBronze)),
	}
}

// Execute reads every discovered source file under the bronze layer
func (s *BronzeStage) Execute(ctx context.Context, state *RunState) error {
	stageState := state.GetStage(s.ID())

	files, err := s.store.DiscoverSources()
	if err != nil {
		return fmt.Errorf("discover sources: %w", err)
	}
	progressTo(stageState, 10, fmt.Sprintf("discovered %d source files", len(files)))

	if len(files) == 0 {
		s.logger.WarnContext(ctx, "no_sources_found",
			slog.String("bronze_dir", s.store.BronzeDir()))
		state.SetContext(ContextKeyBatches, []*bronze.Batch{})
		setMeta(stageState, "files", 0)
		setMeta(stageState, "rows_read", 0)
		return nil
	}

	batches, err := s.reader.ReadAll(ctx, files)
	if err != nil {
		return fmt.Errorf("read sources: %w", err)
	}

	rowsRead := 0
	for _, batch := range batches {
		rowsRead += len(batch.Records)
	}
	progressTo(stageState, 90, fmt.Sprintf("read %d rows from %d files", rowsRead, len(batches)))

	if s.metrics != nil {
		s.metrics.RowsRead.Add(ctx, int64(rowsRead),
			metric.WithAttributes(attribute.String("run.id", state.ID)))
	}

	if manifest := manifestFrom(state); manifest != nil {
		sourcePaths := make([]string, 0, len(files))
		for _, f := range files {
			sourcePaths = append(sourcePaths, f.Path)
		}
		recordDataset(ctx, s.logger, manifest, "bronze_sources", string(domain.LayerBronze),
			s.store.BronzeDir(), StageIDBronze, int64(rowsRead), sourcePaths...)
	}

	state.SetContext(ContextKeyBatches, batches)
	setMeta(stageState, "files", len(files))
	setMeta(stageState, "rows_read", rowsRead)

	s.logger.InfoContext(ctx, "bronze_ingested",
		slog.String("run_id", state.ID),
		slog.Int("files", len(files)),
		slog.Int("rows", rowsRead))
	return nil
}

// SilverStage cleans raw batches into typed silver snapshots
type SilverStage struct {
	BaseStage
	store   *lake.Store
	cleaner *silver.Cleaner
	reader  *bronze.Reader
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewSilverStage creates the cleaning stage
func NewSilverStage(store *lake.Store, cfg config.PipelineConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *SilverStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &SilverStage{
		BaseStage: NewBaseStage(StageIDSilver, StageNameSilver, []string{StageIDBronze}),
		store:     store,
		cleaner:   silver.NewCleaner(cfg, logger),
		reader:    bronze.NewReader(cfg, logger),
		metrics:   metrics,
		logger:    logger.With(slog.String("stage", StageIDSilver)),
	}
}

// Execute cleans the run's batches and writes silver snapshots plus a
// quarantine file for the rows that were set aside
func (s *SilverStage) Execute(ctx context.Context, state *RunState) error {
	stageState := state.GetStage(s.ID())

	batches := batchesFrom(state)
	if batches == nil {
		// Running without the bronze stage: the landed files are the input
		s.logger.InfoContext(ctx, "reading_bronze_directly",
			slog.String("run_id", state.ID))
		files, err := s.store.DiscoverSources()
		if err != nil {
			return fmt.Errorf("discover sources: %w", err)
		}
		batches, err = s.reader.ReadAll(ctx, files)
		if err != nil {
			return fmt.Errorf("read sources: %w", err)
		}
	}
	progressTo(stageState, 20, fmt.Sprintf("cleaning %d batches", len(batches)))

	result, err := s.cleaner.Clean(ctx, batches, state.RunDate)
	if err != nil {
		return fmt.Errorf("clean batches: %w", err)
	}
	progressTo(stageState, 60, fmt.Sprintf("cleaned %d of %d rows", result.RowsClean(), result.RowsIn))

	paths, err := silver.WriteSnapshots(s.store, result)
	if err != nil {
		return fmt.Errorf("write silver snapshots: %w", err)
	}

	var quarantinePath string
	if len(result.Quarantined) > 0 {
		quarantinePath, err = s.store.WriteQuarantine(state.RunDate.Format("2006-01-02"), StageIDSilver, result.Quarantined)
		if err != nil {
			return fmt.Errorf("write quarantine: %w", err)
		}
	}

	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("run.id", state.ID))
		s.metrics.RowsCleaned.Add(ctx, int64(result.RowsClean()), attrs)
		s.metrics.RowsQuarantined.Add(ctx, int64(len(result.Quarantined)), attrs)
		s.metrics.DuplicatesDropped.Add(ctx, int64(result.Duplicates), attrs)
	}

	outputs := make([]string, 0, len(paths)+1)
	for _, p := range paths {
		outputs = append(outputs, p)
	}
	sort.Strings(outputs)
	if quarantinePath != "" {
		outputs = append(outputs, quarantinePath)
	}

	if manifest := manifestFrom(state); manifest != nil {
		counts := map[string]int64{
			config.DatasetSilverSales:     int64(len(result.Sales)),
			config.DatasetSilverInventory: int64(len(result.Inventory)),
			config.DatasetSilverShipments: int64(len(result.Shipments)),
		}
		for name, path := range paths {
			recordDataset(ctx, s.logger, manifest, name, string(domain.LayerSilver),
				s.store.SilverDir(), StageIDSilver, counts[name], path)
		}
	}

	state.SetContext(ContextKeySilverResult, result)
	state.SetContext(ContextKeySilverPaths, paths)
	setMeta(stageState, "rows_in", result.RowsIn)
	setMeta(stageState, "rows_clean", result.RowsClean())
	setMeta(stageState, "quarantined", len(result.Quarantined))
	setMeta(stageState, "duplicates", result.Duplicates)
	setMeta(stageState, MetadataKeyOutputs, outputs)

	s.logger.InfoContext(ctx, "silver_cleaned",
		slog.String("run_id", state.ID),
		slog.Int("rows_in", result.RowsIn),
		slog.Int("rows_clean", result.RowsClean()),
		slog.Int("quarantined", len(result.Quarantined)),
		slog.Int("duplicates", result.Duplicates))
	return nil
}

// DimensionStage extends the date, product, and store dimensions with
// whatever the silver layer surfaced
type DimensionStage struct {
	BaseStage
	store   *lake.Store
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewDimensionStage creates the reference dimension stage
func NewDimensionStage(store *lake.Store, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DimensionStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &DimensionStage{
		BaseStage: NewBaseStage(StageIDDimensions, StageNameDimensions, []string{StageIDSilver}),
		store:     store,
		metrics:   metrics,
		logger:    logger.With(slog.String("stage", StageIDDimensions)),
	}
}

// Execute builds the extended dimensions and writes their snapshots
func (s *DimensionStage) Execute(ctx context.Context, state *RunState) error {
	stageState := state.GetStage(s.ID())

	sales, inventory, shipments, err := silverRecords(state, s.store)
	if err != nil {
		return err
	}

	priorDates, err := readDateRows(s.store)
	if err != nil {
		return err
	}
	priorProducts, err := readProductRows(s.store)
	if err != nil {
		return err
	}
	priorStores, err := readStoreRows(s.store)
	if err != nil {
		return err
	}
	progressTo(stageState, 30, "extending dimensions")

	dates := dimension.BuildDateDimension(priorDates, sales, inventory, shipments)
	products := dimension.ExtendProductDimension(priorProducts, sales, inventory, shipments)
	stores := dimension.ExtendStoreDimension(priorStores, sales, inventory, shipments)

	datePath, err := dimension.WriteDateDimension(s.store, dates)
	if err != nil {
		return fmt.Errorf("write date dimension: %w", err)
	}
	productPath, err := dimension.WriteProductDimension(s.store, products)
	if err != nil {
		return fmt.Errorf("write product dimension: %w", err)
	}
	storePath, err := dimension.WriteStoreDimension(s.store, stores)
	if err != nil {
		return fmt.Errorf("write store dimension: %w", err)
	}

	minted := (len(dates) - len(priorDates)) +
		(len(products) - len(priorProducts)) +
		(len(stores) - len(priorStores))
	if s.metrics != nil && minted > 0 {
		s.metrics.DimensionRowsMinted.Add(ctx, int64(minted),
			metric.WithAttributes(attribute.String("run.id", state.ID)))
	}

	if manifest := manifestFrom(state); manifest != nil {
		dims := []struct {
			name string
			path string
			rows int
		}{
			{config.DatasetDimDate, datePath, len(dates)},
			{config.DatasetDimProduct, productPath, len(products)},
			{config.DatasetDimStore, storePath, len(stores)},
		}
		for _, d := range dims {
			recordDataset(ctx, s.logger, manifest, d.name, string(domain.LayerGold),
				s.store.GoldDir(), StageIDDimensions, int64(d.rows), d.path)
		}
	}

	state.SetContext(ContextKeyDateRows, dates)
	state.SetContext(ContextKeyProductRows, products)
	state.SetContext(ContextKeyStoreRows, stores)
	setMeta(stageState, "date_rows", len(dates))
	setMeta(stageState, "product_rows", len(products))
	setMeta(stageState, "store_rows", len(stores))
	setMeta(stageState, "rows_minted", minted)
	setMeta(stageState, MetadataKeyOutputs, []string{datePath, productPath, storePath})

	s.logger.InfoContext(ctx, "dimensions_extended",
		slog.String("run_id", state.ID),
		slog.Int("dates", len(dates)),
		slog.Int("products", len(products)),
		slog.Int("stores", len(stores)),
		slog.Int("minted", minted))
	return nil
}

// CustomerStage folds the run's customer snapshots into the versioned
// customer dimension
type CustomerStage struct {
	BaseStage
	store   *lake.Store
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewCustomerStage creates the customer history stage
func NewCustomerStage(store *lake.Store, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *CustomerStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerStage{
		BaseStage: NewBaseStage(StageIDCustomers, StageNameCustomers, []string{StageIDSilver}),
		store:     store,
		metrics:   metrics,
		logger:    logger.With(slog.String("stage", StageIDCustomers)),
	}
}

// Execute applies the observed customer attribute snapshots to the prior
// version history and writes the updated dimension
func (s *CustomerStage) Execute(ctx context.Context, state *RunState) error {
	stageState := state.GetStage(s.ID())

	sales, _, _, err := silverRecords(state, s.store)
	if err != nil {
		return err
	}

	prior, err := readCustomerRows(s.store)
	if err != nil {
		return err
	}
	progressTo(stageState, 30, fmt.Sprintf("applying snapshots over %d prior versions", len(prior)))

	snaps := dimension.SnapshotsFromSales(sales)
	rows, delta := dimension.ApplyCustomerSnapshots(prior, snaps)

	path, err := dimension.WriteCustomerDimension(s.store, rows)
	if err != nil {
		return fmt.Errorf("write customer dimension: %w", err)
	}

	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("run.id", state.ID))
		s.metrics.SCDVersionsOpened.Add(ctx, int64(len(delta.Opened)), attrs)
		s.metrics.SCDVersionsClosed.Add(ctx, int64(len(delta.Closed)), attrs)
	}

	if manifest := manifestFrom(state); manifest != nil {
		recordDataset(ctx, s.logger, manifest, config.DatasetDimCustomer, string(domain.LayerGold),
			s.store.GoldDir(), StageIDCustomers, int64(len(rows)), path)
	}

	state.SetContext(ContextKeyCustomerRows, rows)
	state.SetContext(ContextKeyCustomerDelta, delta)
	setMeta(stageState, "customer_versions", len(rows))
	setMeta(stageState, "versions_opened", len(delta.Opened))
	setMeta(stageState, "versions_closed", len(delta.Closed))
	setMeta(stageState, "versions_corrected", len(delta.Corrected))
	setMeta(stageState, MetadataKeyOutputs, []string{path})

	s.logger.InfoContext(ctx, "customer_history_updated",
		slog.String("run_id", state.ID),
		slog.Int("versions", len(rows)),
		slog.Int("opened", len(delta.Opened)),
		slog.Int("closed", len(delta.Closed)))
	return nil
}

// FactStage assembles the star schema facts against the minted dimensions
type FactStage struct {
	BaseStage
	store   *lake.Store
	writer  *fact.Writer
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewFactStage creates the fact assembly stage
func NewFactStage(store *lake.Store, cfg config.PipelineConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *FactStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactStage{
		BaseStage: NewBaseStage(StageIDFacts, StageNameFacts, []string{StageIDDimensions, StageIDCustomers}),
		store:     store,
		writer:    fact.NewWriter(store, cfg, logger),
		metrics:   metrics,
		logger:    logger.With(slog.String("stage", StageIDFacts)),
	}
}

// Execute resolves surrogate keys, quarantines integrity violations, and
// writes the partitioned fact tables
func (s *FactStage) Execute(ctx context.Context, state *RunState) error {
	stageState := state.GetStage(s.ID())

	sales, inventory, shipments, err := silverRecords(state, s.store)
	if err != nil {
		return err
	}

	dates, products, stores, customers, err := dimensionRows(state, s.store)
	if err != nil {
		return err
	}
	progressTo(stageState, 30, "assembling facts")

	ix := fact.NewDimensionIndex(dates, products, stores, customers)
	result := fact.Build(ix, sales, inventory, shipments)

	outputs, err := s.writer.WriteAll(ctx, result)
	if err != nil {
		return fmt.Errorf("write facts: %w", err)
	}

	var quarantinePath string
	if len(result.Quarantined) > 0 {
		quarantinePath, err = s.store.WriteQuarantine(state.RunDate.Format("2006-01-02"), StageIDFacts, result.Quarantined)
		if err != nil {
			return fmt.Errorf("write quarantine: %w", err)
		}
	}

	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("run.id", state.ID))
		s.metrics.FactsWritten.Add(ctx, int64(result.FactsWritten()), attrs)
		s.metrics.RowsQuarantined.Add(ctx, int64(len(result.Quarantined)), attrs)
	}

	paths := make([]string, 0, len(outputs)+1)
	for _, out := range outputs {
		paths = append(paths, out.Path)
	}
	if quarantinePath != "" {
		paths = append(paths, quarantinePath)
	}

	if manifest := manifestFrom(state); manifest != nil {
		partitionsByTable := make(map[string][]string)
		rowsByTable := make(map[string]int64)
		for _, out := range outputs {
			partitionsByTable[out.Table] = append(partitionsByTable[out.Table], out.Path)
			rowsByTable[out.Table] += int64(out.Rows)
		}
		for table, tablePaths := range partitionsByTable {
			recordDataset(ctx, s.logger, manifest, table, string(domain.LayerGold),
				s.store.GoldDir(), StageIDFacts, rowsByTable[table], tablePaths...)
		}
	}

	state.SetContext(ContextKeyFactResult, result)
	state.SetContext(ContextKeyPartitions, outputs)
	setMeta(stageState, "sales_facts", len(result.Sales))
	setMeta(stageState, "inventory_facts", len(result.Inventory))
	setMeta(stageState, "shipment_facts", len(result.Shipments))
	setMeta(stageState, "quarantined", len(result.Quarantined))
	setMeta(stageState, "partitions", len(outputs))
	setMeta(stageState, MetadataKeyOutputs, paths)

	s.logger.InfoContext(ctx, "facts_assembled",
		slog.String("run_id", state.ID),
		slog.Int("facts", result.FactsWritten()),
		slog.Int("partitions", len(outputs)),
		slog.Int("quarantined", len(result.Quarantined)))
	return nil
}

// QualityStage evaluates the declarative rule set against every layer the
// run touched and writes the consolidated report
type QualityStage struct {
	BaseStage
	store   *lake.Store
	engine  *quality.Engine
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewQualityStage creates the quality evaluation stage. The engine is built
// at startup so malformed rules fail the process before any run starts.
func NewQualityStage(store *lake.Store, engine *quality.Engine, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *QualityStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityStage{
		BaseStage: NewBaseStage(StageIDQuality, StageNameQuality, []string{StageIDFacts}),
		store:     store,
		engine:    engine,
		metrics:   metrics,
		logger:    logger.With(slog.String("stage", StageIDQuality)),
	}
}

// Validate requires the rule engine
func (s *QualityStage) Validate(state *RunState) error {
	if s.engine == nil {
		return fmt.Errorf("quality engine not configured")
	}
	return nil
}

// Execute assembles the per-layer rows and writes the run's quality report
func (s *QualityStage) Execute(ctx context.Context, state *RunState) error {
	stageState := state.GetStage(s.ID())

	eval := quality.RunEvaluation{
		RunID:       state.ID,
		At:          state.StartTime,
		Quarantined: make(map[domain.ViolationType]int),
	}

	if batches := batchesFrom(state); batches != nil {
		var raw []domain.RawRecord
		for _, batch := range batches {
			raw = append(raw, batch.Records...)
		}
		eval.Bronze = quality.FromRawRecords(raw)
	} else {
		eval.Notes = append(eval.Notes, "bronze layer not evaluated: no batches in this run")
	}

	if result := silverResultFrom(state); result != nil {
		records := make([]domain.SilverRecord, 0, len(result.Sales)+len(result.Inventory)+len(result.Shipments))
		records = append(records, result.Sales...)
		records = append(records, result.Inventory...)
		records = append(records, result.Shipments...)
		eval.Silver = quality.FromSilverRecords(records)
		for reason, count := range result.ByReason {
			eval.Quarantined[reason] += count
		}
	} else {
		sales, inventory, shipments, err := silverRecords(state, s.store)
		if err != nil {
			return err
		}
		records := make([]domain.SilverRecord, 0, len(sales)+len(inventory)+len(shipments))
		records = append(records, sales...)
		records = append(records, inventory...)
		records = append(records, shipments...)
		eval.Silver = quality.FromSilverRecords(records)
	}

	if result := factResultFrom(state); result != nil {
		eval.Gold = quality.FromSalesFacts(result.Sales)
		for _, q := range result.Quarantined {
			eval.Quarantined[q.Reason]++
		}
	} else {
		facts, err := readSalesFactsOrEmpty(s.store)
		if err != nil {
			return err
		}
		eval.Gold = quality.FromSalesFacts(facts)
	}
	progressTo(stageState, 50, fmt.Sprintf("evaluating %d silver rows", len(eval.Silver)))

	report := s.engine.ReportForRun(eval)

	path, err := quality.WriteReport(s.store, report, s.logger)
	if err != nil {
		return fmt.Errorf("write quality report: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RuleEvaluationsTotal.Add(ctx, int64(len(report.Checks)),
			metric.WithAttributes(attribute.String("run.id", state.ID)))
	}

	failed := len(report.FailedChecks())
	state.SetContext(ContextKeyQualityPath, path)
	setMeta(stageState, "checks", len(report.Checks))
	setMeta(stageState, "failed_checks", failed)
	setMeta(stageState, MetadataKeyOutputs, []string{path})

	s.logger.InfoContext(ctx, "quality_evaluated",
		slog.String("run_id", state.ID),
		slog.Int("checks", len(report.Checks)),
		slog.Int("failed", failed))
	return nil
}

// AnomalyStage screens the assembled sales facts for statistical outliers
type AnomalyStage struct {
	BaseStage
	store   *lake.Store
	engine  *anomaly.Engine
	cfg     config.AnomalyConfig
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewAnomalyStage creates the anomaly detection stage
func NewAnomalyStage(store *lake.Store, cfg config.AnomalyConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AnomalyStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnomalyStage{
		BaseStage: NewBaseStage(StageIDAnomaly, StageNameAnomaly, []string{StageIDFacts}),
		store:     store,
		engine:    anomaly.NewEngine(cfg, logger),
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With(slog.String("stage", StageIDAnomaly)),
	}
}

// Execute runs the detectors and writes the anomaly report
func (s *AnomalyStage) Execute(ctx context.Context, state *RunState) error {
	stageState := state.GetStage(s.ID())

	facts, err := salesFacts(state, s.store)
	if err != nil {
		return err
	}
	_, products, stores, _, err := dimensionRows(state, s.store)
	if err != nil {
		return err
	}
	progressTo(stageState, 30, fmt.Sprintf("screening %d facts", len(facts)))

	observations := anomaly.ObservationsFromFacts(facts, stores, products)
	records := s.engine.Detect(observations)

	report := anomaly.BuildReport(state.ID, records, state.StartTime, s.cfg.TopRecords)
	path, err := anomaly.WriteReport(s.store, report, s.logger)
	if err != nil {
		return fmt.Errorf("write anomaly report: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AnomaliesFlagged.Add(ctx, int64(len(records)),
			metric.WithAttributes(attribute.String("run.id", state.ID)))
	}

	state.SetContext(ContextKeyAnomalyPath, path)
	setMeta(stageState, "observations", len(observations))
	setMeta(stageState, "anomalies", len(records))
	setMeta(stageState, MetadataKeyOutputs, []string{path})

	s.logger.InfoContext(ctx, "anomalies_detected",
		slog.String("run_id", state.ID),
		slog.Int("observations", len(observations)),
		slog.Int("anomalies", len(records)))
	return nil
}

// AnalyticsStage summarizes the star schema into the KPI report
type AnalyticsStage struct {
	BaseStage
	store      *lake.Store
	summarizer *analytics.Summarizer
	metrics    *infrastructure.BusinessMetrics
	logger     *slog.Logger
}

// NewAnalyticsStage creates the KPI summarization stage
func NewAnalyticsStage(store *lake.Store, cfg config.AnalyticsConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AnalyticsStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsStage{
		BaseStage:  NewBaseStage(StageIDAnalytics, StageNameAnalytics, []string{StageIDFacts}),
		store:      store,
		summarizer: analytics.NewSummarizer(cfg, logger),
		metrics:    metrics,
		logger:     logger.With(slog.String("stage", StageIDAnalytics)),
	}
}

// Execute computes the KPI report and writes it with its revenue extracts
func (s *AnalyticsStage) Execute(ctx context.Context, state *RunState) error {
	stageState := state.GetStage(s.ID())

	facts, err := salesFacts(state, s.store)
	if err != nil {
		return err
	}
	_, products, stores, customers, err := dimensionRows(state, s.store)
	if err != nil {
		return err
	}
	progressTo(stageState, 30, fmt.Sprintf("summarizing %d facts", len(facts)))

	report := s.summarizer.Summarize(state.ID, analytics.Inputs{
		Facts:     facts,
		Stores:    stores,
		Products:  products,
		Customers: customers,
	}, state.StartTime)

	path, err := analytics.WriteReport(s.store, report, s.logger)
	if err != nil {
		return fmt.Errorf("write kpi report: %w", err)
	}

	state.SetContext(ContextKeyKPIPath, path)
	setMeta(stageState, "transactions", report.Transactions)
	setMeta(stageState, "rfm_customers", len(report.RFM))
	setMeta(stageState, "frequent_pairs", len(report.FrequentPairs))
	setMeta(stageState, MetadataKeyOutputs, []string{path})

	s.logger.InfoContext(ctx, "kpis_summarized",
		slog.String("run_id", state.ID),
		slog.Int("transactions", report.Transactions),
		slog.Int("rfm_customers", len(report.RFM)),
		slog.Int("frequent_pairs", len(report.FrequentPairs)))
	return nil
}

// progressTo updates a stage's progress when the stage state exists; stages
// invoked directly in tests may not have one
func progressTo(st *StageState, progress float64, message string) {
	if st == nil {
		return
	}
	st.UpdateProgress(progress, message)
}

// setMeta records stage metadata when the stage state exists
func setMeta(st *StageState, key string, value interface{}) {
	if st == nil {
		return
	}
	st.SetMetadata(key, value)
}

// manifestFrom returns the run manifest the manager placed in the context
func manifestFrom(state *RunState) *lake.RunManifest {
	if v, ok := state.GetContext(ContextKeyManifest); ok {
		if m, ok := v.(*lake.RunManifest); ok {
			return m
		}
	}
	return nil
}

// recordDataset sizes and hashes published files into the manifest. The
// snapshots are already on disk, so bookkeeping failures are logged and the
// stage outcome stands.
func recordDataset(ctx context.Context, logger *slog.Logger, manifest *lake.RunManifest,
	name, layer, location, createdBy string, rows int64, paths ...string) {
	if len(paths) == 0 {
		return
	}
	if err := manifest.RecordFiles(name, layer, location, createdBy, rows, paths...); err != nil {
		logger.WarnContext(ctx, "manifest_dataset_skipped",
			slog.String("dataset", name),
			slog.String("error", err.Error()))
	}
}

// batchesFrom returns the raw batches an earlier bronze stage produced
func batchesFrom(state *RunState) []*bronze.Batch {
	if v, ok := state.GetContext(ContextKeyBatches); ok {
		if b, ok := v.([]*bronze.Batch); ok {
			return b
		}
	}
	return nil
}

// silverResultFrom returns the cleaning result an earlier silver stage produced
func silverResultFrom(state *RunState) *silver.Result {
	if v, ok := state.GetContext(ContextKeySilverResult); ok {
		if r, ok := v.(*silver.Result); ok {
			return r
		}
	}
	return nil
}

// factResultFrom returns the build result an earlier fact stage produced
func factResultFrom(state *RunState) *fact.BuildResult {
	if v, ok := state.GetContext(ContextKeyFactResult); ok {
		if r, ok := v.(*fact.BuildResult); ok {
			return r
		}
	}
	return nil
}

// silverRecords resolves the cleaned record sets, preferring the in-run
// result and falling back to the silver snapshots on disk
func silverRecords(state *RunState, store *lake.Store) (sales, inventory, shipments []domain.SilverRecord, err error) {
	if result := silverResultFrom(state); result != nil {
		return result.Sales, result.Inventory, result.Shipments, nil
	}

	if sales, err = readSilverOrEmpty(silver.ReadSales, store); err != nil {
		return nil, nil, nil, err
	}
	if inventory, err = readSilverOrEmpty(silver.ReadInventory, store); err != nil {
		return nil, nil, nil, err
	}
	if shipments, err = readSilverOrEmpty(silver.ReadShipments, store); err != nil {
		return nil, nil, nil, err
	}
	return sales, inventory, shipments, nil
}

// dimensionRows resolves all four dimensions, preferring in-run rows and
// falling back to the gold snapshots on disk
func dimensionRows(state *RunState, store *lake.Store) (
	dates []domain.DateDimensionRow,
	products []domain.ProductDimensionRow,
	stores []domain.StoreDimensionRow,
	customers []domain.CustomerDimensionRow,
	err error,
) {
	if v, ok := state.GetContext(ContextKeyDateRows); ok {
		dates, _ = v.([]domain.DateDimensionRow)
	} else if dates, err = readDateRows(store); err != nil {
		return nil, nil, nil, nil, err
	}
	if v, ok := state.GetContext(ContextKeyProductRows); ok {
		products, _ = v.([]domain.ProductDimensionRow)
	} else if products, err = readProductRows(store); err != nil {
		return nil, nil, nil, nil, err
	}
	if v, ok := state.GetContext(ContextKeyStoreRows); ok {
		stores, _ = v.([]domain.StoreDimensionRow)
	} else if stores, err = readStoreRows(store); err != nil {
		return nil, nil, nil, nil, err
	}
	if v, ok := state.GetContext(ContextKeyCustomerRows); ok {
		customers, _ = v.([]domain.CustomerDimensionRow)
	} else if customers, err = readCustomerRows(store); err != nil {
		return nil, nil, nil, nil, err
	}
	return dates, products, stores, customers, nil
}

// salesFacts resolves the sales facts, preferring the in-run build result
// and falling back to the partitioned tables on disk
func salesFacts(state *RunState, store *lake.Store) ([]domain.SalesFact, error) {
	if result := factResultFrom(state); result != nil {
		return result.Sales, nil
	}
	return readSalesFactsOrEmpty(store)
}

func readSilverOrEmpty(read func(*lake.Store) ([]domain.SilverRecord, error), store *lake.Store) ([]domain.SilverRecord, error) {
	rows, err := read(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	return rows, nil
}

func readDateRows(store *lake.Store) ([]domain.DateDimensionRow, error) {
	rows, err := dimension.ReadDateDimension(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	return rows, nil
}

func readProductRows(store *lake.Store) ([]domain.ProductDimensionRow, error) {
	rows, err := dimension.ReadProductDimension(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	return rows, nil
}

func readStoreRows(store *lake.Store) ([]domain.StoreDimensionRow, error) {
	rows, err := dimension.ReadStoreDimension(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	return rows, nil
}

func readCustomerRows(store *lake.Store) ([]domain.CustomerDimensionRow, error) {
	rows, err := dimension.ReadCustomerDimension(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	return rows, nil
}

func readSalesFactsOrEmpty(store *lake.Store) ([]domain.SalesFact, error) {
	facts, err := fact.ReadSalesFacts(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	return facts, nil
}
