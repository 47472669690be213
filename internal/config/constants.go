package config

import "time"

// Application constants shared across the pipeline
const (
	// Application Info
	AppName    = "Retail Medallion Pipeline"
	AppVersion = "1.0.0"

	// Lake layer directory names under the data dir
	BronzeDirName     = "bronze"
	SilverDirName     = "silver"
	GoldDirName       = "gold"
	ReportsDirName    = "reports"
	QuarantineDirName = "quarantine"

	// Landed source file patterns inside bronze/
	POSBatchPattern  = "sales_pos*"
	WebOrderPattern  = "sales_web*"
	InventoryPattern = "inventory*"
	ShipmentPattern  = "shipments*"

	// Canonical dataset names
	DatasetSilverSales     = "sales"
	DatasetSilverInventory = "inventory"
	DatasetSilverShipments = "shipments"
	DatasetDimDate         = "dim_date"
	DatasetDimProduct      = "dim_product"
	DatasetDimStore        = "dim_store"
	DatasetDimCustomer     = "dim_customer"
	DatasetFactSales       = "fact_sales"
	DatasetFactInventory   = "fact_inventory"
	DatasetFactShipment    = "fact_shipment"

	// Report file names under reports/
	QualityReportFile     = "quality_report.json"
	AnomalyReportFile     = "anomaly_report.json"
	KPIReportFile         = "kpi_report.json"
	RevenueByCityFile     = "daily_revenue_by_city.csv"
	RevenueByCategoryFile = "daily_revenue_by_category.csv"
	RunManifestFile       = "run_manifest.json"

	// Sentinel for rows landing without a customer id
	UnknownCustomerID = "UNKNOWN"

	// Operation timeouts
	DefaultStageTimeout = 30 * time.Minute
	DefaultRunTimeout   = 2 * time.Hour

	// Log settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
