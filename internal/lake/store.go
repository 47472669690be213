package lake

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"retailcli/internal/config"
	"retailcli/internal/errors"
	"retailcli/pkg/contracts/domain"
)

const (
	csvExt    = ".csv"
	snappyExt = ".csv.sz"
)

// SourceFile is one landed source file discovered under the bronze layer.
type SourceFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Source  domain.SourceType
}

// Store resolves the layered lake directories and owns dataset placement.
type Store struct {
	root        string
	compression string
	logger      *slog.Logger
}

// NewStore creates a store rooted at the configured data directory.
func NewStore(cfg config.LakeConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:        cfg.DataDir,
		compression: cfg.Compression,
		logger:      logger,
	}
}

// Root returns the lake root directory.
func (s *Store) Root() string { return s.root }

// BronzeDir returns the landing directory for raw source files.
func (s *Store) BronzeDir() string { return filepath.Join(s.root, config.BronzeDirName) }

// SilverDir returns the directory holding cleaned dataset snapshots.
func (s *Store) SilverDir() string { return filepath.Join(s.root, config.SilverDirName) }

// GoldDir returns the directory holding the star schema.
func (s *Store) GoldDir() string { return filepath.Join(s.root, config.GoldDirName) }

// ReportsDir returns the directory holding run reports.
func (s *Store) ReportsDir() string { return filepath.Join(s.root, config.ReportsDirName) }

// QuarantineDir returns the directory holding quarantined records.
func (s *Store) QuarantineDir() string { return filepath.Join(s.root, config.QuarantineDirName) }

// EnsureLayout creates the layer directories if they do not exist.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{
		s.BronzeDir(), s.SilverDir(), s.GoldDir(), s.ReportsDir(), s.QuarantineDir(),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewStorageError(fmt.Sprintf("create layer directory %s", dir), err)
		}
	}
	return nil
}

// ext returns the snapshot extension for the configured compression.
func (s *Store) ext() string {
	if s.compression == "snappy" {
		return snappyExt
	}
	return csvExt
}

// SilverPath returns the snapshot path for a silver dataset.
func (s *Store) SilverPath(dataset string) string {
	return filepath.Join(s.SilverDir(), dataset+s.ext())
}

// DimensionPath returns the snapshot path for a gold dimension.
func (s *Store) DimensionPath(name string) string {
	return filepath.Join(s.GoldDir(), name+s.ext())
}

// FactPath returns the partitioned snapshot path for a gold fact table.
func (s *Store) FactPath(table string, p domain.Partition) string {
	return filepath.Join(s.GoldDir(), table, p.Path(), table+s.ext())
}

// ReportPath returns the path of a report artifact.
func (s *Store) ReportPath(name string) string {
	return filepath.Join(s.ReportsDir(), name)
}

// QuarantinePath returns the quarantine snapshot path one stage writes for a
// run date. Stages quarantine into separate files so a rerun of one stage
// never clobbers another stage's records.
func (s *Store) QuarantinePath(runDate, stage string) string {
	return filepath.Join(s.QuarantineDir(), runDate, stage+s.ext())
}

// FindSnapshot looks for an existing snapshot of dataset in dir, trying the
// configured extension first and the other one second so reruns survive a
// compression config change.
func (s *Store) FindSnapshot(dir, dataset string) (string, bool) {
	for _, ext := range []string{s.ext(), otherExt(s.ext())} {
		path := filepath.Join(dir, dataset+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func otherExt(ext string) string {
	if ext == csvExt {
		return snappyExt
	}
	return csvExt
}

// ListPartitions lists the year/month partitions present for a fact table,
// ordered by year then month.
func (s *Store) ListPartitions(table string) ([]domain.Partition, error) {
	pattern := filepath.Join(s.GoldDir(), table, "year=*", "month=*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("list partitions for %s", table), err)
	}

	partitions := make([]domain.Partition, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}

		var p domain.Partition
		yearDir := filepath.Base(filepath.Dir(match))
		monthDir := filepath.Base(match)
		if _, err := fmt.Sscanf(yearDir, "year=%d", &p.Year); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(monthDir, "month=%d", &p.Month); err != nil {
			continue
		}
		partitions = append(partitions, p)
	}

	sort.Slice(partitions, func(i, j int) bool {
		if partitions[i].Year != partitions[j].Year {
			return partitions[i].Year < partitions[j].Year
		}
		return partitions[i].Month < partitions[j].Month
	})

	return partitions, nil
}

// sourcePatterns maps each feed to its landed file name pattern.
var sourcePatterns = []struct {
	source  domain.SourceType
	pattern string
}{
	{domain.SourcePOS, config.POSBatchPattern},
	{domain.SourceWeb, config.WebOrderPattern},
	{domain.SourceInventory, config.InventoryPattern},
	{domain.SourceShipment, config.ShipmentPattern},
}

// DiscoverSources finds landed source files in the bronze layer. Feeds are
// scanned in a fixed order and files sorted by name within each feed, so
// reruns see the same ingestion order regardless of file timestamps.
func (s *Store) DiscoverSources() ([]SourceFile, error) {
	var files []SourceFile
	for _, sp := range sourcePatterns {
		matches, err := filepath.Glob(filepath.Join(s.BronzeDir(), sp.pattern))
		if err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("scan bronze for %s files", sp.source), err)
		}
		sort.Strings(matches)

		for _, match := range matches {
			if !hasSourceExt(match) {
				continue
			}
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			files = append(files, SourceFile{
				Path:    match,
				Name:    filepath.Base(match),
				Size:    info.Size(),
				ModTime: info.ModTime(),
				Source:  sp.source,
			})
		}
	}

	s.logger.Debug("discovered source files",
		slog.String("dir", s.BronzeDir()),
		slog.Int("count", len(files)))

	return files, nil
}

// hasSourceExt reports whether the file is a supported landed format.
func hasSourceExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
