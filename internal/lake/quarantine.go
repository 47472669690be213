package lake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"retailcli/internal/errors"
	"retailcli/pkg/contracts/domain"
)

var quarantineHeader = []string{
	"source", "batch", "row_number", "ingested_at", "reason", "detail", "fields",
}

// WriteQuarantine persists one stage's quarantined records for a run date and
// returns the path written. Raw field maps are kept verbatim as JSON so a
// quarantined row can be replayed once the source is fixed.
func (s *Store) WriteQuarantine(runDate, stage string, records []domain.QuarantinedRecord) (string, error) {
	rows := make([][]string, 0, len(records))
	for _, q := range records {
		fields, err := json.Marshal(q.Record.Fields)
		if err != nil {
			return "", errors.NewStorageError(
				fmt.Sprintf("encode quarantined record %s", q.Record.Key()), err)
		}
		rows = append(rows, []string{
			string(q.Record.Source),
			q.Record.Batch,
			strconv.Itoa(q.Record.RowNumber),
			q.Record.IngestedAt.UTC().Format(time.RFC3339Nano),
			string(q.Reason),
			q.Detail,
			string(fields),
		})
	}

	path := s.QuarantinePath(runDate, stage)
	if err := s.WriteSnapshot(path, WriteOptions{Headers: quarantineHeader, Rows: rows}); err != nil {
		return "", err
	}
	return path, nil
}

// ReadQuarantine loads quarantined records back from a quarantine snapshot.
func (s *Store) ReadQuarantine(path string) ([]domain.QuarantinedRecord, error) {
	_, rows, err := s.ReadSnapshot(path)
	if err != nil {
		return nil, err
	}

	records := make([]domain.QuarantinedRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(quarantineHeader) {
			return nil, errors.NewParsingError(
				fmt.Sprintf("quarantine row %d has %d columns, want %d", i+1, len(row), len(quarantineHeader)), nil)
		}
		rowNumber, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("quarantine row %d: bad row_number %q", i+1, row[2]), err)
		}
		ingestedAt, err := time.Parse(time.RFC3339Nano, row[3])
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("quarantine row %d: bad ingested_at %q", i+1, row[3]), err)
		}
		var fields map[string]string
		if err := json.Unmarshal([]byte(row[6]), &fields); err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("quarantine row %d: bad fields payload", i+1), err)
		}
		records = append(records, domain.QuarantinedRecord{
			Record: domain.RawRecord{
				Source:     domain.SourceType(row[0]),
				Batch:      row[1],
				RowNumber:  rowNumber,
				Fields:     fields,
				IngestedAt: ingestedAt,
			},
			Reason: domain.ViolationType(row[4]),
			Detail: row[5],
		})
	}
	return records, nil
}
