package lake

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"retailcli/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures snapshot writing.
type WriteOptions struct {
	Headers   []string
	Rows      [][]string
	BOMPrefix bool // add a UTF-8 BOM so Excel opens the file as UTF-8
}

// WriteSnapshot writes a full dataset snapshot at path.
func (s *Store) WriteSnapshot(path string, opts WriteOptions) error {
	s.logger.Debug("writing snapshot",
		slog.String("path", path),
		slog.Int("rows", len(opts.Rows)))

	return s.writeAtomic(path, func(w io.Writer) error {
		return encodeCSV(w, path, opts)
	})
}

// encodeCSV writes the csv body, compressing when the path asks for it. The
// BOM is skipped for compressed snapshots since nothing opens those in Excel.
func encodeCSV(w io.Writer, path string, opts WriteOptions) error {
	var compressor *snappy.Writer
	if compressed(path) {
		compressor = snappy.NewBufferedWriter(w)
		w = compressor
	} else if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if len(opts.Headers) > 0 {
		if err := cw.Write(opts.Headers); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i, row := range opts.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if compressor != nil {
		return compressor.Close()
	}
	return nil
}

// ReadSnapshot reads a full dataset snapshot, returning the header row and
// the data rows. A UTF-8 BOM on the first column name is stripped.
func (s *Store) ReadSnapshot(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewStorageError(fmt.Sprintf("open snapshot %s", path), err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed(path) {
		r = snappy.NewReader(f)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.NewStorageError(fmt.Sprintf("read snapshot %s", path), err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], string(utf8BOM))
	}
	return header, records[1:], nil
}

// SnapshotExists reports whether a snapshot file is present at path.
func (s *Store) SnapshotExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// compressed reports whether the path names a snappy-compressed snapshot.
func compressed(path string) bool {
	return strings.HasSuffix(path, snappyExt)
}

// writeAtomic stages the write in a temp file next to path, then renames it
// into place.
func (s *Store) writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewStorageError(fmt.Sprintf("create directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.NewStorageError("create staging file", err)
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.NewStorageError(fmt.Sprintf("stage snapshot %s", path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.NewStorageError("sync staging file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.NewStorageError("close staging file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.NewStorageError(fmt.Sprintf("publish snapshot %s", path), err)
	}
	return nil
}

// WriteJSON writes v as indented JSON with the same staging as snapshots.
func (s *Store) WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("marshal %s", filepath.Base(path)), err)
	}
	return s.writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ReadJSON reads a JSON artifact at path into v.
func (s *Store) ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("read %s", filepath.Base(path)), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewStorageError(fmt.Sprintf("unmarshal %s", filepath.Base(path)), err)
	}
	return nil
}

// StreamWriter writes a snapshot one row at a time for large partitions.
// Rows land in a staging file; Close renames it into place and Abort
// discards it.
type StreamWriter struct {
	path       string
	tmp        *os.File
	writer     *csv.Writer
	compressor *snappy.Writer
}

// NewStreamWriter stages a snapshot at path and writes the header row.
func (s *Store) NewStreamWriter(path string, headers []string) (*StreamWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("create directory %s", dir), err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, errors.NewStorageError("create staging file", err)
	}

	sw := &StreamWriter{path: path, tmp: tmp}
	var w io.Writer = tmp
	if compressed(path) {
		sw.compressor = snappy.NewBufferedWriter(tmp)
		w = sw.compressor
	}
	sw.writer = csv.NewWriter(w)

	if len(headers) > 0 {
		if err := sw.writer.Write(headers); err != nil {
			sw.Abort()
			return nil, errors.NewStorageError("write header", err)
		}
	}
	return sw, nil
}

// WriteRow appends one row to the staged snapshot.
func (sw *StreamWriter) WriteRow(row []string) error {
	return sw.writer.Write(row)
}

// Close flushes the staged snapshot and renames it into place.
func (sw *StreamWriter) Close() error {
	sw.writer.Flush()
	if err := sw.writer.Error(); err != nil {
		sw.Abort()
		return errors.NewStorageError("flush snapshot", err)
	}
	if sw.compressor != nil {
		if err := sw.compressor.Close(); err != nil {
			sw.Abort()
			return errors.NewStorageError("close compressor", err)
		}
	}
	if err := sw.tmp.Sync(); err != nil {
		sw.Abort()
		return errors.NewStorageError("sync staging file", err)
	}
	if err := sw.tmp.Close(); err != nil {
		os.Remove(sw.tmp.Name())
		return errors.NewStorageError("close staging file", err)
	}
	if err := os.Rename(sw.tmp.Name(), sw.path); err != nil {
		os.Remove(sw.tmp.Name())
		return errors.NewStorageError(fmt.Sprintf("publish snapshot %s", sw.path), err)
	}
	return nil
}

// Abort discards the staged snapshot.
func (sw *StreamWriter) Abort() {
	sw.tmp.Close()
	os.Remove(sw.tmp.Name())
}
