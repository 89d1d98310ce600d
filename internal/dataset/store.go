package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// storeDirPerm restricts created dataset directories to owner+group.
	storeDirPerm = 0o750

	// storeFilePerm restricts the dataset file to owner read/write.
	storeFilePerm = 0o600

	// fieldCount is the number of columns in every dataset row.
	fieldCount = 4
)

// header is the column header written when the dataset file is created.
var header = []string{"date", "entity", "source", "value"}

// ErrStoreUnreadable is returned when the persisted dataset exists but
// cannot be parsed. Duplicate detection is impossible against a corrupt
// store, so callers must abort the run.
var ErrStoreUnreadable = errors.New("dataset: store unreadable")

// Store reads and appends the persisted dataset file. A missing file is a
// valid empty state; the file and its header are created on first append.
// Rows already persisted are never reordered or rewritten.
type Store struct {
	path string
}

// NewStore creates a store backed by the CSV file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads every key currently in the store. A missing file yields an
// empty set; malformed content fails with [ErrStoreUnreadable].
func (s *Store) Load() (*KeySet, error) {
	records, readErr := s.ReadAll()
	if readErr != nil {
		return nil, readErr
	}

	keys := NewKeySet()
	for _, rec := range records {
		keys.Add(rec.Key())
	}

	return keys, nil
}

// ReadAll reads every record in append order. A missing file yields an
// empty slice; malformed content fails with [ErrStoreUnreadable].
func (s *Store) ReadAll() ([]Record, error) {
	file, openErr := os.Open(s.path)
	if errors.Is(openErr, fs.ErrNotExist) {
		return nil, nil
	}

	if openErr != nil {
		return nil, fmt.Errorf("open store: %w", openErr)
	}

	defer file.Close()

	return readRecords(file)
}

// Append writes the records to the end of the file in input order, creating
// the file with a header first when absent. Batch atomicity across a crash
// is not guaranteed; reruns are safe because callers deduplicate by key.
func (s *Store) Append(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		mkErr := os.MkdirAll(dir, storeDirPerm)
		if mkErr != nil {
			return fmt.Errorf("create store dir: %w", mkErr)
		}
	}

	file, openErr := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, storeFilePerm)
	if openErr != nil {
		return fmt.Errorf("open store for append: %w", openErr)
	}

	writeErr := appendRecords(file, records)
	if writeErr != nil {
		file.Close()

		return writeErr
	}

	syncErr := file.Sync()
	if syncErr != nil {
		file.Close()

		return fmt.Errorf("sync store: %w", syncErr)
	}

	closeErr := file.Close()
	if closeErr != nil {
		return fmt.Errorf("close store: %w", closeErr)
	}

	return nil
}

func appendRecords(file *os.File, records []Record) error {
	info, statErr := file.Stat()
	if statErr != nil {
		return fmt.Errorf("stat store: %w", statErr)
	}

	writer := csv.NewWriter(file)

	if info.Size() == 0 {
		headerErr := writer.Write(header)
		if headerErr != nil {
			return fmt.Errorf("write header: %w", headerErr)
		}
	}

	for _, rec := range records {
		if valErr := rec.Validate(); valErr != nil {
			return valErr
		}

		row := []string{string(rec.Day), rec.Entity, string(rec.Source), strconv.FormatInt(rec.Value, 10)}

		rowErr := writer.Write(row)
		if rowErr != nil {
			return fmt.Errorf("write row: %w", rowErr)
		}
	}

	writer.Flush()

	flushErr := writer.Error()
	if flushErr != nil {
		return fmt.Errorf("flush store: %w", flushErr)
	}

	return nil
}

func readRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = fieldCount

	rows, readErr := reader.ReadAll()
	if readErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreadable, readErr)
	}

	// A zero-length file is a valid empty state.
	if len(rows) == 0 {
		return nil, nil
	}

	if !isHeader(rows[0]) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrStoreUnreadable, rows[0])
	}

	records := make([]Record, 0, len(rows)-1)

	for _, row := range rows[1:] {
		rec, parseErr := parseRow(row)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnreadable, parseErr)
		}

		records = append(records, rec)
	}

	return records, nil
}

func isHeader(row []string) bool {
	for i, column := range header {
		if row[i] != column {
			return false
		}
	}

	return true
}

func parseRow(row []string) (Record, error) {
	day, dayErr := ParseDay(row[0])
	if dayErr != nil {
		return Record{}, dayErr
	}

	value, valueErr := strconv.ParseInt(row[3], 10, 64)
	if valueErr != nil {
		return Record{}, fmt.Errorf("parse value %q: %w", row[3], valueErr)
	}

	rec := Record{Day: day, Entity: row[1], Source: Source(row[2]), Value: value}

	if valErr := rec.Validate(); valErr != nil {
		return Record{}, valErr
	}

	return rec, nil
}
