package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nicktill/econdash/pkg/indicator"
	"github.com/nicktill/econdash/pkg/reshape"
)

// ReadCSV reads a file written by ExportToCSV back into a table
func ReadCSV(key string, r io.Reader) (*indicator.Table, error) {
	return reshape.ParseLong(key, r)
}

// ReadJSON reads a file written by ExportToJSON back into a table.
// Rows are validated the same way ReadCSV validates them.
func ReadJSON(r io.Reader) (*indicator.Table, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	if doc.Metadata.RowCount != len(doc.Rows) {
		return nil, fmt.Errorf("row count mismatch: metadata says %d, found %d", doc.Metadata.RowCount, len(doc.Rows))
	}

	type rowKey struct {
		code string
		year int
	}
	seen := make(map[rowKey]bool, len(doc.Rows))
	for i, row := range doc.Rows {
		if err := validateImportedRow(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		k := rowKey{row.CountryCode, row.Year}
		if seen[k] {
			return nil, fmt.Errorf("row %d: %w: %s/%d", i, reshape.ErrDuplicateRow, row.CountryCode, row.Year)
		}
		seen[k] = true
	}

	return &indicator.Table{Key: doc.Metadata.Metric, Rows: doc.Rows}, nil
}

// validateImportedRow validates a row before it is accepted
func validateImportedRow(row indicator.Row) error {
	if row.CountryCode == "" {
		return fmt.Errorf("country code cannot be empty")
	}
	if row.Year <= 0 {
		return fmt.Errorf("%w: %d", reshape.ErrInvalidYear, row.Year)
	}
	return nil
}
