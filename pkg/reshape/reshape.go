package reshape

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/nicktill/econdash/pkg/indicator"
)

const (
	// MetadataLines is the number of non-tabular lines preceding the header
	MetadataLines = 4

	ColumnCountryName = "Country Name"
	ColumnCountryCode = "Country Code"
	ColumnYear        = "Year"
	ColumnValue       = "Value"
)

var (
	ErrNoHeader          = errors.New("source has no header row")
	ErrMissingIDColumn   = errors.New("header is missing an identifier column")
	ErrDuplicateCountry  = errors.New("country appears more than once")
	ErrDuplicateRow      = errors.New("duplicate (country, year) row")
	ErrInvalidYear       = errors.New("invalid year")
	ErrMissingLongColumn = errors.New("header is missing a long-format column")
)

// yearColumn maps a CSV column index to the year it holds
type yearColumn struct {
	index int
	year  int
}

// Reshape converts a wide-format source (one row per country, one column
// per year) into a long-format table. The first MetadataLines physical lines
// are skipped; the next line is the header.
//
// Cells that are empty, absent or not numeric become missing values.
// Only structural problems (no header, no identifier columns, a country
// listed twice) are reported as errors.
func Reshape(key string, r io.Reader) (*indicator.Table, error) {
	digest := xxhash.New()
	br := bufio.NewReader(io.TeeReader(r, digest))

	// Skip metadata by physical line. The metadata block contains blank
	// lines that csv.Reader would silently collapse.
	for i := 0; i < MetadataLines; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%s: %w", key, ErrNoHeader)
			}
			return nil, fmt.Errorf("%s: failed to skip metadata: %w", key, err)
		}
	}

	reader := newCSVReader(br)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", key, ErrNoHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", key, err)
	}

	nameIdx, codeIdx := -1, -1
	var years []yearColumn
	for i, h := range header {
		h = cleanHeader(h)
		switch {
		case h == ColumnCountryName:
			nameIdx = i
		case h == ColumnCountryCode:
			codeIdx = i
		case isYear(h):
			year, err := strconv.Atoi(h)
			if err != nil {
				continue // digits but out of int range; not a year
			}
			years = append(years, yearColumn{index: i, year: year})
		}
	}
	if nameIdx < 0 || codeIdx < 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrMissingIDColumn)
	}

	table := &indicator.Table{Key: key}
	seen := make(map[string]bool)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read row: %w", key, err)
		}

		code := cell(record, codeIdx)
		if seen[code] {
			return nil, fmt.Errorf("%s: %w: %q", key, ErrDuplicateCountry, code)
		}
		seen[code] = true
		name := cell(record, nameIdx)

		for _, yc := range years {
			table.Rows = append(table.Rows, indicator.Row{
				CountryName: name,
				CountryCode: code,
				Year:        yc.year,
				Value:       indicator.ParseValue(cell(record, yc.index)),
			})
		}
	}

	// Drain whatever the CSV reader left unread so the fingerprint covers
	// the whole file.
	if _, err := io.Copy(io.Discard, br); err != nil {
		return nil, fmt.Errorf("%s: failed to read source: %w", key, err)
	}
	table.Fingerprint = digest.Sum64()

	return table, nil
}

// LoadFile opens name in fsys and reshapes it
func LoadFile(fsys fs.FS, key, name string) (*indicator.Table, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open source for %s: %w", key, err)
	}
	defer f.Close()

	return Reshape(key, f)
}

// ParseLong reads a long-format file (Country Name, Country Code, Year,
// Value) such as the one produced by the exporter. Empty values are
// missing; a year that is not an integer is an error.
func ParseLong(key string, r io.Reader) (*indicator.Table, error) {
	digest := xxhash.New()
	reader := newCSVReader(io.TeeReader(r, digest))

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", key, ErrNoHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", key, err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[cleanHeader(h)] = i
	}
	for _, col := range []string{ColumnCountryName, ColumnCountryCode, ColumnYear, ColumnValue} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%s: %w: %q", key, ErrMissingLongColumn, col)
		}
	}

	type rowKey struct {
		code string
		year int
	}
	seen := make(map[rowKey]bool)
	table := &indicator.Table{Key: key}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read row: %w", key, err)
		}

		line, _ := reader.FieldPos(0)
		rawYear := strings.TrimSpace(cell(record, idx[ColumnYear]))
		year, err := strconv.Atoi(rawYear)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w: %q", key, line, ErrInvalidYear, rawYear)
		}

		row := indicator.Row{
			CountryName: cell(record, idx[ColumnCountryName]),
			CountryCode: cell(record, idx[ColumnCountryCode]),
			Year:        year,
			Value:       indicator.ParseValue(cell(record, idx[ColumnValue])),
		}

		k := rowKey{code: row.CountryCode, year: row.Year}
		if seen[k] {
			return nil, fmt.Errorf("%s: line %d: %w: %s/%d", key, line, ErrDuplicateRow, row.CountryCode, row.Year)
		}
		seen[k] = true
		table.Rows = append(table.Rows, row)
	}

	table.Fingerprint = digest.Sum64()
	return table, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // trailing commas and short rows are common
	reader.LazyQuotes = true
	return reader
}

// cell returns record[i], or "" when the row is too short
func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func cleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.TrimSpace(h)
}

// isYear reports whether h consists solely of ASCII digits
func isYear(h string) bool {
	if h == "" {
		return false
	}
	for i := 0; i < len(h); i++ {
		if h[i] < '0' || h[i] > '9' {
			return false
		}
	}
	return true
}
