package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/econdash/pkg/indicator"
	"github.com/nicktill/econdash/pkg/reshape"
	"github.com/nicktill/econdash/pkg/storage"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var (
	ErrUnknownMetric = errors.New("unknown metric")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Header is the column order of exported CSV files
var Header = []string{reshape.ColumnCountryName, reshape.ColumnCountryCode, reshape.ColumnYear, reshape.ColumnValue}

// Observer is notified of export outcomes
type Observer interface {
	UnknownMetric(key string)
	RowsExported(metric string, n int)
}

// Exporter serializes filtered metric tables
type Exporter struct {
	storage  storage.Storage
	observer Observer
}

// NewExporter creates a new exporter
func NewExporter(store storage.Storage, observer Observer) *Exporter {
	return &Exporter{storage: store, observer: observer}
}

// Options selects what to export
type Options struct {
	Metric    string
	Countries []string

	// Inclusive year range
	StartYear int
	EndYear   int

	// "csv" (default) or "json"
	Format string
}

// Result contains stats about the export
type Result struct {
	Metric     string    `json:"metric"`
	Rows       int       `json:"rows"`
	Format     string    `json:"format"`
	Filename   string    `json:"filename"`
	ExportedAt time.Time `json:"exported_at"`
}

// Filename returns the suggested download name
func Filename(metric string, startYear, endYear int) string {
	return fmt.Sprintf("%s_%d_%d.csv", metric, startYear, endYear)
}

// Rows returns the rows of opts.Metric for the requested countries and
// years, in table order. Missing values are kept.
func (e *Exporter) Rows(opts Options) (*indicator.Table, error) {
	tbl, ok := e.storage.Table(opts.Metric)
	if !ok {
		if e.observer != nil {
			e.observer.UnknownMetric(opts.Metric)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, opts.Metric)
	}

	countries := make(map[string]bool, len(opts.Countries))
	for _, c := range opts.Countries {
		countries[c] = true
	}

	return &indicator.Table{
		Key: tbl.Key,
		Rows: tbl.Filter(func(r indicator.Row) bool {
			return countries[r.CountryCode] && r.Year >= opts.StartYear && r.Year <= opts.EndYear
		}),
		Fingerprint: tbl.Fingerprint,
	}, nil
}

// Export writes the selection in opts.Format. Nothing is written when the
// metric is unknown.
func (e *Exporter) Export(w io.Writer, opts Options) (*Result, error) {
	switch opts.Format {
	case "", FormatCSV:
		return e.ExportToCSV(w, opts)
	case FormatJSON:
		return e.ExportToJSON(w, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// ExportToCSV writes a header row and one row per selected observation.
// Missing values are written as empty fields.
func (e *Exporter) ExportToCSV(w io.Writer, opts Options) (*Result, error) {
	tbl, err := e.Rows(opts)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range tbl.Rows {
		record := []string{
			r.CountryName,
			r.CountryCode,
			strconv.Itoa(r.Year),
			r.Value.String(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return e.result(opts, tbl.Len(), FormatCSV), nil
}

// Document is the JSON export format
type Document struct {
	Metadata struct {
		Metric     string    `json:"metric"`
		Title      string    `json:"title"`
		Countries  []string  `json:"countries"`
		StartYear  int       `json:"start_year"`
		EndYear    int       `json:"end_year"`
		RowCount   int       `json:"row_count"`
		ExportedAt time.Time `json:"exported_at"`
		Version    string    `json:"version"`
	} `json:"metadata"`
	Rows []indicator.Row `json:"rows"`
}

// ExportToJSON writes a Document. Missing values are encoded as null.
func (e *Exporter) ExportToJSON(w io.Writer, opts Options) (*Result, error) {
	tbl, err := e.Rows(opts)
	if err != nil {
		return nil, err
	}

	var doc Document
	doc.Metadata.Metric = opts.Metric
	if entry, ok := e.storage.Registry().Lookup(opts.Metric); ok {
		doc.Metadata.Title = entry.Title
	}
	doc.Metadata.Countries = opts.Countries
	doc.Metadata.StartYear = opts.StartYear
	doc.Metadata.EndYear = opts.EndYear
	doc.Metadata.RowCount = tbl.Len()
	doc.Metadata.ExportedAt = time.Now().UTC()
	doc.Metadata.Version = "1.0"
	doc.Rows = tbl.Rows
	if doc.Rows == nil {
		doc.Rows = []indicator.Row{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return e.result(opts, tbl.Len(), FormatJSON), nil
}

func (e *Exporter) result(opts Options, rows int, format string) *Result {
	if e.observer != nil {
		e.observer.RowsExported(opts.Metric, rows)
	}

	name := Filename(opts.Metric, opts.StartYear, opts.EndYear)
	if format == FormatJSON {
		name = name[:len(name)-len(".csv")] + ".json"
	}
	return &Result{
		Metric:     opts.Metric,
		Rows:       rows,
		Format:     format,
		Filename:   name,
		ExportedAt: time.Now(),
	}
}
