// Package export serializes one metric's filtered rows for download.
//
// # Overview
//
// Unlike the query engine, export works on a single metric and keeps the
// tabular shape of the data: rows with a missing value are written rather
// than dropped. Asking for a metric that is not loaded is an error
// (ErrUnknownMetric), which the HTTP layer reports as 400 Bad Request.
//
// # Supported Formats
//
// CSV Format (default):
//   - Header row: Country Name,Country Code,Year,Value
//   - One row per selected (country, year), in table order
//   - Missing values are empty fields
//   - Readable again with ReadCSV
//
// JSON Format:
//   - Export metadata (metric, title, countries, year range, row count)
//   - Rows with null for missing values
//   - Readable again with ReadJSON
//
// # HTTP API
//
// Endpoint: GET /download
// Query parameters:
//   - metric: metric key (required)
//   - countries: comma-separated country codes
//   - start_year, end_year: inclusive bounds (required integers)
//   - format: "csv" or "json" (default: csv)
//
// Example:
//
//	curl "http://localhost:5000/download?metric=gdp_per_capita&countries=ABW,AFG&start_year=2000&end_year=2010" \
//	  -o gdp_per_capita_2000_2010.csv
//
// # Programmatic Usage
//
//	exporter := export.NewExporter(store, nil)
//	result, err := exporter.Export(os.Stdout, export.Options{
//	    Metric:    "total_population",
//	    Countries: []string{"ABW"},
//	    StartYear: 1990,
//	    EndYear:   2020,
//	})
//	if errors.Is(err, export.ErrUnknownMetric) {
//	    // no data was written
//	}
package export
