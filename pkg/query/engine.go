// Package query answers filter/group requests against the indicator store.
//
// A request names a set of country codes, a set of metric keys and an
// inclusive year range. The result maps each metric that has at least one
// surviving row to its per-country series:
//
//	{
//	  "gdp_per_capita": {
//	    "label": "GDP per Capita (current US$)",
//	    "series": {
//	      "ABW": {"countryName": "Aruba", "years": [2000, 2001], "values": [20620.7, 20669.0]}
//	    }
//	  }
//	}
//
// Metric keys that are not loaded are dropped from the result without an
// error, and rows with a missing value never appear in a series.
package query

import (
	"sort"

	"github.com/nicktill/econdash/pkg/indicator"
	"github.com/nicktill/econdash/pkg/storage"
)

// Request selects rows from one or more metrics.
// StartYear and EndYear are inclusive and must already be validated.
type Request struct {
	Countries []string
	Metrics   []string
	StartYear int
	EndYear   int
}

// CountrySeries is one country's observations in ascending year order.
// Years and Values always have the same length.
type CountrySeries struct {
	CountryName string    `json:"countryName"`
	Years       []int     `json:"years"`
	Values      []float64 `json:"values"`
}

// MetricSeries is one metric's result, keyed by country code.
type MetricSeries struct {
	Label  string                   `json:"label"`
	Series map[string]CountrySeries `json:"series"`
}

// Result maps metric key to its series.
type Result map[string]MetricSeries

// Metadata describes what can be queried.
type Metadata struct {
	Countries []indicator.Country  `json:"countries"`
	Years     indicator.YearBounds `json:"years"`
	Metrics   map[string]string    `json:"metrics"`
}

// Observer is notified when a requested metric is dropped.
type Observer interface {
	MetricSkipped(key string)
}

// Engine executes queries. It holds no state besides the store.
type Engine struct {
	store    storage.Storage
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports skipped metrics to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine creates a query engine over store.
func NewEngine(store storage.Storage, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs req. Unknown metrics and metrics with no surviving rows are
// absent from the result.
func (e *Engine) Execute(req Request) Result {
	countries := make(map[string]bool, len(req.Countries))
	for _, c := range req.Countries {
		countries[c] = true
	}

	reg := e.store.Registry()
	result := make(Result)

	for _, key := range req.Metrics {
		if _, done := result[key]; done {
			continue
		}

		tbl, ok := e.store.Table(key)
		if !ok {
			if e.observer != nil {
				e.observer.MetricSkipped(key)
			}
			continue
		}

		rows := tbl.Filter(func(r indicator.Row) bool {
			return countries[r.CountryCode] &&
				r.Year >= req.StartYear && r.Year <= req.EndYear &&
				!r.Value.IsMissing()
		})
		if len(rows) == 0 {
			continue
		}

		label := key
		if entry, ok := reg.Lookup(key); ok {
			label = entry.Title
		}
		result[key] = MetricSeries{Label: label, Series: group(rows)}
	}

	return result
}

// group splits rows by country code, each group sorted by year.
func group(rows []indicator.Row) map[string]CountrySeries {
	byCountry := make(map[string][]indicator.Row)
	for _, r := range rows {
		byCountry[r.CountryCode] = append(byCountry[r.CountryCode], r)
	}

	series := make(map[string]CountrySeries, len(byCountry))
	for code, group := range byCountry {
		sort.Slice(group, func(i, j int) bool { return group[i].Year < group[j].Year })

		s := CountrySeries{
			CountryName: group[0].CountryName,
			Years:       make([]int, len(group)),
			Values:      make([]float64, len(group)),
		}
		for i, r := range group {
			s.Years[i] = r.Year
			s.Values[i], _ = r.Value.Float()
		}
		series[code] = s
	}
	return series
}

// Metadata returns the country directory, year bounds and metric titles.
func (e *Engine) Metadata() Metadata {
	return Metadata{
		Countries: e.store.Countries(),
		Years:     e.store.Years(),
		Metrics:   e.store.Registry().Titles(),
	}
}
