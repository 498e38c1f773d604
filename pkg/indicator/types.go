package indicator

import (
	"sort"
)

// Row is one (country, year, value) observation in long format
type Row struct {
	CountryName string `json:"countryName"`
	CountryCode string `json:"countryCode"`
	Year        int    `json:"year"`
	Value       Value  `json:"value"`
}

// Country is one entry of the country directory.
// Field names match the column headers of the source files.
type Country struct {
	Name string `json:"Country Name"`
	Code string `json:"Country Code"`
}

// YearBounds is the inclusive temporal extent of a table
type YearBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether year lies within the bounds (inclusive)
func (b YearBounds) Contains(year int) bool {
	return year >= b.Min && year <= b.Max
}

// Table is the long-format representation of one indicator.
// At most one row exists per (CountryCode, Year). Tables are never
// mutated once they have been handed to a store.
type Table struct {
	Key  string
	Rows []Row

	// Fingerprint identifies the bytes the table was built from
	// (xxhash64 of the source file, or a mix of the parent's fingerprint
	// and the derived key for computed tables).
	Fingerprint uint64
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Filter returns the rows matching pred, preserving table order
func (t *Table) Filter(pred func(Row) bool) []Row {
	var out []Row
	for _, r := range t.Rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// YearBounds returns the min and max Year across all rows, regardless of
// whether their values are missing. ok is false for an empty table.
func (t *Table) YearBounds() (bounds YearBounds, ok bool) {
	if t.Len() == 0 {
		return YearBounds{}, false
	}

	bounds = YearBounds{Min: t.Rows[0].Year, Max: t.Rows[0].Year}
	for _, r := range t.Rows[1:] {
		if r.Year < bounds.Min {
			bounds.Min = r.Year
		}
		if r.Year > bounds.Max {
			bounds.Max = r.Year
		}
	}
	return bounds, true
}

// Countries returns the distinct (name, code) pairs in the table sorted by
// name. Ties on name are broken by code so the order is deterministic.
func (t *Table) Countries() []Country {
	seen := make(map[Country]bool)
	countries := make([]Country, 0)

	for _, r := range t.Rows {
		c := Country{Name: r.CountryName, Code: r.CountryCode}
		if seen[c] {
			continue
		}
		seen[c] = true
		countries = append(countries, c)
	}

	sort.Slice(countries, func(i, j int) bool {
		if countries[i].Name != countries[j].Name {
			return countries[i].Name < countries[j].Name
		}
		return countries[i].Code < countries[j].Code
	})
	return countries
}
