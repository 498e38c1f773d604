package storage

import (
	"time"

	"github.com/nicktill/econdash/pkg/indicator"
	"github.com/nicktill/econdash/pkg/registry"
)

// Storage is the read-only indicator store queried by the API.
// Implementations must be immutable once constructed.
type Storage interface {
	// Registry returns the sealed metric registry
	Registry() *registry.Registry

	// Table returns the long-format table for key
	Table(key string) (*indicator.Table, bool)

	// Countries returns the country directory, sorted by name
	Countries() []indicator.Country

	// Years returns the temporal extent of the year reference metric
	Years() indicator.YearBounds

	// Stats returns load statistics
	Stats() Stats
}

// TableStats describes one loaded table
type TableStats struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"`
	Rows        int    `json:"rows"`
	Missing     int    `json:"missing"`
	Fingerprint string `json:"fingerprint"`
}

// Stats provides store size and load info
type Stats struct {
	// Number of tables (base + derived)
	Tables int `json:"tables"`

	// Total rows across all tables
	TotalRows int `json:"total_rows"`

	// Per-table details in registry order
	PerTable []TableStats `json:"per_table"`

	// Countries in the directory
	Countries int `json:"countries"`

	// Time taken by Build
	LoadDuration time.Duration `json:"load_duration_ns"`

	// When the store became ready
	LoadedAt time.Time `json:"loaded_at"`
}
