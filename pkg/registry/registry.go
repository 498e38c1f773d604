// Package registry maps metric keys to their display metadata.
//
// Base metrics name the source file they are loaded from. Derived metrics
// have no source; they name the metric they are computed from instead.
// A registry is filled during startup and sealed once every table has been
// built; after that it is read-only and safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

// Kind distinguishes loaded metrics from computed ones
type Kind string

const (
	KindBase    Kind = "base"
	KindDerived Kind = "derived"
)

var (
	ErrInvalidEntry = errors.New("invalid registry entry")
	ErrDuplicateKey = errors.New("metric key already registered")
	ErrSealed       = errors.New("registry is sealed")
)

// Entry describes one metric
type Entry struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Kind  Kind   `json:"kind"`

	// Source is the file a base metric is loaded from. Empty for derived metrics.
	Source string `json:"source,omitempty"`

	// From is the metric a derived metric is computed from. Empty for base metrics.
	From string `json:"from,omitempty"`
}

// Validate checks the entry in isolation
func (e Entry) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidEntry)
	}
	if e.Title == "" {
		return fmt.Errorf("%w: %s: title is required", ErrInvalidEntry, e.Key)
	}

	switch e.Kind {
	case KindBase:
		if e.Source == "" {
			return fmt.Errorf("%w: %s: base metric needs a source", ErrInvalidEntry, e.Key)
		}
		if e.From != "" {
			return fmt.Errorf("%w: %s: base metric cannot be derived", ErrInvalidEntry, e.Key)
		}
	case KindDerived:
		if e.Source != "" {
			return fmt.Errorf("%w: %s: derived metric cannot have a source", ErrInvalidEntry, e.Key)
		}
		if e.From == "" {
			return fmt.Errorf("%w: %s: derived metric needs a parent", ErrInvalidEntry, e.Key)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidEntry, e.Key, e.Kind)
	}
	return nil
}

// Registry holds entries in registration order
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
	sealed  bool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds an entry. Derived entries must name an already registered parent.
func (r *Registry) Register(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrSealed, e.Key)
	}
	if _, exists := r.index[e.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, e.Key)
	}
	if e.Kind == KindDerived {
		if _, ok := r.index[e.From]; !ok {
			return fmt.Errorf("%w: %s: parent %q is not registered", ErrInvalidEntry, e.Key, e.From)
		}
	}

	r.index[e.Key] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

// Seal makes the registry read-only
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the entry for key. There is no fallback for unknown keys.
func (r *Registry) Lookup(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[key]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Entries returns a copy of all entries in registration order
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Keys returns all keys in registration order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key
	}
	return keys
}

// Titles returns the key -> title mapping served to clients
func (r *Registry) Titles() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	titles := make(map[string]string, len(r.entries))
	for _, e := range r.entries {
		titles[e.Key] = e.Title
	}
	return titles
}

// Len returns the number of entries
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// DefaultBase returns the World Development Indicators shipped with the dashboard
func DefaultBase() []Entry {
	return []Entry{
		{
			Key:    "gdp_per_capita",
			Title:  "GDP per Capita (current US$)",
			Kind:   KindBase,
			Source: "API_NY.GDP.PCAP.CD_DS2_en_csv_v2_19346.csv",
		},
		{
			Key:    "net_migration",
			Title:  "Net Migration",
			Kind:   KindBase,
			Source: "API_SM.POP.NETM_DS2_en_csv_v2_19300.csv",
		},
		{
			Key:    "unemployment_rate",
			Title:  "Unemployment Rate (% of labour force)",
			Kind:   KindBase,
			Source: "API_SL.UEM.TOTL.ZS_DS2_en_csv_v2_19329.csv",
		},
		{
			Key:    "total_population",
			Title:  "Total Population",
			Kind:   KindBase,
			Source: "API_SP.POP.TOTL_DS2_en_csv_v2_19373.csv",
		},
	}
}
