package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nicktill/econdash/pkg/derive"
	"github.com/nicktill/econdash/pkg/indicator"
	"github.com/nicktill/econdash/pkg/logger"
	"github.com/nicktill/econdash/pkg/registry"
	"github.com/nicktill/econdash/pkg/reshape"
	"github.com/nicktill/econdash/pkg/storage"
)

const (
	DefaultCountryReference = "gdp_per_capita"
	DefaultYearReference    = "population_growth"
)

var (
	ErrUnknownReference = errors.New("reference metric is not loaded")
	ErrEmptyReference   = errors.New("reference metric has no rows")
	ErrUnknownTransform = errors.New("unknown transform")
	ErrUnregisteredKey  = errors.New("table has no registry entry")
)

// Options configures Build
type Options struct {
	// FS holds the source files named by Base entries
	FS fs.FS

	// Base metrics to load, in registry order
	Base []registry.Entry

	// Derived metrics to compute after loading, in order
	Derived []derive.Derivation

	// Metric the country directory is taken from
	CountryReference string

	// Metric the year bounds are taken from
	YearReference string

	// Maximum number of files reshaped at once (0 = NumCPU)
	LoadConcurrency int

	Logger logger.Logger
}

// Store keeps every table in memory. Data is lost on restart.
// A Store is immutable after construction; no method takes a lock.
type Store struct {
	registry  *registry.Registry
	tables    map[string]*indicator.Table
	countries []indicator.Country
	years     indicator.YearBounds
	stats     storage.Stats
}

var _ storage.Storage = (*Store)(nil)

// Build loads every base metric, computes every derived metric, then
// indexes countries and years. It returns only when the store is complete.
func Build(ctx context.Context, opts Options) (*Store, error) {
	start := time.Now()

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	concurrency := opts.LoadConcurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	if opts.FS == nil && len(opts.Base) > 0 {
		return nil, errors.New("no source filesystem configured")
	}

	reg := registry.New()
	for _, e := range opts.Base {
		if err := reg.Register(e); err != nil {
			return nil, err
		}
	}

	// Phase 1: load base tables
	loaded := make([]*indicator.Table, len(opts.Base))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, e := range opts.Base {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			t0 := time.Now()
			tbl, err := reshape.LoadFile(opts.FS, e.Key, e.Source)
			if err != nil {
				return err
			}
			loaded[i] = tbl

			log.Info(gctx, "Loaded base metric",
				logger.String("metric", e.Key),
				logger.String("source", e.Source),
				logger.Int("rows", tbl.Len()),
				logger.Duration("took", time.Since(t0)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load base metrics: %w", err)
	}

	tables := make(map[string]*indicator.Table, len(opts.Base)+len(opts.Derived))
	for _, tbl := range loaded {
		tables[tbl.Key] = tbl
	}

	// Phase 2: derived tables, in declaration order
	for _, d := range opts.Derived {
		tr, ok := derive.Lookup(d.Transform)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %q", d.Key, ErrUnknownTransform, d.Transform)
		}
		parent, ok := tables[d.From]
		if !ok {
			return nil, fmt.Errorf("%s: %w: parent %q", d.Key, ErrUnknownReference, d.From)
		}

		if err := reg.Register(registry.Entry{
			Key:   d.Key,
			Title: d.Title,
			Kind:  registry.KindDerived,
			From:  d.From,
		}); err != nil {
			return nil, err
		}

		tbl := tr.Apply(parent, d.Key)
		tables[d.Key] = tbl

		log.Info(ctx, "Computed derived metric",
			logger.String("metric", d.Key),
			logger.String("from", d.From),
			logger.String("transform", d.Transform),
			logger.Int("rows", tbl.Len()),
		)
	}

	// Phase 3: directory and bounds
	s, err := assemble(reg, tables, referenceOr(opts.CountryReference, DefaultCountryReference), referenceOr(opts.YearReference, DefaultYearReference))
	if err != nil {
		return nil, err
	}
	s.stats.LoadDuration = time.Since(start)

	log.Info(ctx, "Store ready",
		logger.Int("tables", s.stats.Tables),
		logger.Int("rows", s.stats.TotalRows),
		logger.Int("countries", len(s.countries)),
		logger.Int("min_year", s.years.Min),
		logger.Int("max_year", s.years.Max),
		logger.Duration("took", s.stats.LoadDuration),
	)
	return s, nil
}

// New assembles a store from tables that are already built. Every table
// must have an entry in reg. The registry is sealed.
func New(reg *registry.Registry, tables []*indicator.Table, countryRef, yearRef string) (*Store, error) {
	byKey := make(map[string]*indicator.Table, len(tables))
	for _, t := range tables {
		byKey[t.Key] = t
	}
	return assemble(reg, byKey, referenceOr(countryRef, DefaultCountryReference), referenceOr(yearRef, DefaultYearReference))
}

func assemble(reg *registry.Registry, tables map[string]*indicator.Table, countryRef, yearRef string) (*Store, error) {
	for key := range tables {
		if _, ok := reg.Lookup(key); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnregisteredKey, key)
		}
	}

	countryTable, ok := tables[countryRef]
	if !ok {
		return nil, fmt.Errorf("country directory: %w: %s", ErrUnknownReference, countryRef)
	}
	yearTable, ok := tables[yearRef]
	if !ok {
		return nil, fmt.Errorf("year bounds: %w: %s", ErrUnknownReference, yearRef)
	}
	years, ok := yearTable.YearBounds()
	if !ok {
		return nil, fmt.Errorf("year bounds: %w: %s", ErrEmptyReference, yearRef)
	}

	reg.Seal()

	s := &Store{
		registry:  reg,
		tables:    tables,
		countries: countryTable.Countries(),
		years:     years,
	}
	s.stats = s.computeStats()
	return s, nil
}

func (s *Store) computeStats() storage.Stats {
	stats := storage.Stats{
		Countries: len(s.countries),
		LoadedAt:  time.Now(),
	}

	for _, e := range s.registry.Entries() {
		tbl, ok := s.tables[e.Key]
		if !ok {
			continue
		}
		missing := 0
		for _, r := range tbl.Rows {
			if r.Value.IsMissing() {
				missing++
			}
		}
		stats.Tables++
		stats.TotalRows += tbl.Len()
		stats.PerTable = append(stats.PerTable, storage.TableStats{
			Key:         e.Key,
			Kind:        string(e.Kind),
			Rows:        tbl.Len(),
			Missing:     missing,
			Fingerprint: strconv.FormatUint(tbl.Fingerprint, 16),
		})
	}
	return stats
}

// Registry returns the sealed registry
func (s *Store) Registry() *registry.Registry {
	return s.registry
}

// Table returns the table for key
func (s *Store) Table(key string) (*indicator.Table, bool) {
	t, ok := s.tables[key]
	return t, ok
}

// Countries returns the country directory
func (s *Store) Countries() []indicator.Country {
	out := make([]indicator.Country, len(s.countries))
	copy(out, s.countries)
	return out
}

// Years returns the year bounds
func (s *Store) Years() indicator.YearBounds {
	return s.years
}

// Stats returns load statistics
func (s *Store) Stats() storage.Stats {
	stats := s.stats
	stats.PerTable = append([]storage.TableStats(nil), s.stats.PerTable...)
	return stats
}

func referenceOr(key, fallback string) string {
	if key == "" {
		return fallback
	}
	return key
}
