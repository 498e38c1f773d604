/*
Package storage defines the read-only view of the indicator store.

# Storage Interface

Query and export code only ever reads tables, so the interface exposes
lookups and nothing that mutates:

	type Storage interface {
	    Registry() *registry.Registry
	    Table(key string) (*indicator.Table, bool)
	    Countries() []indicator.Country
	    Years() indicator.YearBounds
	    Stats() Stats
	}

The only implementation is memory, which reshapes every source file once at
startup and keeps the resulting tables for the life of the process.

# Lifecycle

Building a store happens in three ordered phases:

 1. Load: every base metric is reshaped from its source file (in parallel).
 2. Derive: computed metrics are produced from already loaded tables, in
    declaration order, so a derivation may build on an earlier one.
 3. Index: the country directory and year bounds are taken from the
    configured reference metrics.

Nothing is served until all three phases complete. After that the store,
its tables and its registry never change, so any number of goroutines may
read concurrently without locking.

# Reference Metrics

The country directory and the year bounds are not unions across all
metrics. Each comes from one designated table:

  - countries: gdp_per_capita by default
  - years: population_growth by default

# Usage Example

	store, err := memory.Build(ctx, memory.Options{
	    FS:      os.DirFS("./data"),
	    Base:    registry.DefaultBase(),
	    Derived: derive.DefaultDerivations(),
	})
	if err != nil {
	    log.Fatal(err)
	}

	tbl, ok := store.Table("population_growth")
	years := store.Years()
*/
package storage
