// Package indicator defines the long-format table shared by every stage of
// the pipeline.
//
// A source file has one row per country and one column per year. Reshaping
// turns it into a Table with one Row per (country, year) cell. Values that
// could not be read are kept as rows whose Value is missing, so a table
// always preserves the shape of the file it came from.
//
// # Missing values
//
// Value distinguishes "no observation" from zero:
//
//	indicator.Some(0)        // present, zero
//	indicator.Missing()      // absent
//	indicator.ParseValue("") // absent
//	indicator.ParseValue("n/a") // absent, never an error
//
// Missing values encode as JSON null and as an empty CSV field.
package indicator
