package store

// Config holds configuration for the Store.
type Config struct {
	// UniqueTable is the name of the unique constraints table.
	// Default: "gantry_unique_constraints"
	UniqueTable string

	// BatchSize is the page size for batch writes.
	// DynamoDB caps BatchWriteItem at 25 items per request.
	// Default: 25, Max: 25
	BatchSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UniqueTable: "gantry_unique_constraints",
		BatchSize:   25,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.UniqueTable == "" {
		c.UniqueTable = "gantry_unique_constraints"
	}
	if c.BatchSize < 1 || c.BatchSize > 25 {
		c.BatchSize = 25
	}
}
