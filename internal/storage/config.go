// Package storage implements the core of tinyLStore: a columnar, append-only
// relational engine that separates immutable base records from chained tail
// records and consolidates the tails back into the bases with a background
// merge.
//
// What: fixed-size pages grouped into block files, a bounded buffer pool with
//       pluggable eviction, a page directory resolving record versions, a
//       per-table index collection, a shared/exclusive lock manager, and
//       strict-2PL transactions.
// How:  every attribute is a signed 64-bit integer; each logical record
//       carries five metadata columns (indirection, RID, timestamp, schema
//       encoding, TPS/BRID) ahead of the user columns.
// Why:  updates append deltas instead of rewriting rows, so writes stay
//       sequential while the merge keeps reads close to one page access.
package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/SimonWaldherr/tinyLStore/internal/structures"
	"gopkg.in/yaml.v3"
)

// Physical column layout: five metadata columns precede the user data.
const (
	// IndirectionColumn holds the RID of the newest tail record, or NullRID.
	IndirectionColumn = 0
	// RIDColumn holds the record's own RID; NullRID marks a tombstone.
	RIDColumn = 1
	// TimestampColumn holds a wall-clock marker.
	TimestampColumn = 2
	// SchemaEncodingColumn holds the N-bit updated-columns bitmap.
	SchemaEncodingColumn = 3
	// TPSAndBRIDColumn holds the tail-page sequence number on base records
	// and the owning base RID on tail records.
	TPSAndBRIDColumn = 4
	// ColumnDataOffset is where the user columns start.
	ColumnDataOffset = 5
)

// NullRID marks an absent indirection target or a tombstoned record.
const NullRID int64 = -1

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config collects every tuning knob of the engine in one value type. A
// Config is created once (defaults or YAML) and passed by pointer into the
// database, table, and buffer-pool constructors.
type Config struct {
	// PageSize and CellSize determine the cells per page (default 4096/8).
	PageSize int `yaml:"page_size"`
	CellSize int `yaml:"cell_size"`

	// PagesPerBlock is the number of pages persisted per block file.
	PagesPerBlock int `yaml:"pages_per_block"`

	// PoolMaxBlocks bounds how many blocks the buffer pool keeps in memory.
	PoolMaxBlocks int `yaml:"pool_max_blocks"`

	// CachePolicy selects the eviction priority rule: lru, mru, zero,
	// leaky-bucket, inverse-leaky-bucket, stochastic.
	CachePolicy string `yaml:"cache_policy"`

	// B+tree tuning.
	MinimumDegree            int     `yaml:"b_plus_tree_minimum_degree"`
	SearchAlgorithmThreshold int     `yaml:"b_plus_tree_search_algorithm_threshold"`
	BulkInsertStartThreshold int     `yaml:"b_plus_tree_bulk_insert_start_threshold"`
	BulkInsertRatioThreshold float64 `yaml:"b_plus_tree_bulk_insert_ratio_threshold"`

	// ForceMerge disables the background merge task; merges then only run
	// when requested explicitly.
	ForceMerge bool `yaml:"force_merge"`

	// MergeInterval is the background merge polling period.
	MergeInterval Duration `yaml:"merge_interval"`

	// NumTailsToMerge is how many queued tail pages one merge pass takes.
	NumTailsToMerge int `yaml:"num_tails_to_merge"`

	// AutomaticNewIndexes enables the auto-index heuristic.
	AutomaticNewIndexes bool `yaml:"automatic_new_indexes"`

	// DebugMode turns on the expensive tree invariant checks.
	DebugMode bool `yaml:"debug_mode"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		PageSize:                 4096,
		CellSize:                 8,
		PagesPerBlock:            16,
		PoolMaxBlocks:            4096,
		CachePolicy:              "lru",
		MinimumDegree:            128,
		SearchAlgorithmThreshold: 10,
		BulkInsertStartThreshold: 100,
		BulkInsertRatioThreshold: 0.30,
		ForceMerge:               false,
		MergeInterval:            Duration(30 * time.Second),
		NumTailsToMerge:          1,
		AutomaticNewIndexes:      true,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// CellsPerPage returns how many cells one page holds.
func (c *Config) CellsPerPage() int64 {
	return int64(c.PageSize / c.CellSize)
}

// cachePolicy maps the configured policy name onto its tagged variant.
func (c *Config) cachePolicy() structures.CachePolicy {
	p := structures.DefaultCachePolicy()
	switch c.CachePolicy {
	case "", "lru":
		p.Kind = structures.PolicyLRU
	case "mru":
		p.Kind = structures.PolicyMRU
	case "zero":
		p.Kind = structures.PolicyZeroWeight
	case "leaky-bucket":
		p.Kind = structures.PolicyLeakyBucket
	case "inverse-leaky-bucket":
		p.Kind = structures.PolicyInverseLeakyBucket
	case "stochastic":
		p.Kind = structures.PolicyStochastic
	}
	return p
}
