package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Database is the table catalog and the root of the on-disk layout: one
// directory per table under the database root, each holding its base/ and
// tail/ column directories plus the meta.data footer.
type Database struct {
	mu     sync.Mutex
	path   string
	cfg    *Config
	tables map[string]*Table
}

// NewDatabase creates a closed database handle with the given configuration;
// nil selects the defaults.
func NewDatabase(cfg *Config) *Database {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Database{cfg: cfg, tables: make(map[string]*Table)}
}

// Config returns the engine configuration the database hands to its tables.
func (db *Database) Config() *Config {
	return db.cfg
}

// Open binds the database to a root directory, creating it when absent.
func (db *Database) Open(path string) error {
	if path == "" {
		return fmt.Errorf("open database: empty path")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("open database %s: %w", path, err)
	}
	db.mu.Lock()
	db.path = path
	db.mu.Unlock()
	return nil
}

// Close persists every open table: footer written, buffer pool flushed,
// merge task stopped.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for name, t := range db.tables {
		if err := t.Close(); err != nil {
			return fmt.Errorf("close table %s: %w", name, err)
		}
	}
	return nil
}

// CreateTable creates a new table under the database configuration. It
// fails with ErrTableNotUnique when the name is already cataloged or its
// directory exists on disk.
func (db *Database) CreateTable(name string, numColumns, keyIndex int) (*Table, error) {
	return db.createTable(name, numColumns, keyIndex, db.cfg)
}

// CreateTableWithMerge creates a table with a per-table merge policy:
// forceMerge disables the background task, mergeInterval overrides the
// polling period.
func (db *Database) CreateTableWithMerge(name string, numColumns, keyIndex int, forceMerge bool, mergeInterval time.Duration) (*Table, error) {
	cfg := *db.cfg
	cfg.ForceMerge = forceMerge
	if mergeInterval > 0 {
		cfg.MergeInterval = Duration(mergeInterval)
	}
	return db.createTable(name, numColumns, keyIndex, &cfg)
}

func (db *Database) createTable(name string, numColumns, keyIndex int, cfg *Config) (*Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tablePath := filepath.Join(db.path, name)
	if _, taken := db.tables[name]; taken {
		return nil, fmt.Errorf("create table %s: %w", name, ErrTableNotUnique)
	}
	if _, err := os.Stat(tablePath); err == nil {
		return nil, fmt.Errorf("create table %s: %w", name, ErrTableNotUnique)
	}

	table, err := NewTable(db.path, name, numColumns, keyIndex, cfg)
	if err != nil {
		return nil, err
	}
	db.tables[name] = table
	return table, nil
}

// DropTable removes a table from disk and from the catalog.
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tablePath := filepath.Join(db.path, name)
	table, cached := db.tables[name]
	if _, err := os.Stat(tablePath); !cached && err != nil {
		return fmt.Errorf("drop table %s: %w", name, ErrTableNotFound)
	}

	if cached {
		table.stopMergeTask()
		delete(db.tables, name)
	}
	if err := os.RemoveAll(tablePath); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	return nil
}

// GetTable returns the cached handle or rehydrates the table from its
// directory.
func (db *Database) GetTable(name string) (*Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if table, ok := db.tables[name]; ok {
		return table, nil
	}
	tablePath := filepath.Join(db.path, name)
	if _, err := os.Stat(tablePath); err != nil {
		return nil, fmt.Errorf("get table %s: %w", name, ErrTableNotFound)
	}

	// Column count and primary key come from the persisted footer.
	table, err := NewTable(db.path, name, 0, 0, db.cfg)
	if err != nil {
		return nil, err
	}
	db.tables[name] = table
	return table, nil
}
