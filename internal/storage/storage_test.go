package storage

import "testing"

// testConfig shrinks pages and blocks so boundary conditions show up with a
// few dozen records, and disables the background merge so tests drive merges
// explicitly.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.PageSize = 64 // 8 cells per page
	cfg.CellSize = 8
	cfg.PagesPerBlock = 4
	cfg.PoolMaxBlocks = 64
	cfg.MinimumDegree = 2
	cfg.ForceMerge = true
	cfg.DebugMode = true
	return cfg
}

// newTestTable creates a table on a fresh temp directory.
func newTestTable(t *testing.T, numColumns, primaryKey int, cfg *Config) *Table {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	table, err := NewTable(t.TempDir(), "test", numColumns, primaryKey, cfg)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return table
}

func ptr(v int64) *int64 { return &v }
