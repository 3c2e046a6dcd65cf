package storage

import (
	"errors"
	"testing"
)

func newTestPool(t *testing.T, cfg *Config) *BufferPool {
	t.Helper()
	pool, err := NewBufferPool(t.TempDir(), 2, cfg)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}
	return pool
}

func TestBufferPool_AddAndGet(t *testing.T) {
	cfg := testConfig()
	pool := newTestPool(t, cfg)

	p := NewPage(cfg.PageSize, cfg.CellSize)
	p.Write(11)
	if err := pool.AddPage(p, 0, 0, false); err != nil {
		t.Fatalf("add page: %v", err)
	}

	got, err := pool.GetPage(0, 0, false, IntentRead)
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	if v, _ := got.Read(0); v != 11 {
		t.Fatalf("read = %d, want 11", v)
	}

	if _, err := pool.GetPage(3, 0, false, IntentRead); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("get absent page = %v, want ErrPageOutOfRange", err)
	}
}

func TestBufferPool_PagesSpanBlocks(t *testing.T) {
	cfg := testConfig() // 4 pages per block
	pool := newTestPool(t, cfg)

	for i := int64(0); i < 10; i++ {
		p := NewPage(cfg.PageSize, cfg.CellSize)
		p.Write(i * 7)
		if err := pool.AddPage(p, i, 1, true); err != nil {
			t.Fatalf("add page %d: %v", i, err)
		}
	}
	for i := int64(0); i < 10; i++ {
		p, err := pool.GetPage(i, 1, true, IntentRead)
		if err != nil {
			t.Fatalf("get page %d: %v", i, err)
		}
		if v, _ := p.Read(0); v != i*7 {
			t.Fatalf("page %d read = %d, want %d", i, v, i*7)
		}
	}
}

func TestBufferPool_FlushAndReload(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	pool, err := NewBufferPool(dir, 1, cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	p := NewPage(cfg.PageSize, cfg.CellSize)
	p.Write(123)
	pool.AddPage(p, 0, 0, false)
	if err := pool.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// A fresh pool over the same directory must read the block back.
	pool2, err := NewBufferPool(dir, 1, cfg)
	if err != nil {
		t.Fatalf("second pool: %v", err)
	}
	got, err := pool2.GetPage(0, 0, false, IntentRead)
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if v, _ := got.Read(0); v != 123 {
		t.Fatalf("reloaded read = %d, want 123", v)
	}
}

func TestBufferPool_EvictionWritesDirtyBlocks(t *testing.T) {
	cfg := testConfig()
	cfg.PoolMaxBlocks = 2 // force evictions quickly
	dir := t.TempDir()
	pool, err := NewBufferPool(dir, 1, cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	// Fill 6 blocks; with capacity 2 most get evicted along the way.
	for i := int64(0); i < 24; i++ {
		p := NewPage(cfg.PageSize, cfg.CellSize)
		p.Write(i)
		if err := pool.AddPage(p, i, 0, false); err != nil {
			t.Fatalf("add page %d: %v", i, err)
		}
	}

	// Every page must still be readable, reloading evicted blocks from disk.
	for i := int64(0); i < 24; i++ {
		p, err := pool.GetPage(i, 0, false, IntentRead)
		if err != nil {
			t.Fatalf("get page %d: %v", i, err)
		}
		if v, _ := p.Read(0); v != i {
			t.Fatalf("page %d read = %d", i, v)
		}
	}
}

func TestBufferPool_UpdatePageReplacesSlot(t *testing.T) {
	cfg := testConfig()
	pool := newTestPool(t, cfg)

	p := NewPage(cfg.PageSize, cfg.CellSize)
	p.Write(1)
	pool.AddPage(p, 0, 0, false)

	replacement := NewPage(cfg.PageSize, cfg.CellSize)
	replacement.Write(2)
	if err := pool.UpdatePage(replacement, 0, 0, false); err != nil {
		t.Fatalf("update page: %v", err)
	}

	got, _ := pool.GetPage(0, 0, false, IntentRead)
	if v, _ := got.Read(0); v != 2 {
		t.Fatalf("read after update = %d, want 2", v)
	}
}

func TestBufferPool_WriteIntentSurvivesFlushCycle(t *testing.T) {
	cfg := testConfig()
	cfg.PoolMaxBlocks = 2
	dir := t.TempDir()
	pool, _ := NewBufferPool(dir, 1, cfg)

	p := NewPage(cfg.PageSize, cfg.CellSize)
	p.Write(5)
	pool.AddPage(p, 0, 0, false)

	// Mutate through a write-intent access, then churn the pool to force
	// the block out and back in.
	page, err := pool.GetPage(0, 0, false, IntentWrite)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	page.WriteAt(50, 0)
	if err := pool.UpdatePage(page, 0, 0, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	for i := int64(4); i < 20; i += 4 {
		fresh := NewPage(cfg.PageSize, cfg.CellSize)
		fresh.Write(i)
		pool.AddPage(fresh, i, 0, false)
	}

	got, err := pool.GetPage(0, 0, false, IntentRead)
	if err != nil {
		t.Fatalf("get after churn: %v", err)
	}
	if v, _ := got.Read(0); v != 50 {
		t.Fatalf("read = %d, want 50", v)
	}
}
