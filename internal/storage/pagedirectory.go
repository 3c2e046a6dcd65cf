package storage

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/SimonWaldherr/tinyLStore/internal/structures"
)

// PageDirectory is the logical column store over the buffer pool. For a
// table of N+5 physical columns it maintains two parallel stacks of pages
// per column, base and tail; a RID is the zero-based index into one of the
// streams, so page number and cell offset fall out of a division.
type PageDirectory struct {
	dbPath     string
	tableName  string
	numColumns int
	cfg        *Config

	mu             sync.Mutex
	numRecords     int64
	numTailRecords int64
	numTailPages   int64

	// appendLatch serializes record appends without blocking readers that
	// only touch existing pages.
	appendLatch structures.Latch

	pool *BufferPool
}

// NewPageDirectory creates the directory and its buffer pool, resuming the
// given record counts, and the tail-page count they imply, when rehydrating
// a persisted table.
func NewPageDirectory(dbPath, tableName string, numColumns int, numRecords, numTailRecords int64, cfg *Config) (*PageDirectory, error) {
	pool, err := NewBufferPool(filepath.Join(dbPath, tableName), numColumns, cfg)
	if err != nil {
		return nil, err
	}
	return &PageDirectory{
		dbPath:         dbPath,
		tableName:      tableName,
		numColumns:     numColumns,
		cfg:            cfg,
		numRecords:     numRecords,
		numTailRecords: numTailRecords,
		numTailPages:   (numTailRecords + cfg.CellsPerPage() - 1) / cfg.CellsPerPage(),
		pool:           pool,
	}, nil
}

// NumRecords returns the length of the base record stream.
func (pd *PageDirectory) NumRecords() int64 {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.numRecords
}

// NumTailRecords returns the length of the tail record stream.
func (pd *PageDirectory) NumTailRecords() int64 {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.numTailRecords
}

// NumTailPages returns how many tail pages exist; the merge scheduler polls
// this counter.
func (pd *PageDirectory) NumTailPages() int64 {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.numTailPages
}

// Pool exposes the buffer pool; the merge addresses whole pages through it.
func (pd *PageDirectory) Pool() *BufferPool {
	return pd.pool
}

// AddRecord appends one value per physical column, creating a fresh page per
// column when the previous one filled up, and bumps the stream counter.
func (pd *PageDirectory) AddRecord(values []int64, tail bool) error {
	if len(values) != pd.numColumns {
		return fmt.Errorf("add record: %w: %d values for %d columns", ErrColumnOutOfRange, len(values), pd.numColumns)
	}

	for !pd.appendLatch.RequestExclusive() {
		runtime.Gosched()
	}
	defer pd.appendLatch.Release()

	pd.mu.Lock()
	count := pd.numRecords
	if tail {
		count = pd.numTailRecords
	}
	pd.mu.Unlock()

	capacity := pd.cfg.CellsPerPage()
	pageNum := count / capacity
	newPage := count%capacity == 0

	for column, value := range values {
		if newPage {
			page := NewPage(pd.cfg.PageSize, pd.cfg.CellSize)
			if err := page.Write(value); err != nil {
				return err
			}
			if err := pd.pool.AddPage(page, pageNum, column, tail); err != nil {
				return err
			}
			continue
		}
		page, err := pd.pool.GetPage(pageNum, column, tail, IntentWrite)
		if err != nil {
			return err
		}
		if err := page.Write(value); err != nil {
			return err
		}
		if err := pd.pool.UpdatePage(page, pageNum, column, tail); err != nil {
			return err
		}
	}

	pd.mu.Lock()
	if tail {
		pd.numTailRecords++
		if newPage {
			pd.numTailPages++
		}
	} else {
		pd.numRecords++
	}
	pd.mu.Unlock()
	return nil
}

// GetColumnValue reads one physical cell.
func (pd *PageDirectory) GetColumnValue(rid int64, column int, tail bool) (int64, error) {
	if err := pd.check(rid, column, tail); err != nil {
		return 0, err
	}
	capacity := pd.cfg.CellsPerPage()
	page, err := pd.pool.GetPage(rid/capacity, column, tail, IntentRead)
	if err != nil {
		return 0, err
	}
	return page.Read(int(rid % capacity))
}

// SetColumnValue overwrites one physical cell.
func (pd *PageDirectory) SetColumnValue(rid int64, column int, value int64, tail bool) error {
	if err := pd.check(rid, column, tail); err != nil {
		return err
	}
	capacity := pd.cfg.CellsPerPage()
	page, err := pd.pool.GetPage(rid/capacity, column, tail, IntentWrite)
	if err != nil {
		return err
	}
	if err := page.WriteAt(value, int(rid%capacity)); err != nil {
		return err
	}
	return pd.pool.UpdatePage(page, rid/capacity, column, tail)
}

// GetDataAttribute returns the newest version of a logical (user) column.
// This is the hot path: it reads the base indirection, then either the base
// attribute or — when the head tail's schema bit for the column is set — the
// head tail's attribute. It never walks the whole chain.
func (pd *PageDirectory) GetDataAttribute(rid int64, column int) (int64, error) {
	if column < 0 || column >= pd.numColumns-ColumnDataOffset {
		return 0, fmt.Errorf("get data attribute: %w: %d", ErrColumnOutOfRange, column)
	}
	indirection, err := pd.GetColumnValue(rid, IndirectionColumn, false)
	if err != nil {
		return 0, err
	}
	if indirection == NullRID {
		return pd.GetColumnValue(rid, column+ColumnDataOffset, false)
	}
	schema, err := pd.GetColumnValue(indirection, SchemaEncodingColumn, true)
	if err != nil {
		return 0, err
	}
	if schema&(1<<uint(column)) != 0 {
		return pd.GetColumnValue(indirection, column+ColumnDataOffset, true)
	}
	return pd.GetColumnValue(rid, column+ColumnDataOffset, false)
}

// GetRIDForVersion walks the indirection chain backwards from the newest
// tail. Version 0 is the newest; each step back follows one tail's
// indirection. When the requested version lies past the end of the chain the
// base record is returned.
func (pd *PageDirectory) GetRIDForVersion(rid int64, relativeVersion int) (bool, int64, error) {
	indirection, err := pd.GetColumnValue(rid, IndirectionColumn, false)
	if err != nil {
		return false, 0, err
	}
	if indirection == NullRID {
		return false, rid, nil
	}

	current := indirection
	indirection, err = pd.GetColumnValue(current, IndirectionColumn, true)
	if err != nil {
		return false, 0, err
	}

	version := 0
	for version > relativeVersion && indirection != NullRID {
		current = indirection
		indirection, err = pd.GetColumnValue(current, IndirectionColumn, true)
		if err != nil {
			return false, 0, err
		}
		version--
	}

	if version == relativeVersion {
		return true, current, nil
	}
	// Chain exhausted before reaching the requested version.
	return false, rid, nil
}

func (pd *PageDirectory) check(rid int64, column int, tail bool) error {
	if column < 0 || column >= pd.numColumns {
		return fmt.Errorf("%w: %d", ErrColumnOutOfRange, column)
	}
	pd.mu.Lock()
	limit := pd.numRecords
	if tail {
		limit = pd.numTailRecords
	}
	pd.mu.Unlock()
	if rid < 0 || rid >= limit {
		return fmt.Errorf("%w: %d (stream length %d, tail=%v)", ErrRIDOutOfRange, rid, limit, tail)
	}
	return nil
}
