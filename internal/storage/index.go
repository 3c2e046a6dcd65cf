package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/SimonWaldherr/tinyLStore/internal/structures"
)

// keyValueIndex is the contract shared by the ordered (B+tree) and unordered
// (hash map) index structures: value-lists per key, atomic update, bulk
// construction.
type keyValueIndex interface {
	Insert(key, value int64) error
	BulkInsert(items []structures.Pair) error
	Get(key int64) []int64
	GetRange(low, high int64) []int64
	Remove(key, value int64) error
	Update(oldKey, newKey, value int64) error
	Items() []structures.Pair
	Contains(key int64) bool
	Len() int
}

// Queries are counted per column so the auto-index heuristic can see which
// columns are worth indexing.
const (
	pointQuery = 0
	rangeQuery = 1
)

// Index is the per-table collection of secondary indexes plus the mandatory
// ordered unique index on the primary key. Non-unique indexes are maintained
// lazily: inserts are queued per column and bulk-applied right before the
// next lookup. Unique columns cannot defer maintenance — uniqueness has to
// be checked immediately — so they take the insert on the spot.
type Index struct {
	table *Table

	mu          sync.Mutex
	indices     []keyValueIndex
	uniqueKeys  []bool
	usage       [][2]int
	maintenance [][]structures.Pair
	autoIndexes bool
}

// NewIndex creates the collection and builds the primary-key index from the
// table's current contents.
func NewIndex(table *Table) (*Index, error) {
	idx := &Index{
		table:       table,
		indices:     make([]keyValueIndex, table.numColumns),
		uniqueKeys:  make([]bool, table.numColumns),
		usage:       make([][2]int, table.numColumns),
		maintenance: make([][]structures.Pair, table.numColumns),
		autoIndexes: table.cfg.AutomaticNewIndexes,
	}
	if err := idx.CreateIndex(table.primaryKey, true, true); err != nil {
		return nil, err
	}
	return idx, nil
}

// Locate returns the RIDs of every record holding value in the given column,
// through the column's index when one exists and by linear scan otherwise.
func (ix *Index) Locate(column int, value int64) ([]int64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if column < 0 || column >= len(ix.indices) {
		return nil, fmt.Errorf("locate: %w: %d", ErrColumnOutOfRange, column)
	}
	ix.usage[column][pointQuery]++
	ix.applyMaintenance(column)
	if err := ix.considerNewIndex(column); err != nil {
		return nil, err
	}

	if idx := ix.indices[column]; idx != nil {
		return idx.Get(value), nil
	}

	var rids []int64
	for _, item := range ix.table.columnItems(column) {
		if item.Key == value {
			rids = append(rids, item.Value)
		}
	}
	return rids, nil
}

// LocateRange returns the RIDs of every record whose value in the given
// column lies in [begin, end].
func (ix *Index) LocateRange(begin, end int64, column int) ([]int64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if column < 0 || column >= len(ix.indices) {
		return nil, fmt.Errorf("locate range: %w: %d", ErrColumnOutOfRange, column)
	}
	ix.usage[column][rangeQuery]++
	ix.applyMaintenance(column)
	if err := ix.considerNewIndex(column); err != nil {
		return nil, err
	}

	if idx := ix.indices[column]; idx != nil {
		return idx.GetRange(begin, end), nil
	}

	var rids []int64
	for _, item := range ix.table.columnItems(column) {
		if item.Key >= begin && item.Key <= end {
			rids = append(rids, item.Value)
		}
	}
	return rids, nil
}

// CreateIndex builds an index over a column from the table's current
// contents: ordered selects the B+tree, otherwise the hash map.
func (ix *Index) CreateIndex(column int, ordered, uniqueKeys bool) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.createIndexLocked(column, ordered, uniqueKeys)
}

func (ix *Index) createIndexLocked(column int, ordered, uniqueKeys bool) error {
	if column < 0 || column >= len(ix.indices) {
		return fmt.Errorf("create index: %w: %d", ErrColumnOutOfRange, column)
	}
	if ix.indices[column] != nil {
		return fmt.Errorf("create index: column %d already indexed", column)
	}

	var idx keyValueIndex
	if ordered {
		tree := structures.NewBPlusTree(ix.table.cfg.MinimumDegree, uniqueKeys)
		tree.SetThresholds(
			ix.table.cfg.SearchAlgorithmThreshold,
			ix.table.cfg.BulkInsertStartThreshold,
			ix.table.cfg.BulkInsertRatioThreshold,
		)
		tree.SetDebug(ix.table.cfg.DebugMode)
		idx = tree
	} else {
		idx = structures.NewHashMap(uniqueKeys)
	}

	items := ix.table.columnItems(column)
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	if err := idx.BulkInsert(items); err != nil {
		return err
	}

	ix.indices[column] = idx
	ix.uniqueKeys[column] = uniqueKeys
	return nil
}

// DropIndex removes the index on a column.
func (ix *Index) DropIndex(column int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if column >= 0 && column < len(ix.indices) {
		ix.indices[column] = nil
		ix.uniqueKeys[column] = false
		ix.maintenance[column] = nil
	}
}

// HasIndex reports whether a column currently carries an index.
func (ix *Index) HasIndex(column int) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.indices[column] != nil
}

// MaintainInsert records a fresh base record in every present index. Unique
// columns insert immediately so duplicate keys surface here; others queue
// the pair for the next bulk application.
func (ix *Index) MaintainInsert(columns []int64, rid int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for column, value := range columns {
		idx := ix.indices[column]
		if idx == nil {
			continue
		}
		if ix.uniqueKeys[column] {
			if err := idx.Insert(value, rid); err != nil {
				return err
			}
		} else {
			ix.maintenance[column] = append(ix.maintenance[column], structures.Pair{Key: value, Value: rid})
		}
	}
	return nil
}

// MaintainUpdate rewrites the index entries of the record at rid for every
// non-nil new column value, fetching the current attribute as the old key.
// It must run before the physical update lands.
func (ix *Index) MaintainUpdate(rid int64, newColumns []*int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for column, newValue := range newColumns {
		if newValue == nil {
			continue
		}
		ix.applyMaintenance(column)
		idx := ix.indices[column]
		if idx == nil {
			continue
		}
		oldValue, err := ix.table.pageDirectory.GetDataAttribute(rid, column)
		if err != nil {
			return err
		}
		if err := idx.Update(oldValue, *newValue, rid); err != nil {
			return err
		}
	}
	return nil
}

// MaintainDelete removes the record at rid from every present index. It must
// run while the record is still live.
func (ix *Index) MaintainDelete(rid int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for column, idx := range ix.indices {
		if idx == nil {
			continue
		}
		ix.applyMaintenance(column)
		value, err := ix.table.pageDirectory.GetDataAttribute(rid, column)
		if err != nil {
			return err
		}
		if err := idx.Remove(value, rid); err != nil {
			return err
		}
	}
	return nil
}

// considerNewIndex builds an ordered non-unique index on a column once it
// has seen its second point or range query without one.
func (ix *Index) considerNewIndex(column int) error {
	if !ix.autoIndexes || ix.indices[column] != nil {
		return nil
	}
	if ix.usage[column][pointQuery] >= 2 || ix.usage[column][rangeQuery] >= 2 {
		return ix.createIndexLocked(column, true, false)
	}
	return nil
}

// applyMaintenance bulk-inserts a column's queued pairs.
func (ix *Index) applyMaintenance(column int) {
	if ix.indices[column] == nil || ix.uniqueKeys[column] || len(ix.maintenance[column]) == 0 {
		return
	}
	if err := ix.indices[column].BulkInsert(ix.maintenance[column]); err != nil {
		// Non-unique structures only fail on internal invariant breaks.
		panic(fmt.Sprintf("index: maintenance bulk insert on column %d: %v", column, err))
	}
	ix.maintenance[column] = nil
}
