package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SimonWaldherr/tinyLStore/internal/structures"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Record is the logical view of one row: its RID, its primary key, and the
// projected column values.
type Record struct {
	RID     int64
	Key     int64
	Columns []int64
}

func (r *Record) String() string {
	return fmt.Sprintf("Record(%v)", r.Columns)
}

// Table is one relation: the page directory holding its physical records,
// the index collection, the lock manager serializing its transactions, and
// the background merge consolidating tail pages into base pages.
//
// Metadata persists in a small footer, <table>/meta.data, holding four
// little-endian 32-bit integers: num_records, num_tail_records, num_columns,
// primary_key. The footer is written on Close and read back when the table
// is rehydrated through the database catalog.
type Table struct {
	dbPath     string
	name       string
	numColumns int
	primaryKey int
	cfg        *Config

	pageDirectory *PageDirectory
	index         *Index
	locks         *LockManager

	// Background merge state.
	mergeOwner      uuid.UUID
	tailQueue       structures.Queue[int64]
	seenTailPages   int64
	numTailsToMerge int
	cron            *cron.Cron
}

// NewTable creates or rehydrates a table. When a meta.data footer exists the
// persisted column count and primary key override the arguments.
func NewTable(dbPath, name string, numColumns, primaryKey int, cfg *Config) (*Table, error) {
	t := &Table{
		dbPath:          dbPath,
		name:            name,
		numColumns:      numColumns,
		primaryKey:      primaryKey,
		cfg:             cfg,
		locks:           NewLockManager(),
		mergeOwner:      uuid.New(),
		numTailsToMerge: cfg.NumTailsToMerge,
	}

	var numRecords, numTailRecords int64
	if meta, err := os.ReadFile(t.metaPath()); err == nil {
		if len(meta) < 16 {
			return nil, fmt.Errorf("table %s: truncated meta.data", name)
		}
		numRecords = int64(int32(binary.LittleEndian.Uint32(meta[0:4])))
		numTailRecords = int64(int32(binary.LittleEndian.Uint32(meta[4:8])))
		t.numColumns = int(int32(binary.LittleEndian.Uint32(meta[8:12])))
		t.primaryKey = int(int32(binary.LittleEndian.Uint32(meta[12:16])))
	}

	if t.numColumns <= 0 {
		return nil, fmt.Errorf("table %s: %w: %d", name, ErrTotalColumnsInvalid, t.numColumns)
	}
	if t.primaryKey < 0 || t.primaryKey >= t.numColumns {
		return nil, fmt.Errorf("table %s: %w: %d of %d columns", name, ErrPrimaryKeyOutOfBounds, t.primaryKey, t.numColumns)
	}

	pd, err := NewPageDirectory(dbPath, name, t.numColumns+ColumnDataOffset, numRecords, numTailRecords, cfg)
	if err != nil {
		return nil, err
	}
	t.pageDirectory = pd

	idx, err := NewIndex(t)
	if err != nil {
		return nil, err
	}
	t.index = idx

	if !cfg.ForceMerge {
		t.startMergeTask()
	}
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// NumColumns returns the number of user columns.
func (t *Table) NumColumns() int { return t.numColumns }

// PrimaryKey returns the primary key column index.
func (t *Table) PrimaryKey() int { return t.primaryKey }

// PageDirectory exposes the physical storage layer.
func (t *Table) PageDirectory() *PageDirectory { return t.pageDirectory }

// Index exposes the index collection.
func (t *Table) Index() *Index { return t.index }

// LockManager exposes the table's lock manager.
func (t *Table) LockManager() *LockManager { return t.locks }

// Len returns the number of base records, deleted or not.
func (t *Table) Len() int64 {
	return t.pageDirectory.NumRecords()
}

// Contains reports whether a live record carries the primary key.
func (t *Table) Contains(key int64) bool {
	rids, err := t.index.Locate(t.primaryKey, key)
	return err == nil && len(rids) > 0
}

// columnItems yields (attribute, RID) pairs of the newest version of every
// live record for one logical column. Index construction and linear scans
// both run on it.
func (t *Table) columnItems(column int) []structures.Pair {
	var items []structures.Pair
	if column < 0 || column >= t.numColumns {
		return items
	}
	for rid := int64(0); rid < t.pageDirectory.NumRecords(); rid++ {
		current, err := t.pageDirectory.GetColumnValue(rid, RIDColumn, false)
		if err != nil || current == NullRID {
			continue
		}
		value, err := t.pageDirectory.GetDataAttribute(rid, column)
		if err != nil {
			continue
		}
		items = append(items, structures.Pair{Key: value, Value: rid})
	}
	return items
}

// Delete tombstones the record at rid by overwriting its RID cell.
func (t *Table) Delete(rid int64) error {
	return t.pageDirectory.SetColumnValue(rid, RIDColumn, NullRID, false)
}

// Close stops the merge task, writes the metadata footer, and flushes the
// buffer pool.
func (t *Table) Close() error {
	t.stopMergeTask()

	meta := make([]byte, 0, 16)
	meta = binary.LittleEndian.AppendUint32(meta, uint32(t.pageDirectory.NumRecords()))
	meta = binary.LittleEndian.AppendUint32(meta, uint32(t.pageDirectory.NumTailRecords()))
	meta = binary.LittleEndian.AppendUint32(meta, uint32(t.numColumns))
	meta = binary.LittleEndian.AppendUint32(meta, uint32(t.primaryKey))
	if err := os.WriteFile(t.metaPath(), meta, 0o644); err != nil {
		return fmt.Errorf("table %s: write meta.data: %w", t.name, err)
	}

	return t.pageDirectory.Pool().Flush()
}

func (t *Table) metaPath() string {
	return filepath.Join(t.dbPath, t.name, "meta.data")
}

// String renders the logical table: the newest version of every live record.
func (t *Table) String() string {
	var b strings.Builder
	width := 10
	bar := strings.Repeat(strings.Repeat("-", width+1), t.numColumns) + "-\n"

	b.WriteString(bar)
	b.WriteString("|")
	for c := 0; c < t.numColumns; c++ {
		if c == t.primaryKey {
			b.WriteString(strings.Repeat("*", width) + "|")
		} else {
			b.WriteString(strings.Repeat(" ", width) + "|")
		}
	}
	b.WriteString("\n")
	b.WriteString(bar)

	for rid := int64(0); rid < t.pageDirectory.NumRecords(); rid++ {
		current, err := t.pageDirectory.GetColumnValue(rid, RIDColumn, false)
		if err != nil || current == NullRID {
			continue
		}
		b.WriteString("|")
		for c := 0; c < t.numColumns; c++ {
			v, _ := t.pageDirectory.GetDataAttribute(rid, c)
			fmt.Fprintf(&b, "%*d|", width, v)
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.TrimSuffix(bar, "\n"))
	return b.String()
}

// PhysicalString renders the physical base and tail streams including the
// metadata columns, clipped to the given number of tuples per stream. A
// negative limit disables clipping.
func (t *Table) PhysicalString(baseLimit, tailLimit int) string {
	total := t.numColumns + ColumnDataOffset
	names := make([]string, total)
	names[IndirectionColumn] = "indir"
	names[RIDColumn] = "rid"
	names[TimestampColumn] = "time"
	names[SchemaEncodingColumn] = "schema"
	names[TPSAndBRIDColumn] = "tps/brid"
	for c := 0; c < t.numColumns; c++ {
		names[c+ColumnDataOffset] = fmt.Sprintf("%d", c)
		if c == t.primaryKey {
			names[c+ColumnDataOffset] += ":pk"
		}
	}

	collect := func(count int64, limit int, tail bool) ([][]string, bool) {
		clipped := false
		if limit >= 0 && int64(limit) < count {
			clipped = true
			count = int64(limit)
		}
		rows := make([][]string, 0, count)
		for rid := int64(0); rid < count; rid++ {
			row := make([]string, total)
			for c := 0; c < total; c++ {
				v, err := t.pageDirectory.GetColumnValue(rid, c, tail)
				if err != nil {
					row[c] = "?"
					continue
				}
				row[c] = fmt.Sprintf("%d", v)
			}
			rows = append(rows, row)
		}
		return rows, clipped
	}

	baseRows, baseClipped := collect(t.pageDirectory.NumRecords(), baseLimit, false)
	tailRows, tailClipped := collect(t.pageDirectory.NumTailRecords(), tailLimit, true)

	widths := make([]int, total)
	for c, name := range names {
		widths[c] = len(name) + 2
	}
	for _, rows := range [][][]string{baseRows, tailRows} {
		for _, row := range rows {
			for c, cell := range row {
				if len(cell)+2 > widths[c] {
					widths[c] = len(cell) + 2
				}
			}
		}
	}

	line := func() string {
		parts := make([]string, total)
		for c, w := range widths {
			parts[c] = strings.Repeat("-", w)
		}
		return "+" + strings.Join(parts, "+") + "+"
	}
	tuple := func(cells []string) string {
		parts := make([]string, total)
		for c, cell := range cells {
			parts[c] = fmt.Sprintf("%*s ", widths[c]-1, cell)
		}
		return "|" + strings.Join(parts, "|") + "|"
	}

	var b strings.Builder
	b.WriteString(line() + "\n")
	b.WriteString(tuple(names) + "\n")
	b.WriteString(line() + "\n")
	for _, row := range baseRows {
		b.WriteString(tuple(row) + "\n")
	}
	if baseClipped {
		dots := make([]string, total)
		for c := range dots {
			dots[c] = "..."
		}
		b.WriteString(tuple(dots) + "\n")
	}
	if len(tailRows) > 0 || tailClipped {
		b.WriteString(line() + "\n")
	}
	for _, row := range tailRows {
		b.WriteString(tuple(row) + "\n")
	}
	if tailClipped {
		dots := make([]string, total)
		for c := range dots {
			dots[c] = "..."
		}
		b.WriteString(tuple(dots) + "\n")
	}
	b.WriteString(line())
	return b.String()
}
