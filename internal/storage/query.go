package storage

import (
	"fmt"
	"time"

	"github.com/SimonWaldherr/tinyLStore/internal/structures"
)

// Query is the operation surface of one table: insert, select (current and
// versioned), update, delete, sum (current and versioned), and increment.
// Logical failures are returned as error values; the transaction layer maps
// them to permanent failure while lock refusals (handled one level up, in
// the wrapper) map to abort-and-retry.
type Query struct {
	table *Table
}

// NewQuery creates a query surface bound to a table.
func NewQuery(table *Table) *Query {
	return &Query{table: table}
}

// Insert appends a new base record. The primary key must be unique among
// live records; all metadata columns are initialized here.
func (q *Query) Insert(columns ...int64) error {
	t := q.table
	if len(columns) != t.numColumns {
		return fmt.Errorf("insert: %w: %d values for %d columns", ErrColumnOutOfRange, len(columns), t.numColumns)
	}

	rid := t.pageDirectory.NumRecords()
	// Index maintenance runs first: a duplicate primary key fails here and
	// leaves no trace in the page directory.
	if err := t.index.MaintainInsert(columns, rid); err != nil {
		return fmt.Errorf("insert key %d: %w", columns[t.primaryKey], err)
	}

	record := make([]int64, 0, t.numColumns+ColumnDataOffset)
	record = append(record, NullRID, rid, time.Now().Unix(), 0, NullRID)
	record = append(record, columns...)
	return t.pageDirectory.AddRecord(record, false)
}

// Select returns the newest version of every record whose searchColumn holds
// key, projecting the columns flagged in projection. Missing keys yield an
// empty result, not an error.
func (q *Query) Select(key int64, searchColumn int, projection []bool) ([]*Record, error) {
	return q.SelectVersion(key, searchColumn, projection, 0)
}

// SelectVersion is Select against a past version of each matching record.
// Version 0 is the newest; negative versions walk the update chain
// backwards, and versions past the end of the chain resolve to the base
// record.
func (q *Query) SelectVersion(key int64, searchColumn int, projection []bool, relativeVersion int) ([]*Record, error) {
	t := q.table
	if len(projection) != t.numColumns {
		return nil, fmt.Errorf("select: %w: projection of %d for %d columns", ErrColumnOutOfRange, len(projection), t.numColumns)
	}

	rids, err := t.index.Locate(searchColumn, key)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(rids))
	for _, rid := range rids {
		columns := make([]int64, t.numColumns)
		for column, wanted := range projection {
			if !wanted {
				continue
			}
			value, err := q.versionAttribute(rid, column, relativeVersion)
			if err != nil {
				return nil, err
			}
			columns[column] = value
		}
		records = append(records, &Record{RID: rid, Key: key, Columns: columns})
	}
	return records, nil
}

// versionAttribute resolves one logical column of one record at a relative
// version.
func (q *Query) versionAttribute(rid int64, column, relativeVersion int) (int64, error) {
	pd := q.table.pageDirectory
	if relativeVersion == 0 {
		return pd.GetDataAttribute(rid, column)
	}
	tail, vrid, err := pd.GetRIDForVersion(rid, relativeVersion)
	if err != nil {
		return 0, err
	}
	if !tail {
		return pd.GetColumnValue(vrid, column+ColumnDataOffset, false)
	}
	schema, err := pd.GetColumnValue(vrid, SchemaEncodingColumn, true)
	if err != nil {
		return 0, err
	}
	if schema&(1<<uint(column)) != 0 {
		return pd.GetColumnValue(vrid, column+ColumnDataOffset, true)
	}
	return pd.GetColumnValue(rid, column+ColumnDataOffset, false)
}

// Update appends a tail record holding the new values of the non-nil
// columns. The tail carries every column the chain has ever touched so the
// newest tail alone answers latest-version reads.
func (q *Query) Update(key int64, columns ...*int64) error {
	t := q.table
	if len(columns) != t.numColumns {
		return fmt.Errorf("update: %w: %d values for %d columns", ErrColumnOutOfRange, len(columns), t.numColumns)
	}

	rids, err := t.index.Locate(t.primaryKey, key)
	if err != nil {
		return err
	}
	if len(rids) == 0 {
		return fmt.Errorf("update key %d: %w", key, ErrRecordNotFound)
	}
	rid := rids[0]

	// Refuse a primary key change onto an existing key up front so the
	// per-column index updates below cannot partially apply.
	if newKey := columns[t.primaryKey]; newKey != nil && *newKey != key && t.Contains(*newKey) {
		return fmt.Errorf("update key %d: new key %d: %w", key, *newKey, structures.ErrNonUniqueKey)
	}

	// Index maintenance reads the pre-update attributes, so it runs before
	// the physical update lands.
	if err := t.index.MaintainUpdate(rid, columns); err != nil {
		return err
	}

	prevIndirection, err := t.pageDirectory.GetColumnValue(rid, IndirectionColumn, false)
	if err != nil {
		return err
	}
	prevSchema := int64(0)
	if prevIndirection != NullRID {
		prevSchema, err = t.pageDirectory.GetColumnValue(prevIndirection, SchemaEncodingColumn, true)
		if err != nil {
			return err
		}
	}

	newSchema := prevSchema
	for column, value := range columns {
		if value != nil {
			newSchema |= 1 << uint(column)
		}
	}

	// Tail data: new values where given, carried-forward chain values where
	// the chain touched the column before, zero elsewhere.
	data := make([]int64, t.numColumns)
	for column := range data {
		switch {
		case columns[column] != nil:
			data[column] = *columns[column]
		case prevSchema&(1<<uint(column)) != 0:
			carried, err := t.pageDirectory.GetColumnValue(prevIndirection, column+ColumnDataOffset, true)
			if err != nil {
				return err
			}
			data[column] = carried
		}
	}

	tailRID := t.pageDirectory.NumTailRecords()
	tail := make([]int64, 0, t.numColumns+ColumnDataOffset)
	tail = append(tail, prevIndirection, tailRID, time.Now().Unix(), newSchema, rid)
	tail = append(tail, data...)
	if err := t.pageDirectory.AddRecord(tail, true); err != nil {
		return err
	}

	if err := t.pageDirectory.SetColumnValue(rid, IndirectionColumn, tailRID, false); err != nil {
		return err
	}
	baseSchema, err := t.pageDirectory.GetColumnValue(rid, SchemaEncodingColumn, false)
	if err != nil {
		return err
	}
	return t.pageDirectory.SetColumnValue(rid, SchemaEncodingColumn, baseSchema|newSchema, false)
}

// Delete tombstones the record with the given primary key and removes it
// from every index.
func (q *Query) Delete(key int64) error {
	t := q.table
	rids, err := t.index.Locate(t.primaryKey, key)
	if err != nil {
		return err
	}
	if len(rids) == 0 {
		return fmt.Errorf("delete key %d: %w", key, ErrRecordNotFound)
	}
	rid := rids[0]

	// Maintenance first: it reads the record's live attributes.
	if err := t.index.MaintainDelete(rid); err != nil {
		return err
	}
	return t.Delete(rid)
}

// Sum adds up the newest version of one column over every record whose
// primary key lies in [start, end]. An empty range is a logical failure.
func (q *Query) Sum(start, end int64, column int) (int64, error) {
	return q.SumVersion(start, end, column, 0)
}

// SumVersion is Sum against a past version of each record.
func (q *Query) SumVersion(start, end int64, column int, relativeVersion int) (int64, error) {
	t := q.table
	rids, err := t.index.LocateRange(start, end, t.primaryKey)
	if err != nil {
		return 0, err
	}
	if len(rids) == 0 {
		return 0, fmt.Errorf("sum [%d, %d]: %w", start, end, ErrRecordNotFound)
	}

	var sum int64
	for _, rid := range rids {
		value, err := q.versionAttribute(rid, column, relativeVersion)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum, nil
}

// Increment adds one to a single column of the record with the given
// primary key.
func (q *Query) Increment(key int64, column int) error {
	t := q.table
	rids, err := t.index.Locate(t.primaryKey, key)
	if err != nil {
		return err
	}
	if len(rids) == 0 {
		return fmt.Errorf("increment key %d: %w", key, ErrRecordNotFound)
	}
	value, err := t.pageDirectory.GetDataAttribute(rids[0], column)
	if err != nil {
		return err
	}
	next := value + 1
	columns := make([]*int64, t.numColumns)
	columns[column] = &next
	return q.Update(key, columns...)
}
