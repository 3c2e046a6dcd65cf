package storage

import (
	"fmt"
	"log"
)

// tryOutcome is the ternary result of QueryWrapper.tryRun: a lock refusal
// aborts the transaction for retry, a query failure fails it permanently,
// and success carries the query's result.
type tryOutcome int

const (
	tryLockRefused tryOutcome = iota
	tryFailed
	tryOK
)

// plannedLock is one entry of a query's resource set.
type plannedLock struct {
	mode LockMode
	res  Resource
}

// queryOp is implemented once per query kind. It decouples the lock planner
// from the query implementations: the wrapper only ever asks an op for its
// resource set, its undo snapshot, its execution, and its compensation.
type queryOp interface {
	// planResources lists the locks the query needs, the table-wide index
	// resource first.
	planResources(t *Table) []plannedLock
	// captureUndo snapshots whatever the compensating action will need. It
	// runs after the index lock is held and before the remaining locks are
	// acquired.
	captureUndo(t *Table) error
	// run executes the query.
	run(t *Table) (any, error)
	// rollBack compensates an executed query during transaction abort.
	rollBack(t *Table)
}

// QueryWrapper binds one query to its transaction: it acquires the planned
// locks in order, captures undo state, runs the query, and compensates on
// abort.
type QueryWrapper struct {
	table    *Table
	txn      *Transaction
	op       queryOp
	executed bool
	result   any
}

// tryRun acquires locks and executes the query. It returns tryLockRefused
// the moment any lock is unavailable and tryFailed when the query itself
// fails; the caller owns releasing locks in both cases.
func (w *QueryWrapper) tryRun() tryOutcome {
	w.txn.register(w.table.locks)

	locks := w.op.planResources(w.table)
	if !w.table.locks.Request(locks[0].mode, locks[0].res, w.txn.id) {
		return tryLockRefused
	}

	// The undo snapshot needs the index lock but must precede the query.
	if err := w.op.captureUndo(w.table); err != nil {
		return tryFailed
	}

	for _, pl := range locks[1:] {
		if !w.table.locks.Request(pl.mode, pl.res, w.txn.id) {
			return tryLockRefused
		}
	}

	result, err := w.op.run(w.table)
	if err != nil {
		return tryFailed
	}
	w.result = result
	w.executed = true
	return tryOK
}

// rollBack undoes an executed query.
func (w *QueryWrapper) rollBack() {
	if w.executed {
		w.op.rollBack(w.table)
	}
}

// Result returns what the query produced, nil before execution.
func (w *QueryWrapper) Result() any {
	return w.result
}

// ───────────────────────────────────────────────────────────────────────────
// Insert
// ───────────────────────────────────────────────────────────────────────────

type insertOp struct {
	columns []int64
	key     int64
}

func newInsertOp(t *Table, columns []int64) *insertOp {
	op := &insertOp{columns: columns}
	if t.primaryKey < len(columns) {
		op.key = columns[t.primaryKey]
	}
	return op
}

func (op *insertOp) planResources(t *Table) []plannedLock {
	locks := []plannedLock{{ExclusiveLock, IndexResource()}}
	for column := 0; column < t.numColumns+ColumnDataOffset; column++ {
		locks = append(locks, plannedLock{ExclusiveLock, RowResource(op.key, column)})
	}
	return locks
}

func (op *insertOp) captureUndo(*Table) error {
	// The primary key is the whole undo state and is already known.
	return nil
}

func (op *insertOp) run(t *Table) (any, error) {
	if err := NewQuery(t).Insert(op.columns...); err != nil {
		return nil, err
	}
	return true, nil
}

func (op *insertOp) rollBack(t *Table) {
	rids, err := t.index.Locate(t.primaryKey, op.key)
	if err != nil || len(rids) == 0 {
		log.Printf("insert rollback: key %d not found", op.key)
		return
	}
	rid := rids[0]
	if err := t.pageDirectory.SetColumnValue(rid, RIDColumn, NullRID, false); err != nil {
		log.Printf("insert rollback: tombstone rid %d: %v", rid, err)
		return
	}
	if err := t.index.MaintainDelete(rid); err != nil {
		log.Printf("insert rollback: deindex rid %d: %v", rid, err)
	}
}

// ───────────────────────────────────────────────────────────────────────────
// Delete
// ───────────────────────────────────────────────────────────────────────────

type deleteOp struct {
	key      int64
	victim   int64
	preimage []int64
}

func (op *deleteOp) planResources(*Table) []plannedLock {
	return []plannedLock{
		{ExclusiveLock, IndexResource()},
		{ExclusiveLock, RowResource(op.key, RIDColumn)},
	}
}

func (op *deleteOp) captureUndo(t *Table) error {
	rids, err := t.index.Locate(t.primaryKey, op.key)
	if err != nil {
		return err
	}
	if len(rids) == 0 {
		return fmt.Errorf("delete key %d: %w", op.key, ErrRecordNotFound)
	}
	op.victim = rids[0]

	// The base row stays in place after the tombstone, but the indexes lose
	// it; keep the logical record for re-indexing.
	op.preimage = make([]int64, t.numColumns)
	for column := range op.preimage {
		value, err := t.pageDirectory.GetDataAttribute(op.victim, column)
		if err != nil {
			return err
		}
		op.preimage[column] = value
	}
	return nil
}

func (op *deleteOp) run(t *Table) (any, error) {
	if err := NewQuery(t).Delete(op.key); err != nil {
		return nil, err
	}
	return true, nil
}

func (op *deleteOp) rollBack(t *Table) {
	if err := t.pageDirectory.SetColumnValue(op.victim, RIDColumn, op.victim, false); err != nil {
		log.Printf("delete rollback: restore rid %d: %v", op.victim, err)
		return
	}
	if err := t.index.MaintainInsert(op.preimage, op.victim); err != nil {
		log.Printf("delete rollback: reindex rid %d: %v", op.victim, err)
	}
}

// ───────────────────────────────────────────────────────────────────────────
// Update
// ───────────────────────────────────────────────────────────────────────────

type updateOp struct {
	key     int64
	columns []*int64

	victim          int64
	prevIndirection int64
	prevSchema      int64
	preimage        []int64
	tailRID         int64
}

func (op *updateOp) planResources(t *Table) []plannedLock {
	locks := []plannedLock{{ExclusiveLock, IndexResource()}}
	for column := 0; column < t.numColumns+ColumnDataOffset; column++ {
		locks = append(locks, plannedLock{ExclusiveLock, RowResource(op.key, column)})
	}
	return locks
}

func (op *updateOp) captureUndo(t *Table) error {
	rids, err := t.index.Locate(t.primaryKey, op.key)
	if err != nil {
		return err
	}
	if len(rids) == 0 {
		return fmt.Errorf("update key %d: %w", op.key, ErrRecordNotFound)
	}
	op.victim = rids[0]

	if op.prevIndirection, err = t.pageDirectory.GetColumnValue(op.victim, IndirectionColumn, false); err != nil {
		return err
	}
	if op.prevSchema, err = t.pageDirectory.GetColumnValue(op.victim, SchemaEncodingColumn, false); err != nil {
		return err
	}
	op.preimage = make([]int64, t.numColumns)
	for column := range op.preimage {
		value, err := t.pageDirectory.GetDataAttribute(op.victim, column)
		if err != nil {
			return err
		}
		op.preimage[column] = value
	}
	return nil
}

func (op *updateOp) run(t *Table) (any, error) {
	op.tailRID = t.pageDirectory.NumTailRecords()
	if err := NewQuery(t).Update(op.key, op.columns...); err != nil {
		return nil, err
	}
	return true, nil
}

func (op *updateOp) rollBack(t *Table) {
	// Index restore first: MaintainUpdate reads the current (post-update)
	// attribute as the key to move away from.
	restore := make([]*int64, len(op.columns))
	for column, value := range op.columns {
		if value != nil {
			old := op.preimage[column]
			restore[column] = &old
		}
	}
	if err := t.index.MaintainUpdate(op.victim, restore); err != nil {
		log.Printf("update rollback: reindex rid %d: %v", op.victim, err)
	}

	// Tombstone the appended tail so the merge ignores it.
	if err := t.pageDirectory.SetColumnValue(op.tailRID, RIDColumn, NullRID, true); err != nil {
		log.Printf("update rollback: tombstone tail %d: %v", op.tailRID, err)
	}

	// Put the base row's chain head and schema back.
	if err := t.pageDirectory.SetColumnValue(op.victim, IndirectionColumn, op.prevIndirection, false); err != nil {
		log.Printf("update rollback: restore indirection of rid %d: %v", op.victim, err)
	}
	if err := t.pageDirectory.SetColumnValue(op.victim, SchemaEncodingColumn, op.prevSchema, false); err != nil {
		log.Printf("update rollback: restore schema of rid %d: %v", op.victim, err)
	}
}

// ───────────────────────────────────────────────────────────────────────────
// Increment
// ───────────────────────────────────────────────────────────────────────────

// incrementOp reads the current attribute under its locks and reuses the
// update undo machinery.
type incrementOp struct {
	updateOp
	column int
}

func (op *incrementOp) run(t *Table) (any, error) {
	value, err := t.pageDirectory.GetDataAttribute(op.victim, op.column)
	if err != nil {
		return nil, err
	}
	next := value + 1
	op.columns = make([]*int64, t.numColumns)
	op.columns[op.column] = &next
	return op.updateOp.run(t)
}

// ───────────────────────────────────────────────────────────────────────────
// Select / SelectVersion
// ───────────────────────────────────────────────────────────────────────────

type selectOp struct {
	key             int64
	searchColumn    int
	projection      []bool
	relativeVersion int
}

func (op *selectOp) planResources(*Table) []plannedLock {
	locks := []plannedLock{{SharedLock, IndexResource()}}
	for column, wanted := range op.projection {
		if wanted {
			locks = append(locks, plannedLock{SharedLock, RowResource(op.key, column+ColumnDataOffset)})
		}
	}
	return locks
}

func (op *selectOp) captureUndo(*Table) error { return nil }

func (op *selectOp) run(t *Table) (any, error) {
	records, err := NewQuery(t).SelectVersion(op.key, op.searchColumn, op.projection, op.relativeVersion)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (op *selectOp) rollBack(*Table) {}

// ───────────────────────────────────────────────────────────────────────────
// Sum / SumVersion
// ───────────────────────────────────────────────────────────────────────────

type sumOp struct {
	start, end      int64
	column          int
	relativeVersion int
}

func (op *sumOp) planResources(*Table) []plannedLock {
	locks := []plannedLock{{SharedLock, IndexResource()}}
	for key := op.start; key < op.end; key++ {
		locks = append(locks, plannedLock{SharedLock, RowResource(key, RIDColumn)})
	}
	return locks
}

func (op *sumOp) captureUndo(*Table) error { return nil }

func (op *sumOp) run(t *Table) (any, error) {
	sum, err := NewQuery(t).SumVersion(op.start, op.end, op.column, op.relativeVersion)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (op *sumOp) rollBack(*Table) {}
