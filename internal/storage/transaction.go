package storage

import "github.com/google/uuid"

// TxnStatus classifies a transaction run.
type TxnStatus int

const (
	// TxnCommitted means every query ran and the locks were released.
	TxnCommitted TxnStatus = iota
	// TxnAborted means a lock could not be taken; the transaction rolled
	// back and may be retried.
	TxnAborted
	// TxnFailed means a query itself failed; the transaction rolled back
	// and must not be retried.
	TxnFailed
)

func (s TxnStatus) String() string {
	switch s {
	case TxnCommitted:
		return "committed"
	case TxnAborted:
		return "aborted"
	case TxnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transaction is an ordered list of query wrappers run under strict
// two-phase locking: locks accumulate as the queries execute and are only
// released at commit or abort. Roll-back walks the executed wrappers in
// reverse and applies each one's compensating action.
type Transaction struct {
	id       uuid.UUID
	wrappers []*QueryWrapper
	managers map[*LockManager]struct{}
}

// NewTransaction creates an empty transaction with a fresh identity.
func NewTransaction() *Transaction {
	return &Transaction{
		id:       uuid.New(),
		managers: make(map[*LockManager]struct{}),
	}
}

// ID returns the transaction's identity as seen by the lock managers.
func (txn *Transaction) ID() uuid.UUID {
	return txn.id
}

// register records a lock manager the transaction touched so commit and
// abort can release everything.
func (txn *Transaction) register(lm *LockManager) {
	txn.managers[lm] = struct{}{}
}

func (txn *Transaction) add(t *Table, op queryOp) {
	txn.wrappers = append(txn.wrappers, &QueryWrapper{table: t, txn: txn, op: op})
}

// AddInsert queues an insert of one record.
func (txn *Transaction) AddInsert(t *Table, columns ...int64) {
	txn.add(t, newInsertOp(t, columns))
}

// AddUpdate queues an update; nil column values stay untouched.
func (txn *Transaction) AddUpdate(t *Table, key int64, columns ...*int64) {
	txn.add(t, &updateOp{key: key, columns: columns})
}

// AddDelete queues a delete by primary key.
func (txn *Transaction) AddDelete(t *Table, key int64) {
	txn.add(t, &deleteOp{key: key})
}

// AddSelect queues a point select over the projected columns.
func (txn *Transaction) AddSelect(t *Table, key int64, searchColumn int, projection []bool) {
	txn.add(t, &selectOp{key: key, searchColumn: searchColumn, projection: projection})
}

// AddSelectVersion queues a select against a past version.
func (txn *Transaction) AddSelectVersion(t *Table, key int64, searchColumn int, projection []bool, relativeVersion int) {
	txn.add(t, &selectOp{key: key, searchColumn: searchColumn, projection: projection, relativeVersion: relativeVersion})
}

// AddSum queues a range sum over the primary key interval [start, end].
func (txn *Transaction) AddSum(t *Table, start, end int64, column int) {
	txn.add(t, &sumOp{start: start, end: end, column: column})
}

// AddSumVersion queues a range sum against a past version.
func (txn *Transaction) AddSumVersion(t *Table, start, end int64, column int, relativeVersion int) {
	txn.add(t, &sumOp{start: start, end: end, column: column, relativeVersion: relativeVersion})
}

// AddIncrement queues an increment of one column.
func (txn *Transaction) AddIncrement(t *Table, key int64, column int) {
	txn.add(t, &incrementOp{updateOp: updateOp{key: key}, column: column})
}

// Run executes the queued queries in order. A lock refusal aborts with
// TxnAborted (retryable); a query failure aborts with TxnFailed (permanent);
// otherwise the transaction commits.
func (txn *Transaction) Run() TxnStatus {
	for _, w := range txn.wrappers {
		switch w.tryRun() {
		case tryLockRefused:
			txn.abort()
			return TxnAborted
		case tryFailed:
			txn.abort()
			return TxnFailed
		}
	}
	txn.commit()
	return TxnCommitted
}

// Results returns the per-query results of the last run, in declaration
// order; entries of unexecuted queries are nil.
func (txn *Transaction) Results() []any {
	out := make([]any, len(txn.wrappers))
	for i, w := range txn.wrappers {
		out[i] = w.result
	}
	return out
}

// abort rolls back every executed wrapper in reverse order, then releases
// all locks.
func (txn *Transaction) abort() {
	for i := len(txn.wrappers) - 1; i >= 0; i-- {
		txn.wrappers[i].rollBack()
	}
	txn.releaseAll()

	// A rerun starts from scratch.
	for _, w := range txn.wrappers {
		w.executed = false
		w.result = nil
	}
}

// commit releases all locks, making every change visible for good.
func (txn *Transaction) commit() {
	txn.releaseAll()
}

func (txn *Transaction) releaseAll() {
	for lm := range txn.managers {
		lm.ReleaseAll(txn.id)
	}
}
