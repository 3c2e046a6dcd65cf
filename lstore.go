// Package tinylstore provides a lightweight, embeddable L-Store relational
// storage engine for Go applications.
//
// TinyLStore is a columnar, append-only engine that demonstrates the core of
// the lineage-based storage architecture:
//   - Immutable base records with chained tail records for updates
//   - A bounded buffer pool moving fixed-size pages between disk and memory
//     under a pluggable eviction policy
//   - B+tree and hash indexes with lazy maintenance and auto-indexing
//   - Strict two-phase locking transactions with roll-back and workers
//   - A background merge consolidating tail pages back into base pages
//
// # Basic Usage
//
// Open a database, create a table, and run queries:
//
//	db := tinylstore.NewDatabase(nil)
//	db.Open("data")
//	defer db.Close()
//
//	table, _ := db.CreateTable("grades", 5, 0)
//	q := tinylstore.NewQuery(table)
//
//	q.Insert(1, 90, 80, 70, 60)
//	q.Update(1, nil, ptr(95), nil, nil, nil)
//	records, _ := q.Select(1, 0, []bool{true, true, true, true, true})
//
// # Transactions
//
// Queries batched into a transaction commit or roll back atomically; workers
// run transaction batches concurrently and retry lock conflicts:
//
//	txn := tinylstore.NewTransaction()
//	txn.AddUpdate(table, 1, nil, ptr(100), nil, nil, nil)
//	txn.AddInsert(table, 2, 50, 50, 50, 50)
//
//	worker := tinylstore.NewTransactionWorker()
//	worker.Add(txn)
//	worker.Run()
//	worker.Join()
//
// # Persistence
//
// Close writes every table's metadata footer and flushes the buffer pool;
// GetTable rehydrates a table from its directory on the next open.
package tinylstore

import "github.com/SimonWaldherr/tinyLStore/internal/storage"

// Re-exported engine surface.
type (
	// Config collects the engine tuning knobs.
	Config = storage.Config
	// Database is the table catalog and persistence root.
	Database = storage.Database
	// Table is one relation with its page directory, indexes, and locks.
	Table = storage.Table
	// Query is the operation surface of one table.
	Query = storage.Query
	// Record is the logical view of one row.
	Record = storage.Record
	// Transaction is an ordered batch of queries run under strict 2PL.
	Transaction = storage.Transaction
	// TransactionWorker runs transaction batches with retry.
	TransactionWorker = storage.TransactionWorker
	// TxnStatus classifies a transaction run.
	TxnStatus = storage.TxnStatus
)

// Transaction outcomes.
const (
	TxnCommitted = storage.TxnCommitted
	TxnAborted   = storage.TxnAborted
	TxnFailed    = storage.TxnFailed
)

// NewDatabase creates a closed database handle; a nil config selects the
// defaults.
func NewDatabase(cfg *Config) *Database {
	return storage.NewDatabase(cfg)
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return storage.DefaultConfig()
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	return storage.LoadConfig(path)
}

// NewQuery creates a query surface bound to a table.
func NewQuery(table *Table) *Query {
	return storage.NewQuery(table)
}

// NewTransaction creates an empty transaction.
func NewTransaction() *Transaction {
	return storage.NewTransaction()
}

// NewTransactionWorker creates a worker with the default retry budget.
func NewTransactionWorker() *TransactionWorker {
	return storage.NewTransactionWorker()
}
