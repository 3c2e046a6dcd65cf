package storage

import (
	"log"
	"sync"
	"time"
)

// TransactionWorker runs a batch of transactions on one goroutine. Each pass
// runs every remaining transaction; committed and permanently failed ones
// leave the batch, lock-aborted ones are retried on the next pass after a
// bounded exponential backoff. A retry cap keeps a pathological conflict
// from spinning forever — transactions still aborting at the cap are
// reported as failed.
type TransactionWorker struct {
	mu           sync.Mutex
	transactions []*Transaction
	committed    []*Transaction
	failed       []*Transaction
	stats        []TxnStatus

	maxRetries  int
	baseBackoff time.Duration

	wg sync.WaitGroup
}

// NewTransactionWorker creates a worker with the default retry budget.
func NewTransactionWorker() *TransactionWorker {
	return &TransactionWorker{
		maxRetries:  16,
		baseBackoff: time.Millisecond,
	}
}

// Add appends a transaction to the batch. Only valid before Run.
func (tw *TransactionWorker) Add(txn *Transaction) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.transactions = append(tw.transactions, txn)
}

// Run starts the worker goroutine.
func (tw *TransactionWorker) Run() {
	tw.wg.Add(1)
	go func() {
		defer tw.wg.Done()
		tw.runAll()
	}()
}

// Join waits for the worker to drain its batch.
func (tw *TransactionWorker) Join() {
	tw.wg.Wait()
}

// Committed returns the transactions that committed.
func (tw *TransactionWorker) Committed() []*Transaction {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return append([]*Transaction(nil), tw.committed...)
}

// Failed returns the transactions that failed permanently.
func (tw *TransactionWorker) Failed() []*Transaction {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return append([]*Transaction(nil), tw.failed...)
}

// Stats returns the status of every run attempt in order.
func (tw *TransactionWorker) Stats() []TxnStatus {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return append([]TxnStatus(nil), tw.stats...)
}

func (tw *TransactionWorker) runAll() {
	tw.mu.Lock()
	remaining := append([]*Transaction(nil), tw.transactions...)
	tw.mu.Unlock()

	for pass := 0; len(remaining) > 0; pass++ {
		var retry []*Transaction
		for _, txn := range remaining {
			status := txn.Run()

			tw.mu.Lock()
			tw.stats = append(tw.stats, status)
			switch status {
			case TxnCommitted:
				tw.committed = append(tw.committed, txn)
			case TxnFailed:
				tw.failed = append(tw.failed, txn)
			case TxnAborted:
				retry = append(retry, txn)
			}
			tw.mu.Unlock()
		}
		remaining = retry
		if len(remaining) == 0 {
			break
		}

		if pass >= tw.maxRetries {
			log.Printf("transaction worker: %d transactions still lock-aborted after %d passes, giving up", len(remaining), pass+1)
			tw.mu.Lock()
			tw.failed = append(tw.failed, remaining...)
			tw.mu.Unlock()
			break
		}

		backoff := tw.baseBackoff << uint(min(pass, 10))
		time.Sleep(backoff)
	}
}
