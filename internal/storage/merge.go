package storage

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// The merge consolidates tail pages back into base pages so the hot read
// path can skip fully absorbed tails: after a merge every base record whose
// row lock the merge obtained has a TPS of at least the RID of the newest
// tail merged for it, and
// GetDataAttribute may ignore any tail at or below that sequence number.
//
// The background task polls the tail-page counter on a cron interval, queues
// fresh tail-page indices into a FIFO, and merges a bounded batch per pass.

// startMergeTask launches the cron-driven merge loop.
func (t *Table) startMergeTask() {
	t.cron = cron.New()
	t.cron.Schedule(cron.Every(time.Duration(t.cfg.MergeInterval)), cron.FuncJob(t.mergePass))
	t.cron.Start()
}

// stopMergeTask stops the loop and waits for a running pass to finish.
func (t *Table) stopMergeTask() {
	if t.cron == nil {
		return
	}
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.cron = nil
}

// mergePass queues tail pages that appeared since the last pass and merges
// up to numTailsToMerge of them.
func (t *Table) mergePass() {
	total := t.pageDirectory.NumTailPages()
	for i := t.seenTailPages; i < total; i++ {
		t.tailQueue.Push(i)
	}
	t.seenTailPages = total

	var batch []int64
	for len(batch) < t.numTailsToMerge {
		idx, ok := t.tailQueue.Pop()
		if !ok {
			break
		}
		batch = append(batch, idx)
	}
	if len(batch) == 0 {
		return
	}
	if err := t.Merge(batch); err != nil {
		log.Printf("table %s: merge of tail pages %v failed: %v", t.name, batch, err)
	}
}

// Merge consolidates the given tail pages into the base pages. For every
// tail page it walks each user column from the newest cell to the oldest,
// applies the first (newest) update per base record onto a deep copy of the
// owning base page, advances the base record's TPS to the newest absorbed
// tail RID, and swaps the copies back in through the buffer pool.
//
// Base RIDs whose row-column locks cannot be taken keep their TPS; their
// merged values are still correct because only the merge writes base data
// columns, so a lagging TPS merely sends readers back to the tail chain.
func (t *Table) Merge(tailPageIndices []int64) error {
	defer t.locks.ReleaseAll(t.mergeOwner)

	pd := t.pageDirectory
	pool := pd.Pool()
	capacity := t.cfg.CellsPerPage()

	for _, tailPageIdx := range tailPageIndices {
		numTailPages := (pd.NumTailRecords() + capacity - 1) / capacity
		if tailPageIdx >= numTailPages {
			// Nothing to merge past the end of the tail stream.
			break
		}

		bridPage, err := pool.GetPage(tailPageIdx, TPSAndBRIDColumn, true, IntentRead)
		if err != nil {
			return err
		}
		schemaPage, err := pool.GetPage(tailPageIdx, SchemaEncodingColumn, true, IntentRead)
		if err != nil {
			return err
		}
		tailRIDPage, err := pool.GetPage(tailPageIdx, RIDColumn, true, IntentRead)
		if err != nil {
			return err
		}

		// One deep copy per (column, base page) touched in this pass.
		baseCopies := make([]map[int64]*Page, t.numColumns)
		for i := range baseCopies {
			baseCopies[i] = make(map[int64]*Page)
		}
		lockable := make(map[int64]bool)

		for column := 0; column < t.numColumns; column++ {
			tailPage, err := pool.GetPage(tailPageIdx, column+ColumnDataOffset, true, IntentRead)
			if err != nil {
				return err
			}

			seen := make(map[int64]bool)
			for cell := tailPage.NumCells() - 1; cell >= 0; cell-- {
				tailRID, err := tailRIDPage.Read(cell)
				if err != nil {
					return err
				}
				if tailRID == NullRID {
					// Tail tombstoned by a rolled-back update.
					continue
				}
				value, err := tailPage.Read(cell)
				if err != nil {
					return err
				}
				baseRID, err := bridPage.Read(cell)
				if err != nil {
					return err
				}

				granted, known := lockable[baseRID]
				if !known {
					pk, err := pd.GetDataAttribute(baseRID, t.primaryKey)
					if err != nil {
						return err
					}
					granted = t.locks.Request(ExclusiveLock, RowResource(pk, TPSAndBRIDColumn), t.mergeOwner)
					lockable[baseRID] = granted
				}

				basePageIdx := baseRID / capacity
				if _, ok := baseCopies[column][basePageIdx]; !ok {
					source, err := pool.GetPage(basePageIdx, column+ColumnDataOffset, false, IntentRead)
					if err != nil {
						return err
					}
					baseCopies[column][basePageIdx] = source.Clone()
				}

				if !seen[baseRID] {
					seen[baseRID] = true
					schema, err := schemaPage.Read(cell)
					if err != nil {
						return err
					}
					if schema&(1<<uint(column)) != 0 {
						if err := baseCopies[column][basePageIdx].WriteAt(value, int(baseRID%capacity)); err != nil {
							return err
						}
					}
				}

				if !granted {
					continue
				}
				tps, err := pd.GetColumnValue(baseRID, TPSAndBRIDColumn, false)
				if err != nil {
					return err
				}
				if tps < tailRID {
					if err := pd.SetColumnValue(baseRID, TPSAndBRIDColumn, tailRID, false); err != nil {
						return err
					}
				}
			}
		}

		for column := range baseCopies {
			for basePageIdx, page := range baseCopies[column] {
				if err := pool.UpdatePage(page, basePageIdx, column+ColumnDataOffset, false); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
