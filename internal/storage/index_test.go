package storage

import (
	"errors"
	"sort"
	"testing"

	"github.com/SimonWaldherr/tinyLStore/internal/structures"
)

func TestIndex_PrimaryKeyAlwaysIndexed(t *testing.T) {
	table := newTestTable(t, 3, 0, nil)
	if !table.Index().HasIndex(0) {
		t.Fatal("primary key column lacks an index")
	}
	if table.Index().HasIndex(1) || table.Index().HasIndex(2) {
		t.Fatal("secondary columns indexed at construction")
	}
}

func TestIndex_LocateLinearScanWithoutIndex(t *testing.T) {
	cfg := testConfig()
	cfg.AutomaticNewIndexes = false
	table := newTestTable(t, 3, 0, cfg)
	q := NewQuery(table)

	q.Insert(1, 7, 0)
	q.Insert(2, 7, 0)
	q.Insert(3, 8, 0)

	rids, err := table.Index().Locate(1, 7)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
	if len(rids) != 2 || rids[0] != 0 || rids[1] != 1 {
		t.Fatalf("locate = %v, want [0 1]", rids)
	}
	if table.Index().HasIndex(1) {
		t.Fatal("index created despite automatic indexes disabled")
	}
}

func TestIndex_AutoIndexAfterSecondQuery(t *testing.T) {
	table := newTestTable(t, 3, 0, nil)
	q := NewQuery(table)
	for i := int64(0); i < 10; i++ {
		q.Insert(i, i%3, i)
	}

	ix := table.Index()
	ix.LocateRange(0, 1, 1)
	if ix.HasIndex(1) {
		t.Fatal("index created after a single range query")
	}
	ix.LocateRange(0, 1, 1)
	if !ix.HasIndex(1) {
		t.Fatal("index not created after the second range query")
	}

	// The fresh index answers the same queries as the scan did.
	rids, _ := ix.Locate(1, 1)
	if len(rids) != 3 {
		t.Fatalf("locate through auto index = %v", rids)
	}
}

func TestIndex_LazyMaintenanceAppliedOnLookup(t *testing.T) {
	table := newTestTable(t, 2, 0, nil)
	q := NewQuery(table)
	q.Insert(1, 10)
	q.Insert(2, 20)

	ix := table.Index()
	if err := ix.CreateIndex(1, true, false); err != nil {
		t.Fatalf("create index: %v", err)
	}

	// Inserts after index creation queue maintenance instead of applying.
	q.Insert(3, 30)
	rids, err := ix.Locate(1, 30)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(rids) != 1 || rids[0] != 2 {
		t.Fatalf("locate after lazy maintenance = %v, want [2]", rids)
	}
}

func TestIndex_MaintainUpdateMovesKeys(t *testing.T) {
	table := newTestTable(t, 2, 0, nil)
	q := NewQuery(table)
	q.Insert(1, 10)
	table.Index().CreateIndex(1, true, false)

	if err := q.Update(1, nil, ptr(99)); err != nil {
		t.Fatalf("update: %v", err)
	}
	rids, _ := table.Index().Locate(1, 99)
	if len(rids) != 1 {
		t.Fatalf("new value not indexed: %v", rids)
	}
	old, _ := table.Index().Locate(1, 10)
	if len(old) != 0 {
		t.Fatalf("old value still indexed: %v", old)
	}
}

func TestIndex_MaintainDeleteRemovesEverywhere(t *testing.T) {
	table := newTestTable(t, 2, 0, nil)
	q := NewQuery(table)
	q.Insert(1, 10)
	q.Insert(2, 20)
	table.Index().CreateIndex(1, true, false)

	if err := q.Delete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rids, _ := table.Index().Locate(0, 1); len(rids) != 0 {
		t.Fatal("primary index still holds the deleted key")
	}
	if rids, _ := table.Index().Locate(1, 10); len(rids) != 0 {
		t.Fatal("secondary index still holds the deleted key")
	}
}

func TestIndex_CreateIndexTwiceFails(t *testing.T) {
	table := newTestTable(t, 2, 0, nil)
	if err := table.Index().CreateIndex(0, true, true); err == nil {
		t.Fatal("re-creating the primary index succeeded")
	}
}

func TestIndex_DropIndexFallsBackToScan(t *testing.T) {
	cfg := testConfig()
	cfg.AutomaticNewIndexes = false
	table := newTestTable(t, 2, 0, cfg)
	q := NewQuery(table)
	q.Insert(1, 10)
	table.Index().CreateIndex(1, false, false)
	table.Index().DropIndex(1)

	rids, err := table.Index().Locate(1, 10)
	if err != nil || len(rids) != 1 {
		t.Fatalf("locate after drop = %v, %v", rids, err)
	}
}

func TestIndex_ColumnOutOfRange(t *testing.T) {
	table := newTestTable(t, 2, 0, nil)
	if _, err := table.Index().Locate(9, 0); !errors.Is(err, ErrColumnOutOfRange) {
		t.Fatalf("locate bad column = %v", err)
	}
	if _, err := table.Index().LocateRange(0, 1, -1); !errors.Is(err, ErrColumnOutOfRange) {
		t.Fatalf("locate range bad column = %v", err)
	}
}

func TestIndex_HashMapBackedIndex(t *testing.T) {
	table := newTestTable(t, 2, 0, nil)
	q := NewQuery(table)
	for i := int64(0); i < 5; i++ {
		q.Insert(i, i*2)
	}
	if err := table.Index().CreateIndex(1, false, false); err != nil {
		t.Fatalf("create unordered index: %v", err)
	}
	rids, _ := table.Index().Locate(1, 6)
	if len(rids) != 1 || rids[0] != 3 {
		t.Fatalf("locate through hash index = %v, want [3]", rids)
	}
	ranged, _ := table.Index().LocateRange(2, 6, 1)
	if len(ranged) != 3 {
		t.Fatalf("range through hash index = %v", ranged)
	}
}

func TestIndex_UniqueViolationSurfaces(t *testing.T) {
	table := newTestTable(t, 2, 0, nil)
	ix := table.Index()
	if err := ix.MaintainInsert([]int64{5, 50}, 0); err != nil {
		t.Fatalf("first maintain insert: %v", err)
	}
	err := ix.MaintainInsert([]int64{5, 51}, 1)
	if !errors.Is(err, structures.ErrNonUniqueKey) {
		t.Fatalf("duplicate pk maintain insert = %v", err)
	}
}
