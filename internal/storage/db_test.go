package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDatabase_CreateTableRejectsDuplicates(t *testing.T) {
	db := NewDatabase(testConfig())
	if err := db.Open(t.TempDir()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.CreateTable("grades", 3, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.CreateTable("grades", 3, 0); !errors.Is(err, ErrTableNotUnique) {
		t.Fatalf("duplicate create = %v, want ErrTableNotUnique", err)
	}
}

func TestDatabase_OpenEmptyPathFails(t *testing.T) {
	db := NewDatabase(testConfig())
	if err := db.Open(""); err == nil {
		t.Fatal("open with empty path succeeded")
	}
}

func TestDatabase_GetTableMissing(t *testing.T) {
	db := NewDatabase(testConfig())
	db.Open(t.TempDir())
	defer db.Close()

	if _, err := db.GetTable("absent"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("get missing table = %v, want ErrTableNotFound", err)
	}
}

func TestDatabase_DropTable(t *testing.T) {
	dir := t.TempDir()
	db := NewDatabase(testConfig())
	db.Open(dir)
	defer db.Close()

	db.CreateTable("tmp", 2, 0)
	if err := db.DropTable("tmp"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tmp")); !os.IsNotExist(err) {
		t.Fatal("table directory survived the drop")
	}
	if err := db.DropTable("tmp"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("double drop = %v, want ErrTableNotFound", err)
	}
	// The name is free again.
	if _, err := db.CreateTable("tmp", 2, 0); err != nil {
		t.Fatalf("recreate after drop: %v", err)
	}
}

func TestDatabase_CloseReopenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	db := NewDatabase(cfg)
	db.Open(dir)
	table, err := db.CreateTable("grades", 5, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	q := NewQuery(table)
	keys := []int64{3, 1, 4, 1 << 40, 9}
	for _, k := range keys {
		if err := q.Insert(k, k+1, k+2, k+3, k+4); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	q.Update(3, nil, nil, ptr(-7), nil, nil)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2 := NewDatabase(cfg)
	db2.Open(dir)
	defer db2.Close()
	reopened, err := db2.GetTable("grades")
	if err != nil {
		t.Fatalf("get table after reopen: %v", err)
	}
	if reopened.PageDirectory().NumRecords() != int64(len(keys)) {
		t.Fatalf("records = %d, want %d", reopened.PageDirectory().NumRecords(), len(keys))
	}

	q2 := NewQuery(reopened)
	for _, k := range keys {
		records, err := q2.Select(k, 0, allColumns(5))
		if err != nil || len(records) != 1 {
			t.Fatalf("select %d after reopen: %v", k, err)
		}
		want := []int64{k, k + 1, k + 2, k + 3, k + 4}
		if k == 3 {
			want[2] = -7
		}
		for i, v := range records[0].Columns {
			if v != want[i] {
				t.Fatalf("key %d columns = %v, want %v", k, records[0].Columns, want)
			}
		}
	}

	// The cached handle is returned on repeat gets.
	again, _ := db2.GetTable("grades")
	if again != reopened {
		t.Fatal("repeat GetTable returned a different handle")
	}
}

func TestDatabase_CreateTableWithMergeOverrides(t *testing.T) {
	db := NewDatabase(testConfig())
	db.Open(t.TempDir())
	defer db.Close()

	table, err := db.CreateTableWithMerge("live", 2, 0, false, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("create with merge: %v", err)
	}
	// The background task exists and shuts down cleanly with the table.
	if table.cron == nil {
		t.Fatal("background merge task not started")
	}
}
