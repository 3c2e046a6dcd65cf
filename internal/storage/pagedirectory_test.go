package storage

import (
	"errors"
	"testing"
)

func newTestDirectory(t *testing.T, numColumns int) *PageDirectory {
	t.Helper()
	pd, err := NewPageDirectory(t.TempDir(), "test", numColumns, 0, 0, testConfig())
	if err != nil {
		t.Fatalf("new page directory: %v", err)
	}
	return pd
}

// baseRecord builds a physical record with default metadata for direct
// page-directory tests.
func baseRecord(rid int64, values ...int64) []int64 {
	record := []int64{NullRID, rid, 0, 0, NullRID}
	return append(record, values...)
}

func TestPageDirectory_AddAndReadRecords(t *testing.T) {
	pd := newTestDirectory(t, 2+ColumnDataOffset)

	// 20 records at 8 cells per page spans three pages per column.
	for i := int64(0); i < 20; i++ {
		if err := pd.AddRecord(baseRecord(i, i*2, i*3), false); err != nil {
			t.Fatalf("add record %d: %v", i, err)
		}
	}
	if pd.NumRecords() != 20 {
		t.Fatalf("num records = %d, want 20", pd.NumRecords())
	}
	for i := int64(0); i < 20; i++ {
		rid, err := pd.GetColumnValue(i, RIDColumn, false)
		if err != nil || rid != i {
			t.Fatalf("rid(%d) = %d, %v", i, rid, err)
		}
		v, err := pd.GetColumnValue(i, ColumnDataOffset+1, false)
		if err != nil || v != i*3 {
			t.Fatalf("col1(%d) = %d, %v, want %d", i, v, err, i*3)
		}
	}
}

func TestPageDirectory_CountsTailPages(t *testing.T) {
	pd := newTestDirectory(t, 1+ColumnDataOffset)

	if pd.NumTailPages() != 0 {
		t.Fatalf("tail pages = %d before any tail record", pd.NumTailPages())
	}
	for i := int64(0); i < 17; i++ {
		if err := pd.AddRecord(baseRecord(i, i), true); err != nil {
			t.Fatalf("add tail %d: %v", i, err)
		}
	}
	// 17 records at 8 cells per page = 3 tail pages.
	if pd.NumTailPages() != 3 {
		t.Fatalf("tail pages = %d, want 3", pd.NumTailPages())
	}
	if pd.NumTailRecords() != 17 {
		t.Fatalf("tail records = %d, want 17", pd.NumTailRecords())
	}
}

func TestPageDirectory_SetColumnValue(t *testing.T) {
	pd := newTestDirectory(t, 1+ColumnDataOffset)
	pd.AddRecord(baseRecord(0, 5), false)

	if err := pd.SetColumnValue(0, RIDColumn, NullRID, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, _ := pd.GetColumnValue(0, RIDColumn, false)
	if v != NullRID {
		t.Fatalf("rid after tombstone = %d", v)
	}
}

func TestPageDirectory_BoundsChecks(t *testing.T) {
	pd := newTestDirectory(t, 1+ColumnDataOffset)
	pd.AddRecord(baseRecord(0, 5), false)

	if _, err := pd.GetColumnValue(1, 0, false); !errors.Is(err, ErrRIDOutOfRange) {
		t.Fatalf("rid out of range = %v", err)
	}
	if _, err := pd.GetColumnValue(0, 99, false); !errors.Is(err, ErrColumnOutOfRange) {
		t.Fatalf("column out of range = %v", err)
	}
	if err := pd.AddRecord([]int64{1, 2}, false); !errors.Is(err, ErrColumnOutOfRange) {
		t.Fatalf("short record = %v", err)
	}
}

func TestPageDirectory_GetDataAttributeFollowsHeadTail(t *testing.T) {
	pd := newTestDirectory(t, 3+ColumnDataOffset)
	pd.AddRecord(baseRecord(0, 10, 20, 30), false)

	// No chain yet: base values.
	v, err := pd.GetDataAttribute(0, 1)
	if err != nil || v != 20 {
		t.Fatalf("attribute = %d, %v, want 20", v, err)
	}

	// Tail updating column 1 only; schema bit 1.
	tail := []int64{NullRID, 0, 0, 1 << 1, 0, 0, 21, 0}
	pd.AddRecord(tail, true)
	pd.SetColumnValue(0, IndirectionColumn, 0, false)

	if v, _ = pd.GetDataAttribute(0, 1); v != 21 {
		t.Fatalf("updated attribute = %d, want 21", v)
	}
	if v, _ = pd.GetDataAttribute(0, 0); v != 10 {
		t.Fatalf("untouched attribute = %d, want 10", v)
	}
	if v, _ = pd.GetDataAttribute(0, 2); v != 30 {
		t.Fatalf("untouched attribute = %d, want 30", v)
	}
}

func TestPageDirectory_GetRIDForVersionWalksChain(t *testing.T) {
	pd := newTestDirectory(t, 1+ColumnDataOffset)
	pd.AddRecord(baseRecord(0, 100), false)

	// Build a chain of three tails: t0 <- t1 <- t2, head t2.
	pd.AddRecord([]int64{NullRID, 0, 0, 1, 0, 101}, true)
	pd.AddRecord([]int64{0, 1, 0, 1, 0, 102}, true)
	pd.AddRecord([]int64{1, 2, 0, 1, 0, 103}, true)
	pd.SetColumnValue(0, IndirectionColumn, 2, false)

	cases := []struct {
		version  int
		wantTail bool
		wantRID  int64
	}{
		{0, true, 2},
		{-1, true, 1},
		{-2, true, 0},
		{-3, false, 0}, // past the chain: base record
		{-9, false, 0},
	}
	for _, tc := range cases {
		tail, rid, err := pd.GetRIDForVersion(0, tc.version)
		if err != nil {
			t.Fatalf("version %d: %v", tc.version, err)
		}
		if tail != tc.wantTail || rid != tc.wantRID {
			t.Fatalf("version %d = (%v, %d), want (%v, %d)", tc.version, tail, rid, tc.wantTail, tc.wantRID)
		}
	}
}

func TestPageDirectory_GetRIDForVersionNoChain(t *testing.T) {
	pd := newTestDirectory(t, 1+ColumnDataOffset)
	pd.AddRecord(baseRecord(0, 100), false)

	tail, rid, err := pd.GetRIDForVersion(0, -2)
	if err != nil || tail || rid != 0 {
		t.Fatalf("version walk without chain = (%v, %d, %v)", tail, rid, err)
	}
}
