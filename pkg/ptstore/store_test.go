// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T, columns []string, forceOrdering bool) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(Options{
		Directory:     dir,
		Base:          "metrics",
		Columns:       columns,
		ForceOrdering: forceOrdering,
		Logger:        NewDiscardLogger(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func collect(t *testing.T, st *Store) []Row {
	t.Helper()
	var rows []Row
	if err := st.Stream(nil, nil, func(r Row) bool {
		rows = append(rows, cloneRow(r))
		return true
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	return rows
}

// ─── empty store ─────────────────────────────────────────────────────────────

func TestEmptyStore(t *testing.T) {
	st := openTestStore(t, []string{"cpu"}, false)
	defer st.Close()

	if ft := st.FirstTime(); ft != NoData {
		t.Errorf("FirstTime() on empty store = %d, want NoData", ft)
	}
	if rows := collect(t, st); len(rows) != 0 {
		t.Errorf("Stream on empty store yielded %d rows, want 0", len(rows))
	}
}

// ─── single row / basic append+flush+stream ─────────────────────────────────

func TestSingleRowRoundTrip(t *testing.T) {
	st := openTestStore(t, []string{"cpu", "mem"}, false)
	defer st.Close()

	row := st.NewRow(1000)
	row.Set(0, 1.5)
	row.Set(1, 2.5)
	if err := st.Append(row); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := st.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rows := collect(t, st)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Values[0] != 1.5 || rows[0].Values[1] != 2.5 {
		t.Errorf("row = %+v, want cpu=1.5 mem=2.5", rows[0])
	}
}

// ─── bucket merge ────────────────────────────────────────────────────────────

// TestBucketMerge verifies that two appends landing in the same coarse time
// bucket merge into a single emitted row instead of becoming two records.
func TestBucketMerge(t *testing.T) {
	st := openTestStore(t, []string{"cpu", "mem"}, false)
	defer st.Close()

	r1 := st.NewRow(1000)
	r1.Set(0, 1.0)
	if err := st.Append(r1); err != nil {
		t.Fatalf("append 1: %v", err)
	}

	r2 := st.NewRow(1050) // same coarse bucket as 1000 (both /100 == 10)
	r2.Set(1, 2.0)
	if err := st.Append(r2); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	// Force the merged pending row out by appending into the next bucket.
	r3 := st.NewRow(2000)
	r3.Set(0, 3.0)
	if err := st.Append(r3); err != nil {
		t.Fatalf("append 3: %v", err)
	}
	if err := st.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	rows := collect(t, st)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (merged bucket + final)", len(rows))
	}
	if rows[0].Timestamp != 1000 {
		t.Errorf("merged row timestamp = %d, want 1000 (earlier of the two)", rows[0].Timestamp)
	}
	if !rows[0].Has(0) || !rows[0].Has(1) {
		t.Errorf("merged row bits = %b, want both columns set", rows[0].Bits)
	}
	if rows[0].Values[0] != 1.0 || rows[0].Values[1] != 2.0 {
		t.Errorf("merged row values = %v, want [1 2]", rows[0].Values)
	}
}

// ─── forward fill ────────────────────────────────────────────────────────────

func TestForwardFill(t *testing.T) {
	st := openTestStore(t, []string{"cpu", "mem"}, false)
	defer st.Close()

	r1 := st.NewRow(1000)
	r1.Set(0, 1.0)
	r1.Set(1, 2.0)
	_ = st.Append(r1)

	r2 := st.NewRow(2000)
	r2.Set(0, 9.0) // mem untouched: should forward-fill as 2.0
	_ = st.Append(r2)
	_ = st.Flush()

	rows := collect(t, st)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].Values[1] != 2.0 {
		t.Errorf("forward-filled mem = %v, want 2.0", rows[1].Values[1])
	}
}

// ─── out of order ────────────────────────────────────────────────────────────

func TestOutOfOrderStrictRejected(t *testing.T) {
	st := openTestStore(t, []string{"cpu"}, false) // forceOrdering=false -> strict
	defer st.Close()

	r1 := st.NewRow(2000)
	r1.Set(0, 1.0)
	_ = st.Append(r1)
	_ = st.Flush() // force r1 to be emitted

	r2 := st.NewRow(3000)
	r2.Set(0, 2.0)
	_ = st.Append(r2)

	r3 := st.NewRow(1000) // earlier bucket than r2; becomes pending once r2 is emitted
	r3.Set(0, 3.0)
	if err := st.Append(r3); err != nil {
		t.Fatalf("Append(r3): %v (r3 only becomes pending here, ordering is checked on emit)", err)
	}

	// r3 is only checked against ordering once the store tries to emit it.
	err := st.Flush()
	if err == nil {
		t.Fatal("Flush with an out-of-order pending row succeeded, want KindOutOfOrder error")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Kind != KindOutOfOrder {
		t.Errorf("err = %v, want a *StoreError with KindOutOfOrder", err)
	}
}

func TestOutOfOrderClamped(t *testing.T) {
	st := openTestStore(t, []string{"cpu"}, true) // forceOrdering=true -> clamp
	defer st.Close()

	r1 := st.NewRow(2000)
	r1.Set(0, 1.0)
	_ = st.Append(r1)
	_ = st.Flush()

	r2 := st.NewRow(3000)
	r2.Set(0, 2.0)
	_ = st.Append(r2)

	r3 := st.NewRow(1000)
	r3.Set(0, 3.0)
	if err := st.Append(r3); err != nil {
		t.Fatalf("Append with forceOrdering=true returned error: %v", err)
	}
	if err := st.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rows := collect(t, st)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[2].Timestamp != rows[1].Timestamp {
		t.Errorf("clamped row timestamp = %d, want it to equal the previous emitted bucket %d",
			rows[2].Timestamp, rows[1].Timestamp)
	}
}

// ─── schema growth ───────────────────────────────────────────────────────────

func TestSchemaGrowth(t *testing.T) {
	dir := t.TempDir()

	st1, err := Open(Options{Directory: dir, Base: "m", Columns: []string{"cpu"}, Logger: NewDiscardLogger()})
	if err != nil {
		t.Fatalf("Open 1: %v", err)
	}
	r := st1.NewRow(1000)
	r.Set(0, 1.0)
	_ = st1.Append(r)
	if err := st1.Close(); err != nil {
		t.Fatalf("Close 1: %v", err)
	}

	st2, err := Open(Options{Directory: dir, Base: "m", Columns: []string{"cpu", "mem"}, Logger: NewDiscardLogger()})
	if err != nil {
		t.Fatalf("Open 2 (grown schema): %v", err)
	}
	defer st2.Close()

	r2 := st2.NewRow(2000)
	r2.Set(1, 5.0)
	if err := st2.Append(r2); err != nil {
		t.Fatalf("Append after growth: %v", err)
	}
	_ = st2.Flush()

	rows := collect(t, st2)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if len(rows[1].Values) != 2 {
		t.Fatalf("row after growth has %d columns, want 2", len(rows[1].Values))
	}
}

func TestSchemaMismatchRejected(t *testing.T) {
	dir := t.TempDir()

	st1, err := Open(Options{Directory: dir, Base: "m", Columns: []string{"cpu", "mem"}, Logger: NewDiscardLogger()})
	if err != nil {
		t.Fatalf("Open 1: %v", err)
	}
	if err := st1.Close(); err != nil {
		t.Fatalf("Close 1: %v", err)
	}

	_, err = Open(Options{Directory: dir, Base: "m", Columns: []string{"mem", "cpu"}, Logger: NewDiscardLogger()})
	if err == nil {
		t.Fatal("Open with reordered columns succeeded, want KindSchemaMismatch error")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Kind != KindSchemaMismatch {
		t.Errorf("err = %v, want a *StoreError with KindSchemaMismatch", err)
	}
}

// ─── range streaming ─────────────────────────────────────────────────────────

func TestStreamRange(t *testing.T) {
	st := openTestStore(t, []string{"cpu"}, false)
	defer st.Close()

	for _, ts := range []int64{1000, 2000, 3000, 4000} {
		r := st.NewRow(ts)
		r.Set(0, float64(ts))
		_ = st.Append(r)
	}
	_ = st.Flush()

	from, to := int64(2000), int64(3000)
	rows := collectRange(t, st, &from, &to)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (2000, 3000)", len(rows))
	}
	if rows[0].Timestamp != 2000 || rows[1].Timestamp != 3000 {
		t.Errorf("rows = %v, %v, want 2000 then 3000", rows[0].Timestamp, rows[1].Timestamp)
	}
}

func collectRange(t *testing.T, st *Store, from, to *int64) []Row {
	t.Helper()
	var rows []Row
	if err := st.Stream(from, to, func(r Row) bool {
		rows = append(rows, cloneRow(r))
		return true
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	return rows
}

// ─── idempotency ─────────────────────────────────────────────────────────────

func TestIdempotentFlushAndClose(t *testing.T) {
	st := openTestStore(t, []string{"cpu"}, false)

	r := st.NewRow(1000)
	r.Set(0, 1.0)
	_ = st.Append(r)

	if err := st.Flush(); err != nil {
		t.Fatalf("flush 1: %v", err)
	}
	if err := st.Flush(); err != nil {
		t.Fatalf("flush 2 (idempotent): %v", err)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("close 1: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close 2 (idempotent): %v", err)
	}

	if err := st.Append(st.NewRow(2000)); !errors.Is(err, ErrClosed) {
		t.Errorf("Append after Close: err = %v, want ErrClosed", err)
	}
}
