// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"bytes"
	"errors"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	st := openTestStore(t, []string{"cpu", "mem"}, false)
	defer st.Close()

	r1 := st.NewRow(1000)
	r1.Set(0, 1.5)
	if err := st.Append(r1); err != nil {
		t.Fatalf("Append r1: %v", err)
	}
	r2 := st.NewRow(2000)
	r2.Set(1, 2.5)
	if err := st.Append(r2); err != nil {
		t.Fatalf("Append r2: %v", err)
	}

	var buf bytes.Buffer
	if err := NewSnapshotWriter().WriteSnapshot(&buf, st); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	ts, columns, bits, values, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if ts != 2000 {
		t.Errorf("ts = %d, want 2000", ts)
	}
	if len(columns) != 2 || columns[0] != "cpu" || columns[1] != "mem" {
		t.Errorf("columns = %v, want [cpu mem]", columns)
	}
	if bits != 0b11 {
		t.Errorf("bits = %b, want 11 (both columns present)", bits)
	}
	if values[0] != 1.5 || values[1] != 2.5 {
		t.Errorf("values = %v, want [1.5 2.5] (cpu forward-filled from r1)", values)
	}
}

func TestSnapshotEmptyStore(t *testing.T) {
	st := openTestStore(t, []string{"cpu"}, false)
	defer st.Close()

	var buf bytes.Buffer
	if err := NewSnapshotWriter().WriteSnapshot(&buf, st); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	ts, columns, bits, _, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if ts != NoData {
		t.Errorf("ts = %d, want NoData", ts)
	}
	if len(columns) != 1 || columns[0] != "cpu" {
		t.Errorf("columns = %v, want [cpu]", columns)
	}
	if bits != 0 {
		t.Errorf("bits = %b, want 0 (no column ever set)", bits)
	}
}

func TestSnapshotRejectsCorruptedChecksum(t *testing.T) {
	st := openTestStore(t, []string{"cpu"}, false)
	defer st.Close()

	r := st.NewRow(1000)
	r.Set(0, 3.0)
	if err := st.Append(r); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var buf bytes.Buffer
	if err := NewSnapshotWriter().WriteSnapshot(&buf, st); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	data := buf.Bytes()
	data[0] ^= 0xFF // corrupt the magic, inside the CRC-covered region

	_, _, _, _, err := ReadSnapshot(bytes.NewReader(data))
	if err == nil {
		t.Fatal("ReadSnapshot: expected checksum error, got nil")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Kind != KindMalformedLine {
		t.Errorf("err = %v, want a *StoreError with KindMalformedLine", err)
	}
}
