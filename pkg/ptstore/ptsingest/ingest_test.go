// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptsingest

import (
	"testing"

	"github.com/ClusterCockpit/ptstore/pkg/ptstore"
)

// fakeTarget records every Append call instead of touching disk.
type fakeTarget struct {
	ncols int
	rows  []ptstore.Row
}

func (f *fakeTarget) NewRow(ts int64) ptstore.Row { return ptstore.NewRow(ts, f.ncols) }
func (f *fakeTarget) Append(row ptstore.Row) error {
	f.rows = append(f.rows, row)
	return nil
}

type fakeSchema struct{ cols map[string]int }

func (s fakeSchema) IndexOf(name string) int {
	if i, ok := s.cols[name]; ok {
		return i
	}
	return -1
}

func TestDecodeAndAppend(t *testing.T) {
	target := &fakeTarget{ncols: 2}
	schema := fakeSchema{cols: map[string]int{"cpu": 0, "mem": 1}}
	ig := NewIngestor(target, schema, nil)

	line := []byte("load cpu=1.5,mem=2.5,unknown=9 1700000000000000000")
	if err := ig.decodeAndAppend(line); err != nil {
		t.Fatalf("decodeAndAppend: %v", err)
	}

	if len(target.rows) != 1 {
		t.Fatalf("got %d appended rows, want 1", len(target.rows))
	}
	row := target.rows[0]
	if !row.Has(0) || !row.Has(1) {
		t.Errorf("row bits = %b, want both columns set", row.Bits)
	}
	if row.Values[0] != 1.5 || row.Values[1] != 2.5 {
		t.Errorf("row values = %v, want [1.5 2.5]", row.Values)
	}
	if got := ig.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1 (the unknown field)", got)
	}
}

func TestDecodeAndAppendSkipsEmptyLine(t *testing.T) {
	target := &fakeTarget{ncols: 1}
	schema := fakeSchema{cols: map[string]int{"cpu": 0}}
	ig := NewIngestor(target, schema, nil)

	line := []byte("load onlyUnknown=1 1700000000000000000")
	if err := ig.decodeAndAppend(line); err != nil {
		t.Fatalf("decodeAndAppend: %v", err)
	}
	if len(target.rows) != 0 {
		t.Errorf("got %d appended rows, want 0 (no recognized field)", len(target.rows))
	}
}
