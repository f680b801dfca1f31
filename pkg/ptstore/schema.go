// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ptstore implements a persistent, append-only time-series store: a
// pair of text files (a small header describing the schema, and a data file
// holding one delta-encoded record per line) supporting in-order append,
// coarse-bucket merging, and range streaming with per-column forward-fill.
//
// The store is a library, not a service: it owns no network surface. Callers
// supply a Logger and (optionally) a scheduler interval; everything else is
// local file I/O guarded by a single mutex (see Store).
package ptstore

import "math"

// MaxColumns is the hard cap on schema width, imposed by the 64-bit bitvector
// used to mark which columns are present in a given row. Widening this would
// require a variable-length bitset and a header version bump.
const MaxColumns = 64

// CoarseFactor is the fixed divisor used to coarsen timestamps for delta
// encoding and bucket merging.
const CoarseFactor = 100

// NoData is the firstTime() sentinel returned when the log contains no rows.
const NoData int64 = math.MaxInt64

// Schema is an ordered, append-only list of column names. Column order, once
// written to a header, is fixed; the schema may only grow on the end.
type Schema struct {
	Columns []string
	index   map[string]int
}

// NewSchema builds a Schema from an ordered column name list.
func NewSchema(columns []string) (*Schema, error) {
	if len(columns) > MaxColumns {
		return nil, ErrTooManyColumns
	}
	s := &Schema{Columns: append([]string(nil), columns...)}
	s.reindex()
	return s, nil
}

func (s *Schema) reindex() {
	s.index = make(map[string]int, len(s.Columns))
	for i, name := range s.Columns {
		s.index[name] = i
	}
}

// Len returns the number of columns currently in the schema.
func (s *Schema) Len() int { return len(s.Columns) }

// IndexOf returns the bit position of the named column, or -1 if it is not
// (yet) part of the schema.
func (s *Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// hasPrefix reports whether other's column list is a prefix of s's (or equal).
func (s *Schema) hasPrefix(other *Schema) bool {
	if len(other.Columns) > len(s.Columns) {
		return false
	}
	for i, name := range other.Columns {
		if s.Columns[i] != name {
			return false
		}
	}
	return true
}

// extend appends new columns to the schema, returning a new Schema. Callers
// must only call this after confirming the existing columns are an unchanged
// prefix.
func (s *Schema) extend(add []string) (*Schema, error) {
	return NewSchema(append(append([]string(nil), s.Columns...), add...))
}

// Row is one sample: a timestamp, a bitvector of which columns are present,
// and a dense value slice sized to the schema in effect when the row was
// built. On rows passed to Append, values at unset bit positions are ignored.
// On rows delivered by Stream, every position holds that column's
// forward-filled last known value (zero if none yet), whether or not its bit
// is set; the bits mark only the columns the row's own data line carried.
type Row struct {
	Timestamp int64
	Bits      uint64
	Values    []float64
}

// NewRow allocates a zeroed Row for a schema with n columns.
func NewRow(ts int64, n int) Row {
	return Row{Timestamp: ts, Values: make([]float64, n)}
}

// Set marks column i present and stores v, unless v is non-finite, in which
// case the bit is cleared instead: a non-finite value is indistinguishable
// from absent data once it reaches the wire.
func (r *Row) Set(i int, v float64) {
	if isFinite(v) {
		r.Bits |= 1 << uint(i)
		r.Values[i] = v
	} else {
		r.Bits &^= 1 << uint(i)
	}
}

// Has reports whether column i is present in this row.
func (r *Row) Has(i int) bool {
	return r.Bits&(1<<uint(i)) != 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// coarsen divides a timestamp by CoarseFactor, the deflate step for delta
// encoding and bucket comparisons.
func coarsen(ts int64) int64 {
	return ts / CoarseFactor
}

// inflate multiplies a coarsened timestamp back up to real time.
func inflate(ct int64) int64 {
	return ct * CoarseFactor
}
