// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// HeaderVersion is the on-disk header format this implementation writes.
// Opening a header with a higher version fails with KindUnsupportedVersion.
const HeaderVersion = 1

// readHeader parses the two-line header file: a version integer, then a
// tab-joined column name list.
func readHeader(r io.Reader) (version uint64, columns []string, err error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return 0, nil, fmt.Errorf("[PTSTORE]> empty header")
	}
	version, err = strconv.ParseUint(strings.TrimSpace(sc.Text()), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("[PTSTORE]> parse header version: %w", err)
	}

	if !sc.Scan() {
		return version, nil, nil
	}
	line := sc.Text()
	if line == "" {
		return version, nil, nil
	}
	columns = strings.Split(line, "\t")
	return version, columns, sc.Err()
}

// writeHeader writes the version line followed by the tab-joined column list.
func writeHeader(w io.Writer, schema *Schema) error {
	if _, err := fmt.Fprintf(w, "%d\n", HeaderVersion); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Join(schema.Columns, "\t")); err != nil {
		return err
	}
	return nil
}

// encoderState tracks, per column, the last value actually written to the
// log so the encoder can emit the "*" (unchanged) token. It mirrors the
// decoder's accumulator (decodeState) so both sides agree on what "last
// known value" means even across rows that didn't touch a given column.
type encoderState struct {
	lastValue []float64
	lastSet   []bool
}

func newEncoderState(n int) *encoderState {
	return &encoderState{
		lastValue: make([]float64, n),
		lastSet:   make([]bool, n),
	}
}

func (e *encoderState) grow(n int) {
	if n <= len(e.lastValue) {
		return
	}
	lv := make([]float64, n)
	ls := make([]bool, n)
	copy(lv, e.lastValue)
	copy(ls, e.lastSet)
	e.lastValue, e.lastSet = lv, ls
}

// encodeRecord writes one record line: tsField (already sign-adjusted by the
// writer), the hex bitvector, then one token per set bit in ascending column
// order. Bits whose value is non-finite are dropped before encoding; Row.Set
// already enforces this, this is a second check at the serialization
// boundary.
func (e *encoderState) encodeRecord(w *bufio.Writer, tsField int64, row Row) error {
	e.grow(len(row.Values))

	bits := row.Bits
	for i := 0; i < len(row.Values); i++ {
		if bits&(1<<uint(i)) != 0 && !isFinite(row.Values[i]) {
			bits &^= 1 << uint(i)
		}
	}

	if _, err := fmt.Fprintf(w, "%d\t%x", tsField, bits); err != nil {
		return err
	}

	for i := 0; i < len(row.Values); i++ {
		if bits&(1<<uint(i)) == 0 {
			continue
		}
		v := row.Values[i]
		var tok string
		if e.lastSet[i] && math.Float64bits(e.lastValue[i]) == math.Float64bits(v) {
			tok = tokenUnchanged
		} else {
			tok = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if _, err := fmt.Fprintf(w, "\t%s", tok); err != nil {
			return err
		}
		e.lastValue[i] = v
		e.lastSet[i] = true
	}

	_, err := w.WriteString("\n")
	return err
}

// decodeState is the accumulator the decoder carries across lines: the last
// coarsened absolute timestamp (for delta records) and the last known value
// per column (for forward-fill and "*" resolution).
type decodeState struct {
	prevCoarse int64
	hasPrev    bool
	acc        []float64
}

func newDecodeState(n int) *decodeState {
	return &decodeState{acc: make([]float64, n)}
}

func (d *decodeState) grow(n int) {
	if n <= len(d.acc) {
		return
	}
	acc := make([]float64, n)
	copy(acc, d.acc)
	d.acc = acc
}

// decodeLine parses one non-comment data line, advancing d's accumulator and
// timestamp state regardless of whether the row falls in the caller's
// requested range: an out-of-range row is skipped, but the forward-fill
// accumulator and previous-timestamp tracking still advance past it.
//
// Returns the decoded row, ok (false only for malformed lines, which the
// caller should skip without aborting the stream), inRange (whether row
// should be delivered to the caller's sink), and stop (whether the stream
// has reached toTime and should end after this line, whether or not a row
// was delivered).
func (d *decodeState) decodeLine(line string, ncols int, fromTime, toTime int64) (row Row, ok bool, inRange bool, stop bool) {
	d.grow(ncols)

	f := newTabFields(line)
	tsTok, has := f.next()
	if !has {
		return Row{}, false, false, false
	}
	tsField, err := strconv.ParseInt(tsTok, 10, 64)
	if err != nil {
		return Row{}, false, false, false
	}

	var t int64
	switch {
	case !d.hasPrev:
		// The leading record is always absolute: the writer emits
		// -(ts/100), so inverting the sign recovers the coarsened time
		// regardless of tsField's sign.
		t = -tsField
	case tsField < 0:
		t = -tsField
	default:
		t = tsField + d.prevCoarse
	}
	d.prevCoarse = t
	d.hasPrev = true

	bitsTok, has := f.next()
	if !has {
		return Row{}, false, false, false
	}
	bits, err := strconv.ParseUint(strings.TrimPrefix(bitsTok, "0x"), 16, 64)
	if err != nil {
		return Row{}, false, false, false
	}

	real := inflate(t)
	if real > toTime {
		// Well-formed, just beyond the requested range: stop iterating, but
		// this is not a parse failure.
		return Row{}, true, false, true
	}

	row = Row{Timestamp: real, Bits: bits, Values: make([]float64, ncols)}
	copy(row.Values, d.acc[:ncols])

	for i := 0; i < ncols; i++ {
		if bits&(1<<uint(i)) == 0 {
			continue
		}
		tok, has := f.next()
		if !has {
			return Row{}, false, false, false
		}
		switch tok {
		case tokenUnchanged:
			// no change to accumulator or row value beyond initialization
		case tokenDrop:
			row.Bits &^= 1 << uint(i)
		default:
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return Row{}, false, false, false
			}
			d.acc[i] = v
			row.Values[i] = v
		}
	}
	// Any leftover tokens (token count mismatch) mean the line is malformed.
	if _, has := f.next(); has {
		return Row{}, false, false, false
	}

	if real < fromTime {
		return Row{}, true, false, false
	}
	return row, true, true, false
}
