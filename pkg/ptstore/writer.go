// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import "bufio"

// emitter turns one row at a time into an on-disk record: it computes the
// delta/absolute timestamp field, enforces ordering (strict error or clamp),
// and delegates token selection to the codec's encoderState.
type emitter struct {
	forceOrdering bool
	logger        Logger

	lastEmitted   *Row
	lastEmittedCt int64 // coarsened timestamp of lastEmitted, valid iff lastEmitted != nil
	enc           *encoderState
}

func newEmitter(forceOrdering bool, ncols int, logger Logger) *emitter {
	return &emitter{
		forceOrdering: forceOrdering,
		logger:        logger,
		enc:           newEncoderState(ncols),
	}
}

// emit writes row as one record to w, adjusting its timestamp relative to
// the last successfully emitted row. Returns a *StoreError with
// KindOutOfOrder (row not written) if the row's coarsened timestamp precedes
// the last emitted one and forceOrdering is false.
func (e *emitter) emit(w *bufio.Writer, row Row) error {
	ct := coarsen(row.Timestamp)

	var tsField int64
	if e.lastEmitted == nil {
		tsField = -ct
	} else {
		delta := ct - e.lastEmittedCt
		if delta >= 0 {
			tsField = delta
		} else if e.forceOrdering {
			e.logger.Debugf("[PTSTORE]> clamping out-of-order row (coarse time %d < %d) to previous bucket",
				ct, e.lastEmittedCt)
			tsField = 0
			ct = e.lastEmittedCt
		} else {
			return newErr(KindOutOfOrder, ErrOutOfOrder)
		}
	}

	if err := e.enc.encodeRecord(w, tsField, row); err != nil {
		return newErr(KindIO, err)
	}

	emitted := row
	emitted.Values = append([]float64(nil), row.Values...)
	e.lastEmitted = &emitted
	e.lastEmittedCt = ct
	return nil
}
