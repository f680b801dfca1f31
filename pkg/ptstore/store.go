// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"bufio"
	"math"
	"sync"

	"github.com/go-co-op/gocron/v2"
)

// Sink receives rows during Stream, in ascending timestamp order. Returning
// false stops the stream early without an error.
type Sink func(Row) bool

// Store is the public facade: one open header+data file pair, a single
// pending-row slot used for coarse-bucket merging, and a periodic background
// flush. All exported methods are safe for concurrent use; a single mutex
// serializes append, flush, close and streaming: a single-writer buffer
// discipline rather than channel hand-off.
type Store struct {
	mu sync.Mutex

	repo    *repository
	schema  *Schema
	emitter *emitter
	logger  Logger
	metrics *Metrics

	pending *Row

	firstTime int64

	sched gocron.Scheduler
	closed bool
}

// Open validates opts, opens (or creates) the on-disk header/data pair, scans
// the log once to establish firstTime, and starts the periodic-flush
// scheduler: a dedicated gocron.Scheduler owned by this Store, not a
// process-wide singleton, since a host process may open several independent
// stores concurrently.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = NewDiscardLogger()
	}

	schema, err := NewSchema(opts.Columns)
	if err != nil {
		return nil, err
	}

	repo, finalSchema, err := openRepository(opts.Directory, opts.Base, schema, logger)
	if err != nil {
		return nil, err
	}

	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	st := &Store{
		repo:    repo,
		schema:  finalSchema,
		emitter: newEmitter(opts.ForceOrdering, finalSchema.Len(), logger),
		logger:  logger,
		metrics: opts.Metrics,
	}

	ft, err := st.scanFirstTime()
	if err != nil {
		repo.close()
		return nil, err
	}
	st.firstTime = ft

	s, err := gocron.NewScheduler()
	if err != nil {
		repo.close()
		return nil, newErr(KindIO, err)
	}
	if _, err := s.NewJob(gocron.DurationJob(flushInterval),
		gocron.NewTask(func() {
			if err := st.Flush(); err != nil {
				logger.Warnf("[PTSTORE]> periodic flush failed: %v", err)
			}
		})); err != nil {
		repo.close()
		return nil, newErr(KindIO, err)
	}
	st.sched = s
	st.sched.Start()

	return st, nil
}

// NewRow allocates a Row sized to this store's current schema.
func (s *Store) NewRow(ts int64) Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewRow(ts, s.schema.Len())
}

// scanFirstTime streams the whole log once, capturing only the first row's
// timestamp: an unbounded range and a sink that stops after the first row.
func (s *Store) scanFirstTime() (int64, error) {
	first := NoData
	err := s.streamLocked(nil, nil, func(r Row) bool {
		first = r.Timestamp
		return false
	})
	return first, err
}

// FirstTime returns the timestamp of the earliest row in the log, or NoData
// if the log is empty. Computed once at Open and never reread afterwards.
func (s *Store) FirstTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstTime
}

// Append accepts one row: it either becomes the new pending row, merges into
// the existing pending row (same coarse time bucket), or causes the
// previously pending row to be emitted to make room. A row rejected for
// being out of order leaves the pending slot untouched and is reported to the
// caller; the store otherwise remains usable.
func (s *Store) Append(row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.pending == nil {
		cp := cloneRow(row)
		s.pending = &cp
		if s.metrics != nil {
			s.metrics.recordAppend()
		}
		return nil
	}

	if coarsen(row.Timestamp) == coarsen(s.pending.Timestamp) {
		mergeInto(s.pending, row)
		if s.metrics != nil {
			s.metrics.recordMerge()
		}
		return nil
	}

	if err := s.emitter.emit(s.repo.writer(), *s.pending); err != nil {
		if se, ok := err.(*StoreError); ok && se.Kind == KindOutOfOrder && s.metrics != nil {
			s.metrics.recordOOO()
		}
		return err
	}

	cp := cloneRow(row)
	s.pending = &cp
	if s.metrics != nil {
		s.metrics.recordAppend()
	}
	return nil
}

// mergeInto folds incoming's set columns into pending: incoming's bits and
// values win for any column it touches, pending's earlier timestamp is kept.
func mergeInto(pending *Row, incoming Row) {
	for i := 0; i < len(incoming.Values); i++ {
		if incoming.Bits&(1<<uint(i)) == 0 {
			continue
		}
		pending.Bits |= 1 << uint(i)
		pending.Values[i] = incoming.Values[i]
	}
}

func cloneRow(r Row) Row {
	return Row{Timestamp: r.Timestamp, Bits: r.Bits, Values: append([]float64(nil), r.Values...)}
}

// Flush writes any pending row to the log and pushes buffered bytes to the
// OS. Idempotent: a Flush with nothing pending and nothing buffered is a
// cheap no-op, so the periodic scheduler and explicit caller calls never
// conflict, only serialize.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.pending != nil {
		if err := s.emitter.emit(s.repo.writer(), *s.pending); err != nil {
			if se, ok := err.(*StoreError); ok && se.Kind == KindOutOfOrder && s.metrics != nil {
				s.metrics.recordOOO()
			}
			return err
		}
		s.pending = nil
	}
	if err := s.repo.flush(); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.recordFlush()
	}
	return nil
}

// Close flushes pending data, stops the periodic-flush scheduler and
// releases the data file handle. Idempotent: calling Close on an already
// closed Store returns nil immediately.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	ferr := s.flushLocked()
	s.closed = true
	s.mu.Unlock()

	// Shutdown is called without holding mu: it waits for any in-flight
	// scheduled task to finish, and that task itself acquires mu via Flush.
	// Holding mu here would deadlock against it.
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			s.logger.Warnf("[PTSTORE]> scheduler shutdown: %v", err)
		}
	}

	cerr := s.repo.close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

// Stream reads the log from a fresh handle, decoding and forward-filling
// records in order, and calls sink once per row whose timestamp falls in
// [from, to] (nil means unbounded on that side). Stream takes the same
// mutex as Append/Flush/Close, so it never observes a half-written record:
// the repository's append handle and any reader are always consistent with
// what has actually reached the OS (a Flush beforehand makes the most recent
// pending row visible too).
func (s *Store) Stream(from, to *int64, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.streamLocked(from, to, sink)
}

func (s *Store) streamLocked(fromPtr, toPtr *int64, sink Sink) error {
	fromTime := int64(math.MinInt64)
	toTime := int64(math.MaxInt64)
	if fromPtr != nil {
		fromTime = *fromPtr
	}
	if toPtr != nil {
		toTime = *toPtr
	}

	// Push every complete buffered record to the OS first, so the reader
	// never ends on a partial line the buffered writer handed over when its
	// buffer filled.
	if err := s.repo.flush(); err != nil {
		return err
	}

	f, err := s.repo.newReader()
	if err != nil {
		return err
	}
	defer f.Close()

	ncols := s.schema.Len()
	dec := newDecodeState(ncols)
	scanner := bufio.NewScanner(f)
	// Data files can grow large; the default token buffer is only 64KiB.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}

		row, ok, inRange, stop := dec.decodeLine(line, ncols, fromTime, toTime)
		if !ok {
			s.logger.Warnf("[PTSTORE]> skipping malformed data line: %q", line)
			if s.metrics != nil {
				s.metrics.recordMalformed()
			}
			continue
		}
		if inRange {
			if !sink(row) {
				return nil
			}
		}
		if stop {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return newErr(KindIO, err)
	}
	return nil
}

// currentState computes the forward-filled value of every column as of the
// most recently appended row, whether or not it has been flushed yet. Each
// streamed row only carries the bits its own data line touched, so the
// cumulative bitvector (which columns have ever had a value) is built here
// by OR-ing across the whole pass; the per-column values themselves are
// already forward-filled by the decoder's own accumulator. Used by
// SnapshotWriter.
func (s *Store) currentState() (ts int64, bits uint64, values []float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, 0, nil, ErrClosed
	}

	n := s.schema.Len()
	values = make([]float64, n)
	ts = NoData

	err = s.streamLocked(nil, nil, func(r Row) bool {
		ts = r.Timestamp
		for i := 0; i < n && i < len(r.Values); i++ {
			if r.Bits&(1<<uint(i)) != 0 {
				bits |= 1 << uint(i)
				values[i] = r.Values[i]
			}
		}
		return true
	})
	if err != nil {
		return 0, 0, nil, err
	}

	if s.pending != nil {
		ts = s.pending.Timestamp
		for i := 0; i < n && i < len(s.pending.Values); i++ {
			if s.pending.Bits&(1<<uint(i)) != 0 {
				bits |= 1 << uint(i)
				values[i] = s.pending.Values[i]
			}
		}
	}
	return ts, bits, values, nil
}
