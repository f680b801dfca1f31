// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ptsingest adapts external line-protocol messages received over
// NATS into Append calls against a ptstore.Store. It is a thin, entirely
// optional ingestion path: ptstore itself never imports this package or
// dials a network connection; the store is a library, not a service.
//
// Wire format is standard line protocol, restricted to the columns the
// target store's schema actually has:
//
//	<measurement> col1=<v1>[,col2=<v2>...] <unix-nano-timestamp>
package ptsingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/ptstore/pkg/log"
	"github.com/ClusterCockpit/ptstore/pkg/nats"
	"github.com/ClusterCockpit/ptstore/pkg/ptstore"
	influx "github.com/influxdata/line-protocol/v2/lineprotocol"
)

// Target is the subset of *ptstore.Store that ingestion needs: building a
// correctly sized row and appending it. Kept as an interface so tests can
// substitute a recorder instead of a real on-disk store.
type Target interface {
	NewRow(ts int64) ptstore.Row
	Append(row ptstore.Row) error
}

// Schema resolves a field name to its column bit position, or -1 if the
// field is not part of the store's schema (such fields are dropped and
// counted, see Ingestor.Dropped, rather than failing the whole line).
type Schema interface {
	IndexOf(name string) int
}

// Subscriber is the part of a NATS client that ingestion needs; satisfied by
// *nats.Client, and mockable in tests.
type Subscriber interface {
	Subscribe(subject string, handler nats.MessageHandler) error
}

// Logger is the logging collaborator Ingestor calls into — the same
// Debugf/Infof/Warnf/Errorf shape as pkg/ptstore.Logger and pkg/nats.Logger.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// Ingestor decodes line-protocol messages and appends them to a Target.
type Ingestor struct {
	target Target
	schema Schema
	logger Logger

	mu      sync.Mutex
	dropped uint64
}

// NewIngestor builds an Ingestor writing decoded rows into target, resolving
// field names against schema. Logs through logger if non-nil, otherwise
// through pkg/log's Adapter (its global, severity-prefixed writers), so this
// package never reaches for a different logging convention than the rest of
// the NATS ingestion path it sits on.
func NewIngestor(target Target, schema Schema, logger Logger) *Ingestor {
	if logger == nil {
		logger = cclog.Adapter{}
	}
	return &Ingestor{target: target, schema: schema, logger: logger}
}

// Subscribe registers the ingestor's decode callback on subject via sub,
// mirroring metricstore.ReceiveNats's single-worker inline-decode path: line
// protocol decoding is cheap enough that no worker pool is warranted here.
func (ig *Ingestor) Subscribe(_ context.Context, sub Subscriber, subject string) error {
	return sub.Subscribe(subject, func(_ string, data []byte) {
		if err := ig.decodeAndAppend(data); err != nil {
			ig.logger.Errorf("[PTSINGEST]> %v", err)
		}
	})
}

func (ig *Ingestor) decodeAndAppend(data []byte) error {
	dec := influx.NewDecoderWithBytes(data)

	for dec.Next() {
		if _, err := dec.Measurement(); err != nil {
			return fmt.Errorf("measurement: %w", err)
		}
		for {
			key, _, err := dec.NextTag()
			if err != nil {
				return fmt.Errorf("tag: %w", err)
			}
			if key == nil {
				break
			}
		}

		// Fields come before the timestamp in line protocol; reading the
		// time first would make the decoder skip them.
		row := ig.target.NewRow(0)
		any := false
		for {
			key, val, err := dec.NextField()
			if err != nil {
				return fmt.Errorf("field: %w", err)
			}
			if key == nil {
				break
			}
			idx := ig.schema.IndexOf(string(key))
			if idx < 0 {
				ig.mu.Lock()
				ig.dropped++
				ig.mu.Unlock()
				continue
			}
			f, ok := asFloat(val)
			if !ok {
				continue
			}
			row.Set(idx, f)
			any = true
		}

		ts, err := dec.Time(influx.Nanosecond, time.Time{})
		if err != nil {
			return fmt.Errorf("time: %w", err)
		}
		row.Timestamp = ts.Unix()

		if !any {
			continue
		}
		if err := ig.target.Append(row); err != nil {
			return fmt.Errorf("append: %w", err)
		}
	}
	return nil
}

// Dropped reports how many fields have been skipped so far for not matching
// any column in the target schema.
func (ig *Ingestor) Dropped() uint64 {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return ig.dropped
}

func asFloat(v influx.Value) (float64, bool) {
	switch v.Kind() {
	case influx.Float:
		return v.FloatV(), true
	case influx.Int:
		return float64(v.IntV()), true
	case influx.Uint:
		return float64(v.UintV()), true
	default:
		return 0, false
	}
}
