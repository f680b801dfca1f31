// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional, passive instrumentation collector. A Store never
// registers it anywhere or serves it over HTTP — the caller decides whether
// and how to expose it, keeping the store itself free of any network
// surface. Counters turn what would otherwise be ad-hoc log lines about
// appends, merges, flushes and rejected rows into real Prometheus
// instruments.
type Metrics struct {
	rowsAppended    uint64
	rowsMerged      uint64
	flushes         uint64
	outOfOrder      uint64
	malformedLines  uint64
	namespace, subs string
}

// NewMetrics creates a Metrics collector. namespace/subsystem are used as
// the Prometheus metric name prefix (e.g. "ptstore", "store").
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{namespace: namespace, subs: subsystem}
}

func (m *Metrics) recordAppend()   { atomic.AddUint64(&m.rowsAppended, 1) }
func (m *Metrics) recordMerge()    { atomic.AddUint64(&m.rowsMerged, 1) }
func (m *Metrics) recordFlush()    { atomic.AddUint64(&m.flushes, 1) }
func (m *Metrics) recordOOO()      { atomic.AddUint64(&m.outOfOrder, 1) }
func (m *Metrics) recordMalformed() { atomic.AddUint64(&m.malformedLines, 1) }

var (
	_ prometheus.Collector = (*Metrics)(nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, ch)
}

// Collect implements prometheus.Collector, emitting a fresh snapshot of
// every counter on each scrape.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	emit := func(name, help string, v uint64) {
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(m.namespace, m.subs, name), help, nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}
	emit("rows_appended_total", "Rows accepted by Append.", atomic.LoadUint64(&m.rowsAppended))
	emit("rows_merged_total", "Rows merged into the pending bucket instead of emitted.", atomic.LoadUint64(&m.rowsMerged))
	emit("flushes_total", "Completed Flush calls.", atomic.LoadUint64(&m.flushes))
	emit("out_of_order_total", "Row emits rejected as out-of-order by Append or Flush.", atomic.LoadUint64(&m.outOfOrder))
	emit("malformed_lines_total", "Data lines skipped during Stream due to parse failure.", atomic.LoadUint64(&m.malformedLines))
}
