// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultFlushInterval is the default periodic-flush cadence.
const DefaultFlushInterval = 20 * time.Second

// optionsSchema validates the JSON form of RawOptions before it is decoded,
// via a JSON Schema document rather than ad-hoc field checks.
const optionsSchema = `{
	"type": "object",
	"properties": {
		"directory": {"type": "string", "minLength": 1},
		"base": {"type": "string", "minLength": 1},
		"columns": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"maxItems": 64
		},
		"forceOrdering": {"type": "boolean"},
		"flushIntervalSeconds": {"type": "integer", "minimum": 0}
	},
	"required": ["directory", "base", "columns"]
}`

// ValidateConfig validates raw against the store's JSON schema, returning a
// descriptive error instead of a decode-time panic when the document is
// structurally wrong.
func ValidateConfig(raw json.RawMessage) error {
	sch, err := jsonschema.CompileString("ptstore-options.json", optionsSchema)
	if err != nil {
		return fmt.Errorf("[PTSTORE]> compile options schema: %w", err)
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("[PTSTORE]> decode options for validation: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("[PTSTORE]> invalid options: %w", err)
	}
	return nil
}

// RawOptions is the JSON-serializable subset of Options; Logger/Metrics are
// Go-level collaborators and have no JSON representation.
type RawOptions struct {
	Directory            string   `json:"directory"`
	Base                 string   `json:"base"`
	Columns              []string `json:"columns"`
	ForceOrdering        bool     `json:"forceOrdering"`
	FlushIntervalSeconds int      `json:"flushIntervalSeconds"`
}

// Options configures Open.
type Options struct {
	// Directory is the container directory holding <base>.pts.hdr/.pts.data.
	Directory string
	// Base is the store's file base name.
	Base string
	// Columns is the schema to open (or grow to) on this call.
	Columns []string
	// ForceOrdering clamps out-of-order appends instead of erroring.
	ForceOrdering bool
	// FlushInterval is the periodic-flush cadence; zero uses DefaultFlushInterval.
	FlushInterval time.Duration
	// Logger receives diagnostics; a discarding logger is used if nil.
	Logger Logger
	// Metrics, if set, is updated with append/flush/error counts as the
	// store operates. Entirely optional and never required for correctness.
	Metrics *Metrics
}

// DecodeOptions validates and decodes a JSON options document into an
// Options, attaching logger (or a discarding default).
func DecodeOptions(raw json.RawMessage, logger Logger) (Options, error) {
	if err := ValidateConfig(raw); err != nil {
		return Options{}, err
	}

	var ro RawOptions
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ro); err != nil {
		return Options{}, fmt.Errorf("[PTSTORE]> decode options: %w", err)
	}

	if logger == nil {
		logger = NewDiscardLogger()
	}

	opts := Options{
		Directory:     ro.Directory,
		Base:          ro.Base,
		Columns:       ro.Columns,
		ForceOrdering: ro.ForceOrdering,
		FlushInterval: time.Duration(ro.FlushIntervalSeconds) * time.Second,
		Logger:        logger,
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	return opts, nil
}
