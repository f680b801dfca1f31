// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeOptionsDefaults(t *testing.T) {
	raw := []byte(`{"directory":"/var/lib/ptstore","base":"cpu","columns":["cpu","mem"]}`)

	opts, err := DecodeOptions(raw, nil)
	if err != nil {
		t.Fatalf("DecodeOptions: %v", err)
	}
	if opts.Directory != "/var/lib/ptstore" || opts.Base != "cpu" {
		t.Errorf("opts = %+v, directory/base mismatch", opts)
	}
	if len(opts.Columns) != 2 {
		t.Errorf("columns = %v, want 2 entries", opts.Columns)
	}
	if opts.FlushInterval != DefaultFlushInterval {
		t.Errorf("FlushInterval = %v, want default %v", opts.FlushInterval, DefaultFlushInterval)
	}
	if opts.Logger == nil {
		t.Error("Logger = nil, want a default discarding logger")
	}
}

func TestDecodeOptionsExplicitFlushInterval(t *testing.T) {
	raw := []byte(`{"directory":"d","base":"b","columns":["cpu"],"flushIntervalSeconds":5}`)
	opts, err := DecodeOptions(raw, nil)
	if err != nil {
		t.Fatalf("DecodeOptions: %v", err)
	}
	if opts.FlushInterval != 5*time.Second {
		t.Errorf("FlushInterval = %v, want 5s", opts.FlushInterval)
	}
}

func TestDecodeOptionsRejectsUnknownField(t *testing.T) {
	raw := []byte(`{"directory":"d","base":"b","columns":["cpu"],"bogus":true}`)
	if _, err := DecodeOptions(raw, nil); err == nil {
		t.Error("DecodeOptions accepted an unknown field, want an error")
	}
}

func TestDecodeOptionsRejectsMissingRequired(t *testing.T) {
	raw := []byte(`{"directory":"d"}`)
	if _, err := DecodeOptions(raw, nil); err == nil {
		t.Error("DecodeOptions accepted a document missing 'base'/'columns', want an error")
	}
}

func TestDecodeOptionsRejectsTooManyColumns(t *testing.T) {
	cols := make([]string, 65)
	for i := range cols {
		cols[i] = "c"
	}
	raw, err := jsonColumnsDoc(cols)
	if err != nil {
		t.Fatalf("building test document: %v", err)
	}
	if _, err := DecodeOptions(raw, nil); err == nil {
		t.Error("DecodeOptions accepted 65 columns, want a schema validation error")
	}
}

func jsonColumnsDoc(cols []string) ([]byte, error) {
	type doc struct {
		Directory string   `json:"directory"`
		Base      string   `json:"base"`
		Columns   []string `json:"columns"`
	}
	return json.Marshal(doc{Directory: "d", Base: "b", Columns: cols})
}
