// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import "errors"

// Kind classifies a StoreError so callers can branch on errors.Is / errors.As
// without parsing messages.
type Kind int

const (
	// KindSchemaMismatch: header names do not prefix-match the caller's
	// schema, or the header has more names than the schema. Fatal at open.
	KindSchemaMismatch Kind = iota
	// KindDataWithoutHeader: data file present, header file absent. Fatal at open.
	KindDataWithoutHeader
	// KindUnsupportedVersion: header version exceeds the implementation's. Fatal at open.
	KindUnsupportedVersion
	// KindOutOfOrder: the timestamp of the row being emitted precedes the last emitted one and
	// forceOrdering is false. Surfaced to the append() caller; store stays usable.
	KindOutOfOrder
	// KindMalformedLine: a data line failed to parse. Logged and skipped.
	KindMalformedLine
	// KindIO: underlying filesystem error.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindDataWithoutHeader:
		return "DataWithoutHeader"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindOutOfOrder:
		return "OutOfOrder"
	case KindMalformedLine:
		return "MalformedLine"
	case KindIO:
		return "Io"
	default:
		return "Unknown"
	}
}

// StoreError wraps an underlying error with a Kind for classification.
type StoreError struct {
	Kind Kind
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func newErr(k Kind, err error) *StoreError {
	return &StoreError{Kind: k, Err: err}
}

// Sentinel errors for errors.Is comparisons where no extra context is needed.
var (
	// ErrOutOfOrder is wrapped in a KindOutOfOrder *StoreError when
	// forceOrdering is false and the pending row being emitted (by Append on a
	// bucket change, or by Flush/Close) has a coarsened timestamp earlier than
	// the last emitted row's. Appending an earlier row does not fail by itself;
	// the check happens when that row is emitted.
	ErrOutOfOrder = errors.New("[PTSTORE]> timestamp precedes last emitted row")
	// ErrTooManyColumns is returned when a schema would exceed the 64-column
	// bitvector cap.
	ErrTooManyColumns = errors.New("[PTSTORE]> schema exceeds 64-column bitvector cap")
	// ErrClosed is returned by Append, Stream and snapshot export attempted
	// after Close. Flush and Close on a closed store return nil.
	ErrClosed = errors.New("[PTSTORE]> store is closed")

	errSnapshotTruncated = errors.New("[PTSTORE]> snapshot file shorter than its CRC32 trailer")
	errSnapshotChecksum  = errors.New("[PTSTORE]> snapshot CRC32 mismatch")
	errSnapshotMagic     = errors.New("[PTSTORE]> snapshot missing PTS1 magic")
)
