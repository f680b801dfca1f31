// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"math"
)

// snapshotMagic identifies the binary snapshot format below: the ASCII bytes
// "PTS1".
const snapshotMagic uint32 = 0x50545331

// SnapshotWriter exports the current forward-filled state of every column of
// a Store to a compact binary file, for cheap external consumption (e.g. a
// dashboard) without replaying the whole text log. This is read-only tooling
// bolted onto the log: Append and Stream never consult it, and it never
// replaces the text log as the source of truth.
//
// Wire format:
//
//	[4B magic 0x50545331 ("PTS1")][8B snapshot time][4B column count]
//	per column: [2B name_len][name bytes][1B present flag][8B value bits if present]
//	[4B CRC32 of everything above]
//
// All integers are big-endian.
type SnapshotWriter struct{}

// NewSnapshotWriter returns a SnapshotWriter. It carries no state of its own;
// every WriteSnapshot call is independent.
func NewSnapshotWriter() *SnapshotWriter {
	return &SnapshotWriter{}
}

// WriteSnapshot flushes s, computes its current column state, and writes it
// to w in the format above.
func (sw *SnapshotWriter) WriteSnapshot(w io.Writer, s *Store) error {
	if err := s.Flush(); err != nil {
		return err
	}

	ts, bits, values, err := s.currentState()
	if err != nil {
		return err
	}

	s.mu.Lock()
	columns := append([]string(nil), s.schema.Columns...)
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, snapshotMagic); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(columns))); err != nil {
		return err
	}

	for i, name := range columns {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(name))); err != nil {
			return err
		}
		if _, err := buf.WriteString(name); err != nil {
			return err
		}
		present := bits&(1<<uint(i)) != 0
		if !present {
			if err := buf.WriteByte(0); err != nil {
				return err
			}
			continue
		}
		if err := buf.WriteByte(1); err != nil {
			return err
		}
		if err := binary.Write(&buf, binary.BigEndian, math.Float64bits(values[i])); err != nil {
			return err
		}
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, sum)
}

// ReadSnapshot parses a file written by WriteSnapshot, verifying its CRC32
// before returning the decoded column names, presence bits, and values.
func ReadSnapshot(r io.Reader) (ts int64, columns []string, bits uint64, values []float64, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, 0, nil, newErr(KindIO, err)
	}
	if len(data) < 4 {
		return 0, nil, 0, nil, newErr(KindMalformedLine, errSnapshotTruncated)
	}

	body := data[:len(data)-4]
	wantSum := binary.BigEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != wantSum {
		return 0, nil, 0, nil, newErr(KindMalformedLine, errSnapshotChecksum)
	}

	br := bytes.NewReader(body)
	var magic uint32
	if err := binary.Read(br, binary.BigEndian, &magic); err != nil {
		return 0, nil, 0, nil, newErr(KindMalformedLine, err)
	}
	if magic != snapshotMagic {
		return 0, nil, 0, nil, newErr(KindMalformedLine, errSnapshotMagic)
	}
	if err := binary.Read(br, binary.BigEndian, &ts); err != nil {
		return 0, nil, 0, nil, newErr(KindMalformedLine, err)
	}
	var ncols uint32
	if err := binary.Read(br, binary.BigEndian, &ncols); err != nil {
		return 0, nil, 0, nil, newErr(KindMalformedLine, err)
	}

	columns = make([]string, ncols)
	values = make([]float64, ncols)
	for i := uint32(0); i < ncols; i++ {
		var nameLen uint16
		if err := binary.Read(br, binary.BigEndian, &nameLen); err != nil {
			return 0, nil, 0, nil, newErr(KindMalformedLine, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return 0, nil, 0, nil, newErr(KindMalformedLine, err)
		}
		columns[i] = string(name)

		present, err := br.ReadByte()
		if err != nil {
			return 0, nil, 0, nil, newErr(KindMalformedLine, err)
		}
		if present == 0 {
			continue
		}
		var bits64 uint64
		if err := binary.Read(br, binary.BigEndian, &bits64); err != nil {
			return 0, nil, 0, nil, newErr(KindMalformedLine, err)
		}
		bits |= 1 << i
		values[i] = math.Float64frombits(bits64)
	}

	return ts, columns, bits, values, nil
}
