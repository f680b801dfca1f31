// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	headerSuffix = ".pts.hdr"
	dataSuffix   = ".pts.data"

	dataFilePerms = 0o644
	dirPerms      = 0o755
)

func headerPath(dir, base string) string { return filepath.Join(dir, base+headerSuffix) }
func dataPath(dir, base string) string   { return filepath.Join(dir, base+dataSuffix) }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Exists reports whether both the header and data file for base exist inside
// container.
func Exists(container, base string) bool {
	return fileExists(headerPath(container, base)) && fileExists(dataPath(container, base))
}

// HeaderColumns reads just the column list from an existing store's header,
// without opening it for append. Used by tooling that wants to stream a
// store read-only and so needs a Columns list to pass to Open/Options
// without already knowing the schema.
func HeaderColumns(container, base string) ([]string, error) {
	f, err := os.Open(headerPath(container, base))
	if err != nil {
		return nil, newErr(KindIO, err)
	}
	defer f.Close()

	_, columns, err := readHeader(f)
	if err != nil {
		return nil, newErr(KindIO, err)
	}
	return columns, nil
}

// repository owns the two on-disk files that make up one store: the header
// (schema + version) and the append-only data log. Only one component writes
// to the data file: the repository's own append handle.
type repository struct {
	dir, base string
	logger    Logger

	dataFile *os.File
	w        *bufio.Writer
	closed   bool
}

// openRepository validates/creates the header for schema, ensures the data
// file exists, and opens an appending write handle. It returns the schema
// that is now in effect on disk, which is always the caller's schema: a
// header listing more columns than the caller's schema is a SchemaMismatch
// error (see below), and a shorter prefix header is rewritten to match it.
func openRepository(dir, base string, schema *Schema, logger Logger) (*repository, *Schema, error) {
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, nil, newErr(KindIO, err)
	}

	hdrPath := headerPath(dir, base)
	dPath := dataPath(dir, base)

	hdrExists := fileExists(hdrPath)
	dataExists := fileExists(dPath)

	if dataExists && !hdrExists {
		return nil, nil, newErr(KindDataWithoutHeader,
			fmt.Errorf("[PTSTORE]> data file %s exists without a header", dPath))
	}

	finalSchema := schema
	if hdrExists {
		f, err := os.Open(hdrPath)
		if err != nil {
			return nil, nil, newErr(KindIO, err)
		}
		version, columns, err := readHeader(f)
		f.Close()
		if err != nil {
			return nil, nil, newErr(KindIO, err)
		}
		if version > HeaderVersion {
			return nil, nil, newErr(KindUnsupportedVersion,
				fmt.Errorf("[PTSTORE]> header version %d exceeds supported version %d", version, HeaderVersion))
		}

		hdrSchema, err := NewSchema(columns)
		if err != nil {
			return nil, nil, newErr(KindSchemaMismatch, err)
		}

		switch {
		case len(hdrSchema.Columns) > len(schema.Columns):
			return nil, nil, newErr(KindSchemaMismatch,
				fmt.Errorf("[PTSTORE]> header has %d columns, schema only has %d: would lose columns",
					len(hdrSchema.Columns), len(schema.Columns)))
		case !schema.hasPrefix(hdrSchema):
			return nil, nil, newErr(KindSchemaMismatch,
				fmt.Errorf("[PTSTORE]> header columns %v are not a prefix of schema columns %v",
					hdrSchema.Columns, schema.Columns))
		case len(hdrSchema.Columns) < len(schema.Columns):
			logger.Infof("[PTSTORE]> schema grew from %d to %d columns, rewriting header %s",
				len(hdrSchema.Columns), len(schema.Columns), hdrPath)
			if err := rewriteHeader(hdrPath, schema); err != nil {
				return nil, nil, newErr(KindIO, err)
			}
			finalSchema = schema
		default:
			finalSchema = schema
		}
	} else {
		if err := rewriteHeader(hdrPath, schema); err != nil {
			return nil, nil, newErr(KindIO, err)
		}
	}

	if !dataExists {
		f, err := os.OpenFile(dPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, dataFilePerms)
		if err != nil {
			return nil, nil, newErr(KindIO, err)
		}
		if _, err := fmt.Fprintf(f, "# opened %s\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
			f.Close()
			return nil, nil, newErr(KindIO, err)
		}
		if err := f.Close(); err != nil {
			return nil, nil, newErr(KindIO, err)
		}
	}

	dataFile, err := os.OpenFile(dPath, os.O_APPEND|os.O_WRONLY, dataFilePerms)
	if err != nil {
		return nil, nil, newErr(KindIO, err)
	}

	return &repository{
		dir:      dir,
		base:     base,
		logger:   logger,
		dataFile: dataFile,
		w:        bufio.NewWriter(dataFile),
	}, finalSchema, nil
}

func rewriteHeader(path string, schema *Schema) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, dataFilePerms)
	if err != nil {
		return err
	}
	if err := writeHeader(f, schema); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writer returns the buffered writer that backs the data file's append
// handle. Only the Writer (Emitter) component is expected to use this.
func (r *repository) writer() *bufio.Writer { return r.w }

// newReader opens a fresh, independent sequential read handle positioned at
// the start of the data file. Multiple concurrent readers are permitted;
// each sees data only up to whatever has been flushed to the OS.
func (r *repository) newReader() (*os.File, error) {
	f, err := os.Open(dataPath(r.dir, r.base))
	if err != nil {
		return nil, newErr(KindIO, err)
	}
	return f, nil
}

// flush pushes the write handle's buffered bytes to the OS.
func (r *repository) flush() error {
	if r.closed {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		return newErr(KindIO, err)
	}
	return nil
}

// close flushes then releases the data file handle. Idempotent.
func (r *repository) close() error {
	if r.closed {
		return nil
	}
	err := r.flush()
	if cerr := r.dataFile.Close(); err == nil {
		err = cerr
	}
	r.closed = true
	return err
}
