// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"fmt"
	"io"
	"os"
)

// Logger is the logging collaborator the store calls into. It is passed in
// via Options rather than referenced as a process-wide singleton, so a
// process hosting several stores can route each one's diagnostics
// independently.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// writerLogger is a minimal Logger writing prefixed lines to an io.Writer,
// systemd-daemon style: a severity prefix, no timestamp (left to whatever
// wraps stderr, e.g. systemd itself).
type writerLogger struct {
	w io.Writer
}

// NewWriterLogger returns a Logger that writes leveled, prefixed lines to w.
func NewWriterLogger(w io.Writer) Logger {
	return &writerLogger{w: w}
}

// NewStderrLogger returns a Logger writing to os.Stderr. Open does not use it
// as a fallback: a nil Options.Logger gets a discarding logger.
func NewStderrLogger() Logger {
	return NewWriterLogger(os.Stderr)
}

func (l *writerLogger) Debugf(format string, v ...interface{}) {
	fmt.Fprintf(l.w, "<7>[DEBUG] "+format+"\n", v...)
}

func (l *writerLogger) Infof(format string, v ...interface{}) {
	fmt.Fprintf(l.w, "<6>[INFO] "+format+"\n", v...)
}

func (l *writerLogger) Warnf(format string, v ...interface{}) {
	fmt.Fprintf(l.w, "<4>[WARNING] "+format+"\n", v...)
}

func (l *writerLogger) Errorf(format string, v ...interface{}) {
	fmt.Fprintf(l.w, "<3>[ERROR] "+format+"\n", v...)
}

// discardLogger drops everything; used by tests that don't want log noise.
type discardLogger struct{}

func (discardLogger) Debugf(string, ...interface{}) {}
func (discardLogger) Infof(string, ...interface{})  {}
func (discardLogger) Warnf(string, ...interface{})  {}
func (discardLogger) Errorf(string, ...interface{}) {}

// NewDiscardLogger returns a Logger that discards everything it is given.
func NewDiscardLogger() Logger { return discardLogger{} }
