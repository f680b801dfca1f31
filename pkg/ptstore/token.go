// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import "strings"

// tabFields splits s on tabs without the intermediate slice strings.Split
// would allocate for every record; it is a thin iterator over strings.Cut.
type tabFields struct {
	rest string
	done bool
}

func newTabFields(s string) *tabFields {
	return &tabFields{rest: s}
}

func (f *tabFields) next() (string, bool) {
	if f.done {
		return "", false
	}
	field, rest, found := strings.Cut(f.rest, "\t")
	if !found {
		f.done = true
		return f.rest, true
	}
	f.rest = rest
	return field, true
}

const (
	tokenUnchanged = "*"
	tokenDrop      = "!"
)
