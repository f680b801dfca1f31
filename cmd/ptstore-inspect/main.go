// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ClusterCockpit/ptstore/pkg/ptstore"
)

var (
	flagDir, flagBase, flagFrom, flagTo string
	flagHeader                         bool
)

func cliInit() {
	flag.StringVar(&flagDir, "dir", ".", "Directory containing <base>.pts.hdr/.pts.data")
	flag.StringVar(&flagBase, "base", "", "Store base name (required)")
	flag.StringVar(&flagFrom, "from", "", "Only print rows at or after this unix timestamp")
	flag.StringVar(&flagTo, "to", "", "Only print rows at or before this unix timestamp")
	flag.BoolVar(&flagHeader, "header", false, "Print the column header and exit")
	flag.Parse()
}

func main() {
	cliInit()

	if flagBase == "" {
		fmt.Fprintln(os.Stderr, "ptstore-inspect: -base is required")
		os.Exit(1)
	}

	if !ptstore.Exists(flagDir, flagBase) {
		fmt.Fprintf(os.Stderr, "ptstore-inspect: no store named %q in %q\n", flagBase, flagDir)
		os.Exit(1)
	}

	columns, err := ptstore.HeaderColumns(flagDir, flagBase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ptstore-inspect: %v\n", err)
		os.Exit(1)
	}

	if flagHeader {
		fmt.Println(strings.Join(columns, "\t"))
		return
	}

	opts := ptstore.Options{
		Directory: flagDir,
		Base:      flagBase,
		Columns:   columns,
		Logger:    ptstore.NewStderrLogger(),
	}
	st, err := ptstore.Open(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ptstore-inspect: open: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	from, err := parseOptionalInt(flagFrom)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ptstore-inspect: -from: %v\n", err)
		os.Exit(1)
	}
	to, err := parseOptionalInt(flagTo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ptstore-inspect: -to: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.Join(append([]string{"time"}, columns...), "\t"))
	err = st.Stream(from, to, func(row ptstore.Row) bool {
		fields := make([]string, 0, len(columns)+1)
		fields = append(fields, strconv.FormatInt(row.Timestamp, 10))
		for i := range columns {
			if row.Has(i) {
				fields = append(fields, strconv.FormatFloat(row.Values[i], 'g', -1, 64))
			} else {
				fields = append(fields, "")
			}
		}
		fmt.Println(strings.Join(fields, "\t"))
		return true
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ptstore-inspect: stream: %v\n", err)
		os.Exit(1)
	}
}

func parseOptionalInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
