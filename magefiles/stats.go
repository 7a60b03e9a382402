// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
)

// pkgStats counts source and test lines of one package directory.
type pkgStats struct {
	dir   string
	src   int
	tests int
}

// Stats prints source and test line counts per package, then the totals.
// Directories starting with _ or . are skipped, and so are magefiles and bin.
func Stats() error {
	byDir := make(map[string]*pkgStats)
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := lineCount(path)
		if err != nil {
			return err
		}
		dir := filepath.Dir(path)
		st, ok := byDir[dir]
		if !ok {
			st = &pkgStats{dir: dir}
			byDir[dir] = st
		}
		if strings.HasSuffix(path, "_test.go") {
			st.tests += n
		} else {
			st.src += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "package\tsource\ttests\t")
	var total pkgStats
	for _, dir := range dirs {
		st := byDir[dir]
		total.src += st.src
		total.tests += st.tests
		fmt.Fprintf(w, "%s\t%d\t%d\t\n", st.dir, st.src, st.tests)
	}
	fmt.Fprintf(w, "total\t%d\t%d\t\n", total.src, total.tests)
	return w.Flush()
}

func skipDir(name string) bool {
	switch {
	case strings.HasPrefix(name, "_"), strings.HasPrefix(name, "."):
		return true
	case name == "magefiles", name == binaryDir, name == "vendor":
		return true
	}
	return false
}

func lineCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}
