/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func statBoth(fsPath string) (info, lstatInfo os.FileInfo, err error) {
	lstatInfo, err = os.Lstat(fsPath)
	if err != nil {
		return nil, nil, err
	}
	info, err = os.Stat(fsPath)
	if err != nil {
		return nil, nil, err
	}
	return info, lstatInfo, nil
}

func isSymlink(info os.FileInfo) bool {
	return info.Mode()&os.ModeSymlink != 0
}

// withinRoot reports whether fsPath's resolved (symlink-free) form
// still lives under root, per the §3 invariant that any served path
// must resolve to an entry under doc_root.
func withinRoot(root, fsPath string) bool {
	real, err := filepath.EvalSymlinks(fsPath)
	if err != nil {
		return false
	}
	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	return real == rootReal || strings.HasPrefix(real, rootReal+string(os.PathSeparator))
}

func dirSearchable(fsPath string) bool {
	f, err := os.Open(fsPath)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	return err == nil || err == io.EOF
}

func portString(port int) string {
	return strconv.Itoa(port)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
