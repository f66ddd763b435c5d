/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package listing renders the HTML directory index described in
// §4.5 and, when html_cache is enabled, maintains an on-disk cache of
// the rendered page protected by the directory-based lock in
// internal/lockfile.
package listing

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chorn/czhttpd/internal/lockfile"
)

// Cache owns the on-disk listing cache. Enabled records whether
// html_cache was on when the cache was set up; Get does not consult
// it, and the router decides from its own config whether to call Get
// or Render.
type Cache struct {
	Enabled bool
	Dir     string
}

// entry is one row of the rendered table.
type entry struct {
	name    string
	isDir   bool
	size    int64
	modTime string
	symDir  bool
}

// Render builds the "Index of <urlPath>" page for the directory at
// fsPath, ordered per §4.5: ../ first (unless at doc root), then
// hidden entries (if allowHidden), directories before files, each
// group sorted lexically.
func Render(fsPath, urlPath string, allowHidden, atDocRoot bool) ([]byte, error) {
	dirEntries, err := os.ReadDir(fsPath)
	if err != nil {
		return nil, err
	}

	var visible []entry
	for _, de := range dirEntries {
		name := de.Name()
		if !allowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		e := entry{name: name, isDir: de.IsDir(), modTime: info.ModTime().Format("2006-01-02 15:04")}
		if !de.IsDir() {
			e.size = info.Size()
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if target, err := filepath.EvalSymlinks(filepath.Join(fsPath, name)); err == nil {
				if ti, err := os.Stat(target); err == nil && ti.IsDir() {
					e.symDir = true
				}
			}
		}
		visible = append(visible, e)
	}

	sort.Slice(visible, func(i, j int) bool {
		hi, hj := strings.HasPrefix(visible[i].name, "."), strings.HasPrefix(visible[j].name, ".")
		if hi != hj {
			return hi
		}
		if visible[i].isDir != visible[j].isDir {
			return visible[i].isDir
		}
		return visible[i].name < visible[j].name
	})

	var buf bytes.Buffer
	title := "Index of " + urlPath
	buf.WriteString("<!DOCTYPE html>\n<html><head><title>")
	buf.WriteString(html.EscapeString(title))
	buf.WriteString("</title></head><body>\n<h1>")
	buf.WriteString(html.EscapeString(title))
	buf.WriteString("</h1>\n<table>\n<tr><th>Name</th><th>Last-Modified</th><th>Size</th><th>Type</th></tr>\n")

	if !atDocRoot {
		buf.WriteString("<tr><td><a href=\"../\">../</a></td><td></td><td>-</td><td>directory</td></tr>\n")
	}

	for _, e := range visible {
		href := e.name
		sizeCol := "-"
		typeCol := "directory"
		if e.isDir {
			href += "/"
		} else {
			typeCol = "file"
			sizeCol = humanSize(e.size)
		}
		if e.symDir {
			typeCol = "symbolic link->Directory"
		}
		fmt.Fprintf(&buf, "<tr><td><a href=\"%s\">%s</a></td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(href), html.EscapeString(e.name), e.modTime, sizeCol, typeCol)
	}

	buf.WriteString("</table>\n</body></html>\n")
	return buf.Bytes(), nil
}

// humanSize renders n as B/K/M/G with one decimal place, per §4.5.
func humanSize(n int64) string {
	const unit = 1024.0
	f := float64(n)
	switch {
	case f < unit:
		return fmt.Sprintf("%dB", n)
	case f < unit*unit:
		return fmt.Sprintf("%.1fK", f/unit)
	case f < unit*unit*unit:
		return fmt.Sprintf("%.1fM", f/(unit*unit))
	default:
		return fmt.Sprintf("%.1fG", f/(unit*unit*unit))
	}
}

// cacheFilePath computes the cache key for urlPath, per §4.5: the
// directory path with all '/' removed, suffixed ".html".
func (c *Cache) cacheFilePath(urlPath string) string {
	key := strings.ReplaceAll(urlPath, "/", "") + ".html"
	return filepath.Join(c.Dir, key)
}

// Get returns the path to a fresh rendered cache file for fsPath,
// regenerating it under the directory lock if the cache is missing
// or older than the directory's mtime.
func (c *Cache) Get(fsPath, urlPath string, allowHidden, atDocRoot bool) (string, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", err
	}
	cacheFile := c.cacheFilePath(urlPath)

	dirInfo, err := os.Stat(fsPath)
	if err != nil {
		return "", err
	}

	if cacheInfo, err := os.Stat(cacheFile); err == nil && !dirInfo.ModTime().After(cacheInfo.ModTime()) {
		return cacheFile, nil
	}

	lock := lockfile.New(cacheFile)
	err = lockfile.WithLock(lock, func() error {
		// Re-check after acquiring the lock: a sibling may have
		// already regenerated it while we waited.
		if cacheInfo, err := os.Stat(cacheFile); err == nil && !dirInfo.ModTime().After(cacheInfo.ModTime()) {
			return nil
		}
		html, err := Render(fsPath, urlPath, allowHidden, atDocRoot)
		if err != nil {
			return err
		}
		tmp := cacheFile + ".tmp"
		if err := os.WriteFile(tmp, html, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, cacheFile)
	})
	if err != nil {
		return "", err
	}
	return cacheFile, nil
}

// Cleanup removes the whole cache directory, called at shutdown per
// §5's "remove the HTML cache directory" cleanup step.
func (c *Cache) Cleanup() error {
	return os.RemoveAll(c.Dir)
}
