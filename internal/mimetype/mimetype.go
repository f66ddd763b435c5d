/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package mimetype implements the MIME resolution described in §4.9:
// a configured extension table first, a magic-byte probe second, and
// a fixed fallback last.
package mimetype

import (
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/chorn/czhttpd/internal/config"
)

// Resolver answers MIME type queries for a path, backed by the
// configured table and a content probe for anything the table
// doesn't name.
type Resolver struct {
	table config.MimeTable
}

func NewResolver(table config.MimeTable) *Resolver {
	return &Resolver{table: table}
}

// Extension extracts the lookup key for p per §4.9: lowercase the
// final path segment, strip a leading dot, then take everything
// after the first remaining dot.
func Extension(p string) string {
	name := p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		name = p[i+1:]
	}
	name = strings.ToLower(name)
	name = strings.TrimPrefix(name, ".")
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// ForFile resolves the MIME type of the regular file at diskPath,
// named urlPath for extension purposes. It implements the §4.9
// lookup order: table -> probe -> text/plain normalization ->
// default entry -> application/octet-stream.
func (r *Resolver) ForFile(diskPath, urlPath string) string {
	ext := Extension(urlPath)
	if t := r.table[ext]; t != "" {
		return t
	}

	f, err := os.Open(diskPath)
	if err != nil {
		return r.fallback()
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil || mt == nil {
		return r.fallback()
	}
	probed := mt.String()
	if idx := strings.IndexByte(probed, ';'); idx >= 0 {
		probed = probed[:idx]
	}
	if strings.HasPrefix(probed, "text/") {
		return "text/plain"
	}
	return probed
}

// ForSymlinkToDir is the §4.9 special-case annotation for a symlink
// whose target is a directory.
func ForSymlinkToDir() string {
	return "symbolic link->Directory"
}

func (r *Resolver) fallback() string {
	if d := r.table["default"]; d != "" {
		return d
	}
	return "application/octet-stream"
}
