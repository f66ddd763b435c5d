/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package compress

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/chorn/czhttpd/internal/lockfile"
)

// Cache owns the on-disk compressed-response cache backing
// COMPRESS_CACHE: one gzip file per request path, keyed and
// invalidated the same way internal/listing.Cache keys its rendered
// directory pages, and guarded by the same internal/lockfile
// directory lock for regeneration across sibling processes.
type Cache struct {
	Dir string
}

func (c *Cache) cacheFilePath(urlPath string) string {
	key := strings.ReplaceAll(urlPath, "/", "") + ".gz"
	return filepath.Join(c.Dir, key)
}

// Get returns an open, positioned-at-start *os.File for urlPath's
// gzip-compressed cache entry, regenerating it at level from src's
// result if the entry is missing or older than srcModTime. src is
// only invoked when regeneration is needed.
func (c *Cache) Get(urlPath string, srcModTime time.Time, level int, src func() (io.Reader, error)) (*os.File, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, err
	}
	cacheFile := c.cacheFilePath(urlPath)

	if info, err := os.Stat(cacheFile); err == nil && !srcModTime.After(info.ModTime()) {
		return os.Open(cacheFile)
	}

	lock := lockfile.New(cacheFile)
	err := lockfile.WithLock(lock, func() error {
		// Re-check after acquiring the lock: a sibling may have
		// already regenerated it while we waited.
		if info, err := os.Stat(cacheFile); err == nil && !srcModTime.After(info.ModTime()) {
			return nil
		}
		r, err := src()
		if err != nil {
			return err
		}

		tmp := cacheFile + ".tmp"
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		gz, _ := gzip.NewWriterLevel(f, level)
		_, copyErr := io.Copy(gz, r)
		closeErr := gz.Close()
		if copyErr == nil {
			copyErr = closeErr
		}
		if err := f.Close(); copyErr == nil {
			copyErr = err
		}
		if copyErr != nil {
			os.Remove(tmp)
			return copyErr
		}
		return os.Rename(tmp, cacheFile)
	})
	if err != nil {
		return nil, err
	}
	return os.Open(cacheFile)
}
