/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithinRootAcceptsDescendant(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	assert.NoError(t, os.MkdirAll(nested, 0o755))
	assert.True(t, withinRoot(root, nested))
}

func TestWithinRootRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	link := filepath.Join(root, "escape")
	assert.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), link))

	assert.False(t, withinRoot(root, link))
}

func TestDirSearchableTrueForReadableDir(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, dirSearchable(dir))
}

func TestDirSearchableFalseForMissingPath(t *testing.T) {
	assert.False(t, dirSearchable(filepath.Join(t.TempDir(), "missing")))
}

func TestPortStringAndItoa(t *testing.T) {
	assert.Equal(t, "8080", portString(8080))
	assert.Equal(t, "42", itoa(42))
}

func TestIsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	assert.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	link := filepath.Join(dir, "link")
	assert.NoError(t, os.Symlink(target, link))

	lst, err := os.Lstat(link)
	assert.NoError(t, err)
	assert.True(t, isSymlink(lst))

	regular, err := os.Lstat(target)
	assert.NoError(t, err)
	assert.False(t, isSymlink(regular))
}
