/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mimetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chorn/czhttpd/internal/config"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, "html", Extension("/a/b/index.html"))
	assert.Equal(t, "tar.gz", Extension("archive.tar.gz"))
	assert.Equal(t, "", Extension("Makefile"))
	assert.Equal(t, "", Extension(".hidden"))
}

func TestForFileUsesConfiguredTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	assert.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))

	r := NewResolver(config.MimeTable{"html": "text/html", "default": "application/octet-stream"})
	assert.Equal(t, "text/html", r.ForFile(path, "page.html"))
}

func TestForFileProbesWhenExtensionUnknown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	assert.NoError(t, os.WriteFile(path, []byte("plain text content"), 0o644))

	r := NewResolver(config.MimeTable{"default": "application/octet-stream"})
	got := r.ForFile(path, "data.bin")
	assert.Equal(t, "text/plain", got)
}

func TestForFileFallsBackWhenUnreadable(t *testing.T) {
	r := NewResolver(config.MimeTable{"default": "application/octet-stream"})
	got := r.ForFile(filepath.Join(t.TempDir(), "missing"), "missing")
	assert.Equal(t, "application/octet-stream", got)
}

func TestForSymlinkToDir(t *testing.T) {
	assert.Equal(t, "symbolic link->Directory", ForSymlinkToDir())
}
