/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "czhttpd.conf")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	docRoot := t.TempDir()
	cfg, err := Load("", docRoot)
	assert.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 12, cfg.MaxConn)
	assert.True(t, cfg.KeepAlive)
	assert.Equal(t, "index.html", cfg.IndexFilename)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeTempConfig(t, "PORT=9090\nMAX_CONN=5\nHTTP_KEEP_ALIVE=0\n")
	docRoot := t.TempDir()
	cfg, err := Load(path, docRoot)
	assert.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5, cfg.MaxConn)
	assert.False(t, cfg.KeepAlive)
}

func TestLoadDocRootOverrideWinsOverFile(t *testing.T) {
	real := t.TempDir()
	path := writeTempConfig(t, "DOC_ROOT=/nonexistent-should-be-overridden\n")
	cfg, err := Load(path, real)
	assert.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(real)
	assert.NoError(t, err)
	assert.Equal(t, resolved, cfg.DocRoot)
}

func TestLoadRejectsNegativeInt(t *testing.T) {
	path := writeTempConfig(t, "MAX_CONN=-1\n")
	_, err := Load(path, t.TempDir())
	assert.Error(t, err)
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
}

func TestLoadRejectsMalformedBool(t *testing.T) {
	path := writeTempConfig(t, "HTTP_KEEP_ALIVE=yes\n")
	_, err := Load(path, t.TempDir())
	assert.Error(t, err)
}

func TestLoadParsesMimeOverrides(t *testing.T) {
	path := writeTempConfig(t, "MIME_XYZ=application/x-custom\n")
	cfg, err := Load(path, t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, "application/x-custom", cfg.Mime.Lookup("xyz"))
}

func TestMimeTableLookupFallsBackToDefault(t *testing.T) {
	table := MimeTable{"default": "application/octet-stream", "html": "text/html"}
	assert.Equal(t, "text/html", table.Lookup("HTML"))
	assert.Equal(t, "application/octet-stream", table.Lookup("unknownext"))
}

func TestLoadParsesCompressTypes(t *testing.T) {
	path := writeTempConfig(t, "COMPRESS=1\nCOMPRESS_TYPES=text/html,text/css\n")
	cfg, err := Load(path, t.TempDir())
	assert.NoError(t, err)
	assert.True(t, cfg.Compress.Enable)
	assert.True(t, cfg.Compress.Types["text/css"])
	assert.False(t, cfg.Compress.Types["application/json"])
}

func TestLoadParsesCompressCache(t *testing.T) {
	path := writeTempConfig(t, "COMPRESS_CACHE=/tmp/czhttpd-gz\n")
	cfg, err := Load(path, t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/czhttpd-gz", cfg.Compress.Cache)
}

func TestLoadParsesCGIExtsWithInterpreter(t *testing.T) {
	path := writeTempConfig(t, "CGI_ENABLE=1\nCGI_EXTS=php:php-cgi -q,pl:perl,cgi:\n")
	cfg, err := Load(path, t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, "php-cgi -q", cfg.CGI.Extensions["php"])
	assert.Equal(t, "perl", cfg.CGI.Extensions["pl"])
	assert.Equal(t, "", cfg.CGI.Extensions["cgi"])
	_, ok := cfg.CGI.Extensions["sh"]
	assert.False(t, ok)
}

func TestParseCGIExtsTrimsWhitespaceAndLowercasesExtension(t *testing.T) {
	out := parseCGIExts(" PHP : php-cgi -q , pl:perl ")
	assert.Equal(t, "php-cgi -q", out["php"])
	assert.Equal(t, "perl", out["pl"])
}
