/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package compress

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"

	"github.com/chorn/czhttpd/internal/config"
	"github.com/chorn/czhttpd/internal/serve"
)

func testCfg() *config.CompressConfig {
	return &config.CompressConfig{
		Enable:  true,
		Types:   map[string]bool{"text/html": true},
		Level:   gzip.DefaultCompression,
		MinSize: 4,
	}
}

func TestApplyCompressesEligibleResponse(t *testing.T) {
	resp := &serve.Response{Status: 200, Framing: serve.FramingIdentity, Body: []byte("hello world, this is compressible")}
	resp.AddHeader("Content-Type", "text/html")
	resp.AddHeader("Content-Length", "33")

	out := Apply(resp, "gzip, deflate", testCfg(), nil)
	assert.Equal(t, serve.FramingChunked, out.Framing)

	gz, err := gzip.NewReader(out.BodyReader.(io.Reader))
	assert.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	assert.NoError(t, err)
	assert.Equal(t, "hello world, this is compressible", string(decoded))

	var hasEncoding, hasLength bool
	for _, h := range out.Headers {
		if h.Key == "Content-Encoding" {
			hasEncoding = true
			assert.Equal(t, "gzip", h.Value)
		}
		if h.Key == "Content-Length" {
			hasLength = true
		}
	}
	assert.True(t, hasEncoding)
	assert.False(t, hasLength)
}

func TestApplySkipsWhenClientDoesNotAcceptGzip(t *testing.T) {
	resp := &serve.Response{Status: 200, Body: []byte("hello world, this is compressible")}
	resp.AddHeader("Content-Type", "text/html")
	out := Apply(resp, "identity", testCfg(), nil)
	assert.Same(t, resp, out)
}

func TestApplySkipsUneligibleContentType(t *testing.T) {
	resp := &serve.Response{Status: 200, Body: []byte("{}")}
	resp.AddHeader("Content-Type", "application/json")
	out := Apply(resp, "gzip", testCfg(), nil)
	assert.Same(t, resp, out)
}

func TestApplySkipsBodyBelowMinSize(t *testing.T) {
	resp := &serve.Response{Status: 200, Body: []byte("hi")}
	resp.AddHeader("Content-Type", "text/html")
	out := Apply(resp, "gzip", testCfg(), nil)
	assert.Same(t, resp, out)
}

func TestApplySkipsWhenDisabled(t *testing.T) {
	resp := &serve.Response{Status: 200, Body: []byte("hello world, this is compressible")}
	resp.AddHeader("Content-Type", "text/html")
	cfg := testCfg()
	cfg.Enable = false
	out := Apply(resp, "gzip", cfg, nil)
	assert.Same(t, resp, out)
}

func newStaticResponse(t *testing.T, dir, urlPath, body string) *serve.Response {
	t.Helper()
	fsPath := filepath.Join(dir, "src")
	assert.NoError(t, os.WriteFile(fsPath, []byte(body), 0o644))
	f, err := os.Open(fsPath)
	assert.NoError(t, err)
	info, err := f.Stat()
	assert.NoError(t, err)

	resp := &serve.Response{
		Status:        200,
		Framing:       serve.FramingIdentity,
		BodyReader:    f,
		SourcePath:    urlPath,
		SourceModTime: info.ModTime(),
	}
	resp.AddHeader("Content-Type", "text/html")
	resp.AddHeader("Content-Length", strconv.Itoa(len(body)))
	return resp
}

func TestApplyWritesThroughCacheForStaticResponses(t *testing.T) {
	dir := t.TempDir()
	cache := &Cache{Dir: filepath.Join(dir, "cache")}
	resp := newStaticResponse(t, dir, "/a.html", "hello world, this is compressible")

	out := Apply(resp, "gzip", testCfg(), cache)
	assert.Equal(t, serve.FramingChunked, out.Framing)

	gz, err := gzip.NewReader(out.BodyReader.(io.Reader))
	assert.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	assert.NoError(t, err)
	assert.Equal(t, "hello world, this is compressible", string(decoded))

	entries, err := os.ReadDir(cache.Dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "a.html.gz", entries[0].Name())
}

func TestApplyServesFromCacheWithoutRereadingSource(t *testing.T) {
	dir := t.TempDir()
	cache := &Cache{Dir: filepath.Join(dir, "cache")}

	first := newStaticResponse(t, dir, "/a.html", "hello world, this is compressible")
	out1 := Apply(first, "gzip", testCfg(), cache)
	gz1, err := gzip.NewReader(out1.BodyReader.(io.Reader))
	assert.NoError(t, err)
	io.ReadAll(gz1)

	// A second response claiming the same mtime must be served from
	// the existing cache entry even though its body differs, proving
	// the cache (not a fresh read) produced the bytes.
	second := newStaticResponse(t, dir, "/a.html", "a different body that must not be served")
	second.SourceModTime = first.SourceModTime

	out2 := Apply(second, "gzip", testCfg(), cache)
	gz2, err := gzip.NewReader(out2.BodyReader.(io.Reader))
	assert.NoError(t, err)
	decoded, err := io.ReadAll(gz2)
	assert.NoError(t, err)
	assert.Equal(t, "hello world, this is compressible", string(decoded))
}

func TestCacheRegeneratesWhenSourceIsNewer(t *testing.T) {
	dir := t.TempDir()
	cache := &Cache{Dir: dir}

	old := time.Now().Add(-time.Hour)
	f, err := cache.Get("/a.html", old, gzip.DefaultCompression, func() (io.Reader, error) {
		return strings.NewReader("first"), nil
	})
	assert.NoError(t, err)
	f.Close()

	fresh := time.Now()
	f2, err := cache.Get("/a.html", fresh, gzip.DefaultCompression, func() (io.Reader, error) {
		return strings.NewReader("second"), nil
	})
	assert.NoError(t, err)
	defer f2.Close()

	gz, err := gzip.NewReader(f2)
	assert.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	assert.NoError(t, err)
	assert.Equal(t, "second", string(decoded))
}
