/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package serve is the request-serving core: the acceptor, the
// per-connection worker, the request parser, the router, and the
// response encoder described in §4 of the spec. Everything else
// (config, logging, CGI, compression, listing cache) is an external
// collaborator passed in by value or by reference, never a package
// global.
package serve

import (
	"net"
	"time"
)

// Method values the parser recognizes. Anything else is classified
// "other" and rejected with 501 at validation time.
const (
	MethodHead = "HEAD"
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Request is built by the parser and is immutable once returned.
// Headers keys are lowercased; values are raw (leading space
// trimmed, nothing else normalized).
type Request struct {
	Method     string
	RawURL     string
	Path       string // query stripped
	Query      string // includes leading '?' if present, else ""
	Version    string
	Headers    map[string]string
	Body       []byte
	RemoteAddr string
}

// Header returns the raw value stored under the lowercased header
// key, or "".
func (r *Request) Header(key string) string {
	return r.Headers[key]
}

// Framing identifies how a Response's body is delimited on the wire.
type Framing int

const (
	FramingIdentity Framing = iota
	FramingChunked
	FramingNone
)

// HeaderField is one response header in the order the handler
// supplied it; Response.Headers preserves that order on the wire.
type HeaderField struct {
	Key   string
	Value string
}

// Response is constructed per request and consumed once by the
// encoder.
type Response struct {
	Status  int
	Reason  string
	Headers []HeaderField
	Framing Framing
	Body    []byte // used when Framing != FramingNone and BodyReader is nil
	// BodyReader, when set, streams the body instead of Body; used by
	// the static-file and CGI paths so neither needs to buffer the
	// whole response.
	BodyReader interface {
		Read(p []byte) (int, error)
	}

	// SourcePath and SourceModTime identify the single backing file (if
	// any) this response was built from: set by serveStaticFile (which
	// also serves cached directory listings), zero for an on-the-fly
	// directory listing or a CGI child's stdout. internal/compress
	// uses the pair to key its on-disk compressed-response cache the
	// same way internal/listing keys its rendered-page cache.
	SourcePath    string
	SourceModTime time.Time
}

// AddHeader appends a header in caller-supplied order.
func (resp *Response) AddHeader(key, value string) {
	resp.Headers = append(resp.Headers, HeaderField{Key: key, Value: value})
}

// Close releases resp.BodyReader if it holds an open resource (an
// *os.File for a static file, a CGI child's stdout pipe, ...). The
// worker calls this once it has finished writing the response,
// whether or not the write succeeded.
func (resp *Response) Close() {
	if closer, ok := resp.BodyReader.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// Conn wraps a single accepted connection: the raw stream, the peer
// address, and the deadlines the parser and worker apply to it.
type Conn struct {
	Raw  net.Conn
	Peer string
}

// SetIdleDeadline applies the first-read timeout (idle_timeout_s).
func (c *Conn) SetIdleDeadline(d time.Duration) {
	if d <= 0 {
		c.Raw.SetReadDeadline(time.Time{})
		return
	}
	c.Raw.SetReadDeadline(time.Now().Add(d))
}

// SetRecvDeadline applies the mid-request timeout (recv_timeout_s).
func (c *Conn) SetRecvDeadline(d time.Duration) {
	if d <= 0 {
		c.Raw.SetReadDeadline(time.Time{})
		return
	}
	c.Raw.SetReadDeadline(time.Now().Add(d))
}
