/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hdr names the header keys and small wire-format helpers the
// server's request parser and response encoder agree on. Unlike the
// canonical-cased net/textproto convention, the request keys here are
// already lowercased: the parser stores request headers with lowercased
// keys per the data model, and lookups use these constants directly.
// The response keys are in the casing the encoder writes.
package hdr

// Request header keys, as stored (lowercased) by the parser.
const (
	Host              = "host"
	Connection        = "connection"
	ContentLength     = "content-length"
	ContentType       = "content-type"
	TransferEncoding  = "transfer-encoding"
	IfNoneMatch       = "if-none-match"
	AcceptEncoding    = "accept-encoding"
	Expect            = "expect"
)

// Response header keys, in the casing the encoder writes on the wire.
const (
	RespConnection    = "Connection"
	RespDate          = "Date"
	RespServer        = "Server"
	RespContentType   = "Content-Type"
	RespContentLength = "Content-Length"
	RespCacheControl  = "Cache-Control"
	RespETag          = "ETag"
	RespLocation      = "Location"
	RespTransferEnc   = "Transfer-Encoding"
	RespContentEnc    = "Content-Encoding"
)

// CRLF is the line terminator used throughout the HTTP/1.1 wire format.
var CRLF = []byte("\r\n")
