/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/chorn/czhttpd/internal/hdr"
)

// ErrIdleClose signals a clean, unremarkable disconnect: either the
// peer closed before sending anything, or the first-byte timeout
// fired with nothing received. The worker closes the connection
// without writing a response and without logging an error.
var ErrIdleClose = errors.New("serve: idle close")

// ProtoError is a response the parser or validator has already
// decided on; the worker writes it verbatim and closes.
type ProtoError struct {
	Status int
	Reason string
}

func (e *ProtoError) Error() string {
	return strconv.Itoa(e.Status) + " " + e.Reason
}

func protoErr(status int, reason string) error {
	return &ProtoError{Status: status, Reason: reason}
}

var (
	errBadRequest  = protoErr(400, "Bad Request")
	errNotImpl     = protoErr(501, "Not Implemented")
	errVersion     = protoErr(505, "HTTP Version Not Supported")
	errBodyTooLarge = protoErr(413, "Request Entity Too Large")
)

// Parser reads one HTTP/1.1 request off conn using the two-phase
// timeout scheme from §4.3: idleTimeout guards the first byte of the
// request line, recvTimeout guards everything after.
type Parser struct {
	IdleTimeout  time.Duration
	RecvTimeout  time.Duration
	MaxBodyBytes int64
}

// Parse reads and validates exactly one request. It returns
// ErrIdleClose for a clean disconnect (no response should be sent),
// a *ProtoError for a malformed or rejected request (the caller
// writes that response and closes), or a *Request on success.
func (p *Parser) Parse(c *Conn) (*Request, error) {
	br := bufio.NewReader(c.Raw)

	c.SetIdleDeadline(p.IdleTimeout)
	reqLine, err := readLine(br, true)
	if err != nil {
		return nil, err
	}

	c.SetRecvDeadline(p.RecvTimeout)

	method, rawURL, version, err := parseRequestLine(reqLine)
	if err != nil {
		return nil, err
	}

	path, query := splitURL(rawURL)

	headers, err := parseHeaders(br)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:     method,
		RawURL:     rawURL,
		Path:       path,
		Query:      query,
		Version:    version,
		Headers:    headers,
		RemoteAddr: c.Peer,
	}

	if err := validate(req); err != nil {
		return nil, err
	}

	body, err := p.readBody(br, req)
	if err != nil {
		return nil, err
	}
	req.Body = body

	return req, nil
}

// readLine reads a single CRLF-terminated line. When firstByte is
// true, a timeout with no bytes read yet is ErrIdleClose; otherwise
// (and for any timeout after the first byte) it is a 400.
func readLine(br *bufio.Reader, firstByte bool) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if line == "" {
			if firstByte {
				return "", ErrIdleClose
			}
			if isTimeout(err) {
				return "", errBadRequest
			}
			return "", ErrIdleClose
		}
		return "", errBadRequest
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func parseRequestLine(line string) (method, url, version string, err error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return "", "", "", errBadRequest
	}
	return parts[0], parts[1], parts[2], nil
}

func splitURL(rawURL string) (path, query string) {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i], rawURL[i:]
	}
	return rawURL, ""
}

func parseHeaders(br *bufio.Reader) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := readLine(br, false)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return nil, errBadRequest
		}
		key := strings.ToLower(strings.TrimSpace(line[:i]))
		value := strings.TrimLeft(line[i+1:], " ")
		if key == "" || value == "" {
			return nil, errBadRequest
		}
		headers[key] = value
	}
}

func validate(req *Request) error {
	switch req.Method {
	case MethodHead, MethodGet, MethodPost:
	default:
		return errNotImpl
	}
	if req.Version != "HTTP/1.1" {
		return errVersion
	}
	if req.Header(hdr.Host) == "" {
		return errBadRequest
	}
	return nil
}

func (p *Parser) readBody(br *bufio.Reader, req *Request) ([]byte, error) {
	if strings.EqualFold(req.Header(hdr.TransferEncoding), "chunked") {
		return readChunkedBody(br, p.MaxBodyBytes)
	}
	if cl := req.Header(hdr.ContentLength); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, errBadRequest
		}
		if n > p.MaxBodyBytes {
			return nil, errBodyTooLarge
		}
		buf := make([]byte, n)
		if _, err := readFull(br, buf); err != nil {
			return nil, errBadRequest
		}
		return buf, nil
	}
	return nil, nil
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := br.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
