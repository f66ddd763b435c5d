/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chorn/czhttpd/internal/hdr"
)

const chunkSize = 8 << 10 // 8 KiB, per §4.6

var reasonPhrases = map[int]string{
	200: "OK",
	301: "Moved Permanently",
	304: "Not Modified",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	412: "Precondition Failed",
	413: "Request Entity Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
	505: "HTTP Version Not Supported",
}

// Reason returns the canonical reason phrase for status, falling
// back to "Unknown" for anything unlisted.
func Reason(status int) string {
	if r, ok := reasonPhrases[status]; ok {
		return r
	}
	return "Unknown"
}

// Encoder writes a Response to a connection in the wire format from
// §4.6: status line, standard headers, handler headers in order,
// blank line, then the framed body.
type Encoder struct {
	KeepAliveEnabled bool
	ServerSoftware   string
}

// Write sends resp as the response to req over w. closeRequested
// forces "Connection: close". The body is never written for HEAD
// requests or for FramingNone responses (such as 304s). It returns the
// number of body bytes written.
func (e *Encoder) Write(w io.Writer, req *Request, resp *Response, closeRequested bool) (wroteBytes int64, err error) {
	bw := bufio.NewWriter(w)

	reason := resp.Reason
	if reason == "" {
		reason = Reason(resp.Status)
	}
	if _, err = fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.Status, reason); err != nil {
		return 0, err
	}

	keepAlive := e.KeepAliveEnabled && !closeRequested
	connVal := "close"
	if keepAlive {
		connVal = "keep-alive"
	}
	if _, err = fmt.Fprintf(bw, "%s: %s\r\n", hdr.RespConnection, connVal); err != nil {
		return 0, err
	}
	if _, err = fmt.Fprintf(bw, "%s: %s\r\n", hdr.RespDate, formatHTTPDate(time.Now())); err != nil {
		return 0, err
	}
	if _, err = fmt.Fprintf(bw, "%s: %s\r\n", hdr.RespServer, e.ServerSoftware); err != nil {
		return 0, err
	}

	suppressBody := resp.Framing == FramingNone || req.Method == MethodHead

	if resp.Framing == FramingChunked && !suppressBody {
		if _, err = fmt.Fprintf(bw, "%s: chunked\r\n", hdr.RespTransferEnc); err != nil {
			return 0, err
		}
	}

	for _, h := range resp.Headers {
		if _, err = fmt.Fprintf(bw, "%s: %s\r\n", h.Key, h.Value); err != nil {
			return 0, err
		}
	}
	if _, err = bw.Write(hdr.CRLF); err != nil {
		return 0, err
	}

	if suppressBody {
		return wroteBytes, bw.Flush()
	}

	switch resp.Framing {
	case FramingIdentity:
		n, werr := writeIdentityBody(bw, resp)
		wroteBytes += n
		if werr != nil {
			return wroteBytes, werr
		}
	case FramingChunked:
		n, werr := writeChunkedBody(bw, resp)
		wroteBytes += n
		if werr != nil {
			return wroteBytes, werr
		}
	}
	return wroteBytes, bw.Flush()
}

func writeIdentityBody(w io.Writer, resp *Response) (int64, error) {
	if resp.BodyReader != nil {
		return io.Copy(w, io.Reader(resp.BodyReader))
	}
	n, err := w.Write(resp.Body)
	return int64(n), err
}

func writeChunkedBody(w io.Writer, resp *Response) (int64, error) {
	var total int64
	flush := func(chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		if _, err := fmt.Fprintf(w, "%x\r\n", len(chunk)); err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		_, err := w.Write(hdr.CRLF)
		return err
	}

	if resp.BodyReader != nil {
		buf := make([]byte, chunkSize)
		for {
			n, rerr := resp.BodyReader.Read(buf)
			if n > 0 {
				if err := flush(buf[:n]); err != nil {
					return total, err
				}
				total += int64(n)
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return total, rerr
			}
		}
	} else {
		body := resp.Body
		for len(body) > 0 {
			n := chunkSize
			if n > len(body) {
				n = len(body)
			}
			if err := flush(body[:n]); err != nil {
				return total, err
			}
			total += int64(n)
			body = body[n:]
		}
	}

	if _, err := w.Write([]byte("0\r\n")); err != nil {
		return total, err
	}
	_, err := w.Write(hdr.CRLF)
	return total, err
}

// IsBrokenPipe reports whether err is the kind of transport failure
// §4.6/§7 says must be swallowed silently rather than logged. The
// concrete error type varies by platform, so this matches on message
// substrings rather than syscall.Errno.
func IsBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{"broken pipe", "connection reset", "use of closed network connection"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// formatHTTPDate renders t as RFC 1123 with an explicit GMT zone, per
// §9(d) — stdlib's time.RFC1123 would print "UTC" for a UTC time.
func formatHTTPDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05") + " GMT"
}
