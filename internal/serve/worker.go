/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"net"
	"strings"
	"time"

	"github.com/chorn/czhttpd/internal/hdr"
	"github.com/chorn/czhttpd/internal/logging"
)

// handleConn owns one connection end-to-end, per §4.2: parse,
// validate, route, encode, then loop for keep-alive.
func (s *Server) handleConn(rawConn net.Conn) {
	defer s.sem.Release()
	defer rawConn.Close()

	// Captured once per connection: a concurrent Reload must not change
	// the rules mid-stream for a connection already being served.
	cfg := s.Cfg()
	router := s.Router()

	conn := &Conn{Raw: rawConn, Peer: rawConn.RemoteAddr().String()}
	parser := &Parser{
		IdleTimeout:  time.Duration(cfg.IdleTimeoutS) * time.Second,
		RecvTimeout:  time.Duration(cfg.RecvTimeoutS) * time.Second,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}
	enc := &Encoder{KeepAliveEnabled: cfg.KeepAlive, ServerSoftware: cfg.ServerSoftware}

	for {
		req, err := parser.Parse(conn)
		if err != nil {
			if err == ErrIdleClose {
				return // clean EOF or idle timeout with zero bytes: no response, no log
			}
			protoErr, ok := err.(*ProtoError)
			if !ok {
				return
			}
			resp := errorResponse(protoErr.Status)
			placeholder := &Request{Method: MethodGet}
			enc.Write(rawConn, placeholder, resp, true)
			s.logError(protoErr.Status, "-", "-")
			return
		}

		resp := router.Route(req)
		if s.Compress != nil {
			resp = s.Compress(resp, req.Header(hdr.AcceptEncoding))
		}
		closeRequested := strings.EqualFold(req.Header(hdr.Connection), "close")

		n, werr := enc.Write(rawConn, req, resp, closeRequested)
		resp.Close()

		if s.Log != nil {
			logging.Access(s.Log, req.Method, req.RawURL, resp.Status, n, req.RemoteAddr)
		}

		if werr != nil {
			if !IsBrokenPipe(werr) {
				s.logError(0, req.Method, req.RawURL)
			}
			return
		}

		if !cfg.KeepAlive || closeRequested || !mayKeepAlive(resp.Status) {
			return
		}
	}
}

// mayKeepAlive implements the §7 nuance on top of §4.2's general
// rule: most error responses close the connection even when
// keep-alive is otherwise available, but 304 and 405 may continue.
func mayKeepAlive(status int) bool {
	switch status {
	case 200, 301, 304, 405:
		return true
	default:
		return false
	}
}

func (s *Server) logError(status int, method, url string) {
	if s.Log == nil {
		return
	}
	s.Log.WithFields(map[string]interface{}{
		"method": method,
		"path":   url,
		"status": status,
	}).Error("request error")
}
