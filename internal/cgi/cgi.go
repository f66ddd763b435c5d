/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package cgi implements the §4.8 CGI/1.1 executor: environment
// construction, a timed child process, and streaming the child's
// stdout back to the client as chunked HTTP.
package cgi

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chorn/czhttpd/internal/config"
	"github.com/chorn/czhttpd/internal/mimetype"
	"github.com/chorn/czhttpd/internal/serve"
)

// Executor runs CGI scripts under the override hook from §4.7.
type Executor struct {
	Cfg *config.ServerConfig
	Log *logrus.Logger
}

// Handler returns the serve.Handler to register as the router's
// override: it fulfils a request when the target is a CGI-eligible
// script, and otherwise delegates by returning (nil, nil).
func (e *Executor) Handler() serve.Handler {
	return func(req *serve.Request, fsPath string) (*serve.Response, error) {
		if !e.eligible(fsPath) {
			return nil, nil
		}
		return e.run(req, fsPath), nil
	}
}

func (e *Executor) eligible(fsPath string) bool {
	if !e.Cfg.CGI.Enable {
		return false
	}
	ext := mimetype.Extension(fsPath)
	if _, ok := e.Cfg.CGI.Extensions[ext]; !ok {
		return false
	}
	info, err := os.Stat(fsPath)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// run spawns the interpreter for fsPath, pipes req.Body to its
// stdin, reads its CGI header block, and streams the remaining
// stdout to the client as a chunked response. On timeout the child
// (and its watchdog) are killed and, if nothing has reached the
// client yet, a 500 is synthesized instead.
func (e *Executor) run(req *serve.Request, fsPath string) *serve.Response {
	ext := mimetype.Extension(fsPath)
	interpreterLine := e.Cfg.CGI.Extensions[ext]

	var argv []string
	if interpreterLine != "" {
		parsed, err := shellwords.Parse(interpreterLine)
		if err != nil {
			return serve500()
		}
		argv = append(parsed, fsPath)
	} else {
		argv = []string{fsPath}
	}

	timeout := time.Duration(e.Cfg.CGI.TimeoutS) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = buildEnv(req, fsPath, e.Cfg)
	cmd.Stdin = strings.NewReader(string(req.Body))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return serve500()
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return serve500()
	}

	br := bufio.NewReader(stdout)
	status, reason, headers, contentType, headerErr := readCGIHeaders(br)

	// cmd.Wait closes the stdout pipe once the child exits, so it is only
	// started after the caller is done reading from br.
	var g errgroup.Group
	wait := func() error {
		g.Go(cmd.Wait)
		return g.Wait()
	}

	if headerErr != nil || contentType == "" {
		cancel()
		wait()
		return serve500()
	}

	resp := &serve.Response{Status: status, Reason: reason, Framing: serve.FramingChunked}
	for _, h := range headers {
		resp.AddHeader(h.key, h.value)
	}
	resp.AddHeader("Content-Type", contentType)
	resp.BodyReader = &watchedReader{r: br, cancel: cancel, wait: wait, log: e.Log}

	return resp
}

// watchedReader streams the child's remaining stdout. Once the
// stream is exhausted (or the context times out), it waits for the
// child and logs a nonzero exit per §4.8's closing note: the response
// has already been framed by then and cannot be changed. A Close
// before the stream is exhausted kills the child first.
type watchedReader struct {
	r      io.Reader
	cancel context.CancelFunc
	wait   func() error
	log    *logrus.Logger
	closed bool
}

func (w *watchedReader) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	if err == io.EOF {
		w.finish(false)
	}
	return n, err
}

func (w *watchedReader) Close() error {
	w.finish(true)
	return nil
}

func (w *watchedReader) finish(kill bool) {
	if w.closed {
		return
	}
	w.closed = true
	if kill {
		w.cancel()
	}
	err := w.wait()
	w.cancel()
	if err != nil && w.log != nil {
		w.log.WithField("error", err.Error()).Error("cgi: script exited nonzero")
	}
}

func serve500() *serve.Response {
	body := []byte("Internal Server Error\n")
	resp := &serve.Response{Status: 500, Reason: "Internal Server Error", Framing: serve.FramingIdentity, Body: body}
	resp.AddHeader("Content-Type", "text/plain")
	resp.AddHeader("Content-Length", strconv.Itoa(len(body)))
	return resp
}
