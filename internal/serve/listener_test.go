/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chorn/czhttpd/internal/config"
	"github.com/chorn/czhttpd/internal/listing"
	"github.com/chorn/czhttpd/internal/mimetype"
)

// freePort asks the OS for an ephemeral port and releases it
// immediately; there is a small race against another process but it
// is the same approach net/http's own tests use.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	assert.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startTestServer(t *testing.T, docRoot string, port int) *Server {
	t.Helper()
	cfg := &config.ServerConfig{
		Port:           port,
		MaxConn:        4,
		KeepAlive:      true,
		IdleTimeoutS:   2,
		RecvTimeoutS:   2,
		MaxBodyBytes:   1 << 20,
		IndexFilename:  "index.html",
		ServerAddr:     "127.0.0.1",
		ServerSoftware: "czhttpd/1.0",
		DocRoot:        docRoot,
		Mime:           config.MimeTable{"default": "application/octet-stream", "txt": "text/plain"},
	}
	router := &Router{Cfg: cfg, Mime: mimetype.NewResolver(cfg.Mime), Listing: &listing.Cache{}}
	srv := NewServer(cfg, router, nil)

	go srv.ListenAndServe()
	t.Cleanup(func() { srv.Shutdown() })

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port)); err == nil {
			c.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return srv
}

func TestServerServesFileEndToEnd(t *testing.T) {
	docRoot := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(docRoot, "hello.txt"), []byte("hello there"), 0o644))
	port := freePort(t)
	startTestServer(t, docRoot, port)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	assert.NoError(t, err)
	defer conn.Close()

	fmt.Fprintf(conn, "GET /hello.txt HTTP/1.1\r\nHost: localhost\r\n\r\n")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	status, err := reader.ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)
}

func TestServerRejectsPrivilegedPort(t *testing.T) {
	cfg := &config.ServerConfig{Port: 80}
	srv := NewServer(cfg, &Router{Cfg: cfg}, nil)
	err := srv.ListenAndServe()
	assert.Equal(t, ErrPrivilegedPort, err)
}

func TestServerReloadRejectsPortChange(t *testing.T) {
	cfg := &config.ServerConfig{Port: 9000, MaxConn: 1}
	srv := NewServer(cfg, &Router{Cfg: cfg}, nil)

	newCfg := &config.ServerConfig{Port: 9001, MaxConn: 1}
	err := srv.Reload(newCfg, &Router{Cfg: newCfg})
	assert.Error(t, err)
	assert.Equal(t, 9000, srv.Cfg().Port)
}

func TestServerReloadSwapsConfigWhenPortUnchanged(t *testing.T) {
	cfg := &config.ServerConfig{Port: 9000, MaxConn: 1}
	srv := NewServer(cfg, &Router{Cfg: cfg}, nil)

	newCfg := &config.ServerConfig{Port: 9000, MaxConn: 8}
	assert.NoError(t, srv.Reload(newCfg, &Router{Cfg: newCfg}))
	assert.Equal(t, 8, srv.Cfg().MaxConn)
}

func TestSemaphoreTryAcquireRespectsCapacity(t *testing.T) {
	sem := NewSemaphore(1)
	assert.True(t, sem.TryAcquire())
	assert.False(t, sem.TryAcquire())
	sem.Release()
	assert.True(t, sem.TryAcquire())
}
