/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package cgi

import (
	"strconv"
	"strings"

	"github.com/chorn/czhttpd/internal/config"
	"github.com/chorn/czhttpd/internal/serve"
)

// excludedFromHTTPVars lists the request-header-derived pseudo-keys
// that never become HTTP_* environment variables, per §4.8.
var excludedFromHTTPVars = map[string]bool{
	"connection":     true,
	"content-length": true,
	"content-type":   true,
	"method":         true,
	"version":        true,
	"url":            true,
	"querystr":       true,
}

// buildEnv constructs the CGI/1.1 environment for req against script
// path fsPath, per §4.8: fixed vars, per-request vars, and one
// HTTP_<KEY> per remaining request header.
func buildEnv(req *serve.Request, fsPath string, cfg *config.ServerConfig) []string {
	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_SOFTWARE=" + cfg.ServerSoftware,
		"SERVER_PROTOCOL=HTTP/1.1",
		"SERVER_NAME=" + cfg.ServerAddr,
		"SERVER_ADDR=" + cfg.ServerAddr,
		"SERVER_PORT=" + strconv.Itoa(cfg.Port),
		"DOCUMENT_ROOT=" + cfg.DocRoot,
		"REDIRECT_STATUS=1",

		"REQUEST_METHOD=" + req.Method,
		"REQUEST_URI=" + req.Path + req.Query,
		"SCRIPT_FILENAME=" + fsPath,
		"SCRIPT_NAME=" + strings.TrimPrefix(fsPath, cfg.DocRoot),
		"QUERY_STRING=" + strings.TrimPrefix(req.Query, "?"),
		"REMOTE_ADDR=" + remoteIP(req.RemoteAddr),
		"REMOTE_HOST=NULL",
	}

	if ct := req.Header("content-type"); ct != "" {
		env = append(env, "CONTENT_TYPE="+ct)
	}
	if cl := req.Header("content-length"); cl != "" {
		env = append(env, "CONTENT_LENGTH="+cl)
	} else {
		env = append(env, "CONTENT_LENGTH=NULL")
	}

	for k, v := range req.Headers {
		if excludedFromHTTPVars[k] {
			continue
		}
		key := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		env = append(env, "HTTP_"+key+"="+v)
	}

	return env
}

func remoteIP(remoteAddr string) string {
	if i := strings.LastIndexByte(remoteAddr, ':'); i >= 0 {
		return remoteAddr[:i]
	}
	return remoteAddr
}
