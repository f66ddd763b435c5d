/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chorn/czhttpd/internal/config"
	"github.com/chorn/czhttpd/internal/listing"
	"github.com/chorn/czhttpd/internal/mimetype"
)

// Handler fulfills a validated request for a resolved filesystem
// path. It is the single override point from §4.7: a registered
// Handler either writes a complete response or returns (nil, nil) to
// delegate to the router's built-in static handler.
type Handler func(req *Request, fsPath string) (*Response, error)

// Router implements §4.4: it maps a decoded URL onto doc_root,
// classifies the target, and dispatches to a file, a directory
// listing, or an override handler such as CGI.
type Router struct {
	Cfg     *config.ServerConfig
	Mime    *mimetype.Resolver
	Listing *listing.Cache

	// Override is consulted before the built-in static handler, once
	// per request, for the single file-or-CGI hook described in §4.7.
	// At most one is registered, set up at startup by the CGI module
	// when cgi_enable is true.
	Override Handler
}

// Route resolves req against the document root and returns the
// complete response. Every outcome, including i/o failures (which
// become a synthesized 500), is carried as Response.Status.
func (rt *Router) Route(req *Request) *Response {
	decoded, err := url.PathUnescape(req.Path)
	if err != nil {
		return errorResponse(400)
	}
	clean := path.Clean("/" + decoded)
	fsPath := filepath.Join(rt.Cfg.DocRoot, filepath.FromSlash(clean))

	if resp := rt.checkHidden(clean); resp != nil {
		return resp
	}

	info, lstatInfo, err := statBoth(fsPath)
	if os.IsNotExist(err) {
		return errorResponse(404)
	}
	if err != nil {
		return errorResponse(500)
	}

	if isSymlink(lstatInfo) && !rt.Cfg.FollowSymlinks {
		return errorResponse(403)
	}
	if !withinRoot(rt.Cfg.DocRoot, fsPath) && !rt.Cfg.FollowSymlinks {
		return errorResponse(403)
	}

	if info.IsDir() {
		return rt.routeDirectory(req, fsPath, clean)
	}

	return rt.routeFile(req, fsPath, clean)
}

func (rt *Router) checkHidden(clean string) *Response {
	if rt.Cfg.AllowHidden {
		return nil
	}
	base := path.Base(clean)
	if strings.HasPrefix(base, ".") && base != "." {
		return errorResponse(403)
	}
	return nil
}

func (rt *Router) routeDirectory(req *Request, fsPath, clean string) *Response {
	if clean != "/" && !strings.HasSuffix(req.Path, "/") {
		loc := "http://" + rt.Cfg.ServerAddr + ":" + portString(rt.Cfg.Port) + req.Path + "/"
		resp := &Response{Status: 301, Framing: FramingNone}
		resp.AddHeader("Location", loc)
		return resp
	}

	indexPath := filepath.Join(fsPath, rt.Cfg.IndexFilename)
	if st, err := os.Stat(indexPath); err == nil && !st.IsDir() {
		return rt.routeFile(req, indexPath, path.Join(clean, rt.Cfg.IndexFilename))
	}

	if !dirSearchable(fsPath) {
		return errorResponse(403)
	}

	return rt.serveListing(req, fsPath, clean)
}

func (rt *Router) serveListing(req *Request, fsPath, clean string) *Response {
	atDocRoot := clean == "/"
	if !rt.Cfg.HTMLCache {
		body, err := listing.Render(fsPath, clean, rt.Cfg.AllowHidden, atDocRoot)
		if err != nil {
			return errorResponse(500)
		}
		resp := &Response{Status: 200, Reason: Reason(200), Framing: FramingChunked, Body: body}
		resp.AddHeader("Content-Type", "text/html")
		return resp
	}

	cacheFile, err := rt.Listing.Get(fsPath, clean, rt.Cfg.AllowHidden, atDocRoot)
	if err != nil {
		return errorResponse(500)
	}
	return serveStaticFile(req, cacheFile, clean, rt.Cfg, rt.Mime)
}

func (rt *Router) routeFile(req *Request, fsPath, clean string) *Response {
	if rt.Override != nil {
		if resp, err := rt.Override(req, fsPath); err != nil {
			return errorResponse(500)
		} else if resp != nil {
			return resp
		}
	}
	if req.Method != MethodHead && req.Method != MethodGet {
		return errorResponse(405)
	}
	return serveStaticFile(req, fsPath, clean, rt.Cfg, rt.Mime)
}

func errorResponse(status int) *Response {
	body := []byte(Reason(status) + "\n")
	resp := &Response{Status: status, Framing: FramingIdentity, Body: body}
	resp.AddHeader("Content-Type", "text/plain")
	resp.AddHeader("Content-Length", itoa(len(body)))
	return resp
}
