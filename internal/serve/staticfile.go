/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package serve

import (
	"fmt"
	"os"
	"strconv"

	"github.com/chorn/czhttpd/internal/config"
	"github.com/chorn/czhttpd/internal/hdr"
	"github.com/chorn/czhttpd/internal/mimetype"
)

// serveStaticFile implements the regular-file half of §4.4: MIME
// resolution, ETag / conditional GET when http_cache is enabled, and
// the plain 200 response otherwise.
func serveStaticFile(req *Request, fsPath, urlPath string, cfg *config.ServerConfig, mime *mimetype.Resolver) *Response {
	info, err := os.Stat(fsPath)
	if err != nil {
		return errorResponse(404)
	}

	contentType := mime.ForFile(fsPath, urlPath)

	if cfg.HTTPCache {
		etag := computeETag(info, cfg.ServerSoftware)
		if req.Header(hdr.IfNoneMatch) == etag {
			resp := &Response{Status: 304, Reason: Reason(304), Framing: FramingNone}
			resp.AddHeader(hdr.RespETag, etag)
			return resp
		}
		resp, err := openFileResponse(fsPath, urlPath, info, contentType)
		if err != nil {
			return errorResponse(500)
		}
		resp.AddHeader(hdr.RespETag, etag)
		resp.AddHeader(hdr.RespCacheControl, "max-age="+strconv.Itoa(cfg.HTTPCacheAgeS))
		return resp
	}

	resp, err := openFileResponse(fsPath, urlPath, info, contentType)
	if err != nil {
		return errorResponse(500)
	}
	return resp
}

func openFileResponse(fsPath, urlPath string, info os.FileInfo, contentType string) (*Response, error) {
	f, err := os.Open(fsPath)
	if err != nil {
		return nil, err
	}
	resp := &Response{
		Status:        200,
		Reason:        Reason(200),
		Framing:       FramingIdentity,
		BodyReader:    f,
		SourcePath:    urlPath,
		SourceModTime: info.ModTime(),
	}
	resp.AddHeader(hdr.RespContentType, contentType)
	resp.AddHeader(hdr.RespContentLength, strconv.FormatInt(info.Size(), 10))
	return resp, nil
}

// computeETag renders `"<mtime_hex>-<inode_hex>-<server_software>"`
// per §4.4. The inode comes from the platform-specific stat_t via
// fileIdentity (fileid_unix.go / fileid_other.go).
func computeETag(info os.FileInfo, serverSoftware string) string {
	mtimeHex := fmt.Sprintf("%x", info.ModTime().Unix())
	inodeHex := fmt.Sprintf("%x", fileIdentity(info))
	return fmt.Sprintf("%q", mtimeHex+"-"+inodeHex+"-"+serverSoftware)
}
