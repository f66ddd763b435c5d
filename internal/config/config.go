/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package config loads the server's key=value configuration file and
// turns it into an immutable ServerConfig. The file format is plain
// Java-properties-style KEY=value, so the loader reuses
// github.com/magiconair/properties rather than hand-rolling a scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"
)

// ServerConfig is built once at startup and is immutable thereafter
// except via Reload, which produces a fresh value for copy-on-write
// swap by the listener.
type ServerConfig struct {
	Port           int
	MaxConn        int
	KeepAlive      bool
	IdleTimeoutS   int
	RecvTimeoutS   int
	MaxBodyBytes   int64
	HTTPCache      bool
	HTTPCacheAgeS  int
	IndexFilename  string
	AllowHidden    bool
	FollowSymlinks bool
	HTMLCache      bool
	HTMLCacheDir   string
	LogFile        string
	DocRoot        string
	ServerSoftware string
	ServerAddr     string

	Mime     MimeTable
	CGI      CGIConfig
	Compress CompressConfig
}

// CGIConfig is the optional CGI policy described in §6 of the spec.
type CGIConfig struct {
	Enable     bool
	Extensions map[string]string // extension (no dot) -> interpreter command line, "" for none
	TimeoutS   int
}

// CompressConfig is the optional compression policy described in §6.
type CompressConfig struct {
	Enable  bool
	Types   map[string]bool // MIME type -> eligible
	Level   int
	MinSize int64
	Cache   string
}

// MimeTable maps a lowercased extension to a MIME type string, plus a
// "default" fallback entry. It is immutable after Load.
type MimeTable map[string]string

// Lookup returns the configured MIME type for ext (without the
// leading dot), or the table's default entry, or "" if neither exist.
func (t MimeTable) Lookup(ext string) string {
	if v, ok := t[strings.ToLower(ext)]; ok {
		return v
	}
	return t["default"]
}

// Error reports a fatal configuration problem; the CLI maps it to
// exit code 113.
type Error struct {
	Key string
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

var defaults = map[string]string{
	"MAX_CONN":          "12",
	"PORT":              "8080",
	"HTTP_KEEP_ALIVE":   "1",
	"HTTP_TIMEOUT":      "30",
	"HTTP_RECV_TIMEOUT": "5",
	"HTTP_BODY_SIZE":    "16384",
	"HTTP_CACHE":        "0",
	"HTTP_CACHE_AGE":    "200",
	"INDEX_FILE":        "index.html",
	"HIDDEN_FILES":      "0",
	"FOLLOW_SYMLINKS":   "0",
	"HTML_CACHE":        "0",
	"HTML_CACHE_DIR":    "",
	"LOG_FILE":          "/dev/null",
	"CGI_ENABLE":        "0",
	"CGI_EXTS":          "",
	"CGI_TIMEOUT":       "300",
	"COMPRESS":          "0",
	"COMPRESS_TYPES":    "text/html,text/plain,text/css,application/javascript",
	"COMPRESS_LEVEL":    "6",
	"COMPRESS_MIN_SIZE": "256",
	"COMPRESS_CACHE":    "",
}

// Load reads path, applies defaults for any key left unset, validates
// every recognized key per §6, and returns an immutable ServerConfig.
// docRootOverride, if non-empty, overrides the DOC_ROOT the file may
// carry, mirroring the CLI's optional PATH argument.
func Load(path, docRootOverride string) (*ServerConfig, error) {
	p := properties.NewProperties()
	if path != "" {
		loaded, err := properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return nil, &Error{Key: path, Msg: err.Error()}
		}
		p = loaded
	}
	for k, v := range defaults {
		if _, ok := p.Get(k); !ok {
			if _, _, err := p.Set(k, v); err != nil {
				return nil, &Error{Key: k, Msg: err.Error()}
			}
		}
	}

	cfg := &ServerConfig{}
	var err error

	if cfg.Port, err = posInt(p, "PORT"); err != nil {
		return nil, err
	}
	if cfg.MaxConn, err = posInt(p, "MAX_CONN"); err != nil {
		return nil, err
	}
	if cfg.KeepAlive, err = boolKey(p, "HTTP_KEEP_ALIVE"); err != nil {
		return nil, err
	}
	if cfg.IdleTimeoutS, err = posInt(p, "HTTP_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.RecvTimeoutS, err = posInt(p, "HTTP_RECV_TIMEOUT"); err != nil {
		return nil, err
	}
	bodySize, err := posInt(p, "HTTP_BODY_SIZE")
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(bodySize)
	if cfg.HTTPCache, err = boolKey(p, "HTTP_CACHE"); err != nil {
		return nil, err
	}
	if cfg.HTTPCacheAgeS, err = posInt(p, "HTTP_CACHE_AGE"); err != nil {
		return nil, err
	}
	cfg.IndexFilename = p.GetString("INDEX_FILE", defaults["INDEX_FILE"])
	if cfg.AllowHidden, err = boolKey(p, "HIDDEN_FILES"); err != nil {
		return nil, err
	}
	if cfg.FollowSymlinks, err = boolKey(p, "FOLLOW_SYMLINKS"); err != nil {
		return nil, err
	}
	if cfg.HTMLCache, err = boolKey(p, "HTML_CACHE"); err != nil {
		return nil, err
	}
	cfg.HTMLCacheDir = p.GetString("HTML_CACHE_DIR", "")
	if cfg.HTMLCacheDir == "" {
		cfg.HTMLCacheDir = filepath.Join(os.TempDir(), fmt.Sprintf("czhttpd-%d", os.Getpid()))
	}
	cfg.LogFile = p.GetString("LOG_FILE", defaults["LOG_FILE"])

	cfg.DocRoot = p.GetString("DOC_ROOT", ".")
	if docRootOverride != "" {
		cfg.DocRoot = docRootOverride
	}
	abs, err := filepath.Abs(cfg.DocRoot)
	if err != nil {
		return nil, &Error{Key: "DOC_ROOT", Msg: err.Error()}
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, &Error{Key: "DOC_ROOT", Msg: err.Error()}
	}
	cfg.DocRoot = real

	cfg.ServerSoftware = p.GetString("SERVER_SOFTWARE", "czhttpd/1.0")
	cfg.ServerAddr = p.GetString("SERVER_ADDR", "0.0.0.0")

	if cfg.CGI.Enable, err = boolKey(p, "CGI_ENABLE"); err != nil {
		return nil, err
	}
	cfg.CGI.Extensions = parseCGIExts(p.GetString("CGI_EXTS", ""))
	if cfg.CGI.TimeoutS, err = posInt(p, "CGI_TIMEOUT"); err != nil {
		return nil, err
	}

	if cfg.Compress.Enable, err = boolKey(p, "COMPRESS"); err != nil {
		return nil, err
	}
	cfg.Compress.Types = parseTypeSet(p.GetString("COMPRESS_TYPES", defaults["COMPRESS_TYPES"]))
	if cfg.Compress.Level, err = posInt(p, "COMPRESS_LEVEL"); err != nil {
		return nil, err
	}
	minSize, err := posInt(p, "COMPRESS_MIN_SIZE")
	if err != nil {
		return nil, err
	}
	cfg.Compress.MinSize = int64(minSize)
	cfg.Compress.Cache = p.GetString("COMPRESS_CACHE", "")

	cfg.Mime = loadMimeTable(p)

	return cfg, nil
}

// Reload re-reads path and produces a fresh ServerConfig for the
// listener to swap in between accepts (§5).
func Reload(path, docRootOverride string) (*ServerConfig, error) {
	return Load(path, docRootOverride)
}

func posInt(p *properties.Properties, key string) (int, error) {
	raw, _ := p.Get(key)
	n, err := p.Int(key)
	if err != nil || n < 0 {
		return 0, &Error{Key: key, Msg: fmt.Sprintf("must be a non-negative decimal, got %q", raw)}
	}
	return n, nil
}

func boolKey(p *properties.Properties, key string) (bool, error) {
	raw, _ := p.Get(key)
	switch raw {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, &Error{Key: key, Msg: fmt.Sprintf("must be exactly \"0\" or \"1\", got %q", raw)}
	}
}

// parseCGIExts parses CGI_EXTS, per §4.8's "by extension (e.g., .php
// -> php-cgi)" interpreter selection. Each entry is either a bare
// extension (the script itself is run directly, relying on its own
// shebang) or "ext:interpreter command line", e.g.
// "php:php-cgi -q,pl:perl,cgi:".
func parseCGIExts(raw string) map[string]string {
	out := map[string]string{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ext, interpreter, _ := strings.Cut(entry, ":")
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		out[ext] = strings.TrimSpace(interpreter)
	}
	return out
}

func parseTypeSet(raw string) map[string]bool {
	out := map[string]bool{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out[t] = true
	}
	return out
}

func loadMimeTable(p *properties.Properties) MimeTable {
	table := MimeTable{
		"default": "application/octet-stream",
		"html":    "text/html",
		"htm":     "text/html",
		"css":     "text/css",
		"js":      "application/javascript",
		"json":    "application/json",
		"txt":     "text/plain",
		"png":     "image/png",
		"jpg":     "image/jpeg",
		"jpeg":    "image/jpeg",
		"gif":     "image/gif",
		"svg":     "image/svg+xml",
		"ico":     "image/x-icon",
		"pdf":     "application/pdf",
		"xml":     "application/xml",
		"gz":      "application/gzip",
	}
	for _, key := range p.Keys() {
		const prefix = "MIME_"
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(key, prefix))
		table[ext] = p.GetString(key, "")
	}
	return table
}
