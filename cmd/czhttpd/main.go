/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Command czhttpd is a small per-user HTTP/1.1 file server: it serves
// files and directory listings from a document root, optionally runs
// CGI scripts, and optionally compresses and caches responses. See
// SPEC_FULL.md for the full module map.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chorn/czhttpd/internal/cgi"
	"github.com/chorn/czhttpd/internal/compress"
	"github.com/chorn/czhttpd/internal/config"
	"github.com/chorn/czhttpd/internal/listing"
	"github.com/chorn/czhttpd/internal/logging"
	"github.com/chorn/czhttpd/internal/mimetype"
	"github.com/chorn/czhttpd/internal/serve"
)

// Exit codes from §6.
const (
	exitClean   = 0
	exitFatal   = 113
	exitMissing = 127
)

var (
	flagConfig   string
	flagPort     int
	flagToStdout bool
)

func main() {
	root := &cobra.Command{
		Use:   "czhttpd [PATH]",
		Short: "a small per-user HTTP/1.1 file server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var docRoot string
			if len(args) == 1 {
				docRoot = args[0]
			}
			return run(docRoot)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", "", "path to the key=value configuration file")
	root.Flags().IntVarP(&flagPort, "port", "p", 0, "override the configured listen port")
	root.Flags().BoolVarP(&flagToStdout, "verbose", "v", false, "redirect the log to stdout")

	if err := root.Execute(); err != nil {
		if ee, ok := err.(*exitError); ok {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func run(docRoot string) error {
	cfg, err := config.Load(flagConfig, docRoot)
	if err != nil {
		var cerr *config.Error
		if errors.As(err, &cerr) && cerr.Key == "DOC_ROOT" {
			return &exitError{exitMissing, err}
		}
		return &exitError{exitFatal, err}
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}

	if info, err := os.Stat(cfg.DocRoot); err != nil || !info.IsDir() {
		return &exitError{exitMissing, fmt.Errorf("document root %q is not a directory", cfg.DocRoot)}
	}

	log, err := logging.New(cfg.LogFile, flagToStdout)
	if err != nil {
		return &exitError{exitFatal, err}
	}

	listingCache := &listing.Cache{Enabled: cfg.HTMLCache, Dir: cfg.HTMLCacheDir}

	buildRouter := func(cfg *config.ServerConfig) *serve.Router {
		router := &serve.Router{
			Cfg:     cfg,
			Mime:    mimetype.NewResolver(cfg.Mime),
			Listing: listingCache,
		}
		if cfg.CGI.Enable {
			executor := &cgi.Executor{Cfg: cfg, Log: log}
			router.Override = executor.Handler()
		}
		return router
	}

	srv := serve.NewServer(cfg, buildRouter(cfg), log)
	// Reads srv.Cfg() fresh on every call, so a SIGHUP reload that
	// flips COMPRESS or COMPRESS_CACHE on or off takes effect
	// immediately without touching srv.Compress itself; Apply is a
	// no-op whenever the current config has compression disabled.
	srv.Compress = func(resp *serve.Response, acceptEncoding string) *serve.Response {
		compCfg := srv.Cfg().Compress
		var cache *compress.Cache
		if compCfg.Cache != "" {
			cache = &compress.Cache{Dir: compCfg.Cache}
		}
		return compress.Apply(resp, acceptEncoding, &compCfg, cache)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				newCfg, err := config.Load(flagConfig, docRoot)
				if err != nil {
					log.WithField("error", err.Error()).Error("reload: config reload failed, keeping old config")
					continue
				}
				if flagPort != 0 {
					newCfg.Port = flagPort
				}
				if err := srv.Reload(newCfg, buildRouter(newCfg)); err != nil {
					log.WithField("error", err.Error()).Error("reload: rejected")
					continue
				}
				log.Info("reload: configuration reloaded")
				continue
			}

			log.Info("shutting down")
			srv.Shutdown()
			if srv.Cfg().HTMLCache {
				listingCache.Cleanup()
			}
			os.Exit(exitClean)
		}
	}()

	log.WithField("port", cfg.Port).Info("listening")
	if err := srv.ListenAndServe(); err != nil {
		return &exitError{exitFatal, err}
	}
	return nil
}
