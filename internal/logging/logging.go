/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package logging builds the server's single, thread-safe, append-only
// log sink. logrus.Logger already serializes whole records under its
// own mutex, which is what §5 requires ("log writes ... never
// mid-line"), so there is no need for a second lock here.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New opens path (or stdout, when toStdout is set per the -v flag)
// and returns a logger formatted the way the rest of the pack's
// services format theirs: a plain text formatter with explicit
// timestamps, one line per record.
func New(path string, toStdout bool) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z0700",
	})

	var out io.Writer
	if toStdout {
		out = os.Stdout
	} else {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: cannot open %s: %w", path, err)
		}
		out = f
	}
	log.SetOutput(out)
	return log, nil
}

// Access logs one line per completed request, per §7: status, method,
// and URL, for every request that reaches a response.
func Access(log *logrus.Logger, method, url string, status int, bytes int64, remote string) {
	log.WithFields(logrus.Fields{
		"method": method,
		"path":   url,
		"status": status,
		"bytes":  bytes,
		"remote": remote,
	}).Info("request")
}
