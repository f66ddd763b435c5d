/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunReturnsExitMissingForAbsentDocRoot(t *testing.T) {
	oldConfig, oldPort := flagConfig, flagPort
	defer func() { flagConfig, flagPort = oldConfig, oldPort }()
	flagConfig, flagPort = "", 0

	err := run(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
	ee, ok := err.(*exitError)
	assert.True(t, ok)
	assert.Equal(t, exitMissing, ee.code)
}

func TestRunReturnsExitFatalForBadConfigFile(t *testing.T) {
	oldConfig, oldPort := flagConfig, flagPort
	defer func() { flagConfig, flagPort = oldConfig, oldPort }()
	flagConfig, flagPort = filepath.Join(t.TempDir(), "missing.conf"), 0

	err := run(t.TempDir())
	assert.Error(t, err)
	ee, ok := err.(*exitError)
	assert.True(t, ok)
	assert.Equal(t, exitFatal, ee.code)
}
