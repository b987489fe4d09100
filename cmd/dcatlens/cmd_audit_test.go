// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmobility/dcatlens/pkg/logging"
	"github.com/openmobility/dcatlens/services/audit"
)

// resetFlags restores the flag globals after a test mutates them.
func resetFlags(t *testing.T) {
	t.Helper()
	origEndpoint, origProfile := endpointURL, profilePath
	origLogger := logger
	logger = logging.Default()
	t.Cleanup(func() {
		endpointURL, profilePath = origEndpoint, origProfile
		logger = origLogger
	})
}

func TestNewRunnerRequiresEndpoint(t *testing.T) {
	resetFlags(t)
	endpointURL = ""

	_, err := newRunner(audit.ChecksAll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--endpoint")
}

func TestNewRunnerWithDefaults(t *testing.T) {
	resetFlags(t)
	endpointURL = "http://localhost:8890/sparql"
	profilePath = ""

	runner, err := newRunner(audit.ChecksAll)
	require.NoError(t, err)
	assert.NotNil(t, runner)
}

func TestNewRunnerWithProfileOverride(t *testing.T) {
	resetFlags(t)
	endpointURL = "http://localhost:8890/sparql"

	path := filepath.Join(t.TempDir(), "profile.yaml")
	doc := `name: custom
classes:
  datasets:
    mandatory:
      - http://purl.org/dc/terms/title
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	profilePath = path

	runner, err := newRunner(audit.ChecksCompliance)
	require.NoError(t, err)
	assert.NotNil(t, runner)
}

func TestNewRunnerRejectsBadProfile(t *testing.T) {
	resetFlags(t)
	endpointURL = "http://localhost:8890/sparql"
	profilePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := newRunner(audit.ChecksAll)
	assert.Error(t, err)
}
