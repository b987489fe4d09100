// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmobility/dcatlens/services/audit"
	"github.com/openmobility/dcatlens/services/audit/profile"
	"github.com/openmobility/dcatlens/services/audit/report"
	"github.com/openmobility/dcatlens/services/audit/sparql"
)

// =============================================================================
// Audit Commands
// =============================================================================

// loadProfile returns the profile from --profile, or the embedded default.
func loadProfile() (*profile.Profile, error) {
	if profilePath != "" {
		return profile.Load(profilePath)
	}
	return profile.Default()
}

// newRunner wires the SPARQL client, profile, and runner from the global
// flags.
func newRunner(checks audit.Checks) (*audit.Runner, error) {
	if endpointURL == "" {
		return nil, fmt.Errorf("--endpoint is required")
	}

	p, err := loadProfile()
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	clientConfig := sparql.DefaultClientConfig()
	clientConfig.EndpointURL = endpointURL
	clientConfig.QueryTimeout = time.Duration(queryTimeout) * time.Second
	clientConfig.Logger = logger.Slog()
	client, err := sparql.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("sparql client: %w", err)
	}

	return audit.NewRunner(audit.Config{
		Endpoint: endpointURL,
		Profile:  p,
		Querier:  client,
		Checks:   checks,
		Workers:  workers,
		Logger:   logger.Slog(),
	})
}

// runReport executes one run and writes the selected sections.
func runReport(cmd *cobra.Command, checks audit.Checks, render func(*report.Renderer, *report.Report)) error {
	runner, err := newRunner(checks)
	if err != nil {
		return err
	}

	rep, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		return report.ExportJSON(os.Stdout, rep)
	}
	render(report.NewRenderer(os.Stdout), rep)
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	return runReport(cmd, audit.ChecksAll, (*report.Renderer).Render)
}

func runCompliance(cmd *cobra.Command, args []string) error {
	return runReport(cmd, audit.ChecksCompliance, (*report.Renderer).RenderCompliance)
}

func runVocab(cmd *cobra.Command, args []string) error {
	return runReport(cmd, audit.ChecksVocabulary, (*report.Renderer).RenderVocabulary)
}
