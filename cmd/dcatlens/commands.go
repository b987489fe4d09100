// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/openmobility/dcatlens/pkg/logging"
	"github.com/openmobility/dcatlens/pkg/ux"
)

// --- Global Command Variables ---
var (
	endpointURL  string
	profilePath  string
	workers      int
	queryTimeout int // seconds
	logLevel     string
	logJSON      bool
	noColor      bool
	jsonOutput   bool
	listenAddr   string

	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "dcatlens",
		Short: "Audit DCAT metadata catalogs against the mobilityDCAT-AP profile",
		Long: `dcatlens queries a SPARQL endpoint, resolves the catalog/dataset/
distribution/record entity graph, and reports per-property compliance
rates and controlled-vocabulary usage.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.Config{
				Level:   logging.ParseLevel(logLevel),
				JSON:    logJSON,
				Service: "dcatlens",
			})
			if noColor {
				ux.SetPlain(true)
			}
		},
	}

	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Run the full audit: compliance and vocabulary analysis",
		RunE:  runAudit, // Defined in cmd_audit.go
	}

	complianceCmd = &cobra.Command{
		Use:   "compliance",
		Short: "Run property compliance analysis only",
		RunE:  runCompliance, // Defined in cmd_audit.go
	}

	vocabCmd = &cobra.Command{
		Use:   "vocab",
		Short: "Run controlled-vocabulary analysis only",
		RunE:  runVocab, // Defined in cmd_audit.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve audit reports over HTTP",
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

// =============================================================================
// Command Registration
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVarP(&endpointURL, "endpoint", "e", "",
		"SPARQL endpoint URL (required)")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "",
		"Path to a profile YAML file (default: embedded mobilityDCAT-AP profile)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 4,
		"Concurrent property checks")
	rootCmd.PersistentFlags().IntVar(&queryTimeout, "timeout", 30,
		"Per-query timeout in seconds")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable styled terminal output")

	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().BoolVar(&jsonOutput, "json", false, "Write the report as JSON to stdout")

	rootCmd.AddCommand(complianceCmd)
	complianceCmd.Flags().BoolVar(&jsonOutput, "json", false, "Write the report as JSON to stdout")

	rootCmd.AddCommand(vocabCmd)
	vocabCmd.Flags().BoolVar(&jsonOutput, "json", false, "Write the report as JSON to stdout")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8085", "HTTP listen address")
}
