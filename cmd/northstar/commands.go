// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	logDir    string // optional directory for daily log files
	logJSON   bool   // JSON output on stderr
	logsQuiet bool   // suppress stderr logging

	rootCmd = &cobra.Command{
		Use:   "northstar",
		Short: "A cli to run and operate the Northstar startup advisory backend",
		Long: `Northstar guides founders through staged validation of a startup
idea: gate scoring over collected evidence, an advisory conversation
that builds an entrepreneur brief, and multi-step strategic analysis.`,
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the advisor HTTP service",
		Long: `Starts the Northstar advisor service and blocks until shutdown.

Configuration comes from environment variables:
  ADVISOR_PORT                 HTTP port (default 12310)
  WEAVIATE_SERVICE_URL         Weaviate vector DB URL (optional)
  ADVISOR_BADGER_PATH          Session store directory (default ./data/sessions)
  ADVISOR_BADGER_IN_MEMORY     Use an in-memory session store
  ADVISOR_API_TOKEN            Static bearer token for /v1 routes (optional)
  ADVISOR_CRITERIA_PATH        Gate criteria override YAML (optional)
  OTEL_EXPORTER_OTLP_ENDPOINT  Trace collector endpoint (optional)
  OPENAI_API_KEY               Enables the full analysis crew`,
		Run: runServe, // Defined in cmd_serve.go
	}

	// --- Gate Tooling ---
	gateCmd = &cobra.Command{
		Use:   "gate",
		Short: "Evaluate validation gates without a running service",
	}
	gateEvaluateCmd = &cobra.Command{
		Use:   "evaluate [evidence.json]",
		Short: "Evaluate a stage gate against an evidence JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runGateEvaluate, // Defined in cmd_gate.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write daily JSON log files to this directory")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs on stderr")
	rootCmd.PersistentFlags().BoolVar(&logsQuiet, "quiet", false, "Suppress stderr logging")

	gateEvaluateCmd.Flags().StringVar(&gateStage, "stage", "DESIRABILITY", "Gate stage to evaluate (DESIRABILITY, FEASIBILITY, VIABILITY, SCALE)")
	gateEvaluateCmd.Flags().StringVar(&gateCriteriaPath, "criteria", "", "Optional YAML file with criteria overrides")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(gateCmd)
	gateCmd.AddCommand(gateEvaluateCmd)
}
