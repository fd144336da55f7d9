// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/candorlabs-ai/northstar/pkg/logging"
	"github.com/candorlabs-ai/northstar/services/advisor"
	"github.com/spf13/cobra"
)

// runServe starts the advisor HTTP service and blocks until it exits.
//
// Logging is configured before anything else so service construction
// failures are reported through the same sinks as runtime logs.
func runServe(cmd *cobra.Command, args []string) {
	var opts []logging.Option
	if logDir != "" {
		opts = append(opts, logging.WithDir(logDir))
	}
	if logJSON {
		opts = append(opts, logging.WithJSON())
	}
	if logsQuiet {
		opts = append(opts, logging.WithQuiet())
	}
	logger, err := logging.New("advisor", opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging setup:", err)
		os.Exit(1)
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	cfg := advisor.FromEnv()
	logger.Info("starting advisor service",
		"port", cfg.Port,
		"weaviate_url", cfg.WeaviateURL,
		"badger_in_memory", cfg.BadgerInMemory,
	)

	svc, err := advisor.New(cfg, nil)
	if err != nil {
		logger.Error("failed to create advisor service", "error", err)
		logger.Close()
		os.Exit(1)
	}

	if err := svc.Run(); err != nil {
		logger.Error("advisor service exited", "error", err)
		logger.Close()
		os.Exit(1)
	}
}
