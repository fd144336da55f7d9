// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads advisor configuration from the environment.
//
// A .env file in the working directory is applied first (values already in
// the environment win), then each setting falls back to a default when the
// variable is unset. Gate criteria overrides live in a separate YAML file
// watched for changes at runtime; see criteria.go.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all advisor runtime settings.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// WeaviateURL is the full URL of the Weaviate instance. Empty runs the
	// advisor in lightweight mode without evidence or semantic search.
	WeaviateURL string

	// BadgerPath is the on-disk session store location.
	BadgerPath string

	// BadgerInMemory switches the session store to in-memory mode.
	BadgerInMemory bool

	// SessionTTL is how long conversation sessions live without activity.
	SessionTTL time.Duration

	// AnalysisTTL is how long completed analysis records are retained.
	AnalysisTTL time.Duration

	// CriteriaPath is an optional YAML file overriding gate criteria per
	// stage. Empty disables overrides.
	CriteriaPath string

	// APIToken enables static bearer auth when non-empty. Empty keeps the
	// no-op provider, which authenticates every request as "local-user".
	APIToken string

	// OTLPEndpoint is the OpenTelemetry collector address for traces.
	// Empty disables trace export.
	OTLPEndpoint string

	// WebSearchResults caps results per desk research query.
	WebSearchResults int
}

// Load reads configuration from a .env file plus the environment.
//
// The .env file is optional; a missing file is not an error. Every setting
// has a default suitable for local development.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "error", err)
	}

	return Config{
		Port:             getEnv("ADVISOR_PORT", "12310"),
		WeaviateURL:      getEnv("WEAVIATE_SERVICE_URL", ""),
		BadgerPath:       getEnv("ADVISOR_BADGER_PATH", "./data/sessions"),
		BadgerInMemory:   getEnvBool("ADVISOR_BADGER_IN_MEMORY", false),
		SessionTTL:       getEnvDuration("ADVISOR_SESSION_TTL", 24*time.Hour),
		AnalysisTTL:      getEnvDuration("ADVISOR_ANALYSIS_TTL", 7*24*time.Hour),
		CriteriaPath:     getEnv("ADVISOR_CRITERIA_PATH", ""),
		APIToken:         getEnv("ADVISOR_API_TOKEN", ""),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		WebSearchResults: getEnvInt("ADVISOR_WEB_SEARCH_RESULTS", 5),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
