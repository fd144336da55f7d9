// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package advisor assembles the Northstar advisor service.
//
// This package wires the pure engines (gate scoring, conversation stages,
// strategic analysis) to their external collaborators: the Weaviate evidence
// store, the Badger session store, the OpenAI crew runner, and the HTTP
// surface. Every collaborator is optional - a bare `advisor.New(Config{},
// nil)` yields a fully working local service with in-process fallbacks.
//
// # Deployment Integration
//
// The service supports dependency injection via extensions.ServiceOptions.
// Hosted deployments provide an AuthProvider; the default authenticates
// every request as "local-user".
//
// # Usage
//
//	cfg := advisor.FromEnv()
//	svc, err := advisor.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/candorlabs-ai/northstar/pkg/extensions"
	"github.com/candorlabs-ai/northstar/services/advisor/analysis"
	"github.com/candorlabs-ai/northstar/services/advisor/capability"
	"github.com/candorlabs-ai/northstar/services/advisor/config"
	"github.com/candorlabs-ai/northstar/services/advisor/conversation"
	"github.com/candorlabs-ai/northstar/services/advisor/middleware"
	"github.com/candorlabs-ai/northstar/services/advisor/observability"
	"github.com/candorlabs-ai/northstar/services/advisor/routes"
	"github.com/candorlabs-ai/northstar/services/advisor/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the advisor lifecycle contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	// Callers must not modify the routing table.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds advisor service configuration. Zero values use defaults
// applied by New(); FromEnv() populates it from the environment.
type Config = config.Config

// FromEnv loads configuration from a .env file plus the environment.
func FromEnv() Config {
	return config.Load()
}

// =============================================================================
// Implementation
// =============================================================================

// service coordinates the engines, stores, middleware, and routing.
// All fields are read-only after New() returns.
type service struct {
	config Config
	opts   extensions.ServiceOptions
	router *gin.Engine

	sessions        capability.SessionStore
	weaviateClient  *weaviate.Client
	criteriaWatcher *config.CriteriaWatcher
	tracerCleanup   func(context.Context)
	runnerLive      bool
}

// New creates a ready-to-run advisor Service.
//
// # Description
//
// Initialization steps, each optional except the session store:
//  1. OTLP tracing when an endpoint is configured.
//  2. Prometheus metrics.
//  3. Weaviate client (evidence + semantic search); absence means
//     lightweight mode, not failure.
//  4. Badger session store (in-memory when configured).
//  5. Gate criteria override file with hot reload.
//  6. OpenAI crew runner; absence means fallback analyses.
//
// If opts is nil, DefaultOptions() is used.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
		if s.config.APIToken != "" {
			s.opts = s.opts.WithAuth(&extensions.StaticTokenProvider{Token: s.config.APIToken})
		}
	}

	if s.config.OTLPEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	metrics := observability.InitMetrics()

	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, running in lightweight mode", "error", err)
	}

	sessions, err := s.initSessionStore()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	s.sessions = sessions

	criteria, err := s.initCriteria()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to load gate criteria: %w", err)
	}

	analysisEngine := s.initAnalysisEngine()

	var evidenceRepo capability.EvidenceRepository
	var insightSearch capability.SemanticSearch
	if s.weaviateClient != nil {
		evidenceRepo = store.NewWeaviateEvidence(s.weaviateClient)
		insightSearch = store.NewWeaviateSearch(s.weaviateClient)
	}

	deps := routes.Deps{
		ConversationEngine: conversation.NewEngine(),
		AnalysisEngine:     analysisEngine,
		EvidenceRepo:       evidenceRepo,
		InsightSearch:      insightSearch,
		Sessions:           s.sessions,
		Criteria:           criteria,
		Metrics:            metrics,
		Limiter:            middleware.NewRateLimiter(nil, nil),
		Auth:               s.opts.AuthProvider,
		SessionTTL:         s.config.SessionTTL,
		AnalysisTTL:        s.config.AnalysisTTL,
		Capabilities: map[string]bool{
			"evidence_store":  evidenceRepo != nil,
			"semantic_search": insightSearch != nil,
			"crew_runner":     s.runnerLive,
			"trace_export":    s.tracerCleanup != nil,
		},
	}

	s.initRouter(deps)
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.cleanup()

	slog.Info("Starting advisor server", "port", s.config.Port)
	return s.router.Run(":" + s.config.Port)
}

// Router returns the configured Gin engine for integration tests.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = "12310"
	}
	if cfg.BadgerPath == "" {
		cfg.BadgerPath = "./data/sessions"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.AnalysisTTL == 0 {
		cfg.AnalysisTTL = 7 * 24 * time.Hour
	}
	if cfg.WebSearchResults == 0 {
		cfg.WebSearchResults = 5
	}
	return cfg
}

// initTracer sets up the OTLP trace exporter.
// Uses an insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTLPEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("northstar-advisor")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

// initWeaviate creates the Weaviate client when a URL is configured.
// An empty URL is lightweight mode, not an error.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, running in lightweight mode")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	s.weaviateClient, err = weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	slog.Info("Weaviate client initialized", "url", weaviateURL)
	return nil
}

func (s *service) initSessionStore() (capability.SessionStore, error) {
	if s.config.BadgerInMemory {
		return store.NewInMemorySessionStore()
	}
	return store.NewBadgerSessionStore(store.DefaultBadgerConfig(s.config.BadgerPath))
}

func (s *service) initCriteria() (config.CriteriaSource, error) {
	if s.config.CriteriaPath == "" {
		return config.StaticCriteria(nil), nil
	}
	watcher, err := config.NewCriteriaWatcher(s.config.CriteriaPath)
	if err != nil {
		return nil, err
	}
	s.criteriaWatcher = watcher
	slog.Info("gate criteria overrides active", "path", s.config.CriteriaPath)
	return watcher, nil
}

func (s *service) initAnalysisEngine() *analysis.Engine {
	runner, err := analysis.NewOpenAIRunner()
	if err != nil {
		slog.Warn("crew runner unavailable, analyses will use fallback", "error", err)
		return analysis.NewEngine(nil)
	}

	if desk, err := store.NewDuckDuckGoSearch(s.config.WebSearchResults); err != nil {
		slog.Warn("desk research unavailable", "error", err)
	} else {
		runner = runner.WithDeskResearch(desk)
	}

	s.runnerLive = true
	return analysis.NewEngine(runner)
}

func (s *service) initRouter(deps routes.Deps) {
	router := gin.Default()
	router.Use(otelgin.Middleware("northstar-advisor"))
	routes.SetupRoutes(router, deps)
	s.router = router
}

// cleanup releases resources held by the service. Called when Run() exits
// or on a failed initialization.
func (s *service) cleanup() {
	if s.criteriaWatcher != nil {
		if err := s.criteriaWatcher.Close(); err != nil {
			slog.Warn("criteria watcher close error", "error", err)
		}
	}
	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			slog.Warn("session store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
