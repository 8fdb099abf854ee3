// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway provides the core service for AleutianGate.
//
// This package contains the main Service type that coordinates all
// components of the gateway: HTTP routing, the moderation gate, vector
// retrieval, the privacy filter, the model registry, response validation,
// and observability infrastructure.
//
// # Usage
//
//	cfg := gateway.Config{Port: 12230}
//	svc, err := gateway.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGate/services/gateway/handlers"
	"github.com/AleutianAI/AleutianGate/services/gateway/observability"
	"github.com/AleutianAI/AleutianGate/services/gateway/routes"
	"github.com/AleutianAI/AleutianGate/services/gateway/services"
	"github.com/AleutianAI/AleutianGate/services/llm"
	"github.com/AleutianAI/AleutianGate/services/moderation"
	"github.com/AleutianAI/AleutianGate/services/privacy"
	"github.com/AleutianAI/AleutianGate/services/retriever"
	"github.com/AleutianAI/AleutianGate/services/runtrace"
	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
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
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the gateway service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds gateway configuration options.
//
// All fields are optional with defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12230
	Port int

	// WeaviateURL is the Weaviate vector database URL.
	// If empty, retrieval and ingestion are disabled.
	WeaviateURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses the GIN_MODE env var or "debug".
	GinMode string

	// TokenMapMaxEntries bounds the privacy filter's token map.
	// Default: 0 (unbounded, the historical behavior).
	TokenMapMaxEntries int
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// Thread-safe after construction; all fields are read-only after New()
// returns.
type service struct {
	config         Config
	router         *gin.Engine
	pipeline       *services.QueryPipeline
	retrieverSvc   *retriever.Service
	weaviateClient *weaviate.Client
	recorder       *runtrace.Recorder
	tracerCleanup  func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a gateway Service with the given configuration.
//
// # Description
//
// New initializes all gateway components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Starts the run recorder (LangSmith-compatible runs API)
//  5. Creates the shared OpenAI client (moderation, validation, embeddings)
//  6. Creates the Weaviate-backed retriever when configured
//  7. Loads the privacy filter's embedded patterns
//  8. Builds the model registry from available provider credentials
//  9. Assembles the query pipeline and HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run gateway service
//   - error: Non-nil if initialization fails
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Initialize OpenTelemetry tracer
	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Initialize Prometheus metrics
	var metrics *observability.GatewayMetrics
	if s.config.EnableMetrics {
		metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the query pipeline")
	}

	// Start the run recorder
	s.recorder = runtrace.NewRecorder(runtrace.ConfigFromEnv())

	// Shared OpenAI client for moderation, validation, and embeddings
	openaiClient := newOpenAIClient()

	// Initialize Weaviate-backed retrieval (optional)
	if err := s.initRetriever(openaiClient); err != nil {
		slog.Warn("Retriever initialization failed, running without retrieval",
			"error", err)
		// Not fatal - continue without retrieval
	}

	// Load the privacy filter
	filter, err := privacy.NewFilter(s.recorder)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize privacy filter: %w", err)
	}
	if s.config.TokenMapMaxEntries > 0 {
		filter.SetMaxEntries(s.config.TokenMapMaxEntries)
	}
	if metrics != nil {
		filter.SetSubstitutionCounter(metrics.MaskedSubstitutionsTotal)
	}

	// Assemble the pipeline
	var contextRetriever services.ContextRetriever
	if s.retrieverSvc != nil {
		contextRetriever = s.retrieverSvc
	}
	s.pipeline = services.NewQueryPipeline(
		moderation.NewService(openaiClient, s.recorder),
		contextRetriever,
		filter,
		llm.NewRegistry(),
		moderation.NewResponseValidator(openaiClient, s.recorder),
		s.recorder,
		metrics,
	)

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting gateway server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12230
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	cfg.EnableMetrics = true

	return cfg
}

// newOpenAIClient builds the shared OpenAI API client. A missing key is
// not fatal: moderation and validation then degrade to their fail-soft
// "unknown" results at call time.
func newOpenAIClient() *openai.Client {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		slog.Warn("OPENAI_API_KEY not set; moderation and embeddings will fail soft")
	}
	return openai.NewClient(apiKey)
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("gateway-service")))
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

// initRetriever initializes the Weaviate client and retriever service.
// Returns nil without configuring anything when WeaviateURL is empty.
func (s *service) initRetriever(openaiClient *openai.Client) error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, running without retrieval")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	s.retrieverSvc = retriever.NewService(
		s.weaviateClient,
		retriever.NewOpenAIEmbedder(openaiClient),
		s.recorder,
	)
	slog.Info("Weaviate retriever initialized", "url", weaviateURL)

	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("gateway-service"))

	var ingester handlers.DocumentIngester
	if s.retrieverSvc != nil {
		ingester = s.retrieverSvc
	}
	routes.SetupRoutes(s.router, s.pipeline, ingester, s.config.EnableMetrics)
}

// cleanup releases all resources held by the service.
// Called when Run() exits or on initialization failure.
func (s *service) cleanup() {
	if s.recorder != nil {
		s.recorder.Close()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
