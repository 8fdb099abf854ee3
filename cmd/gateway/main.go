// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gateway starts the AleutianGate HTTP server.
//
// This is the main entry point for the containerized gateway service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - GATEWAY_PORT: HTTP server port (default: 12230)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//   - OPENAI_API_KEY: OpenAI credential (moderation, embeddings, GPT models)
//   - ANTHROPIC_API_KEY: Anthropic credential (Claude models)
//   - LANGSMITH_API_KEY: Runs API credential (run tracing; optional)
//   - TOKEN_MAP_MAX_ENTRIES: Bound on the privacy token map (default: unbounded)
//
// # Usage
//
//	# Build
//	go build -o gateway ./cmd/gateway
//
//	# Run
//	./gateway
//
//	# Or via container
//	podman-compose up gateway
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/AleutianGate/services/gateway"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := gateway.Config{
		Port:               getEnvInt("GATEWAY_PORT", 12230),
		WeaviateURL:        os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:       getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		TokenMapMaxEntries: getEnvInt("TOKEN_MAP_MAX_ENTRIES", 0),
	}

	slog.Info("Starting gateway",
		"port", cfg.Port,
		"weaviate_url", cfg.WeaviateURL,
		"otel_endpoint", cfg.OTelEndpoint,
	)

	svc, err := gateway.New(cfg)
	if err != nil {
		log.Fatalf("failed to create gateway service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("gateway server error: %v", err)
	}
}

// getEnvString reads an environment variable with a fallback default.
func getEnvString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt reads an integer environment variable with a fallback default.
func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer environment variable, using default",
			"key", key, "value", value, "default", fallback)
		return fallback
	}
	return parsed
}
