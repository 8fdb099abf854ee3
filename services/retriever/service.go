// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retriever provides vector-store-backed context retrieval for the
// query pipeline, plus the document ingestion path that populates the
// store.
//
// # Description
//
// Each data domain maps to its own Weaviate class. Retrieval embeds the
// query, runs a nearVector search scoped to the domain's class, and joins
// the matching chunk contents into a single context blob. Retrieval is
// fail-soft: any failure (unknown domain, store unreachable, embedding
// error) yields an empty string, logged and traced but never an error.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/AleutianAI/AleutianGate/services/runtrace"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// retrieverTracer is the OpenTelemetry tracer for retrieval operations.
var retrieverTracer = otel.Tracer("aleutian.gateway.retriever")

const (
	defaultTopK    = 4
	defaultTimeout = 30 * time.Second
)

// Service retrieves context chunks from Weaviate.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying Weaviate client handles
// connection pooling.
type Service struct {
	weaviateClient *weaviate.Client
	embedder       Embedder
	recorder       *runtrace.Recorder
	topK           int
	timeout        time.Duration
}

// NewService creates a retriever Service.
//
// # Inputs
//
//   - weaviateClient: Connected Weaviate client. Must not be nil.
//   - embedder: Embedding provider for queries and documents.
//   - recorder: Run recorder; use runtrace.NewNop() to disable telemetry.
func NewService(weaviateClient *weaviate.Client, embedder Embedder, recorder *runtrace.Recorder) *Service {
	return &Service{
		weaviateClient: weaviateClient,
		embedder:       embedder,
		recorder:       recorder,
		topK:           defaultTopK,
		timeout:        defaultTimeout,
	}
}

// ClassNameForDomain maps a data domain to its Weaviate class name.
//
// Weaviate class names must start with an uppercase letter and contain
// only word characters, so the domain is prefixed and sanitized:
// "finance" -> "Domain_finance", "hr-docs" -> "Domain_hr_docs".
func ClassNameForDomain(domain string) string {
	var sb strings.Builder
	sb.WriteString("Domain_")
	for _, r := range domain {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// RetrieveContext fetches context for a query from the given domain.
//
// # Description
//
// Embeds the query, runs a nearVector search against the domain's class,
// and joins the top chunk contents with blank lines. Returns an empty
// string on any failure; the failure is logged and recorded on the
// telemetry run but never surfaced as an error.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing. A bounded timeout is
//     applied internally.
//   - query: The user's question.
//   - domain: Data domain naming the retrieval index.
//   - transactionID: Correlation id; parents the telemetry run.
//
// # Outputs
//
//   - string: The retrieved context, or "" when nothing could be fetched.
func (s *Service) RetrieveContext(ctx context.Context, query, domain, transactionID string) string {
	ctx, span := retrieverTracer.Start(ctx, "Service.RetrieveContext")
	defer span.End()
	span.SetAttributes(attribute.String("retriever.domain", domain))

	runID := uuid.New().String()
	s.recorder.PostRun(runID, transactionID,
		fmt.Sprintf("RetrieverService %s", transactionID),
		map[string]any{"query": query, "domain": domain},
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contextText, err := s.search(ctx, query, domain)
	if err != nil {
		slog.Warn("Context retrieval failed, continuing without context",
			"transaction_id", transactionID,
			"domain", domain,
			"error", err,
		)
		s.recorder.PatchRun(runID, map[string]any{"context": ""}, err.Error())
		return ""
	}

	span.SetAttributes(attribute.Int("retriever.context_length", len(contextText)))
	s.recorder.PatchRun(runID, map[string]any{"context": contextText}, "")
	return contextText
}

// search embeds the query and runs the nearVector lookup.
func (s *Service) search(ctx context.Context, query, domain string) (string, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	className := ClassNameForDomain(domain)
	nearVector := s.weaviateClient.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	result, err := s.weaviateClient.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(s.topK).
		WithFields(graphql.Field{Name: "content"}).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("weaviate query failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("weaviate query error: %s", result.Errors[0].Message)
	}

	return joinChunkContents(result.Data, className), nil
}

// joinChunkContents extracts chunk content strings from a GraphQL Get
// response and joins them with blank lines. Unexpected shapes yield "".
func joinChunkContents(data map[string]models.JSONObject, className string) string {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return ""
	}
	rows, ok := get[className].([]interface{})
	if !ok {
		return ""
	}

	var chunks []string
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		if content, ok := props["content"].(string); ok && content != "" {
			chunks = append(chunks, content)
		}
	}
	return strings.Join(chunks, "\n\n")
}
