// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services provides the business logic of the query gateway.
//
// This package contains the QueryPipeline, which sequences the moderation
// gate, context retrieval, privacy masking, model invocation, unmasking,
// and response validation for one transaction. Collaborators are injected
// via narrow interfaces defined here, so the pipeline is testable with
// struct mocks and services can be swapped without touching the flow.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGate/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGate/services/gateway/observability"
	"github.com/AleutianAI/AleutianGate/services/llm"
	"github.com/AleutianAI/AleutianGate/services/runtrace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// pipelineTracer is the OpenTelemetry tracer for pipeline operations.
var pipelineTracer = otel.Tracer("aleutian.gateway.services.pipeline")

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// ContentModerator gates text through the content classifier.
// Fail-soft: absent scores signal a classifier failure, never an error.
type ContentModerator interface {
	ModerateContent(ctx context.Context, query, transactionID string) datatypes.ModerationResult
}

// ContextRetriever fetches domain-scoped context for a query.
// Fail-soft: any failure yields an empty string.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query, domain, transactionID string) string
}

// PrivacyFilter masks sensitive substrings with reversible tokens and
// restores them later. Token mappings persist across transactions.
type PrivacyFilter interface {
	MaskSensitiveData(ctx context.Context, text, transactionID string) string
	UnmaskSensitiveData(ctx context.Context, text, transactionID string) string
}

// ModelResolver resolves a (provider, version) pair to a chat client.
// A miss is a valid outcome, reported via the boolean.
type ModelResolver interface {
	Lookup(name, version string) (llm.LLMClient, bool)
}

// ResponseChecker re-moderates generated output.
// Fail-soft: an absent verdict signals a classifier failure.
type ResponseChecker interface {
	ValidateResponse(ctx context.Context, responseText, originalQuery, transactionID string) datatypes.ValidationResult
}

// =============================================================================
// QueryPipeline
// =============================================================================

// QueryPipeline sequences one query through the gateway's stages.
//
// # Description
//
// The flow for each transaction:
//
//  1. Moderate the input query. A safety score below 1 or a bias score
//     above 0.1 short-circuits the whole pipeline with an "Unsafe query"
//     message - no retrieval, masking, invocation, or validation runs.
//  2. If a data domain was supplied, retrieve context and fold it into an
//     augmented prompt.
//  3. Mask the retrieved context when retrieval produced one, otherwise
//     the (augmented) query. Context is preferred over the query whenever
//     it is non-empty.
//  4. Resolve the model; a miss synthesizes a "No matching LLM found"
//     message instead of invoking.
//  5. Unmask only a real model response, never the fallback messages.
//  6. Validate the outgoing text; a harmful verdict replaces it with a
//     warning listing the flagged categories (the generated text survives
//     in telemetry only).
//
// A root telemetry run is opened at entry and closed with the final
// payload - or the error - on every path.
//
// # Thread Safety
//
// Safe for concurrent use; all per-request state is local to Process.
type QueryPipeline struct {
	moderator ContentModerator
	retriever ContextRetriever
	filter    PrivacyFilter
	models    ModelResolver
	validator ResponseChecker
	recorder  *runtrace.Recorder
	metrics   *observability.GatewayMetrics
}

// NewQueryPipeline creates a QueryPipeline with the given collaborators.
//
// # Inputs
//
//   - moderator, filter, models, validator: Required.
//   - retriever: May be nil when no vector store is configured; domain
//     queries then proceed without context, as if retrieval had failed.
//   - recorder: Run recorder; use runtrace.NewNop() to disable telemetry.
//   - metrics: May be nil (e.g. in tests); metric updates are skipped.
func NewQueryPipeline(
	moderator ContentModerator,
	retriever ContextRetriever,
	filter PrivacyFilter,
	models ModelResolver,
	validator ResponseChecker,
	recorder *runtrace.Recorder,
	metrics *observability.GatewayMetrics,
) *QueryPipeline {
	return &QueryPipeline{
		moderator: moderator,
		retriever: retriever,
		filter:    filter,
		models:    models,
		validator: validator,
		recorder:  recorder,
		metrics:   metrics,
	}
}

// Process runs one query through the pipeline.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - req: The query request. Modified in place to populate the
//     transaction id when absent.
//
// # Outputs
//
//   - *datatypes.QueryResponse: The assembled payload on every expected
//     path, including unsafe-query and no-matching-model outcomes.
//   - error: Non-nil only for unexpected failures (e.g. the model call
//     itself failing); the transport layer maps it to a 500.
func (p *QueryPipeline) Process(ctx context.Context, req *datatypes.QueryRequest) (*datatypes.QueryResponse, error) {
	ctx, span := pipelineTracer.Start(ctx, "QueryPipeline.Process")
	defer span.End()

	transactionID := req.EnsureDefaults()
	span.SetAttributes(
		attribute.String("transaction.id", transactionID),
		attribute.String("transaction.llm_name", req.LLMName),
		attribute.String("transaction.data_domain", req.DataDomain),
	)
	startTime := time.Now()

	if p.metrics != nil {
		p.metrics.ActiveQueries.Inc()
		defer p.metrics.ActiveQueries.Dec()
	}

	p.recorder.PostRun(transactionID, "",
		fmt.Sprintf("LLM Ecosystem Run %s", transactionID),
		map[string]any{
			"query":          req.Query,
			"data_domain":    req.DataDomain,
			"llm_name":       req.LLMName,
			"version":        req.Version,
			"transaction_id": transactionID,
		},
	)

	resp, outcome, err := p.run(ctx, req, transactionID, startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		p.recorder.PatchRun(transactionID, nil, err.Error())
		p.countOutcome(observability.OutcomeError)
		return nil, err
	}

	p.recorder.PatchRun(transactionID, resp, "")
	p.countOutcome(outcome)
	span.SetAttributes(attribute.String("transaction.outcome", outcome))
	return resp, nil
}

// run executes the stage sequence and assembles the response payload.
func (p *QueryPipeline) run(ctx context.Context, req *datatypes.QueryRequest, transactionID string, startTime time.Time) (*datatypes.QueryResponse, string, error) {
	moderation := timedStage(p, "moderation", func() datatypes.ModerationResult {
		return p.moderator.ModerateContent(ctx, req.Query, transactionID)
	})
	if moderation.SafetyScore == nil && p.metrics != nil {
		p.metrics.ServiceFailuresTotal.WithLabelValues("moderation").Inc()
	}

	outcome := observability.OutcomeCompleted
	var responseText string
	var usage *datatypes.UsageMetadata
	var validation *datatypes.ValidationResult

	if isUnsafe(moderation) {
		// Short-circuit: no retrieval, masking, invocation, or validation.
		slog.Info("Query rejected by moderation gate",
			"transaction_id", transactionID,
			"feedback", moderation.Feedback,
		)
		responseText = fmt.Sprintf("Unsafe query: '%s' for LLM '%s' version '%s'",
			req.Query, req.LLMName, req.Version)
		outcome = observability.OutcomeUnsafe
	} else {
		augmentedQuery := req.Query
		contextText := ""
		if req.DataDomain != "" {
			if p.retriever != nil {
				contextText = timedStage(p, "retrieval", func() string {
					return p.retriever.RetrieveContext(ctx, req.Query, req.DataDomain, transactionID)
				})
			} else {
				slog.Warn("Data domain supplied but no retriever configured",
					"transaction_id", transactionID,
					"domain", req.DataDomain,
				)
			}
			if contextText == "" && p.metrics != nil {
				p.metrics.ServiceFailuresTotal.WithLabelValues("retrieval").Inc()
			}
			augmentedQuery = fmt.Sprintf("Answer this question '''%s''' with the following context: %s",
				req.Query, contextText)
		}

		// Mask the retrieved context when there is one; the query text is
		// only masked when retrieval was skipped or came back empty.
		maskInput := augmentedQuery
		if contextText != "" {
			maskInput = contextText
		}
		maskedPrompt := timedStage(p, "masking", func() string {
			return p.filter.MaskSensitiveData(ctx, maskInput, transactionID)
		})

		client, found := p.models.Lookup(req.LLMName, req.Version)
		if found {
			invokeStart := time.Now()
			completion, err := client.Invoke(ctx, maskedPrompt)
			p.observeStage("invocation", time.Since(invokeStart))
			if err != nil {
				return nil, "", fmt.Errorf("model invocation failed: %w", err)
			}
			responseText = p.filter.UnmaskSensitiveData(ctx, completion.Content, transactionID)
			usage = &completion.Usage
		} else {
			slog.Info("No registry entry for requested model",
				"transaction_id", transactionID,
				"llm_name", req.LLMName,
				"version", req.Version,
			)
			responseText = fmt.Sprintf("No matching LLM found for '%s' version '%s'",
				req.LLMName, req.Version)
			outcome = observability.OutcomeNoModel
		}

		validationStart := time.Now()
		result := p.validator.ValidateResponse(ctx, responseText, augmentedQuery, transactionID)
		p.observeStage("validation", time.Since(validationStart))
		if result.IsHarmful == nil && p.metrics != nil {
			p.metrics.ServiceFailuresTotal.WithLabelValues("validation").Inc()
		}
		validation = &result

		if result.IsHarmful != nil && *result.IsHarmful {
			// The generated text is discarded from the user-visible payload;
			// it remains in the validation run's telemetry inputs.
			responseText = fmt.Sprintf(
				"Warning: The generated response may contain harmful or biased content. Flagged categories: %s",
				datatypes.FormatFlaggedCategories(result.FlaggedCategories))
		}
	}

	resp := &datatypes.QueryResponse{
		Response:         responseText,
		UsageMetadata:    usage,
		TimeTaken:        fmt.Sprintf("%.2f seconds", time.Since(startTime).Seconds()),
		LLMUsed:          fmt.Sprintf("%s v%s", req.LLMName, req.Version),
		SafetyScore:      moderation.SafetyScore,
		BiasScore:        moderation.BiasScore,
		Feedback:         moderation.Feedback,
		ValidationResult: validation,
	}
	return resp, outcome, nil
}

// isUnsafe applies the gate policy. Absent scores mean the classifier was
// unreachable; "unknown" passes the gate rather than masquerading as 0.
func isUnsafe(m datatypes.ModerationResult) bool {
	if m.SafetyScore != nil && *m.SafetyScore < 1 {
		return true
	}
	if m.BiasScore != nil && *m.BiasScore > 0.1 {
		return true
	}
	return false
}

// countOutcome bumps the outcome counter when metrics are enabled.
func (p *QueryPipeline) countOutcome(outcome string) {
	if p.metrics != nil {
		p.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	}
}

// observeStage records a stage latency when metrics are enabled.
func (p *QueryPipeline) observeStage(stage string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.StageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// timedStage runs fn and records its latency under the given stage label.
func timedStage[T any](p *QueryPipeline, stage string, fn func() T) T {
	start := time.Now()
	result := fn()
	p.observeStage(stage, time.Since(start))
	return result
}
