// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package moderation gates pipeline input through an external content
// classifier and re-checks generated output before it reaches the caller.
//
// # Description
//
// Both the input gate (Service) and the output check (ResponseValidator)
// call the OpenAI moderation endpoint and normalize its boolean category
// flags. Both are fail-soft: a transport or classifier failure degrades to
// a result with absent (nil) fields and never propagates an error into the
// pipeline. Callers must treat an absent score as "unknown", which is not
// the same thing as a score of zero.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGate/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGate/services/runtrace"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// moderationTracer is the OpenTelemetry tracer for moderation operations.
var moderationTracer = otel.Tracer("aleutian.gateway.moderation")

// defaultTimeout bounds a single classifier call.
const defaultTimeout = 15 * time.Second

// ModerationAPI is the narrow slice of the OpenAI client the moderation
// services depend on. *openai.Client satisfies it.
type ModerationAPI interface {
	Moderations(ctx context.Context, request openai.ModerationRequest) (openai.ModerationResponse, error)
}

// categoryFlags flattens a moderation result's category struct into an
// ordered list of (name, flagged) pairs. The order matches the classifier's
// category taxonomy and is stable across calls.
func categoryFlags(c openai.ResultCategories) []struct {
	Name    string
	Flagged bool
} {
	return []struct {
		Name    string
		Flagged bool
	}{
		{"hate", c.Hate},
		{"hate/threatening", c.HateThreatening},
		{"harassment", c.Harassment},
		{"harassment/threatening", c.HarassmentThreatening},
		{"self-harm", c.SelfHarm},
		{"self-harm/intent", c.SelfHarmIntent},
		{"self-harm/instructions", c.SelfHarmInstructions},
		{"sexual", c.Sexual},
		{"sexual/minors", c.SexualMinors},
		{"violence", c.Violence},
		{"violence/graphic", c.ViolenceGraphic},
	}
}

// =============================================================================
// Service (input gate)
// =============================================================================

// Service is the moderation gate applied to incoming queries.
//
// # Thread Safety
//
// Safe for concurrent use; it holds no mutable state of its own.
type Service struct {
	client   ModerationAPI
	recorder *runtrace.Recorder
	model    string
	timeout  time.Duration
}

// NewService creates a moderation Service.
//
// # Inputs
//
//   - client: Moderation API client. Must not be nil.
//   - recorder: Run recorder; use runtrace.NewNop() to disable telemetry.
func NewService(client ModerationAPI, recorder *runtrace.Recorder) *Service {
	return &Service{
		client:   client,
		recorder: recorder,
		model:    openai.ModerationOmniLatest,
		timeout:  defaultTimeout,
	}
}

// ModerateContent classifies query text and normalizes the result.
//
// # Description
//
// Sends the text to the moderation endpoint and converts the boolean
// category flags into:
//
//   - safety_score: non-flagged categories / total categories, or 1.0
//     when the classifier reports zero categories
//   - bias_score: 0.1 if anything was flagged, else 0.0
//   - feedback: "Unsafe content detected." or "Content is safe."
//
// On any transport or classifier failure the scores are absent and the
// feedback carries "Moderation service error: <message>". The failure is
// never propagated as an error.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing. A bounded timeout is
//     applied internally.
//   - query: Text to classify.
//   - transactionID: Correlation id; parents the telemetry run.
//
// # Outputs
//
//   - datatypes.ModerationResult: Always populated, never an error.
func (s *Service) ModerateContent(ctx context.Context, query, transactionID string) datatypes.ModerationResult {
	ctx, span := moderationTracer.Start(ctx, "Service.ModerateContent")
	defer span.End()

	runID := uuid.New().String()
	s.recorder.PostRun(runID, transactionID,
		fmt.Sprintf("ModerationService %s", transactionID),
		map[string]any{"query_to_moderate": query},
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Moderations(ctx, openai.ModerationRequest{
		Model: s.model,
		Input: query,
	})
	if err != nil || len(resp.Results) == 0 {
		if err == nil {
			err = fmt.Errorf("moderation returned no results")
		}
		slog.Warn("Moderation call failed, continuing with unknown scores",
			"transaction_id", transactionID,
			"error", err,
		)
		result := datatypes.ModerationResult{
			Feedback: fmt.Sprintf("Moderation service error: %s", err.Error()),
		}
		s.recorder.PatchRun(runID, result, "")
		return result
	}

	flags := categoryFlags(resp.Results[0].Categories)
	flaggedCount := 0
	for _, flag := range flags {
		if flag.Flagged {
			flaggedCount++
		}
	}

	safetyScore := 1.0
	if len(flags) > 0 {
		safetyScore = float64(len(flags)-flaggedCount) / float64(len(flags))
	}
	biasScore := 0.0
	feedback := "Content is safe."
	if flaggedCount > 0 {
		biasScore = 0.1
		feedback = "Unsafe content detected."
	}

	span.SetAttributes(
		attribute.Float64("moderation.safety_score", safetyScore),
		attribute.Int("moderation.flagged_count", flaggedCount),
	)

	result := datatypes.ModerationResult{
		SafetyScore: &safetyScore,
		BiasScore:   &biasScore,
		Feedback:    feedback,
	}
	s.recorder.PatchRun(runID, result, "")
	return result
}
