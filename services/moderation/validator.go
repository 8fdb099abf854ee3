// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

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
	"go.opentelemetry.io/otel/attribute"
)

// ResponseValidator re-runs the content classifier against generated
// responses to flag harmful output before it reaches the caller.
//
// Uses the same classifier as the input gate but interprets the result
// only as a harmful/not-harmful verdict plus the set of flagged
// categories. Same fail-soft contract: classifier failure yields absent
// fields, never an error.
type ResponseValidator struct {
	client   ModerationAPI
	recorder *runtrace.Recorder
	model    string
	timeout  time.Duration
}

// NewResponseValidator creates a ResponseValidator.
func NewResponseValidator(client ModerationAPI, recorder *runtrace.Recorder) *ResponseValidator {
	return &ResponseValidator{
		client:   client,
		recorder: recorder,
		model:    openai.ModerationOmniLatest,
		timeout:  defaultTimeout,
	}
}

// ValidateResponse classifies a generated response.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - responseText: The generated text to check.
//   - originalQuery: The (possibly context-augmented) query that produced
//     it; recorded for the telemetry trail only.
//   - transactionID: Correlation id; parents the telemetry run.
//
// # Outputs
//
//   - datatypes.ValidationResult: IsHarmful and FlaggedCategories are nil
//     when the classifier could not be reached; FlaggedCategories holds
//     only flagged (true) entries otherwise.
func (v *ResponseValidator) ValidateResponse(ctx context.Context, responseText, originalQuery, transactionID string) datatypes.ValidationResult {
	ctx, span := moderationTracer.Start(ctx, "ResponseValidator.ValidateResponse")
	defer span.End()

	runID := uuid.New().String()
	v.recorder.PostRun(runID, transactionID,
		fmt.Sprintf("ResponseValidation %s", transactionID),
		map[string]any{
			"response_text":  responseText,
			"original_query": originalQuery,
		},
	)

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.Moderations(ctx, openai.ModerationRequest{
		Model: v.model,
		Input: responseText,
	})
	if err != nil || len(resp.Results) == 0 {
		if err == nil {
			err = fmt.Errorf("moderation returned no results")
		}
		slog.Warn("Response validation failed, continuing with unknown verdict",
			"transaction_id", transactionID,
			"error", err,
		)
		result := datatypes.ValidationResult{}
		v.recorder.PatchRun(runID, result, err.Error())
		return result
	}

	flagged := make(map[string]bool)
	for _, flag := range categoryFlags(resp.Results[0].Categories) {
		if flag.Flagged {
			flagged[flag.Name] = true
		}
	}
	isHarmful := len(flagged) > 0

	span.SetAttributes(
		attribute.Bool("validation.is_harmful", isHarmful),
		attribute.Int("validation.flagged_count", len(flagged)),
	)

	result := datatypes.ValidationResult{
		IsHarmful:         &isHarmful,
		FlaggedCategories: flagged,
	}
	v.recorder.PatchRun(runID, result, "")
	return result
}
