// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the request and response shapes exchanged at the
// gateway's HTTP boundary and between pipeline components.
//
// All optional response fields are modeled as pointers so that "absent"
// (a collaborator failed or was skipped) is distinguishable from a real
// zero value. A safety score of 0 means the classifier flagged everything;
// a nil safety score means the classifier could not be reached.
package datatypes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// queryValidate is the validator instance for query datatypes.
// Initialized in init().
var queryValidate *validator.Validate

func init() {
	queryValidate = validator.New()
}

// =============================================================================
// Request Types
// =============================================================================

// QueryRequest is the body of POST /query.
//
// # Description
//
// Carries one natural-language query through the moderation, retrieval,
// masking, invocation, and validation pipeline.
//
// # Fields
//
//   - Query: The user's question. Required.
//   - DataDomain: Optional retrieval index name. When set, context is
//     retrieved from the vector store before invocation.
//   - LLMName: Target model provider name (e.g. "OpenAI", "Claude").
//   - Version: Target model version string.
//   - TransactionID: Optional correlation id. Generated server-side when
//     omitted; threaded through every downstream call and used as the root
//     of the telemetry run tree.
type QueryRequest struct {
	Query         string `json:"query" validate:"required,min=1,max=32768"`
	DataDomain    string `json:"data_domain" validate:"omitempty,max=128"`
	LLMName       string `json:"llm_name" validate:"omitempty,max=128"`
	Version       string `json:"version" validate:"omitempty,max=128"`
	TransactionID string `json:"transaction_id" validate:"omitempty,max=128"`
}

// EnsureDefaults populates the transaction id when the caller omitted it.
// Returns the effective transaction id.
func (r *QueryRequest) EnsureDefaults() string {
	if r.TransactionID == "" {
		r.TransactionID = uuid.New().String()
	}
	return r.TransactionID
}

// Validate checks the request against its validation tags.
func (r *QueryRequest) Validate() error {
	if err := queryValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid query request: %w", err)
	}
	return nil
}

// IngestDocumentRequest is the body of POST /v1/documents.
//
// Content is split into chunks, embedded, and stored in the vector store
// class named after DataDomain so later queries can retrieve it.
type IngestDocumentRequest struct {
	Content    string `json:"content" validate:"required,min=1"`
	Source     string `json:"source" validate:"required,min=1,max=512"`
	DataDomain string `json:"data_domain" validate:"required,min=1,max=128"`
}

// Validate checks the ingest request against its validation tags.
func (r *IngestDocumentRequest) Validate() error {
	if err := queryValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid ingest request: %w", err)
	}
	return nil
}

// =============================================================================
// Component Results
// =============================================================================

// ModerationResult is the normalized outcome of one moderation gate check.
//
// SafetyScore is the fraction of classifier categories that were NOT
// flagged, in [0,1]; 1.0 when the classifier reported zero categories.
// BiasScore is 0.1 when anything was flagged, else 0.0 (a coarse
// placeholder, not a calibrated model). Both are nil when the classifier
// could not be reached; Feedback then carries the transport error.
type ModerationResult struct {
	SafetyScore *float64 `json:"safety_score"`
	BiasScore   *float64 `json:"bias_score"`
	Feedback    string   `json:"feedback"`
}

// ValidationResult is the outcome of re-moderating a generated response.
//
// IsHarmful is nil when the classifier could not be reached.
// FlaggedCategories holds only the categories that were flagged (all
// values are true); it is nil on classifier failure.
type ValidationResult struct {
	IsHarmful         *bool           `json:"is_harmful"`
	FlaggedCategories map[string]bool `json:"flagged_categories"`
}

// UsageMetadata is the token accounting returned by a model invocation.
type UsageMetadata struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// =============================================================================
// Response Types
// =============================================================================

// QueryResponse is the body returned by POST /query.
//
// UsageMetadata and ValidationResult are nil on the unsafe-query branch
// and when no model was invoked. SafetyScore and BiasScore are nil when
// the moderation gate itself failed.
type QueryResponse struct {
	Response         string            `json:"response"`
	UsageMetadata    *UsageMetadata    `json:"usage_metadata"`
	TimeTaken        string            `json:"time_taken"`
	LLMUsed          string            `json:"llm_used"`
	SafetyScore      *float64          `json:"safety_score"`
	BiasScore        *float64          `json:"bias_score"`
	Feedback         string            `json:"feedback"`
	ValidationResult *ValidationResult `json:"validation_result"`
}

// FormatFlaggedCategories renders a flagged-category map in the
// dict-literal form embedded in user-facing warning messages, e.g.
// {'violence': True}. Keys are sorted for a stable rendering.
func FormatFlaggedCategories(categories map[string]bool) string {
	if len(categories) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(categories))
	for k := range categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("'%s': True", k))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
