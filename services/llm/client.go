// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides chat-completion clients for the supported model
// providers and a static registry mapping (provider, version) pairs to
// pre-configured clients.
package llm

import (
	"context"

	"github.com/AleutianAI/AleutianGate/services/gateway/datatypes"
)

// Completion is the result of one model invocation.
type Completion struct {
	Content string                  `json:"content"`
	Usage   datatypes.UsageMetadata `json:"usage"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Invoke sends a single-turn prompt to the model and returns its
	// completion with usage metadata.
	Invoke(ctx context.Context, prompt string) (*Completion, error)
}
