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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianGate/services/runtrace"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateResponse_Clean verifies a clean response is not harmful and
// carries an empty flagged set.
func TestValidateResponse_Clean(t *testing.T) {
	mock := &mockModerationAPI{resp: cleanResponse()}
	v := NewResponseValidator(mock, runtrace.NewNop())

	result := v.ValidateResponse(context.Background(), "fine answer", "query", "tx-1")

	require.NotNil(t, result.IsHarmful)
	assert.False(t, *result.IsHarmful)
	assert.Empty(t, result.FlaggedCategories)
	assert.Equal(t, "fine answer", mock.lastInput)
}

// TestValidateResponse_Harmful verifies flagged categories surface as a
// true-only map and set the harmful verdict.
func TestValidateResponse_Harmful(t *testing.T) {
	mock := &mockModerationAPI{
		resp: openai.ModerationResponse{
			Results: []openai.Result{{
				Flagged: true,
				Categories: openai.ResultCategories{
					Violence: true,
					Hate:     true,
				},
			}},
		},
	}
	v := NewResponseValidator(mock, runtrace.NewNop())

	result := v.ValidateResponse(context.Background(), "bad answer", "query", "tx-1")

	require.NotNil(t, result.IsHarmful)
	assert.True(t, *result.IsHarmful)
	assert.Equal(t, map[string]bool{"violence": true, "hate": true}, result.FlaggedCategories)
}

// TestValidateResponse_TransportError verifies the fail-soft contract:
// absent verdict, no panic, no error surfaced.
func TestValidateResponse_TransportError(t *testing.T) {
	mock := &mockModerationAPI{err: errors.New("timeout")}
	v := NewResponseValidator(mock, runtrace.NewNop())

	result := v.ValidateResponse(context.Background(), "answer", "query", "tx-1")

	assert.Nil(t, result.IsHarmful)
	assert.Nil(t, result.FlaggedCategories)
}
