// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// QueryRequest
// =============================================================================

// TestQueryRequest_Validate covers the required and bounded fields.
func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     QueryRequest
		wantErr bool
	}{
		{
			name: "valid minimal",
			req:  QueryRequest{Query: "What is the capital of Alaska?"},
		},
		{
			name: "valid full",
			req: QueryRequest{
				Query:         "q",
				DataDomain:    "finance",
				LLMName:       "OpenAI",
				Version:       "gpt-4o-2024-08-06",
				TransactionID: "tx-1",
			},
		},
		{
			name:    "missing query",
			req:     QueryRequest{LLMName: "OpenAI"},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestQueryRequest_EnsureDefaults verifies the server generates a UUID
// transaction id only when the caller omitted one.
func TestQueryRequest_EnsureDefaults(t *testing.T) {
	req := QueryRequest{Query: "q"}
	txID := req.EnsureDefaults()

	require.NotEmpty(t, txID)
	assert.Equal(t, txID, req.TransactionID)
	_, err := uuid.Parse(txID)
	assert.NoError(t, err)

	supplied := QueryRequest{Query: "q", TransactionID: "caller-tx"}
	assert.Equal(t, "caller-tx", supplied.EnsureDefaults())
}

// TestIngestDocumentRequest_Validate verifies all three fields are
// required.
func TestIngestDocumentRequest_Validate(t *testing.T) {
	valid := IngestDocumentRequest{Content: "text", Source: "doc.txt", DataDomain: "finance"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&IngestDocumentRequest{Source: "doc.txt", DataDomain: "d"}).Validate())
	assert.Error(t, (&IngestDocumentRequest{Content: "text", DataDomain: "d"}).Validate())
	assert.Error(t, (&IngestDocumentRequest{Content: "text", Source: "doc.txt"}).Validate())
}

// =============================================================================
// FormatFlaggedCategories
// =============================================================================

// TestFormatFlaggedCategories pins the dict-literal rendering used in
// user-facing warning messages.
func TestFormatFlaggedCategories(t *testing.T) {
	assert.Equal(t, "{}", FormatFlaggedCategories(nil))
	assert.Equal(t, "{}", FormatFlaggedCategories(map[string]bool{}))

	assert.Equal(t, "{'violence': True}",
		FormatFlaggedCategories(map[string]bool{"violence": true}))

	// Keys render in sorted order regardless of map iteration order.
	assert.Equal(t, "{'hate': True, 'violence': True}",
		FormatFlaggedCategories(map[string]bool{"violence": true, "hate": true}))
}
