// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmbeddingAPI struct {
	resp openai.EmbeddingResponse
	err  error
}

func (m *mockEmbeddingAPI) CreateEmbeddings(_ context.Context, _ openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return m.resp, m.err
}

// TestEmbedDocuments verifies one vector per input, in input order.
func TestEmbedDocuments(t *testing.T) {
	e := &OpenAIEmbedder{
		client: &mockEmbeddingAPI{
			resp: openai.EmbeddingResponse{
				Data: []openai.Embedding{
					{Embedding: []float32{0.1, 0.2}},
					{Embedding: []float32{0.3, 0.4}},
				},
			},
		},
		model: openai.SmallEmbedding3,
	}

	vectors, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

// TestEmbedDocuments_CountMismatch verifies a short response is rejected
// rather than silently misaligning chunks and vectors.
func TestEmbedDocuments_CountMismatch(t *testing.T) {
	e := &OpenAIEmbedder{
		client: &mockEmbeddingAPI{
			resp: openai.EmbeddingResponse{
				Data: []openai.Embedding{{Embedding: []float32{0.1}}},
			},
		},
		model: openai.SmallEmbedding3,
	}

	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding count mismatch")
}

// TestEmbedQuery verifies the single-text path unwraps the batch call.
func TestEmbedQuery(t *testing.T) {
	e := &OpenAIEmbedder{
		client: &mockEmbeddingAPI{
			resp: openai.EmbeddingResponse{
				Data: []openai.Embedding{{Embedding: []float32{0.5}}},
			},
		},
		model: openai.SmallEmbedding3,
	}

	vector, err := e.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vector)
}

// TestEmbedQuery_TransportError verifies errors propagate.
func TestEmbedQuery_TransportError(t *testing.T) {
	e := &OpenAIEmbedder{
		client: &mockEmbeddingAPI{err: errors.New("quota exceeded")},
		model:  openai.SmallEmbedding3,
	}

	_, err := e.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
}
