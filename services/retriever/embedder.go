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
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Embedder computes vector embeddings for queries and documents.
type Embedder interface {
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds a batch of document chunks, one vector per
	// input, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// embeddingAPI is the narrow slice of the OpenAI client the embedder
// depends on. *openai.Client satisfies it.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder embeds text via the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client embeddingAPI
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder backed by the given client.
func NewOpenAIEmbedder(client *openai.Client) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: client,
		model:  openai.SmallEmbedding3,
	}
}

// EmbedQuery implements the Embedder interface.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments implements the Embedder interface.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
