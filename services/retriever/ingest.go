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
	"log/slog"

	"github.com/AleutianAI/AleutianGate/services/gateway/datatypes"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate/entities/models"
)

var (
	chunkSize    = 1000
	chunkOverlap = chunkSize / 10 // overlap is 10% of the chunk size
)

// IngestDocument splits a document, embeds its chunks, and stores them in
// the domain's Weaviate class.
//
// # Description
//
// Ensures the domain class exists (creating it with an external-vector
// schema if not), splits the content with a recursive character splitter,
// embeds each chunk, and writes the chunks in one batch.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - req: Validated ingest request.
//
// # Outputs
//
//   - int: Number of chunks stored.
//   - error: Non-nil if splitting, embedding, or storage fails. Unlike
//     retrieval, ingestion surfaces its errors - a silently dropped
//     document would be unrecoverable.
func (s *Service) IngestDocument(ctx context.Context, req datatypes.IngestDocumentRequest) (int, error) {
	className := ClassNameForDomain(req.DataDomain)
	if err := s.ensureClass(ctx, className); err != nil {
		return 0, fmt.Errorf("failed to ensure class %s: %w", className, err)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	chunks, err := splitter.SplitText(req.Content)
	if err != nil {
		return 0, fmt.Errorf("failed to split document: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		objects[i] = &models.Object{
			Class: className,
			Properties: map[string]interface{}{
				"content":     chunk,
				"source":      req.Source,
				"chunk_index": i,
			},
			Vector: models.C11yVector(vectors[i]),
		}
	}

	resp, err := s.weaviateClient.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch insert failed: %w", err)
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return 0, fmt.Errorf("batch insert rejected: %s", item.Result.Errors.Error[0].Message)
		}
	}

	slog.Info("Ingested document",
		"source", req.Source,
		"class", className,
		"chunks", len(chunks),
	)
	return len(chunks), nil
}

// ensureClass creates the domain class if it does not exist yet.
// Vectors are supplied externally, so the class vectorizer is "none".
func (s *Service) ensureClass(ctx context.Context, className string) error {
	exists, err := s.weaviateClient.Schema().ClassExistenceChecker().
		WithClassName(className).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("class existence check failed: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      className,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "chunk_index", DataType: []string{"int"}},
		},
	}
	if err := s.weaviateClient.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("class creation failed: %w", err)
	}
	slog.Info("Created Weaviate class", "class", className)
	return nil
}
