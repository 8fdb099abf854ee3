// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianGate/services/gateway/datatypes"
	"github.com/gin-gonic/gin"
)

// DocumentIngester stores a document in the retrieval index of its data
// domain. Implemented by the retriever service.
type DocumentIngester interface {
	IngestDocument(ctx context.Context, req datatypes.IngestDocumentRequest) (int, error)
}

// HandleIngestDocument serves POST /v1/documents.
//
// Splits, embeds, and stores the document so later queries against the
// same data domain can retrieve it as context.
func HandleIngestDocument(ingester DocumentIngester) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.IngestDocumentRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}

		chunks, err := ingester.IngestDocument(c.Request.Context(), req)
		if err != nil {
			slog.Error("Ingestion failed", "source", req.Source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}

		slog.Info("Successfully ingested document via API",
			"source", req.Source,
			"chunks_processed", chunks,
		)
		c.JSON(http.StatusCreated, gin.H{
			"status":           "success",
			"source":           req.Source,
			"chunks_processed": chunks,
		})
	}
}
