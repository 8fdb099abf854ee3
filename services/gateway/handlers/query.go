// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gateway's HTTP handlers.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianGate/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianGate/services/gateway/services"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var queryTracer = otel.Tracer("aleutian.gateway.handlers")

// HandleQuery serves POST /query.
//
// # Description
//
// Binds and validates the request body, then hands it to the pipeline.
// Malformed or invalid bodies are a 400. Unsafe queries and unresolvable
// models are normal 200 responses with synthesized text. Only unexpected
// pipeline failures surface as a 500 with {"detail": <message>}.
func HandleQuery(pipeline *services.QueryPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleQuery")
		defer span.End()

		var req datatypes.QueryRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the query request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}

		resp, err := pipeline.Process(ctx, &req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Query pipeline failed",
				"transaction_id", req.TransactionID,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HealthCheck serves GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
