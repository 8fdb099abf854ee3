// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianGate/services/gateway/handlers"
	"github.com/AleutianAI/AleutianGate/services/gateway/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the gateway's HTTP surface.
//
// ingester may be nil when no vector store is configured; the ingestion
// endpoint is then not registered.
func SetupRoutes(router *gin.Engine, pipeline *services.QueryPipeline,
	ingester handlers.DocumentIngester, enableMetrics bool) {

	router.GET("/health", handlers.HealthCheck)
	router.POST("/query", handlers.HandleQuery(pipeline))

	if enableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		if ingester != nil {
			v1.POST("/documents", handlers.HandleIngestDocument(ingester))
		}
	}
}
