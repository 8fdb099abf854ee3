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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/AleutianGate/services/gateway/datatypes"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopIngester struct{}

func (nopIngester) IngestDocument(_ context.Context, _ datatypes.IngestDocumentRequest) (int, error) {
	return 0, nil
}

func registeredRoutes(router *gin.Engine) map[string]bool {
	routes := make(map[string]bool)
	for _, r := range router.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	return routes
}

// TestSetupRoutes_FullSurface verifies the route table with metrics and an
// ingester configured.
func TestSetupRoutes_FullSurface(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, nil, nopIngester{}, true)

	routes := registeredRoutes(router)
	assert.True(t, routes["GET /health"])
	assert.True(t, routes["POST /query"])
	assert.True(t, routes["GET /metrics"])
	assert.True(t, routes["POST /v1/documents"])
}

// TestSetupRoutes_MinimalSurface verifies metrics and ingestion are absent
// when not configured.
func TestSetupRoutes_MinimalSurface(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, nil, nil, false)

	routes := registeredRoutes(router)
	assert.True(t, routes["GET /health"])
	assert.True(t, routes["POST /query"])
	assert.False(t, routes["GET /metrics"])
	assert.False(t, routes["POST /v1/documents"])
}

// TestSetupRoutes_HealthServes verifies the health endpoint responds
// without any backing services.
func TestSetupRoutes_HealthServes(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, nil, nil, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
