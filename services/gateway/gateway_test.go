// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestApplyConfigDefaults verifies zero values are filled in and explicit
// values survive.
func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})

	assert.Equal(t, 12230, cfg.Port)
	assert.Equal(t, "aleutian-otel-collector:4317", cfg.OTelEndpoint)
	assert.True(t, cfg.EnableMetrics)
	assert.Empty(t, cfg.WeaviateURL)
	assert.Zero(t, cfg.TokenMapMaxEntries)
}

// TestApplyConfigDefaults_ExplicitValues verifies supplied values are not
// overwritten.
func TestApplyConfigDefaults_ExplicitValues(t *testing.T) {
	cfg := applyConfigDefaults(Config{
		Port:               9000,
		OTelEndpoint:       "collector:4317",
		WeaviateURL:        "http://weaviate:8080",
		GinMode:            "release",
		TokenMapMaxEntries: 5000,
	})

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "collector:4317", cfg.OTelEndpoint)
	assert.Equal(t, "http://weaviate:8080", cfg.WeaviateURL)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, 5000, cfg.TokenMapMaxEntries)
}
