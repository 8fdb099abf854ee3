// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package privacy

import (
	"testing"

	"github.com/AleutianAI/AleutianGate/services/privacy/patterns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestEmbeddedPatterns_Load verifies the embedded pattern file parses and
// compiles, and that the declaration order survives loading. Masking
// applies patterns in file order, so order is load-bearing.
func TestEmbeddedPatterns_Load(t *testing.T) {
	var pf PatternFile
	require.NoError(t, yaml.Unmarshal(patterns.SensitiveDataPatterns, &pf))
	require.NoError(t, pf.CompileRegexes())

	require.Len(t, pf.Patterns, 3)
	assert.Equal(t, "SSN", pf.Patterns[0].Name)
	assert.Equal(t, "Credit Card", pf.Patterns[1].Name)
	assert.Equal(t, "Bank Account", pf.Patterns[2].Name)
}

// TestEmbeddedPatterns_Match spot-checks each compiled expression against
// a known-shape value.
func TestEmbeddedPatterns_Match(t *testing.T) {
	var pf PatternFile
	require.NoError(t, yaml.Unmarshal(patterns.SensitiveDataPatterns, &pf))
	require.NoError(t, pf.CompileRegexes())

	tests := []struct {
		name  string
		value string
	}{
		{"SSN", "123-45-6789"},
		{"Credit Card", "1111-2222-3333-4444"},
		{"Bank Account", "123456789012"},
	}
	for i, tc := range tests {
		assert.True(t, pf.Patterns[i].compiled.MatchString(tc.value),
			"pattern %q should match %q", tc.name, tc.value)
	}
}

// TestCompileRegexes_Invalid verifies a malformed expression is rejected.
func TestCompileRegexes_Invalid(t *testing.T) {
	pf := PatternFile{Patterns: []MaskPattern{{Name: "Bad", Regex: "("}}}
	assert.Error(t, pf.CompileRegexes())
}
