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
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/AleutianAI/AleutianGate/services/runtrace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(runtrace.NewNop())
	require.NoError(t, err)
	return f
}

// =============================================================================
// Token Determinism
// =============================================================================

// TestGenerateToken_Deterministic verifies that the token for a given
// value is a pure function of the value.
func TestGenerateToken_Deterministic(t *testing.T) {
	first := generateToken("123-45-6789")
	second := generateToken("123-45-6789")

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "<TOKEN_"))
	assert.True(t, strings.HasSuffix(first, ">"))
}

// TestGenerateToken_DistinctValues verifies that different values yield
// different tokens.
func TestGenerateToken_DistinctValues(t *testing.T) {
	assert.NotEqual(t, generateToken("123-45-6789"), generateToken("987-65-4321"))
}

// =============================================================================
// Masking
// =============================================================================

// TestMaskSensitiveData_SSN verifies that an SSN is replaced with a token.
func TestMaskSensitiveData_SSN(t *testing.T) {
	f := newTestFilter(t)
	ctx := context.Background()

	masked := f.MaskSensitiveData(ctx, "What is my SSN 123-45-6789?", "tx-1")

	assert.NotContains(t, masked, "123-45-6789")
	assert.Contains(t, masked, "<TOKEN_")
	assert.Equal(t, 1, f.TokenCount())
}

// TestMaskSensitiveData_AllOccurrences verifies that masking replaces
// every occurrence of a matched value, not just the matched span.
func TestMaskSensitiveData_AllOccurrences(t *testing.T) {
	f := newTestFilter(t)
	ctx := context.Background()

	masked := f.MaskSensitiveData(ctx,
		"SSN 123-45-6789 repeated: 123-45-6789", "tx-1")

	assert.NotContains(t, masked, "123-45-6789")
	assert.Equal(t, 2, strings.Count(masked, generateToken("123-45-6789")))
}

// TestMaskSensitiveData_NoSensitiveData verifies that text without
// sensitive values passes through unchanged.
func TestMaskSensitiveData_NoSensitiveData(t *testing.T) {
	f := newTestFilter(t)

	input := "What is the capital of Alaska?"
	assert.Equal(t, input, f.MaskSensitiveData(context.Background(), input, "tx-1"))
	assert.Equal(t, 0, f.TokenCount())
}

// TestMaskSensitiveData_MultiplePatternKinds verifies that SSNs, card
// numbers, and bank accounts are all tokenized.
func TestMaskSensitiveData_MultiplePatternKinds(t *testing.T) {
	f := newTestFilter(t)

	masked := f.MaskSensitiveData(context.Background(),
		"SSN 123-45-6789 card 1111-2222-3333-4444 account 123456789012", "tx-1")

	assert.NotContains(t, masked, "123-45-6789")
	assert.NotContains(t, masked, "1111-2222-3333-4444")
	assert.NotContains(t, masked, "123456789012")
}

// =============================================================================
// Round Trip
// =============================================================================

// TestUnmask_RoundTrip verifies unmask(mask(T)) == T.
func TestUnmask_RoundTrip(t *testing.T) {
	f := newTestFilter(t)
	ctx := context.Background()

	input := "My SSN is 123-45-6789 and my card is 1111-2222-3333-4444."
	masked := f.MaskSensitiveData(ctx, input, "tx-1")
	require.NotEqual(t, input, masked)

	assert.Equal(t, input, f.UnmaskSensitiveData(ctx, masked, "tx-1"))
}

// TestUnmask_NoTokens verifies that unmasking token-free text returns it
// unchanged.
func TestUnmask_NoTokens(t *testing.T) {
	f := newTestFilter(t)

	input := "Nothing to restore here."
	assert.Equal(t, input, f.UnmaskSensitiveData(context.Background(), input, "tx-1"))
}

// TestUnmask_CrossTransaction verifies that a token minted in one
// transaction resolves when unmasked in another. The token map is
// process-wide by design.
func TestUnmask_CrossTransaction(t *testing.T) {
	f := newTestFilter(t)
	ctx := context.Background()

	masked := f.MaskSensitiveData(ctx, "SSN 123-45-6789", "tx-1")
	restored := f.UnmaskSensitiveData(ctx, masked, "tx-2")

	assert.Contains(t, restored, "123-45-6789")
}

// =============================================================================
// Concurrency and Bounds
// =============================================================================

// TestFilter_ConcurrentAccess exercises concurrent mask/unmask calls from
// different transactions against the shared token map.
func TestFilter_ConcurrentAccess(t *testing.T) {
	f := newTestFilter(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			txID := fmt.Sprintf("tx-%d", n)
			input := fmt.Sprintf("SSN %03d-45-6789", 100+n)
			masked := f.MaskSensitiveData(ctx, input, txID)
			restored := f.UnmaskSensitiveData(ctx, masked, txID)
			assert.Equal(t, input, restored)
		}(i)
	}
	wg.Wait()
}

// TestFilter_MaxEntries verifies the optional token map bound evicts
// rather than growing without limit.
func TestFilter_MaxEntries(t *testing.T) {
	f := newTestFilter(t)
	f.SetMaxEntries(2)
	ctx := context.Background()

	f.MaskSensitiveData(ctx, "SSN 111-11-1111", "tx-1")
	f.MaskSensitiveData(ctx, "SSN 222-22-2222", "tx-1")
	f.MaskSensitiveData(ctx, "SSN 333-33-3333", "tx-1")

	assert.Equal(t, 2, f.TokenCount())
}

// TestFilter_RemaskAfterEviction verifies that a re-masked value mints the
// identical token again, so eviction cannot corrupt a fresh round trip.
func TestFilter_RemaskAfterEviction(t *testing.T) {
	f := newTestFilter(t)
	f.SetMaxEntries(1)
	ctx := context.Background()

	first := f.MaskSensitiveData(ctx, "SSN 111-11-1111", "tx-1")
	f.MaskSensitiveData(ctx, "SSN 222-22-2222", "tx-1")
	second := f.MaskSensitiveData(ctx, "SSN 111-11-1111", "tx-2")

	assert.Equal(t, first, second)
	assert.Contains(t, f.UnmaskSensitiveData(ctx, second, "tx-2"), "111-11-1111")
}
