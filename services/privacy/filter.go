// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package privacy masks sensitive substrings with reversible opaque tokens
// before text leaves the process, and reverses the substitution afterwards.
//
// # Description
//
// Detection rules live in an embedded YAML file (see the patterns
// subpackage) and are applied in declaration order. Every match is replaced
// globally - every occurrence of the matched substring, not just the
// matched span - with a deterministic token derived from a sha1 of the
// substring. Identical values therefore always map to the same token, in
// this transaction or any other; the token map is content-addressed and
// process-wide.
//
// # Thread Safety
//
// Filter is safe for concurrent use; the token map is mutex-guarded.
package privacy

import (
	"context"
	"crypto/sha1"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianGate/services/privacy/patterns"
	"github.com/AleutianAI/AleutianGate/services/runtrace"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"
)

// privacyTracer is the OpenTelemetry tracer for privacy filter operations.
var privacyTracer = otel.Tracer("aleutian.gateway.privacy")

// Filter detects and tokenizes sensitive data.
//
// # Fields
//
//   - patterns: Compiled detection rules in declaration order.
//   - tokenMap: token -> original substring. Shared across transactions
//     for the lifetime of the process; unmasking replays the full history,
//     so tokens minted in one transaction resolve in any other.
//   - maxEntries: Optional bound on the token map. 0 means unbounded
//     (the historical behavior). When the bound is hit an arbitrary entry
//     is evicted; tokens are content-addressed, so a re-masked value mints
//     the identical token again.
type Filter struct {
	mu       sync.RWMutex
	tokenMap map[string]string

	patterns     []MaskPattern
	recorder     *runtrace.Recorder
	maxEntries   int
	maskedTotal  prometheus.Counter
}

// NewFilter creates a Filter from the embedded pattern file.
//
// # Inputs
//
//   - recorder: Run recorder for mask/unmask telemetry. Must not be nil;
//     use runtrace.NewNop() when telemetry is not wanted.
//
// # Outputs
//
//   - *Filter: Ready to use.
//   - error: Non-nil if the embedded YAML is malformed or a regex does
//     not compile.
func NewFilter(recorder *runtrace.Recorder) (*Filter, error) {
	var file PatternFile
	if err := yaml.Unmarshal(patterns.SensitiveDataPatterns, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded pattern file: %w", err)
	}
	if err := file.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a pattern: %w", err)
	}

	return &Filter{
		tokenMap: make(map[string]string),
		patterns: file.Patterns,
		recorder: recorder,
	}, nil
}

// SetMaxEntries bounds the token map to n entries (0 = unbounded).
// Intended to be called once during service construction.
func (f *Filter) SetMaxEntries(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxEntries = n
}

// SetSubstitutionCounter attaches a counter incremented once per masked
// substring. Intended to be called once during service construction.
func (f *Filter) SetSubstitutionCounter(c prometheus.Counter) {
	f.maskedTotal = c
}

// generateToken derives the opaque token for a sensitive substring.
// Pure function of its input: the same value always yields the same token.
func generateToken(sensitiveData string) string {
	return fmt.Sprintf("<TOKEN_%x>", sha1.Sum([]byte(sensitiveData)))
}

// =============================================================================
// Masking
// =============================================================================

// MaskSensitiveData replaces every detected sensitive substring in text
// with its token and records the mapping.
//
// # Description
//
// Patterns run in declaration order against the text as already rewritten
// by earlier patterns. The broad Bank Account rule can therefore re-match
// digit runs produced by earlier substitutions; that compounding is the
// documented behavior of the rule set, not an accident to correct here.
//
// # Inputs
//
//   - ctx: Context for tracing.
//   - text: Text to scan.
//   - transactionID: Correlation id; parents the telemetry run.
//
// # Outputs
//
//   - string: The masked text. Telemetry failures never affect the result.
func (f *Filter) MaskSensitiveData(ctx context.Context, text, transactionID string) string {
	_, span := privacyTracer.Start(ctx, "Filter.MaskSensitiveData")
	defer span.End()

	runID := uuid.New().String()
	f.recorder.PostRun(runID, transactionID,
		fmt.Sprintf("PrivacyFilter Mask %s", transactionID),
		map[string]any{"text_to_mask": text},
	)

	masked := 0
	for _, pattern := range f.patterns {
		for _, match := range pattern.compiled.FindAllString(text, -1) {
			token := generateToken(match)
			f.store(token, match)
			text = strings.ReplaceAll(text, match, token)
			masked++
		}
	}
	if masked > 0 {
		if f.maskedTotal != nil {
			f.maskedTotal.Add(float64(masked))
		}
		slog.Debug("Masked sensitive data",
			"transaction_id", transactionID,
			"substitutions", masked,
		)
	}

	f.recorder.PatchRun(runID, map[string]any{"masked_text": text}, "")
	return text
}

// UnmaskSensitiveData restores every known token in text to its original
// value.
//
// # Description
//
// Replays the full token history, not just tokens minted for this
// transaction. Tokens are syntactically disjoint, so replacement order
// across unrelated tokens does not matter. Text containing no tokens is
// returned unchanged.
func (f *Filter) UnmaskSensitiveData(ctx context.Context, text, transactionID string) string {
	_, span := privacyTracer.Start(ctx, "Filter.UnmaskSensitiveData")
	defer span.End()

	runID := uuid.New().String()
	f.recorder.PostRun(runID, transactionID,
		fmt.Sprintf("PrivacyFilter Unmask %s", transactionID),
		map[string]any{"text_to_unmask": text},
	)

	f.mu.RLock()
	pairs := make([][2]string, 0, len(f.tokenMap))
	for token, original := range f.tokenMap {
		pairs = append(pairs, [2]string{token, original})
	}
	f.mu.RUnlock()

	for _, pair := range pairs {
		text = strings.ReplaceAll(text, pair[0], pair[1])
	}

	f.recorder.PatchRun(runID, map[string]any{"unmasked_text": text}, "")
	return text
}

// TokenCount reports the number of mappings currently held.
func (f *Filter) TokenCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tokenMap)
}

// store records a token mapping, evicting an arbitrary entry first when
// the optional bound is reached and the token is new.
func (f *Filter) store(token, original string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.tokenMap[token]; !exists &&
		f.maxEntries > 0 && len(f.tokenMap) >= f.maxEntries {
		for k := range f.tokenMap {
			delete(f.tokenMap, k)
			break
		}
	}
	f.tokenMap[token] = original
}
