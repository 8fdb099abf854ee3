// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"log/slog"
)

// ModelKey identifies one registry entry by provider name and version.
type ModelKey struct {
	Name    string
	Version string
}

// Registry is the static lookup table from (provider, version) to a
// pre-configured chat client.
//
// # Description
//
// An unknown pair is a valid, expected outcome - Lookup reports it via
// its boolean, not an error - and callers synthesize a fallback message
// instead of failing the request.
//
// # Thread Safety
//
// Read-only after construction; safe for concurrent Lookup calls.
// Register is intended for construction and test setup only.
type Registry struct {
	models map[ModelKey]LLMClient
}

// registryEntry binds a registry key to a client constructor.
type registryEntry struct {
	key   ModelKey
	build func() (LLMClient, error)
}

// builtinEntries lists the (provider, version) pairs the gateway serves.
var builtinEntries = []registryEntry{
	{
		key: ModelKey{Name: "OpenAI", Version: "gpt-4o-2024-08-06"},
		build: func() (LLMClient, error) {
			return NewOpenAIClient("gpt-4o-2024-08-06")
		},
	},
	{
		key: ModelKey{Name: "Claude", Version: "claude-3-opus-20240229"},
		build: func() (LLMClient, error) {
			return NewAnthropicClient("claude-3-opus-20240229")
		},
	},
}

// NewRegistry builds the registry from the builtin entries.
//
// Providers whose credentials are missing are skipped with a warning
// rather than failing construction, so a deployment with a single
// provider key still serves that provider.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[ModelKey]LLMClient)}
	for _, entry := range builtinEntries {
		client, err := entry.build()
		if err != nil {
			slog.Warn("Skipping model registration",
				"provider", entry.key.Name,
				"version", entry.key.Version,
				"error", err,
			)
			continue
		}
		r.models[entry.key] = client
	}
	slog.Info("Model registry initialized", "entries", len(r.models))
	return r
}

// NewEmptyRegistry returns a registry with no entries, for tests and for
// deployments that register clients programmatically.
func NewEmptyRegistry() *Registry {
	return &Registry{models: make(map[ModelKey]LLMClient)}
}

// Register adds or replaces a registry entry.
func (r *Registry) Register(name, version string, client LLMClient) {
	r.models[ModelKey{Name: name, Version: version}] = client
}

// Lookup resolves a (provider, version) pair.
//
// # Outputs
//
//   - LLMClient: The configured client, or nil.
//   - bool: False when no entry matches. Not an error condition.
func (r *Registry) Lookup(name, version string) (LLMClient, bool) {
	client, ok := r.models[ModelKey{Name: name, Version: version}]
	return client, ok
}
