// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runtrace records a hierarchical tree of named runs against a
// LangSmith-compatible runs API for observability of the query pipeline.
//
// # Description
//
// Every pipeline component opens a run on entry (PostRun) and closes it on
// exit (PatchRun), including on error paths. Runs are parented to the
// transaction id, which forms the root of the tree.
//
// Delivery is strictly best-effort: events are handed to a buffered queue
// drained by a background worker, and are dropped (with a log line) when
// the queue is full or the transport fails. A slow or unreachable runs
// backend never delays or fails a user-facing response.
//
// # Thread Safety
//
// Recorder is safe for concurrent use from multiple goroutines.
package runtrace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	defaultEndpoint  = "https://api.smith.langchain.com"
	defaultProject   = "default"
	defaultQueueSize = 256
	requestTimeout   = 5 * time.Second
)

// postRunPayload mirrors the runs API create body.
type postRunPayload struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	RunType     string         `json:"run_type"`
	ParentRunID *string        `json:"parent_run_id"`
	Inputs      map[string]any `json:"inputs"`
	StartTime   string         `json:"start_time"`
	SessionName string         `json:"session_name"`
}

// patchRunPayload mirrors the runs API update body.
type patchRunPayload struct {
	Error   *string `json:"error"`
	Outputs any     `json:"outputs"`
	EndTime string  `json:"end_time"`
}

// event is one queued transport operation.
type event struct {
	method string
	url    string
	body   []byte
}

// =============================================================================
// Recorder
// =============================================================================

// Recorder ships run lifecycle events to the runs API.
//
// # Fields
//
//   - endpoint: Base URL of the runs API.
//   - apiKey: Credential sent via the x-api-key header. When empty the
//     recorder is disabled and every call is a no-op.
//   - project: Session name attached to every run.
//
// Construct with NewRecorder or NewNop; call Close on shutdown to drain
// the queue.
type Recorder struct {
	endpoint   string
	apiKey     string
	project    string
	httpClient *http.Client

	queue chan event
	wg    sync.WaitGroup

	closeOnce sync.Once
	enabled   bool
}

// Config holds Recorder construction options.
//
// Zero values fall back to defaults in NewRecorder.
type Config struct {
	// Endpoint is the runs API base URL. Default: the public LangSmith API.
	Endpoint string

	// APIKey authenticates run submissions. Empty disables the recorder.
	APIKey string

	// Project is the session name runs are grouped under. Default: "default".
	Project string

	// QueueSize bounds the pending-event queue. Default: 256.
	QueueSize int
}

// ConfigFromEnv builds a Config from LANGSMITH_ENDPOINT, LANGSMITH_API_KEY
// (falling back to LANGCHAIN_API_KEY), and LANGSMITH_PROJECT.
func ConfigFromEnv() Config {
	apiKey := os.Getenv("LANGSMITH_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("LANGCHAIN_API_KEY")
	}
	return Config{
		Endpoint: os.Getenv("LANGSMITH_ENDPOINT"),
		APIKey:   apiKey,
		Project:  os.Getenv("LANGSMITH_PROJECT"),
	}
}

// NewRecorder creates a Recorder and starts its background delivery worker.
//
// # Description
//
// When cfg.APIKey is empty the returned Recorder is disabled: PostRun and
// PatchRun become no-ops and no goroutine is started. This keeps the
// pipeline runnable without a runs backend.
//
// # Inputs
//
//   - cfg: Recorder configuration; zero values use defaults.
//
// # Outputs
//
//   - *Recorder: Ready to use. Call Close on shutdown.
func NewRecorder(cfg Config) *Recorder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Project == "" {
		cfg.Project = defaultProject
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	r := &Recorder{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		project:    cfg.Project,
		httpClient: &http.Client{Timeout: requestTimeout},
		enabled:    cfg.APIKey != "",
	}

	if !r.enabled {
		slog.Info("Run recorder disabled: no API key configured")
		return r
	}

	r.queue = make(chan event, cfg.QueueSize)
	r.wg.Add(1)
	go r.deliver()

	slog.Info("Run recorder started",
		"endpoint", r.endpoint,
		"project", r.project,
	)
	return r
}

// NewNop returns a disabled Recorder for tests and offline runs.
func NewNop() *Recorder {
	return NewRecorder(Config{APIKey: ""})
}

// =============================================================================
// Run Lifecycle
// =============================================================================

// PostRun opens a run.
//
// # Inputs
//
//   - runID: Unique id for this run. The pipeline root uses the
//     transaction id; component runs use fresh UUIDs.
//   - parentRunID: Id of the enclosing run, or "" for a root run.
//   - name: Human-readable run name.
//   - inputs: Structured input payload recorded on the run.
//
// Never blocks and never returns an error; failures are logged and dropped.
func (r *Recorder) PostRun(runID, parentRunID, name string, inputs map[string]any) {
	if !r.enabled {
		return
	}

	payload := postRunPayload{
		ID:          runID,
		Name:        name,
		RunType:     "chain",
		Inputs:      inputs,
		StartTime:   time.Now().UTC().Format(time.RFC3339Nano),
		SessionName: r.project,
	}
	if parentRunID != "" {
		payload.ParentRunID = &parentRunID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Failed to encode run create", "run_id", runID, "error", err)
		return
	}
	r.enqueue(event{method: http.MethodPost, url: r.endpoint + "/runs", body: body})
}

// PatchRun closes a run with either outputs or an error message.
//
// # Inputs
//
//   - runID: Id passed to the matching PostRun.
//   - outputs: Structured output payload; may be nil on the error path.
//   - errMsg: Error description, or "" on success.
//
// Never blocks and never returns an error; failures are logged and dropped.
func (r *Recorder) PatchRun(runID string, outputs any, errMsg string) {
	if !r.enabled {
		return
	}

	payload := patchRunPayload{
		Outputs: outputs,
		EndTime: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if errMsg != "" {
		payload.Error = &errMsg
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Failed to encode run update", "run_id", runID, "error", err)
		return
	}
	r.enqueue(event{method: http.MethodPatch, url: r.endpoint + "/runs/" + runID, body: body})
}

// Close drains the queue and stops the delivery worker.
func (r *Recorder) Close() {
	if !r.enabled {
		return
	}
	r.closeOnce.Do(func() {
		close(r.queue)
		r.wg.Wait()
	})
}

// =============================================================================
// Delivery
// =============================================================================

// enqueue hands an event to the worker, dropping it when the queue is full.
func (r *Recorder) enqueue(ev event) {
	select {
	case r.queue <- ev:
	default:
		slog.Warn("Run recorder queue full, dropping event", "url", ev.url)
	}
}

// deliver drains the queue until Close.
func (r *Recorder) deliver() {
	defer r.wg.Done()
	for ev := range r.queue {
		r.send(ev)
	}
}

// send performs one transport call. Failures are logged, never retried.
func (r *Recorder) send(ev event) {
	req, err := http.NewRequest(ev.method, ev.url, bytes.NewReader(ev.body))
	if err != nil {
		slog.Warn("Run recorder request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		slog.Warn("Run recorder transport failed", "url", ev.url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		slog.Warn("Run recorder rejected event",
			"url", ev.url,
			"status", fmt.Sprintf("%d", resp.StatusCode),
		)
	}
}
