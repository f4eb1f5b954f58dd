package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
)

// HTTPConfig configures an HTTPEmbedder.
type HTTPConfig struct {
	Endpoint   string
	Model      string
	APIKey     string
	Dimensions int

	// BatchByteBudget bounds the total UTF-8 length of texts sent in a
	// single request (spec §4.5: "batched requests up to a configured
	// byte budget").
	BatchByteBudget int

	// Timeout bounds a single HTTP request (spec §4.5/§7: default 60s).
	Timeout time.Duration

	// MaxRetries bounds retry attempts on transient failure.
	MaxRetries int

	// MaxConcurrentBatches bounds in-flight requests issued by Embed.
	MaxConcurrentBatches int64
}

// HTTPEmbedder implements Embedder against an OpenAI/Ollama-style
// embeddings REST endpoint: POST {model, input: []string} -> {data:
// [{embedding: []float32}, ...]}.
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
	sem    *semaphore.Weighted
}

// NewHTTPEmbedder constructs an HTTPEmbedder from cfg, filling in
// defaults for zero-valued fields.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BatchByteBudget <= 0 {
		cfg.BatchByteBudget = 1 << 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = 4
	}
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sem:    semaphore.NewWeighted(cfg.MaxConcurrentBatches),
	}
}

// Dimensions returns the configured embedding width.
func (e *HTTPEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponseItem struct {
	Embedding []float32 `json:"embedding"`
}

type embedResponse struct {
	Data []embedResponseItem `json:"data"`
}

// Embed sends batch as a single request, splitting internally into
// sub-requests that respect BatchByteBudget, and returns one
// unit-normalized vector per input in order (spec §4.5's contract).
func (e *HTTPEmbedder) Embed(ctx context.Context, batch []string) ([][]float32, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(batch))
	for _, group := range splitByByteBudget(batch, e.cfg.BatchByteBudget) {
		vecs, err := e.embedGroup(ctx, group)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *HTTPEmbedder) embedGroup(ctx context.Context, group []string) ([][]float32, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, deweyerrors.Cancelled("embedding request cancelled while waiting for a slot", err)
	}
	defer e.sem.Release(1)

	retryCfg := RetryConfig{
		MaxRetries:   e.cfg.MaxRetries,
		InitialDelay: time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}

	var vecs [][]float32
	err := WithRetry(ctx, retryCfg, func() error {
		v, err := e.doRequest(ctx, group)
		if err != nil {
			return err
		}
		vecs = v
		return nil
	})
	if err != nil {
		// A fatal DeweyError (or a Cancelled one from WithRetry's own
		// ctx checks) is already classified correctly; only the
		// retries-exhausted case needs wrapping as transient.
		if _, ok := err.(*deweyerrors.DeweyError); ok {
			return nil, err
		}
		return nil, deweyerrors.EmbedTransient(
			fmt.Sprintf("embedding request failed after %d attempts", retryCfg.MaxRetries+1), err)
	}
	return vecs, nil
}

func (e *HTTPEmbedder) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, deweyerrors.Internal("failed to encode embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, deweyerrors.EmbedFatal("failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, deweyerrors.EmbedTransient("embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, deweyerrors.EmbedTransient("failed to read embedding response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, deweyerrors.EmbedFatal(fmt.Sprintf("embedding provider rejected credentials: %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, deweyerrors.EmbedFatal(fmt.Sprintf("embedding provider rejected request: %s", string(body)), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, deweyerrors.EmbedTransient("embedding provider rate-limited the request", nil)
	case resp.StatusCode >= 500:
		return nil, deweyerrors.EmbedTransient(fmt.Sprintf("embedding provider returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, deweyerrors.EmbedFatal(fmt.Sprintf("embedding provider returned unexpected status %d", resp.StatusCode), nil)
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, deweyerrors.EmbedFatal("malformed embedding response", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, deweyerrors.EmbedFatal(
			fmt.Sprintf("embedding response item count %d does not match request count %d", len(parsed.Data), len(texts)), nil)
	}

	out := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		if e.cfg.Dimensions > 0 && len(item.Embedding) != e.cfg.Dimensions {
			return nil, deweyerrors.Dimension(
				fmt.Sprintf("embedding dimension %d does not match configured dimension %d", len(item.Embedding), e.cfg.Dimensions), nil)
		}
		out[i] = normalizeVector(item.Embedding)
	}
	return out, nil
}

// splitByByteBudget groups texts into batches whose combined UTF-8
// length stays at or under budget, never splitting a single text
// across groups.
func splitByByteBudget(texts []string, budget int) [][]string {
	var groups [][]string
	var current []string
	currentSize := 0

	for _, t := range texts {
		size := len(t)
		if len(current) > 0 && currentSize+size > budget {
			groups = append(groups, current)
			current = nil
			currentSize = 0
		}
		current = append(current, t)
		currentSize += size
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}
