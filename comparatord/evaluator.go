package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/3l500nfy/Ghostbid/core"
)

// Evaluator selects the handle of the encrypted maximum from an ordered
// sequence of opaque ciphertext handles. Implementations front the actual
// FHE computation; this process never sees plaintext bids.
type Evaluator interface {
	SelectMaximum(ctx context.Context, handles [][]byte) ([]byte, error)
}

// HTTPEvaluator forwards the handle sequence to an FHE coprocessor endpoint
// that runs the homomorphic comparison circuit and answers with the winning
// handle.
type HTTPEvaluator struct {
	endpoint string
	client   *http.Client
}

// NewHTTPEvaluator returns an evaluator posting to the given coprocessor URL.
func NewHTTPEvaluator(endpoint string) *HTTPEvaluator {
	return &HTTPEvaluator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type coprocessorRequest struct {
	Handles []string `json:"handles"`
}

type coprocessorResponse struct {
	Winner string `json:"winner"`
	Error  string `json:"error,omitempty"`
}

// SelectMaximum implements Evaluator over the coprocessor's JSON API.
func (e *HTTPEvaluator) SelectMaximum(ctx context.Context, handles [][]byte) ([]byte, error) {
	reqBody := coprocessorRequest{Handles: make([]string, len(handles))}
	for i, h := range handles {
		reqBody.Handles[i] = hex.EncodeToString(h)
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode coprocessor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build coprocessor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("coprocessor call: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read coprocessor response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coprocessor status %d: %s", httpResp.StatusCode, raw)
	}

	var resp coprocessorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode coprocessor response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("coprocessor rejected request: %s", resp.Error)
	}

	winner, err := hex.DecodeString(resp.Winner)
	if err != nil {
		return nil, fmt.Errorf("decode winner handle: %w", err)
	}
	if len(winner) != core.HandleSize {
		return nil, fmt.Errorf("coprocessor returned %d-byte winner, want %d", len(winner), core.HandleSize)
	}
	return winner, nil
}
