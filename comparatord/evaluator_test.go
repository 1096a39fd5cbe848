package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/3l500nfy/Ghostbid/core"
)

func TestHTTPEvaluator_SelectMaximum(t *testing.T) {
	hs := testHandles(3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req coprocessorRequest
		check.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		check.Equal(t, 3, len(req.Handles))

		// The coprocessor answers with one of the submitted handles.
		_ = json.NewEncoder(w).Encode(coprocessorResponse{Winner: req.Handles[2]})
	}))
	defer srv.Close()

	ev := NewHTTPEvaluator(srv.URL)
	winner, err := ev.SelectMaximum(context.Background(), hs)
	check.NoError(t, err)
	check.Equal(t, hs[2], winner)
}

func TestHTTPEvaluator_CoprocessorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(coprocessorResponse{Error: "comparison circuit failed"})
	}))
	defer srv.Close()

	ev := NewHTTPEvaluator(srv.URL)
	_, err := ev.SelectMaximum(context.Background(), testHandles(2))
	check.Error(t, err)
}

func TestHTTPEvaluator_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ev := NewHTTPEvaluator(srv.URL)
	_, err := ev.SelectMaximum(context.Background(), testHandles(1))
	check.Error(t, err)
}

func TestHTTPEvaluator_BadWinnerLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		short := hex.EncodeToString(bytes.Repeat([]byte{0x01}, core.HandleSize/2))
		_ = json.NewEncoder(w).Encode(coprocessorResponse{Winner: short})
	}))
	defer srv.Close()

	ev := NewHTTPEvaluator(srv.URL)
	_, err := ev.SelectMaximum(context.Background(), testHandles(1))
	check.Error(t, err)
}

func TestHTTPEvaluator_Unreachable(t *testing.T) {
	ev := NewHTTPEvaluator("http://127.0.0.1:1/compare")
	_, err := ev.SelectMaximum(context.Background(), testHandles(1))
	check.Error(t, err)
}

func TestHTTPEvaluator_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := NewHTTPEvaluator(srv.URL)
	_, err := ev.SelectMaximum(ctx, testHandles(1))
	check.Error(t, err)
}
