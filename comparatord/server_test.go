package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/3l500nfy/Ghostbid/comparatorapi"
	"github.com/3l500nfy/Ghostbid/core"
)

// scriptedEvaluator answers with a fixed winner or error.
type scriptedEvaluator struct {
	winner []byte
	err    error
}

func (s *scriptedEvaluator) SelectMaximum(_ context.Context, handles [][]byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.winner != nil {
		return s.winner, nil
	}
	return handles[len(handles)-1], nil
}

func testConfig() serverConfig {
	return serverConfig{
		listenAddr:  "127.0.0.1:0",
		maxWorkers:  4,
		evalTimeout: 5 * time.Second,
	}
}

func testHandles(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = bytes.Repeat([]byte{byte(i + 1)}, core.HandleSize)
	}
	return out
}

func TestHandleCompare_ReturnsEvaluatorWinner(t *testing.T) {
	hs := testHandles(3)
	srv := NewComparatorServer(testConfig(), &scriptedEvaluator{winner: hs[1]}, nil)

	resp := srv.handleCompare(comparatorapi.CompareRequest{
		Type:      comparatorapi.TypeCompareRequest,
		RequestID: uuid.NewString(),
		Handles:   hs,
	})

	check.Equal(t, "", resp.Error)
	check.Equal(t, comparatorapi.TypeCompareResponse, resp.Type)
	check.Equal(t, hs[1], resp.Winner)
	check.Equal(t, 0, len(resp.Signature))
}

func TestHandleCompare_EchoesRequestID(t *testing.T) {
	srv := NewComparatorServer(testConfig(), &scriptedEvaluator{}, nil)
	id := uuid.NewString()

	resp := srv.handleCompare(comparatorapi.CompareRequest{
		Type:      comparatorapi.TypeCompareRequest,
		RequestID: id,
		Handles:   testHandles(1),
	})
	check.Equal(t, id, resp.RequestID)
}

func TestHandleCompare_RejectsBadRequests(t *testing.T) {
	srv := NewComparatorServer(testConfig(), &scriptedEvaluator{}, nil)

	// Wrong type discriminator.
	resp := srv.handleCompare(comparatorapi.CompareRequest{Type: "ping", Handles: testHandles(1)})
	check.NotEqual(t, "", resp.Error)

	// Empty handle sequence.
	resp = srv.handleCompare(comparatorapi.CompareRequest{Type: comparatorapi.TypeCompareRequest})
	check.NotEqual(t, "", resp.Error)

	// Undersized handle.
	resp = srv.handleCompare(comparatorapi.CompareRequest{
		Type:    comparatorapi.TypeCompareRequest,
		Handles: [][]byte{{0x01, 0x02}},
	})
	check.NotEqual(t, "", resp.Error)
}

func TestHandleCompare_EvaluatorFailure(t *testing.T) {
	srv := NewComparatorServer(testConfig(), &scriptedEvaluator{err: errors.New("circuit offline")}, nil)

	resp := srv.handleCompare(comparatorapi.CompareRequest{
		Type:      comparatorapi.TypeCompareRequest,
		RequestID: uuid.NewString(),
		Handles:   testHandles(2),
	})
	check.NotEqual(t, "", resp.Error)
	check.Equal(t, 0, len(resp.Winner))
}

func TestHandleCompare_OversizedEvaluatorResultRejected(t *testing.T) {
	srv := NewComparatorServer(testConfig(), &scriptedEvaluator{winner: make([]byte, 64)}, nil)

	resp := srv.handleCompare(comparatorapi.CompareRequest{
		Type:      comparatorapi.TypeCompareRequest,
		RequestID: uuid.NewString(),
		Handles:   testHandles(1),
	})
	check.NotEqual(t, "", resp.Error)
}

func TestHandleCompare_SignsWinner(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)

	hs := testHandles(2)
	srv := NewComparatorServer(testConfig(), &scriptedEvaluator{}, key)
	id := uuid.NewString()

	resp := srv.handleCompare(comparatorapi.CompareRequest{
		Type:      comparatorapi.TypeCompareRequest,
		RequestID: id,
		Handles:   hs,
	})
	check.Equal(t, "", resp.Error)
	check.NotEqual(t, 0, len(resp.Signature))

	claim, err := comparatorapi.VerifyWinner(&key.PublicKey, resp.Signature)
	check.NoError(t, err)
	check.Equal(t, id, claim.RequestID)
	check.Equal(t, resp.Winner, claim.Winner)
}
