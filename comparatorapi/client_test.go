package comparatorapi

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/3l500nfy/Ghostbid/core"
)

// fakeService runs a one-shot comparator endpoint on a loopback listener.
// respond decides the response for a parsed request; nil means close the
// connection without answering.
func fakeService(t *testing.T, respond func(req CompareRequest) *CompareResponse) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				var req CompareRequest
				if err := ReadMessage(conn, &req); err != nil {
					return
				}
				resp := respond(req)
				if resp == nil {
					return
				}
				_ = WriteMessage(conn, *resp)
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func handles(bs ...byte) []core.CiphertextHandle {
	out := make([]core.CiphertextHandle, len(bs))
	for i, b := range bs {
		for j := range out[i] {
			out[i][j] = b
		}
	}
	return out
}

func TestClient_ComputeMaximum(t *testing.T) {
	winner := handles(0x07)[0]
	addr := fakeService(t, func(req CompareRequest) *CompareResponse {
		return &CompareResponse{
			Type:      TypeCompareResponse,
			RequestID: req.RequestID,
			Winner:    winner.Bytes(),
		}
	})

	client := NewClient(TCPDialer{Addr: addr})
	got, err := client.ComputeMaximum(context.Background(), handles(0x01, 0x07, 0x03))
	check.NoError(t, err)
	check.Equal(t, winner.Bytes(), got)
}

func TestClient_ServiceRejection(t *testing.T) {
	addr := fakeService(t, func(req CompareRequest) *CompareResponse {
		return &CompareResponse{
			Type:      TypeCompareResponse,
			RequestID: req.RequestID,
			Error:     "handle 1 has invalid length",
		}
	})

	client := NewClient(TCPDialer{Addr: addr})
	_, err := client.ComputeMaximum(context.Background(), handles(0x01))
	check.True(t, errors.Is(err, core.ErrComparatorRejected))
}

func TestClient_MismatchedRequestID(t *testing.T) {
	addr := fakeService(t, func(CompareRequest) *CompareResponse {
		return &CompareResponse{
			Type:      TypeCompareResponse,
			RequestID: "someone-else",
			Winner:    make([]byte, 32),
		}
	})

	client := NewClient(TCPDialer{Addr: addr})
	_, err := client.ComputeMaximum(context.Background(), handles(0x01))
	check.True(t, errors.Is(err, core.ErrComparatorRejected))
}

func TestClient_ConnectionDropped(t *testing.T) {
	addr := fakeService(t, func(CompareRequest) *CompareResponse { return nil })

	client := NewClient(TCPDialer{Addr: addr})
	_, err := client.ComputeMaximum(context.Background(), handles(0x01))
	check.True(t, errors.Is(err, core.ErrComparatorUnavailable))
}

func TestClient_DialFailure(t *testing.T) {
	// Nothing listens here; the port was released by the closed listener.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(TCPDialer{Addr: addr}, WithTimeout(time.Second))
	_, err = client.ComputeMaximum(context.Background(), handles(0x01))
	check.True(t, errors.Is(err, core.ErrComparatorUnavailable))
}

func TestClient_Timeout(t *testing.T) {
	// A service that accepts but never answers within the deadline.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			var req CompareRequest
			_ = ReadMessage(conn, &req)
			// Hold the connection open without responding.
			time.Sleep(5 * time.Second)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewClient(TCPDialer{Addr: ln.Addr().String()})
	_, err = client.ComputeMaximum(ctx, handles(0x01))
	check.True(t, errors.Is(err, core.ErrComparatorUnavailable))
}

func TestClient_SignatureVerification(t *testing.T) {
	key := testSigningKey(t)
	winner := handles(0x09)[0]

	signedService := func(signWith *ecdsa.PrivateKey, claimID func(string) string) string {
		return fakeService(t, func(req CompareRequest) *CompareResponse {
			sig, err := SignWinner(signWith, WinnerClaim{
				RequestID: claimID(req.RequestID),
				Winner:    winner.Bytes(),
			})
			if err != nil {
				return &CompareResponse{Type: TypeCompareResponse, RequestID: req.RequestID, Error: err.Error()}
			}
			return &CompareResponse{
				Type:      TypeCompareResponse,
				RequestID: req.RequestID,
				Winner:    winner.Bytes(),
				Signature: sig,
			}
		})
	}

	// Valid signature from the pinned key.
	addr := signedService(key, func(id string) string { return id })
	client := NewClient(TCPDialer{Addr: addr}, WithVerifyKey(&key.PublicKey))
	got, err := client.ComputeMaximum(context.Background(), handles(0x01, 0x09))
	check.NoError(t, err)
	check.Equal(t, winner.Bytes(), got)

	// Signature from the wrong key is rejected.
	other := testSigningKey(t)
	addr = signedService(other, func(id string) string { return id })
	client = NewClient(TCPDialer{Addr: addr}, WithVerifyKey(&key.PublicKey))
	_, err = client.ComputeMaximum(context.Background(), handles(0x01))
	check.True(t, errors.Is(err, core.ErrComparatorRejected))

	// Valid signature over a different request id is a replay; rejected.
	addr = signedService(key, func(string) string { return "stale-request" })
	client = NewClient(TCPDialer{Addr: addr}, WithVerifyKey(&key.PublicKey))
	_, err = client.ComputeMaximum(context.Background(), handles(0x01))
	check.True(t, errors.Is(err, core.ErrComparatorRejected))
}
