// Command comparatord serves the comparator wire protocol: it receives
// ordered ciphertext handle sequences from auction engines and relayers,
// delegates the encrypted-maximum selection to the configured evaluator
// backend, and returns the winning handle in a COSE-signed response. The
// handles are never interpreted here; the FHE computation happens behind the
// evaluator boundary.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mdlayher/vsock"

	"github.com/3l500nfy/Ghostbid/comparatorapi"
	"github.com/3l500nfy/Ghostbid/core"
)

// readTimeout bounds how long a connection may take to deliver its request.
const readTimeout = 30 * time.Second

// ComparatorServer accepts compare requests over TCP or vsock with a bounded
// worker pool; connections beyond the pool are rejected immediately rather
// than queued.
type ComparatorServer struct {
	cfg       serverConfig
	evaluator Evaluator
	signKey   *ecdsa.PrivateKey
}

// NewComparatorServer wires a server from its configuration and backend.
// signKey may be nil, in which case responses carry no signature.
func NewComparatorServer(cfg serverConfig, evaluator Evaluator, signKey *ecdsa.PrivateKey) *ComparatorServer {
	return &ComparatorServer{cfg: cfg, evaluator: evaluator, signKey: signKey}
}

func (s *ComparatorServer) listen() (net.Listener, error) {
	if s.cfg.vsockPort != 0 {
		ln, err := vsock.Listen(uint32(s.cfg.vsockPort), nil)
		if err != nil {
			return nil, fmt.Errorf("create vsock listener: %w", err)
		}
		log.Info("comparator listening", "transport", "vsock", "port", s.cfg.vsockPort)
		return ln, nil
	}

	ln, err := net.Listen("tcp", s.cfg.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("create tcp listener: %w", err)
	}
	log.Info("comparator listening", "transport", "tcp", "addr", ln.Addr())
	return ln, nil
}

// Start runs the accept loop until the listener fails.
func (s *ComparatorServer) Start() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	semaphore := make(chan struct{}, s.cfg.maxWorkers)
	log.Info("worker pool initialized", "max_workers", s.cfg.maxWorkers)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("accept failed", "err", err)
			continue
		}

		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(c)
			}(conn)
		default:
			log.Warn("no workers available, rejecting connection")
			conn.Close()
		}
	}
}

func (s *ComparatorServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic recovered in connection handler", "panic", r)
		}
		conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	var req comparatorapi.CompareRequest
	if err := comparatorapi.ReadMessage(conn, &req); err != nil {
		log.Error("failed to read compare request", "err", err)
		return
	}

	resp := s.handleCompare(req)

	_ = conn.SetWriteDeadline(time.Now().Add(readTimeout))
	if err := comparatorapi.WriteMessage(conn, resp); err != nil {
		log.Error("failed to write compare response", "request_id", req.RequestID, "err", err)
	}
}

// handleCompare validates the request, runs the evaluator under a timeout and
// signs the winner.
func (s *ComparatorServer) handleCompare(req comparatorapi.CompareRequest) comparatorapi.CompareResponse {
	reject := func(format string, args ...any) comparatorapi.CompareResponse {
		msg := fmt.Sprintf(format, args...)
		log.Warn("compare request rejected", "request_id", req.RequestID, "reason", msg)
		return comparatorapi.CompareResponse{
			Type:      comparatorapi.TypeCompareResponse,
			RequestID: req.RequestID,
			Error:     msg,
		}
	}

	if req.Type != comparatorapi.TypeCompareRequest {
		return reject("unknown request type %q", req.Type)
	}
	if len(req.Handles) == 0 {
		return reject("empty handle sequence")
	}
	for i, h := range req.Handles {
		if len(h) != core.HandleSize {
			return reject("handle %d has invalid length %d", i, len(h))
		}
	}

	log.Info("processing compare request", "request_id", req.RequestID, "handles", len(req.Handles))
	started := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.evalTimeout)
	defer cancel()

	winner, err := s.evaluator.SelectMaximum(ctx, req.Handles)
	if err != nil {
		return reject("evaluator failed: %v", err)
	}
	if len(winner) != core.HandleSize {
		return reject("evaluator returned %d-byte winner", len(winner))
	}

	resp := comparatorapi.CompareResponse{
		Type:      comparatorapi.TypeCompareResponse,
		RequestID: req.RequestID,
		Winner:    winner,
	}

	if s.signKey != nil {
		sig, err := comparatorapi.SignWinner(s.signKey, comparatorapi.WinnerClaim{
			RequestID: req.RequestID,
			Winner:    winner,
		})
		if err != nil {
			return reject("sign winner: %v", err)
		}
		resp.Signature = sig
	}

	log.Info("compare request complete", "request_id", req.RequestID, "elapsed", time.Since(started))
	return resp
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("configuration error", "err", err)
	}

	var signKey *ecdsa.PrivateKey
	if cfg.signingKeyPath != "" {
		signKey, err = loadSigningKey(cfg.signingKeyPath)
		if err != nil {
			log.Fatal("failed to load signing key", "err", err)
		}
		log.Info("response signing enabled", "key", cfg.signingKeyPath)
	}

	evaluator := NewHTTPEvaluator(cfg.coprocessorURL)
	server := NewComparatorServer(cfg, evaluator, signKey)
	if err := server.Start(); err != nil {
		log.Fatal("server failed", "err", err)
	}
}
