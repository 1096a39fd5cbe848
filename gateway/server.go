// Package gateway exposes the auction engine over HTTP: a JSON API for
// auction lifecycle operations and queries, a websocket feed of engine
// events, and a Prometheus scrape endpoint.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/3l500nfy/Ghostbid/core"
)

// Server routes gateway requests onto the engine and registry.
type Server struct {
	engine   *core.AuctionEngine
	registry *core.AuctionRegistry
	clock    core.Clock
	hub      *Hub
	metrics  *Metrics
	logger   *log.Logger
}

// ServerConfig carries the gateway's collaborators. Hub and Metrics are
// optional; a nil Clock means wall-clock time.
type ServerConfig struct {
	Engine   *core.AuctionEngine
	Registry *core.AuctionRegistry
	Clock    core.Clock
	Hub      *Hub
	Metrics  *Metrics
	Logger   *log.Logger
}

// NewServer builds a gateway server from its configuration.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		clock:    cfg.Clock,
		hub:      cfg.Hub,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if s.clock == nil {
		s.clock = core.SystemClock
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/auctions", s.handleCreateAuction).Methods(http.MethodPost)
	r.HandleFunc("/auctions", s.handleListAuctions).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id:[0-9]+}", s.handleGetAuction).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id:[0-9]+}/bids", s.handleSubmitBid).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id:[0-9]+}/bids", s.handleBidCount).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id:[0-9]+}/bids/{index:[0-9]+}", s.handleGetBid).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id:[0-9]+}/winner", s.handleGetWinner).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id:[0-9]+}/winner", s.handleRelayedWinner).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id:[0-9]+}/finalize", s.handleFinalize).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id:[0-9]+}/adapter", s.handleSetAdapter).Methods(http.MethodPut)
	r.HandleFunc("/manager", s.handleSetManager).Methods(http.MethodPut)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.hub != nil {
		r.HandleFunc("/ws", s.hub.ServeWS)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	minDeposit, err := core.ParseEther(req.MinDepositEther)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.registry.CreateAuction(core.Identity(req.Seller), req.Asset,
		req.StartTime, req.EndTime, req.MaxBidders, minDeposit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.auctionsCreated.Inc()
	}
	s.logger.Info("auction created", "auction", id, "seller", req.Seller)
	s.writeJSON(w, http.StatusCreated, createAuctionResponse{ID: id})
}

func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	auctions := s.registry.ListAuctions()
	views := make([]auctionView, len(auctions))
	for i, a := range auctions {
		views[i] = viewAuction(a, now)
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	a, err := s.registry.GetAuction(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewAuction(a, s.clock.Now()))
}

func (s *Server) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	var req submitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	handle, err := parseHandleHex(req.Ciphertext)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	deposit, err := core.ParseEther(req.DepositEther)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var proof core.Proof
	if req.Proof != "" {
		if proof, err = decodeHex(req.Proof); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	commitment, err := s.resolveCommitment(req, handle)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	index, err := s.engine.SubmitBid(id, core.Identity(req.Bidder), handle, proof, commitment, deposit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.bidsSubmitted.Inc()
	}
	s.logger.Info("bid submitted", "auction", id, "index", index)
	s.writeJSON(w, http.StatusCreated, submitBidResponse{Index: index})
}

// resolveCommitment takes an explicit commitment when the client supplies
// one and otherwise binds the handle to the provided salt.
func (s *Server) resolveCommitment(req submitBidRequest, handle core.CiphertextHandle) (core.Commitment, error) {
	if req.Commitment != "" {
		raw, err := decodeHex(req.Commitment)
		if err != nil {
			return core.Commitment{}, err
		}
		if len(raw) != len(core.Commitment{}) {
			return core.Commitment{}, errors.New("commitment must be 32 bytes")
		}
		var c core.Commitment
		copy(c[:], raw)
		return c, nil
	}
	salt, err := decodeHex(req.Salt)
	if err != nil {
		return core.Commitment{}, err
	}
	return core.BindCommitment(handle, salt), nil
}

func (s *Server) handleBidCount(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	count, err := s.engine.GetBidCount(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bidCountResponse{Count: count})
}

func (s *Server) handleGetBid(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	handle, err := s.engine.GetBidCiphertext(id, index)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ciphertextResponse{Ciphertext: handle.Hex()})
}

func (s *Server) handleGetWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	winner, err := s.engine.GetWinnerCiphertext(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ciphertextResponse{Ciphertext: winner.Hex()})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	winner, err := s.engine.Finalize(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.auctionsFinalized.Inc()
	}
	s.logger.Info("auction finalized", "auction", id, "winner", winner.Hex())
	s.writeJSON(w, http.StatusOK, ciphertextResponse{Ciphertext: winner.Hex()})
}

func (s *Server) handleRelayedWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	var req relayedWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	raw, err := decodeHex(req.Winner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	winner, err := s.engine.SubmitFinalizedWinner(core.Identity(req.Caller), id, raw)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.auctionsFinalized.Inc()
	}
	s.logger.Info("relayed winner recorded", "auction", id)
	s.writeJSON(w, http.StatusOK, ciphertextResponse{Ciphertext: winner.Hex()})
}

func (s *Server) handleSetAdapter(w http.ResponseWriter, r *http.Request) {
	id, ok := s.auctionID(w, r)
	if !ok {
		return
	}
	var req setAdapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.SetAdapter(core.Identity(req.Caller), id, req.AdapterID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("adapter set", "auction", id, "adapter", req.AdapterID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetManager(w http.ResponseWriter, r *http.Request) {
	var req setManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.SetManager(core.Identity(req.Caller), core.Identity(req.Manager)); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("manager rebound", "manager", req.Manager)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) auctionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	return id, true
}

// statusFromError maps engine sentinels onto HTTP statuses.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, core.ErrAuctionNotFound),
		errors.Is(err, core.ErrBidNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotManager):
		return http.StatusForbidden
	case errors.Is(err, core.ErrAlreadyFinalized),
		errors.Is(err, core.ErrAuctionActive),
		errors.Is(err, core.ErrAuctionClosed),
		errors.Is(err, core.ErrBidLimitReached),
		errors.Is(err, core.ErrNoBids),
		errors.Is(err, core.ErrNotFinalized):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidWindow),
		errors.Is(err, core.ErrInvalidCapacity),
		errors.Is(err, core.ErrDepositTooLow),
		errors.Is(err, core.ErrInvalidCiphertext),
		errors.Is(err, core.ErrAdapterNotSet):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrComparatorUnavailable),
		errors.Is(err, core.ErrComparatorRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	s.writeError(w, statusFromError(err), err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if s.metrics != nil {
		s.metrics.requestErrors.WithLabelValues(strconv.Itoa(status)).Inc()
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}
