package gateway

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/3l500nfy/Ghostbid/core"
)

// createAuctionRequest is the POST /auctions payload. Times are RFC 3339 and
// the deposit floor is an ether-denominated decimal string.
type createAuctionRequest struct {
	Seller          string        `json:"seller"`
	Asset           core.AssetRef `json:"asset"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	MaxBidders      int           `json:"max_bidders"`
	MinDepositEther string        `json:"min_deposit_ether"`
}

type createAuctionResponse struct {
	ID uint64 `json:"id"`
}

// submitBidRequest is the POST /auctions/{id}/bids payload. The ciphertext
// handle and commitment are 0x-prefixed 32-byte hex; the proof is arbitrary
// hex. A missing commitment is derived from the handle and salt.
type submitBidRequest struct {
	Bidder       string `json:"bidder"`
	Ciphertext   string `json:"ciphertext"`
	Proof        string `json:"proof,omitempty"`
	Commitment   string `json:"commitment,omitempty"`
	Salt         string `json:"salt,omitempty"`
	DepositEther string `json:"deposit_ether"`
}

type submitBidResponse struct {
	Index int `json:"index"`
}

type bidCountResponse struct {
	Count int `json:"count"`
}

type ciphertextResponse struct {
	Ciphertext string `json:"ciphertext"`
}

type setAdapterRequest struct {
	Caller    string `json:"caller"`
	AdapterID string `json:"adapter_id"`
}

type setManagerRequest struct {
	Caller  string `json:"caller"`
	Manager string `json:"manager"`
}

type relayedWinnerRequest struct {
	Caller string `json:"caller"`
	Winner string `json:"winner"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// auctionView is the JSON projection of a registry record. The lifecycle
// state is derived at render time.
type auctionView struct {
	ID              uint64        `json:"id"`
	Seller          string        `json:"seller"`
	Asset           core.AssetRef `json:"asset,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	MaxBidders      int           `json:"max_bidders"`
	MinDepositEther string        `json:"min_deposit_ether"`
	AdapterID       string        `json:"adapter_id,omitempty"`
	State           core.State    `json:"state"`
	Winner          string        `json:"winner,omitempty"`
}

func viewAuction(a core.Auction, now time.Time) auctionView {
	v := auctionView{
		ID:              a.ID,
		Seller:          string(a.Seller),
		Asset:           a.Asset,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		MaxBidders:      a.MaxBidders,
		MinDepositEther: core.FormatEther(a.MinDepositWei),
		AdapterID:       a.AdapterID,
		State:           a.StateAt(now),
	}
	if a.Finalized {
		v.Winner = a.WinnerCiphertext.Hex()
	}
	return v
}

// decodeHex accepts hex with or without the 0x prefix.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return raw, nil
}

func parseHandleHex(s string) (core.CiphertextHandle, error) {
	raw, err := decodeHex(s)
	if err != nil {
		return core.CiphertextHandle{}, err
	}
	return core.ParseHandle(raw)
}
