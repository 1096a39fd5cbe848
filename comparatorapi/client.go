package comparatorapi

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/vsock"

	"github.com/3l500nfy/Ghostbid/core"
)

// defaultTimeout bounds a compare call when the caller's context carries no
// deadline of its own.
const defaultTimeout = 30 * time.Second

// Dialer abstracts the comparator transport so the client works over plain
// TCP in development and over vsock against a sealed deployment.
type Dialer interface {
	DialContext(ctx context.Context) (net.Conn, error)
}

// TCPDialer connects to a comparator over TCP.
type TCPDialer struct {
	Addr string
}

func (d TCPDialer) DialContext(ctx context.Context) (net.Conn, error) {
	var nd net.Dialer
	return nd.DialContext(ctx, "tcp", d.Addr)
}

// VsockDialer connects to a comparator running inside an enclave.
type VsockDialer struct {
	ContextID uint32
	Port      uint32
}

func (d VsockDialer) DialContext(_ context.Context) (net.Conn, error) {
	return vsock.Dial(d.ContextID, d.Port, nil)
}

// Client is the remote comparator adapter: it implements core.Comparator by
// forwarding the ordered handle sequence over the wire protocol. Transport
// failures map to ErrComparatorUnavailable; service refusals and malformed
// responses map to ErrComparatorRejected. The result bytes are returned
// verbatim for the engine to size-validate.
type Client struct {
	dialer    Dialer
	verifyKey *ecdsa.PublicKey
	timeout   time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithVerifyKey pins the comparator's COSE signing key. When set, responses
// without a valid signature over the returned winner are rejected.
func WithVerifyKey(pub *ecdsa.PublicKey) ClientOption {
	return func(c *Client) { c.verifyKey = pub }
}

// WithTimeout overrides the fallback per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient returns a comparator client using the given transport.
func NewClient(d Dialer, opts ...ClientOption) *Client {
	c := &Client{dialer: d, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComputeMaximum implements core.Comparator against the remote service.
func (c *Client) ComputeMaximum(ctx context.Context, handles []core.CiphertextHandle) ([]byte, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
		deadline, _ = ctx.Deadline()
	}

	conn, err := c.dialer.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", core.ErrComparatorUnavailable, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %v", core.ErrComparatorUnavailable, err)
	}

	req := CompareRequest{
		Type:      TypeCompareRequest,
		RequestID: uuid.NewString(),
		Handles:   make([][]byte, len(handles)),
	}
	for i, h := range handles {
		req.Handles[i] = h.Bytes()
	}

	if err := WriteMessage(conn, req); err != nil {
		return nil, fmt.Errorf("%w: send request: %v", core.ErrComparatorUnavailable, err)
	}

	var resp CompareResponse
	if err := ReadMessage(conn, &resp); err != nil {
		return nil, fmt.Errorf("%w: read response: %v", core.ErrComparatorUnavailable, err)
	}

	if resp.Type != TypeCompareResponse || resp.RequestID != req.RequestID {
		return nil, fmt.Errorf("%w: mismatched response for request %s", core.ErrComparatorRejected, req.RequestID)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", core.ErrComparatorRejected, resp.Error)
	}

	if c.verifyKey != nil {
		claim, err := VerifyWinner(c.verifyKey, resp.Signature)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrComparatorRejected, err)
		}
		if claim.RequestID != req.RequestID || !bytes.Equal(claim.Winner, resp.Winner) {
			return nil, fmt.Errorf("%w: signed claim does not match response", core.ErrComparatorRejected)
		}
	}

	return resp.Winner, nil
}
