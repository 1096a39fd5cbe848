package comparatorapi

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// MaxFrameSize bounds a single protocol frame. A compare request for a full
// auction is a few KiB; anything near this limit is malformed or hostile.
const MaxFrameSize = 1 << 20

// WriteMessage CBOR-encodes v and writes it as one length-prefixed frame
// (4-byte big-endian length followed by the payload).
func WriteMessage(w io.Writer, v any) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("message size %d exceeds frame limit %d", len(payload), MaxFrameSize)
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed frame and CBOR-decodes it into v.
func ReadMessage(r io.Reader, v any) error {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return fmt.Errorf("read frame length: %w", err)
	}

	size := binary.BigEndian.Uint32(length[:])
	if size > MaxFrameSize {
		return fmt.Errorf("frame size %d exceeds limit %d", size, MaxFrameSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read frame payload: %w", err)
	}
	if err := cbor.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
