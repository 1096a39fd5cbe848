package core

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestBindCommitment_Deterministic(t *testing.T) {
	handle, err := ParseHandle(make([]byte, HandleSize))
	check.NoError(t, err)

	c1 := BindCommitment(handle, []byte("salt123"))
	c2 := BindCommitment(handle, []byte("salt123"))
	check.Equal(t, c1, c2)
}

func TestBindCommitment_SaltSensitive(t *testing.T) {
	var handle CiphertextHandle
	handle[0] = 0xab

	c1 := BindCommitment(handle, []byte("salt1"))
	c2 := BindCommitment(handle, []byte("salt2"))
	check.NotEqual(t, c1, c2)
}

func TestBindCommitment_HandleSensitive(t *testing.T) {
	var h1, h2 CiphertextHandle
	h1[31] = 0x01
	h2[31] = 0x02

	salt := []byte("same salt")
	check.NotEqual(t, BindCommitment(h1, salt), BindCommitment(h2, salt))
}

func TestBindCommitment_HexEncoding(t *testing.T) {
	var handle CiphertextHandle
	c := BindCommitment(handle, []byte("demo"))
	check.Equal(t, 66, len(c.Hex()))
	check.Equal(t, "0x", c.Hex()[:2])

	// Empty salt binds the bare handle; still a distinct digest.
	bare := BindCommitment(handle, nil)
	check.NotEqual(t, c, bare)
}

func TestParseHandle_FixedSize(t *testing.T) {
	_, err := ParseHandle([]byte{0x12, 0x34})
	check.Error(t, err)
	check.True(t, errors.Is(err, ErrInvalidCiphertext))

	_, err = ParseHandle(make([]byte, 33))
	check.True(t, errors.Is(err, ErrInvalidCiphertext))

	raw := make([]byte, HandleSize)
	raw[7] = 0x7f
	h, err := ParseHandle(raw)
	check.NoError(t, err)
	check.Equal(t, raw, h.Bytes())
}
