package fhe

import (
	"encoding/hex"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"golang.org/x/crypto/blake2b"
)

// FingerprintSize is the size in bytes of a key fingerprint.
const FingerprintSize = 32

// Fingerprint identifies a key pair. It is derived from the public
// material only and can be disclosed.
type Fingerprint [FingerprintSize]byte

// String returns the first 8 bytes of the fingerprint in hexadecimal.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// Ciphertext is an encrypted uint32. It remembers the fingerprint of the
// key pair it was produced under. Ciphertexts are never modified in place.
type Ciphertext struct {
	ct          *rlwe.Ciphertext
	fingerprint Fingerprint
}

// Fingerprint returns the fingerprint of the key pair of the ciphertext.
func (c *Ciphertext) Fingerprint() Fingerprint {
	return c.fingerprint
}

// Level returns the level of the underlying RLWE ciphertext.
func (c *Ciphertext) Level() int {
	return c.ct.Level()
}

// BinarySize returns the serialized size of the ciphertext in bytes.
func (c *Ciphertext) BinarySize() int {
	return FingerprintSize + c.ct.BinarySize()
}

// MarshalBinary encodes the fingerprint followed by the RLWE ciphertext.
func (c *Ciphertext) MarshalBinary() (data []byte, err error) {

	if c == nil || c.ct == nil {
		return nil, fmt.Errorf("cannot MarshalBinary: ciphertext is nil")
	}

	var ct []byte
	if ct, err = c.ct.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("cannot MarshalBinary: %w", err)
	}

	data = make([]byte, 0, FingerprintSize+len(ct))
	data = append(data, c.fingerprint[:]...)
	return append(data, ct...), nil
}

// UnmarshalBinary decodes a ciphertext encoded with [Ciphertext.MarshalBinary].
// Malformed data returns an error and leaves c unchanged.
func (c *Ciphertext) UnmarshalBinary(data []byte) (err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cannot UnmarshalBinary: malformed data: %v", r)
		}
	}()

	if len(data) < FingerprintSize {
		return fmt.Errorf("cannot UnmarshalBinary: data is too short")
	}

	ct := new(rlwe.Ciphertext)
	if err = ct.UnmarshalBinary(data[FingerprintSize:]); err != nil {
		return fmt.Errorf("cannot UnmarshalBinary: %w", err)
	}

	if ct.MetaData == nil || len(ct.Value) != 2 {
		return fmt.Errorf("cannot UnmarshalBinary: not a degree-1 ciphertext")
	}

	copy(c.fingerprint[:], data[:FingerprintSize])
	c.ct = ct

	return nil
}

// Digest returns the blake2b-256 hash of the serialized ciphertext, which
// is everything an evaluating party learns about it.
func (c *Ciphertext) Digest() (digest [blake2b.Size256]byte, err error) {
	var data []byte
	if data, err = c.MarshalBinary(); err != nil {
		return
	}
	return blake2b.Sum256(data), nil
}
