package fhe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/zeebo/blake3"
)

// ClientKey holds the secret key. It encrypts and decrypts and must never
// leave the trusted party; it has no serializer.
type ClientKey struct {
	params      Parameters
	sk          *rlwe.SecretKey
	enc         *rlwe.Encryptor
	dec         *rlwe.Decryptor
	fingerprint Fingerprint
}

// Params returns the parameters of the key.
func (c *ClientKey) Params() Parameters {
	return c.params
}

// Fingerprint returns the fingerprint of the key pair.
func (c *ClientKey) Fingerprint() Fingerprint {
	return c.fingerprint
}

// Encrypt encrypts m under the secret key.
func (c *ClientKey) Encrypt(m uint32) (*Ciphertext, error) {

	pt := rlwe.NewPlaintext(c.params, c.params.MaxLevel())

	if err := c.params.encode(m, pt); err != nil {
		return nil, fmt.Errorf("cannot Encrypt: %w: %w", ErrEncryption, err)
	}

	ct, err := c.enc.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("cannot Encrypt: %w: %w", ErrEncryption, err)
	}

	return &Ciphertext{ct: ct, fingerprint: c.fingerprint}, nil
}

// Decrypt decrypts ct. It fails if ct was produced under another key pair.
func (c *ClientKey) Decrypt(ct *Ciphertext) (m uint32, err error) {
	if m, _, err = c.decrypt(ct); err != nil {
		return 0, fmt.Errorf("cannot Decrypt: %w", err)
	}
	return
}

// Noise returns log2 of the absolute noise carried by ct,
// to be compared with [Parameters.LogNoiseBudget].
func (c *ClientKey) Noise(ct *Ciphertext) (float64, error) {
	_, noise, err := c.decrypt(ct)
	if err != nil {
		return 0, fmt.Errorf("cannot Noise: %w", err)
	}
	return Log2(noise), nil
}

func (c *ClientKey) decrypt(ct *Ciphertext) (m uint32, noise *big.Int, err error) {

	if ct == nil || ct.ct == nil {
		return 0, nil, fmt.Errorf("%w: ciphertext is nil", ErrDecryption)
	}

	if ct.fingerprint != c.fingerprint {
		return 0, nil, fmt.Errorf("%w: %w", ErrDecryption, ErrKeyMismatch)
	}

	if err = c.params.checkCiphertext(ct.ct); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	if m, noise, err = c.params.decode(c.dec.DecryptNew(ct.ct)); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	return
}

// ServerKey is the public evaluation material of a key pair. It is the only
// key artifact that may be handed to an untrusted compute party.
type ServerKey struct {
	params      Parameters
	pk          *rlwe.PublicKey
	fingerprint Fingerprint
}

// Params returns the parameters of the key.
func (s *ServerKey) Params() Parameters {
	return s.params
}

// Fingerprint returns the fingerprint of the key pair.
func (s *ServerKey) Fingerprint() Fingerprint {
	return s.fingerprint
}

// MarshalBinary encodes the parameters and the public key.
func (s *ServerKey) MarshalBinary() (data []byte, err error) {

	var params, pk []byte

	if params, err = s.params.Parameters.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("cannot MarshalBinary: %w", err)
	}

	if pk, err = s.pk.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("cannot MarshalBinary: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, 4+len(params)+len(pk)))
	if err = binary.Write(buf, binary.LittleEndian, uint32(len(params))); err != nil {
		return nil, fmt.Errorf("cannot MarshalBinary: %w", err)
	}
	buf.Write(params)
	buf.Write(pk)

	return buf.Bytes(), nil
}

// UnmarshalServerKey decodes a server key encoded with [ServerKey.MarshalBinary]
// and recomputes its fingerprint. Malformed data returns an error.
func UnmarshalServerKey(data []byte) (s *ServerKey, err error) {

	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("cannot UnmarshalServerKey: malformed data: %v", r)
		}
	}()

	var size uint32
	if err = binary.Read(bytes.NewReader(data), binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("cannot UnmarshalServerKey: %w", err)
	}

	if uint64(len(data)) < 4+uint64(size) {
		return nil, fmt.Errorf("cannot UnmarshalServerKey: data is too short")
	}

	var rlweParams rlwe.Parameters
	if err = rlweParams.UnmarshalBinary(data[4 : 4+size]); err != nil {
		return nil, fmt.Errorf("cannot UnmarshalServerKey: %w", err)
	}

	params, err := NewParameters(rlweParams)
	if err != nil {
		return nil, fmt.Errorf("cannot UnmarshalServerKey: %w", err)
	}

	pk := rlwe.NewPublicKey(params)

	if have, want := len(data)-4-int(size), pk.BinarySize(); have != want {
		return nil, fmt.Errorf("cannot UnmarshalServerKey: public key is %d bytes but should be %d", have, want)
	}

	if err = pk.UnmarshalBinary(data[4+size:]); err != nil {
		return nil, fmt.Errorf("cannot UnmarshalServerKey: %w", err)
	}

	return newServerKey(params, pk)
}

func newServerKey(params Parameters, pk *rlwe.PublicKey) (s *ServerKey, err error) {
	s = &ServerKey{params: params, pk: pk}
	if s.fingerprint, err = fingerprint(params, pk); err != nil {
		return nil, err
	}
	return
}

// fingerprint hashes the parameters and the public key with blake3.
func fingerprint(params Parameters, pk *rlwe.PublicKey) (f Fingerprint, err error) {

	hasher := blake3.New()

	var data []byte
	if data, err = params.Parameters.MarshalBinary(); err != nil {
		return f, fmt.Errorf("cannot fingerprint: %w", err)
	}
	hasher.Write(data)

	if data, err = pk.MarshalBinary(); err != nil {
		return f, fmt.Errorf("cannot fingerprint: %w", err)
	}
	hasher.Write(data)

	copy(f[:], hasher.Sum(nil))
	return
}

// KeyContext owns the key pair of a session: the [ClientKey] for the
// trusted party and the [ServerKey] for evaluation.
type KeyContext struct {
	id     uuid.UUID
	config SecurityConfiguration
	client *ClientKey
	server *ServerKey
}

// NewKeyContext checks the configuration and generates a fresh key pair.
// No key material is created if the configuration is invalid.
func NewKeyContext(config SecurityConfiguration) (*KeyContext, error) {

	params, err := NewParametersFromLiteral(config.ParametersLiteral())
	if err != nil {
		return nil, fmt.Errorf("cannot NewKeyContext: %w", err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("cannot NewKeyContext: %w", err)
	}

	sk, pk := rlwe.NewKeyGenerator(params).GenKeyPairNew()

	server, err := newServerKey(params, pk)
	if err != nil {
		return nil, fmt.Errorf("cannot NewKeyContext: %w", err)
	}

	return &KeyContext{
		id:     id,
		config: config,
		client: &ClientKey{
			params:      params,
			sk:          sk,
			enc:         rlwe.NewEncryptor(params, sk),
			dec:         rlwe.NewDecryptor(params, sk),
			fingerprint: server.fingerprint,
		},
		server: server,
	}, nil
}

// ID returns the session identifier of the context.
func (k *KeyContext) ID() uuid.UUID {
	return k.id
}

// Config returns the security configuration the context was created with.
func (k *KeyContext) Config() SecurityConfiguration {
	return k.config
}

// Params returns the parameters of the context.
func (k *KeyContext) Params() Parameters {
	return k.client.params
}

// Fingerprint returns the fingerprint of the key pair.
func (k *KeyContext) Fingerprint() Fingerprint {
	return k.server.fingerprint
}

// Client returns the client key.
func (k *KeyContext) Client() *ClientKey {
	return k.client
}

// Server returns the server key.
func (k *KeyContext) Server() *ServerKey {
	return k.server
}

// Activate makes the server key the evaluation key of the returned [Evaluator].
func (k *KeyContext) Activate() (*Evaluator, error) {
	return k.server.Activate()
}
