package fhe

import "errors"

var (
	// ErrConfiguration is returned when a parameter set cannot be instantiated.
	ErrConfiguration = errors.New("invalid security configuration")

	// ErrEncryption is returned when the primitive rejects an encryption.
	ErrEncryption = errors.New("encryption failed")

	// ErrDecryption is returned when a ciphertext cannot be decrypted.
	ErrDecryption = errors.New("decryption failed")

	// ErrKeyMismatch is returned when a ciphertext was produced under another key pair.
	ErrKeyMismatch = errors.New("ciphertext key fingerprint does not match")

	// ErrNotActivated is returned when a homomorphic operation is attempted without an activated evaluator.
	ErrNotActivated = errors.New("evaluation key is not activated")

	// ErrNoiseBudget is returned when a computation would exceed the noise capacity of the parameters.
	ErrNoiseBudget = errors.New("noise budget exceeded")
)
