// Package fhe implements encrypted 32-bit unsigned integers with wrap-around
// addition on top of the RLWE primitives of lattigo.
//
// A value m in Z_{2^32} is encrypted as an RLWE ciphertext whose constant
// coefficient decrypts to floor(Q/2^32)*m + e. Adding two ciphertexts adds
// their plaintexts modulo 2^32; a carry out of the top bit costs Q mod 2^32
// of additional noise. No multiplication or bootstrapping is provided, so
// the number of chained additions is bounded by the noise budget of the
// parameters (see [Parameters.MaxTerms]).
//
// Keys are split between a [ClientKey], which encrypts and decrypts and must
// stay with the data owner, and a [ServerKey], which can be serialized and
// handed to an untrusted party. Homomorphic operations are only reachable
// through the [Evaluator] returned by [ServerKey.Activate].
package fhe
