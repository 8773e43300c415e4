// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for stored
// login credentials. It wraps filippo.io/age for the operations this
// client needs: generate x25519 keypairs, encrypt a password to one or
// more recipients, and decrypt a sealed credential file with the
// matching identity.
//
// Ciphertext is base64-encoded so sealed credential files are plain
// single-line text. Callers pass plaintext []byte to [Encrypt] and
// receive a base64 string; [Decrypt] accepts a base64 string and
// returns plaintext. Private keys and decrypted plaintext are returned
// as [secret.Buffer] values backed by mmap memory outside the Go heap
// (locked against swap, excluded from core dumps, zeroed on Close).
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair in a secret.Buffer
//   - [Encrypt] -- encrypt to age public key recipients
//   - [Decrypt] -- decrypt with a secret.Buffer identity
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
//
// Used by the session bootstrap (decrypt the sealed password file
// named in the configuration) and the seal-credentials command
// (generate keypairs, write sealed files).
//
// Depends on lib/secret for secure memory allocation.
package sealed
