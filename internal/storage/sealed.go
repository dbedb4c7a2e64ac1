// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SealedPrefix marks a sealed value (format: ENC:base64(nonce|ciphertext|tag)).
const SealedPrefix = "ENC:"

const (
	// NonceSize is the AES-GCM nonce size (96 bits).
	NonceSize = 12

	// KeySize is the AES-256 key size.
	KeySize = 32

	// SaltSize is the PBKDF2 salt size.
	SaltSize = 32

	// PBKDF2Iterations follows the OWASP 2023 recommendation for SHA-256.
	PBKDF2Iterations = 600000

	// SaltKey holds the salt in the wrapped store.
	SaltKey = "sealed-salt"
)

// kdfIterations is lowered by tests.
var kdfIterations = PBKDF2Iterations

var (
	// ErrNoPassphrase is returned by NewSealed for an empty passphrase.
	ErrNoPassphrase = errors.New("sealed storage requires a passphrase")

	// ErrDecrypt is returned when a sealed value fails authentication,
	// usually because the passphrase changed.
	ErrDecrypt = errors.New("failed to decrypt value")

	// ErrCorruptSalt is returned by NewSealed when the stored salt has the
	// wrong size. Replacing it would make every sealed value unreadable.
	ErrCorruptSalt = errors.New("stored salt is corrupt")
)

// =============================================================================
// SEALED
// =============================================================================

// Sealed encrypts every value it writes to the wrapped KV. The key name is
// bound as additional data, so a value copied to another key fails to open.
// Values without the ENC: prefix are returned unchanged, which lets an
// existing plaintext store be sealed in place.
type Sealed struct {
	inner KV
	aead  cipher.AEAD
}

// NewSealed derives the AES key from passphrase and a per-store salt kept
// in inner under SaltKey, creating the salt on first use.
func NewSealed(ctx context.Context, inner KV, passphrase string) (*Sealed, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}

	salt, err := inner.Get(ctx, SaltKey)
	if err == nil && len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrCorruptSalt, len(salt), SaltSize)
	}
	if errors.Is(err, ErrNotFound) {
		salt = make([]byte, SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		if err := inner.Set(ctx, SaltKey, salt); err != nil {
			return nil, fmt.Errorf("failed to store salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, kdfIterations, KeySize, sha256.New)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealed{inner: inner, aead: aead}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	stored, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !IsSealed(stored) {
		return stored, nil
	}

	raw, err := base64.StdEncoding.DecodeString(string(stored[len(SealedPrefix):]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding: %v", ErrDecrypt, err)
	}
	if len(raw) < NonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	plain, err := s.aead.Open(nil, raw[:NonceSize], raw[NonceSize:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plain, nil
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	if key == SaltKey {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidKey, key)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, value, []byte(key))

	out := make([]byte, 0, len(SealedPrefix)+base64.StdEncoding.EncodedLen(len(sealed)))
	out = append(out, SealedPrefix...)
	out = base64.StdEncoding.AppendEncode(out, sealed)
	return s.inner.Set(ctx, key, out)
}

func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close closes the wrapped store.
func (s *Sealed) Close() error {
	return Close(s.inner)
}

// IsSealed reports whether a stored value carries the ENC: prefix.
func IsSealed(value []byte) bool {
	return bytes.HasPrefix(value, []byte(SealedPrefix))
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
