// Package common defines shared constants and sentinel errors used across
// the securechat components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound = errors.New("not found")

	// Auth errors.
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidToken  = errors.New("invalid token")

	// Key lifecycle errors. ErrKeyGeneration means the local secure store
	// could not produce a keypair; sending is blocked but decryptable
	// history stays readable.
	ErrNoKey         = errors.New("no local key")
	ErrKeyGeneration = errors.New("key generation failed")

	// Message codec errors. ErrNoRecipientKey marks the "NoKey" sentinel
	// ciphertext written when the recipient never published a public key;
	// it is an undeliverable state, not decryption noise.
	ErrNoRecipientKey = errors.New("no recipient key")
	ErrEncryptFailed  = errors.New("encryption failed")
	ErrDecryptFailed  = errors.New("decryption failed")
)
