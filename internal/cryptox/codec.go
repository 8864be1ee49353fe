// Package cryptox implements the message cipher codec: hybrid asymmetric
// encryption of a plaintext against a recipient's published public key, and
// local decryption through the keyvault.
//
// Plaintext length is bounded by the RSA key modulus; long messages fail to
// encrypt rather than being silently chunked.
package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/keyvault"
)

// NoKeySentinel is stored in place of a ciphertext when the recipient never
// published a public key. It marks the message undeliverable; decoding it
// yields a distinguishable state instead of decrypt-error noise.
const NoKeySentinel = "NoKey"

// Placeholders substituted by DisplayText. The rendering path never sees an
// error, only one of these fixed strings.
const (
	PlaceholderUndeliverable = "[undeliverable: recipient has no key]"
	PlaceholderUnreadable    = "[unable to decrypt]"
)

// Codec encrypts for arbitrary recipients and decrypts through the local
// vault. Stateless besides the vault reference.
type Codec struct {
	vault *keyvault.Vault
}

func NewCodec(vault *keyvault.Vault) *Codec {
	return &Codec{vault: vault}
}

// EncryptFor encrypts plaintext under the recipient's base64-encoded public
// key with RSA-OAEP/SHA-256 and returns the base64 ciphertext. An empty key
// returns the NoKey sentinel instead of failing the send.
func (c *Codec) EncryptFor(plaintext, recipientPublicKey string) (string, error) {
	if recipientPublicKey == "" {
		return NoKeySentinel, nil
	}

	pub, err := parsePublicKey(recipientPublicKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryptFailed, err)
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		// Typically the plaintext exceeds the modulus bound.
		return "", fmt.Errorf("%w: %v", common.ErrEncryptFailed, err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt recovers the plaintext of a ciphertext produced for this vault's
// key. The NoKey sentinel reports common.ErrNoRecipientKey; all other
// failures report common.ErrDecryptFailed.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if ciphertext == NoKeySentinel {
		return "", common.ErrNoRecipientKey
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptFailed, err)
	}

	plaintext, err := c.vault.Decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DisplayText is the rendering-path variant of Decrypt. It never fails:
// anything that cannot be read (corrupt record, key rotated underneath)
// comes back as a fixed placeholder.
func (c *Codec) DisplayText(ciphertext string) string {
	text, err := c.Decrypt(ciphertext)
	switch {
	case err == nil:
		return text
	case errors.Is(err, common.ErrNoRecipientKey):
		return PlaceholderUndeliverable
	default:
		return PlaceholderUnreadable
	}
}

func parsePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported public key type %T", parsed)
	}
	return pub, nil
}
