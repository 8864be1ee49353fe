// Package keyvault manages the one asymmetric keypair of the local
// identity. The private key never leaves the vault: it is generated here,
// persisted encrypted at rest, and only exercised through Decrypt. Only the
// public key is exported, as an opaque base64 string.
package keyvault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/logging"
)

const (
	privateKeyFile  = "private.pem"
	saltFile        = "key.salt"
	encryptedPEMType = "SECURECHAT ENCRYPTED PRIVATE KEY"

	keyBits  = 2048
	saltSize = 16
)

// Vault holds the local RSA keypair. The private key PEM is encrypted with
// AES-256-GCM under an argon2id key derived from the device passphrase and
// a per-vault random salt, standing in for a hardware-backed secure store.
type Vault struct {
	dir        string
	passphrase []byte
	log        logging.Logger

	mu      sync.Mutex
	private *rsa.PrivateKey
}

func New(dir string, passphrase []byte, log logging.Logger) *Vault {
	return &Vault{dir: dir, passphrase: passphrase, log: log}
}

// EnsureKeyPair loads the existing keypair or generates one on first use,
// and returns the encoded public key. Idempotent: repeated calls return the
// same key without touching key material. Generation is expensive and
// should be kept off the interactive path by callers.
func (v *Vault) EnsureKeyPair(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.private != nil {
		return encodePublicKey(v.private)
	}

	err := v.loadLocked()
	if err == nil {
		return encodePublicKey(v.private)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %v", common.ErrKeyGeneration, err)
	}

	private, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrKeyGeneration, err)
	}
	if err := v.saveLocked(private); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrKeyGeneration, err)
	}
	v.private = private

	v.log.Info(ctx, "generated new keypair", "vault", v.dir)

	return encodePublicKey(v.private)
}

// PublicKey returns the encoded public key of an already-provisioned vault,
// or common.ErrNoKey.
func (v *Vault) PublicKey() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.private == nil {
		if err := v.loadLocked(); err != nil {
			return "", common.ErrNoKey
		}
	}
	return encodePublicKey(v.private)
}

// Decrypt recovers a plaintext encrypted against this vault's public key.
// Any cryptographic failure comes back as common.ErrDecryptFailed; a vault
// without key material reports common.ErrNoKey.
func (v *Vault) Decrypt(ciphertext []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.private == nil {
		if err := v.loadLocked(); err != nil {
			return nil, common.ErrNoKey
		}
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, v.private, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptFailed, err)
	}
	return plaintext, nil
}

func (v *Vault) loadLocked() error {
	salt, err := os.ReadFile(filepath.Join(v.dir, saltFile))
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(filepath.Join(v.dir, privateKeyFile))
	if err != nil {
		return err
	}

	block, _ := pem.Decode(raw)
	if block == nil || block.Type != encryptedPEMType {
		return fmt.Errorf("vault %s: malformed private key PEM", v.dir)
	}

	aead, err := v.sealer(salt)
	if err != nil {
		return err
	}
	if len(block.Bytes) < aead.NonceSize() {
		return fmt.Errorf("vault %s: truncated private key", v.dir)
	}

	nonce, sealed := block.Bytes[:aead.NonceSize()], block.Bytes[aead.NonceSize():]
	der, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return fmt.Errorf("vault %s: unseal private key: %w", v.dir, err)
	}

	private, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return fmt.Errorf("vault %s: parse private key: %w", v.dir, err)
	}

	v.private = private
	return nil
}

func (v *Vault) saveLocked(private *rsa.PrivateKey) error {
	if err := os.MkdirAll(v.dir, 0o700); err != nil {
		return err
	}

	salt := common.GenerateRandByteArray(saltSize)

	aead, err := v.sealer(salt)
	if err != nil {
		return err
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())
	sealed := aead.Seal(nil, nonce, x509.MarshalPKCS1PrivateKey(private), nil)

	block := &pem.Block{
		Type:  encryptedPEMType,
		Bytes: append(nonce, sealed...),
	}

	if err := os.WriteFile(filepath.Join(v.dir, saltFile), salt, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(v.dir, privateKeyFile), pem.EncodeToMemory(block), 0o600); err != nil {
		return err
	}
	return nil
}

// sealer builds the AES-GCM AEAD for the at-rest encryption of the private
// key, keyed by argon2id over the device passphrase.
func (v *Vault) sealer(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(v.passphrase, salt, 1, 64*1024, 4, 32)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encodePublicKey(private *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}
