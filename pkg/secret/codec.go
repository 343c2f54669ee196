// Package secret encrypts private keys under the process-wide secret so that wallets can be
// handed back to callers without the service keeping any key material.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/mr-tron/base58"

	"bean_wallet_back/pkg/apperror"
)

const (
	Algorithm = "aes-256-gcm"

	version byte = 1

	// maxPlaintext is a 0x-prefixed hex secp256k1 key.
	maxPlaintext = 2 + 64
	// MaxCiphertextLen bounds an encoded credential: base58 of version|nonce|key|tag takes at
	// most 1.37 characters per byte. Longer input is rejected before decoding.
	MaxCiphertextLen = (1+12+maxPlaintext+16)*137/100 + 1
)

type Codec struct {
	secret []byte
}

// NewCodec never fails on an empty secret; Encrypt and Decrypt report it instead so the
// service can still serve read-only routes.
func NewCodec(secretKey string) *Codec {
	return &Codec{secret: []byte(secretKey)}
}

func (c *Codec) aead() (cipher.AEAD, error) {
	if len(c.secret) == 0 {
		return nil, apperror.New(apperror.Configuration, "credential secret is not configured")
	}
	key := sha256.Sum256(c.secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, apperror.Wrap(apperror.Configuration, err, "init cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperror.Wrap(apperror.Configuration, err, "init gcm")
	}
	return gcm, nil
}

// Encrypt seals privateKey and returns version|nonce|ciphertext encoded in base58.
func (c *Codec) Encrypt(privateKey string) (string, error) {
	gcm, err := c.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperror.Wrap(apperror.Unknown, err, "read nonce")
	}

	out := make([]byte, 0, 1+len(nonce)+len(privateKey)+gcm.Overhead())
	out = append(out, version)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(privateKey), []byte{version})
	return base58.Encode(out), nil
}

func (c *Codec) Decrypt(ciphertext string) (string, error) {
	gcm, err := c.aead()
	if err != nil {
		return "", err
	}
	if len(ciphertext) > MaxCiphertextLen {
		return "", apperror.New(apperror.InvalidCredential, "malformed credential")
	}
	raw, err := base58.Decode(ciphertext)
	if err != nil {
		return "", apperror.Wrap(apperror.InvalidCredential, err, "malformed credential")
	}
	if len(raw) < 1+gcm.NonceSize()+gcm.Overhead() || raw[0] != version {
		return "", apperror.New(apperror.InvalidCredential, "malformed credential")
	}
	nonce := raw[1 : 1+gcm.NonceSize()]
	plain, err := gcm.Open(nil, nonce, raw[1+gcm.NonceSize():], raw[:1])
	if err != nil {
		return "", apperror.New(apperror.InvalidCredential, "credential cannot be decrypted")
	}
	return string(plain), nil
}
