package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Cipher enciphers and deciphers opaque token/cookie payloads. Decipher
// must fail closed: any malformed input, short payload, or authentication
// mismatch returns an error, never a panic.
type Cipher interface {
	Encipher(plaintext []byte) (string, error)
	Decipher(token string) ([]byte, error)
}

// aesGCMCipher is the concrete AEAD realization of Cipher: a random nonce
// per call, sealed with AES-256-GCM, encoded as base64url(nonce||ciphertext).
type aesGCMCipher struct {
	gcm cipher.AEAD
}

// NewAESGCMCipher builds a Cipher from a 32-byte key (AES-256).
func NewAESGCMCipher(key []byte) (Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("auth: new cipher block: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("auth: new gcm: %w", err)
	}
	return &aesGCMCipher{gcm: gcm}, nil
}

func (c *aesGCMCipher) Encipher(plaintext []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("auth: read nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *aesGCMCipher) Decipher(token string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("auth: decode token: %w", err)
	}
	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("auth: token shorter than nonce")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: open sealed token: %w", err)
	}
	return plaintext, nil
}
