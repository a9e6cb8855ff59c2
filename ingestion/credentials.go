package ingestion

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/lifelog/core/lifelog"
)

// CredentialCipher encrypts/decrypts OAuth and device tokens at rest with
// AES-256-GCM, keyed by Config.EncryptionKey.
type CredentialCipher struct {
	gcm cipher.AEAD
}

// NewCredentialCipher builds a cipher from a 32-byte raw key.
func NewCredentialCipher(key []byte) (*CredentialCipher, error) {
	if len(key) != 32 {
		return nil, lifelog.New(lifelog.KindConfiguration, "encryption key must be 32 bytes for AES-256")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindConfiguration, "construct AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindConfiguration, "construct GCM mode", err)
	}
	return &CredentialCipher{gcm: gcm}, nil
}

// Encrypt returns a base64 string of nonce||ciphertext||tag.
func (c *CredentialCipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", lifelog.Wrap(lifelog.KindInternal, "generate nonce", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *CredentialCipher) Decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindEncoding, "decode credential", err)
	}
	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, lifelog.New(lifelog.KindEncoding, "credential ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindEncoding, "decrypt credential", err)
	}
	return plaintext, nil
}
