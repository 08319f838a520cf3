// Package vault seals secrets at rest with AES-GCM. The session layer uses
// it to keep bearer tokens unreadable in the state file.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

// KeySize is the required key length, AES-256.
const KeySize = 32

var errCiphertextShort = errors.New("ciphertext too short")

// Encrypt seals plaintext under a 32-byte key and returns a hex string with
// the nonce prepended.
func Encrypt(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong key or tampered ciphertext fails
// authentication and returns an error rather than garbage.
func Decrypt(cipherHex string, key []byte) (string, error) {
	sealed, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", errCiphertextShort
	}

	plaintext, err := gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", errors.New("decryption failed (wrong key or tampered data)")
	}
	return string(plaintext), nil
}
