package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	xchacha "golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const KeySize = xchacha.KeySize // 32 bytes

var (
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
	ErrDecryptFailed      = errors.New("crypto: decryption failed")
)

// DeriveKey folds the configured long-lived secret through HKDF-SHA256 into a
// fixed-length symmetric key. The secret itself is never used directly as key
// material and the derived key is never persisted or logged.
func DeriveKey(secret []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	if len(secret) == 0 {
		return key, errors.New("crypto: empty secret")
	}
	stream := hkdf.New(sha256.New, secret, nil, []byte("health/fieldkey/v1"))
	if _, err := io.ReadFull(stream, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under a fresh random nonce.
// Returned layout: [nonce||ciphertext||tag]. Sealing the same plaintext twice
// yields different ciphertexts.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := xchacha.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, xchacha.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out[:len(nonce)], nonce, plaintext, aad)
	return out, nil
}

// Open decrypts and authenticates data previously sealed with Seal. A wrong
// key, flipped byte, or truncated envelope fails with ErrDecryptFailed; Open
// never returns unauthenticated plaintext.
func Open(key, ciphertext, aad []byte) ([]byte, error) {
	aead, err := xchacha.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < xchacha.NonceSizeX+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	nonce := ciphertext[:xchacha.NonceSizeX]
	body := ciphertext[xchacha.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, body, aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}
