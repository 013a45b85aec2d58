package core

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptCursor seals plaintext (typically the primary-key value a keyset
// cursor resumes after) into the opaque, base64 string handed back to the
// client. Sealing with an AEAD rather than just base64-encoding the value
// stops a client from forging a cursor that skips a role's row filter.
func EncryptCursor(key [32]byte, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", fmt.Errorf("crypt: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypt: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptCursor reverses EncryptCursor. It's the only place an opaque
// cursor the client sent back is trusted to mean anything -- a cursor that
// fails to open (wrong key, tampered, or simply absent) is treated as "no
// cursor", not an error, so a client starting a fresh pagination never
// has to special-case a missing `after` argument.
func DecryptCursor(key [32]byte, cursor string) ([]byte, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, false
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, false
	}
	if len(raw) < aead.NonceSize() {
		return nil, false
	}

	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, false
	}
	return pt, true
}
