// Package encryption protects business-held provider credentials at rest with AES-256-GCM.
//
// An Envelope serialises as three hex fields, "nonce:tag:ciphertext". The key is derived once
// from configuration key material with HKDF-SHA256; a Service is safe for concurrent use.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"chatdesk/backend/internal/platform/apperr"
)

const (
	keySize   = 32
	nonceSize = 12 // standard GCM nonce length
	tagSize   = 16

	hkdfInfo = "chatdesk/business-credentials/v1"
)

// ErrDecryption is wrapped by every Decrypt failure. The underlying cipher error is never exposed.
var ErrDecryption = errors.New("credential could not be decrypted")

// Envelope is the serialised (nonce, tag, ciphertext) bundle. The zero value is the empty envelope.
type Envelope string

// IsEmpty reports whether the envelope holds no secret.
func (e Envelope) IsEmpty() bool { return strings.TrimSpace(string(e)) == "" }

func (e Envelope) String() string { return string(e) }

// Service encrypts and decrypts credential envelopes with a single derived key.
type Service struct {
	aead cipher.AEAD
}

// New derives the data key from master and returns a Service. Empty, short or all-zero key material
// is an apperr.KindConfiguration error; there is no default key.
func New(master []byte) (*Service, error) {
	if len(master) < keySize {
		return nil, apperr.New(apperr.KindConfiguration, "encryption.new", "encryption key material must be at least 32 bytes")
	}
	if bytes.Count(master, []byte{0}) == len(master) {
		return nil, apperr.New(apperr.KindConfiguration, "encryption.new", "encryption key material must not be all zero")
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "encryption.new", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "encryption.new", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "encryption.new", err)
	}
	return &Service{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. Encrypt("") returns the empty envelope.
func (s *Service) Encrypt(plaintext string) (Envelope, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "encryption.encrypt", err)
	}
	sealed := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return Envelope(hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct)), nil
}

// Decrypt opens env. The empty envelope decrypts to "" with no error; callers that must tell
// "no secret configured" apart should check env.IsEmpty first. Any malformed, tampered or
// foreign-keyed envelope returns an apperr.KindDecryption error wrapping ErrDecryption.
func (s *Service) Decrypt(env Envelope) (string, error) {
	if env.IsEmpty() {
		return "", nil
	}
	nonce, tag, ct, err := split(env)
	if err != nil {
		return "", decryptionError()
	}
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", decryptionError()
	}
	return string(plain), nil
}

func split(env Envelope) (nonce, tag, ct []byte, err error) {
	parts := strings.Split(string(env), ":")
	if len(parts) != 3 {
		return nil, nil, nil, ErrDecryption
	}
	if nonce, err = hex.DecodeString(parts[0]); err != nil || len(nonce) != nonceSize {
		return nil, nil, nil, ErrDecryption
	}
	if tag, err = hex.DecodeString(parts[1]); err != nil || len(tag) != tagSize {
		return nil, nil, nil, ErrDecryption
	}
	if ct, err = hex.DecodeString(parts[2]); err != nil {
		return nil, nil, nil, ErrDecryption
	}
	return nonce, tag, ct, nil
}

func decryptionError() error {
	return apperr.Wrap(apperr.KindDecryption, "encryption.decrypt", ErrDecryption)
}
