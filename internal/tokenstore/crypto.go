package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32 // AES-256
	nonceSize        = 12 // GCM standard nonce size
	saltSize         = 16
	secretSize       = 32
	pbkdf2Iterations = 100000

	sealedPrefix = "enc:v1:"
)

// Sealer encrypts stored values at rest
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256-GCM key from secret and salt
func NewSealer(secret, salt []byte) (*Sealer, error) {
	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// LoadOrCreateSealer reads the per-install key file, creating it on first use
func LoadOrCreateSealer(path string) (*Sealer, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		raw := make([]byte, saltSize+secretSize)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("generate store key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
		data = []byte(base64.StdEncoding.EncodeToString(raw))
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("write store key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read store key: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(raw) != saltSize+secretSize {
		return nil, errors.New("store key file is corrupted")
	}
	return NewSealer(raw[saltSize:], raw[:saltSize])
}

// Seal encrypts plaintext; the nonce is prepended to the ciphertext
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix
// were written while sealing was off and are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", err
	}
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", errors.New("decryption failed: invalid key or corrupted data")
	}
	return string(plaintext), nil
}
