// Package secretbox cifra secretos de configuración (DSN, password SMTP,
// secreto JWT) con AES-256-GCM para poder guardarlos en archivos o variables
// sin texto plano. Formato: base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// EnvVar es la variable con la clave maestra.
	EnvVar = "SECRETBOX_MASTER_KEY"
	// Prefix marca un valor de config cifrado.
	Prefix = "enc:"

	nonceSizeGCM      = 12 // 96 bits
	requiredKeyLength = 32 // AES-256
	sep               = "|"
)

var (
	ErrInvalidKey    = errors.New("secretbox: invalid master key")
	ErrInvalidFormat = errors.New("secretbox: invalid format, expected base64(nonce)|base64(ciphertext)")
)

// Box cifra y descifra con una clave fija.
type Box struct {
	aead cipher.AEAD
}

// New parsea la clave (base64, base64 sin padding o hex de 64 chars).
func New(key string) (*Box, error) {
	k, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

func parseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: %s not set; generate one with: openssl rand -base64 32", ErrInvalidKey, EnvVar)
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 2*requiredKeyLength {
		if b, err := hex.DecodeString(key); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: must decode to %d bytes", ErrInvalidKey, requiredKeyLength)
}

// Seal cifra plain con un nonce aleatorio.
func (b *Box) Seal(plain string) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open descifra un valor producido por Seal.
func (b *Box) Open(sealed string) (string, error) {
	nonceB64, ctB64, ok := strings.Cut(strings.TrimSpace(sealed), sep)
	if !ok {
		return "", ErrInvalidFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil || len(nonce) != nonceSizeGCM {
		return "", ErrInvalidFormat
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", ErrInvalidFormat
	}
	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("secretbox: gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

// IsSealed indica si un valor de config lleva el prefijo de cifrado.
func IsSealed(v string) bool { return strings.HasPrefix(v, Prefix) }

// Reveal devuelve v tal cual si no está cifrado; si lo está, lo descifra.
func (b *Box) Reveal(v string) (string, error) {
	if !IsSealed(v) {
		return v, nil
	}
	return b.Open(strings.TrimPrefix(v, Prefix))
}
