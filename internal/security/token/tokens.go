// Package tokens genera los secretos opacos del núcleo de auth (refresh y
// reset) y la forma hasheada con la que se persisten.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// OpaqueBytes son 256 bits de entropía.
const OpaqueBytes = 32

// NewOpaque devuelve un token base64url sin padding. El valor en claro sólo
// viaja al cliente; en la base queda Hash(token).
func NewOpaque() (string, error) {
	var buf [OpaqueBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("tokens: entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// Hash es el sha256 en hex que se usa como clave en sesiones, resets y
// revocaciones.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
