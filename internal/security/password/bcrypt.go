package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost es el costo con el que se generaron los hashes heredados.
const DefaultBcryptCost = 10

// IsBcrypt detecta hashes $2a$/$2b$/$2y$.
func IsBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// HashBcrypt genera un hash bcrypt. Solo para compatibilidad (authctl).
func HashBcrypt(plain string, cost int) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyBcrypt compara contra un hash bcrypt heredado.
func VerifyBcrypt(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
