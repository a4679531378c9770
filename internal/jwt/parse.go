package jwt

import (
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Verify valida firma HS256, decodifica claims y exige now < exp.
// Solo acepta access tokens (sin purpose). Toda falla es *VerifyError,
// indistinguible hacia afuera vía ErrInvalidToken.
func (i *Issuer) Verify(token string) (*Claims, error) {
	c, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if c.Purpose != "" || c.Role == "" {
		return nil, NewVerifyError(ErrTokenClaims, errors.New("not an access token"))
	}
	return c, nil
}

// VerifyPurpose valida un token de propósito único.
func (i *Issuer) VerifyPurpose(token, purpose string) (*Claims, error) {
	c, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if c.Purpose != purpose {
		return nil, NewVerifyError(ErrTokenClaims, errors.New("purpose mismatch"))
	}
	return c, nil
}

func (i *Issuer) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, NewVerifyError(ErrTokenMalformed, errors.New("empty token"))
	}
	var c Claims
	_, err := i.parser.ParseWithClaims(token, &c, func(t *jwtv5.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenSignatureInvalid), errors.Is(err, jwtv5.ErrTokenUnverifiable):
			return nil, NewVerifyError(ErrTokenSignature, err)
		default:
			return nil, NewVerifyError(ErrTokenMalformed, err)
		}
	}

	if c.Subject == "" || c.ExpiresAt == nil || c.IssuedAt == nil {
		return nil, NewVerifyError(ErrTokenClaims, errors.New("missing sub/iat/exp"))
	}
	if i.Iss != "" && c.Issuer != i.Iss {
		return nil, NewVerifyError(ErrTokenClaims, errors.New("issuer mismatch"))
	}
	// válido solo mientras now < exp
	if !i.now().Before(c.ExpiresAt.Time) {
		return nil, NewVerifyError(ErrTokenExpired, nil)
	}
	return &c, nil
}
