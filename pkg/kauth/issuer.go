package kauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenIssuer and TokenAudience are stamped on every access token.
	TokenIssuer   = "kino"
	TokenAudience = "kino"

	DefaultTokenTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies HS256 access tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for uc. Iss, Aud, Iat and Exp are overwritten.
func (i *Issuer) Issue(uc UserClaims) (string, error) {
	now := i.now()
	uc.Iss = TokenIssuer
	uc.Aud = TokenAudience
	uc.Iat = now.Unix()
	uc.Exp = now.Add(i.ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ToClaims(&uc))
	return token.SignedString(i.secret)
}

// Verify checks the HMAC signature, expiry and audience of tokenString.
func (i *Issuer) Verify(tokenString string) (*UserClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	uc, err := FromMapClaims(claims)
	if err != nil {
		return nil, err
	}
	if uc.Aud != TokenAudience {
		return nil, fmt.Errorf("%w: audience %q", ErrInvalidToken, uc.Aud)
	}
	if uc.ID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return uc, nil
}
