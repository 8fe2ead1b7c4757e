package kauth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims is the flat view of a kino access token payload.
// When produced by FromToken the signature has not been checked, so the values
// are only good for display and local expiry decisions.
type UserClaims struct {
	ID       string
	Email    string
	Username string
	Tier     string
	Iss      string
	Aud      string
	Iat      int64
	Exp      int64
}

// ParseTokenClaims extracts raw claims from a JWT without verifying its
// signature. Numeric timestamps come back as float64.
// WARNING: do not rely on this for authorization.
func ParseTokenClaims(tokenStr string) (jwt.MapClaims, error) {
	var claims jwt.MapClaims
	parser := new(jwt.Parser)
	_, _, err := parser.ParseUnverified(tokenStr, &claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func FromToken(tokenStr string) (*UserClaims, error) {
	claims, err := ParseTokenClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	return FromMapClaims(claims)
}

// FromMapClaims maps token claims into UserClaims. It tolerates both string
// and numeric forms of `sub`, `iat` and `exp`.
func FromMapClaims(mc jwt.MapClaims) (*UserClaims, error) {
	uc := &UserClaims{}

	if sub, ok := mc["sub"]; ok {
		switch v := sub.(type) {
		case string:
			uc.ID = v
		case float64:
			uc.ID = strconv.FormatInt(int64(v), 10)
		default:
			uc.ID = fmt.Sprintf("%v", v)
		}
	}

	if email, ok := mc["email"].(string); ok {
		uc.Email = email
	}
	if username, ok := mc["username"].(string); ok {
		uc.Username = username
	}
	if tier, ok := mc["tier"].(string); ok {
		uc.Tier = tier
	}
	if iss, ok := mc["iss"].(string); ok {
		uc.Iss = iss
	}

	switch aud := mc["aud"].(type) {
	case string:
		uc.Aud = aud
	case []any:
		if len(aud) > 0 {
			if s, ok := aud[0].(string); ok {
				uc.Aud = s
			}
		}
	}

	uc.Iat = numericClaim(mc["iat"])
	uc.Exp = numericClaim(mc["exp"])

	return uc, nil
}

func numericClaim(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// ToClaims converts UserClaims into jwt.MapClaims suitable for signing.
// Empty fields are omitted. iat/exp are unix seconds set by the caller.
func ToClaims(uc *UserClaims) jwt.MapClaims {
	mc := jwt.MapClaims{}
	if uc.ID != "" {
		mc["sub"] = uc.ID
	}
	if uc.Email != "" {
		mc["email"] = uc.Email
	}
	if uc.Username != "" {
		mc["username"] = uc.Username
	}
	if uc.Tier != "" {
		mc["tier"] = uc.Tier
	}
	if uc.Iss != "" {
		mc["iss"] = uc.Iss
	}
	if uc.Aud != "" {
		mc["aud"] = uc.Aud
	}
	if uc.Iat != 0 {
		mc["iat"] = uc.Iat
	}
	if uc.Exp != 0 {
		mc["exp"] = uc.Exp
	}
	return mc
}

// IsTokenExpired returns true when the token is empty, expired or within the
// provided skew window. The signature is not verified.
func IsTokenExpired(token string, skew time.Duration) (bool, error) {
	if token == "" {
		return true, nil
	}
	uc, err := FromToken(token)
	if err != nil {
		return true, err
	}
	if uc.Exp == 0 {
		return false, nil
	}
	expiresAt := time.Unix(uc.Exp, 0).Add(-skew)
	return time.Now().After(expiresAt), nil
}
