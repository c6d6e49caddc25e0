package security

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of roles this service understands.
type Role string

const (
	RoleUser          Role = "user"
	RoleNutritionist  Role = "nutritionist"
	RoleAdministrator Role = "administrator"
)

func parseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleNutritionist, RoleAdministrator:
		return Role(s), true
	}
	return "", false
}

// IdentityClaims is the subset of the external identity provider's token we
// read. Token issuance and lifecycle belong to the provider; we only consume
// its role-bearing claims.
type IdentityClaims struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Admin bool     `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// ParseIdentityToken validates an HMAC-signed provider token and extracts its
// claims.
func ParseIdentityToken(tokenStr, secret string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*IdentityClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// ResolveRole computes the effective role of an identity. Provider claims win
// over the stored account role, in this order: explicit role claim, a roles
// array naming an administrator, the boolean admin claim, the account role,
// then the plain user default. Unknown role strings are skipped rather than
// widening the closed set.
func ResolveRole(accountRole Role, claims *IdentityClaims) Role {
	if claims != nil {
		if role, ok := parseRole(claims.Role); ok {
			return role
		}
		for _, r := range claims.Roles {
			if Role(r) == RoleAdministrator {
				return RoleAdministrator
			}
		}
		if claims.Admin {
			return RoleAdministrator
		}
	}

	if role, ok := parseRole(string(accountRole)); ok {
		return role
	}
	return RoleUser
}
