package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired el token superó su vigencia.
var ErrExpired = jwt.ErrTokenExpired

// Claims claims estándar más los datos de la sesión del terminal.
// LoginAt es la marca de inicio de sesión; la vigencia se mide desde ahí.
type Claims struct {
	jwt.RegisteredClaims
	UserID         string `json:"user_id"`
	BusinessUnitID string `json:"business_unit_id"`
	Role           string `json:"role"` // "admin" | "operator"
	LoginAt        int64  `json:"login_at"`
}

// LoginTime devuelve LoginAt como time.Time.
func (c *Claims) LoginTime() time.Time {
	return time.Unix(0, c.LoginAt).UTC()
}

// Generate firma un token de sesión que vence ttl después de loginAt.
func Generate(secret, issuer, userID, unitID, role string, loginAt time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(loginAt),
			ExpiresAt: jwt.NewNumericDate(loginAt.Add(ttl)),
		},
		UserID:         userID,
		BusinessUnitID: unitID,
		Role:           role,
		LoginAt:        loginAt.UnixNano(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse valida firma y vencimiento contra now. Devuelve ErrExpired si venció.
func Parse(secret, tokenString string, now time.Time) (*Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt: secret vacío")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("claims inválidos")
	}
	return claims, nil
}
