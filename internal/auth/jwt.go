package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpired          = errors.New("token_expired")
	ErrSignatureInvalid = errors.New("token_signature_invalid")
	ErrMalformed        = errors.New("token_malformed")
)

type Claims struct {
	jwt.RegisteredClaims
}

// TokenService signs and validates bearer tokens. The key is owned by the
// instance; construct one in main and inject it where needed.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenService(secret []byte, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{secret: secret, issuer: issuer, ttl: ttl}
}

func (s *TokenService) Issue(subjectEmail string) (string, error) {
	return s.IssueWithTTL(subjectEmail, s.ttl)
}

func (s *TokenService) IssueWithTTL(subjectEmail string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectEmail,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse returns the subject email of a valid token. The signature is checked
// before any claim is trusted; expired tokens fail even when the signature
// verifies.
func (s *TokenService) Parse(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrSignatureInvalid
		default:
			return "", ErrMalformed
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}
