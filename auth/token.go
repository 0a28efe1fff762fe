package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/samber/oops"
)

// Claims is the identity carried by a session token.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type tokenClaims struct {
	Claims
	jwt.StandardClaims
}

// Valid only checks exp. iat is informational, so a token signed by a host
// whose clock runs ahead is still accepted.
func (c tokenClaims) Valid() error {
	if !c.VerifyExpiresAt(jwt.TimeFunc().Unix(), false) {
		return errors.New("token is expired")
	}
	return nil
}

// Issuer creates session tokens.
type Issuer interface {
	Issue(c Claims) (string, error)
}

// TokenVerifier checks a session token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// TokenIssuer signs HS256 tokens. A zero ttl issues tokens without an exp claim.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("negative token ttl %s", ttl)
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (ti *TokenIssuer) Issue(c Claims) (string, error) {
	now := ti.now()
	std := jwt.StandardClaims{IssuedAt: now.Unix()}
	if ti.ttl > 0 {
		std.ExpiresAt = now.Add(ti.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{Claims: c, StandardClaims: std})
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", oops.Code("AUTH_SIGN_FAILED").
			With("username", c.Username).
			Wrap(fmt.Errorf("%w: %w", ErrSigning, err))
	}
	return signed, nil
}

func (ti *TokenIssuer) Verify(token string) (Claims, error) {
	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return tc.Claims, nil
}
