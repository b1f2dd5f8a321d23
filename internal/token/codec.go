package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/resumehub/resumehub/internal/shared"
)

// Claims is the signed claim set carried by every issued token.
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// Codec issues and verifies HS256 signed tokens. It is a pure function
// of the secret, the configured lifetime and the clock.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec constructs a Codec. The secret must be at least 256 bits.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if len(secret) < 32 {
		return nil, errors.New("token: secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithNow overrides the codec clock for testing.
func (c *Codec) WithNow(fn func() time.Time) {
	if fn != nil {
		c.now = fn
	}
}

// Issue signs a new token carrying the email as subject and the user id
// as a custom claim.
func (c *Codec) Issue(email string, userID int64) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify reports whether the token parses, carries a valid signature and
// has not expired. Every failure mode collapses to false; callers that
// need the distinction use the claim accessors instead.
func (c *Codec) Verify(raw string) bool {
	_, err := jwt.ParseWithClaims(raw, &Claims{}, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	return err == nil
}

// Subject returns the email claim of a signed token without checking expiry.
func (c *Codec) Subject(raw string) (string, error) {
	claims, err := c.decode(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// UserID returns the user id claim of a signed token without checking expiry.
func (c *Codec) UserID(raw string) (int64, error) {
	claims, err := c.decode(raw)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// ExpiresAt returns the expiry instant of a signed token without checking
// expiry, so an already-expired token can still report when it lapsed.
func (c *Codec) ExpiresAt(raw string) (time.Time, error) {
	claims, err := c.decode(raw)
	if err != nil {
		return time.Time{}, err
	}
	if claims.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}, shared.ErrMalformedToken
	}
	return claims.RegisteredClaims.ExpiresAt.Time, nil
}

// decode parses and signature-checks the token but skips claim validation.
func (c *Codec) decode(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, shared.ErrMalformedToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, shared.ErrMalformedToken
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, shared.ErrMalformedToken
	}
	return c.secret, nil
}
