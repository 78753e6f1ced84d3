// Package jwttoken issues and checks the HS256 bearer tokens that bind an
// HTTP caller to one device id.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"frost/internal/platform/config"
	dErrors "frost/pkg/domain-errors"
	authmw "frost/pkg/platform/middleware/auth"
)

var errNonPositiveTTL = errors.New("token lifetime must be positive")

// Claims are the claims of a device access token. The subject repeats the
// device id so generic JWT tooling can show it.
type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token together with the values an operator
// needs to revoke it later.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// DeviceTokens signs and verifies device tokens with one shared key.
type DeviceTokens struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

type Option func(*DeviceTokens)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(d *DeviceTokens) {
		d.now = now
	}
}

func New(cfg config.AuthConfig, opts ...Option) *DeviceTokens {
	d := &DeviceTokens{
		key:      []byte(cfg.JWTSigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DeviceTokens) Issue(deviceID string, ttl time.Duration) (*Issued, error) {
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "device id is required")
	}
	if ttl <= 0 {
		return nil, dErrors.Wrap(errNonPositiveTTL, dErrors.CodeValidation, "invalid token lifetime")
	}
	now := d.now()
	issued := &Issued{JTI: uuid.NewString(), ExpiresAt: now.Add(ttl)}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			Issuer:    d.issuer,
			Audience:  jwt.ClaimStrings{d.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(issued.ExpiresAt),
			ID:        issued.JTI,
		},
	})
	signed, err := token.SignedString(d.key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign device token")
	}
	issued.Token = signed
	return issued, nil
}

// Parse verifies signature, issuer, audience and expiry and returns the
// token's claims. Every failure is an unauthorized error.
func (d *DeviceTokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, d.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(d.issuer),
		jwt.WithAudience(d.audience),
		jwt.WithTimeFunc(d.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	case claims.DeviceID == "":
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no device")
	}
	return claims, nil
}

// ValidateToken satisfies the auth middleware's validator.
func (d *DeviceTokens) ValidateToken(raw string) (*authmw.JWTClaims, error) {
	claims, err := d.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{DeviceID: claims.DeviceID, JTI: claims.ID}, nil
}

func (d *DeviceTokens) keyFunc(*jwt.Token) (any, error) {
	return d.key, nil
}
