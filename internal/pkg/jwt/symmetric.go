package jwt

import (
	"errors"
	"strconv"
	"time"

	libJWT "github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 64

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Symmetric signs and verifies tokens with an HMAC secret using HS512.
type Symmetric struct {
	cfg    Config
	parser *libJWT.Parser
}

// NewHS512 constructs a Symmetric JWT. The secret must be at least 64 bytes
// and a non-positive TTL defaults to 15 minutes.
func NewHS512(cfg Config) (*Symmetric, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, ErrSigningKeyTooShort
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	opts := []libJWT.ParserOption{
		libJWT.WithIssuer(cfg.Issuer),
		libJWT.WithValidMethods([]string{libJWT.SigningMethodHS512.Alg()}),
		libJWT.WithIssuedAt(),
		libJWT.WithExpirationRequired(),
		libJWT.WithTimeFunc(cfg.Clock.Now),
	}
	if len(cfg.Audiences) > 0 {
		opts = append(opts, libJWT.WithAudience(cfg.Audiences...))
	}

	return &Symmetric{cfg: cfg, parser: libJWT.NewParser(opts...)}, nil
}

// TTL is the lifetime of generated tokens.
func (s *Symmetric) TTL() time.Duration {
	return s.cfg.TTL
}

// Generate creates a signed JWT for the account.
func (s *Symmetric) Generate(accountID int64, email string) (string, error) {
	now := s.cfg.Clock.Now()

	return libJWT.NewWithClaims(libJWT.SigningMethodHS512, Claims{
		RegisteredClaims: libJWT.RegisteredClaims{
			ID:        s.cfg.UUID.Generate(),
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    s.cfg.Issuer,
			Audience:  s.cfg.Audiences,
			IssuedAt:  libJWT.NewNumericDate(now),
			NotBefore: libJWT.NewNumericDate(now),
			ExpiresAt: libJWT.NewNumericDate(now.Add(s.cfg.TTL)),
		},
		UserID:    accountID,
		UserEmail: email,
	}).SignedString(s.cfg.Secret)
}

// Verify parses and validates a JWT string.
func (s *Symmetric) Verify(token string) (Claims, error) {
	var claims Claims

	parsed, err := s.parser.ParseWithClaims(token, &claims, func(t *libJWT.Token) (any, error) {
		if t.Method != libJWT.SigningMethodHS512 {
			return nil, ErrInvalidSigningMethod
		}
		return s.cfg.Secret, nil
	})
	switch {
	case errors.Is(err, libJWT.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, err
	case !parsed.Valid:
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}
