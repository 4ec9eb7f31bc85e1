package tokens

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"schoolapi/internal/models"
)

// Profile selects the signing context for a token. Access and refresh
// tokens are signed with different secrets so a leak of one cannot forge
// the other.
type Profile string

const (
	ProfileAccess  Profile = "access"
	ProfileRefresh Profile = "refresh"
)

// Decode errors. Callers surface all of them to end users as a bare
// "invalid token" but log them individually.
var (
	ErrExpired          = errors.New("token expired")
	ErrBadSignature     = errors.New("token signature invalid")
	ErrMalformedClaims  = errors.New("token claims malformed")
	ErrAudienceMismatch = errors.New("token issuer/audience mismatch")
)

// Claims is the signed claim set carried by both token profiles. The typ
// claim pins a token to its profile; Parse rejects a token presented
// under the wrong profile even when the signature checks out.
type Claims struct {
	UserID    uint        `json:"uid"`
	Email     string      `json:"email,omitempty"`
	Role      models.Role `json:"role,omitempty"`
	TokenType string      `json:"typ"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID uint
	Email  string
	Role   models.Role
}

// Codec issues and parses signed bearer tokens for both profiles.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
}

type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("tokens: both profile secrets are required")
	}
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("tokens: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("tokens: profile TTLs must be positive")
	}
	return &Codec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
	}, nil
}

// NewJTI mints the unique identifier that links a refresh token to its
// ledger record.
func NewJTI() string { return uuid.NewString() }

func (c *Codec) profile(p Profile) (secret []byte, ttl time.Duration, err error) {
	switch p {
	case ProfileAccess:
		return c.accessSecret, c.accessTTL, nil
	case ProfileRefresh:
		return c.refreshSecret, c.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("tokens: unknown profile %q", p)
	}
}

// Issue signs a claim set under the given profile and returns the token
// string and its expiry. Refresh tokens must carry a jti; access tokens
// carry none.
func (c *Codec) Issue(id Identity, p Profile, jti string, now time.Time) (string, time.Time, error) {
	secret, ttl, err := c.profile(p)
	if err != nil {
		return "", time.Time{}, err
	}
	if p == ProfileRefresh && jti == "" {
		return "", time.Time{}, errors.New("tokens: refresh token requires a jti")
	}

	exp := now.Add(ttl)
	claims := Claims{
		UserID:    id.UserID,
		Email:     id.Email,
		Role:      id.Role,
		TokenType: string(p),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature, algorithm, expiry and (when configured)
// issuer/audience, then checks the token was issued under the requested
// profile. On failure it returns exactly one of the typed decode errors.
func (c *Codec) Parse(tokenStr string, p Profile) (*Claims, error) {
	secret, _, err := c.profile(p)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if !tkn.Valid {
		return nil, ErrBadSignature
	}
	if claims.TokenType != string(p) {
		return nil, fmt.Errorf("%w: token is not a %s token", ErrMalformedClaims, p)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedClaims)
	}
	return &claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrAudienceMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	}
}
