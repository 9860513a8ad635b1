package security

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries an
	// unexpected signature algorithm, or fails any claim check.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when the token's own expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionNotLive is returned when the token verifies but its embedded
	// session has been revoked or has expired.
	ErrSessionNotLive = errors.New("session is no longer live")
)

var tracer = otel.Tracer("modelplane/authcore/internal/security")

// AccessClaims holds the claims of an access credential.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role      string   `json:"role"`
	Scopes    []string `json:"scopes"`
	SessionID string   `json:"sid"`
}

// SessionChecker is the live-session lookup consulted during verification.
// Implementations must not mutate the session as a side effect; verification
// is a pure read.
type SessionChecker interface {
	IsLive(ctx context.Context, sessionID string) (bool, error)
}

// IssuerConfig configures an Issuer. Exactly one signing mode applies:
// HS256 uses Secret; RS256/ES256 use PrivateKey/PublicKey.
type IssuerConfig struct {
	Alg        string
	Secret     []byte
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	// DefaultScopes supplies the role's granted scope set when Issue is
	// called with nil scopes. Optional.
	DefaultScopes func(role string) []string
}

// Issuer mints and verifies short-lived signed access credentials bound to a
// session. Claims are immutable once signed; revocation is enforced through
// the live-session lookup, never by blacklisting individual tokens.
type Issuer struct {
	method        jwt.SigningMethod
	signKey       any
	verifyKey     any
	issuer        string
	audience      string
	accessTTL     time.Duration
	defaultScopes func(role string) []string
	sessions      SessionChecker
}

// NewIssuer returns an Issuer for the configured algorithm. The algorithm is
// pinned: tokens signed with any other method are rejected at verification.
func NewIssuer(cfg IssuerConfig, sessions SessionChecker) (*Issuer, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("issuer: access TTL must be positive")
	}
	iss := &Issuer{
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		accessTTL:     cfg.AccessTTL,
		defaultScopes: cfg.DefaultScopes,
		sessions:      sessions,
	}
	switch cfg.Alg {
	case "HS256":
		if len(cfg.Secret) < 32 {
			return nil, errors.New("issuer: HS256 secret must be at least 32 bytes")
		}
		iss.method = jwt.SigningMethodHS256
		iss.signKey = cfg.Secret
		iss.verifyKey = cfg.Secret
	case "RS256":
		if _, ok := cfg.PublicKey.(*rsa.PublicKey); !ok || cfg.PrivateKey == nil {
			return nil, errors.New("issuer: RS256 requires an RSA key pair")
		}
		iss.method = jwt.SigningMethodRS256
		iss.signKey = cfg.PrivateKey
		iss.verifyKey = cfg.PublicKey
	case "ES256":
		if _, ok := cfg.PublicKey.(*ecdsa.PublicKey); !ok || cfg.PrivateKey == nil {
			return nil, errors.New("issuer: ES256 requires an ECDSA key pair")
		}
		iss.method = jwt.SigningMethodES256
		iss.signKey = cfg.PrivateKey
		iss.verifyKey = cfg.PublicKey
	default:
		return nil, fmt.Errorf("issuer: unsupported algorithm %q", cfg.Alg)
	}
	return iss, nil
}

// Issue mints an access credential for the given session, subject, and role.
// When scopes is nil the role's default scope set is embedded.
// Returns the signed token, its jti, and its expiry.
func (i *Issuer) Issue(sessionID, subject, role string, scopes []string) (token, jti string, expiresAt time.Time, err error) {
	if sessionID == "" || subject == "" {
		return "", "", time.Time{}, errors.New("issuer: session and subject are required")
	}
	if scopes == nil && i.defaultScopes != nil {
		scopes = i.defaultScopes(role)
	}
	jti = uuid.New().String()
	now := time.Now().UTC()
	expiresAt = now.Add(i.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:      role,
		Scopes:    scopes,
		SessionID: sessionID,
	}
	t := jwt.NewWithClaims(i.method, claims)
	token, err = t.SignedString(i.signKey)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// Verify checks the token's signature, algorithm, issuer, audience, expiry,
// and required claims, then confirms the embedded session is still live.
// It never updates the session's last-used time: verification is a
// side-effect-free read safe to run with unlimited concurrency.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (*AccessClaims, error) {
	ctx, span := tracer.Start(ctx, "issuer.verify")
	defer span.End()

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Strict algorithm match; a token signed with any other method is
		// rejected even when the key would validate it.
		if token.Method.Alg() != i.method.Alg() {
			return nil, ErrInvalidToken
		}
		return i.verifyKey, nil
	}, jwt.WithValidMethods([]string{i.method.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != i.issuer {
		return nil, ErrInvalidToken
	}
	audOK := false
	for _, a := range claims.Audience {
		if a == i.audience {
			audOK = true
			break
		}
	}
	if !audOK {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.SessionID == "" || claims.ID == "" ||
		claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	live, err := i.sessions.IsLive(ctx, claims.SessionID)
	if err != nil {
		// Fail closed: a storage failure during a security check denies.
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if !live {
		return nil, ErrSessionNotLive
	}
	return claims, nil
}
