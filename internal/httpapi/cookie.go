package httpapi

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/koustreak/gardien/internal/errs"
)

const (
	DefaultCookieName = "gardien_client"
	DefaultClientTTL  = 30 * 24 * time.Hour

	issuer = "gardien"
)

// ClientClaims carries the client id in the subject claim.
type ClientClaims struct {
	jwt.RegisteredClaims
}

// CookieSigner issues and verifies the HS256 cookie that binds a browser to
// its client id. The id keys the session store and the rate limiter, so it
// must not be forgeable.
type CookieSigner struct {
	secret []byte
	name   string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewCookieSigner builds a signer. A zero ttl uses DefaultClientTTL and an
// empty name DefaultCookieName.
func NewCookieSigner(secret []byte, name string, ttl time.Duration, secure bool) (*CookieSigner, error) {
	if len(secret) == 0 {
		return nil, errs.New(errs.ErrKindConfiguration, "cookie signing secret is required")
	}
	if name == "" {
		name = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = DefaultClientTTL
	}
	return &CookieSigner{secret: secret, name: name, ttl: ttl, secure: secure, now: time.Now}, nil
}

// Name is the cookie name.
func (s *CookieSigner) Name() string { return s.name }

// Sign returns a token naming clientID.
func (s *CookieSigner) Sign(clientID string) (string, error) {
	now := s.now()
	claims := ClientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindUnknown, "sign client cookie", err)
	}
	return signed, nil
}

// Parse verifies token and returns the client id it names.
func (s *CookieSigner) Parse(token string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	parsed, err := parser.ParseWithClaims(token, &ClientClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", errs.Wrap(errs.ErrKindAuthFailure, "invalid client cookie", err)
	}
	claims, ok := parsed.Claims.(*ClientClaims)
	if !ok || !parsed.Valid {
		return "", errs.New(errs.ErrKindAuthFailure, "invalid client cookie")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errs.Wrap(errs.ErrKindAuthFailure, "client cookie subject is not a client id", err)
	}
	return claims.Subject, nil
}

// Cookie builds the cookie carrying token.
func (s *CookieSigner) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
