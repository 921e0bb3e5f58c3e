// Package tokens issues and verifies signed session tokens.
//
// Tokens are compact HS256 JWS strings carrying the registered claims (sub,
// groups, provider, iat, exp, jti) plus any provider-specific extension
// fields. Verification checks structure, then signature, then expiry, so a
// tampered token is always reported as a signature failure even when it is
// also expired.
package tokens

import (
	"context"
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 16

// Service issues and verifies tokens. It is safe for concurrent use.
type Service struct {
	key     []byte
	cache   *Cache
	now     func() time.Time
	logger  logging.Logger
	meter   metric.Meter
	metrics *metrics
	group   singleflight.Group
	parser  *jwt.Parser
}

type Option func(*Service)

// WithCache enables the verification cache.
func WithCache(c *Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock sets the source of "now" used by Verify.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMeter records metrics on m instead of the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) { s.meter = m }
}

// NewService returns a Service signing with secret. Secrets shorter than
// MinSecretLength are rejected with common.ErrInvalidSigningKey.
func NewService(secret string, opts ...Option) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, common.ErrInvalidSigningKey
	}

	s := &Service{
		key:    []byte(secret),
		now:    time.Now,
		logger: logging.NewNopLogger(),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithJSONNumber(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := newMetrics(s.meter)
	if err != nil {
		return nil, fmt.Errorf("init token metrics: %w", err)
	}
	s.metrics = m
	s.logger = s.logger.With("module", "tokens")

	return s, nil
}

// Cache returns the verification cache, or nil when caching is disabled.
func (s *Service) Cache() *Cache { return s.cache }

// Issue signs claims into a Token.
func (s *Service) Issue(claims *auth.Claims) (*Token, error) {
	if claims == nil {
		return nil, common.ErrInvalidClaims
	}

	mc := jwt.MapClaims{}
	for k, v := range claims.Extra() {
		mc[k] = v
	}
	mc[auth.ClaimSubject] = claims.Subject()
	mc[auth.ClaimGroups] = claims.Groups()
	mc[auth.ClaimProvider] = claims.Provider()
	mc[auth.ClaimIssuedAt] = jwt.NewNumericDate(claims.IssuedAt())
	mc[auth.ClaimExpiresAt] = jwt.NewNumericDate(claims.ExpiresAt())
	mc[auth.ClaimID] = claims.ID()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{
		Value:     signed,
		ExpiresAt: claims.ExpiresAt(),
		TTL:       claims.Lifetime(),
	}, nil
}

// Verify is VerifyAt with the service clock.
func (s *Service) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	return s.VerifyAt(ctx, token, s.now())
}

// VerifyAt verifies token and returns its claims, treating now as the
// current time for the expiry check (expired iff now >= exp).
//
// With a cache configured, a hit skips signature verification but the
// expiry is still checked against now.
func (s *Service) VerifyAt(ctx context.Context, token string, now time.Time) (*auth.Claims, error) {
	claims, err := s.lookup(ctx, token)
	if err != nil {
		s.metrics.recordVerify(ctx, resultOf(err))
		s.logger.Debug(ctx, "token rejected", "error", err)
		return nil, err
	}

	if claims.IsExpiredAt(now) {
		if s.cache != nil {
			s.cache.Remove(token)
		}
		s.metrics.recordVerify(ctx, resultExpired)
		return nil, common.ErrTokenExpired
	}

	s.metrics.recordVerify(ctx, resultOK)
	return claims, nil
}

func (s *Service) lookup(ctx context.Context, token string) (*auth.Claims, error) {
	if s.cache == nil {
		return s.verifySignature(token)
	}

	if c, ok := s.cache.Get(token); ok {
		s.metrics.recordCache(ctx, true)
		return c, nil
	}
	s.metrics.recordCache(ctx, false)

	v, err, _ := s.group.Do(token, func() (any, error) {
		c, err := s.verifySignature(token)
		if err != nil {
			return nil, err
		}
		s.cache.Insert(token, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*auth.Claims), nil
}

// verifySignature runs the structural, signature and decoding checks.
func (s *Service) verifySignature(token string) (*auth.Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", common.ErrTokenMalformed, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment", common.ErrTokenMalformed)
		}
	}

	sig, err := jwt.SigningMethodHS256.Sign(parts[0]+"."+parts[1], s.key)
	if err != nil {
		return nil, fmt.Errorf("compute signature: %w", err)
	}
	// compare the encoded form so that every byte of the segment counts
	want := base64.RawURLEncoding.EncodeToString(sig)
	if !hmac.Equal([]byte(want), []byte(parts[2])) {
		return nil, common.ErrTokenBadSignature
	}

	mc := jwt.MapClaims{}
	tok, _, err := s.parser.ParseUnverified(token, mc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	}
	if tok.Method == nil || tok.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("%w: unexpected signing method", common.ErrTokenMalformed)
	}

	return claimsFromMap(mc)
}

func claimsFromMap(mc jwt.MapClaims) (*auth.Claims, error) {
	sub, err := mc.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%w: sub: %v", common.ErrTokenMalformed, err)
	}
	iat, err := mc.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, fmt.Errorf("%w: missing iat", common.ErrTokenMalformed)
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp", common.ErrTokenMalformed)
	}
	provider, ok := mc[auth.ClaimProvider].(string)
	if !ok {
		return nil, fmt.Errorf("%w: provider", common.ErrTokenMalformed)
	}
	jti, ok := mc[auth.ClaimID].(string)
	if !ok {
		return nil, fmt.Errorf("%w: jti", common.ErrTokenMalformed)
	}
	groups, err := stringSlice(mc[auth.ClaimGroups])
	if err != nil {
		return nil, err
	}

	extra := make(map[string]any)
	for k, v := range mc {
		switch k {
		case auth.ClaimSubject, auth.ClaimGroups, auth.ClaimProvider,
			auth.ClaimIssuedAt, auth.ClaimExpiresAt, auth.ClaimID:
			continue
		}
		extra[k] = normalizeNumber(v)
	}
	if len(extra) == 0 {
		extra = nil
	}

	c, err := auth.RestoreClaims(sub, groups, provider, iat.Time, exp.Time, jti, extra)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	}
	return c, nil
}

func stringSlice(v any) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: groups must be an array", common.ErrTokenMalformed)
	}
	out := make([]string, 0, len(raw))
	for _, g := range raw {
		s, ok := g.(string)
		if !ok {
			return nil, fmt.Errorf("%w: groups must contain strings", common.ErrTokenMalformed)
		}
		out = append(out, s)
	}
	return out, nil
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenBadSignature):
		return resultBadSignature
	case errors.Is(err, common.ErrTokenExpired):
		return resultExpired
	default:
		return resultMalformed
	}
}
