// Package services contains server-side business logic shared by the HTTP
// and gRPC adapters and the admin CLI. This file implements AuthService,
// which turns credentials into signed tokens and bearer headers back into
// claims.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/tokens"
)

// TokenService is the subset of tokens.Service used by AuthService.
type TokenService interface {
	Issue(claims *auth.Claims) (*tokens.Token, error)
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// ClaimsView is the JSON representation of claims returned to clients.
type ClaimsView struct {
	Subject   string         `json:"sub"`
	Groups    []string       `json:"groups"`
	Provider  string         `json:"provider"`
	IssuedAt  int64          `json:"iat"`
	ExpiresAt int64          `json:"exp"`
	ID        string         `json:"jti"`
	Extra     map[string]any `json:"extra,omitempty"`
}

func NewClaimsView(c *auth.Claims) ClaimsView {
	return ClaimsView{
		Subject:   c.Subject(),
		Groups:    c.Groups(),
		Provider:  c.Provider(),
		IssuedAt:  c.IssuedAt().Unix(),
		ExpiresAt: c.ExpiresAt().Unix(),
		ID:        c.ID(),
		Extra:     c.Extra(),
	}
}

// LoginResponse is returned by a successful Login.
type LoginResponse struct {
	Token     string     `json:"token"`
	TokenType string     `json:"token_type"`
	ExpiresIn int64      `json:"expires_in"`
	Claims    ClaimsView `json:"claims"`
}

// AuthService authenticates users through a provider and issues tokens.
type AuthService struct {
	provider auth.Provider
	tokens   TokenService
	logger   logging.Logger
}

func NewAuthService(p auth.Provider, ts TokenService, logger logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuthService{
		provider: p,
		tokens:   ts,
		logger:   logger.With("module", "auth"),
	}
}

func (s *AuthService) Provider() auth.Provider { return s.provider }

// Login authenticates the pair and issues a token.
//
// Every credential failure (unknown user, wrong password, disabled account,
// unreadable stored hash) is returned as common.ErrAuthenticationFailed; the
// precise reason is only logged. Other failures match common.ErrorInternal.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	claims, err := s.provider.Authenticate(ctx, username, password)
	if err != nil {
		if common.IsCredentialError(err) {
			s.logger.Warn(ctx, "login rejected", "username", username, "reason", rejectReason(err))
			return nil, common.ErrAuthenticationFailed
		}
		s.logger.Error(ctx, "login failed", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	tok, err := s.tokens.Issue(claims)
	if err != nil {
		s.logger.Error(ctx, "token issue failed", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "login succeeded", "username", username, "provider", claims.Provider())

	return &LoginResponse{
		Token:     tok.Value,
		TokenType: common.BearerScheme,
		ExpiresIn: int64(tok.TTL / time.Second),
		Claims:    NewClaimsView(claims),
	}, nil
}

// Authorize extracts the bearer token from an Authorization header value and
// verifies it. Errors match the token sentinels in package common.
func (s *AuthService) Authorize(ctx context.Context, header string) (*auth.Claims, error) {
	raw, err := tokens.ExtractBearer(header)
	if err != nil {
		return nil, err
	}
	claims, err := s.tokens.Verify(ctx, raw)
	if err != nil {
		s.logger.Debug(ctx, "token rejected", "error", err)
		return nil, err
	}
	return claims, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, common.ErrUserDisabled):
		return "user_disabled"
	case errors.Is(err, common.ErrPasswordHashFormat):
		return "bad_stored_hash"
	default:
		return "invalid_credentials"
	}
}
