package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/guard"
	"github.com/labstack/echo/v4"
)

const claimsKey = "gophauth.claims"

// Authenticate verifies the bearer token of every request and stores the
// claims for ClaimsFrom. Requests without a valid token get 401.
func Authenticate(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			claims, err := a.Authorize(c.Request().Context(), header)
			if err != nil {
				return unauthorized(c)
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by Authenticate, or nil.
func ClaimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

// Require rejects requests whose claims do not satisfy g with 403.
// It must run after Authenticate.
func Require(g guard.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !g.Check(ClaimsFrom(c)) {
				return c.JSON(http.StatusForbidden, errorResponse{Error: "permission denied"})
			}
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, common.BearerScheme)
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}
