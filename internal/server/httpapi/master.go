package httpapi

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	masterKey   = "gophauth.master"
	masterRealm = "gophauth-master"
)

// PasswordVerifier is implemented by password.Hasher.
type PasswordVerifier interface {
	Verify(password, encoded string) error
}

// MasterCredentials identifies a request authenticated by MasterAuth.
type MasterCredentials struct {
	Username string
}

// MasterAuth checks a single configured username and Argon2id password hash.
// It guards the /master routes, which work without any user in the store.
type MasterAuth struct {
	username     string
	passwordHash string
	verifier     PasswordVerifier
}

func NewMasterAuth(username, passwordHash string, v PasswordVerifier) *MasterAuth {
	return &MasterAuth{username: username, passwordHash: passwordHash, verifier: v}
}

func (m *MasterAuth) Username() string { return m.username }

// Validate returns common.ErrInvalidCredentials when username or password
// does not match. The password hash is checked even for a wrong username.
func (m *MasterAuth) Validate(username, password string) (MasterCredentials, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1

	if err := m.verifier.Verify(password, m.passwordHash); err != nil {
		return MasterCredentials{}, err
	}
	if !userOK {
		return MasterCredentials{}, common.ErrInvalidCredentials
	}
	return MasterCredentials{Username: m.username}, nil
}

// RequireMaster authenticates requests with HTTP Basic credentials checked by
// m. Failures get 401 with a Basic challenge.
func RequireMaster(m *MasterAuth, logger logging.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: masterRealm,
		Validator: func(username, password string, c echo.Context) (bool, error) {
			creds, err := m.Validate(username, password)
			if err != nil {
				if common.IsCredentialError(err) {
					logger.Warn(c.Request().Context(), "master authentication failed", "remote", c.RealIP())
					return false, nil
				}
				return false, err
			}
			c.Set(masterKey, creds)
			return true, nil
		},
	})
}

// MasterFrom returns the credentials stored by RequireMaster.
func MasterFrom(c echo.Context) (MasterCredentials, bool) {
	creds, ok := c.Get(masterKey).(MasterCredentials)
	return creds, ok
}
