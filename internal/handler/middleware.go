package handler

import (
	"net/http"
	"strings"

	"crypto-trading-dashboard/internal/identity"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	tokenCookie     = "token"
	ctxPrincipalKey = "principal"
	ctxTokenKey     = "token"
)

// TokenResolver turns a session token into its principal.
type TokenResolver interface {
	CurrentPrincipal(token string) (identity.Principal, error)
}

// Auth accepts a bearer token from the Authorization header, falling back to the token cookie.
func Auth(resolver TokenResolver, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authentication token")
			}

			principal, err := resolver.CurrentPrincipal(token)
			if err != nil {
				logger.Debug("Rejected session token",
					zap.String("path", c.Request().URL.Path),
					zap.String("remote_ip", c.RealIP()),
					zap.Error(err))
				return err
			}

			c.Set(ctxPrincipalKey, principal)
			c.Set(ctxTokenKey, token)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	cookie, err := c.Cookie(tokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// principalFrom returns the principal stored by Auth.
func principalFrom(c echo.Context) identity.Principal {
	p, _ := c.Get(ctxPrincipalKey).(identity.Principal)
	return p
}

func tokenFrom(c echo.Context) string {
	t, _ := c.Get(ctxTokenKey).(string)
	return t
}

// CustomValidator plugs go-playground/validator into echo's Validate.
type CustomValidator struct {
	Validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
