package handler

import (
	"context"
	"net/http"
	"time"

	"crypto-trading-dashboard/internal/identity"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Authenticator is the identity provider behind the auth routes.
type Authenticator interface {
	TokenResolver
	SignUpEmail(ctx context.Context, email, password string) (identity.Session, error)
	SignInEmail(ctx context.Context, email, password string) (identity.Session, error)
	SignInGoogle(ctx context.Context, idToken string) (identity.Session, error)
	SendPhoneCode(ctx context.Context, phoneNumber, recaptchaToken string) (string, error)
	ConfirmPhoneCode(ctx context.Context, verificationID, code string) (identity.Session, error)
	SignOut(ctx context.Context, token string) error
}

// AuthHandler serves sign-up, sign-in and sign-out.
type AuthHandler struct {
	auth   Authenticator
	logger *zap.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(auth Authenticator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger.Named("auth")}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type phoneSendRequest struct {
	PhoneNumber    string `json:"phoneNumber"`
	RecaptchaToken string `json:"recaptchaToken"`
}

type phoneVerifyRequest struct {
	VerificationID string `json:"verificationId" validate:"required"`
	Code           string `json:"code"`
}

// SignUp registers an email/password account.
// POST /api/auth/signup
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	session, err := h.auth.SignUpEmail(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.respondSession(c, http.StatusCreated, session)
}

// Login signs in with email and password.
// POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	session, err := h.auth.SignInEmail(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.respondSession(c, http.StatusOK, session)
}

// Google signs in with a Google ID token.
// POST /api/auth/google
func (h *AuthHandler) Google(c echo.Context) error {
	var req googleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	session, err := h.auth.SignInGoogle(c.Request().Context(), req.IDToken)
	if err != nil {
		return err
	}
	return h.respondSession(c, http.StatusOK, session)
}

// SendPhoneCode starts a phone sign-in and returns the verification id.
// POST /api/auth/phone/send
func (h *AuthHandler) SendPhoneCode(c echo.Context) error {
	var req phoneSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	id, err := h.auth.SendPhoneCode(c.Request().Context(), req.PhoneNumber, req.RecaptchaToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"verificationId": id})
}

// VerifyPhoneCode completes a phone sign-in.
// POST /api/auth/phone/verify
func (h *AuthHandler) VerifyPhoneCode(c echo.Context) error {
	var req phoneVerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	session, err := h.auth.ConfirmPhoneCode(c.Request().Context(), req.VerificationID, req.Code)
	if err != nil {
		return err
	}
	return h.respondSession(c, http.StatusOK, session)
}

// Logout revokes the current token.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.auth.SignOut(c.Request().Context(), tokenFrom(c)); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in principal.
// GET /api/auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, principalFrom(c))
}

func (h *AuthHandler) respondSession(c echo.Context, status int, session identity.Session) error {
	c.SetCookie(&http.Cookie{
		Name:     tokenCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Debug("Session issued", zap.String("uid", session.Principal.UID), zap.String("provider", session.Principal.Provider))
	return c.JSON(status, session)
}
