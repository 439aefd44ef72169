package identity

import (
	"context"
	"fmt"
	"time"

	"crypto-trading-dashboard/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RecaptchaVerifier checks the challenge token submitted with a phone sign-in.
type RecaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

// GoogleIdentity is what a verified Google ID token asserts.
type GoogleIdentity struct {
	Subject string
	Email   string
}

// GoogleVerifier checks a Google ID token.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (GoogleIdentity, error)
}

// SiteVerifier verifies reCAPTCHA tokens against the siteverify endpoint.
// With no secret configured every token is accepted.
type SiteVerifier struct {
	client *resty.Client
	url    string
	secret string
	logger *zap.Logger
}

// ensure SiteVerifier implements the interface
var _ RecaptchaVerifier = (*SiteVerifier)(nil)

// NewSiteVerifier creates a reCAPTCHA verifier from the auth configuration.
func NewSiteVerifier(cfg *config.Config, logger *zap.Logger) *SiteVerifier {
	logger = logger.Named("recaptcha")
	if cfg.Auth.RecaptchaSecret == "" {
		logger.Warn("reCAPTCHA secret not configured, phone sign-in challenges are not verified")
	}
	return &SiteVerifier{
		client: resty.New().SetTimeout(10 * time.Second),
		url:    cfg.Auth.RecaptchaVerifyURL,
		secret: cfg.Auth.RecaptchaSecret,
		logger: logger,
	}
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify posts the token to the siteverify endpoint.
func (v *SiteVerifier) Verify(ctx context.Context, token string) error {
	if v.secret == "" {
		return nil
	}
	if token == "" {
		return ErrRecaptchaFailed
	}

	var result siteVerifyResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"secret":   v.secret,
			"response": token,
		}).
		SetResult(&result).
		Post(v.url)
	if err != nil {
		return fmt.Errorf("failed to reach recaptcha: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("recaptcha request failed with status %s", resp.Status())
	}
	if !result.Success {
		v.logger.Info("reCAPTCHA rejected", zap.Strings("error_codes", result.ErrorCodes))
		return ErrRecaptchaFailed
	}
	return nil
}

// TokenInfoVerifier validates Google ID tokens with the tokeninfo endpoint.
type TokenInfoVerifier struct {
	client   *resty.Client
	url      string
	clientID string
	logger   *zap.Logger
}

// ensure TokenInfoVerifier implements the interface
var _ GoogleVerifier = (*TokenInfoVerifier)(nil)

// NewTokenInfoVerifier creates a Google token verifier from the auth configuration.
func NewTokenInfoVerifier(cfg *config.Config, logger *zap.Logger) *TokenInfoVerifier {
	return &TokenInfoVerifier{
		client:   resty.New().SetTimeout(10 * time.Second),
		url:      cfg.Auth.GoogleTokenInfoURL,
		clientID: cfg.Auth.GoogleClientID,
		logger:   logger.Named("google"),
	}
}

type tokenInfoResponse struct {
	Audience      string `json:"aud"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
}

// Verify resolves the token and checks its audience and that the email is verified.
func (v *TokenInfoVerifier) Verify(ctx context.Context, idToken string) (GoogleIdentity, error) {
	if idToken == "" {
		return GoogleIdentity{}, ErrGoogleRejected
	}

	var info tokenInfoResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParam("id_token", idToken).
		SetResult(&info).
		Get(v.url)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("failed to reach google tokeninfo: %w", err)
	}
	if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
		return GoogleIdentity{}, ErrGoogleRejected
	}
	if resp.IsError() {
		return GoogleIdentity{}, fmt.Errorf("google tokeninfo failed with status %s", resp.Status())
	}

	if v.clientID != "" && info.Audience != v.clientID {
		v.logger.Warn("Google token issued for another client", zap.String("aud", info.Audience))
		return GoogleIdentity{}, ErrGoogleRejected
	}
	if info.Subject == "" || info.EmailVerified != "true" {
		return GoogleIdentity{}, ErrGoogleRejected
	}
	return GoogleIdentity{Subject: info.Subject, Email: info.Email}, nil
}

// SMSSender delivers verification codes.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// LogSender writes verification codes to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a development SMS transport.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("sms")}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, phoneNumber, message string) error {
	s.logger.Info("SMS", zap.String("to", phoneNumber), zap.String("message", message))
	return nil
}
