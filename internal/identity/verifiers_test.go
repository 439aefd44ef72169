package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"crypto-trading-dashboard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSiteVerifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/siteverify", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "shh", r.PostForm.Get("secret"))

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("response") {
		case "human":
			_, _ = w.Write([]byte(`{"success": true, "hostname": "localhost"}`))
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
		}
	}))
	defer server.Close()

	cfg := &config.Config{Auth: config.Auth{RecaptchaSecret: "shh", RecaptchaVerifyURL: server.URL + "/siteverify"}}
	v := NewSiteVerifier(cfg, zap.NewNop())
	ctx := context.Background()

	assert.NoError(t, v.Verify(ctx, "human"))
	assert.ErrorIs(t, v.Verify(ctx, "robot"), ErrRecaptchaFailed)
	assert.ErrorIs(t, v.Verify(ctx, ""), ErrRecaptchaFailed)

	err := v.Verify(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRecaptchaFailed)

	t.Run("NoSecretAcceptsEverything", func(t *testing.T) {
		open := NewSiteVerifier(&config.Config{}, zap.NewNop())
		assert.NoError(t, open.Verify(ctx, ""))
	})
}

func TestTokenInfoVerifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokeninfo", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("id_token") {
		case "valid":
			_, _ = w.Write([]byte(`{"aud": "client-1", "sub": "1234", "email": "a@b.io", "email_verified": "true"}`))
		case "other-app":
			_, _ = w.Write([]byte(`{"aud": "client-2", "sub": "1234", "email": "a@b.io", "email_verified": "true"}`))
		case "unverified":
			_, _ = w.Write([]byte(`{"aud": "client-1", "sub": "1234", "email": "a@b.io", "email_verified": "false"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid_token"}`))
		}
	}))
	defer server.Close()

	cfg := &config.Config{Auth: config.Auth{GoogleClientID: "client-1", GoogleTokenInfoURL: server.URL + "/tokeninfo"}}
	v := NewTokenInfoVerifier(cfg, zap.NewNop())
	ctx := context.Background()

	id, err := v.Verify(ctx, "valid")
	require.NoError(t, err)
	assert.Equal(t, GoogleIdentity{Subject: "1234", Email: "a@b.io"}, id)

	for _, token := range []string{"other-app", "unverified", "garbage", ""} {
		_, err := v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrGoogleRejected, token)
	}
}
