package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crypto-trading-dashboard/internal/config"
	"crypto-trading-dashboard/internal/dashboard"
	"crypto-trading-dashboard/internal/docstore"
	"crypto-trading-dashboard/internal/identity"
	"crypto-trading-dashboard/internal/ledger"
	"crypto-trading-dashboard/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const validToken = "valid-token"

var alice = identity.Principal{UID: "alice", Email: "alice@example.com", Provider: identity.ProviderPassword}

// MockAuthenticator is a mock implementation of Authenticator.
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) CurrentPrincipal(token string) (identity.Principal, error) {
	args := m.Called(token)
	return args.Get(0).(identity.Principal), args.Error(1)
}

func (m *MockAuthenticator) SignUpEmail(ctx context.Context, email, password string) (identity.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(identity.Session), args.Error(1)
}

func (m *MockAuthenticator) SignInEmail(ctx context.Context, email, password string) (identity.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(identity.Session), args.Error(1)
}

func (m *MockAuthenticator) SignInGoogle(ctx context.Context, idToken string) (identity.Session, error) {
	args := m.Called(ctx, idToken)
	return args.Get(0).(identity.Session), args.Error(1)
}

func (m *MockAuthenticator) SendPhoneCode(ctx context.Context, phoneNumber, recaptchaToken string) (string, error) {
	args := m.Called(ctx, phoneNumber, recaptchaToken)
	return args.String(0), args.Error(1)
}

func (m *MockAuthenticator) ConfirmPhoneCode(ctx context.Context, verificationID, code string) (identity.Session, error) {
	args := m.Called(ctx, verificationID, code)
	return args.Get(0).(identity.Session), args.Error(1)
}

func (m *MockAuthenticator) SignOut(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type fixture struct {
	e       *echo.Echo
	auth    *MockAuthenticator
	store   *docstore.GormStore
	manager *dashboard.Manager
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Document{}))

	store := docstore.NewGormStore(db, zap.NewNop())
	t.Cleanup(store.Close)

	auth := new(MockAuthenticator)
	auth.On("CurrentPrincipal", validToken).Return(alice, nil).Maybe()
	auth.On("CurrentPrincipal", mock.Anything).Return(identity.Principal{}, identity.ErrInvalidToken).Maybe()

	cfg := &config.Config{Dashboard: config.Dashboard{ToastTTLSeconds: 60}}
	manager := dashboard.NewManager(cfg, store, noEvents{}, zap.NewNop())
	t.Cleanup(manager.Close)

	logger := zap.NewNop()
	e := NewServer(logger, auth, NewAuthHandler(auth, logger), NewDashboardHandler(manager, logger))
	return &fixture{e: e, auth: auth, store: store, manager: manager}
}

type noEvents struct{}

func (noEvents) Watch() (<-chan identity.Event, func()) {
	return make(chan identity.Event), func() {}
}

func (f *fixture) do(method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func session(token string) identity.Session {
	return identity.Session{Token: token, ExpiresAt: time.Now().Add(time.Hour), Principal: alice}
}

func TestHealth(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAuthRoutes(t *testing.T) {
	f := setup(t)

	t.Run("SignUp", func(t *testing.T) {
		f.auth.On("SignUpEmail", mock.Anything, "new@example.com", "secret1").Return(session("tok-1"), nil).Once()
		rec := f.do(http.MethodPost, "/api/auth/signup", `{"email":"new@example.com","password":"secret1"}`, "")
		require.Equal(t, http.StatusCreated, rec.Code)

		var got identity.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "tok-1", got.Token)
		assert.Equal(t, alice.UID, got.Principal.UID)

		cookie := rec.Result().Cookies()
		require.NotEmpty(t, cookie)
		assert.Equal(t, tokenCookie, cookie[0].Name)
		assert.Equal(t, "tok-1", cookie[0].Value)
		assert.True(t, cookie[0].HttpOnly)
	})

	t.Run("EmailInUse", func(t *testing.T) {
		f.auth.On("SignUpEmail", mock.Anything, "taken@example.com", "secret1").Return(identity.Session{}, identity.ErrEmailInUse).Once()
		rec := f.do(http.MethodPost, "/api/auth/signup", `{"email":"taken@example.com","password":"secret1"}`, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "An account with this email already exists.", decodeError(t, rec).Message)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		f.auth.On("SignInEmail", mock.Anything, "a@example.com", "nope").Return(identity.Session{}, identity.ErrWrongPassword).Once()
		rec := f.do(http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"nope"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Incorrect password.", decodeError(t, rec).Message)
	})

	t.Run("Throttled", func(t *testing.T) {
		f.auth.On("SignInEmail", mock.Anything, "b@example.com", "x").Return(identity.Session{}, identity.ErrTooManyRequests).Once()
		rec := f.do(http.MethodPost, "/api/auth/login", `{"email":"b@example.com","password":"x"}`, "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("WeakPassword", func(t *testing.T) {
		f.auth.On("SignUpEmail", mock.Anything, "c@example.com", "123").Return(identity.Session{}, identity.ErrWeakPassword).Once()
		rec := f.do(http.MethodPost, "/api/auth/signup", `{"email":"c@example.com","password":"123"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Password should be at least 6 characters.", decodeError(t, rec).Message)
	})

	t.Run("GoogleRequiresToken", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/auth/google", `{}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.auth.AssertNotCalled(t, "SignInGoogle", mock.Anything, mock.Anything)
	})

	t.Run("Google", func(t *testing.T) {
		f.auth.On("SignInGoogle", mock.Anything, "id-token").Return(session("tok-g"), nil).Once()
		rec := f.do(http.MethodPost, "/api/auth/google", `{"idToken":"id-token"}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Phone", func(t *testing.T) {
		f.auth.On("SendPhoneCode", mock.Anything, "+15550100", "captcha").Return("vid-1", nil).Once()
		rec := f.do(http.MethodPost, "/api/auth/phone/send", `{"phoneNumber":"+15550100","recaptchaToken":"captcha"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"verificationId":"vid-1"}`, rec.Body.String())

		f.auth.On("ConfirmPhoneCode", mock.Anything, "vid-1", "000000").Return(identity.Session{}, identity.ErrInvalidCode).Once()
		rec = f.do(http.MethodPost, "/api/auth/phone/verify", `{"verificationId":"vid-1","code":"000000"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid verification code", decodeError(t, rec).Message)
	})

	t.Run("BadPayload", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/auth/login", `{"email":`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthMiddleware(t *testing.T) {
	f := setup(t)

	t.Run("Missing", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/auth/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Missing authentication token", decodeError(t, rec).Message)
	})

	t.Run("Invalid", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/auth/me", "", "forged")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, identity.Message(identity.ErrInvalidToken), decodeError(t, rec).Message)
	})

	t.Run("Bearer", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/auth/me", "", validToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var p identity.Principal
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, alice, p)
	})

	t.Run("Cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookie, Value: validToken})
		rec := httptest.NewRecorder()
		f.e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Logout", func(t *testing.T) {
		f.auth.On("SignOut", mock.Anything, validToken).Return(nil).Once()
		rec := f.do(http.MethodPost, "/api/auth/logout", "", validToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, "", cookies[0].Value)
		assert.Less(t, cookies[0].MaxAge, 0)
		f.auth.AssertCalled(t, "SignOut", mock.Anything, validToken)
	})
}

func TestTradeRoutes(t *testing.T) {
	f := setup(t)

	rec := f.do(http.MethodPost, "/api/trades",
		`{"date":"2024-03-05","coinName":"btc","tradeType":"Buy","totalTrade":1500,"profit":"40","profitInINR":"2100"}`, validToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"]
	require.NotEmpty(t, id)

	var listed ledgerResponse
	require.Eventually(t, func() bool {
		rec := f.do(http.MethodGet, "/api/trades", "", validToken)
		if rec.Code != http.StatusOK {
			return false
		}
		listed = ledgerResponse{}
		return json.Unmarshal(rec.Body.Bytes(), &listed) == nil && len(listed.Ledger.Rows) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "BTC", listed.Ledger.Rows[0].CoinName)
	assert.Equal(t, "1", listed.Summary.TotalTrades)
	assert.Equal(t, "₹40.00", listed.Summary.TotalProfit)
	assert.Equal(t, "₹2,100.00", listed.Ledger.Rows[0].ProfitINR)

	t.Run("Invalid", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/trades", `{"date":"05/03/2024","tradeType":"Hold","totalTrade":"x"}`, validToken)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Contains(t, body.Fields, "date")
		assert.Contains(t, body.Fields, "coinName")
		assert.Contains(t, body.Fields, "tradeType")
		assert.Contains(t, body.Fields, "totalTrade")
	})

	t.Run("DeleteUnconfirmed", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/api/trades/"+id, "", validToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/api/trades/missing?confirm=true", "", validToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Trade not found.", decodeError(t, rec).Message)

		view := f.do(http.MethodGet, "/api/dashboard", "", validToken)
		require.Equal(t, http.StatusOK, view.Code)
		var v dashboard.View
		require.NoError(t, json.Unmarshal(view.Body.Bytes(), &v))
		assert.Len(t, v.Ledger.Rows, 1)
		assert.Contains(t, view.Body.String(), dashboard.MsgTradeDeleteFailed)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/api/trades/"+id+"?confirm=true", "", validToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		_, err := f.store.Get(context.Background(), models.CollectionTrades, id)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestSettingsRoutes(t *testing.T) {
	f := setup(t)

	rec := f.do(http.MethodGet, "/api/settings", "", validToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings dashboard.SettingsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, alice.Email, settings.Email)
	assert.Equal(t, ledger.NotConfigured, settings.APIKey)
	assert.NotEqual(t, ledger.NotAvailable, settings.MemberSince)

	rec = f.do(http.MethodPut, "/api/settings/api-keys", `{"apiKey":"abc"}`, validToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, dashboard.MsgAPIKeysRequired, decodeError(t, rec).Message)

	rec = f.do(http.MethodPut, "/api/settings/api-keys", `{"apiKey":"abcd1234wxyz","secretKey":"secret-0987"}`, validToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "abcd••••••••wxyz", settings.APIKey)
	assert.Equal(t, "secr••••••••0987", settings.SecretKey)
	assert.True(t, settings.APIConnected)
}

func TestDashboardStream(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.e)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/dashboard/stream", nil)
	require.NoError(t, err)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+validToken)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	reader := bufio.NewReader(resp.Body)
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var v dashboard.View
	require.NoError(t, json.Unmarshal([]byte(data), &v))
	assert.Equal(t, alice.UID, v.Principal.UID)
	assert.NotZero(t, v.Version)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"NotFound", docstore.ErrNotFound, http.StatusNotFound},
		{"TradeNotFound", fmt.Errorf("delete: %w: %w", dashboard.ErrTradeNotFound, docstore.ErrNotFound), http.StatusNotFound},
		{"ProfileNotFound", fmt.Errorf("save: %w: %w", dashboard.ErrProfileNotFound, docstore.ErrNotFound), http.StatusNotFound},
		{"Validation", &ledger.ValidationError{Fields: map[string]string{"date": "is required"}}, http.StatusBadRequest},
		{"Closed", dashboard.ErrSessionClosed, http.StatusServiceUnavailable},
		{"HTTP", echo.NewHTTPError(http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{"Unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := describe(tt.err)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
	assert.Equal(t, genericMessage, describe(assert.AnError).Message)
	assert.Equal(t, "Not found.", describe(docstore.ErrNotFound).Message)
	assert.Equal(t, "Trade not found.", describe(fmt.Errorf("x: %w", dashboard.ErrTradeNotFound)).Message)
	assert.Equal(t, "Profile not found. Please sign in again.", describe(fmt.Errorf("x: %w", dashboard.ErrProfileNotFound)).Message)
}
