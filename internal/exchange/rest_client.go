// Package exchange reads account state from the Weex REST API and mirrors it into the document store.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crypto-trading-dashboard/internal/config"
	"crypto-trading-dashboard/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	successCode = "00000"
	quoteCoin   = "USDT"
	maxRetries  = 3
)

// ErrMissingCredentials is returned when a call is made without both API keys.
var ErrMissingCredentials = errors.New("exchange API credentials are not configured")

// Credentials are one principal's API keys.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// Client defines the exchange calls the mirror needs.
type Client interface {
	GetAccount(ctx context.Context, creds Credentials) (decimal.Decimal, error)
	GetOpenOrders(ctx context.Context, creds Credentials) ([]models.OpenOrder, error)
	GetPositions(ctx context.Context, creds Credentials) ([]models.Position, error)
}

// RestClient is a client for the Weex REST API.
// It implements the Client interface.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	now     func() time.Time
	backoff func(attempt int) time.Duration
}

// ensure RestClient implements the interface
var _ Client = (*RestClient)(nil)

// NewRestClient creates a new exchange REST API client.
func NewRestClient(cfg *config.Config, logger *zap.Logger) *RestClient {
	logger = logger.Named("exchange")
	logger.Info("Using exchange API", zap.String("base_url", cfg.Exchange.BaseURL))

	return &RestClient{
		client:  resty.New().SetBaseURL(cfg.Exchange.BaseURL).SetTimeout(15 * time.Second),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.Exchange.RateLimit), cfg.Exchange.RateLimitBurst),
		now:     time.Now,
		backoff: func(attempt int) time.Duration {
			// Exponential backoff: 1s, 2s, 4s
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
	}
}

// envelope is the common response wrapper of the API.
type envelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

// sign creates the base64 HMAC-SHA256 signature of timestamp + method + path + query.
func sign(secret, timestamp, method, path, query string) string {
	payload := timestamp + strings.ToUpper(method) + path
	if query != "" {
		payload += "?" + query
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *RestClient) signed(ctx context.Context, creds Credentials, method, path string, query map[string]string) *resty.Request {
	req := c.client.R().SetContext(ctx)
	var qs string
	if len(query) > 0 {
		req.SetQueryParams(query)
		qs = req.QueryParam.Encode()
	}
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	return req.
		SetHeader("ACCESS-KEY", creds.APIKey).
		SetHeader("ACCESS-TIMESTAMP", timestamp).
		SetHeader("ACCESS-SIGN", sign(creds.SecretKey, timestamp, method, path, qs)).
		SetHeader("Content-Type", "application/json")
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// newReq is called for every attempt so each one carries a fresh timestamp and signature.
func (c *RestClient) doRequest(ctx context.Context, method, url string, newReq func() *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = newReq().Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err == nil && resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == http.StatusTeapot {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else if ctx.Err() == nil {
			// Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			if err != nil {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			retryAfter = c.backoff(i)
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil {
		err = fmt.Errorf("status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

func get[T any](ctx context.Context, c *RestClient, creds Credentials, path string, query map[string]string) (T, error) {
	var zero T
	if creds.APIKey == "" || creds.SecretKey == "" {
		return zero, ErrMissingCredentials
	}

	var out envelope[T]
	newReq := func() *resty.Request {
		out = envelope[T]{}
		return c.signed(ctx, creds, http.MethodGet, path, query).SetResult(&out)
	}
	if _, err := c.doRequest(ctx, http.MethodGet, path, newReq); err != nil {
		return zero, err
	}
	if out.Code != successCode {
		return zero, fmt.Errorf("exchange error %s: %s", out.Code, out.Msg)
	}
	return out.Data, nil
}

type assetResponse struct {
	CoinName  string `json:"coinName"`
	Available string `json:"available"`
	Frozen    string `json:"frozen"`
}

// GetAccount returns the USDT balance, available plus frozen.
func (c *RestClient) GetAccount(ctx context.Context, creds Credentials) (decimal.Decimal, error) {
	assets, err := get[[]assetResponse](ctx, c, creds, "/account/assets", nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get account assets: %w", err)
	}
	for _, a := range assets {
		if strings.EqualFold(a.CoinName, quoteCoin) {
			return models.Amount(a.Available).Add(models.Amount(a.Frozen)), nil
		}
	}
	return decimal.Zero, nil
}

type openOrderResponse struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// GetOpenOrders returns the resting orders.
func (c *RestClient) GetOpenOrders(ctx context.Context, creds Credentials) ([]models.OpenOrder, error) {
	raw, err := get[[]openOrderResponse](ctx, c, creds, "/trade/open-orders", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}
	orders := make([]models.OpenOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, models.OpenOrder{
			Symbol: o.Symbol,
			Amount: models.Amount(o.Quantity),
			Price:  models.Amount(o.Price),
			Side:   o.Side,
		})
	}
	return orders, nil
}

type positionResponse struct {
	Symbol        string `json:"symbol"`
	Size          string `json:"size"`
	OpenAvgPrice  string `json:"openAvgPrice"`
	UnrealizedPnl string `json:"unrealizedPnl"`
}

// GetPositions returns the open positions.
func (c *RestClient) GetPositions(ctx context.Context, creds Credentials) ([]models.Position, error) {
	raw, err := get[[]positionResponse](ctx, c, creds, "/position/all-positions", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	positions := make([]models.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, models.Position{
			Symbol:        p.Symbol,
			Amount:        models.Amount(p.Size),
			EntryPrice:    models.Amount(p.OpenAvgPrice),
			UnrealizedPnL: models.Amount(p.UnrealizedPnl),
		})
	}
	return positions, nil
}
