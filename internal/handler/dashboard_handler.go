package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crypto-trading-dashboard/internal/dashboard"
	"crypto-trading-dashboard/internal/identity"
	"crypto-trading-dashboard/internal/ledger"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const streamKeepAlive = 15 * time.Second

// SessionOpener hands out the dashboard session of a principal.
type SessionOpener interface {
	Open(ctx context.Context, principal identity.Principal) (*dashboard.Session, error)
}

// DashboardHandler serves the dashboard, ledger and settings of the signed-in principal.
type DashboardHandler struct {
	sessions SessionOpener
	logger   *zap.Logger
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(sessions SessionOpener, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{sessions: sessions, logger: logger.Named("dashboard_api")}
}

type apiKeysRequest struct {
	APIKey    string `json:"apiKey"`
	SecretKey string `json:"secretKey"`
}

type ledgerResponse struct {
	Ledger  ledger.LedgerView  `json:"ledger"`
	Summary ledger.SummaryView `json:"summary"`
}

func (h *DashboardHandler) session(c echo.Context) (*dashboard.Session, error) {
	return h.sessions.Open(c.Request().Context(), principalFrom(c))
}

// GetDashboard returns the current view.
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.View())
}

// Stream pushes every new view as a server-sent event until the client goes away.
// GET /api/dashboard/stream
func (h *DashboardHandler) Stream(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	views, cancel, err := s.Watch()
	if err != nil {
		return err
	}
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case view, ok := <-views:
			if !ok {
				return nil
			}
			data, err := json.Marshal(view)
			if err != nil {
				h.logger.Error("Failed to encode view", zap.Error(err))
				return nil
			}
			if _, err := fmt.Fprintf(res, "id: %d\nevent: view\ndata: %s\n\n", view.Version, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// ListTrades returns the ledger and its summary.
// GET /api/trades
func (h *DashboardHandler) ListTrades(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	v := s.View()
	return c.JSON(http.StatusOK, ledgerResponse{Ledger: v.Ledger, Summary: v.Summary})
}

// CreateTrade records a manual trade.
// POST /api/trades
func (h *DashboardHandler) CreateTrade(c echo.Context) error {
	var form ledger.TradeForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	id, err := s.SubmitTrade(c.Request().Context(), form)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// DeleteTrade removes a trade; the request must carry confirm=true.
// DELETE /api/trades/:id
func (h *DashboardHandler) DeleteTrade(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	confirmed := cast.ToBool(c.QueryParam("confirm"))
	if err := s.RequestDelete(c.Request().Context(), c.Param("id"), confirmed); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSettings returns the profile page.
// GET /api/settings
func (h *DashboardHandler) GetSettings(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	settings, err := s.Settings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

// SaveAPIKeys stores the exchange API keys and returns the updated profile page.
// PUT /api/settings/api-keys
func (h *DashboardHandler) SaveAPIKeys(c echo.Context) error {
	var req apiKeysRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.SaveAPIConfig(ctx, req.APIKey, req.SecretKey); err != nil {
		return err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}
