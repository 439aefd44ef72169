package handler

import (
	"errors"
	"net/http"

	"crypto-trading-dashboard/internal/dashboard"
	"crypto-trading-dashboard/internal/docstore"
	"crypto-trading-dashboard/internal/identity"
	"crypto-trading-dashboard/internal/ledger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const genericMessage = "An error occurred. Please try again."

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WithErrorHandler renders errors returned by handlers. Unrecognised errors are logged
// and answered with a generic 500.
func WithErrorHandler(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil || c.Response().Committed {
				return err
			}

			body := describe(err)
			if body.Code >= http.StatusInternalServerError {
				logger.Error("api",
					zap.String("method", c.Request().Method),
					zap.String("path", c.Path()),
					zap.Error(err))
			}
			return c.JSON(body.Code, body)
		}
	}
}

func describe(err error) ErrorBody {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return ErrorBody{Code: he.Code, Message: msg}
	}

	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		return ErrorBody{Code: http.StatusBadRequest, Message: "Please check the trade details.", Fields: ve.Fields}
	}

	switch {
	case errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrWrongPassword),
		errors.Is(err, identity.ErrGoogleRejected):
		return ErrorBody{Code: http.StatusUnauthorized, Message: identity.Message(err)}
	case errors.Is(err, identity.ErrTooManyRequests):
		return ErrorBody{Code: http.StatusTooManyRequests, Message: identity.Message(err)}
	case errors.Is(err, identity.ErrEmailInUse):
		return ErrorBody{Code: http.StatusConflict, Message: identity.Message(err)}
	case identity.IsUserError(err):
		return ErrorBody{Code: http.StatusBadRequest, Message: identity.Message(err)}
	case errors.Is(err, dashboard.ErrTradeNotFound):
		return ErrorBody{Code: http.StatusNotFound, Message: "Trade not found."}
	case errors.Is(err, dashboard.ErrProfileNotFound):
		return ErrorBody{Code: http.StatusNotFound, Message: "Profile not found. Please sign in again."}
	case errors.Is(err, docstore.ErrNotFound):
		return ErrorBody{Code: http.StatusNotFound, Message: "Not found."}
	case errors.Is(err, dashboard.ErrNotConfirmed):
		return ErrorBody{Code: http.StatusBadRequest, Message: "Deletion must be confirmed."}
	case errors.Is(err, dashboard.ErrMissingAPIKeys):
		return ErrorBody{Code: http.StatusBadRequest, Message: dashboard.MsgAPIKeysRequired}
	case errors.Is(err, dashboard.ErrSessionClosed):
		return ErrorBody{Code: http.StatusServiceUnavailable, Message: "Your dashboard was closed. Please sign in again."}
	}
	return ErrorBody{Code: http.StatusInternalServerError, Message: genericMessage}
}
