package dashboard

import (
	"testing"
	"time"

	"crypto-trading-dashboard/internal/identity"
	"crypto-trading-dashboard/internal/ledger"
	"crypto-trading-dashboard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRenderExchange(t *testing.T) {
	t.Run("NotConnected", func(t *testing.T) {
		v := RenderExchange(nil)
		assert.False(t, v.Connected)
		assert.Equal(t, NotConnected, v.Balance)
		assert.Empty(t, v.OpenOrders)
		assert.NotNil(t, v.OpenOrders)
		assert.Equal(t, ConnectForOpenOrders, v.OpenOrdersNotice)
		assert.Equal(t, ConnectForPositions, v.PositionsNotice)
	})

	t.Run("Empty", func(t *testing.T) {
		v := RenderExchange(&models.ExchangeAccount{})
		assert.True(t, v.Connected)
		assert.Equal(t, "$0.00", v.Balance)
		assert.Equal(t, NoOpenOrders, v.OpenOrdersNotice)
		assert.Equal(t, NoOpenPositions, v.PositionsNotice)
	})

	t.Run("Rows", func(t *testing.T) {
		v := RenderExchange(&models.ExchangeAccount{
			BalanceUSDT: mustDecimal("98765.432"),
			OpenOrders: []models.OpenOrder{
				{Symbol: "ETHUSDT", Amount: mustDecimal("1.5"), Price: mustDecimal("3200"), Side: "buy"},
				{Amount: decimal.Zero, Side: "hold"},
			},
			Positions: []models.Position{
				{Symbol: "BTCUSDT", Amount: mustDecimal("0.01"), EntryPrice: mustDecimal("61000"), UnrealizedPnL: mustDecimal("-12.5")},
			},
		})

		assert.Equal(t, "$98,765.43", v.Balance)
		require.Len(t, v.OpenOrders, 2)
		assert.Equal(t, OrderRow{
			Symbol: "ETHUSDT",
			Amount: "1.50",
			Price:  "$3,200.00",
			Side:   ledger.TradeBadge("buy"),
		}, v.OpenOrders[0])
		assert.Equal(t, ledger.NotAvailable, v.OpenOrders[1].Symbol)
		assert.Equal(t, "0", v.OpenOrders[1].Amount)
		assert.Empty(t, v.OpenOrdersNotice)

		require.Len(t, v.Positions, 1)
		p := v.Positions[0]
		assert.Equal(t, "$61,000.00", p.EntryPrice)
		assert.Equal(t, "-$12.50", p.UnrealizedPnL)
		assert.Equal(t, ledger.PnLTone(mustDecimal("-12.5")), p.PnLTone)
		assert.Empty(t, v.PositionsNotice)
	})
}

func TestRenderSettings(t *testing.T) {
	principal := identity.Principal{UID: "u1", Email: "signin@example.com"}

	t.Run("NoProfile", func(t *testing.T) {
		v := RenderSettings(nil, principal)
		assert.Equal(t, "signin@example.com", v.Email)
		assert.Equal(t, ledger.NotAvailable, v.MemberSince)
		assert.Equal(t, ledger.NotConfigured, v.APIKey)
		assert.Equal(t, ledger.NotConfigured, v.SecretKey)
		assert.False(t, v.APIConnected)
	})

	t.Run("PhonePrincipal", func(t *testing.T) {
		v := RenderSettings(&models.UserProfile{UID: "u2"}, identity.Principal{UID: "u2", PhoneNumber: "+15550100"})
		assert.Equal(t, ledger.NotAvailable, v.Email)
	})

	t.Run("Configured", func(t *testing.T) {
		v := RenderSettings(&models.UserProfile{
			UID:           "u1",
			Email:         "profile@example.com",
			CreatedAt:     time.Date(2023, 11, 20, 8, 0, 0, 0, time.UTC),
			WeexAPIKey:    "short",
			WeexSecretKey: "0123456789",
		}, principal)
		assert.Equal(t, "profile@example.com", v.Email)
		assert.Equal(t, "Nov 20, 2023", v.MemberSince)
		assert.Equal(t, "••••••••", v.APIKey)
		assert.Equal(t, "0123••••••••6789", v.SecretKey)
		assert.True(t, v.APIConnected)
	})
}
