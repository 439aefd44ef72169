package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func doc(id, body string) Document {
	return Document{
		Collection: CollectionTrades,
		ID:         id,
		OwnerID:    "user-1",
		Data:       []byte(body),
		CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTradeFromDocument(t *testing.T) {
	t.Run("FullRecord", func(t *testing.T) {
		rec := TradeFromDocument(doc("t1", `{
			"uid": "user-1", "date": "2024-03-01", "coinName": "BTC", "tradeType": "Buy",
			"totalTrade": 1500.5, "profit": 100, "loss": "30.25", "profitInINR": 8300,
			"note": "breakout"
		}`))

		assert.Equal(t, "t1", rec.ID)
		assert.Equal(t, "user-1", rec.OwnerID)
		assert.Equal(t, "2024-03-01", rec.Date)
		assert.Equal(t, "BTC", rec.CoinName)
		assert.Equal(t, TradeTypeBuy, rec.Type())
		assert.True(t, rec.TotalTrade.Equal(decimal.RequireFromString("1500.5")))
		assert.True(t, rec.Profit.Equal(decimal.NewFromInt(100)))
		assert.True(t, rec.Loss.Equal(decimal.RequireFromString("30.25")))
		assert.True(t, rec.ProfitInINR.Equal(decimal.NewFromInt(8300)))
		assert.Equal(t, "breakout", rec.Note)
		assert.True(t, rec.HasCreatedAt())
	})

	t.Run("MissingAndInvalidNumbersDefaultToZero", func(t *testing.T) {
		rec := TradeFromDocument(doc("t2", `{"profit": "abc", "loss": null, "totalTrade": true}`))

		assert.True(t, rec.Profit.IsZero())
		assert.True(t, rec.Loss.IsZero())
		assert.True(t, rec.TotalTrade.IsZero())
		assert.True(t, rec.ProfitInINR.IsZero())
		assert.Equal(t, "", rec.CoinName)
		assert.Equal(t, TradeTypeUnknown, rec.Type())
	})

	t.Run("CorruptBody", func(t *testing.T) {
		rec := TradeFromDocument(doc("t3", `{not json`))
		assert.Equal(t, "t3", rec.ID)
		assert.True(t, rec.Profit.IsZero())
	})

	t.Run("OwnerFallsBackToBody", func(t *testing.T) {
		d := doc("t4", `{"uid": "user-9"}`)
		d.OwnerID = ""
		assert.Equal(t, "user-9", TradeFromDocument(d).OwnerID)
	})
}

func TestParseTradeType(t *testing.T) {
	testCases := []struct {
		in   string
		want TradeType
	}{
		{"Buy", TradeTypeBuy},
		{"buy", TradeTypeBuy},
		{" BUY ", TradeTypeBuy},
		{"Sell", TradeTypeSell},
		{"sell", TradeTypeSell},
		{"", TradeTypeUnknown},
		{"hold", TradeTypeUnknown},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ParseTradeType(tc.in), tc.in)
	}
}

func TestExchangeAccountFromDocument(t *testing.T) {
	d := Document{Data: []byte(`{
		"balanceUSDT": 1234.56,
		"openOrders": [{"symbol": "BTCUSDT", "amount": "0.5", "price": 60000, "side": "buy"}, "garbage"],
		"positions": [{"symbol": "ETHUSDT", "amount": 2, "entryPrice": 3000, "unrealizedPnL": -45.5}]
	}`)}

	account := ExchangeAccountFromDocument(d)

	assert.True(t, account.BalanceUSDT.Equal(decimal.RequireFromString("1234.56")))
	if assert.Len(t, account.OpenOrders, 1) {
		assert.Equal(t, "BTCUSDT", account.OpenOrders[0].Symbol)
		assert.True(t, account.OpenOrders[0].Amount.Equal(decimal.RequireFromString("0.5")))
		assert.Equal(t, "buy", account.OpenOrders[0].Side)
	}
	if assert.Len(t, account.Positions, 1) {
		assert.True(t, account.Positions[0].UnrealizedPnL.Equal(decimal.RequireFromString("-45.5")))
	}
}

func TestUserProfileFromDocument(t *testing.T) {
	created := time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC)
	fields := NewUserProfileFields("user-1", "a@b.io", "", created)
	fields[FieldWeexAPIKey] = "key"

	d := Document{ID: "user-1", Data: mustJSON(t, fields), CreatedAt: time.Now()}
	profile := UserProfileFromDocument(d)

	assert.Equal(t, "user-1", profile.UID)
	assert.Equal(t, "a@b.io", profile.Email)
	assert.True(t, created.Equal(profile.CreatedAt))
	assert.False(t, profile.HasAPICredentials())
}
