package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeType is the side of a ledger entry.
type TradeType string

const (
	TradeTypeBuy     TradeType = "Buy"
	TradeTypeSell    TradeType = "Sell"
	TradeTypeUnknown TradeType = ""
)

// ParseTradeType compares case-insensitively; anything other than buy or sell is unknown.
func ParseTradeType(s string) TradeType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return TradeTypeBuy
	case "sell":
		return TradeTypeSell
	default:
		return TradeTypeUnknown
	}
}

// Trade document field names.
const (
	FieldOwner       = "uid"
	FieldDate        = "date"
	FieldCoinName    = "coinName"
	FieldTradeType   = "tradeType"
	FieldTotalTrade  = "totalTrade"
	FieldProfit      = "profit"
	FieldLoss        = "loss"
	FieldProfitINR   = "profitInINR"
	FieldTotalProfit = "totalProfit"
	FieldTotalLoss   = "totalLoss"
	FieldNote        = "note"
)

// TradeRecord is the typed, read-only mirror of a persisted trade document.
// Defaults are applied once in TradeFromDocument so renderers never see a partial record.
type TradeRecord struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId"`
	Date        string          `json:"date"`
	CoinName    string          `json:"coinName"`
	TradeType   string          `json:"tradeType"` // raw value as stored
	TotalTrade  decimal.Decimal `json:"totalTrade"`
	Profit      decimal.Decimal `json:"profit"`
	Loss        decimal.Decimal `json:"loss"`
	ProfitInINR decimal.Decimal `json:"profitInINR"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
	TotalLoss   decimal.Decimal `json:"totalLoss"`
	Note        string          `json:"note"`
	CreatedAt   time.Time       `json:"createdAt"` // zero when the store has not stamped it
}

// Type returns the parsed trade type.
func (t TradeRecord) Type() TradeType {
	return ParseTradeType(t.TradeType)
}

// HasCreatedAt reports whether the record carries a server timestamp.
func (t TradeRecord) HasCreatedAt() bool {
	return !t.CreatedAt.IsZero()
}

// TradeFromDocument is the ingestion boundary for trade documents.
func TradeFromDocument(doc Document) TradeRecord {
	f := doc.Fields()
	owner := doc.OwnerID
	if owner == "" {
		owner = Text(f[FieldOwner])
	}
	return TradeRecord{
		ID:          doc.ID,
		OwnerID:     owner,
		Date:        Text(f[FieldDate]),
		CoinName:    Text(f[FieldCoinName]),
		TradeType:   Text(f[FieldTradeType]),
		TotalTrade:  Amount(f[FieldTotalTrade]),
		Profit:      Amount(f[FieldProfit]),
		Loss:        Amount(f[FieldLoss]),
		ProfitInINR: Amount(f[FieldProfitINR]),
		TotalProfit: Amount(f[FieldTotalProfit]),
		TotalLoss:   Amount(f[FieldTotalLoss]),
		Note:        Text(f[FieldNote]),
		CreatedAt:   doc.CreatedAt,
	}
}

// TradesFromDocuments converts a snapshot, preserving delivery order.
func TradesFromDocuments(docs []Document) []TradeRecord {
	trades := make([]TradeRecord, 0, len(docs))
	for _, doc := range docs {
		trades = append(trades, TradeFromDocument(doc))
	}
	return trades
}
