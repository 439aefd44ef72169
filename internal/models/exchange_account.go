package models

import "github.com/shopspring/decimal"

// OpenOrder is a resting order on the connected exchange.
type OpenOrder struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
	Side   string          `json:"side"`
}

// Position is an open position on the connected exchange.
type Position struct {
	Symbol        string          `json:"symbol"`
	Amount        decimal.Decimal `json:"amount"`
	EntryPrice    decimal.Decimal `json:"entryPrice"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnL"`
}

// ExchangeAccount is the mirrored exchange state for one principal, stored at weexData/{uid}.
type ExchangeAccount struct {
	BalanceUSDT decimal.Decimal `json:"balanceUSDT"`
	OpenOrders  []OpenOrder     `json:"openOrders"`
	Positions   []Position      `json:"positions"`
}

// ExchangeAccountFromDocument is the ingestion boundary for the mirror document.
func ExchangeAccountFromDocument(doc Document) ExchangeAccount {
	f := doc.Fields()
	account := ExchangeAccount{
		BalanceUSDT: Amount(f["balanceUSDT"]),
	}
	for _, o := range List(f["openOrders"]) {
		account.OpenOrders = append(account.OpenOrders, OpenOrder{
			Symbol: Text(o["symbol"]),
			Amount: Amount(o["amount"]),
			Price:  Amount(o["price"]),
			Side:   Text(o["side"]),
		})
	}
	for _, p := range List(f["positions"]) {
		account.Positions = append(account.Positions, Position{
			Symbol:        Text(p["symbol"]),
			Amount:        Amount(p["amount"]),
			EntryPrice:    Amount(p["entryPrice"]),
			UnrealizedPnL: Amount(p["unrealizedPnL"]),
		})
	}
	return account
}

// Fields encodes the mirror as a document body. Amounts are written as strings to stay exact.
func (a ExchangeAccount) Fields() map[string]interface{} {
	orders := make([]map[string]interface{}, 0, len(a.OpenOrders))
	for _, o := range a.OpenOrders {
		orders = append(orders, map[string]interface{}{
			"symbol": o.Symbol,
			"amount": o.Amount.String(),
			"price":  o.Price.String(),
			"side":   o.Side,
		})
	}
	positions := make([]map[string]interface{}, 0, len(a.Positions))
	for _, p := range a.Positions {
		positions = append(positions, map[string]interface{}{
			"symbol":        p.Symbol,
			"amount":        p.Amount.String(),
			"entryPrice":    p.EntryPrice.String(),
			"unrealizedPnL": p.UnrealizedPnL.String(),
		})
	}
	return map[string]interface{}{
		"balanceUSDT": a.BalanceUSDT.String(),
		"openOrders":  orders,
		"positions":   positions,
	}
}
