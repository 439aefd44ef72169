package dashboard

import (
	"crypto-trading-dashboard/internal/identity"
	"crypto-trading-dashboard/internal/ledger"
	"crypto-trading-dashboard/internal/models"
)

// Exchange panel texts.
const (
	NotConnected         = "Not Connected"
	ConnectForOpenOrders = "Connect your Weex API to view open orders"
	ConnectForPositions  = "Connect your Weex API to view positions"
	NoOpenOrders         = "No open orders"
	NoOpenPositions      = "No open positions"
)

// View is everything the dashboard page shows for one principal.
type View struct {
	Version   uint64             `json:"version"`
	Principal identity.Principal `json:"user"`
	Ledger    ledger.LedgerView  `json:"ledger"`
	Summary   ledger.SummaryView `json:"summary"`
	Exchange  ExchangeView       `json:"exchange"`
	Toasts    []Toast            `json:"toasts"`
}

// OrderRow is one open order.
type OrderRow struct {
	Symbol string       `json:"symbol"`
	Amount string       `json:"amount"`
	Price  string       `json:"price"`
	Side   ledger.Badge `json:"side"`
}

// PositionRow is one open position.
type PositionRow struct {
	Symbol        string      `json:"symbol"`
	Amount        string      `json:"amount"`
	EntryPrice    string      `json:"entryPrice"`
	UnrealizedPnL string      `json:"unrealizedPnL"`
	PnLTone       ledger.Tone `json:"pnlTone"`
}

// ExchangeView is the mirrored exchange account panel.
// A panel with no rows carries the message to show instead.
type ExchangeView struct {
	Connected        bool          `json:"connected"`
	Balance          string        `json:"balance"`
	OpenOrders       []OrderRow    `json:"openOrders"`
	OpenOrdersNotice string        `json:"openOrdersNotice,omitempty"`
	Positions        []PositionRow `json:"positions"`
	PositionsNotice  string        `json:"positionsNotice,omitempty"`
}

// RenderExchange renders the mirror; nil means there is none, or it could not be loaded.
func RenderExchange(account *models.ExchangeAccount) ExchangeView {
	if account == nil {
		return ExchangeView{
			Balance:          NotConnected,
			OpenOrders:       []OrderRow{},
			OpenOrdersNotice: ConnectForOpenOrders,
			Positions:        []PositionRow{},
			PositionsNotice:  ConnectForPositions,
		}
	}

	view := ExchangeView{
		Connected:  true,
		Balance:    ledger.FormatCurrency(account.BalanceUSDT),
		OpenOrders: make([]OrderRow, 0, len(account.OpenOrders)),
		Positions:  make([]PositionRow, 0, len(account.Positions)),
	}
	for _, o := range account.OpenOrders {
		view.OpenOrders = append(view.OpenOrders, OrderRow{
			Symbol: ledger.OrDefault(o.Symbol, ledger.NotAvailable),
			Amount: ledger.FormatNumber(o.Amount),
			Price:  ledger.FormatCurrency(o.Price),
			Side:   ledger.TradeBadge(o.Side),
		})
	}
	for _, p := range account.Positions {
		view.Positions = append(view.Positions, PositionRow{
			Symbol:        ledger.OrDefault(p.Symbol, ledger.NotAvailable),
			Amount:        ledger.FormatNumber(p.Amount),
			EntryPrice:    ledger.FormatCurrency(p.EntryPrice),
			UnrealizedPnL: ledger.FormatCurrency(p.UnrealizedPnL),
			PnLTone:       ledger.PnLTone(p.UnrealizedPnL),
		})
	}
	if len(view.OpenOrders) == 0 {
		view.OpenOrdersNotice = NoOpenOrders
	}
	if len(view.Positions) == 0 {
		view.PositionsNotice = NoOpenPositions
	}
	return view
}

// SettingsView is the profile and API configuration page.
type SettingsView struct {
	Email        string `json:"email"`
	MemberSince  string `json:"memberSince"`
	APIKey       string `json:"apiKey"`
	SecretKey    string `json:"secretKey"`
	APIConnected bool   `json:"apiConnected"`
}

// RenderSettings renders a profile; nil means the principal has no profile document yet.
func RenderSettings(profile *models.UserProfile, principal identity.Principal) SettingsView {
	if profile == nil {
		return SettingsView{
			Email:       ledger.OrDefault(principal.Email, ledger.NotAvailable),
			MemberSince: ledger.NotAvailable,
			APIKey:      ledger.NotConfigured,
			SecretKey:   ledger.NotConfigured,
		}
	}
	email := profile.Email
	if email == "" {
		email = principal.Email
	}
	return SettingsView{
		Email:        ledger.OrDefault(email, ledger.NotAvailable),
		MemberSince:  ledger.FormatTime(profile.CreatedAt),
		APIKey:       ledger.MaskedOrNotConfigured(profile.WeexAPIKey),
		SecretKey:    ledger.MaskedOrNotConfigured(profile.WeexSecretKey),
		APIConnected: profile.HasAPICredentials(),
	}
}
