package ledger

import "crypto-trading-dashboard/internal/models"

// State says which of the three ledger panels is shown.
type State string

const (
	StateReady       State = "ready"
	StateEmpty       State = "empty"
	StateUnavailable State = "unavailable"
)

// Panel messages.
const (
	EmptyMessage       = "No trades found. Data will appear here when trades are automatically imported."
	UnavailableMessage = "No trades found"
)

// Row is one display row of the ledger.
type Row struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	CoinName   string `json:"coinName"`
	Type       Badge  `json:"type"`
	TotalTrade string `json:"totalTrade"`
	Profit     string `json:"profit"`
	Loss       string `json:"loss"`
	ProfitINR  string `json:"profitInINR"`
	Note       string `json:"note"`
}

// LedgerView is the rendered ledger panel.
type LedgerView struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
	Rows    []Row  `json:"rows"`
}

// SummaryView is the rendered summary cards.
type SummaryView struct {
	TotalTrades string `json:"totalTrades"`
	TotalProfit string `json:"totalProfit"`
	TotalLoss   string `json:"totalLoss"`
	NetProfit   string `json:"netProfit"`
	NetTone     Tone   `json:"netTone"`
}

// RenderRow formats a single record.
func RenderRow(r models.TradeRecord) Row {
	return Row{
		ID:         r.ID,
		Date:       FormatDate(r.Date),
		CoinName:   OrDefault(r.CoinName, NotAvailable),
		Type:       TradeBadge(r.TradeType),
		TotalTrade: FormatINR(r.TotalTrade),
		Profit:     FormatCurrency(r.Profit),
		Loss:       FormatCurrency(r.Loss),
		ProfitINR:  FormatINR(r.ProfitInINR),
		Note:       OrDefault(r.Note, NoNote),
	}
}

// RenderLedger normalizes records and renders them, or the empty panel when there are none.
func RenderLedger(records []models.TradeRecord) LedgerView {
	if len(records) == 0 {
		return LedgerView{State: StateEmpty, Message: EmptyMessage, Rows: []Row{}}
	}
	normalized := Normalize(records)
	rows := make([]Row, 0, len(normalized))
	for _, r := range normalized {
		rows = append(rows, RenderRow(r))
	}
	return LedgerView{State: StateReady, Rows: rows}
}

// RenderUnavailable is the panel shown when the trade feed failed.
func RenderUnavailable() LedgerView {
	return LedgerView{State: StateUnavailable, Message: UnavailableMessage, Rows: []Row{}}
}

// RenderSummary formats the summary figures.
func RenderSummary(s Summary) SummaryView {
	return SummaryView{
		TotalTrades: FormatCount(s.Count),
		TotalProfit: FormatINR(s.TotalProfit),
		TotalLoss:   FormatINR(s.TotalLoss),
		NetProfit:   FormatINR(s.NetProfit),
		NetTone:     NetTone(s.NetProfit),
	}
}
