// Package ledger turns raw trade records into the displayed ledger and its summary figures.
// Everything here is pure: the same input sequence always yields the same output.
package ledger

import (
	"sort"

	"crypto-trading-dashboard/internal/models"

	"github.com/shopspring/decimal"
)

// Summary holds the four ledger figures.
type Summary struct {
	Count       int             `json:"count"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
	TotalLoss   decimal.Decimal `json:"totalLoss"`
	NetProfit   decimal.Decimal `json:"netProfit"`
}

// Normalize returns a copy of records sorted newest first by createdAt.
// The sort is stable: equal timestamps keep their input order, and records without a
// timestamp go last in input order. Duplicate ids are kept.
func Normalize(records []models.TradeRecord) []models.TradeRecord {
	out := make([]models.TradeRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case !a.HasCreatedAt():
			return false
		case !b.HasCreatedAt():
			return true
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return out
}

// Aggregate sums profit and loss with a fixed-point accumulator, so the result
// does not depend on input order.
func Aggregate(records []models.TradeRecord) Summary {
	totalProfit := decimal.Zero
	totalLoss := decimal.Zero
	for _, r := range records {
		totalProfit = totalProfit.Add(r.Profit)
		totalLoss = totalLoss.Add(r.Loss)
	}
	return Summary{
		Count:       len(records),
		TotalProfit: totalProfit,
		TotalLoss:   totalLoss,
		NetProfit:   totalProfit.Sub(totalLoss),
	}
}
