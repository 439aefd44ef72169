package ledger

import (
	"math"
	"strings"
	"time"

	"crypto-trading-dashboard/internal/models"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Placeholders shown instead of missing values.
const (
	NotAvailable  = "N/A"
	NoNote        = "-"
	NotConfigured = "Not configured"
	maskGlyphs    = "••••••••"
)

// Tone is the colour class a value is painted with.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
	ToneUnknown  Tone = "unknown"
)

var (
	usdFormatter    = currencyFormatter(money.USD)
	inrFormatter    = currencyFormatter(money.INR)
	numberFormatter = money.NewFormatter(2, ".", ",", "", "1")
	countFormatter  = money.NewFormatter(0, ".", ",", "", "1")
)

func currencyFormatter(code string) *money.Formatter {
	// to get a never nil currency go through the Money constructor
	return money.New(0, code).Currency().Formatter()
}

// maxMinor is the largest magnitude go-money can format in hundredths.
var maxMinor = decimal.NewFromInt(math.MaxInt64).Shift(-2)

// formatAmount rounds half away from zero to hundredths. Amounts past the int64
// range of go-money are grouped from the decimal string with the same formatter.
func formatAmount(f *money.Formatter, d decimal.Decimal) string {
	d = d.Round(2)
	if d.Abs().LessThanOrEqual(maxMinor) {
		return f.Format(d.Shift(2).IntPart())
	}

	digits := d.Abs().StringFixed(2)
	whole, frac := digits[:len(digits)-3], digits[len(digits)-2:]
	if f.Thousand != "" {
		for i := len(whole) - 3; i > 0; i -= 3 {
			whole = whole[:i] + f.Thousand + whole[i:]
		}
	}
	out := strings.Replace(f.Template, "1", whole+f.Decimal+frac, 1)
	out = strings.Replace(out, "$", f.Grapheme, 1)
	if d.IsNegative() {
		out = "-" + out
	}
	return out
}

// FormatCurrency renders a USD amount: "$1,234.50", "-$5.00", "$0.00".
func FormatCurrency(d decimal.Decimal) string {
	return formatAmount(usdFormatter, d)
}

// FormatCurrencyValue formats a raw document value; missing or non-numeric input gives "$0.00".
func FormatCurrencyValue(v interface{}) string {
	return FormatCurrency(models.Amount(v))
}

// FormatINR renders a rupee amount: "₹1,234.50"; an exact zero is the short form "₹0".
func FormatINR(d decimal.Decimal) string {
	if d.IsZero() {
		return inrFormatter.Grapheme + "0"
	}
	return formatAmount(inrFormatter, d)
}

// FormatNumber renders a plain grouped amount with two fraction digits; zero is "0".
func FormatNumber(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return formatAmount(numberFormatter, d)
}

// FormatCount renders a grouped integer count.
func FormatCount(n int) string {
	return countFormatter.Format(int64(n))
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// FormatDate renders a stored date as "Jan 2, 2006". Absent or unparseable dates give "N/A".
func FormatDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return NotAvailable
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return NotAvailable
}

// FormatTime renders a timestamp date; the zero time gives "N/A".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format("Jan 2, 2006")
}

// Badge is a labelled trade-type or order-side pill.
type Badge struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

// TradeBadge colours buy as positive, sell as negative and anything else as unknown.
func TradeBadge(raw string) Badge {
	label := strings.TrimSpace(raw)
	if label == "" {
		label = NotAvailable
	}
	switch models.ParseTradeType(raw) {
	case models.TradeTypeBuy:
		return Badge{Label: label, Tone: TonePositive}
	case models.TradeTypeSell:
		return Badge{Label: label, Tone: ToneNegative}
	default:
		return Badge{Label: label, Tone: ToneUnknown}
	}
}

// NetTone is positive above zero, negative below and neutral at zero.
func NetTone(d decimal.Decimal) Tone {
	switch d.Sign() {
	case 1:
		return TonePositive
	case -1:
		return ToneNegative
	default:
		return ToneNeutral
	}
}

// PnLTone treats zero as a gain.
func PnLTone(d decimal.Decimal) Tone {
	if d.Sign() < 0 {
		return ToneNegative
	}
	return TonePositive
}

// MaskAPIKey keeps the first and last four characters of keys of eight or more
// characters and masks the middle with a fixed-width run; shorter keys are fully masked.
func MaskAPIKey(key string) string {
	r := []rune(key)
	if len(r) < 8 {
		return maskGlyphs
	}
	return string(r[:4]) + maskGlyphs + string(r[len(r)-4:])
}

// MaskedOrNotConfigured masks key, or reports that none is set.
func MaskedOrNotConfigured(key string) string {
	if key == "" {
		return NotConfigured
	}
	return MaskAPIKey(key)
}

// OrDefault returns s, or fallback when s is empty.
func OrDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
