package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"crypto-trading-dashboard/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxAmount bounds every submitted amount.
var MaxAmount = decimal.New(1, 15)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError lists the rejected form fields and why.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FormNumber is a numeric form value that accepts either a JSON number or a string.
// The text is kept verbatim and checked by Validate.
type FormNumber string

func (n *FormNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = FormNumber(strings.TrimSpace(s))
		return nil
	}
	*n = FormNumber(b)
	return nil
}

func (n FormNumber) decimal() decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// TradeForm carries the values of a manual trade submission.
type TradeForm struct {
	Date        string     `json:"date" validate:"required,datetime=2006-01-02"`
	CoinName    string     `json:"coinName" validate:"required,max=32"`
	TradeType   string     `json:"tradeType" validate:"required,oneof=Buy Sell buy sell"`
	TotalTrade  FormNumber `json:"totalTrade" validate:"required,numeric"`
	Profit      FormNumber `json:"profit" validate:"omitempty,numeric"`
	Loss        FormNumber `json:"loss" validate:"omitempty,numeric"`
	ProfitInINR FormNumber `json:"profitInINR" validate:"omitempty,numeric"`
	TotalProfit FormNumber `json:"totalProfit" validate:"omitempty,numeric"`
	TotalLoss   FormNumber `json:"totalLoss" validate:"omitempty,numeric"`
	Note        string     `json:"note" validate:"max=1000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate rejects missing or non-numeric required values, negative amounts and amounts above MaxAmount.
func (f TradeForm) Validate() error {
	f.CoinName = strings.TrimSpace(f.CoinName)
	fields := make(map[string]string)

	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	amounts := map[string]FormNumber{
		"totalTrade":  f.TotalTrade,
		"profit":      f.Profit,
		"loss":        f.Loss,
		"profitInINR": f.ProfitInINR,
		"totalProfit": f.TotalProfit,
		"totalLoss":   f.TotalLoss,
	}
	for name, v := range amounts {
		if _, bad := fields[name]; bad {
			continue
		}
		d := v.decimal()
		switch {
		case d.IsNegative():
			fields[name] = "must not be negative"
		case d.GreaterThan(MaxAmount):
			fields[name] = "is too large"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be a number"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "oneof":
		return "must be Buy or Sell"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

// Fields builds the document body for a validated form. The coin name is
// upper-cased and the trade type canonicalised; optional amounts default to zero.
func (f TradeForm) Fields(ownerID string) map[string]interface{} {
	number := func(n FormNumber) json.Number {
		return json.Number(n.decimal().String())
	}
	return map[string]interface{}{
		models.FieldOwner:       ownerID,
		models.FieldDate:        f.Date,
		models.FieldCoinName:    strings.ToUpper(strings.TrimSpace(f.CoinName)),
		models.FieldTradeType:   string(models.ParseTradeType(f.TradeType)),
		models.FieldTotalTrade:  number(f.TotalTrade),
		models.FieldProfit:      number(f.Profit),
		models.FieldLoss:        number(f.Loss),
		models.FieldProfitINR:   number(f.ProfitInINR),
		models.FieldTotalProfit: number(f.TotalProfit),
		models.FieldTotalLoss:   number(f.TotalLoss),
		models.FieldNote:        strings.TrimSpace(f.Note),
	}
}
