package ledger

import (
	"encoding/json"
	"errors"
	"testing"

	"crypto-trading-dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() TradeForm {
	return TradeForm{
		Date:       "2024-05-01",
		CoinName:   " btc ",
		TradeType:  "buy",
		TotalTrade: "1500",
		Profit:     "120.5",
		Note:       "  swing  ",
	}
}

func TestTradeForm_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(f *TradeForm)
		fields []string
	}{
		{"Valid", func(f *TradeForm) {}, nil},
		{"MissingDate", func(f *TradeForm) { f.Date = "" }, []string{"date"}},
		{"BadDate", func(f *TradeForm) { f.Date = "01/05/2024" }, []string{"date"}},
		{"BlankCoin", func(f *TradeForm) { f.CoinName = "   " }, []string{"coinName"}},
		{"UnknownTradeType", func(f *TradeForm) { f.TradeType = "hold" }, []string{"tradeType"}},
		{"MissingTotal", func(f *TradeForm) { f.TotalTrade = "" }, []string{"totalTrade"}},
		{"NonNumericTotal", func(f *TradeForm) { f.TotalTrade = "lots" }, []string{"totalTrade"}},
		{"NonNumericProfit", func(f *TradeForm) { f.Profit = "abc" }, []string{"profit"}},
		{"NegativeLoss", func(f *TradeForm) { f.Loss = "-3" }, []string{"loss"}},
		{"HugeProfit", func(f *TradeForm) { f.Profit = "100000000000000000000" }, []string{"profit"}},
		{"AtMaxAmount", func(f *TradeForm) { f.TotalTrade = "1000000000000000" }, nil},
		{"AboveMaxAmount", func(f *TradeForm) { f.TotalTrade = "1000000000000000.01" }, []string{"totalTrade"}},
		{"Several", func(f *TradeForm) {
			f.Date = ""
			f.TotalTrade = "x"
		}, []string{"date", "totalTrade"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			form := validForm()
			tc.mutate(&form)
			err := form.Validate()
			if tc.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tc.fields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tc.fields))
		})
	}
}

func TestTradeForm_Fields(t *testing.T) {
	fields := validForm().Fields("user-1")

	assert.Equal(t, "user-1", fields[models.FieldOwner])
	assert.Equal(t, "BTC", fields[models.FieldCoinName])
	assert.Equal(t, "Buy", fields[models.FieldTradeType])
	assert.Equal(t, json.Number("1500"), fields[models.FieldTotalTrade])
	assert.Equal(t, json.Number("120.5"), fields[models.FieldProfit])
	assert.Equal(t, json.Number("0"), fields[models.FieldLoss])
	assert.Equal(t, json.Number("0"), fields[models.FieldProfitINR])
	assert.Equal(t, "swing", fields[models.FieldNote])

	// stored numbers decode back through the ingestion boundary
	body, err := json.Marshal(fields)
	require.NoError(t, err)
	rec := models.TradeFromDocument(models.Document{ID: "t", Data: body})
	assert.Equal(t, "120.5", rec.Profit.String())
	assert.True(t, rec.Loss.IsZero())
}

func TestFormNumber_UnmarshalJSON(t *testing.T) {
	var form TradeForm
	err := json.Unmarshal([]byte(`{"totalTrade": 12.5, "profit": " 3 ", "loss": null}`), &form)
	require.NoError(t, err)
	assert.Equal(t, FormNumber("12.5"), form.TotalTrade)
	assert.Equal(t, FormNumber("3"), form.Profit)
	assert.Equal(t, FormNumber(""), form.Loss)
}
