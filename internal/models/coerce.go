package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Amount converts a raw document value into a decimal. Missing, empty or
// non-numeric values (including booleans and NaN) become zero; it never fails.
func Amount(v interface{}) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Text converts a raw document value into a trimmed string, empty when absent.
func Text(v interface{}) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// Timestamp converts a raw document value into a time. Unparseable values give the zero time.
func Timestamp(v interface{}) time.Time {
	if v == nil {
		return time.Time{}
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// List converts a raw document value into a slice of objects, skipping anything that is not an object.
func List(v interface{}) []map[string]interface{} {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
