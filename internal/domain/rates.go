package domain

import "time"

// CurrencyCode is an ISO 4217 code.
type CurrencyCode string

const (
	CurrencyEUR CurrencyCode = "EUR"
	CurrencyUSD CurrencyCode = "USD"
	CurrencyPLN CurrencyCode = "PLN"
)

// SupportedCurrencies lists the display currencies in presentation order.
var SupportedCurrencies = []CurrencyCode{CurrencyEUR, CurrencyUSD, CurrencyPLN}

// RateTable maps a currency to the amount of base currency paid for one unit of it.
// A missing or non-positive entry means the rate is unavailable.
type RateTable struct {
	Rates     map[CurrencyCode]float64
	FetchedAt time.Time
	Source    string
}

// Rate returns the usable rate for code.
func (t *RateTable) Rate(code CurrencyCode) (float64, bool) {
	if t == nil || t.Rates == nil {
		return 0, false
	}
	rate, ok := t.Rates[code]
	if !ok || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// CurrencyConversion is the converted amount for one currency. Rate and Amount are nil
// when the currency is unavailable.
type CurrencyConversion struct {
	Currency  CurrencyCode
	Rate      *float64
	Amount    *float64
	Available bool
}

// ConversionResult groups the conversions for every supported currency.
type ConversionResult struct {
	Conversions  []CurrencyConversion
	AnyAvailable bool
	Error        string
	RatesAsOf    *time.Time
}

// OrderSummary combines the stored base-currency totals with display conversions.
type OrderSummary struct {
	Order        Order
	BaseCurrency string
	Subtotal     float64
	TaxAmount    float64
	Total        float64
	Conversions  ConversionResult
}
