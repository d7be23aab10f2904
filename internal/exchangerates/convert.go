package exchangerates

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

// Convert expresses amount (base currency) in every supported currency. Currencies
// without a positive rate are reported unavailable rather than zero. A nil table
// yields an all-unavailable result.
func Convert(amount float64, table *domain.RateTable) domain.ConversionResult {
	result := domain.ConversionResult{
		Conversions: make([]domain.CurrencyConversion, 0, len(domain.SupportedCurrencies)),
	}
	if table != nil && !table.FetchedAt.IsZero() {
		asOf := table.FetchedAt
		result.RatesAsOf = &asOf
	}

	finite := !math.IsNaN(amount) && !math.IsInf(amount, 0)
	for _, code := range domain.SupportedCurrencies {
		conversion := domain.CurrencyConversion{Currency: code}
		rate, ok := table.Rate(code)
		if ok && finite {
			converted := decimal.NewFromFloat(amount).
				Div(decimal.NewFromFloat(rate)).
				Round(2).
				InexactFloat64()
			rateCopy := rate
			conversion.Rate = &rateCopy
			conversion.Amount = &converted
			conversion.Available = true
			result.AnyAvailable = true
		}
		result.Conversions = append(result.Conversions, conversion)
	}

	if !finite {
		result.Error = "amount is not a finite number"
	}
	return result
}

// Unavailable builds an all-unavailable result carrying reason.
func Unavailable(reason string) domain.ConversionResult {
	result := Convert(0, nil)
	result.Error = reason
	return result
}
