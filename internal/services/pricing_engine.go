package services

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

// DefaultTaxRate is the VAT rate applied when configuration does not override it.
const DefaultTaxRate = 0.21

// PricingEngine derives VAT breakdowns from tax-exclusive unit prices.
type PricingEngine struct {
	defaultTaxRate float64
}

type PricingEngineDeps struct {
	DefaultTaxRate *float64
}

func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	rate := DefaultTaxRate
	if deps.DefaultTaxRate != nil {
		rate = *deps.DefaultTaxRate
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
			return nil, errors.New("pricing engine: default tax rate must be a finite non-negative number")
		}
	}
	return &PricingEngine{defaultTaxRate: rate}, nil
}

// DefaultTaxRate reports the rate used when callers do not supply one.
func (e *PricingEngine) DefaultTaxRate() float64 {
	if e == nil {
		return DefaultTaxRate
	}
	return e.defaultTaxRate
}

// Breakdown prices quantity units at unitPrice. A nil or non-finite taxRate uses the default.
func (e *PricingEngine) Breakdown(unitPrice, quantity float64, taxRate *float64) domain.VatBreakdown {
	return ComputeBreakdown(unitPrice, quantity, e.resolveRate(taxRate))
}

// NetPrice strips VAT from priceWithTax. A nil or non-finite taxRate uses the default.
func (e *PricingEngine) NetPrice(priceWithTax float64, taxRate *float64) float64 {
	return PriceBeforeTax(priceWithTax, e.resolveRate(taxRate))
}

func (e *PricingEngine) resolveRate(taxRate *float64) float64 {
	if taxRate == nil || !isFinite(*taxRate) {
		return e.DefaultTaxRate()
	}
	return *taxRate
}

// ComputeBreakdown returns subtotal, tax and total rounded to minor units. Every step is
// rounded before it feeds the next one; callers rely on that exact sequence.
func ComputeBreakdown(unitPrice, quantity, taxRate float64) domain.VatBreakdown {
	price := sanitizeAmount(unitPrice)
	qty := math.Round(sanitizeAmount(quantity))
	if !isFinite(taxRate) {
		taxRate = DefaultTaxRate
	}
	rate := decimal.NewFromFloat(taxRate)

	subtotal := roundMinor(decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(qty)))
	tax := roundMinor(subtotal.Mul(rate))
	total := roundMinor(subtotal.Add(tax))

	return domain.VatBreakdown{
		Subtotal:  subtotal.InexactFloat64(),
		TaxAmount: tax.InexactFloat64(),
		Total:     total.InexactFloat64(),
		TaxRate:   taxRate,
	}
}

// PriceBeforeTax reverses a VAT-inclusive price. A divisor of zero or less yields 0.
func PriceBeforeTax(priceWithTax, taxRate float64) float64 {
	price := sanitizeAmount(priceWithTax)
	if !isFinite(taxRate) {
		taxRate = DefaultTaxRate
	}
	divisor := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(taxRate))
	if !divisor.IsPositive() {
		return 0
	}
	return roundMinor(decimal.NewFromFloat(price).Div(divisor)).InexactFloat64()
}

func roundMinor(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

func sanitizeAmount(value float64) float64 {
	if !isFinite(value) || value < 0 {
		return 0
	}
	return value
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
