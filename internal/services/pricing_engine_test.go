package services

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func TestComputeBreakdownReferenceValues(t *testing.T) {
	cases := []struct {
		name      string
		unitPrice float64
		quantity  float64
		taxRate   float64
		subtotal  float64
		tax       float64
		total     float64
	}{
		{name: "whole crowns", unitPrice: 1990, quantity: 2, taxRate: 0.21, subtotal: 3980, tax: 835.80, total: 4815.80},
		{name: "tax rounded before total", unitPrice: 333.33, quantity: 3, taxRate: 0.21, subtotal: 999.99, tax: 210.00, total: 1209.99},
		{name: "fractional quantity rounds to nearest", unitPrice: 100, quantity: 2.5, taxRate: 0.21, subtotal: 300, tax: 63, total: 363},
		{name: "fractional quantity rounds down", unitPrice: 100, quantity: 1.4, taxRate: 0.21, subtotal: 100, tax: 21, total: 121},
		{name: "zero rate", unitPrice: 49.99, quantity: 3, taxRate: 0, subtotal: 149.97, tax: 0, total: 149.97},
		{name: "reduced rate", unitPrice: 10.05, quantity: 1, taxRate: 0.12, subtotal: 10.05, tax: 1.21, total: 11.26},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeBreakdown(tc.unitPrice, tc.quantity, tc.taxRate)
			if got.Subtotal != tc.subtotal {
				t.Fatalf("expected subtotal %v, got %v", tc.subtotal, got.Subtotal)
			}
			if got.TaxAmount != tc.tax {
				t.Fatalf("expected tax %v, got %v", tc.tax, got.TaxAmount)
			}
			if got.Total != tc.total {
				t.Fatalf("expected total %v, got %v", tc.total, got.Total)
			}
			if got.TaxRate != tc.taxRate {
				t.Fatalf("expected rate %v echoed, got %v", tc.taxRate, got.TaxRate)
			}
		})
	}
}

func TestComputeBreakdownSanitizesInvalidInput(t *testing.T) {
	inputs := []struct {
		name      string
		unitPrice float64
		quantity  float64
	}{
		{"negative price", -10, 2},
		{"negative quantity", 10, -2},
		{"nan price", math.NaN(), 2},
		{"nan quantity", 10, math.NaN()},
		{"infinite price", math.Inf(1), 1},
		{"infinite quantity", 10, math.Inf(1)},
		{"negative infinite quantity", 10, math.Inf(-1)},
	}

	for _, tc := range inputs {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeBreakdown(tc.unitPrice, tc.quantity, 0.21)
			if got.Subtotal != 0 || got.TaxAmount != 0 || got.Total != 0 {
				t.Fatalf("expected zero breakdown, got %+v", got)
			}
		})
	}
}

func TestComputeBreakdownNonFiniteRateFallsBackToDefault(t *testing.T) {
	got := ComputeBreakdown(100, 1, math.NaN())
	if got.TaxRate != DefaultTaxRate || got.Total != 121 {
		t.Fatalf("expected default rate breakdown, got %+v", got)
	}
}

func TestPriceBeforeTax(t *testing.T) {
	if got := PriceBeforeTax(121, 0.21); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
	if got := PriceBeforeTax(4815.80, 0.21); got != 3980 {
		t.Fatalf("expected 3980, got %v", got)
	}
	if got := PriceBeforeTax(-5, 0.21); got != 0 {
		t.Fatalf("expected sanitized 0, got %v", got)
	}
	if got := PriceBeforeTax(100, -1); got != 0 {
		t.Fatalf("expected 0 for zero divisor, got %v", got)
	}
}

func TestPricingEngineUsesConfiguredDefault(t *testing.T) {
	rate := 0.15
	engine, err := NewPricingEngine(PricingEngineDeps{DefaultTaxRate: &rate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := engine.Breakdown(200, 1, nil)
	if got.TaxRate != 0.15 || got.TaxAmount != 30 || got.Total != 230 {
		t.Fatalf("unexpected breakdown %+v", got)
	}

	explicit := 0.21
	got = engine.Breakdown(200, 1, &explicit)
	if got.TaxAmount != 42 {
		t.Fatalf("expected explicit rate to win, got %+v", got)
	}

	if net := engine.NetPrice(230, nil); net != 200 {
		t.Fatalf("expected net 200, got %v", net)
	}
}

func TestNewPricingEngineRejectsInvalidDefault(t *testing.T) {
	rate := math.Inf(1)
	if _, err := NewPricingEngine(PricingEngineDeps{DefaultTaxRate: &rate}); err == nil {
		t.Fatalf("expected error for infinite default rate")
	}
	negative := -0.1
	if _, err := NewPricingEngine(PricingEngineDeps{DefaultTaxRate: &negative}); err == nil {
		t.Fatalf("expected error for negative default rate")
	}
}

func TestComputeBreakdownProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unitPrice := float64(rapid.IntRange(0, 10_000_000).Draw(t, "unitPriceMinor")) / 100
		quantity := rapid.IntRange(0, 1_000).Draw(t, "quantity")
		taxRate := float64(rapid.IntRange(0, 100).Draw(t, "taxRatePercent")) / 100

		got := ComputeBreakdown(unitPrice, float64(quantity), taxRate)

		sum := decimal.NewFromFloat(got.Subtotal).Add(decimal.NewFromFloat(got.TaxAmount))
		if !sum.Equal(decimal.NewFromFloat(got.Total)) {
			t.Fatalf("subtotal %v + tax %v != total %v", got.Subtotal, got.TaxAmount, got.Total)
		}

		net := PriceBeforeTax(got.Total, taxRate)
		restored := net * (1 + taxRate)
		if diff := math.Abs(restored - got.Total); diff > 0.01+1e-6 {
			t.Fatalf("round trip drifted by %v (total %v, net %v, rate %v)", diff, got.Total, net, taxRate)
		}
	})
}
