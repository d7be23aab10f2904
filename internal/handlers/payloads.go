package handlers

import (
	"time"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	"github.com/Shelia5K/FAPI-order-service/internal/services"
)

type productPayload struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
	Currency    string  `json:"currency"`
	CreatedAt   string  `json:"createdAt,omitempty"`
}

type customerPayload struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type orderPayload struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"productId"`
	ProductTitle string          `json:"productTitle"`
	Customer     customerPayload `json:"customer"`
	Quantity     int             `json:"quantity"`
	UnitPrice    float64         `json:"unitPrice"`
	TaxRate      float64         `json:"taxRate"`
	Subtotal     float64         `json:"subtotal"`
	TaxAmount    float64         `json:"taxAmount"`
	Total        float64         `json:"total"`
	Currency     string          `json:"currency"`
	CreatedAt    string          `json:"createdAt"`
}

type breakdownPayload struct {
	Subtotal  float64 `json:"subtotal"`
	TaxAmount float64 `json:"taxAmount"`
	Total     float64 `json:"total"`
	TaxRate   float64 `json:"taxRate"`
}

type conversionPayload struct {
	Currency  string   `json:"currency"`
	Rate      *float64 `json:"rate"`
	Amount    *float64 `json:"amount"`
	Available bool     `json:"available"`
}

type conversionsPayload struct {
	Items        []conversionPayload `json:"items"`
	AnyAvailable bool                `json:"anyAvailable"`
	Error        string              `json:"error,omitempty"`
	RatesAsOf    string              `json:"ratesAsOf,omitempty"`
}

type summaryPayload struct {
	OrderID      string             `json:"orderId"`
	BaseCurrency string             `json:"baseCurrency"`
	Subtotal     float64            `json:"subtotal"`
	TaxAmount    float64            `json:"taxAmount"`
	Total        float64            `json:"total"`
	Conversions  conversionsPayload `json:"conversions"`
}

type quotePayload struct {
	Product      productPayload     `json:"product"`
	Quantity     int                `json:"quantity"`
	BaseCurrency string             `json:"baseCurrency"`
	Breakdown    breakdownPayload   `json:"breakdown"`
	Conversions  conversionsPayload `json:"conversions"`
}

func buildProductPayload(product domain.Product) productPayload {
	payload := productPayload{
		ID:        product.ID,
		Title:     product.Title,
		UnitPrice: product.UnitPrice,
		Quantity:  product.Quantity,
		Currency:  domain.BaseCurrency,
		CreatedAt: formatTime(product.CreatedAt),
	}
	if product.Description != nil {
		description := *product.Description
		payload.Description = &description
	}
	return payload
}

func buildOrderPayload(order domain.Order) orderPayload {
	currency := order.Currency
	if currency == "" {
		currency = domain.BaseCurrency
	}
	return orderPayload{
		ID:           order.ID,
		ProductID:    order.ProductID,
		ProductTitle: order.ProductTitle,
		Customer: customerPayload{
			Name:       order.Customer.Name,
			Email:      order.Customer.Email,
			Phone:      order.Customer.Phone,
			Street:     order.Customer.Street,
			City:       order.Customer.City,
			PostalCode: order.Customer.PostalCode,
			Country:    order.Customer.Country,
		},
		Quantity:  order.Quantity,
		UnitPrice: order.UnitPrice,
		TaxRate:   order.TaxRate,
		Subtotal:  order.Subtotal,
		TaxAmount: order.TaxAmount,
		Total:     order.Total,
		Currency:  currency,
		CreatedAt: formatTime(order.CreatedAt),
	}
}

func buildConversionsPayload(result domain.ConversionResult) conversionsPayload {
	items := make([]conversionPayload, 0, len(result.Conversions))
	for _, conversion := range result.Conversions {
		items = append(items, conversionPayload{
			Currency:  string(conversion.Currency),
			Rate:      conversion.Rate,
			Amount:    conversion.Amount,
			Available: conversion.Available,
		})
	}
	payload := conversionsPayload{
		Items:        items,
		AnyAvailable: result.AnyAvailable,
		Error:        result.Error,
	}
	if result.RatesAsOf != nil {
		payload.RatesAsOf = formatTime(*result.RatesAsOf)
	}
	return payload
}

func buildSummaryPayload(summary domain.OrderSummary) summaryPayload {
	return summaryPayload{
		OrderID:      summary.Order.ID,
		BaseCurrency: summary.BaseCurrency,
		Subtotal:     summary.Subtotal,
		TaxAmount:    summary.TaxAmount,
		Total:        summary.Total,
		Conversions:  buildConversionsPayload(summary.Conversions),
	}
}

func buildQuotePayload(quote services.PriceQuote) quotePayload {
	return quotePayload{
		Product:      buildProductPayload(quote.Product),
		Quantity:     quote.Quantity,
		BaseCurrency: quote.BaseCurrency,
		Breakdown: breakdownPayload{
			Subtotal:  quote.Breakdown.Subtotal,
			TaxAmount: quote.Breakdown.TaxAmount,
			Total:     quote.Breakdown.Total,
			TaxRate:   quote.Breakdown.TaxRate,
		},
		Conversions: buildConversionsPayload(quote.Conversions),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
