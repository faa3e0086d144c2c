// Package pricing computes shipping, tax and order totals for a cart.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

type ShippingMethod string

const (
	Standard  ShippingMethod = "standard"
	Express   ShippingMethod = "express"
	Overnight ShippingMethod = "overnight"
)

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Policy holds the storewide shipping and tax rules.
type Policy struct {
	FreeShippingThreshold decimal.Decimal
	Rates                 map[ShippingMethod]decimal.Decimal
	DefaultMethod         ShippingMethod
	TaxRate               decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: decimal.NewFromInt(500),
		Rates: map[ShippingMethod]decimal.Decimal{
			Standard:  decimal.NewFromInt(15),
			Express:   decimal.NewFromInt(25),
			Overnight: decimal.NewFromInt(45),
		},
		DefaultMethod: Standard,
		TaxRate:       decimal.NewFromFloat(0.08),
	}
}

// Method resolves a tag to one of the policy's rates, falling back to
// DefaultMethod.
func (p Policy) Method(tag string) ShippingMethod {
	m := ShippingMethod(strings.ToLower(strings.TrimSpace(tag)))
	if _, ok := p.Rates[m]; ok {
		return m
	}
	if p.DefaultMethod != "" {
		return p.DefaultMethod
	}
	return Standard
}

// ShippingCost returns the flat fee for the method. Standard shipping is free
// once the subtotal reaches the threshold, and nothing ships for an empty cart.
func (p Policy) ShippingCost(tag string, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	method := p.Method(tag)
	if method == Standard && subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return p.Rates[method]
}

// Tax is the flat-rate estimate rounded half-up to the cent.
func (p Policy) Tax(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	return subtotal.Mul(p.TaxRate).Round(2)
}

func (p Policy) Summarize(lines []Line, tag string) Summary {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	shipping := p.ShippingCost(tag, subtotal)
	tax := p.Tax(subtotal)

	return Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// MinorUnits converts a dollar amount to whole cents.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
