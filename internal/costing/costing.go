// Package costing computes quantity and moving-average unit cost transitions
// for stock movements. It performs no I/O.
package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tokoban/backend/internal/domain"
)

// Position is the quantity on hand and average unit cost of one balance.
type Position struct {
	Qty     int64
	AvgCost int64
}

// WeightedAverage returns round((qty*avg + inQty*inCost) / (qty+inQty)) with
// halves rounded up. A non-positive resulting quantity yields 0.
func WeightedAverage(qty, avg, inQty, inCost int64) int64 {
	newQty := qty + inQty
	if newQty <= 0 {
		return 0
	}
	numerator := decimal.NewFromInt(qty).Mul(decimal.NewFromInt(avg)).
		Add(decimal.NewFromInt(inQty).Mul(decimal.NewFromInt(inCost)))
	if numerator.IsNegative() {
		return 0
	}
	divisor := decimal.NewFromInt(newQty)
	quotient, _ := numerator.Add(decimal.NewFromInt(newQty / 2)).QuoRem(divisor, 0)
	return quotient.IntPart()
}

// Outgoing removes qty units. The average cost is unchanged.
func Outgoing(p Position, qty int64) (Position, error) {
	if qty <= 0 {
		return p, fmt.Errorf("%w: outgoing quantity must be positive", domain.ErrInvalidRequest)
	}
	newQty := p.Qty - qty
	if newQty < 0 {
		return p, fmt.Errorf("%w: on hand %d, requested %d", domain.ErrInsufficientStock, p.Qty, qty)
	}
	return Position{Qty: newQty, AvgCost: p.AvgCost}, nil
}

// Incoming adds qty units received at unitCost and re-weights the average.
func Incoming(p Position, qty int64, unitCost int64) (Position, error) {
	if qty <= 0 {
		return p, fmt.Errorf("%w: incoming quantity must be positive", domain.ErrInvalidRequest)
	}
	if unitCost < 0 {
		return p, fmt.Errorf("%w: unit cost must not be negative", domain.ErrInvalidRequest)
	}
	return Position{
		Qty:     p.Qty + qty,
		AvgCost: WeightedAverage(p.Qty, p.AvgCost, qty, unitCost),
	}, nil
}

// ResetAverage zeroes the average cost and keeps the quantity.
func ResetAverage(p Position) Position {
	return Position{Qty: p.Qty, AvgCost: 0}
}

// Adjust applies an operator-entered signed delta. A positive delta is
// weighted at unitCost, or at the current average when unitCost is nil. A
// reset zeroes the average regardless of the delta.
func Adjust(p Position, delta int64, unitCost *int64, reset bool) (Position, error) {
	if delta == 0 && !reset {
		return p, fmt.Errorf("%w: qty_delta must not be 0 unless resetting avg cost", domain.ErrInvalidRequest)
	}

	next := p
	switch {
	case delta > 0:
		cost := p.AvgCost
		if unitCost != nil {
			cost = *unitCost
		}
		var err error
		next, err = Incoming(p, delta, cost)
		if err != nil {
			return p, err
		}
	case delta < 0:
		var err error
		next, err = Outgoing(p, -delta)
		if err != nil {
			return p, err
		}
	}

	if reset {
		next = ResetAverage(next)
	}
	return next, nil
}
