package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StockMovement is a signed quantity movement of one item at one location
type StockMovement struct {
	ID         string
	PartNumber PartNumber
	Location   string
	Reference  string
	Quantity   decimal.Decimal // negative for issues, positive for receipts
	Cost       decimal.Decimal
	Memo       string
	BatchID    *string
	SerialID   *string
	AutoCost   bool
	PostedAt   time.Time
}

// NewStockMovement creates a validated StockMovement
func NewStockMovement(
	partNumber PartNumber,
	location, reference string,
	quantity, cost decimal.Decimal,
	memo string,
) (*StockMovement, error) {
	if string(partNumber) == "" {
		return nil, fmt.Errorf("part number cannot be empty")
	}
	if location == "" {
		return nil, fmt.Errorf("location cannot be empty")
	}
	if reference == "" {
		return nil, fmt.Errorf("reference cannot be empty")
	}
	if quantity.IsZero() {
		return nil, fmt.Errorf("movement quantity cannot be zero")
	}

	return &StockMovement{
		PartNumber: partNumber,
		Location:   location,
		Reference:  reference,
		Quantity:   quantity,
		Cost:       cost,
		Memo:       memo,
	}, nil
}

// IsIssue reports whether the movement takes stock out of the location
func (m StockMovement) IsIssue() bool {
	return m.Quantity.IsNegative()
}
