package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PartNumber represents a unique part identifier
type PartNumber string

// MakeBuy classifies how an item is sourced
type MakeBuy int

const (
	Manufactured MakeBuy = iota
	Purchased
	Other
)

// String method for MakeBuy enum
func (m MakeBuy) String() string {
	switch m {
	case Manufactured:
		return "Manufactured"
	case Purchased:
		return "Purchased"
	case Other:
		return "Other"
	default:
		return "Unknown"
	}
}

// ParseMakeBuy converts the textual form used in data files back to a MakeBuy
func ParseMakeBuy(value string) (MakeBuy, error) {
	switch value {
	case "Manufactured", "M":
		return Manufactured, nil
	case "Purchased", "B":
		return Purchased, nil
	case "Other", "":
		return Other, nil
	default:
		return Other, fmt.Errorf("invalid make/buy flag: %s", value)
	}
}

// Item represents item master data referenced by structures and orders
type Item struct {
	PartNumber    PartNumber
	Description   string
	MakeBuy       MakeBuy
	MaterialCost  decimal.Decimal
	LabourCost    decimal.Decimal
	OverheadCost  decimal.Decimal
	UnitOfMeasure string
}

// NewItem creates a validated Item
func NewItem(
	partNumber PartNumber,
	description string,
	makeBuy MakeBuy,
	materialCost, labourCost, overheadCost decimal.Decimal,
	unitOfMeasure string,
) (*Item, error) {
	if string(partNumber) == "" {
		return nil, fmt.Errorf("part number cannot be empty")
	}
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}
	if materialCost.IsNegative() || labourCost.IsNegative() || overheadCost.IsNegative() {
		return nil, fmt.Errorf("cost components cannot be negative")
	}
	if unitOfMeasure == "" {
		return nil, fmt.Errorf("unit of measure cannot be empty")
	}

	return &Item{
		PartNumber:    partNumber,
		Description:   description,
		MakeBuy:       makeBuy,
		MaterialCost:  materialCost,
		LabourCost:    labourCost,
		OverheadCost:  overheadCost,
		UnitOfMeasure: unitOfMeasure,
	}, nil
}

// IsManufactured reports whether the item may head a structure or an order
func (i *Item) IsManufactured() bool {
	return i.MakeBuy == Manufactured
}

// StandardCost is the precomputed material + labour + overhead figure
func (i *Item) StandardCost() decimal.Decimal {
	return i.MaterialCost.Add(i.LabourCost).Add(i.OverheadCost)
}

// Info projects the item onto the fields the planning core consumes
func (i *Item) Info() ItemInfo {
	return ItemInfo{
		PartNumber:   i.PartNumber,
		Exists:       true,
		Manufactured: i.IsManufactured(),
		Cost:         i.StandardCost(),
	}
}

// ItemInfo is the read model returned by structure stores
type ItemInfo struct {
	PartNumber   PartNumber
	Exists       bool
	Manufactured bool
	Cost         decimal.Decimal
}
