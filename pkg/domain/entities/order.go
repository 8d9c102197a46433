package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineKind distinguishes consumed components from the tracked output of an order
type LineKind int

const (
	ComponentLine LineKind = iota
	OutputLine
)

// String method for LineKind enum
func (k LineKind) String() string {
	switch k {
	case ComponentLine:
		return "Component"
	case OutputLine:
		return "Output"
	default:
		return "Unknown"
	}
}

// OrderLine holds the required/issued/received quantities of one part within an order
type OrderLine struct {
	OrderID      int64
	PartNumber   PartNumber
	Kind         LineKind
	QtyPer       decimal.Decimal
	AutoIssue    bool
	Required     decimal.Decimal
	Issued       decimal.Decimal
	Received     decimal.Decimal
	StandardCost decimal.Decimal
}

// Outstanding is the quantity still to be received against the line
func (l OrderLine) Outstanding() decimal.Decimal {
	return l.Required.Sub(l.Received)
}

// Complete reports whether the received quantity has reached the requirement
func (l OrderLine) Complete() bool {
	return l.Received.GreaterThanOrEqual(l.Required)
}

// ProductionOrder represents an order to manufacture a quantity of one item
type ProductionOrder struct {
	ID         int64
	TopItem    PartNumber
	Location   string
	Quantity   decimal.Decimal
	RequiredBy time.Time
	StartDate  time.Time
	Reference  *string
	Remark     *string
	Closed     bool
	Lines      []OrderLine
}

// NewProductionOrder creates a validated, open ProductionOrder without an id
func NewProductionOrder(
	topItem PartNumber,
	location string,
	quantity decimal.Decimal,
	startDate, requiredBy time.Time,
	reference, remark *string,
) (*ProductionOrder, error) {
	if string(topItem) == "" {
		return nil, fmt.Errorf("part number cannot be empty")
	}
	if location == "" {
		return nil, fmt.Errorf("location cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
	}
	if requiredBy.IsZero() {
		requiredBy = startDate
	}
	startDate, requiredBy = DateOf(startDate), DateOf(requiredBy)
	if startDate.After(requiredBy) {
		return nil, fmt.Errorf("start date %s cannot be after required-by date %s",
			startDate.Format(time.DateOnly), requiredBy.Format(time.DateOnly))
	}

	return &ProductionOrder{
		TopItem:    topItem,
		Location:   location,
		Quantity:   quantity,
		RequiredBy: requiredBy,
		StartDate:  startDate,
		Reference:  reference,
		Remark:     remark,
	}, nil
}

// LedgerTag is the reference stamped on every stock movement posted for the order
func (o *ProductionOrder) LedgerTag() string {
	return fmt.Sprintf("WO-%d", o.ID)
}

// Line returns the line for a part number
func (o *ProductionOrder) Line(partNumber PartNumber) (*OrderLine, bool) {
	for i := range o.Lines {
		if o.Lines[i].PartNumber == partNumber {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// TrackingLine returns the output line keyed by the order's own top item
func (o *ProductionOrder) TrackingLine() (*OrderLine, bool) {
	for i := range o.Lines {
		if o.Lines[i].Kind == OutputLine && o.Lines[i].PartNumber == o.TopItem {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// ComponentLines returns the material requirement lines in order
func (o *ProductionOrder) ComponentLines() []OrderLine {
	var lines []OrderLine
	for _, l := range o.Lines {
		if l.Kind == ComponentLine {
			lines = append(lines, l)
		}
	}
	return lines
}

// IsComplete reports whether every receipt-bearing line has been fully received.
// Component lines carry issues, not receipts, and do not hold the order open.
func (o *ProductionOrder) IsComplete() bool {
	seen := false
	for _, l := range o.Lines {
		if l.Kind != OutputLine {
			continue
		}
		seen = true
		if !l.Complete() {
			return false
		}
	}
	return seen
}

// Clone returns a deep copy of the order
func (o *ProductionOrder) Clone() *ProductionOrder {
	c := *o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	return &c
}

// OrderStatus filters orders by their open/closed state
type OrderStatus int

const (
	AnyStatus OrderStatus = iota
	OpenOrders
	ClosedOrders
)

// OrderFilter selects orders in ListOrders. Zero values match everything.
type OrderFilter struct {
	Location             string
	TopItem              PartNumber
	Status               OrderStatus
	RequiredByOnOrBefore *time.Time
}

// Matches reports whether the order satisfies every set criterion
func (f OrderFilter) Matches(o *ProductionOrder) bool {
	if f.Location != "" && o.Location != f.Location {
		return false
	}
	if f.TopItem != "" && o.TopItem != f.TopItem {
		return false
	}
	switch f.Status {
	case OpenOrders:
		if o.Closed {
			return false
		}
	case ClosedOrders:
		if !o.Closed {
			return false
		}
	}
	if f.RequiredByOnOrBefore != nil && DateOf(o.RequiredBy).After(DateOf(*f.RequiredByOnOrBefore)) {
		return false
	}
	return true
}
