package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OpenEnded is the effective-to date used when a structure edge has no end
var OpenEnded = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// DateOf truncates a timestamp to its calendar date in UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EffectiveWindow defines the inclusive date range in which a structure edge applies
type EffectiveWindow struct {
	From time.Time
	To   time.Time
}

// NewEffectiveWindow creates a validated EffectiveWindow. A zero to date is open ended.
func NewEffectiveWindow(from, to time.Time) (*EffectiveWindow, error) {
	if from.IsZero() {
		return nil, fmt.Errorf("effective from date cannot be empty")
	}
	if to.IsZero() {
		to = OpenEnded
	}
	from, to = DateOf(from), DateOf(to)
	if from.After(to) {
		return nil, fmt.Errorf("effective from %s cannot be after effective to %s",
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return &EffectiveWindow{From: from, To: to}, nil
}

// Contains reports whether the calendar date of asOf falls inside the window
func (w EffectiveWindow) Contains(asOf time.Time) bool {
	d := DateOf(asOf)
	return !d.Before(DateOf(w.From)) && !d.After(DateOf(w.To))
}

// Overlaps reports whether two windows share at least one date
func (w EffectiveWindow) Overlaps(other EffectiveWindow) bool {
	return !DateOf(w.From).After(DateOf(other.To)) && !DateOf(other.From).After(DateOf(w.To))
}

// EdgeKey identifies a parent/component relationship independent of its history
type EdgeKey struct {
	Parent    PartNumber
	Component PartNumber
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%s->%s", k.Parent, k.Component)
}

// StructureEdge represents one parent -> component line of a manufacturing structure
type StructureEdge struct {
	Parent     PartNumber
	Component  PartNumber
	QtyPer     decimal.Decimal
	Sequence   int
	Window     EffectiveWindow
	WorkCentre *string
	AutoIssue  bool
	Remark     *string
}

// NewStructureEdge creates a validated StructureEdge
func NewStructureEdge(
	parent, component PartNumber,
	qtyPer decimal.Decimal,
	sequence int,
	window EffectiveWindow,
	workCentre *string,
	autoIssue bool,
	remark *string,
) (*StructureEdge, error) {
	if string(parent) == "" {
		return nil, fmt.Errorf("parent part number cannot be empty")
	}
	if string(component) == "" {
		return nil, fmt.Errorf("component part number cannot be empty")
	}
	if parent == component {
		return nil, fmt.Errorf("parent and component part numbers cannot be the same: %s", parent)
	}
	if !qtyPer.IsPositive() {
		return nil, fmt.Errorf("quantity per must be positive, got %s", qtyPer)
	}
	if sequence <= 0 {
		return nil, fmt.Errorf("sequence must be positive, got %d", sequence)
	}
	checked, err := NewEffectiveWindow(window.From, window.To)
	if err != nil {
		return nil, err
	}

	return &StructureEdge{
		Parent:     parent,
		Component:  component,
		QtyPer:     qtyPer,
		Sequence:   sequence,
		Window:     *checked,
		WorkCentre: workCentre,
		AutoIssue:  autoIssue,
		Remark:     remark,
	}, nil
}

// Key returns the (parent, component) key of the edge
func (e *StructureEdge) Key() EdgeKey {
	return EdgeKey{Parent: e.Parent, Component: e.Component}
}

// IsActive reports whether the edge applies on the given date
func (e *StructureEdge) IsActive(asOf time.Time) bool {
	return e.Window.Contains(asOf)
}

// Optional returns nil for an empty string, otherwise a pointer to a copy of it
func Optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// Deref returns the value behind an optional string, or "" when absent
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
