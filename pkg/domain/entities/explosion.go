package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExplosionRow is one structure edge placed at its level of a multi-level explosion
type ExplosionRow struct {
	Level       int
	Parent      PartNumber
	Component   PartNumber
	QtyPer      decimal.Decimal
	Sequence    int
	ExtendedQty decimal.Decimal // quantity per one top unit along the first path to Parent
}

// Explosion contains the result of exploding one top-level item
type Explosion struct {
	TopItem PartNumber
	AsOf    time.Time
	Rows    []ExplosionRow
}

// Depth returns the deepest level reached
func (e *Explosion) Depth() int {
	depth := 0
	for _, r := range e.Rows {
		if r.Level > depth {
			depth = r.Level
		}
	}
	return depth
}

// ComponentDemand is the aggregated quantity of one component per top unit
type ComponentDemand struct {
	PartNumber  PartNumber
	Quantity    decimal.Decimal
	Occurrences int
	FirstLevel  int
}
