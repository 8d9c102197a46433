// Package testing builds in-memory fixtures shared by the service tests.
package testing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/memory"
)

// EffectiveFrom is the start date every fixture edge shares unless stated otherwise
var EffectiveFrom = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Day returns midnight UTC of the given date
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MustCreateItem panics on validation error. Cost is charged entirely to material.
func MustCreateItem(partNumber string, makeBuy entities.MakeBuy, cost string) *entities.Item {
	item, err := entities.NewItem(
		entities.PartNumber(partNumber),
		partNumber+" description",
		makeBuy,
		decimal.RequireFromString(cost),
		decimal.Zero,
		decimal.Zero,
		"EA",
	)
	if err != nil {
		panic(err)
	}
	return item
}

// MustCreateEdge panics on validation error. A zero to date is open ended.
func MustCreateEdge(parent, component string, qtyPer string, sequence int, from, to time.Time) *entities.StructureEdge {
	edge, err := entities.NewStructureEdge(
		entities.PartNumber(parent),
		entities.PartNumber(component),
		decimal.RequireFromString(qtyPer),
		sequence,
		entities.EffectiveWindow{From: from, To: to},
		nil,
		false,
		nil,
	)
	if err != nil {
		panic(err)
	}
	return edge
}

func build(items []*entities.Item, edges []*entities.StructureEdge) *memory.Store {
	store := memory.NewStore(len(items), len(edges))
	if err := store.LoadItems(items); err != nil {
		panic(err)
	}
	if err := store.LoadEdges(edges); err != nil {
		panic(err)
	}
	return store
}

// BuildFG1Store is the worked example: FG1 is made from 2 A and 1.5 B.
func BuildFG1Store() *memory.Store {
	return build(
		[]*entities.Item{
			MustCreateItem("FG1", entities.Manufactured, "10"),
			MustCreateItem("A", entities.Purchased, "1.25"),
			MustCreateItem("B", entities.Purchased, "0.40"),
			MustCreateItem("RAW", entities.Purchased, "0.10"),
		},
		[]*entities.StructureEdge{
			MustCreateEdge("FG1", "A", "2", 10, EffectiveFrom, time.Time{}),
			MustCreateEdge("FG1", "B", "1.5", 20, EffectiveFrom, time.Time{}),
		},
	)
}

// BuildKitStore has one manufactured KIT with four purchased components C1..C4
func BuildKitStore() *memory.Store {
	return build(
		[]*entities.Item{
			MustCreateItem("KIT", entities.Manufactured, "20"),
			MustCreateItem("C1", entities.Purchased, "1"),
			MustCreateItem("C2", entities.Purchased, "2"),
			MustCreateItem("C3", entities.Purchased, "3"),
			MustCreateItem("C4", entities.Purchased, "4"),
		},
		[]*entities.StructureEdge{
			MustCreateEdge("KIT", "C1", "1", 10, EffectiveFrom, time.Time{}),
			MustCreateEdge("KIT", "C2", "2", 20, EffectiveFrom, time.Time{}),
			MustCreateEdge("KIT", "C3", "3", 30, EffectiveFrom, time.Time{}),
			MustCreateEdge("KIT", "C4", "4", 40, EffectiveFrom, time.Time{}),
		},
	)
}

// BuildMultiLevelStore builds a three-level structure where SUB2 is reached
// directly from TOP and again through SUB1:
//
//	TOP -> SUB1 x2 -> P2 x3
//	               -> SUB2 x1 -> P3 x4
//	    -> P1 x1
//	    -> SUB2 x1
func BuildMultiLevelStore() *memory.Store {
	return build(
		[]*entities.Item{
			MustCreateItem("TOP", entities.Manufactured, "100"),
			MustCreateItem("SUB1", entities.Manufactured, "30"),
			MustCreateItem("SUB2", entities.Manufactured, "12"),
			MustCreateItem("P1", entities.Purchased, "5"),
			MustCreateItem("P2", entities.Purchased, "2"),
			MustCreateItem("P3", entities.Purchased, "1"),
		},
		[]*entities.StructureEdge{
			MustCreateEdge("TOP", "SUB1", "2", 10, EffectiveFrom, time.Time{}),
			MustCreateEdge("TOP", "P1", "1", 20, EffectiveFrom, time.Time{}),
			MustCreateEdge("TOP", "SUB2", "1", 30, EffectiveFrom, time.Time{}),
			MustCreateEdge("SUB1", "P2", "3", 10, EffectiveFrom, time.Time{}),
			MustCreateEdge("SUB1", "SUB2", "1", 20, EffectiveFrom, time.Time{}),
			MustCreateEdge("SUB2", "P3", "4", 10, EffectiveFrom, time.Time{}),
		},
	)
}

// BuildCyclicStore holds the loop X -> Y -> Z -> X with a leaf hanging off Y
func BuildCyclicStore() *memory.Store {
	return build(
		[]*entities.Item{
			MustCreateItem("X", entities.Manufactured, "1"),
			MustCreateItem("Y", entities.Manufactured, "1"),
			MustCreateItem("Z", entities.Manufactured, "1"),
			MustCreateItem("LEAF", entities.Purchased, "1"),
		},
		[]*entities.StructureEdge{
			MustCreateEdge("X", "Y", "1", 10, EffectiveFrom, time.Time{}),
			MustCreateEdge("Y", "Z", "2", 10, EffectiveFrom, time.Time{}),
			MustCreateEdge("Y", "LEAF", "1", 20, EffectiveFrom, time.Time{}),
			MustCreateEdge("Z", "X", "1", 10, EffectiveFrom, time.Time{}),
		},
	)
}

// BuildRevisionStore swaps ENGINE's pump from PUMP_V1 to PUMP_V2 on 2025-06-01
func BuildRevisionStore() *memory.Store {
	return build(
		[]*entities.Item{
			MustCreateItem("ENGINE", entities.Manufactured, "500"),
			MustCreateItem("PUMP_V1", entities.Purchased, "40"),
			MustCreateItem("PUMP_V2", entities.Purchased, "45"),
			MustCreateItem("NOZZLE", entities.Purchased, "15"),
		},
		[]*entities.StructureEdge{
			MustCreateEdge("ENGINE", "PUMP_V1", "1", 10, EffectiveFrom, Day(2025, 5, 31)),
			MustCreateEdge("ENGINE", "PUMP_V2", "1", 10, Day(2025, 6, 1), time.Time{}),
			MustCreateEdge("ENGINE", "NOZZLE", "2", 20, EffectiveFrom, time.Time{}),
		},
	)
}
