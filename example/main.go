package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/application/services/explosion"
	"github.com/vsinha/shopfloor/pkg/application/services/orders"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/memory"
)

func main() {
	ctx := context.Background()

	store := memory.NewStore(8, 8)
	if err := setupRocketEngine(store); err != nil {
		fmt.Printf("❌ Setup failed: %v\n", err)
		return
	}

	asOf := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	// Explode the engine structure
	fmt.Println("🚀 Exploding ROCKET_ENGINE structure...")
	rows, err := explosion.NewEngine(store).Explode(ctx, "ROCKET_ENGINE", asOf)
	if err != nil {
		fmt.Printf("❌ Explosion failed: %v\n", err)
		return
	}
	for _, row := range rows {
		fmt.Printf("  L%d %s -> %s x%s (per engine: %s)\n",
			row.Level, row.Parent, row.Component, row.QtyPer, row.ExtendedQty)
	}
	fmt.Println()

	// Build nine engines for the first stage
	eventStore := events.NewInMemoryEventStore(nil)
	service := orders.NewService(store, store, orders.WithPublisher(eventStore))

	order, err := service.Create(ctx, orders.CreateOrderRequest{
		TopItem:   "ROCKET_ENGINE",
		Location:  "LAUNCH_PAD_39A",
		Quantity:  decimal.NewFromInt(9),
		StartDate: asOf,
		Reference: entities.Optional("MISSION_MARS_001"),
	})
	if err != nil {
		fmt.Printf("❌ Order creation failed: %v\n", err)
		return
	}
	fmt.Printf("📝 Order %d created for %s engines\n", order.ID, order.Quantity)
	for _, line := range order.ComponentLines() {
		fmt.Printf("  %s: %s required @ %s\n", line.PartNumber, line.Required, line.StandardCost)
	}
	fmt.Println()

	issues := make(map[entities.PartNumber]decimal.Decimal)
	for _, line := range order.ComponentLines() {
		issues[line.PartNumber] = line.Required
	}
	if _, err := service.IssueMaterials(ctx, order.ID, issues, ""); err != nil {
		fmt.Printf("❌ Issue failed: %v\n", err)
		return
	}
	fmt.Println("📦 Materials issued to the pad")

	order, err = service.ReceiveFinishedGoods(ctx, order.ID, decimal.NewFromInt(9), "")
	if err != nil {
		fmt.Printf("❌ Receipt failed: %v\n", err)
		return
	}
	fmt.Printf("✅ Engines received, order closed: %v\n", order.Closed)

	movements, _ := store.MovementsFor(ctx, order.LedgerTag())
	fmt.Printf("📒 %d ledger movements, %d events published\n",
		len(movements), len(eventStore.EventsOfType(events.MaterialsIssuedEvent))+
			len(eventStore.EventsOfType(events.GoodsReceivedEvent))+
			len(eventStore.EventsOfType(events.OrderCreatedEvent)))
}

func setupRocketEngine(store *memory.Store) error {
	item := func(pn string, makeBuy entities.MakeBuy, cost string) *entities.Item {
		i, err := entities.NewItem(entities.PartNumber(pn), pn, makeBuy,
			decimal.RequireFromString(cost), decimal.Zero, decimal.Zero, "EA")
		if err != nil {
			panic(err)
		}
		return i
	}
	effective, err := entities.NewEffectiveWindow(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if err != nil {
		return err
	}
	edge := func(parent, component string, qty int64, seq int) *entities.StructureEdge {
		e, err := entities.NewStructureEdge(entities.PartNumber(parent), entities.PartNumber(component),
			decimal.NewFromInt(qty), seq, *effective, nil, false, nil)
		if err != nil {
			panic(err)
		}
		return e
	}

	if err := store.LoadItems([]*entities.Item{
		item("ROCKET_ENGINE", entities.Manufactured, "250000"),
		item("TURBOPUMP", entities.Manufactured, "40000"),
		item("COMBUSTION_CHAMBER", entities.Purchased, "60000"),
		item("NOZZLE", entities.Purchased, "35000"),
		item("IMPELLER", entities.Purchased, "4000"),
		item("BEARING", entities.Purchased, "300"),
	}); err != nil {
		return err
	}
	return store.LoadEdges([]*entities.StructureEdge{
		edge("ROCKET_ENGINE", "TURBOPUMP", 1, 10),
		edge("ROCKET_ENGINE", "COMBUSTION_CHAMBER", 1, 20),
		edge("ROCKET_ENGINE", "NOZZLE", 1, 30),
		edge("TURBOPUMP", "IMPELLER", 2, 10),
		edge("TURBOPUMP", "BEARING", 4, 20),
	})
}
