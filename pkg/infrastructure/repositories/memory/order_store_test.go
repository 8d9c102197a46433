package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

func insertOrder(t *testing.T, store *Store, location string) int64 {
	t.Helper()
	var id int64
	err := store.RunInTransaction(context.Background(), func(tx repositories.OrderTransaction) error {
		var err error
		id, err = tx.NextOrderID(context.Background())
		if err != nil {
			return err
		}
		order, err := entities.NewProductionOrder("FG1", location, decimal.NewFromInt(10),
			day(2025, 1, 1), day(2025, 2, 1), nil, nil)
		if err != nil {
			return err
		}
		order.ID = id
		order.Lines = []entities.OrderLine{
			{PartNumber: "A", Kind: entities.ComponentLine, Required: decimal.NewFromInt(20)},
			{PartNumber: "FG1", Kind: entities.OutputLine, Required: decimal.NewFromInt(10)},
		}
		return tx.InsertOrder(context.Background(), order)
	})
	require.NoError(t, err)
	return id
}

func TestStore_InsertAndGetOrder(t *testing.T) {
	store := NewStore(0, 0)

	id := insertOrder(t, store, "MAIN")
	assert.Equal(t, int64(1), id)

	order, err := store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.PartNumber("FG1"), order.TopItem)
	require.Len(t, order.Lines, 2)
	for _, line := range order.Lines {
		assert.Equal(t, id, line.OrderID)
	}

	_, err = store.GetOrder(context.Background(), 99)
	assert.ErrorIs(t, err, entities.ErrOrderNotFound)
}

func TestStore_RollbackDiscardsLinesAndMovements(t *testing.T) {
	store := NewStore(0, 0)
	ctx := context.Background()
	id := insertOrder(t, store, "MAIN")

	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, func(tx repositories.OrderTransaction) error {
		order, err := tx.LoadOrder(ctx, id)
		if err != nil {
			return err
		}
		line, _ := order.Line("A")
		line.Issued = decimal.NewFromInt(5)
		if err := tx.UpdateLine(ctx, *line); err != nil {
			return err
		}
		movement, err := entities.NewStockMovement("A", "MAIN", order.LedgerTag(),
			decimal.NewFromInt(-5), decimal.Zero, "issue")
		if err != nil {
			return err
		}
		if err := tx.Ledger().PostMovement(ctx, *movement); err != nil {
			return err
		}
		if err := tx.CloseOrder(ctx, id); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	order, err := store.GetOrder(ctx, id)
	require.NoError(t, err)
	line, _ := order.Line("A")
	assert.True(t, line.Issued.IsZero())
	assert.False(t, order.Closed)
	assert.Empty(t, store.Movements())
}

func TestStore_CommitPersistsLedger(t *testing.T) {
	store := NewStore(0, 0)
	ctx := context.Background()
	id := insertOrder(t, store, "MAIN")

	err := store.RunInTransaction(ctx, func(tx repositories.OrderTransaction) error {
		movement, err := entities.NewStockMovement("A", "MAIN", "WO-1", decimal.NewFromInt(-5), decimal.Zero, "issue")
		if err != nil {
			return err
		}
		if err := tx.Ledger().PostMovement(ctx, *movement); err != nil {
			return err
		}
		seen, err := tx.Ledger().MovementsFor(ctx, "WO-1")
		if err != nil {
			return err
		}
		assert.Len(t, seen, 1, "movement visible inside its own transaction")
		return tx.CloseOrder(ctx, id)
	})
	require.NoError(t, err)

	movements, err := store.MovementsFor(ctx, "WO-1")
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.NotEmpty(t, movements[0].ID)
	assert.False(t, movements[0].PostedAt.IsZero())
	assert.True(t, movements[0].IsIssue())

	order, _ := store.GetOrder(ctx, id)
	assert.True(t, order.Closed)
}

func TestStore_MovementHookFailsTransaction(t *testing.T) {
	store := NewStore(0, 0)
	ctx := context.Background()
	id := insertOrder(t, store, "MAIN")

	unavailable := errors.New("ledger unavailable")
	store.SetMovementHook(func(m entities.StockMovement) error {
		if m.PartNumber == "B" {
			return unavailable
		}
		return nil
	})

	err := store.RunInTransaction(ctx, func(tx repositories.OrderTransaction) error {
		for _, pn := range []entities.PartNumber{"A", "B"} {
			movement, err := entities.NewStockMovement(pn, "MAIN", "WO-1", decimal.NewFromInt(-1), decimal.Zero, "")
			if err != nil {
				return err
			}
			if err := tx.Ledger().PostMovement(ctx, *movement); err != nil {
				return err
			}
		}
		return nil
	})
	require.ErrorIs(t, err, unavailable)
	assert.Empty(t, store.Movements())

	_, err = store.GetOrder(ctx, id)
	require.NoError(t, err)
}

func TestStore_UpdateLine_UnknownLine(t *testing.T) {
	store := NewStore(0, 0)
	ctx := context.Background()
	id := insertOrder(t, store, "MAIN")

	err := store.RunInTransaction(ctx, func(tx repositories.OrderTransaction) error {
		return tx.UpdateLine(ctx, entities.OrderLine{OrderID: id, PartNumber: "ZZZ"})
	})
	assert.ErrorIs(t, err, entities.ErrOrderLineNotFound)
}

func TestStore_ConcurrentOrderIDsAreUnique(t *testing.T) {
	store := NewStore(0, 0)

	const workers = 50
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- insertOrder(t, store, "MAIN")
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}

func TestStore_ListOrders(t *testing.T) {
	store := NewStore(0, 0)
	ctx := context.Background()

	first := insertOrder(t, store, "MAIN")
	insertOrder(t, store, "EAST")
	third := insertOrder(t, store, "MAIN")
	require.NoError(t, store.RunInTransaction(ctx, func(tx repositories.OrderTransaction) error {
		return tx.CloseOrder(ctx, third)
	}))

	cutoff := day(2025, 1, 31)
	tests := []struct {
		name     string
		filter   entities.OrderFilter
		expected []int64
	}{
		{"all", entities.OrderFilter{}, []int64{1, 2, 3}},
		{"by_location", entities.OrderFilter{Location: "MAIN"}, []int64{first, third}},
		{"open_only", entities.OrderFilter{Status: entities.OpenOrders}, []int64{1, 2}},
		{"closed_only", entities.OrderFilter{Status: entities.ClosedOrders}, []int64{third}},
		{"by_top_item_miss", entities.OrderFilter{TopItem: "OTHER"}, nil},
		{"required_by_cutoff", entities.OrderFilter{RequiredByOnOrBefore: &cutoff}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := store.ListOrders(ctx, tt.filter)
			require.NoError(t, err)
			var got []int64
			for _, o := range orders {
				got = append(got, o.ID)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStore_RunInTransaction_CancelledContext(t *testing.T) {
	store := NewStore(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.RunInTransaction(ctx, func(repositories.OrderTransaction) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
