package memory

import (
	"context"
	"sync"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

// Store keeps items, structure edges, production orders and the inventory
// ledger in memory. Order mutations run against a cloned copy of the order
// state which replaces the live state only when the transaction succeeds.
type Store struct {
	mu sync.RWMutex

	items     []entities.Item
	itemsMap  map[entities.PartNumber]int
	edges     []entities.StructureEdge
	edgeIndex map[entities.PartNumber][]int

	orders orderState

	movementHook func(entities.StockMovement) error
}

// orderState is the part of the store guarded by transactions
type orderState struct {
	nextID    int64
	orders    map[int64]*entities.ProductionOrder
	ids       []int64
	movements []entities.StockMovement
}

func (s orderState) clone() orderState {
	c := orderState{
		nextID:    s.nextID,
		orders:    make(map[int64]*entities.ProductionOrder, len(s.orders)),
		ids:       append([]int64(nil), s.ids...),
		movements: append([]entities.StockMovement(nil), s.movements...),
	}
	for id, order := range s.orders {
		c.orders[id] = order.Clone()
	}
	return c
}

// NewStore creates an empty store sized for the expected number of items and edges
func NewStore(expectedItems, expectedEdges int) *Store {
	return &Store{
		items:     make([]entities.Item, 0, expectedItems),
		itemsMap:  make(map[entities.PartNumber]int, expectedItems),
		edges:     make([]entities.StructureEdge, 0, expectedEdges),
		edgeIndex: make(map[entities.PartNumber][]int, expectedItems),
		orders: orderState{
			orders: make(map[int64]*entities.ProductionOrder),
		},
	}
}

// Verify interface compliance
var _ repositories.ItemRepository = (*Store)(nil)
var _ repositories.StructureWriter = (*Store)(nil)
var _ repositories.OrderStore = (*Store)(nil)

// SetMovementHook installs a function consulted before every ledger posting.
// A non-nil error from the hook fails the posting and so the transaction.
func (s *Store) SetMovementHook(hook func(entities.StockMovement) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movementHook = hook
}

// RunInTransaction runs fn against a private copy of the order state. Transactions
// are serialized; fn must not call back into the Store.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx repositories.OrderTransaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{store: s, state: s.orders.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.orders = tx.state
	return nil
}

// Movements returns every posted stock movement in posting order
func (s *Store) Movements() []entities.StockMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.StockMovement(nil), s.orders.movements...)
}
