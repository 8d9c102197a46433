package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

// GetOrder returns a copy of the order and its lines
func (s *Store) GetOrder(_ context.Context, id int64) (*entities.ProductionOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", entities.ErrOrderNotFound, id)
	}
	return order.Clone(), nil
}

// ListOrders returns copies of the orders matching filter ordered by id
func (s *Store) ListOrders(_ context.Context, filter entities.OrderFilter) ([]*entities.ProductionOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*entities.ProductionOrder
	for _, id := range s.orders.ids {
		order := s.orders.orders[id]
		if filter.Matches(order) {
			matched = append(matched, order.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

// transaction mutates a private copy of the order state
type transaction struct {
	store *Store
	state orderState
}

var _ repositories.OrderTransaction = (*transaction)(nil)
var _ repositories.InventoryLedger = (*transaction)(nil)

func (tx *transaction) NextOrderID(_ context.Context) (int64, error) {
	tx.state.nextID++
	return tx.state.nextID, nil
}

func (tx *transaction) InsertOrder(_ context.Context, order *entities.ProductionOrder) error {
	if _, exists := tx.state.orders[order.ID]; exists {
		return fmt.Errorf("duplicate production order id: %d", order.ID)
	}
	stored := order.Clone()
	for i := range stored.Lines {
		stored.Lines[i].OrderID = order.ID
	}
	tx.state.orders[order.ID] = stored
	tx.state.ids = append(tx.state.ids, order.ID)
	return nil
}

func (tx *transaction) LoadOrder(_ context.Context, id int64) (*entities.ProductionOrder, error) {
	order, ok := tx.state.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", entities.ErrOrderNotFound, id)
	}
	return order.Clone(), nil
}

func (tx *transaction) UpdateLine(_ context.Context, line entities.OrderLine) error {
	order, ok := tx.state.orders[line.OrderID]
	if !ok {
		return fmt.Errorf("%w: %d", entities.ErrOrderNotFound, line.OrderID)
	}
	stored, ok := order.Line(line.PartNumber)
	if !ok {
		return fmt.Errorf("%w: %s on order %d", entities.ErrOrderLineNotFound, line.PartNumber, line.OrderID)
	}
	stored.Issued = line.Issued
	stored.Received = line.Received
	return nil
}

func (tx *transaction) CloseOrder(_ context.Context, id int64) error {
	order, ok := tx.state.orders[id]
	if !ok {
		return fmt.Errorf("%w: %d", entities.ErrOrderNotFound, id)
	}
	order.Closed = true
	return nil
}

func (tx *transaction) Ledger() repositories.InventoryLedger {
	return tx
}

func (tx *transaction) PostMovement(_ context.Context, movement entities.StockMovement) error {
	if tx.store.movementHook != nil {
		if err := tx.store.movementHook(movement); err != nil {
			return fmt.Errorf("post movement of %s: %w", movement.PartNumber, err)
		}
	}
	if movement.ID == "" {
		movement.ID = uuid.NewString()
	}
	if movement.PostedAt.IsZero() {
		movement.PostedAt = time.Now().UTC()
	}
	tx.state.movements = append(tx.state.movements, movement)
	return nil
}

func (tx *transaction) MovementsFor(_ context.Context, reference string) ([]entities.StockMovement, error) {
	var out []entities.StockMovement
	for _, m := range tx.state.movements {
		if m.Reference == reference {
			out = append(out, m)
		}
	}
	return out, nil
}

// MovementsFor returns the committed movements carrying reference
func (s *Store) MovementsFor(_ context.Context, reference string) ([]entities.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.StockMovement
	for _, m := range s.orders.movements {
		if m.Reference == reference {
			out = append(out, m)
		}
	}
	return out, nil
}
