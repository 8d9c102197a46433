package repositories

import (
	"context"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// OrderStore persists production orders. Every mutation runs inside RunInTransaction;
// when fn returns an error nothing it wrote, ledger postings included, is kept.
type OrderStore interface {
	RunInTransaction(ctx context.Context, fn func(tx OrderTransaction) error) error
	GetOrder(ctx context.Context, id int64) (*entities.ProductionOrder, error)
	ListOrders(ctx context.Context, filter entities.OrderFilter) ([]*entities.ProductionOrder, error)
}

// OrderTransaction is the unit of work handed to RunInTransaction
type OrderTransaction interface {
	// NextOrderID allocates an id no concurrent transaction can also receive.
	NextOrderID(ctx context.Context) (int64, error)
	InsertOrder(ctx context.Context, order *entities.ProductionOrder) error

	// LoadOrder returns the order with its lines, or entities.ErrOrderNotFound.
	LoadOrder(ctx context.Context, id int64) (*entities.ProductionOrder, error)

	// UpdateLine writes the issued and received quantities of an existing line.
	UpdateLine(ctx context.Context, line entities.OrderLine) error
	CloseOrder(ctx context.Context, id int64) error

	// Ledger returns an inventory ledger bound to this transaction.
	Ledger() InventoryLedger
}
