// Package orders owns the production order lifecycle: creation, batch material
// issue and finished-goods receipt with automatic closure.
package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/application/services/planning"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/metrics"
)

// Service runs every order operation in its own store transaction and keeps no
// per-order state in memory, so it is safe for concurrent use.
type Service struct {
	store     repositories.OrderStore
	structure repositories.StructureRepository
	planner   *planning.Planner
	publisher events.Publisher
	logger    *zap.Logger
	metrics   metrics.Recorder
	now       func() time.Time
	backflush bool
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher sets where lifecycle notifications go once a change has committed
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithClock overrides the time source used for default start dates and postings
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBackflush makes a receipt also issue the auto-issue components consumed by
// the received quantity
func WithBackflush(enabled bool) Option {
	return func(s *Service) {
		s.backflush = enabled
	}
}

// NewService creates an order service over store, planning lines from structure
func NewService(
	store repositories.OrderStore,
	structure repositories.StructureRepository,
	opts ...Option,
) *Service {
	s := &Service{
		store:     store,
		structure: structure,
		planner:   planning.NewPlanner(structure),
		publisher: events.NopPublisher{},
		logger:    zap.NewNop(),
		metrics:   metrics.NoOpRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrderRequest describes a new production order. A zero StartDate means
// today; a zero RequiredBy means the start date.
type CreateOrderRequest struct {
	TopItem    entities.PartNumber
	Location   string
	Quantity   decimal.Decimal
	StartDate  time.Time
	RequiredBy time.Time
	Reference  *string
	Remark     *string
}

// Create plans and persists a new open order. Component lines are a snapshot of
// the top item's direct structure active on the start date; a final output line
// tracks receipts of the top item against the ordered quantity.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (order *entities.ProductionOrder, err error) {
	defer s.observe("create", time.Now(), &err)

	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w, got %s", entities.ErrInvalidQuantity, req.Quantity)
	}
	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = s.now()
	}
	order, err = entities.NewProductionOrder(req.TopItem, req.Location, req.Quantity,
		startDate, req.RequiredBy, req.Reference, req.Remark)
	if err != nil {
		return nil, err
	}

	lines, err := s.planner.PlanLines(ctx, order.TopItem, order.Quantity, order.StartDate)
	if err != nil {
		return nil, err
	}
	top, err := s.structure.ItemInfo(ctx, order.TopItem)
	if err != nil {
		return nil, err
	}
	order.Lines = append(lines, entities.OrderLine{
		PartNumber:   order.TopItem,
		Kind:         entities.OutputLine,
		QtyPer:       decimal.NewFromInt(1),
		Required:     order.Quantity,
		Issued:       decimal.Zero,
		Received:     decimal.Zero,
		StandardCost: top.Cost,
	})

	err = s.store.RunInTransaction(ctx, func(tx repositories.OrderTransaction) error {
		id, err := tx.NextOrderID(ctx)
		if err != nil {
			return fmt.Errorf("allocate order id: %w", err)
		}
		order.ID = id
		for i := range order.Lines {
			order.Lines[i].OrderID = id
		}
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("create order for %s: %w", order.TopItem, err)
	}

	s.logger.Info("production order created",
		zap.Int64("order_id", order.ID),
		zap.String("top_item", string(order.TopItem)),
		zap.String("location", order.Location),
		zap.String("quantity", order.Quantity.String()),
		zap.Int("component_lines", len(lines)))
	s.publish(ctx, events.NewOrderCreatedEvent(*order.Clone()))
	return order, nil
}

// IssueMaterials issues every (component, quantity) pair of issues against the
// order in one transaction: each line's issued quantity grows and a negative
// movement is posted at location. Either every pair is applied or none is. An
// empty location means the order's own location.
func (s *Service) IssueMaterials(
	ctx context.Context,
	orderID int64,
	issues map[entities.PartNumber]decimal.Decimal,
	location string,
) (order *entities.ProductionOrder, err error) {
	defer s.observe("issue", time.Now(), &err)

	if len(issues) == 0 {
		return nil, fmt.Errorf("%w: nothing to issue", entities.ErrInvalidQuantity)
	}
	parts := sortedParts(issues)
	for _, pn := range parts {
		if !issues[pn].IsPositive() {
			return nil, fmt.Errorf("%w: %s issue of %s", entities.ErrInvalidQuantity, pn, issues[pn])
		}
	}

	var posted []entities.StockMovement
	err = s.store.RunInTransaction(ctx, func(tx repositories.OrderTransaction) error {
		posted = posted[:0]
		current, err := s.loadOpen(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if location == "" {
			location = current.Location
		}

		for _, pn := range parts {
			line, ok := current.Line(pn)
			if !ok || line.Kind != entities.ComponentLine {
				return fmt.Errorf("%w: %s on order %d", entities.ErrOrderLineNotFound, pn, orderID)
			}
			movement, err := s.issue(ctx, tx, current, line, issues[pn], location, "issue")
			if err != nil {
				return err
			}
			posted = append(posted, movement)
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordMovements(posted)
	s.logger.Info("materials issued",
		zap.Int64("order_id", order.ID),
		zap.String("location", location),
		zap.Int("components", len(parts)))
	s.publish(ctx, events.NewMaterialsIssuedEvent(*order.Clone(), location, issues))
	return order, nil
}

// ReceiveFinishedGoods books quantity of the top item against the order's output
// line and posts a positive movement at location. The order closes in the same
// transaction once it is complete. An empty location means the order's own location.
func (s *Service) ReceiveFinishedGoods(
	ctx context.Context,
	orderID int64,
	quantity decimal.Decimal,
	location string,
) (order *entities.ProductionOrder, err error) {
	defer s.observe("receive", time.Now(), &err)

	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w, got %s", entities.ErrInvalidQuantity, quantity)
	}

	var posted []entities.StockMovement
	err = s.store.RunInTransaction(ctx, func(tx repositories.OrderTransaction) error {
		posted = posted[:0]
		current, err := s.loadOpen(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if location == "" {
			location = current.Location
		}

		output, ok := current.TrackingLine()
		if !ok {
			return fmt.Errorf("%w: output line of order %d", entities.ErrOrderLineNotFound, orderID)
		}
		output.Received = output.Received.Add(quantity)
		if err := tx.UpdateLine(ctx, *output); err != nil {
			return fmt.Errorf("update output line of order %d: %w", orderID, err)
		}
		receipt, err := s.post(ctx, tx, current, current.TopItem, quantity, output.StandardCost, location, "receipt")
		if err != nil {
			return err
		}
		posted = append(posted, receipt)

		if s.backflush {
			for i := range current.Lines {
				line := &current.Lines[i]
				if line.Kind != entities.ComponentLine || !line.AutoIssue {
					continue
				}
				movement, err := s.issue(ctx, tx, current, line, line.QtyPer.Mul(quantity), location, "backflush")
				if err != nil {
					return err
				}
				posted = append(posted, movement)
			}
		}

		if current.IsComplete() {
			if err := tx.CloseOrder(ctx, current.ID); err != nil {
				return fmt.Errorf("close order %d: %w", current.ID, err)
			}
			current.Closed = true
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordMovements(posted)
	if order.Closed {
		s.metrics.RecordOrderClosed(order.Location)
	}
	s.logger.Info("finished goods received",
		zap.Int64("order_id", order.ID),
		zap.String("location", location),
		zap.String("quantity", quantity.String()),
		zap.Bool("closed", order.Closed))
	s.publish(ctx, events.NewGoodsReceivedEvent(*order.Clone(), location, quantity))
	return order, nil
}

// GetOrder returns the order with its lines, or entities.ErrOrderNotFound
func (s *Service) GetOrder(ctx context.Context, id int64) (*entities.ProductionOrder, error) {
	return s.store.GetOrder(ctx, id)
}

// ListOrders returns the orders matching filter ordered by id
func (s *Service) ListOrders(ctx context.Context, filter entities.OrderFilter) ([]*entities.ProductionOrder, error) {
	return s.store.ListOrders(ctx, filter)
}

func (s *Service) loadOpen(ctx context.Context, tx repositories.OrderTransaction, orderID int64) (*entities.ProductionOrder, error) {
	order, err := tx.LoadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Closed {
		return nil, fmt.Errorf("%w: %d", entities.ErrOrderClosed, orderID)
	}
	return order, nil
}

// issue raises the line's issued quantity and posts the matching negative movement
func (s *Service) issue(
	ctx context.Context,
	tx repositories.OrderTransaction,
	order *entities.ProductionOrder,
	line *entities.OrderLine,
	quantity decimal.Decimal,
	location, memo string,
) (entities.StockMovement, error) {
	line.Issued = line.Issued.Add(quantity)
	if err := tx.UpdateLine(ctx, *line); err != nil {
		return entities.StockMovement{}, fmt.Errorf("update line %s of order %d: %w", line.PartNumber, order.ID, err)
	}
	return s.post(ctx, tx, order, line.PartNumber, quantity.Neg(), line.StandardCost, location, memo)
}

func (s *Service) post(
	ctx context.Context,
	tx repositories.OrderTransaction,
	order *entities.ProductionOrder,
	partNumber entities.PartNumber,
	quantity, cost decimal.Decimal,
	location, memo string,
) (entities.StockMovement, error) {
	movement, err := entities.NewStockMovement(partNumber, location, order.LedgerTag(), quantity, cost, memo)
	if err != nil {
		return entities.StockMovement{}, err
	}
	movement.PostedAt = s.now().UTC()
	if err := tx.Ledger().PostMovement(ctx, *movement); err != nil {
		return entities.StockMovement{}, err
	}
	return *movement, nil
}

func (s *Service) recordMovements(movements []entities.StockMovement) {
	for _, m := range movements {
		s.metrics.RecordMovement(m.IsIssue())
	}
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	s.metrics.RecordOrderOperation(operation, time.Since(start), *err)
	if *err != nil {
		s.logger.Debug("order operation failed", zap.String("operation", operation), zap.Error(*err))
	}
}

// publish is fire-and-forget; the change it reports has already committed
func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", event.Type()),
			zap.String("stream", event.StreamID()),
			zap.Error(err))
	}
}

func sortedParts(issues map[entities.PartNumber]decimal.Decimal) []entities.PartNumber {
	parts := make([]entities.PartNumber, 0, len(issues))
	for pn := range issues {
		parts = append(parts, pn)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
	return parts
}
