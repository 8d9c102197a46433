package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

type orderRow struct {
	ID         int64           `db:"id"`
	TopItem    string          `db:"top_item"`
	Location   string          `db:"location"`
	Quantity   decimal.Decimal `db:"quantity"`
	RequiredBy dbDate          `db:"required_by"`
	StartDate  dbDate          `db:"start_date"`
	Reference  *string         `db:"reference"`
	Remark     *string         `db:"remark"`
	Closed     bool            `db:"closed"`
}

type lineRow struct {
	OrderID      int64           `db:"order_id"`
	LineNo       int             `db:"line_no"`
	PartNumber   string          `db:"part_number"`
	Kind         int             `db:"kind"`
	QtyPer       decimal.Decimal `db:"qty_per"`
	AutoIssue    bool            `db:"auto_issue"`
	Required     decimal.Decimal `db:"required"`
	Issued       decimal.Decimal `db:"issued"`
	Received     decimal.Decimal `db:"received"`
	StandardCost decimal.Decimal `db:"standard_cost"`
}

func (r orderRow) toEntity() *entities.ProductionOrder {
	return &entities.ProductionOrder{
		ID:         r.ID,
		TopItem:    entities.PartNumber(r.TopItem),
		Location:   r.Location,
		Quantity:   r.Quantity,
		RequiredBy: r.RequiredBy.Time,
		StartDate:  r.StartDate.Time,
		Reference:  r.Reference,
		Remark:     r.Remark,
		Closed:     r.Closed,
	}
}

func (r lineRow) toEntity() entities.OrderLine {
	return entities.OrderLine{
		OrderID:      r.OrderID,
		PartNumber:   entities.PartNumber(r.PartNumber),
		Kind:         entities.LineKind(r.Kind),
		QtyPer:       r.QtyPer,
		AutoIssue:    r.AutoIssue,
		Required:     r.Required,
		Issued:       r.Issued,
		Received:     r.Received,
		StandardCost: r.StandardCost,
	}
}

const (
	orderColumns = `id, top_item, location, quantity, required_by, start_date, reference, remark, closed`
	lineColumns  = `order_id, line_no, part_number, kind, qty_per, auto_issue, required, issued, received, standard_cost`
)

// loadOrder reads an order with its lines. With forUpdate on postgres the order
// row stays locked until the surrounding transaction ends.
func loadOrder(ctx context.Context, q sqlx.ExtContext, id int64, forUpdate bool) (*entities.ProductionOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM production_orders WHERE id = ?`
	if forUpdate && q.DriverName() == "postgres" {
		query += ` FOR UPDATE`
	}
	var row orderRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", entities.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	order := row.toEntity()
	if err := attachLines(ctx, q, []*entities.ProductionOrder{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func attachLines(ctx context.Context, q sqlx.ExtContext, orders []*entities.ProductionOrder) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[int64]*entities.ProductionOrder, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query, args, err := sqlx.In(`SELECT `+lineColumns+` FROM order_lines WHERE order_id IN (?) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("build line query: %w", err)
	}
	var rows []lineRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}
	for _, row := range rows {
		order := byID[row.OrderID]
		order.Lines = append(order.Lines, row.toEntity())
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*entities.ProductionOrder, error) {
	return loadOrder(ctx, s.db, id, false)
}

func (s *Store) ListOrders(ctx context.Context, filter entities.OrderFilter) ([]*entities.ProductionOrder, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Location != "" {
		where = append(where, "location = ?")
		args = append(args, filter.Location)
	}
	if filter.TopItem != "" {
		where = append(where, "top_item = ?")
		args = append(args, string(filter.TopItem))
	}
	switch filter.Status {
	case entities.OpenOrders:
		where = append(where, "closed = ?")
		args = append(args, false)
	case entities.ClosedOrders:
		where = append(where, "closed = ?")
		args = append(args, true)
	}
	if filter.RequiredByOnOrBefore != nil {
		where = append(where, "required_by <= ?")
		args = append(args, dbDate{entities.DateOf(*filter.RequiredByOnOrBefore)})
	}

	query := `SELECT ` + orderColumns + ` FROM production_orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]*entities.ProductionOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toEntity())
	}
	if err := attachLines(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// RunInTransaction runs fn inside a database transaction, committing when fn succeeds
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx repositories.OrderTransaction) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&transaction{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MovementsFor returns committed movements carrying reference in posting order
func (s *Store) MovementsFor(ctx context.Context, reference string) ([]entities.StockMovement, error) {
	return movementsFor(ctx, s.db, reference)
}

type transaction struct {
	tx *sqlx.Tx
}

var _ repositories.OrderTransaction = (*transaction)(nil)
var _ repositories.InventoryLedger = (*transaction)(nil)

func (t *transaction) NextOrderID(ctx context.Context) (int64, error) {
	var id int64
	err := t.tx.GetContext(ctx, &id, `UPDATE order_sequence SET next_id = next_id + 1 WHERE id = 1 RETURNING next_id`)
	if err != nil {
		return 0, fmt.Errorf("allocate order id: %w", err)
	}
	return id, nil
}

func (t *transaction) InsertOrder(ctx context.Context, order *entities.ProductionOrder) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO production_orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), order.ID, string(order.TopItem), order.Location, order.Quantity,
		dbDate{order.RequiredBy}, dbDate{order.StartDate}, order.Reference, order.Remark, order.Closed)
	if err != nil {
		return fmt.Errorf("insert order %d: %w", order.ID, err)
	}

	insertLine := t.tx.Rebind(`INSERT INTO order_lines (` + lineColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, line := range order.Lines {
		_, err := t.tx.ExecContext(ctx, insertLine, order.ID, i+1, string(line.PartNumber), int(line.Kind),
			line.QtyPer, line.AutoIssue, line.Required, line.Issued, line.Received, line.StandardCost)
		if err != nil {
			return fmt.Errorf("insert line %s of order %d: %w", line.PartNumber, order.ID, err)
		}
	}
	return nil
}

// LoadOrder locks the order for the rest of the transaction so concurrent
// issues and receipts against it apply one after the other. SQLite
// transactions already hold the write lock from BEGIN.
func (t *transaction) LoadOrder(ctx context.Context, id int64) (*entities.ProductionOrder, error) {
	return loadOrder(ctx, t.tx, id, true)
}

func (t *transaction) UpdateLine(ctx context.Context, line entities.OrderLine) error {
	result, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE order_lines SET issued = ?, received = ?
		WHERE order_id = ? AND part_number = ?
	`), line.Issued, line.Received, line.OrderID, string(line.PartNumber))
	if err != nil {
		return fmt.Errorf("update line %s of order %d: %w", line.PartNumber, line.OrderID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s on order %d", entities.ErrOrderLineNotFound, line.PartNumber, line.OrderID)
	}
	return nil
}

func (t *transaction) CloseOrder(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE production_orders SET closed = ? WHERE id = ?`), true, id)
	if err != nil {
		return fmt.Errorf("close order %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", entities.ErrOrderNotFound, id)
	}
	return nil
}

func (t *transaction) Ledger() repositories.InventoryLedger {
	return t
}

const movementColumns = `id, part_number, location, reference, quantity, cost, memo, batch_id, serial_id, auto_cost, posted_at`

type movementRow struct {
	ID         string          `db:"id"`
	PartNumber string          `db:"part_number"`
	Location   string          `db:"location"`
	Reference  string          `db:"reference"`
	Quantity   decimal.Decimal `db:"quantity"`
	Cost       decimal.Decimal `db:"cost"`
	Memo       string          `db:"memo"`
	BatchID    *string         `db:"batch_id"`
	SerialID   *string         `db:"serial_id"`
	AutoCost   bool            `db:"auto_cost"`
	PostedAt   dbTimestamp     `db:"posted_at"`
}

func (t *transaction) PostMovement(ctx context.Context, m entities.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.PostedAt.IsZero() {
		m.PostedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), m.ID, string(m.PartNumber), m.Location, m.Reference, m.Quantity, m.Cost, m.Memo,
		m.BatchID, m.SerialID, m.AutoCost, dbTimestamp{m.PostedAt})
	if err != nil {
		return fmt.Errorf("post movement of %s: %w", m.PartNumber, err)
	}
	return nil
}

func (t *transaction) MovementsFor(ctx context.Context, reference string) ([]entities.StockMovement, error) {
	return movementsFor(ctx, t.tx, reference)
}

func movementsFor(ctx context.Context, q sqlx.ExtContext, reference string) ([]entities.StockMovement, error) {
	var rows []movementRow
	err := sqlx.SelectContext(ctx, q, &rows,
		q.Rebind(`SELECT `+movementColumns+` FROM stock_movements WHERE reference = ? ORDER BY seq`), reference)
	if err != nil {
		return nil, fmt.Errorf("movements for %s: %w", reference, err)
	}
	movements := make([]entities.StockMovement, 0, len(rows))
	for _, r := range rows {
		movements = append(movements, entities.StockMovement{
			ID:         r.ID,
			PartNumber: entities.PartNumber(r.PartNumber),
			Location:   r.Location,
			Reference:  r.Reference,
			Quantity:   r.Quantity,
			Cost:       r.Cost,
			Memo:       r.Memo,
			BatchID:    r.BatchID,
			SerialID:   r.SerialID,
			AutoCost:   r.AutoCost,
			PostedAt:   r.PostedAt.Time,
		})
	}
	return movements, nil
}
