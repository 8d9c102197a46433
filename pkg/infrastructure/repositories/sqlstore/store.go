// Package sqlstore persists items, structures, production orders and the
// inventory ledger in SQLite or PostgreSQL through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

// Store implements the repository interfaces on a SQL database
type Store struct {
	db *sqlx.DB
}

var _ repositories.ItemRepository = (*Store)(nil)
var _ repositories.StructureWriter = (*Store)(nil)
var _ repositories.OrderStore = (*Store)(nil)

// Open connects to driver ("sqlite" or "postgres") and applies the schema
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != "sqlite" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if driver == "sqlite" {
		dsn = withSQLitePragmas(dsn)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer; one connection serializes transactions.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func withSQLitePragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	// _txlock=immediate takes the write lock at BEGIN, so a transaction never
	// works from a snapshot another process is about to change.
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// New wraps an existing handle without touching the schema
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- ItemRepository ---------------------------------------------------------

type itemRow struct {
	PartNumber    string          `db:"part_number"`
	Description   string          `db:"description"`
	MakeBuy       string          `db:"make_buy"`
	MaterialCost  decimal.Decimal `db:"material_cost"`
	LabourCost    decimal.Decimal `db:"labour_cost"`
	OverheadCost  decimal.Decimal `db:"overhead_cost"`
	UnitOfMeasure string          `db:"unit_of_measure"`
}

func (r itemRow) toEntity() (*entities.Item, error) {
	makeBuy, err := entities.ParseMakeBuy(r.MakeBuy)
	if err != nil {
		return nil, err
	}
	return &entities.Item{
		PartNumber:    entities.PartNumber(r.PartNumber),
		Description:   r.Description,
		MakeBuy:       makeBuy,
		MaterialCost:  r.MaterialCost,
		LabourCost:    r.LabourCost,
		OverheadCost:  r.OverheadCost,
		UnitOfMeasure: r.UnitOfMeasure,
	}, nil
}

const itemColumns = `part_number, description, make_buy, material_cost, labour_cost, overhead_cost, unit_of_measure`

func (s *Store) GetItem(ctx context.Context, partNumber entities.PartNumber) (*entities.Item, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+itemColumns+` FROM items WHERE part_number = ?`), string(partNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entities.ErrItemNotFound, partNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", partNumber, err)
	}
	return row.toEntity()
}

func (s *Store) GetAllItems(ctx context.Context) ([]*entities.Item, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM items ORDER BY part_number`); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := make([]*entities.Item, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, fmt.Errorf("decode item %s: %w", row.PartNumber, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// SaveItem inserts a new item; an existing part number is an error
func (s *Store) SaveItem(ctx context.Context, item *entities.Item) error {
	var exists int
	err := s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(*) FROM items WHERE part_number = ?`), string(item.PartNumber))
	if err != nil {
		return fmt.Errorf("check item %s: %w", item.PartNumber, err)
	}
	if exists > 0 {
		return fmt.Errorf("duplicate part number: %s", item.PartNumber)
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), string(item.PartNumber), item.Description, item.MakeBuy.String(),
		item.MaterialCost, item.LabourCost, item.OverheadCost,
		item.UnitOfMeasure)
	if err != nil {
		return fmt.Errorf("insert item %s: %w", item.PartNumber, err)
	}
	return nil
}

func (s *Store) ItemInfo(ctx context.Context, partNumber entities.PartNumber) (entities.ItemInfo, error) {
	item, err := s.GetItem(ctx, partNumber)
	if err != nil {
		return entities.ItemInfo{PartNumber: partNumber}, err
	}
	return item.Info(), nil
}

// --- StructureWriter --------------------------------------------------------

type edgeRow struct {
	Parent        string          `db:"parent"`
	Component     string          `db:"component"`
	QtyPer        decimal.Decimal `db:"qty_per"`
	Sequence      int             `db:"sequence"`
	EffectiveFrom dbDate          `db:"effective_from"`
	EffectiveTo   dbDate          `db:"effective_to"`
	WorkCentre    *string         `db:"work_centre"`
	AutoIssue     bool            `db:"auto_issue"`
	Remark        *string         `db:"remark"`
}

func (r edgeRow) toEntity() *entities.StructureEdge {
	return &entities.StructureEdge{
		Parent:     entities.PartNumber(r.Parent),
		Component:  entities.PartNumber(r.Component),
		QtyPer:     r.QtyPer,
		Sequence:   r.Sequence,
		Window:     entities.EffectiveWindow{From: r.EffectiveFrom.Time, To: r.EffectiveTo.Time},
		WorkCentre: r.WorkCentre,
		AutoIssue:  r.AutoIssue,
		Remark:     r.Remark,
	}
}

const edgeColumns = `parent, component, qty_per, sequence, effective_from, effective_to, work_centre, auto_issue, remark`

func (s *Store) selectEdges(ctx context.Context, query string, args ...interface{}) ([]*entities.StructureEdge, error) {
	var rows []edgeRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	edges := make([]*entities.StructureEdge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, row.toEntity())
	}
	return edges, nil
}

func (s *Store) ActiveEdgesOf(ctx context.Context, parent entities.PartNumber, asOf time.Time) ([]*entities.StructureEdge, error) {
	on := dbDate{entities.DateOf(asOf)}
	edges, err := s.selectEdges(ctx, `
		SELECT `+edgeColumns+` FROM structure_edges
		WHERE parent = ? AND effective_from <= ? AND effective_to >= ?
		ORDER BY sequence, component
	`, string(parent), on, on)
	if err != nil {
		return nil, fmt.Errorf("active edges of %s: %w", parent, err)
	}
	return edges, nil
}

func (s *Store) EdgesBetween(ctx context.Context, key entities.EdgeKey) ([]*entities.StructureEdge, error) {
	edges, err := s.selectEdges(ctx, `
		SELECT `+edgeColumns+` FROM structure_edges
		WHERE parent = ? AND component = ?
		ORDER BY effective_from
	`, string(key.Parent), string(key.Component))
	if err != nil {
		return nil, fmt.Errorf("edges of %s: %w", key, err)
	}
	return edges, nil
}

func (s *Store) AllEdges(ctx context.Context) ([]*entities.StructureEdge, error) {
	edges, err := s.selectEdges(ctx, `
		SELECT `+edgeColumns+` FROM structure_edges
		ORDER BY parent, sequence, component, effective_from
	`)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return edges, nil
}

// SaveEdge upserts an edge keyed by parent, component and effective-from date
func (s *Store) SaveEdge(ctx context.Context, edge *entities.StructureEdge) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO structure_edges (`+edgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (parent, component, effective_from) DO UPDATE SET
			qty_per = excluded.qty_per,
			sequence = excluded.sequence,
			effective_to = excluded.effective_to,
			work_centre = excluded.work_centre,
			auto_issue = excluded.auto_issue,
			remark = excluded.remark
	`), string(edge.Parent), string(edge.Component), edge.QtyPer, edge.Sequence,
		dbDate{edge.Window.From}, dbDate{edge.Window.To}, edge.WorkCentre, edge.AutoIssue, edge.Remark)
	if err != nil {
		return fmt.Errorf("save edge %s: %w", edge.Key(), err)
	}
	return nil
}

func (s *Store) DeleteEdge(ctx context.Context, key entities.EdgeKey, effectiveFrom time.Time) error {
	from := dbDate{entities.DateOf(effectiveFrom)}
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM structure_edges WHERE parent = ? AND component = ? AND effective_from = ?
	`), string(key.Parent), string(key.Component), from)
	if err != nil {
		return fmt.Errorf("delete edge %s: %w", key, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s from %s", entities.ErrStructureEdgeNotFound, key, from.Format(time.DateOnly))
	}
	return nil
}
