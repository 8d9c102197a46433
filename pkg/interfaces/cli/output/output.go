package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/services"
)

// Format selects how results are rendered
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	CSV  Format = "csv"
)

func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(value)); f {
	case Text, JSON, CSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// Printer renders command results to a writer
type Printer struct {
	w      io.Writer
	format Format
}

func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

type explosionRowView struct {
	Level       int             `json:"level"`
	Parent      string          `json:"parent"`
	Component   string          `json:"component"`
	Sequence    int             `json:"sequence"`
	QtyPer      decimal.Decimal `json:"qty_per"`
	ExtendedQty decimal.Decimal `json:"extended_qty"`
}

type demandView struct {
	PartNumber  string          `json:"part_number"`
	Quantity    decimal.Decimal `json:"quantity"`
	Occurrences int             `json:"occurrences"`
	FirstLevel  int             `json:"first_level"`
}

type explosionView struct {
	TopItem string             `json:"top_item"`
	AsOf    string             `json:"as_of"`
	Depth   int                `json:"depth"`
	Rows    []explosionRowView `json:"rows"`
	Summary []demandView       `json:"summary,omitempty"`
}

// Explosion prints the rows of an explosion and, when given, the per-component summary
func (p *Printer) Explosion(explosion *entities.Explosion, summary []entities.ComponentDemand) error {
	view := explosionView{
		TopItem: string(explosion.TopItem),
		AsOf:    explosion.AsOf.Format(time.DateOnly),
		Depth:   explosion.Depth(),
		Rows:    make([]explosionRowView, 0, len(explosion.Rows)),
	}
	for _, r := range explosion.Rows {
		view.Rows = append(view.Rows, explosionRowView{
			Level:       r.Level,
			Parent:      string(r.Parent),
			Component:   string(r.Component),
			Sequence:    r.Sequence,
			QtyPer:      r.QtyPer,
			ExtendedQty: r.ExtendedQty,
		})
	}
	for _, d := range summary {
		view.Summary = append(view.Summary, demandView{
			PartNumber:  string(d.PartNumber),
			Quantity:    d.Quantity,
			Occurrences: d.Occurrences,
			FirstLevel:  d.FirstLevel,
		})
	}

	switch p.format {
	case JSON:
		return p.json(view)
	case CSV:
		records := [][]string{{"level", "parent", "component", "sequence", "qty_per", "extended_qty"}}
		for _, r := range view.Rows {
			records = append(records, []string{
				strconv.Itoa(r.Level), r.Parent, r.Component, strconv.Itoa(r.Sequence),
				r.QtyPer.String(), r.ExtendedQty.String(),
			})
		}
		return p.csv(records)
	}

	fmt.Fprintf(p.w, "Structure of %s as of %s\n", view.TopItem, view.AsOf)
	fmt.Fprintf(p.w, "Rows: %d  Depth: %d\n\n", len(view.Rows), view.Depth)
	if len(view.Rows) == 0 {
		fmt.Fprintln(p.w, "No active structure.")
		return nil
	}

	fmt.Fprintf(p.w, "%-6s %-15s %-15s %-6s %-10s %-12s\n",
		"Level", "Parent", "Component", "Seq", "Qty Per", "Extended")
	fmt.Fprintf(p.w, "%-6s %-15s %-15s %-6s %-10s %-12s\n",
		"------", "---------------", "---------------", "------", "----------", "------------")
	for _, r := range view.Rows {
		fmt.Fprintf(p.w, "%-6s %-15s %-15s %-6d %-10s %-12s\n",
			strings.Repeat(".", r.Level-1)+strconv.Itoa(r.Level),
			r.Parent, r.Component, r.Sequence, r.QtyPer.String(), r.ExtendedQty.String())
	}

	if len(view.Summary) > 0 {
		fmt.Fprintf(p.w, "\nComponent totals per unit:\n")
		fmt.Fprintf(p.w, "%-15s %-12s %-6s\n", "Part Number", "Quantity", "Paths")
		for _, d := range view.Summary {
			fmt.Fprintf(p.w, "%-15s %-12s %-6d\n", d.PartNumber, d.Quantity.String(), d.Occurrences)
		}
	}
	return nil
}

type lineView struct {
	PartNumber   string          `json:"part_number"`
	Kind         string          `json:"kind"`
	QtyPer       decimal.Decimal `json:"qty_per"`
	AutoIssue    bool            `json:"auto_issue"`
	Required     decimal.Decimal `json:"required"`
	Issued       decimal.Decimal `json:"issued"`
	Received     decimal.Decimal `json:"received"`
	StandardCost decimal.Decimal `json:"standard_cost"`
}

type orderView struct {
	ID         int64           `json:"id"`
	TopItem    string          `json:"top_item"`
	Location   string          `json:"location"`
	Quantity   decimal.Decimal `json:"quantity"`
	StartDate  string          `json:"start_date"`
	RequiredBy string          `json:"required_by"`
	Reference  string          `json:"reference,omitempty"`
	Remark     string          `json:"remark,omitempty"`
	Status     string          `json:"status"`
	Lines      []lineView      `json:"lines,omitempty"`
}

func status(order *entities.ProductionOrder) string {
	if order.Closed {
		return "closed"
	}
	return "open"
}

func newOrderView(order *entities.ProductionOrder, withLines bool) orderView {
	view := orderView{
		ID:         order.ID,
		TopItem:    string(order.TopItem),
		Location:   order.Location,
		Quantity:   order.Quantity,
		StartDate:  order.StartDate.Format(time.DateOnly),
		RequiredBy: order.RequiredBy.Format(time.DateOnly),
		Reference:  entities.Deref(order.Reference),
		Remark:     entities.Deref(order.Remark),
		Status:     status(order),
	}
	if withLines {
		for _, l := range order.Lines {
			view.Lines = append(view.Lines, lineView{
				PartNumber:   string(l.PartNumber),
				Kind:         l.Kind.String(),
				QtyPer:       l.QtyPer,
				AutoIssue:    l.AutoIssue,
				Required:     l.Required,
				Issued:       l.Issued,
				Received:     l.Received,
				StandardCost: l.StandardCost,
			})
		}
	}
	return view
}

// Order prints one order with its lines
func (p *Printer) Order(order *entities.ProductionOrder) error {
	view := newOrderView(order, true)

	switch p.format {
	case JSON:
		return p.json(view)
	case CSV:
		records := [][]string{{"order_id", "part_number", "kind", "required", "issued", "received", "standard_cost"}}
		for _, l := range view.Lines {
			records = append(records, []string{
				strconv.FormatInt(view.ID, 10), l.PartNumber, l.Kind,
				l.Required.String(), l.Issued.String(), l.Received.String(), l.StandardCost.String(),
			})
		}
		return p.csv(records)
	}

	fmt.Fprintf(p.w, "Order %d (%s): %s x %s at %s\n",
		view.ID, view.Status, view.TopItem, view.Quantity.String(), view.Location)
	fmt.Fprintf(p.w, "Start: %s  Required by: %s\n", view.StartDate, view.RequiredBy)
	if view.Reference != "" {
		fmt.Fprintf(p.w, "Reference: %s\n", view.Reference)
	}
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "%-15s %-10s %-12s %-12s %-12s %-10s\n",
		"Part Number", "Kind", "Required", "Issued", "Received", "Std Cost")
	fmt.Fprintf(p.w, "%-15s %-10s %-12s %-12s %-12s %-10s\n",
		"---------------", "----------", "------------", "------------", "------------", "----------")
	for _, l := range view.Lines {
		fmt.Fprintf(p.w, "%-15s %-10s %-12s %-12s %-12s %-10s\n",
			l.PartNumber, l.Kind, l.Required.String(), l.Issued.String(), l.Received.String(), l.StandardCost.String())
	}
	return nil
}

// Orders prints a list of order headers
func (p *Printer) Orders(orders []*entities.ProductionOrder) error {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o, false))
	}

	switch p.format {
	case JSON:
		return p.json(views)
	case CSV:
		records := [][]string{{"id", "top_item", "location", "quantity", "start_date", "required_by", "status"}}
		for _, v := range views {
			records = append(records, []string{
				strconv.FormatInt(v.ID, 10), v.TopItem, v.Location, v.Quantity.String(),
				v.StartDate, v.RequiredBy, v.Status,
			})
		}
		return p.csv(records)
	}

	if len(views) == 0 {
		fmt.Fprintln(p.w, "No production orders.")
		return nil
	}
	fmt.Fprintf(p.w, "%-8s %-15s %-10s %-10s %-12s %-12s %-8s\n",
		"Order", "Top Item", "Location", "Quantity", "Start Date", "Required By", "Status")
	fmt.Fprintf(p.w, "%-8s %-15s %-10s %-10s %-12s %-12s %-8s\n",
		"--------", "---------------", "----------", "----------", "------------", "------------", "--------")
	for _, v := range views {
		fmt.Fprintf(p.w, "%-8d %-15s %-10s %-10s %-12s %-12s %-8s\n",
			v.ID, v.TopItem, v.Location, v.Quantity.String(), v.StartDate, v.RequiredBy, v.Status)
	}
	return nil
}

type validationView struct {
	Valid         bool       `json:"valid"`
	CyclePaths    [][]string `json:"cycle_paths,omitempty"`
	OrphanedParts []string   `json:"orphaned_parts,omitempty"`
	Errors        []string   `json:"errors,omitempty"`
}

// Validation prints a structure integrity report
func (p *Printer) Validation(result *services.ValidationResult) error {
	view := validationView{Valid: result.Valid(), Errors: result.Errors}
	for _, path := range result.CyclePaths {
		cycle := make([]string, len(path))
		for i, pn := range path {
			cycle[i] = string(pn)
		}
		view.CyclePaths = append(view.CyclePaths, cycle)
	}
	for _, pn := range result.OrphanedParts {
		view.OrphanedParts = append(view.OrphanedParts, string(pn))
	}

	switch p.format {
	case JSON:
		return p.json(view)
	case CSV:
		records := [][]string{{"error"}}
		for _, e := range view.Errors {
			records = append(records, []string{e})
		}
		return p.csv(records)
	}

	if view.Valid {
		fmt.Fprintln(p.w, "Structure is consistent.")
		return nil
	}
	fmt.Fprintf(p.w, "Structure has %d problem(s):\n", len(view.Errors))
	for _, e := range view.Errors {
		fmt.Fprintf(p.w, "  - %s\n", e)
	}
	return nil
}

// Message prints a one-line confirmation; JSON output wraps it in an object
func (p *Printer) Message(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if p.format == JSON {
		return p.json(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(p.w, msg)
	return err
}

func (p *Printer) json(v interface{}) error {
	encoder := json.NewEncoder(p.w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

func (p *Printer) csv(records [][]string) error {
	writer := csv.NewWriter(p.w)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
