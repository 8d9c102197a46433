package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/application/services/orders"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

func (a *App) runCreate(ctx context.Context, env *environment, args []string) error {
	fs, format := a.flagSet("create")
	item := fs.String("item", "", "Part number to manufacture")
	qty := fs.String("qty", "", "Quantity to produce")
	location := fs.String("location", "", "Location the order is built at")
	start := fs.String("start", "", "Start date YYYY-MM-DD (default today)")
	requiredBy := fs.String("required-by", "", "Required-by date YYYY-MM-DD (default start date)")
	reference := fs.String("reference", "", "Customer or sales reference")
	remark := fs.String("remark", "", "Free text remark")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	for _, f := range []struct{ name, value string }{{"item", *item}, {"qty", *qty}, {"location", *location}} {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}
	quantity, err := parseQuantity(*qty)
	if err != nil {
		return err
	}
	startDate, err := parseDateOr(*start, time.Now())
	if err != nil {
		return err
	}
	var due time.Time
	if *requiredBy != "" {
		if due, err = parseDateOr(*requiredBy, startDate); err != nil {
			return err
		}
	}
	printer, err := a.printer(*format)
	if err != nil {
		return err
	}

	order, err := env.orders.Create(ctx, orders.CreateOrderRequest{
		TopItem:    entities.PartNumber(*item),
		Location:   *location,
		Quantity:   quantity,
		StartDate:  startDate,
		RequiredBy: due,
		Reference:  entities.Optional(*reference),
		Remark:     entities.Optional(*remark),
	})
	if err != nil {
		return err
	}
	return printer.Order(order)
}

func (a *App) runIssue(ctx context.Context, env *environment, args []string) error {
	fs, format := a.flagSet("issue")
	orderID := fs.Int64("order", 0, "Order id")
	location := fs.String("location", "", "Location issued from (default the order's)")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if *orderID <= 0 {
		return fmt.Errorf("%w: -order is required", ErrUsage)
	}
	issues, err := parseIssues(fs.Args())
	if err != nil {
		return err
	}
	printer, err := a.printer(*format)
	if err != nil {
		return err
	}

	order, err := env.orders.IssueMaterials(ctx, *orderID, issues, *location)
	if err != nil {
		return err
	}
	return printer.Order(order)
}

func (a *App) runReceive(ctx context.Context, env *environment, args []string) error {
	fs, format := a.flagSet("receive")
	orderID := fs.Int64("order", 0, "Order id")
	qty := fs.String("qty", "", "Quantity received")
	location := fs.String("location", "", "Location received into (default the order's)")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if *orderID <= 0 {
		return fmt.Errorf("%w: -order is required", ErrUsage)
	}
	if err := required("qty", *qty); err != nil {
		return err
	}
	quantity, err := parseQuantity(*qty)
	if err != nil {
		return err
	}
	printer, err := a.printer(*format)
	if err != nil {
		return err
	}

	order, err := env.orders.ReceiveFinishedGoods(ctx, *orderID, quantity, *location)
	if err != nil {
		return err
	}
	return printer.Order(order)
}

func (a *App) runShow(ctx context.Context, env *environment, args []string) error {
	fs, format := a.flagSet("show")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: show takes exactly one order id", ErrUsage)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid order id %q", ErrUsage, fs.Arg(0))
	}
	printer, err := a.printer(*format)
	if err != nil {
		return err
	}

	order, err := env.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	return printer.Order(order)
}

func (a *App) runList(ctx context.Context, env *environment, args []string) error {
	fs, format := a.flagSet("list")
	location := fs.String("location", "", "Only orders at this location")
	item := fs.String("item", "", "Only orders for this part number")
	status := fs.String("status", "all", "open, closed or all")
	dueBy := fs.String("due-by", "", "Only orders required on or before YYYY-MM-DD")
	if err := parseArgs(fs, args); err != nil {
		return err
	}

	filter := entities.OrderFilter{Location: *location, TopItem: entities.PartNumber(*item)}
	switch strings.ToLower(*status) {
	case "all", "":
		filter.Status = entities.AnyStatus
	case "open":
		filter.Status = entities.OpenOrders
	case "closed":
		filter.Status = entities.ClosedOrders
	default:
		return fmt.Errorf("%w: -status must be open, closed or all", ErrUsage)
	}
	if *dueBy != "" {
		date, err := parseDateOr(*dueBy, time.Time{})
		if err != nil {
			return err
		}
		filter.RequiredByOnOrBefore = &date
	}
	printer, err := a.printer(*format)
	if err != nil {
		return err
	}

	list, err := env.orders.ListOrders(ctx, filter)
	if err != nil {
		return err
	}
	return printer.Orders(list)
}

func parseQuantity(value string) (decimal.Decimal, error) {
	qty, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid quantity %q", ErrUsage, value)
	}
	return qty, nil
}

// parseIssues reads PART=QTY arguments; a part named twice is rejected
func parseIssues(args []string) (map[entities.PartNumber]decimal.Decimal, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one PART=QTY pair is required", ErrUsage)
	}
	issues := make(map[entities.PartNumber]decimal.Decimal, len(args))
	for _, arg := range args {
		part, qty, ok := strings.Cut(arg, "=")
		if !ok || part == "" {
			return nil, fmt.Errorf("%w: expected PART=QTY, got %q", ErrUsage, arg)
		}
		pn := entities.PartNumber(part)
		if _, dup := issues[pn]; dup {
			return nil, fmt.Errorf("%w: %s listed more than once", ErrUsage, part)
		}
		quantity, err := parseQuantity(qty)
		if err != nil {
			return nil, err
		}
		issues[pn] = quantity
	}
	return issues, nil
}
