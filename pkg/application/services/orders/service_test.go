package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/metrics"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/memory"
	testhelpers "github.com/vsinha/shopfloor/pkg/infrastructure/testing"
)

var (
	startDate = testhelpers.Day(2025, 3, 1)
	fixedNow  = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store     *memory.Store
	events    *events.InMemoryEventStore
	collector *metrics.Collector
	logs      *observer.ObservedLogs
	service   *Service
}

func newFixture(t *testing.T, store *memory.Store, opts ...Option) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	eventStore := events.NewInMemoryEventStore(nil)
	collector := metrics.NewCollector("test")

	opts = append([]Option{
		WithLogger(zap.New(core)),
		WithPublisher(eventStore),
		WithMetrics(collector),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	return &fixture{
		store:     store,
		events:    eventStore,
		collector: collector,
		logs:      logs,
		service:   NewService(store, store, opts...),
	}
}

func (f *fixture) create(t *testing.T, top string, quantity string) *entities.ProductionOrder {
	t.Helper()
	order, err := f.service.Create(context.Background(), CreateOrderRequest{
		TopItem:   entities.PartNumber(top),
		Location:  "MAIN",
		Quantity:  dec(quantity),
		StartDate: startDate,
	})
	require.NoError(t, err)
	return order
}

func requireLine(t *testing.T, order *entities.ProductionOrder, part string) entities.OrderLine {
	t.Helper()
	line, ok := order.Line(entities.PartNumber(part))
	require.True(t, ok, "order %d has no line for %s", order.ID, part)
	return *line
}

func TestCreate_PlansComponentAndOutputLines(t *testing.T) {
	f := newFixture(t, testhelpers.BuildFG1Store())

	order := f.create(t, "FG1", "100")

	assert.Equal(t, int64(1), order.ID)
	assert.False(t, order.Closed)
	assert.Equal(t, startDate, order.StartDate)
	assert.Equal(t, startDate, order.RequiredBy)
	require.Len(t, order.Lines, 3)

	a := requireLine(t, order, "A")
	assert.Equal(t, entities.ComponentLine, a.Kind)
	assert.True(t, dec("200").Equal(a.Required), "A required %s", a.Required)
	assert.True(t, dec("1.25").Equal(a.StandardCost))

	b := requireLine(t, order, "B")
	assert.True(t, dec("150").Equal(b.Required), "B required %s", b.Required)

	output, ok := order.TrackingLine()
	require.True(t, ok)
	assert.Equal(t, entities.OutputLine, output.Kind)
	assert.True(t, dec("100").Equal(output.Required))
	assert.True(t, output.Received.IsZero())

	stored, err := f.service.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Lines, stored.Lines)

	created := f.events.EventsOfType(events.OrderCreatedEvent)
	require.Len(t, created, 1)
	assert.Equal(t, "order-1", created[0].StreamID())
	assert.Equal(t, 1, f.logs.FilterMessage("production order created").Len())
}

func TestCreate_DefaultsStartDateToToday(t *testing.T) {
	f := newFixture(t, testhelpers.BuildFG1Store())

	order, err := f.service.Create(context.Background(), CreateOrderRequest{
		TopItem:  "FG1",
		Location: "MAIN",
		Quantity: dec("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, testhelpers.Day(2025, 3, 1), order.StartDate)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  CreateOrderRequest
		want error
	}{
		{
			name: "purchased item",
			req:  CreateOrderRequest{TopItem: "A", Location: "MAIN", Quantity: dec("1"), StartDate: startDate},
			want: entities.ErrItemNotManufactured,
		},
		{
			name: "unknown item",
			req:  CreateOrderRequest{TopItem: "NOPE", Location: "MAIN", Quantity: dec("1"), StartDate: startDate},
			want: entities.ErrItemNotFound,
		},
		{
			name: "zero quantity",
			req:  CreateOrderRequest{TopItem: "FG1", Location: "MAIN", Quantity: decimal.Zero, StartDate: startDate},
			want: entities.ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testhelpers.BuildFG1Store())

			_, err := f.service.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)

			orders, err := f.service.ListOrders(context.Background(), entities.OrderFilter{})
			require.NoError(t, err)
			assert.Empty(t, orders, "a rejected order must not be written")
			assert.Empty(t, f.events.EventsOfType(events.OrderCreatedEvent))
			count, err := testutil.GatherAndCount(f.collector.Registry(), "test_orders_operations_total")
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestCreate_MissingLocation(t *testing.T) {
	f := newFixture(t, testhelpers.BuildFG1Store())

	_, err := f.service.Create(context.Background(), CreateOrderRequest{
		TopItem:   "FG1",
		Quantity:  dec("1"),
		StartDate: startDate,
	})
	assert.ErrorContains(t, err, "location cannot be empty")
}

func TestCreate_ConcurrentOrdersGetDistinctIDs(t *testing.T) {
	f := newFixture(t, testhelpers.BuildFG1Store())

	const n = 25
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.service.Create(context.Background(), CreateOrderRequest{
				TopItem: "FG1", Location: "MAIN", Quantity: dec("1"), StartDate: startDate,
			})
			if assert.NoError(t, err) {
				ids <- order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "order id %d allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestOrderLifecycle_WorkedExample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testhelpers.BuildFG1Store())
	order := f.create(t, "FG1", "100")

	issued, err := f.service.IssueMaterials(ctx, order.ID, map[entities.PartNumber]decimal.Decimal{
		"A": dec("200"),
		"B": dec("150"),
	}, "MAIN")
	require.NoError(t, err)
	assert.True(t, dec("200").Equal(requireLine(t, issued, "A").Issued))
	assert.True(t, dec("150").Equal(requireLine(t, issued, "B").Issued))

	movements, err := f.store.MovementsFor(ctx, "WO-1")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, entities.PartNumber("A"), movements[0].PartNumber)
	assert.True(t, dec("-200").Equal(movements[0].Quantity))
	assert.Equal(t, entities.PartNumber("B"), movements[1].PartNumber)
	assert.True(t, dec("-150").Equal(movements[1].Quantity))
	assert.Equal(t, fixedNow, movements[0].PostedAt)

	received, err := f.service.ReceiveFinishedGoods(ctx, order.ID, dec("100"), "MAIN")
	require.NoError(t, err)
	assert.True(t, received.Closed)
	output, _ := received.TrackingLine()
	assert.True(t, dec("100").Equal(output.Received))

	movements, err = f.store.MovementsFor(ctx, "WO-1")
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, entities.PartNumber("FG1"), movements[2].PartNumber)
	assert.True(t, dec("100").Equal(movements[2].Quantity))

	stored, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed)

	issuedEvents := f.events.EventsOfType(events.MaterialsIssuedEvent)
	require.Len(t, issuedEvents, 1)
	payload := issuedEvents[0].Data().(events.MaterialsIssued)
	assert.Len(t, payload.Issued, 2)
	assert.Equal(t, "WO-1", payload.Reference)

	receivedEvents := f.events.EventsOfType(events.GoodsReceivedEvent)
	require.Len(t, receivedEvents, 1)
	assert.True(t, receivedEvents[0].Data().(events.GoodsReceived).Closed)

	closedSeries, err := testutil.GatherAndCount(f.collector.Registry(), "test_orders_closed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, closedSeries)
}

func TestReceiveFinishedGoods_PartialThenComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testhelpers.BuildFG1Store())
	order := f.create(t, "FG1", "10")

	partial, err := f.service.ReceiveFinishedGoods(ctx, order.ID, dec("4"), "")
	require.NoError(t, err)
	assert.False(t, partial.Closed, "component lines do not hold receipts")

	done, err := f.service.ReceiveFinishedGoods(ctx, order.ID, dec("6"), "")
	require.NoError(t, err)
	assert.True(t, done.Closed)

	movements, err := f.store.MovementsFor(ctx, order.LedgerTag())
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, "MAIN", movements[0].Location, "empty location falls back to the order's")
}

func TestClosedOrderRejectsFurtherChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testhelpers.BuildFG1Store())
	order := f.create(t, "FG1", "5")

	_, err := f.service.ReceiveFinishedGoods(ctx, order.ID, dec("5"), "MAIN")
	require.NoError(t, err)

	_, err = f.service.ReceiveFinishedGoods(ctx, order.ID, dec("1"), "MAIN")
	assert.ErrorIs(t, err, entities.ErrOrderClosed)

	_, err = f.service.IssueMaterials(ctx, order.ID, map[entities.PartNumber]decimal.Decimal{"A": dec("1")}, "MAIN")
	assert.ErrorIs(t, err, entities.ErrOrderClosed)

	stored, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	output, _ := stored.TrackingLine()
	assert.True(t, dec("5").Equal(output.Received), "a rejected receipt leaves the order untouched")
	assert.Len(t, f.events.EventsOfType(events.GoodsReceivedEvent), 1)
}

func TestUnknownOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testhelpers.BuildFG1Store())

	_, err := f.service.IssueMaterials(ctx, 42, map[entities.PartNumber]decimal.Decimal{"A": dec("1")}, "MAIN")
	assert.ErrorIs(t, err, entities.ErrOrderNotFound)

	_, err = f.service.ReceiveFinishedGoods(ctx, 42, dec("1"), "MAIN")
	assert.ErrorIs(t, err, entities.ErrOrderNotFound)

	_, err = f.service.GetOrder(ctx, 42)
	assert.ErrorIs(t, err, entities.ErrOrderNotFound)
}

func TestIssueMaterials_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := testhelpers.BuildKitStore()
	f := newFixture(t, store)
	order := f.create(t, "KIT", "10")

	ledgerDown := errors.New("ledger unavailable")
	var attempts []entities.PartNumber
	store.SetMovementHook(func(m entities.StockMovement) error {
		attempts = append(attempts, m.PartNumber)
		if m.PartNumber == "C3" {
			return ledgerDown
		}
		return nil
	})

	_, err := f.service.IssueMaterials(ctx, order.ID, map[entities.PartNumber]decimal.Decimal{
		"C4": dec("40"),
		"C2": dec("20"),
		"C1": dec("10"),
		"C3": dec("30"),
	}, "MAIN")
	require.ErrorIs(t, err, ledgerDown)
	assert.Equal(t, []entities.PartNumber{"C1", "C2", "C3"}, attempts, "issues are applied in part number order")

	stored, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	for _, line := range stored.ComponentLines() {
		assert.True(t, line.Issued.IsZero(), "%s issued %s after rollback", line.PartNumber, line.Issued)
	}
	movements, err := store.MovementsFor(ctx, order.LedgerTag())
	require.NoError(t, err)
	assert.Empty(t, movements)
	assert.Empty(t, f.events.EventsOfType(events.MaterialsIssuedEvent))

	store.SetMovementHook(nil)
	issued, err := f.service.IssueMaterials(ctx, order.ID, map[entities.PartNumber]decimal.Decimal{
		"C1": dec("10"),
		"C3": dec("30"),
	}, "MAIN")
	require.NoError(t, err)
	assert.True(t, dec("30").Equal(requireLine(t, issued, "C3").Issued))
	assert.True(t, requireLine(t, issued, "C2").Issued.IsZero())
}

func TestIssueMaterials_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testhelpers.BuildFG1Store())
	order := f.create(t, "FG1", "10")

	tests := []struct {
		name   string
		issues map[entities.PartNumber]decimal.Decimal
		want   error
	}{
		{"empty batch", map[entities.PartNumber]decimal.Decimal{}, entities.ErrInvalidQuantity},
		{"negative quantity", map[entities.PartNumber]decimal.Decimal{"A": dec("-1")}, entities.ErrInvalidQuantity},
		{"part without a line", map[entities.PartNumber]decimal.Decimal{"A": dec("1"), "RAW": dec("1")}, entities.ErrOrderLineNotFound},
		{"finished item itself", map[entities.PartNumber]decimal.Decimal{"FG1": dec("1")}, entities.ErrOrderLineNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.IssueMaterials(ctx, order.ID, tt.issues, "MAIN")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	stored, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, requireLine(t, stored, "A").Issued.IsZero())
}

func TestIssueMaterials_AccumulatesAcrossCalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testhelpers.BuildFG1Store())
	order := f.create(t, "FG1", "10")

	for i := 0; i < 3; i++ {
		_, err := f.service.IssueMaterials(ctx, order.ID, map[entities.PartNumber]decimal.Decimal{"A": dec("2.5")}, "MAIN")
		require.NoError(t, err)
	}

	stored, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, dec("7.5").Equal(requireLine(t, stored, "A").Issued))
	assert.False(t, stored.Closed, "issuing never closes an order")
}

func TestReceiveFinishedGoods_Backflush(t *testing.T) {
	ctx := context.Background()
	store := testhelpers.BuildKitStore()
	autoIssued, err := entities.NewStructureEdge("KIT", "C2", dec("2"), 20,
		entities.EffectiveWindow{From: testhelpers.EffectiveFrom}, nil, true, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveEdge(ctx, autoIssued))

	tests := []struct {
		name      string
		backflush bool
		c2Issued  string
		movements int
	}{
		{"disabled", false, "0", 1},
		{"enabled", true, "6", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, store, WithBackflush(tt.backflush))
			order := f.create(t, "KIT", "5")

			received, err := f.service.ReceiveFinishedGoods(ctx, order.ID, dec("3"), "MAIN")
			require.NoError(t, err)
			assert.True(t, dec(tt.c2Issued).Equal(requireLine(t, received, "C2").Issued))
			assert.True(t, requireLine(t, received, "C1").Issued.IsZero())

			movements, err := store.MovementsFor(ctx, order.LedgerTag())
			require.NoError(t, err)
			assert.Len(t, movements, tt.movements)
		})
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error {
	return errors.New("broker unreachable")
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, testhelpers.BuildFG1Store(), WithPublisher(failingPublisher{}))

	order := f.create(t, "FG1", "1")
	assert.Equal(t, int64(1), order.ID)

	warnings := f.logs.FilterMessage("failed to publish event").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, events.OrderCreatedEvent, warnings[0].ContextMap()["event_type"])
}

func TestListOrders_Filters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testhelpers.BuildFG1Store())
	first := f.create(t, "FG1", "1")
	f.create(t, "FG1", "2")

	_, err := f.service.ReceiveFinishedGoods(ctx, first.ID, dec("1"), "MAIN")
	require.NoError(t, err)

	open, err := f.service.ListOrders(ctx, entities.OrderFilter{Status: entities.OpenOrders})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(2), open[0].ID)

	closed, err := f.service.ListOrders(ctx, entities.OrderFilter{Status: entities.ClosedOrders, Location: "MAIN"})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, first.ID, closed[0].ID)
}
