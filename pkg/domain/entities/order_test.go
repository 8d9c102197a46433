package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionOrder_Validation(t *testing.T) {
	startDate := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	requiredBy := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	order, err := NewProductionOrder("FG1", "FACTORY", decimal.NewFromInt(5), startDate, requiredBy, Optional("SO-77"), nil)
	require.NoError(t, err)
	assert.True(t, order.Quantity.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, day(2025, 1, 1), order.StartDate)
	assert.False(t, order.Closed)

	defaulted, err := NewProductionOrder("FG1", "FACTORY", decimal.NewFromInt(1), startDate, time.Time{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, defaulted.StartDate, defaulted.RequiredBy)

	testCases := []struct {
		name        string
		topItem     PartNumber
		location    string
		quantity    decimal.Decimal
		startDate   time.Time
		requiredBy  time.Time
		expectError string
	}{
		{"empty part number", "", "FACTORY", decimal.NewFromInt(5), startDate, requiredBy, "part number cannot be empty"},
		{"empty location", "FG1", "", decimal.NewFromInt(5), startDate, requiredBy, "location cannot be empty"},
		{"zero quantity", "FG1", "FACTORY", decimal.Zero, startDate, requiredBy, "quantity must be positive, got 0"},
		{"negative quantity", "FG1", "FACTORY", decimal.NewFromInt(-1), startDate, requiredBy, "quantity must be positive, got -1"},
		{
			"start after required",
			"FG1",
			"FACTORY",
			decimal.NewFromInt(5),
			requiredBy,
			startDate,
			"start date 2025-01-10 cannot be after required-by date 2025-01-01",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProductionOrder(tc.topItem, tc.location, tc.quantity, tc.startDate, tc.requiredBy, nil, nil)
			require.Error(t, err)
			assert.Equal(t, tc.expectError, err.Error())
		})
	}
}

func TestOrderLine_Derived(t *testing.T) {
	line := OrderLine{Required: decimal.NewFromInt(100), Received: decimal.NewFromInt(40)}
	assert.True(t, line.Outstanding().Equal(decimal.NewFromInt(60)))
	assert.False(t, line.Complete())

	line.Received = decimal.NewFromInt(100)
	assert.True(t, line.Complete())

	line.Received = decimal.NewFromInt(120)
	assert.True(t, line.Complete())
	assert.True(t, line.Outstanding().Equal(decimal.NewFromInt(-20)))
}

func TestProductionOrder_IsComplete(t *testing.T) {
	order := &ProductionOrder{
		ID:      7,
		TopItem: "FG1",
		Lines: []OrderLine{
			{PartNumber: "A", Kind: ComponentLine, Required: decimal.NewFromInt(200)},
			{PartNumber: "B", Kind: ComponentLine, Required: decimal.NewFromInt(150)},
		},
	}
	assert.False(t, order.IsComplete(), "an order without a tracking line is never complete")

	order.Lines = append(order.Lines, OrderLine{PartNumber: "FG1", Kind: OutputLine, Required: decimal.NewFromInt(100)})
	assert.False(t, order.IsComplete())

	tracking, ok := order.TrackingLine()
	require.True(t, ok)
	tracking.Received = decimal.NewFromInt(99)
	assert.False(t, order.IsComplete())

	tracking.Received = decimal.NewFromInt(100)
	assert.True(t, order.IsComplete())
	assert.Len(t, order.ComponentLines(), 2)
	assert.Equal(t, "WO-7", order.LedgerTag())
}

func TestProductionOrder_UnreceivedComponentsDoNotHoldOrderOpen(t *testing.T) {
	order := &ProductionOrder{
		ID:      8,
		TopItem: "FG1",
		Lines: []OrderLine{
			{PartNumber: "A", Kind: ComponentLine, Required: decimal.NewFromInt(200), Issued: decimal.NewFromInt(50)},
			{PartNumber: "FG1", Kind: OutputLine, Required: decimal.NewFromInt(100), Received: decimal.NewFromInt(100)},
		},
	}

	line, _ := order.Line("A")
	assert.False(t, line.Complete())
	assert.True(t, order.IsComplete())
}

func TestProductionOrder_CloneIsIndependent(t *testing.T) {
	order := &ProductionOrder{TopItem: "FG1", Lines: []OrderLine{{PartNumber: "A", Issued: decimal.Zero}}}

	c := order.Clone()
	c.Lines[0].Issued = decimal.NewFromInt(5)

	assert.True(t, order.Lines[0].Issued.IsZero())
}

func TestOrderFilter_Matches(t *testing.T) {
	ceiling := day(2025, 3, 1)
	open := &ProductionOrder{TopItem: "FG1", Location: "MAIN", RequiredBy: day(2025, 2, 1)}
	closed := &ProductionOrder{TopItem: "FG2", Location: "EAST", RequiredBy: day(2025, 4, 1), Closed: true}

	tests := []struct {
		name   string
		filter OrderFilter
		open   bool
		closed bool
	}{
		{"empty filter", OrderFilter{}, true, true},
		{"location", OrderFilter{Location: "MAIN"}, true, false},
		{"top item", OrderFilter{TopItem: "FG2"}, false, true},
		{"open only", OrderFilter{Status: OpenOrders}, true, false},
		{"closed only", OrderFilter{Status: ClosedOrders}, false, true},
		{"required by ceiling", OrderFilter{RequiredByOnOrBefore: &ceiling}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, tt.filter.Matches(open))
			assert.Equal(t, tt.closed, tt.filter.Matches(closed))
		})
	}
}
