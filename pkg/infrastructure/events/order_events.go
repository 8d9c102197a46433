package events

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

const (
	OrderCreatedEvent         = "order.created"
	MaterialsIssuedEvent      = "order.materials_issued"
	GoodsReceivedEvent        = "order.goods_received"
	StructureEdgeCreatedEvent = "structure.edge_created"
)

type OrderCreated struct {
	Order entities.ProductionOrder `json:"order"`
}

type MaterialsIssued struct {
	OrderID   int64                                   `json:"order_id"`
	Location  string                                  `json:"location"`
	Reference string                                  `json:"reference"`
	Issued    map[entities.PartNumber]decimal.Decimal `json:"issued"`
}

type GoodsReceived struct {
	OrderID  int64               `json:"order_id"`
	TopItem  entities.PartNumber `json:"top_item"`
	Location string              `json:"location"`
	Quantity decimal.Decimal     `json:"quantity"`
	Received decimal.Decimal     `json:"received"`
	Closed   bool                `json:"closed"`
}

type StructureEdgeCreated struct {
	Edge entities.StructureEdge `json:"edge"`
}

func orderStream(id int64) string {
	return "order-" + strconv.FormatInt(id, 10)
}

func NewOrderCreatedEvent(order entities.ProductionOrder) Event {
	return NewEvent(OrderCreatedEvent, orderStream(order.ID), OrderCreated{Order: order})
}

func NewMaterialsIssuedEvent(
	order entities.ProductionOrder,
	location string,
	issued map[entities.PartNumber]decimal.Decimal,
) Event {
	snapshot := make(map[entities.PartNumber]decimal.Decimal, len(issued))
	for pn, qty := range issued {
		snapshot[pn] = qty
	}
	return NewEvent(MaterialsIssuedEvent, orderStream(order.ID), MaterialsIssued{
		OrderID:   order.ID,
		Location:  location,
		Reference: order.LedgerTag(),
		Issued:    snapshot,
	})
}

func NewGoodsReceivedEvent(order entities.ProductionOrder, location string, quantity decimal.Decimal) Event {
	received := decimal.Zero
	if line, ok := order.TrackingLine(); ok {
		received = line.Received
	}
	return NewEvent(GoodsReceivedEvent, orderStream(order.ID), GoodsReceived{
		OrderID:  order.ID,
		TopItem:  order.TopItem,
		Location: location,
		Quantity: quantity,
		Received: received,
		Closed:   order.Closed,
	})
}

func NewStructureEdgeCreatedEvent(edge entities.StructureEdge) Event {
	return NewEvent(StructureEdgeCreatedEvent, "structure-"+string(edge.Parent), StructureEdgeCreated{Edge: edge})
}
