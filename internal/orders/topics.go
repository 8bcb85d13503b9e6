package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicStockReserved      = "order.stock.reserved"
	TopicStockRejected      = "order.stock.rejected"
	TopicStockAlert         = "product.stock.alert"
)

// Partition key = order_id (or product_id for stock alerts) so one entity keeps its order.
func PartitionKey(id string) []byte { return []byte(id) }
