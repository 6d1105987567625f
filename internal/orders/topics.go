package orders

import "strconv"

const (
	TopicOrderCreated       = "cafe.order.created"
	TopicOrderStatusChanged = "cafe.order.status_changed"
	TopicIngredientLowStock = "cafe.ingredient.low_stock"
)

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
