package orders

import "github.com/angelmondragon/grocer-backend/pkg/enums"

// transitions lists every allowed status change. Anything absent is rejected.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:      {enums.OrderStatusPacked, enums.OrderStatusCancelled},
	enums.OrderStatusPacked:         {enums.OrderStatusOutForDelivery},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered},
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status can still be cancelled.
func Cancellable(status enums.OrderStatus) bool {
	return CanTransition(status, enums.OrderStatusCancelled)
}

var defaultMessages = map[enums.OrderStatus]string{
	enums.OrderStatusPending:        "Order placed",
	enums.OrderStatusConfirmed:      "Order confirmed",
	enums.OrderStatusPreparing:      "Order is being prepared",
	enums.OrderStatusPacked:         "Order packed",
	enums.OrderStatusOutForDelivery: "Order is out for delivery",
	enums.OrderStatusDelivered:      "Order delivered",
	enums.OrderStatusCancelled:      "Order cancelled",
}

// DefaultMessage is the tracking message used when the caller supplies none.
func DefaultMessage(status enums.OrderStatus) string {
	if msg, ok := defaultMessages[status]; ok {
		return msg
	}
	return string(status)
}
