package enums

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusPacked         OrderStatus = "packed"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var orderStatuses = set[OrderStatus]{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusPacked,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

// IsTerminal reports whether no further transitions leave this status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	return orderStatuses.parse(raw, "order status")
}

// PaymentMethod is recorded on the order as a tag only; no payment is captured.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodUPI            PaymentMethod = "upi"
	PaymentMethodWallet         PaymentMethod = "wallet"
)

var paymentMethods = set[PaymentMethod]{
	PaymentMethodCashOnDelivery,
	PaymentMethodCard,
	PaymentMethodUPI,
	PaymentMethodWallet,
}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	return paymentMethods.parse(raw, "payment method")
}

// DiscountType maps to the discount_type enum used by offers.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

var discountTypes = set[DiscountType]{DiscountTypePercentage, DiscountTypeFixed}

func (d DiscountType) IsValid() bool { return discountTypes.has(d) }
