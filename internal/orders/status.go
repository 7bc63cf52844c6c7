package orders

type PaymentMethod string

const (
	PaymentProviderCheckout PaymentMethod = "provider-checkout"
	PaymentBankTransfer     PaymentMethod = "bank-transfer"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PaymentProviderCheckout || m == PaymentBankTransfer
}

type DeliveryMethod string

const (
	DeliveryPickup DeliveryMethod = "pickup"
	DeliveryShip   DeliveryMethod = "delivery"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusReady      OrderStatus = "ready"
	StatusShipped    OrderStatus = "shipped"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusReady: true, StatusShipped: true, StatusCancelled: true},
	StatusReady:      {StatusShipped: true, StatusCompleted: true, StatusCancelled: true},
	StatusShipped:    {StatusCompleted: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// MapProviderStatus translates the payment provider's payment status into the
// internal (payment_status, order_status) pair. Anything unrecognized stays
// pending, so a later delivery with a final status can still land.
func MapProviderStatus(provider string) (PaymentStatus, OrderStatus) {
	switch provider {
	case "approved":
		return PaymentCompleted, StatusProcessing
	case "rejected", "cancelled":
		return PaymentFailed, StatusCancelled
	case "refunded", "charged_back":
		return PaymentRefunded, StatusCancelled
	default:
		return PaymentPending, StatusPending
	}
}
