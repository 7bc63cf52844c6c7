package orders

import "time"

type CustomerInfo struct {
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Department string `json:"department,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type Order struct {
	ID        string       `json:"id"`
	Reference string       `json:"reference"` // customer-facing order number
	Customer  CustomerInfo `json:"customer"`

	SubtotalCents int64 `json:"subtotalCents"`
	ShippingCents int64 `json:"shippingCents"`
	TotalCents    int64 `json:"totalCents"`

	PaymentMethod  PaymentMethod  `json:"paymentMethod"`
	DeliveryMethod DeliveryMethod `json:"deliveryMethod"`
	PaymentStatus  PaymentStatus  `json:"paymentStatus"`
	OrderStatus    OrderStatus    `json:"orderStatus"`

	// Provider-side identifiers, filled in as the payment flow advances.
	PreferenceID      string `json:"preferenceId,omitempty"`
	InitPoint         string `json:"initPoint,omitempty"`
	SandboxInitPoint  string `json:"sandboxInitPoint,omitempty"`
	ProviderPaymentID string `json:"providerPaymentId,omitempty"`
	ProviderStatus    string `json:"providerStatus,omitempty"`

	TrackingNumber string    `json:"trackingNumber,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Items []Item `json:"items,omitempty"`
}

// Item is a point-in-time snapshot of the product at order time. It never
// changes after creation, regardless of later catalog edits.
type Item struct {
	OrderID        string `json:"orderId"`
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	Model          string `json:"model,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
}

func (it Item) LineTotalCents() int64 {
	return it.UnitPriceCents * int64(it.Quantity)
}
