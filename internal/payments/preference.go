package payments

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/orders"
)

var ErrEmptyOrder = errors.New("order has no items")

type OrderLoader interface {
	GetWithItems(ctx context.Context, id string) (orders.Order, error)
	SetPreference(ctx context.Context, orderID, preferenceID, initPoint, sandboxInitPoint string) error
}

type PreferenceAPI interface {
	CreatePreference(ctx context.Context, req PreferenceRequest, idempotencyKey string) (*Preference, error)
}

type PreferenceService struct {
	Orders   OrderLoader
	Provider PreferenceAPI
	SiteURL  string
	Currency string
	Log      *zap.Logger
}

// CheckoutRedirect is what the storefront needs to send the browser to the
// provider's hosted payment page.
type CheckoutRedirect struct {
	OrderID          string
	PreferenceID     string
	InitPoint        string
	SandboxInitPoint string
}

// Create builds a provider preference for a persisted, unpaid order: one line
// per item plus a synthetic shipping line when shipping is charged. The
// preference id and redirect URLs are stored on the order only after the
// provider call succeeds, so a failed call corrupts nothing.
func (s *PreferenceService) Create(ctx context.Context, orderID string) (*CheckoutRedirect, error) {
	o, err := s.Orders.GetWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(o.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	req := PreferenceRequest{
		Items:             make([]PreferenceItem, 0, len(o.Items)+1),
		ExternalReference: o.ID,
		AutoReturn:        "approved",
		NotificationURL:   s.siteURL() + "/api/payments/webhook",
		BackURLs: BackURLs{
			Success: s.siteURL() + "/checkout/success?order=" + o.ID,
			Pending: s.siteURL() + "/checkout/pending?order=" + o.ID,
			Failure: s.siteURL() + "/checkout/failure?order=" + o.ID,
		},
	}
	req.Payer.Name = o.Customer.FullName
	req.Payer.Email = o.Customer.Email
	req.Payer.Phone.Number = o.Customer.Phone

	for _, it := range o.Items {
		title := it.Name
		if it.Model != "" {
			title += " " + it.Model
		}
		req.Items = append(req.Items, PreferenceItem{
			ID:         it.ProductID,
			Title:      title,
			Quantity:   it.Quantity,
			UnitPrice:  centsToUnits(it.UnitPriceCents),
			CurrencyID: s.Currency,
		})
	}
	if o.ShippingCents > 0 {
		req.Items = append(req.Items, PreferenceItem{
			Title:      "Shipping",
			Quantity:   1,
			UnitPrice:  centsToUnits(o.ShippingCents),
			CurrencyID: s.Currency,
		})
	}

	// Stable key: retries of this call for the same order cannot create a
	// second preference.
	pref, err := s.Provider.CreatePreference(ctx, req, o.ID)
	if err != nil {
		return nil, err
	}

	if err := s.Orders.SetPreference(ctx, o.ID, pref.ID, pref.InitPoint, pref.SandboxInitPoint); err != nil {
		return nil, err
	}

	s.Log.Info("preference created",
		zap.String("order_id", o.ID),
		zap.String("preference_id", pref.ID))

	return &CheckoutRedirect{
		OrderID:          o.ID,
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
	}, nil
}

func (s *PreferenceService) siteURL() string {
	return strings.TrimRight(s.SiteURL, "/")
}

func centsToUnits(cents int64) float64 {
	return float64(cents) / 100
}
