package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, reference, email, full_name, phone, address, city, department, postal_code,
	subtotal_cents, shipping_cents, total_cents, payment_method, delivery_method,
	payment_status, order_status, preference_id, init_point, sandbox_init_point,
	provider_payment_id, provider_status, tracking_number, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.Reference, &o.Customer.Email, &o.Customer.FullName, &o.Customer.Phone,
		&o.Customer.Address, &o.Customer.City, &o.Customer.Department, &o.Customer.PostalCode,
		&o.SubtotalCents, &o.ShippingCents, &o.TotalCents, &o.PaymentMethod, &o.DeliveryMethod,
		&o.PaymentStatus, &o.OrderStatus, &o.PreferenceID, &o.InitPoint, &o.SandboxInitPoint,
		&o.ProviderPaymentID, &o.ProviderStatus, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateWithItems persists the order and its line items in one transaction,
// so a failure on either side leaves nothing behind. A reference collision
// aborts the transaction, so the whole write is retried with a fresh
// reference, a few attempts at most.
func (r *Repo) CreateWithItems(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Reference == "" {
		o.Reference = NewReference()
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentPending
	}
	if o.OrderStatus == "" {
		o.OrderStatus = StatusPending
	}

	for attempt := 0; ; attempt++ {
		err := r.createTx(ctx, o)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) && attempt < 3 {
			o.Reference = NewReference()
			continue
		}
		return err
	}
}

func (r *Repo) createTx(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, reference, email, full_name, phone, address, city, department, postal_code,
			subtotal_cents, shipping_cents, total_cents, payment_method, delivery_method,
			payment_status, order_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.Reference, o.Customer.Email, o.Customer.FullName, o.Customer.Phone,
		o.Customer.Address, o.Customer.City, o.Customer.Department, o.Customer.PostalCode,
		o.SubtotalCents, o.ShippingCents, o.TotalCents, o.PaymentMethod, o.DeliveryMethod,
		o.PaymentStatus, o.OrderStatus)
	if err != nil {
		return err
	}

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		it := o.Items[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, model, image_url, unit_price_cents, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.OrderID, it.ProductID, it.Name, it.Model, it.ImageURL, it.UnitPriceCents, it.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) GetByID(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) GetWithItems(ctx context.Context, id string) (Order, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, name, model, image_url, unit_price_cents, quantity
		FROM order_items WHERE order_id=$1`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Name, &it.Model, &it.ImageURL, &it.UnitPriceCents, &it.Quantity); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// SetPreference records the provider's preference id and redirect URLs after
// a successful preference creation.
func (r *Repo) SetPreference(ctx context.Context, orderID, preferenceID, initPoint, sandboxInitPoint string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET preference_id=$2, init_point=$3, sandbox_init_point=$4, updated_at=now()
		WHERE id=$1`, orderID, preferenceID, initPoint, sandboxInitPoint)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompletePayment is the idempotency gate for reconciliation: a conditional
// update that only one delivery can win. Returns won=false when the order was
// already completed by an earlier delivery.
func (r *Repo) CompletePayment(ctx context.Context, orderID, providerPaymentID, providerStatus string) (won bool, err error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET payment_status=$2, order_status=$3, provider_payment_id=$4, provider_status=$5, updated_at=now()
		WHERE id=$1 AND payment_status <> $2`,
		orderID, PaymentCompleted, StatusProcessing, providerPaymentID, providerStatus)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}
	// Lost the gate or no such order; tell them apart.
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, orderID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// UpdatePaymentState applies a non-completed provider status. A completed
// order is never downgraded by a late or out-of-order delivery.
func (r *Repo) UpdatePaymentState(ctx context.Context, orderID string, ps PaymentStatus, os OrderStatus, providerPaymentID, providerStatus string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET payment_status=$2, order_status=$3, provider_payment_id=$4, provider_status=$5, updated_at=now()
		WHERE id=$1 AND payment_status <> $6`,
		orderID, ps, os, providerPaymentID, providerStatus, PaymentCompleted)
	return err
}

// AdminStatusUpdate is the back-office PATCH: order status transition plus
// optional tracking number and payment status override.
type AdminStatusUpdate struct {
	Status         OrderStatus
	TrackingNumber string
	PaymentStatus  PaymentStatus
}

var ErrInvalidTransition = errors.New("invalid order status transition")

func (r *Repo) AdminUpdateStatus(ctx context.Context, orderID string, upd AdminStatusUpdate) (Order, error) {
	o, err := r.GetByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if upd.Status != "" && upd.Status != o.OrderStatus && !CanTransition(o.OrderStatus, upd.Status) {
		return Order{}, ErrInvalidTransition
	}

	status := o.OrderStatus
	if upd.Status != "" {
		status = upd.Status
	}
	payment := o.PaymentStatus
	if upd.PaymentStatus != "" {
		payment = upd.PaymentStatus
	}
	tracking := o.TrackingNumber
	if upd.TrackingNumber != "" {
		tracking = upd.TrackingNumber
	}

	row := r.DB.QueryRow(ctx, `
		UPDATE orders
		SET order_status=$2, payment_status=$3, tracking_number=$4, updated_at=now()
		WHERE id=$1
		RETURNING `+orderCols, orderID, status, payment, tracking)
	out, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return out, err
}
