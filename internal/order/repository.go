package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"paypal-bridge/internal/cart"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateFromCart turns the cart into an order in the given state and
	// deletes the cart in the same transaction. A non-nil settle links the
	// payment and appends its entry in that transaction too, so either all of
	// it is stored or none. It returns ErrCartConsumed when the cart was
	// deleted by a concurrent request first.
	CreateFromCart(ctx context.Context, c *cart.Cart, cust *cart.Customer, state State, settle *Settlement) (*Order, error)
	GetByUUID(ctx context.Context, orderUUID string) (*Order, error)
	// UpdateState sets the state and returns the one it replaced. The read and
	// the write happen under one row lock, so concurrent callers see each
	// other's writes as their prior state.
	UpdateState(ctx context.Context, orderID int64, state State) (prior State, err error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateFromCart(
	ctx context.Context,
	c *cart.Cart,
	cust *cart.Customer,
	state State,
	settle *Settlement,
) (*Order, error) {
	if len(c.Items) == 0 {
		return nil, ErrCartEmpty
	}

	o := &Order{
		UUID:            uuid.New().String(),
		SessionKey:      c.SessionKey,
		CustomerEmail:   cust.Email,
		State:           state,
		Price:           cart.GrossTotal(c, cust),
		Tax:             c.Tax(),
		Currency:        cust.Currency,
		ShippingAddress: cust.ShippingAddress,
		InvoiceAddress:  cust.InvoiceAddress,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Consume the cart first so a concurrent capture loses cleanly
	res, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume cart: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrCartConsumed
	}

	// 2. Insert order
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			uuid, session_key, customer_email, state, price, tax, currency,
			shipping_firstname, shipping_lastname, shipping_line1, shipping_line2,
			shipping_city, shipping_state, shipping_zip_code, shipping_country_code,
			invoice_firstname, invoice_lastname, invoice_line1, invoice_line2,
			invoice_city, invoice_state, invoice_zip_code, invoice_country_code
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		RETURNING id, created_at
	`,
		o.UUID, o.SessionKey, o.CustomerEmail, o.State, o.Price, o.Tax, o.Currency,
		o.ShippingAddress.FirstName, o.ShippingAddress.LastName, o.ShippingAddress.Line1, o.ShippingAddress.Line2,
		o.ShippingAddress.City, o.ShippingAddress.State, o.ShippingAddress.ZipCode, o.ShippingAddress.CountryCode,
		o.InvoiceAddress.FirstName, o.InvoiceAddress.LastName, o.InvoiceAddress.Line1, o.InvoiceAddress.Line2,
		o.InvoiceAddress.City, o.InvoiceAddress.State, o.InvoiceAddress.ZipCode, o.InvoiceAddress.CountryCode,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	o.UpdatedAt = o.CreatedAt

	// 3. Insert items
	for _, it := range c.Items {
		item := Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Tax:         it.LineTax().Round(2),
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, sku, quantity, unit_price, tax)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, o.ID, item.ProductID, item.ProductName, item.SKU, item.Quantity, item.UnitPrice, item.Tax)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}

	// 4. Settle the payment
	if settle != nil {
		if err := settlePayment(ctx, tx, o.ID, settle); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return o, nil
}

func settlePayment(ctx context.Context, tx *sql.Tx, orderID int64, s *Settlement) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE paypal_payments
		SET order_id = $1,
			payer_id = COALESCE(NULLIF($2, ''), payer_id),
			updated_at = now()
		WHERE id = $3 AND order_id IS NULL
	`, orderID, s.PayerID, s.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to link payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPaymentLinked
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO paypal_payment_entries (payment_id, status)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, s.PaymentID, s.EntryStatus).Scan(&s.EntryID, &s.EntryCreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append payment entry: %w", err)
	}
	return nil
}

func (r *repository) GetByUUID(ctx context.Context, orderUUID string) (*Order, error) {
	var o Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, uuid, session_key, customer_email, state, price, tax, currency,
			invoice_firstname, invoice_lastname, invoice_line1, invoice_line2,
			invoice_city, invoice_state, invoice_zip_code, invoice_country_code,
			created_at, updated_at
		FROM orders
		WHERE uuid = $1
	`, orderUUID).Scan(
		&o.ID, &o.UUID, &o.SessionKey, &o.CustomerEmail, &o.State, &o.Price, &o.Tax, &o.Currency,
		&o.InvoiceAddress.FirstName, &o.InvoiceAddress.LastName, &o.InvoiceAddress.Line1, &o.InvoiceAddress.Line2,
		&o.InvoiceAddress.City, &o.InvoiceAddress.State, &o.InvoiceAddress.ZipCode, &o.InvoiceAddress.CountryCode,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) UpdateState(ctx context.Context, orderID int64, state State) (State, error) {
	var prior State
	err := r.db.QueryRowContext(ctx, `
		UPDATE orders o
		SET state = $1, updated_at = $2
		FROM (SELECT id, state FROM orders WHERE id = $3 FOR UPDATE) prev
		WHERE o.id = prev.id
		RETURNING prev.state
	`, state, time.Now().UTC(), orderID).Scan(&prior)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to update order state: %w", err)
	}
	return prior, nil
}
