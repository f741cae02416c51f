package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paypal-bridge/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// GetActiveCart returns the cart bound to the session, or ErrCartNotFound
	// once it has been consumed by order creation.
	GetActiveCart(ctx context.Context, sessionKey string) (*Cart, error)
	GetCustomer(ctx context.Context, sessionKey string) (*Customer, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetActiveCart(ctx context.Context, sessionKey string) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetActiveCart"),
	)

	var c Cart
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_key, created_at, updated_at
		FROM carts
		WHERE session_key = $1
	`, sessionKey).Scan(&c.ID, &c.SessionKey, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		log.Error("failed to query cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedGetCart, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, sku, quantity, unit_price, tax_rate
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id
	`, c.ID)
	if err != nil {
		log.Error("failed to query cart items", zap.Int64("cart_id", c.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedGetCart, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.ProductID, &it.ProductName, &it.SKU,
			&it.Quantity, &it.UnitPrice, &it.TaxRate,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedGetCart, err)
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetCart, err)
	}

	return &c, nil
}

const addressColumns = `
	%[1]s_firstname, %[1]s_lastname, %[1]s_company_name, %[1]s_line1, %[1]s_line2,
	%[1]s_city, %[1]s_state, %[1]s_zip_code, %[1]s_country_code, %[1]s_phone, %[1]s_email`

func addressDest(a *Address) []any {
	return []any{
		&a.FirstName, &a.LastName, &a.CompanyName, &a.Line1, &a.Line2,
		&a.City, &a.State, &a.ZipCode, &a.CountryCode, &a.Phone, &a.Email,
	}
}

func (r *repository) GetCustomer(ctx context.Context, sessionKey string) (*Customer, error) {
	query := fmt.Sprintf(`
		SELECT session_key, email, shipping_price, currency, %s, %s
		FROM customers
		WHERE session_key = $1
	`, fmt.Sprintf(addressColumns, "shipping"), fmt.Sprintf(addressColumns, "invoice"))

	var c Customer
	dest := []any{&c.SessionKey, &c.Email, &c.ShippingPrice, &c.Currency}
	dest = append(dest, addressDest(&c.ShippingAddress)...)
	dest = append(dest, addressDest(&c.InvoiceAddress)...)

	err := r.db.QueryRowContext(ctx, query, sessionKey).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to query customer", zap.Error(err))
		return nil, err
	}
	return &c, nil
}
