package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type Repository interface {
	// Create stores p together with its first entry.
	Create(ctx context.Context, p *Payment, initial Status) error
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*Payment, error)
	GetByID(ctx context.Context, id int64) (*Payment, error)
	AppendEntry(ctx context.Context, paymentID int64, status Status) (*Entry, error)
	List(ctx context.Context, f Filter) ([]Summary, error)

	// SaveWebhookEvent records a delivery. isDuplicate is true only when the
	// event was already processed; an earlier failed delivery is handed out again.
	SaveWebhookEvent(ctx context.Context, ev WebhookEvent) (webhookID int64, isDuplicate bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const paymentColumns = `id, temporary_order_id, provider_order_id, payer_id, amount, currency, order_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner, extra ...any) (*Payment, error) {
	var (
		p       Payment
		orderID sql.NullInt64
	)
	dest := append([]any{
		&p.ID, &p.TemporaryOrderID, &p.ProviderOrderID, &p.PayerID,
		&p.Amount, &p.Currency, &orderID, &p.CreatedAt, &p.UpdatedAt,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if orderID.Valid {
		id := orderID.Int64
		p.OrderID = &id
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, p *Payment, initial Status) error {
	if !initial.Valid() {
		return ErrInvalidStatus
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO paypal_payments (temporary_order_id, provider_order_id, payer_id, amount, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, p.TemporaryOrderID, p.ProviderOrderID, p.PayerID, p.Amount, p.Currency).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	var e Entry
	err = tx.QueryRowContext(ctx, `
		INSERT INTO paypal_payment_entries (payment_id, status)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, p.ID, initial).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	e.PaymentID, e.Status = p.ID, initial
	p.Entries = []Entry{e}
	return nil
}

func (r *repository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM paypal_payments WHERE provider_order_id = $1`,
		providerOrderID,
	)
	return r.loadWithEntries(ctx, row)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM paypal_payments WHERE id = $1`,
		id,
	)
	return r.loadWithEntries(ctx, row)
}

func (r *repository) loadWithEntries(ctx context.Context, row *sql.Row) (*Payment, error) {
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_id, status, created_at
		FROM paypal_payment_entries
		WHERE payment_id = $1
		ORDER BY created_at, id
	`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		p.Entries = append(p.Entries, e)
	}
	return p, rows.Err()
}

func (r *repository) AppendEntry(ctx context.Context, paymentID int64, status Status) (*Entry, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	e := Entry{PaymentID: paymentID, Status: status}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO paypal_payment_entries (payment_id, status)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, paymentID, status).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append payment entry: %w", err)
	}
	return &e, nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]Summary, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`,
			COALESCE((
				SELECT e.status FROM paypal_payment_entries e
				WHERE e.payment_id = p.id
				ORDER BY e.created_at DESC, e.id DESC
				LIMIT 1
			), '') AS status
		FROM paypal_payments p
		WHERE ($1 = '' OR p.currency = $1)
		  AND ($2 = ''
			OR p.provider_order_id ILIKE '%' || $2 || '%'
			OR p.payer_id ILIKE '%' || $2 || '%'
			OR CAST(p.order_id AS TEXT) = $2)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $3 OFFSET $4
	`, f.Currency, f.Search, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var status Status
		p, err := scanPayment(rows, &status)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Payment: *p, Status: status})
	}
	return out, rows.Err()
}

func (r *repository) SaveWebhookEvent(ctx context.Context, ev WebhookEvent) (int64, bool, error) {
	const q = `
	INSERT INTO paypal_webhook_events (
		event_id,
		event_type,
		resource_id,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (event_id)
	DO UPDATE SET process_error = NULL
	WHERE paypal_webhook_events.processed_at IS NULL
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(ctx, q,
		ev.EventID,
		ev.EventType,
		ev.ResourceID,
		ev.SignatureValid,
		ev.Payload,
	).Scan(&id)
	if err != nil {
		// only a delivery that was already processed returns no row
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	const q = `
	UPDATE paypal_webhook_events
	SET processed_at = now()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	const q = `
	UPDATE paypal_webhook_events
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
