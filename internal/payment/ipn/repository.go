package ipn

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository interface {
	Save(ctx context.Context, n *Notification) error
	// AttachToOrder links a stored notification to the order's transaction,
	// creating the transaction on first use. Repeating it is a no-op.
	AttachToOrder(ctx context.Context, orderID, ipnID int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Save(ctx context.Context, n *Notification) error {
	const q = `
	INSERT INTO paypal_ipn (
		txn_id, txn_type, custom, invoice, payment_status,
		receiver_email, payer_id, payer_email, mc_gross, mc_currency,
		flag, flag_info, query
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id, created_at;
	`

	err := r.db.QueryRowContext(ctx, q,
		n.TxnID, n.TxnType, n.Custom, n.Invoice, n.PaymentStatus,
		n.ReceiverEmail, n.PayerID, n.PayerEmail, n.McGross, n.McCurrency,
		n.Flag, n.FlagInfo, n.Query,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save ipn: %w", err)
	}
	return nil
}

func (r *repository) AttachToOrder(ctx context.Context, orderID, ipnID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var transactionID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO paypal_order_transactions (order_id)
		VALUES ($1)
		ON CONFLICT (order_id) DO UPDATE SET order_id = EXCLUDED.order_id
		RETURNING id
	`, orderID).Scan(&transactionID)
	if err != nil {
		return fmt.Errorf("failed to get order transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO paypal_order_transaction_ipns (transaction_id, ipn_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, transactionID, ipnID)
	if err != nil {
		return fmt.Errorf("failed to link ipn: %w", err)
	}

	return tx.Commit()
}
