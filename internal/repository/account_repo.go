package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/quillforge/quillforge-api/internal/models"
)

// ========================================
// Account Repository
// ========================================

// PostgresAccountRepository implements AccountRepository for PostgreSQL.
type PostgresAccountRepository struct {
	db *sql.DB
}

// NewPostgresAccountRepository creates a new Postgres account repository.
func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `id, user_id, credits, currency, COALESCE(plan_type, 'free'), COALESCE(plan_status, 'active'), next_refill_time, plan_start_date, plan_end_date, created_at, COALESCE(updated_at, created_at), billing_name, billing_email, billing_country, billing_tax_number`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var a models.Account
	var nextRefill, planStart, planEnd sql.NullTime
	var billingName, billingEmail, billingCountry, billingTax sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &a.Credits, &a.Currency, &a.PlanType, &a.PlanStatus,
		&nextRefill, &planStart, &planEnd, &a.CreatedAt, &a.UpdatedAt,
		&billingName, &billingEmail, &billingCountry, &billingTax)
	if err != nil {
		return nil, err
	}
	if nextRefill.Valid {
		a.NextRefillAt = &nextRefill.Time
	}
	if planStart.Valid {
		a.PlanStartDate = &planStart.Time
	}
	if planEnd.Valid {
		a.PlanEndDate = &planEnd.Time
	}
	if billingName.Valid || billingEmail.Valid || billingCountry.Valid || billingTax.Valid {
		a.Billing = &models.BillingDetails{
			Name:      billingName.String,
			Email:     billingEmail.String,
			Country:   billingCountry.String,
			TaxNumber: billingTax.String,
		}
	}
	return &a, nil
}

func (r *PostgresAccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *PostgresAccountRepository) GetOrCreate(ctx context.Context, userID string) (*models.Account, error) {
	account, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	query := `INSERT INTO accounts (user_id, credits, currency)
		VALUES ($1, 0, 'USD')
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRowContext(ctx, query, userID))
}

// Credit adds credits and records the audit transaction in one database
// transaction. A negative amount records a refund debit. The
// stripe_payment_id UNIQUE constraint supplies idempotency.
func (r *PostgresAccountRepository) Credit(ctx context.Context, userID string, amount float64, description string, stripePaymentID *string) (*models.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Ensure the account exists, then lock the row for the balance update.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, credits, currency) VALUES ($1, 0, 'USD')
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, err
	}

	var accountID string
	var previous float64
	err = tx.QueryRowContext(ctx,
		`SELECT id, credits FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&accountID, &previous)
	if err != nil {
		return nil, err
	}

	newBalance := previous + amount
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET credits = $1, updated_at = now() WHERE id = $2`,
		newBalance, accountID); err != nil {
		return nil, err
	}

	txType := models.TxTypeCredit
	txAmount := amount
	if amount < 0 {
		txType = models.TxTypeRefund
		txAmount = -amount
	}
	record := &models.Transaction{
		AccountID:       accountID,
		Type:            txType,
		Amount:          txAmount,
		PreviousBalance: previous,
		NewBalance:      newBalance,
		StripePaymentID: stripePaymentID,
		Description:     description,
		CreatedAt:       time.Now().UTC(),
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO transactions (account_id, type, amount, previous_balance, new_balance, stripe_payment_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		record.AccountID, record.Type, record.Amount, record.PreviousBalance,
		record.NewBalance, record.StripePaymentID, record.Description, record.CreatedAt).
		Scan(&record.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePayment
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateBillingDetails stores the invoice contact captured at checkout.
// Empty fields keep whatever is already stored.
func (r *PostgresAccountRepository) UpdateBillingDetails(ctx context.Context, userID string, details models.BillingDetails) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET
			billing_name = COALESCE(NULLIF($2, ''), billing_name),
			billing_email = COALESCE(NULLIF($3, ''), billing_email),
			billing_country = COALESCE(NULLIF($4, ''), billing_country),
			billing_tax_number = COALESCE(NULLIF($5, ''), billing_tax_number),
			updated_at = now()
		WHERE user_id = $1`,
		userID, details.Name, details.Email, details.Country, details.TaxNumber)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ========================================
// Transaction Repository
// ========================================

// PostgresTransactionRepository implements TransactionRepository for PostgreSQL.
type PostgresTransactionRepository struct {
	db *sql.DB
}

// NewPostgresTransactionRepository creates a new Postgres transaction repository.
func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

const transactionColumns = `id, account_id, type, amount, previous_balance, new_balance, stripe_payment_id, reference_id, description, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	var t models.Transaction
	var stripeID, refID sql.NullString
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.PreviousBalance,
		&t.NewBalance, &stripeID, &refID, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if stripeID.Valid {
		t.StripePaymentID = &stripeID.String
	}
	if refID.Valid {
		t.ReferenceID = &refID.String
	}
	return &t, nil
}

func (r *PostgresTransactionRepository) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, transactionColumns)
	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *PostgresTransactionRepository) GetByStripePaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE stripe_payment_id = $1`, transactionColumns)
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, paymentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
