package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/quillforge/quillforge-api/internal/models"
)

// PostgresUsageRepository implements UsageRepository for PostgreSQL.
type PostgresUsageRepository struct {
	db *sql.DB
}

// NewPostgresUsageRepository creates a new Postgres usage repository.
func NewPostgresUsageRepository(db *sql.DB) *PostgresUsageRepository {
	return &PostgresUsageRepository{db: db}
}

// ChargeAndRecord debits the account, inserts the usage record, and writes
// the debit transaction atomically. The conditional decrement closes the
// check-then-charge race: concurrent charges serialize on the row and the
// losing request sees ErrInsufficientBalance instead of a negative balance.
func (r *PostgresUsageRepository) ChargeAndRecord(ctx context.Context, params ChargeParams) (*models.UsageReceipt, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Ensure the account exists before attempting the decrement.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, credits, currency) VALUES ($1, 0, 'USD')
		ON CONFLICT (user_id) DO NOTHING`, params.UserID); err != nil {
		return nil, err
	}

	var accountID string
	var newBalance float64
	err = tx.QueryRowContext(ctx,
		`UPDATE accounts SET credits = credits - $2, updated_at = now()
		WHERE user_id = $1 AND credits >= $2
		RETURNING id, credits`,
		params.UserID, params.ActualCharge).
		Scan(&accountID, &newBalance)
	if err == sql.ErrNoRows {
		return nil, ErrInsufficientBalance
	}
	if err != nil {
		return nil, err
	}
	previousBalance := newBalance + params.ActualCharge

	now := time.Now().UTC()

	var usageData sql.NullString
	if params.UsageData != "" {
		usageData = sql.NullString{String: params.UsageData, Valid: true}
	}

	var usageID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO usage_records (user_id, account_id, service_name, service_description, base_cost, multiplier, actual_charge, usage_data, reference_id, project_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'completed', $11)
		RETURNING id`,
		params.UserID, accountID, params.ServiceName, params.ServiceDescription,
		params.BaseCost, params.Multiplier, params.ActualCharge, usageData,
		params.ReferenceID, params.ProjectID, now).
		Scan(&usageID)
	if err != nil {
		return nil, err
	}

	description := params.ServiceName + ": "
	if params.ServiceDescription != "" {
		description += params.ServiceDescription
	} else {
		description += "Service usage"
	}
	referenceID := "usage_" + usageID

	var txID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO transactions (account_id, type, amount, previous_balance, new_balance, reference_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		accountID, models.TxTypeDebit, params.ActualCharge, previousBalance,
		newBalance, referenceID, description, now).
		Scan(&txID)
	if err != nil {
		return nil, err
	}

	// Link the usage record back to its transaction.
	if _, err := tx.ExecContext(ctx,
		`UPDATE usage_records SET transaction_id = $1 WHERE id = $2`, txID, usageID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.UsageReceipt{
		UsageID:         usageID,
		TransactionID:   txID,
		ServiceName:     params.ServiceName,
		BaseCost:        params.BaseCost,
		Multiplier:      params.Multiplier,
		ActualCharge:    params.ActualCharge,
		PreviousBalance: previousBalance,
		NewBalance:      newBalance,
		Timestamp:       now,
	}, nil
}

func (r *PostgresUsageRepository) GetHistory(ctx context.Context, userID string, filter UsageHistoryFilter) ([]*models.UsageRecordWithProject, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	where := `WHERE u.user_id = $1`
	args := []any{userID}
	if filter.ServiceName != "" {
		args = append(args, filter.ServiceName)
		where += ` AND u.service_name = $2`
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		if filter.ServiceName != "" {
			where += ` AND u.project_id = $3`
		} else {
			where += ` AND u.project_id = $2`
		}
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM usage_records u ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT u.id, u.user_id, u.account_id, u.service_name, COALESCE(u.service_description, ''),
			u.base_cost, u.multiplier, u.actual_charge, COALESCE(u.usage_data, ''),
			u.reference_id, u.project_id, u.transaction_id, u.status, u.created_at,
			p.name, p.url
		FROM usage_records u
		LEFT JOIN projects p ON u.project_id = p.id ` + where + `
		ORDER BY u.created_at DESC`

	argLen := len(args)
	args = append(args, limit, filter.Offset)
	query += ` LIMIT $` + strconv.Itoa(argLen+1) + ` OFFSET $` + strconv.Itoa(argLen+2)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*models.UsageRecordWithProject
	for rows.Next() {
		var rec models.UsageRecordWithProject
		var refID, projectID, txID, projectName, projectURL sql.NullString
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.AccountID, &rec.ServiceName, &rec.ServiceDescription,
			&rec.BaseCost, &rec.Multiplier, &rec.ActualCharge, &rec.UsageData,
			&refID, &projectID, &txID, &rec.Status, &rec.CreatedAt,
			&projectName, &projectURL)
		if err != nil {
			return nil, 0, err
		}
		if refID.Valid {
			rec.ReferenceID = &refID.String
		}
		if projectID.Valid {
			rec.ProjectID = &projectID.String
		}
		if txID.Valid {
			rec.TransactionID = &txID.String
		}
		if projectName.Valid {
			rec.ProjectName = &projectName.String
		}
		if projectURL.Valid {
			rec.ProjectURL = &projectURL.String
		}
		records = append(records, &rec)
	}
	return records, total, rows.Err()
}

func (r *PostgresUsageRepository) GetSummary(ctx context.Context, userID string, since time.Time) ([]*models.UsageSummary, error) {
	query := `SELECT service_name, COUNT(*), COALESCE(SUM(actual_charge), 0)
		FROM usage_records
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY service_name
		ORDER BY SUM(actual_charge) DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.ServiceName, &s.CallCount, &s.TotalCharge); err != nil {
			return nil, err
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}
