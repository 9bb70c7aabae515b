// Package repository defines repository interfaces for data access.
// Relational data (accounts, usage, monitoring) lives in PostgreSQL;
// content documents live in MongoDB.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/quillforge/quillforge-api/internal/models"
)

// ErrInsufficientBalance is returned when a charge would take an account
// below zero. The conditional decrement never lets that happen.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrDuplicatePayment is returned when a Stripe payment id has already
// been credited.
var ErrDuplicatePayment = errors.New("payment already credited")

// AccountRepository defines methods for account data access.
type AccountRepository interface {
	// GetByUserID returns the account for a user, or nil when none exists.
	GetByUserID(ctx context.Context, userID string) (*models.Account, error)
	// GetOrCreate returns the account for a user, creating a zero-balance
	// USD account on first use.
	GetOrCreate(ctx context.Context, userID string) (*models.Account, error)
	// Credit atomically adds credits and writes the audit transaction.
	// A non-nil stripePaymentID enforces idempotency: a duplicate returns
	// ErrDuplicatePayment.
	Credit(ctx context.Context, userID string, amount float64, description string, stripePaymentID *string) (*models.Transaction, error)
	// UpdateBillingDetails stores the invoice contact for an account.
	// Empty fields keep their stored values.
	UpdateBillingDetails(ctx context.Context, userID string, details models.BillingDetails) error
}

// ChargeParams carries everything needed to charge one service invocation.
type ChargeParams struct {
	UserID             string
	ServiceName        string
	ServiceDescription string
	BaseCost           float64
	Multiplier         float64
	ActualCharge       float64
	UsageData          string // JSON metadata blob, may be empty
	ReferenceID        *string
	ProjectID          *string
}

// UsageHistoryFilter narrows usage history queries.
type UsageHistoryFilter struct {
	ServiceName string
	ProjectID   string
	Limit       int
	Offset      int
}

// UsageRepository defines methods for usage data access.
type UsageRepository interface {
	// ChargeAndRecord atomically debits the account, inserts the usage
	// record, and writes the debit transaction. Returns
	// ErrInsufficientBalance when the account cannot cover the charge.
	ChargeAndRecord(ctx context.Context, params ChargeParams) (*models.UsageReceipt, error)
	// GetHistory returns usage records joined with project metadata,
	// newest first, plus the total matching count.
	GetHistory(ctx context.Context, userID string, filter UsageHistoryFilter) ([]*models.UsageRecordWithProject, int, error)
	// GetSummary aggregates charges per service since the given time.
	GetSummary(ctx context.Context, userID string, since time.Time) ([]*models.UsageSummary, error)
}

// TransactionRepository defines methods for transaction data access.
type TransactionRepository interface {
	GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error)
	GetByStripePaymentID(ctx context.Context, paymentID string) (*models.Transaction, error)
}

// ProjectRepository defines methods for project and search-console data.
type ProjectRepository interface {
	ListProjects(ctx context.Context) ([]*models.Project, error)
	// CountGSCAccountsByProject returns project_id -> linked account count.
	CountGSCAccountsByProject(ctx context.Context) (map[string]int, error)
	// GetGSCAccount returns the first linked account for a project, or nil.
	GetGSCAccount(ctx context.Context, projectID string) (*models.GSCAccount, error)
}

// MonitoringRepository defines methods for the monitoring rollup table.
type MonitoringRepository interface {
	GetAll(ctx context.Context) ([]*models.MonitoringProjectStats, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.MonitoringProjectStats, error)
	// UpsertBatch writes all rows in one transaction, keyed on project_id.
	UpsertBatch(ctx context.Context, rows []*models.MonitoringProjectStats) error
	Count(ctx context.Context) (int, error)
}

// ContentRepository defines methods for the MongoDB content store.
type ContentRepository interface {
	// FindActiveContent returns documents that are active (or predate the
	// is_active flag) and carry both user and project ids.
	FindActiveContent(ctx context.Context) ([]models.ContentDoc, error)
}

// Repositories bundles all repository instances.
type Repositories struct {
	Account     AccountRepository
	Usage       UsageRepository
	Transaction TransactionRepository
	Project     ProjectRepository
	Monitoring  MonitoringRepository
	Content     ContentRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB, mongoDB *mongo.Database) *Repositories {
	return &Repositories{
		Account:     NewPostgresAccountRepository(db),
		Usage:       NewPostgresUsageRepository(db),
		Transaction: NewPostgresTransactionRepository(db),
		Project:     NewPostgresProjectRepository(db),
		Monitoring:  NewPostgresMonitoringRepository(db),
		Content:     NewMongoContentRepository(mongoDB),
	}
}
