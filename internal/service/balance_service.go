package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quillforge/quillforge-api/internal/config"
	"github.com/quillforge/quillforge-api/internal/metrics"
	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/repository"
)

var (
	// ErrInsufficientBalance indicates the user doesn't have enough balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicatePayment indicates a duplicate Stripe payment ID.
	ErrDuplicatePayment = errors.New("duplicate payment - already processed")
)

// BalanceService handles balance gating and credit operations.
type BalanceService struct {
	repos   *repository.Repositories
	catalog *config.CatalogLoader
	logger  *slog.Logger
}

// NewBalanceService creates a new balance service.
func NewBalanceService(repos *repository.Repositories, catalog *config.CatalogLoader, logger *slog.Logger) *BalanceService {
	return &BalanceService{
		repos:   repos,
		catalog: catalog,
		logger:  logger,
	}
}

// ValidateServiceBalance performs the fast pre-flight balance check for a
// service key. It never returns an error: every failure mode becomes a
// Valid=false result so callers can pass it straight to the client.
func (s *BalanceService) ValidateServiceBalance(ctx context.Context, userID, serviceKey string) *models.BalanceValidation {
	catalog := s.catalog.Catalog(ctx)

	req := catalog.Get(serviceKey)
	if req == nil {
		metrics.BalanceChecksTotal.WithLabelValues(serviceKey, "invalid_service").Inc()
		return &models.BalanceValidation{
			Valid:   false,
			Error:   "invalid_service",
			Message: fmt.Sprintf("Service '%s' not found", serviceKey),
		}
	}

	account, err := s.repos.Account.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("balance validation error", "user_id", userID, "service", serviceKey, "error", err)
		metrics.BalanceChecksTotal.WithLabelValues(serviceKey, "error").Inc()
		return &models.BalanceValidation{
			Valid:   false,
			Error:   "validation_error",
			Message: fmt.Sprintf("Validation failed: %v", err),
		}
	}
	if account == nil {
		metrics.BalanceChecksTotal.WithLabelValues(serviceKey, "no_account").Inc()
		return &models.BalanceValidation{
			Valid:   false,
			Error:   "account_not_found",
			Message: "User account not found",
		}
	}

	if account.Credits < req.MinBalance {
		metrics.BalanceChecksTotal.WithLabelValues(serviceKey, "insufficient_balance").Inc()
		return &models.BalanceValidation{
			Valid:           false,
			Error:           "insufficient_balance",
			Message:         fmt.Sprintf("Insufficient balance for %s", req.Description),
			RequiredBalance: req.MinBalance,
			CurrentBalance:  account.Credits,
			Shortfall:       req.MinBalance - account.Credits,
			NextRefillTime:  account.NextRefillAt,
		}
	}

	metrics.BalanceChecksTotal.WithLabelValues(serviceKey, "valid").Inc()
	return &models.BalanceValidation{
		Valid:           true,
		ServiceName:     req.BillingName,
		Description:     req.Description,
		CurrentBalance:  account.Credits,
		RequiredBalance: req.MinBalance,
	}
}

// CheckPermissions is the coarse feature gate: permission is granted when
// the balance meets the fixed threshold, regardless of service.
func (s *BalanceService) CheckPermissions(ctx context.Context, userID string) *models.PermissionCheck {
	account, err := s.repos.Account.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("permission check error", "user_id", userID, "error", err)
		return &models.PermissionCheck{
			Permission: false,
			Message:    fmt.Sprintf("Permission check failed: %v", err),
		}
	}
	if account == nil {
		return &models.PermissionCheck{
			Permission: false,
			Message:    "User account not found",
		}
	}

	return &models.PermissionCheck{
		Permission:     account.Credits >= config.PermissionThreshold,
		CurrentBalance: account.Credits,
		NextRefillTime: account.NextRefillAt,
	}
}

// GetUserBalance returns the user's current balance, 0 when no account
// exists or the lookup fails.
func (s *BalanceService) GetUserBalance(ctx context.Context, userID string) float64 {
	account, err := s.repos.Account.GetByUserID(ctx, userID)
	if err != nil || account == nil {
		return 0
	}
	return account.Credits
}

// GetAccount returns the user's account, creating one on first use.
func (s *BalanceService) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	account, err := s.repos.Account.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// CreditAccount adds credits to a user's account. A non-empty
// stripePaymentID makes the operation idempotent.
func (s *BalanceService) CreditAccount(ctx context.Context, userID string, amount float64, description string, stripePaymentID string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %.4f", amount)
	}

	var paymentID *string
	if stripePaymentID != "" {
		paymentID = &stripePaymentID
	}

	tx, err := s.repos.Account.Credit(ctx, userID, amount, description, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			s.logger.Info("duplicate payment ignored", "stripe_payment_id", stripePaymentID)
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	s.logger.Info("account credited",
		"user_id", userID,
		"amount", amount,
		"new_balance", tx.NewBalance,
	)
	return tx, nil
}

// SaveBillingDetails stores the invoice contact reported by the payment
// provider. Callers treat failures as non-fatal; the payment itself has
// already been credited.
func (s *BalanceService) SaveBillingDetails(ctx context.Context, userID string, details models.BillingDetails) error {
	if err := s.repos.Account.UpdateBillingDetails(ctx, userID, details); err != nil {
		return fmt.Errorf("failed to store billing details: %w", err)
	}
	return nil
}

// RefundCharge removes previously purchased credits after a payment
// refund. The derived payment id makes the operation idempotent per
// refunded charge.
func (s *BalanceService) RefundCharge(ctx context.Context, userID string, amount float64, stripePaymentID string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("refund amount must be positive, got %.4f", amount)
	}

	refundID := "refund_" + stripePaymentID
	tx, err := s.repos.Account.Credit(ctx, userID, -amount, "Refund of payment "+stripePaymentID, &refundID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			s.logger.Info("duplicate refund ignored", "stripe_payment_id", stripePaymentID)
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("failed to refund charge: %w", err)
	}

	s.logger.Info("charge refunded",
		"user_id", userID,
		"amount", amount,
		"new_balance", tx.NewBalance,
	)
	return tx, nil
}

// GetTransactionHistory retrieves a user's transaction history.
func (s *BalanceService) GetTransactionHistory(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	account, err := s.repos.Account.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, nil
	}
	return s.repos.Transaction.GetByAccountID(ctx, account.ID, limit, offset)
}
