package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/quillforge/quillforge-api/internal/config"
	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalogLoader() *config.CatalogLoader {
	return config.NewCatalogLoader(config.S3LoaderConfig{Logger: testLogger()})
}

// mockAccountRepository implements repository.AccountRepository for testing.
type mockAccountRepository struct {
	mu        sync.RWMutex
	accounts  map[string]*models.Account
	payments  map[string]bool
	getErr    error
	creditErr error
	txSeq     int
}

func newMockAccountRepository() *mockAccountRepository {
	return &mockAccountRepository{
		accounts: make(map[string]*models.Account),
		payments: make(map[string]bool),
	}
}

func (m *mockAccountRepository) setAccount(userID string, credits float64) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := &models.Account{
		ID:       "acct-" + userID,
		UserID:   userID,
		Credits:  credits,
		Currency: "USD",
	}
	m.accounts[userID] = account
	return account
}

func (m *mockAccountRepository) UpdateBillingDetails(ctx context.Context, userID string, details models.BillingDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return nil
	}
	if account.Billing == nil {
		account.Billing = &models.BillingDetails{}
	}
	if details.Name != "" {
		account.Billing.Name = details.Name
	}
	if details.Email != "" {
		account.Billing.Email = details.Email
	}
	if details.Country != "" {
		account.Billing.Country = details.Country
	}
	if details.TaxNumber != "" {
		account.Billing.TaxNumber = details.TaxNumber
	}
	return nil
}

func (m *mockAccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.accounts[userID], nil
}

func (m *mockAccountRepository) GetOrCreate(ctx context.Context, userID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if account, ok := m.accounts[userID]; ok {
		return account, nil
	}
	account := &models.Account{
		ID:       "acct-" + userID,
		UserID:   userID,
		Credits:  0,
		Currency: "USD",
	}
	m.accounts[userID] = account
	return account, nil
}

func (m *mockAccountRepository) Credit(ctx context.Context, userID string, amount float64, description string, stripePaymentID *string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creditErr != nil {
		return nil, m.creditErr
	}
	if stripePaymentID != nil {
		if m.payments[*stripePaymentID] {
			return nil, repository.ErrDuplicatePayment
		}
		m.payments[*stripePaymentID] = true
	}
	account, ok := m.accounts[userID]
	if !ok {
		account = &models.Account{ID: "acct-" + userID, UserID: userID, Currency: "USD"}
		m.accounts[userID] = account
	}
	previous := account.Credits
	account.Credits += amount
	m.txSeq++
	return &models.Transaction{
		ID:              "tx-" + userID,
		AccountID:       account.ID,
		Type:            models.TxTypeCredit,
		Amount:          amount,
		PreviousBalance: previous,
		NewBalance:      account.Credits,
		StripePaymentID: stripePaymentID,
		Description:     description,
		CreatedAt:       time.Now(),
	}, nil
}

// mockUsageRepository implements repository.UsageRepository for testing.
type mockUsageRepository struct {
	mu        sync.RWMutex
	accounts  *mockAccountRepository
	charges   []repository.ChargeParams
	chargeErr error
	summaries []*models.UsageSummary
}

func newMockUsageRepository(accounts *mockAccountRepository) *mockUsageRepository {
	return &mockUsageRepository{accounts: accounts}
}

func (m *mockUsageRepository) ChargeAndRecord(ctx context.Context, params repository.ChargeParams) (*models.UsageReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chargeErr != nil {
		return nil, m.chargeErr
	}

	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	account, ok := m.accounts.accounts[params.UserID]
	if !ok {
		account = &models.Account{ID: "acct-" + params.UserID, UserID: params.UserID, Currency: "USD"}
		m.accounts.accounts[params.UserID] = account
	}
	if account.Credits < params.ActualCharge {
		return nil, repository.ErrInsufficientBalance
	}
	previous := account.Credits
	account.Credits -= params.ActualCharge
	m.charges = append(m.charges, params)

	return &models.UsageReceipt{
		UsageID:         "usage-1",
		TransactionID:   "tx-1",
		ServiceName:     params.ServiceName,
		BaseCost:        params.BaseCost,
		Multiplier:      params.Multiplier,
		ActualCharge:    params.ActualCharge,
		PreviousBalance: previous,
		NewBalance:      account.Credits,
		Timestamp:       time.Now(),
	}, nil
}

func (m *mockUsageRepository) GetHistory(ctx context.Context, userID string, filter repository.UsageHistoryFilter) ([]*models.UsageRecordWithProject, int, error) {
	return nil, 0, nil
}

func (m *mockUsageRepository) GetSummary(ctx context.Context, userID string, since time.Time) ([]*models.UsageSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summaries, nil
}

func (m *mockUsageRepository) chargeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.charges)
}

func (m *mockUsageRepository) lastCharge() repository.ChargeParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.charges[len(m.charges)-1]
}

// mockTransactionRepository implements repository.TransactionRepository for testing.
type mockTransactionRepository struct {
	mu           sync.RWMutex
	transactions []*models.Transaction
}

func (m *mockTransactionRepository) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Transaction
	for _, tx := range m.transactions {
		if tx.AccountID == accountID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *mockTransactionRepository) GetByStripePaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tx := range m.transactions {
		if tx.StripePaymentID != nil && *tx.StripePaymentID == paymentID {
			return tx, nil
		}
	}
	return nil, nil
}

// mockProjectRepository implements repository.ProjectRepository for testing.
type mockProjectRepository struct {
	mu          sync.RWMutex
	projects    []*models.Project
	gscCounts   map[string]int
	gscAccounts map[string]*models.GSCAccount
	listErr     error
}

func newMockProjectRepository() *mockProjectRepository {
	return &mockProjectRepository{
		gscCounts:   make(map[string]int),
		gscAccounts: make(map[string]*models.GSCAccount),
	}
}

func (m *mockProjectRepository) ListProjects(ctx context.Context) ([]*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.projects, nil
}

func (m *mockProjectRepository) CountGSCAccountsByProject(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gscCounts, nil
}

func (m *mockProjectRepository) GetGSCAccount(ctx context.Context, projectID string) (*models.GSCAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gscAccounts[projectID], nil
}

// mockMonitoringRepository implements repository.MonitoringRepository for testing.
type mockMonitoringRepository struct {
	mu        sync.RWMutex
	rows      []*models.MonitoringProjectStats
	upserted  []*models.MonitoringProjectStats
	upsertErr error
}

func (m *mockMonitoringRepository) GetAll(ctx context.Context) ([]*models.MonitoringProjectStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows, nil
}

func (m *mockMonitoringRepository) GetByUserID(ctx context.Context, userID string) ([]*models.MonitoringProjectStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.MonitoringProjectStats
	for _, row := range m.rows {
		if row.UserID == userID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (m *mockMonitoringRepository) UpsertBatch(ctx context.Context, rows []*models.MonitoringProjectStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = rows
	return nil
}

func (m *mockMonitoringRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.upserted != nil {
		return len(m.upserted), nil
	}
	return len(m.rows), nil
}

// mockContentRepository implements repository.ContentRepository for testing.
type mockContentRepository struct {
	mu      sync.RWMutex
	docs    []models.ContentDoc
	findErr error
}

func (m *mockContentRepository) FindActiveContent(ctx context.Context) ([]models.ContentDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.docs, nil
}

// newTestRepositories wires all mocks into a Repositories container.
func newTestRepositories() (*repository.Repositories, *mockAccountRepository, *mockUsageRepository) {
	accounts := newMockAccountRepository()
	usage := newMockUsageRepository(accounts)
	repos := &repository.Repositories{
		Account:     accounts,
		Usage:       usage,
		Transaction: &mockTransactionRepository{},
		Project:     newMockProjectRepository(),
		Monitoring:  &mockMonitoringRepository{},
		Content:     &mockContentRepository{},
	}
	return repos, accounts, usage
}
