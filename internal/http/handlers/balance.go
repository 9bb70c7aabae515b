package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/service"
)

// BalanceHandler handles balance and permission endpoints.
type BalanceHandler struct {
	balanceSvc *service.BalanceService
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(balanceSvc *service.BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceSvc: balanceSvc}
}

// GetBalanceOutput represents the balance response.
type GetBalanceOutput struct {
	Body struct {
		Credits        float64    `json:"credits" doc:"Current credit balance"`
		Currency       string     `json:"currency"`
		PlanType       string     `json:"plan_type,omitempty"`
		PlanStatus     string     `json:"plan_status,omitempty"`
		NextRefillTime *time.Time `json:"next_refill_time,omitempty"`

		Billing *models.BillingDetails `json:"billing,omitempty" doc:"Invoice contact captured at checkout"`
	}
}

// GetBalance returns the caller's account balance, creating the account
// on first use.
func (h *BalanceHandler) GetBalance(ctx context.Context, input *struct{}) (*GetBalanceOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	account, err := h.balanceSvc.GetAccount(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get balance")
	}

	out := &GetBalanceOutput{}
	out.Body.Credits = account.Credits
	out.Body.Currency = account.Currency
	out.Body.PlanType = account.PlanType
	out.Body.PlanStatus = account.PlanStatus
	out.Body.NextRefillTime = account.NextRefillAt
	out.Body.Billing = account.Billing
	return out, nil
}

// ValidateBalanceInput represents a pre-flight balance check request.
type ValidateBalanceInput struct {
	ServiceKey string `query:"service_key" required:"true" doc:"Service key to validate against"`
}

// ValidateBalanceOutput represents the validation result. Insufficient
// balance is a 200 with valid=false so clients can render the shortfall.
type ValidateBalanceOutput struct {
	Body models.BalanceValidation
}

// ValidateBalance checks whether the caller can afford one invocation of
// the given service.
func (h *BalanceHandler) ValidateBalance(ctx context.Context, input *ValidateBalanceInput) (*ValidateBalanceOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result := h.balanceSvc.ValidateServiceBalance(ctx, userID, input.ServiceKey)
	return &ValidateBalanceOutput{Body: *result}, nil
}

// CheckPermissionsOutput represents the coarse feature gate result.
type CheckPermissionsOutput struct {
	Body models.PermissionCheck
}

// CheckPermissions reports whether the caller's balance clears the
// feature threshold.
func (h *BalanceHandler) CheckPermissions(ctx context.Context, input *struct{}) (*CheckPermissionsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result := h.balanceSvc.CheckPermissions(ctx, userID)
	return &CheckPermissionsOutput{Body: *result}, nil
}

// ListTransactionsInput represents a transaction history request.
type ListTransactionsInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Max transactions to return"`
	Offset int `query:"offset" default:"0" minimum:"0"`
}

// ListTransactionsOutput represents the transaction history response.
type ListTransactionsOutput struct {
	Body struct {
		Transactions []*models.Transaction `json:"transactions"`
	}
}

// ListTransactions returns the caller's credit and debit history.
func (h *BalanceHandler) ListTransactions(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	txs, err := h.balanceSvc.GetTransactionHistory(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get transactions")
	}

	out := &ListTransactionsOutput{}
	out.Body.Transactions = txs
	if out.Body.Transactions == nil {
		out.Body.Transactions = []*models.Transaction{}
	}
	return out, nil
}
