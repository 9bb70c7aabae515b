// Package models defines the domain models for the application.
// The UserID fields reference auth-provider user IDs (UUID strings).
package models

import (
	"time"
)

// ========================================
// Accounts
// ========================================

// Account tracks a user's credit balance for service usage.
type Account struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Credits       float64    `json:"credits"`
	Currency      string     `json:"currency"`
	PlanType      string     `json:"plan_type"`
	PlanStatus    string     `json:"plan_status"`
	NextRefillAt  *time.Time `json:"next_refill_time,omitempty"`
	PlanStartDate *time.Time `json:"plan_start_date,omitempty"`
	PlanEndDate   *time.Time `json:"plan_end_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Billing *BillingDetails `json:"billing,omitempty"`
}

// BillingDetails is the invoice contact captured from checkout.
type BillingDetails struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Country   string `json:"country,omitempty"`
	TaxNumber string `json:"tax_number,omitempty"`
}

// ========================================
// Transactions
// ========================================

// TransactionType defines the direction of a credit movement.
type TransactionType string

const (
	TxTypeCredit     TransactionType = "credit"     // Top-up or plan refill
	TxTypeDebit      TransactionType = "debit"      // Service usage charge
	TxTypeRefund     TransactionType = "refund"     // Refunded charge
	TxTypeAdjustment TransactionType = "adjustment" // Manual admin adjustment
)

// Transaction provides the audit trail for all credit movements.
type Transaction struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	Type            TransactionType `json:"type"`
	Amount          float64         `json:"amount"` // Always positive; Type carries direction
	PreviousBalance float64         `json:"previous_balance"`
	NewBalance      float64         `json:"new_balance"`

	// Idempotency and references
	StripePaymentID *string `json:"stripe_payment_id,omitempty"` // UNIQUE - prevents double-credit
	ReferenceID     *string `json:"reference_id,omitempty"`      // e.g. "usage_<id>" for debits

	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ========================================
// Usage Records
// ========================================

// UsageStatus represents the lifecycle state of a usage record.
type UsageStatus string

const (
	UsageStatusCompleted UsageStatus = "completed"
	UsageStatusRefunded  UsageStatus = "refunded"
)

// UsageRecord captures one billable service invocation.
type UsageRecord struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"user_id"`
	AccountID          string      `json:"account_id"`
	ServiceName        string      `json:"service_name"`
	ServiceDescription string      `json:"service_description,omitempty"`
	BaseCost           float64     `json:"base_cost"`
	Multiplier         float64     `json:"multiplier"`
	ActualCharge       float64     `json:"actual_charge"`
	UsageData          string      `json:"usage_data,omitempty"` // JSON metadata blob
	ReferenceID        *string     `json:"reference_id,omitempty"`
	ProjectID          *string     `json:"project_id,omitempty"`
	TransactionID      *string     `json:"transaction_id,omitempty"`
	Status             UsageStatus `json:"status"`
	CreatedAt          time.Time   `json:"created_at"`
}

// UsageRecordWithProject joins a usage record with its project metadata.
type UsageRecordWithProject struct {
	UsageRecord
	ProjectName *string `json:"project_name,omitempty"`
	ProjectURL  *string `json:"project_url,omitempty"`
}

// UsageReceipt is returned after a successful charge.
type UsageReceipt struct {
	UsageID         string    `json:"usage_id"`
	TransactionID   string    `json:"transaction_id"`
	ServiceName     string    `json:"service_name"`
	BaseCost        float64   `json:"base_cost"`
	Multiplier      float64   `json:"multiplier"`
	ActualCharge    float64   `json:"actual_charge"`
	PreviousBalance float64   `json:"previous_balance"`
	NewBalance      float64   `json:"new_balance"`
	Timestamp       time.Time `json:"timestamp"`
}

// UsageSummary aggregates spend per service over a period.
type UsageSummary struct {
	ServiceName string  `json:"service_name"`
	CallCount   int     `json:"call_count"`
	TotalCharge float64 `json:"total_charge"`
}

// ========================================
// Cost Breakdown
// ========================================

// CostBreakdown itemizes an LLM usage charge before it hits the account.
type CostBreakdown struct {
	ModelName        string  `json:"model_name"`
	Provider         string  `json:"provider"`
	InputTokens      int     `json:"input_tokens"`
	OutputTokens     int     `json:"output_tokens"`
	ReasoningTokens  int     `json:"reasoning_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	InputCostUSD     float64 `json:"input_cost_usd"`
	OutputCostUSD    float64 `json:"output_cost_usd"`
	ReasoningCostUSD float64 `json:"reasoning_cost_usd"`
	BaseCostUSD      float64 `json:"base_cost_usd"`
	Multiplier       float64 `json:"markup_multiplier"`
	ActualChargeUSD  float64 `json:"actual_charge_usd"`
}

// ========================================
// Balance Validation
// ========================================

// BalanceValidation is the outcome of a pre-flight balance check.
// Valid=false carries the reason; the check itself never errors out
// towards the caller.
type BalanceValidation struct {
	Valid           bool       `json:"valid"`
	Error           string     `json:"error,omitempty"` // machine-readable reason
	Message         string     `json:"message,omitempty"`
	ServiceName     string     `json:"service_name,omitempty"`
	Description     string     `json:"description,omitempty"`
	RequiredBalance float64    `json:"required_balance,omitempty"`
	CurrentBalance  float64    `json:"current_balance"`
	Shortfall       float64    `json:"shortfall,omitempty"`
	NextRefillTime  *time.Time `json:"next_refill_time,omitempty"`
}

// PermissionCheck is the coarse feature-gate result used by the UI.
type PermissionCheck struct {
	Permission     bool       `json:"permission"`
	Message        string     `json:"message,omitempty"`
	CurrentBalance float64    `json:"current_balance"`
	NextRefillTime *time.Time `json:"next_refill_time,omitempty"`
}
