package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/quillforge/quillforge-api/internal/config"
	"github.com/quillforge/quillforge-api/internal/models"
	"github.com/quillforge/quillforge-api/internal/service"
)

// StripeWebhookHandler handles Stripe webhook events.
type StripeWebhookHandler struct {
	cfg        *config.Config
	balanceSvc *service.BalanceService
	logger     *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(cfg *config.Config, balanceSvc *service.BalanceService, logger *slog.Logger) *StripeWebhookHandler {
	stripe.Key = cfg.StripeSecretKey

	return &StripeWebhookHandler{
		cfg:        cfg,
		balanceSvc: balanceSvc,
		logger:     logger,
	}
}

// HandleWebhook processes incoming Stripe webhooks.
// This is a raw HTTP handler since huma doesn't handle raw body verification well.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.cfg.StripeWebhookSecret)
	if err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.handleEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
		// Return 200 to prevent Stripe from retrying; failures are logged
		// and surfaced through metrics.
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent routes events to appropriate handlers.
func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	h.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutComplete(ctx, event)

	case "charge.refunded":
		return h.handleChargeRefunded(ctx, event)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// handleCheckoutComplete credits a completed credit-pack purchase.
func (h *StripeWebhookHandler) handleCheckoutComplete(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		h.logger.Warn("checkout session missing user_id", "session_id", session.ID)
		return nil // not a credit purchase we can attribute
	}

	// Each checkout is a dollar-denominated credit top-up.
	credits := float64(session.AmountTotal) / 100
	if credits <= 0 {
		h.logger.Warn("checkout session with non-positive amount", "session_id", session.ID)
		return nil
	}

	paymentID := session.ID
	if session.PaymentIntent != nil {
		paymentID = session.PaymentIntent.ID
	}

	_, err := h.balanceSvc.CreditAccount(ctx, userID, credits,
		"Credit purchase via Stripe checkout", paymentID)
	if err != nil {
		if errors.Is(err, service.ErrDuplicatePayment) {
			h.logger.Info("duplicate checkout payment ignored", "payment_id", paymentID)
			return nil
		}
		return fmt.Errorf("failed to credit account: %w", err)
	}

	h.logger.Info("credited checkout purchase",
		"user_id", userID,
		"credits", credits,
		"payment_id", paymentID,
	)

	// Checkout collects the invoice contact; keep it on the account for
	// later invoicing. Never fails the already-credited payment.
	if details := billingDetailsFromSession(&session); details != nil {
		if err := h.balanceSvc.SaveBillingDetails(ctx, userID, *details); err != nil {
			h.logger.Warn("failed to store billing details", "user_id", userID, "error", err)
		}
	}
	return nil
}

// billingDetailsFromSession extracts the invoice contact Stripe collected
// during checkout, or nil when the session carries none.
func billingDetailsFromSession(session *stripe.CheckoutSession) *models.BillingDetails {
	cd := session.CustomerDetails
	if cd == nil {
		return nil
	}
	details := models.BillingDetails{
		Name:  cd.Name,
		Email: cd.Email,
	}
	if cd.Address != nil {
		details.Country = cd.Address.Country
	}
	if len(cd.TaxIDs) > 0 && cd.TaxIDs[0] != nil {
		details.TaxNumber = cd.TaxIDs[0].Value
	}
	if details == (models.BillingDetails{}) {
		return nil
	}
	return &details
}

// handleChargeRefunded claws back credits for a refunded charge.
func (h *StripeWebhookHandler) handleChargeRefunded(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("failed to unmarshal charge: %w", err)
	}

	userID := charge.Metadata["user_id"]
	if userID == "" {
		h.logger.Warn("refunded charge missing user_id", "charge_id", charge.ID)
		return nil
	}

	credits := float64(charge.AmountRefunded) / 100
	if credits <= 0 {
		return nil
	}

	_, err := h.balanceSvc.RefundCharge(ctx, userID, credits, charge.ID)
	if err != nil {
		if errors.Is(err, service.ErrDuplicatePayment) {
			h.logger.Info("duplicate refund ignored", "charge_id", charge.ID)
			return nil
		}
		return fmt.Errorf("failed to refund charge: %w", err)
	}

	h.logger.Info("refunded charge",
		"user_id", userID,
		"credits", credits,
		"charge_id", charge.ID,
	)
	return nil
}
