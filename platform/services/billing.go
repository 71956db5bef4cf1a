package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pixeltrain/platform/auth"
	"pixeltrain/platform/schema"
	"pixeltrain/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/gorm"
)

// BillingService manages prepaid credit balances. Users buy credits through
// a Stripe checkout session; the balance is credited only by the signed
// Stripe webhook, never by the redirect back from checkout.
type BillingService struct {
	db        *gorm.DB
	userAuth  auth.IdentityProvider
	variables Variables
}

func (s *BillingService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/checkout", s.CreateCheckout)
		r.Get("/payments", s.ListPayments)
		r.Get("/balance", s.Balance)
	})

	// Authenticated by the Stripe signature header, not a user session.
	r.Post("/webhook", s.StripeWebhook)

	return r
}

const (
	minTopUpCents = int64(500)
	maxTopUpCents = int64(100000)
)

type checkoutRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type checkoutResponse struct {
	SessionId   string `json:"session_id"`
	CheckoutUrl string `json:"checkout_url"`
}

func (s *BillingService) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params checkoutRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.AmountCents < minTopUpCents || params.AmountCents > maxTopUpCents {
		http.Error(w, fmt.Sprintf("amount_cents must be between %d and %d", minTopUpCents, maxTopUpCents), http.StatusUnprocessableEntity)
		return
	}

	stripe.Key = s.variables.StripeSecretKey

	checkoutParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("usd"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Training credits"),
				},
				UnitAmount: stripe.Int64(params.AmountCents),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(s.variables.CheckoutSuccessUrl),
		CancelURL:  stripe.String(s.variables.CheckoutCancelUrl),
		Metadata: map[string]string{
			"user_id":      user.Id.String(),
			"amount_cents": strconv.FormatInt(params.AmountCents, 10),
		},
	}

	checkoutSession, err := session.New(checkoutParams)
	if err != nil {
		slog.Error("error creating checkout session", "user_id", user.Id, "error", err)
		http.Error(w, "error creating checkout session", http.StatusBadGateway)
		return
	}

	utils.WriteJsonResponse(w, checkoutResponse{SessionId: checkoutSession.ID, CheckoutUrl: checkoutSession.URL})
}

// StripeWebhook credits a user's balance when a checkout session completes.
// The payment row is keyed on the session id, making replayed webhook
// deliveries idempotent.
func (s *BillingService) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "error reading webhook payload", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.variables.StripeWebhookSecret)
	if err != nil {
		slog.Warn("rejected stripe webhook with invalid signature", "error", err)
		http.Error(w, "invalid webhook signature", http.StatusUnauthorized)
		return
	}

	if event.Type != "checkout.session.completed" {
		slog.Info("ignoring stripe event", "type", event.Type)
		utils.WriteSuccess(w)
		return
	}

	var checkoutSession stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
		http.Error(w, fmt.Sprintf("error parsing checkout session: %v", err), http.StatusBadRequest)
		return
	}

	userId, err := uuid.Parse(checkoutSession.Metadata["user_id"])
	if err != nil {
		http.Error(w, "missing or invalid user_id in session metadata", http.StatusBadRequest)
		return
	}

	amountCents, err := strconv.ParseInt(checkoutSession.Metadata["amount_cents"], 10, 64)
	if err != nil || amountCents <= 0 {
		http.Error(w, "missing or invalid amount_cents in session metadata", http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Payment
		result := txn.Limit(1).Find(&existing, "session_id = ?", checkoutSession.ID)
		if result.Error != nil {
			slog.Error("sql error checking for existing payment", "session_id", checkoutSession.ID, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			slog.Info("payment already recorded, skipping", "session_id", checkoutSession.ID)
			return nil
		}

		if _, err := schema.GetUser(userId, txn); err != nil {
			return err
		}

		payment := schema.Payment{
			Id:          uuid.New(),
			SessionId:   checkoutSession.ID,
			AmountCents: amountCents,
			Status:      "completed",
			CreatedAt:   time.Now(),
			UserId:      userId,
		}
		if result := txn.Create(&payment); result.Error != nil {
			slog.Error("sql error creating payment", "session_id", checkoutSession.ID, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		result = txn.Model(&schema.User{}).Where("id = ?", userId).
			Update("balance_cents", gorm.Expr("balance_cents + ?", amountCents))
		if result.Error != nil {
			slog.Error("sql error crediting balance", "user_id", userId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error recording payment: %v", err), http.StatusInternalServerError)
		return
	}

	slog.Info("credited balance from checkout session", "user_id", userId, "amount_cents", amountCents)

	utils.WriteSuccess(w)
}

type paymentInfo struct {
	PaymentId   uuid.UUID `json:"payment_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type listPaymentsResponse struct {
	Payments []paymentInfo `json:"payments"`
}

func (s *BillingService) ListPayments(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var payments []schema.Payment
	result := s.db.Order("created_at desc").Find(&payments, "user_id = ?", user.Id)
	if result.Error != nil {
		slog.Error("sql error listing payments", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing payments: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]paymentInfo, 0, len(payments))
	for _, payment := range payments {
		infos = append(infos, paymentInfo{
			PaymentId:   payment.Id,
			AmountCents: payment.AmountCents,
			Status:      payment.Status,
			CreatedAt:   payment.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, listPaymentsResponse{Payments: infos})
}

type balanceResponse struct {
	BalanceCents int64 `json:"balance_cents"`
}

func (s *BillingService) Balance(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	// Reload so the response reflects credits applied after login.
	current, err := schema.GetUser(user.Id, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading balance: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, balanceResponse{BalanceCents: current.BalanceCents})
}
