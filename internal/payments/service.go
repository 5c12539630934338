package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/internal/orders"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/logger"
	"github.com/veloshop/storefront-backend/pkg/metrics"
	"github.com/veloshop/storefront-backend/pkg/square"
)

// Square payment states we act on.
const (
	paymentStatusCompleted = "COMPLETED"
	paymentStatusCanceled  = "CANCELED"
	paymentStatusFailed    = "FAILED"
)

type gateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error)
	LocationID() string
	SigningSecret() string
}

// InitiateRequest starts a card payment for an order the caller owns.
type InitiateRequest struct {
	OrderID  uuid.UUID `json:"order_id" validate:"required"`
	SourceID string    `json:"source_id" validate:"required,max=255"`
}

// RefundRequest is the staff payload for refunding a captured payment.
type RefundRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=255"`
}

// Service drives the payment lifecycle against the Square gateway.
type Service interface {
	Initiate(ctx context.Context, userID uuid.UUID, req InitiateRequest) (*models.Order, error)
	HandleWebhook(ctx context.Context, signature, notificationURL string, body []byte) error
	Refund(ctx context.Context, actorID, orderID uuid.UUID, req RefundRequest) (*models.Order, error)
}

type service struct {
	repo    orders.Repository
	gateway gateway
	logger  *logger.Logger
	metrics *metrics.CheckoutMetrics
}

// ServiceParams carries the payment service dependencies.
type ServiceParams struct {
	Repo    orders.Repository
	Gateway gateway
	Logger  *logger.Logger
	Metrics *metrics.CheckoutMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		gateway: params.Gateway,
		logger:  params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Initiate charges the order total through Square. The conversation id is
// persisted before the gateway is called so a crash mid-charge still leaves
// a handle the webhook can reconcile against.
func (s *service) Initiate(ctx context.Context, userID uuid.UUID, req InitiateRequest) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus != enums.PaymentStatusPending && order.PaymentStatus != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order payment is %s and cannot be charged", order.PaymentStatus))
	}
	if order.TotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order total is not chargeable")
	}

	conversationID := uuid.NewString()
	if err := s.repo.Update(ctx, order.ID, map[string]any{"conversation_id": conversationID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist conversation id")
	}
	order.ConversationID = &conversationID

	payment, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents: int64(order.TotalCents),
		Currency:    order.Currency,
		LocationID:  s.gateway.LocationID(),
		SourceID:    req.SourceID,
		ReferenceID: conversationID,
		Note:        order.OrderNumber,
	})
	if err != nil {
		// A gateway error says nothing about whether the charge landed;
		// the payment status is only moved on an authoritative gateway
		// status, so the order stays in its last consistent state and the
		// persisted conversation id lets the webhook reconcile it.
		s.logger.Error(ctx, "create payment", err)
		return nil, err
	}

	updates := map[string]any{}
	if id := payment.GetID(); id != nil {
		updates["gateway_payment_id"] = *id
		order.GatewayPaymentID = id
	}
	if status := payment.GetStatus(); status != nil && *status == paymentStatusCompleted {
		updates["payment_status"] = enums.PaymentStatusPaid
		order.PaymentStatus = enums.PaymentStatusPaid
		if order.Status == enums.OrderStatusPending {
			updates["status"] = enums.OrderStatusProcessing
			order.Status = enums.OrderStatusProcessing
		}
	}
	if err := s.repo.Update(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment result")
	}
	return order, nil
}

// webhookEvent is the subset of the Square event envelope we consume.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			Payment struct {
				ID          string `json:"id"`
				Status      string `json:"status"`
				ReferenceID string `json:"reference_id"`
				AmountMoney struct {
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
				} `json:"amount_money"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// HandleWebhook reconciles a Square payment event with the matching order.
// The event payload is treated as a hint only: the payment is re-fetched from
// the gateway before any money-state transition is recorded.
func (s *service) HandleWebhook(ctx context.Context, signature, notificationURL string, body []byte) error {
	if !s.verifySignature(signature, notificationURL, body) {
		s.countWebhook("invalid_signature")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.countWebhook("malformed")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse webhook payload")
	}
	if event.Type != "payment.updated" && event.Type != "payment.created" {
		s.countWebhook("ignored")
		return nil
	}

	hint := event.Data.Object.Payment
	if hint.ReferenceID == "" || hint.ID == "" {
		s.countWebhook("malformed")
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payment missing reference")
	}

	order, err := s.repo.FindByConversationID(ctx, hint.ReferenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.countWebhook("unknown_order")
			return pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment reference")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		s.countWebhook("duplicate")
		return nil
	}

	payment, err := s.gateway.GetPayment(ctx, hint.ID)
	if err != nil {
		s.countWebhook("requery_failed")
		return err
	}

	amount, currency := paymentMoney(payment)
	if amount != int64(order.TotalCents) || !strings.EqualFold(currency, order.Currency) {
		s.countWebhook("amount_mismatch")
		if err := s.repo.Update(ctx, order.ID, map[string]any{"payment_status": enums.PaymentStatusFailed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment failed")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment amount does not match order").
			WithDetails(map[string]any{
				"expected": order.TotalCents,
				"received": amount,
			})
	}

	status := ""
	if ptr := payment.GetStatus(); ptr != nil {
		status = *ptr
	}
	switch status {
	case paymentStatusCompleted:
		updates := map[string]any{
			"payment_status":     enums.PaymentStatusPaid,
			"gateway_payment_id": hint.ID,
		}
		if order.Status == enums.OrderStatusPending {
			updates["status"] = enums.OrderStatusProcessing
		}
		if err := s.repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		s.countWebhook("paid")
	case paymentStatusCanceled, paymentStatusFailed:
		if err := s.repo.Update(ctx, order.ID, map[string]any{"payment_status": enums.PaymentStatusFailed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment failed")
		}
		s.countWebhook("failed")
	default:
		s.countWebhook("pending")
	}
	return nil
}

// Refund pushes a full refund through the gateway and records it.
func (s *service) Refund(ctx context.Context, actorID, orderID uuid.UUID, req RefundRequest) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order payment is %s and cannot be refunded", order.PaymentStatus))
	}
	if order.GatewayPaymentID == nil || *order.GatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no captured payment")
	}

	_, err = s.gateway.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:   *order.GatewayPaymentID,
		AmountCents: int64(order.TotalCents),
		Currency:    order.Currency,
		Reason:      req.Reason,
	})
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"payment_status": enums.PaymentStatusRefunded,
		"status":         enums.OrderStatusRefunded,
	}
	if err := s.repo.Update(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record refund")
	}

	if err := s.repo.CreateSalesLog(ctx, &models.SalesLog{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ActorID:        actorID,
		PreviousStatus: order.Status,
		NewStatus:      enums.OrderStatusRefunded,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record status change")
	}

	order.PaymentStatus = enums.PaymentStatusRefunded
	order.Status = enums.OrderStatusRefunded
	return order, nil
}

// verifySignature checks the Square webhook HMAC: base64 of HMAC-SHA256 over
// the notification URL concatenated with the raw body.
func (s *service) verifySignature(signature, notificationURL string, body []byte) bool {
	secret := s.gateway.SigningSecret()
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *service) countWebhook(result string) {
	if s.metrics != nil {
		s.metrics.IncWebhook(result)
	}
}

func paymentMoney(payment *sq.Payment) (int64, string) {
	money := payment.GetAmountMoney()
	if money == nil {
		return 0, ""
	}
	amount := int64(0)
	if money.Amount != nil {
		amount = *money.Amount
	}
	currency := ""
	if money.Currency != nil {
		currency = string(*money.Currency)
	}
	return amount, currency
}
