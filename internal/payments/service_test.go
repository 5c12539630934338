package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/internal/orders"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	"github.com/veloshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/logger"
	"github.com/veloshop/storefront-backend/pkg/pagination"
	"github.com/veloshop/storefront-backend/pkg/square"
)

const (
	testSecret = "whsec-test"
	testURL    = "https://veloshop.test/webhooks/square"
)

type fakeOrderRepo struct {
	orders  map[uuid.UUID]*models.Order
	updates []map[string]any
	logs    []*models.SalesLog
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrderRepo) WithTx(_ *gorm.DB) orders.Repository { return f }

func (f *fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) CreateItems(_ context.Context, _ []models.OrderItem) error { return nil }

func (f *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderRepo) FindByConversationID(_ context.Context, conversationID string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.ConversationID != nil && *order.ConversationID == conversationID {
			copied := *order
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrderRepo) ListByUser(_ context.Context, _ uuid.UUID, _ pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (f *fakeOrderRepo) ListAll(_ context.Context, _ pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (f *fakeOrderRepo) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	f.updates = append(f.updates, updates)
	order := f.orders[id]
	if v, ok := updates["conversation_id"].(string); ok {
		order.ConversationID = &v
	}
	if v, ok := updates["gateway_payment_id"].(string); ok {
		order.GatewayPaymentID = &v
	}
	if v, ok := updates["payment_status"].(enums.PaymentStatus); ok {
		order.PaymentStatus = v
	}
	if v, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = v
	}
	return nil
}

func (f *fakeOrderRepo) CreateSalesLog(_ context.Context, log *models.SalesLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeOrderRepo) ListSalesLogs(_ context.Context, _ uuid.UUID) ([]models.SalesLog, error) {
	return nil, nil
}

type fakeGateway struct {
	payment       *sq.Payment
	createErr     error
	created       []square.PaymentCreateParams
	refunded      []square.RefundCreateParams
	conversations []string
	onCreate      func()
}

func (f *fakeGateway) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	f.created = append(f.created, params)
	f.conversations = append(f.conversations, params.ReferenceID)
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.payment, nil
}

func (f *fakeGateway) GetPayment(_ context.Context, _ string) (*sq.Payment, error) {
	return f.payment, nil
}

func (f *fakeGateway) RefundPayment(_ context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error) {
	f.refunded = append(f.refunded, params)
	status := "COMPLETED"
	return &sq.PaymentRefund{Status: &status}, nil
}

func (f *fakeGateway) LocationID() string { return "LOC-1" }

func (f *fakeGateway) SigningSecret() string { return testSecret }

func squarePayment(id, status string, amount int64, currency string) *sq.Payment {
	cur := sq.Currency(currency)
	return &sq.Payment{
		ID:     &id,
		Status: &status,
		AmountMoney: &sq.Money{
			Amount:   &amount,
			Currency: &cur,
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func newService(t *testing.T, repo *fakeOrderRepo, gw *fakeGateway) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Gateway: gw, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new payments service: %v", err)
	}
	return svc
}

func seedOrder(repo *fakeOrderRepo, userID uuid.UUID, total int) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "VS-20260830-0001",
		UserID:        userID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		Currency:      "USD",
		TotalCents:    total,
	}
	repo.orders[order.ID] = order
	return order
}

func sign(url string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(url))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func paymentEvent(paymentID, status, referenceID string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"payment.updated","data":{"object":{"payment":{"id":%q,"status":%q,"reference_id":%q,"amount_money":{"amount":%d,"currency":"USD"}}}}}`,
		paymentID, status, referenceID, amount,
	))
}

func TestInitiatePersistsConversationIDBeforeGatewayCall(t *testing.T) {
	repo := newFakeOrderRepo()
	userID := uuid.New()
	order := seedOrder(repo, userID, 9000)

	gw := &fakeGateway{payment: squarePayment("PAY-1", "COMPLETED", 9000, "USD")}
	var conversationAtCall *string
	gw.onCreate = func() {
		if repo.orders[order.ID].ConversationID != nil {
			v := *repo.orders[order.ID].ConversationID
			conversationAtCall = &v
		}
	}

	svc := newService(t, repo, gw)
	updated, err := svc.Initiate(context.Background(), userID, InitiateRequest{OrderID: order.ID, SourceID: "cnon:ok"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if conversationAtCall == nil {
		t.Fatal("conversation id must be persisted before the gateway call")
	}
	if len(gw.conversations) != 1 || gw.conversations[0] != *conversationAtCall {
		t.Fatalf("gateway reference %v does not match stored conversation id %s", gw.conversations, *conversationAtCall)
	}
	if updated.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected completed charge to mark paid, got %s", updated.PaymentStatus)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected paid order to move to processing, got %s", updated.Status)
	}
	if updated.GatewayPaymentID == nil || *updated.GatewayPaymentID != "PAY-1" {
		t.Fatalf("expected gateway payment id recorded, got %v", updated.GatewayPaymentID)
	}
}

func TestInitiateGatewayErrorLeavesPaymentStatus(t *testing.T) {
	repo := newFakeOrderRepo()
	userID := uuid.New()
	order := seedOrder(repo, userID, 9000)

	gw := &fakeGateway{createErr: pkgerrors.New(pkgerrors.CodeDependency, "square create payment failed")}
	svc := newService(t, repo, gw)

	_, err := svc.Initiate(context.Background(), userID, InitiateRequest{OrderID: order.ID, SourceID: "cnon:bad"})
	if err == nil {
		t.Fatal("expected gateway error")
	}
	// An unreachable gateway does not mean the charge failed; only an
	// authoritative gateway status may move the payment status.
	if repo.orders[order.ID].PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected payment status untouched, got %s", repo.orders[order.ID].PaymentStatus)
	}
	if repo.orders[order.ID].ConversationID == nil {
		t.Fatal("expected conversation id persisted for later reconciliation")
	}
}

func TestInitiateForeignOrderHidden(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(repo, uuid.New(), 9000)

	svc := newService(t, repo, &fakeGateway{})
	_, err := svc.Initiate(context.Background(), uuid.New(), InitiateRequest{OrderID: order.ID, SourceID: "cnon:ok"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign order, got %v", err)
	}
}

func TestInitiateAlreadyPaidRejected(t *testing.T) {
	repo := newFakeOrderRepo()
	userID := uuid.New()
	order := seedOrder(repo, userID, 9000)
	order.PaymentStatus = enums.PaymentStatusPaid

	svc := newService(t, repo, &fakeGateway{})
	_, err := svc.Initiate(context.Background(), userID, InitiateRequest{OrderID: order.ID, SourceID: "cnon:ok"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestWebhookMarksOrderPaid(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(repo, uuid.New(), 9000)
	conversationID := uuid.NewString()
	order.ConversationID = &conversationID

	gw := &fakeGateway{payment: squarePayment("PAY-1", "COMPLETED", 9000, "USD")}
	svc := newService(t, repo, gw)

	body := paymentEvent("PAY-1", "COMPLETED", conversationID, 9000)
	if err := svc.HandleWebhook(context.Background(), sign(testURL, body), testURL, body); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	stored := repo.orders[order.ID]
	if stored.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", stored.PaymentStatus)
	}
	if stored.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", stored.Status)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newService(t, repo, &fakeGateway{})

	body := paymentEvent("PAY-1", "COMPLETED", uuid.NewString(), 9000)
	err := svc.HandleWebhook(context.Background(), "not-a-signature", testURL, body)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(repo.updates) != 0 {
		t.Fatal("no order may change on a forged webhook")
	}
}

func TestWebhookAmountMismatchMarksFailed(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(repo, uuid.New(), 9000)
	conversationID := uuid.NewString()
	order.ConversationID = &conversationID

	// The gateway's authoritative amount disagrees with the order total.
	gw := &fakeGateway{payment: squarePayment("PAY-1", "COMPLETED", 100, "USD")}
	svc := newService(t, repo, gw)

	body := paymentEvent("PAY-1", "COMPLETED", conversationID, 9000)
	err := svc.HandleWebhook(context.Background(), sign(testURL, body), testURL, body)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.orders[order.ID].PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment status, got %s", repo.orders[order.ID].PaymentStatus)
	}
}

func TestWebhookTrustsRequeryOverPayload(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(repo, uuid.New(), 9000)
	conversationID := uuid.NewString()
	order.ConversationID = &conversationID

	// The event claims COMPLETED but the gateway re-query says FAILED.
	gw := &fakeGateway{payment: squarePayment("PAY-1", "FAILED", 9000, "USD")}
	svc := newService(t, repo, gw)

	body := paymentEvent("PAY-1", "COMPLETED", conversationID, 9000)
	if err := svc.HandleWebhook(context.Background(), sign(testURL, body), testURL, body); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if repo.orders[order.ID].PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed per the gateway, got %s", repo.orders[order.ID].PaymentStatus)
	}
}

func TestWebhookDuplicateIsIdempotent(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(repo, uuid.New(), 9000)
	conversationID := uuid.NewString()
	order.ConversationID = &conversationID
	order.PaymentStatus = enums.PaymentStatusPaid

	svc := newService(t, repo, &fakeGateway{})
	body := paymentEvent("PAY-1", "COMPLETED", conversationID, 9000)
	if err := svc.HandleWebhook(context.Background(), sign(testURL, body), testURL, body); err != nil {
		t.Fatalf("duplicate webhook must succeed, got %v", err)
	}
	if len(repo.updates) != 0 {
		t.Fatal("duplicate webhook must not touch the order")
	}
}

func TestRefundPaidOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(repo, uuid.New(), 9000)
	order.PaymentStatus = enums.PaymentStatusPaid
	order.Status = enums.OrderStatusDelivered
	paymentID := "PAY-1"
	order.GatewayPaymentID = &paymentID

	gw := &fakeGateway{}
	svc := newService(t, repo, gw)

	updated, err := svc.Refund(context.Background(), uuid.New(), order.ID, RefundRequest{Reason: "damaged"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if updated.PaymentStatus != enums.PaymentStatusRefunded || updated.Status != enums.OrderStatusRefunded {
		t.Fatalf("expected refunded order, got %s/%s", updated.Status, updated.PaymentStatus)
	}
	if len(gw.refunded) != 1 || gw.refunded[0].PaymentID != "PAY-1" || gw.refunded[0].AmountCents != 9000 {
		t.Fatalf("unexpected refund call %+v", gw.refunded)
	}
	if len(repo.logs) != 1 || repo.logs[0].NewStatus != enums.OrderStatusRefunded {
		t.Fatalf("expected refund sales log, got %+v", repo.logs)
	}
}

func TestRefundUnpaidOrderRejected(t *testing.T) {
	repo := newFakeOrderRepo()
	order := seedOrder(repo, uuid.New(), 9000)

	svc := newService(t, repo, &fakeGateway{})
	_, err := svc.Refund(context.Background(), uuid.New(), order.ID, RefundRequest{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
