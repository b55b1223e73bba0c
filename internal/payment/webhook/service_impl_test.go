package webhook_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fanstage/fanstage/internal/clock"
	"github.com/fanstage/fanstage/internal/config"
	ledgerservice "github.com/fanstage/fanstage/internal/ledger/service"
	"github.com/fanstage/fanstage/internal/payment/adapters"
	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
	paymentrepo "github.com/fanstage/fanstage/internal/payment/repository"
	paymentservice "github.com/fanstage/fanstage/internal/payment/service"
	paymentwebhook "github.com/fanstage/fanstage/internal/payment/webhook"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// scriptedAdapter replays a fixed verification result so the dispatcher can
// be driven without wire payloads.
type scriptedAdapter struct {
	gateway   string
	event     *paymentdomain.WebhookEvent
	verifyErr error
}

func (a *scriptedAdapter) Gateway() string { return a.gateway }

func (a *scriptedAdapter) CreatePayment(_ context.Context, req paymentdomain.CreatePaymentRequest) (*paymentdomain.CreatePaymentResult, error) {
	return &paymentdomain.CreatePaymentResult{
		GatewayPaymentID: "gw-" + req.OrderID,
		ConfirmationURL:  "https://pay.example/" + req.OrderID,
	}, nil
}

func (a *scriptedAdapter) VerifyWebhook(context.Context, []byte, http.Header) (*paymentdomain.WebhookEvent, error) {
	if a.verifyErr != nil {
		return nil, a.verifyErr
	}
	return a.event, nil
}

func (a *scriptedAdapter) OrderRef([]byte) string {
	if a.event != nil {
		return a.event.OrderID
	}
	return ""
}

func (a *scriptedAdapter) ChargeRecurring(_ context.Context, req paymentdomain.RecurringChargeRequest) (*paymentdomain.CreatePaymentResult, error) {
	return &paymentdomain.CreatePaymentResult{GatewayPaymentID: "gw-rec-" + req.OrderID}, nil
}

type webhookEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	yookassa *scriptedAdapter
	svc      *paymentservice.Service
	hooks    *paymentwebhook.Service
}

var testEpoch = time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)

func setupWebhookEnv(t *testing.T, nodeID int64) *webhookEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_wh_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// SQLite shared-cache rejects concurrent writers; a single pooled
	// connection keeps the race test deterministic.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	schema := []string{
		`CREATE TABLE payment_sessions (
			order_id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			gateway TEXT NOT NULL,
			gateway_payment_id TEXT,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			type TEXT NOT NULL,
			description TEXT,
			metadata TEXT,
			save_payment_method BOOLEAN NOT NULL DEFAULT FALSE,
			saved_method_id BIGINT,
			confirmation_url TEXT,
			return_url TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		)`,
		`CREATE TABLE saved_payment_methods (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			gateway TEXT NOT NULL,
			token TEXT NOT NULL,
			title TEXT,
			created_at DATETIME NOT NULL,
			UNIQUE (user_id, gateway, token)
		)`,
		`CREATE TABLE webhook_logs (
			id BIGINT PRIMARY KEY,
			gateway TEXT NOT NULL,
			order_ref TEXT NOT NULL,
			payload TEXT,
			received_at DATETIME NOT NULL
		)`,
		`CREATE TABLE balances (
			user_id BIGINT PRIMARY KEY,
			available BIGINT NOT NULL DEFAULT 0,
			pending BIGINT NOT NULL DEFAULT 0,
			total BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE transactions (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			order_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			description TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE coin_balances (
			user_id BIGINT PRIMARY KEY,
			coins BIGINT NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE coin_transactions (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			order_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			coins BIGINT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE revenue_records (
			id BIGINT PRIMARY KEY,
			order_id TEXT NOT NULL UNIQUE,
			session_type TEXT NOT NULL,
			gross BIGINT NOT NULL,
			rate DOUBLE PRECISION NOT NULL,
			fee BIGINT NOT NULL,
			payout BIGINT NOT NULL,
			currency TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	commission, err := config.NewCommissionHolder()
	if err != nil {
		t.Fatalf("commission holder: %v", err)
	}

	yk := &scriptedAdapter{gateway: paymentdomain.GatewayYooKassa}
	tk := &scriptedAdapter{gateway: paymentdomain.GatewayTinkoff}
	factory := adapters.NewFactory(yk, tk)
	repo := paymentrepo.Provide()
	clk := clock.NewFakeClock(testEpoch)

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	svc := paymentservice.NewService(paymentservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Cfg:        config.Config{Currency: "RUB"},
		Commission: commission,
		Factory:    factory,
		LedgerSvc:  ledgerSvc,
		Repo:       repo,
		Clock:      clk,
	})
	hooks := paymentwebhook.NewService(paymentwebhook.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Factory: factory,
		Repo:    repo,
		Effects: svc,
		Clock:   clk,
	})

	return &webhookEnv{db: db, node: node, clk: clk, yookassa: yk, svc: svc, hooks: hooks}
}

func (env *webhookEnv) createPendingSession(t *testing.T, sessionType paymentdomain.SessionType, metadata map[string]string) string {
	t.Helper()
	result, err := env.svc.CreateSession(context.Background(), paymentdomain.CreateSessionRequest{
		UserID:    env.node.Generate(),
		Gateway:   "yookassa",
		Amount:    "250",
		Type:      sessionType,
		ReturnURL: "https://fanstage.example/return",
		Metadata:  metadata,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return result.OrderID
}

func TestIngestAppliesVerifiedEvent(t *testing.T) {
	ctx := context.Background()
	env := setupWebhookEnv(t, 30)
	orderID := env.createPendingSession(t, paymentdomain.SessionTypePurchase, nil)

	env.yookassa.event = &paymentdomain.WebhookEvent{
		OrderID: orderID,
		Event:   paymentdomain.EventSucceeded,
		Amount:  25000,
	}

	if err := env.hooks.Ingest(ctx, "yookassa", []byte(`{}`), nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	session, err := env.svc.GetSession(ctx, orderID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != paymentdomain.SessionStatusSucceeded {
		t.Fatalf("status = %q", session.Status)
	}

	var logs int64
	if err := env.db.Raw(`SELECT COUNT(*) FROM webhook_logs WHERE order_ref = ?`, orderID).Scan(&logs).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if logs != 1 {
		t.Fatalf("webhook logs = %d", logs)
	}

	var journal struct {
		ReceivedAt time.Time
	}
	if err := env.db.Raw(`SELECT received_at FROM webhook_logs WHERE order_ref = ?`, orderID).Scan(&journal).Error; err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if !journal.ReceivedAt.Equal(testEpoch) {
		t.Fatalf("received_at = %v, want %v", journal.ReceivedAt, testEpoch)
	}
}

func TestIngestDuplicateDeliveryIsAcked(t *testing.T) {
	ctx := context.Background()
	env := setupWebhookEnv(t, 31)
	orderID := env.createPendingSession(t, paymentdomain.SessionTypePurchase, nil)

	env.yookassa.event = &paymentdomain.WebhookEvent{
		OrderID: orderID,
		Event:   paymentdomain.EventSucceeded,
		Amount:  25000,
	}

	if err := env.hooks.Ingest(ctx, "yookassa", []byte(`{}`), nil); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := env.hooks.Ingest(ctx, "yookassa", []byte(`{}`), nil); err != nil {
		t.Fatalf("duplicate delivery must ack: %v", err)
	}

	var txCount int64
	if err := env.db.Raw(`SELECT COUNT(*) FROM transactions WHERE order_id = ?`, orderID).Scan(&txCount).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if txCount != 1 {
		t.Fatalf("duplicate delivery wrote %d transactions", txCount)
	}
}

func TestIngestConcurrentDuplicatesApplyOnce(t *testing.T) {
	ctx := context.Background()
	env := setupWebhookEnv(t, 32)
	orderID := env.createPendingSession(t, paymentdomain.SessionTypePurchase, nil)

	event := &paymentdomain.WebhookEvent{
		OrderID: orderID,
		Event:   paymentdomain.EventSucceeded,
		Amount:  25000,
	}

	// Both goroutines read the same pending session, then race for the
	// conditional status transition. Exactly one applies effects.
	session, err := env.svc.GetSession(ctx, orderID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			copied := *session
			errCh <- env.svc.ProcessEvent(ctx, &copied, event)
		}()
	}

	var applied, duplicates int
	for i := 0; i < 2; i++ {
		switch err := <-errCh; err {
		case nil:
			applied++
		case paymentdomain.ErrAlreadyProcessed:
			duplicates++
		default:
			t.Fatalf("process event: %v", err)
		}
	}
	if applied != 1 || duplicates != 1 {
		t.Fatalf("applied = %d, duplicates = %d", applied, duplicates)
	}

	var txCount int64
	if err := env.db.Raw(`SELECT COUNT(*) FROM transactions WHERE order_id = ?`, orderID).Scan(&txCount).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if txCount != 1 {
		t.Fatalf("race wrote %d transactions", txCount)
	}
}

func TestIngestUnknownOrderIsAcked(t *testing.T) {
	ctx := context.Background()
	env := setupWebhookEnv(t, 33)

	env.yookassa.event = &paymentdomain.WebhookEvent{
		OrderID: "never-created",
		Event:   paymentdomain.EventSucceeded,
		Amount:  100,
	}

	if err := env.hooks.Ingest(ctx, "yookassa", []byte(`{}`), nil); err != nil {
		t.Fatalf("unknown order must ack: %v", err)
	}

	var txCount int64
	if err := env.db.Raw(`SELECT COUNT(*) FROM transactions`).Scan(&txCount).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if txCount != 0 {
		t.Fatalf("unknown order wrote %d transactions", txCount)
	}
}

func TestIngestForgedCallbackIsAcked(t *testing.T) {
	ctx := context.Background()
	env := setupWebhookEnv(t, 34)
	orderID := env.createPendingSession(t, paymentdomain.SessionTypePurchase, nil)

	env.yookassa.verifyErr = paymentdomain.ErrVerificationFailed

	if err := env.hooks.Ingest(ctx, "yookassa", []byte(`{}`), nil); err != nil {
		t.Fatalf("forged callback must ack: %v", err)
	}

	session, err := env.svc.GetSession(ctx, orderID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != paymentdomain.SessionStatusPending {
		t.Fatalf("forged callback changed status to %q", session.Status)
	}
}

func TestIngestUnsupportedGateway(t *testing.T) {
	env := setupWebhookEnv(t, 35)
	if err := env.hooks.Ingest(context.Background(), "paypal", []byte(`{}`), nil); err != paymentdomain.ErrUnsupportedGateway {
		t.Fatalf("err = %v, want ErrUnsupportedGateway", err)
	}
}
