package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fanstage/fanstage/internal/clock"
	"github.com/fanstage/fanstage/internal/config"
	ledgerdomain "github.com/fanstage/fanstage/internal/ledger/domain"
	obsmetrics "github.com/fanstage/fanstage/internal/observability/metrics"
	"github.com/fanstage/fanstage/internal/payment/adapters"
	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
	"github.com/fanstage/fanstage/internal/providers/pdf"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Commission *config.CommissionHolder
	Factory    *adapters.Factory
	LedgerSvc  ledgerdomain.Service
	Repo       paymentdomain.Repository
	Clock      clock.Clock
	Metrics    *obsmetrics.PaymentMetrics `optional:"true"`
	Receipts   pdf.Provider               `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	cfg        config.Config
	commission *config.CommissionHolder
	factory    *adapters.Factory
	ledgerSvc  ledgerdomain.Service
	repo       paymentdomain.Repository
	clock      clock.Clock
	metrics    *obsmetrics.PaymentMetrics
	receipts   pdf.Provider
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		cfg:        p.Cfg,
		commission: p.Commission,
		factory:    p.Factory,
		ledgerSvc:  p.LedgerSvc,
		repo:       p.Repo,
		clock:      p.Clock,
		metrics:    p.Metrics,
		receipts:   p.Receipts,
	}
}

// CreateSession validates the checkout request, opens the payment at the
// selected gateway and persists the pending session. Validation failures
// reject the request before any gateway call is made.
func (s *Service) CreateSession(ctx context.Context, req paymentdomain.CreateSessionRequest) (*paymentdomain.CreateSessionResult, error) {
	gateway := strings.ToLower(strings.TrimSpace(req.Gateway))
	adapter, err := s.factory.Adapter(gateway)
	if err != nil {
		return nil, err
	}

	amount, err := paymentdomain.ParseAmount(req.Amount)
	if err != nil || amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if !paymentdomain.ValidSessionType(req.Type) {
		return nil, paymentdomain.ErrUnsupportedType
	}
	if strings.TrimSpace(req.ReturnURL) == "" {
		return nil, paymentdomain.ErrMissingReturnURL
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.Currency
	}

	// Order ids are orchestrator-assigned, never caller-supplied.
	orderID := uuid.NewString()

	created, err := adapter.CreatePayment(ctx, paymentdomain.CreatePaymentRequest{
		OrderID:           orderID,
		UserID:            req.UserID,
		Amount:            amount,
		Currency:          currency,
		Description:       req.Description,
		ReturnURL:         req.ReturnURL,
		Metadata:          req.Metadata,
		SavePaymentMethod: req.SavePaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	session := &paymentdomain.PaymentSession{
		OrderID:           orderID,
		UserID:            req.UserID,
		Gateway:           gateway,
		GatewayPaymentID:  created.GatewayPaymentID,
		Amount:            amount,
		Currency:          currency,
		Status:            paymentdomain.SessionStatusPending,
		Type:              req.Type,
		Description:       req.Description,
		Metadata:          metadataMap(req.Metadata),
		SavePaymentMethod: req.SavePaymentMethod,
		ConfirmationURL:   created.ConfirmationURL,
		ReturnURL:         req.ReturnURL,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.repo.InsertSession(ctx, s.db, session); err != nil {
		s.log.Error("session persist failed after gateway create",
			zap.String("order_id", orderID),
			zap.String("gateway", gateway),
			zap.Error(err),
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.WithLabelValues(gateway, string(req.Type)).Inc()
	}

	return &paymentdomain.CreateSessionResult{
		OrderID:         orderID,
		Gateway:         gateway,
		ConfirmationURL: created.ConfirmationURL,
		Status:          paymentdomain.SessionStatusPending,
	}, nil
}

// GetSession reads the persisted projection. The gateway is never queried
// here: webhooks are the single source of truth for status, polling only
// observes what they already recorded.
func (s *Service) GetSession(ctx context.Context, orderID string) (*paymentdomain.PaymentSession, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, paymentdomain.ErrSessionNotFound
	}
	session, err := s.repo.FindSession(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, paymentdomain.ErrSessionNotFound
	}
	return session, nil
}

// ChargeSavedMethod charges a saved method token with the payer off-session.
// The charge settles like any other session: through a verified webhook.
func (s *Service) ChargeSavedMethod(ctx context.Context, req paymentdomain.RecurringRequest) (*paymentdomain.CreateSessionResult, error) {
	amount, err := paymentdomain.ParseAmount(req.Amount)
	if err != nil || amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if !paymentdomain.ValidSessionType(req.Type) {
		return nil, paymentdomain.ErrUnsupportedType
	}

	method, err := s.repo.FindSavedMethod(ctx, s.db, req.UserID, req.MethodID)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, paymentdomain.ErrMethodNotFound
	}

	adapter, err := s.factory.Adapter(method.Gateway)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.Currency
	}
	orderID := uuid.NewString()

	charged, err := adapter.ChargeRecurring(ctx, paymentdomain.RecurringChargeRequest{
		OrderID:     orderID,
		UserID:      req.UserID,
		Amount:      amount,
		Currency:    currency,
		Description: req.Description,
		MethodToken: method.Token,
	})
	if err != nil {
		return nil, err
	}

	methodID := method.ID
	session := &paymentdomain.PaymentSession{
		OrderID:          orderID,
		UserID:           req.UserID,
		Gateway:          method.Gateway,
		GatewayPaymentID: charged.GatewayPaymentID,
		Amount:           amount,
		Currency:         currency,
		Status:           paymentdomain.SessionStatusPending,
		Type:             req.Type,
		Description:      req.Description,
		Metadata:         metadataMap(req.Metadata),
		SavedMethodID:    &methodID,
		ReturnURL:        "-",
		CreatedAt:        s.clock.Now(),
	}
	if err := s.repo.InsertSession(ctx, s.db, session); err != nil {
		s.log.Error("session persist failed after recurring charge",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionsCreated.WithLabelValues(method.Gateway, string(req.Type)).Inc()
	}

	return &paymentdomain.CreateSessionResult{
		OrderID: orderID,
		Gateway: method.Gateway,
		Status:  paymentdomain.SessionStatusPending,
	}, nil
}

func (s *Service) ListSavedMethods(ctx context.Context, userID snowflake.ID) ([]paymentdomain.SavedPaymentMethod, error) {
	return s.repo.ListSavedMethods(ctx, s.db, userID)
}

func (s *Service) DeleteSavedMethod(ctx context.Context, userID snowflake.ID, methodID snowflake.ID) error {
	deleted, err := s.repo.DeleteSavedMethod(ctx, s.db, userID, methodID)
	if err != nil {
		return err
	}
	if !deleted {
		return paymentdomain.ErrMethodNotFound
	}
	return nil
}

func metadataMap(metadata map[string]string) datatypes.JSONMap {
	if len(metadata) == 0 {
		return datatypes.JSONMap{}
	}
	out := datatypes.JSONMap{}
	for key, value := range metadata {
		out[key] = value
	}
	return out
}
