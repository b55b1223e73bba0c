package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fanstage/fanstage/internal/clock"
	"github.com/fanstage/fanstage/internal/locker"
	obsmetrics "github.com/fanstage/fanstage/internal/observability/metrics"
	"github.com/fanstage/fanstage/internal/payment/adapters"
	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
	paymentservice "github.com/fanstage/fanstage/internal/payment/service"
)

const orderLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Factory *adapters.Factory
	Repo    paymentdomain.Repository
	Effects *paymentservice.Service
	Clock   clock.Clock
	Locker  *locker.Locker             `optional:"true"`
	Metrics *obsmetrics.PaymentMetrics `optional:"true"`
}

// Service receives raw gateway deliveries and drives them through
// verification, ordering and effect application.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	factory *adapters.Factory
	repo    paymentdomain.Repository
	effects *paymentservice.Service
	clock   clock.Clock
	locker  *locker.Locker
	metrics *obsmetrics.PaymentMetrics
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.webhook"),
		genID:   p.GenID,
		factory: p.Factory,
		repo:    p.Repo,
		effects: p.Effects,
		clock:   p.Clock,
		locker:  p.Locker,
		metrics: p.Metrics,
	}
}

var _ paymentdomain.WebhookService = (*Service)(nil)

// Ingest handles one raw webhook delivery. A nil return means the delivery
// was fully handled and the gateway should be acked; a non-nil return means
// a transient failure and the gateway should redeliver.
func (s *Service) Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error {
	adapter, err := s.factory.Adapter(gateway)
	if err != nil {
		return err
	}

	// Every delivery is journaled before verification so forged or malformed
	// payloads still leave an audit trail.
	orderRef := adapter.OrderRef(payload)
	if err := s.repo.InsertWebhookLog(ctx, s.db, &paymentdomain.WebhookLog{
		ID:         s.genID.Generate(),
		Gateway:    gateway,
		OrderRef:   orderRef,
		Payload:    datatypes.JSON(payload),
		ReceivedAt: s.clock.Now(),
	}); err != nil {
		s.log.Warn("webhook journal write failed", zap.String("gateway", gateway), zap.Error(err))
	}

	event, err := adapter.VerifyWebhook(ctx, payload, headers)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrVerificationFailed) || errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.log.Info("webhook discarded",
				zap.String("gateway", gateway),
				zap.String("order_ref", orderRef),
				zap.Error(err),
			)
			s.count(gateway, obsmetrics.WebhookOutcomeIgnored)
			return nil
		}
		s.count(gateway, obsmetrics.WebhookOutcomeError)
		return err
	}

	if s.locker != nil {
		key := "payments:order:" + event.OrderID
		token, ok, lockErr := s.locker.TryLock(ctx, key, orderLockTTL)
		if lockErr != nil {
			s.log.Warn("order lock unavailable", zap.String("order_id", event.OrderID), zap.Error(lockErr))
		} else if ok {
			defer func() {
				if releaseErr := s.locker.Release(context.WithoutCancel(ctx), key, token); releaseErr != nil {
					s.log.Warn("order lock release failed", zap.String("order_id", event.OrderID), zap.Error(releaseErr))
				}
			}()
		}
		// A held or unavailable lock does not block processing; the
		// conditional status transition below is what guarantees
		// exactly-once effects.
	}

	session, err := s.repo.FindSession(ctx, s.db, event.OrderID)
	if err != nil {
		s.count(gateway, obsmetrics.WebhookOutcomeError)
		return err
	}
	if session == nil {
		s.log.Warn("webhook for unknown order",
			zap.String("gateway", gateway),
			zap.String("order_id", event.OrderID),
		)
		s.count(gateway, obsmetrics.WebhookOutcomeUnknown)
		return nil
	}
	if session.Status != paymentdomain.SessionStatusPending {
		s.count(gateway, obsmetrics.WebhookOutcomeDuplicate)
		return nil
	}

	if err := s.effects.ProcessEvent(ctx, session, event); err != nil {
		if errors.Is(err, paymentdomain.ErrAlreadyProcessed) {
			s.count(gateway, obsmetrics.WebhookOutcomeDuplicate)
			return nil
		}
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.count(gateway, obsmetrics.WebhookOutcomeIgnored)
			return nil
		}
		s.count(gateway, obsmetrics.WebhookOutcomeError)
		return err
	}

	s.log.Info("webhook applied",
		zap.String("gateway", gateway),
		zap.String("order_id", event.OrderID),
		zap.String("event", event.Event),
	)
	s.count(gateway, obsmetrics.WebhookOutcomeApplied)
	return nil
}

func (s *Service) count(gateway, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhookEvents.WithLabelValues(gateway, outcome).Inc()
}
