package service

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/fanstage/fanstage/internal/ledger/domain"
	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
	"github.com/fanstage/fanstage/internal/providers/pdf"
	pkgdb "github.com/fanstage/fanstage/pkg/db"
	"go.uber.org/zap"
)

// ProcessEvent applies the financial effects of one verified webhook event.
// The conditional status transition is the idempotency gate: whichever
// delivery flips pending to the terminal status applies effects, every other
// delivery reports ErrAlreadyProcessed.
func (s *Service) ProcessEvent(ctx context.Context, session *paymentdomain.PaymentSession, event *paymentdomain.WebhookEvent) error {
	if session == nil || event == nil {
		return paymentdomain.ErrEventIgnored
	}

	var target paymentdomain.SessionStatus
	switch event.Event {
	case paymentdomain.EventSucceeded:
		target = paymentdomain.SessionStatusSucceeded
	case paymentdomain.EventCanceled:
		target = paymentdomain.SessionStatusCanceled
	case paymentdomain.EventRefunded:
		target = paymentdomain.SessionStatusRefunded
	default:
		return paymentdomain.ErrEventIgnored
	}

	now := s.clock.Now()
	won, err := s.repo.TransitionStatus(ctx, s.db, session.OrderID, target, now)
	if err != nil {
		return err
	}
	if !won {
		return paymentdomain.ErrAlreadyProcessed
	}

	if target != paymentdomain.SessionStatusSucceeded {
		// Cancellation carries no ledger effects. A refund leaves a marker
		// transaction in the payer's history; recorded balance and revenue
		// stay untouched.
		if target == paymentdomain.SessionStatusRefunded {
			if err := s.ledgerSvc.AppendTransaction(ctx, &ledgerdomain.Transaction{
				UserID:      session.UserID,
				OrderID:     session.OrderID,
				Kind:        ledgerdomain.TransactionKindRefund,
				Amount:      -session.Amount,
				Currency:    session.Currency,
				Description: session.Description,
				CreatedAt:   now,
			}); err != nil {
				s.log.Error("refund record failed after gateway confirmation",
					zap.String("order_id", session.OrderID),
					zap.Error(err),
				)
				if s.metrics != nil {
					s.metrics.EffectFailures.Inc()
				}
				return err
			}
		}
		s.log.Info("session closed without settlement",
			zap.String("order_id", session.OrderID),
			zap.String("status", string(target)),
		)
		return nil
	}

	if err := s.applySettlement(ctx, session, event, now); err != nil {
		// The gateway already confirmed the money moved. A failed ledger
		// write here is a partial-failure state that operators must see.
		s.log.Error("ledger effects failed after gateway confirmation",
			zap.String("order_id", session.OrderID),
			zap.String("gateway", session.Gateway),
			zap.Int64("amount", session.Amount),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.EffectFailures.Inc()
		}
		return err
	}
	return nil
}

func (s *Service) applySettlement(ctx context.Context, session *paymentdomain.PaymentSession, event *paymentdomain.WebhookEvent, now time.Time) error {
	if event.Amount != 0 && event.Amount != session.Amount {
		// The session row is authoritative; the gateway figure is logged for
		// reconciliation.
		s.log.Warn("webhook amount differs from session amount",
			zap.String("order_id", session.OrderID),
			zap.Int64("session_amount", session.Amount),
			zap.Int64("webhook_amount", event.Amount),
		)
	}

	if session.SavePaymentMethod && event.MethodToken != "" {
		if err := s.persistSavedMethod(ctx, session, event, now); err != nil {
			return err
		}
	}

	if err := s.ledgerSvc.AppendTransaction(ctx, &ledgerdomain.Transaction{
		UserID:      session.UserID,
		OrderID:     session.OrderID,
		Kind:        ledgerdomain.TransactionKind(session.Type),
		Amount:      session.Amount,
		Currency:    session.Currency,
		Description: session.Description,
		CreatedAt:   now,
	}); err != nil {
		return err
	}

	switch session.Type {
	case paymentdomain.SessionTypeDonation:
		artistID, err := snowflake.ParseString(session.MetadataValue("artist_id"))
		if err != nil || artistID == 0 {
			s.log.Warn("donation without artist_id metadata", zap.String("order_id", session.OrderID))
		} else if err := s.ledgerSvc.CreditBalance(ctx, artistID, session.Amount, session.Currency); err != nil {
			return err
		}
	case paymentdomain.SessionTypeTopup:
		if err := s.ledgerSvc.CreditBalance(ctx, session.UserID, session.Amount, session.Currency); err != nil {
			return err
		}
		if coins := coinAmount(session); coins > 0 {
			if err := s.ledgerSvc.CreditCoins(ctx, session.UserID, coins, session.OrderID); err != nil {
				return err
			}
		}
	}

	rate := s.commission.Rate(string(session.Type))
	fee := int64(math.Round(float64(session.Amount) * rate))
	if err := s.ledgerSvc.RecordRevenue(ctx, &ledgerdomain.RevenueRecord{
		OrderID:     session.OrderID,
		SessionType: string(session.Type),
		Gross:       session.Amount,
		Rate:        rate,
		Fee:         fee,
		Payout:      session.Amount - fee,
		Currency:    session.Currency,
		CreatedAt:   now,
	}); err != nil {
		return err
	}

	s.writeReceipt(ctx, session, now)
	return nil
}

func (s *Service) persistSavedMethod(ctx context.Context, session *paymentdomain.PaymentSession, event *paymentdomain.WebhookEvent, now time.Time) error {
	method := &paymentdomain.SavedPaymentMethod{
		ID:        s.genID.Generate(),
		UserID:    session.UserID,
		Gateway:   session.Gateway,
		Token:     event.MethodToken,
		Title:     event.MethodTitle,
		CreatedAt: now,
	}
	if err := s.repo.InsertSavedMethod(ctx, s.db, method); err != nil {
		// (user_id, gateway, token) is unique: the payer consented to saving
		// a card that is already on file. Settlement proceeds with the
		// existing method.
		if pkgdb.IsDuplicateKeyErr(err) {
			s.log.Info("payment method already saved",
				zap.String("order_id", session.OrderID),
				zap.String("gateway", session.Gateway),
			)
			return nil
		}
		return err
	}
	return s.repo.SetSavedMethod(ctx, s.db, session.OrderID, method.ID)
}

// writeReceipt renders a settlement receipt PDF. Best effort; a failure never
// blocks the settlement.
func (s *Service) writeReceipt(ctx context.Context, session *paymentdomain.PaymentSession, now time.Time) {
	if s.receipts == nil || s.cfg.ReceiptsDir == "" {
		return
	}
	reader, err := s.receipts.GenerateReceipt(ctx, pdf.ReceiptData{
		OrderID:     session.OrderID,
		Gateway:     session.Gateway,
		SessionType: string(session.Type),
		Description: session.Description,
		Amount:      paymentdomain.FormatAmount(session.Amount),
		Currency:    session.Currency,
		PaidAt:      now.Format(time.RFC3339),
	})
	if err != nil || reader == nil {
		s.log.Warn("receipt render failed", zap.String("order_id", session.OrderID), zap.Error(err))
		return
	}

	path := filepath.Join(s.cfg.ReceiptsDir, session.OrderID+".pdf")
	file, err := os.Create(path)
	if err != nil {
		s.log.Warn("receipt write failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer file.Close()
	if _, err := file.ReadFrom(reader); err != nil {
		s.log.Warn("receipt write failed", zap.String("path", path), zap.Error(err))
	}
}

func coinAmount(session *paymentdomain.PaymentSession) int64 {
	raw := strings.TrimSpace(session.MetadataValue("coin_amount"))
	if raw == "" {
		return 0
	}
	coins, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return coins
}
