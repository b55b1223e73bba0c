package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fanstage/fanstage/internal/clock"
	"github.com/fanstage/fanstage/internal/config"
	"github.com/fanstage/fanstage/internal/ledger"
	ledgerdomain "github.com/fanstage/fanstage/internal/ledger/domain"
	"github.com/fanstage/fanstage/internal/locker"
	obsmetrics "github.com/fanstage/fanstage/internal/observability/metrics"
	"github.com/fanstage/fanstage/internal/payment"
	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
	"github.com/fanstage/fanstage/internal/providers/pdf"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	obsmetrics.Module,
	locker.Module,
	pdf.Module,
	ledger.Module,
	payment.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogMiddleware(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func requestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	paymentSvc paymentdomain.Service
	webhookSvc paymentdomain.WebhookService
	ledgerSvc  ledgerdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	PaymentSvc paymentdomain.Service
	WebhookSvc paymentdomain.WebhookService
	LedgerSvc  ledgerdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		paymentSvc: p.PaymentSvc,
		webhookSvc: p.WebhookSvc,
		ledgerSvc:  p.LedgerSvc,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.UserRequired())

	// -------- Checkout --------
	api.POST("/payments/checkout", s.CreateCheckout)
	api.GET("/payments/:order_id", s.GetPaymentSession)
	api.POST("/payments/recurring", s.ChargeRecurring)

	// -------- Saved payment methods --------
	api.GET("/payment-methods", s.ListPaymentMethods)
	api.DELETE("/payment-methods/:method_id", s.DeletePaymentMethod)

	// -------- Wallet --------
	api.GET("/wallet/balance", s.GetBalance)
	api.GET("/wallet/coins", s.GetCoinBalance)
	api.GET("/wallet/transactions", s.ListTransactions)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks/payments")

	hooks.POST("/yookassa", s.HandleYooKassaWebhook)
	hooks.POST("/tinkoff", s.HandleTinkoffWebhook)
}
