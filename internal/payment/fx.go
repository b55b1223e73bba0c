package payment

import (
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fanstage/fanstage/internal/config"
	"github.com/fanstage/fanstage/internal/payment/adapters"
	"github.com/fanstage/fanstage/internal/payment/adapters/tinkoff"
	"github.com/fanstage/fanstage/internal/payment/adapters/yookassa"
	"github.com/fanstage/fanstage/internal/payment/domain"
	"github.com/fanstage/fanstage/internal/payment/repository"
	"github.com/fanstage/fanstage/internal/payment/service"
	"github.com/fanstage/fanstage/internal/payment/webhook"
)

// Module wires the gateway adapters, checkout orchestrator and webhook
// pipeline. Both gateways must be configured; a partially configured
// deployment fails at startup instead of at the first checkout.
var Module = fx.Module("payment",
	fx.Provide(
		newGatewayClient,
		newFactory,
		repository.Provide,
		service.NewService,
		func(s *service.Service) domain.Service { return s },
		webhook.NewService,
		func(s *webhook.Service) domain.WebhookService { return s },
	),
)

func newGatewayClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

func newFactory(cfg config.Config, client *http.Client, log *zap.Logger) (*adapters.Factory, error) {
	yk, err := yookassa.New(cfg.YooKassa, client, log)
	if err != nil {
		return nil, err
	}
	tk, err := tinkoff.New(cfg.Tinkoff, client, log)
	if err != nil {
		return nil, err
	}
	return adapters.NewFactory(yk, tk), nil
}
