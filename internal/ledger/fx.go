package ledger

import (
	"github.com/fanstage/fanstage/internal/ledger/domain"
	"github.com/fanstage/fanstage/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(func(p service.Params) domain.Service {
		return service.NewService(p)
	}),
)
