package adapters

import (
	"strings"

	"github.com/fanstage/fanstage/internal/payment/domain"
)

// Factory hands out the adapter for one of the two supported gateways. The
// set is closed: adding a gateway means wiring a new concrete adapter here,
// not registering a plugin.
type Factory struct {
	yookassa domain.GatewayAdapter
	tinkoff  domain.GatewayAdapter
}

func NewFactory(yookassa domain.GatewayAdapter, tinkoff domain.GatewayAdapter) *Factory {
	return &Factory{yookassa: yookassa, tinkoff: tinkoff}
}

func (f *Factory) Adapter(gateway string) (domain.GatewayAdapter, error) {
	if f == nil {
		return nil, domain.ErrUnsupportedGateway
	}
	switch strings.ToLower(strings.TrimSpace(gateway)) {
	case domain.GatewayYooKassa:
		return f.yookassa, nil
	case domain.GatewayTinkoff:
		return f.tinkoff, nil
	default:
		return nil, domain.ErrUnsupportedGateway
	}
}
