package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// ReceiptData holds everything a settlement receipt renders.
type ReceiptData struct {
	OrderID     string
	Gateway     string
	SessionType string
	Description string
	Amount      string
	Currency    string
	PaidAt      string
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(func() Provider {
		return &PDFProvider{}
	}),
)
