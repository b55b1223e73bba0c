package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PDFProvider struct{}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	cfg := config.NewBuilder().Build()
	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(12, "Payment receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Order: "+data.OrderID, props.Text{Top: 0}),
			text.New("Paid via: "+data.Gateway, props.Text{Top: 5}),
			text.New("Date paid: "+data.PaidAt, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Type: "+data.SessionType, props.Text{Top: 0}),
			text.New(data.Description, props.Text{Top: 5}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(15,
		text.NewCol(12, data.Amount+" "+data.Currency+" paid on "+data.PaidAt, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
