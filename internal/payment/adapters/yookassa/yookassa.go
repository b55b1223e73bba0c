package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fanstage/fanstage/internal/config"
	"github.com/fanstage/fanstage/internal/payment/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Adapter speaks the redirect-confirmation protocol: outbound calls carry the
// shop credential pair as basic auth, webhooks are unsigned, and authenticity
// is established by re-fetching the payment through the API before anything in
// the callback body is believed.
type Adapter struct {
	shopID    string
	secretKey string
	apiURL    string
	client    *http.Client
	log       *zap.Logger
}

func New(cfg config.YooKassaConfig, client *http.Client, log *zap.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.ShopID) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, domain.ErrInvalidConfig
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		client:    client,
		log:       log.Named("gateway.yookassa"),
	}, nil
}

func (a *Adapter) Gateway() string { return domain.GatewayYooKassa }

type amountObject struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmationObject struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type paymentMethodObject struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Saved bool   `json:"saved"`
	Title string `json:"title"`
}

type paymentObject struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	Paid          bool                 `json:"paid"`
	Amount        amountObject         `json:"amount"`
	Confirmation  *confirmationObject  `json:"confirmation,omitempty"`
	PaymentMethod *paymentMethodObject `json:"payment_method,omitempty"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
}

type refundObject struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	PaymentID string       `json:"payment_id"`
	Amount    amountObject `json:"amount"`
}

type createPaymentBody struct {
	Amount            amountObject       `json:"amount"`
	Capture           bool               `json:"capture"`
	Confirmation      confirmationObject `json:"confirmation"`
	Description       string             `json:"description,omitempty"`
	Metadata          map[string]string  `json:"metadata"`
	SavePaymentMethod bool               `json:"save_payment_method,omitempty"`
}

type recurringChargeBody struct {
	Amount          amountObject      `json:"amount"`
	Capture         bool              `json:"capture"`
	PaymentMethodID string            `json:"payment_method_id"`
	Description     string            `json:"description,omitempty"`
	Metadata        map[string]string `json:"metadata"`
}

func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	body := createPaymentBody{
		Amount: amountObject{
			Value:    domain.FormatAmount(req.Amount),
			Currency: req.Currency,
		},
		Capture: true,
		Confirmation: confirmationObject{
			Type:      "redirect",
			ReturnURL: req.ReturnURL,
		},
		Description:       req.Description,
		Metadata:          paymentMetadata(req.OrderID, req.UserID.String(), req.Metadata),
		SavePaymentMethod: req.SavePaymentMethod,
	}

	payment, err := a.postPayment(ctx, body)
	if err != nil {
		return nil, err
	}

	result := &domain.CreatePaymentResult{GatewayPaymentID: payment.ID}
	if payment.Confirmation != nil {
		result.ConfirmationURL = payment.Confirmation.ConfirmationURL
	}
	return result, nil
}

func (a *Adapter) ChargeRecurring(ctx context.Context, req domain.RecurringChargeRequest) (*domain.CreatePaymentResult, error) {
	body := recurringChargeBody{
		Amount: amountObject{
			Value:    domain.FormatAmount(req.Amount),
			Currency: req.Currency,
		},
		Capture:         true,
		PaymentMethodID: req.MethodToken,
		Description:     req.Description,
		Metadata:        paymentMetadata(req.OrderID, req.UserID.String(), nil),
	}

	payment, err := a.postPayment(ctx, body)
	if err != nil {
		return nil, err
	}
	return &domain.CreatePaymentResult{GatewayPaymentID: payment.ID}, nil
}

type notification struct {
	Event  string `json:"event"`
	Object struct {
		ID        string            `json:"id"`
		PaymentID string            `json:"payment_id"`
		Metadata  map[string]string `json:"metadata"`
	} `json:"object"`
}

// VerifyWebhook never trusts the callback body. The payment (or refund) is
// re-fetched by its id and only the fetched authoritative state is acted on.
// The re-fetch is a fallible network call; its failure means the callback
// cannot be authenticated, nothing more.
func (a *Adapter) VerifyWebhook(ctx context.Context, payload []byte, _ http.Header) (*domain.WebhookEvent, error) {
	var note notification
	if err := json.Unmarshal(payload, &note); err != nil {
		return nil, domain.ErrVerificationFailed
	}
	if strings.TrimSpace(note.Object.ID) == "" {
		return nil, domain.ErrVerificationFailed
	}

	switch note.Event {
	case "payment.succeeded", "payment.canceled":
		return a.verifyPayment(ctx, note.Object.ID)
	case "refund.succeeded":
		return a.verifyRefund(ctx, note.Object.ID)
	default:
		return nil, domain.ErrEventIgnored
	}
}

func (a *Adapter) verifyPayment(ctx context.Context, paymentID string) (*domain.WebhookEvent, error) {
	payment, err := a.fetchPayment(ctx, paymentID)
	if err != nil {
		return nil, domain.ErrVerificationFailed
	}

	var event string
	switch payment.Status {
	case "succeeded":
		event = domain.EventSucceeded
	case "canceled":
		event = domain.EventCanceled
	default:
		// pending / waiting_for_capture; a later callback reports the
		// terminal state.
		return nil, domain.ErrEventIgnored
	}

	amount, err := domain.ParseAmount(payment.Amount.Value)
	if err != nil {
		return nil, domain.ErrVerificationFailed
	}

	normalized := &domain.WebhookEvent{
		OrderID:          payment.Metadata["order_id"],
		Event:            event,
		GatewayPaymentID: payment.ID,
		Amount:           amount,
	}
	if pm := payment.PaymentMethod; pm != nil && pm.Saved {
		normalized.MethodToken = pm.ID
		normalized.MethodTitle = methodTitle(pm)
	}
	return normalized, nil
}

func (a *Adapter) verifyRefund(ctx context.Context, refundID string) (*domain.WebhookEvent, error) {
	refund, err := a.fetchRefund(ctx, refundID)
	if err != nil || refund.Status != "succeeded" {
		return nil, domain.ErrVerificationFailed
	}

	// The refund object carries no metadata; the originating payment does.
	payment, err := a.fetchPayment(ctx, refund.PaymentID)
	if err != nil {
		return nil, domain.ErrVerificationFailed
	}

	amount, err := domain.ParseAmount(refund.Amount.Value)
	if err != nil {
		return nil, domain.ErrVerificationFailed
	}

	return &domain.WebhookEvent{
		OrderID:          payment.Metadata["order_id"],
		Event:            domain.EventRefunded,
		GatewayPaymentID: payment.ID,
		Amount:           amount,
	}, nil
}

func (a *Adapter) OrderRef(payload []byte) string {
	var note notification
	if err := json.Unmarshal(payload, &note); err != nil {
		return ""
	}
	if ref := note.Object.Metadata["order_id"]; ref != "" {
		return ref
	}
	return note.Object.ID
}

func (a *Adapter) postPayment(ctx context.Context, body any) (*paymentObject, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL+"/payments", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(a.shopID, a.secretKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.log.Warn("payment create rejected", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var payment paymentObject
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if payment.ID == "" {
		return nil, fmt.Errorf("%w: empty payment id", domain.ErrGatewayUnavailable)
	}
	return &payment, nil
}

func (a *Adapter) fetchPayment(ctx context.Context, paymentID string) (*paymentObject, error) {
	var payment paymentObject
	if err := a.get(ctx, "/payments/"+paymentID, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (a *Adapter) fetchRefund(ctx context.Context, refundID string) (*refundObject, error) {
	var refund refundObject
	if err := a.get(ctx, "/refunds/"+refundID, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (a *Adapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(a.shopID, a.secretKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func paymentMetadata(orderID string, userID string, extra map[string]string) map[string]string {
	metadata := map[string]string{
		"order_id": orderID,
		"user_id":  userID,
	}
	for key, value := range extra {
		if key == "order_id" || key == "user_id" {
			continue
		}
		metadata[key] = value
	}
	return metadata
}

func methodTitle(pm *paymentMethodObject) string {
	if strings.TrimSpace(pm.Title) != "" {
		return pm.Title
	}
	return pm.Type
}
