package tinkoff

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/fanstage/fanstage/internal/config"
	"github.com/fanstage/fanstage/internal/payment/domain"
	"go.uber.org/zap"
)

// Adapter speaks the merchant-terminal protocol. Every request and every
// webhook carries a Token: a SHA-256 over the alphabetically sorted top-level
// scalar fields with the terminal password appended as a pseudo-field.
// Nested objects are excluded from the hash. Recurring charges are two-phase:
// Init under a customer key, then Charge with the rebill id obtained from an
// earlier consented transaction.
type Adapter struct {
	terminalKey string
	password    string
	apiURL      string
	client      *http.Client
	log         *zap.Logger
}

func New(cfg config.TinkoffConfig, client *http.Client, log *zap.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.TerminalKey) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, domain.ErrInvalidConfig
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{
		terminalKey: cfg.TerminalKey,
		password:    cfg.Password,
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		client:      client,
		log:         log.Named("gateway.tinkoff"),
	}, nil
}

func (a *Adapter) Gateway() string { return domain.GatewayTinkoff }

type initResponse struct {
	Success    bool        `json:"Success"`
	ErrorCode  string      `json:"ErrorCode"`
	Message    string      `json:"Message"`
	PaymentID  json.Number `json:"PaymentId"`
	PaymentURL string      `json:"PaymentURL"`
	Status     string      `json:"Status"`
}

func (a *Adapter) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatePaymentResult, error) {
	body := map[string]any{
		"TerminalKey": a.terminalKey,
		"Amount":      json.Number(strconv.FormatInt(req.Amount, 10)),
		"OrderId":     req.OrderID,
		"Description": req.Description,
		"SuccessURL":  req.ReturnURL,
	}
	if req.SavePaymentMethod {
		body["CustomerKey"] = req.UserID.String()
		body["Recurrent"] = "Y"
	}
	if len(req.Metadata) > 0 {
		data := map[string]string{}
		for key, value := range req.Metadata {
			data[key] = value
		}
		body["DATA"] = data
	}

	resp, err := a.post(ctx, "/Init", body)
	if err != nil {
		return nil, err
	}
	return &domain.CreatePaymentResult{
		GatewayPaymentID: resp.PaymentID.String(),
		ConfirmationURL:  resp.PaymentURL,
	}, nil
}

// ChargeRecurring initializes a payment under the customer key, then charges
// it using the rebill id saved from the consented transaction.
func (a *Adapter) ChargeRecurring(ctx context.Context, req domain.RecurringChargeRequest) (*domain.CreatePaymentResult, error) {
	initBody := map[string]any{
		"TerminalKey": a.terminalKey,
		"Amount":      json.Number(strconv.FormatInt(req.Amount, 10)),
		"OrderId":     req.OrderID,
		"Description": req.Description,
		"CustomerKey": req.UserID.String(),
	}
	initResp, err := a.post(ctx, "/Init", initBody)
	if err != nil {
		return nil, err
	}

	chargeBody := map[string]any{
		"TerminalKey": a.terminalKey,
		"PaymentId":   initResp.PaymentID,
		"RebillId":    req.MethodToken,
	}
	if _, err := a.post(ctx, "/Charge", chargeBody); err != nil {
		return nil, err
	}

	return &domain.CreatePaymentResult{GatewayPaymentID: initResp.PaymentID.String()}, nil
}

// VerifyWebhook recomputes the notification token and compares it with the
// supplied one. A mismatch means a forged or corrupted callback and is
// reported as a verification failure, never an operational error.
func (a *Adapter) VerifyWebhook(_ context.Context, payload []byte, _ http.Header) (*domain.WebhookEvent, error) {
	fields, err := decodeFields(payload)
	if err != nil {
		return nil, domain.ErrVerificationFailed
	}

	supplied, _ := fields["Token"].(string)
	if supplied == "" {
		return nil, domain.ErrVerificationFailed
	}
	expected := a.token(fields)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(supplied)), []byte(expected)) != 1 {
		return nil, domain.ErrVerificationFailed
	}

	status, _ := fields["Status"].(string)
	var event string
	switch status {
	case "CONFIRMED":
		event = domain.EventSucceeded
	case "CANCELED", "REVERSED", "REJECTED":
		event = domain.EventCanceled
	case "REFUNDED", "PARTIAL_REFUNDED":
		event = domain.EventRefunded
	default:
		// AUTHORIZED and the intermediate statuses are acknowledged without
		// acting; the terminal status arrives in a later notification.
		return nil, domain.ErrEventIgnored
	}

	orderID, _ := fields["OrderId"].(string)
	normalized := &domain.WebhookEvent{
		OrderID:          orderID,
		Event:            event,
		GatewayPaymentID: numberString(fields["PaymentId"]),
		Amount:           numberInt64(fields["Amount"]),
	}
	if rebill := numberString(fields["RebillId"]); rebill != "" {
		normalized.MethodToken = rebill
		if pan, _ := fields["Pan"].(string); pan != "" {
			normalized.MethodTitle = pan
		}
	}
	return normalized, nil
}

func (a *Adapter) OrderRef(payload []byte) string {
	fields, err := decodeFields(payload)
	if err != nil {
		return ""
	}
	ref, _ := fields["OrderId"].(string)
	return ref
}

// token hashes the alphabetically sorted scalar fields with the password
// appended as a pseudo-field. Nested objects and arrays never participate.
func (a *Adapter) token(fields map[string]any) string {
	scalars := map[string]string{"Password": a.password}
	for key, value := range fields {
		if key == "Token" {
			continue
		}
		switch typed := value.(type) {
		case string:
			scalars[key] = typed
		case bool:
			scalars[key] = strconv.FormatBool(typed)
		case json.Number:
			scalars[key] = typed.String()
		}
	}

	keys := make([]string, 0, len(scalars))
	for key := range scalars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var concat strings.Builder
	for _, key := range keys {
		concat.WriteString(scalars[key])
	}

	sum := sha256.Sum256([]byte(concat.String()))
	return hex.EncodeToString(sum[:])
}

func (a *Adapter) post(ctx context.Context, path string, body map[string]any) (*initResponse, error) {
	body["Token"] = a.token(body)
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.log.Warn("terminal call rejected", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed initResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("%w: code %s %s", domain.ErrGatewayUnavailable, parsed.ErrorCode, parsed.Message)
	}
	return &parsed, nil
}

func decodeFields(payload []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func numberString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	}
	return ""
}

func numberInt64(value any) int64 {
	switch typed := value.(type) {
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(typed, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
