package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
)

type createCheckoutRequest struct {
	Gateway           string            `json:"gateway"`
	Amount            string            `json:"amount"`
	Currency          string            `json:"currency"`
	Type              string            `json:"type"`
	Description       string            `json:"description"`
	ReturnURL         string            `json:"return_url"`
	Metadata          map[string]string `json:"metadata"`
	SavePaymentMethod bool              `json:"save_payment_method"`
}

type checkoutResponse struct {
	OrderID         string `json:"order_id"`
	Gateway         string `json:"gateway"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
	Status          string `json:"status"`
}

func (s *Server) CreateCheckout(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.cfg.Currency
	}

	result, err := s.paymentSvc.CreateSession(c.Request.Context(), paymentdomain.CreateSessionRequest{
		UserID:            currentUserID(c),
		Gateway:           strings.TrimSpace(req.Gateway),
		Amount:            strings.TrimSpace(req.Amount),
		Currency:          currency,
		Description:       strings.TrimSpace(req.Description),
		Type:              paymentdomain.SessionType(req.Type),
		ReturnURL:         strings.TrimSpace(req.ReturnURL),
		Metadata:          req.Metadata,
		SavePaymentMethod: req.SavePaymentMethod,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkoutResponse{
		OrderID:         result.OrderID,
		Gateway:         result.Gateway,
		ConfirmationURL: result.ConfirmationURL,
		Status:          string(result.Status),
	})
}

type sessionResponse struct {
	OrderID         string `json:"order_id"`
	Gateway         string `json:"gateway"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	Type            string `json:"type"`
	Description     string `json:"description,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
	CreatedAt       string `json:"created_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

func (s *Server) GetPaymentSession(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	session, err := s.paymentSvc.GetSession(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if session.UserID != currentUserID(c) {
		AbortWithError(c, paymentdomain.ErrSessionNotFound)
		return
	}

	resp := sessionResponse{
		OrderID:         session.OrderID,
		Gateway:         session.Gateway,
		Amount:          paymentdomain.FormatAmount(session.Amount),
		Currency:        session.Currency,
		Status:          string(session.Status),
		Type:            string(session.Type),
		Description:     session.Description,
		ConfirmationURL: session.ConfirmationURL,
		CreatedAt:       session.CreatedAt.UTC().Format(time.RFC3339),
	}
	if session.CompletedAt != nil {
		resp.CompletedAt = session.CompletedAt.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

type recurringRequest struct {
	MethodID    string            `json:"method_id"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

func (s *Server) ChargeRecurring(c *gin.Context) {
	var req recurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	methodID, err := snowflake.ParseString(strings.TrimSpace(req.MethodID))
	if err != nil || methodID == 0 {
		AbortWithError(c, paymentdomain.ErrMethodNotFound)
		return
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.cfg.Currency
	}

	result, err := s.paymentSvc.ChargeSavedMethod(c.Request.Context(), paymentdomain.RecurringRequest{
		UserID:      currentUserID(c),
		MethodID:    methodID,
		Amount:      strings.TrimSpace(req.Amount),
		Currency:    currency,
		Type:        paymentdomain.SessionType(req.Type),
		Description: strings.TrimSpace(req.Description),
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkoutResponse{
		OrderID: result.OrderID,
		Gateway: result.Gateway,
		Status:  string(result.Status),
	})
}
