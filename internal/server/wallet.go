package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
)

func (s *Server) GetBalance(c *gin.Context) {
	balance, err := s.ledgerSvc.GetBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	currency := balance.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	c.JSON(http.StatusOK, gin.H{
		"available": paymentdomain.FormatAmount(balance.Available),
		"pending":   paymentdomain.FormatAmount(balance.Pending),
		"total":     paymentdomain.FormatAmount(balance.Total),
		"currency":  currency,
	})
}

func (s *Server) GetCoinBalance(c *gin.Context) {
	balance, err := s.ledgerSvc.GetCoinBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"coins": balance.Coins})
}

type transactionResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) ListTransactions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	txs, err := s.ledgerSvc.ListTransactions(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, transactionResponse{
			ID:          tx.ID.String(),
			OrderID:     tx.OrderID,
			Kind:        string(tx.Kind),
			Amount:      paymentdomain.FormatAmount(tx.Amount),
			Currency:    tx.Currency,
			Description: tx.Description,
			CreatedAt:   tx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"transactions": items})
}
