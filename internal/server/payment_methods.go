package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
)

type paymentMethodResponse struct {
	ID        string `json:"id"`
	Gateway   string `json:"gateway"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) ListPaymentMethods(c *gin.Context) {
	methods, err := s.paymentSvc.ListSavedMethods(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]paymentMethodResponse, 0, len(methods))
	for _, m := range methods {
		items = append(items, paymentMethodResponse{
			ID:        m.ID.String(),
			Gateway:   m.Gateway,
			Title:     m.Title,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"payment_methods": items})
}

func (s *Server) DeletePaymentMethod(c *gin.Context) {
	methodID, err := snowflake.ParseString(strings.TrimSpace(c.Param("method_id")))
	if err != nil || methodID == 0 {
		AbortWithError(c, paymentdomain.ErrMethodNotFound)
		return
	}

	if err := s.paymentSvc.DeleteSavedMethod(c.Request.Context(), currentUserID(c), methodID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
