package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/fanstage/fanstage/internal/payment/domain"
)

// Webhook handlers never leak processing detail back to the gateway: any
// fully handled delivery is acked, any transient failure returns 500 so the
// gateway retries with its own backoff schedule.

func (s *Server) HandleYooKassaWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error"})
		return
	}

	if err := s.webhookSvc.Ingest(c.Request.Context(), paymentdomain.GatewayYooKassa, payload, c.Request.Header); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) HandleTinkoffWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "ERROR")
		return
	}

	if err := s.webhookSvc.Ingest(c.Request.Context(), paymentdomain.GatewayTinkoff, payload, c.Request.Header); err != nil {
		c.String(http.StatusInternalServerError, "ERROR")
		return
	}

	// Tinkoff requires the literal body "OK" to stop redelivery.
	c.String(http.StatusOK, "OK")
}
