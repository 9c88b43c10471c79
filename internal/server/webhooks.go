package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ingestdomain "github.com/smallbiznis/orderlake/internal/ingest/domain"
	"github.com/smallbiznis/orderlake/internal/ingest/signature"
	"go.uber.org/zap"
)

const shopDomainHeader = "X-Shopify-Shop-Domain"

// HandleOrderWebhook accepts one storefront order delivery. The raw
// body is read before any parsing so the signature covers the exact
// bytes the sender signed.
func (s *Server) HandleOrderWebhook(c *gin.Context) {
	if s.limiter.Enabled() {
		sender := strings.TrimSpace(c.GetHeader(shopDomainHeader))
		if sender == "" {
			sender = c.ClientIP()
		}
		allowed, err := s.limiter.Allow(c.Request.Context(), sender)
		if err != nil {
			// Redis being down must not drop order data.
			s.log.Warn("rate limit check failed, allowing request", zap.Error(err))
		} else if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.tuning.Current().MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	digest := c.GetHeader(signature.Header)
	result, err := s.ingestSvc.IngestOrder(c.Request.Context(), payload, digest)
	if err != nil {
		if errors.Is(err, ingestdomain.ErrAlreadyProcessed) {
			c.JSON(http.StatusOK, gin.H{
				"status":   "already_processed",
				"order_id": result.OrderID,
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"order_id":      result.OrderID,
		"product_count": result.ProductCount,
	})
}
