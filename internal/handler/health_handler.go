// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pesapal-proxy/internal/config"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether the configured stores are reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	service string
	cfg     config.Config
	stores  Pinger
}

func NewHealthHandler(service string, cfg config.Config, stores Pinger) *HealthHandler {
	return &HealthHandler{service: service, cfg: cfg, stores: stores}
}

// Root handles GET / and shows the URLs to configure on the Pesapal side
func (h *HealthHandler) Root(c *gin.Context) {
	body := gin.H{
		"service":                    h.service,
		"status":                     "running",
		"pesapal_env":                h.cfg.Pesapal.Env,
		"notification_id_configured": h.cfg.Pesapal.NotificationID != "",
	}
	if h.cfg.ProxyBaseURL != "" {
		body["ipn_url"] = h.cfg.IPNURL()
		body["callback_url"] = h.cfg.CallbackURL()
	}
	c.JSON(http.StatusOK, body)
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := h.stores.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
