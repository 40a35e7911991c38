// Package collector is a minimal collection endpoint for event batches. It is
// meant for local development and end-to-end tests of the HTTP sender.
package collector

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"event-logger/eventlogger"
)

// tenantCtxKey is the gin context key holding the authenticated tenant.
const tenantCtxKey = "tenant"

type Config struct {
	// APIKeys maps an accepted X-API-Key value to a tenant name.
	APIKeys map[string]string
	Logger  *slog.Logger
}

// AcceptResponse is returned by POST /events.
type AcceptResponse struct {
	Accepted int    `json:"accepted"`
	BatchID  string `json:"batchId"`
}

// NewRouter wires GET /health and the authenticated POST /events.
func NewRouter(cfg Config, rec *Recorder) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/")
	authGroup.Use(apiKeyMiddleware(cfg.APIKeys))
	authGroup.POST("/events", func(c *gin.Context) {
		var events []eventlogger.Event
		if err := c.ShouldBindJSON(&events); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if len(events) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
			return
		}
		for _, ev := range events {
			if _, ok := eventlogger.ParseEventType(string(ev.EventType)); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown eventType"})
				return
			}
			if ev.SourceName == "" || ev.ErrorCode == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "sourceName and errorCode required"})
				return
			}
		}

		batchID := strings.TrimSpace(c.GetHeader(eventlogger.HeaderBatchID))
		if batchID == "" {
			batchID = uuid.NewString()
		}
		tenant, _ := c.Get(tenantCtxKey)
		tenantName, _ := tenant.(string)
		rec.Add(Batch{
			ID:         batchID,
			Tenant:     tenantName,
			ReceivedAt: time.Now().UTC(),
			Events:     events,
		})
		logger.Debug("batch accepted",
			slog.String("batch_id", batchID),
			slog.String("tenant", tenantName),
			slog.Int("events", len(events)))

		c.JSON(http.StatusOK, AcceptResponse{Accepted: len(events), BatchID: batchID})
	})

	return r
}

func apiKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(eventlogger.HeaderAPIKey))
		tenant, ok := keys[apiKey]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(tenantCtxKey, tenant)
		c.Next()
	}
}

// ParseAPIKeys parses "tenant:key,tenant:key" into a key -> tenant map.
// Malformed pairs are skipped.
func ParseAPIKeys(raw string) map[string]string {
	out := map[string]string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			continue
		}
		tenant := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if tenant == "" || key == "" {
			continue
		}
		out[key] = tenant
	}
	return out
}
