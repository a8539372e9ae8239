package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"honeypot-service/internal/client"
	"honeypot-service/internal/model"
	"honeypot-service/internal/util"
)

const alertSuppressPrefix = "alert_suppress:"

// AlertCache suppresses repeated alerts from the same source within a short
// window so a scanning loop doesn't flood the alert log. A SetNX key per
// (source IP, alert type) marks the window.
type AlertCache struct {
	client *client.RedisClient
	ttl    time.Duration
}

func NewAlertCache(client *client.RedisClient, ttl time.Duration) *AlertCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AlertCache{client: client, ttl: ttl}
}

// Allow reports whether an alert for this source/type should be persisted.
// The first caller in a window wins; Redis errors fail open so a cache outage
// never drops alerts.
func (c *AlertCache) Allow(ctx context.Context, sourceIP string, alertType model.AlertType) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("%s%s:%s", alertSuppressPrefix, sourceIP, alertType)
	ok, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), c.ttl)
	if err != nil {
		util.Warn("Alert suppression check failed, allowing alert",
			zap.String("source_ip", sourceIP),
			zap.Error(err))
		return true
	}
	return ok
}
