package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"honeypot-service/internal/client"
	"honeypot-service/internal/model"
	redisrepo "honeypot-service/internal/repository/redis"
	"honeypot-service/internal/store"
	"honeypot-service/internal/util"
)

// Substrings of common shell/network tooling that signal hands-on-keyboard
// activity regardless of the computed threat level. Matched case-insensitively
// against the captured payload.
var dangerousKeywords = []string{
	"wget", "curl", "chmod", "rm -rf", "bash", "nc ", "python", "perl",
}

const detailPayloadLimit = 200

// Policy turns qualifying attack events into persisted alerts. It runs after
// the event itself is persisted; an alert failure is logged but never rolls
// back or blocks the attack-event write.
type Policy struct {
	store    store.Store
	cache    *redisrepo.AlertCache // nil disables duplicate suppression
	producer *client.KafkaProducer // nil disables publishing
	logger   *zap.Logger
}

func NewPolicy(s store.Store, logger *zap.Logger) *Policy {
	return &Policy{store: s, logger: logger}
}

// WithSuppression wires in the Redis-backed duplicate-alert window.
func (p *Policy) WithSuppression(cache *redisrepo.AlertCache) *Policy {
	p.cache = cache
	return p
}

// WithPublisher wires in the Kafka alert topic.
func (p *Policy) WithPublisher(producer *client.KafkaProducer) *Policy {
	p.producer = producer
	return p
}

// Evaluate inspects a classified, already-persisted event and raises an alert
// when it crosses the severity or keyword threshold. Returns the alert (with
// its assigned id when the write succeeded) or nil when nothing triggered.
func (p *Policy) Evaluate(ctx context.Context, event *model.AttackEvent) *model.Alert {
	dangerous := containsDangerousKeyword(event.RawPayload)
	highSeverity := event.ThreatLevel == model.ThreatHigh || event.ThreatLevel == model.ThreatCritical
	if !dangerous && !highSeverity {
		return nil
	}

	alertType := model.AlertHighThreat
	if dangerous {
		alertType = model.AlertDangerousCommand
	}

	alert := &model.Alert{
		Timestamp: event.Timestamp,
		SourceIP:  event.SourceIP,
		AlertType: alertType,
		Detail: fmt.Sprintf("threat_level=%s attack_type=%s data=%s",
			event.ThreatLevel, event.AttackType,
			util.Truncate(event.RawPayload, detailPayloadLimit)),
	}
	if event.ID != 0 {
		id := event.ID
		alert.AttackID = &id
	}

	if p.cache != nil && !p.cache.Allow(ctx, event.SourceIP, alertType) {
		p.logger.Debug("Alert suppressed",
			zap.String("source_ip", event.SourceIP),
			zap.String("alert_type", string(alertType)))
		return nil
	}

	id, err := p.store.RecordAlert(ctx, alert)
	if err != nil {
		p.logger.Error("Failed to record alert",
			zap.String("source_ip", event.SourceIP),
			zap.String("alert_type", string(alertType)),
			zap.Error(err))
	} else {
		alert.ID = id
	}

	p.publish(ctx, alert)
	return alert
}

func (p *Policy) publish(ctx context.Context, alert *model.Alert) {
	if p.producer == nil {
		return
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		p.logger.Error("Failed to marshal alert for publishing", zap.Error(err))
		return
	}
	if err := p.producer.Publish(ctx, alert.SourceIP, payload); err != nil {
		p.logger.Error("Failed to publish alert", zap.Error(err))
	}
}

func containsDangerousKeyword(payload string) bool {
	lower := strings.ToLower(payload)
	for _, kw := range dangerousKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
