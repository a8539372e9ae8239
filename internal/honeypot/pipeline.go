package honeypot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"honeypot-service/internal/alert"
	"honeypot-service/internal/analyzer"
	"honeypot-service/internal/model"
	"honeypot-service/internal/store"
	"honeypot-service/internal/util"
)

// Capture is the raw result of one scripted exchange, before sanitization and
// classification.
type Capture struct {
	SourceIP   string
	SourcePort int
	Protocol   model.Protocol
	AttackType model.AttackType
	Payload    string // as received from the wire, unsanitized
	SessionID  string
}

// Pipeline is the capture → classify → persist → alert path shared by all
// connection handlers. Each stage runs synchronously in the handler's
// goroutine: classification completes before persistence, persistence before
// alert evaluation. Stage failures are logged and never discard the capture.
type Pipeline struct {
	analyzer *analyzer.ThreatAnalyzer
	store    store.Store
	policy   *alert.Policy
	logger   *zap.Logger
}

func NewPipeline(a *analyzer.ThreatAnalyzer, s store.Store, p *alert.Policy, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		analyzer: a,
		store:    s,
		policy:   p,
		logger:   logger,
	}
}

// Record runs one capture through the full pipeline and returns the event,
// with its store-assigned id when persistence succeeded. Best effort: partial
// captures (empty payloads included) are still recorded.
func (p *Pipeline) Record(ctx context.Context, capture Capture) *model.AttackEvent {
	event := &model.AttackEvent{
		Timestamp:  time.Now().UTC(),
		SourceIP:   capture.SourceIP,
		SourcePort: capture.SourcePort,
		Protocol:   capture.Protocol,
		AttackType: capture.AttackType,
		RawPayload: util.SanitizeInput(capture.Payload),
	}

	// Classification must never block capture.
	if p.analyzer != nil {
		analysis := p.analyzer.Analyze(event)
		event.ThreatLevel = analysis.ThreatLevel
		event.AttackPattern = analysis.AttackPattern
	} else {
		event.ThreatLevel = model.ThreatLow
		event.AttackPattern = model.PatternUnknown
	}

	id, err := p.store.RecordAttack(ctx, event)
	if err != nil {
		p.logger.Error("Failed to persist attack event",
			zap.String("source_ip", event.SourceIP),
			zap.String("attack_type", string(event.AttackType)),
			zap.String("session_id", capture.SessionID),
			zap.Error(err))
	} else {
		event.ID = id
	}

	if p.policy != nil {
		p.policy.Evaluate(ctx, event)
	}

	p.logger.Warn("Attack captured",
		zap.String("protocol", string(event.Protocol)),
		zap.String("source_ip", event.SourceIP),
		zap.Int("source_port", event.SourcePort),
		zap.String("attack_type", string(event.AttackType)),
		zap.String("threat_level", string(event.ThreatLevel)),
		zap.String("session_id", capture.SessionID))

	return event
}
