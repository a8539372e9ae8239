package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"honeypot-service/internal/client"
	"honeypot-service/internal/model"
	"honeypot-service/internal/util"
)

const attackEventsDDL = `
CREATE TABLE IF NOT EXISTS attack_events (
    id             UInt64,
    timestamp      DateTime64(3, 'UTC'),
    source_ip      String,
    source_port    Int32,
    protocol       LowCardinality(String),
    attack_type    LowCardinality(String),
    raw_payload    String,
    threat_level   LowCardinality(String),
    attack_pattern LowCardinality(String)
) ENGINE = MergeTree
ORDER BY id`

const alertsDDL = `
CREATE TABLE IF NOT EXISTS alerts (
    id          UInt64,
    timestamp   DateTime64(3, 'UTC'),
    source_ip   String,
    alert_type  LowCardinality(String),
    detail      String,
    attack_id   Nullable(UInt64)
) ENGINE = MergeTree
ORDER BY id`

// ClickHouse is the durable Store backend. Ids are assigned from in-process
// counters seeded with the persisted maximums at startup; the write path is
// serialized by the allocator lock so ids stay unique and strictly increasing
// across concurrent handlers.
type ClickHouse struct {
	client *client.ClickHouseClient
	logger *zap.Logger

	ids idAllocator
}

// idAllocator hands out the next attack/alert ids under one lock. All writes
// funnel through it, which is the store's single write critical section.
type idAllocator struct {
	mu         sync.Mutex
	nextAttack uint64
	nextAlert  uint64
}

func NewClickHouse(ctx context.Context, chClient *client.ClickHouseClient, logger *zap.Logger) (*ClickHouse, error) {
	s := &ClickHouse{
		client: chClient,
		logger: logger,
	}

	if err := chClient.Exec(ctx, attackEventsDDL); err != nil {
		return nil, fmt.Errorf("failed to create attack_events table: %w", err)
	}
	if err := chClient.Exec(ctx, alertsDDL); err != nil {
		return nil, fmt.Errorf("failed to create alerts table: %w", err)
	}

	if err := s.seedIDs(ctx); err != nil {
		return nil, err
	}

	util.Info("ClickHouse event store ready",
		zap.Uint64("next_attack_id", s.ids.nextAttack),
		zap.Uint64("next_alert_id", s.ids.nextAlert))
	return s, nil
}

func (s *ClickHouse) seedIDs(ctx context.Context) error {
	var maxAttack, maxAlert uint64
	row := s.client.QueryRow(ctx, "SELECT max(id) FROM attack_events")
	if err := row.Scan(&maxAttack); err != nil {
		return fmt.Errorf("failed to read max attack id: %w", err)
	}
	row = s.client.QueryRow(ctx, "SELECT max(id) FROM alerts")
	if err := row.Scan(&maxAlert); err != nil {
		return fmt.Errorf("failed to read max alert id: %w", err)
	}
	s.ids.nextAttack = maxAttack + 1
	s.ids.nextAlert = maxAlert + 1
	return nil
}

func (s *ClickHouse) RecordAttack(ctx context.Context, event *model.AttackEvent) (int64, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	s.ids.mu.Lock()
	defer s.ids.mu.Unlock()

	id := s.ids.nextAttack
	err := s.client.Exec(ctx, `
        INSERT INTO attack_events
            (id, timestamp, source_ip, source_port, protocol,
             attack_type, raw_payload, threat_level, attack_pattern)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		event.Timestamp,
		event.SourceIP,
		int32(event.SourcePort),
		string(event.Protocol),
		string(event.AttackType),
		event.RawPayload,
		string(event.ThreatLevel),
		string(event.AttackPattern),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attack event: %w", err)
	}
	s.ids.nextAttack++
	return int64(id), nil
}

func (s *ClickHouse) GetAttacks(ctx context.Context, limit, offset int, filters Filters) ([]model.AttackEvent, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []interface{}
	)
	// Filter keys are validated against the allow-list above, so they are
	// safe to interpolate as column names.
	for _, col := range sortedFilterKeys(filters) {
		where = append(where, col+" = ?")
		args = append(args, filters[col])
	}
	query := `
        SELECT id, timestamp, source_ip, source_port, protocol,
               attack_type, raw_payload, threat_level, attack_pattern
        FROM attack_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.client.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attack events: %w", err)
	}
	defer rows.Close()

	var results []model.AttackEvent
	for rows.Next() {
		event, err := scanAttackEvent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *event)
	}
	return results, rows.Err()
}

func (s *ClickHouse) GetAttackByID(ctx context.Context, id int64) (*model.AttackEvent, error) {
	rows, err := s.client.QueryRows(ctx, `
        SELECT id, timestamp, source_ip, source_port, protocol,
               attack_type, raw_payload, threat_level, attack_pattern
        FROM attack_events WHERE id = ? LIMIT 1`, uint64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query attack event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrNotFound
	}
	return scanAttackEvent(rows)
}

func (s *ClickHouse) GetAttackStatistics(ctx context.Context) (*model.StoreStats, error) {
	stats := &model.StoreStats{
		AttacksByType:        make(map[model.AttackType]int64),
		AttacksByThreatLevel: make(map[model.ThreatLevel]int64),
	}

	row := s.client.QueryRow(ctx,
		"SELECT count(), uniqExact(source_ip) FROM attack_events")
	var total, unique uint64
	if err := row.Scan(&total, &unique); err != nil {
		return nil, fmt.Errorf("failed to read attack totals: %w", err)
	}
	stats.TotalAttacks = int64(total)
	stats.UniqueAttackers = int64(unique)

	rows, err := s.client.QueryRows(ctx,
		"SELECT attack_type, count() FROM attack_events GROUP BY attack_type")
	if err != nil {
		return nil, fmt.Errorf("failed to group by attack_type: %w", err)
	}
	for rows.Next() {
		var t string
		var n uint64
		if err := rows.Scan(&t, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.AttacksByType[model.AttackType(t)] = int64(n)
	}
	rows.Close()

	rows, err = s.client.QueryRows(ctx,
		"SELECT threat_level, count() FROM attack_events GROUP BY threat_level")
	if err != nil {
		return nil, fmt.Errorf("failed to group by threat_level: %w", err)
	}
	for rows.Next() {
		var l string
		var n uint64
		if err := rows.Scan(&l, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.AttacksByThreatLevel[model.ThreatLevel(l)] = int64(n)
	}
	rows.Close()

	rows, err = s.client.QueryRows(ctx, `
        SELECT source_ip, count() AS cnt FROM attack_events
        GROUP BY source_ip ORDER BY cnt DESC, min(id) ASC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to query top attackers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ip string
		var n uint64
		if err := rows.Scan(&ip, &n); err != nil {
			return nil, err
		}
		stats.TopAttackingIPs = append(stats.TopAttackingIPs, model.IPCount{IP: ip, Count: int64(n)})
	}
	return stats, rows.Err()
}

func (s *ClickHouse) RecordAlert(ctx context.Context, alert *model.Alert) (int64, error) {
	s.ids.mu.Lock()
	defer s.ids.mu.Unlock()

	id := s.ids.nextAlert
	var attackID *uint64
	if alert.AttackID != nil {
		v := uint64(*alert.AttackID)
		attackID = &v
	}
	err := s.client.Exec(ctx, `
        INSERT INTO alerts (id, timestamp, source_ip, alert_type, detail, attack_id)
        VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		alert.Timestamp,
		alert.SourceIP,
		string(alert.AlertType),
		alert.Detail,
		attackID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	s.ids.nextAlert++
	return int64(id), nil
}

func (s *ClickHouse) GetAlerts(ctx context.Context, limit, offset int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.client.QueryRows(ctx, `
        SELECT id, timestamp, source_ip, alert_type, detail, attack_id
        FROM alerts ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var results []model.Alert
	for rows.Next() {
		var (
			id        uint64
			ts        time.Time
			sourceIP  string
			alertType string
			detail    string
			attackID  *uint64
		)
		if err := rows.Scan(&id, &ts, &sourceIP, &alertType, &detail, &attackID); err != nil {
			return nil, err
		}
		alert := model.Alert{
			ID:        int64(id),
			Timestamp: ts,
			SourceIP:  sourceIP,
			AlertType: model.AlertType(alertType),
			Detail:    detail,
		}
		if attackID != nil {
			v := int64(*attackID)
			alert.AttackID = &v
		}
		results = append(results, alert)
	}
	return results, rows.Err()
}

func (s *ClickHouse) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func (s *ClickHouse) Close() error {
	return s.client.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttackEvent(row rowScanner) (*model.AttackEvent, error) {
	var (
		id         uint64
		ts         time.Time
		sourceIP   string
		sourcePort int32
		protocol   string
		attackType string
		payload    string
		level      string
		pattern    string
	)
	if err := row.Scan(&id, &ts, &sourceIP, &sourcePort, &protocol,
		&attackType, &payload, &level, &pattern); err != nil {
		return nil, fmt.Errorf("failed to scan attack event: %w", err)
	}
	return &model.AttackEvent{
		ID:            int64(id),
		Timestamp:     ts,
		SourceIP:      sourceIP,
		SourcePort:    int(sourcePort),
		Protocol:      model.Protocol(protocol),
		AttackType:    model.AttackType(attackType),
		RawPayload:    payload,
		ThreatLevel:   model.ThreatLevel(level),
		AttackPattern: model.AttackPattern(pattern),
	}, nil
}

func sortedFilterKeys(filters Filters) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
