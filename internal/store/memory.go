package store

import (
	"context"
	"sort"
	"sync"

	"honeypot-service/internal/model"
)

// Memory is an in-process Store used for development and tests. It keeps the
// same ordering, filtering and id-assignment contract as the ClickHouse
// backend but provides no durability across restarts.
type Memory struct {
	mu          sync.Mutex
	attacks     []model.AttackEvent
	alerts      []model.Alert
	nextAttack  int64
	nextAlertID int64
}

func NewMemory() *Memory {
	return &Memory{nextAttack: 1, nextAlertID: 1}
}

func (m *Memory) RecordAttack(ctx context.Context, event *model.AttackEvent) (int64, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := *event
	row.ID = m.nextAttack
	m.nextAttack++
	m.attacks = append(m.attacks, row)
	return row.ID, nil
}

func (m *Memory) GetAttacks(ctx context.Context, limit, offset int, filters Filters) ([]model.AttackEvent, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Newest first by id.
	results := make([]model.AttackEvent, 0, limit)
	skipped := 0
	for i := len(m.attacks) - 1; i >= 0 && len(results) < limit; i-- {
		row := m.attacks[i]
		if !matchesFilters(&row, filters) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		results = append(results, row)
	}
	return results, nil
}

func (m *Memory) GetAttackByID(ctx context.Context, id int64) (*model.AttackEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.attacks {
		if m.attacks[i].ID == id {
			row := m.attacks[i]
			return &row, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetAttackStatistics(ctx context.Context) (*model.StoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[model.AttackType]int64)
	byThreat := make(map[model.ThreatLevel]int64)
	ipCounts := make(map[string]int64)
	var ipOrder []string

	for i := range m.attacks {
		row := &m.attacks[i]
		byType[row.AttackType]++
		byThreat[row.ThreatLevel]++
		if _, seen := ipCounts[row.SourceIP]; !seen {
			ipOrder = append(ipOrder, row.SourceIP)
		}
		ipCounts[row.SourceIP]++
	}

	top := make([]model.IPCount, 0, len(ipOrder))
	for _, ip := range ipOrder {
		top = append(top, model.IPCount{IP: ip, Count: ipCounts[ip]})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})
	if len(top) > 10 {
		top = top[:10]
	}

	return &model.StoreStats{
		TotalAttacks:         int64(len(m.attacks)),
		UniqueAttackers:      int64(len(ipCounts)),
		AttacksByType:        byType,
		AttacksByThreatLevel: byThreat,
		TopAttackingIPs:      top,
	}, nil
}

func (m *Memory) RecordAlert(ctx context.Context, alert *model.Alert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := *alert
	row.ID = m.nextAlertID
	m.nextAlertID++
	m.alerts = append(m.alerts, row)
	return row.ID, nil
}

func (m *Memory) GetAlerts(ctx context.Context, limit, offset int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]model.Alert, 0, limit)
	for i := len(m.alerts) - 1 - offset; i >= 0 && len(results) < limit; i-- {
		results = append(results, m.alerts[i])
	}
	return results, nil
}

func (m *Memory) HealthCheck(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func matchesFilters(row *model.AttackEvent, filters Filters) bool {
	for col, val := range filters {
		switch col {
		case "protocol":
			if string(row.Protocol) != val {
				return false
			}
		case "attack_type":
			if string(row.AttackType) != val {
				return false
			}
		case "source_ip":
			if row.SourceIP != val {
				return false
			}
		case "threat_level":
			if string(row.ThreatLevel) != val {
				return false
			}
		}
	}
	return true
}
