package model

import (
	"fmt"
	"time"
)

// -------------------- ENUMS --------------------

// Protocol identifies the emulated service a connection arrived on.
type Protocol string

const (
	ProtocolSSH  Protocol = "SSH"
	ProtocolHTTP Protocol = "HTTP"
	ProtocolFTP  Protocol = "FTP"
)

func (p Protocol) Valid() bool {
	switch p {
	case ProtocolSSH, ProtocolHTTP, ProtocolFTP:
		return true
	}
	return false
}

// AttackType is the per-protocol classification tag attached at capture time.
type AttackType string

const (
	AttackSSHBruteForce AttackType = "SSH_BRUTE_FORCE"
	AttackHTTPProbe     AttackType = "HTTP_PROBE"
	AttackFTPBruteForce AttackType = "FTP_BRUTE_FORCE"
)

func (t AttackType) Valid() bool {
	switch t {
	case AttackSSHBruteForce, AttackHTTPProbe, AttackFTPBruteForce:
		return true
	}
	return false
}

// ThreatLevel is the ordinal severity assigned by the analyzer.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "LOW"
	ThreatMedium   ThreatLevel = "MEDIUM"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
)

func (l ThreatLevel) Valid() bool {
	switch l {
	case ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical:
		return true
	}
	return false
}

// AttackPattern is the coarse behavioral category derived from the attack type.
type AttackPattern string

const (
	PatternBruteForce     AttackPattern = "BRUTE_FORCE"
	PatternReconnaissance AttackPattern = "RECONNAISSANCE"
	PatternExploitAttempt AttackPattern = "EXPLOIT_ATTEMPT"
	PatternUnknown        AttackPattern = "UNKNOWN"
)

// AlertType distinguishes keyword-triggered alerts from severity-triggered ones.
type AlertType string

const (
	AlertDangerousCommand AlertType = "DANGEROUS_COMMAND"
	AlertHighThreat       AlertType = "HIGH_THREAT"
)

// -------------------- ATTACK EVENT --------------------

// AttackEvent is one captured interaction with a decoy listener. ID is zero
// until the store assigns one; persisted events are never mutated.
type AttackEvent struct {
	ID            int64         `json:"id" db:"id"`
	Timestamp     time.Time     `json:"timestamp" db:"timestamp"`
	SourceIP      string        `json:"source_ip" db:"source_ip"`
	SourcePort    int           `json:"source_port" db:"source_port"`
	Protocol      Protocol      `json:"protocol" db:"protocol"`
	AttackType    AttackType    `json:"attack_type" db:"attack_type"`
	RawPayload    string        `json:"raw_payload" db:"raw_payload"` // HTML-entity escaped
	ThreatLevel   ThreatLevel   `json:"threat_level" db:"threat_level"`
	AttackPattern AttackPattern `json:"attack_pattern" db:"attack_pattern"`
}

// Validate checks the enumerated fields and required attributes.
func (e *AttackEvent) Validate() error {
	if e.SourceIP == "" {
		return fmt.Errorf("attack event: source_ip is required")
	}
	if !e.Protocol.Valid() {
		return fmt.Errorf("attack event: invalid protocol %q", e.Protocol)
	}
	if !e.AttackType.Valid() {
		return fmt.Errorf("attack event: invalid attack_type %q", e.AttackType)
	}
	if !e.ThreatLevel.Valid() {
		return fmt.Errorf("attack event: invalid threat_level %q", e.ThreatLevel)
	}
	return nil
}

// -------------------- ALERT --------------------

// Alert is a secondary record raised when an event crosses the severity or
// keyword threshold. AttackID is nil when the event write itself failed.
type Alert struct {
	ID        int64     `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	SourceIP  string    `json:"source_ip" db:"source_ip"`
	AlertType AlertType `json:"alert_type" db:"alert_type"`
	Detail    string    `json:"detail" db:"detail"`
	AttackID  *int64    `json:"attack_id,omitempty" db:"attack_id"`
}

// -------------------- ANALYSIS --------------------

// Analysis is the analyzer verdict for a single event.
type Analysis struct {
	ThreatLevel     ThreatLevel   `json:"threat_level"`
	AttackPattern   AttackPattern `json:"attack_pattern"`
	Recommendations []string      `json:"recommendations"`
}

// IPCount pairs a source IP with its cumulative attack count.
type IPCount struct {
	IP    string `json:"ip"`
	Count int64  `json:"count"`
}

// AnalyzerStats is the live counter snapshot exposed by the analyzer.
type AnalyzerStats struct {
	AttackCountsByType map[AttackType]int64  `json:"attack_counts_by_type"`
	TopAttackingIPs    []IPCount             `json:"top_attacking_ips"`
	ThreatDistribution map[ThreatLevel]int64 `json:"threat_distribution"`
	TotalAttacks       int64                 `json:"total_attacks"`
}

// StoreStats aggregates the persisted event log.
type StoreStats struct {
	TotalAttacks         int64                 `json:"total_attacks"`
	UniqueAttackers      int64                 `json:"unique_attackers"`
	AttacksByType        map[AttackType]int64  `json:"attacks_by_type"`
	AttacksByThreatLevel map[ThreatLevel]int64 `json:"attacks_by_threat_level"`
	TopAttackingIPs      []IPCount             `json:"top_attacking_ips"`
}
