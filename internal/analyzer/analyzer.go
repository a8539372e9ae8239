package analyzer

import (
	"fmt"
	"sort"
	"sync"

	"honeypot-service/internal/model"
)

// Escalation thresholds on the cumulative per-IP attack count.
const (
	mediumThreshold   = 3
	highThreshold     = 10
	criticalThreshold = 25
)

const topIPLimit = 10

// ThreatAnalyzer tracks per-source behavior across all listeners and derives
// a threat level for each captured event. One instance is shared by every
// connection handler; all counter access goes through a single mutex.
type ThreatAnalyzer struct {
	mu           sync.Mutex
	attackCounts map[string]int64 // keyed by source IP
	ipOrder      []string         // IPs in first-seen order, for stable top-N ties
	typeCounts   map[model.AttackType]int64
	threatCounts map[model.ThreatLevel]int64
}

func NewThreatAnalyzer() *ThreatAnalyzer {
	return &ThreatAnalyzer{
		attackCounts: make(map[string]int64),
		typeCounts:   make(map[model.AttackType]int64),
		threatCounts: make(map[model.ThreatLevel]int64),
	}
}

// Analyze classifies an event and updates the behavior counters. It never
// fails: unknown sources start from a zero count and fall through to a
// LOW/UNKNOWN verdict.
func (a *ThreatAnalyzer) Analyze(event *model.AttackEvent) model.Analysis {
	sourceIP := event.SourceIP
	if sourceIP == "" {
		sourceIP = "unknown"
	}
	attackType := event.AttackType

	a.mu.Lock()
	if _, seen := a.attackCounts[sourceIP]; !seen {
		a.ipOrder = append(a.ipOrder, sourceIP)
	}
	a.attackCounts[sourceIP]++
	a.typeCounts[attackType]++
	history := a.attackCounts[sourceIP]
	a.mu.Unlock()

	level := computeThreatLevel(history, attackType)
	pattern := detectPattern(attackType)
	recs := buildRecommendations(level, pattern, sourceIP)

	a.mu.Lock()
	a.threatCounts[level]++
	a.mu.Unlock()

	return model.Analysis{
		ThreatLevel:     level,
		AttackPattern:   pattern,
		Recommendations: recs,
	}
}

// GetStatistics returns a snapshot of the live counters. TotalAttacks is the
// sum of the per-type counts.
func (a *ThreatAnalyzer) GetStatistics() model.AnalyzerStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	typeCounts := make(map[model.AttackType]int64, len(a.typeCounts))
	var total int64
	for t, n := range a.typeCounts {
		typeCounts[t] = n
		total += n
	}

	threatCounts := make(map[model.ThreatLevel]int64, len(a.threatCounts))
	for l, n := range a.threatCounts {
		threatCounts[l] = n
	}

	top := make([]model.IPCount, 0, len(a.ipOrder))
	for _, ip := range a.ipOrder {
		top = append(top, model.IPCount{IP: ip, Count: a.attackCounts[ip]})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})
	if len(top) > topIPLimit {
		top = top[:topIPLimit]
	}

	return model.AnalyzerStats{
		AttackCountsByType: typeCounts,
		TopAttackingIPs:    top,
		ThreatDistribution: threatCounts,
		TotalAttacks:       total,
	}
}

// Reset clears all counters. Intended for test isolation only.
func (a *ThreatAnalyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attackCounts = make(map[string]int64)
	a.ipOrder = nil
	a.typeCounts = make(map[model.AttackType]int64)
	a.threatCounts = make(map[model.ThreatLevel]int64)
}

func computeThreatLevel(history int64, attackType model.AttackType) model.ThreatLevel {
	switch {
	case history >= criticalThreshold:
		return model.ThreatCritical
	case history >= highThreshold:
		return model.ThreatHigh
	case history >= mediumThreshold || isBruteForce(attackType):
		return model.ThreatMedium
	default:
		return model.ThreatLow
	}
}

func detectPattern(attackType model.AttackType) model.AttackPattern {
	switch attackType {
	case model.AttackSSHBruteForce, model.AttackFTPBruteForce:
		return model.PatternBruteForce
	case model.AttackHTTPProbe:
		return model.PatternReconnaissance
	default:
		return model.PatternExploitAttempt
	}
}

func isBruteForce(attackType model.AttackType) bool {
	return attackType == model.AttackSSHBruteForce || attackType == model.AttackFTPBruteForce
}

func buildRecommendations(level model.ThreatLevel, pattern model.AttackPattern, ip string) []string {
	var recs []string
	if level == model.ThreatHigh || level == model.ThreatCritical {
		recs = append(recs, fmt.Sprintf("Block IP %s immediately at the firewall level.", ip))
	}
	switch pattern {
	case model.PatternBruteForce:
		recs = append(recs,
			"Enable account lockout policies and consider fail2ban.",
			"Disable password authentication and enforce SSH key-based login.")
	case model.PatternReconnaissance:
		recs = append(recs,
			"Review exposed HTTP endpoints and remove unnecessary server banners.",
			"Enable a Web Application Firewall (WAF).")
	default:
		recs = append(recs, "Investigate the source IP and review related logs.")
	}
	if level == model.ThreatCritical {
		recs = append(recs, "Escalate to the incident response team.")
	}
	return recs
}
