package analyzer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeypot-service/internal/model"
)

func analyzeN(a *ThreatAnalyzer, ip string, attackType model.AttackType, n int) model.Analysis {
	var last model.Analysis
	for i := 0; i < n; i++ {
		last = a.Analyze(&model.AttackEvent{
			SourceIP:   ip,
			Protocol:   model.ProtocolSSH,
			AttackType: attackType,
		})
	}
	return last
}

func TestAnalyze_ThresholdLadder_BruteForce(t *testing.T) {
	cases := []struct {
		count int
		want  model.ThreatLevel
	}{
		{1, model.ThreatMedium}, // brute-force floor
		{2, model.ThreatMedium},
		{3, model.ThreatMedium},
		{9, model.ThreatMedium},
		{10, model.ThreatHigh},
		{24, model.ThreatHigh},
		{25, model.ThreatCritical},
		{40, model.ThreatCritical},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("count_%d", tc.count), func(t *testing.T) {
			a := NewThreatAnalyzer()
			got := analyzeN(a, "10.0.0.1", model.AttackSSHBruteForce, tc.count)
			assert.Equal(t, tc.want, got.ThreatLevel)
			assert.Equal(t, model.PatternBruteForce, got.AttackPattern)
		})
	}
}

func TestAnalyze_ThresholdLadder_Probe(t *testing.T) {
	cases := []struct {
		count int
		want  model.ThreatLevel
	}{
		{1, model.ThreatLow}, // no brute-force floor for probes
		{2, model.ThreatLow},
		{3, model.ThreatMedium},
		{10, model.ThreatHigh},
		{25, model.ThreatCritical},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("count_%d", tc.count), func(t *testing.T) {
			a := NewThreatAnalyzer()
			got := analyzeN(a, "10.0.0.2", model.AttackHTTPProbe, tc.count)
			assert.Equal(t, tc.want, got.ThreatLevel)
			assert.Equal(t, model.PatternReconnaissance, got.AttackPattern)
		})
	}
}

func TestAnalyze_VolumeEscalatesRegardlessOfType(t *testing.T) {
	// 12 probe events from one IP cross the HIGH threshold even though
	// HTTP_PROBE is not a brute-force type.
	a := NewThreatAnalyzer()
	got := analyzeN(a, "5.5.5.5", model.AttackHTTPProbe, 12)
	assert.Contains(t, []model.ThreatLevel{model.ThreatHigh, model.ThreatCritical}, got.ThreatLevel)
}

func TestAnalyze_GlobalCounterSharedAcrossTypes(t *testing.T) {
	// The escalation counter is per-IP, not per-type: mixed traffic from one
	// source still climbs the same ladder.
	a := NewThreatAnalyzer()
	analyzeN(a, "10.0.0.3", model.AttackHTTPProbe, 5)
	got := analyzeN(a, "10.0.0.3", model.AttackSSHBruteForce, 5)
	assert.Equal(t, model.ThreatHigh, got.ThreatLevel)
}

func TestAnalyze_Recommendations(t *testing.T) {
	a := NewThreatAnalyzer()

	got := analyzeN(a, "10.0.0.4", model.AttackSSHBruteForce, 1)
	require.NotEmpty(t, got.Recommendations)
	assert.Contains(t, got.Recommendations[0], "fail2ban")

	got = analyzeN(a, "10.0.0.4", model.AttackSSHBruteForce, 24) // total 25
	require.GreaterOrEqual(t, len(got.Recommendations), 4)
	assert.Contains(t, got.Recommendations[0], "Block IP 10.0.0.4")
	assert.Equal(t, "Escalate to the incident response team.", got.Recommendations[len(got.Recommendations)-1])
}

func TestGetStatistics_TotalMatchesTypeCounts(t *testing.T) {
	a := NewThreatAnalyzer()
	analyzeN(a, "1.1.1.1", model.AttackSSHBruteForce, 4)
	analyzeN(a, "2.2.2.2", model.AttackHTTPProbe, 7)
	analyzeN(a, "3.3.3.3", model.AttackFTPBruteForce, 2)

	stats := a.GetStatistics()

	var sum int64
	for _, n := range stats.AttackCountsByType {
		sum += n
	}
	assert.Equal(t, sum, stats.TotalAttacks)
	assert.Equal(t, int64(13), stats.TotalAttacks)
	assert.Equal(t, int64(4), stats.AttackCountsByType[model.AttackSSHBruteForce])
}

func TestGetStatistics_TopIPsOrderedWithStableTies(t *testing.T) {
	a := NewThreatAnalyzer()
	analyzeN(a, "1.1.1.1", model.AttackHTTPProbe, 2)
	analyzeN(a, "2.2.2.2", model.AttackHTTPProbe, 5)
	analyzeN(a, "3.3.3.3", model.AttackHTTPProbe, 2)

	stats := a.GetStatistics()
	require.Len(t, stats.TopAttackingIPs, 3)
	assert.Equal(t, "2.2.2.2", stats.TopAttackingIPs[0].IP)
	// Equal counts keep first-seen order.
	assert.Equal(t, "1.1.1.1", stats.TopAttackingIPs[1].IP)
	assert.Equal(t, "3.3.3.3", stats.TopAttackingIPs[2].IP)
}

func TestGetStatistics_TopIPsCappedAtTen(t *testing.T) {
	a := NewThreatAnalyzer()
	for i := 0; i < 15; i++ {
		analyzeN(a, fmt.Sprintf("10.1.0.%d", i), model.AttackHTTPProbe, i+1)
	}

	stats := a.GetStatistics()
	require.Len(t, stats.TopAttackingIPs, 10)
	assert.Equal(t, "10.1.0.14", stats.TopAttackingIPs[0].IP)
	assert.Equal(t, int64(15), stats.TopAttackingIPs[0].Count)
}

func TestReset_ClearsAllCounters(t *testing.T) {
	a := NewThreatAnalyzer()
	analyzeN(a, "1.1.1.1", model.AttackSSHBruteForce, 30)
	a.Reset()

	stats := a.GetStatistics()
	assert.Zero(t, stats.TotalAttacks)
	assert.Empty(t, stats.TopAttackingIPs)
	assert.Empty(t, stats.ThreatDistribution)

	// History starts over after a reset.
	got := analyzeN(a, "1.1.1.1", model.AttackHTTPProbe, 1)
	assert.Equal(t, model.ThreatLow, got.ThreatLevel)
}

func TestAnalyze_Concurrent(t *testing.T) {
	a := NewThreatAnalyzer()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analyzeN(a, "9.9.9.9", model.AttackHTTPProbe, 25)
		}()
	}
	wg.Wait()

	stats := a.GetStatistics()
	assert.Equal(t, int64(200), stats.TotalAttacks)
	require.Len(t, stats.TopAttackingIPs, 1)
	assert.Equal(t, int64(200), stats.TopAttackingIPs[0].Count)
}

func TestAnalyze_EmptySourceDefaults(t *testing.T) {
	a := NewThreatAnalyzer()
	got := a.Analyze(&model.AttackEvent{AttackType: model.AttackHTTPProbe})
	assert.Equal(t, model.ThreatLow, got.ThreatLevel)

	stats := a.GetStatistics()
	require.Len(t, stats.TopAttackingIPs, 1)
	assert.Equal(t, "unknown", stats.TopAttackingIPs[0].IP)
}
