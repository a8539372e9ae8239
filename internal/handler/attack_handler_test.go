package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"honeypot-service/internal/alert"
	"honeypot-service/internal/analyzer"
	"honeypot-service/internal/config"
	"honeypot-service/internal/honeypot"
	"honeypot-service/internal/model"
	"honeypot-service/internal/store"
)

func newTestServer(t *testing.T, apiKey string) (http.Handler, *store.Memory) {
	t.Helper()

	s := store.NewMemory()
	a := analyzer.NewThreatAnalyzer()
	pl := honeypot.NewPipeline(a, s, alert.NewPolicy(s, zap.NewNop()), zap.NewNop())
	reg := honeypot.NewRegistry(config.HoneypotConfig{Host: "127.0.0.1"}, pl)
	t.Cleanup(reg.StopAll)

	h := NewAttackHandler(s, a, reg, zap.NewNop())
	return NewRouter(h, apiKey, zap.NewNop()), s
}

func seedAttack(t *testing.T, s *store.Memory, ip string, proto model.Protocol, attackType model.AttackType, level model.ThreatLevel) int64 {
	t.Helper()
	id, err := s.RecordAttack(context.Background(), &model.AttackEvent{
		Timestamp:     time.Now().UTC(),
		SourceIP:      ip,
		SourcePort:    54321,
		Protocol:      proto,
		AttackType:    attackType,
		RawPayload:    "USER=admin PASS=admin",
		ThreatLevel:   level,
		AttackPattern: model.PatternBruteForce,
	})
	require.NoError(t, err)
	return id
}

func doRequest(router http.Handler, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	router, _ := newTestServer(t, "")

	rec := doRequest(router, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestListAttacks(t *testing.T) {
	router, s := newTestServer(t, "")
	seedAttack(t, s, "10.0.0.1", model.ProtocolSSH, model.AttackSSHBruteForce, model.ThreatMedium)
	seedAttack(t, s, "10.0.0.2", model.ProtocolHTTP, model.AttackHTTPProbe, model.ThreatLow)

	rec := doRequest(router, http.MethodGet, "/api/attacks", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["count"])
}

func TestListAttacks_FilterBySourceIP(t *testing.T) {
	router, s := newTestServer(t, "")
	seedAttack(t, s, "10.0.0.1", model.ProtocolSSH, model.AttackSSHBruteForce, model.ThreatMedium)
	seedAttack(t, s, "10.0.0.2", model.ProtocolFTP, model.AttackFTPBruteForce, model.ThreatMedium)

	rec := doRequest(router, http.MethodGet, "/api/attacks?source_ip=10.0.0.2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
	attacks := data["attacks"].([]interface{})
	first := attacks[0].(map[string]interface{})
	assert.Equal(t, "10.0.0.2", first["source_ip"])
}

func TestListAttacks_BadPagination(t *testing.T) {
	router, _ := newTestServer(t, "")

	for _, target := range []string{
		"/api/attacks?limit=0",
		"/api/attacks?limit=-5",
		"/api/attacks?limit=abc",
		"/api/attacks?offset=-1",
	} {
		rec := doRequest(router, http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
		assert.False(t, decodeResponse(t, rec).Success)
	}
}

func TestGetAttack(t *testing.T) {
	router, s := newTestServer(t, "")
	id := seedAttack(t, s, "10.0.0.1", model.ProtocolSSH, model.AttackSSHBruteForce, model.ThreatHigh)

	rec := doRequest(router, http.MethodGet, fmt.Sprintf("/api/attacks/%d", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	got := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(id), got["id"])
	assert.Equal(t, "HIGH", got["threat_level"])
}

func TestGetAttack_NotFound(t *testing.T) {
	router, _ := newTestServer(t, "")

	rec := doRequest(router, http.MethodGet, "/api/attacks/9999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAttack_BadID(t *testing.T) {
	router, _ := newTestServer(t, "")

	rec := doRequest(router, http.MethodGet, "/api/attacks/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAlerts(t *testing.T) {
	router, s := newTestServer(t, "")
	attackID := seedAttack(t, s, "10.0.0.1", model.ProtocolSSH, model.AttackSSHBruteForce, model.ThreatHigh)
	_, err := s.RecordAlert(context.Background(), &model.Alert{
		Timestamp: time.Now().UTC(),
		SourceIP:  "10.0.0.1",
		AlertType: model.AlertHighThreat,
		Detail:    "threat_level=HIGH attack_type=SSH_BRUTE_FORCE data=USER=admin PASS=admin",
		AttackID:  &attackID,
	})
	require.NoError(t, err)

	rec := doRequest(router, http.MethodGet, "/api/alerts", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
}

func TestGetStatistics(t *testing.T) {
	router, s := newTestServer(t, "")
	seedAttack(t, s, "10.0.0.1", model.ProtocolSSH, model.AttackSSHBruteForce, model.ThreatMedium)
	seedAttack(t, s, "10.0.0.1", model.ProtocolFTP, model.AttackFTPBruteForce, model.ThreatMedium)

	rec := doRequest(router, http.MethodGet, "/api/statistics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	db := data["database"].(map[string]interface{})
	assert.Equal(t, float64(2), db["total_attacks"])
	assert.Equal(t, float64(1), db["unique_attackers"])
	assert.Contains(t, data, "analyzer")
}

func TestGetSummary(t *testing.T) {
	router, s := newTestServer(t, "")
	seedAttack(t, s, "10.0.0.1", model.ProtocolSSH, model.AttackSSHBruteForce, model.ThreatMedium)
	seedAttack(t, s, "10.0.0.2", model.ProtocolSSH, model.AttackSSHBruteForce, model.ThreatMedium)
	seedAttack(t, s, "10.0.0.3", model.ProtocolHTTP, model.AttackHTTPProbe, model.ThreatLow)

	rec := doRequest(router, http.MethodGet, "/api/stats/summary", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["total_attacks"])
	assert.Equal(t, float64(3), data["unique_attackers"])
	assert.Equal(t, "SSH_BRUTE_FORCE", data["most_targeted_service"])
}

func TestExportCSV(t *testing.T) {
	router, s := newTestServer(t, "")
	seedAttack(t, s, "10.0.0.1", model.ProtocolSSH, model.AttackSSHBruteForce, model.ThreatMedium)

	rec := doRequest(router, http.MethodGet, "/api/export/csv", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attacks.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,timestamp,source_ip"))
	assert.Contains(t, lines[1], "10.0.0.1")
	assert.Contains(t, lines[1], "SSH_BRUTE_FORCE")
}

func TestExportJSON(t *testing.T) {
	router, s := newTestServer(t, "")
	seedAttack(t, s, "10.0.0.1", model.ProtocolHTTP, model.AttackHTTPProbe, model.ThreatLow)

	rec := doRequest(router, http.MethodGet, "/api/export/json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attacks.json")

	var body map[string][]model.AttackEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["attacks"], 1)
	assert.Equal(t, "10.0.0.1", body["attacks"][0].SourceIP)
}

func TestHoneypotLifecycleViaAPI(t *testing.T) {
	router, _ := newTestServer(t, "")

	rec := doRequest(router, http.MethodGet, "/api/honeypots", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Empty(t, data["honeypots"])

	start := []byte(`{"type":"ssh","host":"127.0.0.1","port":0}`)
	rec = doRequest(router, http.MethodPost, "/api/honeypots/start", start, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	status := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "SSH", status["type"])
	assert.Equal(t, true, status["is_running"])

	// Same protocol twice conflicts.
	rec = doRequest(router, http.MethodPost, "/api/honeypots/start", start, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/honeypots/stop", []byte(`{"type":"ssh"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/honeypots/stop", []byte(`{"type":"ssh"}`), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartHoneypot_BadRequests(t *testing.T) {
	router, _ := newTestServer(t, "")

	rec := doRequest(router, http.MethodPost, "/api/honeypots/start", []byte(`{not json`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/honeypots/start", []byte(`{"type":"telnet"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyProtectsCommands(t *testing.T) {
	router, _ := newTestServer(t, "sekrit")

	start := []byte(`{"type":"ssh","host":"127.0.0.1","port":0}`)

	rec := doRequest(router, http.MethodPost, "/api/honeypots/start", start, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/honeypots/start", start,
		map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/honeypots/start", start,
		map[string]string{"Authorization": "Bearer sekrit"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Reads stay open.
	rec = doRequest(router, http.MethodGet, "/api/honeypots", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownEndpoint(t *testing.T) {
	router, _ := newTestServer(t, "")

	rec := doRequest(router, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
