package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcp_verifier/internal/evidence/evidencetest"
	"vcp_verifier/internal/policy"
	"vcp_verifier/internal/server"
	"vcp_verifier/internal/verify"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	b := evidencetest.New()
	b.AddOrders(5)
	require.NoError(t, b.WritePack(dir))

	handler := &server.Handler{
		Engine:    verify.New(verify.Config{}),
		RuleTable: policy.DefaultRuleTable(),
	}
	ts := httptest.NewServer(server.New(handler))
	t.Cleanup(ts.Close)
	return ts, dir
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestVerifyEndpoint(t *testing.T) {
	ts, dir := newTestServer(t)

	body := `{"pack_dir": ` + mustJSON(t, dir) + `}`
	resp, err := http.Post(ts.URL+"/verify", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report verify.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, verify.StatusPass, report.Overall)
	assert.Equal(t, 5, report.Summary.EventsChecked)
}

func TestVerifyEndpointTierOverride(t *testing.T) {
	ts, dir := newTestServer(t)

	// Millisecond timestamps cannot satisfy gold.
	body := `{"pack_dir": ` + mustJSON(t, dir) + `, "tier": "gold"}`
	resp, err := http.Post(ts.URL+"/verify", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report verify.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, verify.StatusFail, report.Overall)
	assert.Equal(t, "gold", report.Tier)
}

func TestVerifyEndpointRejectsBadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/verify", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/verify", "application/json", strings.NewReader(`{"pack_dir": "/nonexistent"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/verify", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTiersEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/tiers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var table map[string]policy.Rules
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&table))
	assert.Contains(t, table, "gold")
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
