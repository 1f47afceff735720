package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsentinel/surveil/internal/config"
	"github.com/quantsentinel/surveil/internal/health"
	"github.com/quantsentinel/surveil/internal/probability"
	"github.com/quantsentinel/surveil/internal/typology"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service, err := typology.NewService(probability.NewRegistry(), nil)
	require.NoError(t, err)

	srv, err := New(&config.Config{
		Port:            "8080",
		Env:             "test",
		LogFmt:          "text",
		RateLimitRPS:    100,
		ShutdownSeconds: 1,
	}, service)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestListTypologies(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/typologies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Typologies []string `json:"typologies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Typologies, 7)
	assert.Contains(t, resp.Typologies, "market_cornering")
}

func TestRequiredNodes(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/typologies/market_cornering/nodes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Typology string   `json:"typology"`
		Nodes    []string `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "market_cornering", resp.Typology)
	assert.Len(t, resp.Nodes, 6)
	assert.Contains(t, resp.Nodes, "market_concentration")
}

func TestUnknownTypology(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/typologies/carousel_fraud/nodes", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unknown_typology", resp["error"])
}

func TestCalculateRisk_Endpoint(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/typologies/market_cornering/calculate", map[string]any{
		"account_id": "ACC-42",
		"alert_id":   "ALERT-7",
		"evidence": map[string]any{
			"market_concentration":   2,
			"supply_control":         2,
			"position_accumulation":  2,
			"liquidity_manipulation": 1,
			"price_distortion":       "medium",
			"delivery_constraint":    0,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp typology.OutcomeAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, typology.MarketCornering, resp.Typology)
	assert.Equal(t, typology.RiskHigh, resp.RiskLevel)
	assert.Greater(t, resp.OverallScore, 0.7)
	assert.Len(t, resp.EvidenceNodes, 6)
	assert.NotEmpty(t, resp.ContributingFactors)
}

func TestCalculateRisk_InvalidEvidence(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/typologies/spoofing/calculate", map[string]any{
		"evidence": map[string]any{"order_cancellation": 9},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_evidence", resp["error"])
}

func TestCalculateRisk_FractionalEvidence(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/typologies/spoofing/calculate", map[string]any{
		"evidence": map[string]any{"order_cancellation": 1.7},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_evidence", resp["error"])
}

func TestCalculateRisk_MalformedBody(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/typologies/spoofing/calculate", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateEvidence_Endpoint(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/typologies/market_cornering/validate-evidence", map[string]any{
		"evidence": map[string]any{
			"market_concentration":  2,
			"supply_control":        1,
			"position_accumulation": 0,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report typology.ValidationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Valid)
	assert.InDelta(t, 0.5, report.Completeness, 1e-9)
	assert.Len(t, report.MissingNodes, 3)
}

func TestExplain_Endpoint(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/typologies/market_cornering/explain", map[string]any{
		"account_id": "ACC-42",
		"evidence": map[string]any{
			"market_concentration": 2,
			"supply_control":       2,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Assessment    typology.OutcomeAssessment `json:"assessment"`
		EvidenceItems []typology.EvidenceItem    `json:"evidence_items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.EvidenceItems, 6)
	assert.Equal(t, "ACC-42", resp.EvidenceItems[0].AccountID)
	assert.NotEmpty(t, resp.EvidenceItems[0].RegulatoryBasis)
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Healthy    bool            `json:"healthy"`
		Subsystems []health.Status `json:"subsystems"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Healthy)
	assert.Len(t, resp.Subsystems, 7)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "surveil_")
}
