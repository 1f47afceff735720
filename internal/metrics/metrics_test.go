package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.want {
			t.Errorf("statusBucket(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/api/v1/typologies/:typology/nodes", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/typologies/spoofing/nodes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("instrumented route returned %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics returned %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "surveil_http_requests_total") {
		t.Error("request counter missing from exposition")
	}
	// The route pattern, not the concrete path, is the label value.
	if !strings.Contains(body, "/api/v1/typologies/:typology/nodes") {
		t.Error("route pattern label missing from exposition")
	}
	if strings.Contains(body, "/api/v1/typologies/spoofing/nodes") {
		t.Error("concrete request path leaked into labels")
	}
}

func TestEngineMetricsRegistered(t *testing.T) {
	InferencesTotal.WithLabelValues("spoofing", "LOW").Inc()
	InferenceErrorsTotal.WithLabelValues("spoofing").Inc()
	InferenceDuration.WithLabelValues("spoofing").Observe(0.001)
	EvidenceCompleteness.WithLabelValues("spoofing").Observe(0.5)
	ModelsReady.Set(7)
	RegistryReloadsTotal.Inc()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, name := range []string{
		"surveil_inferences_total",
		"surveil_inference_errors_total",
		"surveil_inference_duration_seconds",
		"surveil_evidence_completeness_ratio",
		"surveil_models_ready",
		"surveil_registry_reloads_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %s missing from exposition", name)
		}
	}
}
