package server

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantsentinel/surveil/internal/bnet"
	"github.com/quantsentinel/surveil/internal/logging"
	"github.com/quantsentinel/surveil/internal/metrics"
	"github.com/quantsentinel/surveil/internal/typology"
)

// calculateRequest is the wire form of an evidence assignment. Evidence
// values are 0-based state indexes or state-name strings.
type calculateRequest struct {
	AccountID string         `json:"account_id"`
	AlertID   string         `json:"alert_id"`
	Evidence  map[string]any `json:"evidence"`
}

type explainRequest struct {
	AccountID string         `json:"account_id"`
	AlertID   string         `json:"alert_id"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Evidence  map[string]any `json:"evidence"`
}

func (s *Server) registerRoutes(r *gin.RouterGroup) {
	r.GET("/typologies", s.listTypologies)
	r.GET("/typologies/:typology/nodes", s.requiredNodes)
	r.POST("/typologies/:typology/validate-evidence", s.validateEvidence)
	r.POST("/typologies/:typology/calculate", s.calculateRisk)
	r.POST("/typologies/:typology/explain", s.explain)
}

// model resolves the :typology path parameter, writing the error
// response itself when resolution fails.
func (s *Server) model(c *gin.Context) (*typology.Model, bool) {
	t, err := typology.Parse(c.Param("typology"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "unknown_typology",
			"message": err.Error(),
		})
		return nil, false
	}
	m, err := s.service.Model(t)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":   "model_unavailable",
			"message": err.Error(),
		})
		return nil, false
	}
	return m, true
}

func (s *Server) listTypologies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"typologies": s.service.Typologies()})
}

func (s *Server) requiredNodes(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"typology": m.Typology(),
		"nodes":    m.GetRequiredNodes(),
	})
}

func (s *Server) validateEvidence(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m.ValidateEvidence(toAssignment(req.Evidence)))
}

func (s *Server) calculateRisk(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	ctx := logging.WithLogger(c.Request.Context(), s.logger)
	if req.AlertID != "" {
		ctx = logging.WithAlertID(ctx, req.AlertID)
	}

	assignment := toAssignment(req.Evidence)
	name := string(m.Typology())

	timer := prometheus.NewTimer(metrics.InferenceDuration.WithLabelValues(name))
	assessment, err := m.CalculateRisk(assignment)
	timer.ObserveDuration()

	if err != nil {
		metrics.InferenceErrorsTotal.WithLabelValues(name).Inc()
		s.writeEngineError(c, err)
		return
	}

	metrics.InferencesTotal.WithLabelValues(name, string(assessment.RiskLevel)).Inc()
	metrics.EvidenceCompleteness.WithLabelValues(name).Observe(m.ValidateEvidence(assignment).Completeness)

	logging.L(ctx).Info("risk assessed",
		"typology", name,
		"account_id", req.AccountID,
		"score", assessment.OverallScore,
		"risk_level", assessment.RiskLevel,
	)
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) explain(c *gin.Context) {
	m, ok := s.model(c)
	if !ok {
		return
	}
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	assignment := toAssignment(req.Evidence)
	assessment, err := m.CalculateRisk(assignment)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	items := m.GenerateRegulatoryExplanation(assignment, assessment, req.AccountID, ts)
	c.JSON(http.StatusOK, gin.H{
		"assessment":     assessment,
		"evidence_items": items,
	})
}

// writeEngineError maps the engine's typed errors onto HTTP statuses.
func (s *Server) writeEngineError(c *gin.Context, err error) {
	var cfgErr *bnet.ConfigurationError
	var asmErr *bnet.AssemblyValidationError
	var infErr *bnet.InferenceError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_evidence", "message": err.Error()})
	case errors.As(err, &asmErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model_not_ready", "message": err.Error()})
	case errors.As(err, &infErr):
		s.logger.Error("inference failure", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "inference_failed", "message": err.Error()})
	default:
		s.logger.Error("unexpected engine error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
	}
}

// toAssignment converts wire evidence values into typed state values.
// JSON numbers arrive as float64; only whole numbers are accepted as
// state indexes, a fractional value never silently rounds to a state.
func toAssignment(evidence map[string]any) typology.EvidenceAssignment {
	assignment := make(typology.EvidenceAssignment, len(evidence))
	for node, raw := range evidence {
		switch v := raw.(type) {
		case float64:
			if v != math.Trunc(v) {
				assignment[typology.NodeName(node)] = typology.State(-1)
				continue
			}
			assignment[typology.NodeName(node)] = typology.State(int(v))
		case string:
			assignment[typology.NodeName(node)] = typology.StateNamed(v)
		default:
			// Unsupported values surface as invalid at validation time.
			assignment[typology.NodeName(node)] = typology.State(-1)
		}
	}
	return assignment
}
