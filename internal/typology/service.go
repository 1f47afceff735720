package typology

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/quantsentinel/surveil/internal/probability"
)

// Service holds one Ready model per typology. Models are built once and
// shared read-only; a registry hot-reload rebuilds every model and swaps
// the whole set atomically so in-flight calls keep a consistent view.
type Service struct {
	models    atomic.Pointer[map[Typology]*Model]
	overrides map[Typology]Definition
	logger    *slog.Logger
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithDefinition replaces the builtin definition for one typology,
// typically with a configuration-document overlay.
func WithDefinition(def Definition) ServiceOption {
	return func(s *Service) { s.overrides[def.Typology] = def }
}

// NewService builds models for every builtin typology against the given
// registry.
func NewService(reg *probability.Registry, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{logger: logger, overrides: make(map[Typology]Definition)}
	for _, opt := range opts {
		opt(s)
	}
	models, err := s.buildModels(reg)
	if err != nil {
		return nil, err
	}
	s.models.Store(&models)
	return s, nil
}

// Model returns the scoring model for a typology.
func (s *Service) Model(t Typology) (*Model, error) {
	models := *s.models.Load()
	m, ok := models[t]
	if !ok {
		return nil, fmt.Errorf("no model for typology %q", t)
	}
	return m, nil
}

// Typologies lists the typologies this service can score.
func (s *Service) Typologies() []Typology {
	models := *s.models.Load()
	out := make([]Typology, 0, len(models))
	for _, t := range All() {
		if _, ok := models[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Reload rebuilds every model against a new registry and swaps the model
// set atomically. On any build failure the previous set stays live.
func (s *Service) Reload(reg *probability.Registry) error {
	models, err := s.buildModels(reg)
	if err != nil {
		return err
	}
	s.models.Store(&models)
	s.logger.Info("typology models reloaded", "count", len(models))
	return nil
}

func (s *Service) buildModels(reg *probability.Registry) (map[Typology]*Model, error) {
	models := make(map[Typology]*Model, len(All()))
	for _, t := range All() {
		def, ok := s.overrides[t]
		if !ok {
			var err error
			def, err = DefinitionFor(t)
			if err != nil {
				return nil, err
			}
		}
		m, err := NewModel(def, reg, WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("building %s model: %w", t, err)
		}
		models[t] = m
	}
	return models, nil
}
