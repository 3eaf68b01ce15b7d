package guard

import (
	"log"
	"sync"
	"time"

	"github.com/meshguard/backend-go/internal/domain"
)

// DegradeConfig tunes a degradation manager. Thresholds are health scores
// at or below which the corresponding level applies; Features maps a
// feature name to the level at which it trips off.
type DegradeConfig struct {
	MinimalThreshold  float64
	ModerateThreshold float64
	SevereThreshold   float64
	CriticalThreshold float64
	Features          map[string]domain.DegradationLevel
	HistorySize       int
}

// DefaultDegradeConfig returns the degradation defaults
func DefaultDegradeConfig() DegradeConfig {
	return DegradeConfig{
		MinimalThreshold:  0.8,
		ModerateThreshold: 0.6,
		SevereThreshold:   0.4,
		CriticalThreshold: 0.2,
		HistorySize:       50,
	}
}

// LevelTransition records one degradation level change
type LevelTransition struct {
	At      time.Time               `json:"at"`
	From    domain.DegradationLevel `json:"from"`
	To      domain.DegradationLevel `json:"to"`
	Score   float64                 `json:"score"`
	Metrics map[string]float64      `json:"metrics"`
}

// DegradeStats is a point-in-time snapshot of degradation state
type DegradeStats struct {
	Service     string                  `json:"service"`
	Level       domain.DegradationLevel `json:"level"`
	Features    map[string]bool         `json:"features"`
	Transitions []LevelTransition       `json:"transitions,omitempty"`
}

// DegradationManager sheds functionality for one service based on its
// mean health score
type DegradationManager struct {
	service string
	cfg     DegradeConfig

	mu      sync.Mutex
	level   domain.DegradationLevel
	enabled map[string]bool
	history []LevelTransition
}

// NewDegradationManager creates a manager at level none with all features enabled
func NewDegradationManager(service string, cfg DegradeConfig) *DegradationManager {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultDegradeConfig().HistorySize
	}
	enabled := make(map[string]bool, len(cfg.Features))
	for feature := range cfg.Features {
		enabled[feature] = true
	}
	return &DegradationManager{
		service: service,
		cfg:     cfg,
		level:   domain.DegradationNone,
		enabled: enabled,
	}
}

// Evaluate recomputes the degradation level from the mean of the supplied
// health scores and updates feature toggles. Returns the new level.
func (m *DegradationManager) Evaluate(metrics map[string]float64) domain.DegradationLevel {
	score := meanScore(metrics)
	level := m.levelFor(score)

	m.mu.Lock()
	defer m.mu.Unlock()

	if level != m.level {
		log.Printf("Degradation level for %s: %s -> %s (score %.2f)", m.service, m.level, level, score)
		m.history = append(m.history, LevelTransition{
			At:      time.Now().UTC(),
			From:    m.level,
			To:      level,
			Score:   score,
			Metrics: metrics,
		})
		if len(m.history) > m.cfg.HistorySize {
			m.history = m.history[len(m.history)-m.cfg.HistorySize:]
		}
		m.level = level
	}

	// All features reset to enabled, then trip the configured ones
	for feature := range m.cfg.Features {
		m.enabled[feature] = true
	}
	for feature, trip := range m.cfg.Features {
		if m.level.AtLeast(trip) {
			m.enabled[feature] = false
		}
	}
	return level
}

// levelFor picks the most severe level whose threshold the score is at or below
func (m *DegradationManager) levelFor(score float64) domain.DegradationLevel {
	switch {
	case score <= m.cfg.CriticalThreshold:
		return domain.DegradationCritical
	case score <= m.cfg.SevereThreshold:
		return domain.DegradationSevere
	case score <= m.cfg.ModerateThreshold:
		return domain.DegradationModerate
	case score <= m.cfg.MinimalThreshold:
		return domain.DegradationMinimal
	default:
		return domain.DegradationNone
	}
}

// ForceLevel overrides the evaluated level, tripping features accordingly.
// The next Evaluate call supersedes it.
func (m *DegradationManager) ForceLevel(level domain.DegradationLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if level != m.level {
		log.Printf("Degradation level for %s forced: %s -> %s", m.service, m.level, level)
		m.history = append(m.history, LevelTransition{
			At:   time.Now().UTC(),
			From: m.level,
			To:   level,
		})
		if len(m.history) > m.cfg.HistorySize {
			m.history = m.history[len(m.history)-m.cfg.HistorySize:]
		}
		m.level = level
	}

	for feature := range m.cfg.Features {
		m.enabled[feature] = true
	}
	for feature, trip := range m.cfg.Features {
		if m.level.AtLeast(trip) {
			m.enabled[feature] = false
		}
	}
}

// IsFeatureEnabled returns the current toggle for a feature. Features
// without a configured trip level are always enabled.
func (m *DegradationManager) IsFeatureEnabled(feature string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	enabled, known := m.enabled[feature]
	if !known {
		return true
	}
	return enabled
}

// Level returns the current degradation level
func (m *DegradationManager) Level() domain.DegradationLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Stats returns a point-in-time snapshot including the transition history
func (m *DegradationManager) Stats() DegradeStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	features := make(map[string]bool, len(m.enabled))
	for f, on := range m.enabled {
		features[f] = on
	}
	transitions := make([]LevelTransition, len(m.history))
	copy(transitions, m.history)

	return DegradeStats{
		Service:     m.service,
		Level:       m.level,
		Features:    features,
		Transitions: transitions,
	}
}

func meanScore(metrics map[string]float64) float64 {
	if len(metrics) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, v := range metrics {
		sum += v
	}
	return sum / float64(len(metrics))
}

// DegradeGroup keys degradation managers by service name
type DegradeGroup struct {
	mu       sync.Mutex
	cfg      DegradeConfig
	managers map[string]*DegradationManager
}

// NewDegradeGroup creates a group that applies cfg to new managers
func NewDegradeGroup(cfg DegradeConfig) *DegradeGroup {
	return &DegradeGroup{
		cfg:      cfg,
		managers: make(map[string]*DegradationManager),
	}
}

// Get returns the manager for a service, creating it if absent
func (g *DegradeGroup) Get(service string) *DegradationManager {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.managers[service]
	if !ok {
		m = NewDegradationManager(service, g.cfg)
		g.managers[service] = m
	}
	return m
}

// Snapshot returns stats for every known manager
func (g *DegradeGroup) Snapshot() map[string]DegradeStats {
	g.mu.Lock()
	managers := make([]*DegradationManager, 0, len(g.managers))
	for _, m := range g.managers {
		managers = append(managers, m)
	}
	g.mu.Unlock()

	out := make(map[string]DegradeStats, len(managers))
	for _, m := range managers {
		out[m.service] = m.Stats()
	}
	return out
}
