package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/graph"
)

// TopologyFile is the YAML bootstrap for the dependency graph, loaded once
// at startup. Runtime mutations go through the API.
type TopologyFile struct {
	Services     []TopologyService    `yaml:"services"`
	Dependencies []TopologyDependency `yaml:"dependencies"`
}

// TopologyService declares one service and its recovery characteristics
type TopologyService struct {
	Name             string  `yaml:"name"`
	BaseRecoverySecs float64 `yaml:"base_recovery_secs"`
}

// TopologyDependency declares one directed dependency edge
type TopologyDependency struct {
	Source           string  `yaml:"source"`
	Target           string  `yaml:"target"`
	Type             string  `yaml:"type"`
	Weight           float64 `yaml:"weight"`
	TimeoutThreshold float64 `yaml:"timeout_threshold"`
	FailureThreshold int     `yaml:"failure_threshold"`
}

// LoadTopology parses a topology YAML file
func LoadTopology(path string) (*TopologyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology parses topology YAML and validates edge endpoints
func ParseTopology(data []byte) (*TopologyFile, error) {
	var tf TopologyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse topology yaml: %w", err)
	}

	for i, svc := range tf.Services {
		if svc.Name == "" {
			return nil, fmt.Errorf("topology service %d: name is required", i)
		}
	}
	for i, dep := range tf.Dependencies {
		if dep.Source == "" || dep.Target == "" {
			return nil, fmt.Errorf("topology dependency %d: source and target are required", i)
		}
		if dep.Source == dep.Target {
			return nil, fmt.Errorf("topology dependency %d: %s depends on itself", i, dep.Source)
		}
	}
	return &tf, nil
}

// Apply registers the declared services and edges on the graph
func (tf *TopologyFile) Apply(g *graph.Graph) {
	for _, svc := range tf.Services {
		g.AddService(svc.Name)
		if svc.BaseRecoverySecs > 0 {
			g.SetBaseRecoverySecs(svc.Name, svc.BaseRecoverySecs)
		}
	}
	for _, dep := range tf.Dependencies {
		g.AddDependency(domain.ServiceDependency{
			Source:           dep.Source,
			Target:           dep.Target,
			Type:             domain.DependencyType(dep.Type),
			Weight:           dep.Weight,
			TimeoutThreshold: dep.TimeoutThreshold,
			FailureThreshold: dep.FailureThreshold,
		})
	}
}
