package config

import (
	"testing"

	"github.com/meshguard/backend-go/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topologyYAML = `
services:
  - name: frontend
  - name: checkout
    base_recovery_secs: 90
  - name: payments
dependencies:
  - source: frontend
    target: checkout
    type: hard
    weight: 1.0
  - source: checkout
    target: payments
    type: soft
    weight: 0.8
    timeout_threshold: 500
    failure_threshold: 3
`

func TestParseTopology(t *testing.T) {
	tf, err := ParseTopology([]byte(topologyYAML))
	require.NoError(t, err)

	require.Len(t, tf.Services, 3)
	assert.Equal(t, 90.0, tf.Services[1].BaseRecoverySecs)

	require.Len(t, tf.Dependencies, 2)
	assert.Equal(t, "soft", tf.Dependencies[1].Type)
	assert.Equal(t, 3, tf.Dependencies[1].FailureThreshold)
}

func TestParseTopologyRejectsSelfDependency(t *testing.T) {
	_, err := ParseTopology([]byte(`
dependencies:
  - source: a
    target: a
`))
	assert.Error(t, err)
}

func TestParseTopologyRejectsUnnamedService(t *testing.T) {
	_, err := ParseTopology([]byte(`
services:
  - base_recovery_secs: 10
`))
	assert.Error(t, err)
}

func TestTopologyApply(t *testing.T) {
	tf, err := ParseTopology([]byte(topologyYAML))
	require.NoError(t, err)

	g := graph.New(graph.DefaultConfig())
	tf.Apply(g)

	export := g.Export()
	assert.Equal(t, 3, export.Stats.ServiceCount)
	assert.Equal(t, 2, export.Stats.DependencyCount)

	node, err := g.Node("frontend")
	require.NoError(t, err)
	assert.Contains(t, node.Dependencies, "checkout")
}
