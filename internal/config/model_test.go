package config

import (
	"testing"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validModel() *Model {
	return &Model{
		Nodes: []*NodeDef{
			{Kind: KindSource, Name: "root", Path: "src", Enabled: true},
			{Kind: KindTransform, Name: "up", Input: "root", Plugin: "uppercase", Enabled: true},
			{Kind: KindMerge, Name: "site", Inputs: []string{"root", "up"}, Enabled: true},
		},
		Output: &Output{Node: "site"},
	}
}

func TestModelGraph(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m := validModel()
		g, err := m.Graph()
		require.NoError(t, err)
		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"root", "up", "site"}, order)
		assert.Equal(t, "up", m.Node("up").Name)
		assert.Nil(t, m.Node("nope"))
	})

	tests := []struct {
		name   string
		mutate func(m *Model)
		msg    string
	}{
		{"duplicate name", func(m *Model) {
			m.Nodes = append(m.Nodes, &NodeDef{Kind: KindSource, Name: "root", Path: "x"})
		}, "declared more than once"},
		{"unknown input", func(m *Model) { m.Nodes[1].Input = "missing" }, "unknown node \"missing\""},
		{"cycle", func(m *Model) {
			m.Nodes[1].Input = "site"
		}, "cycle detected"},
		{"missing output", func(m *Model) { m.Output = nil }, "no output block"},
		{"unknown output", func(m *Model) { m.Output.Node = "dist" }, "unknown node \"dist\""},
		{"source without path", func(m *Model) { m.Nodes[0].Path = "" }, "needs a path"},
		{"transform without plugin", func(m *Model) { m.Nodes[1].Plugin = "" }, "needs an input and a plugin"},
		{"empty merge", func(m *Model) { m.Nodes[2].Inputs = nil }, "at least one input"},
		{"observe with accept", func(m *Model) {
			m.Nodes = append(m.Nodes, &NodeDef{Kind: KindObserve, Name: "lint", Input: "up", Plugin: "x", Accept: []string{".js"}})
		}, "cannot set accept"},
		{"unknown kind", func(m *Model) { m.Nodes[0].Kind = "copy" }, "unknown node kind"},
		{"no nodes", func(m *Model) { m.Nodes = nil }, "declares no nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModel()
			tt.mutate(m)
			_, err := m.Graph()
			require.Error(t, err)
			assert.Equal(t, builderr.InvalidConfig, builderr.CodeOf(err))
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}
