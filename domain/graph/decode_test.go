package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGraph(t *testing.T) {
	rows := []map[string]any{
		{
			"nodes": []any{
				map[string]any{"id": "faith", "title": "Faith", "type": "TOPIC", "level": int64(1), "tags": []any{"core", ""}},
				map[string]any{"id": "q-7", "labels": []any{"QUOTE"}, "size": 3.5},
				map[string]any{"id": "faith", "type": "TOPIC"},
				map[string]any{"title": "no id"},
				"not a map",
			},
			"links": []any{
				map[string]any{"source": "faith", "target": "q-7", "type": "HAS_CHILD"},
				map[string]any{"source": "faith", "target": "q-7", "type": "HAS_CHILD"},
				map[string]any{"source": "faith", "type": "BROKEN"},
			},
		},
	}

	nodes, edges, err := DecodeGraph(rows)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Len(t, edges, 1)

	faith := nodes[0]
	assert.Equal(t, "faith", faith.ID)
	assert.Equal(t, TypeTopic, faith.Type)
	assert.Equal(t, "Faith", faith.Title)
	assert.Equal(t, []string{"core"}, faith.Tags)
	require.NotNil(t, faith.Level)
	assert.Equal(t, 1, *faith.Level)
	assert.Equal(t, 1, faith.Group)

	quote := nodes[1]
	assert.Equal(t, TypeQuote, quote.Type)
	assert.Equal(t, "q-7", quote.Name)
	require.NotNil(t, quote.Size)
	assert.InDelta(t, 3.5, *quote.Size, 1e-9)

	assert.Equal(t, Edge{Source: "faith", Target: "q-7", Type: "HAS_CHILD"}, edges[0])
}

func TestDecodeGraph_RejectsNonList(t *testing.T) {
	_, _, err := DecodeGraph([]map[string]any{{"nodes": "oops"}})
	assert.Error(t, err)
}

func TestDecodeGraph_Empty(t *testing.T) {
	nodes, edges, err := DecodeGraph(nil)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
}
