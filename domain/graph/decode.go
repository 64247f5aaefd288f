package graph

import (
	"fmt"
	"strings"
)

// DecodeGraph converts the rows of a whole-graph query into nodes and edges.
// Each row may carry a "nodes" list and a "links" list of property maps, the
// shape produced by collect(DISTINCT {...}). Duplicate node ids and identical
// edges are collapsed; entries without an id (or endpoints) are skipped.
func DecodeGraph(rows []map[string]any) ([]Node, []Edge, error) {
	var (
		nodes     []Node
		edges     []Edge
		seenNodes = make(map[string]struct{})
		seenEdges = make(map[Edge]struct{})
	)

	for i, row := range rows {
		rawNodes, err := listValue(row["nodes"])
		if err != nil {
			return nil, nil, fmt.Errorf("row %d nodes: %w", i, err)
		}
		for _, raw := range rawNodes {
			props, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			n, ok := decodeNode(props)
			if !ok {
				continue
			}
			if _, dup := seenNodes[n.ID]; dup {
				continue
			}
			seenNodes[n.ID] = struct{}{}
			nodes = append(nodes, n)
		}

		rawLinks, err := listValue(row["links"])
		if err != nil {
			return nil, nil, fmt.Errorf("row %d links: %w", i, err)
		}
		for _, raw := range rawLinks {
			props, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			e := Edge{
				Source: stringValue(props["source"]),
				Target: stringValue(props["target"]),
				Type:   stringValue(props["type"]),
			}
			if e.Source == "" || e.Target == "" {
				continue
			}
			if _, dup := seenEdges[e]; dup {
				continue
			}
			seenEdges[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	return nodes, edges, nil
}

func decodeNode(props map[string]any) (Node, bool) {
	id := stringValue(props["id"])
	if id == "" {
		return Node{}, false
	}

	labels := stringsValue(props["labels"])
	if len(labels) == 0 {
		if t := stringValue(props["type"]); t != "" {
			labels = []string{t}
		}
	}

	name := stringValue(props["name"])
	if name == "" {
		name = id
	}

	n := NewNode(id, name, labels...)
	n.Title = stringValue(props["title"])
	n.Tags = stringsValue(props["tags"])
	if level, ok := intValue(props["level"]); ok {
		n.Level = &level
	}
	if size, ok := floatValue(props["size"]); ok {
		n.Size = &size
	}
	return n, true
}

func listValue(v any) ([]any, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return list, nil
	case []map[string]any:
		out := make([]any, len(list))
		for i := range list {
			out[i] = list[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func stringsValue(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := strings.TrimSpace(stringValue(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if list == "" {
			return nil
		}
		return []string{list}
	}
	return nil
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
