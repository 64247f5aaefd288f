// Package graph holds the content graph model (topics, thoughts, quotes,
// passages and their content nodes) and the projections rendered by the
// force-directed graph view.
package graph

import (
	"fmt"
	"strings"
)

// NodeType is the content kind of a node, derived from its database labels.
type NodeType string

const (
	TypeAll         NodeType = "ALL"
	TypeTopic       NodeType = "TOPIC"
	TypeThought     NodeType = "THOUGHT"
	TypeQuote       NodeType = "QUOTE"
	TypePassage     NodeType = "PASSAGE"
	TypeContent     NodeType = "CONTENT"
	TypeDescription NodeType = "DESCRIPTION"

	// TypeOther is the bucket for nodes carrying none of the known labels.
	TypeOther NodeType = "OTHER"
)

// knownTypes is ordered by render group.
var knownTypes = []NodeType{
	TypeTopic,
	TypeThought,
	TypeQuote,
	TypePassage,
	TypeContent,
	TypeDescription,
}

// TypeFromLabels returns the type of the first label that names a known type.
func TypeFromLabels(labels []string) NodeType {
	for _, label := range labels {
		t := NodeType(strings.ToUpper(strings.TrimSpace(label)))
		for _, known := range knownTypes {
			if t == known {
				return known
			}
		}
	}
	return TypeOther
}

// ParseNodeType parses a filter value. The empty string selects TypeAll.
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(strings.ToUpper(strings.TrimSpace(s)))
	if t == "" || t == TypeAll {
		return TypeAll, nil
	}
	for _, known := range knownTypes {
		if t == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown node type %q", s)
}

// IsItemType reports whether t is one of the browsable item types.
func (t NodeType) IsItemType() bool {
	switch t {
	case TypeTopic, TypeThought, TypeQuote, TypePassage:
		return true
	}
	return false
}

// Group is the colour group used by the renderer.
func (t NodeType) Group() int {
	for i, known := range knownTypes {
		if t == known {
			return i + 1
		}
	}
	return len(knownTypes) + 1
}

// Node is a graph node as delivered to the visualization.
type Node struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels,omitempty"`
	Type   NodeType `json:"type"`
	Name   string   `json:"name"`
	Title  string   `json:"title,omitempty"`
	Level  *int     `json:"level,omitempty"`
	Size   *float64 `json:"size,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Group  int      `json:"group"`
}

// NewNode builds a node, deriving its type and group from labels.
func NewNode(id, name string, labels ...string) Node {
	t := TypeFromLabels(labels)
	return Node{
		ID:     id,
		Labels: labels,
		Type:   t,
		Name:   name,
		Group:  t.Group(),
	}
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	c := n
	if n.Labels != nil {
		c.Labels = append([]string(nil), n.Labels...)
	}
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	if n.Level != nil {
		level := *n.Level
		c.Level = &level
	}
	if n.Size != nil {
		size := *n.Size
		c.Size = &size
	}
	return c
}

// Edge is a directed relationship between two node ids.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// View is the {nodes, links} structure consumed by the renderer.
type View struct {
	Nodes []Node `json:"nodes"`
	Links []Edge `json:"links"`
}
