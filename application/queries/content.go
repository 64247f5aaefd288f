package queries

import (
	"strings"

	"wisdom-backend/domain/graph"
	apperrors "wisdom-backend/pkg/errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a listing. Pages are 1-based.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

// Normalize fills in defaults for zero values.
func (p Page) Normalize() Page {
	if p.Number == 0 {
		p.Number = 1
	}
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	return p
}

// Validate validates the page window
func (p Page) Validate() error {
	if p.Number < 1 {
		return apperrors.NewValidation("page must be at least 1").WithCode("INVALID_PAGE")
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return apperrors.NewValidation("page_size must be between 1 and 100").WithCode("INVALID_PAGE_SIZE")
	}
	return nil
}

// Skip is the number of rows before the window.
func (p Page) Skip() int {
	return (p.Number - 1) * p.Size
}

// ListItemsQuery lists the items of one browsable type
type ListItemsQuery struct {
	Type graph.NodeType
	Page Page
}

// Validate validates the ListItemsQuery
func (q ListItemsQuery) Validate() error {
	if !q.Type.IsItemType() {
		return invalidItemType(q.Type)
	}
	return q.Page.Validate()
}

// GetItemQuery fetches one item by type and name
type GetItemQuery struct {
	Type graph.NodeType
	ID   string
}

// Validate validates the GetItemQuery
func (q GetItemQuery) Validate() error {
	if !q.Type.IsItemType() {
		return invalidItemType(q.Type)
	}
	if strings.TrimSpace(q.ID) == "" {
		return apperrors.NewValidation("item id is required").WithCode("MISSING_ID")
	}
	return nil
}

// SearchQuery searches names, titles, content and tags of every item type
type SearchQuery struct {
	Term string
	Page Page
}

// Validate validates the SearchQuery
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.Term) == "" {
		return apperrors.NewValidation("Search term is required").WithCode("MISSING_TERM")
	}
	return q.Page.Validate()
}

// ItemsByTagQuery lists the items carrying a tag
type ItemsByTagQuery struct {
	Tag  string
	Page Page
}

// Validate validates the ItemsByTagQuery
func (q ItemsByTagQuery) Validate() error {
	if strings.TrimSpace(q.Tag) == "" {
		return apperrors.NewValidation("tag is required").WithCode("MISSING_TAG")
	}
	return q.Page.Validate()
}

// GraphQuery selects a graph view. With NodeID and NodeType set the view is
// focused on the two-hop neighbourhood of that node, otherwise it covers the
// whole content graph. Type filters the result.
type GraphQuery struct {
	Type     graph.NodeType
	NodeID   string
	NodeType graph.NodeType
}

// Focused reports whether the query targets one node.
func (q GraphQuery) Focused() bool {
	return q.NodeID != "" && q.NodeType != ""
}

// Validate validates the GraphQuery
func (q GraphQuery) Validate() error {
	if q.Type == "" {
		return apperrors.NewValidation("graph type is required").WithCode("INVALID_TYPE")
	}
	if (q.NodeID == "") != (q.NodeType == "") {
		return apperrors.NewValidation("node_id and node_type must be given together").WithCode("INVALID_FOCUS")
	}
	if q.NodeType != "" && !q.NodeType.IsItemType() {
		return invalidItemType(q.NodeType)
	}
	return nil
}

// TagCount is one tag and the number of items carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

func invalidItemType(t graph.NodeType) error {
	return apperrors.NewValidation("Invalid item type: " + string(t)).WithCode("INVALID_TYPE")
}
