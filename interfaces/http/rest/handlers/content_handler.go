package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wisdom-backend/application/queries"
	"wisdom-backend/domain/graph"
	"wisdom-backend/infrastructure/graphdb"
	"wisdom-backend/pkg/errors"
)

// ContentQueries is the read side the content handlers serve.
type ContentQueries interface {
	ListItems(ctx context.Context, q queries.ListItemsQuery) ([]graphdb.Record, error)
	GetItem(ctx context.Context, q queries.GetItemQuery) (graphdb.Record, error)
	Search(ctx context.Context, q queries.SearchQuery) ([]graphdb.Record, error)
	Tags(ctx context.Context) ([]queries.TagCount, error)
	ItemsByTag(ctx context.Context, q queries.ItemsByTagQuery) ([]graphdb.Record, error)
	GraphView(ctx context.Context, q queries.GraphQuery) (graph.View, error)
	HealthCheck(ctx context.Context) error
}

// PageResponse is the envelope of paginated listings.
type PageResponse struct {
	Results    []graphdb.Record `json:"results"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	SearchTerm string           `json:"search_term,omitempty"`
	Tag        string           `json:"tag,omitempty"`
}

// ContentHandler handles the content browsing endpoints
type ContentHandler struct {
	content      ContentQueries
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewContentHandler creates a new content handler
func NewContentHandler(content ContentQueries, logger *zap.Logger, errorHandler *errors.ErrorHandler) *ContentHandler {
	return &ContentHandler{
		content:      content,
		logger:       logger,
		errorHandler: errorHandler,
	}
}

// ListItems returns a handler for GET /{thoughts,topics,quotes,passages}
func (h *ContentHandler) ListItems(itemType graph.NodeType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := parsePage(r)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}

		items, err := h.content.ListItems(r.Context(), queries.ListItemsQuery{Type: itemType, Page: page})
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}

		respondJSON(h.logger, w, http.StatusOK, PageResponse{
			Results:  nonNil(items),
			Page:     page.Number,
			PageSize: page.Size,
		})
	}
}

// GetItem handles GET /items/{type}/{id}
func (h *ContentHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemType := graph.NodeType(strings.ToUpper(chi.URLParam(r, "type")))

	item, err := h.content.GetItem(r.Context(), queries.GetItemQuery{
		Type: itemType,
		ID:   chi.URLParam(r, "id"),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, item)
}

// Search handles GET /search?q=
func (h *ContentHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("q"))

	results, err := h.content.Search(r.Context(), queries.SearchQuery{Term: term, Page: page})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, PageResponse{
		Results:    nonNil(results),
		Page:       page.Number,
		PageSize:   page.Size,
		SearchTerm: term,
	})
}

// Tags handles GET /tags
func (h *ContentHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.content.Tags(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]interface{}{"results": tags})
}

// ItemsByTag handles GET /tags/{tag}
func (h *ContentHandler) ItemsByTag(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	tag := chi.URLParam(r, "tag")

	items, err := h.content.ItemsByTag(r.Context(), queries.ItemsByTagQuery{Tag: tag, Page: page})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, PageResponse{
		Results:  nonNil(items),
		Page:     page.Number,
		PageSize: page.Size,
		Tag:      tag,
	})
}

// Graph handles GET /graph?type=&node_id=&node_type=
func (h *ContentHandler) Graph(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	selected, err := graph.ParseNodeType(params.Get("type"))
	if err != nil {
		h.errorHandler.Handle(w, r, errors.NewValidation(err.Error()).WithCode("INVALID_TYPE"))
		return
	}

	q := queries.GraphQuery{
		Type:     selected,
		NodeID:   strings.TrimSpace(params.Get("node_id")),
		NodeType: graph.NodeType(strings.ToUpper(strings.TrimSpace(params.Get("node_type")))),
	}

	view, err := h.content.GraphView(r.Context(), q)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, view)
}

func nonNil(records []graphdb.Record) []graphdb.Record {
	if records == nil {
		return []graphdb.Record{}
	}
	return records
}
