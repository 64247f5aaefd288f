// Package queries holds the read operations of the content site. Each one is
// a named graph query run through the executor, so telemetry aggregates by a
// stable operation name.
package queries

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"wisdom-backend/domain/graph"
	"wisdom-backend/infrastructure/graphdb"
	apperrors "wisdom-backend/pkg/errors"
)

// QueryExecutor runs named graph queries.
type QueryExecutor interface {
	Execute(ctx context.Context, q graphdb.Query) (*graphdb.Result, error)
	HealthCheck(ctx context.Context) error
}

// ContentService answers the content site's read requests.
type ContentService struct {
	executor QueryExecutor
	logger   *zap.Logger
	graphs   singleflight.Group
}

// NewContentService creates a new content service
func NewContentService(executor QueryExecutor, logger *zap.Logger) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentService{
		executor: executor,
		logger:   logger.Named("content"),
	}
}

// HealthCheck reports whether the graph database answers.
func (s *ContentService) HealthCheck(ctx context.Context) error {
	return s.executor.HealthCheck(ctx)
}

// ListItems returns one page of items of the requested type.
func (s *ContentService) ListItems(ctx context.Context, q ListItemsQuery) ([]graphdb.Record, error) {
	q.Page = q.Page.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, graphdb.Query{
		Name:      listQueryNames[q.Type],
		Statement: listStatements[q.Type],
		Params:    map[string]any{"skip": q.Page.Skip(), "limit": q.Page.Size},
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// GetItem returns one item with its content, description, children and
// parent.
func (s *ContentService) GetItem(ctx context.Context, q GetItemQuery) (graphdb.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, graphdb.Query{
		Name:      QueryGetItem,
		Statement: itemStatement(q.Type),
		Params:    map[string]any{"item_id": q.ID},
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, apperrors.NewNotFound("Item not found").WithCode("ITEM_NOT_FOUND")
	}
	return result.Records[0], nil
}

// Search matches the term case-insensitively against every item type.
func (s *ContentService) Search(ctx context.Context, q SearchQuery) ([]graphdb.Record, error) {
	q.Term = strings.TrimSpace(q.Term)
	q.Page = q.Page.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, graphdb.Query{
		Name:      QuerySearch,
		Statement: searchStatement,
		Params:    map[string]any{"term": q.Term, "skip": q.Page.Skip(), "limit": q.Page.Size},
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// Tags counts tag usage across all nodes, most used first.
func (s *ContentService) Tags(ctx context.Context) ([]TagCount, error) {
	result, err := s.executor.Execute(ctx, graphdb.Query{
		Name:      QueryTags,
		Statement: tagsStatement,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, rec := range result.Records {
		for _, tag := range tagList(rec["tags"]) {
			counts[tag]++
		}
	}

	tags := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		tags = append(tags, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	return tags, nil
}

// ItemsByTag returns one page of items carrying the tag.
func (s *ContentService) ItemsByTag(ctx context.Context, q ItemsByTagQuery) ([]graphdb.Record, error) {
	q.Tag = strings.TrimSpace(q.Tag)
	q.Page = q.Page.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, graphdb.Query{
		Name:      QueryItemsByTag,
		Statement: itemsByTagStatement,
		Params:    map[string]any{"tag": q.Tag, "skip": q.Page.Skip(), "limit": q.Page.Size},
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

type rawGraph struct {
	nodes []graph.Node
	edges []graph.Edge
}

// GraphView fetches the whole or focused graph and projects it onto the
// requested type. Concurrent identical fetches share one database call.
func (s *ContentService) GraphView(ctx context.Context, q GraphQuery) (graph.View, error) {
	if q.Type == "" {
		q.Type = graph.TypeAll
	}
	if err := q.Validate(); err != nil {
		return graph.View{}, err
	}

	raw, err := s.fetchGraph(ctx, q)
	if err != nil {
		return graph.View{}, err
	}

	view := graph.Project(raw.nodes, raw.edges, q.Type)
	if view.Nodes == nil {
		view.Nodes = []graph.Node{}
	}
	if view.Links == nil {
		view.Links = []graph.Edge{}
	}
	return view, nil
}

func (s *ContentService) fetchGraph(ctx context.Context, q GraphQuery) (*rawGraph, error) {
	key := "all"
	query := graphdb.Query{
		Name:      QueryGraphData,
		Statement: graphStatement,
		ReadOnly:  true,
	}
	if q.Focused() {
		key = fmt.Sprintf("%s:%s", q.NodeType, q.NodeID)
		query = graphdb.Query{
			Name:      QueryFocusedGraph,
			Statement: focusedGraphStatement(q.NodeType),
			Params:    map[string]any{"node_id": q.NodeID},
			ReadOnly:  true,
		}
	}

	// The shared call must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	ch := s.graphs.DoChan(key, func() (any, error) {
		result, err := s.executor.Execute(shared, query)
		if err != nil {
			return nil, err
		}
		nodes, edges, err := graph.DecodeGraph(result.Records)
		if err != nil {
			return nil, apperrors.NewInternal("failed to decode graph data", err)
		}
		return &rawGraph{nodes: nodes, edges: edges}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Shared graph fetch", zap.String("key", key))
		}
		raw, ok := res.Val.(*rawGraph)
		if !ok {
			return nil, apperrors.NewInternal("unexpected graph result", nil)
		}
		return raw, nil
	case <-ctx.Done():
		return nil, &graphdb.QueryError{
			Name:     query.Name,
			Kind:     graphdb.KindUnavailable,
			ReadOnly: true,
			Cause:    ctx.Err(),
		}
	}
}

func tagList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(list) != "" {
			return []string{strings.TrimSpace(list)}
		}
	}
	return nil
}
