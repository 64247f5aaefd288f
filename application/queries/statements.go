package queries

import (
	"fmt"

	"wisdom-backend/domain/graph"
)

// Query names. They are the telemetry aggregation keys, keep them stable.
const (
	QueryListThoughts = "list_thoughts"
	QueryListTopics   = "list_topics"
	QueryListQuotes   = "list_quotes"
	QueryListPassages = "list_passages"
	QueryGetItem      = "get_item"
	QuerySearch       = "search_content"
	QueryGraphData    = "graph_data"
	QueryFocusedGraph = "graph_data_focused"
	QueryTags         = "get_tags"
	QueryItemsByTag   = "items_by_tag"
)

var listQueryNames = map[graph.NodeType]string{
	graph.TypeThought: QueryListThoughts,
	graph.TypeTopic:   QueryListTopics,
	graph.TypeQuote:   QueryListQuotes,
	graph.TypePassage: QueryListPassages,
}

var listStatements = map[graph.NodeType]string{
	graph.TypeThought: `
MATCH (t:THOUGHT)
OPTIONAL MATCH (t)-[:HAS_CONTENT]->(c:CONTENT)
RETURN t.name AS id, t.alias AS title, c.en_content AS content,
       t.parent AS parent, t.tags AS tags, t.level AS level
ORDER BY t.name DESC
SKIP $skip LIMIT $limit`,

	graph.TypeTopic: `
MATCH (t:TOPIC)
OPTIONAL MATCH (t)-[:HAS_THOUGHT]->(thought:THOUGHT)
OPTIONAL MATCH (t)-[:HAS_DESCRIPTION]->(d:DESCRIPTION)
RETURN t.name AS id, t.alias AS title, t.notes AS description,
       t.level AS level, t.parent AS parent,
       count(DISTINCT thought) AS thought_count,
       t.tags AS tags, d.en_content AS en_description
ORDER BY t.level ASC, t.name ASC
SKIP $skip LIMIT $limit`,

	graph.TypeQuote: `
MATCH (q:QUOTE)
OPTIONAL MATCH (q)-[:HAS_CONTENT]->(c:CONTENT)
OPTIONAL MATCH (q)<-[:HAS_CHILD]-(parent:TOPIC)
RETURN q.name AS id, q.alias AS title, c.en_content AS content,
       q.author AS author, q.source AS source,
       q.level AS level, q.parent AS parent, q.tags AS tags,
       parent.name AS parent_topic
ORDER BY q.name ASC
SKIP $skip LIMIT $limit`,

	graph.TypePassage: `
MATCH (p:PASSAGE)
OPTIONAL MATCH (p)-[:HAS_CONTENT]->(c:CONTENT)
OPTIONAL MATCH (p)<-[:HAS_CHILD]-(parent:TOPIC)
RETURN p.name AS id, p.alias AS title, c.en_content AS content,
       p.book AS book, p.chapter AS chapter, p.verse AS verse,
       p.level AS level, p.parent AS parent, p.tags AS tags,
       parent.name AS parent_topic
ORDER BY p.book, p.chapter, p.verse
SKIP $skip LIMIT $limit`,
}

// The label is interpolated, so callers must pass a validated item type.
func itemStatement(t graph.NodeType) string {
	return fmt.Sprintf(`
MATCH (n:%s {name: $item_id})
OPTIONAL MATCH (n)-[:HAS_CONTENT]->(c:CONTENT)
OPTIONAL MATCH (n)-[:HAS_DESCRIPTION]->(d:DESCRIPTION)
OPTIONAL MATCH (n)-[:HAS_CHILD]->(child)
OPTIONAL MATCH (n)<-[:HAS_CHILD]-(parent)
RETURN n {.*} AS item, labels(n)[0] AS type,
       c.en_content AS content, d.en_content AS description, n.tags AS tags,
       [x IN collect(DISTINCT child {name: child.name, alias: child.alias, type: labels(child)[0]}) WHERE x.name IS NOT NULL] AS children,
       parent.name AS parent_name, parent.alias AS parent_alias
LIMIT 1`, t)
}

const searchStatement = `
CALL {
    MATCH (t:THOUGHT)
    OPTIONAL MATCH (t)-[:HAS_CONTENT]->(c:CONTENT)
    WITH t, c
    WHERE toLower(t.alias) CONTAINS toLower($term)
       OR toLower(t.name) CONTAINS toLower($term)
       OR toLower(c.en_content) CONTAINS toLower($term)
       OR ANY(tag IN coalesce(t.tags, []) WHERE toLower(tag) CONTAINS toLower($term))
    RETURN t.name AS id, t.alias AS title, c.en_content AS content,
           'THOUGHT' AS type, t.level AS level, t.tags AS tags
    UNION
    MATCH (t:TOPIC)
    OPTIONAL MATCH (t)-[:HAS_DESCRIPTION]->(d:DESCRIPTION)
    WITH t, d
    WHERE toLower(t.alias) CONTAINS toLower($term)
       OR toLower(t.name) CONTAINS toLower($term)
       OR toLower(d.en_content) CONTAINS toLower($term)
       OR ANY(tag IN coalesce(t.tags, []) WHERE toLower(tag) CONTAINS toLower($term))
    RETURN t.name AS id, t.alias AS title, d.en_content AS content,
           'TOPIC' AS type, t.level AS level, t.tags AS tags
    UNION
    MATCH (q:QUOTE)
    OPTIONAL MATCH (q)-[:HAS_CONTENT]->(c:CONTENT)
    WITH q, c
    WHERE toLower(q.alias) CONTAINS toLower($term)
       OR toLower(q.name) CONTAINS toLower($term)
       OR toLower(c.en_content) CONTAINS toLower($term)
       OR ANY(tag IN coalesce(q.tags, []) WHERE toLower(tag) CONTAINS toLower($term))
    RETURN q.name AS id, q.alias AS title, c.en_content AS content,
           'QUOTE' AS type, q.level AS level, q.tags AS tags
    UNION
    MATCH (p:PASSAGE)
    OPTIONAL MATCH (p)-[:HAS_CONTENT]->(c:CONTENT)
    WITH p, c
    WHERE toLower(p.alias) CONTAINS toLower($term)
       OR toLower(p.name) CONTAINS toLower($term)
       OR toLower(c.en_content) CONTAINS toLower($term)
       OR ANY(tag IN coalesce(p.tags, []) WHERE toLower(tag) CONTAINS toLower($term))
    RETURN p.name AS id, p.alias AS title, c.en_content AS content,
           'PASSAGE' AS type, p.level AS level, p.tags AS tags
}
RETURN id, title, content, type, level, tags
ORDER BY level ASC, title ASC
SKIP $skip LIMIT $limit`

// graphStatement returns every content node and every relationship between
// two content nodes as one row of nodes and links.
const graphStatement = `
MATCH (n)
WHERE n:TOPIC OR n:THOUGHT OR n:QUOTE OR n:PASSAGE OR n:CONTENT OR n:DESCRIPTION
OPTIONAL MATCH (n)-[r]->(m)
WHERE m:TOPIC OR m:THOUGHT OR m:QUOTE OR m:PASSAGE OR m:CONTENT OR m:DESCRIPTION
WITH collect(DISTINCT n {id: elementId(n), name: n.name, title: n.alias, labels: labels(n), level: n.level, tags: n.tags}) AS nodes,
     collect(DISTINCT CASE WHEN r IS NULL THEN NULL
                      ELSE {source: elementId(startNode(r)), target: elementId(endNode(r)), type: type(r)} END) AS links
RETURN nodes, links`

// The label is interpolated, so callers must pass a validated item type.
func focusedGraphStatement(t graph.NodeType) string {
	return fmt.Sprintf(`
MATCH (center:%s {name: $node_id})
OPTIONAL MATCH path = (center)-[*1..2]-()
WITH center, collect(path) AS paths
WITH reduce(acc = [center], p IN paths | acc + nodes(p)) AS ns,
     reduce(acc = [], p IN paths | acc + relationships(p)) AS rs
RETURN [n IN ns | n {id: elementId(n), name: n.name, title: n.alias, labels: labels(n), level: n.level, tags: n.tags}] AS nodes,
       [r IN rs | {source: elementId(startNode(r)), target: elementId(endNode(r)), type: type(r)}] AS links`, t)
}

const tagsStatement = `
MATCH (n)
WHERE n.tags IS NOT NULL
RETURN n.tags AS tags`

const itemsByTagStatement = `
MATCH (item)
WHERE item.tags IS NOT NULL AND $tag IN item.tags
  AND labels(item)[0] IN ['TOPIC', 'THOUGHT', 'QUOTE', 'PASSAGE']
OPTIONAL MATCH (item)-[:HAS_CONTENT]->(c:CONTENT)
OPTIONAL MATCH (item)-[:HAS_DESCRIPTION]->(d:DESCRIPTION)
RETURN item.name AS id, item.alias AS title,
       coalesce(c.en_content, d.en_content, item.notes, '') AS content,
       labels(item)[0] AS type, item.level AS level, item.tags AS tags
ORDER BY item.level ASC, item.name ASC
SKIP $skip LIMIT $limit`
