package graph

// Project derives the subgraph shown for the selected type.
//
//   - TypeAll keeps every node and every edge whose endpoints both exist.
//   - TypeTopic is strict: topic nodes and topic-to-topic edges only.
//   - Any other type keeps its nodes plus every node one edge away from them,
//     in either direction, together with the connecting edges.
//
// Edges referencing an id missing from nodes are dropped in every mode. The
// returned nodes and links are copies; callers may mutate them freely.
func Project(nodes []Node, edges []Edge, selected NodeType) View {
	present := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		present[n.ID] = struct{}{}
	}

	var (
		keepNode func(Node) bool
		keepEdge func(Edge) bool
	)

	switch selected {
	case TypeAll, "":
		keepNode = func(Node) bool { return true }
		keepEdge = func(Edge) bool { return true }

	case TypeTopic:
		topics := idsOfType(nodes, TypeTopic)
		keepNode = func(n Node) bool { return n.Type == TypeTopic }
		keepEdge = func(e Edge) bool {
			_, s := topics[e.Source]
			_, t := topics[e.Target]
			return s && t
		}

	default:
		primary := idsOfType(nodes, selected)
		included := make(map[string]struct{}, len(primary))
		for id := range primary {
			included[id] = struct{}{}
		}
		for _, e := range edges {
			if !touches(primary, e) || !bothPresent(present, e) {
				continue
			}
			included[e.Source] = struct{}{}
			included[e.Target] = struct{}{}
		}
		keepNode = func(n Node) bool {
			_, ok := included[n.ID]
			return ok
		}
		keepEdge = func(e Edge) bool { return touches(primary, e) }
	}

	view := View{Nodes: []Node{}, Links: []Edge{}}
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n.ID]; dup || !keepNode(n) {
			continue
		}
		seen[n.ID] = struct{}{}
		view.Nodes = append(view.Nodes, n.Clone())
	}
	for _, e := range edges {
		if !bothPresent(present, e) || !keepEdge(e) {
			continue
		}
		view.Links = append(view.Links, e)
	}
	return view
}

func idsOfType(nodes []Node, t NodeType) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, n := range nodes {
		if n.Type == t {
			ids[n.ID] = struct{}{}
		}
	}
	return ids
}

func touches(ids map[string]struct{}, e Edge) bool {
	if _, ok := ids[e.Source]; ok {
		return true
	}
	_, ok := ids[e.Target]
	return ok
}

func bothPresent(present map[string]struct{}, e Edge) bool {
	_, s := present[e.Source]
	_, t := present[e.Target]
	return s && t
}
