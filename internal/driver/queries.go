package driver

var indexQueries = []string{
	"CREATE INDEX ON :MindMap(story_id);",
	"CREATE INDEX ON :MindMapNode(story_id);",
	"CREATE INDEX ON :MindMapEdge(story_id);",
}

const (
	// SaveMindMapQuery replaces a story's whole graph in one statement, so the
	// auto-commit transaction either stores all of it or none of it.
	// FOREACH is used instead of UNWIND so empty lists do not drop the row.
	SaveMindMapQuery = `
		MERGE (m:MindMap {story_id: $story_id})
		SET m.viewport = $viewport,
			m.updated_at = $updated_at
		WITH m
		OPTIONAL MATCH (m)-[:HAS_ELEMENT]->(old)
		DETACH DELETE old
		WITH DISTINCT m
		FOREACH (n IN $nodes |
			CREATE (m)-[:HAS_ELEMENT]->(:MindMapNode {
				story_id: $story_id, kind: "node", ord: n.ord, id: n.id, label: n.label, json: n.json
			}))
		FOREACH (e IN $edges |
			CREATE (m)-[:HAS_ELEMENT]->(:MindMapEdge {
				story_id: $story_id, kind: "edge", ord: e.ord, id: e.id,
				source: e.source, target: e.target, json: e.json
			}))
		RETURN m.story_id AS story_id
	`

	GetMindMapQuery = `
		MATCH (m:MindMap {story_id: $story_id})
		RETURN m.viewport AS viewport
	`

	GetMindMapElementsQuery = `
		MATCH (m:MindMap {story_id: $story_id})-[:HAS_ELEMENT]->(el)
		RETURN el.kind AS kind, el.json AS json
		ORDER BY el.kind DESC, el.ord ASC
	`
)
