package graph

import (
	"github.com/brunobiangulo/goontology/ontology"
)

// BridgeRelationship labels relationships added by Connect.
const BridgeRelationship = "relates to"

// Components returns the weakly connected components of o. Components and
// the entities inside them are ordered by first appearance in o.
func Components(o *ontology.Ontology) [][]string {
	names := o.Entities()
	if len(names) == 0 {
		return nil
	}

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	adj := make([][]int, len(names))
	for _, r := range o.Relationships {
		fi, ti := index[r.From], index[r.To]
		adj[fi] = append(adj[fi], ti)
		adj[ti] = append(adj[ti], fi)
	}

	visited := make([]bool, len(names))
	var components [][]string
	for i := range names {
		if visited[i] {
			continue
		}
		var comp []int
		queue := []int{i}
		visited[i] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			comp = append(comp, node)
			for _, next := range adj[node] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		components = append(components, sortedNames(comp, names))
	}
	return components
}

// sortedNames maps node indexes back to names in first-appearance order.
func sortedNames(comp []int, names []string) []string {
	seen := make([]bool, len(names))
	for _, n := range comp {
		seen[n] = true
	}
	out := make([]string, 0, len(comp))
	for i, ok := range seen {
		if ok {
			out = append(out, names[i])
		}
	}
	return out
}

// Connect returns a copy of o in which every component is linked to the next
// one by a bridge between their first entities, and the number of bridges
// added. o itself is never modified.
func Connect(o *ontology.Ontology) (*ontology.Ontology, int) {
	out := o.Clone()
	components := Components(o)
	if len(components) < 2 {
		return out, 0
	}

	for i := 1; i < len(components); i++ {
		out.Relationships = append(out.Relationships, ontology.Relationship{
			From:            components[i-1][0],
			Relationship:    BridgeRelationship,
			To:              components[i][0],
			Category:        ontology.CategoryAssociatesWith,
			FromCardinality: "0..1",
			ToCardinality:   "0..1",
		})
	}
	return out, len(components) - 1
}
