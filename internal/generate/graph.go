package generate

import (
	"strings"

	"github.com/mydiff/mydiff/internal/schema"
)

// UnresolvableDependencyError reports a foreign-key reference cycle among
// newly created tables. No creation order can satisfy the constraints;
// the schema needs redesign or a manual ordering hint.
type UnresolvableDependencyError struct {
	Tables []string
}

func (e *UnresolvableDependencyError) Error() string {
	return "unresolvable foreign key dependency cycle among tables: " + strings.Join(e.Tables, ", ")
}

// tableGraph is the foreign-key reference graph over a set of tables to be
// created. Nodes are table names; an edge runs from a referenced table to
// each table referencing it. Edges to tables outside the set are ignored
// since those already exist. Self-references are skipped: they never
// constrain creation order.
type tableGraph struct {
	order []string // insertion order, for deterministic output
	refs  map[string][]string
}

func newTableGraph(tables []schema.Table) *tableGraph {
	g := &tableGraph{refs: make(map[string][]string, len(tables))}
	inSet := make(map[string]bool, len(tables))
	for i := range tables {
		inSet[tables[i].Name] = true
		g.order = append(g.order, tables[i].Name)
	}
	for i := range tables {
		t := &tables[i]
		seen := make(map[string]bool)
		for j := range t.ForeignKeys {
			ref := t.ForeignKeys[j].ReferencedTable
			if ref == t.Name || !inSet[ref] || seen[ref] {
				continue
			}
			seen[ref] = true
			g.refs[t.Name] = append(g.refs[t.Name], ref)
		}
	}
	return g
}

// topoSort returns the tables ordered so every referenced table precedes
// its referencing tables (Kahn's algorithm). Tables without foreign keys
// surface first. Ties break on insertion order so output is stable.
func (g *tableGraph) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.order))
	dependents := make(map[string][]string, len(g.order))
	for _, name := range g.order {
		inDegree[name] = len(g.refs[name])
		for _, ref := range g.refs[name] {
			dependents[ref] = append(dependents[ref], name)
		}
	}

	var queue []string
	for _, name := range g.order {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var sorted []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)

		for _, dep := range dependents[node] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(sorted) != len(g.order) {
		var cyclic []string
		for _, name := range g.order {
			if inDegree[name] > 0 {
				cyclic = append(cyclic, name)
			}
		}
		return nil, &UnresolvableDependencyError{Tables: cyclic}
	}

	return sorted, nil
}
