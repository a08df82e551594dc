// Package graph builds the fragment reference graph of a document and
// expands it. Same-named blocks concatenate in document order under one node;
// <<name>> markers substitute the named node's expansion.
package graph

import (
	"github.com/viant/entangle/document"
)

// Node aggregates all same-named blocks of a document.
type Node struct {
	Name     string
	Blocks   []*document.Block
	Target   string
	Language string
}

// Graph maps fragment names to nodes. Node iteration order follows first
// appearance in the document so traversal stays deterministic.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// Build constructs the reference graph from a parsed document.
func Build(doc *document.Document) (*Graph, error) {
	g := &Graph{nodes: map[string]*Node{}}
	for _, block := range doc.Blocks {
		node, ok := g.nodes[block.ID.Name]
		if !ok {
			node = &Node{Name: block.ID.Name, Language: block.Language}
			g.nodes[block.ID.Name] = node
			g.order = append(g.order, block.ID.Name)
		}
		node.Blocks = append(node.Blocks, block)
		if block.Target != "" {
			if node.Target != "" && node.Target != block.Target {
				return nil, &TargetConflictError{Name: node.Name, Targets: []string{node.Target, block.Target}}
			}
			node.Target = block.Target
		}
	}
	return g, nil
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// Names returns node names in document order.
func (g *Graph) Names() []string {
	return g.order
}

// Targets returns the nodes carrying a target file, in document order.
func (g *Graph) Targets() []*Node {
	var result []*Node
	for _, name := range g.order {
		if node := g.nodes[name]; node.Target != "" {
			result = append(result, node)
		}
	}
	return result
}
