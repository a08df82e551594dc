package graph

import (
	"regexp"
	"strings"

	"github.com/viant/entangle/document"
)

var markerExpr = regexp.MustCompile(`<<([A-Za-z_][A-Za-z0-9_./-]*)>>`)

// Emitter receives expansion output in order. Literal pieces carry the block
// and in-block offset that produced them; synthetic pieces are bytes the
// expansion inserted itself (indentation, block joiners) and are attributed
// to the block they precede.
type Emitter interface {
	Literal(block document.BlockID, offset int, text string)
	Synthetic(block document.BlockID, text string)
}

// Expand walks the node with the given name, substituting every <<name>>
// marker with the referenced node's expansion. Every line after the first of
// a substituted expansion is indented to the marker's starting column. Cycles
// are detected with an explicit on-path set.
func (g *Graph) Expand(name string, e Emitter) error {
	return g.expand(name, "", e, map[string]bool{}, nil)
}

// Resolve expands the named node to plain text.
func (g *Graph) Resolve(name string) (string, error) {
	var builder textEmitter
	if err := g.Expand(name, &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func (g *Graph) expand(name, prefix string, e Emitter, onPath map[string]bool, path []string) error {
	if onPath[name] {
		return &CycleError{Path: append(append([]string{}, path...), name)}
	}
	node, ok := g.nodes[name]
	if !ok {
		referrer := ""
		if len(path) > 0 {
			referrer = path[len(path)-1]
		}
		return &UnresolvedError{Name: name, Referrer: referrer}
	}
	onPath[name] = true
	defer delete(onPath, name)
	path = append(path, name)

	for i, block := range node.Blocks {
		if i > 0 {
			e.Synthetic(block.ID, "\n"+prefix)
		}
		if err := g.expandBlock(block, prefix, e, onPath, path); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) expandBlock(block *document.Block, prefix string, e Emitter, onPath map[string]bool, path []string) error {
	if block.Body == "" {
		return nil
	}
	lines := strings.Split(block.Body, "\n")
	offset := 0
	for i, line := range lines {
		if i > 0 {
			e.Literal(block.ID, offset-1, "\n")
			if prefix != "" {
				e.Synthetic(block.ID, prefix)
			}
		}
		if err := g.expandLine(block, offset, line, prefix, e, onPath, path); err != nil {
			return err
		}
		offset += len(line) + 1
	}
	return nil
}

func (g *Graph) expandLine(block *document.Block, lineStart int, line, prefix string, e Emitter, onPath map[string]bool, path []string) error {
	matches := markerExpr.FindAllStringSubmatchIndex(line, -1)
	cursor := 0
	for _, match := range matches {
		start, end := match[0], match[1]
		ref := line[match[2]:match[3]]
		if start > cursor {
			e.Literal(block.ID, lineStart+cursor, line[cursor:start])
		}
		if err := g.expand(ref, childPrefix(prefix, line[:start]), e, onPath, path); err != nil {
			return err
		}
		cursor = end
	}
	if cursor < len(line) {
		e.Literal(block.ID, lineStart+cursor, line[cursor:])
	}
	return nil
}

// childPrefix computes the indentation applied to continuation lines of a
// substituted expansion: whatever whitespace leads the marker is preserved;
// non-whitespace before an inline marker converts to spaces so continuation
// lines align with the marker column.
func childPrefix(prefix, head string) string {
	if strings.TrimSpace(head) == "" {
		return prefix + head
	}
	return prefix + strings.Repeat(" ", len(head))
}

type textEmitter struct {
	builder strings.Builder
}

func (t *textEmitter) Literal(_ document.BlockID, _ int, text string) { t.builder.WriteString(text) }
func (t *textEmitter) Synthetic(_ document.BlockID, text string)      { t.builder.WriteString(text) }
func (t *textEmitter) String() string                                 { return t.builder.String() }
