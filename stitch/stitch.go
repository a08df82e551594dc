// Package stitch maps edits made to a tangled file back onto the source
// blocks that produced it, using the tangle provenance map as the projection
// table.
package stitch

import (
	"bytes"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/viant/entangle/document"
	"github.com/viant/entangle/tangle"
)

// BlockEdit is a recovered document-side edit: the named block's body should
// become Body.
type BlockEdit struct {
	Block document.BlockID
	Body  string
}

// instance is one occurrence of a block in the tangled output. A block
// referenced from several sites occurs several times; changed occurrences
// must agree on the resulting body. indent is the synthetic prefix the
// expansion applied to the instance's continuation lines.
type instance struct {
	block   document.BlockID
	indent  string
	prevEnd int
	pieces  []piece
	changed bool
}

// piece is one literal provenance entry's projected content.
type piece struct {
	offset  int
	length  int
	content string
}

// projection carries the diff-walk state for one target.
type projection struct {
	doc     *document.Document
	prev    []byte
	entries []tangle.Entry
	// instOf aligns each provenance entry with its expansion instance.
	instOf      []*instance
	instances   []*instance
	replacement []strings.Builder
	oldPos      int
	cursor      int
}

// Project diffs the previous tangled bytes against the current on-disk bytes
// and projects every edit through the provenance map onto the owning block.
// Edits straddling a provenance boundary split at the boundary; edits inside
// referenced expansions belong to the referenced block, never to the
// reference marker's site. Edits confined to synthetic bytes (indentation,
// joiners) do not change any body and are restored by the next tangle.
func Project(doc *document.Document, prev, curr []byte, prov *tangle.Provenance) ([]BlockEdit, error) {
	if bytes.Equal(prev, curr) {
		return nil, nil
	}
	if err := prov.Validate(len(prev)); err != nil {
		return nil, err
	}
	p := &projection{
		doc:         doc,
		prev:        prev,
		entries:     prov.Entries,
		replacement: make([]strings.Builder, len(prov.Entries)),
	}
	p.groupInstances()

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMain(string(prev), string(curr), false)

	index := 0
	for index < len(diffs) {
		diff := diffs[index]
		if diff.Type == diffmatchpatch.DiffEqual {
			p.keep(diff.Text)
			index++
			continue
		}
		// Coalesce one change block: adjacent non-equal operations form a
		// single replacement anchored at the current position.
		deleted, inserted := "", ""
		for index < len(diffs) && diffs[index].Type != diffmatchpatch.DiffEqual {
			if diffs[index].Type == diffmatchpatch.DiffDelete {
				deleted += diffs[index].Text
			} else {
				inserted += diffs[index].Text
			}
			index++
		}
		p.replace(deleted, inserted)
	}
	return p.reconstruct(prov.Target)
}

// groupInstances assigns every provenance entry to an expansion instance and
// resolves each instance's continuation-line indent from its synthetic
// entries.
func (p *projection) groupInstances() {
	p.instOf = make([]*instance, len(p.entries))
	open := map[document.BlockID]*instance{}
	for i := range p.entries {
		entry := &p.entries[i]
		inst := open[entry.Block]
		if entry.Synthetic {
			if inst == nil {
				inst = &instance{block: entry.Block}
				open[entry.Block] = inst
				p.instances = append(p.instances, inst)
			}
			indent := entry.Text
			if index := strings.LastIndexByte(indent, '\n'); index >= 0 {
				indent = indent[index+1:]
			}
			if indent != "" {
				inst.indent = indent
			}
			p.instOf[i] = inst
			continue
		}
		if inst == nil || entry.Offset < inst.prevEnd {
			inst = &instance{block: entry.Block}
			open[entry.Block] = inst
			p.instances = append(p.instances, inst)
		}
		inst.prevEnd = entry.Offset + entry.Len()
		p.instOf[i] = inst
	}
}

func (p *projection) advance() {
	for p.cursor < len(p.entries) && p.entries[p.cursor].End <= p.oldPos {
		p.cursor++
	}
}

// keep distributes an unchanged run across the entries covering it.
func (p *projection) keep(text string) {
	for len(text) > 0 {
		p.advance()
		take := p.entries[p.cursor].End - p.oldPos
		if take > len(text) {
			take = len(text)
		}
		p.replacement[p.cursor].WriteString(text[:take])
		text = text[take:]
		p.oldPos += take
	}
}

// replace applies one change block: deleted bytes at the current position
// become inserted text. The insertion attaches to the first literal entry the
// deletion touches; a pure insertion attaches to the entry containing the
// position or, on a boundary, to the nearest preceding literal entry.
func (p *projection) replace(deleted, inserted string) {
	pos := p.oldPos
	p.advance()
	target := -1
	attachPos := pos
	synthetic := ""
	if len(deleted) > 0 {
		for i := p.cursor; i < len(p.entries) && p.entries[i].Start < pos+len(deleted); i++ {
			if !p.entries[i].Synthetic {
				target = i
				break
			}
		}
	}
	if target < 0 && inserted != "" {
		if i, ok := p.attachLeft(pos); ok {
			target = i
			// Synthetic bytes between the literal entry and the insertion
			// point become literal body content ahead of the insert.
			attachPos = p.entries[i].End
			synthetic = p.syntheticBetween(i, pos)
		} else if i, ok := p.attachRight(); ok {
			target = i
		}
	}
	if target >= 0 && (inserted != "" || synthetic != "") {
		p.replacement[target].WriteString(p.stripIndent(target, synthetic+inserted, attachPos))
	}
	p.oldPos += len(deleted)
}

// attachLeft returns the literal entry owning an insertion at pos: the entry
// containing the position or the nearest preceding literal entry.
func (p *projection) attachLeft(pos int) (int, bool) {
	start := p.cursor
	if start >= len(p.entries) {
		start = len(p.entries) - 1
	}
	for i := start; i >= 0; i-- {
		if !p.entries[i].Synthetic && p.entries[i].Start < pos {
			return i, true
		}
	}
	return 0, false
}

// attachRight returns the first literal entry at or after the cursor;
// insertions before any literal content prepend to it.
func (p *projection) attachRight() (int, bool) {
	for i := p.cursor; i < len(p.entries); i++ {
		if !p.entries[i].Synthetic {
			return i, true
		}
	}
	return 0, false
}

// syntheticBetween collects synthetic output bytes between the end of entry i
// and pos.
func (p *projection) syntheticBetween(i, pos int) string {
	start := p.entries[i].End
	if pos <= start {
		return ""
	}
	return string(p.prev[start:pos])
}

// stripIndent removes the instance's continuation indent from every line of
// inserted text; the tangle re-synthesizes it on the way back out.
func (p *projection) stripIndent(target int, text string, attachPos int) string {
	inst := p.instOf[target]
	if inst == nil || inst.indent == "" || !strings.Contains(text, "\n") && !strings.HasPrefix(text, inst.indent) {
		return text
	}
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = strings.TrimPrefix(lines[i], inst.indent)
	}
	if attachPos > 0 && p.prev[attachPos-1] == '\n' {
		lines[0] = strings.TrimPrefix(lines[0], inst.indent)
	}
	return strings.Join(lines, "\n")
}

// reconstruct splices projected entry contents back into block bodies,
// keeping uncovered gaps (reference markers) verbatim, and resolves
// multi-site agreement.
func (p *projection) reconstruct(target string) ([]BlockEdit, error) {
	for i := range p.entries {
		entry := &p.entries[i]
		if entry.Synthetic {
			continue
		}
		inst := p.instOf[i]
		content := p.replacement[i].String()
		inst.pieces = append(inst.pieces, piece{offset: entry.Offset, length: entry.Len(), content: content})
		if content != p.originalText(entry) {
			inst.changed = true
		}
	}

	var order []document.BlockID
	byBlock := map[document.BlockID][]*instance{}
	for _, inst := range p.instances {
		if len(inst.pieces) == 0 {
			continue
		}
		if _, ok := byBlock[inst.block]; !ok {
			order = append(order, inst.block)
		}
		byBlock[inst.block] = append(byBlock[inst.block], inst)
	}

	var edits []BlockEdit
	for _, id := range order {
		var body string
		var changed bool
		for _, inst := range byBlock[id] {
			if !inst.changed {
				continue
			}
			candidate, err := p.spliceBody(id, inst.pieces)
			if err != nil {
				return nil, err
			}
			if changed && candidate != body {
				return nil, &AmbiguousEditError{Block: id, Target: target}
			}
			body = candidate
			changed = true
		}
		if changed {
			edits = append(edits, BlockEdit{Block: id, Body: body})
		}
	}
	return edits, nil
}

// originalText returns the literal bytes the entry covered in the previous
// tangle.
func (p *projection) originalText(entry *tangle.Entry) string {
	return string(p.prev[entry.Start:entry.End])
}

// spliceBody rebuilds a block body from projected pieces.
func (p *projection) spliceBody(id document.BlockID, pieces []piece) (string, error) {
	block, ok := p.doc.Block(id)
	if !ok {
		return "", &StaleProvenanceError{Block: id}
	}
	body := block.Body
	var builder strings.Builder
	cursor := 0
	for _, piece := range pieces {
		if piece.offset < cursor || piece.offset+piece.length > len(body) {
			return "", &StaleProvenanceError{Block: id}
		}
		builder.WriteString(body[cursor:piece.offset])
		builder.WriteString(piece.content)
		cursor = piece.offset + piece.length
	}
	builder.WriteString(body[cursor:])
	return builder.String(), nil
}

// Merge combines block edits recovered from several targets; the same block
// edited differently through two targets is ambiguous.
func Merge(lists ...[]BlockEdit) ([]BlockEdit, error) {
	var result []BlockEdit
	seen := map[document.BlockID]int{}
	for _, list := range lists {
		for _, edit := range list {
			if index, ok := seen[edit.Block]; ok {
				if result[index].Body != edit.Body {
					return nil, &AmbiguousEditError{Block: edit.Block}
				}
				continue
			}
			seen[edit.Block] = len(result)
			result = append(result, edit)
		}
	}
	return result, nil
}
