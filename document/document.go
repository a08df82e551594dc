// Package document defines the literate source model: a document is an
// ordered sequence of prose ranges and named fenced code blocks.
package document

import (
	"fmt"
	"sort"
)

// BlockID identifies one fenced block within a document: the fragment name
// plus the block's position among same-named blocks, in document order.
type BlockID struct {
	Name string `json:"name"`
	Part int    `json:"part"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%s[%d]", id.Name, id.Part)
}

// Block is a single named fenced code region.
type Block struct {
	ID        BlockID           `json:"id"`
	Language  string            `json:"language,omitempty"`
	Target    string            `json:"target,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	Body      string            `json:"body"`
	BodyStart int               `json:"bodyStart"`
	BodyEnd   int               `json:"bodyEnd"`
	Line      int               `json:"line"`
}

// Range is a half-open byte range within the document text.
type Range struct {
	Start int
	End   int
}

// Document is a parsed literate source file. Data holds the raw bytes so the
// document can be re-serialized byte-exactly after block edits.
type Document struct {
	Path   string
	Data   []byte
	Blocks []*Block
}

// Block returns the block with the given id, if present.
func (d *Document) Block(id BlockID) (*Block, bool) {
	for _, b := range d.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// Prose returns the leftover prose ranges between code blocks.
func (d *Document) Prose() []Range {
	var result []Range
	offset := 0
	for _, b := range d.Blocks {
		if b.BodyStart > offset {
			result = append(result, Range{Start: offset, End: b.BodyStart})
		}
		offset = b.BodyEnd
	}
	if offset < len(d.Data) {
		result = append(result, Range{Start: offset, End: len(d.Data)})
	}
	return result
}

// Edit replaces the body of one block.
type Edit struct {
	Block BlockID
	Body  string
}

// Apply splices block edits into the document text and returns the updated
// bytes. The document itself is not mutated; callers re-parse the result.
func (d *Document) Apply(edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return d.Data, nil
	}
	type splice struct {
		start, end int
		body       string
	}
	splices := make([]splice, 0, len(edits))
	for _, edit := range edits {
		block, ok := d.Block(edit.Block)
		if !ok {
			return nil, fmt.Errorf("document: unknown block %v in %s", edit.Block, d.Path)
		}
		splices = append(splices, splice{start: block.BodyStart, end: block.BodyEnd, body: edit.Body})
	}
	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })
	data := make([]byte, len(d.Data))
	copy(data, d.Data)
	for _, s := range splices {
		updated := make([]byte, 0, len(data)-(s.end-s.start)+len(s.body))
		updated = append(updated, data[:s.start]...)
		updated = append(updated, s.body...)
		updated = append(updated, data[s.end:]...)
		data = updated
	}
	return data, nil
}
