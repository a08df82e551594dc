package tangle

import (
	"fmt"

	"github.com/viant/bintly"
	"github.com/viant/entangle/document"
)

// Entry maps one tangled byte range back to its origin. Literal entries point
// at Offset within the owning block's body; synthetic entries are bytes the
// expansion inserted (indentation, block joiners, final newline) and carry
// their text so the previous output can be reproduced.
type Entry struct {
	Start     int               `json:"start"`
	End       int               `json:"end"`
	Block     document.BlockID  `json:"block"`
	Offset    int               `json:"offset"`
	Synthetic bool              `json:"synthetic,omitempty"`
	Text      string            `json:"text,omitempty"`
}

// Len returns the number of tangled bytes the entry covers.
func (e *Entry) Len() int {
	return e.End - e.Start
}

// Provenance is the ordered side table mapping a tangled file back onto its
// source blocks. Entries cover the whole file with no gaps.
type Provenance struct {
	Target  string
	Entries []Entry
}

// Validate checks the no-gap invariant against the tangled size.
func (p *Provenance) Validate(size int) error {
	offset := 0
	for i := range p.Entries {
		entry := &p.Entries[i]
		if entry.Start != offset || entry.End < entry.Start {
			return fmt.Errorf("tangle: provenance gap at byte %d of %s", offset, p.Target)
		}
		offset = entry.End
	}
	if offset != size {
		return fmt.Errorf("tangle: provenance covers %d of %d bytes of %s", offset, size, p.Target)
	}
	return nil
}

// EncodeBinary encodes the provenance map to a binary stream.
func (p *Provenance) EncodeBinary(stream *bintly.Writer) error {
	stream.String(p.Target)
	stream.Int(len(p.Entries))
	for i := range p.Entries {
		entry := &p.Entries[i]
		stream.Int(entry.Start)
		stream.Int(entry.End)
		stream.String(entry.Block.Name)
		stream.Int(entry.Block.Part)
		stream.Int(entry.Offset)
		synthetic := int16(0)
		if entry.Synthetic {
			synthetic = 1
		}
		stream.Int16(synthetic)
		stream.String(entry.Text)
	}
	return nil
}

// DecodeBinary decodes the provenance map from a binary stream.
func (p *Provenance) DecodeBinary(stream *bintly.Reader) error {
	stream.String(&p.Target)
	var count int
	stream.Int(&count)
	p.Entries = make([]Entry, count)
	for i := 0; i < count; i++ {
		entry := &p.Entries[i]
		stream.Int(&entry.Start)
		stream.Int(&entry.End)
		stream.String(&entry.Block.Name)
		stream.Int(&entry.Block.Part)
		stream.Int(&entry.Offset)
		var synthetic int16
		stream.Int16(&synthetic)
		entry.Synthetic = synthetic != 0
		stream.String(&entry.Text)
	}
	return nil
}

// Marshal serializes the provenance map.
func (p *Provenance) Marshal() ([]byte, error) {
	writers := bintly.NewWriters()
	writer := writers.Get()
	defer writers.Put(writer)
	if err := p.EncodeBinary(writer); err != nil {
		return nil, err
	}
	data := writer.Bytes()
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Unmarshal restores a provenance map serialized with Marshal.
func (p *Provenance) Unmarshal(data []byte) error {
	readers := bintly.NewReaders()
	reader := readers.Get()
	defer readers.Put(reader)
	if err := reader.FromBytes(data); err != nil {
		return err
	}
	return p.DecodeBinary(reader)
}
