// Package parser extracts named fenced code fragments from literate
// markdown sources. Parsing is a pure function of the input text.
package parser

import (
	"bytes"
	"strings"

	"github.com/viant/entangle/document"
)

// attributes holds the parsed header of a fenced region.
type attributes struct {
	language string
	name     string
	target   string
	meta     map[string]string
}

// Parse scans the document text and returns the ordered fragment blocks with
// their source ranges. Fenced regions without a #name or file= attribute are
// treated as plain prose-level code and skipped.
func Parse(path string, data []byte) (*document.Document, error) {
	doc := &document.Document{Path: path, Data: data}
	parts := map[string]int{}

	offset := 0
	line := 0
	var open *struct {
		attrs     *attributes
		fenceLen  int
		line      int
		bodyStart int
	}
	for offset <= len(data) {
		if offset == len(data) {
			break
		}
		lineStart := offset
		lineEnd := bytes.IndexByte(data[offset:], '\n')
		hasNewline := lineEnd >= 0
		if hasNewline {
			lineEnd += offset
		} else {
			lineEnd = len(data)
		}
		line++
		text := string(data[lineStart:lineEnd])

		fenceLen := leadingBackticks(text)
		switch {
		case open == nil && fenceLen >= 3:
			rest := strings.TrimSpace(text[fenceLen:])
			attrs, err := parseHeader(path, line, rest)
			if err != nil {
				return nil, err
			}
			bodyStart := lineEnd
			if hasNewline {
				bodyStart = lineEnd + 1
			}
			open = &struct {
				attrs     *attributes
				fenceLen  int
				line      int
				bodyStart int
			}{attrs: attrs, fenceLen: fenceLen, line: line, bodyStart: bodyStart}
		case open != nil && fenceLen >= open.fenceLen && strings.TrimSpace(text[fenceLen:]) == "":
			if attrs := open.attrs; attrs != nil {
				bodyEnd := lineStart
				if bodyEnd > open.bodyStart {
					bodyEnd-- // drop the newline preceding the closing fence
				} else {
					bodyEnd = open.bodyStart
				}
				part := parts[attrs.name]
				parts[attrs.name] = part + 1
				doc.Blocks = append(doc.Blocks, &document.Block{
					ID:        document.BlockID{Name: attrs.name, Part: part},
					Language:  attrs.language,
					Target:    attrs.target,
					Meta:      attrs.meta,
					Body:      string(data[open.bodyStart:bodyEnd]),
					BodyStart: open.bodyStart,
					BodyEnd:   bodyEnd,
					Line:      open.line,
				})
			}
			open = nil
		}
		offset = lineEnd
		if hasNewline {
			offset++
		}
	}
	if open != nil {
		name := ""
		if open.attrs != nil {
			name = open.attrs.name
		}
		return nil, &UnterminatedError{Path: path, Line: open.line, Name: name}
	}
	return doc, nil
}

// parseHeader parses the text following the opening fence. It returns nil
// attributes for anonymous code blocks (no braces, or braces without a name
// or target), which the parser skips.
func parseHeader(path string, line int, rest string) (*attributes, error) {
	if !strings.HasPrefix(rest, "{") {
		return nil, nil
	}
	if !strings.HasSuffix(rest, "}") {
		return nil, &MalformedHeaderError{Path: path, Line: line, Header: rest, Reason: "missing closing brace"}
	}
	attrs := &attributes{}
	for _, field := range strings.Fields(rest[1 : len(rest)-1]) {
		switch {
		case strings.HasPrefix(field, "."):
			value := field[1:]
			if value == "" {
				return nil, &MalformedHeaderError{Path: path, Line: line, Header: rest, Reason: "empty language class"}
			}
			if attrs.language == "" {
				attrs.language = value
			}
		case strings.HasPrefix(field, "#"):
			value := field[1:]
			if value == "" {
				return nil, &MalformedHeaderError{Path: path, Line: line, Header: rest, Reason: "empty fragment name"}
			}
			if attrs.name != "" {
				return nil, &MalformedHeaderError{Path: path, Line: line, Header: rest, Reason: "duplicate fragment name"}
			}
			attrs.name = value
		case strings.Contains(field, "="):
			index := strings.Index(field, "=")
			key, value := field[:index], strings.Trim(field[index+1:], `"`)
			if key == "" || value == "" {
				return nil, &MalformedHeaderError{Path: path, Line: line, Header: rest, Reason: "empty attribute"}
			}
			if key == "file" {
				attrs.target = value
				continue
			}
			if attrs.meta == nil {
				attrs.meta = map[string]string{}
			}
			attrs.meta[key] = value
		default:
			return nil, &MalformedHeaderError{Path: path, Line: line, Header: rest, Reason: "unrecognized attribute " + field}
		}
	}
	if attrs.name == "" && attrs.target == "" {
		return nil, nil
	}
	if attrs.name == "" {
		attrs.name = attrs.target
	}
	return attrs, nil
}

func leadingBackticks(text string) int {
	count := 0
	for count < len(text) && text[count] == '`' {
		count++
	}
	return count
}
