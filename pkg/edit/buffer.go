// Package edit provides a byte-range editing buffer over a slice of source
// text. Edits are addressed with the original byte offsets of the source, so
// syntax-node ranges can be used directly; the edited text is materialised
// only when String is called.
package edit

import (
	"fmt"
	"strings"
)

// A chunk is either an untouched range of the original source or a
// replacement carrying its own text.
type chunk struct {
	start  uint32
	end    uint32
	text   string
	edited bool
}

// Buffer is an editable view of one byte range of a source file.
type Buffer struct {
	source    []byte
	start     uint32
	end       uint32
	chunks    []chunk
	tail      []string
	locations []uint32
}

// NewBuffer creates a buffer owning source[start:end). Offsets passed to the
// editing methods are absolute offsets into source.
func NewBuffer(source []byte, start, end uint32) *Buffer {
	return &Buffer{
		source: source,
		start:  start,
		end:    end,
		chunks: []chunk{{start: start, end: end}},
	}
}

// Clone returns an independent copy of the buffer, edits included.
func (b *Buffer) Clone() *Buffer {
	clone := &Buffer{
		source:    b.source,
		start:     b.start,
		end:       b.end,
		chunks:    make([]chunk, len(b.chunks)),
		tail:      make([]string, len(b.tail)),
		locations: make([]uint32, len(b.locations)),
	}
	copy(clone.chunks, b.chunks)
	copy(clone.tail, b.tail)
	copy(clone.locations, b.locations)
	return clone
}

// Overwrite replaces the range [start, end) with text. The range must lie
// inside the buffer and must not touch an earlier edit.
func (b *Buffer) Overwrite(start, end uint32, text string) error {
	if start >= end {
		return fmt.Errorf("edit: empty overwrite range %d-%d", start, end)
	}
	if start < b.start || end > b.end {
		return fmt.Errorf("edit: range %d-%d outside buffer %d-%d", start, end, b.start, b.end)
	}

	out := make([]chunk, 0, len(b.chunks)+2)
	replaced := false
	for _, c := range b.chunks {
		if c.end <= start || c.start >= end || (c.start == c.end && c.edited) {
			out = append(out, c)
			continue
		}
		if c.edited {
			return fmt.Errorf("edit: range %d-%d overlaps an earlier edit", start, end)
		}
		if c.start < start {
			out = append(out, chunk{start: c.start, end: start})
		}
		if !replaced {
			out = append(out, chunk{start: start, end: end, text: text, edited: true})
			replaced = true
		}
		if c.end > end {
			out = append(out, chunk{start: end, end: c.end})
		}
	}
	if !replaced {
		return fmt.Errorf("edit: range %d-%d not found", start, end)
	}
	b.chunks = out
	return nil
}

// Remove deletes the range [start, end).
func (b *Buffer) Remove(start, end uint32) error {
	return b.Overwrite(start, end, "")
}

// Insert places text at offset, before any content currently at that
// position. Inserting outside the buffer's range is an error; callers that
// cannot insert positionally fall back to Append.
func (b *Buffer) Insert(offset uint32, text string) error {
	if offset < b.start || offset > b.end {
		return fmt.Errorf("edit: offset %d outside buffer %d-%d", offset, b.start, b.end)
	}

	ins := chunk{start: offset, end: offset, text: text, edited: true}
	out := make([]chunk, 0, len(b.chunks)+1)
	done := false
	for _, c := range b.chunks {
		if !done && offset <= c.start {
			out = append(out, ins)
			done = true
		} else if !done && offset > c.start && offset < c.end {
			if c.edited {
				out = append(out, c)
				continue
			}
			out = append(out, chunk{start: c.start, end: offset}, ins, chunk{start: offset, end: c.end})
			done = true
			continue
		}
		out = append(out, c)
	}
	if !done {
		out = append(out, ins)
	}
	b.chunks = out
	return nil
}

// Append adds text after everything else, including earlier appends.
func (b *Buffer) Append(text string) {
	b.tail = append(b.tail, text)
}

// AddSourcemapLocation registers an original byte offset as relevant for
// source mapping.
func (b *Buffer) AddSourcemapLocation(offset uint32) {
	b.locations = append(b.locations, offset)
}

// Locations returns the registered source-map offsets.
func (b *Buffer) Locations() []uint32 {
	return b.locations
}

// String materialises the edited text.
func (b *Buffer) String() string {
	var sb strings.Builder
	for _, c := range b.chunks {
		if c.edited {
			sb.WriteString(c.text)
		} else {
			sb.Write(b.source[c.start:c.end])
		}
	}
	for _, t := range b.tail {
		sb.WriteString(t)
	}
	return sb.String()
}
