package chunking

import (
	"fmt"
	"strings"
	"unicode"

	"qms-rag/internal/models"
)

// genericTextKeys are checked in order for free-form prose.
var genericTextKeys = []string{"text", "content", "raw_text"}

// chunkGeneric is the fallback strategy: prose becomes overlapping text
// chunks, tables are flattened row-wise.
func (e *Engine) chunkGeneric(b *chunkBuilder, content map[string]interface{}) error {
	emitted := false

	for _, key := range genericTextKeys {
		text, ok := content[key].(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		for _, piece := range e.splitter.split(text) {
			b.emit("text", models.ChunkTypeText, piece.text, nil)
			if piece.hasOverlap {
				last := &b.chunks[len(b.chunks)-1]
				last.Metadata.HasOverlap = true
				last.Metadata.OverlapSentences = piece.overlapSentences
			}
		}
		emitted = true
		break
	}

	for _, raw := range getList(content, "tables") {
		table, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if text := flattenTable(table); text != "" {
			b.emit("table", models.ChunkTypeTable, text, nil)
			emitted = true
		}
	}

	if !emitted {
		// No recognized shape: flatten whatever is there into one chunk.
		if text := formatMapLines(content); text != "" {
			b.emit("text", models.ChunkTypeText, text, nil)
			emitted = true
		}
	}

	if !emitted {
		return fmt.Errorf("no chunkable content")
	}
	return nil
}

// flattenTable renders a table as one line per row, prefixing each cell with
// its column header so rows stay self-describing.
func flattenTable(table map[string]interface{}) string {
	headers := stringItems(getList(table, "headers"))
	rows := getList(table, "rows")

	var lines []string
	if title := getString(table, "title"); title != "" {
		lines = append(lines, "Tabelle: "+title)
	}
	for _, raw := range rows {
		cells, ok := raw.([]interface{})
		if !ok {
			if s := formatValue(raw); s != "" {
				lines = append(lines, s)
			}
			continue
		}
		parts := make([]string, 0, len(cells))
		for i, cell := range cells {
			value := formatValue(cell)
			if value == "" {
				continue
			}
			if i < len(headers) {
				parts = append(parts, headers[i]+": "+value)
			} else {
				parts = append(parts, value)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " | "))
		}
	}
	return strings.Join(lines, "\n")
}

type splitPiece struct {
	text             string
	hasOverlap       bool
	overlapSentences int
}

// textSplitter cuts prose into size-bounded pieces at natural break points,
// carrying a character overlap between consecutive pieces.
type textSplitter struct {
	size    int
	overlap int
}

func newTextSplitter(size, overlap int) *textSplitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 50
	}
	return &textSplitter{size: size, overlap: overlap}
}

func (s *textSplitter) split(text string) []splitPiece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.size {
		return []splitPiece{{text: text}}
	}

	var pieces []splitPiece
	position := 0
	for position < len(text) {
		end := position + s.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = s.findBreakPoint(text, position, end)
		}

		piece := strings.TrimSpace(text[position:end])
		if piece != "" {
			p := splitPiece{text: piece}
			if len(pieces) > 0 {
				p.hasOverlap = true
				overlapText := text[position:min(position+s.overlap, end)]
				p.overlapSentences = strings.Count(overlapText, ".")
			}
			pieces = append(pieces, p)
		}

		if end == len(text) {
			break
		}
		next := end - s.overlap
		if next <= position {
			next = position + 1
		}
		position = next
	}
	return pieces
}

// findBreakPoint searches backwards from the target end for a paragraph,
// newline, sentence or word boundary, in that priority.
func (s *textSplitter) findBreakPoint(text string, start, targetEnd int) int {
	searchStart := targetEnd - s.size/5
	if searchStart < start {
		searchStart = start
	}
	window := text[searchStart:targetEnd]

	if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
		return searchStart + idx + 2
	}
	if idx := strings.LastIndex(window, "\n"); idx != -1 {
		return searchStart + idx + 1
	}
	for i := targetEnd - 1; i >= searchStart; i-- {
		c := text[i]
		if c == '.' || c == '!' || c == '?' {
			if i+1 >= len(text) || unicode.IsSpace(rune(text[i+1])) {
				return i + 1
			}
		}
	}
	if idx := strings.LastIndex(window, " "); idx != -1 {
		return searchStart + idx + 1
	}
	return targetEnd
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
