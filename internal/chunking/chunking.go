// Package chunking turns per-page vision JSON into typed document chunks.
// A strategy is selected per document type; every strategy emits chunks
// whose identifiers follow doc_{docID}_page_{page}_{role}[_{index}].
package chunking

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"qms-rag/internal/models"
)

// Strategy names, also used in logs.
const (
	StrategySOP             = "sop"
	StrategyWorkInstruction = "work_instruction"
	StrategyFlowchart       = "flowchart"
	StrategyDatasheet       = "datasheet"
	StrategyGeneric         = "generic"
)

// dispatchRules map schema markers to strategies. Order matters: datasheets
// nest processing_instructions with a step_number, so the datasheet marker
// must win over the work-instruction pair.
var dispatchRules = []struct {
	strategy string
	keys     []string
}{
	{StrategyFlowchart, []string{`"nodes"`}},
	{StrategyDatasheet, []string{`"technical_specifications"`}},
	{StrategyWorkInstruction, []string{`"steps"`, `"step_number"`}},
	{StrategySOP, []string{`"process_steps"`}},
}

func matchStrategy(text string) string {
	for _, rule := range dispatchRules {
		matched := true
		for _, key := range rule.keys {
			if !strings.Contains(text, key) {
				matched = false
				break
			}
		}
		if matched {
			return rule.strategy
		}
	}
	return ""
}

// SelectStrategy picks the chunking strategy for a document. The active
// prompt template is inspected first; the vision JSON only decides when the
// prompt is inconclusive.
func SelectStrategy(promptText string, visionJSON []byte) string {
	if s := matchStrategy(promptText); s != "" {
		return s
	}
	if s := matchStrategy(string(visionJSON)); s != "" {
		return s
	}
	return StrategyGeneric
}

// Page is one page of vision processor output.
type Page struct {
	Number     int
	VisionJSON json.RawMessage
}

// Engine drives strategy dispatch and per-page chunk emission.
type Engine struct {
	splitter *textSplitter
	logger   *zap.Logger
}

func NewEngine(cfg models.RAGConfig, logger *zap.Logger) *Engine {
	return &Engine{
		splitter: newTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:   logger,
	}
}

type strategyFunc func(b *chunkBuilder, content map[string]interface{}) error

func (e *Engine) strategyFor(name string) strategyFunc {
	switch name {
	case StrategySOP:
		return chunkSOP
	case StrategyWorkInstruction:
		return chunkWorkInstruction
	case StrategyFlowchart:
		return chunkFlowchart
	case StrategyDatasheet:
		return chunkDatasheet
	default:
		return e.chunkGeneric
	}
}

// ChunkPages processes pages in order and returns the concatenated chunk
// sequence. A page whose strategy fails degrades to the generic fallback for
// that page only.
func (e *Engine) ChunkPages(docID int, docType, promptText string, pages []Page) []models.DocumentChunk {
	b := newChunkBuilder(docID)

	for _, page := range pages {
		for _, unit := range e.unwrapPage(page) {
			b.page = unit.Number

			content, err := decodeContent(unit.VisionJSON)
			if err != nil {
				e.logger.Warn("vision JSON malformed, skipping page",
					zap.Int("document_id", docID),
					zap.Int("page", unit.Number),
					zap.Error(err))
				continue
			}

			strategy := SelectStrategy(promptText, unit.VisionJSON)
			if err := e.strategyFor(strategy)(b, content); err != nil {
				e.logger.Warn("chunking strategy failed, falling back to generic",
					zap.Int("document_id", docID),
					zap.Int("page", unit.Number),
					zap.String("strategy", strategy),
					zap.Error(err))
				if genErr := e.chunkGeneric(b, content); genErr != nil {
					e.logger.Warn("generic fallback produced no chunks",
						zap.Int("document_id", docID),
						zap.Int("page", unit.Number),
						zap.Error(genErr))
				}
			}
		}
	}

	return b.chunks
}

// unwrapPage accepts both input shapes: root-level content (canonical) and
// the legacy {"pages":[{page_number, content}]} wrapper.
func (e *Engine) unwrapPage(page Page) []Page {
	var wrapper struct {
		Pages []struct {
			PageNumber int             `json:"page_number"`
			Content    json.RawMessage `json:"content"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(page.VisionJSON, &wrapper); err == nil && len(wrapper.Pages) > 0 {
		e.logger.Debug("legacy pages-wrapped vision JSON", zap.Int("page", page.Number))
		units := make([]Page, 0, len(wrapper.Pages))
		for _, p := range wrapper.Pages {
			n := p.PageNumber
			if n == 0 {
				n = page.Number
			}
			units = append(units, Page{Number: n, VisionJSON: p.Content})
		}
		return units
	}
	return []Page{page}
}

func decodeContent(raw json.RawMessage) (map[string]interface{}, error) {
	var content map[string]interface{}
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("failed to decode vision JSON: %w", err)
	}
	return content, nil
}

// chunkBuilder accumulates chunks for one document, guaranteeing identifier
// uniqueness by suffixing repeated roles with an index.
type chunkBuilder struct {
	docID  int
	page   int
	seen   map[string]int
	chunks []models.DocumentChunk
	now    time.Time
}

func newChunkBuilder(docID int) *chunkBuilder {
	return &chunkBuilder{docID: docID, seen: make(map[string]int), now: time.Now()}
}

func (b *chunkBuilder) emit(role string, chunkType models.ChunkType, text string, headings []string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	chunkID := fmt.Sprintf("doc_%d_page_%d_%s", b.docID, b.page, role)
	b.seen[chunkID]++
	if n := b.seen[chunkID]; n > 1 {
		chunkID = fmt.Sprintf("%s_%d", chunkID, n)
	}

	b.chunks = append(b.chunks, models.DocumentChunk{
		ChunkID: chunkID,
		Text:    text,
		Metadata: models.ChunkMetadata{
			PageNumbers:      []int{b.page},
			HeadingHierarchy: headings,
			ChunkType:        chunkType,
			TokenCount:       estimateTokens(text),
			SentenceCount:    countSentences(text),
		},
		PointID:   models.PointIDForChunk(chunkID),
		CreatedAt: b.now,
	})
}

func estimateTokens(text string) int {
	return len(text) / 4
}

func countSentences(text string) int {
	n := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// --- JSON accessors shared by the strategies ---

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func getList(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key].([]interface{}); ok {
		return v
	}
	return nil
}

func getString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return formatNumber(v)
	}
	return ""
}

func getInt(m map[string]interface{}, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// formatValue flattens an arbitrary JSON value into readable text.
func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatNumber(t)
	case bool:
		return fmt.Sprintf("%t", t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := formatValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		return formatMapInline(t)
	}
	return ""
}

func formatMapInline(m map[string]interface{}) string {
	keys := sortedKeys(m)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if s := formatValue(m[k]); s != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", k, s))
		}
	}
	return strings.Join(parts, "; ")
}

// formatMapLines renders a map as "key: value" lines in stable key order so
// re-index reproduces identical chunk text.
func formatMapLines(m map[string]interface{}) string {
	keys := sortedKeys(m)
	var lines []string
	for _, k := range keys {
		if s := formatValue(m[k]); s != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", k, s))
		}
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringItems(list []interface{}) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s := formatValue(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// appendSection adds "Label:" plus one "- item" line per entry when the list
// is non-empty.
func appendSection(lines []string, label string, items []string) []string {
	if len(items) == 0 {
		return lines
	}
	lines = append(lines, label+":")
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return lines
}

// sanitizeID makes an identifier fragment safe for the chunk id scheme.
func sanitizeID(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '_' || r == '-':
			sb.WriteRune('_')
		case r == ' ':
			sb.WriteRune('_')
		}
	}
	out := strings.Trim(sb.String(), "_")
	if out == "" {
		return "x"
	}
	return out
}
