package chunking

import (
	"fmt"
	"strings"

	"qms-rag/internal/models"
)

// chunkWorkInstruction emits one self-contained chunk per work step. Lists
// are flattened to text lines; hazard notes on consumables are kept verbatim.
func chunkWorkInstruction(b *chunkBuilder, content map[string]interface{}) error {
	steps := getList(content, "steps")
	if steps == nil {
		return fmt.Errorf("missing steps")
	}

	title := ""
	if meta := getMap(content, "document_metadata"); meta != nil {
		title = getString(meta, "title")
		b.emit("meta", models.ChunkTypeMetadata, formatMapLines(meta), nil)
	}

	headings := func(sub string) []string {
		h := []string{}
		if title != "" {
			h = append(h, title)
		}
		if sub != "" {
			h = append(h, sub)
		}
		return h
	}

	if overview := getMap(content, "process_overview"); overview != nil {
		var lines []string
		if goal := getString(overview, "goal"); goal != "" {
			lines = append(lines, "Ziel: "+goal)
		}
		if scope := getString(overview, "scope"); scope != "" {
			lines = append(lines, "Geltungsbereich: "+scope)
		}
		lines = appendSection(lines, "Allgemeine Sicherheit", stringItems(getList(overview, "general_safety")))
		b.emit("overview", models.ChunkTypeMetadata, strings.Join(lines, "\n"), headings("Übersicht"))
	}

	for i, raw := range steps {
		step, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		num, hasNum := getInt(step, "step_number")
		if !hasNum {
			num = i + 1
		}
		stepTitle := getString(step, "title")

		var lines []string
		lines = append(lines, fmt.Sprintf("Arbeitsschritt %d: %s", num, stepTitle))
		if desc := getString(step, "description"); desc != "" {
			lines = append(lines, desc)
		}
		if article := getMap(step, "article_data"); article != nil {
			lines = append(lines, "Artikeldaten: "+formatMapInline(article))
		}
		if consumables := getList(step, "consumables"); len(consumables) > 0 {
			lines = append(lines, "Verbrauchsmaterial:")
			for _, c := range consumables {
				lines = append(lines, "- "+formatConsumable(c))
			}
		}
		lines = appendSection(lines, "Werkzeuge", stringItems(getList(step, "tools")))
		lines = appendSection(lines, "Sicherheitshinweise", stringItems(getList(step, "safety_instructions")))
		lines = appendSection(lines, "Qualitätsprüfungen", stringItems(getList(step, "quality_checks")))

		b.emit(fmt.Sprintf("step_%d", num), models.ChunkTypeWorkStep, strings.Join(lines, "\n"), headings(stepTitle))
	}

	return nil
}

// formatConsumable renders a consumable with its hazard notes untouched.
// Chemicals and adhesives carry warnings that must survive verbatim.
func formatConsumable(v interface{}) string {
	c, ok := v.(map[string]interface{})
	if !ok {
		return formatValue(v)
	}
	name := getString(c, "name")
	if name == "" {
		return formatMapInline(c)
	}
	parts := []string{name}
	if typ := getString(c, "type"); typ != "" {
		parts = append(parts, "("+typ+")")
	}
	if amount := getString(c, "amount"); amount != "" {
		parts = append(parts, amount)
	}
	out := strings.Join(parts, " ")
	if hazard := getString(c, "hazard_notes"); hazard != "" {
		out += " | Gefahrenhinweis: " + hazard
	}
	return out
}
