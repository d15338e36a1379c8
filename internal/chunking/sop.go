package chunking

import (
	"fmt"
	"strings"

	"qms-rag/internal/models"
)

// chunkSOP handles process documents: one chunk per process step plus
// combined compliance, references and definitions chunks.
func chunkSOP(b *chunkBuilder, content map[string]interface{}) error {
	steps := getList(content, "process_steps")
	if steps == nil {
		return fmt.Errorf("missing process_steps")
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

	for i, raw := range steps {
		step, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		num, hasNum := getInt(step, "step_number")
		if !hasNum {
			num = i + 1
		}
		label := getString(step, "label")

		var lines []string
		lines = append(lines, fmt.Sprintf("Schritt %d: %s", num, label))
		if desc := getString(step, "description"); desc != "" {
			lines = append(lines, desc)
		}
		if dept := getString(step, "responsible_department"); dept != "" {
			lines = append(lines, "Verantwortlich: "+dept)
		}
		lines = appendSection(lines, "Eingaben", stringItems(getList(step, "inputs")))
		lines = appendSection(lines, "Ausgaben", stringItems(getList(step, "outputs")))
		lines = appendSection(lines, "Entscheidungen", stringItems(getList(step, "decision_branches")))
		if notes := getString(step, "notes"); notes != "" {
			lines = append(lines, "Hinweise: "+notes)
		}

		b.emit(fmt.Sprintf("step_%d", num), models.ChunkTypeProcessStep, strings.Join(lines, "\n"), headings(label))
	}

	if reqs := stringItems(getList(content, "compliance_requirements")); len(reqs) > 0 {
		b.emit("compliance", models.ChunkTypeCompliance,
			strings.Join(appendSection(nil, "Compliance-Anforderungen", reqs), "\n"),
			headings("Compliance"))
	}

	for i, raw := range getList(content, "critical_rules") {
		rule, ok := raw.(map[string]interface{})
		if !ok {
			if s := formatValue(raw); s != "" {
				b.emit(fmt.Sprintf("rule_%d", i+1), models.ChunkTypeCriticalRule, s, headings("Kritische Regeln"))
			}
			continue
		}
		text := getString(rule, "rule")
		if text == "" {
			text = formatMapInline(rule)
		}
		if step, ok := getInt(rule, "related_step"); ok {
			text = fmt.Sprintf("%s (Schritt %d)", text, step)
		}
		b.emit(fmt.Sprintf("rule_%d", i+1), models.ChunkTypeCriticalRule, text, headings("Kritische Regeln"))
	}

	if refs := stringItems(getList(content, "references")); len(refs) > 0 {
		b.emit("references", models.ChunkTypeReferences,
			strings.Join(appendSection(nil, "Referenzen", refs), "\n"),
			headings("Referenzen"))
	}

	if defs := getList(content, "definitions"); len(defs) > 0 {
		var lines []string
		lines = append(lines, "Definitionen:")
		for _, raw := range defs {
			if def, ok := raw.(map[string]interface{}); ok {
				term := getString(def, "term")
				meaning := getString(def, "definition")
				if term != "" {
					lines = append(lines, fmt.Sprintf("- %s: %s", term, meaning))
					continue
				}
			}
			if s := formatValue(raw); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		b.emit("definitions", models.ChunkTypeDefinitions, strings.Join(lines, "\n"), headings("Definitionen"))
	}

	return nil
}
