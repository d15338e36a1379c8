package chunking

import (
	"fmt"
	"strings"

	"qms-rag/internal/models"
)

// chunkFlowchart emits an overview chunk, one chunk per node, one per
// decision point, and a single chunk listing all connections so edge
// questions ("was folgt auf ...") stay answerable.
func chunkFlowchart(b *chunkBuilder, content map[string]interface{}) error {
	nodes := getList(content, "nodes")
	if nodes == nil {
		return fmt.Errorf("missing nodes")
	}

	title := getString(content, "title")
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

	var overview []string
	if title != "" {
		overview = append(overview, "Diagramm: "+title)
	}
	if desc := getString(content, "description"); desc != "" {
		overview = append(overview, desc)
	}
	if purpose := getString(content, "purpose"); purpose != "" {
		overview = append(overview, "Zweck: "+purpose)
	}
	overview = appendSection(overview, "Verantwortungsbereiche", stringItems(getList(content, "swimlanes")))
	b.emit("diagram_overview", models.ChunkTypeMetadata, strings.Join(overview, "\n"), headings(""))

	for i, raw := range nodes {
		node, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id := getString(node, "id")
		if id == "" {
			id = fmt.Sprintf("%d", i+1)
		}
		label := getString(node, "label")

		var lines []string
		lines = append(lines, fmt.Sprintf("Knoten %s: %s", id, label))
		if typ := getString(node, "type"); typ != "" {
			lines = append(lines, "Typ: "+typ)
		}
		if desc := getString(node, "description"); desc != "" {
			lines = append(lines, desc)
		}
		if dept := getString(node, "responsible_department"); dept != "" {
			lines = append(lines, "Verantwortlich: "+dept)
		}
		lines = appendSection(lines, "Eingaben", stringItems(getList(node, "inputs")))
		lines = appendSection(lines, "Ausgaben", stringItems(getList(node, "outputs")))
		if notes := getString(node, "notes"); notes != "" {
			lines = append(lines, "Hinweise: "+notes)
		}

		b.emit("node_"+sanitizeID(id), models.ChunkTypeFlowchartNode, strings.Join(lines, "\n"), headings(label))
	}

	for i, raw := range getList(content, "decision_points") {
		decision, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		var lines []string
		lines = append(lines, "Entscheidung: "+getString(decision, "question"))
		lines = appendSection(lines, "Optionen", stringItems(getList(decision, "options")))
		if def := getString(decision, "default"); def != "" {
			lines = append(lines, "Standard: "+def)
		}
		b.emit(fmt.Sprintf("decision_%d", i+1), models.ChunkTypeFlowchartDecision, strings.Join(lines, "\n"), headings("Entscheidungen"))
	}

	if connections := getList(content, "connections"); len(connections) > 0 {
		lines := []string{"Verbindungen:"}
		for _, raw := range connections {
			conn, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			line := fmt.Sprintf("- %s -> %s", getString(conn, "from"), getString(conn, "to"))
			if label := getString(conn, "label"); label != "" {
				line += " (" + label + ")"
			}
			if cond := getString(conn, "condition"); cond != "" {
				line += " wenn " + cond
			}
			if typ := getString(conn, "type"); typ != "" {
				line += " [" + typ + "]"
			}
			lines = append(lines, line)
		}
		b.emit("connections", models.ChunkTypeFlowchartConnections, strings.Join(lines, "\n"), headings("Verbindungen"))
	}

	if meta := getMap(content, "document_metadata"); meta != nil {
		b.emit("meta", models.ChunkTypeMetadata, formatMapLines(meta), headings(""))
	}

	return nil
}
