package chat

import (
	"fmt"
	"strings"

	"qms-rag/internal/chunking"
	"qms-rag/internal/retrieval"
)

// citationInstruction is the literal citation contract the UI parses.
const citationInstruction = "Zitiere jede verwendete Textstelle direkt nach dem Satz mit der Angabe **Referenz**: chunk N."

// systemPrompts instruct the model per document class. All answers are
// German; the citation format is identical everywhere.
var systemPrompts = map[string]string{
	chunking.StrategySOP: "Du bist ein Assistent für Qualitätsmanagement-Dokumente. " +
		"Beantworte die Frage ausschließlich anhand der bereitgestellten Auszüge aus Standardarbeitsanweisungen (SOPs). " +
		"Nenne Prozessschritte mit ihrer Schrittnummer und der verantwortlichen Stelle. " +
		"Antworte auf Deutsch. " + citationInstruction,
	chunking.StrategyWorkInstruction: "Du bist ein Assistent für Arbeitsanweisungen. " +
		"Beantworte die Frage ausschließlich anhand der bereitgestellten Arbeitsschritte. " +
		"Gib Sicherheits- und Gefahrenhinweise immer wörtlich wieder. " +
		"Antworte auf Deutsch. " + citationInstruction,
	chunking.StrategyFlowchart: "Du bist ein Assistent für Prozessdiagramme. " +
		"Beantworte die Frage anhand der bereitgestellten Knoten, Entscheidungen und Verbindungen des Diagramms. " +
		"Beschreibe Abläufe in der Reihenfolge der Verbindungen. " +
		"Antworte auf Deutsch. " + citationInstruction,
	chunking.StrategyDatasheet: "Du bist ein Assistent für technische Datenblätter. " +
		"Beantworte die Frage ausschließlich anhand der bereitgestellten Datenblattauszüge. " +
		"Gib Kennwerte mit Einheit an und übernimm Sicherheitswarnungen wörtlich. " +
		"Antworte auf Deutsch. " + citationInstruction,
	chunking.StrategyGeneric: "Du bist ein Assistent für Qualitätsmanagement-Dokumente. " +
		"Beantworte die Frage ausschließlich anhand der bereitgestellten Auszüge. " +
		"Wenn die Auszüge keine Antwort enthalten, sage das deutlich. " +
		"Antworte auf Deutsch. " + citationInstruction,
}

// selectSystemPrompt picks the per-document-type template using the same
// dispatch signals as the chunking engine, applied to the stored prompt
// text for that document type.
func selectSystemPrompt(templateText string) string {
	return systemPrompts[chunking.SelectStrategy(templateText, nil)]
}

// buildUserPrompt numbers each context chunk and attaches its structural
// metadata so the model can cite precisely. Chunks beyond the token budget
// are dropped; the returned slice holds the results actually included.
func buildUserPrompt(question string, results []retrieval.SearchResult, maxChunks, tokenBudget int) (string, []retrieval.SearchResult) {
	var sb strings.Builder
	sb.WriteString("Kontext aus den freigegebenen Dokumenten:\n\n")

	used := make([]retrieval.SearchResult, 0, len(results))
	tokens := 0
	for _, r := range results {
		if len(used) >= maxChunks {
			break
		}
		cost := r.Payload.TokenCount
		if cost == 0 {
			cost = len(r.Payload.ChunkText) / 4
		}
		if tokenBudget > 0 && tokens+cost > tokenBudget && len(used) > 0 {
			break
		}
		tokens += cost

		n := len(used) + 1
		fmt.Fprintf(&sb, "[chunk %d]", n)
		if len(r.Payload.HeadingHierarchy) > 0 {
			fmt.Fprintf(&sb, " %s", strings.Join(r.Payload.HeadingHierarchy, " > "))
		}
		fmt.Fprintf(&sb, " (Typ: %s, Seite %s)\n%s\n\n",
			r.Payload.ChunkType, joinPages(r.Payload.PageNumbers), r.Payload.ChunkText)
		used = append(used, r)
	}

	fmt.Fprintf(&sb, "Frage: %s", question)
	return sb.String(), used
}

func joinPages(pages []int) string {
	if len(pages) == 0 {
		return "?"
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
