package chunking

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qms-rag/internal/models"
)

func newTestEngine() *Engine {
	return NewEngine(models.DefaultRAGConfig(), zap.NewNop())
}

func chunkByID(t *testing.T, chunks []models.DocumentChunk, chunkID string) models.DocumentChunk {
	t.Helper()
	for _, c := range chunks {
		if c.ChunkID == chunkID {
			return c
		}
	}
	t.Fatalf("chunk %s not found", chunkID)
	return models.DocumentChunk{}
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		json   string
		want   string
	}{
		{"prompt nodes", `produce "nodes" and "connections"`, `{}`, StrategyFlowchart},
		{"prompt sop", `emit "process_steps" per page`, `{}`, StrategySOP},
		{"prompt work instruction", `"steps" each with "step_number"`, `{}`, StrategyWorkInstruction},
		// Datasheet wins even though processing_instructions nest step_number.
		{"datasheet over work instruction", `"technical_specifications" with "steps" and "step_number"`, `{}`, StrategyDatasheet},
		// Prompt inspection beats JSON inspection.
		{"prompt beats json", `schema uses "process_steps"`, `{"nodes":[]}`, StrategySOP},
		{"json fallback", ``, `{"nodes":[{"id":"n1"}]}`, StrategyFlowchart},
		{"generic default", `just read the page`, `{"something":"else"}`, StrategyGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectStrategy(tt.prompt, []byte(tt.json)))
		})
	}
}

func TestChunkSOP(t *testing.T) {
	e := newTestEngine()
	visionJSON := `{
		"document_metadata": {"title": "SOP Schweißen", "version": "2.1"},
		"process_steps": [
			{"step_number": 6, "label": "Fehlerprüfung", "description": "Prüfe den Fehler", "responsible_department": "QS", "inputs": ["Bauteil"], "outputs": ["Prüfprotokoll"]}
		],
		"compliance_requirements": ["ISO 9001"],
		"critical_rules": [{"rule": "Niemals ohne Schutzbrille arbeiten", "related_step": 6}],
		"definitions": [{"term": "QS", "definition": "Qualitätssicherung"}]
	}`

	chunks := e.ChunkPages(7, "SOP", `"process_steps"`, []Page{{Number: 1, VisionJSON: json.RawMessage(visionJSON)}})
	require.NotEmpty(t, chunks)

	step := chunkByID(t, chunks, "doc_7_page_1_step_6")
	assert.Equal(t, models.ChunkTypeProcessStep, step.Metadata.ChunkType)
	assert.Contains(t, step.Text, "Fehlerprüfung")
	assert.Contains(t, step.Text, "Prüfe den Fehler")
	assert.Contains(t, step.Text, "Verantwortlich: QS")
	assert.Equal(t, []int{1}, step.Metadata.PageNumbers)
	assert.Equal(t, models.PointIDForChunk("doc_7_page_1_step_6"), step.PointID)
	assert.Equal(t, []string{"SOP Schweißen", "Fehlerprüfung"}, step.Metadata.HeadingHierarchy)

	meta := chunkByID(t, chunks, "doc_7_page_1_meta")
	assert.Equal(t, models.ChunkTypeMetadata, meta.Metadata.ChunkType)
	assert.Contains(t, meta.Text, "SOP Schweißen")

	rule := chunkByID(t, chunks, "doc_7_page_1_rule_1")
	assert.Equal(t, models.ChunkTypeCriticalRule, rule.Metadata.ChunkType)
	assert.Contains(t, rule.Text, "Schutzbrille")
	assert.Contains(t, rule.Text, "(Schritt 6)")

	compliance := chunkByID(t, chunks, "doc_7_page_1_compliance")
	assert.Contains(t, compliance.Text, "ISO 9001")

	defs := chunkByID(t, chunks, "doc_7_page_1_definitions")
	assert.Contains(t, defs.Text, "QS: Qualitätssicherung")
}

func TestChunkWorkInstruction(t *testing.T) {
	e := newTestEngine()
	visionJSON := `{
		"document_metadata": {"title": "Klebeanweisung"},
		"process_overview": {"goal": "Bauteile verkleben", "scope": "Montage", "general_safety": ["Handschuhe tragen"]},
		"steps": [
			{"step_number": 1, "title": "Vorbereitung", "description": "Flächen reinigen",
			 "consumables": [{"name": "Loctite 401", "type": "Klebstoff", "hazard_notes": "Kann Haut und Augen reizen."}],
			 "tools": ["Spachtel"], "safety_instructions": ["Schutzbrille tragen"], "quality_checks": ["Sichtprüfung"]}
		]
	}`

	chunks := e.ChunkPages(3, "Arbeitsanweisung", `"steps" with "step_number"`, []Page{{Number: 2, VisionJSON: json.RawMessage(visionJSON)}})

	step := chunkByID(t, chunks, "doc_3_page_2_step_1")
	assert.Equal(t, models.ChunkTypeWorkStep, step.Metadata.ChunkType)
	// Hazard notes survive verbatim.
	assert.Contains(t, step.Text, "Kann Haut und Augen reizen.")
	assert.Contains(t, step.Text, "Loctite 401")
	assert.Contains(t, step.Text, "Werkzeuge:")
	assert.Contains(t, step.Text, "Qualitätsprüfungen:")

	overview := chunkByID(t, chunks, "doc_3_page_2_overview")
	assert.Contains(t, overview.Text, "Ziel: Bauteile verkleben")
	assert.Contains(t, overview.Text, "Handschuhe tragen")
}

func TestChunkFlowchart(t *testing.T) {
	e := newTestEngine()
	visionJSON := `{
		"title": "Reklamationsprozess",
		"purpose": "Ablauf einer Reklamation",
		"swimlanes": ["Vertrieb", "QS"],
		"nodes": [
			{"id": "n5", "type": "process", "label": "Ware prüfen", "responsible_department": "QS"}
		],
		"decision_points": [
			{"question": "Mangel bestätigt?", "options": ["ja", "nein"], "default": "nein"}
		],
		"connections": [
			{"from": "n5", "to": "n6", "label": "weiter", "condition": "Prüfung abgeschlossen"}
		]
	}`

	chunks := e.ChunkPages(9, "Flussdiagramm", `"nodes"`, []Page{{Number: 1, VisionJSON: json.RawMessage(visionJSON)}})

	node := chunkByID(t, chunks, "doc_9_page_1_node_n5")
	assert.Equal(t, models.ChunkTypeFlowchartNode, node.Metadata.ChunkType)
	assert.Contains(t, node.Text, "Ware prüfen")

	decision := chunkByID(t, chunks, "doc_9_page_1_decision_1")
	assert.Equal(t, models.ChunkTypeFlowchartDecision, decision.Metadata.ChunkType)
	assert.Contains(t, decision.Text, "Mangel bestätigt?")
	assert.Contains(t, decision.Text, "Standard: nein")

	conns := chunkByID(t, chunks, "doc_9_page_1_connections")
	assert.Equal(t, models.ChunkTypeFlowchartConnections, conns.Metadata.ChunkType)
	assert.Contains(t, conns.Text, "n5 -> n6")
	assert.Contains(t, conns.Text, "wenn Prüfung abgeschlossen")

	overview := chunkByID(t, chunks, "doc_9_page_1_diagram_overview")
	assert.Contains(t, overview.Text, "Reklamationsprozess")
	assert.Contains(t, overview.Text, "Vertrieb")
}

func TestChunkDatasheet(t *testing.T) {
	e := newTestEngine()
	visionJSON := `{
		"document_metadata": {"product_name": "Loctite 401", "manufacturer": "Henkel"},
		"technical_specifications": {
			"physical": {"Viskosität": "110 mPas", "Farbe": "transparent"},
			"chemical": {},
			"performance": {"Zugfestigkeit": "20 N/mm2"}
		},
		"application_info": {
			"application_areas": ["Kunststoffe", "Elastomere"],
			"material_compatibility": {"suitable": ["ABS", "PVC"], "unsuitable": ["PE"]},
			"processing_instructions": [{"step_number": 1, "instruction": "Oberflächen entfetten"}],
			"curing_information": {"Handfest": "10 s"}
		},
		"safety_data": {
			"ghs_symbols": ["GHS07"],
			"hazard_statements": ["H315"],
			"precautionary_statements": ["P280"],
			"safety_warnings": ["Kann Augenreizung verursachen."],
			"first_aid": {"Augenkontakt": "Mit Wasser spülen"},
			"storage_requirements": "Kühl und trocken lagern",
			"disposal": "Als Sondermüll entsorgen"
		},
		"product_variants": [{"variant_id": "401-20g", "size": "20 g"}],
		"additional_information": "Nicht für medizinische Anwendungen."
	}`

	chunks := e.ChunkPages(5, "Datenblatt", `"technical_specifications"`, []Page{{Number: 1, VisionJSON: json.RawMessage(visionJSON)}})

	warnings := chunkByID(t, chunks, "doc_5_page_1_safety_warnings")
	assert.Equal(t, models.ChunkTypeSafetyWarnings, warnings.Metadata.ChunkType)
	assert.Contains(t, warnings.Text, "Kann Augenreizung verursachen.")

	physical := chunkByID(t, chunks, "doc_5_page_1_specs_physical")
	assert.Equal(t, models.ChunkTypeSpecsPhysical, physical.Metadata.ChunkType)
	assert.Contains(t, physical.Text, "110 mPas")

	// Empty chemical sub-record emits no chunk.
	for _, c := range chunks {
		assert.NotEqual(t, "doc_5_page_1_specs_chemical", c.ChunkID)
	}

	perf := chunkByID(t, chunks, "doc_5_page_1_specs_performance")
	assert.Contains(t, perf.Text, "Zugfestigkeit")

	symbols := chunkByID(t, chunks, "doc_5_page_1_safety_symbols")
	assert.Contains(t, symbols.Text, "GHS07")
	assert.Contains(t, symbols.Text, "H315")
	assert.Contains(t, symbols.Text, "P280")

	variant := chunkByID(t, chunks, "doc_5_page_1_variant_401_20g")
	assert.Equal(t, models.ChunkTypeProductVariant, variant.Metadata.ChunkType)

	processing := chunkByID(t, chunks, "doc_5_page_1_processing_step_1")
	assert.Equal(t, models.ChunkTypeProcessingInstr, processing.Metadata.ChunkType)
	assert.Contains(t, processing.Text, "Oberflächen entfetten")

	storage := chunkByID(t, chunks, "doc_5_page_1_storage")
	assert.Contains(t, storage.Text, "Kühl und trocken lagern")
}

func TestChunkGenericTextAndTables(t *testing.T) {
	e := newTestEngine()
	visionJSON := `{
		"text": "Allgemeine Hinweise zur Dokumentenlenkung.",
		"tables": [{
			"title": "Fristen",
			"headers": ["Dokument", "Frist"],
			"rows": [["SOP", "3 Jahre"], ["Datenblatt", "5 Jahre"]]
		}]
	}`

	chunks := e.ChunkPages(2, "Generic", "", []Page{{Number: 1, VisionJSON: json.RawMessage(visionJSON)}})
	require.Len(t, chunks, 2)

	text := chunkByID(t, chunks, "doc_2_page_1_text")
	assert.Equal(t, models.ChunkTypeText, text.Metadata.ChunkType)

	table := chunkByID(t, chunks, "doc_2_page_1_table")
	assert.Equal(t, models.ChunkTypeTable, table.Metadata.ChunkType)
	assert.Contains(t, table.Text, "Dokument: SOP | Frist: 3 Jahre")
}

func TestGenericSplitsLongText(t *testing.T) {
	cfg := models.DefaultRAGConfig()
	cfg.ChunkSize = 200
	cfg.ChunkOverlap = 40
	e := NewEngine(cfg, zap.NewNop())

	long := strings.Repeat("Die Prüfung erfolgt nach Plan. ", 40)
	raw, err := json.Marshal(map[string]string{"text": long})
	require.NoError(t, err)

	chunks := e.ChunkPages(4, "Generic", "", []Page{{Number: 1, VisionJSON: raw}})
	require.Greater(t, len(chunks), 1)

	// Identifiers stay unique and pieces after the first carry overlap.
	seen := map[string]bool{}
	for i, c := range chunks {
		assert.False(t, seen[c.ChunkID], "duplicate chunk id %s", c.ChunkID)
		seen[c.ChunkID] = true
		assert.LessOrEqual(t, len(c.Text), 250)
		if i > 0 {
			assert.True(t, c.Metadata.HasOverlap)
		}
	}
}

func TestStrategyFailureDegradesToGeneric(t *testing.T) {
	e := newTestEngine()
	// Prompt promises SOP but the page has no process_steps.
	visionJSON := `{"text": "Seite ohne Strukturdaten."}`

	chunks := e.ChunkPages(6, "SOP", `"process_steps"`, []Page{{Number: 3, VisionJSON: json.RawMessage(visionJSON)}})
	require.Len(t, chunks, 1)
	assert.Equal(t, models.ChunkTypeText, chunks[0].Metadata.ChunkType)
	assert.Equal(t, "doc_6_page_3_text", chunks[0].ChunkID)
}

func TestLegacyPagesWrapper(t *testing.T) {
	e := newTestEngine()
	visionJSON := `{"pages": [
		{"page_number": 1, "content": {"process_steps": [{"step_number": 1, "label": "Start", "description": "Beginn"}]}},
		{"page_number": 2, "content": {"process_steps": [{"step_number": 2, "label": "Ende", "description": "Abschluss"}]}}
	]}`

	chunks := e.ChunkPages(8, "SOP", `"process_steps"`, []Page{{Number: 1, VisionJSON: json.RawMessage(visionJSON)}})

	first := chunkByID(t, chunks, "doc_8_page_1_step_1")
	assert.Equal(t, []int{1}, first.Metadata.PageNumbers)
	second := chunkByID(t, chunks, "doc_8_page_2_step_2")
	assert.Equal(t, []int{2}, second.Metadata.PageNumbers)
}

func TestTokenEstimate(t *testing.T) {
	e := newTestEngine()
	visionJSON := `{"text": "abcdefgh"}`
	chunks := e.ChunkPages(1, "Generic", "", []Page{{Number: 1, VisionJSON: json.RawMessage(visionJSON)}})
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].Metadata.TokenCount)
}

func TestMalformedPageSkipped(t *testing.T) {
	e := newTestEngine()
	pages := []Page{
		{Number: 1, VisionJSON: json.RawMessage(`not json`)},
		{Number: 2, VisionJSON: json.RawMessage(`{"text": "Gültige Seite."}`)},
	}
	chunks := e.ChunkPages(1, "Generic", "", pages)
	require.Len(t, chunks, 1)
	assert.Equal(t, []int{2}, chunks[0].Metadata.PageNumbers)
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "401_20g", sanitizeID("401-20g"))
	assert.Equal(t, "abc_def", sanitizeID("Abc Def!"))
	assert.Equal(t, "x", sanitizeID("???"))
}
