package chunking

import (
	"fmt"
	"strings"

	"qms-rag/internal/models"
)

var specSections = []struct {
	key       string
	label     string
	role      string
	chunkType models.ChunkType
}{
	{"physical", "Physikalische Eigenschaften", "specs_physical", models.ChunkTypeSpecsPhysical},
	{"chemical", "Chemische Eigenschaften", "specs_chemical", models.ChunkTypeSpecsChemical},
	{"performance", "Leistungsdaten", "specs_performance", models.ChunkTypeSpecsPerformance},
	{"environmental", "Umweltbeständigkeit", "specs_environmental", models.ChunkTypeSpecsEnvironmental},
}

// chunkDatasheet splits a product datasheet so that each hazard topic and
// each specification family is retrievable on its own.
func chunkDatasheet(b *chunkBuilder, content map[string]interface{}) error {
	specs := getMap(content, "technical_specifications")
	if specs == nil {
		return fmt.Errorf("missing technical_specifications")
	}

	product := ""
	if meta := getMap(content, "document_metadata"); meta != nil {
		product = getString(meta, "product_name")
		if product == "" {
			product = getString(meta, "title")
		}
		b.emit("meta", models.ChunkTypeDatasheetMetadata, formatMapLines(meta), nil)
	}

	headings := func(sub string) []string {
		h := []string{}
		if product != "" {
			h = append(h, product)
		}
		if sub != "" {
			h = append(h, sub)
		}
		return h
	}

	for _, section := range specSections {
		sub := getMap(specs, section.key)
		if len(sub) == 0 {
			continue
		}
		text := section.label + ":\n" + formatMapLines(sub)
		b.emit(section.role, section.chunkType, text, headings(section.label))
	}

	if app := getMap(content, "application_info"); app != nil {
		if areas := stringItems(getList(app, "application_areas")); len(areas) > 0 {
			b.emit("application_areas", models.ChunkTypeApplicationAreas,
				strings.Join(appendSection(nil, "Anwendungsbereiche", areas), "\n"),
				headings("Anwendung"))
		}
		if compat := app["material_compatibility"]; compat != nil {
			if text := formatValue(compat); text != "" {
				b.emit("material_compatibility", models.ChunkTypeMaterialCompat,
					"Materialverträglichkeit: "+text, headings("Anwendung"))
			}
		}
		for i, raw := range getList(app, "processing_instructions") {
			step, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			num, hasNum := getInt(step, "step_number")
			if !hasNum {
				num = i + 1
			}
			text := getString(step, "instruction")
			if text == "" {
				text = formatMapInline(step)
			}
			b.emit(fmt.Sprintf("processing_step_%d", num), models.ChunkTypeProcessingInstr,
				fmt.Sprintf("Verarbeitungsschritt %d: %s", num, text), headings("Verarbeitung"))
		}
		if curing := getMap(app, "curing_information"); len(curing) > 0 {
			b.emit("curing", models.ChunkTypeCuringInfo,
				"Aushärtung:\n"+formatMapLines(curing), headings("Verarbeitung"))
		}
	}

	if safety := getMap(content, "safety_data"); safety != nil {
		var symbols []string
		symbols = appendSection(symbols, "GHS-Symbole", stringItems(getList(safety, "ghs_symbols")))
		symbols = appendSection(symbols, "H-Sätze", stringItems(getList(safety, "hazard_statements")))
		symbols = appendSection(symbols, "P-Sätze", stringItems(getList(safety, "precautionary_statements")))
		if len(symbols) > 0 {
			b.emit("safety_symbols", models.ChunkTypeSafetySymbols, strings.Join(symbols, "\n"), headings("Sicherheit"))
		}

		if warnings := stringItems(getList(safety, "safety_warnings")); len(warnings) > 0 {
			b.emit("safety_warnings", models.ChunkTypeSafetyWarnings,
				strings.Join(appendSection(nil, "Sicherheitswarnungen", warnings), "\n"),
				headings("Sicherheit"))
		}
		if firstAid := safety["first_aid"]; firstAid != nil {
			if text := formatValue(firstAid); text != "" {
				b.emit("first_aid", models.ChunkTypeFirstAid, "Erste Hilfe: "+text, headings("Sicherheit"))
			}
		}
		if storage := safety["storage_requirements"]; storage != nil {
			if text := formatValue(storage); text != "" {
				b.emit("storage", models.ChunkTypeStorage, "Lagerung: "+text, headings("Sicherheit"))
			}
		}
		if disposal := safety["disposal"]; disposal != nil {
			if text := formatValue(disposal); text != "" {
				b.emit("disposal", models.ChunkTypeDisposal, "Entsorgung: "+text, headings("Sicherheit"))
			}
		}
	}

	for i, raw := range getList(content, "product_variants") {
		variant, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id := getString(variant, "variant_id")
		if id == "" {
			id = getString(variant, "name")
		}
		if id == "" {
			id = fmt.Sprintf("%d", i+1)
		}
		b.emit("variant_"+sanitizeID(id), models.ChunkTypeProductVariant,
			"Variante "+id+":\n"+formatMapLines(variant), headings("Varianten"))
	}

	if info := content["additional_information"]; info != nil {
		if text := formatValue(info); text != "" {
			b.emit("additional_info", models.ChunkTypeAdditionalInfo, text, headings("Weitere Informationen"))
		}
	}

	return nil
}
