package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ChunkType classifies the structural role a chunk played in its source
// document. Retrieval filters on these tags, so the set is closed.
type ChunkType string

const (
	ChunkTypeMetadata             ChunkType = "metadata"
	ChunkTypeProcessStep          ChunkType = "process_step"
	ChunkTypeWorkStep             ChunkType = "work_step"
	ChunkTypeFlowchartNode        ChunkType = "flowchart_node"
	ChunkTypeFlowchartDecision    ChunkType = "flowchart_decision"
	ChunkTypeFlowchartConnections ChunkType = "flowchart_connections"
	ChunkTypeCriticalRule         ChunkType = "critical_rule"
	ChunkTypeCompliance           ChunkType = "compliance"
	ChunkTypeReferences           ChunkType = "references"
	ChunkTypeDefinitions          ChunkType = "definitions"
	ChunkTypeSpecsPhysical        ChunkType = "technical_specs_physical"
	ChunkTypeSpecsChemical        ChunkType = "technical_specs_chemical"
	ChunkTypeSpecsPerformance     ChunkType = "technical_specs_performance"
	ChunkTypeSpecsEnvironmental   ChunkType = "technical_specs_environmental"
	ChunkTypeApplicationAreas     ChunkType = "application_areas"
	ChunkTypeMaterialCompat       ChunkType = "material_compatibility"
	ChunkTypeProcessingInstr      ChunkType = "processing_instruction"
	ChunkTypeCuringInfo           ChunkType = "curing_information"
	ChunkTypeSafetySymbols        ChunkType = "safety_symbols"
	ChunkTypeSafetyWarnings       ChunkType = "safety_warnings"
	ChunkTypeFirstAid             ChunkType = "first_aid"
	ChunkTypeStorage              ChunkType = "storage_requirements"
	ChunkTypeDisposal             ChunkType = "disposal"
	ChunkTypeProductVariant       ChunkType = "product_variant"
	ChunkTypeAdditionalInfo       ChunkType = "additional_information"
	ChunkTypeDatasheetMetadata    ChunkType = "datasheet_metadata"
	ChunkTypeText                 ChunkType = "text"
	ChunkTypeTable                ChunkType = "table"
)

// IndexedDocument records a source document whose chunks are fully present
// in the vector store. TotalChunks must equal the number of chunk rows and
// the number of vector points carrying the upload document id.
type IndexedDocument struct {
	ID               string    `json:"id"`
	UploadDocumentID int       `json:"upload_document_id"`
	DocumentType     string    `json:"document_type"`
	CollectionName   string    `json:"collection_name"`
	TotalChunks      int       `json:"total_chunks"`
	EmbeddingModel   string    `json:"embedding_model"`
	IndexedAt        time.Time `json:"indexed_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ChunkMetadata carries the structural context a chunk was cut from.
type ChunkMetadata struct {
	PageNumbers      []int     `json:"page_numbers"`
	HeadingHierarchy []string  `json:"heading_hierarchy"`
	ChunkType        ChunkType `json:"chunk_type"`
	TokenCount       int       `json:"token_count"`
	SentenceCount    int       `json:"sentence_count,omitempty"`
	HasOverlap       bool      `json:"has_overlap,omitempty"`
	OverlapSentences int       `json:"overlap_sentences,omitempty"`
}

// DocumentChunk is a single retrieval unit. Chunks are created in batch
// during indexing and never updated in place; re-index deletes and recreates.
type DocumentChunk struct {
	ID                string        `json:"id"`
	IndexedDocumentID string        `json:"indexed_document_id"`
	ChunkID           string        `json:"chunk_id"`
	Text              string        `json:"text"`
	Metadata          ChunkMetadata `json:"metadata"`
	PointID           string        `json:"qdrant_point_id"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Validate checks the chunk invariants: non-empty text, at least one page
// number, and a UUID-shaped point id.
func (c *DocumentChunk) Validate() error {
	if c.Text == "" {
		return fmt.Errorf("chunk %s: empty text", c.ChunkID)
	}
	if len(c.Metadata.PageNumbers) == 0 {
		return fmt.Errorf("chunk %s: no page numbers", c.ChunkID)
	}
	if _, err := uuid.Parse(c.PointID); err != nil {
		return fmt.Errorf("chunk %s: point id %q is not a UUID: %w", c.ChunkID, c.PointID, err)
	}
	return nil
}

// PointIDForChunk projects a human-readable chunk identifier onto the vector
// store point id space. The mapping is deterministic (UUID5 in the DNS
// namespace) so chunk rows and vector points stay reconstructable from each
// other.
func PointIDForChunk(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(chunkID)).String()
}

// EmbeddingVector is a dense vector produced by one embedding model.
type EmbeddingVector struct {
	Values     []float32 `json:"values"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

// Validate enforces that the vector length matches the declared
// dimensionality and that all values are finite.
func (v *EmbeddingVector) Validate() error {
	if len(v.Values) != v.Dimensions {
		return fmt.Errorf("embedding has %d values, declared %d dimensions", len(v.Values), v.Dimensions)
	}
	for i, f := range v.Values {
		f64 := float64(f)
		if math.IsNaN(f64) || math.IsInf(f64, 0) {
			return fmt.Errorf("embedding value %d is not finite", i)
		}
	}
	return nil
}
