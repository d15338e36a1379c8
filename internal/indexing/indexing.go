// Package indexing orchestrates the document ingestion pipeline: pages to
// chunks to embeddings to vector points to metadata rows.
package indexing

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrDocumentNotFound is returned when the upload record or the
	// indexed-document row does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNotApproved is returned when the upload document is not in the
	// approved workflow state.
	ErrNotApproved = errors.New("document is not approved")

	// ErrPermissionDenied is returned when the acting user may not index.
	ErrPermissionDenied = errors.New("permission denied")
)

// StatusApproved is the upload workflow state required for indexing.
const StatusApproved = "approved"

// UploadDocument is the slice of the external upload record the pipeline
// needs.
type UploadDocument struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	DocumentType string `json:"document_type"`
	Status       string `json:"status"`
}

// UploadPage is one stored page with its vision processor output.
type UploadPage struct {
	PageNumber       int             `json:"page_number"`
	PreviewImagePath string          `json:"preview_image_path"`
	VisionJSON       json.RawMessage `json:"vision_json"`
}

// UploadSource reads upload records and pages from the external upload
// context.
type UploadSource interface {
	GetDocument(ctx context.Context, uploadDocumentID int) (*UploadDocument, error)
	GetPages(ctx context.Context, uploadDocumentID int) ([]UploadPage, error)
}

// PromptTemplateSource returns the active prompt template text for a
// document type, or empty when none is configured.
type PromptTemplateSource interface {
	ActiveTemplate(ctx context.Context, documentType string) (string, error)
}

// PermissionService gates indexing and asking. A nil service means no
// permission enforcement.
type PermissionService interface {
	CanIndex(ctx context.Context, userID string) (bool, error)
	CanAsk(ctx context.Context, userID string) (bool, error)
}

// Result summarizes one pipeline run.
type Result struct {
	IndexedDocumentID string `json:"indexed_document_id"`
	UploadDocumentID  int    `json:"upload_document_id"`
	DocumentType      string `json:"document_type"`
	ChunkCount        int    `json:"chunk_count"`
	Skipped           bool   `json:"skipped"`
}
