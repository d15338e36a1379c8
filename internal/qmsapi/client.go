// Package qmsapi is the HTTP client for the upstream QMS backend that owns
// uploads, prompt templates and user permissions.
package qmsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"qms-rag/internal/indexing"
)

// Client talks to the QMS backend REST API. It implements
// indexing.UploadSource, indexing.PromptTemplateSource and
// indexing.PermissionService.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// GetDocument fetches the upload record. A backend 404 maps onto
// indexing.ErrDocumentNotFound.
func (c *Client) GetDocument(ctx context.Context, uploadDocumentID int) (*indexing.UploadDocument, error) {
	var doc indexing.UploadDocument
	err := c.getJSON(ctx, fmt.Sprintf("/api/documents/%d", uploadDocumentID), &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetPages fetches the stored pages with their vision processor output,
// ordered by page number.
func (c *Client) GetPages(ctx context.Context, uploadDocumentID int) ([]indexing.UploadPage, error) {
	var resp struct {
		Pages []indexing.UploadPage `json:"pages"`
	}
	err := c.getJSON(ctx, fmt.Sprintf("/api/documents/%d/pages", uploadDocumentID), &resp)
	if err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// ActiveTemplate returns the active prompt template text for the document
// type. No active template is not an error; the chunker falls back to its
// structural dispatch.
func (c *Client) ActiveTemplate(ctx context.Context, documentType string) (string, error) {
	var resp struct {
		PromptText string `json:"prompt_text"`
	}
	endpoint := "/api/prompts/active?document_type=" + documentType
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		if errors.Is(err, indexing.ErrDocumentNotFound) {
			return "", nil
		}
		return "", err
	}
	return resp.PromptText, nil
}

// CanIndex reports whether the user holds the document-management permission.
func (c *Client) CanIndex(ctx context.Context, userID string) (bool, error) {
	return c.checkPermission(ctx, userID, "documents.manage")
}

// CanAsk reports whether the user may query the assistant.
func (c *Client) CanAsk(ctx context.Context, userID string) (bool, error) {
	return c.checkPermission(ctx, userID, "chat.ask")
}

func (c *Client) checkPermission(ctx context.Context, userID, permission string) (bool, error) {
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	endpoint := fmt.Sprintf("/api/users/%s/permissions/%s", userID, permission)
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		if errors.Is(err, indexing.ErrDocumentNotFound) {
			return false, nil
		}
		return false, err
	}
	return resp.Allowed, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return indexing.ErrDocumentNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %d for %s: %s", resp.StatusCode, endpoint, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp, nil
}
