/**
 * @description
 * This package provides a client for the document storage service that holds
 * uploaded KYC files. It encapsulates authenticated HTTP requests for storing
 * document blobs and resolving stored references back to fetchable URLs, and
 * distinguishes service rejections from transport failures so callers can
 * decide whether a retry is worthwhile.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, mime/multipart, net/http, time: Standard Go libraries.
 */
package storageclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"
)

// Client is a client for the document storage service.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new storage service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StoreResponse is the expected response from the store endpoint.
type StoreResponse struct {
	Data struct {
		Reference   string `json:"reference"`
		ContentType string `json:"contentType"`
		SizeBytes   int64  `json:"sizeBytes"`
	} `json:"data"`
}

// ResolveResponse is the expected response from the resolve endpoint.
type ResolveResponse struct {
	Data struct {
		Reference string `json:"reference"`
		URL       string `json:"url"`
		ExpiresAt string `json:"expiresAt"`
	} `json:"data"`
}

// ErrorResponse represents a rejection returned by the storage service.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("storage service error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown storage service error"
}

// TransientError wraps transport-level failures (dial errors, timeouts, 5xx
// responses without a parsable body). Callers may retry these; an
// ErrorResponse rejection should not be retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("storage service unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// StoreDocument uploads a document blob and returns the opaque storage
// reference. fileName and contentType describe the original upload.
func (c *Client) StoreDocument(ctx context.Context, fileName, contentType string, content io.Reader) (*StoreResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build store request: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read document content: %w", err)
	}
	if err := writer.WriteField("contentType", contentType); err != nil {
		return nil, fmt.Errorf("failed to build store request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build store request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/documents", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create store request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-storage-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "store", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: "store", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError("store", resp.StatusCode, bodyBytes)
	}

	var storeResp StoreResponse
	if err := json.Unmarshal(bodyBytes, &storeResp); err != nil {
		return nil, fmt.Errorf("failed to decode store response: %w", err)
	}

	return &storeResp, nil
}

// ResolveDocument exchanges a stored reference for a short-lived fetch URL.
func (c *Client) ResolveDocument(ctx context.Context, reference string) (*ResolveResponse, error) {
	url := c.BaseURL + "/api/v1/documents/" + reference

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-storage-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "resolve", Err: err}
	}
	defer resp.Body.Close()
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: "resolve", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError("resolve", resp.StatusCode, bodyBytes)
	}

	var resolveResp ResolveResponse
	if err := json.Unmarshal(bodyBytes, &resolveResp); err != nil {
		return nil, fmt.Errorf("failed to decode resolve response: %w", err)
	}

	return &resolveResp, nil
}

func (c *Client) decodeError(op string, statusCode int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Errors) == 0 {
		log.Printf("level=warn component=storage_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, statusCode)
		if statusCode >= 500 {
			return &TransientError{Op: op, Err: fmt.Errorf("status %d", statusCode)}
		}
		return fmt.Errorf("failed to decode error response (status %d)", statusCode)
	}
	log.Printf("level=warn component=storage_client op=%s status=%d title=%q detail=%q", op, statusCode, errResp.Errors[0].Title, errResp.Errors[0].Detail)
	return &errResp
}
