// Package api talks to the flight log server over HTTP.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/udl/extension/pkg/core"
)

const (
	healthPath = "/healthcheck"
	uploadPath = "/api/v1/flights/add"
)

// StatusError is a non-200 answer from the server.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.Status, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New returns a client for the server at baseURL. apiKey is sent as the
// upload form's secret field.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck succeeds when the server answers 200.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	return c.do(req, "healthcheck")
}

// Upload posts the exported flight log at path as multipart form data.
func (c *Client) Upload(ctx context.Context, path string, meta core.UploadMetadata) error {
	body, contentType, err := c.uploadForm(path, meta)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, "upload")
}

func (c *Client) uploadForm(path string, meta core.UploadMetadata) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open flight log: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	name := filepath.Base(path)
	for _, field := range []struct{ key, value string }{
		{"secret", c.apiKey},
		{"filename", name},
		{"sessionId", meta.SessionID},
		{"duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
		{"tag", meta.Tag},
	} {
		if err := w.WriteField(field.key, field.value); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read flight log: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) do(req *http.Request, op string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
}
