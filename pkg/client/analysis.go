package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// ImageField is the multipart field the server reads the photo from
const ImageField = "image"

// Analyze uploads an image for analysis. filename is only used as the part name.
func (c *Client) Analyze(ctx context.Context, filename string, image io.Reader) (*Analysis, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(ImageField, filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/analyze", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result Analysis
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeFile opens path and uploads it for analysis
func (c *Client) AnalyzeFile(ctx context.Context, path string) (*Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.Analyze(ctx, path, f)
}

// Quota returns the caller's usage without consuming any of it
func (c *Client) Quota(ctx context.Context) (*Quota, error) {
	var q Quota
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/quota", nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}
