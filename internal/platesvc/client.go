// Package platesvc is the HTTP client for the plate backend: the upload endpoint that turns
// a source file into plate descriptors and the generate endpoint that assembles a swap file.
package platesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Descriptor is one plate as reported by the upload endpoint.
type Descriptor struct {
	ID         string  `json:"id"`
	Filename   string  `json:"filename"`
	PlateIndex int     `json:"plate_index"`
	PrintTime  int     `json:"print_time"`
	Weight     float64 `json:"weight"`
	ImageURL   string  `json:"image_url"`
}

// UploadResponse is the body returned by POST /api/upload.
type UploadResponse struct {
	Plates []Descriptor `json:"plates"`
	TempID string       `json:"temp_id,omitempty"`
}

// GenerateItem is one queue entry sent to the generate endpoint. Only ID and Count are
// required by the backend; the remaining fields are forwarded as-is.
type GenerateItem struct {
	ID         string  `json:"id"`
	Count      int     `json:"count"`
	Filename   string  `json:"filename,omitempty"`
	PlateIndex int     `json:"plate_index,omitempty"`
	PrintTime  int     `json:"print_time"`
	Weight     float64 `json:"weight"`
	ImageURL   string  `json:"image_url,omitempty"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Playlist []GenerateItem `json:"playlist"`
}

// GenerateResponse is the body returned by POST /api/generate.
type GenerateResponse struct {
	DownloadURL string `json:"download_url"`
}

type Client struct {
	baseURL  string
	upload   *http.Client
	generate *http.Client
}

// Options configures request timeouts. Zero values fall back to the defaults.
type Options struct {
	UploadTimeout   time.Duration
	GenerateTimeout time.Duration
}

const (
	defaultUploadTimeout   = 60 * time.Second
	defaultGenerateTimeout = 120 * time.Second
)

func NewClient(baseURL string, opts Options) *Client {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = defaultUploadTimeout
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = defaultGenerateTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		upload:   &http.Client{Timeout: opts.UploadTimeout},
		generate: &http.Client{Timeout: opts.GenerateTimeout},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Upload sends one file as multipart field "file" and returns the plates found in it.
// A response without plates yields an empty slice and no error.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) ([]Descriptor, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("upload %s: build form: %w", filename, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("upload %s: read file: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload %s: build form: %w", filename, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(c.upload, req, "upload", &out); err != nil {
		return nil, err
	}
	if out.Plates == nil {
		return []Descriptor{}, nil
	}
	return out.Plates, nil
}

// Generate submits the ordered playlist and returns the download reference exactly as the
// backend reported it. Use ResolveURL to turn a relative reference into an absolute one.
func (c *Client) Generate(ctx context.Context, items []GenerateItem) (string, error) {
	b, err := json.Marshal(GenerateRequest{Playlist: items})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out GenerateResponse
	if err := c.do(c.generate, req, "generate", &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.DownloadURL) == "" {
		return "", ErrNoDownloadURL
	}
	return out.DownloadURL, nil
}

// ResolveURL makes a backend reference such as "/static/x.3mf" absolute. Absolute
// references are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func (c *Client) do(hc *http.Client, req *http.Request, op string, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: "invalid response body: " + err.Error()}
	}
	return nil
}

// readDetail extracts the error message of a failed backend response. The backend uses
// {"detail": ...}; the session API uses {"error": ...}.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
