// Package report renders invoice documents to PDF through a Gotenberg service.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrRenderer marks failures of the remote PDF renderer.
var ErrRenderer = errors.New("pdf renderer failed")

// Page describes paper size and margins in inches.
type Page struct {
	Width, Height float64
	Margin        float64
	Landscape     bool
}

// A4 is the page used for invoices.
var A4 = Page{Width: 8.27, Height: 11.7, Margin: 0.4}

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	page       Page
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPage sets the page layout for every render.
func WithPage(p Page) Option {
	return func(c *Client) { c.page = p }
}

// NewClient constructs a new client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		page:       A4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRenderer, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health returned status %d", ErrRenderer, resp.StatusCode)
	}
	return nil
}

// RenderHTML converts a self-contained HTML document into a PDF.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, strings.NewReader(html)); err != nil {
		return nil, err
	}
	for name, value := range c.pageFields() {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderer, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: convert returned status %d", ErrRenderer, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) pageFields() map[string]string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	fields := map[string]string{
		"printBackground": "true",
		"landscape":       strconv.FormatBool(c.page.Landscape),
	}
	if c.page.Width > 0 && c.page.Height > 0 {
		fields["paperWidth"] = format(c.page.Width)
		fields["paperHeight"] = format(c.page.Height)
	}
	if c.page.Margin > 0 {
		m := format(c.page.Margin)
		fields["marginTop"], fields["marginBottom"] = m, m
		fields["marginLeft"], fields["marginRight"] = m, m
	}
	return fields
}
