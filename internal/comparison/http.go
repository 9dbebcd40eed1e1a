package comparison

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const uploadPath = "/upload_user"

// HTTPClient implements Client against the service's multipart endpoint
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the service at baseURL.
// A zero timeout leaves the transport default in place.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("comparison service url is required")
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// NewHTTPClientWithClient creates a client with a custom http.Client for testing
func NewHTTPClientWithClient(baseURL string, client *http.Client) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Compare posts the image and its comparison type as one multipart request
func (c *HTTPClient) Compare(ctx context.Context, t Type, img Image) (*Response, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid comparison type %q", t)
	}

	body, contentType, err := encodeUpload(t, img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	// The body of a failed response is never parsed for detail
	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: service rejected %s upload", ErrOutOfOrderUpload, t)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrUploadFailed, err)
	}

	slog.Debug("Comparison response received",
		"comparison_type", t,
		"final", out.Final(),
	)

	return &out, nil
}

func encodeUpload(t Type, img Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := img.Filename
	if filename == "" {
		filename = fmt.Sprintf("%s.jpg", t)
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}

	if err := writer.WriteField("comparison_type", string(t)); err != nil {
		return nil, "", fmt.Errorf("writing comparison type: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
