package clientcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sagarc03/xupload"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 5 * time.Minute

// Client uploads to and downloads from an xupload server. It holds the shared
// secret, so it plays the part of the XMPP server when issuing URLs.
type Client struct {
	endpoint   *url.URL
	secret     []byte
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a Client for the server at endpoint.
func New(endpoint string, secret []byte, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if len(secret) == 0 {
		return nil, ErrSecretRequired
	}

	u, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse endpoint: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		endpoint:   u,
		secret:     append([]byte(nil), secret...),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Sign returns the upload URL for remotePath authorizing exactly length bytes.
// A positive quota is appended as the q parameter.
func (c *Client) Sign(remotePath string, length, quota int64) (SignResult, error) {
	remotePath = NormalizeRemotePath(remotePath)
	if remotePath == "" {
		return SignResult{}, fmt.Errorf("sign: %w", ErrEmptyPath)
	}

	u := c.objectURL(remotePath)

	query := url.Values{}
	query.Set("v", xupload.Sign(c.secret, remotePath, length))
	if quota > 0 {
		query.Set("q", strconv.FormatInt(quota, 10))
	}
	u.RawQuery = query.Encode()

	return SignResult{
		Path:   remotePath,
		Length: length,
		Quota:  quota,
		URL:    u.String(),
	}, nil
}

// URL returns the download URL for remotePath.
func (c *Client) URL(remotePath string) string {
	return c.objectURL(NormalizeRemotePath(remotePath)).String()
}

// objectURL appends remotePath verbatim; url.URL.JoinPath would clean dot
// segments and the URL would no longer match the signed path.
func (c *Client) objectURL(remotePath string) *url.URL {
	u := *c.endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + remotePath
	u.RawPath = ""
	u.RawQuery = ""
	return &u
}

// Upload streams a local file to a freshly signed URL.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) (UploadResult, error) {
	if opts.LocalPath == "" {
		return UploadResult{}, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	file, err := os.Open(opts.LocalPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return UploadResult{}, fmt.Errorf("upload %s: not a regular file", opts.LocalPath)
	}

	remotePath := opts.RemotePath
	if remotePath == "" {
		remotePath = RandomCollectionPath(opts.LocalPath)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(opts.LocalPath)
	}

	signed, err := c.Sign(remotePath, info.Size(), opts.Quota)
	if err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signed.URL, file)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = info.Size()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return UploadResult{}, parseServerError(resp.StatusCode, body)
	}

	return UploadResult{
		LocalPath:   opts.LocalPath,
		RemotePath:  signed.Path,
		URL:         c.URL(signed.Path),
		ContentType: contentType,
		Size:        info.Size(),
	}, nil
}

// Download fetches a file from the server.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	remotePath := NormalizeRemotePath(opts.RemotePath)
	if remotePath == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(remotePath), http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		RemotePath:         remotePath,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		Size:               resp.ContentLength,
	}
	if lm, lmErr := http.ParseTime(resp.Header.Get("Last-Modified")); lmErr == nil {
		result.LastModified = lm
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = path.Base(remotePath)
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// RandomCollectionPath places the base name of localPath into a new
// collection named by a random UUID, the way XMPP servers hand out slots.
func RandomCollectionPath(localPath string) string {
	return uuid.NewString() + "/" + filepath.Base(localPath)
}

// NormalizeRemotePath converts a path to the form the server signs:
// forward slashes, no leading slash. Dot segments are kept so that the
// server gets to reject them.
func NormalizeRemotePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimLeft(p, "/")
}

// detectContentType returns MIME type based on file extension.
func detectContentType(p string) string {
	ext := filepath.Ext(p)
	if ext == "" {
		return xupload.DefaultContentType
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return xupload.DefaultContentType
	}

	return mimeType
}

// parseServerError extracts the error code from a JSON error body, falling
// back to the raw body.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode, Body: strings.TrimSpace(string(body))}

	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Error
		apiErr.Message = parsed.Message
	}

	return apiErr
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return "server error: " + strconv.Itoa(e.StatusCode) + " " + e.Code + ": " + e.Message
	}
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is reports whether target matches this error.
// It matches if target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned for missing objects and rejected paths (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrForbidden is returned when the upload signature does not match (403).
	ErrForbidden = &APIError{StatusCode: http.StatusForbidden}

	// ErrConflict is returned when the path is already taken (409).
	ErrConflict = &APIError{StatusCode: http.StatusConflict}
)
