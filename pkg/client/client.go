package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"swisstransfer/pkg/access"
	"swisstransfer/pkg/chunk"
	"swisstransfer/pkg/config"
	"swisstransfer/pkg/events"
	"swisstransfer/pkg/log"
	"swisstransfer/pkg/models"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// Error bodies are only kept for messages.
	maxErrorBodySize = 4 * 1024
	maxJSONBodySize  = 16 * 1024 * 1024
)

// Options configures a Client.
type Options struct {
	Host           string
	UploadScheme   string
	UserAgent      string
	RequestTimeout time.Duration
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
}

// OptionsFromConfig maps the application configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Host:           cfg.Host,
		UploadScheme:   cfg.UploadScheme,
		UserAgent:      cfg.UserAgent,
		RequestTimeout: cfg.RequestTimeout,
		RetryMax:       cfg.RetryMax,
		RetryWaitMin:   cfg.RetryWaitMin,
		RetryWaitMax:   cfg.RetryWaitMax,
	}
}

// ChunkTarget identifies where a chunk is sent.
type ChunkTarget struct {
	UploadHost    string
	ContainerUUID string
	FileUUID      string
}

// Client talks to the file-sharing service API.
// Every request-level failure (network error or non-2xx status) is also
// published on Errors.
type Client struct {
	host           string
	uploadScheme   string
	userAgent      string
	requestTimeout time.Duration
	http           *retryablehttp.Client

	Errors events.Topic[error]
}

// New creates a client.
func New(opts Options) *Client {
	if opts.Host == "" {
		opts.Host = config.DefaultHost
	}
	if opts.UploadScheme == "" {
		opts.UploadScheme = config.DefaultUploadScheme
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}

	return &Client{
		host:           strings.TrimRight(opts.Host, "/"),
		uploadScheme:   opts.UploadScheme,
		userAgent:      opts.UserAgent,
		requestTimeout: opts.RequestTimeout,
		http:           NewRetryableClient(opts.RetryMax, opts.RetryWaitMin, opts.RetryWaitMax),
	}
}

// Host returns the registration host.
func (c *Client) Host() string {
	return c.host
}

// UploadURL returns the base URL for chunk requests on uploadHost.
// The service returns a bare host name; a full URL is used as is.
func (c *Client) UploadURL(uploadHost string) string {
	uploadHost = strings.TrimRight(uploadHost, "/")
	if strings.Contains(uploadHost, "://") {
		return uploadHost
	}
	return c.uploadScheme + "://" + uploadHost
}

// VerifyPassword calls api/isPasswordValid.
func (c *Client) VerifyPassword(ctx context.Context, linkUUID, password string) (access.Result, error) {
	body, err := c.postJSON(ctx, "/api/isPasswordValid", models.PasswordCheckRequest{
		LinkUUID: linkUUID,
		Password: password,
	})
	if err != nil {
		return access.Result{}, err
	}
	return access.Decode(body)
}

// DownloadToken calls api/generateDownloadToken for one file.
func (c *Client) DownloadToken(ctx context.Context, containerUUID, fileUUID, password string) (string, error) {
	body, err := c.postJSON(ctx, "/api/generateDownloadToken", models.TokenRequest{
		ContainerUUID: containerUUID,
		FileUUID:      fileUUID,
		Password:      password,
	})
	if err != nil {
		return "", err
	}

	var token string
	if err := json.Unmarshal(body, &token); err != nil || token == "" {
		return "", fmt.Errorf("%w: download token: %.64q", ErrUnexpectedResponse, body)
	}
	return token, nil
}

// Download opens the content stream of one file. The caller closes the body.
func (c *Client) Download(ctx context.Context, linkUUID, fileUUID, token string) (*http.Response, error) {
	target := c.host + "/api/download/" + url.PathEscape(linkUUID) + "/" + url.PathEscape(fileUUID)
	if token != "" {
		target += "?" + url.Values{"token": {token}}.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

// CreateContainer registers an upload batch.
func (c *Client) CreateContainer(ctx context.Context, request models.ContainerRequest) (*models.ContainerResponse, error) {
	body, err := c.postJSON(ctx, "/api/containers", request)
	if err != nil {
		return nil, err
	}

	var resp models.ContainerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: container: %w", ErrUnexpectedResponse, err)
	}
	if resp.Container.UUID == "" || resp.UploadHost == "" {
		return nil, fmt.Errorf("%w: container response without UUID or upload host", ErrUnexpectedResponse)
	}
	if len(resp.FilesUUID) != request.NumberOfFile {
		return nil, fmt.Errorf("%w: got %d file ids for %d files", ErrUnexpectedResponse, len(resp.FilesUUID), request.NumberOfFile)
	}
	return &resp, nil
}

// UploadChunk sends one byte range. open is called once per attempt and must
// return a reader over exactly c.Len() bytes.
func (c *Client) UploadChunk(ctx context.Context, target ChunkTarget, ch chunk.Chunk, open func() io.Reader) error {
	endpoint := c.UploadURL(target.UploadHost) + "/api/uploadChunk/" +
		url.PathEscape(target.ContainerUUID) + "/" +
		url.PathEscape(target.FileUUID) + "/" +
		strconv.Itoa(ch.Index) + "/" +
		ch.LastFlag()

	var body interface{}
	if ch.Len() > 0 {
		body = retryablehttp.ReaderFunc(func() (io.Reader, error) {
			return open(), nil
		})
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	// net/http derives the Content-Length header from this field.
	req.ContentLength = ch.Len()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	c.discard(resp)
	return nil
}

// Complete calls api/uploadComplete and returns the share links.
func (c *Client) Complete(ctx context.Context, containerUUID, lang string) ([]models.Link, error) {
	body, err := c.postJSON(ctx, "/api/uploadComplete", models.CompleteRequest{
		UUID: containerUUID,
		Lang: lang,
	})
	if err != nil {
		return nil, err
	}

	var links []models.Link
	if err := json.Unmarshal(body, &links); err != nil {
		return nil, fmt.Errorf("%w: upload complete: %w", ErrUnexpectedResponse, err)
	}
	return links, nil
}

// postJSON sends payload as JSON to the registration host and returns the raw body.
func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.host+path, raw)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBodySize))
	if err != nil {
		return nil, c.fail(fmt.Errorf("read response: %w", err))
	}
	return body, nil
}

// do sends req and turns transport errors and non-2xx statuses into errors.
// On success the caller owns the response body.
func (c *Client) do(req *retryablehttp.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)

	log.Debug().
		Str("method", req.Method).
		Str("url", redact(req.URL)).
		Int64("content_length", req.ContentLength).
		Msg("Sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("request failed: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.closeBody(resp)
		return nil, c.fail(&APIError{
			Method:     req.Method,
			URL:        redact(req.URL),
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
		})
	}

	return resp, nil
}

func (c *Client) fail(err error) error {
	log.Warn().Err(err).Msg("Request error")
	c.Errors.Publish(err)
	return err
}

func (c *Client) discard(resp *http.Response) {
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize)); err != nil {
		log.Debug().Err(err).Msg("Failed to drain response body")
	}
	c.closeBody(resp)
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close response body")
	}
}

// redact drops the query so download tokens do not end up in errors.
func redact(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	return clean.Redacted()
}
