package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

// statusError is a non-2xx answer of the server.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server responded with status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether sending the same request again can succeed.
func (e *statusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
}

type checkRequest struct {
	MD5 string `json:"md5"`
	Ext string `json:"ext"`
}

type apiClient struct {
	httpClient *retryablehttp.Client
	baseURL    string
	logger     log.Logger
}

func newAPIClient(client *retryablehttp.Client, baseURL string, logger log.Logger) apiClient {
	return apiClient{
		httpClient: client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

func (c apiClient) url(p string) string {
	return c.baseURL + "/" + strings.TrimPrefix(p, "/")
}

func (c apiClient) postIdentity(ctx context.Context, endpoint string, id identity.Identity) (*http.Response, error) {
	body, err := json.Marshal(checkRequest{MD5: id.ContentHash, Ext: id.Extension})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func (c apiClient) check(ctx context.Context, id identity.Identity) (CheckResult, error) {
	resp, err := c.postIdentity(ctx, "checkFile", id)
	if err != nil {
		return CheckResult{}, err
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return CheckResult{}, unwrapError(resp)
	}

	var result CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CheckResult{}, fmt.Errorf("decode check response: %w", err)
	}
	return result, nil
}

// abandon drops the chunks and the recorded chunk count the server holds for id.
func (c apiClient) abandon(ctx context.Context, id identity.Identity) error {
	resp, err := c.postIdentity(ctx, "abandon", id)
	if err != nil {
		return err
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return unwrapError(resp)
	}
	return nil
}

// sendChunk posts one chunk and returns the artifact location if the chunk completed the upload.
// It is a single attempt; retries are driven by the uploader.
func (c apiClient) sendChunk(ctx context.Context, httpClient *http.Client, id identity.Identity, index, total int, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := []struct{ key, value string }{
		{"md5", id.ContentHash},
		{"ext", id.Extension},
		{"index", strconv.Itoa(index)},
		{"total", strconv.Itoa(total)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return "", err
		}
	}
	part, err := w.CreateFormFile("file", strconv.Itoa(index))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("chunkUpload"), &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", unwrapError(resp)
	}

	artifact, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return strings.TrimSpace(string(artifact)), nil
}

func (c apiClient) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Printf(err.Error())
	}
}

func unwrapError(resp *http.Response) error {
	errorBody := make([]byte, 1024)
	n, _ := io.ReadAtLeast(resp.Body, errorBody, 1)
	return &statusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errorBody[:n]))}
}
