package remote

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

	"draftcrane-agent/internal/domain"
)

// VersionHeader carries the caller's last-observed version as an optimistic
// concurrency precondition on saves.
const VersionHeader = "X-Chapter-Version"

// ChapterClient is the boundary to the content service. Load seeds an
// editing session with the authoritative content and version; Save attempts
// to apply new content on top of baseVersion and returns the new version.
type ChapterClient interface {
	Load(ctx context.Context, chapterID string) (domain.ChapterContent, error)
	Save(ctx context.Context, chapterID, content string, baseVersion int64) (int64, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient builds a client for the content service. The timeout bounds
// every request; exceeding it classifies as a transient failure, not a hang.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Load fetches the chapter's current content and version. A 404 means the
// chapter has no content yet and is returned as an empty document at version
// zero, not an error.
func (c *HTTPClient) Load(ctx context.Context, chapterID string) (domain.ChapterContent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.chapterURL(chapterID), nil)
	if err != nil {
		return domain.ChapterContent{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ChapterContent{}, err
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return domain.ChapterContent{}, readErr
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.ChapterContent{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ChapterContent{}, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(payload),
		}
	}

	var out domain.ChapterContent
	if err := json.Unmarshal(payload, &out); err != nil {
		return domain.ChapterContent{}, fmt.Errorf("failed to decode chapter content: %w", err)
	}
	return out, nil
}

// Save submits content with baseVersion as precondition and classifies the
// outcome: 2xx applied (new version returned), 409 conflict, 400/422
// validation rejection, anything else transient for the caller to retry.
func (c *HTTPClient) Save(ctx context.Context, chapterID, content string, baseVersion int64) (int64, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return 0, err
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.chapterURL(chapterID), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(VersionHeader, strconv.FormatInt(baseVersion, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return 0, readErr
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		var out struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return 0, fmt.Errorf("failed to decode save response: %w", err)
		}
		return out.Version, nil

	case resp.StatusCode == http.StatusConflict:
		var out struct {
			Version int64 `json:"version"`
		}
		_ = json.Unmarshal(payload, &out)
		return 0, &ConflictError{
			ChapterID:     chapterID,
			BaseVersion:   baseVersion,
			ServerVersion: out.Version,
		}

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return 0, &ValidationError{
			ChapterID: chapterID,
			Message:   errorMessage(payload),
		}

	default:
		return 0, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(payload),
		}
	}
}

func (c *HTTPClient) chapterURL(chapterID string) string {
	return fmt.Sprintf("%s/chapters/%s/content", c.baseURL, url.PathEscape(chapterID))
}

func (c *HTTPClient) newRequest(ctx context.Context, method, requestURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func errorMessage(payload []byte) string {
	var out struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &out)
	if out.Error != "" {
		return out.Error
	}
	if out.Message != "" {
		return out.Message
	}
	return string(bytes.TrimSpace(payload))
}
