package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/masad-stock/skillbridge-sub000/internal/pkg/httpx"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
)

// RemoteModule mirrors the course content endpoint's module shape: rich HTML
// content plus optional video fields and a thumbnail.
type RemoteModule struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Description          string `json:"description,omitempty"`
	Content              string `json:"content,omitempty"`
	Thumbnail            string `json:"thumbnail,omitempty"`
	VideoURL             string `json:"video_url,omitempty"`
	VideoTranscript      string `json:"video_transcript,omitempty"`
	VideoDurationSeconds int    `json:"video_duration_seconds,omitempty"`
	VideoThumbnail       string `json:"video_thumbnail,omitempty"`
}

type RemoteCourse struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Modules  []RemoteModule `json:"modules"`
}

// ContentClient fetches course metadata and raw image bytes for the download
// manager.
type ContentClient interface {
	FetchCourse(ctx context.Context, courseID string) (*RemoteCourse, error)
	FetchImage(ctx context.Context, imageURL string) (data []byte, contentType string, err error)
}

type contentClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logger.Logger
}

func NewContentClient(baseURL, token string, timeout time.Duration, log *logger.Logger) ContentClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &contentClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("client", "ContentClient"),
	}
}

func (c *contentClient) FetchCourse(ctx context.Context, courseID string) (*RemoteCourse, error) {
	body, _, err := c.get(ctx, fmt.Sprintf("%s/api/learning/courses/%s", c.baseURL, courseID))
	if err != nil {
		return nil, fmt.Errorf("fetch course %s: %w", courseID, err)
	}

	var course RemoteCourse
	if err := json.Unmarshal(body, &course); err != nil {
		return nil, fmt.Errorf("decode course %s: %w", courseID, err)
	}
	if course.ID == "" {
		course.ID = courseID
	}
	return &course, nil
}

func (c *contentClient) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	url := imageURL
	if strings.HasPrefix(url, "/") {
		url = c.baseURL + url
	}
	body, contentType, err := c.get(ctx, url)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image %s: %w", imageURL, err)
	}
	return body, contentType, nil
}

func (c *contentClient) get(ctx context.Context, url string) ([]byte, string, error) {
	do := func() ([]byte, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, "", &httpx.StatusError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(snippet),
			}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", err
		}
		return body, resp.Header.Get("Content-Type"), nil
	}

	body, contentType, err := do()
	if err != nil && httpx.IsRetryableError(err) && ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(httpx.JitterSleep(500 * time.Millisecond)):
		}
		body, contentType, err = do()
	}
	return body, contentType, err
}
