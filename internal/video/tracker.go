package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/open-sun/software/internal/apperr"
)

// TrackerClient calls the object tracking service, which runs the
// detector and tracker over a clip and returns the annotated video.
type TrackerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTrackerClient(baseURL string) *TrackerClient {
	return &TrackerClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: &http.Client{}}
}

// checkResp returns an Upstream error carrying the body when the
// status is not 2xx.
func checkResp(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return apperr.New(apperr.Upstream,
		fmt.Sprintf("tracker-service %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body))))
}

// Track calls POST /api/track and returns the annotated mp4 bytes.
func (c *TrackerClient) Track(ctx context.Context, filename string, data []byte) ([]byte, error) {
	const path = "/api/track"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Wrap(apperr.Upstream, "tracker-service unavailable", err)
	}
	defer resp.Body.Close()

	if err := checkResp(resp, path); err != nil {
		return nil, err
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "tracker-service "+path+": read body", err)
	}
	return out, nil
}
