package vision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// UploadVideo sends a recorded video for later analysis as the multipart
// field "video".
func (c *Client) UploadVideo(ctx context.Context, filename string, video io.Reader) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("video", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, video); err != nil {
		return "", fmt.Errorf("failed to read video: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to finish form: %w", err)
	}

	var env envelope
	err = c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/upload_video",
		body:        &buf,
		contentType: form.FormDataContentType(),
		auth:        true,
	}, &env)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// StartLiveStream turns on the backend's camera stream.
func (c *Client) StartLiveStream(ctx context.Context) (string, error) {
	return c.postMessage(ctx, "/start_live_stream")
}

// StopLiveStream turns off the backend's camera stream.
func (c *Client) StopLiveStream(ctx context.Context) (string, error) {
	return c.postMessage(ctx, "/stop_live_stream")
}

// LiveFeedURL is the MJPEG stream address for display surfaces.
func (c *Client) LiveFeedURL() string {
	return c.baseURL + "/live_feed_mjpeg"
}
