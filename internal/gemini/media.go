package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"collective/internal/logging"

	"google.golang.org/genai"
)

// GenerateImage renders one image and returns it as a data URI.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	timer := logging.StartTimer(logging.CategoryAPI, "image")
	defer timer.Stop()

	resp, err := c.client.Models.GenerateImages(ctx, c.cfg.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
	})
	if err != nil {
		logging.APIError("image failed: %v", err)
		return "", classifyError("image", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return "", fmt.Errorf("image: %w", ErrEmptyResponse)
	}
	return dataURI(resp.GeneratedImages[0].Image), nil
}

// dataURI encodes image bytes. Missing bytes yield an empty string.
func dataURI(img *genai.Image) string {
	if img == nil || len(img.ImageBytes) == 0 {
		return ""
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.ImageBytes)
}

// GenerateVideo starts a video operation and polls it until it completes or
// ctx ends. The returned URI is the file location without credentials.
func (c *Client) GenerateVideo(ctx context.Context, prompt string) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "video")
	defer timer.Stop()

	op, err := c.client.Models.GenerateVideos(ctx, c.cfg.VideoModel, prompt, nil, nil)
	if err != nil {
		logging.APIError("video start failed: %v", err)
		return "", classifyError("video", err)
	}
	logging.API("video operation %s started", op.Name)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for polls := 0; !op.Done; polls++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("video: %w", ctx.Err())
		case <-ticker.C:
		}
		op, err = c.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			logging.APIError("video poll failed: %v", err)
			return "", classifyError("video", err)
		}
		logging.APIDebug("video operation %s poll %d done=%v", op.Name, polls+1, op.Done)
	}

	return videoURI(op)
}

// videoURI reads the result of a finished operation.
func videoURI(op *genai.GenerateVideosOperation) (string, error) {
	if op.Error != nil {
		return "", classifyError("video", fmt.Errorf("operation failed: %v", op.Error["message"]))
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return "", fmt.Errorf("video: %w", ErrEmptyResponse)
	}
	v := op.Response.GeneratedVideos[0].Video
	if v == nil || v.URI == "" {
		return "", fmt.Errorf("video: %w", ErrEmptyResponse)
	}
	return v.URI, nil
}
