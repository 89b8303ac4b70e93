package vision

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"

	"github.com/kozaktomas/face-sorter/internal/event"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/photo"
)

var log = event.Log

// RestoreClient enhances face crops with a restoration service (GFPGAN style).
// It implements facematch.Restorer.
type RestoreClient struct {
	client
}

// NewRestoreClient creates a restoration client.
func NewRestoreClient(baseURL string, timeout time.Duration) *RestoreClient {
	return &RestoreClient{client: newClient(baseURL, timeout)}
}

// NewRestorer returns a facematch.Restorer for baseURL, or nil when no
// restoration service is configured, which disables the rescue.
func NewRestorer(baseURL string, timeout time.Duration) facematch.Restorer {
	if baseURL == "" {
		return nil
	}
	return NewRestoreClient(baseURL, timeout)
}

// Restore implements facematch.Restorer.
func (c *RestoreClient) Restore(ctx context.Context, img image.Image) (image.Image, error) {
	data, err := photo.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}

	body, contentType, err := c.postMultipartImage(ctx, "/restore", data)
	if err != nil {
		return nil, err
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, errors.New("restorer returned " + contentType + " instead of an image")
	}

	return photo.Decode(body)
}

// Health checks that the restoration service is reachable.
func (c *RestoreClient) Health(ctx context.Context) error {
	return c.health(ctx)
}
