package vmedia

import (
	"context"
	"net/http"
	"net/url"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

var (
	validateRetryDelay = 2 * time.Second
	// keep the reachability check short, the BMC streams the image itself
	validateClientTimeout = 30 * time.Second
)

// ValidateImageRef checks the image URL is well formed and the image is
// reachable, the BMC fetches the ISO from this URL on media insert.
func ValidateImageRef(ctx context.Context, imageURL string) error {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return err
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.Errorf("unsupported image URL scheme: %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return errors.Errorf("image URL missing host: %s", imageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, http.NoBody)
	if err != nil {
		return err
	}

	requestRetryable, err := retryablehttp.FromRequest(req)
	if err != nil {
		return err
	}

	client := retryablehttp.NewClient()
	client.RetryWaitMin = validateRetryDelay
	client.Logger = nil
	client.HTTPClient.Timeout = validateClientTimeout

	resp, err := client.Do(requestRetryable)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return errors.Errorf("image URL: %s, status code %s", imageURL, resp.Status)
	}

	return nil
}
