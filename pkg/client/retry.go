package client

import (
	"context"
	"net/http"
	"time"

	"swisstransfer/pkg/log"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// NewRetryableClient creates the transport shared by every API call.
// Large chunk and download bodies must not be cut by a client-wide timeout,
// so deadlines come from request contexts only.
func NewRetryableClient(retryMax int, retryWaitMin, retryWaitMax time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = retryWaitMin
	client.RetryWaitMax = retryWaitMax
	client.Logger = log.RetryableLogger{}
	client.CheckRetry = retryPolicy
	return client
}

// retryPolicy only retries when no response was received. Any status from the
// service is returned to the caller as is.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if resp != nil {
		return false, nil
	}

	if err != nil {
		return true, nil //nolint:nilerr // retryablehttp reports the final error itself
	}

	return false, nil
}
