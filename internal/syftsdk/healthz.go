package syftsdk

import (
	"context"
	"fmt"
	"time"
)

const (
	healthzPath     = "/healthz"
	healthzInterval = 500 * time.Millisecond
	healthzAttempts = 60
)

// Healthz performs a single health check against the server.
func Healthz(ctx context.Context, serverURL string) error {
	resp, err := HTTPClient.R().
		SetContext(ctx).
		SetRetryCount(0).
		Get(serverURL + healthzPath)

	if err != nil {
		return fmt.Errorf("sdk: healthz: %w", err)
	}
	if resp.IsErrorState() {
		return fmt.Errorf("sdk: healthz: status %d", resp.GetStatusCode())
	}
	return nil
}

// WaitForHealthy polls the server health endpoint every 500ms for up to 60
// attempts, returning nil as soon as the server responds healthy. Gates
// daemon startup on server availability.
func WaitForHealthy(ctx context.Context, serverURL string) error {
	var lastErr error

	for i := 0; i < healthzAttempts; i++ {
		if err := Healthz(ctx, serverURL); err == nil {
			return nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(healthzInterval):
		}
	}

	return fmt.Errorf("sdk: server not healthy after %d attempts: %w", healthzAttempts, lastErr)
}
