package sdk

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Oudwins/shellrunner/internals/backoff"
	"github.com/Oudwins/shellrunner/internals/timeouts"
)

const (
	DefaultPingTimeout = timeouts.Probe
	startAttempts      = 7
)

var startBackoff = backoff.Config{Base: 250 * time.Millisecond, Max: 4 * time.Second, Factor: 2}

type InfoLogger interface {
	Info(msg string, args ...any)
}

func IsRunning(baseURL string) bool {
	return IsRunningWithTimeout(baseURL, DefaultPingTimeout)
}

func IsRunningWithTimeout(baseURL string, timeout time.Duration) bool {
	if baseURL == "" {
		return false
	}
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client := NewClient(
		WithBaseURL(baseURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	_, err := client.Version(ctx)
	return err == nil
}

// WaitForStart polls baseURL with exponential backoff until the daemon
// answers or the attempts run out.
func WaitForStart(baseURL string, logger InfoLogger) bool {
	attempt := 0
	err := backoff.Poll(context.Background(), startBackoff, startAttempts, func() error {
		attempt++
		if logger != nil {
			logger.Info("Waiting for server to start", "attempt", attempt)
		}
		if IsRunning(baseURL) {
			return nil
		}
		return errors.New("not running")
	})
	return err == nil
}
