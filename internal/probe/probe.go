// Package probe implements the launcher's readiness poll: repeated
// authenticated GETs against the backend until it answers, the monitored
// process dies, or the attempt budget runs out.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Defaults match the original launcher: 40 attempts, half a second apart,
// each request bounded to one second.
const (
	DefaultAttempts = 40
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = time.Second
)

// Options configures a readiness poll.
type Options struct {
	// URL is probed with GET; any 200 response means ready.
	URL string

	// Username and Password are sent as basic auth when set.
	Username string
	Password string

	// Attempts, Interval, Timeout default to the package constants when zero.
	Attempts int
	Interval time.Duration
	Timeout  time.Duration

	// Alive reports whether the monitored process is still running. When it
	// returns false the poll aborts immediately instead of burning the
	// remaining attempts. Nil means no process to monitor.
	Alive func() bool
}

// ErrProcessExited is wrapped in the error returned when the monitored
// process dies before the endpoint answers.
var ErrProcessExited = fmt.Errorf("monitored process exited")

// Wait polls opts.URL until it returns 200, the process dies, the attempts
// run out, or ctx is cancelled. On success it returns the number of
// attempts used.
func Wait(ctx context.Context, opts Options) (int, error) {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{Timeout: timeout}

	for attempt := 1; attempt <= attempts; attempt++ {
		if opts.Alive != nil && !opts.Alive() {
			return attempt, fmt.Errorf("readiness poll: %w", ErrProcessExited)
		}

		if ok := try(ctx, client, opts); ok {
			return attempt, nil
		}

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(interval):
		}
	}

	return attempts, fmt.Errorf("readiness poll: no answer from %s after %d attempts", opts.URL, attempts)
}

func try(ctx context.Context, client *http.Client, opts Options) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return false
	}
	if opts.Username != "" {
		req.SetBasicAuth(opts.Username, opts.Password)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
