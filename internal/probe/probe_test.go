package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// flakyServer returns 503 for the first failures requests, then 200, and
// always enforces basic auth.
func flakyServer(t *testing.T, failures int32) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "lich" || pass != "123123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if atomic.AddInt32(&calls, 1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestWaitSucceedsAfterRetries(t *testing.T) {
	srv, _ := flakyServer(t, 2)

	attempts, err := Wait(context.Background(), Options{
		URL:      srv.URL,
		Username: "lich",
		Password: "123123",
		Interval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWaitFailsWithoutCredentials(t *testing.T) {
	srv, _ := flakyServer(t, 0)

	_, err := Wait(context.Background(), Options{
		URL:      srv.URL,
		Attempts: 3,
		Interval: 5 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("unauthenticated poll succeeded")
	}
}

func TestWaitExhaustsAttempts(t *testing.T) {
	srv, calls := flakyServer(t, 1000)

	attempts, err := Wait(context.Background(), Options{
		URL:      srv.URL,
		Username: "lich",
		Password: "123123",
		Attempts: 4,
		Interval: 5 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("poll against broken server succeeded")
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	if got := atomic.LoadInt32(calls); got != 4 {
		t.Errorf("server saw %d requests, want 4", got)
	}
}

func TestWaitAbortsWhenProcessDies(t *testing.T) {
	srv, _ := flakyServer(t, 1000)

	var polls int32
	start := time.Now()
	_, err := Wait(context.Background(), Options{
		URL:      srv.URL,
		Username: "lich",
		Password: "123123",
		Attempts: 100,
		Interval: 10 * time.Millisecond,
		Alive: func() bool {
			// Alive for the first two checks, then dead.
			return atomic.AddInt32(&polls, 1) <= 2
		},
	})
	if !errors.Is(err, ErrProcessExited) {
		t.Fatalf("err = %v, want ErrProcessExited", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("dead process abort took %v", elapsed)
	}
}

func TestWaitStopsPromptlyOnCancel(t *testing.T) {
	srv, _ := flakyServer(t, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Wait(ctx, Options{
		URL:      srv.URL,
		Username: "lich",
		Password: "123123",
		Interval: 200 * time.Millisecond,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancel took %v to take effect", elapsed)
	}
}

func TestWaitHonorsContextCancel(t *testing.T) {
	srv, _ := flakyServer(t, 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Wait(ctx, Options{
		URL:      srv.URL,
		Username: "lich",
		Password: "123123",
		Interval: 10 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context deadline", err)
	}
}
