package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

func fastTestOptions() Options {
	return Options{
		Retry: RetryPolicy{
			BaseDelay:  time.Millisecond,
			Factor:     1,
			MaxDelay:   time.Millisecond,
			MaxRetries: 2,
		},
		Timeouts: Timeouts{Get: time.Second, Put: time.Second},
	}
}

// TestStatPersistent5xxIsFatalNotTransient is the maintainer-requested
// regression: a 5xx that survives the whole retry budget must classify as
// ErrRemoteFatal (EIO), not ErrRemoteTransient (EAGAIN) -- the retries
// already happened, so it is no longer "try again later".
func TestStatPersistent5xxIsFatalNotTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store, err := Open(context.Background(), srv.URL, fastTestOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = store.Stat(context.Background(), "/missing.bin")
	if err == nil {
		t.Fatal("Stat: want error for persistent 503, got nil")
	}
	code, ok := metadata.CodeOf(err)
	if !ok {
		t.Fatalf("Stat error is not a *StoreError: %v", err)
	}
	if code != metadata.ErrRemoteFatal {
		t.Errorf("code = %v, want ErrRemoteFatal", code)
	}
	if got := atomic.LoadInt32(&calls); got != int32(fastTestOptions().Retry.MaxRetries+1) {
		t.Errorf("calls = %d, want %d (initial attempt + retries)", got, fastTestOptions().Retry.MaxRetries+1)
	}
}

// TestStatTransportErrorIsTransient confirms a connection-level failure
// (here, a server that closes the listener before the client connects)
// still surfaces as ErrRemoteTransient, distinct from the fatal 5xx case
// above.
func TestStatTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed before any request lands: every dial fails.

	store, err := Open(context.Background(), srv.URL, fastTestOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = store.Stat(context.Background(), "/missing.bin")
	if err == nil {
		t.Fatal("Stat: want error for unreachable server, got nil")
	}
	code, ok := metadata.CodeOf(err)
	if !ok {
		t.Fatalf("Stat error is not a *StoreError: %v", err)
	}
	if code != metadata.ErrRemoteTransient {
		t.Errorf("code = %v, want ErrRemoteTransient", code)
	}
}

// TestStatRetriesThenSucceeds confirms a transient 503 followed by a 200
// within the retry budget still returns the eventual success.
func TestStatRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"size":5,"timestamp":1,"is_dir":false}`))
	}))
	defer srv.Close()

	store, err := Open(context.Background(), srv.URL, fastTestOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	info, err := store.Stat(context.Background(), "/ok.bin")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 5 {
		t.Errorf("Size = %d, want 5", info.Size)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
