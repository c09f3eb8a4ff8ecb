package refserver

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestServerLifecycle(t *testing.T) {
	server, err := NewServer(Config{Root: t.TempDir(), Port: 0})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	var resp *http.Response
	for time.Now().Before(deadline) {
		resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/list/", server.Port()))
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}

	cancel()
	if err := <-errChan; err != nil {
		t.Errorf("Start returned error after cancel: %v", err)
	}
}
