package controlapi

import (
	"context"
	"testing"
	"time"
)

type fakeProvider struct {
	dirty, clean, capacity int64
	last                   time.Time
}

func (f fakeProvider) Stats() (int64, int64, int64, time.Time) {
	return f.dirty, f.clean, f.capacity, f.last
}

func TestServerIssuesTokenAndServesStatus(t *testing.T) {
	last := time.Now().Truncate(time.Second)
	provider := fakeProvider{dirty: 10, clean: 20, capacity: 100, last: last}

	server, token, err := NewServer(Config{Port: 0, Secret: "0123456789012345678901234567890123"}, provider)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a non-empty token")
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(ctx) }()

	var result *StatusResult
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err = FetchStatus(server.Addr(), token)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if result.DirtyBytes != 10 || result.CleanBytes != 20 || result.CapacityBytes != 100 {
		t.Errorf("unexpected status: %+v", result)
	}
	if !result.LastWriteback.Equal(last) {
		t.Errorf("lastWriteback = %v, want %v", result.LastWriteback, last)
	}

	if _, err := FetchStatus(server.Addr(), "not-a-real-token"); err == nil {
		t.Errorf("expected an error for an invalid token")
	}

	cancel()
	<-errChan
}

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTService(JWTConfig{Secret: "too-short"}); err == nil {
		t.Fatalf("expected ErrInvalidSecretLength")
	}
}

func TestValidateTokenRejectsForgedSecret(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "0123456789012345678901234567890123"})
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	token, err := svc.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	other, err := NewJWTService(JWTConfig{Secret: "99999999999999999999999999999999999"})
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Errorf("expected validation against a different secret to fail")
	}
}
