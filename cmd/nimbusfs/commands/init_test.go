package commands

import "testing"

func TestRandomSigningKeyLength(t *testing.T) {
	key, err := randomSigningKey()
	if err != nil {
		t.Fatalf("randomSigningKey: %v", err)
	}
	if len(key) != 64 {
		t.Errorf("len(key) = %d, want 64 (32 bytes hex-encoded)", len(key))
	}

	other, err := randomSigningKey()
	if err != nil {
		t.Fatalf("randomSigningKey: %v", err)
	}
	if key == other {
		t.Errorf("expected two independently generated keys to differ")
	}
}
