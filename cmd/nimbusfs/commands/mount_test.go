package commands

import (
	"path/filepath"
	"testing"
)

func TestPortFromAddress(t *testing.T) {
	port, err := portFromAddress("127.0.0.1:9091")
	if err != nil {
		t.Fatalf("portFromAddress: %v", err)
	}
	if port != 9091 {
		t.Errorf("port = %d, want 9091", port)
	}

	if _, err := portFromAddress("not-an-address"); err == nil {
		t.Errorf("expected an error for a malformed address")
	}
}

func TestControlInfoRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if err := writeControlInfo(dir, "127.0.0.1:9091", "a-token"); err != nil {
		t.Fatalf("writeControlInfo: %v", err)
	}

	info, err := readControlInfo(dir)
	if err != nil {
		t.Fatalf("readControlInfo: %v", err)
	}
	if info.Address != "127.0.0.1:9091" || info.Token != "a-token" {
		t.Errorf("unexpected control info: %+v", info)
	}

	if _, err := readControlInfo(filepath.Join(dir, "missing")); err == nil {
		t.Errorf("expected an error reading control info from a directory with none")
	}
}
