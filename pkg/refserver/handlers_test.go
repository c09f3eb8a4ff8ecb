package refserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	ts := httptest.NewServer(NewRouter(root))
	t.Cleanup(ts.Close)
	return ts, root
}

func TestInfoAndList(t *testing.T) {
	ts, root := newTestServer(t)

	if err := os.MkdirAll(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "dir", "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/info/dir/a.txt")
	if err != nil {
		t.Fatalf("info request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var info struct {
		Size  int64 `json:"size"`
		IsDir bool  `json:"is_dir"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Size != 5 || info.IsDir {
		t.Errorf("unexpected info: %+v", info)
	}

	resp2, err := http.Get(ts.URL + "/api/list/dir")
	if err != nil {
		t.Fatalf("list request: %v", err)
	}
	defer resp2.Body.Close()
	var names []string
	if err := json.NewDecoder(resp2.Body).Decode(&names); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(names) != 1 || names[0] != "a.txt" {
		t.Errorf("unexpected list: %v", names)
	}
}

func TestInfoNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/info/missing.txt")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("want 404, got %d", resp.StatusCode)
	}
}

func TestDataRangeReadAfterWrite(t *testing.T) {
	ts, _ := newTestServer(t)

	payload := []byte("0123456789")
	putReq, err := http.NewRequest(http.MethodPut, ts.URL+"/api/data/file.bin", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new put request: %v", err)
	}
	putReq.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(payload)-1, len(payload)))
	putResp, err := http.DefaultClient.Do(putReq)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	putResp.Body.Close()
	if putResp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", putResp.StatusCode)
	}

	getReq, err := http.NewRequest(http.MethodGet, ts.URL+"/api/data/file.bin", nil)
	if err != nil {
		t.Fatalf("new get request: %v", err)
	}
	getReq.Header.Set("Range", "bytes=2-5")
	getResp, err := http.DefaultClient.Do(getReq)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusPartialContent {
		t.Fatalf("want 206, got %d", getResp.StatusCode)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(getResp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if buf.String() != "2345" {
		t.Errorf("want %q, got %q", "2345", buf.String())
	}
}

func TestCreateConflictAndDelete(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/create/newdir?directory=true", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}

	resp2, err := http.Post(ts.URL+"/api/create/newdir?directory=true", "", nil)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("want 409, got %d", resp2.StatusCode)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/delete/newdir", nil)
	if err != nil {
		t.Fatalf("new delete request: %v", err)
	}
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", delResp.StatusCode)
	}
}

func TestRename(t *testing.T) {
	ts, root := newTestServer(t)

	if err := os.WriteFile(filepath.Join(root, "old.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	body, err := json.Marshal(struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
	}{"old.txt", "new.txt"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post(ts.URL+"/api/rename", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", resp.StatusCode)
	}

	if _, err := os.Stat(filepath.Join(root, "new.txt")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "old.txt")); !os.IsNotExist(err) {
		t.Errorf("old file should be gone, err=%v", err)
	}
}

func TestResolveContainsTraversal(t *testing.T) {
	root := t.TempDir()
	h := &handler{root: root}
	local, err := h.resolve("../../etc/passwd")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(local, root) {
		t.Errorf("path escaped root: %s", local)
	}
}
