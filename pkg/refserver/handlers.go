package refserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type handler struct {
	root string
}

// resolve maps a logical request path onto a local filesystem path
// rooted at h.root, rejecting any attempt to escape it via "..".
func (h *handler) resolve(p string) (string, error) {
	clean := filepath.Clean("/" + p)
	local := filepath.Join(h.root, clean)
	if local != h.root && !strings.HasPrefix(local, h.root+string(filepath.Separator)) {
		return "", fmt.Errorf("refserver: path %q escapes root", p)
	}
	return local, nil
}

func wildcardPath(r *http.Request) string {
	return chi.URLParam(r, "*")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

// info serves GET /api/info/{p}: {size, timestamp, is_dir}.
func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	local, err := h.resolve(wildcardPath(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fi, err := os.Stat(local)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Size      int64 `json:"size"`
		Timestamp int64 `json:"timestamp"`
		IsDir     bool  `json:"is_dir"`
	}{
		Size:      fi.Size(),
		Timestamp: fi.ModTime().Unix(),
		IsDir:     fi.IsDir(),
	})
}

// list serves GET /api/list/{p}: a JSON array of immediate child names.
func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	local, err := h.resolve(wildcardPath(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := os.ReadDir(local)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	writeJSON(w, http.StatusOK, names)
}

// getData serves GET /api/data/{p}, honoring an optional Range header.
func (h *handler) getData(w http.ResponseWriter, r *http.Request) {
	local, err := h.resolve(wildcardPath(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := os.Open(local)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if fi.IsDir() {
		writeError(w, http.StatusBadRequest, "is a directory")
		return
	}

	start, end, partial := parseRange(r.Header.Get("Range"), fi.Size())
	if partial && (start < 0 || end < start || end >= fi.Size()) {
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "invalid range")
		return
	}

	length := end - start + 1
	if partial {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fi.Size()))
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
		w.WriteHeader(http.StatusOK)
		start, length = 0, fi.Size()
	}

	if _, err := io.CopyN(w, io.NewSectionReader(f, start, length), length); err != nil && !errors.Is(err, io.EOF) {
		// Headers are already flushed; nothing left to do but log via the
		// Recoverer's panic path would be wrong here, so this is silent
		// beyond the broken connection itself.
		return
	}
}

// parseRange parses a single-range "bytes=start-end" Range header. The
// second return is false if no Range header was present.
func parseRange(header string, size int64) (start, end int64, partial bool) {
	if header == "" {
		return 0, size - 1, false
	}
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, size - 1, false
	}
	spec := strings.SplitN(strings.TrimPrefix(header, prefix), "-", 2)
	if len(spec) != 2 {
		return 0, size - 1, false
	}
	s, err1 := strconv.ParseInt(spec[0], 10, 64)
	e, err2 := strconv.ParseInt(spec[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, size - 1, false
	}
	return s, e, true
}

// putData serves PUT /api/data/{p}, writing the body at the offset named
// by an optional Content-Range header ("bytes start-end/total"), or at
// offset 0 when absent.
func (h *handler) putData(w http.ResponseWriter, r *http.Request) {
	local, err := h.resolve(wildcardPath(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	offset := parseContentRangeStart(r.Header.Get("Content-Range"))

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	f, err := os.OpenFile(local, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := f.WriteAt(body, offset); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseContentRangeStart(header string) int64 {
	if header == "" {
		return 0
	}
	header = strings.TrimPrefix(header, "bytes ")
	dash := strings.IndexByte(header, '-')
	if dash < 0 {
		return 0
	}
	start, err := strconv.ParseInt(header[:dash], 10, 64)
	if err != nil {
		return 0
	}
	return start
}

// create serves POST /api/create/{p}?directory={bool}.
func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	local, err := h.resolve(wildcardPath(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	directory := r.URL.Query().Get("directory") == "true"

	if _, err := os.Lstat(local); err == nil {
		writeError(w, http.StatusConflict, "already exists")
		return
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if directory {
		if err := os.Mkdir(local, 0o755); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else {
		f, err := os.OpenFile(local, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		f.Close()
	}

	w.WriteHeader(http.StatusCreated)
}

// rename serves POST /api/rename with a JSON {old_path, new_path} body.
func (h *handler) rename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	oldLocal, err := h.resolve(body.OldPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	newLocal, err := h.resolve(body.NewPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := os.Stat(oldLocal); errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := os.MkdirAll(filepath.Dir(newLocal), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := os.Rename(oldLocal, newLocal); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// delete serves DELETE /api/delete/{p}.
func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	local, err := h.resolve(wildcardPath(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fi, err := os.Stat(local)
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if fi.IsDir() {
		err = os.RemoveAll(local)
	} else {
		err = os.Remove(local)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
