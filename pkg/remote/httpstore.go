package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/nimbusfs/nimbusfs/internal/logger"
)

// httpStore implements Store against the reference HTTP API of spec §6,
// grounded on the teacher's own transport conventions for its control
// plane client (plain net/http, explicit per-request context deadlines).
type httpStore struct {
	base    string
	client  *http.Client
	retry   RetryPolicy
	timeout Timeouts
}

func newHTTPStoreFromURL(rawURL string, opts Options) Store {
	return &httpStore{
		base:    strings.TrimRight(rawURL, "/"),
		client:  &http.Client{},
		retry:   opts.Retry,
		timeout: opts.Timeouts,
	}
}

func (s *httpStore) url(pathTemplate, p string) string {
	return s.base + fmt.Sprintf(pathTemplate, url.PathEscape(strings.TrimPrefix(p, "/")))
}

// withRetry retries do against transient failures -- transport errors and
// 5xx responses -- up to the configured budget. The two failure kinds are
// kept distinct in the return: a transport error (network timeout,
// connection reset, context deadline) that survives the whole budget
// comes back as a non-nil error, still genuinely transient. A 5xx that
// survives the whole budget comes back as a non-nil response instead --
// the retries already happened, so by the time the caller sees it the
// failure is no longer "worth retrying", it's routed through
// errFromStatus for the fatal/4xx treatment like any other status code.
func (s *httpStore) withRetry(ctx context.Context, op string, do func() (*http.Response, error)) (*http.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.BaseDelay
	b.Multiplier = s.retry.Factor
	b.MaxInterval = s.retry.MaxDelay
	b.MaxElapsedTime = 0
	bo := backoff.WithMaxRetries(b, uint64(s.retry.MaxRetries))

	var lastResp *http.Response
	var lastErr error
	attempt := 0

	err := backoff.Retry(func() error {
		attempt++
		resp, err := do()
		lastResp, lastErr = resp, err

		if err != nil {
			logger.WarnCtx(ctx, "remote request error, retrying",
				logger.Source(op), logger.Attempt(attempt), logger.MaxRetries(s.retry.MaxRetries), logger.Err(err))
			return err
		}
		if resp.StatusCode >= 500 {
			logger.WarnCtx(ctx, "remote request 5xx, retrying",
				logger.Source(op), logger.Attempt(attempt), logger.MaxRetries(s.retry.MaxRetries))
			return fmt.Errorf("remote: %s: status %d", op, resp.StatusCode)
		}
		return nil
	}, bo)

	if err != nil {
		if lastErr != nil {
			// Retry budget spent on a transport-level error: genuinely transient.
			return nil, err
		}
		// Retry budget spent on a persistent 5xx: hand the response back so
		// the caller can classify it through errFromStatus instead of
		// treating it as transient.
		return lastResp, nil
	}
	return lastResp, nil
}

func (s *httpStore) Stat(ctx context.Context, p string) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout.Get)
	defer cancel()

	resp, err := s.withRetry(ctx, "stat", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url("/api/info/%s", p), nil)
		if err != nil {
			return nil, err
		}
		return s.client.Do(req)
	})
	if err != nil {
		return Info{}, NewTransientOrFatal(p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Info{}, errNotFound(p)
	}
	if resp.StatusCode >= 400 {
		return Info{}, errFromStatus(p, resp.StatusCode)
	}

	var out struct {
		Size      int64 `json:"size"`
		Timestamp int64 `json:"timestamp"`
		IsDir     bool  `json:"is_dir"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Info{}, fmt.Errorf("remote: decode info for %q: %w", p, err)
	}
	return Info{Size: out.Size, Timestamp: out.Timestamp, IsDir: out.IsDir}, nil
}

func (s *httpStore) List(ctx context.Context, p string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout.Get)
	defer cancel()

	resp, err := s.withRetry(ctx, "list", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url("/api/list/%s", p), nil)
		if err != nil {
			return nil, err
		}
		return s.client.Do(req)
	})
	if err != nil {
		return nil, NewTransientOrFatal(p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errFromStatus(p, resp.StatusCode)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("remote: decode list for %q: %w", p, err)
	}
	return names, nil
}

func (s *httpStore) Fetch(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout.Get)
	defer cancel()

	resp, err := s.withRetry(ctx, "fetch", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url("/api/data/%s", p), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		return s.client.Do(req)
	})
	if err != nil {
		return nil, NewTransientOrFatal(p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound(p)
	}
	if resp.StatusCode >= 400 {
		return nil, errFromStatus(p, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read fetch body for %q: %w", p, err)
	}
	if int64(len(data)) != length {
		return nil, integrityErr(p, int(length), len(data))
	}
	return data, nil
}

func (s *httpStore) Flush(ctx context.Context, p string, runs []Run) error {
	for _, r := range runs {
		if err := s.putRun(ctx, p, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *httpStore) putRun(ctx context.Context, p string, r Run) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout.Put)
	defer cancel()

	resp, err := s.withRetry(ctx, "flush", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url("/api/data/%s", p), bytes.NewReader(r.Bytes))
		if err != nil {
			return nil, err
		}
		req.ContentLength = int64(len(r.Bytes))
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.Offset, r.Offset+int64(len(r.Bytes))-1, r.Offset+int64(len(r.Bytes))))
		return s.client.Do(req)
	})
	if err != nil {
		return NewTransientOrFatal(p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errFromStatus(p, resp.StatusCode)
	}
	return nil
}

func (s *httpStore) Create(ctx context.Context, p string, directory bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout.Put)
	defer cancel()

	resp, err := s.withRetry(ctx, "create", func() (*http.Response, error) {
		u := s.url("/api/create/%s", p) + "?directory=" + strconv.FormatBool(directory)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
		if err != nil {
			return nil, err
		}
		return s.client.Do(req)
	})
	if err != nil {
		return NewTransientOrFatal(p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return errAlreadyExists(p)
	}
	if resp.StatusCode >= 400 {
		return errFromStatus(p, resp.StatusCode)
	}
	return nil
}

func (s *httpStore) Rename(ctx context.Context, oldPath, newPath string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout.Put)
	defer cancel()

	body, err := json.Marshal(struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
	}{oldPath, newPath})
	if err != nil {
		return fmt.Errorf("remote: encode rename body: %w", err)
	}

	resp, err := s.withRetry(ctx, "rename", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/api/rename", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return s.client.Do(req)
	})
	if err != nil {
		return NewTransientOrFatal(oldPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errFromStatus(oldPath, resp.StatusCode)
	}
	return nil
}

func (s *httpStore) Delete(ctx context.Context, p string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout.Put)
	defer cancel()

	resp, err := s.withRetry(ctx, "delete", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.url("/api/delete/%s", p), nil)
		if err != nil {
			return nil, err
		}
		return s.client.Do(req)
	})
	if err != nil {
		return NewTransientOrFatal(p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound(p)
	}
	if resp.StatusCode >= 400 {
		return errFromStatus(p, resp.StatusCode)
	}
	return nil
}

var _ Store = (*httpStore)(nil)
