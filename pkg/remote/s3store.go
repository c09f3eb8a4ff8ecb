package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// s3Store implements Store against an S3-compatible bucket, the
// alternate remote backend of SPEC_FULL.md §4, grounded on the teacher's
// own pluggable block store (pkg/blocks/store/s3).
type s3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	retry   RetryPolicy
	timeout Timeouts
}

// newS3StoreFromURL builds an s3Store from a URL of the form
// s3://bucket[/prefix].
func newS3StoreFromURL(ctx context.Context, u *url.URL, opts Options) (Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &s3Store{
		client:  client,
		bucket:  u.Host,
		prefix:  strings.Trim(u.Path, "/"),
		retry:   opts.Retry,
		timeout: opts.Timeouts,
	}, nil
}

func (s *s3Store) key(p string) string {
	if s.prefix == "" {
		return strings.TrimPrefix(p, "/")
	}
	return path.Join(s.prefix, strings.TrimPrefix(p, "/"))
}

func (s *s3Store) Stat(ctx context.Context, p string) (Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    awsString(s.key(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return Info{}, errNotFound(p)
		}
		return Info{}, NewTransientOrFatal(p, err)
	}

	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	var ts int64
	if out.LastModified != nil {
		ts = out.LastModified.Unix()
	}
	return Info{Size: size, Timestamp: ts}, nil
}

func (s *s3Store) List(ctx context.Context, p string) ([]string, error) {
	prefix := s.key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    &prefix,
		Delimiter: awsString("/"),
	})
	if err != nil {
		return nil, NewTransientOrFatal(p, err)
	}

	var names []string
	for _, cp := range out.CommonPrefixes {
		if cp.Prefix != nil {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/"))
		}
	}
	for _, obj := range out.Contents {
		if obj.Key != nil {
			names = append(names, strings.TrimPrefix(*obj.Key, prefix))
		}
	}
	return names, nil
}

func (s *s3Store) Fetch(ctx context.Context, p string, offset, length int64) ([]byte, error) {
	rng := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    awsString(s.key(p)),
		Range:  &rng,
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, errNotFound(p)
		}
		return nil, NewTransientOrFatal(p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read s3 object body for %q: %w", p, err)
	}
	if int64(len(data)) != length {
		return nil, integrityErr(p, int(length), len(data))
	}
	return data, nil
}

// Flush uploads the object in a single PUT. S3 has no partial-object PUT,
// so a flush of an object that already exists remotely first fetches the
// full object, overlays every dirty run, then re-uploads it whole —
// this mirrors the teacher's own s3 store logging an explicit note about
// S3 lacking byte-range writes.
func (s *s3Store) Flush(ctx context.Context, p string, runs []Run) error {
	if len(runs) == 0 {
		return nil
	}

	full, err := s.downloadFull(ctx, p)
	if err != nil && !metadata.IsNotFound(err) {
		return err
	}

	for _, r := range runs {
		end := int(r.Offset) + len(r.Bytes)
		if end > len(full) {
			grown := make([]byte, end)
			copy(grown, full)
			full = grown
		}
		copy(full[r.Offset:end], r.Bytes)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    awsString(s.key(p)),
		Body:   bytes.NewReader(full),
	})
	if err != nil {
		logger.ErrorCtx(ctx, "s3 flush failed", logger.Path(p), logger.Err(err))
		return NewTransientOrFatal(p, err)
	}
	return nil
}

func (s *s3Store) downloadFull(ctx context.Context, p string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    awsString(s.key(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, errNotFound(p)
		}
		return nil, NewTransientOrFatal(p, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *s3Store) Create(ctx context.Context, p string, directory bool) error {
	key := s.key(p)
	if directory && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return NewTransientOrFatal(p, err)
	}
	return nil
}

func (s *s3Store) Rename(ctx context.Context, oldPath, newPath string) error {
	src := s.bucket + "/" + s.key(oldPath)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &s.bucket,
		Key:        awsString(s.key(newPath)),
		CopySource: &src,
	})
	if err != nil {
		return NewTransientOrFatal(oldPath, err)
	}
	return s.Delete(ctx, oldPath)
}

func (s *s3Store) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    awsString(s.key(p)),
	})
	if err != nil {
		return NewTransientOrFatal(p, err)
	}
	return nil
}

func awsString(s string) *string { return &s }

func isS3NotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var nb *types.NotFound
	return errors.As(err, &nb)
}

var _ Store = (*s3Store)(nil)
