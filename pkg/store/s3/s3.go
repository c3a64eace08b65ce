package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/store"
)

// deleteBatchSize is the DeleteObjects per-request limit.
const deleteBatchSize = 1000

// S3ObjectStore implements store.ObjectStore on Amazon S3 or any
// S3-compatible service.
//
// Key Design:
//   - Filesystem keys are absolute paths ("/", "/docs", "/docs/a.txt")
//   - S3 key = KeyPrefix + filesystem key, so one bucket can host several
//     filesystems under distinct prefixes
//
// Versions are ETags: conditional writes use If-Match (or If-None-Match: *
// for creation), which S3 evaluates atomically on the server.
//
// Thread Safety:
// Safe for concurrent use; the SDK client is goroutine-safe.
type S3ObjectStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

var (
	_ store.VersionedStore = (*S3ObjectStore)(nil)
	_ store.RangeStore     = (*S3ObjectStore)(nil)
)

// S3ObjectStoreConfig contains configuration for the S3 object store.
type S3ObjectStoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	KeyPrefix string
}

// NewS3ObjectStore creates an S3-backed store and verifies bucket access.
// The bucket must already exist.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3ObjectStore: Initialized store
//   - error: if the configuration is incomplete or the bucket is unreachable
func NewS3ObjectStore(ctx context.Context, cfg S3ObjectStoreConfig) (*S3ObjectStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3ObjectStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (s *S3ObjectStore) objectKey(key string) string {
	return s.keyPrefix + key
}

// isNotFound recognizes both the typed errors and the bare 404 codes that
// HEAD requests and some S3-compatible services return.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "InvalidRange"
	}
	return strings.Contains(err.Error(), "InvalidRange")
}

// classify turns an SDK error into the store sentinel errors.
func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s %s: %w", op, key, err)
	case isNotFound(err):
		return fmt.Errorf("%s %s: %w", op, key, store.ErrObjectNotFound)
	case isPreconditionFailed(err):
		return fmt.Errorf("%s %s: %w", op, key, store.ErrPreconditionFailed)
	default:
		return fmt.Errorf("%s %s: %w: %w", op, key, store.ErrUnavailable, err)
	}
}

// Get downloads the whole object.
func (s *S3ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.GetVersioned(ctx, key)
	return data, err
}

// GetVersioned downloads the whole object and returns its ETag.
func (s *S3ObjectStore) GetVersioned(ctx context.Context, key string) ([]byte, store.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, "", classify("get", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, "", classify("get", key, err)
	}
	return data, store.Version(aws.ToString(result.ETag)), nil
}

// GetRange uses an HTTP Range request so only the requested bytes travel.
func (s *S3ObjectStore) GetRange(ctx context.Context, key string, offset int64, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if length <= 0 || offset < 0 {
		return []byte{}, nil
	}

	// S3 ranges are inclusive
	end := offset + int64(length) - 1
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, end)),
	})
	if err != nil {
		// Offset at or past the end of the object
		if !isNotFound(err) && isInvalidRange(err) {
			return []byte{}, nil
		}
		return nil, classify("get range", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	buf := make([]byte, length)
	n, err := io.ReadFull(result.Body, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, classify("get range", key, err)
	}
	return buf[:n], nil
}

// Put uploads data as the whole object.
func (s *S3ObjectStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return classify("put", key, err)
}

// PutIfVersion uploads data conditionally on the object's ETag.
func (s *S3ObjectStore) PutIfVersion(ctx context.Context, key string, data []byte, expected store.Version) (store.Version, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if expected == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(string(expected))
	}

	result, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", classify("put", key, err)
	}
	return store.Version(aws.ToString(result.ETag)), nil
}

// Delete removes the object. S3 deletes are idempotent, so existence is
// checked with a HEAD first to honor the ErrObjectNotFound contract.
func (s *S3ObjectStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	objectKey := s.objectKey(key)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return classify("delete", key, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	return classify("delete", key, err)
}

// Clear deletes every object under the key prefix, in batches of up to
// 1000 keys per DeleteObjects request.
func (s *S3ObjectStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		batch   []types.ObjectIdentifier
		deleted int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return classify("clear", s.keyPrefix, err)
		}
		if len(result.Errors) > 0 {
			first := result.Errors[0]
			return fmt.Errorf("clear: %d objects not deleted, first %s: %s: %w",
				len(result.Errors), aws.ToString(first.Key), aws.ToString(first.Message), store.ErrUnavailable)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	err := s.eachObject(ctx, "clear", func(objectKey string) error {
		batch = append(batch, types.ObjectIdentifier{Key: aws.String(objectKey)})
		if len(batch) == deleteBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	logger.Debug("S3 clear: bucket=%s prefix=%q deleted=%d", s.bucket, s.keyPrefix, deleted)
	return nil
}

// List returns every key under the key prefix, with the prefix removed.
func (s *S3ObjectStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.eachObject(ctx, "list", func(objectKey string) error {
		keys = append(keys, strings.TrimPrefix(objectKey, s.keyPrefix))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// eachObject pages through every S3 key under the key prefix.
func (s *S3ObjectStore) eachObject(ctx context.Context, op string, fn func(objectKey string) error) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.keyPrefix != "" {
		// keys start with "/", so "p/" never matches a sibling prefix "p2"
		input.Prefix = aws.String(s.keyPrefix + "/")
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return classify(op, s.keyPrefix, err)
		}
		for _, obj := range page.Contents {
			if err := fn(aws.ToString(obj.Key)); err != nil {
				return err
			}
		}
	}
	return nil
}
