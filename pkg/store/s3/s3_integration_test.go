//go:build integration
// +build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/bucketfs/pkg/store"
	storetesting "github.com/marmos91/bucketfs/pkg/store/testing"
	"github.com/stretchr/testify/require"
)

// TestS3ObjectStore_Integration runs the object store conformance suite
// against a real S3-compatible service.
//
// Prerequisites:
//   - Localstack (or MinIO) running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/store/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3ObjectStore_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	client, err := NewClient(ctx, ClientConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	bucketName := "bucketfs-test-bucket"
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)})
	require.NoError(t, err)

	defer func() {
		cleanup, err := NewS3ObjectStore(ctx, S3ObjectStoreConfig{Client: client, Bucket: bucketName})
		if err == nil {
			_ = cleanup.Clear(ctx)
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)})
	}()

	// each test gets its own prefix so Clear only touches its objects
	var counter atomic.Int64
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.ObjectStore {
			s, err := NewS3ObjectStore(ctx, S3ObjectStoreConfig{
				Client:    client,
				Bucket:    bucketName,
				KeyPrefix: fmt.Sprintf("test-%d", counter.Add(1)),
			})
			require.NoError(t, err)
			return s
		},
	}

	suite.Run(t)
}
