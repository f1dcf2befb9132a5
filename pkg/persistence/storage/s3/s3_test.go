package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-persist/pkg/persistence"
)

// TestS3Backend_BasicConfiguration tests the configuration and creation of S3 backend
func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("Prefix", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			Prefix:          "ddf/",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "ddf/sales/q3.dat", backend.key("sales/q3.dat"))
	})
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(io.EOF))
}

// TestS3Backend_MinIO runs against a live S3-compatible endpoint when
// PERSIST_TEST_S3_ENDPOINT is set.
func TestS3Backend_MinIO(t *testing.T) {
	endpoint := os.Getenv("PERSIST_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("PERSIST_TEST_S3_ENDPOINT not set")
	}

	backend, err := New(Config{
		Bucket:                 "persist-test",
		Endpoint:               endpoint,
		UsePathStyle:           true,
		AccessKeyID:            "minioadmin",
		SecretAccessKey:        "minioadmin",
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	key := "it/" + uuid.NewString() + ".dat"
	data := []byte(`{"rows":[1]}`)

	require.NoError(t, backend.Upload(ctx, key, bytes.NewReader(data)))

	meta, err := backend.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), meta.Size)

	rc, err := backend.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, key))
	assert.ErrorIs(t, backend.Delete(ctx, key), persistence.ErrObjectNotFound)
}
