package integrationtests

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"camqc-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketName = "reports"

func setupTestObjectStore(t *testing.T, ctx context.Context) *storage.S3ObjectStore {
	t.Helper()

	endpoint := setupMinioContainer(t, ctx)

	objectStore, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)
	require.NoError(t, objectStore.CreateBucket(ctx, bucketName))
	return objectStore
}

func keys(objects []storage.Object) []string {
	out := make([]string, 0, len(objects))
	for _, obj := range objects {
		out = append(out, obj.Name)
	}
	sort.Strings(out)
	return out
}

func TestS3ObjectStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	t.Run("CreateBucketTwice", func(t *testing.T) {
		require.NoError(t, objectStore.CreateBucket(ctx, bucketName))
	})

	t.Run("PutGetObject", func(t *testing.T) {
		key := "session-a/SN-1_20260101_120000.pdf"
		content := []byte("%PDF-1.3 report")

		require.NoError(t, objectStore.PutObject(ctx, bucketName, key, bytes.NewReader(content)))

		obj, err := objectStore.GetObject(ctx, bucketName, key)
		require.NoError(t, err)
		defer obj.Close()

		data, err := io.ReadAll(obj)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("MissingObject", func(t *testing.T) {
		_, err := objectStore.GetObject(ctx, bucketName, "session-a/missing.pdf")
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	})

	t.Run("ListAndDeleteByPrefix", func(t *testing.T) {
		files := []string{"session-b/report.pdf", "session-b/report.docx", "session-c/report.pdf"}
		for _, file := range files {
			require.NoError(t, objectStore.PutObject(ctx, bucketName, file, bytes.NewReader([]byte(file))))
		}

		objects, err := objectStore.ListObjects(ctx, bucketName, "session-b/")
		require.NoError(t, err)
		assert.Equal(t, []string{"session-b/report.docx", "session-b/report.pdf"}, keys(objects))
		for _, obj := range objects {
			assert.Equal(t, int64(len(obj.Name)), obj.Size)
		}

		require.NoError(t, objectStore.DeleteObjects(ctx, bucketName, "session-b/"))

		objects, err = objectStore.ListObjects(ctx, bucketName, "session-b/")
		require.NoError(t, err)
		assert.Empty(t, objects)

		objects, err = objectStore.ListObjects(ctx, bucketName, "session-c/")
		require.NoError(t, err)
		assert.Equal(t, []string{"session-c/report.pdf"}, keys(objects))
	})
}
