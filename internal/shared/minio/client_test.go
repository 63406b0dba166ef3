package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agents-workflow/internal/config"
	"agents-workflow/internal/shared/storage"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.MinIOConfig{})
	assert.Error(t, err)

	_, err = NewClient(config.MinIOConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	c, err := NewClient(config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "agents-workflow", c.Bucket())
}

func TestFileKey(t *testing.T) {
	assert.Equal(t, "files/f-1/report.pdf", FileKey("f-1", "report.pdf"))
	assert.Equal(t, "files/f-1/passwd", FileKey("f-1", "../../etc/passwd"))
}

func TestUploadDownload(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set")
	}
	c, err := NewClient(config.MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ROOT_USER"),
		SecretKey: os.Getenv("MINIO_ROOT_PASSWORD"),
		Bucket:    "agents-workflow-test",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.EnsureBucket(ctx))

	key := FileKey(fmt.Sprintf("f-%d", time.Now().UnixNano()), "hello.txt")
	n, err := c.Upload(ctx, key, bytes.NewReader([]byte("hello")), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	t.Cleanup(func() { c.Delete(context.Background(), key) })

	rc, err := c.Download(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = c.Download(ctx, key+".missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
