package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardioingest/internal/blob/core"
)

func TestStoreGetPutFlow(t *testing.T) {
	store, bucket := NewMockForTests()
	ctx := context.Background()

	info, err := store.Put(ctx, "incoming/AIIMS-1.json", bytes.NewReader([]byte(`{"a":1}`)), core.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	assert.Equal(t, "incoming/AIIMS-1.json", info.Key)
	assert.Equal(t, "etag", info.ETag)

	body, ok := bucket.Object("incoming/AIIMS-1.json")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(body))

	got, rc, err := store.Get(ctx, "incoming/AIIMS-1.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"a":1}`, string(data))
	assert.Equal(t, int64(7), got.Size)
	assert.Equal(t, "application/json", got.ContentType)
	assert.Equal(t, core.DriverS3, store.Driver())
	assert.Equal(t, "mock-bucket", store.Bucket())
}

func TestStoreGetMissingKeyIsNotFound(t *testing.T) {
	store, _ := NewMockForTests()
	_, _, err := store.Get(context.Background(), "incoming/absent.json")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreListPaginates(t *testing.T) {
	store, bucket := NewMockForTests()
	bucket.PageSize = 2
	for _, k := range []string{"incoming/c.json", "incoming/a.json", "incoming/b.json", "other/x.json", "incoming/d.json"} {
		bucket.Seed(k, []byte("{}"))
	}

	infos, err := store.List(context.Background(), "incoming/")
	require.NoError(t, err)
	var keys []string
	for _, i := range infos {
		keys = append(keys, i.Key)
	}
	assert.Equal(t, []string{"incoming/a.json", "incoming/b.json", "incoming/c.json", "incoming/d.json"}, keys)

	empty, err := store.List(context.Background(), "nothing/")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{
		Bucket:          "bkt",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "bkt", s.Bucket())
}

func TestDecodeChunked(t *testing.T) {
	_, ok := decodeChunked([]byte("not-chunked"))
	assert.False(t, ok)
	_, ok = decodeChunked([]byte("5\r\nabc\r\n0\r\n"))
	assert.False(t, ok)
	b, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\n"))
	assert.True(t, ok)
	assert.Equal(t, "hello", string(b))
}
