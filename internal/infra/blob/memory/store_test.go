package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardioingest/internal/blob/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, core.DriverMemory, s.Driver())

	_, err := s.Put(ctx, "b.json", bytes.NewReader([]byte("one")), core.PutOptions{})
	require.NoError(t, err)
	_, err = s.Put(ctx, "a.json", bytes.NewReader([]byte("two")), core.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	_, err = s.Put(ctx, "b.json", bytes.NewReader([]byte("three")), core.PutOptions{})
	require.NoError(t, err)

	info, rc, err := s.Get(ctx, "b.json")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "three", string(data))
	assert.Equal(t, int64(5), info.Size)

	list, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.json", list[0].Key)

	_, _, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryStoreETagAndCancellation(t *testing.T) {
	s := New()
	info, err := s.Put(context.Background(), "k", bytes.NewReader([]byte("abc")), core.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", info.ETag)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.List(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
	_, _, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
