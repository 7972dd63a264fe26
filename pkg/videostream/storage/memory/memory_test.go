package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/video-streaming/pkg/videostream"
	memorystorage "github.com/tendant/video-streaming/pkg/videostream/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "videos/one.mp4"
	testData := "Hello, World! This is test data."

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData), "video/mp4")
		assert.NoError(t, err)
	})

	t.Run("Open", func(t *testing.T) {
		obj, err := backend.Open(ctx, testKey)
		require.NoError(t, err)
		defer obj.Body.Close()

		assert.Equal(t, testKey, obj.Key)
		assert.Equal(t, int64(len(testData)), obj.Size)
		assert.Equal(t, "video/mp4", obj.ContentType)

		data, err := io.ReadAll(obj.Body)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("DefaultContentType", func(t *testing.T) {
		backend.Put("raw", []byte{1, 2, 3}, "")
		obj, err := backend.Open(ctx, "raw")
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", obj.ContentType)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := backend.Open(ctx, "nope")
		assert.ErrorIs(t, err, videostream.ErrObjectNotFound)
	})

	t.Run("PutCopiesInput", func(t *testing.T) {
		data := []byte("abc")
		backend.Put("copy", data, "")
		data[0] = 'z'

		obj, err := backend.Open(ctx, "copy")
		require.NoError(t, err)
		got, _ := io.ReadAll(obj.Body)
		assert.Equal(t, "abc", string(got))
	})
}
