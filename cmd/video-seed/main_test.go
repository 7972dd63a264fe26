package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/video-streaming/pkg/videostream"
	"github.com/tendant/video-streaming/pkg/videostream/config"
	memoryresolver "github.com/tendant/video-streaming/pkg/videostream/resolver/memory"
	memorystorage "github.com/tendant/video-streaming/pkg/videostream/storage/memory"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videos.json")
	writeFile(t, path, `[
		{"_id": "5d9e690ad76fe06a3d7ae416", "videoPath": "SampleVideo_1280x720_1mb.mp4"},
		{"_id": "5d9e6a6bd76fe06a3d7ae417", "videoPath": "clips/two.mp4"}
	]`)

	records, err := loadFixtures(path)
	require.NoError(t, err)
	assert.Equal(t, []videostream.Record{
		{ID: "5d9e690ad76fe06a3d7ae416", Locator: "SampleVideo_1280x720_1mb.mp4"},
		{ID: "5d9e6a6bd76fe06a3d7ae417", Locator: "clips/two.mp4"},
	}, records)
}

func TestLoadFixtures_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := loadFixtures(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"_id": "1"}`)
	_, err = loadFixtures(bad)
	assert.Error(t, err)

	incomplete := filepath.Join(dir, "incomplete.json")
	writeFile(t, incomplete, `[{"_id": "1"}]`)
	_, err = loadFixtures(incomplete)
	assert.ErrorContains(t, err, "videoPath")
}

func TestSeedMetadata(t *testing.T) {
	ctx := context.Background()
	r := memoryresolver.New(nil)

	require.NoError(t, seedMetadata(ctx, r, []videostream.Record{{ID: "1", Locator: "a.mp4"}}))
	rec, err := r.Resolve(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", rec.Locator)
}

type readOnlyResolver struct{}

func (readOnlyResolver) Resolve(context.Context, videostream.ResourceID) (*videostream.Record, error) {
	return nil, videostream.ErrNotFound
}

func TestSeedMetadata_Unsupported(t *testing.T) {
	err := seedMetadata(context.Background(), readOnlyResolver{}, nil)
	assert.ErrorContains(t, err, "does not support seeding")
}

func TestUploadVideos(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clips", "two.mp4"), "two")

	store := memorystorage.New()
	n, err := uploadVideos(ctx, store, dir, []videostream.Record{
		{ID: "1", Locator: "missing.mp4"},
		{ID: "2", Locator: "clips/two.mp4"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	obj, err := store.Open(ctx, "clips/two.mp4")
	require.NoError(t, err)
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	assert.Equal(t, "video/mp4", obj.ContentType)
}

func TestRun_StaticAndFS(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "a.mp4"), "video")
	fixtures := filepath.Join(src, "videos.json")
	writeFile(t, fixtures, `[{"_id": "1", "videoPath": "a.mp4"}]`)

	cfg := Config{
		Metadata: config.MetadataConfig{Driver: config.MetadataStatic},
		Storage:  config.StorageConfig{Backend: config.StorageFS, BasePath: dst},
	}
	require.NoError(t, run(context.Background(), cfg, fixtures, src))

	data, err := os.ReadFile(filepath.Join(dst, "a.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
}
