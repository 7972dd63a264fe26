// Command video-seed loads id to path fixtures into the metadata store and,
// optionally, uploads the referenced files to the direct mode blob store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/video-streaming/internal/logging"
	"github.com/tendant/video-streaming/pkg/videostream"
	"github.com/tendant/video-streaming/pkg/videostream/config"
	pgresolver "github.com/tendant/video-streaming/pkg/videostream/resolver/postgres"
)

// Config is the subset of the gateway configuration the seeder needs
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`

	Metadata config.MetadataConfig
	Storage  config.StorageConfig
}

// Fixture is one entry of the fixture file
type Fixture struct {
	ID        string `json:"_id"`
	VideoPath string `json:"videoPath"`
}

type upserter interface {
	Upsert(ctx context.Context, records ...videostream.Record) error
}

func loadFixtures(path string) ([]videostream.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	var fixtures []Fixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	records := make([]videostream.Record, 0, len(fixtures))
	for i, f := range fixtures {
		if f.ID == "" || f.VideoPath == "" {
			return nil, fmt.Errorf("fixture %d: _id and videoPath are required", i)
		}
		records = append(records, videostream.Record{ID: videostream.ResourceID(f.ID), Locator: f.VideoPath})
	}
	return records, nil
}

func seedMetadata(ctx context.Context, resolver videostream.Resolver, records []videostream.Record) error {
	u, ok := resolver.(upserter)
	if !ok {
		return errors.New("metadata driver does not support seeding")
	}
	if pg, ok := resolver.(*pgresolver.Resolver); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	return u.Upsert(ctx, records...)
}

// uploadVideos copies each referenced file found under dir into the store.
// Records whose file is absent are skipped.
func uploadVideos(ctx context.Context, store videostream.Uploader, dir string, records []videostream.Record) (int, error) {
	uploaded := 0
	for _, rec := range records {
		path := filepath.Join(dir, filepath.FromSlash(rec.Locator))
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("Video file not found, skipping upload", "id", rec.ID, "path", path)
			continue
		}
		if err != nil {
			return uploaded, err
		}

		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "video/mp4"
		}

		err = store.Upload(ctx, rec.Locator, f, contentType)
		f.Close()
		if err != nil {
			return uploaded, fmt.Errorf("failed to upload %s: %w", rec.Locator, err)
		}
		uploaded++
	}
	return uploaded, nil
}

func run(ctx context.Context, cfg Config, fixturesPath, uploadDir string) error {
	records, err := loadFixtures(fixturesPath)
	if err != nil {
		return err
	}

	server := config.ServerConfig{Metadata: cfg.Metadata, Storage: cfg.Storage}

	resolver, closeDB, err := server.BuildResolver(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to metadata store: %w", err)
	}
	defer closeDB(ctx)

	if err := seedMetadata(ctx, resolver, records); err != nil {
		return fmt.Errorf("failed to seed metadata: %w", err)
	}
	slog.Info("Seeded metadata", "driver", cfg.Metadata.Driver, "records", len(records))

	if uploadDir == "" {
		return nil
	}

	store, err := server.BuildStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	n, err := uploadVideos(ctx, store, uploadDir, records)
	if err != nil {
		return err
	}
	slog.Info("Uploaded videos", "backend", cfg.Storage.Backend, "count", n)
	return nil
}

func main() {
	var cfg Config
	fixturesPath := flag.String("fixtures", "fixtures/videos.json", "JSON array of {_id, videoPath} entries")
	uploadDir := flag.String("upload-dir", "", "Directory holding the video files to upload")
	header := "Environment variables:"
	flag.Usage = cleanenv.FUsage(flag.CommandLine.Output(), &cfg, &header, flag.PrintDefaults)
	flag.Parse()

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	if _, err := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
		slog.Error("Failed to configure logging", "err", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, *fixturesPath, *uploadDir); err != nil {
		slog.Error("Seeding failed", "err", err)
		os.Exit(1)
	}
}
