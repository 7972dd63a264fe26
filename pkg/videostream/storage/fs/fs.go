package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tendant/video-streaming/pkg/videostream"
)

const backendName = "fs"

// Backend is a filesystem implementation of the videostream.BlobStore interface
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Directory that locators are resolved against
}

// New creates a new filesystem storage backend. The base directory must exist.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	info, err := os.Stat(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory %s is not a directory", config.BaseDir)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

// path maps an object key onto the base directory. Keys are rooted before
// joining so ".." segments cannot escape it.
func (b *Backend) path(objectKey string) string {
	return filepath.Join(b.baseDir, filepath.Clean("/"+filepath.FromSlash(objectKey)))
}

// Open opens the file behind objectKey for streaming
func (b *Backend) Open(ctx context.Context, objectKey string) (*videostream.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(b.path(objectKey))
	if os.IsNotExist(err) {
		return nil, &videostream.StorageError{Backend: backendName, Key: objectKey, Op: "open", Err: videostream.ErrObjectNotFound}
	} else if err != nil {
		return nil, &videostream.StorageError{Backend: backendName, Key: objectKey, Op: "open", Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &videostream.StorageError{Backend: backendName, Key: objectKey, Op: "stat", Err: err}
	}
	if info.IsDir() {
		file.Close()
		return nil, &videostream.StorageError{Backend: backendName, Key: objectKey, Op: "open", Err: videostream.ErrObjectNotFound}
	}

	return &videostream.Object{
		Key:         objectKey,
		Body:        file,
		Size:        info.Size(),
		ContentType: detectContentType(file),
		UpdatedAt:   info.ModTime(),
	}, nil
}

// detectContentType sniffs the first 512 bytes and rewinds the file.
func detectContentType(file *os.File) string {
	contentType := "application/octet-stream"
	buffer := make([]byte, 512)
	if n, err := file.Read(buffer); err == nil || (errors.Is(err, io.EOF) && n > 0) {
		contentType = http.DetectContentType(buffer[:n])
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		slog.Warn("Failed to rewind file after sniffing", "file", file.Name(), "error", err)
	}
	return contentType
}

// Upload writes content to the filesystem. The content type is detected on read.
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) error {
	filePath := b.path(objectKey)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Ping checks that the base directory is still readable
func (b *Backend) Ping(ctx context.Context) error {
	_, err := os.Stat(b.baseDir)
	return err
}
