package config

import (
	"context"
	"fmt"

	"github.com/tendant/video-streaming/pkg/videostream"
	amqpnotify "github.com/tendant/video-streaming/pkg/videostream/notify/amqp"
	natsnotify "github.com/tendant/video-streaming/pkg/videostream/notify/nats"
	"github.com/tendant/video-streaming/pkg/videostream/relay"
	memoryresolver "github.com/tendant/video-streaming/pkg/videostream/resolver/memory"
	mongoresolver "github.com/tendant/video-streaming/pkg/videostream/resolver/mongo"
	pgresolver "github.com/tendant/video-streaming/pkg/videostream/resolver/postgres"
	fsstorage "github.com/tendant/video-streaming/pkg/videostream/storage/fs"
	s3storage "github.com/tendant/video-streaming/pkg/videostream/storage/s3"
)

// Store is a blob store that can also be written to.
type Store interface {
	videostream.BlobStore
	videostream.Uploader
}

// BuildValidator creates the identifier validator for the configured format
func (c *ServerConfig) BuildValidator() videostream.Validator {
	if c.IDFormat != IDFormatAllowList {
		return videostream.NewObjectIDValidator()
	}

	ids := c.AllowedIDs
	if len(ids) == 0 {
		for id := range c.Metadata.StaticPaths {
			ids = append(ids, id)
		}
	}
	return videostream.NewAllowListValidator(ids...)
}

// BuildResolver connects to the metadata store. The returned close function
// releases the connection and is never nil.
func (c *ServerConfig) BuildResolver(ctx context.Context) (videostream.Resolver, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch c.Metadata.Driver {
	case MetadataMongo:
		r, err := mongoresolver.Connect(ctx, mongoresolver.Config{
			URI:        c.Metadata.Host,
			Database:   c.Metadata.Name,
			Collection: c.Metadata.Collection,
		})
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	case MetadataPostgres:
		pool, err := pgresolver.NewPool(ctx, c.Metadata.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		r := pgresolver.New(pool, pgresolver.WithTable(c.Metadata.Schema, c.Metadata.Table))
		return r, func(context.Context) error { pool.Close(); return nil }, nil
	case MetadataStatic:
		return memoryresolver.New(c.Metadata.StaticPaths), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported metadata driver: %s", c.Metadata.Driver)
	}
}

// BuildStore creates the direct mode blob store
func (c *ServerConfig) BuildStore(ctx context.Context) (Store, error) {
	switch c.Storage.Backend {
	case StorageFS:
		b, err := fsstorage.New(fsstorage.Config{BaseDir: c.Storage.BasePath})
		if err != nil {
			return nil, err
		}
		return b, nil
	case StorageS3:
		b, err := s3storage.New(ctx, s3storage.Config{
			Region:          c.Storage.S3.Region,
			Bucket:          c.Storage.S3.Bucket,
			AccessKeyID:     c.Storage.S3.AccessKeyID,
			SecretAccessKey: c.Storage.S3.SecretAccessKey,
			Endpoint:        c.Storage.S3.Endpoint,
			UsePathStyle:    c.Storage.S3.UsePathStyle,

			CreateBucketIfNotExist: c.Storage.S3.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
}

// BuildRelay creates the relay for the configured stream mode. In direct mode
// the store is also returned so it can be health checked.
func (c *ServerConfig) BuildRelay(ctx context.Context) (videostream.Relay, Store, error) {
	switch c.StreamMode {
	case ModeProxy:
		p, err := relay.NewProxy(relay.ProxyConfig{
			Host:    c.Storage.Host,
			Port:    c.Storage.Port,
			Timeout: c.Storage.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case ModeDirect:
		store, err := c.BuildStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return relay.NewDirect(store, relay.WithContentType(c.Storage.ContentType)), store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported stream mode: %s", c.StreamMode)
	}
}

// BuildNotifier connects the access event transport
func (c *ServerConfig) BuildNotifier(ctx context.Context) (videostream.Notifier, error) {
	switch c.Messaging.Driver {
	case MessagingAMQP:
		n, err := amqpnotify.Connect(ctx, amqpnotify.Config{
			URL:            c.Messaging.RabbitURL,
			Exchange:       c.Messaging.Exchange,
			ConnectionName: "video-streaming",
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	case MessagingNATS:
		n, err := natsnotify.Connect(natsnotify.Config{
			URL:     c.Messaging.NATSURL,
			Subject: c.Messaging.Exchange,
			Name:    "video-streaming",
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	case MessagingLog:
		return videostream.NewLoggingNotifier(), nil
	case MessagingNone:
		return videostream.NewNoopNotifier(), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", c.Messaging.Driver)
	}
}
