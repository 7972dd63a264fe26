package config

import (
	"errors"
	"time"
)

// WithPort sets the HTTP listen port.
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return errors.New("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithProxyStorage streams through the storage service at host:port.
func WithProxyStorage(host string, port int) Option {
	return func(c *ServerConfig) error {
		if host == "" {
			return errors.New("storage host cannot be empty")
		}
		if port <= 0 {
			return errors.New("storage port must be positive")
		}
		c.StreamMode = ModeProxy
		c.Storage.Host = host
		c.Storage.Port = port
		return nil
	}
}

// WithDirectStorage serves files from basePath.
func WithDirectStorage(basePath string) Option {
	return func(c *ServerConfig) error {
		if basePath == "" {
			return errors.New("base path cannot be empty")
		}
		c.StreamMode = ModeDirect
		c.Storage.Backend = StorageFS
		c.Storage.BasePath = basePath
		return nil
	}
}

// WithS3Storage serves objects from an S3 bucket.
func WithS3Storage(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		if s3.Bucket == "" {
			return errors.New("bucket cannot be empty")
		}
		if s3.Region == "" {
			s3.Region = c.Storage.S3.Region
		}
		c.StreamMode = ModeDirect
		c.Storage.Backend = StorageS3
		c.Storage.S3 = s3
		return nil
	}
}

// WithMongo resolves ids against a Mongo database.
func WithMongo(uri, database string) Option {
	return func(c *ServerConfig) error {
		if uri == "" || database == "" {
			return errors.New("mongo uri and database are required")
		}
		c.Metadata.Driver = MetadataMongo
		c.Metadata.Host = uri
		c.Metadata.Name = database
		return nil
	}
}

// WithPostgres resolves ids against a Postgres table.
func WithPostgres(databaseURL string) Option {
	return func(c *ServerConfig) error {
		if databaseURL == "" {
			return errors.New("database url cannot be empty")
		}
		c.Metadata.Driver = MetadataPostgres
		c.Metadata.DatabaseURL = databaseURL
		return nil
	}
}

// WithStaticVideos resolves ids from a fixed map.
func WithStaticVideos(paths map[string]string) Option {
	return func(c *ServerConfig) error {
		if len(paths) == 0 {
			return errors.New("at least one video path is required")
		}
		c.Metadata.Driver = MetadataStatic
		c.Metadata.StaticPaths = paths
		return nil
	}
}

// WithAllowList accepts only the given ids.
func WithAllowList(ids ...string) Option {
	return func(c *ServerConfig) error {
		c.IDFormat = IDFormatAllowList
		c.AllowedIDs = ids
		return nil
	}
}

// WithRabbitMQ publishes access events to a RabbitMQ fanout exchange.
func WithRabbitMQ(url string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return errors.New("rabbitmq url cannot be empty")
		}
		c.Messaging.Driver = MessagingAMQP
		c.Messaging.RabbitURL = url
		return nil
	}
}

// WithNATS publishes access events to a NATS subject.
func WithNATS(url string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return errors.New("nats url cannot be empty")
		}
		c.Messaging.Driver = MessagingNATS
		c.Messaging.NATSURL = url
		return nil
	}
}

// WithMessagingDriver selects the notifier without a connection, "log" or "none".
func WithMessagingDriver(driver string) Option {
	return func(c *ServerConfig) error {
		if driver != MessagingLog && driver != MessagingNone {
			return errors.New("messaging driver must be 'log' or 'none'")
		}
		c.Messaging.Driver = driver
		return nil
	}
}

// WithLookupTimeout bounds metadata lookups.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return errors.New("lookup timeout must be positive")
		}
		c.Metadata.LookupTimeout = d
		return nil
	}
}
