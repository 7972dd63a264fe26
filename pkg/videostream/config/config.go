package config

import (
	"errors"
	"fmt"
	"time"
)

// Stream modes
const (
	ModeProxy  = "proxy"
	ModeDirect = "direct"
)

// Identifier formats
const (
	IDFormatObjectID  = "objectid"
	IDFormatAllowList = "allowlist"
)

// Drivers
const (
	MetadataMongo    = "mongo"
	MetadataPostgres = "postgres"
	MetadataStatic   = "static"

	StorageFS = "fs"
	StorageS3 = "s3"

	MessagingAMQP = "amqp"
	MessagingNATS = "nats"
	MessagingLog  = "log"
	MessagingNone = "none"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// defaults, then validates it.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv reads the whole configuration from the process environment.
func LoadFromEnv() (*ServerConfig, error) {
	return Load(WithEnv())
}

func defaults() ServerConfig {
	return ServerConfig{
		Environment: "development",
		LogLevel:    "info",
		LogFormat:   "json",
		StreamMode:  ModeProxy,
		IDFormat:    IDFormatObjectID,
		Storage: StorageConfig{
			Timeout:     10 * time.Second,
			Backend:     StorageFS,
			ContentType: "video/mp4",
			S3:          S3Config{Region: "us-east-1"},
		},
		Metadata: MetadataConfig{
			Driver:        MetadataMongo,
			Collection:    "videos",
			Table:         "videos",
			LookupTimeout: 5 * time.Second,
		},
		Messaging: MessagingConfig{
			Driver:         MessagingAMQP,
			Exchange:       "viewed",
			PublishTimeout: 5 * time.Second,
		},
	}
}

// ServerConfig represents the gateway configuration
type ServerConfig struct {
	Port        string `env:"PORT" env-description:"HTTP listen port"`
	Environment string `env:"ENVIRONMENT" env-default:"development" env-description:"development, production, testing"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn, error"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"json" env-description:"json or text"`

	StreamMode string   `env:"STREAM_MODE" env-default:"proxy" env-description:"proxy or direct"`
	IDFormat   string   `env:"VIDEO_ID_FORMAT" env-default:"objectid" env-description:"objectid or allowlist"`
	AllowedIDs []string `env:"VIDEO_ALLOWED_IDS" env-separator:"," env-description:"Accepted ids in allowlist mode"`

	Storage   StorageConfig
	Metadata  MetadataConfig
	Messaging MessagingConfig
}

// StorageConfig selects where video bytes come from
type StorageConfig struct {
	// Proxy mode
	Host    string        `env:"VIDEO_STORAGE_HOST" env-description:"Storage service host"`
	Port    int           `env:"VIDEO_STORAGE_PORT" env-description:"Storage service port"`
	Timeout time.Duration `env:"VIDEO_STORAGE_TIMEOUT" env-default:"10s" env-description:"Dial and response header timeout"`

	// Direct mode
	Backend     string `env:"STORAGE_BACKEND" env-default:"fs" env-description:"fs or s3"`
	BasePath    string `env:"VIDEO_BASE_PATH" env-description:"Directory holding videos"`
	ContentType string `env:"VIDEO_CONTENT_TYPE" env-default:"video/mp4" env-description:"Content-Type sent in direct mode"`
	S3          S3Config
}

// S3Config configures the S3 direct mode backend
type S3Config struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" env-default:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE"`
	CreateBucket    bool   `env:"S3_CREATE_BUCKET" env-description:"Create the bucket on startup, for MinIO"`
}

// MetadataConfig selects the metadata store
type MetadataConfig struct {
	Driver string `env:"METADATA_DRIVER" env-default:"mongo" env-description:"mongo, postgres or static"`

	Host       string `env:"DBHOST" env-description:"Mongo connection string"`
	Name       string `env:"DBNAME" env-description:"Mongo database name"`
	Collection string `env:"DBCOLLECTION" env-default:"videos"`

	DatabaseURL string `env:"DATABASE_URL" env-description:"Postgres connection string"`
	Schema      string `env:"DB_SCHEMA"`
	Table       string `env:"DB_TABLE" env-default:"videos"`

	StaticPaths map[string]string `env:"VIDEO_PATHS" env-description:"id:path pairs for the static driver"`

	LookupTimeout time.Duration `env:"LOOKUP_TIMEOUT" env-default:"5s"`
}

// MessagingConfig selects where access events are published
type MessagingConfig struct {
	Driver         string        `env:"MESSAGING_DRIVER" env-default:"amqp" env-description:"amqp, nats, log or none"`
	RabbitURL      string        `env:"RABBIT" env-description:"RabbitMQ connection URL"`
	NATSURL        string        `env:"NATS_URL"`
	Exchange       string        `env:"VIEWED_EXCHANGE" env-default:"viewed" env-description:"Fanout exchange or subject"`
	PublishTimeout time.Duration `env:"NOTIFY_TIMEOUT" env-default:"5s"`
}

// Validate reports every missing required value at once
func (c *ServerConfig) Validate() error {
	var missing []string
	var errs []error

	if c.Port == "" {
		missing = append(missing, "PORT")
	}

	switch c.StreamMode {
	case ModeProxy:
		if c.Storage.Host == "" {
			missing = append(missing, "VIDEO_STORAGE_HOST")
		}
		if c.Storage.Port == 0 {
			missing = append(missing, "VIDEO_STORAGE_PORT")
		}
	case ModeDirect:
		switch c.Storage.Backend {
		case StorageFS:
			if c.Storage.BasePath == "" {
				missing = append(missing, "VIDEO_BASE_PATH")
			}
		case StorageS3:
			if c.Storage.S3.Bucket == "" {
				missing = append(missing, "S3_BUCKET")
			}
		default:
			errs = append(errs, fmt.Errorf("storage backend must be '%s' or '%s', got %q", StorageFS, StorageS3, c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("stream mode must be '%s' or '%s', got %q", ModeProxy, ModeDirect, c.StreamMode))
	}

	switch c.IDFormat {
	case IDFormatObjectID:
	case IDFormatAllowList:
		// The static driver's ids double as the allow-list.
		if len(c.AllowedIDs) == 0 && c.Metadata.Driver != MetadataStatic {
			missing = append(missing, "VIDEO_ALLOWED_IDS")
		}
	default:
		errs = append(errs, fmt.Errorf("id format must be '%s' or '%s', got %q", IDFormatObjectID, IDFormatAllowList, c.IDFormat))
	}

	switch c.Metadata.Driver {
	case MetadataMongo:
		if c.Metadata.Host == "" {
			missing = append(missing, "DBHOST")
		}
		if c.Metadata.Name == "" {
			missing = append(missing, "DBNAME")
		}
	case MetadataPostgres:
		if c.Metadata.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case MetadataStatic:
		if len(c.Metadata.StaticPaths) == 0 {
			missing = append(missing, "VIDEO_PATHS")
		}
	default:
		errs = append(errs, fmt.Errorf("metadata driver must be one of mongo, postgres, static, got %q", c.Metadata.Driver))
	}

	switch c.Messaging.Driver {
	case MessagingAMQP:
		if c.Messaging.RabbitURL == "" {
			missing = append(missing, "RABBIT")
		}
	case MessagingNATS:
		if c.Messaging.NATSURL == "" {
			missing = append(missing, "NATS_URL")
		}
	case MessagingLog, MessagingNone:
	default:
		errs = append(errs, fmt.Errorf("messaging driver must be one of amqp, nats, log, none, got %q", c.Messaging.Driver))
	}

	if len(missing) > 0 {
		errs = append([]error{fmt.Errorf("missing required configuration: %v", missing)}, errs...)
	}
	return errors.Join(errs...)
}
