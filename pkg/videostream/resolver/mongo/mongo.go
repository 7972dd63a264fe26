// Package mongo resolves video identifiers against a MongoDB collection of
// documents shaped like {_id: ObjectId, videoPath: string}.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/video-streaming/pkg/videostream"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultCollection holds the video metadata documents.
const DefaultCollection = "videos"

var errEmptyPath = errors.New("record has no videoPath")

// Config for connecting to the metadata database
type Config struct {
	URI        string // Connection string, e.g. mongodb://db:27017
	Database   string
	Collection string // Defaults to DefaultCollection
}

// finder is the subset of *mongo.Collection used for lookups.
type finder interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

type videoDocument struct {
	VideoPath string `bson:"videoPath"`
}

// Resolver implements videostream.Resolver on top of MongoDB
type Resolver struct {
	client     *mongo.Client
	collection *mongo.Collection
	videos     finder
}

// Connect opens a client, verifies the server is reachable and returns a
// resolver bound to the configured collection.
func Connect(ctx context.Context, config Config) (*Resolver, error) {
	if config.URI == "" {
		return nil, errors.New("mongo connection string is required")
	}
	if config.Database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)
	return &Resolver{
		client:     client,
		collection: collection,
		videos:     collection,
	}, nil
}

// idFilter matches ObjectID keys when the identifier is one, and plain string
// keys otherwise.
func idFilter(id videostream.ResourceID) bson.M {
	if oid, err := primitive.ObjectIDFromHex(string(id)); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": string(id)}
}

func (r *Resolver) Resolve(ctx context.Context, id videostream.ResourceID) (*videostream.Record, error) {
	var doc videoDocument
	err := r.videos.FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, videostream.ErrNotFound
	}
	if err != nil {
		return nil, &videostream.LookupError{ID: id, Err: err}
	}
	if doc.VideoPath == "" {
		return nil, &videostream.LookupError{ID: id, Err: errEmptyPath}
	}

	return &videostream.Record{ID: id, Locator: doc.VideoPath}, nil
}

// Upsert writes records into the collection, used for loading fixtures
func (r *Resolver) Upsert(ctx context.Context, records ...videostream.Record) error {
	if r.collection == nil {
		return errors.New("resolver is not connected")
	}
	for _, rec := range records {
		_, err := r.collection.UpdateOne(ctx,
			idFilter(rec.ID),
			bson.M{"$set": bson.M{"videoPath": rec.Locator}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert video %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Ping checks the primary is reachable
func (r *Resolver) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (r *Resolver) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}
