package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

type MongoConfig struct {
	Host       string
	Port       int
	Database   string
	Collection string
	// RawURI, when set, is used instead of Host and Port.
	RawURI string
	// Timeout bounds server selection, connection setup and every operation.
	Timeout time.Duration
}

// URI builds the connection string for a single mongod.
func (c MongoConfig) URI() string {
	if c.RawURI != "" {
		return c.RawURI
	}
	return "mongodb://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo creates a pooled client. The driver connects lazily, so this
// succeeds even when the server is down; operations then fail with
// ErrStoreUnavailable once Timeout elapses.
func NewMongo(cfg MongoConfig) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.URI()).
		SetServerSelectionTimeout(cfg.Timeout).
		SetConnectTimeout(cfg.Timeout).
		SetTimeout(cfg.Timeout).
		SetRetryWrites(false).
		SetRetryReads(false)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *Mongo) InsertVisit(ctx context.Context, v Visit) error {
	if _, err := m.coll.InsertOne(ctx, v); err != nil {
		return classifyMongo(err, ErrStoreWriteFailed)
	}
	return nil
}

func (m *Mongo) RecentVisits(ctx context.Context, limit int) ([]Visit, error) {
	res := []Visit{}
	if limit <= 0 {
		// the driver treats limit 0 as unlimited
		return res, nil
	}
	cur, err := m.coll.Find(ctx, bson.D{}, recentOpts(limit))
	if err != nil {
		return nil, classifyMongo(err, ErrStoreUnavailable)
	}
	if err := cur.All(ctx, &res); err != nil {
		return nil, classifyMongo(err, ErrStoreUnavailable)
	}
	return res, nil
}

// recentOpts drops _id and returns the newest limit documents by date.
func recentOpts(limit int) *options.FindOptionsBuilder {
	return options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 0}}).
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetLimit(int64(limit))
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// classifyMongo keeps server-side rejections under def. Anything else means
// no server answered in time and is reported as ErrStoreUnavailable.
func classifyMongo(err error, def error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailed, err)
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %v", def, err)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
