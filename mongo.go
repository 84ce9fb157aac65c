package spindle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore backs both the request queue and the item sink with MongoDB.
// Each spider gets a <name>_requests and a <name>_items collection. Pop uses
// FindOneAndDelete so concurrent workers on one spider name never see the
// same request twice.
type MongoStore struct {
	client *mongo.Client
	db     string
}

type requestDoc struct {
	Url       string    `bson:"url"`
	Headers   []Header  `bson:"headers"`
	Options   []Option  `bson:"options"`
	Parent    string    `bson:"parent"`
	Retries   int       `bson:"retries"`
	CreatedAt time.Time `bson:"created_at"`
}

func NewMongoStore(ctx context.Context, uri, db string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoStore{client: client, db: db}, nil
}

func (s *MongoStore) requests(spider string) *mongo.Collection {
	return s.client.Database(s.db).Collection(spider + "_requests")
}

func (s *MongoStore) items(spider string) *mongo.Collection {
	return s.client.Database(s.db).Collection(spider + "_items")
}

func (s *MongoStore) Pop(ctx context.Context, spider string) (*Request, error) {
	opts := options.FindOneAndDelete().SetSort(bson.D{{Key: "created_at", Value: 1}})

	var doc requestDoc
	err := s.requests(spider).FindOneAndDelete(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Request{
		Url:     doc.Url,
		Headers: doc.Headers,
		Options: doc.Options,
		Retries: doc.Retries,
	}, nil
}

func (s *MongoStore) Store(ctx context.Context, spider string, req Request) error {
	doc := requestDoc{
		Url:       req.Url,
		Headers:   req.Headers,
		Options:   req.Options,
		Retries:   req.Retries,
		CreatedAt: time.Now(),
	}
	// Lineage survives as the parent URL; response bodies stay out of the
	// queue.
	if req.PrevResponse != nil {
		doc.Parent = req.PrevResponse.Url
	}
	_, err := s.requests(spider).InsertOne(ctx, doc)
	return err
}

// ItemSink returns the item-sink view of the store.
func (s *MongoStore) ItemSink() ItemSink {
	return mongoSink{store: s}
}

type mongoSink struct {
	store *MongoStore
}

func (s mongoSink) Store(ctx context.Context, spider string, item Map) error {
	doc := bson.M{"created_at": time.Now()}
	for k, v := range item {
		doc[k] = v
	}
	_, err := s.store.items(spider).InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(disconnectCtx)
}
