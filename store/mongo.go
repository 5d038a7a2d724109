package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/schema"
)

// mongoDocID is the _id of the document holding the collection.
const mongoDocID = "todos"

// MongoStore keeps the whole collection in one MongoDB document:
//
//	{_id: "todos", items: [{id, createdAt, content, done}, ...]}
//
// Single-document replaces are atomic, which gives WriteAll its
// all-or-nothing visibility without multi-document transactions.
// createdAt is stored as RFC 3339 nano text because BSON dates only keep
// milliseconds.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

// mongoItem is one stored record. Done is a pointer so that a missing
// field is reported instead of decoding as false.
type mongoItem struct {
	ID        string `bson:"id"`
	CreatedAt string `bson:"createdAt"`
	Content   string `bson:"content"`
	Done      *bool  `bson:"done"`
}

type mongoDoc struct {
	ID    string      `bson:"_id"`
	Items []mongoItem `bson:"items"`
}

// NewMongoStore connects to cfg.URI and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, model.Unavailable("open", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, model.Unavailable("open", err)
	}
	return &MongoStore{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
	}, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) ReadAll(ctx context.Context) ([]model.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc mongoDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": mongoDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []model.Item{}, nil
	}
	if err != nil {
		return nil, model.Unavailable("read", err)
	}

	items := make([]model.Item, 0, len(doc.Items))
	for i, mi := range doc.Items {
		created, err := time.Parse(time.RFC3339Nano, mi.CreatedAt)
		if err != nil {
			return nil, model.Unavailable("decode", fmt.Errorf("items[%d].createdAt: %w", i, err))
		}
		if mi.Done == nil {
			return nil, model.Unavailable("decode", &schema.Error{Path: fmt.Sprintf("items[%d]", i), Reason: `missing required field "done"`})
		}
		item := model.Item{ID: mi.ID, CreatedAt: created, Content: mi.Content, Done: *mi.Done}
		if err := schema.CheckItem(item); err != nil {
			return nil, model.Unavailable("decode", fmt.Errorf("items[%d]: %w", i, err))
		}
		items = append(items, item)
	}
	if err := schema.CheckUnique(items); err != nil {
		return nil, model.Unavailable("decode", err)
	}
	return items, nil
}

func (s *MongoStore) WriteAll(ctx context.Context, items []model.Item) error {
	if err := checkWrite(items); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := mongoDoc{ID: mongoDocID, Items: make([]mongoItem, len(items))}
	for i, it := range items {
		done := it.Done
		doc.Items[i] = mongoItem{
			ID:        it.ID,
			CreatedAt: it.CreatedAt.Format(time.RFC3339Nano),
			Content:   it.Content,
			Done:      &done,
		}
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": mongoDocID}, doc, options.Replace().SetUpsert(true))
	return model.Unavailable("write", err)
}

func (s *MongoStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": mongoDocID})
	return model.Unavailable("clear", err)
}

// Drop removes the backing collection. Used by tests.
func (s *MongoStore) Drop(ctx context.Context) error {
	return s.coll.Drop(ctx)
}
