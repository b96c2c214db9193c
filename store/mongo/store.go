// Package mongo provides a MongoDB implementation of store.Store.
//
// A unique compound index over the composite key backs GetOrCreate, which
// upserts with $setOnInsert. Conditional writes filter on a null field.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rbaliyan/notify/internal/ids"
	"github.com/rbaliyan/notify/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	opts       *options
	connected  int32
	logger     *slog.Logger
}

// New creates a store with the provided client.
// Call Connect to select the collection and create the indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{client: client, opts: o, logger: o.logger}
}

// Connect pings the server and creates the unique key index.
func (s *Store) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 1 {
		return store.ErrAlreadyConnected
	}
	if s.client == nil {
		return errors.New("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	// Embedded documents decode as maps, matching the other stores.
	collOpts := mongoopts.Collection().SetBSONOptions(&mongoopts.BSONOptions{DefaultDocumentM: true})
	s.collection = s.client.Database(s.opts.database).Collection(s.opts.collection, collOpts)

	if err := s.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	atomic.StoreInt32(&s.connected, 1)
	s.logger.Info("connected to MongoDB", "database", s.opts.database, "collection", s.opts.collection)
	return nil
}

// Close marks the store as disconnected. The caller owns the client.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keyIndex(),
		Options: mongoopts.Index().SetUnique(true).SetName("uq_template_key"),
	})
	return err
}

func keyIndex() bson.D {
	return bson.D{
		{Key: "language", Value: 1},
		{Key: "type", Value: 1},
		{Key: "subject_type", Value: 1},
		{Key: "subject_id", Value: 1},
	}
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

type templateDoc struct {
	ID             string         `bson:"_id"`
	Language       string         `bson:"language"`
	Type           string         `bson:"type"`
	SubjectType    string         `bson:"subject_type"`
	SubjectID      string         `bson:"subject_id"`
	Subject        *string        `bson:"subject"`
	Body           *string        `bson:"body"`
	Theme          *string        `bson:"theme"`
	Logo           map[string]any `bson:"logo"`
	RenderedParams map[string]any `bson:"rendered_params"`
	CreatedAt      time.Time      `bson:"created_at"`
	UpdatedAt      time.Time      `bson:"updated_at"`
}

func newDoc(id string, key store.Key, now time.Time) templateDoc {
	return templateDoc{
		ID:          id,
		Language:    key.Language,
		Type:        key.Type,
		SubjectType: key.SubjectType,
		SubjectID:   key.SubjectID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (d *templateDoc) template() *store.Template {
	return &store.Template{
		ID:             d.ID,
		Key:            store.Key{Language: d.Language, Type: d.Type, SubjectType: d.SubjectType, SubjectID: d.SubjectID},
		Subject:        d.Subject,
		Body:           d.Body,
		Theme:          d.Theme,
		Logo:           d.Logo,
		RenderedParams: d.RenderedParams,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func keyFilter(key store.Key) bson.D {
	return bson.D{
		{Key: "language", Value: key.Language},
		{Key: "type", Value: key.Type},
		{Key: "subject_type", Value: key.SubjectType},
		{Key: "subject_id", Value: key.SubjectID},
	}
}

// GetOrCreate implements store.Store.
func (s *Store) GetOrCreate(ctx context.Context, key store.Key) (*store.Template, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	doc := newDoc(ids.NewRowID(), key, time.Now().UTC())
	opts := mongoopts.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(mongoopts.After)

	var out templateDoc
	err := s.collection.FindOneAndUpdate(ctx, keyFilter(key), bson.M{"$setOnInsert": doc}, opts).Decode(&out)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced on the unique index; the loser reads the winner.
		err = s.collection.FindOne(ctx, keyFilter(key)).Decode(&out)
	}
	if err != nil {
		return nil, false, fmt.Errorf("get or create %s: %w", key, err)
	}
	return out.template(), out.ID == doc.ID, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (*store.Template, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var out templateDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return out.template(), nil
}

// SetDefault implements store.Store.
func (s *Store) SetDefault(ctx context.Context, id string, f store.Field, value string) (string, error) {
	if err := s.checkConnected(); err != nil {
		return "", err
	}
	if err := store.Validate(id, f); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	filter, update := setDefaultQuery(id, f, value, time.Now().UTC())
	opts := mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After)

	var out templateDoc
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", store.ErrNotFound
		}
	}
	if err != nil {
		return "", fmt.Errorf("set %s: %w", f, err)
	}
	if v := out.template().Value(f); v != nil {
		return *v, nil
	}
	return "", nil
}

func setDefaultQuery(id string, f store.Field, value string, now time.Time) (bson.D, bson.M) {
	// {field: nil} matches both null and missing fields.
	filter := bson.D{{Key: "_id", Value: id}, {Key: string(f), Value: nil}}
	update := bson.M{"$set": bson.M{string(f): value, "updated_at": now}}
	return filter, update
}

// MemoizeRenderedParams implements store.Store.
func (s *Store) MemoizeRenderedParams(ctx context.Context, id string, params map[string]any) (map[string]any, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	filter, update := memoizeQuery(id, params, time.Now().UTC())
	opts := mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After)

	var out templateDoc
	wrote := true
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		wrote = false
		err = s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, store.ErrNotFound
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("memoize rendered params: %w", err)
	}
	return out.RenderedParams, wrote, nil
}

func memoizeQuery(id string, params map[string]any, now time.Time) (bson.D, bson.M) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "$or", Value: bson.A{
			bson.M{"rendered_params": nil},
			bson.M{"rendered_params": bson.D{}},
		}},
	}
	update := bson.M{"$set": bson.M{"rendered_params": params, "updated_at": now}}
	return filter, update
}

// SetLogo implements store.Store.
func (s *Store) SetLogo(ctx context.Context, id string, logo map[string]any) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"logo": logo, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("set logo: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
