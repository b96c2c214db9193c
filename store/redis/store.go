// Package redis provides a Redis implementation of store.Store.
//
// Each row is a hash under "{prefix}:row:{id}". The composite key index is a
// string under "{prefix}:key:{key}" claimed with SETNX. Default fills and the
// render snapshot are written with HSETNX, so the first writer wins.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rbaliyan/notify/internal/ids"
	"github.com/rbaliyan/notify/internal/jsoncodec"
	"github.com/rbaliyan/notify/store"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "notify:tpl"

// DefaultTimeout bounds a single store operation.
const DefaultTimeout = 5 * time.Second

const (
	fieldID             = "id"
	fieldLanguage       = "language"
	fieldType           = "type"
	fieldSubjectType    = "subject_type"
	fieldSubjectID      = "subject_id"
	fieldLogo           = "logo"
	fieldRenderedParams = "rendered_params"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store using Redis.
type Store struct {
	client    redis.Cmdable
	prefix    string
	timeout   time.Duration
	logger    *slog.Logger
	connected int32
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(p string) Option {
	return func(s *Store) {
		if p != "" {
			s.prefix = p
		}
	}
}

// WithTimeout sets the per-operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a store over client.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect pings the server.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	if s.client == nil {
		atomic.StoreInt32(&s.connected, 0)
		return errors.New("redis: client is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("redis ping: %w", err)
	}
	s.logger.Info("connected to Redis", "prefix", s.prefix)
	return nil
}

// Close marks the store as disconnected. The caller owns the client.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

func (s *Store) rowKey(id string) string     { return s.prefix + ":row:" + id }
func (s *Store) indexKey(k store.Key) string { return s.prefix + ":key:" + k.String() }

// GetOrCreate implements store.Store. The candidate row is written before
// the index is claimed, so a winner's id always resolves to a full row.
func (s *Store) GetOrCreate(ctx context.Context, key store.Key) (*store.Template, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id := ids.NewRowID()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, s.rowKey(id),
		fieldID, id,
		fieldLanguage, key.Language,
		fieldType, key.Type,
		fieldSubjectType, key.SubjectType,
		fieldSubjectID, key.SubjectID,
		fieldCreatedAt, now,
		fieldUpdatedAt, now,
	).Err(); err != nil {
		return nil, false, fmt.Errorf("write row: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.indexKey(key), id, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("claim key %s: %w", key, err)
	}
	if !created {
		if err := s.client.Del(ctx, s.rowKey(id)).Err(); err != nil {
			s.logger.Warn("failed to remove losing row", "id", id, "error", err)
		}
		if id, err = s.client.Get(ctx, s.indexKey(key)).Result(); err != nil {
			return nil, false, fmt.Errorf("read key %s: %w", key, err)
		}
	}
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return t, created, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (*store.Template, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.load(ctx, id)
}

func (s *Store) load(ctx context.Context, id string) (*store.Template, error) {
	h, err := s.client.HGetAll(ctx, s.rowKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	if len(h) == 0 {
		return nil, store.ErrNotFound
	}
	return decode(h)
}

func decode(h map[string]string) (*store.Template, error) {
	t := &store.Template{
		ID: h[fieldID],
		Key: store.Key{
			Language:    h[fieldLanguage],
			Type:        h[fieldType],
			SubjectType: h[fieldSubjectType],
			SubjectID:   h[fieldSubjectID],
		},
	}
	for _, f := range []store.Field{store.FieldSubject, store.FieldBody, store.FieldTheme} {
		if v, ok := h[string(f)]; ok {
			t.SetValue(f, v)
		}
	}
	if v := h[fieldLogo]; v != "" {
		if err := jsoncodec.Unmarshal([]byte(v), &t.Logo); err != nil {
			return nil, fmt.Errorf("decode logo: %w", err)
		}
	}
	if v := h[fieldRenderedParams]; v != "" {
		if err := jsoncodec.Unmarshal([]byte(v), &t.RenderedParams); err != nil {
			return nil, fmt.Errorf("decode rendered params: %w", err)
		}
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, h[fieldCreatedAt])
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, h[fieldUpdatedAt])
	return t, nil
}

// setOnce writes field with HSETNX on an existing row and returns the
// stored value.
func (s *Store) setOnce(ctx context.Context, id, field, value string) (string, bool, error) {
	n, err := s.client.Exists(ctx, s.rowKey(id)).Result()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return "", false, store.ErrNotFound
	}
	wrote, err := s.client.HSetNX(ctx, s.rowKey(id), field, value).Result()
	if err != nil {
		return "", false, err
	}
	if wrote {
		s.client.HSet(ctx, s.rowKey(id), fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano))
		return value, true, nil
	}
	stored, err := s.client.HGet(ctx, s.rowKey(id), field).Result()
	if err != nil {
		return "", false, err
	}
	return stored, false, nil
}

// SetDefault implements store.Store.
func (s *Store) SetDefault(ctx context.Context, id string, f store.Field, value string) (string, error) {
	if err := s.checkConnected(); err != nil {
		return "", err
	}
	if err := store.Validate(id, f); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, _, err := s.setOnce(ctx, id, string(f), value)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("set %s: %w", f, err)
	}
	return v, err
}

// MemoizeRenderedParams implements store.Store. An empty params map is
// never written, so the slot stays open for a later render.
func (s *Store) MemoizeRenderedParams(ctx context.Context, id string, params map[string]any) (map[string]any, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, store.ErrInvalidID
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if len(params) == 0 {
		t, err := s.load(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return t.RenderedParams, false, nil
	}
	data, err := jsoncodec.Marshal(params)
	if err != nil {
		return nil, false, fmt.Errorf("encode rendered params: %w", err)
	}
	stored, wrote, err := s.setOnce(ctx, id, fieldRenderedParams, string(data))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("memoize rendered params: %w", err)
	}
	var out map[string]any
	if err := jsoncodec.Unmarshal([]byte(stored), &out); err != nil {
		return nil, false, fmt.Errorf("decode rendered params: %w", err)
	}
	return out, wrote, nil
}

// SetLogo implements store.Store.
func (s *Store) SetLogo(ctx context.Context, id string, logo map[string]any) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}
	data, err := jsoncodec.Marshal(logo)
	if err != nil {
		return fmt.Errorf("encode logo: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.client.Exists(ctx, s.rowKey(id)).Result()
	if err != nil {
		return fmt.Errorf("set logo: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return s.client.HSet(ctx, s.rowKey(id),
		fieldLogo, string(data),
		fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
}
