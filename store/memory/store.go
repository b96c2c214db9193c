// Package memory provides an in-memory template store for tests and single
// process deployments. Data is not persisted.
package memory

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/notify/internal/ids"
	"github.com/rbaliyan/notify/store"
)

// Store implements store.Store.
type Store struct {
	rows      sync.Map // id -> *row
	keys      sync.Map // store.Key -> id
	connected int32
}

type row struct {
	mu sync.Mutex
	t  *store.Template
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
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

// GetOrCreate implements store.Store. The key index is claimed with
// LoadOrStore, so concurrent callers agree on one id.
func (s *Store) GetOrCreate(_ context.Context, key store.Key) (*store.Template, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	fresh := &row{t: &store.Template{ID: ids.NewRowID(), Key: key, CreatedAt: now, UpdatedAt: now}}
	// Publish the row before the key so a winner's id always resolves.
	s.rows.Store(fresh.t.ID, fresh)
	v, loaded := s.keys.LoadOrStore(key, fresh.t.ID)
	if loaded {
		s.rows.Delete(fresh.t.ID)
	}
	r, err := s.row(v.(string))
	if err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.Clone(), !loaded, nil
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, id string) (*store.Template, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	r, err := s.row(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.Clone(), nil
}

// SetDefault implements store.Store.
func (s *Store) SetDefault(_ context.Context, id string, f store.Field, value string) (string, error) {
	if err := s.checkConnected(); err != nil {
		return "", err
	}
	if err := store.Validate(id, f); err != nil {
		return "", err
	}
	r, err := s.row(id)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur := r.t.Value(f); cur != nil {
		return *cur, nil
	}
	r.t.SetValue(f, value)
	r.t.UpdatedAt = time.Now().UTC()
	return value, nil
}

// MemoizeRenderedParams implements store.Store.
func (s *Store) MemoizeRenderedParams(_ context.Context, id string, params map[string]any) (map[string]any, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, store.ErrInvalidID
	}
	r, err := s.row(id)
	if err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t.HasRenderedParams() {
		return maps.Clone(r.t.RenderedParams), false, nil
	}
	r.t.RenderedParams = maps.Clone(params)
	r.t.UpdatedAt = time.Now().UTC()
	return maps.Clone(params), true, nil
}

// SetLogo implements store.Store.
func (s *Store) SetLogo(_ context.Context, id string, logo map[string]any) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	r, err := s.row(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t.Logo = maps.Clone(logo)
	r.t.UpdatedAt = time.Now().UTC()
	return nil
}

// Len returns the number of rows.
func (s *Store) Len() int {
	n := 0
	s.keys.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *Store) row(id string) (*row, error) {
	if id == "" {
		return nil, store.ErrInvalidID
	}
	v, ok := s.rows.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.(*row), nil
}
