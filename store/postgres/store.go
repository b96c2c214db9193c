// Package postgres provides a PostgreSQL implementation of store.Store.
//
// The composite key is protected by a unique index; GetOrCreate inserts with
// ON CONFLICT DO NOTHING and reads the existing row when it loses the race.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/rbaliyan/notify/internal/ids"
	"github.com/rbaliyan/notify/internal/jsoncodec"
	"github.com/rbaliyan/notify/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	table     string
	connected int32
	logger    *slog.Logger
}

// New creates a store over db. Call Connect to create the schema.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		table:  pq.QuoteIdentifier(o.table),
		logger: o.logger,
	}
}

// NewFromDB wraps a database/sql connection.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Open connects to dsn with the lib/pq driver.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return New(db, opts...), nil
}

// Connect pings the database and creates the table and unique index.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return errors.New("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}
	if s.opts.migrate {
		if err := s.ensureSchema(ctx); err != nil {
			atomic.StoreInt32(&s.connected, 0)
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	s.logger.Info("connected to PostgreSQL", "table", s.opts.table)
	return nil
}

// Close marks the store as disconnected. The caller owns the connection.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		language VARCHAR(16) NOT NULL,
		type VARCHAR(32) NOT NULL,
		subject_type VARCHAR(255) NOT NULL,
		subject_id VARCHAR(255) NOT NULL,
		subject TEXT,
		body TEXT,
		theme VARCHAR(64),
		logo JSONB,
		rendered_params JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	uniqueKey := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (language, type, subject_type, subject_id)`,
		pq.QuoteIdentifier("uq_"+s.opts.table+"_key"), s.table)
	if _, err := s.db.ExecContext(ctx, uniqueKey); err != nil {
		return fmt.Errorf("create unique index: %w", err)
	}
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

const columns = `id, language, type, subject_type, subject_id, subject, body, theme,
	logo, rendered_params, created_at, updated_at`

type row struct {
	ID             string         `db:"id"`
	Language       string         `db:"language"`
	Type           string         `db:"type"`
	SubjectType    string         `db:"subject_type"`
	SubjectID      string         `db:"subject_id"`
	Subject        sql.NullString `db:"subject"`
	Body           sql.NullString `db:"body"`
	Theme          sql.NullString `db:"theme"`
	Logo           []byte         `db:"logo"`
	RenderedParams []byte         `db:"rendered_params"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *row) template() (*store.Template, error) {
	t := &store.Template{
		ID:        r.ID,
		Key:       store.Key{Language: r.Language, Type: r.Type, SubjectType: r.SubjectType, SubjectID: r.SubjectID},
		Subject:   nullable(r.Subject),
		Body:      nullable(r.Body),
		Theme:     nullable(r.Theme),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	var err error
	if t.Logo, err = decodeJSON(r.Logo); err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	if t.RenderedParams, err = decodeJSON(r.RenderedParams); err != nil {
		return nil, fmt.Errorf("decode rendered params: %w", err)
	}
	return t, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func decodeJSON(b []byte) (map[string]any, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := jsoncodec.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
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

	now := time.Now().UTC()
	insert := fmt.Sprintf(`INSERT INTO %s (id, language, type, subject_type, subject_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (language, type, subject_type, subject_id) DO NOTHING
		RETURNING %s`, s.table, columns)

	var r row
	err := s.db.QueryRowxContext(ctx, insert,
		ids.NewRowID(), key.Language, key.Type, key.SubjectType, key.SubjectID, now,
	).StructScan(&r)
	created := true
	if errors.Is(err, sql.ErrNoRows) {
		created = false
		sel := fmt.Sprintf(`SELECT %s FROM %s
			WHERE language = $1 AND type = $2 AND subject_type = $3 AND subject_id = $4`, columns, s.table)
		err = s.db.GetContext(ctx, &r, sel, key.Language, key.Type, key.SubjectType, key.SubjectID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("get or create %s: %w", key, err)
	}
	t, err := r.template()
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
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var r row
	err := s.db.GetContext(ctx, &r, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns, s.table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return r.template()
}

// SetDefault implements store.Store with a conditional UPDATE.
func (s *Store) SetDefault(ctx context.Context, id string, f store.Field, value string) (string, error) {
	if err := s.checkConnected(); err != nil {
		return "", err
	}
	if err := store.Validate(id, f); err != nil {
		return "", err
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	// f is one of the validated column names.
	col := string(f)
	update := fmt.Sprintf(`UPDATE %s SET %s = $2, updated_at = NOW() WHERE id = $1 AND %s IS NULL RETURNING %s`,
		s.table, col, col, col)
	var stored sql.NullString
	err := s.db.QueryRowxContext(ctx, update, id, value).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.QueryRowxContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, col, s.table), id).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
	}
	if err != nil {
		return "", fmt.Errorf("set %s: %w", col, err)
	}
	return stored.String, nil
}

// MemoizeRenderedParams implements store.Store with a conditional UPDATE.
func (s *Store) MemoizeRenderedParams(ctx context.Context, id string, params map[string]any) (map[string]any, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, store.ErrInvalidID
	}
	data, err := jsoncodec.Marshal(params)
	if err != nil {
		return nil, false, fmt.Errorf("encode rendered params: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	update := fmt.Sprintf(`UPDATE %s SET rendered_params = $2, updated_at = NOW()
		WHERE id = $1 AND (rendered_params IS NULL OR rendered_params = '{}'::jsonb)
		RETURNING rendered_params`, s.table)
	var stored []byte
	err = s.db.QueryRowxContext(ctx, update, id, data).Scan(&stored)
	wrote := true
	if errors.Is(err, sql.ErrNoRows) {
		wrote = false
		err = s.db.QueryRowxContext(ctx, fmt.Sprintf(`SELECT rendered_params FROM %s WHERE id = $1`, s.table), id).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, store.ErrNotFound
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("memoize rendered params: %w", err)
	}
	out, err := decodeJSON(stored)
	if err != nil {
		return nil, false, fmt.Errorf("decode rendered params: %w", err)
	}
	return out, wrote, nil
}

// SetLogo implements store.Store.
func (s *Store) SetLogo(ctx context.Context, id string, logo map[string]any) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrInvalidID
	}
	data, err := jsoncodec.Marshal(logo)
	if err != nil {
		return fmt.Errorf("encode logo: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET logo = $2, updated_at = NOW() WHERE id = $1`, s.table), id, data)
	if err != nil {
		return fmt.Errorf("set logo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
