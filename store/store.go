// Package store defines the template repository used by the theme resolver.
// Implementations are in store/memory, store/postgres, store/mongo and
// store/redis.
//
// # No locks
//
// Concurrent resolves of the same composite key must not create duplicate
// rows, and concurrent first renders must not overwrite each other's
// snapshot. Both are handled by the database, never by an external lock:
//
//   - GetOrCreate relies on a unique constraint over the composite key
//     (INSERT ... ON CONFLICT DO NOTHING, upsert with $setOnInsert, HSETNX).
//   - SetDefault and MemoizeRenderedParams are conditional writes
//     (UPDATE ... WHERE col IS NULL, filter on a null field, HSETNX).
//
// A caller that loses a race reads back the winner's value.
package store

import (
	"context"
	"maps"
	"time"
)

// Key is the composite key of a template row.
type Key struct {
	Language    string `json:"language" bson:"language"`
	Type        string `json:"type" bson:"type"`
	SubjectType string `json:"subject_type" bson:"subject_type"`
	SubjectID   string `json:"subject_id" bson:"subject_id"`
}

// Validate reports ErrInvalidKey when a component is empty.
func (k Key) Validate() error {
	if k.Language == "" || k.Type == "" || k.SubjectType == "" || k.SubjectID == "" {
		return ErrInvalidKey
	}
	return nil
}

// String joins the components with ":".
func (k Key) String() string {
	return k.Language + ":" + k.Type + ":" + k.SubjectType + ":" + k.SubjectID
}

// Field names a default-filled column.
type Field string

// Default-filled fields.
const (
	FieldSubject Field = "subject"
	FieldBody    Field = "body"
	FieldTheme   Field = "theme"
)

// Valid reports whether f is a default-filled field.
func (f Field) Valid() bool {
	switch f {
	case FieldSubject, FieldBody, FieldTheme:
		return true
	}
	return false
}

// Template is a persisted template row. Nil string fields have not been
// filled yet.
type Template struct {
	ID      string
	Key     Key
	Subject *string
	Body    *string
	Theme   *string
	// Logo is stored as loosely typed JSON: path, width and height may be
	// strings or numbers.
	Logo map[string]any
	// RenderedParams is the first render context, written once.
	RenderedParams map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Value returns the value of f, or nil.
func (t *Template) Value(f Field) *string {
	switch f {
	case FieldSubject:
		return t.Subject
	case FieldBody:
		return t.Body
	case FieldTheme:
		return t.Theme
	}
	return nil
}

// SetValue sets f on the in-memory row.
func (t *Template) SetValue(f Field, v string) {
	switch f {
	case FieldSubject:
		t.Subject = &v
	case FieldBody:
		t.Body = &v
	case FieldTheme:
		t.Theme = &v
	}
}

// HasRenderedParams reports whether the render snapshot is set.
func (t *Template) HasRenderedParams() bool {
	return len(t.RenderedParams) > 0
}

// Clone returns a deep copy of the top-level fields.
func (t *Template) Clone() *Template {
	c := *t
	c.Subject = clonePtr(t.Subject)
	c.Body = clonePtr(t.Body)
	c.Theme = clonePtr(t.Theme)
	c.Logo = maps.Clone(t.Logo)
	c.RenderedParams = maps.Clone(t.RenderedParams)
	return &c
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Store is the template repository.
//
// All operations must be safe for concurrent use across processes.
type Store interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// GetOrCreate returns the row for key, creating it with every field
	// unset when absent. created reports whether this call created it.
	GetOrCreate(ctx context.Context, key Key) (t *Template, created bool, err error)

	// Get returns the row with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Template, error)

	// SetDefault writes value to f only if f is currently null and returns
	// the stored value after the call.
	SetDefault(ctx context.Context, id string, f Field, value string) (string, error)

	// MemoizeRenderedParams writes params only if the stored snapshot is
	// empty. It returns the stored snapshot after the call and whether this
	// call wrote it.
	MemoizeRenderedParams(ctx context.Context, id string, params map[string]any) (map[string]any, bool, error)

	// SetLogo replaces the logo of a row. It is an administrative write.
	SetLogo(ctx context.Context, id string, logo map[string]any) error
}
