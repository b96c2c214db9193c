// Package theme resolves the template row for a notification and renders its
// subject and body.
//
// A row is identified by (language, type, subject type, subject id) and is
// created on first use. Its subject, body and theme start unset and are
// filled from the translation catalog the first time they are needed, one
// field at a time. Rendering replaces every ##key## token in the subject and
// body with the matching string value of the render context. The first
// render context is stored on the row and never overwritten.
package theme

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/rbaliyan/notify/catalog"
	"github.com/rbaliyan/notify/logo"
	"github.com/rbaliyan/notify/store"
)

// Built-in theme names.
const (
	// DefaultTheme is stored on rows that have no theme yet.
	DefaultTheme = "ark"
	// EmptyTheme renders the logo as an inline <img> tag.
	EmptyTheme = "empty"
)

// DefaultModuleKey prefixes catalog keys.
const DefaultModuleKey = "notifications"

// BodyHTMLPlaceholder is stored as the body when the caller provides
// body_html and the catalog has no default body.
const BodyHTMLPlaceholder = "##body_html##"

// Render context keys with a reserved meaning.
const (
	ParamBodyHTML    = "body_html"
	ParamSubject     = "subject"
	ParamLogo        = "logo"
	ParamNow         = "now"
	ParamFromAddress = "from_address"
	ParamFromName    = "from_name"
)

// Request identifies the template to render and carries caller parameters.
type Request struct {
	Language    string
	Type        string
	SubjectType string
	SubjectID   string
	Params      map[string]any
}

// Key returns the composite key of the request.
func (r Request) Key() store.Key {
	return store.Key{
		Language:    r.Language,
		Type:        r.Type,
		SubjectType: r.SubjectType,
		SubjectID:   r.SubjectID,
	}
}

// Content is the result of a render. It is built fresh on every call.
type Content struct {
	TemplateID  string
	Theme       string
	FromAddress string
	FromName    string
	Subject     string
	BodyHTML    string
	// Params is the render context used for this call.
	Params map[string]any
}

// Renderer renders notification content.
type Renderer interface {
	Resolve(ctx context.Context, req Request) (*Content, error)
}

// Resolver renders templates backed by a store and a catalog.
type Resolver struct {
	store         store.Store
	catalog       catalog.Catalog
	moduleKey     string
	logos         logo.URLResolver
	fromAddress   string
	fromName      string
	layouts       map[string]string
	defaultLayout string
	now           func() time.Time
	logger        *slog.Logger
}

var _ Renderer = (*Resolver)(nil)

// New creates a resolver over s and c.
func New(s store.Store, c catalog.Catalog, opts ...Option) *Resolver {
	o := newOptions(opts...)
	return &Resolver{
		store:         s,
		catalog:       c,
		moduleKey:     o.moduleKey,
		logos:         o.logos,
		fromAddress:   o.fromAddress,
		fromName:      o.fromName,
		layouts:       o.layouts,
		defaultLayout: o.defaultLayout,
		now:           o.now,
		logger:        o.logger,
	}
}

// CatalogKey returns the catalog key of a default-filled field.
func (r *Resolver) CatalogKey(typ, subjectType string, f store.Field) string {
	return r.moduleKey + "." + typ + "." + subjectType + "." + string(f)
}

// Resolve gets or creates the template row for req, fills missing defaults
// and renders it.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Content, error) {
	key := req.Key()
	if err := key.Validate(); err != nil {
		return nil, err
	}

	row, created, err := r.store.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	if created {
		r.logger.Debug("template created", "key", key.String(), "id", row.ID)
	}

	if err := r.fillDefaults(ctx, row, req); err != nil {
		return nil, err
	}

	hadSnapshot := row.HasRenderedParams()
	rc := r.renderContext(ctx, row, req)

	subject := deref(row.Subject)
	if s, ok := req.Params[ParamSubject].(string); ok && s != "" {
		subject = s
	}

	repl := replacer(rc)
	subject = repl.Replace(subject)
	body := repl.Replace(deref(row.Body))
	rc[ParamBodyHTML] = body

	if !hadSnapshot {
		_, wrote, err := r.store.MemoizeRenderedParams(ctx, row.ID, rc)
		if err != nil {
			return nil, err
		}
		if wrote {
			r.logger.Debug("template render params stored", "id", row.ID)
		}
	}

	return &Content{
		TemplateID:  row.ID,
		Theme:       deref(row.Theme),
		FromAddress: r.stringParam(req.Params, ParamFromAddress, r.fromAddress),
		FromName:    r.stringParam(req.Params, ParamFromName, r.fromName),
		Subject:     subject,
		BodyHTML:    body,
		Params:      rc,
	}, nil
}

// fillDefaults persists subject, theme and body in that order, each only
// when it is still unset.
func (r *Resolver) fillDefaults(ctx context.Context, row *store.Template, req Request) error {
	if row.Subject == nil {
		k := r.CatalogKey(req.Type, req.SubjectType, store.FieldSubject)
		if err := r.setDefault(ctx, row, store.FieldSubject, r.catalog.Lookup(req.Language, k)); err != nil {
			return err
		}
	}

	if row.Theme == nil {
		if err := r.setDefault(ctx, row, store.FieldTheme, DefaultTheme); err != nil {
			return err
		}
	}

	if row.Body == nil {
		k := r.CatalogKey(req.Type, req.SubjectType, store.FieldBody)
		body := r.catalog.Lookup(req.Language, k)
		if _, ok := req.Params[ParamBodyHTML]; ok && catalog.IsMiss(k, body) {
			body = BodyHTMLPlaceholder
		}
		if err := r.setDefault(ctx, row, store.FieldBody, body); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) setDefault(ctx context.Context, row *store.Template, f store.Field, value string) error {
	stored, err := r.store.SetDefault(ctx, row.ID, f, value)
	if err != nil {
		return err
	}
	row.SetValue(f, stored)
	return nil
}

// renderContext merges the row attributes with the caller parameters and
// adds the localized date and the logo.
func (r *Resolver) renderContext(ctx context.Context, row *store.Template, req Request) map[string]any {
	rc := map[string]any{
		"id":           row.ID,
		"language":     row.Key.Language,
		"type":         row.Key.Type,
		"subject_type": row.Key.SubjectType,
		"subject_id":   row.Key.SubjectID,
		"subject":      deref(row.Subject),
		"body":         deref(row.Body),
		"theme":        deref(row.Theme),
	}
	maps.Copy(rc, req.Params)
	rc[ParamNow] = r.now().Format(r.layout(req.Language))

	if deref(row.Theme) == EmptyTheme {
		rc[ParamLogo] = r.logoTag(ctx, row.Logo)
	} else {
		rc[ParamLogo] = maps.Clone(row.Logo)
	}
	return rc
}

func (r *Resolver) layout(language string) string {
	if l, ok := r.layouts[language]; ok {
		return l
	}
	return r.defaultLayout
}

func (r *Resolver) logoTag(ctx context.Context, raw map[string]any) string {
	l := ParseLogo(raw)
	if r.logos != nil && l.Path != "" {
		u, err := r.logos.ResolveURL(ctx, l.Path)
		if err != nil {
			r.logger.Warn("logo url not resolved", "path", l.Path, "error", err)
		} else {
			l.Path = u
		}
	}
	return l.Tag()
}

func (r *Resolver) stringParam(params map[string]any, key, fallback string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
