// Package gcs stores logos in Google Cloud Storage and resolves gs://
// references to signed URLs.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rbaliyan/notify/logo"
	"google.golang.org/api/option"
)

// Scheme is the URI scheme handled by Store.
const Scheme = "gs"

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Store implements logo.Store on Google Cloud Storage.
type Store struct {
	client        *storage.Client
	bucket        string
	prefix        string
	expires       time.Duration
	publicBaseURL string
	accessID      string
	privateKey    []byte
	now           func() time.Time
	logger        *slog.Logger
}

var _ logo.Store = (*Store)(nil)

// New creates a GCS logo store.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := &options{
		prefix:  "logos",
		expires: 7 * 24 * time.Hour,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}

	clientOpts, err := buildClientOptions(o)
	if err != nil {
		return nil, fmt.Errorf("build client options: %w", err)
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &Store{
		client:        client,
		bucket:        o.bucket,
		prefix:        o.prefix,
		expires:       o.expires,
		publicBaseURL: strings.TrimRight(o.publicBaseURL, "/"),
		accessID:      o.accessID,
		privateKey:    o.privateKey,
		now:           time.Now,
		logger:        o.logger,
	}, nil
}

func buildClientOptions(o *options) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	switch {
	case o.credentialsJSON != nil:
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{cloudPlatformScope},
			CredentialsJSON: o.credentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials from json: %w", err)
		}
		opts = append(opts, option.WithAuthCredentials(creds))

	case o.credentialsFile != "":
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{cloudPlatformScope},
			CredentialsFile: o.credentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials from file: %w", err)
		}
		opts = append(opts, option.WithAuthCredentials(creds))

	case o.apiKey != "":
		opts = append(opts, option.WithAPIKey(o.apiKey))

	default:
		// Application Default Credentials.
	}

	if o.endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.endpoint))
	}
	return opts, nil
}

// ResolveURL returns a URL for a gs:// reference. With a public base URL the
// object URL is built directly; otherwise a V4 signed GET URL is issued.
// Signing uses the configured signer key, or the client credentials.
func (s *Store) ResolveURL(_ context.Context, ref string) (string, error) {
	bucket, key, err := logo.ParseURI(ref, Scheme)
	if err != nil {
		return "", err
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}

	u, err := s.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
		Method:         http.MethodGet,
		Expires:        s.now().Add(s.expires),
		Scheme:         storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign gcs object: %w", err)
	}
	return u, nil
}

// Upload stores a logo and returns its gs:// reference.
func (s *Store) Upload(ctx context.Context, filename, contentType string, content io.Reader) (string, error) {
	key := s.generateKey(filename)

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy content to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer: %w", err)
	}

	s.logger.Debug("uploaded logo to gcs", "bucket", s.bucket, "key", key)
	return logo.FormatURI(Scheme, s.bucket, key), nil
}

// Close closes the GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) generateKey(filename string) string {
	return path.Join(s.prefix, uuid.New().String(), path.Base(filename))
}
