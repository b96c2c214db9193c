package gcs

import (
	"log/slog"
	"time"
)

type options struct {
	bucket        string
	prefix        string
	expires       time.Duration
	publicBaseURL string

	// Emulators and tests.
	endpoint string

	// Mutually exclusive, first set wins.
	credentialsJSON []byte
	credentialsFile string
	apiKey          string

	// Service account used to sign URLs locally.
	accessID   string
	privateKey []byte

	logger *slog.Logger
}

// Option configures the GCS logo store.
type Option func(*options)

// WithBucket sets the bucket uploads go to (required).
func WithBucket(bucket string) Option {
	return func(o *options) {
		o.bucket = bucket
	}
}

// WithPrefix sets the object prefix for uploads. Default is "logos".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithExpires sets how long signed URLs stay valid. Default is 7 days.
func WithExpires(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.expires = d
		}
	}
}

// WithPublicBaseURL serves logos from a public bucket or CDN instead of
// signing. The object name is appended to base.
func WithPublicBaseURL(base string) Option {
	return func(o *options) {
		o.publicBaseURL = base
	}
}

// WithEndpoint sets a custom GCS endpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithCredentialsJSON sets service account credentials from JSON bytes.
func WithCredentialsJSON(json []byte) Option {
	return func(o *options) {
		o.credentialsJSON = json
	}
}

// WithCredentialsFile sets the path of a service account JSON file.
func WithCredentialsFile(path string) Option {
	return func(o *options) {
		o.credentialsFile = path
	}
}

// WithAPIKey authenticates with an API key. Signing then needs WithSigner.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithSigner signs URLs locally with a service account email and its PEM
// private key, instead of calling the IAM signBlob API.
func WithSigner(accessID string, privateKey []byte) Option {
	return func(o *options) {
		o.accessID = accessID
		o.privateKey = privateKey
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
