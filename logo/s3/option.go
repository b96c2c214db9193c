package s3

import (
	"log/slog"
	"time"
)

type options struct {
	bucket        string
	prefix        string
	region        string
	expires       time.Duration
	publicBaseURL string

	// S3-compatible services (MinIO, LocalStack).
	endpoint     string
	usePathStyle bool

	accessKey    string
	secretKey    string
	sessionToken string

	roleARN         string
	roleSessionName string
	externalID      string

	logger *slog.Logger
}

// Option configures the S3 logo store.
type Option func(*options)

// WithBucket sets the bucket uploads go to (required).
func WithBucket(bucket string) Option {
	return func(o *options) {
		o.bucket = bucket
	}
}

// WithPrefix sets the key prefix for uploads. Default is "logos".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithRegion sets the AWS region. Default is "us-east-1".
func WithRegion(region string) Option {
	return func(o *options) {
		if region != "" {
			o.region = region
		}
	}
}

// WithExpires sets how long presigned URLs stay valid. Default is 7 days,
// the maximum S3 accepts for SigV4.
func WithExpires(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.expires = d
		}
	}
}

// WithPublicBaseURL serves logos from a public bucket or CDN instead of
// presigning. The object key is appended to base.
func WithPublicBaseURL(base string) Option {
	return func(o *options) {
		o.publicBaseURL = base
	}
}

// WithEndpoint sets a custom S3 endpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithPathStyle enables path-style addressing.
func WithPathStyle(enabled bool) Option {
	return func(o *options) {
		o.usePathStyle = enabled
	}
}

// WithStaticCredentials sets static AWS credentials.
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}

// WithSessionToken sets a session token for temporary credentials.
func WithSessionToken(token string) Option {
	return func(o *options) {
		o.sessionToken = token
	}
}

// WithAssumeRole assumes roleARN through STS.
// sessionName defaults to "notify-logo-store".
func WithAssumeRole(roleARN, sessionName string) Option {
	return func(o *options) {
		o.roleARN = roleARN
		o.roleSessionName = sessionName
		if sessionName == "" {
			o.roleSessionName = "notify-logo-store"
		}
	}
}

// WithExternalID sets the external ID for role assumption.
func WithExternalID(externalID string) Option {
	return func(o *options) {
		o.externalID = externalID
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
