// Package s3 stores logos in AWS S3 and resolves s3:// references to
// presigned GET URLs.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rbaliyan/notify/logo"
)

// Scheme is the URI scheme handled by Store.
const Scheme = "s3"

// Store implements logo.Store on AWS S3.
type Store struct {
	client        *s3.Client
	presign       *s3.PresignClient
	tm            *transfermanager.Client
	bucket        string
	prefix        string
	expires       time.Duration
	publicBaseURL string
	logger        *slog.Logger
}

var _ logo.Store = (*Store)(nil)

// New creates an S3 logo store.
// The context is used for AWS credential loading and configuration.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := &options{
		region:  "us-east-1",
		prefix:  "logos",
		expires: 7 * 24 * time.Hour,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	awsCfg, err := buildAWSConfig(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("build aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(opts *s3.Options) {
		if o.endpoint != "" {
			opts.BaseEndpoint = aws.String(o.endpoint)
			opts.UsePathStyle = o.usePathStyle
		}
	})

	return &Store{
		client:        client,
		presign:       s3.NewPresignClient(client),
		tm:            transfermanager.New(client),
		bucket:        o.bucket,
		prefix:        o.prefix,
		expires:       o.expires,
		publicBaseURL: strings.TrimRight(o.publicBaseURL, "/"),
		logger:        o.logger,
	}, nil
}

func buildAWSConfig(ctx context.Context, o *options) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{config.WithRegion(o.region)}

	switch {
	case o.accessKey != "" && o.secretKey != "":
		creds := credentials.NewStaticCredentialsProvider(o.accessKey, o.secretKey, o.sessionToken)
		optFns = append(optFns, config.WithCredentialsProvider(creds))

	case o.roleARN != "":
		baseCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(o.region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("load base config for role: %w", err)
		}
		optFns = append(optFns, config.WithCredentialsProvider(
			newAssumeRoleProvider(baseCfg, o.roleARN, o.roleSessionName, o.externalID)))

	default:
		// Default credential chain: environment, shared files, IRSA, instance roles.
	}

	return config.LoadDefaultConfig(ctx, optFns...)
}

// ResolveURL returns a URL for an s3:// reference. With a public base URL
// the object URL is built directly; otherwise a presigned GET is issued.
func (s *Store) ResolveURL(ctx context.Context, ref string) (string, error) {
	bucket, key, err := logo.ParseURI(ref, Scheme)
	if err != nil {
		return "", err
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expires))
	if err != nil {
		return "", fmt.Errorf("presign s3 object: %w", err)
	}
	return req.URL, nil
}

// Upload stores a logo and returns its s3:// reference.
func (s *Store) Upload(ctx context.Context, filename, contentType string, content io.Reader) (string, error) {
	key := s.generateKey(filename)

	_, err := s.tm.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	s.logger.Debug("uploaded logo to s3", "bucket", s.bucket, "key", key)
	return logo.FormatURI(Scheme, s.bucket, key), nil
}

func (s *Store) generateKey(filename string) string {
	return path.Join(s.prefix, uuid.New().String(), path.Base(filename))
}
