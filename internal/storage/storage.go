// Package storage issues presigned S3 URLs for document and payment proof
// uploads. Files never pass through the API server.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/neadvenduro/advenduro/internal/config"
)

// ErrNotConfigured is returned when no bucket is configured.
var ErrNotConfigured = errors.New("object storage is not configured")

// Options configures a Presigner.
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Endpoint overrides the S3 endpoint, e.g. for MinIO. Path-style
	// addressing is used when it is set.
	Endpoint         string
	SSE              string
	BucketKeyEnabled bool
	PutTTL           time.Duration
	GetTTL           time.Duration
}

// OptionsFromConfig extracts the storage options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Region:           cfg.AwsRegion,
		AccessKeyID:      cfg.AwsAccessKeyID,
		SecretAccessKey:  cfg.AwsSecretAccessKey,
		Bucket:           cfg.S3Bucket,
		Endpoint:         cfg.S3Endpoint,
		SSE:              cfg.S3SSE,
		BucketKeyEnabled: cfg.S3BucketKeyEnabled,
		PutTTL:           cfg.PresignPutTTL,
		GetTTL:           cfg.PresignGetTTL,
	}
}

// PresignedRequest is a URL the client uses directly against the bucket,
// with the headers it must send along.
type PresignedRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Key     string            `json:"key"`
}

// Presigner signs S3 requests.
type Presigner struct {
	opts    Options
	presign *s3.PresignClient
}

// New builds a Presigner. Static credentials are used when both halves are
// set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, opts Options) (*Presigner, error) {
	if opts.Bucket == "" {
		return nil, ErrNotConfigured
	}
	if opts.PutTTL <= 0 {
		opts.PutTTL = 600 * time.Second
	}
	if opts.GetTTL <= 0 {
		opts.GetTTL = 300 * time.Second
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Presigner{opts: opts, presign: s3.NewPresignClient(client)}, nil
}

// PresignPut returns a time-limited upload URL for key.
func (p *Presigner) PresignPut(ctx context.Context, key, contentType string) (*PresignedRequest, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.opts.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	switch p.opts.SSE {
	case "AES256":
		in.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		in.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if p.opts.BucketKeyEnabled {
			in.BucketKeyEnabled = aws.Bool(true)
		}
	}

	req, err := p.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(p.opts.PutTTL))
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}
	return toRequest(key, req.URL, req.Method, req.SignedHeader), nil
}

// PresignGet returns a time-limited download URL for key.
func (p *Presigner) PresignGet(ctx context.Context, key string) (*PresignedRequest, error) {
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.opts.GetTTL))
	if err != nil {
		return nil, fmt.Errorf("presign get %s: %w", key, err)
	}
	return toRequest(key, req.URL, req.Method, nil), nil
}

func toRequest(key, url, method string, signed map[string][]string) *PresignedRequest {
	out := &PresignedRequest{URL: url, Method: method, Key: key}
	for name, values := range signed {
		if strings.EqualFold(name, "host") || len(values) == 0 {
			continue
		}
		if out.Headers == nil {
			out.Headers = make(map[string]string)
		}
		out.Headers[name] = values[0]
	}
	return out
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeFileName reduces a client-supplied file name to letters, digits, dots,
// dashes and underscores. It never returns an empty string.
func SafeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 120 {
		name = name[len(name)-120:]
	}
	return name
}

// UploadKey builds the object key for an upload:
// uploads/<ownerType>/<ownerID>/<unix millis>-<safe name>.
func UploadKey(ownerType string, ownerID int64, fileName string, now time.Time) string {
	return path.Join(
		"uploads",
		unsafeChars.ReplaceAllString(ownerType, "_"),
		strconv.FormatInt(ownerID, 10),
		strconv.FormatInt(now.UnixMilli(), 10)+"-"+SafeFileName(fileName),
	)
}
