package deps

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

const (
	ProviderMinio = "minio"
	ProviderS3    = "s3"

	// MinIO ignores the region but the SDK signer requires one.
	minioRegion = "us-east-1"
)

type StorageConfig struct {
	Provider string

	// minio
	Endpoint string
	Port     int
	UseSSL   bool

	AccessKey string
	SecretKey string

	// s3
	Region string
	Bucket string
}

// endpointURL is the base URL of a MinIO server.
func endpointURL(c StorageConfig) string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	host := c.Endpoint
	if c.Port > 0 {
		host = net.JoinHostPort(c.Endpoint, strconv.Itoa(c.Port))
	}
	return (&url.URL{Scheme: scheme, Host: host}).String()
}

// s3API is the slice of the S3 client used for reachability checks.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// Storage is an S3-compatible object store client.
type Storage struct {
	api    s3API
	bucket string
}

// NewStorage builds an S3 client for either provider. For MinIO the client
// talks path-style to a fixed endpoint. Static keys are used when given,
// otherwise the default AWS credential chain applies.
func NewStorage(ctx context.Context, c StorageConfig) (*Storage, error) {
	region := c.Region
	if c.Provider == ProviderMinio && region == "" {
		region = minioRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if c.AccessKey != "" || c.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "load AWS config")
	}

	var client *s3.Client
	switch c.Provider {
	case ProviderMinio:
		if c.Endpoint == "" {
			return nil, xerrors.New("minio endpoint is required")
		}
		base := endpointURL(c)
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(base)
			o.UsePathStyle = true
		})
	case ProviderS3:
		client = s3.NewFromConfig(awsCfg)
	default:
		return nil, xerrors.Newf("unknown storage provider %q", c.Provider)
	}

	return &Storage{api: client, bucket: c.Bucket}, nil
}

// Ping checks the configured bucket when there is one, otherwise that the
// credentials can list buckets at all.
func (s *Storage) Ping(ctx context.Context) error {
	if s == nil || s.api == nil {
		return xerrors.New("storage client not configured")
	}
	if s.bucket != "" {
		_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
		return err
	}
	_, err := s.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err
}
