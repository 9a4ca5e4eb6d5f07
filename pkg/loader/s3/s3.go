package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/recgraph/pkg/loader"
)

// S3EventFileLoader is an EventFileLoader implementation that loads event
// files from an Amazon S3 bucket. It uses the AWS SDK v2 for Go.
//
// The file path is used as the object key. A path of the form
// "s3://bucket/key" overrides the loader's default bucket.
type S3EventFileLoader struct {
	bucket string
	client *s3.Client

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewS3EventFileLoaderWithClient creates a new S3EventFileLoader using an
// existing s3.Client.
func NewS3EventFileLoaderWithClient(bucket string, client *s3.Client) *S3EventFileLoader {
	return &S3EventFileLoader{
		bucket: bucket,
		client: client,
		cache:  make(map[string][]byte),
	}
}

// NewS3EventFileLoaderParams defines the configuration parameters for
// creating a new S3EventFileLoader.
//
// Bucket specifies the default S3 bucket name.
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO).
// Region specifies the AWS region.
// AccessKey and SecretKey provide static credentials.
type NewS3EventFileLoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3EventFileLoader creates a new S3EventFileLoader using the provided
// parameters. It initializes an AWS S3 client with static credentials and
// the given endpoint/region.
//
// Example:
//
//	l, err := s3.NewS3EventFileLoader(ctx, s3.NewS3EventFileLoaderParams{
//		Bucket:    "events",
//		Endpoint:  "http://localhost:9000",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewS3EventFileLoader(ctx context.Context, params NewS3EventFileLoaderParams) (*S3EventFileLoader, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(params.Region),
		config.WithBaseEndpoint(params.Endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return NewS3EventFileLoaderWithClient(params.Bucket, client), nil
}

// ParseURI splits "s3://bucket/key" into bucket and key. ok is false when
// uri does not use the s3 scheme.
func ParseURI(uri string) (bucket string, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	return bucket, key, bucket != "" && key != ""
}

func (l *S3EventFileLoader) location(file loader.EventFile) (string, string, error) {
	if bucket, key, ok := ParseURI(file.FilePath); ok {
		return bucket, key, nil
	}
	if strings.HasPrefix(file.FilePath, "s3://") {
		return "", "", fmt.Errorf("invalid s3 uri %q", file.FilePath)
	}
	if l.bucket == "" {
		return "", "", fmt.Errorf("no bucket configured for %q", file.FilePath)
	}
	return l.bucket, file.FilePath, nil
}

// GetFileBytes retrieves the contents of the given EventFile from S3. It
// implements the EventFileLoader interface.
func (l *S3EventFileLoader) GetFileBytes(ctx context.Context, file loader.EventFile) ([]byte, error) {
	cacheKey := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[cacheKey]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(cacheKey, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[cacheKey]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		bucket, key, err := l.location(file)
		if err != nil {
			return nil, err
		}

		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return nil, err
		}

		byts := buf.Bytes()

		l.cacheMu.Lock()
		l.cache[cacheKey] = byts
		l.cacheMu.Unlock()

		return byts, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
