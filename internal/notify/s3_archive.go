package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of the S3 client used by the archive
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores every event as a JSON object, giving an audit trail of state transitions
type S3Archive struct {
	client ObjectPutter
	bucket string
	prefix string
}

// S3Options configures the archive client
type S3Options struct {
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// NewS3Client builds an S3 client. Static credentials and a custom endpoint are used when set,
// otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Archive creates an archive sink writing into bucket
func NewS3Archive(client ObjectPutter, bucket, prefix string) *S3Archive {
	if prefix == "" {
		prefix = "events"
	}
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3Archive) Name() string { return "s3" }

func (a *S3Archive) Deliver(ctx context.Context, evt Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(evt)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}
	return nil
}

// Key returns the object key for evt: <prefix>/YYYY/MM/DD/<kind>/<id>.json
func (a *S3Archive) Key(evt Event) string {
	return path.Join(a.prefix, evt.OccurredAt.UTC().Format("2006/01/02"), string(evt.Kind), evt.ID+".json")
}
