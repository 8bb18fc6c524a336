package storage

import (
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MirrorPrefix is the key prefix of mirrored images.
const MirrorPrefix = "images"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// objectPutter is the part of *s3.Client used by S3Mirror.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Settings configures an S3-compatible endpoint such as MinIO.
type S3Settings struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Mirror copies stored images into a bucket under images/<name>.
type S3Mirror struct {
	client objectPutter
	bucket string
}

// NewS3Mirror builds a client with static credentials. An empty
// BaseEndpoint keeps the SDK's default endpoint resolution.
func NewS3Mirror(ctx context.Context, s S3Settings) (*S3Mirror, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.RootUser,
			s.RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Mirror{client: client, bucket: s.Bucket}, nil
}

// Key returns the object key used for name.
func (m *S3Mirror) Key(name string) string {
	return path.Join(MirrorPrefix, name)
}

func (m *S3Mirror) Put(ctx context.Context, name, mediaType string, body io.ReadSeeker) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.Key(name)),
		Body:        body,
		ContentType: aws.String(mediaType),
	})
	return err
}
