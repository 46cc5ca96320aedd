package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	config "github.com/maheshrc27/locaposty/configs"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Google accepts JPEG and PNG photos and MP4 videos on local posts.
var allowedMediaTypes = map[string]struct{}{
	"jpg": {}, "png": {}, "mp4": {},
}

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type MediaService interface {
	// Upload stores the file and returns its public URL for use in mediaUrls.
	Upload(ctx context.Context, file []byte) (string, error)
}

type mediaService struct {
	s3        ObjectPutter
	bucket    string
	publicURL string
}

func NewMediaService(s3 ObjectPutter, bucket, publicURL string) MediaService {
	return &mediaService{s3: s3, bucket: bucket, publicURL: publicURL}
}

// NewS3Client builds a client for any S3 compatible store (R2, MinIO, AWS).
func NewS3Client(ctx context.Context, cfg config.S3) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (m *mediaService) Upload(ctx context.Context, file []byte) (string, error) {
	if len(file) == 0 {
		return "", validationError("file is empty")
	}

	kind, err := filetype.Match(file)
	if err != nil || kind == types.Unknown {
		return "", validationError("unsupported file type")
	}
	if _, ok := allowedMediaTypes[kind.Extension]; !ok {
		return "", validationError("file type %s is not allowed", kind.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s.%s", id, kind.Extension)

	_, err = m.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("upload media: %w", err)
	}

	return fmt.Sprintf("%s/%s", m.publicURL, key), nil
}
