package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/wahook/pkg/config"
)

// Uploader ships a local backup file somewhere off the host and returns the
// remote location.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// S3Client uploads store backups to an S3 compatible bucket.
type S3Client struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

func NewS3Client(ctx context.Context, sc config.S3, log zerolog.Logger) (*S3Client, error) {
	if !sc.Enabled {
		return nil, fmt.Errorf("s3 backup is disabled")
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(sc.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			sc.AccessKeyID,
			sc.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if sc.EndpointURL != "" {
			o.BaseEndpoint = aws.String(sc.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		client: client,
		bucket: sc.BucketName,
		prefix: sc.Prefix,
		log:    log.With().Str("component", "s3backup").Logger(),
	}, nil
}

// ObjectKey is <prefix>/YYYY/MM/<file name>.
func ObjectKey(prefix, localPath string, at time.Time) string {
	return path.Join(prefix, fmt.Sprintf("%04d/%02d", at.Year(), int(at.Month())), filepath.Base(localPath))
}

func (c *S3Client) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	key := ObjectKey(c.prefix, localPath, time.Now().UTC())
	c.log.Info().Str("file", localPath).Str("bucket", c.bucket).Str("key", key).Int64("bytes", info.Size()).Msg("uploading backup")

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentType:   aws.String("application/vnd.sqlite3"),
		ContentLength: aws.Int64(info.Size()),
		Metadata: map[string]string{
			"source": "wahook",
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", c.bucket, key), nil
}
