package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const contentType = "text/plain; charset=utf-8"

type IObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

// R2Store writes objects to an S3 compatible bucket (Cloudflare R2 in production).
type R2Store struct {
	client *s3.Client
	bucket string
}

func NewR2Store(ctx context.Context, cfg *config.Invoices) (*R2Store, error) {
	if cfg == nil || cfg.Bucket == "" || cfg.Endpoint == "" {
		return nil, errors.New("invoices.bucket and invoices.endpoint are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load object storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	return &R2Store{client: client, bucket: cfg.Bucket}, nil
}

func (r *R2Store) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

type Archiver struct {
	store   IObjectStore
	baseURL string
	mylog   logger.Logger
}

// NewArchiver returns an archiver writing to store. baseURL is the public prefix
// of the bucket; when empty Archive returns the object key instead of a URL.
func NewArchiver(store IObjectStore, baseURL string, mylog logger.Logger) *Archiver {
	return &Archiver{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		mylog:   mylog,
	}
}

func Key(userID string, orderID int64) string {
	return fmt.Sprintf("invoices/%s/order-%d.txt", userID, orderID)
}

// Archive renders o and uploads it under the user's invoice prefix.
func (a *Archiver) Archive(ctx context.Context, userID string, o models.Order) (string, error) {
	mylog := a.mylog.Action("invoice_archive").With("order_id", o.ID, "user_id", userID)

	key := Key(userID, o.ID)
	if err := a.store.PutObject(ctx, key, contentType, Render(o)); err != nil {
		mylog.Error("Failed to archive invoice", err)
		return "", err
	}
	mylog.Info("Invoice archived", "key", key)

	if a.baseURL == "" {
		return key, nil
	}
	return a.baseURL + "/" + key, nil
}
