package spindle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/api/option"
)

// ResponseArchive copies successfully fetched response bodies into a Google
// Cloud Storage bucket, one object per fetch under
// <crawler>/<escaped-url>/<timestamp>.
type ResponseArchive struct {
	client *storage.Client
	bucket string
}

func NewResponseArchive(ctx context.Context, config *configService) (*ResponseArchive, error) {
	bucket := config.EnvString("ARCHIVE_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("ARCHIVE_BUCKET environment variable is not set")
	}

	var opts []option.ClientOption
	if creds := config.EnvString("GCP_CREDENTIALS_PATH"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &ResponseArchive{client: client, bucket: bucket}, nil
}

func (a *ResponseArchive) Save(ctx context.Context, crawlerName string, res *Response) error {
	name := fmt.Sprintf("%s/%s/%d", crawlerName, url.PathEscape(res.Url), res.FetchedAt.UnixNano())

	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	writer := a.client.Bucket(a.bucket).Object(name).NewWriter(writeCtx)
	writer.ContentType = res.ContentType
	if writer.ContentType == "" {
		writer.ContentType = mimetype.Detect(res.Body).String()
	}

	if _, err := io.Copy(writer, bytes.NewReader(res.Body)); err != nil {
		writer.Close()
		return fmt.Errorf("failed to copy response data to bucket %s: %w", a.bucket, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer for object %s: %w", name, err)
	}
	return nil
}

func (a *ResponseArchive) Close() error {
	return a.client.Close()
}
