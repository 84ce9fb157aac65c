package spindle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/compute/metadata"
	"google.golang.org/api/option"
)

// BigQuerySink streams extracted items into a BigQuery table. Items are
// stored as JSON payloads; created_at drives table partitioning.
type BigQuerySink struct {
	client  *bigquery.Client
	dataset string
	table   string
}

type bigqueryItem struct {
	Spider    string    `bigquery:"spider"`
	Payload   string    `bigquery:"payload"`
	CreatedAt time.Time `bigquery:"created_at"`
}

func NewBigQuerySink(ctx context.Context, config *configService) (*BigQuerySink, error) {
	projectID := config.EnvString("PROJECT_ID")
	if projectID == "" {
		var err error
		projectID, err = metadata.ProjectID()
		if err != nil {
			return nil, fmt.Errorf("failed to get project ID: %w", err)
		}
	}

	var opts []option.ClientOption
	if creds := config.EnvString("GCP_CREDENTIALS_PATH"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return &BigQuerySink{
		client:  client,
		dataset: config.GetString("BIGQUERY_DATASET"),
		table:   config.GetString("BIGQUERY_TABLE"),
	}, nil
}

func (s *BigQuerySink) Store(ctx context.Context, spider string, item Map) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	inserter := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	rows := []*bigqueryItem{
		{
			Spider:    spider,
			Payload:   string(payload),
			CreatedAt: time.Now(),
		},
	}
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("failed to insert item into %s.%s: %w", s.dataset, s.table, err)
	}
	return nil
}

func (s *BigQuerySink) Close() error {
	return s.client.Close()
}
