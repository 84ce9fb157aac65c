package spindle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/option"
)

// DatastoreSink records extracted items as Datastore entities, one kind per
// spider (<name>_items).
type DatastoreSink struct {
	client *datastore.Client
}

type datastoreItem struct {
	Spider    string    `datastore:"spider"`
	Payload   string    `datastore:"payload,noindex"`
	CreatedAt time.Time `datastore:"created_at"`
}

func NewDatastoreSink(ctx context.Context, config *configService) (*DatastoreSink, error) {
	var opts []option.ClientOption
	if creds := config.EnvString("GCP_CREDENTIALS_PATH"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	client, err := datastore.NewClient(ctx, config.EnvString("PROJECT_ID"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore client: %w", err)
	}
	return &DatastoreSink{client: client}, nil
}

func (s *DatastoreSink) Store(ctx context.Context, spider string, item Map) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	key := datastore.IncompleteKey(spider+"_items", nil)
	entity := &datastoreItem{
		Spider:    spider,
		Payload:   string(payload),
		CreatedAt: time.Now(),
	}
	if _, err := s.client.Put(ctx, key, entity); err != nil {
		return fmt.Errorf("failed to store item: %w", err)
	}
	return nil
}

func (s *DatastoreSink) Close() error {
	return s.client.Close()
}
