package database

import (
	"bytes"
	"context"
	"fmt"

	"opposite-match-workers/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchClient wraps the Elasticsearch client
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

// StatusError reports a non-2xx response from Elasticsearch. Transport
// failures are returned as-is so callers can tell the two apart.
type StatusError struct {
	Index  string
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elasticsearch index %s responded %s", e.Index, e.Status)
}

// NewElasticsearch creates a new Elasticsearch client
func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}

	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: es}, nil
}

// Ping tests the Elasticsearch connection
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(
		c.Client.Ping.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}

	return nil
}

// IndexDocument indexes a JSON document under the given ID, replacing any
// previous document with the same ID.
func (c *ElasticsearchClient) IndexDocument(ctx context.Context, index, docID string, body []byte) error {
	res, err := c.Client.Index(
		index,
		bytes.NewReader(body),
		c.Client.Index.WithDocumentID(docID),
		c.Client.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return &StatusError{Index: index, Status: res.Status()}
	}

	return nil
}
