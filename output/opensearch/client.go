package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/c360/logstream/errors"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"
)

// ClientConfig holds OpenSearch connection and index management settings
type ClientConfig struct {
	URL             string
	Username        string
	Password        string
	TLSSkipVerify   bool
	IndexPrefix     string
	ShardCount      int
	ReplicaCount    int
	RefreshInterval string
	RetentionDays   int
	RolloverSizeGB  int
	RolloverAge     time.Duration
}

// DefaultClientConfig returns connection defaults suitable for a local
// single-node cluster
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:             "https://localhost:9200",
		Username:        "admin",
		Password:        "admin",
		TLSSkipVerify:   true,
		IndexPrefix:     "logstream-events",
		ShardCount:      1,
		ReplicaCount:    0,
		RefreshInterval: "5s",
		RetentionDays:   30,
		RolloverSizeGB:  50,
		RolloverAge:     24 * time.Hour,
	}
}

// BulkStats reports the outcome of one bulk request
type BulkStats struct {
	Indexed int
	Failed  int
	Errors  []string
}

// Client manages event indices in OpenSearch: a dated write index behind a
// stable alias, an index template for GELF field mappings, and an ISM policy
// for rollover and retention.
type Client struct {
	os     *opensearch.Client
	cfg    ClientConfig
	logger *slog.Logger
	ready  bool
}

// NewClient creates an OpenSearch client. No connection is made until Setup.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, errors.WrapFatal(err, "Client", "NewClient", "create opensearch client")
	}

	return &Client{
		os:     client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Setup verifies connectivity and provisions the index template, lifecycle
// policy, and initial write index. Safe to call more than once.
func (c *Client) Setup(ctx context.Context) error {
	if c.ready {
		return nil
	}

	info, err := c.os.Info()
	if err != nil {
		return errors.WrapTransient(err, "Client", "Setup", "connect to opensearch")
	}
	defer info.Body.Close()

	if info.IsError() {
		return errors.WrapTransient(fmt.Errorf("opensearch returned %s", info.Status()),
			"Client", "Setup", "cluster info")
	}

	if err := c.putIndexTemplate(ctx); err != nil {
		return errors.WrapTransient(err, "Client", "Setup", "create index template")
	}

	if err := c.putLifecyclePolicy(ctx); err != nil {
		return errors.WrapTransient(err, "Client", "Setup", "create lifecycle policy")
	}

	if err := c.createInitialIndex(ctx); err != nil {
		return errors.WrapTransient(err, "Client", "Setup", "create initial index")
	}

	c.ready = true
	c.logger.Info("OpenSearch initialized",
		"index_prefix", c.cfg.IndexPrefix,
		"write_alias", c.WriteAlias())
	return nil
}

// WriteAlias returns the stable alias bulk requests are addressed to
func (c *Client) WriteAlias() string {
	return c.cfg.IndexPrefix + "-write"
}

// initialIndexName returns the name of the first dated write index
func (c *Client) initialIndexName() string {
	return fmt.Sprintf("%s-%s-000001", c.cfg.IndexPrefix, time.Now().Format("2006.01.02"))
}

// BulkIndex submits one bulk request for the given documents. Per-item
// failures are reported in BulkStats; a non-nil error means the whole
// request failed.
func (c *Client) BulkIndex(ctx context.Context, docs [][]byte) (BulkStats, error) {
	var stats BulkStats
	if len(docs) == 0 {
		return stats, nil
	}

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: c.os,
		Index:  c.WriteAlias(),
	})
	if err != nil {
		return stats, errors.WrapTransient(err, "Client", "BulkIndex", "create bulk indexer")
	}

	// Item callbacks run on the indexer's worker goroutines
	var mu sync.Mutex

	for _, doc := range docs {
		addErr := bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(doc),
			OnSuccess: func(_ context.Context, _ opensearchutil.BulkIndexerItem, _ opensearchutil.BulkIndexerResponseItem) {
				mu.Lock()
				stats.Indexed++
				mu.Unlock()
			},
			OnFailure: func(_ context.Context, _ opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				stats.Failed++
				if err != nil {
					stats.Errors = append(stats.Errors, err.Error())
				} else {
					stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
				mu.Unlock()
			},
		})
		if addErr != nil {
			mu.Lock()
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("add to bulk indexer: %v", addErr))
			mu.Unlock()
		}
	}

	if err := bi.Close(ctx); err != nil {
		return stats, errors.WrapTransient(err, "Client", "BulkIndex", "flush bulk request")
	}

	return stats, nil
}

func (c *Client) putIndexTemplate(ctx context.Context) error {
	template := map[string]any{
		"index_patterns": []string{c.cfg.IndexPrefix + "-*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   c.cfg.ShardCount,
				"number_of_replicas": c.cfg.ReplicaCount,
				"refresh_interval":   c.cfg.RefreshInterval,
				"codec":              "best_compression",
			},
			"mappings": gelfMappings(),
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	res, err := c.os.Indices.PutIndexTemplate(
		c.cfg.IndexPrefix+"-template",
		bytes.NewReader(body),
		c.os.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("put index template: %s - %s", res.Status(), string(bodyBytes))
	}

	c.logger.Debug("Index template created", "template", c.cfg.IndexPrefix+"-template")
	return nil
}

// gelfMappings returns the field mappings for ingested GELF events. The
// document shape after normalization: @timestamp, message, host, level,
// the stripped additional fields, and whatever nested objects dotted keys
// expanded into, so everything unlisted maps dynamically.
func gelfMappings() map[string]any {
	return map[string]any{
		"dynamic": true,
		"dynamic_templates": []map[string]any{
			{
				"strings_as_keywords": map[string]any{
					"match_mapping_type": "string",
					"mapping": map[string]any{
						"type": "text",
						"fields": map[string]any{
							"keyword": map[string]any{
								"type":         "keyword",
								"ignore_above": 256,
							},
						},
					},
				},
			},
		},
		"properties": map[string]any{
			"@timestamp": map[string]any{
				"type": "date",
			},
			"version": map[string]any{
				"type": "keyword",
			},
			"host": map[string]any{
				"type": "keyword",
			},
			"source_host": map[string]any{
				"type": "keyword",
			},
			"message": map[string]any{
				"type": "text",
			},
			"short_message": map[string]any{
				"type": "text",
			},
			"full_message": map[string]any{
				"type": "text",
			},
			"level": map[string]any{
				"type": "integer",
			},
			"facility": map[string]any{
				"type": "keyword",
			},
			"tags": map[string]any{
				"type": "keyword",
			},
			"_ingest_id": map[string]any{
				"type": "keyword",
			},
			"_received_at": map[string]any{
				"type": "date",
			},
		},
	}
}

func (c *Client) putLifecyclePolicy(ctx context.Context) error {
	policy := map[string]any{
		"policy": map[string]any{
			"description":   "LogStream event index lifecycle policy",
			"default_state": "hot",
			"states": []map[string]any{
				{
					"name": "hot",
					"actions": []map[string]any{
						{
							"rollover": map[string]any{
								"min_size":      fmt.Sprintf("%dGB", c.cfg.RolloverSizeGB),
								"min_index_age": formatPolicyDuration(c.cfg.RolloverAge),
							},
						},
					},
					"transitions": []map[string]any{
						{
							"state_name": "delete",
							"conditions": map[string]any{
								"min_index_age": fmt.Sprintf("%dd", c.cfg.RetentionDays),
							},
						},
					},
				},
				{
					"name": "delete",
					"actions": []map[string]any{
						{
							"delete": map[string]any{},
						},
					},
				},
			},
		},
	}

	body, err := json.Marshal(policy)
	if err != nil {
		return err
	}

	policyName := c.cfg.IndexPrefix + "-policy"

	checkReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"/_plugins/_ism/policies/"+policyName, http.NoBody)
	if err != nil {
		return err
	}

	checkRes, err := c.os.Transport.Perform(checkReq)
	if err != nil {
		return err
	}
	checkRes.Body.Close()

	// Existing policies are updated in place, new ones created
	url := "/_plugins/_ism/policies/" + policyName
	if checkRes.StatusCode == http.StatusOK {
		url += "?if_seq_no=1&if_primary_term=1"
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	putReq.Header.Set("Content-Type", "application/json")

	res, err := c.os.Transport.Perform(putReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// 409 means the policy already exists with the same content
	if res.StatusCode >= 400 && res.StatusCode != http.StatusConflict {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("put lifecycle policy: %d - %s", res.StatusCode, string(bodyBytes))
	}

	c.logger.Debug("Lifecycle policy created", "policy", policyName)
	return nil
}

func (c *Client) createInitialIndex(ctx context.Context) error {
	indexName := c.initialIndexName()

	exists, err := c.os.Indices.Exists([]string{indexName}, c.os.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	defer exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		c.logger.Debug("Write index already exists", "index", indexName)
		return nil
	}

	res, err := c.os.Indices.Create(indexName, c.os.Indices.Create.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create initial index: %s - %s", res.Status(), string(bodyBytes))
	}

	// Move the write alias atomically: strip is_write_index from any older
	// index, then point it at the new one
	aliasActions := map[string]any{
		"actions": []map[string]any{
			{
				"remove": map[string]any{
					"index": c.cfg.IndexPrefix + "-*",
					"alias": c.WriteAlias(),
				},
			},
			{
				"add": map[string]any{
					"index":          indexName,
					"alias":          c.WriteAlias(),
					"is_write_index": true,
				},
			},
		},
	}

	body, err := json.Marshal(aliasActions)
	if err != nil {
		return err
	}

	aliasReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "/_aliases", bytes.NewReader(body))
	if err != nil {
		return err
	}
	aliasReq.Header.Set("Content-Type", "application/json")

	aliasRes, err := c.os.Transport.Perform(aliasReq)
	if err != nil {
		return err
	}
	defer aliasRes.Body.Close()

	if aliasRes.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(aliasRes.Body)
		return fmt.Errorf("update write alias: %d - %s", aliasRes.StatusCode, string(bodyBytes))
	}

	c.logger.Info("Initial write index created",
		"index", indexName,
		"alias", c.WriteAlias())
	return nil
}

// formatPolicyDuration renders a duration the way ISM policies expect:
// "24h" or "7d", never Go's "24h0m0s"
func formatPolicyDuration(d time.Duration) string {
	hours := int(d.Hours())
	if hours%24 == 0 {
		return fmt.Sprintf("%dd", hours/24)
	}
	return fmt.Sprintf("%dh", hours)
}
