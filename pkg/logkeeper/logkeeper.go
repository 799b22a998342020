// Package logkeeper moves request log entries from Kafka into an Elasticsearch index.
package logkeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"buddyfeed/pkg/logger"
)

var ErrInvalidConfig = errors.New("invalid log keeper configuration")

type Config struct {
	LogLevel     string   `toml:"logLevel"`
	KafkaBrokers []string `toml:"kafkaBrokers"`
	KafkaTopic   string   `toml:"kafkaTopic"`
	KafkaGroupID string   `toml:"kafkaGroupID"`

	ElasticSearchIndex string   `toml:"elasticSearchIndex"`
	ElasticSearchNodes []string `toml:"elasticSearchNodes"`

	NumWorkers int `toml:"numWorkers"`
}

func (c *Config) Validate() error {
	switch {
	case len(c.KafkaBrokers) == 0:
		return fmt.Errorf("%w: no kafka brokers", ErrInvalidConfig)
	case c.KafkaTopic == "":
		return fmt.Errorf("%w: no kafka topic", ErrInvalidConfig)
	case c.ElasticSearchIndex == "":
		return fmt.Errorf("%w: no elasticsearch index", ErrInvalidConfig)
	case len(c.ElasticSearchNodes) == 0:
		return fmt.Errorf("%w: no elasticsearch nodes", ErrInvalidConfig)
	case c.NumWorkers <= 0:
		return fmt.Errorf("%w: numWorkers must be positive", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides the broker and node lists with the comma separated KAFKA_BROKERS
// and ELASTICSEARCH_NODES variables when they are set.
func (c *Config) ApplyEnv() {
	if v := splitList(os.Getenv("KAFKA_BROKERS")); len(v) > 0 {
		c.KafkaBrokers = v
	}
	if v := splitList(os.Getenv("ELASTICSEARCH_NODES")); len(v) > 0 {
		c.ElasticSearchNodes = v
	}
}

// ReaderConfig describes the consumer group reading the log topic.
func (c *Config) ReaderConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:  c.KafkaBrokers,
		Topic:    c.KafkaTopic,
		GroupID:  c.KafkaGroupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// MessageReader is the consuming side of a Kafka topic. *kafka.Reader satisfies it.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Keeper struct {
	es      *elasticsearch.Client
	index   string
	workers int
}

func New(es *elasticsearch.Client, index string, workers int) *Keeper {
	if workers <= 0 {
		workers = 1
	}
	return &Keeper{es: es, index: index, workers: workers}
}

// Run feeds messages from r to the worker pool until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context, r MessageReader) {
	jobs := make(chan kafka.Message, k.workers*5) // buffer is needed to increase throughput
	var wg sync.WaitGroup
	wg.Add(k.workers)
	for workerID := 0; workerID < k.workers; workerID++ {
		go func(id int) {
			defer wg.Done()
			k.worker(ctx, jobs, id)
		}(workerID)
	}

	log.Info("[logkeeper] accepting logs...")
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Errorf("[logkeeper] failed to read message from Kafka: %v", err)
			continue
		}
		log.Debugf("[logkeeper] received message: %s", string(msg.Value))

		select {
		case jobs <- msg:
		case <-ctx.Done():
		}
	}

	close(jobs)
	wg.Wait()
}

func (k *Keeper) worker(ctx context.Context, jobs <-chan kafka.Message, workerID int) {
	for {
		select {
		case <-ctx.Done():
			log.Infof("[logkeeper][workerID:%d] context cancelled, exiting worker", workerID)
			return

		case msg, ok := <-jobs:
			if !ok {
				log.Infof("[logkeeper][workerID:%d] jobs channel closed, exiting worker", workerID)
				return
			}

			entry, err := k.Index(ctx, msg)
			if err != nil {
				log.Errorf("[logkeeper][workerID:%d] %v", workerID, err)
				continue
			}
			log.Infof("[logkeeper][workerID:%d][%s] log entry indexed", workerID, logger.Shorten(entry.RequestID))
		}
	}
}

// Index stores one log entry. Entries are keyed by service and request id, so a
// redelivered message replaces its earlier copy.
func (k *Keeper) Index(ctx context.Context, msg kafka.Message) (logger.Entry, error) {
	var entry logger.Entry
	if err := json.Unmarshal(msg.Value, &entry); err != nil {
		return entry, fmt.Errorf("failed to unmarshal log entry: %w", err)
	}
	if entry.RequestID == "" {
		return entry, fmt.Errorf("log entry without request id dropped")
	}

	res, err := k.es.Index(
		k.index,
		bytes.NewReader(msg.Value),
		k.es.Index.WithDocumentID(entry.DocumentID()),
		k.es.Index.WithContext(ctx),
	)
	if err != nil {
		return entry, fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return entry, fmt.Errorf("failed to index document: %s", res.Status())
	}

	return entry, nil
}
