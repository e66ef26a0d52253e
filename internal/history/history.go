// Package history persists finished aggregates in an embedded vector store so
// later queries can retrieve similar prior context. chromem-go keeps the
// store local: gob files on disk, no external service.
package history

import (
	"context"
	"fmt"
	"os"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// Config holds history store settings.
type Config struct {
	// Path is the directory for persistent storage.
	Path string

	// Collection is the collection name. Defaults to "gatherd_history".
	Collection string

	// Compress enables gzip compression of stored gob files.
	Compress bool

	// Embedding selects the OpenAI-compatible embedding endpoint used to
	// vectorize documents and queries.
	Embedding EmbeddingConfig
}

// EmbeddingConfig points at an OpenAI-compatible embeddings API.
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Match is one similar prior aggregate.
type Match struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Store records and retrieves prior aggregates by similarity.
type Store struct {
	db     *chromem.DB
	coll   *chromem.Collection
	logger *zap.Logger
}

// New opens (or creates) the persistent store. embed overrides the embedding
// function; pass nil to build one from cfg.Embedding.
func New(cfg Config, embed chromem.EmbeddingFunc, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("history store requires a path")
	}
	if cfg.Collection == "" {
		cfg.Collection = "gatherd_history"
	}
	if embed == nil {
		if cfg.Embedding.BaseURL == "" || cfg.Embedding.Model == "" {
			return nil, fmt.Errorf("history store requires an embedding endpoint and model")
		}
		normalized := true
		embed = chromem.NewEmbeddingFuncOpenAICompat(
			cfg.Embedding.BaseURL,
			cfg.Embedding.APIKey,
			cfg.Embedding.Model,
			&normalized,
		)
	}

	if err := os.MkdirAll(cfg.Path, 0700); err != nil {
		return nil, fmt.Errorf("creating history directory %s: %w", cfg.Path, err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	coll, err := db.GetOrCreateCollection(cfg.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("opening history collection %s: %w", cfg.Collection, err)
	}

	logger.Info("history store ready",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Int("documents", coll.Count()),
	)

	return &Store{db: db, coll: coll, logger: logger}, nil
}

// Record stores one finished aggregate. metadata typically carries the
// workspace and fingerprint; a recorded_at timestamp is added here.
func (s *Store) Record(ctx context.Context, id, content string, metadata map[string]string) error {
	if id == "" || content == "" {
		return fmt.Errorf("record requires id and content")
	}
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["recorded_at"] = time.Now().UTC().Format(time.RFC3339)

	doc := chromem.Document{ID: id, Content: content, Metadata: meta}
	if err := s.coll.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("recording aggregate %s: %w", id, err)
	}

	s.logger.Debug("recorded aggregate", zap.String("id", id), zap.Int("documents", s.coll.Count()))
	return nil
}

// Similar returns up to k prior aggregates ranked by similarity to text.
func (s *Store) Similar(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		k = 3
	}
	// chromem rejects nResults greater than the document count.
	if n := s.coll.Count(); n == 0 {
		return nil, nil
	} else if k > n {
		k = n
	}

	results, err := s.coll.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{ID: r.ID, Content: r.Content, Score: r.Similarity, Metadata: r.Metadata}
	}
	return matches, nil
}

// Len returns the number of stored aggregates.
func (s *Store) Len() int { return s.coll.Count() }
