package cmd

import (
	"os"

	"github.com/dewey-index/dewey/internal/config"
	"github.com/dewey-index/dewey/internal/embed"
	"github.com/dewey-index/dewey/internal/index"
)

// openCoordinator loads config from dir, builds the configured embedder,
// and opens the index coordinator over $DEWEY_HOME.
func openCoordinator(dir string) (*index.Coordinator, config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}

	embedder := buildEmbedder(cfg)

	c, err := index.Open(cfg, embedder)
	if err != nil {
		return nil, cfg, err
	}
	return c, cfg, nil
}

func buildEmbedder(cfg config.Config) embed.Embedder {
	if os.Getenv("DEWEY_OFFLINE") != "" {
		return embed.NewStaticEmbedder()
	}
	return embed.NewHTTPEmbedder(embed.HTTPConfig{
		Endpoint:        cfg.Embedding.Endpoint,
		Model:           cfg.Embedding.Model,
		APIKey:          cfg.Embedding.APIKey,
		Dimensions:      cfg.Dimensions,
		BatchByteBudget: cfg.Embedding.BatchByteBudget,
		Timeout:         cfg.Embedding.Timeout,
		MaxRetries:      cfg.Embedding.MaxRetries,
	})
}
