package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/postprocessors/chunker"
)

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// NewDefaultPipeline builds the standard chunking pipeline from retrieval settings.
func NewDefaultPipeline(cfg domain.RetrievalSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	proc, err := r.Build("chunker", map[string]any{
		"max_tokens":    cfg.ChunkMaxTokens,
		"overlap_words": cfg.ChunkOverlapWords,
		"min_chars":     cfg.ChunkMinChars,
	})
	if err != nil {
		return nil, fmt.Errorf("build chunker: %w", err)
	}
	return NewPipeline(proc), nil
}

// buildChunker creates a chunker from generic config.
// Supported keys:
//   - max_tokens (int): token budget per chunk (default 400)
//   - overlap_words (int): words carried across a mid-paragraph split (default 30)
//   - min_chars (int): chunks shorter than this are dropped (default 20)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if v, ok := getIntFromConfig(cfg, "max_tokens"); ok {
		if v <= 0 {
			return nil, fmt.Errorf("max_tokens must be positive, got %d", v)
		}
		opts = append(opts, chunker.WithMaxTokens(v))
	}
	if v, ok := getIntFromConfig(cfg, "overlap_words"); ok && v >= 0 {
		opts = append(opts, chunker.WithOverlapWords(v))
	}
	if v, ok := getIntFromConfig(cfg, "min_chars"); ok && v >= 0 {
		opts = append(opts, chunker.WithMinChars(v))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig extracts an int from a generic config map.
// Handles the int, int64 and float64 types produced by TOML and JSON decoding.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
