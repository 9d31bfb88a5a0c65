package postprocessors

import (
	"context"
	"strings"
	"testing"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

type registryMockProcessor struct {
	name string
}

func (m *registryMockProcessor) Name() string { return m.name }
func (m *registryMockProcessor) Process(_ context.Context, _ *domain.Note, chunks []domain.Chunk) ([]domain.Chunk, error) {
	return chunks, nil
}

func TestRegistry_BuildAndNames(t *testing.T) {
	r := NewRegistry()
	if r.Has("custom") {
		t.Error("expected empty registry")
	}

	r.Register("custom", func(cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &registryMockProcessor{name: name}, nil
	})
	r.Register("alpha", func(_ map[string]any) (driven.PostProcessor, error) {
		return &registryMockProcessor{name: "alpha"}, nil
	})

	proc, err := r.Build("custom", map[string]any{"name": "labelled"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if proc.Name() != "labelled" {
		t.Errorf("expected name 'labelled', got %q", proc.Name())
	}

	if got := strings.Join(r.Names(), ","); got != "alpha,custom" {
		t.Errorf("expected sorted names, got %s", got)
	}
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	if _, err := NewRegistry().Build("unknown", nil); err == nil {
		t.Error("expected error for unknown processor")
	}
}

func TestBuildChunker(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	tests := []struct {
		name    string
		cfg     map[string]any
		wantErr bool
	}{
		{"nil config", nil, false},
		{"ints", map[string]any{"max_tokens": 200, "overlap_words": 10, "min_chars": 5}, false},
		{"toml numbers", map[string]any{"max_tokens": int64(300), "overlap_words": float64(20)}, false},
		{"zero budget", map[string]any{"max_tokens": 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc, err := r.Build("chunker", tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Build chunker failed: %v", err)
			}
			if proc.Name() != "chunker" {
				t.Errorf("expected name 'chunker', got %q", proc.Name())
			}
		})
	}
}

func TestNewDefaultPipeline(t *testing.T) {
	p, err := NewDefaultPipeline(domain.DefaultAppSettings().Retrieval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	note := &domain.Note{
		ID:      "n1",
		Content: "# Intro\n\nThis paragraph is long enough to survive the minimum length floor.",
	}
	chunks, err := p.Process(context.Background(), note)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Heading != "Intro" {
		t.Errorf("expected heading Intro, got %q", chunks[0].Heading)
	}
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    map[string]any
		want   int
		wantOK bool
	}{
		{"int value", map[string]any{"size": 100}, 100, true},
		{"int64 value", map[string]any{"size": int64(200)}, 200, true},
		{"float64 value", map[string]any{"size": float64(300)}, 300, true},
		{"string value", map[string]any{"size": "400"}, 0, false},
		{"missing key", map[string]any{"other": 100}, 0, false},
		{"nil config", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := getIntFromConfig(tt.cfg, "size")
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}
