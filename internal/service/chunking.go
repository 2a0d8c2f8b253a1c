package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// ChunkConfig controls how cleaned pages are windowed into chunks.
type ChunkConfig struct {
	Size     int
	Overlap  int
	MinChars int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:     1200,
		Overlap:  220,
		MinChars: 100,
	}
}

// Validate reports whether the window can advance.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", domain.ErrInvalidChunkConfig, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap must be in [0,%d), got %d", domain.ErrInvalidChunkConfig, c.Size, c.Overlap)
	}
	if c.MinChars < 0 {
		return fmt.Errorf("%w: min chars cannot be negative", domain.ErrInvalidChunkConfig)
	}
	return nil
}

func (c ChunkConfig) normalized() ChunkConfig {
	if c.Validate() != nil {
		return DefaultChunkConfig()
	}
	return c
}

// ChunkPages slides a fixed window over every page and tags each emitted
// chunk with its page number and sourceID. Windows whose trimmed length does
// not exceed MinChars are dropped. An invalid config falls back to defaults.
func ChunkPages(pages []domain.RawPage, sourceID string, cfg ChunkConfig) []domain.Chunk {
	cfg = cfg.normalized()

	chunks := make([]domain.Chunk, 0, len(pages))
	for _, page := range pages {
		for _, content := range chunkText(page.Text, cfg) {
			chunks = append(chunks, domain.Chunk{
				Content:  content,
				Page:     page.Number,
				SourceID: sourceID,
			})
		}
	}
	return chunks
}

func chunkText(text string, cfg ChunkConfig) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := cfg.Size - cfg.Overlap
	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		window := strings.TrimSpace(string(runes[start:end]))
		if utf8.RuneCountInString(window) > cfg.MinChars {
			out = append(out, window)
		}

		if end == len(runes) {
			break
		}
	}
	return out
}
