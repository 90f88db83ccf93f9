package processor

import (
	"fmt"
	"strings"

	"github.com/xhad/paperqa/internal/models"
)

// DocumentHeading labels chunks cut from a document that has no detectable sections.
const DocumentHeading = "Document"

type ProcessorConfig struct {
	ChunkSize    int // in characters
	ChunkOverlap int
}

type Processor struct {
	config ProcessorConfig
}

// boundaries are tried in order of preference; a cut lands right after one.
var boundaries = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune(" "),
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = 200
		}
	}

	return Processor{
		config: config,
	}
}

func New() Processor {
	return NewWithConfig(ProcessorConfig{})
}

func (p *Processor) Config() ProcessorConfig {
	return p.config
}

// Chunk cuts text into a sliding window of chunks of at most ChunkSize
// characters. Each chunk after the first starts with the last ChunkOverlap
// characters of the previous one, so every character lands in some chunk.
// Blank text yields no chunks.
func (p *Processor) Chunk(text string) ([]string, error) {
	size, overlap := p.config.ChunkSize, p.config.ChunkOverlap
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; ; {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// The cut must leave the next window past start.
		lo := start + max(overlap+1, size/2)
		cut := findBoundary(runes, lo, end)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut - overlap
	}

	return chunks, nil
}

// findBoundary returns the largest index in [lo, hi] that directly follows the
// most preferred separator found there, or hi when there is none.
func findBoundary(runes []rune, lo, hi int) int {
	for _, sep := range boundaries {
		for i := hi; i >= lo; i-- {
			if hasSuffix(runes[:i], sep) {
				return i
			}
		}
	}
	return hi
}

func hasSuffix(runes, suffix []rune) bool {
	if len(runes) < len(suffix) {
		return false
	}
	tail := runes[len(runes)-len(suffix):]
	for i := range suffix {
		if tail[i] != suffix[i] {
			return false
		}
	}
	return true
}

// Process chunks every section body and stamps each chunk with its heading.
// Chunk ids are "<section index>:<chunk index>"; empty sections produce no chunks.
func (p *Processor) Process(sections []models.Section) ([]models.Chunk, error) {
	var out []models.Chunk

	for i, section := range sections {
		texts, err := p.Chunk(section.Body)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", section.Heading, err)
		}
		for j, text := range texts {
			out = append(out, models.Chunk{
				ID:       fmt.Sprintf("%d:%d", i, j),
				Text:     text,
				Section:  section.Heading,
				Position: len(out),
				Metadata: map[string]interface{}{
					"section":     section.Heading,
					"chunk_index": j,
				},
			})
		}
	}

	return out, nil
}

// ProcessText chunks a whole document as a single DocumentHeading section.
func (p *Processor) ProcessText(text string) ([]models.Chunk, error) {
	return p.Process([]models.Section{{Heading: DocumentHeading, Body: text}})
}
