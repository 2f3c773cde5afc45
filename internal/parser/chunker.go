package parser

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"pdf-chat/internal/config"
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
	defaultSeparator    = "\n"
)

// Splitter cuts text into windows of at most ChunkSize characters. Each window
// after the first starts with the last ChunkOverlap characters of the previous one,
// and a window ends right after Separator whenever one falls inside it.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

var _ textsplitter.TextSplitter = Splitter{}

// NewSplitter returns the splitter selected by cfg.
func NewSplitter(cfg config.ChunkerConfig) textsplitter.TextSplitter {
	if cfg.Type == config.ChunkerRecursive {
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators([]string{cfg.Separator, " ", ""}),
		)
	}
	return Splitter{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Separator:    cfg.Separator,
	}
}

// SplitText implements textsplitter.TextSplitter. Blank text yields no chunks.
func (s Splitter) SplitText(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	size, overlap := s.ChunkSize, s.ChunkOverlap
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	content := []rune(text)
	sep := []rune(s.Separator)
	n := len(content)

	var chunks []string
	start := 0
	for {
		end := min(start+size, n)
		if end < n {
			if cut := lastCut(content, sep, start+overlap, end); cut > 0 {
				end = cut
			}
		}
		chunks = append(chunks, string(content[start:end]))
		if end >= n {
			break
		}
		start = end - overlap
	}
	return chunks, nil
}

// lastCut returns the largest position in (floor, end] that directly follows sep,
// or 0 when there is none.
func lastCut(content, sep []rune, floor, end int) int {
	if len(sep) == 0 {
		return 0
	}
	for cut := end; cut > floor && cut-len(sep) >= 0; cut-- {
		if runesEqual(content[cut-len(sep):cut], sep) {
			return cut
		}
	}
	return 0
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
