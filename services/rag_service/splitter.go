package rag_service

import (
	"fmt"
	"strings"

	"github.com/serisow/policybot/pipeline_type"
)

// SplitterConfig describes how page text is cut into overlapping chunks.
// Separators are tried in order; the first one found in the boundary window
// ends the chunk, and the next chunk starts ChunkOverlap characters before
// that boundary.
type SplitterConfig struct {
	Name         string
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
	// HardCut allows cutting at exactly ChunkSize when no separator is found.
	// Without it the chunk grows until the next separator.
	HardCut bool
}

var (
	RegularSplitter = SplitterConfig{
		Name:         "regular",
		ChunkSize:    3000,
		ChunkOverlap: 500,
		Separators:   []string{"\n\n", "\n•", "\n", " "},
		HardCut:      true,
	}

	LargeDocumentSplitter = SplitterConfig{
		Name:         "large_document",
		ChunkSize:    5000,
		ChunkOverlap: 1000,
		Separators:   []string{"\n\n\n", "\n\n", "\n•", "\n", " "},
		HardCut:      false,
	}
)

func (c SplitterConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// SplitText splits text into chunks. Lengths are measured in characters
// (code points), not bytes.
func (c SplitterConfig) SplitText(text string) []string {
	runes := []rune(text)
	n := len(runes)

	var chunks []string
	emit := func(r []rune) {
		s := string(r)
		if strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
	}

	start := 0
	for start < n {
		if n-start <= c.ChunkSize {
			emit(runes[start:])
			break
		}

		end := c.boundary(runes, start)
		emit(runes[start:end])
		if end >= n {
			break
		}
		start = end - c.ChunkOverlap
	}

	return chunks
}

// boundary picks the end of the chunk starting at start. The window keeps
// chunks at least half full and always beyond the overlap, so every step
// makes progress.
func (c SplitterConfig) boundary(runes []rune, start int) int {
	hi := start + c.ChunkSize
	lo := start + c.ChunkSize/2
	if lo <= start+c.ChunkOverlap {
		lo = start + c.ChunkOverlap + 1
	}

	for _, sep := range c.Separators {
		sr := []rune(sep)
		for p := hi; p >= lo; p-- {
			if hasAt(runes, p, sr) {
				return p
			}
		}
	}

	if c.HardCut {
		return hi
	}

	best := len(runes)
	for _, sep := range c.Separators {
		sr := []rune(sep)
		for p := hi + 1; p < best; p++ {
			if hasAt(runes, p, sr) {
				best = p
				break
			}
		}
	}
	return best
}

func hasAt(runes []rune, p int, sep []rune) bool {
	if len(sep) == 0 || p+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[p+i] != r {
			return false
		}
	}
	return true
}

// SplitUnits splits every unit separately and stamps each chunk with the
// unit's source and page.
func (c SplitterConfig) SplitUnits(units []pipeline_type.DocumentUnit) []pipeline_type.Chunk {
	var chunks []pipeline_type.Chunk
	for _, unit := range units {
		for i, text := range c.SplitText(unit.Text) {
			chunks = append(chunks, pipeline_type.Chunk{
				Content:      text,
				Source:       unit.Source,
				Page:         unit.Page,
				Position:     i,
				ChunkSize:    c.ChunkSize,
				ChunkOverlap: c.ChunkOverlap,
			})
		}
	}
	return chunks
}

// SplitterPolicy chooses a splitter for each loaded file.
type SplitterPolicy struct {
	// Adaptive enables the large-document splitter. When false every file
	// uses the regular splitter.
	Adaptive           bool
	LargeFileThreshold int64
	LargeFiles         []string
}

func (p SplitterPolicy) Select(file pipeline_type.LoadedFile) SplitterConfig {
	if !p.Adaptive {
		return RegularSplitter
	}
	if p.LargeFileThreshold > 0 && file.Size > p.LargeFileThreshold {
		return LargeDocumentSplitter
	}
	for _, name := range p.LargeFiles {
		if strings.EqualFold(strings.TrimSpace(name), file.Name) {
			return LargeDocumentSplitter
		}
	}
	return RegularSplitter
}
