package service

import (
	"regexp"
	"strings"
)

// sentenceBoundaryWindow is how many words from the end of a chunk are
// scanned for sentence-terminal punctuation when adjusting the cut point.
const sentenceBoundaryWindow = 50

// ChunkerConfig controls the sliding-window text chunker.
type ChunkerConfig struct {
	ChunkSize    int // words per chunk
	ChunkOverlap int // words shared between consecutive chunks
}

// DefaultChunkerConfig returns the production chunking parameters.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:    400,
		ChunkOverlap: 50,
	}
}

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	invalidChars    = regexp.MustCompile(`[^\w\s.,!?;:\-()\[\]{}"'/\\]`)
	ellipsisRun     = regexp.MustCompile(`\.{3,}`)
	exclamationRun  = regexp.MustCompile(`[!?]{2,}`)
	lineBreakRun    = regexp.MustCompile(`\n+`)
	sentenceEndings = []string{".", "!", "?", "\n"}
)

// CleanText normalizes raw extracted text: collapses whitespace, strips
// characters outside the word/punctuation set, and squashes punctuation runs.
func CleanText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = invalidChars.ReplaceAllString(text, " ")
	text = ellipsisRun.ReplaceAllString(text, "...")
	text = exclamationRun.ReplaceAllString(text, "!")
	text = lineBreakRun.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// ChunkText splits cleaned text into overlapping word-bounded chunks,
// preferring sentence boundaries for every chunk but the last.
//
// The window start advances by at least one word per iteration regardless of
// overlap configuration, and the loop is bounded by 2 x word count, so the
// chunker terminates for any input.
func ChunkText(text string, cfg ChunkerConfig) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	if len(words) <= cfg.ChunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	maxIterations := len(words) * 2

	for iteration := 0; start < len(words) && iteration < maxIterations; iteration++ {
		end := start + cfg.ChunkSize
		if end > len(words) {
			end = len(words)
		}

		chunkWords := words[start:end]
		chunkText := strings.Join(chunkWords, " ")

		// Not the last chunk: try to cut at the last sentence-terminal
		// punctuation within the trailing window.
		if end < len(words) {
			if adjusted, ok := cutAtSentenceBoundary(chunkWords); ok {
				chunkText = adjusted
			}
		}

		chunks = append(chunks, chunkText)

		if end >= len(words) {
			break
		}

		next := end - cfg.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// cutAtSentenceBoundary trims a chunk to end at the last sentence-terminal
// punctuation found within the final sentenceBoundaryWindow words. Reports
// false when no boundary exists and the raw word cut stands.
func cutAtSentenceBoundary(chunkWords []string) (string, bool) {
	window := sentenceBoundaryWindow
	if window > len(chunkWords) {
		window = len(chunkWords)
	}

	head := strings.Join(chunkWords[:len(chunkWords)-window], " ")
	tail := strings.Join(chunkWords[len(chunkWords)-window:], " ")

	cut := -1
	for _, ending := range sentenceEndings {
		if idx := strings.LastIndex(tail, ending); idx > cut {
			cut = idx
		}
	}
	if cut <= 0 {
		return "", false
	}

	adjusted := tail[:cut+1]
	if head != "" {
		adjusted = head + " " + adjusted
	}
	return strings.TrimSpace(adjusted), true
}

// WordCount returns the whitespace-separated word count of text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
