package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExtractionResult is the text extractor's output for one document.
type ExtractionResult struct {
	Text      string
	WordCount int
	Metadata  map[string]interface{}
}

// TextExtractor turns raw document bytes into plain text. The pipeline
// treats it as an opaque, possibly-failing call and never inspects
// file-format internals; richer format support plugs in behind this
// interface.
type TextExtractor interface {
	Extract(raw []byte, contentType, filename string) (*ExtractionResult, error)
}

// PlainTextExtractor handles text-native content types. Anything it cannot
// decode as UTF-8 text is an extraction failure, not a crash.
type PlainTextExtractor struct{}

// NewPlainTextExtractor creates the default extractor.
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract implements TextExtractor for plain-text content.
func (e *PlainTextExtractor) Extract(raw []byte, contentType, filename string) (*ExtractionResult, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty file: %s", filename)
	}

	if !textContentType(contentType, filename) {
		return nil, fmt.Errorf("unsupported content type %q for %s", contentType, filename)
	}

	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("file %s is not valid UTF-8 text", filename)
	}

	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text content in %s", filename)
	}

	return &ExtractionResult{
		Text:      text,
		WordCount: WordCount(text),
		Metadata: map[string]interface{}{
			"content_type": contentType,
			"filename":     filename,
		},
	}, nil
}

func textContentType(contentType, filename string) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case ct == "application/json", ct == "application/xml":
		return true
	}
	name := strings.ToLower(filename)
	for _, ext := range []string{".txt", ".md", ".csv", ".json", ".xml", ".html"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
